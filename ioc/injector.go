package ioc

import (
	"reflect"
	"sync"

	"github.com/gobeans/beans/logging"
)

// autowiredOwner 外部管理成员登记时的处理器标识。
const autowiredOwner = "autowired"

// AutowiredProcessor 注解式注入处理器：
// 检视目标类型上带注入标记的字段与方法，按类型身份构建并缓存注入元数据，
// 在属性填充阶段执行反射写入/调用。
// 同一类的重复创建命中唯一候选缓存后跳过重新解析。
type AutowiredProcessor struct {
	factory              *BeanFactory
	logger               logging.Logger
	markers              []InjectionMarker
	methodPrefix         string
	optionalMethodPrefix string

	cacheMu sync.RWMutex
	cache   map[reflect.Type]*InjectionMetadata
}

// AutowiredOption 配置注入处理器。
type AutowiredOption func(*AutowiredProcessor)

// WithInjectionMarkers 替换识别的注入标记表。
func WithInjectionMarkers(markers ...InjectionMarker) AutowiredOption {
	return func(p *AutowiredProcessor) { p.markers = markers }
}

// WithExtraInjectionMarker 追加一个注入标记。
func WithExtraInjectionMarker(marker InjectionMarker) AutowiredOption {
	return func(p *AutowiredProcessor) { p.markers = append(p.markers, marker) }
}

// WithInjectMethodPrefix 设置必选注入方法的名称前缀（默认 "Inject"）。
func WithInjectMethodPrefix(prefix string) AutowiredOption {
	return func(p *AutowiredProcessor) { p.methodPrefix = prefix }
}

// WithOptionalInjectMethodPrefix 设置可选注入方法的名称前缀（默认 "TryInject"）。
func WithOptionalInjectMethodPrefix(prefix string) AutowiredOption {
	return func(p *AutowiredProcessor) { p.optionalMethodPrefix = prefix }
}

// NewAutowiredProcessor 创建注入处理器。
func NewAutowiredProcessor(factory *BeanFactory, opts ...AutowiredOption) *AutowiredProcessor {
	p := &AutowiredProcessor{
		factory:              factory,
		logger:               factory.logger,
		markers:              defaultMarkers(),
		methodPrefix:         "Inject",
		optionalMethodPrefix: "TryInject",
		cache:                make(map[reflect.Type]*InjectionMetadata),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// BeforeInitialization 无操作。
func (p *AutowiredProcessor) BeforeInitialization(instance any, beanName string) (any, error) {
	return instance, nil
}

// AfterInitialization 无操作。
func (p *AutowiredProcessor) AfterInitialization(instance any, beanName string) (any, error) {
	return instance, nil
}

// PostProcessProperties 执行字段与方法注入。
func (p *AutowiredProcessor) PostProcessProperties(instance any, beanName string, def *BeanDefinition) error {
	if instance == nil {
		return nil
	}
	meta := p.findMetadata(reflect.TypeOf(instance))
	if len(meta.elements) == 0 {
		return nil
	}
	if def != nil {
		meta.CheckConfigMembers(def, autowiredOwner)
	}
	return meta.Inject(instance, beanName, def, autowiredOwner, p.factory)
}

// findMetadata 双重检查的按类缓存：无锁检查，加锁复查后构建。
// 缓存按类型身份键控，类型变更（罕见）天然产生新键。
func (p *AutowiredProcessor) findMetadata(t reflect.Type) *InjectionMetadata {
	p.cacheMu.RLock()
	meta, ok := p.cache[t]
	p.cacheMu.RUnlock()
	if ok {
		return meta
	}

	p.cacheMu.Lock()
	defer p.cacheMu.Unlock()
	if meta, ok = p.cache[t]; ok {
		return meta
	}
	meta = buildInjectionMetadata(t, p.markers, p.methodPrefix, p.optionalMethodPrefix, p.logger)
	p.cache[t] = meta
	return meta
}

// InvalidateMetadata 清除某类型的缓存元数据（安全重建支持）。
func (p *AutowiredProcessor) InvalidateMetadata(t reflect.Type) {
	p.cacheMu.Lock()
	defer p.cacheMu.Unlock()
	delete(p.cache, t)
}
