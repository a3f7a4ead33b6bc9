package ioc

import (
	"fmt"
	"reflect"
	"sync"

	"github.com/gobeans/beans/logging"
)

// lifecycleMethod 一个生命周期方法：经最外层接收者调用（方法提升保证绑定正确）。
type lifecycleMethod struct {
	name  string
	depth int
}

// LifecycleMetadata 一个类型的生命周期元数据：
// 初始化方法（超类先于子类）与销毁方法（子类先于超类），按类型身份缓存。
type LifecycleMetadata struct {
	targetType     reflect.Type
	initMethods    []lifecycleMethod
	destroyMethods []lifecycleMethod
}

// hasDestroyMethods 是否存在需要调用的销毁方法。
func (m *LifecycleMetadata) hasDestroyMethods() bool {
	return len(m.destroyMethods) > 0
}

// LifecycleProcessor 生命周期后处理器：
// 按可配置的方法名集合识别初始化/销毁方法，构建并缓存每类元数据，
// 在初始化阶段与销毁阶段分别调用。
type LifecycleProcessor struct {
	logger       logging.Logger
	initNames    map[string]struct{}
	destroyNames map[string]struct{}

	cacheMu sync.RWMutex
	cache   map[reflect.Type]*LifecycleMetadata
}

// LifecycleOption 配置生命周期处理器。
type LifecycleOption func(*LifecycleProcessor)

// WithInitMethodNames 替换识别的初始化方法名集合。
func WithInitMethodNames(names ...string) LifecycleOption {
	return func(p *LifecycleProcessor) {
		p.initNames = make(map[string]struct{}, len(names))
		for _, n := range names {
			p.initNames[n] = struct{}{}
		}
	}
}

// WithDestroyMethodNames 替换识别的销毁方法名集合。
func WithDestroyMethodNames(names ...string) LifecycleOption {
	return func(p *LifecycleProcessor) {
		p.destroyNames = make(map[string]struct{}, len(names))
		for _, n := range names {
			p.destroyNames[n] = struct{}{}
		}
	}
}

// NewLifecycleProcessor 创建生命周期处理器。
// 默认识别 PostConstruct / PreDestroy 方法名（互操作惯例）。
func NewLifecycleProcessor(logger logging.Logger, opts ...LifecycleOption) *LifecycleProcessor {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	p := &LifecycleProcessor{
		logger:       logger,
		initNames:    map[string]struct{}{"PostConstruct": {}},
		destroyNames: map[string]struct{}{"PreDestroy": {}},
		cache:        make(map[reflect.Type]*LifecycleMetadata),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// BeforeInitialization 调用初始化方法（超类的先执行）。
func (p *LifecycleProcessor) BeforeInitialization(instance any, beanName string) (any, error) {
	meta, err := p.findMetadata(reflect.TypeOf(instance))
	if err != nil {
		return nil, err
	}
	for _, m := range meta.initMethods {
		if err := invokeLifecycleMethod(instance, m.name); err != nil {
			return nil, fmt.Errorf("ioc: bean '%s' 初始化方法 %s 失败: %w", beanName, m.name, err)
		}
	}
	return instance, nil
}

// AfterInitialization 无操作。
func (p *LifecycleProcessor) AfterInitialization(instance any, beanName string) (any, error) {
	return instance, nil
}

// BeforeDestruction 调用销毁方法（子类的先执行）。
// 单个方法的失败记日志后继续，不中断其余销毁方法。
func (p *LifecycleProcessor) BeforeDestruction(instance any, beanName string) error {
	meta, err := p.findMetadata(reflect.TypeOf(instance))
	if err != nil {
		return err
	}
	for _, m := range meta.destroyMethods {
		if err := invokeLifecycleMethod(instance, m.name); err != nil {
			p.logger.Error("销毁方法执行失败",
				logging.Field{Key: "bean", Value: beanName},
				logging.Field{Key: "method", Value: m.name},
				logging.Field{Key: "error", Value: err.Error()})
		}
	}
	return nil
}

// RequiresDestruction 仅当存在销毁方法元数据时才需要销毁回调。
func (p *LifecycleProcessor) RequiresDestruction(instance any) bool {
	meta, err := p.findMetadata(reflect.TypeOf(instance))
	if err != nil {
		return true // 元数据非法：保守地要求调用（失败会在销毁时再暴露）
	}
	return meta.hasDestroyMethods()
}

// findMetadata 双重检查的按类缓存。
func (p *LifecycleProcessor) findMetadata(t reflect.Type) (*LifecycleMetadata, error) {
	p.cacheMu.RLock()
	meta, ok := p.cache[t]
	p.cacheMu.RUnlock()
	if ok {
		return meta, nil
	}

	p.cacheMu.Lock()
	defer p.cacheMu.Unlock()
	if meta, ok = p.cache[t]; ok {
		return meta, nil
	}
	meta, err := p.buildMetadata(t)
	if err != nil {
		return nil, err
	}
	p.cache[t] = meta
	return meta, nil
}

// buildMetadata 构建生命周期元数据。带参数的生命周期方法是致命配置错误。
func (p *LifecycleProcessor) buildMetadata(t reflect.Type) (*LifecycleMetadata, error) {
	meta := &LifecycleMetadata{targetType: t}
	if t == nil {
		return meta, nil
	}

	ptrType := t
	structType := t
	if structType.Kind() == reflect.Pointer {
		structType = structType.Elem()
	} else {
		ptrType = reflect.PointerTo(t)
	}
	if structType.Kind() != reflect.Struct {
		return meta, nil
	}

	for i := 0; i < ptrType.NumMethod(); i++ {
		m := ptrType.Method(i)
		_, isInit := p.initNames[m.Name]
		_, isDestroy := p.destroyNames[m.Name]
		if !isInit && !isDestroy {
			continue
		}
		if err := validateLifecycleSignature(t, m); err != nil {
			return nil, err
		}
		lm := lifecycleMethod{name: m.Name, depth: embeddedMethodDepth(structType, m.Name)}
		if isInit {
			meta.initMethods = append(meta.initMethods, lm)
		}
		if isDestroy {
			meta.destroyMethods = append(meta.destroyMethods, lm)
		}
	}

	// 初始化：超类（更深内嵌层级）先；销毁：子类先
	sortLifecycleMethods(meta.initMethods, true)
	sortLifecycleMethods(meta.destroyMethods, false)
	return meta, nil
}

func sortLifecycleMethods(methods []lifecycleMethod, deepFirst bool) {
	for i := 1; i < len(methods); i++ {
		for j := i; j > 0; j-- {
			deeper := methods[j].depth > methods[j-1].depth
			if deeper == deepFirst && methods[j].depth != methods[j-1].depth {
				methods[j], methods[j-1] = methods[j-1], methods[j]
			} else {
				break
			}
		}
	}
}

// validateLifecycleSignature 生命周期方法必须无参，返回值为空或单个 error。
func validateLifecycleSignature(t reflect.Type, m reflect.Method) error {
	if m.Type.NumIn() > 1 {
		return &ConfigurationError{Reason: fmt.Sprintf(
			"ioc: 生命周期方法 %v.%s 不得有参数", t, m.Name)}
	}
	if m.Type.NumOut() > 1 || (m.Type.NumOut() == 1 && !m.Type.Out(0).Implements(errType)) {
		return &ConfigurationError{Reason: fmt.Sprintf(
			"ioc: 生命周期方法 %v.%s 的返回值只能为空或 error", t, m.Name)}
	}
	return nil
}

// invokeLifecycleMethod 经实例调用无参生命周期方法。
func invokeLifecycleMethod(instance any, name string) error {
	method := reflect.ValueOf(instance).MethodByName(name)
	if !method.IsValid() {
		return &ConfigurationError{Reason: fmt.Sprintf(
			"ioc: 实例 %T 上找不到生命周期方法 %s", instance, name)}
	}
	results := method.Call(nil)
	if len(results) == 1 && !results[0].IsNil() {
		return results[0].Interface().(error)
	}
	return nil
}
