package ioc

import (
	"fmt"
	"reflect"
	"sync"
	"sync/atomic"

	"github.com/gobeans/beans/logging"
)

// BeanFactory Bean 工厂：在单例注册表之上提供定义注册、
// 按名称/类型的 Bean 检索、创建管线与销毁登记。
// 支持父工厂层级（候选枚举会包含祖先注册表）。
type BeanFactory struct {
	*SingletonRegistry

	parent *BeanFactory
	logger logging.Logger

	defMu       sync.RWMutex
	definitions map[string]*BeanDefinition
	defOrder    []string

	processorMu sync.RWMutex
	processors  []BeanPostProcessor

	converters *ConverterRegistry

	// candidateScans 候选枚举次数，快捷方式缓存的测试探针。
	candidateScans atomic.Int64
}

// FactoryOption 配置 Bean 工厂。
type FactoryOption func(*BeanFactory)

// WithLogger 设置工厂与默认处理器使用的日志记录器。
func WithLogger(logger logging.Logger) FactoryOption {
	return func(f *BeanFactory) { f.logger = logger }
}

// WithParent 设置父工厂。
func WithParent(parent *BeanFactory) FactoryOption {
	return func(f *BeanFactory) { f.parent = parent }
}

// NewBeanFactory 创建 Bean 工厂，默认装配注入处理器与生命周期处理器。
func NewBeanFactory(opts ...FactoryOption) *BeanFactory {
	f := &BeanFactory{
		logger:      logging.NewNopLogger(),
		definitions: make(map[string]*BeanDefinition),
		converters:  NewConverterRegistry(),
	}
	for _, opt := range opts {
		opt(f)
	}
	f.SingletonRegistry = NewSingletonRegistry(f.logger)
	f.processors = []BeanPostProcessor{
		NewAutowiredProcessor(f),
		NewLifecycleProcessor(f.logger),
	}
	return f
}

// AddBeanPostProcessor 追加后处理器，按追加顺序执行。
func (f *BeanFactory) AddBeanPostProcessor(p BeanPostProcessor) {
	f.processorMu.Lock()
	defer f.processorMu.Unlock()
	f.processors = append(f.processors, p)
}

// postProcessors 返回处理器切片的快照。
func (f *BeanFactory) postProcessors() []BeanPostProcessor {
	f.processorMu.RLock()
	defer f.processorMu.RUnlock()
	snapshot := make([]BeanPostProcessor, len(f.processors))
	copy(snapshot, f.processors)
	return snapshot
}

// destructionProcessors 返回销毁感知后处理器。
func (f *BeanFactory) destructionProcessors() []DestructionAwareBeanPostProcessor {
	var result []DestructionAwareBeanPostProcessor
	for _, p := range f.postProcessors() {
		if dp, ok := p.(DestructionAwareBeanPostProcessor); ok {
			result = append(result, dp)
		}
	}
	return result
}

// Converters 返回类型转换器注册表。
func (f *BeanFactory) Converters() *ConverterRegistry { return f.converters }

// RegisterDefinition 注册 Bean 定义。同名重复注册是错误。
func (f *BeanFactory) RegisterDefinition(def *BeanDefinition) error {
	if def == nil {
		return &ConfigurationError{Reason: "ioc: 定义不能为空"}
	}
	f.defMu.Lock()
	defer f.defMu.Unlock()
	if _, exists := f.definitions[def.Name()]; exists {
		return &ConfigurationError{Reason: fmt.Sprintf("ioc: bean '%s' 已注册", def.Name())}
	}
	f.definitions[def.Name()] = def
	f.defOrder = append(f.defOrder, def.Name())
	return nil
}

// RegisterBean 便捷注册：构建定义并注册，配置错误时 panic。
func (f *BeanFactory) RegisterBean(name string, typ reflect.Type, opts ...BeanOption) {
	def, err := NewBeanDefinition(name, typ, opts...)
	if err != nil {
		panic(err)
	}
	if err := f.RegisterDefinition(def); err != nil {
		panic(err)
	}
}

// Register 泛型便捷注册入口。
func Register[T any](f *BeanFactory, name string, opts ...BeanOption) {
	f.RegisterBean(name, reflect.TypeOf((*T)(nil)).Elem(), opts...)
}

// Resolve 按类型解析单个 Bean（完整的候选解析语义）。
func Resolve[T any](f *BeanFactory) (T, error) {
	var zero T
	desc := DependencyDescriptor{
		Type:     reflect.TypeOf((*T)(nil)).Elem(),
		Required: true,
	}
	v, _, err := f.ResolveDependency(desc, "")
	if err != nil {
		return zero, err
	}
	if v == nil {
		return zero, nil
	}
	typed, ok := v.(T)
	if !ok {
		return zero, fmt.Errorf("ioc: 解析结果为 %T，期望 %v", v, desc.Type)
	}
	return typed, nil
}

// Definition 按（规范）名称查找定义，包含父工厂。
func (f *BeanFactory) Definition(name string) (*BeanDefinition, bool) {
	canonical := f.CanonicalName(name)
	f.defMu.RLock()
	def, ok := f.definitions[canonical]
	f.defMu.RUnlock()
	if !ok && f.parent != nil {
		return f.parent.Definition(name)
	}
	return def, ok
}

// DefinitionNames 返回本工厂按注册顺序排列的定义名称。
func (f *BeanFactory) DefinitionNames() []string {
	f.defMu.RLock()
	defer f.defMu.RUnlock()
	names := make([]string, len(f.defOrder))
	copy(names, f.defOrder)
	return names
}

// ContainsBean 判断该名称是否可解析（定义或手工单例，含父工厂）。
func (f *BeanFactory) ContainsBean(name string) bool {
	canonical := f.CanonicalName(name)
	if f.ContainsSingleton(canonical) {
		return true
	}
	f.defMu.RLock()
	_, ok := f.definitions[canonical]
	f.defMu.RUnlock()
	if ok {
		return true
	}
	return f.parent != nil && f.parent.ContainsBean(name)
}

// isSingletonByName 判断该名称是否单例语义（定义作用域或手工单例）。
func (f *BeanFactory) isSingletonByName(name string) bool {
	canonical := f.CanonicalName(name)
	if def, ok := f.Definition(canonical); ok {
		return def.IsSingleton()
	}
	return f.ContainsSingleton(canonical)
}

// IsTypeMatch 判断该名称的 Bean 是否与类型匹配。
func (f *BeanFactory) IsTypeMatch(name string, typ reflect.Type) bool {
	canonical := f.CanonicalName(name)
	if def, ok := f.Definition(canonical); ok && def.Type() != nil {
		return def.Type().AssignableTo(typ)
	}
	if raw := f.getSingleton(canonical, false); raw != nil {
		v := unwrapNil(raw)
		if v == nil {
			return false
		}
		return reflect.TypeOf(v).AssignableTo(typ)
	}
	return false
}

// NamesForType 枚举类型可赋值的全部 Bean 名称：
// 本工厂定义（注册顺序）、手工注册的单例，以及祖先工厂。
func (f *BeanFactory) NamesForType(typ reflect.Type) []string {
	f.candidateScans.Add(1)

	var names []string
	seen := make(map[string]struct{})
	add := func(name string) {
		if _, ok := seen[name]; !ok {
			seen[name] = struct{}{}
			names = append(names, name)
		}
	}

	f.defMu.RLock()
	for _, name := range f.defOrder {
		def := f.definitions[name]
		if def.Type() != nil && def.Type().AssignableTo(typ) {
			add(name)
		}
	}
	f.defMu.RUnlock()

	for _, name := range f.SingletonNames() {
		if _, ok := seen[name]; ok {
			continue
		}
		f.defMu.RLock()
		_, hasDef := f.definitions[name]
		f.defMu.RUnlock()
		if hasDef {
			continue
		}
		raw := f.getSingleton(name, false)
		v := unwrapNil(raw)
		if v != nil && reflect.TypeOf(v).AssignableTo(typ) {
			add(name)
		}
	}

	if f.parent != nil {
		for _, name := range f.parent.NamesForType(typ) {
			add(name)
		}
	}
	return names
}

// CandidateScanCount 候选枚举的累计次数（测试探针）。
func (f *BeanFactory) CandidateScanCount() int64 {
	return f.candidateScans.Load()
}

// GetBean 按名称检索 Bean，必要时创建。
func (f *BeanFactory) GetBean(name string) (any, error) {
	canonical := f.CanonicalName(name)

	if raw := f.getSingleton(canonical, true); raw != nil {
		return unwrapNil(raw), nil
	}

	def, ok := f.localDefinition(canonical)
	if !ok {
		if f.ContainsSingleton(canonical) {
			return f.GetSingleton(canonical), nil
		}
		if f.parent != nil {
			return f.parent.GetBean(name)
		}
		return nil, &NoSuchBeanError{Name: canonical}
	}

	// 显式依赖先初始化，并登记销毁边（依赖者先销毁）
	for _, dep := range def.DependsOn() {
		if f.IsDependent(canonical, dep) {
			return nil, &ConfigurationError{Reason: fmt.Sprintf(
				"ioc: bean '%s' 与 '%s' 之间存在循环的 depends-on 关系", canonical, dep)}
		}
		f.RegisterDependentBean(dep, canonical)
		if _, err := f.GetBean(dep); err != nil {
			return nil, fmt.Errorf("ioc: bean '%s' 的 depends-on '%s' 初始化失败: %w", canonical, dep, err)
		}
	}

	if def.IsPrototype() {
		return f.createBean(def)
	}

	return f.GetOrCreateSingleton(canonical, func() (any, error) {
		return f.createBean(def)
	})
}

func (f *BeanFactory) localDefinition(canonical string) (*BeanDefinition, bool) {
	f.defMu.RLock()
	defer f.defMu.RUnlock()
	def, ok := f.definitions[canonical]
	return def, ok
}

// GetBeanByType 按类型检索单个 Bean（完整候选解析语义）。
func (f *BeanFactory) GetBeanByType(typ reflect.Type) (any, error) {
	v, _, err := f.ResolveDependency(DependencyDescriptor{Type: typ, Required: true}, "")
	return v, err
}

// createBean 创建管线：实例化 → 早期引用暴露 → 属性注入 → 初始化 → 销毁登记。
func (f *BeanFactory) createBean(def *BeanDefinition) (any, error) {
	instance, err := f.instantiateBean(def)
	if err != nil {
		return nil, err
	}

	// 循环引用化解点：单例在创建中即把半成品暴露为早期引用工厂
	if def.IsSingleton() && f.IsSingletonCurrentlyInCreation(def.Name()) {
		early := instance
		f.AddSingletonFactory(def.Name(), func() (any, error) {
			return early, nil
		})
	}

	processors := f.postProcessors()

	for _, p := range processors {
		if pp, ok := p.(PropertiesPostProcessor); ok {
			if err := pp.PostProcessProperties(instance, def.Name(), def); err != nil {
				return nil, err
			}
		}
	}

	instance, err = f.initializeBean(instance, def, processors)
	if err != nil {
		return nil, err
	}

	f.registerDisposableIfNeeded(def.Name(), instance, def)
	return instance, nil
}

// initializeBean 初始化序列：前置处理器 → Initializer 契约 →
// 定义声明的初始化方法 → 后置处理器。
func (f *BeanFactory) initializeBean(instance any, def *BeanDefinition, processors []BeanPostProcessor) (any, error) {
	var err error
	for _, p := range processors {
		instance, err = p.BeforeInitialization(instance, def.Name())
		if err != nil {
			return nil, err
		}
	}

	if initializer, ok := instance.(Initializer); ok {
		if err := initializer.AfterPropertiesSet(); err != nil {
			return nil, fmt.Errorf("ioc: bean '%s' 的 AfterPropertiesSet 失败: %w", def.Name(), err)
		}
	}

	for _, name := range def.InitMethodNames() {
		if err := invokeLifecycleMethod(instance, name); err != nil {
			return nil, fmt.Errorf("ioc: bean '%s' 初始化方法 %s 失败: %w", def.Name(), name, err)
		}
	}

	for _, p := range processors {
		instance, err = p.AfterInitialization(instance, def.Name())
		if err != nil {
			return nil, err
		}
	}
	return instance, nil
}

// registerDisposableIfNeeded 单例且需要销毁时登记销毁适配器。
// 原型 Bean 的销毁由调用方负责，容器不登记。
func (f *BeanFactory) registerDisposableIfNeeded(name string, instance any, def *BeanDefinition) {
	if !def.IsSingleton() {
		return
	}
	destructionAware := f.destructionProcessors()
	if !requiresDestruction(instance, def, destructionAware) {
		return
	}
	adapter, err := NewDisposableAdapter(instance, name, def, destructionAware, f.logger)
	if err != nil {
		// 配置错误在创建路径即暴露：记录并以 panic 形式中止是过度的，
		// 这里记日志并放弃登记（销毁时该 bean 不执行回调）。
		f.logger.Error("构建销毁适配器失败",
			logging.Field{Key: "bean", Value: name},
			logging.Field{Key: "error", Value: err.Error()})
		return
	}
	f.RegisterDisposable(name, adapter)
}

// PreInstantiateSingletons 按注册顺序急切初始化全部非延迟单例定义。
func (f *BeanFactory) PreInstantiateSingletons() error {
	for _, name := range f.DefinitionNames() {
		def, ok := f.Definition(name)
		if !ok || !def.IsSingleton() || def.IsLazy() {
			continue
		}
		if _, err := f.GetBean(name); err != nil {
			return err
		}
	}
	return nil
}
