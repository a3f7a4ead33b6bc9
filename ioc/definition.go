package ioc

import (
	"fmt"
	"reflect"
	"sync"
)

// ScopeType 定义 Bean 的生命周期。
type ScopeType int

const (
	// ScopeSingleton 每个工厂一个实例（默认）。
	ScopeSingleton ScopeType = iota
	// ScopePrototype 每次请求创建新实例，容器不缓存、不负责销毁。
	ScopePrototype
)

// DestroyMethodInferred 销毁方法推断标记：
// 未实现 Disposable 契约时，按 Close/Shutdown 惯例推断销毁方法。
const DestroyMethodInferred = "(inferred)"

// constructorCandidate 候选构造函数。
type constructorCandidate struct {
	fn       reflect.Value
	typ      reflect.Type
	required bool
}

// BeanDefinition 描述一个注册到工厂的 Bean。
type BeanDefinition struct {
	name              string
	typ               reflect.Type
	scope             ScopeType
	value             any
	hasValue          bool
	constructors      []constructorCandidate
	initMethodNames   []string
	destroyMethodName string
	qualifiers        map[string]string
	primary           bool
	order             *int
	lazy              bool
	dependsOn         []string
	autowireCandidate bool

	mu                  sync.Mutex
	externallyManaged   map[string]string // member key -> 管理者
	resolvedConstructor *constructorCandidate
	constructorResolved bool
}

// BeanOption 配置 Bean 定义。
type BeanOption func(*BeanDefinition)

// NewBeanDefinition 创建 Bean 定义。typ 可为 nil，
// 此时从 WithValue 的实例或首个构造函数的返回值推断。
func NewBeanDefinition(name string, typ reflect.Type, opts ...BeanOption) (*BeanDefinition, error) {
	if name == "" {
		return nil, &ConfigurationError{Reason: "ioc: bean 名称不能为空"}
	}
	def := &BeanDefinition{
		name:              name,
		typ:               typ,
		scope:             ScopeSingleton,
		qualifiers:        make(map[string]string),
		autowireCandidate: true,
		externallyManaged: make(map[string]string),
	}
	for _, opt := range opts {
		opt(def)
	}

	// 类型推断
	if def.typ == nil {
		if def.hasValue && def.value != nil {
			def.typ = reflect.TypeOf(def.value)
		} else if len(def.constructors) > 0 {
			def.typ = def.constructors[0].typ.Out(0)
		}
	}
	if def.typ == nil && !def.hasValue {
		return nil, &ConfigurationError{Reason: fmt.Sprintf("ioc: bean '%s' 缺少类型信息", name)}
	}

	// 声明两个以上无条件必选构造函数是致命的配置歧义
	requiredCount := 0
	for _, c := range def.constructors {
		if c.required {
			requiredCount++
		}
	}
	if requiredCount > 1 {
		return nil, &ConfigurationError{Reason: fmt.Sprintf(
			"ioc: bean '%s' 声明了 %d 个必选构造函数，至多允许一个", name, requiredCount)}
	}
	return def, nil
}

// MustBeanDefinition 同 NewBeanDefinition，失败时 panic。注册阶段的便捷入口。
func MustBeanDefinition(name string, typ reflect.Type, opts ...BeanOption) *BeanDefinition {
	def, err := NewBeanDefinition(name, typ, opts...)
	if err != nil {
		panic(err)
	}
	return def
}

// WithScope 设置作用域。
func WithScope(scope ScopeType) BeanOption {
	return func(d *BeanDefinition) { d.scope = scope }
}

// WithPrototype 设置为原型作用域。
func WithPrototype() BeanOption {
	return WithScope(ScopePrototype)
}

// WithValue 注册现成实例为单例。
func WithValue(v any) BeanOption {
	return func(d *BeanDefinition) {
		d.value = v
		d.hasValue = true
	}
}

// WithConstructor 添加候选构造函数（可选候选）。
// 函数签名须为 func(deps...) T 或 func(deps...) (T, error)。
func WithConstructor(fn any) BeanOption {
	return withConstructor(fn, false)
}

// WithRequiredConstructor 添加无条件必选构造函数。至多声明一个。
func WithRequiredConstructor(fn any) BeanOption {
	return withConstructor(fn, true)
}

func withConstructor(fn any, required bool) BeanOption {
	return func(d *BeanDefinition) {
		v := reflect.ValueOf(fn)
		if v.Kind() != reflect.Func || v.Type().NumOut() == 0 {
			panic(&ConfigurationError{Reason: fmt.Sprintf(
				"ioc: bean '%s' 的构造函数必须是至少有一个返回值的函数，得到 %T", d.name, fn)})
		}
		d.constructors = append(d.constructors, constructorCandidate{
			fn:       v,
			typ:      v.Type(),
			required: required,
		})
	}
}

// WithInitMethod 声明初始化方法名（按声明顺序调用，须无参）。
func WithInitMethod(names ...string) BeanOption {
	return func(d *BeanDefinition) { d.initMethodNames = append(d.initMethodNames, names...) }
}

// WithDestroyMethod 声明自定义销毁方法名。
func WithDestroyMethod(name string) BeanOption {
	return func(d *BeanDefinition) { d.destroyMethodName = name }
}

// WithInferredDestroyMethod 请求按 Close/Shutdown 惯例推断销毁方法。
func WithInferredDestroyMethod() BeanOption {
	return WithDestroyMethod(DestroyMethodInferred)
}

// WithQualifier 设置限定符的 value 属性，供注入点限定符匹配。
func WithQualifier(value string) BeanOption {
	return func(d *BeanDefinition) { d.qualifiers["value"] = value }
}

// WithQualifierAttr 设置限定符的任意属性。
func WithQualifierAttr(key, value string) BeanOption {
	return func(d *BeanDefinition) { d.qualifiers[key] = value }
}

// WithPrimary 将该 Bean 标记为同类型多候选时的首选。
func WithPrimary() BeanOption {
	return func(d *BeanDefinition) { d.primary = true }
}

// WithOrder 设置排序值，值越小优先级越高。
func WithOrder(order int) BeanOption {
	return func(d *BeanDefinition) {
		o := order
		d.order = &o
	}
}

// WithLazy 延迟初始化（PreInstantiateSingletons 跳过）。
func WithLazy() BeanOption {
	return func(d *BeanDefinition) { d.lazy = true }
}

// WithDependsOn 声明显式依赖（先于本 Bean 初始化，后于本 Bean 销毁）。
func WithDependsOn(names ...string) BeanOption {
	return func(d *BeanDefinition) { d.dependsOn = append(d.dependsOn, names...) }
}

// WithoutAutowireCandidate 将该 Bean 排除出按类型注入的候选集合。
func WithoutAutowireCandidate() BeanOption {
	return func(d *BeanDefinition) { d.autowireCandidate = false }
}

// Name 返回 Bean 名称。
func (d *BeanDefinition) Name() string { return d.name }

// Type 返回 Bean 类型。
func (d *BeanDefinition) Type() reflect.Type { return d.typ }

// Scope 返回作用域。
func (d *BeanDefinition) Scope() ScopeType { return d.scope }

// IsSingleton 是否单例作用域。
func (d *BeanDefinition) IsSingleton() bool { return d.scope == ScopeSingleton }

// IsPrototype 是否原型作用域。
func (d *BeanDefinition) IsPrototype() bool { return d.scope == ScopePrototype }

// IsPrimary 是否首选候选。
func (d *BeanDefinition) IsPrimary() bool { return d.primary }

// IsLazy 是否延迟初始化。
func (d *BeanDefinition) IsLazy() bool { return d.lazy }

// Qualifiers 返回限定符属性（只读视图，调用方不得修改）。
func (d *BeanDefinition) Qualifiers() map[string]string { return d.qualifiers }

// DependsOn 返回显式依赖列表。
func (d *BeanDefinition) DependsOn() []string { return d.dependsOn }

// DestroyMethodName 返回声明的销毁方法名（可能是推断标记）。
func (d *BeanDefinition) DestroyMethodName() string { return d.destroyMethodName }

// InitMethodNames 返回声明的初始化方法名。
func (d *BeanDefinition) InitMethodNames() []string { return d.initMethodNames }

// RegisterExternallyManagedMember 登记成员为外部管理。
// 返回 true 表示本次登记成功；多个后处理器并存时用于避免重复注入。
func (d *BeanDefinition) RegisterExternallyManagedMember(member, owner string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if existing, ok := d.externallyManaged[member]; ok {
		return existing == owner
	}
	d.externallyManaged[member] = owner
	return true
}

// externallyManagedBy 返回成员的管理者（"" 表示未登记）。
func (d *BeanDefinition) externallyManagedBy(member string) string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.externallyManaged[member]
}
