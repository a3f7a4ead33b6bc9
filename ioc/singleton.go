package ioc

import (
	"bytes"
	"errors"
	"fmt"
	"runtime"
	"strconv"
	"sync"

	"github.com/gobeans/beans/logging"
)

// ObjectFactory 零参数工厂回调，按需产出实例。
type ObjectFactory func() (any, error)

// Disposable 销毁契约：暴露一个可能失败的无参销毁操作。
// 注册表的销毁逻辑只依赖该最小契约，不会进一步检视对象。
type Disposable interface {
	Destroy() error
}

// Initializer 初始化契约：属性注入完成后调用。
type Initializer interface {
	AfterPropertiesSet() error
}

// nilBean 显式注册 nil 单例时的内部哨兵。
var nilBean any = &struct{ nilSentinel bool }{true}

func wrapNil(instance any) any {
	if instance == nil {
		return nilBean
	}
	return instance
}

func unwrapNil(instance any) any {
	if instance == nilBean {
		return nil
	}
	return instance
}

// singletonCreation 一次进行中的单例创建。
// owner 用于区分同一调用链的重入（循环创建，失败）
// 与其他协程的并发创建（等待 done 后复查缓存）。
type singletonCreation struct {
	owner      uint64
	done       chan struct{}
	suppressed []error
}

// SingletonRegistry 单例注册表。
//
// 持有三元缓存（完成实例、早期引用、早期引用工厂）、创建中跟踪集合
// 以及销毁顺序依赖图。从「创建中」到「完成」的晋升始终经由 mu 串行化；
// 完成实例缓存的纯存在性检查走无锁的 sync.Map 快路径。
// 三张销毁依赖图各有独立的锁，注册依赖边可能发生在创建期间，
// 与 mu 分离以避免锁序死锁。
type SingletonRegistry struct {
	*AliasRegistry

	logger logging.Logger

	mu              sync.Mutex // 单例互斥量：缓存晋升与创建跟踪的串行点
	singletons      sync.Map   // name -> 完成实例（nil 以哨兵表示）
	earlySingletons map[string]any
	factories       map[string]ObjectFactory
	registeredNames []string
	registeredSet   map[string]struct{}

	creations        map[string]*singletonCreation
	creationExcluded map[string]struct{}
	inDestruction    bool

	disposableMu    sync.Mutex
	disposables     map[string]Disposable
	disposableOrder []string

	containedMu    sync.Mutex
	containedBeans map[string]map[string]struct{} // containing -> contained

	dependentMu    sync.Mutex
	dependentBeans map[string]map[string]struct{} // name -> 依赖它的 bean（先于它销毁）

	dependenciesMu      sync.Mutex
	dependenciesForBean map[string]map[string]struct{} // name -> 它依赖的 bean
}

// NewSingletonRegistry 创建单例注册表。
func NewSingletonRegistry(logger logging.Logger) *SingletonRegistry {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &SingletonRegistry{
		AliasRegistry:       NewAliasRegistry(),
		logger:              logger,
		earlySingletons:     make(map[string]any),
		factories:           make(map[string]ObjectFactory),
		registeredSet:       make(map[string]struct{}),
		creations:           make(map[string]*singletonCreation),
		creationExcluded:    make(map[string]struct{}),
		disposables:         make(map[string]Disposable),
		containedBeans:      make(map[string]map[string]struct{}),
		dependentBeans:      make(map[string]map[string]struct{}),
		dependenciesForBean: make(map[string]map[string]struct{}),
	}
}

// RegisterSingleton 注册一个现成的单例实例。nil 实例合法（哨兵往返）。
func (r *SingletonRegistry) RegisterSingleton(name string, instance any) error {
	canonical := r.CanonicalName(name)
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.singletons.Load(canonical); ok {
		return &ConfigurationError{Reason: fmt.Sprintf(
			"ioc: 无法注册单例 '%s'：已存在实例 %T", canonical, unwrapNil(existing))}
	}
	r.addSingletonLocked(canonical, instance)
	return nil
}

// addSingletonLocked 将实例晋升到完成缓存，并清除同名的工厂与早期引用。
// 调用方必须持有 mu。
func (r *SingletonRegistry) addSingletonLocked(name string, instance any) {
	r.singletons.Store(name, wrapNil(instance))
	delete(r.factories, name)
	delete(r.earlySingletons, name)
	if _, ok := r.registeredSet[name]; !ok {
		r.registeredSet[name] = struct{}{}
		r.registeredNames = append(r.registeredNames, name)
	}
}

// AddSingletonFactory 注册早期引用工厂。仅在尚无完成实例时生效。
// 这是循环引用的化解点：即将开始构造的 bean 借此把半成品的自己
// 暴露给它接下来要实例化的同伴。
func (r *SingletonRegistry) AddSingletonFactory(name string, factory ObjectFactory) {
	canonical := r.CanonicalName(name)
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.singletons.Load(canonical); ok {
		return
	}
	r.factories[canonical] = factory
	delete(r.earlySingletons, canonical)
	if _, ok := r.registeredSet[canonical]; !ok {
		r.registeredSet[canonical] = struct{}{}
		r.registeredNames = append(r.registeredNames, canonical)
	}
}

// GetSingleton 返回已缓存的完成实例；若该名称正在创建中，
// 允许走早期引用路径。未命中返回 nil。
func (r *SingletonRegistry) GetSingleton(name string) any {
	return unwrapNil(r.getSingleton(name, true))
}

// getSingleton 双重检查的早期引用查找序列。
// 正是它允许互相循环引用的两个对象在构造期间各自拿到
// 对方的半成品引用，而不是死锁或无限递归。
func (r *SingletonRegistry) getSingleton(name string, allowEarlyReference bool) any {
	canonical := r.CanonicalName(name)
	if v, ok := r.singletons.Load(canonical); ok {
		return v
	}
	if !r.IsSingletonCurrentlyInCreation(canonical) {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if v, ok := r.singletons.Load(canonical); ok {
		return v
	}
	if v, ok := r.earlySingletons[canonical]; ok {
		return v
	}
	if !allowEarlyReference {
		return nil
	}
	factory, ok := r.factories[canonical]
	if !ok {
		return nil
	}
	v, err := factory()
	if err != nil {
		// 早期引用生产失败：记为被抑制错误，留给主创建失败聚合。
		r.recordSuppressedLocked(canonical, err)
		return nil
	}
	r.earlySingletons[canonical] = wrapNil(v)
	delete(r.factories, canonical)
	return r.earlySingletons[canonical]
}

// GetOrCreateSingleton 创建入口：若完成实例不存在，
// 以给定工厂创建，并保证同名工厂全局至多执行一次。
//
// 同一调用链对同名 bean 的重入（构造级循环依赖）立刻以
// BeanCurrentlyInCreationError 失败；其他协程的并发请求
// 等待首个创建完成后取得同一实例。
func (r *SingletonRegistry) GetOrCreateSingleton(name string, factory ObjectFactory) (any, error) {
	canonical := r.CanonicalName(name)
	g := goroutineID()

	r.mu.Lock()
	for {
		if v, ok := r.singletons.Load(canonical); ok {
			r.mu.Unlock()
			return unwrapNil(v), nil
		}
		if r.inDestruction {
			r.mu.Unlock()
			return nil, &BeanCreationNotAllowedError{BeanName: canonical}
		}
		creation, creating := r.creations[canonical]
		if !creating {
			break
		}
		if creation.owner == g {
			r.mu.Unlock()
			return nil, &BeanCurrentlyInCreationError{BeanName: canonical}
		}
		done := creation.done
		r.mu.Unlock()
		<-done
		r.mu.Lock()
	}

	_, excluded := r.creationExcluded[canonical]
	var creation *singletonCreation
	if !excluded {
		creation = &singletonCreation{owner: g, done: make(chan struct{})}
		r.creations[canonical] = creation
	}
	r.mu.Unlock()

	instance, err := factory()

	r.mu.Lock()
	if creation != nil {
		if r.creations[canonical] != creation {
			r.mu.Unlock()
			close(creation.done)
			return nil, &ConfigurationError{Reason: fmt.Sprintf(
				"ioc: 内部状态不一致：bean '%s' 的创建记录意外消失", canonical)}
		}
		delete(r.creations, canonical)
		defer close(creation.done)
	}

	if err != nil {
		if errors.Is(err, ErrIllegalState) {
			// 宽容策略：创建期间其他协程已隐式注册了同名单例时，
			// 视作创建成功并采用该实例（不校验类型兼容性）。
			if v, ok := r.singletons.Load(canonical); ok {
				r.mu.Unlock()
				return unwrapNil(v), nil
			}
		}
		var suppressed []error
		if creation != nil {
			suppressed = creation.suppressed
		}
		r.mu.Unlock()
		var created *BeanCreationError
		if errors.As(err, &created) && created.BeanName == canonical {
			created.Suppressed = append(created.Suppressed, suppressed...)
			return nil, created
		}
		return nil, &BeanCreationError{BeanName: canonical, Cause: err, Suppressed: suppressed}
	}

	r.addSingletonLocked(canonical, instance)
	r.mu.Unlock()
	return instance, nil
}

// RecordSuppressedError 记录创建期间的次要错误（循环引用探测等），
// 聚合到对应 bean 的主创建失败上。没有进行中的创建时忽略。
func (r *SingletonRegistry) RecordSuppressedError(beanName string, err error) {
	if err == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.recordSuppressedLocked(r.CanonicalName(beanName), err)
}

func (r *SingletonRegistry) recordSuppressedLocked(canonical string, err error) {
	if creation, ok := r.creations[canonical]; ok {
		creation.suppressed = append(creation.suppressed, err)
	}
}

// IsSingletonCurrentlyInCreation 判断该名称是否正在创建中。
func (r *SingletonRegistry) IsSingletonCurrentlyInCreation(name string) bool {
	canonical := r.CanonicalName(name)
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.creations[canonical]
	return ok
}

// ExcludeFromCreationCheck 将名称从创建中检查里豁免（特殊引导场景）。
func (r *SingletonRegistry) ExcludeFromCreationCheck(name string, excluded bool) {
	canonical := r.CanonicalName(name)
	r.mu.Lock()
	defer r.mu.Unlock()
	if excluded {
		r.creationExcluded[canonical] = struct{}{}
	} else {
		delete(r.creationExcluded, canonical)
	}
}

// ContainsSingleton 判断完成实例缓存中是否存在该名称。
func (r *SingletonRegistry) ContainsSingleton(name string) bool {
	_, ok := r.singletons.Load(r.CanonicalName(name))
	return ok
}

// SingletonNames 返回按首次注册顺序排列的单例名称。
func (r *SingletonRegistry) SingletonNames() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	names := make([]string, len(r.registeredNames))
	copy(names, r.registeredNames)
	return names
}

// SingletonCount 返回注册的单例数量。
func (r *SingletonRegistry) SingletonCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.registeredNames)
}

// RegisterDisposable 登记销毁回调句柄，保持首次登记顺序用于全局 LIFO 销毁。
func (r *SingletonRegistry) RegisterDisposable(name string, disposable Disposable) {
	canonical := r.CanonicalName(name)
	r.disposableMu.Lock()
	defer r.disposableMu.Unlock()
	if _, ok := r.disposables[canonical]; !ok {
		r.disposableOrder = append(r.disposableOrder, canonical)
	}
	r.disposables[canonical] = disposable
}

// RegisterContainedBean 登记内嵌关系：containedName 内嵌于 containingName。
// 内嵌蕴含销毁顺序（外层先于内层销毁），故同时登记依赖关系。
func (r *SingletonRegistry) RegisterContainedBean(containedName, containingName string) {
	r.containedMu.Lock()
	set, ok := r.containedBeans[containingName]
	if !ok {
		set = make(map[string]struct{})
		r.containedBeans[containingName] = set
	}
	if _, exists := set[containedName]; exists {
		r.containedMu.Unlock()
		return
	}
	set[containedName] = struct{}{}
	r.containedMu.Unlock()

	r.RegisterDependentBean(containedName, containingName)
}

// RegisterDependentBean 登记依赖边：dependentName 依赖 beanName，
// 销毁 beanName 时须先销毁 dependentName。
func (r *SingletonRegistry) RegisterDependentBean(beanName, dependentName string) {
	canonical := r.CanonicalName(beanName)

	r.dependentMu.Lock()
	set, ok := r.dependentBeans[canonical]
	if !ok {
		set = make(map[string]struct{})
		r.dependentBeans[canonical] = set
	}
	if _, exists := set[dependentName]; exists {
		r.dependentMu.Unlock()
		return
	}
	set[dependentName] = struct{}{}
	r.dependentMu.Unlock()

	r.dependenciesMu.Lock()
	deps, ok := r.dependenciesForBean[dependentName]
	if !ok {
		deps = make(map[string]struct{})
		r.dependenciesForBean[dependentName] = deps
	}
	deps[canonical] = struct{}{}
	r.dependenciesMu.Unlock()
}

// IsDependent 判断 dependentName 是否（传递地）依赖 beanName。
func (r *SingletonRegistry) IsDependent(beanName, dependentName string) bool {
	r.dependentMu.Lock()
	defer r.dependentMu.Unlock()
	return r.isDependentLocked(r.CanonicalName(beanName), dependentName, nil)
}

func (r *SingletonRegistry) isDependentLocked(canonical, dependentName string, seen map[string]struct{}) bool {
	if _, ok := seen[canonical]; ok {
		return false
	}
	set, ok := r.dependentBeans[canonical]
	if !ok {
		return false
	}
	if _, ok := set[dependentName]; ok {
		return true
	}
	if seen == nil {
		seen = make(map[string]struct{})
	}
	seen[canonical] = struct{}{}
	for transitive := range set {
		if r.isDependentLocked(transitive, dependentName, seen) {
			return true
		}
	}
	return false
}

// HasDependentBean 判断是否有 bean 依赖该名称。
func (r *SingletonRegistry) HasDependentBean(name string) bool {
	r.dependentMu.Lock()
	defer r.dependentMu.Unlock()
	_, ok := r.dependentBeans[r.CanonicalName(name)]
	return ok
}

// DependentBeans 返回依赖该名称的所有 bean。
func (r *SingletonRegistry) DependentBeans(name string) []string {
	r.dependentMu.Lock()
	defer r.dependentMu.Unlock()
	return setToSlice(r.dependentBeans[r.CanonicalName(name)])
}

// DependenciesForBean 返回该名称依赖的所有 bean。
func (r *SingletonRegistry) DependenciesForBean(name string) []string {
	r.dependenciesMu.Lock()
	defer r.dependenciesMu.Unlock()
	return setToSlice(r.dependenciesForBean[r.CanonicalName(name)])
}

// RemoveSingleton 移除该名称的全部缓存条目。
func (r *SingletonRegistry) RemoveSingleton(name string) {
	canonical := r.CanonicalName(name)
	r.mu.Lock()
	defer r.mu.Unlock()
	r.removeSingletonLocked(canonical)
}

func (r *SingletonRegistry) removeSingletonLocked(canonical string) {
	r.singletons.Delete(canonical)
	delete(r.factories, canonical)
	delete(r.earlySingletons, canonical)
	if _, ok := r.registeredSet[canonical]; ok {
		delete(r.registeredSet, canonical)
		for i, n := range r.registeredNames {
			if n == canonical {
				r.registeredNames = append(r.registeredNames[:i], r.registeredNames[i+1:]...)
				break
			}
		}
	}
}

// DestroySingleton 销毁指定单例：清除缓存、弹出销毁句柄并执行销毁算法。
func (r *SingletonRegistry) DestroySingleton(name string) {
	canonical := r.CanonicalName(name)
	r.RemoveSingleton(canonical)

	r.disposableMu.Lock()
	disposable := r.disposables[canonical]
	delete(r.disposables, canonical)
	for i, n := range r.disposableOrder {
		if n == canonical {
			r.disposableOrder = append(r.disposableOrder[:i], r.disposableOrder[i+1:]...)
			break
		}
	}
	r.disposableMu.Unlock()

	r.destroyBean(canonical, disposable)
}

// destroyBean 递归销毁算法。消费者先于其依赖的 bean 死亡；
// 单个 bean 的销毁失败被记录日志后吞掉，绝不中断其余拆除。
func (r *SingletonRegistry) destroyBean(name string, disposable Disposable) {
	// 1. 原子弹出依赖它的 bean，先行销毁。
	r.dependentMu.Lock()
	dependents := setToSlice(r.dependentBeans[name])
	delete(r.dependentBeans, name)
	r.dependentMu.Unlock()

	for _, dependent := range dependents {
		r.DestroySingleton(dependent)
	}

	// 2. 执行销毁回调。
	if disposable != nil {
		if err := disposable.Destroy(); err != nil {
			r.logger.Error("销毁 bean 失败",
				logging.Field{Key: "bean", Value: name},
				logging.Field{Key: "error", Value: err.Error()})
		}
	}

	// 3. 弹出并销毁内嵌 bean。
	r.containedMu.Lock()
	contained := setToSlice(r.containedBeans[name])
	delete(r.containedBeans, name)
	r.containedMu.Unlock()

	for _, inner := range contained {
		r.DestroySingleton(inner)
	}

	// 4. 从其他条目的依赖集中摘除该名称，清理空条目，
	//    保证乱序销毁后图仍然一致。
	r.dependentMu.Lock()
	for owner, set := range r.dependentBeans {
		delete(set, name)
		if len(set) == 0 {
			delete(r.dependentBeans, owner)
		}
	}
	r.dependentMu.Unlock()

	// 5. 移除它自己的依赖记录。
	r.dependenciesMu.Lock()
	delete(r.dependenciesForBean, name)
	r.dependenciesMu.Unlock()
}

// DestroySingletons 全局拆除：置销毁标志（此后拒绝创建新单例），
// 按登记顺序的逆序（LIFO）销毁所有可销毁 bean，
// 整体清空依赖图与全部单例缓存，最后复位标志。
func (r *SingletonRegistry) DestroySingletons() {
	r.mu.Lock()
	r.inDestruction = true
	r.mu.Unlock()

	r.disposableMu.Lock()
	names := make([]string, len(r.disposableOrder))
	copy(names, r.disposableOrder)
	r.disposableMu.Unlock()

	for i := len(names) - 1; i >= 0; i-- {
		r.DestroySingleton(names[i])
	}

	r.containedMu.Lock()
	r.containedBeans = make(map[string]map[string]struct{})
	r.containedMu.Unlock()
	r.dependentMu.Lock()
	r.dependentBeans = make(map[string]map[string]struct{})
	r.dependentMu.Unlock()
	r.dependenciesMu.Lock()
	r.dependenciesForBean = make(map[string]map[string]struct{})
	r.dependenciesMu.Unlock()

	r.clearSingletonCache()
}

// clearSingletonCache 清空全部单例缓存并复位销毁标志。
func (r *SingletonRegistry) clearSingletonCache() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.singletons.Range(func(key, _ any) bool {
		r.singletons.Delete(key)
		return true
	})
	r.factories = make(map[string]ObjectFactory)
	r.earlySingletons = make(map[string]any)
	r.registeredNames = nil
	r.registeredSet = make(map[string]struct{})
	r.inDestruction = false
}

func setToSlice(set map[string]struct{}) []string {
	if len(set) == 0 {
		return nil
	}
	result := make([]string, 0, len(set))
	for name := range set {
		result = append(result, name)
	}
	return result
}

// goroutineID 解析当前协程 ID，用于创建记录的重入判定。
// 仅作所有权标识，不用于任何调度决策。
func goroutineID() uint64 {
	buf := make([]byte, 64)
	buf = buf[:runtime.Stack(buf, false)]
	// 栈首行形如 "goroutine 123 [running]:"
	buf = bytes.TrimPrefix(buf, []byte("goroutine "))
	if i := bytes.IndexByte(buf, ' '); i > 0 {
		if id, err := strconv.ParseUint(string(buf[:i]), 10, 64); err == nil {
			return id
		}
	}
	return 0
}
