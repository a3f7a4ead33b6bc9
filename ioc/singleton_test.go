package ioc

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
)

// recordingDisposable 记录销毁顺序的销毁句柄
type recordingDisposable struct {
	name    string
	order   *[]string
	mu      *sync.Mutex
	destroy func() error
}

func (d *recordingDisposable) Destroy() error {
	d.mu.Lock()
	*d.order = append(*d.order, d.name)
	d.mu.Unlock()
	if d.destroy != nil {
		return d.destroy()
	}
	return nil
}

func newRecorder() (func(name string) *recordingDisposable, *[]string) {
	var mu sync.Mutex
	order := &[]string{}
	return func(name string) *recordingDisposable {
		return &recordingDisposable{name: name, order: order, mu: &mu}
	}, order
}

// 测试单例注册与检索
func TestSingletonRegisterAndGet(t *testing.T) {
	r := NewSingletonRegistry(nil)

	type service struct{ Name string }
	svc := &service{Name: "a"}
	if err := r.RegisterSingleton("svc", svc); err != nil {
		t.Fatal(err)
	}

	if !r.ContainsSingleton("svc") {
		t.Error("ContainsSingleton should be true")
	}
	if got := r.GetSingleton("svc"); got != svc {
		t.Errorf("Expected same instance, got %v", got)
	}
	if r.SingletonCount() != 1 {
		t.Errorf("Expected count 1, got %d", r.SingletonCount())
	}

	// 重复注册是配置错误
	if err := r.RegisterSingleton("svc", &service{}); err == nil {
		t.Error("Expected duplicate registration error")
	}
}

// 测试 nil 单例的哨兵往返：注册 nil 后名称存在，取回仍是 nil
func TestSingletonNilSentinel(t *testing.T) {
	r := NewSingletonRegistry(nil)

	if err := r.RegisterSingleton("empty", nil); err != nil {
		t.Fatal(err)
	}
	if !r.ContainsSingleton("empty") {
		t.Error("nil singleton should be registered")
	}
	if got := r.GetSingleton("empty"); got != nil {
		t.Errorf("Expected nil, got %v", got)
	}
	// 注册后不允许再次注册
	if err := r.RegisterSingleton("empty", "x"); err == nil {
		t.Error("Expected duplicate registration error for nil singleton")
	}
}

// 测试按别名检索单例
func TestSingletonGetByAlias(t *testing.T) {
	r := NewSingletonRegistry(nil)

	if err := r.RegisterSingleton("dataSource", "instance"); err != nil {
		t.Fatal(err)
	}
	if err := r.RegisterAlias("dataSource", "ds"); err != nil {
		t.Fatal(err)
	}
	if got := r.GetSingleton("ds"); got != "instance" {
		t.Errorf("Expected 'instance' via alias, got %v", got)
	}
	if !r.ContainsSingleton("ds") {
		t.Error("ContainsSingleton should resolve alias")
	}
}

// 测试 GetOrCreateSingleton：工厂全局至多执行一次
func TestGetOrCreateSingletonAtMostOnce(t *testing.T) {
	r := NewSingletonRegistry(nil)

	var calls atomic.Int32
	factory := func() (any, error) {
		calls.Add(1)
		return "created", nil
	}

	const workers = 16
	var wg sync.WaitGroup
	results := make([]any, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			v, err := r.GetOrCreateSingleton("shared", factory)
			if err != nil {
				t.Error(err)
				return
			}
			results[idx] = v
		}(i)
	}
	wg.Wait()

	if calls.Load() != 1 {
		t.Errorf("Factory should run exactly once, ran %d times", calls.Load())
	}
	for i, v := range results {
		if v != "created" {
			t.Errorf("Worker %d got %v", i, v)
		}
	}
}

// 测试同一调用链的重入：构造级循环依赖立刻失败
func TestGetOrCreateSingletonReentrancy(t *testing.T) {
	r := NewSingletonRegistry(nil)

	var inner error
	_, err := r.GetOrCreateSingleton("cyclic", func() (any, error) {
		_, inner = r.GetOrCreateSingleton("cyclic", func() (any, error) {
			return "never", nil
		})
		return nil, inner
	})

	var inCreation *BeanCurrentlyInCreationError
	if !errors.As(inner, &inCreation) {
		t.Fatalf("Expected BeanCurrentlyInCreationError, got %v", inner)
	}
	if inCreation.BeanName != "cyclic" {
		t.Errorf("Expected bean 'cyclic', got '%s'", inCreation.BeanName)
	}

	var created *BeanCreationError
	if !errors.As(err, &created) {
		t.Fatalf("Expected BeanCreationError, got %v", err)
	}
	// 失败后创建记录被清理，可以重试
	if r.IsSingletonCurrentlyInCreation("cyclic") {
		t.Error("Creation record should be cleaned up after failure")
	}
	if v, err := r.GetOrCreateSingleton("cyclic", func() (any, error) { return "retry", nil }); err != nil || v != "retry" {
		t.Errorf("Retry should succeed, got %v / %v", v, err)
	}
}

// 测试创建失败时被抑制错误的聚合
func TestGetOrCreateSingletonSuppressedErrors(t *testing.T) {
	r := NewSingletonRegistry(nil)

	secondary := errors.New("secondary failure")
	primary := errors.New("primary failure")
	_, err := r.GetOrCreateSingleton("failing", func() (any, error) {
		r.RecordSuppressedError("failing", secondary)
		return nil, primary
	})

	var created *BeanCreationError
	if !errors.As(err, &created) {
		t.Fatalf("Expected BeanCreationError, got %v", err)
	}
	if !errors.Is(created.Cause, primary) {
		t.Errorf("Expected cause %v, got %v", primary, created.Cause)
	}
	if len(created.Suppressed) != 1 || !errors.Is(created.Suppressed[0], secondary) {
		t.Errorf("Expected suppressed [%v], got %v", secondary, created.Suppressed)
	}
}

// 测试宽容策略：工厂报 IllegalState 但期间单例已被并发注册时视为成功
func TestGetOrCreateSingletonIllegalStateTolerance(t *testing.T) {
	r := NewSingletonRegistry(nil)

	v, err := r.GetOrCreateSingleton("tolerant", func() (any, error) {
		// 创建期间有人隐式注册了同名单例
		if err := r.RegisterSingleton("tolerant", "concurrent"); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("registry changed: %w", ErrIllegalState)
	})
	if err != nil {
		t.Fatalf("IllegalState with concurrent registration should be tolerated: %v", err)
	}
	// 不校验类型兼容性，直接采用并发产生的实例
	if v != "concurrent" {
		t.Errorf("Expected concurrent instance, got %v", v)
	}
}

// 测试 IllegalState 但没有并发注册时照常失败
func TestGetOrCreateSingletonIllegalStateWithoutInstance(t *testing.T) {
	r := NewSingletonRegistry(nil)

	_, err := r.GetOrCreateSingleton("strict", func() (any, error) {
		return nil, fmt.Errorf("registry changed: %w", ErrIllegalState)
	})
	var created *BeanCreationError
	if !errors.As(err, &created) {
		t.Fatalf("Expected BeanCreationError, got %v", err)
	}
}

// 测试早期引用：创建中的单例可经工厂暴露半成品
func TestEarlyReference(t *testing.T) {
	r := NewSingletonRegistry(nil)

	type holder struct{ Value string }
	early := &holder{Value: "early"}

	v, err := r.GetOrCreateSingleton("exposed", func() (any, error) {
		r.AddSingletonFactory("exposed", func() (any, error) { return early, nil })

		// 第一次经工厂产出早期引用
		got := r.GetSingleton("exposed")
		if got != early {
			t.Errorf("Expected early reference, got %v", got)
		}
		// 第二次命中早期引用缓存（工厂只执行一次）
		if again := r.GetSingleton("exposed"); again != early {
			t.Errorf("Expected cached early reference, got %v", again)
		}
		early.Value = "finished"
		return early, nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if v != early {
		t.Errorf("Expected same instance, got %v", v)
	}
	if got := r.GetSingleton("exposed"); got != early {
		t.Errorf("Expected finished instance, got %v", got)
	}
}

// 测试未在创建中的名称不走早期引用路径
func TestEarlyReferenceRequiresInCreation(t *testing.T) {
	r := NewSingletonRegistry(nil)

	r.AddSingletonFactory("idle", func() (any, error) { return "x", nil })
	if got := r.GetSingleton("idle"); got != nil {
		t.Errorf("Factory should not run outside creation, got %v", got)
	}
}

// 测试依赖边的登记与传递查询
func TestDependentBeans(t *testing.T) {
	r := NewSingletonRegistry(nil)

	r.RegisterDependentBean("db", "repo")
	r.RegisterDependentBean("repo", "service")

	if !r.IsDependent("db", "repo") {
		t.Error("repo should depend on db")
	}
	// 传递依赖
	if !r.IsDependent("db", "service") {
		t.Error("service should transitively depend on db")
	}
	if r.IsDependent("repo", "db") {
		t.Error("db should not depend on repo")
	}
	if !r.HasDependentBean("db") {
		t.Error("db should have dependents")
	}

	deps := r.DependenciesForBean("service")
	if len(deps) != 1 || deps[0] != "repo" {
		t.Errorf("Expected dependencies [repo], got %v", deps)
	}
}

// 测试销毁单个 bean 时依赖它的 bean 先被销毁
func TestDestroySingletonDependentsFirst(t *testing.T) {
	r := NewSingletonRegistry(nil)
	record, order := newRecorder()

	for _, name := range []string{"db", "repo", "service"} {
		if err := r.RegisterSingleton(name, name); err != nil {
			t.Fatal(err)
		}
		r.RegisterDisposable(name, record(name))
	}
	r.RegisterDependentBean("db", "repo")
	r.RegisterDependentBean("repo", "service")

	r.DestroySingleton("db")

	want := []string{"service", "repo", "db"}
	if len(*order) != len(want) {
		t.Fatalf("Expected order %v, got %v", want, *order)
	}
	for i, name := range want {
		if (*order)[i] != name {
			t.Fatalf("Expected order %v, got %v", want, *order)
		}
	}
	for _, name := range want {
		if r.ContainsSingleton(name) {
			t.Errorf("'%s' should have been removed", name)
		}
	}
}

// 测试内嵌 bean 在外层销毁后被销毁
func TestDestroySingletonContainedBeans(t *testing.T) {
	r := NewSingletonRegistry(nil)
	record, order := newRecorder()

	for _, name := range []string{"outer", "inner"} {
		if err := r.RegisterSingleton(name, name); err != nil {
			t.Fatal(err)
		}
		r.RegisterDisposable(name, record(name))
	}
	r.RegisterContainedBean("inner", "outer")

	r.DestroySingleton("outer")

	// 外层的销毁回调先执行，随后销毁内嵌 bean
	if len(*order) != 2 {
		t.Fatalf("Expected both destroyed, got %v", *order)
	}
	if (*order)[0] != "outer" || (*order)[1] != "inner" {
		t.Errorf("Expected [outer inner], got %v", *order)
	}
}

// 测试全局销毁：按登记顺序逆序（LIFO）
func TestDestroySingletonsLIFO(t *testing.T) {
	r := NewSingletonRegistry(nil)
	record, order := newRecorder()

	for _, name := range []string{"first", "second", "third"} {
		if err := r.RegisterSingleton(name, name); err != nil {
			t.Fatal(err)
		}
		r.RegisterDisposable(name, record(name))
	}

	r.DestroySingletons()

	want := []string{"third", "second", "first"}
	for i, name := range want {
		if (*order)[i] != name {
			t.Fatalf("Expected order %v, got %v", want, *order)
		}
	}
	if r.SingletonCount() != 0 {
		t.Errorf("Expected empty registry, got %d singletons", r.SingletonCount())
	}
	// 销毁完成后标志复位，可以再次创建
	if _, err := r.GetOrCreateSingleton("fresh", func() (any, error) { return "ok", nil }); err != nil {
		t.Errorf("Registry should be reusable after teardown: %v", err)
	}
}

// 测试销毁期间禁止创建新单例
func TestCreationNotAllowedDuringDestruction(t *testing.T) {
	r := NewSingletonRegistry(nil)

	var creationErr error
	d := &recordingDisposable{name: "probe", order: &[]string{}, mu: &sync.Mutex{}}
	d.destroy = func() error {
		_, creationErr = r.GetOrCreateSingleton("late", func() (any, error) { return "x", nil })
		return nil
	}
	if err := r.RegisterSingleton("probe", "probe"); err != nil {
		t.Fatal(err)
	}
	r.RegisterDisposable("probe", d)

	r.DestroySingletons()

	var notAllowed *BeanCreationNotAllowedError
	if !errors.As(creationErr, &notAllowed) {
		t.Fatalf("Expected BeanCreationNotAllowedError, got %v", creationErr)
	}
}

// 测试单个销毁回调失败不中断其余拆除
func TestDestroyErrorDoesNotAbortTeardown(t *testing.T) {
	r := NewSingletonRegistry(nil)
	record, order := newRecorder()

	failing := record("failing")
	failing.destroy = func() error { return errors.New("destroy failed") }

	if err := r.RegisterSingleton("ok", "ok"); err != nil {
		t.Fatal(err)
	}
	if err := r.RegisterSingleton("failing", "failing"); err != nil {
		t.Fatal(err)
	}
	r.RegisterDisposable("ok", record("ok"))
	r.RegisterDisposable("failing", failing)

	r.DestroySingletons()

	if len(*order) != 2 {
		t.Errorf("Both disposables should run, got %v", *order)
	}
}

// 测试 RemoveSingleton 清除全部缓存条目
func TestRemoveSingleton(t *testing.T) {
	r := NewSingletonRegistry(nil)

	if err := r.RegisterSingleton("gone", "v"); err != nil {
		t.Fatal(err)
	}
	r.RemoveSingleton("gone")
	if r.ContainsSingleton("gone") {
		t.Error("Singleton should be removed")
	}
	if r.SingletonCount() != 0 {
		t.Errorf("Expected count 0, got %d", r.SingletonCount())
	}
	// 移除后可以重新注册
	if err := r.RegisterSingleton("gone", "v2"); err != nil {
		t.Errorf("Re-registration should succeed: %v", err)
	}
}

// 测试 ExcludeFromCreationCheck：豁免名称不记录创建状态
func TestExcludeFromCreationCheck(t *testing.T) {
	r := NewSingletonRegistry(nil)

	r.ExcludeFromCreationCheck("bootstrap", true)
	v, err := r.GetOrCreateSingleton("bootstrap", func() (any, error) {
		if r.IsSingletonCurrentlyInCreation("bootstrap") {
			t.Error("Excluded name should not be tracked as in-creation")
		}
		return "ok", nil
	})
	if err != nil || v != "ok" {
		t.Fatalf("Expected ok, got %v / %v", v, err)
	}
}

// 测试注册顺序的维护
func TestSingletonNamesOrder(t *testing.T) {
	r := NewSingletonRegistry(nil)

	names := []string{"c", "a", "b"}
	for _, n := range names {
		if err := r.RegisterSingleton(n, n); err != nil {
			t.Fatal(err)
		}
	}
	got := r.SingletonNames()
	for i, n := range names {
		if got[i] != n {
			t.Fatalf("Expected order %v, got %v", names, got)
		}
	}
}
