package ioc

import (
	"errors"
	"reflect"
	"testing"
	"time"
)

type resLogger interface {
	Log(msg string)
}

type resConsoleLogger struct{ Prefix string }

func (l *resConsoleLogger) Log(msg string) {}

type resFileLogger struct{ Path string }

func (l *resFileLogger) Log(msg string) {}

var resLoggerType = reflect.TypeOf((*resLogger)(nil)).Elem()

// 测试单候选的按类型解析
func TestResolveSingleCandidate(t *testing.T) {
	f := NewBeanFactory()
	f.RegisterBean("console", nil, WithValue(&resConsoleLogger{Prefix: "C"}))

	v, name, err := f.ResolveDependency(DependencyDescriptor{Type: resLoggerType, Required: true}, "")
	if err != nil {
		t.Fatal(err)
	}
	if name != "console" {
		t.Errorf("Expected resolved name 'console', got '%s'", name)
	}
	logger, ok := v.(*resConsoleLogger)
	if !ok || logger.Prefix != "C" {
		t.Errorf("Expected console logger, got %v", v)
	}
}

// 测试必选依赖无候选时报 NoSuchBeanError
func TestResolveRequiredMissing(t *testing.T) {
	f := NewBeanFactory()

	_, _, err := f.ResolveDependency(DependencyDescriptor{Type: resLoggerType, Required: true}, "")
	var noSuch *NoSuchBeanError
	if !errors.As(err, &noSuch) {
		t.Fatalf("Expected NoSuchBeanError, got %v", err)
	}
}

// 测试可选依赖无候选时静默返回 nil
func TestResolveOptionalMissing(t *testing.T) {
	f := NewBeanFactory()

	v, name, err := f.ResolveDependency(DependencyDescriptor{Type: resLoggerType, Required: false}, "")
	if err != nil {
		t.Fatal(err)
	}
	if v != nil || name != "" {
		t.Errorf("Expected nil result, got %v / '%s'", v, name)
	}
}

// 测试限定符匹配：候选定义声明的限定符属性
func TestResolveQualifierMatch(t *testing.T) {
	f := NewBeanFactory()
	f.RegisterBean("console", nil, WithValue(&resConsoleLogger{}), WithQualifier("fast"))
	f.RegisterBean("file", nil, WithValue(&resFileLogger{}), WithQualifier("durable"))

	desc := DependencyDescriptor{
		Type:       resLoggerType,
		Required:   true,
		Qualifiers: map[string]string{"value": "durable"},
	}
	v, name, err := f.ResolveDependency(desc, "")
	if err != nil {
		t.Fatal(err)
	}
	if name != "file" {
		t.Errorf("Expected 'file', got '%s'", name)
	}
	if _, ok := v.(*resFileLogger); !ok {
		t.Errorf("Expected file logger, got %T", v)
	}
}

// 测试限定符的 bean 名称回退：候选未声明限定符时按名称匹配
func TestResolveQualifierNameFallback(t *testing.T) {
	f := NewBeanFactory()
	f.RegisterBean("console", nil, WithValue(&resConsoleLogger{}))
	f.RegisterBean("file", nil, WithValue(&resFileLogger{}))

	desc := DependencyDescriptor{
		Type:       resLoggerType,
		Required:   true,
		Qualifiers: map[string]string{"value": "console"},
	}
	_, name, err := f.ResolveDependency(desc, "")
	if err != nil {
		t.Fatal(err)
	}
	if name != "console" {
		t.Errorf("Expected 'console', got '%s'", name)
	}
}

// 测试限定符的别名回退
func TestResolveQualifierAliasFallback(t *testing.T) {
	f := NewBeanFactory()
	f.RegisterBean("console", nil, WithValue(&resConsoleLogger{}))
	f.RegisterBean("file", nil, WithValue(&resFileLogger{}))
	if err := f.RegisterAlias("console", "mainLogger"); err != nil {
		t.Fatal(err)
	}

	desc := DependencyDescriptor{
		Type:       resLoggerType,
		Required:   true,
		Qualifiers: map[string]string{"value": "mainLogger"},
	}
	_, name, err := f.ResolveDependency(desc, "")
	if err != nil {
		t.Fatal(err)
	}
	if name != "console" {
		t.Errorf("Expected 'console' via alias, got '%s'", name)
	}
}

// 测试限定符不匹配且为必选时报错
func TestResolveQualifierNoMatch(t *testing.T) {
	f := NewBeanFactory()
	f.RegisterBean("console", nil, WithValue(&resConsoleLogger{}), WithQualifier("fast"))

	desc := DependencyDescriptor{
		Type:       resLoggerType,
		Required:   true,
		Qualifiers: map[string]string{"value": "durable"},
	}
	_, _, err := f.ResolveDependency(desc, "")
	var noSuch *NoSuchBeanError
	if !errors.As(err, &noSuch) {
		t.Fatalf("Expected NoSuchBeanError, got %v", err)
	}
}

// 测试 primary 决胜
func TestResolvePrimaryWins(t *testing.T) {
	f := NewBeanFactory()
	f.RegisterBean("console", nil, WithValue(&resConsoleLogger{}))
	f.RegisterBean("file", nil, WithValue(&resFileLogger{}), WithPrimary())

	_, name, err := f.ResolveDependency(DependencyDescriptor{Type: resLoggerType, Required: true}, "")
	if err != nil {
		t.Fatal(err)
	}
	if name != "file" {
		t.Errorf("Expected primary 'file', got '%s'", name)
	}
}

// 测试多个 primary 无法消歧
func TestResolveMultiplePrimaries(t *testing.T) {
	f := NewBeanFactory()
	f.RegisterBean("console", nil, WithValue(&resConsoleLogger{}), WithPrimary())
	f.RegisterBean("file", nil, WithValue(&resFileLogger{}), WithPrimary())

	_, _, err := f.ResolveDependency(DependencyDescriptor{Type: resLoggerType, Required: true}, "")
	var nonUnique *NonUniqueBeanError
	if !errors.As(err, &nonUnique) {
		t.Fatalf("Expected NonUniqueBeanError, got %v", err)
	}
}

// 测试排序值决胜：最小者胜出
func TestResolveOrderWins(t *testing.T) {
	f := NewBeanFactory()
	f.RegisterBean("console", nil, WithValue(&resConsoleLogger{}), WithOrder(10))
	f.RegisterBean("file", nil, WithValue(&resFileLogger{}), WithOrder(1))

	_, name, err := f.ResolveDependency(DependencyDescriptor{Type: resLoggerType, Required: true}, "")
	if err != nil {
		t.Fatal(err)
	}
	if name != "file" {
		t.Errorf("Expected lowest order 'file', got '%s'", name)
	}
}

// 测试排序值并列时歧义
func TestResolveOrderTieAmbiguous(t *testing.T) {
	f := NewBeanFactory()
	f.RegisterBean("console", nil, WithValue(&resConsoleLogger{}), WithOrder(5))
	f.RegisterBean("file", nil, WithValue(&resFileLogger{}), WithOrder(5))

	_, _, err := f.ResolveDependency(DependencyDescriptor{Type: resLoggerType, Required: true}, "")
	var nonUnique *NonUniqueBeanError
	if !errors.As(err, &nonUnique) {
		t.Fatalf("Expected NonUniqueBeanError, got %v", err)
	}
}

// 测试注入点成员名回退
func TestResolveMemberNameFallback(t *testing.T) {
	f := NewBeanFactory()
	f.RegisterBean("console", nil, WithValue(&resConsoleLogger{}))
	f.RegisterBean("file", nil, WithValue(&resFileLogger{}))

	desc := DependencyDescriptor{Type: resLoggerType, Required: true, MemberName: "file"}
	_, name, err := f.ResolveDependency(desc, "")
	if err != nil {
		t.Fatal(err)
	}
	if name != "file" {
		t.Errorf("Expected member-name match 'file', got '%s'", name)
	}
}

// 测试消歧失败且为可选时静默返回 nil
func TestResolveAmbiguousOptional(t *testing.T) {
	f := NewBeanFactory()
	f.RegisterBean("console", nil, WithValue(&resConsoleLogger{}))
	f.RegisterBean("file", nil, WithValue(&resFileLogger{}))

	v, _, err := f.ResolveDependency(DependencyDescriptor{Type: resLoggerType, Required: false}, "")
	if err != nil {
		t.Fatal(err)
	}
	if v != nil {
		t.Errorf("Expected nil for unresolvable optional, got %v", v)
	}
}

// 测试自引用排除：候选集合不含请求者自身
func TestResolveSelfReferenceExcluded(t *testing.T) {
	f := NewBeanFactory()
	f.RegisterBean("console", nil, WithValue(&resConsoleLogger{}))

	v, _, err := f.ResolveDependency(
		DependencyDescriptor{Type: resLoggerType, Required: false}, "console")
	if err != nil {
		t.Fatal(err)
	}
	if v != nil {
		t.Errorf("Self reference should be excluded, got %v", v)
	}
}

// 测试 autowire-candidate 开关
func TestResolveNonCandidateExcluded(t *testing.T) {
	f := NewBeanFactory()
	f.RegisterBean("console", nil, WithValue(&resConsoleLogger{}), WithoutAutowireCandidate())
	f.RegisterBean("file", nil, WithValue(&resFileLogger{}))

	_, name, err := f.ResolveDependency(DependencyDescriptor{Type: resLoggerType, Required: true}, "")
	if err != nil {
		t.Fatal(err)
	}
	if name != "file" {
		t.Errorf("Expected 'file' (console excluded), got '%s'", name)
	}
}

// 测试默认值强转
func TestResolveDefaultValue(t *testing.T) {
	f := NewBeanFactory()

	desc := DependencyDescriptor{
		Type:         reflect.TypeOf(time.Duration(0)),
		Required:     true,
		DefaultValue: "5s",
	}
	v, _, err := f.ResolveDependency(desc, "")
	if err != nil {
		t.Fatal(err)
	}
	if v != 5*time.Second {
		t.Errorf("Expected 5s, got %v", v)
	}
}

// 测试切片注入：按排序值升序排列
func TestResolveSliceOrdered(t *testing.T) {
	f := NewBeanFactory()
	f.RegisterBean("console", nil, WithValue(&resConsoleLogger{}), WithOrder(10))
	f.RegisterBean("file", nil, WithValue(&resFileLogger{}), WithOrder(1))

	desc := DependencyDescriptor{Type: reflect.TypeOf([]resLogger{}), Required: true}
	v, _, err := f.ResolveDependency(desc, "")
	if err != nil {
		t.Fatal(err)
	}
	loggers, ok := v.([]resLogger)
	if !ok || len(loggers) != 2 {
		t.Fatalf("Expected 2 loggers, got %v", v)
	}
	if _, ok := loggers[0].(*resFileLogger); !ok {
		t.Errorf("Expected file logger first (order 1), got %T", loggers[0])
	}
	if _, ok := loggers[1].(*resConsoleLogger); !ok {
		t.Errorf("Expected console logger second (order 10), got %T", loggers[1])
	}
}

// 测试映射注入：以 bean 名称为键
func TestResolveMapKeyedByName(t *testing.T) {
	f := NewBeanFactory()
	f.RegisterBean("console", nil, WithValue(&resConsoleLogger{}))
	f.RegisterBean("file", nil, WithValue(&resFileLogger{}))

	desc := DependencyDescriptor{Type: reflect.TypeOf(map[string]resLogger{}), Required: true}
	v, _, err := f.ResolveDependency(desc, "")
	if err != nil {
		t.Fatal(err)
	}
	loggers, ok := v.(map[string]resLogger)
	if !ok || len(loggers) != 2 {
		t.Fatalf("Expected 2 entries, got %v", v)
	}
	if _, ok := loggers["console"].(*resConsoleLogger); !ok {
		t.Errorf("Expected console entry, got %v", loggers)
	}
	if _, ok := loggers["file"].(*resFileLogger); !ok {
		t.Errorf("Expected file entry, got %v", loggers)
	}
}

// 测试按全名注入声明了其他限定符值的 bean：
// 基础设施按 "log:file" + 限定符 "file" 的约定注册时，
// inject:"log:file" 与 inject:"file" 都应命中同一个 bean
func TestResolveNameHintOnQualifiedBean(t *testing.T) {
	f := NewBeanFactory()
	f.RegisterBean("log:console", nil, WithValue(&resConsoleLogger{}), WithQualifier("console"))
	f.RegisterBean("log:file", nil, WithValue(&resFileLogger{}), WithQualifier("file"))

	desc := DependencyDescriptor{
		Type:       resLoggerType,
		Required:   true,
		Qualifiers: map[string]string{"value": "log:file"},
	}
	_, name, err := f.ResolveDependency(desc, "")
	if err != nil {
		t.Fatal(err)
	}
	if name != "log:file" {
		t.Errorf("Expected 'log:file' by bean name, got '%s'", name)
	}

	desc.Qualifiers = map[string]string{"value": "file"}
	_, name, err = f.ResolveDependency(desc, "")
	if err != nil {
		t.Fatal(err)
	}
	if name != "log:file" {
		t.Errorf("Expected 'log:file' by qualifier, got '%s'", name)
	}
}

// 测试切片注入跳过显式 nil 值的 bean
func TestResolveSliceSkipsNilBean(t *testing.T) {
	f := NewBeanFactory()
	f.RegisterBean("console", nil, WithValue(&resConsoleLogger{}))
	f.RegisterBean("absent", resLoggerType, WithValue(nil))

	desc := DependencyDescriptor{Type: reflect.TypeOf([]resLogger{}), Required: true}
	v, _, err := f.ResolveDependency(desc, "")
	if err != nil {
		t.Fatal(err)
	}
	loggers, ok := v.([]resLogger)
	if !ok || len(loggers) != 1 {
		t.Fatalf("Expected 1 logger, got %v", v)
	}
	if _, ok := loggers[0].(*resConsoleLogger); !ok {
		t.Errorf("Expected console logger, got %T", loggers[0])
	}
}

// 测试映射注入跳过显式 nil 值的 bean
func TestResolveMapSkipsNilBean(t *testing.T) {
	f := NewBeanFactory()
	f.RegisterBean("file", nil, WithValue(&resFileLogger{}))
	f.RegisterBean("absent", resLoggerType, WithValue(nil))

	desc := DependencyDescriptor{Type: reflect.TypeOf(map[string]resLogger{}), Required: true}
	v, _, err := f.ResolveDependency(desc, "")
	if err != nil {
		t.Fatal(err)
	}
	loggers, ok := v.(map[string]resLogger)
	if !ok || len(loggers) != 1 {
		t.Fatalf("Expected 1 entry, got %v", v)
	}
	if _, ok := loggers["file"].(*resFileLogger); !ok {
		t.Errorf("Expected file entry, got %v", loggers)
	}
}

// 测试多值注入为必选且无候选时报错
func TestResolveSliceRequiredEmpty(t *testing.T) {
	f := NewBeanFactory()

	desc := DependencyDescriptor{Type: reflect.TypeOf([]resLogger{}), Required: true}
	_, _, err := f.ResolveDependency(desc, "")
	var noSuch *NoSuchBeanError
	if !errors.As(err, &noSuch) {
		t.Fatalf("Expected NoSuchBeanError, got %v", err)
	}
}

// 测试解析时登记销毁顺序依赖边
func TestResolveRegistersDependentEdge(t *testing.T) {
	f := NewBeanFactory()
	f.RegisterBean("console", nil, WithValue(&resConsoleLogger{}))

	_, _, err := f.ResolveDependency(
		DependencyDescriptor{Type: resLoggerType, Required: true}, "service")
	if err != nil {
		t.Fatal(err)
	}
	if !f.IsDependent("console", "service") {
		t.Error("service should be registered as dependent on console")
	}
}

// 测试快捷方式解析与类型复校验
func TestResolveShortcut(t *testing.T) {
	f := NewBeanFactory()
	f.RegisterBean("console", nil, WithValue(&resConsoleLogger{Prefix: "S"}))

	v, ok, err := f.ResolveShortcut("console", resLoggerType)
	if err != nil || !ok {
		t.Fatalf("Expected shortcut hit, got ok=%v err=%v", ok, err)
	}
	if v.(*resConsoleLogger).Prefix != "S" {
		t.Errorf("Unexpected instance %v", v)
	}

	// 类型不匹配：快捷方式失效而非报错
	_, ok, err = f.ResolveShortcut("console", reflect.TypeOf(""))
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Error("Stale shortcut should miss, not resolve")
	}

	// 未知名称
	_, ok, _ = f.ResolveShortcut("missing", resLoggerType)
	if ok {
		t.Error("Unknown name should miss")
	}
}
