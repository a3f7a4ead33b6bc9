package ioc

import (
	"fmt"
	"reflect"
	"sort"
	"strings"
	"sync"

	"github.com/gobeans/beans/logging"
)

// InjectionMarker 识别注入点的标记描述：
// 标签名、控制必选语义的属性名及其缺省值。
// 标记表在处理器配置时构建一次，避免重复的反射式查找。
type InjectionMarker struct {
	Tag             string
	RequiredAttr    string
	DefaultRequired bool
}

// defaultMarkers 框架自有标签加一个互操作标签。
func defaultMarkers() []InjectionMarker {
	return []InjectionMarker{
		{Tag: "inject", RequiredAttr: "required", DefaultRequired: true},
		{Tag: "autowire", RequiredAttr: "required", DefaultRequired: true},
	}
}

// qualifierTag 注入点限定符标签。
// 裸值视为 "value" 属性；"k=v,k2=v2" 形式逐属性匹配。
const qualifierTag = "qualifier"

// InjectionMetadata 一个目标类型的全部注入元素，按
// 「内嵌（超类）层级在前，本层在后」的顺序排列。按类型身份缓存。
type InjectionMetadata struct {
	targetType reflect.Type
	elements   []injectionElement
}

type injectionElement interface {
	key() string
	inject(instance any, beanName string, f *BeanFactory) error
}

// CheckConfigMembers 将元素登记为本处理器管理，
// 多个后处理器并存时避免重复注入。
func (m *InjectionMetadata) CheckConfigMembers(def *BeanDefinition, owner string) {
	for _, e := range m.elements {
		def.RegisterExternallyManagedMember(e.key(), owner)
	}
}

// Inject 依次执行所有注入元素。跳过已由其他处理器管理的成员。
func (m *InjectionMetadata) Inject(instance any, beanName string, def *BeanDefinition, owner string, f *BeanFactory) error {
	for _, e := range m.elements {
		if def != nil {
			if managedBy := def.externallyManagedBy(e.key()); managedBy != "" && managedBy != owner {
				continue
			}
		}
		if err := e.inject(instance, beanName, f); err != nil {
			return err
		}
	}
	return nil
}

// injectedField 字段注入元素。
// 缓存状态：cached 置位后，shortcut 非空表示已解析的 bean 名称快捷方式，
// 为空表示缓存了「可选未命中」结果（下次直接跳过）。
type injectedField struct {
	index     []int
	fieldName string
	fieldType reflect.Type
	desc      DependencyDescriptor

	mu       sync.Mutex
	cached   bool
	shortcut string
}

func (e *injectedField) key() string { return "field:" + e.fieldName }

func (e *injectedField) inject(instance any, beanName string, f *BeanFactory) error {
	e.mu.Lock()
	cached, shortcut := e.cached, e.shortcut
	e.mu.Unlock()

	if cached {
		if shortcut == "" {
			return nil // 缓存的可选未命中：字段保持默认值
		}
		v, ok, err := f.ResolveShortcut(shortcut, e.fieldType)
		if err != nil {
			return &InjectionError{BeanName: beanName, Member: e.key(), Cause: err}
		}
		if ok {
			if beanName != "" {
				f.RegisterDependentBean(shortcut, beanName)
			}
			return e.setValue(instance, v, f)
		}
		// 快捷方式过期（类型不再匹配）：作废缓存，退回完整解析
		e.mu.Lock()
		e.cached, e.shortcut = false, ""
		e.mu.Unlock()
	}

	value, resolvedName, err := f.ResolveDependency(e.desc, beanName)
	if err != nil {
		return &InjectionError{BeanName: beanName, Member: e.key(), Cause: err}
	}

	e.mu.Lock()
	switch {
	case resolvedName != "" && f.ContainsBean(resolvedName) && f.isSingletonByName(resolvedName):
		e.cached, e.shortcut = true, resolvedName
	case value == nil && !e.desc.Required:
		e.cached, e.shortcut = true, ""
	default:
		// 多候选或非单例结果不缓存，每次完整解析
		e.cached, e.shortcut = false, ""
	}
	e.mu.Unlock()

	if value == nil {
		return nil // 可选未命中：不写入，保留默认值
	}
	return e.setValue(instance, value, f)
}

func (e *injectedField) setValue(instance any, value any, f *BeanFactory) error {
	if value == nil {
		return nil
	}
	target := reflect.ValueOf(instance)
	if target.Kind() != reflect.Pointer {
		return &ConfigurationError{Reason: fmt.Sprintf(
			"ioc: 字段注入需要结构体指针，得到 %T", instance)}
	}
	field := target.Elem().FieldByIndex(e.index)
	v := reflect.ValueOf(value)
	if !v.Type().AssignableTo(field.Type()) {
		converted, err := f.converters.Convert(value, field.Type())
		if err != nil {
			return err
		}
		v = reflect.ValueOf(converted)
	}
	field.Set(v)
	return nil
}

// injectedMethod 方法注入元素：解析每个参数后反射调用。
// 任一可选参数未命中时放弃整个调用。
type injectedMethod struct {
	methodName string
	methodType reflect.Type
	required   bool
	paramDescs []DependencyDescriptor

	mu        sync.Mutex
	cached    bool
	shortcuts []string
}

func (e *injectedMethod) key() string { return "method:" + e.methodName }

func (e *injectedMethod) inject(instance any, beanName string, f *BeanFactory) error {
	method := reflect.ValueOf(instance).MethodByName(e.methodName)
	if !method.IsValid() {
		return &ConfigurationError{Reason: fmt.Sprintf(
			"ioc: 实例 %T 上找不到注入方法 %s", instance, e.methodName)}
	}

	e.mu.Lock()
	cached := e.cached
	shortcuts := e.shortcuts
	e.mu.Unlock()

	if cached {
		args, ok, err := e.resolveByShortcuts(shortcuts, method.Type(), beanName, f)
		if err != nil {
			return err
		}
		if ok {
			return e.invoke(method, args, beanName)
		}
		e.mu.Lock()
		e.cached, e.shortcuts = false, nil
		e.mu.Unlock()
	}

	numIn := method.Type().NumIn()
	args := make([]reflect.Value, numIn)
	resolvedNames := make([]string, numIn)
	cacheable := numIn > 0
	for i := 0; i < numIn; i++ {
		value, resolvedName, err := f.ResolveDependency(e.paramDescs[i], beanName)
		if err != nil {
			return &InjectionError{BeanName: beanName, Member: e.key(), Cause: err}
		}
		if value == nil {
			if !e.required {
				return nil // 可选方法注入：参数未命中即放弃整个调用
			}
			args[i] = reflect.Zero(method.Type().In(i))
			cacheable = false
		} else {
			args[i] = reflect.ValueOf(value)
		}
		if resolvedName == "" || !f.isSingletonByName(resolvedName) {
			cacheable = false
		}
		resolvedNames[i] = resolvedName
	}

	if cacheable {
		e.mu.Lock()
		e.cached, e.shortcuts = true, resolvedNames
		e.mu.Unlock()
	}
	return e.invoke(method, args, beanName)
}

func (e *injectedMethod) resolveByShortcuts(shortcuts []string, mt reflect.Type, beanName string, f *BeanFactory) ([]reflect.Value, bool, error) {
	if len(shortcuts) != mt.NumIn() {
		return nil, false, nil
	}
	args := make([]reflect.Value, len(shortcuts))
	for i, name := range shortcuts {
		v, ok, err := f.ResolveShortcut(name, mt.In(i))
		if err != nil {
			return nil, false, &InjectionError{BeanName: beanName, Member: e.key(), Cause: err}
		}
		if !ok {
			return nil, false, nil
		}
		if beanName != "" {
			f.RegisterDependentBean(name, beanName)
		}
		args[i] = reflect.ValueOf(v)
	}
	return args, true, nil
}

func (e *injectedMethod) invoke(method reflect.Value, args []reflect.Value, beanName string) error {
	results := method.Call(args)
	if len(results) > 0 {
		last := results[len(results)-1]
		if last.Type().Implements(errType) && !last.IsNil() {
			return &InjectionError{BeanName: beanName, Member: e.key(), Cause: last.Interface().(error)}
		}
	}
	return nil
}

// buildInjectionMetadata 构建类型的注入元数据：
// 自最外层类型沿内嵌链向下收集，内嵌（超类）层级的元素排在前面。
func buildInjectionMetadata(t reflect.Type, markers []InjectionMarker, methodPrefix, optionalMethodPrefix string, logger logging.Logger) *InjectionMetadata {
	meta := &InjectionMetadata{targetType: t}

	structType := t
	if structType.Kind() == reflect.Pointer {
		structType = structType.Elem()
	}
	if structType.Kind() != reflect.Struct {
		return meta
	}

	collectInjectedFields(structType, nil, markers, logger, &meta.elements)
	collectInjectedMethods(t, structType, methodPrefix, optionalMethodPrefix, logger, &meta.elements)
	return meta
}

func collectInjectedFields(structType reflect.Type, basePath []int, markers []InjectionMarker, logger logging.Logger, out *[]injectionElement) {
	// 先递归内嵌层级：超类注入先于子类注入
	for i := 0; i < structType.NumField(); i++ {
		field := structType.Field(i)
		if field.Anonymous && field.Type.Kind() == reflect.Struct && !hasMarkerTag(field, markers) {
			collectInjectedFields(field.Type, appendPath(basePath, i), markers, logger, out)
		}
	}

	for i := 0; i < structType.NumField(); i++ {
		field := structType.Field(i)
		if field.Anonymous && field.Type.Kind() == reflect.Struct && !hasMarkerTag(field, markers) {
			continue
		}
		marker, tagValue, ok := lookupMarker(field, markers)
		if !ok {
			continue
		}
		if field.PkgPath != "" {
			// 不可设置的成员带注入标记：配置告警，跳过
			logger.Warn("注入标记出现在不可导出字段上，已跳过",
				logging.Field{Key: "type", Value: structType.String()},
				logging.Field{Key: "field", Value: field.Name})
			continue
		}

		required := marker.DefaultRequired
		qualifiers := map[string]string{}
		defaultValue := ""

		parts := strings.Split(tagValue, ",")
		nameHint := strings.TrimSpace(parts[0])
		if nameHint == "?" || nameHint == "optional" {
			nameHint = ""
			required = false
		}
		for _, part := range parts[1:] {
			part = strings.TrimSpace(part)
			switch {
			case part == "optional" || part == "?":
				required = false
			case strings.HasPrefix(part, marker.RequiredAttr+"="):
				required = strings.TrimPrefix(part, marker.RequiredAttr+"=") != "false"
			case strings.HasPrefix(part, "default="):
				defaultValue = strings.TrimPrefix(part, "default=")
			}
		}
		if nameHint != "" {
			qualifiers["value"] = nameHint
		}
		parseQualifierTag(field.Tag.Get(qualifierTag), qualifiers)

		*out = append(*out, &injectedField{
			index:     appendPath(basePath, i),
			fieldName: field.Name,
			fieldType: field.Type,
			desc: DependencyDescriptor{
				Type:          field.Type,
				Required:      required,
				Qualifiers:    qualifiers,
				DefaultValue:  defaultValue,
				DeclaringType: structType,
				MemberName:    field.Name,
			},
		})
	}
}

func collectInjectedMethods(beanType, structType reflect.Type, prefix, optionalPrefix string, logger logging.Logger, out *[]injectionElement) {
	ptrType := beanType
	if ptrType.Kind() != reflect.Pointer {
		ptrType = reflect.PointerTo(beanType)
	}

	type methodEntry struct {
		method   reflect.Method
		required bool
		depth    int
	}
	var entries []methodEntry
	for i := 0; i < ptrType.NumMethod(); i++ {
		m := ptrType.Method(i)
		required := true
		switch {
		case optionalPrefix != "" && strings.HasPrefix(m.Name, optionalPrefix):
			required = false
		case prefix != "" && strings.HasPrefix(m.Name, prefix):
		default:
			continue
		}
		// 去掉接收者后的参数个数
		if m.Type.NumIn() == 1 {
			logger.Warn("注入方法没有参数，仍将按惯例调用",
				logging.Field{Key: "type", Value: beanType.String()},
				logging.Field{Key: "method", Value: m.Name})
		}
		entries = append(entries, methodEntry{
			method:   m,
			required: required,
			depth:    embeddedMethodDepth(structType, m.Name),
		})
	}

	// 内嵌（超类）层级声明的方法先注入；同层按名称保证确定性
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].depth != entries[j].depth {
			return entries[i].depth > entries[j].depth
		}
		return entries[i].method.Name < entries[j].method.Name
	})

	for _, entry := range entries {
		mt := entry.method.Type
		descs := make([]DependencyDescriptor, 0, mt.NumIn()-1)
		for i := 1; i < mt.NumIn(); i++ {
			descs = append(descs, DependencyDescriptor{
				Type:          mt.In(i),
				Required:      entry.required,
				Qualifiers:    map[string]string{},
				DeclaringType: structType,
				MemberName:    entry.method.Name,
			})
		}
		*out = append(*out, &injectedMethod{
			methodName: entry.method.Name,
			methodType: mt,
			required:   entry.required,
			paramDescs: descs,
		})
	}
}

// embeddedMethodDepth 返回声明该方法的最深内嵌层级（0 为最外层）。
// Go 的方法提升保证经外层接收者调用时绑定正确的内嵌接收者，
// 这里只为还原「超类方法先注入」的顺序。
func embeddedMethodDepth(structType reflect.Type, methodName string) int {
	depth := 0
	for i := 0; i < structType.NumField(); i++ {
		field := structType.Field(i)
		if !field.Anonymous || field.Type.Kind() != reflect.Struct {
			continue
		}
		if _, ok := reflect.PointerTo(field.Type).MethodByName(methodName); ok {
			if d := embeddedMethodDepth(field.Type, methodName) + 1; d > depth {
				depth = d
			}
		}
	}
	return depth
}

func hasMarkerTag(field reflect.StructField, markers []InjectionMarker) bool {
	for _, m := range markers {
		if _, ok := field.Tag.Lookup(m.Tag); ok {
			return true
		}
	}
	return false
}

func lookupMarker(field reflect.StructField, markers []InjectionMarker) (InjectionMarker, string, bool) {
	for _, m := range markers {
		if value, ok := field.Tag.Lookup(m.Tag); ok {
			return m, value, true
		}
	}
	return InjectionMarker{}, "", false
}

func parseQualifierTag(tag string, into map[string]string) {
	if tag == "" {
		return
	}
	for _, part := range strings.Split(tag, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if k, v, ok := strings.Cut(part, "="); ok {
			into[k] = v
		} else {
			into["value"] = part
		}
	}
}

func appendPath(base []int, i int) []int {
	path := make([]int, len(base), len(base)+1)
	copy(path, base)
	return append(path, i)
}
