package ioc

import (
	"fmt"
	"reflect"
)

// ResolveDependency 针对注入点解析候选 Bean。
// 返回解析出的值与唯一候选的名称（多值注入或默认值时名称为空）。
// requestingBean 非空时会登记销毁顺序依赖边。
func (f *BeanFactory) ResolveDependency(desc DependencyDescriptor, requestingBean string) (any, string, error) {
	if desc.Type == nil {
		return nil, "", &ConfigurationError{Reason: "ioc: 依赖描述符缺少类型"}
	}

	candidates := f.findAutowireCandidates(desc, requestingBean)

	// 多值容器类型：除非容器类型本身恰有注册的 bean，否则按多 bean 注入处理。
	if isMultiValue(desc.Type) && len(candidates) == 0 {
		return f.resolveMultipleBeans(desc, requestingBean)
	}

	if len(candidates) == 0 {
		if desc.DefaultValue != "" {
			v, err := f.converters.Convert(desc.DefaultValue, desc.Type)
			if err != nil {
				return nil, "", fmt.Errorf("ioc: %s 的默认值强转失败: %w", desc, err)
			}
			return v, "", nil
		}
		if desc.Required {
			return nil, "", &NoSuchBeanError{Type: desc.Type, Name: desc.Qualifiers["value"]}
		}
		return nil, "", nil
	}

	winner := candidates[0]
	if len(candidates) > 1 {
		var err error
		winner, err = f.determineAutowireCandidate(candidates, desc)
		if err != nil {
			if !desc.Required {
				return nil, "", nil
			}
			return nil, "", err
		}
	}

	value, err := f.resolveCandidate(winner, desc)
	if err != nil {
		return nil, "", err
	}
	if requestingBean != "" {
		f.RegisterDependentBean(winner, requestingBean)
	}
	return value, winner, nil
}

// ResolveShortcut 按缓存的快捷方式（已解析的 bean 名称）直接解析。
// 每次使用都重新校验类型匹配：容器重配置后快捷方式可能过期，
// 过期时返回 ok=false，由调用方退回完整解析。
func (f *BeanFactory) ResolveShortcut(name string, requiredType reflect.Type) (any, bool, error) {
	if !f.ContainsBean(name) {
		return nil, false, nil
	}
	if !f.IsTypeMatch(name, requiredType) {
		return nil, false, nil
	}
	v, err := f.GetBean(name)
	if err != nil {
		return nil, false, err
	}
	if v != nil && !reflect.TypeOf(v).AssignableTo(requiredType) {
		return nil, false, nil
	}
	return v, true, nil
}

// findAutowireCandidates 枚举可按类型赋值给注入点的候选名称，
// 应用 autowire-candidate 开关、自引用排除与限定符过滤。
func (f *BeanFactory) findAutowireCandidates(desc DependencyDescriptor, requestingBean string) []string {
	names := f.NamesForType(desc.Type)
	result := make([]string, 0, len(names))
	for _, name := range names {
		if name == requestingBean {
			continue // 自引用不参与常规候选
		}
		def, _ := f.Definition(name)
		if def != nil && !def.autowireCandidate {
			continue
		}
		if !f.qualifiersMatch(desc, name, def) {
			continue
		}
		result = append(result, name)
	}
	return result
}

// qualifiersMatch 限定符匹配：候选定义的限定符属性须逐一匹配注入点的属性；
// 特殊的 "value" 属性额外按 bean 名称与别名命中，与定义的限定符值互不排斥，
// 因此 inject:"db:master" 能命中限定符为 "master" 的 bean "db:master"。
func (f *BeanFactory) qualifiersMatch(desc DependencyDescriptor, name string, def *BeanDefinition) bool {
	if len(desc.Qualifiers) == 0 {
		return true
	}
	var defQualifiers map[string]string
	if def != nil {
		defQualifiers = def.Qualifiers()
	}
	for key, expected := range desc.Qualifiers {
		if actual, ok := defQualifiers[key]; ok && actual == expected {
			continue
		}
		if key == "value" && f.beanNameMatches(name, expected) {
			continue
		}
		return false
	}
	return true
}

// beanNameMatches 判断 expected 是否指向名为 name 的 bean（含别名）。
func (f *BeanFactory) beanNameMatches(name, expected string) bool {
	if name == expected || f.CanonicalName(expected) == name {
		return true
	}
	for _, alias := range f.Aliases(name) {
		if alias == expected {
			return true
		}
	}
	return false
}

// determineAutowireCandidate 多候选消歧：primary 优先，
// 其次按排序值（最小者胜，并列则歧义），最后回退注入点成员名匹配。
func (f *BeanFactory) determineAutowireCandidate(candidates []string, desc DependencyDescriptor) (string, error) {
	// primary 决胜
	primary := ""
	for _, name := range candidates {
		if def, _ := f.Definition(name); def != nil && def.IsPrimary() {
			if primary != "" {
				return "", &NonUniqueBeanError{Type: desc.Type, Candidates: []string{primary, name}}
			}
			primary = name
		}
	}
	if primary != "" {
		return primary, nil
	}

	// 排序值决胜
	best := ""
	bestOrder := OrderLowest
	ambiguous := false
	for _, name := range candidates {
		def, _ := f.Definition(name)
		if def == nil || def.order == nil {
			continue
		}
		switch {
		case *def.order < bestOrder:
			best, bestOrder, ambiguous = name, *def.order, false
		case *def.order == bestOrder && best != "":
			ambiguous = true
		}
	}
	if best != "" && !ambiguous {
		return best, nil
	}
	if ambiguous {
		return "", &NonUniqueBeanError{Type: desc.Type, Candidates: candidates}
	}

	// 成员名回退
	for _, name := range candidates {
		if name == desc.MemberName {
			return name, nil
		}
	}
	return "", &NonUniqueBeanError{Type: desc.Type, Candidates: candidates}
}

// resolveCandidate 取出候选实例并校验/强转到声明类型。
func (f *BeanFactory) resolveCandidate(name string, desc DependencyDescriptor) (any, error) {
	v, err := f.GetBean(name)
	if err != nil {
		return nil, err
	}
	if v == nil {
		return nil, nil
	}
	if reflect.TypeOf(v).AssignableTo(desc.Type) {
		return v, nil
	}
	converted, err := f.converters.Convert(v, desc.Type)
	if err != nil {
		return nil, fmt.Errorf("ioc: 候选 '%s' 与 %s 类型不匹配: %w", name, desc, err)
	}
	return converted, nil
}

// resolveMultipleBeans 多 bean 注入：收集全部类型匹配候选，
// 切片按排序契约排序（排序值小者在前，缺省排最后，回退注册顺序），
// 映射以候选 bean 名称为键。
func (f *BeanFactory) resolveMultipleBeans(desc DependencyDescriptor, requestingBean string) (any, string, error) {
	elemType := desc.Type.Elem()
	elemDesc := desc
	elemDesc.Type = elemType

	names := f.findAutowireCandidates(elemDesc, requestingBean)
	if len(names) == 0 {
		if desc.Required {
			return nil, "", &NoSuchBeanError{Type: desc.Type}
		}
		return nil, "", nil
	}

	candidates := make([]orderedCandidate, 0, len(names))
	for i, name := range names {
		instance, err := f.resolveCandidate(name, elemDesc)
		if err != nil {
			return nil, "", err
		}
		if instance == nil {
			continue // 显式 nil 值的 bean 不进入多值注入结果
		}
		def, _ := f.Definition(name)
		candidates = append(candidates, orderedCandidate{
			name:     name,
			instance: instance,
			order:    orderOf(def, instance),
			index:    i,
		})
		if requestingBean != "" {
			f.RegisterDependentBean(name, requestingBean)
		}
	}

	switch desc.Type.Kind() {
	case reflect.Slice:
		sortCandidates(candidates)
		result := reflect.MakeSlice(desc.Type, 0, len(candidates))
		for _, c := range candidates {
			result = reflect.Append(result, reflect.ValueOf(c.instance))
		}
		return result.Interface(), "", nil
	case reflect.Map:
		result := reflect.MakeMapWithSize(desc.Type, len(candidates))
		for _, c := range candidates {
			result.SetMapIndex(reflect.ValueOf(c.name), reflect.ValueOf(c.instance))
		}
		return result.Interface(), "", nil
	}
	return nil, "", &ConfigurationError{Reason: fmt.Sprintf("ioc: 不支持的多值注入类型 %v", desc.Type)}
}
