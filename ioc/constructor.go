package ioc

import (
	"fmt"
	"reflect"
)

var errType = reflect.TypeOf((*error)(nil)).Elem()

// instantiateBean 实例化 Bean：现成值直通，否则执行构造函数选择并调用；
// 没有任何构造函数的结构体指针类型走零值实例化（随后由属性注入填充）。
func (f *BeanFactory) instantiateBean(def *BeanDefinition) (any, error) {
	if def.hasValue {
		return def.value, nil
	}

	if len(def.constructors) == 0 {
		return f.instantiateByType(def)
	}

	ctor, err := f.selectConstructor(def)
	if err != nil {
		return nil, err
	}
	return f.invokeConstructor(def, ctor)
}

// instantiateByType 按类型零值实例化（仅限结构体或结构体指针）。
func (f *BeanFactory) instantiateByType(def *BeanDefinition) (any, error) {
	t := def.Type()
	switch {
	case t.Kind() == reflect.Pointer && t.Elem().Kind() == reflect.Struct:
		return reflect.New(t.Elem()).Interface(), nil
	case t.Kind() == reflect.Struct:
		return reflect.New(t).Elem().Interface(), nil
	}
	return nil, &ConfigurationError{Reason: fmt.Sprintf(
		"ioc: bean '%s' 类型为 %v，无构造函数且无法按类型实例化", def.Name(), t)}
}

// selectConstructor 构造函数选择（每个定义只计算一次并缓存）：
// 必选构造函数无条件胜出；否则在可完全满足参数的候选中
// 取满足依赖数最多者；真正的无参构造函数作为最终回退。
func (f *BeanFactory) selectConstructor(def *BeanDefinition) (*constructorCandidate, error) {
	def.mu.Lock()
	if def.constructorResolved {
		resolved := def.resolvedConstructor
		def.mu.Unlock()
		if resolved == nil {
			return nil, &ConfigurationError{Reason: fmt.Sprintf(
				"ioc: bean '%s' 没有可满足的构造函数", def.Name())}
		}
		return resolved, nil
	}
	def.mu.Unlock()

	var required *constructorCandidate
	for i := range def.constructors {
		if def.constructors[i].required {
			required = &def.constructors[i]
			break
		}
	}

	var resolved *constructorCandidate
	if required != nil {
		resolved = required
	} else {
		// 按参数个数降序挑选首个可完全满足的候选
		bestArgs := -1
		var fallback *constructorCandidate
		for i := range def.constructors {
			c := &def.constructors[i]
			numIn := c.typ.NumIn()
			if numIn == 0 && fallback == nil {
				fallback = c
			}
			if numIn <= bestArgs {
				continue
			}
			if satisfied, err := f.canSatisfyAll(c, def.Name()); satisfied {
				resolved = c
				bestArgs = numIn
			} else if err != nil {
				f.RecordSuppressedError(def.Name(), err)
			}
		}
		if resolved == nil {
			resolved = fallback
		}
	}

	def.mu.Lock()
	def.constructorResolved = true
	def.resolvedConstructor = resolved
	def.mu.Unlock()

	if resolved == nil {
		return nil, &ConfigurationError{Reason: fmt.Sprintf(
			"ioc: bean '%s' 没有可满足的构造函数", def.Name())}
	}
	return resolved, nil
}

// canSatisfyAll 探测候选构造函数的每个参数是否都有类型匹配的候选。
// 只做存在性探测，不实例化。
func (f *BeanFactory) canSatisfyAll(c *constructorCandidate, beanName string) (bool, error) {
	for i := 0; i < c.typ.NumIn(); i++ {
		paramType := c.typ.In(i)
		if isMultiValue(paramType) {
			continue // 多值注入对空候选集也成立
		}
		desc := DependencyDescriptor{Type: paramType, Required: true}
		if len(f.findAutowireCandidates(desc, beanName)) == 0 {
			return false, fmt.Errorf("ioc: 构造函数 %v 的参数 %d (%v) 无可用候选",
				c.typ, i, paramType)
		}
	}
	return true, nil
}

// invokeConstructor 解析全部参数并调用构造函数。
// 支持 func(...) T 与 func(...) (T, error) 两种签名。
func (f *BeanFactory) invokeConstructor(def *BeanDefinition, c *constructorCandidate) (any, error) {
	numIn := c.typ.NumIn()
	args := make([]reflect.Value, numIn)
	for i := 0; i < numIn; i++ {
		desc := DependencyDescriptor{
			Type:          c.typ.In(i),
			Required:      true,
			DeclaringType: def.Type(),
			MemberName:    fmt.Sprintf("arg%d", i),
		}
		value, _, err := f.ResolveDependency(desc, def.Name())
		if err != nil {
			return nil, fmt.Errorf("ioc: bean '%s' 构造函数参数 %d 解析失败: %w", def.Name(), i, err)
		}
		if value == nil {
			args[i] = reflect.Zero(c.typ.In(i))
		} else {
			args[i] = reflect.ValueOf(value)
		}
	}

	results := c.fn.Call(args)
	if len(results) > 1 {
		last := results[len(results)-1]
		if last.Type().Implements(errType) && !last.IsNil() {
			return nil, last.Interface().(error)
		}
	}
	return results[0].Interface(), nil
}
