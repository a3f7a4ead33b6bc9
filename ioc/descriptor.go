package ioc

import (
	"fmt"
	"reflect"
)

// DependencyDescriptor 描述一个类型化的注入点：
// 字段、构造函数参数或注入方法参数。
// 由注入元数据层（或外部协作方）产生，交给解析引擎消费。
type DependencyDescriptor struct {
	// Type 注入点声明的类型。
	Type reflect.Type
	// Required 必选语义。可选注入点未命中时安静跳过。
	Required bool
	// Qualifiers 注入点携带的限定符属性。
	// "value" 属性支持 bean 名称 / 别名回退匹配。
	Qualifiers map[string]string
	// DefaultValue 建议的默认值表达式，经 TypeConverter 强转。
	DefaultValue string
	// DeclaringType 注入点所在类型，仅用于诊断信息。
	DeclaringType reflect.Type
	// MemberName 字段名或方法名，用于诊断与名称回退匹配。
	MemberName string
}

func (d DependencyDescriptor) String() string {
	where := ""
	if d.DeclaringType != nil {
		where = fmt.Sprintf(" in %v", d.DeclaringType)
	}
	return fmt.Sprintf("依赖 %v '%s'%s", d.Type, d.MemberName, where)
}

// isMultiValue 判断注入点类型是否为多值容器：
// 有序序列（切片）或以字符串为键的映射。
func isMultiValue(t reflect.Type) bool {
	switch t.Kind() {
	case reflect.Slice:
		return t.Elem().Kind() != reflect.Uint8 // []byte 按标量处理
	case reflect.Map:
		return t.Key().Kind() == reflect.String
	}
	return false
}
