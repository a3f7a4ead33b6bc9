package ioc

import (
	"fmt"
	"reflect"
	"strconv"
	"sync"
	"time"
)

// TypeConverter 将解析出的值或建议的默认值表达式强转为注入点声明的类型。
type TypeConverter interface {
	Convert(value any, target reflect.Type) (any, error)
}

// ConverterRegistry 命名类型转换器的注册表。
// 未命中命名转换器时回退到内建的默认转换器。
type ConverterRegistry struct {
	mu       sync.RWMutex
	named    map[string]TypeConverter
	fallback TypeConverter
}

// NewConverterRegistry 创建转换器注册表。
func NewConverterRegistry() *ConverterRegistry {
	return &ConverterRegistry{
		named:    make(map[string]TypeConverter),
		fallback: defaultConverter{},
	}
}

// Register 注册命名转换器。
func (r *ConverterRegistry) Register(name string, converter TypeConverter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.named[name] = converter
}

// Named 按名称检索转换器。
func (r *ConverterRegistry) Named(name string) (TypeConverter, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.named[name]
	return c, ok
}

// Convert 使用默认转换器执行强转。
func (r *ConverterRegistry) Convert(value any, target reflect.Type) (any, error) {
	return r.fallback.Convert(value, target)
}

// defaultConverter 内建转换器：可赋值直通，可转换走 reflect，
// 字符串到标量走 strconv / time.ParseDuration。
type defaultConverter struct{}

func (defaultConverter) Convert(value any, target reflect.Type) (any, error) {
	if value == nil {
		return reflect.Zero(target).Interface(), nil
	}
	v := reflect.ValueOf(value)
	if v.Type().AssignableTo(target) {
		return value, nil
	}

	if s, ok := value.(string); ok {
		if converted, ok, err := convertString(s, target); ok {
			return converted, err
		}
	}

	if v.Type().ConvertibleTo(target) {
		return v.Convert(target).Interface(), nil
	}
	return nil, fmt.Errorf("ioc: 无法将 %T 转换为 %v", value, target)
}

func convertString(s string, target reflect.Type) (any, bool, error) {
	if target == reflect.TypeOf(time.Duration(0)) {
		d, err := time.ParseDuration(s)
		return d, true, err
	}
	switch target.Kind() {
	case reflect.String:
		return s, true, nil
	case reflect.Bool:
		b, err := strconv.ParseBool(s)
		return b, true, err
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return nil, true, err
		}
		return reflect.ValueOf(n).Convert(target).Interface(), true, nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		n, err := strconv.ParseUint(s, 10, 64)
		if err != nil {
			return nil, true, err
		}
		return reflect.ValueOf(n).Convert(target).Interface(), true, nil
	case reflect.Float32, reflect.Float64:
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, true, err
		}
		return reflect.ValueOf(f).Convert(target).Interface(), true, nil
	}
	return nil, false, nil
}
