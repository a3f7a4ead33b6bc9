package ioc

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
)

// ErrIllegalState 表示创建过程中注册表状态与预期不符。
// 工厂回调返回包装了该错误的失败时，若此期间其他协程已合法注册了同名单例，
// 创建被视为成功并采用并发产生的实例（与原有行为保持一致的宽容策略）。
var ErrIllegalState = errors.New("ioc: illegal state")

// ConfigurationError 配置错误。致命，立即暴露，不会重试。
type ConfigurationError struct {
	Reason string
}

func (e *ConfigurationError) Error() string { return e.Reason }

// BeanCurrentlyInCreationError Bean 正在创建中。
// 通常意味着构造层面的循环依赖，无法通过早期引用化解。
type BeanCurrentlyInCreationError struct {
	BeanName string
}

func (e *BeanCurrentlyInCreationError) Error() string {
	return fmt.Sprintf("ioc: bean '%s' 正在创建中（疑似无法化解的循环引用）", e.BeanName)
}

// BeanCreationNotAllowedError 全局销毁阶段禁止创建新单例。
// 销毁回调中拉取新 Bean 往往意味着生命周期顺序缺陷。
type BeanCreationNotAllowedError struct {
	BeanName string
}

func (e *BeanCreationNotAllowedError) Error() string {
	return fmt.Sprintf("ioc: 单例正在销毁中，不允许创建 bean '%s'", e.BeanName)
}

// BeanCreationError 创建 Bean 失败。
// Suppressed 中携带循环引用探测期间记录的次要错误，便于诊断。
type BeanCreationError struct {
	BeanName   string
	Cause      error
	Suppressed []error
}

func (e *BeanCreationError) Error() string {
	msg := fmt.Sprintf("ioc: 创建 bean '%s' 失败: %v", e.BeanName, e.Cause)
	if len(e.Suppressed) > 0 {
		var sb strings.Builder
		sb.WriteString(msg)
		for _, s := range e.Suppressed {
			sb.WriteString("\n\tsuppressed: ")
			sb.WriteString(s.Error())
		}
		return sb.String()
	}
	return msg
}

func (e *BeanCreationError) Unwrap() error { return e.Cause }

// NoSuchBeanError 找不到匹配的 Bean。
type NoSuchBeanError struct {
	Type reflect.Type
	Name string
}

func (e *NoSuchBeanError) Error() string {
	if e.Name != "" {
		return fmt.Sprintf("ioc: 未找到名为 '%s' 的 bean", e.Name)
	}
	return fmt.Sprintf("ioc: 未找到类型 %v 的 bean", e.Type)
}

// NonUniqueBeanError 匹配到多个候选且无法消歧。
type NonUniqueBeanError struct {
	Type       reflect.Type
	Candidates []string
}

func (e *NonUniqueBeanError) Error() string {
	return fmt.Sprintf("ioc: 类型 %v 匹配到 %d 个候选且无法消歧: %s",
		e.Type, len(e.Candidates), strings.Join(e.Candidates, ", "))
}

// InjectionError 注入失败。包装根因并指明注入点。
type InjectionError struct {
	BeanName string
	Member   string
	Cause    error
}

func (e *InjectionError) Error() string {
	return fmt.Sprintf("ioc: bean '%s' 的注入点 %s 注入失败: %v", e.BeanName, e.Member, e.Cause)
}

func (e *InjectionError) Unwrap() error { return e.Cause }
