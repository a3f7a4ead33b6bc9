package ioc

import (
	"fmt"
	"reflect"

	"github.com/gobeans/beans/logging"
)

// destroyMethodConventions 请求推断销毁方法时按序探测的惯例名称。
var destroyMethodConventions = []string{"Close", "Shutdown"}

// DisposableAdapter 将单个 Bean 实例适配为销毁句柄。
// 构造时一次性计算：原生 Disposable 契约是否适用、应调用的自定义销毁方法
// （必要时按 Close/Shutdown 惯例推断）、以及哪些销毁感知后处理器确实需要调用。
//
// Destroy 时依次执行：销毁感知回调 → 原生契约 → 自定义方法。
// 每个子步骤的失败单独捕获并记日志，绝不升级，也不阻止后续步骤。
type DisposableAdapter struct {
	instance     any
	beanName     string
	invokeNative bool
	methodName   string
	passForce    bool
	processors   []DestructionAwareBeanPostProcessor
	logger       logging.Logger
}

// NewDisposableAdapter 创建销毁适配器。自定义销毁方法的签名限制：
// 无参，或者单个 bool 的「强制」参数；其他签名是致命配置错误。
func NewDisposableAdapter(instance any, beanName string, def *BeanDefinition,
	processors []DestructionAwareBeanPostProcessor, logger logging.Logger) (*DisposableAdapter, error) {

	if logger == nil {
		logger = logging.NewNopLogger()
	}
	adapter := &DisposableAdapter{
		instance: instance,
		beanName: beanName,
		logger:   logger,
	}

	_, adapter.invokeNative = instance.(Disposable)

	methodName := ""
	if def != nil {
		methodName = def.DestroyMethodName()
	}
	if methodName == DestroyMethodInferred {
		methodName = ""
		// 仅在未实现原生契约时才推断
		if !adapter.invokeNative {
			methodName = inferDestroyMethod(instance)
		}
	}
	if methodName != "" && methodName != "Destroy" {
		method := reflect.ValueOf(instance).MethodByName(methodName)
		if !method.IsValid() {
			return nil, &ConfigurationError{Reason: fmt.Sprintf(
				"ioc: bean '%s' 声明的销毁方法 %s 在 %T 上不存在", beanName, methodName, instance)}
		}
		passForce, err := validateDestroySignature(beanName, methodName, method.Type())
		if err != nil {
			return nil, err
		}
		adapter.methodName = methodName
		adapter.passForce = passForce
	}

	for _, p := range processors {
		if processorRequiresDestruction(p, instance) {
			adapter.processors = append(adapter.processors, p)
		}
	}
	return adapter, nil
}

// inferDestroyMethod 按惯例名称探测销毁方法。
func inferDestroyMethod(instance any) string {
	v := reflect.ValueOf(instance)
	for _, name := range destroyMethodConventions {
		if m := v.MethodByName(name); m.IsValid() {
			if _, err := validateDestroySignature("", name, m.Type()); err == nil {
				return name
			}
		}
	}
	return ""
}

func validateDestroySignature(beanName, methodName string, mt reflect.Type) (passForce bool, err error) {
	switch mt.NumIn() {
	case 0:
		return false, nil
	case 1:
		if mt.In(0).Kind() != reflect.Bool {
			return false, &ConfigurationError{Reason: fmt.Sprintf(
				"ioc: bean '%s' 的销毁方法 %s 的唯一参数必须是 bool，得到 %v",
				beanName, methodName, mt.In(0))}
		}
		return true, nil
	default:
		return false, &ConfigurationError{Reason: fmt.Sprintf(
			"ioc: bean '%s' 的销毁方法 %s 至多允许一个 bool 参数", beanName, methodName)}
	}
}

// Destroy 执行销毁序列。错误全部在发生点被捕获并记日志，永不传播。
func (a *DisposableAdapter) Destroy() error {
	for _, p := range a.processors {
		if err := p.BeforeDestruction(a.instance, a.beanName); err != nil {
			a.logger.Error("销毁感知后处理器执行失败",
				logging.Field{Key: "bean", Value: a.beanName},
				logging.Field{Key: "error", Value: err.Error()})
		}
	}

	if a.invokeNative {
		if err := a.instance.(Disposable).Destroy(); err != nil {
			a.logger.Error("Disposable 契约执行失败",
				logging.Field{Key: "bean", Value: a.beanName},
				logging.Field{Key: "error", Value: err.Error()})
		}
	}

	if a.methodName != "" {
		a.invokeCustomDestroyMethod()
	}
	return nil
}

func (a *DisposableAdapter) invokeCustomDestroyMethod() {
	method := reflect.ValueOf(a.instance).MethodByName(a.methodName)
	if !method.IsValid() {
		return
	}
	var args []reflect.Value
	if a.passForce {
		args = []reflect.Value{reflect.ValueOf(true)}
	}
	results := method.Call(args)
	if len(results) > 0 {
		last := results[len(results)-1]
		if last.Type().Implements(errType) && !last.IsNil() {
			a.logger.Error("自定义销毁方法执行失败",
				logging.Field{Key: "bean", Value: a.beanName},
				logging.Field{Key: "method", Value: a.methodName},
				logging.Field{Key: "error", Value: last.Interface().(error).Error()})
		}
	}
}

// requiresDestruction 判断该实例是否需要登记销毁句柄。
func requiresDestruction(instance any, def *BeanDefinition, processors []DestructionAwareBeanPostProcessor) bool {
	if instance == nil {
		return false
	}
	if _, ok := instance.(Disposable); ok {
		return true
	}
	if def != nil {
		if name := def.DestroyMethodName(); name != "" {
			if name != DestroyMethodInferred {
				return true
			}
			if inferDestroyMethod(instance) != "" {
				return true
			}
		}
	}
	for _, p := range processors {
		if processorRequiresDestruction(p, instance) {
			return true
		}
	}
	return false
}
