package ioc

// BeanPostProcessor 在 Bean 初始化前后介入的扩展点。
// 返回的实例会替换原实例（代理等场景）。
type BeanPostProcessor interface {
	BeforeInitialization(instance any, beanName string) (any, error)
	AfterInitialization(instance any, beanName string) (any, error)
}

// PropertiesPostProcessor 在实例化之后、初始化之前介入属性填充的扩展点。
// 注入处理器通过它执行字段与方法注入。
type PropertiesPostProcessor interface {
	BeanPostProcessor
	PostProcessProperties(instance any, beanName string, def *BeanDefinition) error
}

// DestructionAwareBeanPostProcessor 在 Bean 销毁前介入的扩展点。
type DestructionAwareBeanPostProcessor interface {
	BeforeDestruction(instance any, beanName string) error
}

// DestructionFilter 可选扩展：声明某实例是否确实需要销毁回调。
// 未实现该接口的销毁感知处理器被保守地视为需要调用。
type DestructionFilter interface {
	RequiresDestruction(instance any) bool
}

// processorRequiresDestruction 询问处理器是否需要为该实例执行销毁。
func processorRequiresDestruction(p DestructionAwareBeanPostProcessor, instance any) bool {
	if filter, ok := p.(DestructionFilter); ok {
		return filter.RequiresDestruction(instance)
	}
	return true
}
