package core

import (
	"reflect"

	"github.com/gobeans/beans/ioc"
)

// AddSingleton 以名称 name 注册类型 T 的单例 Bean
// impl 可以是现成实例，也可以是构造函数 func(deps...) T / (T, error)
//
// 示例:
//
//	core.AddSingleton[IService](beans, "service", NewServiceImpl)
func AddSingleton[T any](f *ioc.BeanFactory, name string, impl any, opts ...ioc.BeanOption) {
	opts = append(implOption(impl), opts...)
	ioc.Register[T](f, name, opts...)
}

// AddPrototype 以名称 name 注册类型 T 的原型 Bean
// 每次解析创建新实例，容器不缓存、不负责销毁
//
// 示例:
//
//	core.AddPrototype[IWorker](beans, "worker", NewWorker)
func AddPrototype[T any](f *ioc.BeanFactory, name string, impl any, opts ...ioc.BeanOption) {
	opts = append(implOption(impl), opts...)
	opts = append(opts, ioc.WithPrototype())
	ioc.Register[T](f, name, opts...)
}

// implOption 实例走 WithValue，函数走 WithConstructor
func implOption(impl any) []ioc.BeanOption {
	if impl == nil {
		return nil
	}
	if isConstructor(impl) {
		return []ioc.BeanOption{ioc.WithConstructor(impl)}
	}
	return []ioc.BeanOption{ioc.WithValue(impl)}
}

func isConstructor(impl any) bool {
	t := reflect.TypeOf(impl)
	return t != nil && t.Kind() == reflect.Func && t.NumOut() > 0
}
