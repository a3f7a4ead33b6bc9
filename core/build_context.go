package core

import (
	"fmt"
	"reflect"
	"sync"

	"github.com/gobeans/beans/config"
	"github.com/gobeans/beans/hosting"
	"github.com/gobeans/beans/ioc"
	"github.com/gobeans/beans/logging"
)

// Configurator 配置器函数类型
// 配置器用于扩展应用程序，可以注册 Bean、添加托管服务等
type Configurator func(*BuildContext)

// BuildContext 构建上下文
// 提供给配置器的上下文环境，包含 Bean 工厂、配置、日志等核心组件
type BuildContext struct {
	// beans Bean 工厂
	beans *ioc.BeanFactory

	// configuration 配置对象
	configuration config.Configuration

	// logger 日志记录器
	logger logging.Logger

	// environment 环境信息
	environment Environment

	// cleanups 清理函数列表
	cleanups map[string]func()

	// hostedSeq 匿名托管服务的命名序号
	hostedSeq int

	mu sync.RWMutex
}

// AddHostedService 添加托管服务实例
// 服务以单例形式注册到 Bean 工厂，应用构建时统一发现并纳管
func (c *BuildContext) AddHostedService(service hosting.HostedService) {
	c.mu.Lock()
	c.hostedSeq++
	name := fmt.Sprintf("hostedService:%d", c.hostedSeq)
	c.mu.Unlock()

	if err := c.beans.RegisterSingleton(name, service); err != nil {
		panic(fmt.Sprintf("app: failed to register hosted service: %v", err))
	}
}

// SetCleanup 设置资源清理函数
func (c *BuildContext) SetCleanup(key string, cleanup func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cleanups[key] = cleanup
}

// Beans 返回底层的 Bean 工厂
// 允许直接使用 ioc.Register[T](ctx.Beans(), ...) 注册定义
func (c *BuildContext) Beans() *ioc.BeanFactory {
	return c.beans
}

// Container 返回底层的 Bean 工厂（别名 Beans）
// 用于保持 API 命名风格一致性
func (c *BuildContext) Container() *ioc.BeanFactory {
	return c.beans
}

// ResolveService 从工厂中按类型解析服务
// 注意：仅在必要时使用此方法，优先通过注入获取依赖
func (c *BuildContext) ResolveService(serviceType reflect.Type) (any, error) {
	return c.beans.GetBeanByType(serviceType)
}

// GetLogger 获取日志记录器
func (c *BuildContext) GetLogger() logging.Logger {
	return c.logger
}

// GetConfiguration 获取配置对象
func (c *BuildContext) GetConfiguration() config.Configuration {
	return c.configuration
}

// GetEnvironment 获取环境信息
func (c *BuildContext) GetEnvironment() Environment {
	return c.environment
}

// ConfigureOptions 配置选项模式（支持静态、快照和监听三种模式）
// T: 配置类型
// section: 配置节名称（例如 "app", "database"）
// 使用示例: core.ConfigureOptions[AppSetting](ctx, "app")
func ConfigureOptions[T any](ctx *BuildContext, section string) {
	cache := config.NewOptionsCache[T](ctx.configuration, section)

	// Option[T] 单例：应用生命周期内不变
	ioc.Register[config.Option[T]](ctx.beans, "option:"+section,
		ioc.WithValue(config.NewOption(cache.Get())))

	// OptionMonitor[T] 单例：实时读取最新配置
	ioc.Register[config.OptionMonitor[T]](ctx.beans, "optionMonitor:"+section,
		ioc.WithValue(config.NewOptionMonitor(cache)))

	// OptionSnapshot[T] 原型：每次解析时生成当前配置的快照
	ioc.Register[config.OptionSnapshot[T]](ctx.beans, "optionSnapshot:"+section,
		ioc.WithPrototype(),
		ioc.WithConstructor(func() config.OptionSnapshot[T] {
			return config.NewOptionSnapshot(cache.Snapshot())
		}))

	ctx.logger.Info("Configured options",
		logging.Field{Key: "type", Value: reflect.TypeOf((*T)(nil)).Elem().String()},
		logging.Field{Key: "section", Value: section})
}
