package core

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"reflect"
	"sync"
	"syscall"
	"time"

	"github.com/gobeans/beans/config"
	"github.com/gobeans/beans/hosting"
	"github.com/gobeans/beans/ioc"
	"github.com/gobeans/beans/logging"
)

// Application 应用程序接口
type Application interface {
	Run() error
	RunAsync(ctx context.Context) error
	Stop(ctx context.Context) error
	Services() *ioc.BeanFactory
	Configuration() config.Configuration
	Logger() logging.Logger
	Environment() Environment
	GetService(ptr any)
}

// ApplicationBuilder 应用程序构建器
type ApplicationBuilder struct {
	environment          string
	configBuilder        *config.ConfigurationBuilder
	loggingBuilder       *logging.LoggingBuilder
	serviceConfigurators []func(*ioc.BeanFactory)
	configurators        []Configurator
	shutdownTimeout      time.Duration
	mu                   sync.RWMutex
}

// NewApplicationBuilder 创建应用程序构建器
func NewApplicationBuilder() *ApplicationBuilder {
	return &ApplicationBuilder{
		environment:          "development",
		configBuilder:        config.NewConfigurationBuilder(),
		loggingBuilder:       logging.NewLoggingBuilder(),
		serviceConfigurators: make([]func(*ioc.BeanFactory), 0),
		configurators:        make([]Configurator, 0),
		shutdownTimeout:      30 * time.Second,
	}
}

// UseEnvironment 设置环境
func (b *ApplicationBuilder) UseEnvironment(env string) *ApplicationBuilder {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.environment = env
	return b
}

// ConfigureConfiguration 配置配置系统
func (b *ApplicationBuilder) ConfigureConfiguration(configure func(*config.ConfigurationBuilder)) *ApplicationBuilder {
	b.mu.Lock()
	defer b.mu.Unlock()
	if configure != nil {
		configure(b.configBuilder)
	}
	return b
}

// ConfigureLogging 配置日志系统
func (b *ApplicationBuilder) ConfigureLogging(configure func(*logging.LoggingBuilder)) *ApplicationBuilder {
	b.mu.Lock()
	defer b.mu.Unlock()
	if configure != nil {
		configure(b.loggingBuilder)
	}
	return b
}

// ConfigureServices 注册用户 Bean
// 回调在所有 Configure 配置器之后执行
func (b *ApplicationBuilder) ConfigureServices(configure func(*ioc.BeanFactory)) *ApplicationBuilder {
	b.mu.Lock()
	defer b.mu.Unlock()
	if configure != nil {
		b.serviceConfigurators = append(b.serviceConfigurators, configure)
	}
	return b
}

// Configure 添加配置器（支持链式调用和可变参数）
// 接受任何 func(*BuildContext) 类型的函数
func (b *ApplicationBuilder) Configure(configurators ...interface{}) *ApplicationBuilder {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, c := range configurators {
		if fn, ok := c.(func(*BuildContext)); ok {
			b.configurators = append(b.configurators, fn)
		} else if fn, ok := c.(Configurator); ok {
			b.configurators = append(b.configurators, fn)
		} else {
			panic(fmt.Sprintf("configurator must be func(*BuildContext), got %T", c))
		}
	}

	return b
}

// AddExtension 添加应用程序扩展
func (b *ApplicationBuilder) AddExtension(ext Extension) *ApplicationBuilder {
	validateExtension(ext)

	b.mu.Lock()
	defer b.mu.Unlock()

	if sc, ok := ext.(ServiceConfigurator); ok {
		b.serviceConfigurators = append(b.serviceConfigurators, sc.ConfigureServices)
	}
	if ac, ok := ext.(AppConfigurator); ok {
		b.configurators = append(b.configurators, ac.ConfigureBuilder)
	}

	return b
}

// AddOptions 注册配置选项（语法糖，简化配置选项注册）
// 使用示例: core.AddOptions[AppSetting](builder, "app")
func AddOptions[T any](b *ApplicationBuilder, section string) *ApplicationBuilder {
	return b.Configure(func(ctx *BuildContext) {
		ConfigureOptions[T](ctx, section)
	})
}

// AddTask 添加一个简单的后台任务
func (b *ApplicationBuilder) AddTask(task func(ctx context.Context) error) *ApplicationBuilder {
	b.Configure(func(ctx *BuildContext) {
		ctx.AddHostedService(&functionalService{task: task})
	})
	return b
}

// functionalService 函数式托管服务
type functionalService struct {
	task func(ctx context.Context) error
}

func (f *functionalService) Start(ctx context.Context) error {
	return f.task(ctx)
}

func (f *functionalService) Stop(ctx context.Context) error {
	return nil
}

// UseShutdownTimeout 设置关闭超时
func (b *ApplicationBuilder) UseShutdownTimeout(timeout time.Duration) *ApplicationBuilder {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.shutdownTimeout = timeout
	return b
}

// Build 构建应用程序
func (b *ApplicationBuilder) Build() Application {
	b.mu.Lock()
	defer b.mu.Unlock()

	// 构建可重载的配置
	reloadableConfig, err := b.configBuilder.BuildReloadable()
	if err != nil {
		panic(fmt.Sprintf("Failed to build configuration: %v", err))
	}

	// 构建日志工厂
	loggerFactory := b.loggingBuilder.Build()
	logger := loggerFactory.CreateLogger("Application")

	logger.Info("Building application",
		logging.Field{Key: "environment", Value: b.environment})

	environment := NewEnvironment(b.environment)

	// 创建 Bean 工厂
	factory := ioc.NewBeanFactory(ioc.WithLogger(logger))

	// 注册核心组件为单例，供用户 Bean 按类型注入
	mustRegisterSingleton(factory, "configuration", config.Configuration(reloadableConfig))
	mustRegisterSingleton(factory, "loggerFactory", loggerFactory)
	mustRegisterSingleton(factory, "logger", logger)
	mustRegisterSingleton(factory, "environment", environment)
	mustRegisterSingleton(factory, "beanFactory", factory)

	// 创建 BuildContext
	buildContext := &BuildContext{
		beans:         factory,
		configuration: reloadableConfig,
		logger:        logger,
		environment:   environment,
		cleanups:      make(map[string]func()),
	}

	// 执行所有配置器
	for _, configurator := range b.configurators {
		configurator(buildContext)
	}

	// 注册用户 Bean
	for _, configurator := range b.serviceConfigurators {
		configurator(factory)
	}

	// 急切初始化全部非延迟单例。
	// panic 而非 logger.Fatal：测试里可捕获，且带完整调用栈
	if err := factory.PreInstantiateSingletons(); err != nil {
		logger.Error("Failed to initialize singletons",
			logging.Field{Key: "error", Value: err.Error()})
		panic(fmt.Sprintf("Failed to initialize singletons: %v", err))
	}

	logger.Info("Bean factory initialized successfully")

	// 从工厂发现全部托管服务：
	// AddTask/AddHostedService 注册的实例与用户注册的 HostedService 定义统一纳管
	hostedType := reflect.TypeOf((*hosting.HostedService)(nil)).Elem()
	hostedEntries := make([]hostedEntry, 0)
	for _, name := range factory.NamesForType(hostedType) {
		instance, err := factory.GetBean(name)
		if err != nil {
			logger.Fatal("Failed to retrieve hosted service",
				logging.Field{Key: "bean", Value: name},
				logging.Field{Key: "error", Value: err.Error()})
		}
		hs, ok := instance.(hosting.HostedService)
		if !ok {
			logger.Fatal("Bean does not implement HostedService interface",
				logging.Field{Key: "bean", Value: name})
		}
		hostedEntries = append(hostedEntries, hostedEntry{name: name, service: hs})
	}

	return &application{
		beans:           factory,
		configuration:   reloadableConfig,
		logger:          logger,
		environment:     environment,
		hostedEntries:   hostedEntries,
		cleanups:        buildContext.cleanups,
		shutdownTimeout: b.shutdownTimeout,
		stopCh:          make(chan struct{}),
	}
}

func mustRegisterSingleton(f *ioc.BeanFactory, name string, instance any) {
	if err := f.RegisterSingleton(name, instance); err != nil {
		panic(fmt.Sprintf("Failed to register core bean '%s': %v", name, err))
	}
}

type hostedEntry struct {
	name    string
	service hosting.HostedService
}

// application 应用程序实现
type application struct {
	beans           *ioc.BeanFactory
	configuration   *config.ReloadableConfiguration
	logger          logging.Logger
	environment     Environment
	hostedEntries   []hostedEntry
	serviceManager  *hosting.HostedServiceManager
	cleanups        map[string]func()
	shutdownTimeout time.Duration
	stopCh          chan struct{}
	running         bool
	runCtx          context.Context
	runCancel       context.CancelFunc
	mu              sync.RWMutex
}

// Run 运行应用程序（阻塞）
func (a *application) Run() error {
	return a.RunAsync(context.Background())
}

// RunAsync 异步运行应用程序
func (a *application) RunAsync(ctx context.Context) error {
	a.mu.Lock()
	if a.running {
		a.mu.Unlock()
		return errors.New("application is already running")
	}
	a.running = true

	// 创建可取消的 context 用于运行服务
	a.runCtx, a.runCancel = context.WithCancel(ctx)
	a.mu.Unlock()

	a.logger.Info("Starting application",
		logging.Field{Key: "environment", Value: a.environment.Name()})

	// 启动支持监听的配置源，变更时触发配置重载
	watchables := a.watchableSources()
	for _, source := range watchables {
		if err := source.StartWatch(a.runCtx, func() {
			if err := a.configuration.Reload(); err != nil {
				a.logger.Error("Failed to reload configuration",
					logging.Field{Key: "error", Value: err.Error()})
			} else {
				a.logger.Info("Configuration reloaded successfully")
			}
		}); err != nil {
			a.logger.Warn("Failed to start config watch",
				logging.Field{Key: "source", Value: source.Name()},
				logging.Field{Key: "error", Value: err.Error()})
		}
	}

	// 创建托管服务管理器
	a.serviceManager = hosting.NewHostedServiceManager(a.logger)
	for _, entry := range a.hostedEntries {
		a.serviceManager.AddNamed(entry.name, entry.service)
	}

	errCh := a.serviceManager.StartAll(a.runCtx)

	a.logger.Info("Application started successfully")

	// 等待停止信号或错误
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	var runErr error

	select {
	case sig := <-sigCh:
		a.logger.Info("Received shutdown signal",
			logging.Field{Key: "signal", Value: sig.String()})
	case <-a.stopCh:
		a.logger.Info("Application stop requested")
	case <-ctx.Done():
		a.logger.Info("Context cancelled")
	case err := <-errCh:
		a.logger.Error("Hosted service failed, stopping application",
			logging.Field{Key: "error", Value: err.Error()})
		runErr = err
	}

	// 优雅关闭
	a.logger.Info("Shutting down application",
		logging.Field{Key: "timeout", Value: a.shutdownTimeout.String()})

	// 取消运行 context，通知所有服务停止
	a.runCancel()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.shutdownTimeout)
	defer cancel()

	if err := a.serviceManager.StopAll(shutdownCtx); err != nil {
		a.logger.Error("Failed to stop hosted services",
			logging.Field{Key: "error", Value: err.Error()})
	}
	a.serviceManager.Wait()

	// 停止配置监听
	for _, source := range watchables {
		source.StopWatch()
	}

	// 销毁全部单例 Bean：按注册逆序执行，依赖者先于被依赖者
	a.logger.Info("Destroying singleton beans")
	a.beans.DestroySingletons()

	// 执行所有清理函数
	if len(a.cleanups) > 0 {
		a.logger.Info("Running cleanup functions",
			logging.Field{Key: "count", Value: len(a.cleanups)})
		for key, cleanup := range a.cleanups {
			a.logger.Debug("Running cleanup",
				logging.Field{Key: "key", Value: key})
			cleanup()
		}
	}

	a.logger.Info("Application stopped")

	a.mu.Lock()
	a.running = false
	a.mu.Unlock()

	return runErr
}

// watchableSources 筛选支持变更监听的配置源
func (a *application) watchableSources() []config.WatchableSource {
	var out []config.WatchableSource
	for _, source := range a.configuration.Sources() {
		if ws, ok := source.(config.WatchableSource); ok {
			out = append(out, ws)
		}
	}
	return out
}

// Stop 停止应用程序
func (a *application) Stop(ctx context.Context) error {
	close(a.stopCh)
	return nil
}

// Services 获取 Bean 工厂
func (a *application) Services() *ioc.BeanFactory {
	return a.beans
}

// Configuration 获取配置
func (a *application) Configuration() config.Configuration {
	return a.configuration
}

// Logger 获取日志记录器
func (a *application) Logger() logging.Logger {
	return a.logger
}

// Environment 获取环境
func (a *application) Environment() Environment {
	return a.environment
}

// GetService 获取服务实例（通过指针参数）
//
// 使用示例：
//
//	var myService *MyService
//	app.GetService(&myService)
func (a *application) GetService(ptr any) {
	ptrValue := reflect.ValueOf(ptr)
	if ptrValue.Kind() != reflect.Pointer {
		panic(fmt.Sprintf("app: GetService argument must be a pointer, got %T", ptr))
	}

	elemValue := ptrValue.Elem()
	if !elemValue.CanSet() {
		panic("app: GetService argument must be settable")
	}

	targetType := elemValue.Type()
	instance, err := a.beans.GetBeanByType(targetType)
	if err != nil {
		panic(fmt.Sprintf("app: failed to get service %s: %v", targetType.String(), err))
	}

	elemValue.Set(reflect.ValueOf(instance))
}

// Environment 环境接口
type Environment interface {
	Name() string
	IsDevelopment() bool
	IsProduction() bool
	IsStaging() bool
}

// environment 环境实现
type environment struct {
	name string
}

// NewEnvironment 创建环境
func NewEnvironment(name string) Environment {
	return &environment{name: name}
}

func (e *environment) Name() string {
	return e.name
}

func (e *environment) IsDevelopment() bool {
	return e.name == "development"
}

func (e *environment) IsProduction() bool {
	return e.name == "production"
}

func (e *environment) IsStaging() bool {
	return e.name == "staging"
}
