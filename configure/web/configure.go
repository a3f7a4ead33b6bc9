package web

import (
	"github.com/gin-gonic/gin"
	"github.com/gobeans/beans/core"
	"github.com/gobeans/beans/ioc"
	"github.com/gobeans/beans/logging"
)

// Configure 返回 Web 配置器
// 使用示例: builder.Configure(web.Configure(func(b *web.Builder) { ... }))
func Configure(options func(*Builder)) core.Configurator {
	return func(ctx *core.BuildContext) {
		builder := NewBuilder(ctx.GetLogger())
		if options != nil {
			options(builder)
		}

		beans := ctx.Beans()

		// 传入容器，Host 启动时从中解析控制器
		webHost := builder.Build(beans)

		// 引擎注册为 Bean，便于其他组件追加路由或中间件
		ioc.Register[*gin.Engine](beans, "ginEngine", ioc.WithValue(builder.Engine()))

		ctx.AddHostedService(webHost)

		ctx.GetLogger().Info("Web host configured",
			logging.Field{Key: "port", Value: webHost.port})
	}
}
