package cron

import (
	"github.com/gobeans/beans/core"
	"github.com/gobeans/beans/logging"
)

// Configure 返回 Cron 配置器
// 使用示例: builder.Configure(cron.Configure(func(b *cron.Builder) { ... }))
func Configure(options func(*Builder)) core.Configurator {
	return func(ctx *core.BuildContext) {
		builder := NewBuilder()
		if options != nil {
			options(builder)
		}

		// 构建 CronService（需要 Bean 工厂来处理依赖注入的任务）
		cronSvc, err := builder.build(ctx, ctx.GetLogger())
		if err != nil {
			ctx.GetLogger().Fatal("Failed to build cron service",
				logging.Field{Key: "error", Value: err.Error()})
		}

		// 注册为托管服务，由应用统一启停
		ctx.AddHostedService(cronSvc)

		ctx.GetLogger().Info("Cron service configured")
	}
}
