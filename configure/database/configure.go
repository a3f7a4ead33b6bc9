package database

import (
	"github.com/gobeans/beans/core"
	"github.com/gobeans/beans/ioc"
	"github.com/gobeans/beans/logging"
	"gorm.io/gorm"
)

// Configure 返回数据库配置器
func Configure(options func(*Builder)) core.Configurator {
	return func(ctx *core.BuildContext) {
		builder := NewBuilder(ctx)
		if options != nil {
			options(builder)
		}

		factory, err := builder.Build(ctx.GetLogger())
		if err != nil {
			ctx.GetLogger().Fatal("Failed to build databases",
				logging.Field{Key: "error", Value: err.Error()})
		}
		if factory == nil {
			return
		}

		beans := ctx.Beans()
		ioc.Register[*DatabaseFactory](beans, "databaseFactory",
			ioc.WithValue(factory))

		// 每个实例注册为具名 Bean，default 实例为按类型注入的首选
		factory.Each(func(name string, db *gorm.DB) {
			opts := []ioc.BeanOption{
				ioc.WithValue(db),
				ioc.WithQualifier(name),
			}
			if name == "default" {
				opts = append(opts, ioc.WithPrimary())
			}
			ioc.Register[*gorm.DB](beans, "db:"+name, opts...)

			ctx.GetLogger().Info("Database registered",
				logging.Field{Key: "bean", Value: "db:" + name})
		})

		// gorm.DB 没有 Close 方法，连接池通过工厂统一关闭
		ctx.SetCleanup("database", func() {
			ctx.GetLogger().Info("Closing database connections")
			if err := factory.Close(); err != nil {
				ctx.GetLogger().Error("Failed to close databases",
					logging.Field{Key: "error", Value: err.Error()})
			}
		})
	}
}
