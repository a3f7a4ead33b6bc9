package mongodb

import (
	"github.com/gobeans/beans/core"
	"github.com/gobeans/beans/ioc"
	"github.com/gobeans/beans/logging"
	"go.mongodb.org/mongo-driver/v2/mongo"
)

// Configure 返回 MongoDB 配置器
// 使用示例: builder.Configure(mongodb.Configure(func(b *mongodb.Builder) { ... }))
func Configure(options func(*Builder)) core.Configurator {
	return func(ctx *core.BuildContext) {
		builder := NewBuilder(ctx)
		if options != nil {
			options(builder)
		}

		factory, err := builder.Build(ctx.GetLogger())
		if err != nil {
			ctx.GetLogger().Fatal("Failed to build mongodb clients",
				logging.Field{Key: "error", Value: err.Error()})
		}
		if factory == nil {
			return
		}

		beans := ctx.Beans()
		ioc.Register[*MongoClientFactory](beans, "mongoClientFactory",
			ioc.WithValue(factory))

		factory.Each(func(name string, client *mongo.Client) {
			opts := []ioc.BeanOption{
				ioc.WithValue(client),
				ioc.WithQualifier(name),
			}
			if name == "default" {
				opts = append(opts, ioc.WithPrimary())
			}
			ioc.Register[*mongo.Client](beans, "mongo:"+name, opts...)

			ctx.GetLogger().Info("MongoDB client registered",
				logging.Field{Key: "bean", Value: "mongo:" + name})
		})

		// mongo.Client 通过 Disconnect(ctx) 断开，无法按 Close 惯例推断，统一在清理阶段断开
		ctx.SetCleanup("mongodb", func() {
			if err := factory.Close(); err != nil {
				ctx.GetLogger().Error("Failed to disconnect mongodb clients",
					logging.Field{Key: "error", Value: err.Error()})
			}
		})
	}
}
