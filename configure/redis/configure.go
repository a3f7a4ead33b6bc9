package redis

import (
	"github.com/gobeans/beans/core"
	"github.com/gobeans/beans/ioc"
	"github.com/gobeans/beans/logging"
	"github.com/redis/go-redis/v9"
)

// Configure 返回 Redis 配置器
// 使用示例: builder.Configure(redis.Configure(func(b *redis.Builder) { ... }))
func Configure(options func(*Builder)) core.Configurator {
	return func(ctx *core.BuildContext) {
		builder := NewBuilder()
		if options != nil {
			options(builder)
		}

		factory, err := builder.Build(ctx.GetLogger())
		if err != nil {
			ctx.GetLogger().Fatal("Failed to build redis clients",
				logging.Field{Key: "error", Value: err.Error()})
		}
		if factory == nil {
			return
		}

		beans := ctx.Beans()
		ioc.Register[*RedisClientFactory](beans, "redisClientFactory",
			ioc.WithValue(factory))

		// 每个客户端注册为具名 Bean：
		// 销毁阶段按 Close 惯例自动关闭，default 客户端为按类型注入的首选
		factory.Each(func(name string, client *redis.Client) {
			opts := []ioc.BeanOption{
				ioc.WithValue(client),
				ioc.WithQualifier(name),
				ioc.WithInferredDestroyMethod(),
			}
			if name == "default" {
				opts = append(opts, ioc.WithPrimary())
			}
			ioc.Register[*redis.Client](beans, "redis:"+name, opts...)

			ctx.GetLogger().Info("Redis client registered",
				logging.Field{Key: "bean", Value: "redis:" + name})
		})
	}
}
