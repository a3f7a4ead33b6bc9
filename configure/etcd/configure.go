package etcd

import (
	"github.com/gobeans/beans/core"
	"github.com/gobeans/beans/ioc"
	"github.com/gobeans/beans/logging"
	clientv3 "go.etcd.io/etcd/client/v3"
)

// Configure 返回 Etcd 配置器
// 使用示例: builder.Configure(etcd.Configure(func(b *etcd.Builder) { ... }))
func Configure(options func(*Builder)) core.Configurator {
	return func(ctx *core.BuildContext) {
		builder := NewBuilder(ctx)
		if options != nil {
			options(builder)
		}

		factory, err := builder.Build(ctx.GetLogger())
		if err != nil {
			ctx.GetLogger().Fatal("Failed to build etcd clients",
				logging.Field{Key: "error", Value: err.Error()})
		}
		if factory == nil {
			return
		}

		beans := ctx.Beans()
		ioc.Register[*EtcdClientFactory](beans, "etcdClientFactory",
			ioc.WithValue(factory))

		// 每个客户端注册为具名 Bean，销毁阶段按 Close 惯例自动关闭
		factory.Each(func(name string, client *clientv3.Client) {
			opts := []ioc.BeanOption{
				ioc.WithValue(client),
				ioc.WithQualifier(name),
				ioc.WithInferredDestroyMethod(),
			}
			if name == "default" {
				opts = append(opts, ioc.WithPrimary())
			}
			ioc.Register[*clientv3.Client](beans, "etcd:"+name, opts...)

			ctx.GetLogger().Info("Etcd client registered",
				logging.Field{Key: "bean", Value: "etcd:" + name})
		})
	}
}
