package beans

import (
	"github.com/gobeans/beans/core"
)

// Run 构建并运行应用程序（阻塞直到退出信号）
// 便捷入口，等价于 NewApplicationBuilder + 配置器 + Build().Run()
func Run(configurators ...core.Configurator) error {
	builder := core.NewApplicationBuilder()
	for _, c := range configurators {
		builder.Configure(c)
	}
	return builder.Build().Run()
}
