package mongodb

import (
	"fmt"

	"github.com/gobeans/beans/core"
	"github.com/gobeans/beans/logging"
)

// Builder MongoDB 配置构建器
type Builder struct {
	core.BaseBuilder
	configs map[string]MongoOptions
	order   []string
	errors  []error
}

// NewBuilder 创建 MongoDB 构建器
func NewBuilder(ctx *core.BuildContext) *Builder {
	return &Builder{
		BaseBuilder: core.NewBaseBuilder(ctx),
		configs:     make(map[string]MongoOptions),
		errors:      make([]error, 0),
	}
}

// AddClient 添加一个 MongoDB 客户端配置
func (b *Builder) AddClient(name string, configure func(*MongoOptions)) *Builder {
	if _, exists := b.configs[name]; exists {
		b.errors = append(b.errors, fmt.Errorf("mongodb client '%s' already configured", name))
		return b
	}

	opts := NewDefaultOptions(name)
	if configure != nil {
		configure(opts)
	}

	if err := opts.Validate(); err != nil {
		b.errors = append(b.errors, fmt.Errorf("invalid mongodb configuration for '%s': %w", name, err))
		return b
	}

	b.configs[name] = *opts
	b.order = append(b.order, name)
	return b
}

// Build 构建 MongoDB 客户端工厂
func (b *Builder) Build(logger logging.Logger) (*MongoClientFactory, error) {
	if len(b.errors) > 0 {
		return nil, fmt.Errorf("mongodb configuration errors: %v", b.errors)
	}

	if len(b.configs) == 0 {
		return nil, nil // 没有配置任何 MongoDB 客户端
	}

	factory := NewMongoClientFactory()

	for _, name := range b.order {
		opts := b.configs[name]
		if err := factory.Register(opts); err != nil {
			return nil, fmt.Errorf("failed to register mongodb client '%s': %w", opts.Name, err)
		}

		logger.Info("mongodb client registered",
			logging.Field{Key: "name", Value: opts.Name},
			logging.Field{Key: "uri", Value: opts.Uri})
	}

	return factory, nil
}
