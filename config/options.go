package config

import (
	"encoding/json"
	"fmt"
	"sync/atomic"
)

// Option 静态配置选项：应用启动时绑定一次，此后不变。
type Option[T any] interface {
	Value() T
}

// OptionSnapshot 快照配置选项：解析时深拷贝当前配置，持有者内部不变。
type OptionSnapshot[T any] interface {
	Value() T
}

// OptionMonitor 监听配置选项：始终返回最新绑定值，配置重载后自动刷新。
type OptionMonitor[T any] interface {
	Value() T
}

// OptionsCache 把某个配置节绑定到 T 并跟随配置重载刷新。读取无锁。
type OptionsCache[T any] struct {
	config  Configuration
	section string
	current atomic.Pointer[T]
}

// NewOptionsCache 绑定 section 并订阅配置重载。
// 初次绑定失败时退回零值，选项 bean 始终可解析。
func NewOptionsCache[T any](config Configuration, section string) *OptionsCache[T] {
	cache := &OptionsCache[T]{
		config:  config,
		section: section,
	}
	if err := cache.rebind(); err != nil {
		cache.current.Store(new(T))
	}
	if reloadable, ok := config.(interface{ OnReload(func()) }); ok {
		reloadable.OnReload(func() {
			// 重载绑定失败时保留上一次的有效值
			cache.rebind()
		})
	}
	return cache
}

func (c *OptionsCache[T]) rebind() error {
	next := new(T)
	if err := c.config.Bind(c.section, next); err != nil {
		return fmt.Errorf("config: 绑定配置节 '%s' 失败: %w", c.section, err)
	}
	c.current.Store(next)
	return nil
}

// Get 返回当前绑定值。
func (c *OptionsCache[T]) Get() T {
	return *c.current.Load()
}

// Snapshot 返回当前值的深拷贝，持有者与后续重载互不影响。
// 拷贝走 JSON 往返，不可序列化的类型退回直接副本。
func (c *OptionsCache[T]) Snapshot() T {
	current := c.Get()
	data, err := json.Marshal(current)
	if err != nil {
		return current
	}
	var snapshot T
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return current
	}
	return snapshot
}

type staticOption[T any] struct {
	value T
}

func (o *staticOption[T]) Value() T { return o.value }

// NewOption 创建静态配置选项。
func NewOption[T any](value T) Option[T] {
	return &staticOption[T]{value: value}
}

type snapshotOption[T any] struct {
	value T
}

func (o *snapshotOption[T]) Value() T { return o.value }

// NewOptionSnapshot 创建快照配置选项。
func NewOptionSnapshot[T any](snapshot T) OptionSnapshot[T] {
	return &snapshotOption[T]{value: snapshot}
}

type monitorOption[T any] struct {
	cache *OptionsCache[T]
}

func (o *monitorOption[T]) Value() T { return o.cache.Get() }

// NewOptionMonitor 创建监听配置选项。
func NewOptionMonitor[T any](cache *OptionsCache[T]) OptionMonitor[T] {
	return &monitorOption[T]{cache: cache}
}
