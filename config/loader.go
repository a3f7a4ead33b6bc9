package config

import (
	"sync"
)

// ReloadableConfiguration 可重载配置
// 读取走 atomic 快照，无锁；Reload 重新加载全部配置源并原子替换快照
type ReloadableConfiguration struct {
	sources []ConfigurationSource
	store   *snapshotStore

	reloadMu sync.Mutex

	cbMu      sync.RWMutex
	callbacks []func()
}

// BuildReloadable 构建可重载配置
func (b *ConfigurationBuilder) BuildReloadable() (*ReloadableConfiguration, error) {
	c := &ReloadableConfiguration{
		sources: b.Sources(),
		store:   newSnapshotStore(),
	}
	if err := c.Reload(); err != nil {
		return nil, err
	}
	return c, nil
}

// Reload 重新加载所有配置源并替换快照，之后触发 OnReload 回调
func (c *ReloadableConfiguration) Reload() error {
	c.reloadMu.Lock()
	data, err := loadAll(c.sources)
	if err != nil {
		c.reloadMu.Unlock()
		return err
	}
	c.store.Replace(data)
	c.reloadMu.Unlock()

	c.cbMu.RLock()
	callbacks := make([]func(), len(c.callbacks))
	copy(callbacks, c.callbacks)
	c.cbMu.RUnlock()
	for _, fn := range callbacks {
		fn()
	}
	return nil
}

// OnReload 注册配置重载回调
func (c *ReloadableConfiguration) OnReload(fn func()) {
	c.cbMu.Lock()
	c.callbacks = append(c.callbacks, fn)
	c.cbMu.Unlock()
}

// Sources 返回配置源列表，调用方可以从中筛选 WatchableSource 启动监听
func (c *ReloadableConfiguration) Sources() []ConfigurationSource {
	out := make([]ConfigurationSource, len(c.sources))
	copy(out, c.sources)
	return out
}

func (c *ReloadableConfiguration) snapshot() map[string]any {
	return c.store.Load()
}

// Get 获取配置值
func (c *ReloadableConfiguration) Get(key string) string {
	return valueToString(lookupPath(c.snapshot(), key))
}

// GetWithDefault 获取配置值，如果不存在则返回默认值
func (c *ReloadableConfiguration) GetWithDefault(key, defaultValue string) string {
	value := c.Get(key)
	if value == "" {
		return defaultValue
	}
	return value
}

// GetInt 获取整数配置值
func (c *ReloadableConfiguration) GetInt(key string) (int, error) {
	return valueToInt(key, lookupPath(c.snapshot(), key))
}

// GetBool 获取布尔配置值
func (c *ReloadableConfiguration) GetBool(key string) (bool, error) {
	return valueToBool(key, lookupPath(c.snapshot(), key))
}

// GetSection 获取配置节（当前快照的只读视图）
func (c *ReloadableConfiguration) GetSection(key string) Configuration {
	return sectionOf(c.snapshot(), key)
}

// Bind 绑定配置到结构体
func (c *ReloadableConfiguration) Bind(key string, target any) error {
	return bindPath(c.snapshot(), key, target)
}

// GetAll 获取所有配置
func (c *ReloadableConfiguration) GetAll() map[string]any {
	result := make(map[string]any)
	mergeMaps(result, c.snapshot())
	return result
}
