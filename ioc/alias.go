package ioc

import (
	"fmt"
	"sync"
)

// AliasRegistry 管理 Bean 名称的别名。
// 别名可以链式指向（alias -> alias -> canonical），
// CanonicalName 负责解析整条链并返回规范名称。
type AliasRegistry struct {
	mu      sync.RWMutex
	aliases map[string]string // alias -> name
	// allowOverride 允许覆盖已有别名（指向不同目标时）
	allowOverride bool
}

// NewAliasRegistry 创建别名注册表。
func NewAliasRegistry() *AliasRegistry {
	return &AliasRegistry{
		aliases: make(map[string]string),
	}
}

// SetAllowAliasOverride 设置是否允许别名覆盖。
func (r *AliasRegistry) SetAllowAliasOverride(allow bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.allowOverride = allow
}

// RegisterAlias 注册别名。alias 与 name 相同时视为移除已有别名。
// 循环别名（a -> b 且 b -> a）是致命的配置错误。
func (r *AliasRegistry) RegisterAlias(name, alias string) error {
	if name == "" || alias == "" {
		return &ConfigurationError{Reason: "ioc: 别名与名称不能为空"}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if alias == name {
		delete(r.aliases, alias)
		return nil
	}

	if registered, exists := r.aliases[alias]; exists {
		if registered == name {
			return nil // 已注册，幂等
		}
		if !r.allowOverride {
			return &ConfigurationError{Reason: fmt.Sprintf(
				"ioc: 别名 '%s' 已指向 '%s'，无法改指向 '%s'", alias, registered, name)}
		}
	}

	if r.hasAliasLocked(alias, name) {
		return &ConfigurationError{Reason: fmt.Sprintf(
			"ioc: 检测到循环别名 '%s' -> '%s'", name, alias)}
	}

	r.aliases[alias] = name
	return nil
}

// hasAliasLocked 判断 alias 是否沿别名链（直接或间接）解析到 name。
// RegisterAlias 以 hasAliasLocked(alias, name) 调用：若 name 本身
// 已解析到 alias，再登记 alias -> name 就闭合成环。调用方必须持有锁。
func (r *AliasRegistry) hasAliasLocked(name, alias string) bool {
	registered, ok := r.aliases[alias]
	if !ok {
		return false
	}
	if registered == name {
		return true
	}
	return r.hasAliasLocked(name, registered)
}

// RemoveAlias 移除别名。
func (r *AliasRegistry) RemoveAlias(alias string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.aliases[alias]; ok {
		delete(r.aliases, alias)
		return true
	}
	return false
}

// IsAlias 判断给定名称是否为别名。
func (r *AliasRegistry) IsAlias(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.aliases[name]
	return ok
}

// Aliases 返回指向 name 的所有别名（包含间接别名）。
func (r *AliasRegistry) Aliases(name string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var result []string
	r.collectAliasesLocked(name, &result)
	return result
}

func (r *AliasRegistry) collectAliasesLocked(name string, result *[]string) {
	for alias, registered := range r.aliases {
		if registered == name {
			*result = append(*result, alias)
			r.collectAliasesLocked(alias, result)
		}
	}
}

// CanonicalName 解析别名链，返回规范名称。
// 非别名的名称原样返回。
func (r *AliasRegistry) CanonicalName(name string) string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	canonical := name
	for {
		resolved, ok := r.aliases[canonical]
		if !ok {
			return canonical
		}
		canonical = resolved
	}
}
