package config

import (
	"sync/atomic"
)

// snapshotStore 持有当前配置快照。读取无锁，重载时整体替换。
type snapshotStore struct {
	current atomic.Pointer[map[string]any]
}

func newSnapshotStore() *snapshotStore {
	s := &snapshotStore{}
	empty := make(map[string]any)
	s.current.Store(&empty)
	return s
}

// Load 返回当前快照。返回的 map 只读，重载产生新 map。
func (s *snapshotStore) Load() map[string]any {
	return *s.current.Load()
}

// Replace 原子替换快照。
func (s *snapshotStore) Replace(data map[string]any) {
	s.current.Store(&data)
}
