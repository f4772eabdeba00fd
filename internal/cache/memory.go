package cache

import "sync"

// Memory 是进程级、无上限的内存层。写入后的值对之后任意 goroutine 的 Get 可见。
// 不做淘汰：条目一直存活到进程退出。
type Memory[V any] struct {
	mu      sync.RWMutex
	entries map[string]V
}

// NewMemory 构建空的内存层，整个进程共享一份实例。
func NewMemory[V any]() *Memory[V] {
	return &Memory[V]{entries: make(map[string]V)}
}

// Get 返回 key 对应的值，不会触发任何 I/O。
func (m *Memory[V]) Get(key string) (V, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	v, ok := m.entries[key]
	return v, ok
}

// Set 插入或覆盖 key 对应的值。
func (m *Memory[V]) Set(key string, value V) {
	m.mu.Lock()
	m.entries[key] = value
	m.mu.Unlock()
}

// Len 返回当前条目数量，供诊断接口使用。
func (m *Memory[V]) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

// Clear 丢弃全部条目，相当于进程重启后的冷内存。
func (m *Memory[V]) Clear() {
	m.mu.Lock()
	m.entries = make(map[string]V)
	m.mu.Unlock()
}
