package store

import (
	"context"
	"sync"
	"time"

	"github.com/rushteam/fraudkit/core"
)

// MemoryStore 是内存实现的 Store，用于测试/开发，进程重启后数据丢失。
// 制品写入不带 TTL；传入 TTL 时只在读取时判断过期，过期条目在下一次写入时清除，没有后台协程。
// 读写都会拷贝字节，调用方修改返回值不会影响已存储的制品。
type MemoryStore struct {
	mu   sync.RWMutex
	data map[string]*entry
	now  func() time.Time
}

type entry struct {
	value []byte
	ttl   *time.Time
}

func (e *entry) expired(now time.Time) bool {
	return e.ttl != nil && now.After(*e.ttl)
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string]*entry), now: time.Now}
}

func (m *MemoryStore) Name() string { return "memory" }

func (m *MemoryStore) Get(ctx context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	e, ok := m.data[key]
	if !ok || e.expired(m.now()) {
		return nil, core.ErrStoreNotFound
	}
	return clone(e.value), nil
}

func (m *MemoryStore) Set(ctx context.Context, key string, value []byte, ttl ...int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.prune()
	m.data[key] = &entry{value: clone(value), ttl: m.expireAt(ttl)}
	return nil
}

func (m *MemoryStore) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.data, key)
	return nil
}

func (m *MemoryStore) BatchGet(ctx context.Context, keys []string) (map[string][]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make(map[string][]byte, len(keys))
	now := m.now()
	for _, k := range keys {
		e, ok := m.data[k]
		if !ok || e.expired(now) {
			continue
		}
		result[k] = clone(e.value)
	}
	return result, nil
}

// BatchSet 在同一把写锁内写入整批，读者要么看到整批，要么都看不到
func (m *MemoryStore) BatchSet(ctx context.Context, kvs map[string][]byte, ttl ...int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.prune()
	expire := m.expireAt(ttl)
	for k, v := range kvs {
		m.data[k] = &entry{value: clone(v), ttl: expire}
	}
	return nil
}

func (m *MemoryStore) Close() error { return nil }

// prune 删除已过期条目，调用方持有写锁
func (m *MemoryStore) prune() {
	now := m.now()
	for k, e := range m.data {
		if e.expired(now) {
			delete(m.data, k)
		}
	}
}

func (m *MemoryStore) expireAt(ttl []int) *time.Time {
	if len(ttl) > 0 && ttl[0] > 0 {
		t := m.now().Add(time.Duration(ttl[0]) * time.Second)
		return &t
	}
	return nil
}

func clone(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

var _ core.Store = (*MemoryStore)(nil)
