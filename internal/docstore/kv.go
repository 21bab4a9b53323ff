package docstore

import (
	"context"
	"sync"

	"tour-service/internal/repository"
	"tour-service/internal/storage"
)

// KeyValueStore is the string key-value store the documents live in.
type KeyValueStore interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}

var (
	_ KeyValueStore = (*repository.KVRepository)(nil)
	_ KeyValueStore = (*storage.RedisClient)(nil)
	_ KeyValueStore = (*MemoryKV)(nil)
	_ KeyValueStore = (*BoltKV)(nil)
)

// MemoryKV is an in-process KeyValueStore.
type MemoryKV struct {
	mu     sync.RWMutex
	values map[string]string
}

func NewMemoryKV() *MemoryKV {
	return &MemoryKV{values: make(map[string]string)}
}

func (m *MemoryKV) Get(_ context.Context, key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.values[key]
	return v, ok, nil
}

func (m *MemoryKV) Set(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = value
	return nil
}

func (m *MemoryKV) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.values, key)
	return nil
}
