package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

type memoryCollection struct {
	dimension int
	order     []string
	records   map[string]Record
}

// MemoryStore 进程内向量存储, 用于测试与本地开发。
type MemoryStore struct {
	mu          sync.RWMutex
	collections map[string]*memoryCollection
}

var _ VectorStore = (*MemoryStore)(nil)

// NewMemoryStore 创建内存存储。
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{collections: make(map[string]*memoryCollection)}
}

func (m *MemoryStore) Name() string { return "memory" }

func (m *MemoryStore) HasCollection(_ context.Context, name string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.collections[name]
	return ok, nil
}

func (m *MemoryStore) EnsureCollection(_ context.Context, name string, dimension int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.collections[name]; ok {
		return nil
	}
	m.collections[name] = &memoryCollection{
		dimension: dimension,
		records:   make(map[string]Record),
	}
	return nil
}

func (m *MemoryStore) Upsert(_ context.Context, name string, records []Record) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.collections[name]
	if !ok {
		return 0, fmt.Errorf("collection %s not found", name)
	}
	for _, r := range records {
		if len(r.Embedding) != c.dimension {
			return 0, fmt.Errorf("record %s has dimension %d, collection expects %d", r.ID, len(r.Embedding), c.dimension)
		}
	}
	for _, r := range records {
		if _, exists := c.records[r.ID]; !exists {
			c.order = append(c.order, r.ID)
		}
		c.records[r.ID] = r
	}
	return len(records), nil
}

func (m *MemoryStore) Search(_ context.Context, name string, embedding []float32, topK int) ([]Hit, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	c, ok := m.collections[name]
	if !ok {
		return nil, fmt.Errorf("collection %s not found", name)
	}
	records := make([]Record, 0, len(c.order))
	for _, id := range c.order {
		records = append(records, c.records[id])
	}
	return rankByCosine(records, embedding, topK), nil
}

func (m *MemoryStore) Count(_ context.Context, name string) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	c, ok := m.collections[name]
	if !ok {
		return 0, fmt.Errorf("collection %s not found", name)
	}
	return int64(len(c.records)), nil
}

func (m *MemoryStore) DropCollection(_ context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.collections, name)
	return nil
}

func (m *MemoryStore) ListCollections(_ context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	names := make([]string, 0, len(m.collections))
	for name := range m.collections {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

func (m *MemoryStore) Ping(context.Context) error { return nil }

func (m *MemoryStore) Close(context.Context) error { return nil }
