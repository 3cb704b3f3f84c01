package store

import (
	"context"
	"sync"
	"sync/atomic"
)

// mockBackend 记录调用次数的后端, 集合操作委托给内存实现。
type mockBackend struct {
	mem  *MemoryStore
	once sync.Once

	hasErr    error
	upsertErr error
	pingErr   error

	ensureCalls int32
	upsertCalls int32
	searchCalls int32
}

var _ VectorStore = (*mockBackend)(nil)

func (m *mockBackend) inner() *MemoryStore {
	m.once.Do(func() { m.mem = NewMemoryStore() })
	return m.mem
}

func (m *mockBackend) Name() string { return "mock" }

func (m *mockBackend) HasCollection(ctx context.Context, name string) (bool, error) {
	if m.hasErr != nil {
		return false, m.hasErr
	}
	return m.inner().HasCollection(ctx, name)
}

func (m *mockBackend) EnsureCollection(ctx context.Context, name string, dimension int) error {
	atomic.AddInt32(&m.ensureCalls, 1)
	return m.inner().EnsureCollection(ctx, name, dimension)
}

func (m *mockBackend) Upsert(ctx context.Context, name string, records []Record) (int, error) {
	atomic.AddInt32(&m.upsertCalls, 1)
	if m.upsertErr != nil {
		return 0, m.upsertErr
	}
	return m.inner().Upsert(ctx, name, records)
}

func (m *mockBackend) Search(ctx context.Context, name string, embedding []float32, topK int) ([]Hit, error) {
	atomic.AddInt32(&m.searchCalls, 1)
	return m.inner().Search(ctx, name, embedding, topK)
}

func (m *mockBackend) Count(ctx context.Context, name string) (int64, error) {
	return m.inner().Count(ctx, name)
}

func (m *mockBackend) DropCollection(ctx context.Context, name string) error {
	return m.inner().DropCollection(ctx, name)
}

func (m *mockBackend) ListCollections(ctx context.Context) ([]string, error) {
	return m.inner().ListCollections(ctx)
}

func (m *mockBackend) Ping(context.Context) error { return m.pingErr }

func (m *mockBackend) Close(context.Context) error { return nil }
