package store

import (
	"context"
	"sync"

	"golang.org/x/sync/singleflight"
)

// CollectionHandle 已确认存在的集合。Dimension 为 0 表示维度未知。
type CollectionHandle struct {
	Name      string
	Dimension int
}

// HandleCache 进程内集合句柄缓存。并发的首次创建通过 singleflight 合并为一次后端调用。
type HandleCache struct {
	mu      sync.RWMutex
	handles map[string]*CollectionHandle
	group   singleflight.Group
}

// NewHandleCache 创建句柄缓存。
func NewHandleCache() *HandleCache {
	return &HandleCache{handles: make(map[string]*CollectionHandle)}
}

// Get 返回已缓存的句柄。
func (c *HandleCache) Get(name string) (*CollectionHandle, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	h, ok := c.handles[name]
	return h, ok
}

// Put 缓存句柄, 已存在时覆盖。
func (c *HandleCache) Put(h *CollectionHandle) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handles[h.Name] = h
}

// GetOrCreate 返回缓存句柄, 不存在时调用 create 并缓存结果。
// 同名集合的并发调用共享同一次 create。
func (c *HandleCache) GetOrCreate(ctx context.Context, name string, dimension int, create func(ctx context.Context) error) (*CollectionHandle, error) {
	if h, ok := c.Get(name); ok {
		return h, nil
	}

	v, err, _ := c.group.Do(name, func() (any, error) {
		if h, ok := c.Get(name); ok {
			return h, nil
		}
		if err := create(ctx); err != nil {
			return nil, err
		}
		h := &CollectionHandle{Name: name, Dimension: dimension}
		c.Put(h)
		return h, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*CollectionHandle), nil
}

// Evict 移除句柄。
func (c *HandleCache) Evict(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.handles, name)
}

// Len 返回缓存的句柄数量。
func (c *HandleCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.handles)
}

// Close 清空缓存。
func (c *HandleCache) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handles = make(map[string]*CollectionHandle)
}
