package llm

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupTestRedis 连接本地 Redis (DB 15), 不可用时跳过测试。
func setupTestRedis(t *testing.T) *goredis.Client {
	t.Helper()
	client := goredis.NewClient(&goredis.Options{Addr: "localhost:6379", DB: 15})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		t.Skipf("redis not available: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })
	return client
}

type countingProvider struct {
	mockProvider
	calls atomic.Int32
	texts atomic.Int32
}

func (c *countingProvider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	c.calls.Add(1)
	c.texts.Add(int32(len(texts)))
	return c.mockProvider.Embed(ctx, texts)
}

func TestCachedEmbeddingProvider_Disabled(t *testing.T) {
	inner := &countingProvider{mockProvider: mockProvider{name: "inner"}}
	cached := NewCachedEmbeddingProvider(inner, nil, nil)

	_, err := cached.Embed(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	_, err = cached.Embed(context.Background(), []string{"a", "b"})
	require.NoError(t, err)

	assert.Equal(t, int32(2), inner.calls.Load())
	assert.Equal(t, "inner", cached.Name())
	assert.Equal(t, "mock-model", cached.Model())
}

func TestCachedEmbeddingProvider_Redis(t *testing.T) {
	client := setupTestRedis(t)
	ctx := context.Background()

	inner := &countingProvider{mockProvider: mockProvider{name: "inner"}}
	cached := NewCachedEmbeddingProvider(inner, client, &EmbeddingCacheConfig{
		Enabled:   true,
		TTL:       time.Minute,
		KeyPrefix: "test:emb:",
	})
	require.NoError(t, cached.ClearCache(ctx))
	t.Cleanup(func() { _ = cached.ClearCache(ctx) })

	first, err := cached.Embed(ctx, []string{"x", "y"})
	require.NoError(t, err)

	// 部分命中: 只有新文本发送到底层 provider
	second, err := cached.Embed(ctx, []string{"y", "z"})
	require.NoError(t, err)

	assert.Equal(t, first[1], second[0])
	assert.Equal(t, int32(2), inner.calls.Load())
	assert.Equal(t, int32(3), inner.texts.Load())
}
