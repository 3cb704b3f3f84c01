package rag

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/sentinel-rag/internal/pkg/rag/chunker"
	ragopts "github.com/kart-io/sentinel-rag/pkg/options/rag"
)

func TestOptionsValidate(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		assert.NoError(t, NewOptions().Validate())
	})

	t.Run("unknown backend", func(t *testing.T) {
		opts := NewOptions()
		opts.RAG.Backend = "faiss"
		assert.ErrorContains(t, opts.Validate(), "rag.backend")
	})

	t.Run("only selected backend is checked", func(t *testing.T) {
		opts := NewOptions()
		opts.RAG.Backend = ragopts.BackendQdrant
		opts.Milvus.Address = ""
		assert.NoError(t, opts.Validate())

		opts.Qdrant.Address = ""
		assert.ErrorContains(t, opts.Validate(), "qdrant address")
	})

	t.Run("queue requires redis", func(t *testing.T) {
		opts := NewOptions()
		opts.Redis.Enabled = false
		assert.ErrorContains(t, opts.Validate(), "queue.enabled requires redis.enabled")

		opts.Queue.Enabled = false
		assert.NoError(t, opts.Validate())
	})
}

func TestOptionsNeedsRedis(t *testing.T) {
	opts := NewOptions()
	assert.True(t, opts.needsRedis())

	opts.Queue.Enabled = false
	assert.True(t, opts.needsRedis(), "embedding cache still uses redis")

	opts.Embedding.Cache.Enabled = false
	assert.False(t, opts.needsRedis())
}

func TestOptionsPipelineConfig(t *testing.T) {
	opts := NewOptions()
	opts.RAG.ChunkSize = 500
	opts.RAG.ChunkOverlap = 50
	opts.RAG.Strategy = "chapters"
	opts.RAG.TopK = 8
	opts.RAG.MinScore = 0.3

	cfg := opts.pipelineConfig()
	assert.Equal(t, 500, cfg.Chunking.ChunkSize)
	assert.Equal(t, 50, cfg.Chunking.ChunkOverlap)
	assert.Equal(t, chunker.StrategyChapters, cfg.Chunking.Strategy)
	assert.True(t, cfg.Chunking.Preprocess)
	assert.Equal(t, 8, cfg.TopK)
	assert.InDelta(t, 0.3, cfg.MinScore, 1e-9)
}

func TestRunInlineMemoryBackend(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := l.Addr().String()
	require.NoError(t, l.Close())

	opts := NewOptions()
	opts.RAG.Backend = ragopts.BackendMemory
	opts.Queue.Enabled = false
	opts.Embedding.Cache.Enabled = false
	opts.HTTP.Addr = addr
	opts.HTTP.Mode = "test"
	require.NoError(t, opts.Complete())
	require.NoError(t, opts.Validate())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- Run(ctx, opts) }()

	require.Eventually(t, func() bool {
		conn, err := net.DialTimeout("tcp", addr, 100*time.Millisecond)
		if err != nil {
			return false
		}
		_ = conn.Close()
		return true
	}, 5*time.Second, 50*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("service did not stop")
	}
}
