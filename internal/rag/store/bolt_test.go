package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	boltopts "github.com/kart-io/sentinel-rag/pkg/options/bolt"
)

func newTestBolt(t *testing.T, path string) *BoltStore {
	t.Helper()
	b, err := NewBoltStore(&boltopts.Options{Path: path, OpenTimeout: time.Second})
	require.NoError(t, err)
	return b
}

func TestBoltStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "data", "vectors.db")

	b := newTestBolt(t, path)
	s := New(b)

	_, err := s.StoreChunks(ctx, "docA", testChunks("alpha", "beta", "gamma"), testEmbeddings)
	require.NoError(t, err)
	require.NoError(t, s.Close(ctx))

	// 重新打开后数据仍在
	s = New(newTestBolt(t, path))
	defer s.Close(ctx)

	stats := s.GetCollectionStats(ctx, "docA")
	assert.True(t, stats.Exists)
	assert.Equal(t, int64(3), stats.Count)

	results, err := s.SearchSimilar(ctx, testEmbeddings[1], "docA", SearchOptions{TopK: 2})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "beta", results[0].Chunk.Content)
	assert.Equal(t, 1, results[0].Chunk.Index)
	assert.InDelta(t, 1.0, results[0].Score, 1e-6)

	names, err := s.ListCollections(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"doc_docA"}, names)
}

func TestBoltStore_DropAndDimension(t *testing.T) {
	ctx := context.Background()
	b := newTestBolt(t, filepath.Join(t.TempDir(), "vectors.db"))
	defer b.Close(ctx)

	require.NoError(t, b.EnsureCollection(ctx, "doc_x", 2))
	require.NoError(t, b.EnsureCollection(ctx, "doc_x", 2))

	_, err := b.Upsert(ctx, "doc_x", []Record{{ID: "x_chunk_0", Embedding: []float32{1, 0, 0}}})
	assert.Error(t, err)

	n, err := b.Upsert(ctx, "doc_x", []Record{{ID: "x_chunk_0", Embedding: []float32{1, 0}}})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	require.NoError(t, b.DropCollection(ctx, "doc_x"))
	require.NoError(t, b.DropCollection(ctx, "doc_x"))

	exists, err := b.HasCollection(ctx, "doc_x")
	require.NoError(t, err)
	assert.False(t, exists)

	_, err = b.Search(ctx, "doc_x", []float32{1, 0}, 1)
	assert.Error(t, err)
	assert.NoError(t, b.Ping(ctx))
}
