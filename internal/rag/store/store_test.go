package store

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/sentinel-rag/internal/pkg/rag/chunker"
	"github.com/kart-io/sentinel-rag/pkg/errors"
)

func testChunks(texts ...string) []chunker.Chunk {
	chunks := make([]chunker.Chunk, len(texts))
	offset := 0
	for i, t := range texts {
		chunks[i] = chunker.Chunk{
			Content: t,
			Index:   i,
			Metadata: chunker.Metadata{
				StartChar: offset,
				EndChar:   offset + len(t),
				Length:    len(t),
			},
		}
		offset += len(t)
	}
	return chunks
}

var testEmbeddings = [][]float32{
	{1, 0, 0},
	{0, 1, 0},
	{0, 0, 1},
}

func TestCollectionNameAndRecordID(t *testing.T) {
	assert.Equal(t, "doc_book_x2d42", CollectionName("book-42"))
	assert.Equal(t, "doc_book__42", CollectionName("book_42"))
	assert.Equal(t, "doc_abc", CollectionName("abc"))
	assert.NotEqual(t, CollectionName("a-b"), CollectionName("a_b"))
	assert.NotEqual(t, CollectionName("a.b"), CollectionName("a_b"))
	assert.Equal(t, "book-42_chunk_3", RecordID("book-42", 3))
}

func TestStoreChunks(t *testing.T) {
	ctx := context.Background()
	s := New(NewMemoryStore())

	res, err := s.StoreChunks(ctx, "docA", testChunks("alpha", "beta", "gamma"), testEmbeddings)
	require.NoError(t, err)
	assert.Equal(t, "doc_docA", res.CollectionName)
	assert.Equal(t, 3, res.StoredCount)
	assert.Equal(t, 3, res.Dimensions)

	stats := s.GetCollectionStats(ctx, "docA")
	assert.True(t, stats.Exists)
	assert.Equal(t, int64(3), stats.Count)
}

func TestStoreChunks_Reingest(t *testing.T) {
	ctx := context.Background()
	s := New(NewMemoryStore())

	_, err := s.StoreChunks(ctx, "docA", testChunks("alpha", "beta", "gamma"), testEmbeddings)
	require.NoError(t, err)
	_, err = s.StoreChunks(ctx, "docA", testChunks("alpha v2", "beta v2", "gamma v2"), testEmbeddings)
	require.NoError(t, err)

	assert.Equal(t, int64(3), s.GetCollectionStats(ctx, "docA").Count)

	results, err := s.SearchSimilar(ctx, testEmbeddings[1], "docA", SearchOptions{TopK: 1})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "beta v2", results[0].Chunk.Content)
}

func TestStoreChunks_LengthMismatch(t *testing.T) {
	backend := &mockBackend{}
	s := New(backend)

	_, err := s.StoreChunks(context.Background(), "docA", testChunks("a", "b"), testEmbeddings)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrRAGInvariantViolation))
	assert.Zero(t, backend.ensureCalls)
	assert.Zero(t, backend.upsertCalls)
}

func TestStoreChunks_MixedDimensions(t *testing.T) {
	s := New(NewMemoryStore())

	_, err := s.StoreChunks(context.Background(), "docA", testChunks("a", "b"), [][]float32{{1, 0}, {1, 0, 0}})
	assert.True(t, errors.Is(err, errors.ErrRAGInvariantViolation))
}

func TestStoreChunks_Empty(t *testing.T) {
	backend := &mockBackend{}
	s := New(backend)

	res, err := s.StoreChunks(context.Background(), "docA", nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "doc_docA", res.CollectionName)
	assert.Zero(t, res.StoredCount)
	assert.Zero(t, backend.ensureCalls)
}

func TestStoreChunks_BackendFailure(t *testing.T) {
	s := New(&mockBackend{upsertErr: fmt.Errorf("connection reset")})

	_, err := s.StoreChunks(context.Background(), "docA", testChunks("a"), [][]float32{{1, 0}})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrRAGProviderCall))
	assert.Contains(t, err.Error(), "connection reset")
}

func TestSearchSimilar_ExactVector(t *testing.T) {
	ctx := context.Background()
	s := New(NewMemoryStore())

	_, err := s.StoreChunks(ctx, "docA", testChunks("alpha", "beta", "gamma"), testEmbeddings)
	require.NoError(t, err)

	results, err := s.SearchSimilar(ctx, testEmbeddings[2], "docA", SearchOptions{TopK: 3})
	require.NoError(t, err)
	require.Len(t, results, 3)

	assert.Equal(t, "gamma", results[0].Chunk.Content)
	assert.Equal(t, 2, results[0].Chunk.Index)
	assert.Equal(t, "docA", results[0].DocumentID)
	assert.InDelta(t, 1.0, results[0].Score, 1e-6)
	assert.InDelta(t, 0.0, results[0].Distance, 1e-6)

	for i := 1; i < len(results); i++ {
		assert.LessOrEqual(t, results[i].Score, results[i-1].Score)
		assert.InDelta(t, 1/(1+results[i].Distance), results[i].Score, 1e-9)
	}
}

func TestSearchSimilar_MinScore(t *testing.T) {
	ctx := context.Background()
	s := New(NewMemoryStore())

	_, err := s.StoreChunks(ctx, "docA", testChunks("alpha", "beta", "gamma"), testEmbeddings)
	require.NoError(t, err)

	// 正交向量的距离为 1, 得分 0.5
	results, err := s.SearchSimilar(ctx, testEmbeddings[0], "docA", SearchOptions{TopK: 3, MinScore: 0.6})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "alpha", results[0].Chunk.Content)
}

func TestSearchSimilar_MissingCollection(t *testing.T) {
	backend := &mockBackend{}
	s := New(backend)

	results, err := s.SearchSimilar(context.Background(), []float32{1, 0}, "nope", SearchOptions{})
	require.NoError(t, err)
	assert.NotNil(t, results)
	assert.Empty(t, results)
	assert.Zero(t, backend.searchCalls)
}

func TestSearchGlobal(t *testing.T) {
	ctx := context.Background()
	mem := NewMemoryStore()
	s := New(mem)

	_, err := s.StoreChunks(ctx, "docA", testChunks("alpha", "beta"), testEmbeddings[:2])
	require.NoError(t, err)
	_, err = s.StoreChunks(ctx, "docB", testChunks("gamma"), testEmbeddings[2:])
	require.NoError(t, err)
	require.NoError(t, mem.EnsureCollection(ctx, "unrelated", 3))

	results, err := s.SearchGlobal(ctx, []float32{1, 0, 0}, SearchOptions{TopK: 5, MinScore: 0.6})
	require.NoError(t, err)

	require.Len(t, results, 1)
	require.Contains(t, results, "doc_docA")
	assert.Equal(t, "alpha", results["doc_docA"][0].Chunk.Content)
}

func TestStore_SimilarIDsStayIsolated(t *testing.T) {
	ctx := context.Background()
	s := New(NewMemoryStore())

	_, err := s.StoreChunks(ctx, "a_b", testChunks("secret of a_b"), testEmbeddings[:1])
	require.NoError(t, err)

	for _, other := range []string{"a-b", "a.b", "a b"} {
		results, err := s.SearchSimilar(ctx, testEmbeddings[0], other, SearchOptions{})
		require.NoError(t, err)
		assert.Empty(t, results, "search in %q must not see a_b", other)

		require.NoError(t, s.DeleteCollection(ctx, other))
	}

	stats := s.GetCollectionStats(ctx, "a_b")
	assert.True(t, stats.Exists)
	assert.Equal(t, int64(1), stats.Count)

	results, err := s.SearchSimilar(ctx, testEmbeddings[0], "a_b", SearchOptions{})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "secret of a_b", results[0].Chunk.Content)
}

func TestDeleteCollection(t *testing.T) {
	ctx := context.Background()
	s := New(NewMemoryStore())

	_, err := s.StoreChunks(ctx, "docA", testChunks("alpha"), testEmbeddings[:1])
	require.NoError(t, err)

	require.NoError(t, s.DeleteCollection(ctx, "docA"))
	_, cached := s.handles.Get("doc_docA")
	assert.False(t, cached)

	stats := s.GetCollectionStats(ctx, "docA")
	assert.Equal(t, CollectionStats{Name: "doc_docA", Count: 0, Exists: false}, stats)

	results, err := s.SearchSimilar(ctx, testEmbeddings[0], "docA", SearchOptions{})
	require.NoError(t, err)
	assert.Empty(t, results)

	// 删除不存在的集合不报错
	require.NoError(t, s.DeleteCollection(ctx, "docA"))
}

func TestGetCollectionStats_BackendError(t *testing.T) {
	s := New(&mockBackend{hasErr: fmt.Errorf("unreachable")})

	stats := s.GetCollectionStats(context.Background(), "docA")
	assert.False(t, stats.Exists)
	assert.Zero(t, stats.Count)
}

func TestHealthCheck(t *testing.T) {
	assert.True(t, New(NewMemoryStore()).HealthCheck(context.Background()))
	assert.False(t, New(&mockBackend{pingErr: fmt.Errorf("down")}).HealthCheck(context.Background()))
}

func TestNewBackend(t *testing.T) {
	b, err := NewBackend("memory", BackendOptions{})
	require.NoError(t, err)
	assert.Equal(t, "memory", b.Name())

	_, err = NewBackend("elastic", BackendOptions{})
	assert.Error(t, err)
}
