package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_StableOrderOnTies(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()
	require.NoError(t, m.EnsureCollection(ctx, "c", 2))

	_, err := m.Upsert(ctx, "c", []Record{
		{ID: "r0", Embedding: []float32{1, 1}},
		{ID: "r1", Embedding: []float32{1, 1}},
		{ID: "r2", Embedding: []float32{0, 1}},
	})
	require.NoError(t, err)

	hits, err := m.Search(ctx, "c", []float32{1, 1}, 2)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, "r0", hits[0].Record.ID)
	assert.Equal(t, "r1", hits[1].Record.ID)
}

func TestMemoryStore_MissingCollection(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()

	_, err := m.Upsert(ctx, "missing", []Record{{ID: "x"}})
	assert.Error(t, err)
	_, err = m.Search(ctx, "missing", []float32{1}, 1)
	assert.Error(t, err)
	_, err = m.Count(ctx, "missing")
	assert.Error(t, err)
	assert.NoError(t, m.DropCollection(ctx, "missing"))
}
