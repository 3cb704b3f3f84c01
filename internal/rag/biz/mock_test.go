package biz

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/kart-io/sentinel-rag/internal/pkg/rag/chunker"
	"github.com/kart-io/sentinel-rag/pkg/llm"
)

// fakeProvider 返回固定向量的嵌入供应商。vectors 为空时每个文本返回 [1, 0]。
type fakeProvider struct {
	name    string
	vectors [][]float32
	calls   *int32
}

var _ llm.EmbeddingProvider = (*fakeProvider)(nil)

func (f *fakeProvider) Name() string  { return f.name }
func (f *fakeProvider) Model() string { return "fake-model" }

func (f *fakeProvider) Embed(_ context.Context, texts []string) ([][]float32, error) {
	if f.calls != nil {
		atomic.AddInt32(f.calls, 1)
	}
	if f.vectors != nil {
		return f.vectors, nil
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{1, 0}
	}
	return out, nil
}

func (f *fakeProvider) EmbedSingle(ctx context.Context, text string) ([]float32, error) {
	return llm.EmbedSingle(ctx, f, text)
}

// mockEmbedder 可注入错误或 panic 的 EmbeddingGenerator。
type mockEmbedder struct {
	err      error
	panicMsg string
	dim      int
}

var _ EmbeddingGenerator = (*mockEmbedder)(nil)

func (m *mockEmbedder) vector(i int) []float32 {
	v := make([]float32, m.dim)
	v[i%m.dim] = 1
	return v
}

func (m *mockEmbedder) GenerateEmbeddings(_ context.Context, chunks []chunker.Chunk, _ EmbeddingOptions) (*EmbeddingResult, error) {
	if m.panicMsg != "" {
		panic(m.panicMsg)
	}
	if m.err != nil {
		return nil, m.err
	}
	res := &EmbeddingResult{Embeddings: make([][]float32, len(chunks)), Provider: "mock", Model: "mock"}
	for i := range chunks {
		res.Embeddings[i] = m.vector(i)
	}
	if len(chunks) > 0 {
		res.Dimensions = m.dim
	}
	return res, nil
}

func (m *mockEmbedder) GenerateQueryEmbedding(_ context.Context, query string, _ EmbeddingOptions) ([]float32, error) {
	if m.err != nil {
		return nil, m.err
	}
	var idx int
	if _, err := fmt.Sscanf(query, "chunk %d", &idx); err != nil {
		return nil, fmt.Errorf("unexpected query %q", query)
	}
	return m.vector(idx), nil
}
