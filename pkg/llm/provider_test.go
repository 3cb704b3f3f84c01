package llm

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockProvider 模拟供应商实现，用于测试。
type mockProvider struct {
	name string
	err  error
}

func (m *mockProvider) Name() string  { return m.name }
func (m *mockProvider) Model() string { return "mock-model" }

func (m *mockProvider) Embed(_ context.Context, texts []string) ([][]float32, error) {
	if m.err != nil {
		return nil, m.err
	}
	result := make([][]float32, len(texts))
	for i := range texts {
		result[i] = []float32{float32(i), 0.2, 0.3}
	}
	return result, nil
}

func (m *mockProvider) EmbedSingle(ctx context.Context, text string) ([]float32, error) {
	return EmbedSingle(ctx, m, text)
}

func TestRegisterAndNewEmbeddingProvider(t *testing.T) {
	RegisterEmbeddingProvider("test-embed", func(config map[string]any) (EmbeddingProvider, error) {
		name := "test-embed"
		if n, ok := config["name"].(string); ok {
			name = n
		}
		return &mockProvider{name: name}, nil
	})

	provider, err := NewEmbeddingProvider("test-embed", map[string]any{"name": "custom-name"})
	require.NoError(t, err)
	assert.Equal(t, "custom-name", provider.Name())
	assert.True(t, IsRegistered("test-embed"))
	assert.Contains(t, ListProviders(), "test-embed")
}

func TestNewEmbeddingProviderUnknown(t *testing.T) {
	_, err := NewEmbeddingProvider("unknown-provider", nil)
	assert.Error(t, err)
	assert.False(t, IsRegistered("unknown-provider"))
}

func TestEmbedSingle(t *testing.T) {
	v, err := EmbedSingle(context.Background(), &mockProvider{name: "m"}, "hello")
	require.NoError(t, err)
	assert.Equal(t, []float32{0, 0.2, 0.3}, v)

	boom := errors.New("boom")
	_, err = EmbedSingle(context.Background(), &mockProvider{name: "m", err: boom}, "hello")
	assert.ErrorIs(t, err, boom)
}
