package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/sentinel-rag/pkg/llm"
)

const testAPIKey = "test-key"

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, "https://api.openai.com/v1", cfg.BaseURL)
	assert.Equal(t, "text-embedding-3-small", cfg.EmbedModel)
	assert.Equal(t, 120*time.Second, cfg.Timeout)
	assert.Equal(t, 0, cfg.MaxRetries)
}

func TestNewProvider(t *testing.T) {
	tests := []struct {
		name      string
		config    map[string]any
		wantError bool
	}{
		{name: "valid config", config: map[string]any{"api_key": testAPIKey}},
		{
			name: "custom config",
			config: map[string]any{
				"api_key":      testAPIKey,
				"embed_model":  "text-embedding-3-large",
				"organization": "org-123",
			},
		},
		{name: "missing api_key", config: map[string]any{}, wantError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := NewProvider(tt.config)
			if tt.wantError {
				assert.ErrorIs(t, err, llm.ErrMissingAPIKey)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, ProviderName, p.Name())
		})
	}
}

func TestEmbed_ReordersByIndex(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/embeddings", r.URL.Path)
		assert.Equal(t, "Bearer "+testAPIKey, r.Header.Get("Authorization"))

		var req embeddingRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, []string{"first", "second"}, req.Input)

		_, _ = w.Write([]byte(`{"data":[
			{"embedding":[0,1],"index":1},
			{"embedding":[1,0],"index":0}
		],"model":"text-embedding-3-small"}`))
	}))
	defer srv.Close()

	p, err := NewProvider(map[string]any{"api_key": testAPIKey, "base_url": srv.URL})
	require.NoError(t, err)

	embeddings, err := p.Embed(context.Background(), []string{"first", "second"})
	require.NoError(t, err)
	assert.Equal(t, [][]float32{{1, 0}, {0, 1}}, embeddings)
}

func TestEmbed_MissingIndex(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"data":[{"embedding":[1,0],"index":0}]}`))
	}))
	defer srv.Close()

	p, err := NewProvider(map[string]any{"api_key": testAPIKey, "base_url": srv.URL})
	require.NoError(t, err)

	_, err = p.Embed(context.Background(), []string{"a", "b"})
	assert.ErrorContains(t, err, "missing embedding for input 1")
}

func TestEmbed_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"message":"Incorrect API key provided"}}`))
	}))
	defer srv.Close()

	p, err := NewProvider(map[string]any{"api_key": testAPIKey, "base_url": srv.URL})
	require.NoError(t, err)

	_, err = p.EmbedSingle(context.Background(), "hello")
	assert.ErrorContains(t, err, "Incorrect API key provided")
}
