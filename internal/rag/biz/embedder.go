package biz

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/kart-io/logger"
	goredis "github.com/redis/go-redis/v9"

	"github.com/kart-io/sentinel-rag/internal/pkg/rag/chunker"
	"github.com/kart-io/sentinel-rag/internal/rag/metrics"
	"github.com/kart-io/sentinel-rag/pkg/errors"
	"github.com/kart-io/sentinel-rag/pkg/llm"
	"github.com/kart-io/sentinel-rag/pkg/llm/gemini"
	"github.com/kart-io/sentinel-rag/pkg/llm/local"
	"github.com/kart-io/sentinel-rag/pkg/llm/openai"
	llmopts "github.com/kart-io/sentinel-rag/pkg/options/llm"
)

// Credentials 远程供应商凭据。
type Credentials struct {
	OpenAIKey string
	GeminiKey string
}

// Has 判断供应商是否可用: 本地供应商始终可用, 远程供应商需要凭据。
func (c Credentials) Has(provider string) bool {
	switch provider {
	case local.ProviderName:
		return true
	case openai.ProviderName:
		return c.OpenAIKey != ""
	case gemini.ProviderName:
		return c.GeminiKey != ""
	}
	return false
}

// SelectProvider 选择嵌入供应商。
//
// requested 为空时依次尝试 openai、gemini, 均无凭据则使用 local。
// 显式指定的远程供应商缺少凭据时返回 ErrRAGConfiguration。
func SelectProvider(requested string, creds Credentials) (string, error) {
	switch requested {
	case "":
		for _, name := range []string{openai.ProviderName, gemini.ProviderName} {
			if creds.Has(name) {
				return name, nil
			}
		}
		return local.ProviderName, nil
	case openai.ProviderName, gemini.ProviderName, local.ProviderName:
		if !creds.Has(requested) {
			return "", errors.ErrRAGConfiguration.WithMessagef("embedding provider %q requires an api key", requested)
		}
		return requested, nil
	default:
		return "", errors.ErrRAGConfiguration.WithMessagef("unknown embedding provider %q", requested)
	}
}

// ProviderFactory 创建嵌入供应商, 默认为 llm.NewEmbeddingProvider。
type ProviderFactory func(name string, config map[string]any) (llm.EmbeddingProvider, error)

// Embedder 嵌入生成器。供应商实例按 (供应商, 模型) 缓存复用。
type Embedder struct {
	opts    *llmopts.EmbeddingOptions
	redis   goredis.UniversalClient
	metrics *metrics.RAGMetrics
	factory ProviderFactory

	mu        sync.Mutex
	providers map[string]llm.EmbeddingProvider
}

// EmbedderOption 配置 Embedder。
type EmbedderOption func(*Embedder)

// WithRedis 为远程供应商启用 Redis 向量缓存。
func WithRedis(client goredis.UniversalClient) EmbedderOption {
	return func(e *Embedder) { e.redis = client }
}

// WithEmbedderMetrics 设置指标收集器。
func WithEmbedderMetrics(m *metrics.RAGMetrics) EmbedderOption {
	return func(e *Embedder) { e.metrics = m }
}

// WithProviderFactory 替换供应商工厂。
func WithProviderFactory(f ProviderFactory) EmbedderOption {
	return func(e *Embedder) { e.factory = f }
}

// NewEmbedder 创建嵌入生成器。
func NewEmbedder(opts *llmopts.EmbeddingOptions, options ...EmbedderOption) *Embedder {
	if opts == nil {
		opts = llmopts.NewEmbeddingOptions()
	}
	e := &Embedder{
		opts:      opts,
		metrics:   metrics.GetRAGMetrics(),
		factory:   llm.NewEmbeddingProvider,
		providers: make(map[string]llm.EmbeddingProvider),
	}
	for _, o := range options {
		o(e)
	}
	return e
}

func (e *Embedder) credentials() Credentials {
	var c Credentials
	if e.opts.OpenAI != nil {
		c.OpenAIKey = e.opts.OpenAI.APIKey
	}
	if e.opts.Gemini != nil {
		c.GeminiKey = e.opts.Gemini.APIKey
	}
	return c
}

// IsProviderAvailable 判断供应商是否已配置凭据, local 始终可用。
func (e *Embedder) IsProviderAvailable(provider string) bool {
	return e.credentials().Has(provider)
}

// AvailableProviders 返回当前可用的供应商。
func (e *Embedder) AvailableProviders() []string {
	var out []string
	for _, name := range []string{openai.ProviderName, gemini.ProviderName, local.ProviderName} {
		if e.IsProviderAvailable(name) {
			out = append(out, name)
		}
	}
	return out
}

func (e *Embedder) resolve(opts EmbeddingOptions) (llm.EmbeddingProvider, error) {
	requested := opts.Provider
	if requested == "" {
		requested = e.opts.Provider
	}
	name, err := SelectProvider(requested, e.credentials())
	if err != nil {
		return nil, err
	}

	key := name + "/" + opts.Model
	e.mu.Lock()
	defer e.mu.Unlock()
	if p, ok := e.providers[key]; ok {
		return p, nil
	}

	cfg := e.opts.ToConfigMap(name)
	if opts.Model != "" {
		cfg["embed_model"] = opts.Model
	}
	p, err := e.factory(name, cfg)
	if err != nil {
		return nil, errors.ErrRAGConfiguration.WithCause(err)
	}

	if e.redis != nil && name != local.ProviderName && e.opts.Cache != nil && e.opts.Cache.Enabled {
		p = llm.NewCachedEmbeddingProvider(p, e.redis, &llm.EmbeddingCacheConfig{
			Enabled:   true,
			TTL:       e.opts.Cache.TTL,
			KeyPrefix: e.opts.Cache.Prefix,
		})
	}

	logger.Infow("embedding provider initialized",
		"provider", p.Name(),
		"model", p.Model(),
	)
	e.providers[key] = p
	return p, nil
}

// GenerateEmbeddings 一次批量调用为所有分块生成向量。
func (e *Embedder) GenerateEmbeddings(ctx context.Context, chunks []chunker.Chunk, opts EmbeddingOptions) (*EmbeddingResult, error) {
	start := time.Now()

	p, err := e.resolve(opts)
	if err != nil {
		return nil, err
	}

	result := &EmbeddingResult{
		Embeddings: [][]float32{},
		Provider:   p.Name(),
		Model:      p.Model(),
	}
	if len(chunks) == 0 {
		result.ProcessingTime = time.Since(start)
		return result, nil
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Content
	}

	embeddings, err := p.Embed(ctx, texts)
	e.metrics.RecordEmbedding(time.Since(start), err)
	if err != nil {
		return nil, errors.ErrRAGProviderCall.WithCause(err)
	}
	if err := checkAligned(embeddings, len(texts)); err != nil {
		return nil, errors.ErrRAGProviderCall.WithCause(fmt.Errorf("%s: %w", p.Name(), err))
	}

	result.Embeddings = embeddings
	result.Dimensions = len(embeddings[0])
	result.ProcessingTime = time.Since(start)
	return result, nil
}

// GenerateQueryEmbedding 为检索查询生成向量, 结果不落库。
func (e *Embedder) GenerateQueryEmbedding(ctx context.Context, query string, opts EmbeddingOptions) ([]float32, error) {
	start := time.Now()

	p, err := e.resolve(opts)
	if err != nil {
		return nil, err
	}

	vec, err := p.EmbedSingle(ctx, query)
	e.metrics.RecordEmbedding(time.Since(start), err)
	if err != nil {
		return nil, errors.ErrRAGProviderCall.WithCause(err)
	}
	if len(vec) == 0 {
		return nil, errors.ErrRAGProviderCall.WithCause(fmt.Errorf("%s: empty query embedding", p.Name()))
	}
	return vec, nil
}

func checkAligned(embeddings [][]float32, want int) error {
	if len(embeddings) != want {
		return fmt.Errorf("expected %d embeddings, got %d", want, len(embeddings))
	}
	dim := len(embeddings[0])
	if dim == 0 {
		return fmt.Errorf("embedding 0 is empty")
	}
	for i, v := range embeddings {
		if len(v) != dim {
			return fmt.Errorf("embedding %d has dimension %d, expected %d", i, len(v), dim)
		}
	}
	return nil
}
