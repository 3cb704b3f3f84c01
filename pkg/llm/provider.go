// Package llm 提供统一的向量嵌入供应商抽象层。
//
// 供应商通过 init 注册到全局注册表, 调用方按名称和配置 map 创建实例:
//
//	import _ "github.com/kart-io/sentinel-rag/pkg/llm/openai"
//
//	provider, err := llm.NewEmbeddingProvider("openai", map[string]any{
//	    "api_key": os.Getenv("OPENAI_API_KEY"),
//	})
package llm

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
)

// ErrMissingAPIKey 表示远程供应商缺少访问凭据。
var ErrMissingAPIKey = errors.New("api_key is required")

// EmbeddingProvider 定义 Embedding 供应商接口。
type EmbeddingProvider interface {
	// Embed 为多个文本生成向量嵌入, 返回顺序与输入一致。
	Embed(ctx context.Context, texts []string) ([][]float32, error)

	// EmbedSingle 为单个文本生成向量嵌入。
	EmbedSingle(ctx context.Context, text string) ([]float32, error)

	// Name 返回供应商名称。
	Name() string

	// Model 返回实际使用的模型名称。
	Model() string
}

// EmbeddingProviderFactory Embedding 供应商工厂函数类型。
type EmbeddingProviderFactory func(config map[string]any) (EmbeddingProvider, error)

var registry = &providerRegistry{
	factories: make(map[string]EmbeddingProviderFactory),
}

type providerRegistry struct {
	mu        sync.RWMutex
	factories map[string]EmbeddingProviderFactory
}

// RegisterEmbeddingProvider 注册 Embedding 供应商工厂, 同名注册会覆盖。
func RegisterEmbeddingProvider(name string, factory EmbeddingProviderFactory) {
	registry.mu.Lock()
	defer registry.mu.Unlock()
	registry.factories[name] = factory
}

// NewEmbeddingProvider 根据名称创建 Embedding 供应商实例。
func NewEmbeddingProvider(name string, config map[string]any) (EmbeddingProvider, error) {
	registry.mu.RLock()
	factory, ok := registry.factories[name]
	registry.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("unknown embedding provider: %s", name)
	}
	return factory(config)
}

// IsRegistered 判断供应商是否已注册。
func IsRegistered(name string) bool {
	registry.mu.RLock()
	defer registry.mu.RUnlock()
	_, ok := registry.factories[name]
	return ok
}

// ListProviders 列出所有已注册的供应商名称 (按字母排序)。
func ListProviders() []string {
	registry.mu.RLock()
	defer registry.mu.RUnlock()

	names := make([]string, 0, len(registry.factories))
	for name := range registry.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// EmbedSingle 是基于 Embed 的单文本实现, 供各供应商复用。
func EmbedSingle(ctx context.Context, p EmbeddingProvider, text string) ([]float32, error) {
	embeddings, err := p.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(embeddings) == 0 {
		return nil, fmt.Errorf("%s: no embedding returned", p.Name())
	}
	return embeddings[0], nil
}
