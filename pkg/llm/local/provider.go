// Package local 提供无需凭据的进程内 Embedding 供应商。
//
// 向量由词元、相邻词对和字符三元组的特征哈希构成, 并做 L2 归一化,
// 因此相同文本总是得到相同向量, 词汇重叠越多余弦相似度越高。
package local

import (
	"context"
	"hash/fnv"
	"math"
	"regexp"
	"strings"

	"github.com/kart-io/sentinel-rag/pkg/llm"
)

// ProviderName 是本地供应商的名称标识符
const ProviderName = "local"

const (
	// DefaultDimensions 默认向量维度。
	DefaultDimensions = 384
	// DefaultModel 默认模型名称。
	DefaultModel = "feature-hash-v1"

	bigramWeight  = 0.5
	trigramWeight = 0.25
)

var tokenPattern = regexp.MustCompile(`[\p{L}\p{N}]+`)

func init() {
	llm.RegisterEmbeddingProvider(ProviderName, NewProvider)
}

// Config 本地供应商配置。
type Config struct {
	// Dimensions 输出向量维度。
	Dimensions int `json:"dimensions" mapstructure:"dimensions"`
	// EmbedModel 模型名称, 仅用于标识。
	EmbedModel string `json:"embed_model" mapstructure:"embed_model"`
}

// Provider 本地特征哈希供应商。
type Provider struct {
	dimensions int
	model      string
}

// NewProvider 从配置 map 创建本地供应商, 不需要任何凭据。
func NewProvider(configMap map[string]any) (llm.EmbeddingProvider, error) {
	cfg := Config{Dimensions: DefaultDimensions, EmbedModel: DefaultModel}
	if v, ok := configMap["dimensions"].(int); ok && v > 0 {
		cfg.Dimensions = v
	}
	if v, ok := configMap["embed_model"].(string); ok && v != "" {
		cfg.EmbedModel = v
	}
	return NewProviderWithConfig(cfg), nil
}

// NewProviderWithConfig 使用结构化配置创建本地供应商。
func NewProviderWithConfig(cfg Config) *Provider {
	if cfg.Dimensions <= 0 {
		cfg.Dimensions = DefaultDimensions
	}
	if cfg.EmbedModel == "" {
		cfg.EmbedModel = DefaultModel
	}
	return &Provider{dimensions: cfg.Dimensions, model: cfg.EmbedModel}
}

// Name 返回供应商名称。
func (p *Provider) Name() string {
	return ProviderName
}

// Model 返回模型名称。
func (p *Provider) Model() string {
	return p.model
}

// Dimensions 返回向量维度。
func (p *Provider) Dimensions() int {
	return p.dimensions
}

// Embed 为多个文本生成向量嵌入。
func (p *Provider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	embeddings := make([][]float32, len(texts))
	for i, text := range texts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		embeddings[i] = p.vectorize(text)
	}
	return embeddings, nil
}

// EmbedSingle 为单个文本生成向量嵌入。
func (p *Provider) EmbedSingle(ctx context.Context, text string) ([]float32, error) {
	return llm.EmbedSingle(ctx, p, text)
}

func (p *Provider) vectorize(text string) []float32 {
	acc := make([]float64, p.dimensions)
	tokens := tokenPattern.FindAllString(strings.ToLower(text), -1)

	for i, tok := range tokens {
		p.add(acc, "w:"+tok, 1)
		if i > 0 {
			p.add(acc, "b:"+tokens[i-1]+" "+tok, bigramWeight)
		}
		runes := []rune("#" + tok + "#")
		for j := 0; j+3 <= len(runes); j++ {
			p.add(acc, "c:"+string(runes[j:j+3]), trigramWeight)
		}
	}

	norm := l2norm(acc)
	if norm == 0 {
		// 无字母数字词元时退化为原始字符特征, 保证向量非零。
		for _, r := range text {
			p.add(acc, "r:"+string(r), 1)
		}
		if norm = l2norm(acc); norm == 0 {
			p.add(acc, "r:", 1)
			norm = l2norm(acc)
		}
	}

	vec := make([]float32, p.dimensions)
	for i, v := range acc {
		vec[i] = float32(v / norm)
	}
	return vec
}

func l2norm(v []float64) float64 {
	var sum float64
	for _, x := range v {
		sum += x * x
	}
	return math.Sqrt(sum)
}

// add 将特征哈希到一个桶中, 哈希最高位决定符号以减小碰撞偏差。
func (p *Provider) add(acc []float64, feature string, weight float64) {
	h := fnv.New64a()
	_, _ = h.Write([]byte(feature))
	sum := h.Sum64()

	idx := int(sum % uint64(p.dimensions))
	if sum>>63 == 1 {
		weight = -weight
	}
	acc[idx] += weight
}

var _ llm.EmbeddingProvider = (*Provider)(nil)
