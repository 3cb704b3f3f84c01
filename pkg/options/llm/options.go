// Package llm provides embedding provider configuration options.
package llm

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/pflag"

	"github.com/kart-io/sentinel-rag/pkg/options"
)

var _ options.IOptions = (*EmbeddingOptions)(nil)

// CredentialOptions 远程供应商的连接配置。
type CredentialOptions struct {
	// APIKey API 密钥, 为空时视为供应商不可用。
	APIKey string `json:"-" mapstructure:"api-key"`

	// BaseURL API 基础地址, 为空时使用供应商默认值。
	BaseURL string `json:"base-url" mapstructure:"base-url"`

	// Model 默认嵌入模型。
	Model string `json:"model" mapstructure:"model"`

	// Organization 组织 ID（仅 OpenAI）。
	Organization string `json:"organization" mapstructure:"organization"`
}

// CacheOptions 嵌入向量 Redis 缓存配置。
type CacheOptions struct {
	Enabled bool          `json:"enabled" mapstructure:"enabled"`
	TTL     time.Duration `json:"ttl" mapstructure:"ttl"`
	Prefix  string        `json:"prefix" mapstructure:"prefix"`
}

// EmbeddingOptions 定义嵌入供应商配置。
type EmbeddingOptions struct {
	// Provider 默认供应商（openai, gemini, local）, 为空时按凭据自动选择。
	Provider string `json:"provider" mapstructure:"provider"`

	// Timeout 远程请求超时时间。
	Timeout time.Duration `json:"timeout" mapstructure:"timeout"`

	// LocalDimensions 本地哈希模型的向量维度。
	LocalDimensions int `json:"local-dimensions" mapstructure:"local-dimensions"`

	OpenAI *CredentialOptions `json:"openai" mapstructure:"openai"`
	Gemini *CredentialOptions `json:"gemini" mapstructure:"gemini"`
	Cache  *CacheOptions      `json:"cache" mapstructure:"cache"`
}

// NewEmbeddingOptions 创建默认嵌入供应商配置。
func NewEmbeddingOptions() *EmbeddingOptions {
	return &EmbeddingOptions{
		Timeout:         60 * time.Second,
		LocalDimensions: 384,
		OpenAI: &CredentialOptions{
			BaseURL: "https://api.openai.com/v1",
			Model:   "text-embedding-3-small",
		},
		Gemini: &CredentialOptions{
			BaseURL: "https://generativelanguage.googleapis.com/v1beta",
			Model:   "text-embedding-004",
		},
		Cache: &CacheOptions{
			Enabled: true,
			TTL:     7 * 24 * time.Hour,
			Prefix:  "rag:emb:",
		},
	}
}

// AddFlags adds flags for embedding options to the specified FlagSet.
func (o *EmbeddingOptions) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	p := options.Join(prefixes...) + "embedding."
	fs.StringVar(&o.Provider, p+"provider", o.Provider, "Embedding provider (openai, gemini, local). Empty selects by available credentials.")
	fs.DurationVar(&o.Timeout, p+"timeout", o.Timeout, "Embedding request timeout.")
	fs.IntVar(&o.LocalDimensions, p+"local-dimensions", o.LocalDimensions, "Vector dimension of the local hashing model.")

	fs.StringVar(&o.OpenAI.APIKey, p+"openai.api-key", o.OpenAI.APIKey, "OpenAI API key (prefer OPENAI_API_KEY).")
	fs.StringVar(&o.OpenAI.BaseURL, p+"openai.base-url", o.OpenAI.BaseURL, "OpenAI API base URL.")
	fs.StringVar(&o.OpenAI.Model, p+"openai.model", o.OpenAI.Model, "OpenAI embedding model.")
	fs.StringVar(&o.OpenAI.Organization, p+"openai.organization", o.OpenAI.Organization, "OpenAI organization ID (optional).")

	fs.StringVar(&o.Gemini.APIKey, p+"gemini.api-key", o.Gemini.APIKey, "Gemini API key (prefer GEMINI_API_KEY).")
	fs.StringVar(&o.Gemini.BaseURL, p+"gemini.base-url", o.Gemini.BaseURL, "Gemini API base URL.")
	fs.StringVar(&o.Gemini.Model, p+"gemini.model", o.Gemini.Model, "Gemini embedding model.")

	fs.BoolVar(&o.Cache.Enabled, p+"cache.enabled", o.Cache.Enabled, "Cache remote embeddings in Redis.")
	fs.DurationVar(&o.Cache.TTL, p+"cache.ttl", o.Cache.TTL, "Embedding cache TTL.")
	fs.StringVar(&o.Cache.Prefix, p+"cache.prefix", o.Cache.Prefix, "Embedding cache key prefix.")
}

// Complete 从环境变量补全缺失的 API 密钥。
func (o *EmbeddingOptions) Complete() error {
	if o.OpenAI == nil {
		o.OpenAI = &CredentialOptions{}
	}
	if o.Gemini == nil {
		o.Gemini = &CredentialOptions{}
	}
	if o.Cache == nil {
		o.Cache = &CacheOptions{}
	}
	if o.OpenAI.APIKey == "" {
		o.OpenAI.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	if o.Gemini.APIKey == "" {
		o.Gemini.APIKey = os.Getenv("GEMINI_API_KEY")
	}
	return nil
}

// Validate validates the embedding options.
func (o *EmbeddingOptions) Validate() []error {
	if o == nil {
		return nil
	}

	var errs []error
	switch o.Provider {
	case "", "openai", "gemini", "local":
	default:
		errs = append(errs, fmt.Errorf("embedding.provider %q is not supported", o.Provider))
	}
	if o.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("embedding.timeout must be positive"))
	}
	if o.LocalDimensions <= 0 {
		errs = append(errs, fmt.Errorf("embedding.local-dimensions must be positive"))
	}
	if o.Cache != nil && o.Cache.Enabled && o.Cache.TTL <= 0 {
		errs = append(errs, fmt.Errorf("embedding.cache.ttl must be positive"))
	}
	return errs
}

// ToConfigMap 转换为供应商工厂使用的配置 map。
func (o *EmbeddingOptions) ToConfigMap(provider string) map[string]any {
	cfg := map[string]any{"timeout": o.Timeout}
	var cred *CredentialOptions
	switch provider {
	case "openai":
		cred = o.OpenAI
	case "gemini":
		cred = o.Gemini
	case "local":
		cfg["dimensions"] = o.LocalDimensions
	}
	if cred != nil {
		cfg["api_key"] = cred.APIKey
		cfg["base_url"] = cred.BaseURL
		cfg["embed_model"] = cred.Model
		cfg["organization"] = cred.Organization
	}
	return cfg
}
