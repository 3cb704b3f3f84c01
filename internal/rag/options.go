package rag

import (
	"fmt"

	"github.com/spf13/pflag"
	utilerrors "k8s.io/apimachinery/pkg/util/errors"

	"github.com/kart-io/sentinel-rag/internal/pkg/rag/chunker"
	"github.com/kart-io/sentinel-rag/internal/rag/biz"
	"github.com/kart-io/sentinel-rag/internal/rag/store"
	"github.com/kart-io/sentinel-rag/pkg/infra/app"
	boltopts "github.com/kart-io/sentinel-rag/pkg/options/bolt"
	httpopts "github.com/kart-io/sentinel-rag/pkg/options/http"
	llmopts "github.com/kart-io/sentinel-rag/pkg/options/llm"
	logopts "github.com/kart-io/sentinel-rag/pkg/options/logger"
	milvusopts "github.com/kart-io/sentinel-rag/pkg/options/milvus"
	qdrantopts "github.com/kart-io/sentinel-rag/pkg/options/qdrant"
	queueopts "github.com/kart-io/sentinel-rag/pkg/options/queue"
	ragopts "github.com/kart-io/sentinel-rag/pkg/options/rag"
	redisopts "github.com/kart-io/sentinel-rag/pkg/options/redis"
	tracingopts "github.com/kart-io/sentinel-rag/pkg/options/tracing"
)

var _ app.CliOptions = (*Options)(nil)

// Options contains all RAG service options.
type Options struct {
	Log       *logopts.Options          `json:"log" mapstructure:"log"`
	HTTP      *httpopts.Options         `json:"http" mapstructure:"http"`
	Tracing   *tracingopts.Options      `json:"tracing" mapstructure:"tracing"`
	Redis     *redisopts.Options        `json:"redis" mapstructure:"redis"`
	Queue     *queueopts.Options        `json:"queue" mapstructure:"queue"`
	RAG       *ragopts.Options          `json:"rag" mapstructure:"rag"`
	Embedding *llmopts.EmbeddingOptions `json:"embedding" mapstructure:"embedding"`
	Milvus    *milvusopts.Options       `json:"milvus" mapstructure:"milvus"`
	Qdrant    *qdrantopts.Options       `json:"qdrant" mapstructure:"qdrant"`
	Bolt      *boltopts.Options         `json:"bolt" mapstructure:"bolt"`
}

// NewOptions creates Options with defaults.
func NewOptions() *Options {
	return &Options{
		Log:       logopts.NewOptions(),
		HTTP:      httpopts.NewOptions(),
		Tracing:   tracingopts.NewOptions(),
		Redis:     redisopts.NewOptions(),
		Queue:     queueopts.NewOptions(),
		RAG:       ragopts.NewOptions(),
		Embedding: llmopts.NewEmbeddingOptions(),
		Milvus:    milvusopts.NewOptions(),
		Qdrant:    qdrantopts.NewOptions(),
		Bolt:      boltopts.NewOptions(),
	}
}

// AddFlags adds flags for all options to the specified FlagSet.
func (o *Options) AddFlags(fs *pflag.FlagSet) {
	o.Log.AddFlags(fs)
	o.HTTP.AddFlags(fs)
	o.Tracing.AddFlags(fs)
	o.Redis.AddFlags(fs)
	o.Queue.AddFlags(fs)
	o.RAG.AddFlags(fs)
	o.Embedding.AddFlags(fs)
	o.Milvus.AddFlags(fs)
	o.Qdrant.AddFlags(fs)
	o.Bolt.AddFlags(fs)
}

// Complete fills in values derived from the environment.
func (o *Options) Complete() error {
	if err := o.Redis.Complete(); err != nil {
		return err
	}
	return o.Embedding.Complete()
}

// Validate validates all options. Backend connection settings are only
// checked for the selected backend.
func (o *Options) Validate() error {
	var errs []error
	errs = append(errs, o.Log.Validate()...)
	errs = append(errs, o.HTTP.Validate()...)
	errs = append(errs, o.Tracing.Validate()...)
	errs = append(errs, o.Queue.Validate()...)
	errs = append(errs, o.RAG.Validate()...)
	errs = append(errs, o.Embedding.Validate()...)

	if o.Queue.Enabled && !o.Redis.Enabled {
		errs = append(errs, fmt.Errorf("queue.enabled requires redis.enabled"))
	}
	if o.needsRedis() {
		errs = append(errs, o.Redis.Validate()...)
	}

	switch o.RAG.Backend {
	case ragopts.BackendMilvus:
		errs = append(errs, o.Milvus.Validate()...)
	case ragopts.BackendQdrant:
		errs = append(errs, o.Qdrant.Validate()...)
	case ragopts.BackendBolt:
		errs = append(errs, o.Bolt.Validate()...)
	}

	return utilerrors.NewAggregate(errs)
}

func (o *Options) needsRedis() bool {
	return o.Queue.Enabled || (o.Redis.Enabled && o.cacheEnabled())
}

func (o *Options) cacheEnabled() bool {
	return o.Embedding.Cache != nil && o.Embedding.Cache.Enabled
}

func (o *Options) backendOptions() store.BackendOptions {
	return store.BackendOptions{
		Milvus: o.Milvus,
		Qdrant: o.Qdrant,
		Bolt:   o.Bolt,
	}
}

// pipelineConfig 将 rag 配置转换为流水线默认参数。
func (o *Options) pipelineConfig() *biz.PipelineConfig {
	cfg := biz.DefaultPipelineConfig()
	cfg.Chunking = chunker.Options{
		ChunkSize:      o.RAG.ChunkSize,
		ChunkOverlap:   o.RAG.ChunkOverlap,
		Strategy:       chunker.Strategy(o.RAG.Strategy),
		ChapterPattern: o.RAG.ChapterPattern,
		Preprocess:     o.RAG.Preprocess,
	}
	cfg.TopK = o.RAG.TopK
	cfg.MinScore = o.RAG.MinScore
	return cfg
}
