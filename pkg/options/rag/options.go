// Package rag provides RAG chunking, storage and search configuration options.
package rag

import (
	"fmt"

	"github.com/spf13/pflag"

	"github.com/kart-io/sentinel-rag/pkg/options"
)

var _ options.IOptions = (*Options)(nil)

// Store backend names.
const (
	BackendMilvus = "milvus"
	BackendQdrant = "qdrant"
	BackendBolt   = "bolt"
	BackendMemory = "memory"
)

// Options contains RAG-specific configuration.
type Options struct {
	// ChunkSize is the default maximum chunk length in characters.
	ChunkSize int `json:"chunk-size" mapstructure:"chunk-size"`

	// ChunkOverlap is the default overlap between chunks.
	ChunkOverlap int `json:"chunk-overlap" mapstructure:"chunk-overlap"`

	// Strategy is the default chunking strategy (standard, chapters, fixed).
	Strategy string `json:"strategy" mapstructure:"strategy"`

	// ChapterPattern overrides the chapter heading regex.
	ChapterPattern string `json:"chapter-pattern" mapstructure:"chapter-pattern"`

	// Preprocess normalizes whitespace before chunking.
	Preprocess bool `json:"preprocess" mapstructure:"preprocess"`

	// Backend selects the vector store (milvus, qdrant, bolt, memory).
	Backend string `json:"backend" mapstructure:"backend"`

	// TopK is the default number of results returned by similarity search.
	TopK int `json:"top-k" mapstructure:"top-k"`

	// MinScore is the default lower bound on result score.
	MinScore float64 `json:"min-score" mapstructure:"min-score"`
}

// NewOptions creates new Options with defaults.
func NewOptions() *Options {
	return &Options{
		ChunkSize:    1000,
		ChunkOverlap: 200,
		Strategy:     "standard",
		Preprocess:   true,
		Backend:      BackendMilvus,
		TopK:         5,
		MinScore:     0,
	}
}

// AddFlags adds flags for RAG options to the specified FlagSet.
func (o *Options) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	p := options.Join(prefixes...) + "rag."
	fs.IntVar(&o.ChunkSize, p+"chunk-size", o.ChunkSize, "Maximum chunk size in characters.")
	fs.IntVar(&o.ChunkOverlap, p+"chunk-overlap", o.ChunkOverlap, "Overlap between consecutive chunks in characters.")
	fs.StringVar(&o.Strategy, p+"strategy", o.Strategy, "Default chunking strategy (standard, chapters, fixed).")
	fs.StringVar(&o.ChapterPattern, p+"chapter-pattern", o.ChapterPattern, "Regex matching chapter headings (empty uses the built-in pattern).")
	fs.BoolVar(&o.Preprocess, p+"preprocess", o.Preprocess, "Normalize whitespace before chunking.")
	fs.StringVar(&o.Backend, p+"backend", o.Backend, "Vector store backend (milvus, qdrant, bolt, memory).")
	fs.IntVar(&o.TopK, p+"top-k", o.TopK, "Number of results from similarity search.")
	fs.Float64Var(&o.MinScore, p+"min-score", o.MinScore, "Minimum similarity score in (0,1] kept in results.")
}

// Validate validates the RAG options.
func (o *Options) Validate() []error {
	if o == nil {
		return nil
	}

	var errs []error
	if o.ChunkSize <= 0 {
		errs = append(errs, fmt.Errorf("rag.chunk-size must be positive"))
	}
	if o.ChunkOverlap < 0 || o.ChunkOverlap >= o.ChunkSize {
		errs = append(errs, fmt.Errorf("rag.chunk-overlap must be in [0, chunk-size)"))
	}
	switch o.Strategy {
	case "standard", "chapters", "fixed":
	default:
		errs = append(errs, fmt.Errorf("rag.strategy %q is not supported", o.Strategy))
	}
	switch o.Backend {
	case BackendMilvus, BackendQdrant, BackendBolt, BackendMemory:
	default:
		errs = append(errs, fmt.Errorf("rag.backend %q is not supported", o.Backend))
	}
	if o.TopK <= 0 {
		errs = append(errs, fmt.Errorf("rag.top-k must be positive"))
	}
	if o.MinScore < 0 || o.MinScore > 1 {
		errs = append(errs, fmt.Errorf("rag.min-score must be within [0, 1]"))
	}
	return errs
}
