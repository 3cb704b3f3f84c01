package store

import (
	"fmt"

	"github.com/kart-io/sentinel-rag/pkg/component/milvus"
	"github.com/kart-io/sentinel-rag/pkg/component/qdrant"
	boltopts "github.com/kart-io/sentinel-rag/pkg/options/bolt"
	milvusopts "github.com/kart-io/sentinel-rag/pkg/options/milvus"
	qdrantopts "github.com/kart-io/sentinel-rag/pkg/options/qdrant"
	ragopts "github.com/kart-io/sentinel-rag/pkg/options/rag"
)

// BackendOptions 各后端连接配置。
type BackendOptions struct {
	Milvus *milvusopts.Options
	Qdrant *qdrantopts.Options
	Bolt   *boltopts.Options
}

// NewBackend 按名称创建向量存储后端。
func NewBackend(name string, opts BackendOptions) (VectorStore, error) {
	switch name {
	case ragopts.BackendMilvus:
		c, err := milvus.New(opts.Milvus)
		if err != nil {
			return nil, err
		}
		return NewMilvusStore(c), nil
	case ragopts.BackendQdrant:
		c, err := qdrant.New(opts.Qdrant)
		if err != nil {
			return nil, err
		}
		return NewQdrantStore(c), nil
	case ragopts.BackendBolt:
		return NewBoltStore(opts.Bolt)
	case ragopts.BackendMemory:
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unsupported vector store backend: %s", name)
	}
}
