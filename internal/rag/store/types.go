package store

import (
	"context"

	"github.com/kart-io/sentinel-rag/internal/pkg/rag/chunker"
)

// RecordMetadata 向量记录的元数据。
type RecordMetadata struct {
	DocumentID string `json:"document_id"`
	ChunkIndex int    `json:"chunk_index"`
	StartChar  int    `json:"start_char"`
	EndChar    int    `json:"end_char"`
	Length     int    `json:"length"`
}

// Record 向量记录, ID 为 <documentID>_chunk_<index>。
type Record struct {
	ID        string         `json:"id"`
	Embedding []float32      `json:"embedding,omitempty"`
	Content   string         `json:"content"`
	Metadata  RecordMetadata `json:"metadata"`
}

// Chunk 从记录还原分块。
func (r Record) Chunk() chunker.Chunk {
	return chunker.Chunk{
		Content: r.Content,
		Index:   r.Metadata.ChunkIndex,
		Metadata: chunker.Metadata{
			StartChar: r.Metadata.StartChar,
			EndChar:   r.Metadata.EndChar,
			Length:    r.Metadata.Length,
		},
	}
}

// Hit 后端返回的检索命中, Similarity 为余弦相似度, 按相似度降序排列。
type Hit struct {
	Record     Record
	Similarity float64
}

// VectorStore 定义向量存储后端接口。
type VectorStore interface {
	// Name 返回后端名称。
	Name() string

	// HasCollection 判断集合是否存在。
	HasCollection(ctx context.Context, name string) (bool, error)

	// EnsureCollection 幂等地创建集合。
	EnsureCollection(ctx context.Context, name string, dimension int) error

	// Upsert 按记录 ID 写入或覆盖记录, 返回写入数量。
	Upsert(ctx context.Context, name string, records []Record) (int, error)

	// Search 返回与 embedding 最相似的至多 topK 条记录。
	Search(ctx context.Context, name string, embedding []float32, topK int) ([]Hit, error)

	// Count 返回集合中的记录数。
	Count(ctx context.Context, name string) (int64, error)

	// DropCollection 删除集合, 集合不存在时不报错。
	DropCollection(ctx context.Context, name string) error

	// ListCollections 列出所有集合名称。
	ListCollections(ctx context.Context) ([]string, error)

	// Ping 检查后端连通性。
	Ping(ctx context.Context) error

	// Close 关闭连接。
	Close(ctx context.Context) error
}

// SearchOptions 检索参数。
type SearchOptions struct {
	TopK     int     `json:"top_k"`
	MinScore float64 `json:"min_score"`
}

// SearchResult 检索结果, Score = 1/(1+Distance), Distance = max(0, 1-cos)。
type SearchResult struct {
	Chunk      chunker.Chunk `json:"chunk"`
	DocumentID string        `json:"document_id"`
	Score      float64       `json:"score"`
	Distance   float64       `json:"distance"`
}

// StoreResult 写入结果。
type StoreResult struct {
	CollectionName string `json:"collection_name"`
	StoredCount    int    `json:"stored_count"`
	Dimensions     int    `json:"dimensions"`
}

// CollectionStats 集合统计。
type CollectionStats struct {
	Name   string `json:"name"`
	Count  int64  `json:"count"`
	Exists bool   `json:"exists"`
}
