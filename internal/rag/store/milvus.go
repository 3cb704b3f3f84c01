package store

import (
	"context"
	"strconv"

	"github.com/milvus-io/milvus/client/v2/entity"

	"github.com/kart-io/sentinel-rag/pkg/component/milvus"
)

const (
	fieldDocumentID = "document_id"
	fieldContent    = "content"
	fieldChunkIndex = "chunk_index"
	fieldStartChar  = "start_char"
	fieldEndChar    = "end_char"
	fieldLength     = "length"

	maxContentLength = 65535
)

var milvusMetaFields = []milvus.MetaField{
	{Name: fieldDocumentID, DataType: entity.FieldTypeVarChar, MaxLen: 512},
	{Name: fieldContent, DataType: entity.FieldTypeVarChar, MaxLen: maxContentLength},
	{Name: fieldChunkIndex, DataType: entity.FieldTypeInt64},
	{Name: fieldStartChar, DataType: entity.FieldTypeInt64},
	{Name: fieldEndChar, DataType: entity.FieldTypeInt64},
	{Name: fieldLength, DataType: entity.FieldTypeInt64},
}

var milvusOutputFields = []string{
	fieldDocumentID, fieldContent, fieldChunkIndex, fieldStartChar, fieldEndChar, fieldLength,
}

// MilvusStore 基于 Milvus 的向量存储。
type MilvusStore struct {
	client *milvus.Client
}

var _ VectorStore = (*MilvusStore)(nil)

// NewMilvusStore 创建 Milvus 存储。
func NewMilvusStore(client *milvus.Client) *MilvusStore {
	return &MilvusStore{client: client}
}

func (s *MilvusStore) Name() string { return "milvus" }

func (s *MilvusStore) HasCollection(ctx context.Context, name string) (bool, error) {
	return s.client.HasCollection(ctx, name)
}

func (s *MilvusStore) EnsureCollection(ctx context.Context, name string, dimension int) error {
	return s.client.CreateCollection(ctx, &milvus.CollectionSchema{
		Name:        name,
		Description: "RAG document chunks",
		Dimension:   dimension,
		MetaFields:  milvusMetaFields,
	})
}

func (s *MilvusStore) Upsert(ctx context.Context, name string, records []Record) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}

	data := &milvus.UpsertData{
		IDs:        make([]string, len(records)),
		Embeddings: make([][]float32, len(records)),
		Metadata:   make(map[string][]any, len(milvusMetaFields)),
	}
	for _, f := range milvusOutputFields {
		data.Metadata[f] = make([]any, len(records))
	}

	for i, r := range records {
		data.IDs[i] = r.ID
		data.Embeddings[i] = r.Embedding
		data.Metadata[fieldDocumentID][i] = r.Metadata.DocumentID
		data.Metadata[fieldContent][i] = r.Content
		data.Metadata[fieldChunkIndex][i] = int64(r.Metadata.ChunkIndex)
		data.Metadata[fieldStartChar][i] = int64(r.Metadata.StartChar)
		data.Metadata[fieldEndChar][i] = int64(r.Metadata.EndChar)
		data.Metadata[fieldLength][i] = int64(r.Metadata.Length)
	}

	return s.client.Upsert(ctx, name, data)
}

func (s *MilvusStore) Search(ctx context.Context, name string, embedding []float32, topK int) ([]Hit, error) {
	results, err := s.client.Search(ctx, name, embedding, topK, milvusOutputFields)
	if err != nil {
		return nil, err
	}

	hits := make([]Hit, 0, len(results))
	for _, r := range results {
		hits = append(hits, Hit{
			Record: Record{
				ID:      r.ID,
				Content: metaString(r.Metadata, fieldContent),
				Metadata: RecordMetadata{
					DocumentID: metaString(r.Metadata, fieldDocumentID),
					ChunkIndex: metaInt(r.Metadata, fieldChunkIndex),
					StartChar:  metaInt(r.Metadata, fieldStartChar),
					EndChar:    metaInt(r.Metadata, fieldEndChar),
					Length:     metaInt(r.Metadata, fieldLength),
				},
			},
			Similarity: float64(r.Score),
		})
	}
	return hits, nil
}

// Count 基于 row_count 统计, 刚写入的数据可能尚未计入。
func (s *MilvusStore) Count(ctx context.Context, name string) (int64, error) {
	return s.client.GetCollectionStats(ctx, name)
}

func (s *MilvusStore) DropCollection(ctx context.Context, name string) error {
	exists, err := s.client.HasCollection(ctx, name)
	if err != nil {
		return err
	}
	if !exists {
		return nil
	}
	return s.client.DropCollection(ctx, name)
}

func (s *MilvusStore) ListCollections(ctx context.Context) ([]string, error) {
	return s.client.ListCollections(ctx)
}

func (s *MilvusStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx)
}

func (s *MilvusStore) Close(ctx context.Context) error {
	return s.client.Close(ctx)
}

func metaString(m map[string]any, key string) string {
	if v, ok := m[key].(string); ok {
		return v
	}
	return ""
}

func metaInt(m map[string]any, key string) int {
	switch v := m[key].(type) {
	case int64:
		return int(v)
	case int:
		return v
	case float64:
		return int(v)
	case string:
		n, _ := strconv.Atoi(v)
		return n
	}
	return 0
}
