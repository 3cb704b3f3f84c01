package store

import (
	"context"

	"github.com/kart-io/sentinel-rag/pkg/component/qdrant"
)

const payloadRecordID = "record_id"

// QdrantStore 基于 Qdrant 的向量存储。集合内点 ID 取分块序号。
type QdrantStore struct {
	client *qdrant.Client
}

var _ VectorStore = (*QdrantStore)(nil)

// NewQdrantStore 创建 Qdrant 存储。
func NewQdrantStore(client *qdrant.Client) *QdrantStore {
	return &QdrantStore{client: client}
}

func (s *QdrantStore) Name() string { return "qdrant" }

func (s *QdrantStore) HasCollection(ctx context.Context, name string) (bool, error) {
	return s.client.HasCollection(ctx, name)
}

func (s *QdrantStore) EnsureCollection(ctx context.Context, name string, dimension int) error {
	return s.client.CreateCollection(ctx, name, dimension)
}

func (s *QdrantStore) Upsert(ctx context.Context, name string, records []Record) (int, error) {
	points := make([]qdrant.Point, len(records))
	for i, r := range records {
		points[i] = qdrant.Point{
			ID:     uint64(r.Metadata.ChunkIndex),
			Vector: r.Embedding,
			Payload: map[string]any{
				payloadRecordID: r.ID,
				fieldDocumentID: r.Metadata.DocumentID,
				fieldContent:    r.Content,
				fieldChunkIndex: r.Metadata.ChunkIndex,
				fieldStartChar:  r.Metadata.StartChar,
				fieldEndChar:    r.Metadata.EndChar,
				fieldLength:     r.Metadata.Length,
			},
		}
	}
	if err := s.client.Upsert(ctx, name, points); err != nil {
		return 0, err
	}
	return len(points), nil
}

func (s *QdrantStore) Search(ctx context.Context, name string, embedding []float32, topK int) ([]Hit, error) {
	points, err := s.client.Search(ctx, name, embedding, topK)
	if err != nil {
		return nil, err
	}

	hits := make([]Hit, 0, len(points))
	for _, p := range points {
		hits = append(hits, Hit{
			Record: Record{
				ID:      metaString(p.Payload, payloadRecordID),
				Content: metaString(p.Payload, fieldContent),
				Metadata: RecordMetadata{
					DocumentID: metaString(p.Payload, fieldDocumentID),
					ChunkIndex: metaInt(p.Payload, fieldChunkIndex),
					StartChar:  metaInt(p.Payload, fieldStartChar),
					EndChar:    metaInt(p.Payload, fieldEndChar),
					Length:     metaInt(p.Payload, fieldLength),
				},
			},
			Similarity: float64(p.Score),
		})
	}
	return hits, nil
}

func (s *QdrantStore) Count(ctx context.Context, name string) (int64, error) {
	n, err := s.client.Count(ctx, name)
	return int64(n), err
}

func (s *QdrantStore) DropCollection(ctx context.Context, name string) error {
	exists, err := s.client.HasCollection(ctx, name)
	if err != nil {
		return err
	}
	if !exists {
		return nil
	}
	return s.client.DropCollection(ctx, name)
}

func (s *QdrantStore) ListCollections(ctx context.Context) ([]string, error) {
	return s.client.ListCollections(ctx)
}

func (s *QdrantStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx)
}

func (s *QdrantStore) Close(context.Context) error {
	return s.client.Close()
}
