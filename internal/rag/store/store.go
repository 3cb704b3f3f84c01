package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/kart-io/logger"

	"github.com/kart-io/sentinel-rag/internal/pkg/rag/chunker"
	"github.com/kart-io/sentinel-rag/internal/pkg/rag/textutil"
	"github.com/kart-io/sentinel-rag/pkg/errors"
)

const (
	// CollectionPrefix 文档集合名前缀。
	CollectionPrefix = "doc_"

	// DefaultTopK 默认返回条数。
	DefaultTopK = 5
)

// CollectionName 返回文档对应的集合名, 文档 ID 经可逆编码, 不同文档不会共用集合。
func CollectionName(documentID string) string {
	return CollectionPrefix + textutil.EncodeIdentifier(documentID)
}

// RecordID 返回分块记录 ID。
func RecordID(documentID string, chunkIndex int) string {
	return fmt.Sprintf("%s_chunk_%d", documentID, chunkIndex)
}

// Store 向量存储门面。
type Store struct {
	backend VectorStore
	handles *HandleCache
}

// New 基于后端创建 Store。
func New(backend VectorStore) *Store {
	return &Store{
		backend: backend,
		handles: NewHandleCache(),
	}
}

// Backend 返回底层后端。
func (s *Store) Backend() VectorStore {
	return s.backend
}

// StoreChunks 将分块及其向量写入文档集合, 集合不存在时创建。
func (s *Store) StoreChunks(ctx context.Context, documentID string, chunks []chunker.Chunk, embeddings [][]float32) (*StoreResult, error) {
	name := CollectionName(documentID)

	if len(chunks) != len(embeddings) {
		return nil, errors.ErrRAGInvariantViolation.WithMessagef(
			"chunks and embeddings length mismatch: %d != %d", len(chunks), len(embeddings))
	}
	if len(chunks) == 0 {
		return &StoreResult{CollectionName: name}, nil
	}

	dim := len(embeddings[0])
	if dim == 0 {
		return nil, errors.ErrRAGInvariantViolation.WithMessage("embedding dimension is zero")
	}
	for i, emb := range embeddings {
		if len(emb) != dim {
			return nil, errors.ErrRAGInvariantViolation.WithMessagef(
				"embedding %d has dimension %d, expected %d", i, len(emb), dim)
		}
	}

	handle, err := s.handles.GetOrCreate(ctx, name, dim, func(ctx context.Context) error {
		return s.backend.EnsureCollection(ctx, name, dim)
	})
	if err != nil {
		return nil, errors.ErrRAGProviderCall.WithCause(fmt.Errorf("ensure collection %s: %w", name, err))
	}
	if handle.Dimension != 0 && handle.Dimension != dim {
		return nil, errors.ErrRAGConfiguration.WithMessagef(
			"collection %s has dimension %d, got embeddings of dimension %d", name, handle.Dimension, dim)
	}

	records := make([]Record, len(chunks))
	for i, c := range chunks {
		records[i] = Record{
			ID:        RecordID(documentID, c.Index),
			Embedding: embeddings[i],
			Content:   c.Content,
			Metadata: RecordMetadata{
				DocumentID: documentID,
				ChunkIndex: c.Index,
				StartChar:  c.Metadata.StartChar,
				EndChar:    c.Metadata.EndChar,
				Length:     c.Metadata.Length,
			},
		}
	}

	stored, err := s.backend.Upsert(ctx, name, records)
	if err != nil {
		return nil, errors.ErrRAGProviderCall.WithCause(fmt.Errorf("upsert into %s: %w", name, err))
	}

	logger.Debugw("chunks stored",
		"collection", name,
		"stored", stored,
		"dimensions", dim,
	)

	return &StoreResult{
		CollectionName: name,
		StoredCount:    stored,
		Dimensions:     dim,
	}, nil
}

// SearchSimilar 在单个文档集合中检索。集合不存在时返回空列表。
func (s *Store) SearchSimilar(ctx context.Context, queryEmbedding []float32, documentID string, opts SearchOptions) ([]SearchResult, error) {
	name := CollectionName(documentID)

	exists, err := s.exists(ctx, name)
	if err != nil {
		return nil, errors.ErrRAGProviderCall.WithCause(err)
	}
	if !exists {
		return []SearchResult{}, nil
	}

	return s.search(ctx, name, queryEmbedding, opts)
}

// SearchGlobal 在所有文档集合中检索, 结果按集合名分组, 只保留非空结果。
// 单个集合检索失败时记录日志并跳过。
func (s *Store) SearchGlobal(ctx context.Context, queryEmbedding []float32, opts SearchOptions) (map[string][]SearchResult, error) {
	names, err := s.ListCollections(ctx)
	if err != nil {
		return nil, err
	}

	out := make(map[string][]SearchResult)
	for _, name := range names {
		if !strings.HasPrefix(name, CollectionPrefix) {
			continue
		}
		results, err := s.search(ctx, name, queryEmbedding, opts)
		if err != nil {
			logger.Warnw("global search skipped collection",
				"collection", name,
				"error", err.Error(),
			)
			continue
		}
		if len(results) > 0 {
			out[name] = results
		}
	}
	return out, nil
}

func (s *Store) search(ctx context.Context, name string, queryEmbedding []float32, opts SearchOptions) ([]SearchResult, error) {
	topK := opts.TopK
	if topK <= 0 {
		topK = DefaultTopK
	}

	hits, err := s.backend.Search(ctx, name, queryEmbedding, topK)
	if err != nil {
		return nil, errors.ErrRAGProviderCall.WithCause(fmt.Errorf("search %s: %w", name, err))
	}

	results := make([]SearchResult, 0, len(hits))
	for _, h := range hits {
		distance := textutil.CosineDistance(h.Similarity)
		score := textutil.ScoreFromDistance(distance)
		if score < opts.MinScore {
			continue
		}
		results = append(results, SearchResult{
			Chunk:      h.Record.Chunk(),
			DocumentID: h.Record.Metadata.DocumentID,
			Score:      score,
			Distance:   distance,
		})
	}
	return results, nil
}

func (s *Store) exists(ctx context.Context, name string) (bool, error) {
	if _, ok := s.handles.Get(name); ok {
		return true, nil
	}
	exists, err := s.backend.HasCollection(ctx, name)
	if err != nil {
		return false, fmt.Errorf("check collection %s: %w", name, err)
	}
	if exists {
		s.handles.Put(&CollectionHandle{Name: name})
	}
	return exists, nil
}

// DeleteCollection 删除文档集合并移除缓存句柄。集合不存在时不报错。
func (s *Store) DeleteCollection(ctx context.Context, documentID string) error {
	name := CollectionName(documentID)
	defer s.handles.Evict(name)

	if err := s.backend.DropCollection(ctx, name); err != nil {
		return errors.ErrRAGProviderCall.WithCause(fmt.Errorf("drop %s: %w", name, err))
	}

	logger.Infow("collection deleted", "collection", name)
	return nil
}

// GetCollectionStats 返回集合统计, 任何错误都视为集合不存在。
func (s *Store) GetCollectionStats(ctx context.Context, documentID string) CollectionStats {
	name := CollectionName(documentID)
	stats := CollectionStats{Name: name}

	exists, err := s.backend.HasCollection(ctx, name)
	if err != nil {
		logger.Warnw("collection stats unavailable", "collection", name, "error", err.Error())
		return stats
	}
	if !exists {
		s.handles.Evict(name)
		return stats
	}

	count, err := s.backend.Count(ctx, name)
	if err != nil {
		logger.Warnw("collection count unavailable", "collection", name, "error", err.Error())
		return stats
	}

	stats.Exists = true
	stats.Count = count
	return stats
}

// ListCollections 列出后端已知的全部集合。
func (s *Store) ListCollections(ctx context.Context) ([]string, error) {
	names, err := s.backend.ListCollections(ctx)
	if err != nil {
		return nil, errors.ErrRAGProviderCall.WithCause(fmt.Errorf("list collections: %w", err))
	}
	return names, nil
}

// HealthCheck 检查后端连通性。
func (s *Store) HealthCheck(ctx context.Context) bool {
	if err := s.backend.Ping(ctx); err != nil {
		logger.Warnw("vector store health check failed",
			"backend", s.backend.Name(),
			"error", err.Error(),
		)
		return false
	}
	return true
}

// Close 清空句柄缓存并关闭后端。
func (s *Store) Close(ctx context.Context) error {
	s.handles.Close()
	return s.backend.Close(ctx)
}
