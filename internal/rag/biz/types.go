package biz

import (
	"time"

	"github.com/kart-io/sentinel-rag/internal/pkg/rag/chunker"
	"github.com/kart-io/sentinel-rag/internal/rag/store"
)

// Stage 摄取任务所处阶段。
type Stage string

const (
	StageQueued    Stage = "queued"
	StageChunking  Stage = "chunking"
	StageEmbedding Stage = "embedding"
	StageStoring   Stage = "storing"
	StageDone      Stage = "done"
	StageFailed    Stage = "failed"
)

// 各阶段开始时上报的进度。
const (
	ProgressChunking  = 10
	ProgressEmbedding = 40
	ProgressStoring   = 70
	ProgressDone      = 100
)

// EmbeddingOptions 单次调用的嵌入参数。Provider 为空时按凭据自动选择。
type EmbeddingOptions struct {
	Provider string `json:"provider,omitempty" validate:"omitempty,oneof=openai gemini local"`
	Model    string `json:"model,omitempty"`
}

// EmbeddingResult 批量嵌入结果, Embeddings 与输入分块按位置一一对应。
type EmbeddingResult struct {
	Embeddings     [][]float32   `json:"embeddings"`
	Dimensions     int           `json:"dimensions"`
	Provider       string        `json:"provider"`
	Model          string        `json:"model"`
	ProcessingTime time.Duration `json:"processing_time"`
}

// IngestionJob 摄取任务。
type IngestionJob struct {
	JobID            string           `json:"job_id"`
	DocumentID       string           `json:"document_id" validate:"required,notblank,nocontrol,max=200"`
	ExtractedText    string           `json:"extracted_text"`
	ChunkingOptions  chunker.Options  `json:"chunking_options"`
	EmbeddingOptions EmbeddingOptions `json:"embedding_options"`
	Priority         int              `json:"priority" validate:"gte=0,lte=10"`
	UserID           string           `json:"user_id,omitempty"`
}

// IngestionResult 摄取任务结果。失败时计数为零, Error 非空。
type IngestionResult struct {
	Success             bool          `json:"success"`
	DocumentID          string        `json:"document_id"`
	ChunksCount         int           `json:"chunks_count"`
	EmbeddingDimensions int           `json:"embedding_dimensions"`
	CollectionName      string        `json:"collection_name"`
	ProcessingTime      time.Duration `json:"processing_time"`
	Error               string        `json:"error,omitempty"`
	ErrorCode           int           `json:"error_code,omitempty"`
}

// SearchOptions 检索参数。
type SearchOptions struct {
	TopK      int              `json:"top_k" validate:"gte=0,lte=100"`
	MinScore  float64          `json:"min_score" validate:"gte=0,lte=1"`
	Embedding EmbeddingOptions `json:"embedding"`
}

// SearchResponse 单文档检索结果。
type SearchResponse struct {
	Success    bool                 `json:"success"`
	DocumentID string               `json:"document_id"`
	Results    []store.SearchResult `json:"results"`
	Error      string               `json:"error,omitempty"`
	ErrorCode  int                  `json:"error_code,omitempty"`
}

// GlobalSearchResponse 全局检索结果, 按集合名分组。
type GlobalSearchResponse struct {
	Success   bool                            `json:"success"`
	Results   map[string][]store.SearchResult `json:"results"`
	Error     string                          `json:"error,omitempty"`
	ErrorCode int                             `json:"error_code,omitempty"`
}

// DeleteResponse 删除结果。
type DeleteResponse struct {
	Success        bool   `json:"success"`
	DocumentID     string `json:"document_id"`
	CollectionName string `json:"collection_name"`
	Error          string `json:"error,omitempty"`
	ErrorCode      int    `json:"error_code,omitempty"`
}

// StatsResponse 集合统计结果。
type StatsResponse struct {
	Success    bool                  `json:"success"`
	DocumentID string                `json:"document_id"`
	Stats      store.CollectionStats `json:"stats"`
	Error      string                `json:"error,omitempty"`
	ErrorCode  int                   `json:"error_code,omitempty"`
}
