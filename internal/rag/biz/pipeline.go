package biz

import (
	"context"
	"fmt"
	"runtime/debug"
	"strings"
	"time"

	"github.com/kart-io/logger"
	"go.opentelemetry.io/otel/attribute"

	"github.com/kart-io/sentinel-rag/internal/pkg/rag/chunker"
	"github.com/kart-io/sentinel-rag/internal/rag/metrics"
	"github.com/kart-io/sentinel-rag/internal/rag/store"
	"github.com/kart-io/sentinel-rag/pkg/errors"
	"github.com/kart-io/sentinel-rag/pkg/infra/tracing"
)

const tracerName = "sentinel-rag/biz"

// EmbeddingGenerator 嵌入生成接口, 由 Embedder 实现。
type EmbeddingGenerator interface {
	GenerateEmbeddings(ctx context.Context, chunks []chunker.Chunk, opts EmbeddingOptions) (*EmbeddingResult, error)
	GenerateQueryEmbedding(ctx context.Context, query string, opts EmbeddingOptions) ([]float32, error)
}

// VectorIndex 向量存储接口, 由 store.Store 实现。
type VectorIndex interface {
	StoreChunks(ctx context.Context, documentID string, chunks []chunker.Chunk, embeddings [][]float32) (*store.StoreResult, error)
	SearchSimilar(ctx context.Context, queryEmbedding []float32, documentID string, opts store.SearchOptions) ([]store.SearchResult, error)
	SearchGlobal(ctx context.Context, queryEmbedding []float32, opts store.SearchOptions) (map[string][]store.SearchResult, error)
	DeleteCollection(ctx context.Context, documentID string) error
	GetCollectionStats(ctx context.Context, documentID string) store.CollectionStats
}

var (
	_ EmbeddingGenerator = (*Embedder)(nil)
	_ VectorIndex        = (*store.Store)(nil)
)

// ProgressReporter 上报任务进度 (0-100)。返回的错误只记录日志, 不影响任务。
type ProgressReporter func(ctx context.Context, stage Stage, progress int) error

// PipelineConfig 流水线默认参数。
type PipelineConfig struct {
	Chunking chunker.Options
	TopK     int
	MinScore float64
}

// DefaultPipelineConfig 返回默认流水线参数。
func DefaultPipelineConfig() *PipelineConfig {
	return &PipelineConfig{
		Chunking: chunker.DefaultOptions(),
		TopK:     store.DefaultTopK,
	}
}

// Pipeline 摄取与检索流水线。对外方法均不返回 error, 失败以结果对象表示。
type Pipeline struct {
	embedder EmbeddingGenerator
	index    VectorIndex
	config   *PipelineConfig
	metrics  *metrics.RAGMetrics
}

// NewPipeline 创建流水线。m 为空时使用全局指标。
func NewPipeline(embedder EmbeddingGenerator, index VectorIndex, config *PipelineConfig, m *metrics.RAGMetrics) *Pipeline {
	if config == nil {
		config = DefaultPipelineConfig()
	}
	if m == nil {
		m = metrics.GetRAGMetrics()
	}
	return &Pipeline{
		embedder: embedder,
		index:    index,
		config:   config,
		metrics:  m,
	}
}

// chunkingOptions 以任务参数为准, 未设置的字段取默认值。
func (p *Pipeline) chunkingOptions(opts chunker.Options) chunker.Options {
	def := p.config.Chunking
	if opts.ChunkSize == 0 {
		opts.ChunkSize = def.ChunkSize
		if opts.ChunkOverlap == 0 {
			opts.ChunkOverlap = def.ChunkOverlap
		}
	}
	if opts.Strategy == "" {
		opts.Strategy = def.Strategy
	}
	if opts.ChapterPattern == "" {
		opts.ChapterPattern = def.ChapterPattern
	}
	if len(opts.Separators) == 0 {
		opts.Separators = def.Separators
	}
	opts.Preprocess = opts.Preprocess || def.Preprocess
	return opts
}

func (p *Pipeline) report(ctx context.Context, progress ProgressReporter, job *IngestionJob, stage Stage, pct int) {
	if progress == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			logger.Warnw("progress reporter panicked",
				"job_id", job.JobID,
				"stage", string(stage),
				"panic", fmt.Sprint(r),
			)
		}
	}()
	if err := progress(ctx, stage, pct); err != nil {
		logger.Warnw("progress report failed",
			"job_id", job.JobID,
			"stage", string(stage),
			"progress", pct,
			"error", err.Error(),
		)
	}
}

// ProcessIngestionJob 依次执行分块、嵌入、存储。
// 任一阶段失败立即终止, 返回 Success=false 的结果; 不返回 error, 不向外抛出 panic。
func (p *Pipeline) ProcessIngestionJob(ctx context.Context, job *IngestionJob, progress ProgressReporter) (result *IngestionResult) {
	start := time.Now()
	if job == nil {
		return failedResult("", start, errors.ErrRAGInvalidRequest.WithMessage("ingestion job is nil"))
	}

	ctx, span := tracing.StartSpan(ctx, tracerName, "rag.ProcessIngestionJob")
	defer span.End()
	tracing.AddSpanAttributes(ctx,
		attribute.String("rag.job_id", job.JobID),
		attribute.String("rag.document_id", job.DocumentID),
	)

	stage := StageQueued
	pct := 0
	fail := func(err error) *IngestionResult {
		tracing.RecordError(ctx, err)
		p.report(ctx, progress, job, StageFailed, pct)
		res := failedResult(job.DocumentID, start, err)
		p.metrics.RecordJob(res.ProcessingTime, 0, false)
		logger.Errorw("ingestion job failed",
			"job_id", job.JobID,
			"document_id", job.DocumentID,
			"stage", string(stage),
			"error_code", res.ErrorCode,
			"error", res.Error,
		)
		return res
	}

	defer func() {
		if r := recover(); r != nil {
			logger.Errorw("ingestion job panicked",
				"job_id", job.JobID,
				"panic", fmt.Sprint(r),
				"stack", string(debug.Stack()),
			)
			result = fail(errors.ErrInternal.WithMessagef("panic during %s: %v", stage, r))
		}
	}()

	if strings.TrimSpace(job.DocumentID) == "" {
		return fail(errors.ErrRAGInvalidRequest.WithMessage("document_id is required"))
	}

	// 分块
	stage, pct = StageChunking, ProgressChunking
	p.report(ctx, progress, job, stage, pct)
	chunked, err := p.chunk(ctx, job)
	if err != nil {
		return fail(err)
	}

	// 嵌入
	stage, pct = StageEmbedding, ProgressEmbedding
	p.report(ctx, progress, job, stage, pct)
	embedded, err := p.embed(ctx, chunked.Chunks, job.EmbeddingOptions)
	if err != nil {
		return fail(err)
	}

	// 存储
	stage, pct = StageStoring, ProgressStoring
	p.report(ctx, progress, job, stage, pct)
	stored, err := p.store(ctx, job.DocumentID, chunked.Chunks, embedded.Embeddings)
	if err != nil {
		return fail(err)
	}

	stage, pct = StageDone, ProgressDone
	p.report(ctx, progress, job, stage, pct)

	result = &IngestionResult{
		Success:             true,
		DocumentID:          job.DocumentID,
		ChunksCount:         chunked.TotalChunks,
		EmbeddingDimensions: embedded.Dimensions,
		CollectionName:      stored.CollectionName,
		ProcessingTime:      time.Since(start),
	}
	p.metrics.RecordJob(result.ProcessingTime, result.ChunksCount, true)
	tracing.SetSpanOK(ctx)

	logger.Infow("ingestion job completed",
		"job_id", job.JobID,
		"document_id", job.DocumentID,
		"chunks", result.ChunksCount,
		"dimensions", result.EmbeddingDimensions,
		"provider", embedded.Provider,
		"collection", result.CollectionName,
		"duration", result.ProcessingTime.String(),
	)
	return result
}

func (p *Pipeline) chunk(ctx context.Context, job *IngestionJob) (*chunker.Result, error) {
	ctx, span := tracing.StartSpan(ctx, tracerName, "rag.chunk")
	defer span.End()

	opts := p.chunkingOptions(job.ChunkingOptions)
	res, err := chunker.Split(job.ExtractedText, opts)
	if err != nil {
		tracing.RecordError(ctx, err)
		return nil, err
	}
	tracing.AddSpanAttributes(ctx,
		attribute.String("rag.chunk.strategy", string(opts.Strategy)),
		attribute.Int("rag.chunk.count", res.TotalChunks),
	)
	return res, nil
}

func (p *Pipeline) embed(ctx context.Context, chunks []chunker.Chunk, opts EmbeddingOptions) (*EmbeddingResult, error) {
	ctx, span := tracing.StartSpan(ctx, tracerName, "rag.embed")
	defer span.End()

	res, err := p.embedder.GenerateEmbeddings(ctx, chunks, opts)
	if err != nil {
		tracing.RecordError(ctx, err)
		return nil, err
	}
	tracing.AddSpanAttributes(ctx,
		attribute.String("rag.embedding.provider", res.Provider),
		attribute.Int("rag.embedding.dimensions", res.Dimensions),
	)
	return res, nil
}

func (p *Pipeline) store(ctx context.Context, documentID string, chunks []chunker.Chunk, embeddings [][]float32) (*store.StoreResult, error) {
	ctx, span := tracing.StartSpan(ctx, tracerName, "rag.store")
	defer span.End()

	res, err := p.index.StoreChunks(ctx, documentID, chunks, embeddings)
	if err != nil {
		tracing.RecordError(ctx, err)
		return nil, err
	}
	tracing.AddSpanAttributes(ctx, attribute.Int("rag.store.count", res.StoredCount))
	return res, nil
}

func failedResult(documentID string, start time.Time, err error) *IngestionResult {
	msg := errorMessage(err)
	return &IngestionResult{
		Success:        false,
		DocumentID:     documentID,
		ProcessingTime: time.Since(start),
		Error:          msg,
		ErrorCode:      errors.FromError(err).Code,
	}
}

func errorMessage(err error) string {
	if err == nil {
		return "unknown error"
	}
	if msg := err.Error(); msg != "" {
		return msg
	}
	return "unknown error"
}

func (p *Pipeline) searchOptions(opts SearchOptions) store.SearchOptions {
	out := store.SearchOptions{TopK: opts.TopK, MinScore: opts.MinScore}
	if out.TopK <= 0 {
		out.TopK = p.config.TopK
	}
	if out.MinScore <= 0 {
		out.MinScore = p.config.MinScore
	}
	return out
}

// SearchInDocument 在单个文档中检索与 query 相似的分块。
func (p *Pipeline) SearchInDocument(ctx context.Context, documentID, query string, opts SearchOptions) *SearchResponse {
	start := time.Now()
	ctx, span := tracing.StartSpan(ctx, tracerName, "rag.SearchInDocument")
	defer span.End()

	resp := &SearchResponse{DocumentID: documentID, Results: []store.SearchResult{}}
	results, err := p.searchInDocument(ctx, documentID, query, opts)
	p.metrics.RecordSearch(time.Since(start), len(results), err)
	if err != nil {
		tracing.RecordError(ctx, err)
		logger.Warnw("document search failed", "document_id", documentID, "error", err.Error())
		resp.Error = errorMessage(err)
		resp.ErrorCode = errors.FromError(err).Code
		return resp
	}

	resp.Success = true
	resp.Results = results
	return resp
}

func (p *Pipeline) searchInDocument(ctx context.Context, documentID, query string, opts SearchOptions) (results []store.SearchResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.ErrInternal.WithMessagef("panic during search: %v", r)
		}
	}()

	if strings.TrimSpace(query) == "" {
		return nil, errors.ErrRAGInvalidRequest.WithMessage("query is required")
	}
	vec, err := p.embedder.GenerateQueryEmbedding(ctx, query, opts.Embedding)
	if err != nil {
		return nil, err
	}
	return p.index.SearchSimilar(ctx, vec, documentID, p.searchOptions(opts))
}

// SearchGlobal 在所有文档中检索, 结果按集合名分组。
func (p *Pipeline) SearchGlobal(ctx context.Context, query string, opts SearchOptions) *GlobalSearchResponse {
	start := time.Now()
	ctx, span := tracing.StartSpan(ctx, tracerName, "rag.SearchGlobal")
	defer span.End()

	resp := &GlobalSearchResponse{Results: map[string][]store.SearchResult{}}
	results, err := p.searchGlobal(ctx, query, opts)
	total := 0
	for _, r := range results {
		total += len(r)
	}
	p.metrics.RecordSearch(time.Since(start), total, err)
	if err != nil {
		tracing.RecordError(ctx, err)
		logger.Warnw("global search failed", "error", err.Error())
		resp.Error = errorMessage(err)
		resp.ErrorCode = errors.FromError(err).Code
		return resp
	}

	resp.Success = true
	resp.Results = results
	return resp
}

func (p *Pipeline) searchGlobal(ctx context.Context, query string, opts SearchOptions) (results map[string][]store.SearchResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.ErrInternal.WithMessagef("panic during search: %v", r)
		}
	}()

	if strings.TrimSpace(query) == "" {
		return nil, errors.ErrRAGInvalidRequest.WithMessage("query is required")
	}
	vec, err := p.embedder.GenerateQueryEmbedding(ctx, query, opts.Embedding)
	if err != nil {
		return nil, err
	}
	return p.index.SearchGlobal(ctx, vec, p.searchOptions(opts))
}

// DeleteDocumentRAG 删除文档的向量集合。
func (p *Pipeline) DeleteDocumentRAG(ctx context.Context, documentID string) (resp *DeleteResponse) {
	resp = &DeleteResponse{
		DocumentID:     documentID,
		CollectionName: store.CollectionName(documentID),
	}
	defer func() {
		if r := recover(); r != nil {
			resp.Success = false
			resp.Error = fmt.Sprintf("panic during delete: %v", r)
			resp.ErrorCode = errors.ErrInternal.Code
		}
	}()

	if err := p.index.DeleteCollection(ctx, documentID); err != nil {
		logger.Warnw("delete document collection failed", "document_id", documentID, "error", err.Error())
		resp.Error = errorMessage(err)
		resp.ErrorCode = errors.FromError(err).Code
		return resp
	}
	resp.Success = true
	return resp
}

// GetDocumentRAGStats 返回文档集合统计。集合不存在时 Exists=false。
func (p *Pipeline) GetDocumentRAGStats(ctx context.Context, documentID string) (resp *StatsResponse) {
	resp = &StatsResponse{
		DocumentID: documentID,
		Stats:      store.CollectionStats{Name: store.CollectionName(documentID)},
	}
	defer func() {
		if r := recover(); r != nil {
			resp.Success = false
			resp.Error = fmt.Sprintf("panic during stats: %v", r)
			resp.ErrorCode = errors.ErrInternal.Code
		}
	}()

	resp.Stats = p.index.GetCollectionStats(ctx, documentID)
	resp.Success = true
	return resp
}
