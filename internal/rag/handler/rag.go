// Package handler provides HTTP handlers for the RAG service.
package handler

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/kart-io/logger"

	"github.com/kart-io/sentinel-rag/internal/pkg/httputils"
	"github.com/kart-io/sentinel-rag/internal/rag/biz"
	"github.com/kart-io/sentinel-rag/internal/rag/queue"
	"github.com/kart-io/sentinel-rag/pkg/errors"
	"github.com/kart-io/sentinel-rag/pkg/utils/response"
)

// RAGService 流水线对外能力, 由 biz.Pipeline 实现。
type RAGService interface {
	ProcessIngestionJob(ctx context.Context, job *biz.IngestionJob, progress biz.ProgressReporter) *biz.IngestionResult
	SearchInDocument(ctx context.Context, documentID, query string, opts biz.SearchOptions) *biz.SearchResponse
	SearchGlobal(ctx context.Context, query string, opts biz.SearchOptions) *biz.GlobalSearchResponse
	DeleteDocumentRAG(ctx context.Context, documentID string) *biz.DeleteResponse
	GetDocumentRAGStats(ctx context.Context, documentID string) *biz.StatsResponse
}

// JobService 任务队列, 由 queue.Queue 实现。
type JobService interface {
	Enqueue(ctx context.Context, job *biz.IngestionJob) (string, error)
	GetJob(ctx context.Context, jobID string) (*queue.JobStatus, error)
}

var (
	_ RAGService = (*biz.Pipeline)(nil)
	_ JobService = (*queue.Queue)(nil)
)

// RAGHandler handles RAG HTTP requests.
type RAGHandler struct {
	service RAGService
	jobs    JobService
}

// NewRAGHandler creates a new RAGHandler. jobs 为空表示队列未启用, 任务同步执行。
func NewRAGHandler(service RAGService, jobs JobService) *RAGHandler {
	return &RAGHandler{service: service, jobs: jobs}
}

// CreateJobResponse is returned when a job is accepted by the queue.
type CreateJobResponse struct {
	JobID      string    `json:"job_id"`
	DocumentID string    `json:"document_id"`
	State      biz.Stage `json:"state"`
}

// SearchRequest is the body of the search endpoints.
type SearchRequest struct {
	Query     string               `json:"query" validate:"required,notblank,max=8000"`
	TopK      int                  `json:"top_k" validate:"gte=0,lte=100"`
	MinScore  float64              `json:"min_score" validate:"gte=0,lte=1"`
	Embedding biz.EmbeddingOptions `json:"embedding"`
}

func (r *SearchRequest) options() biz.SearchOptions {
	return biz.SearchOptions{TopK: r.TopK, MinScore: r.MinScore, Embedding: r.Embedding}
}

// failure 把结果结构中的错误还原为带错误码的 error。
func failure(code int, msg string) error {
	if e, ok := errors.Lookup(code); ok {
		return e.WithMessage(msg)
	}
	return errors.ErrInternal.WithMessage(msg)
}

// CreateJob 提交摄取任务。队列启用时入队返回任务 ID, 否则同步执行并返回结果。
func (h *RAGHandler) CreateJob(c *gin.Context) {
	var job biz.IngestionJob
	if err := httputils.BindJSON(c, &job); err != nil {
		httputils.WriteResponse(c, err, nil)
		return
	}
	if err := queue.Validate(&job, response.Lang(c)); err != nil {
		httputils.WriteResponse(c, err, nil)
		return
	}

	if h.jobs == nil {
		result := h.service.ProcessIngestionJob(c.Request.Context(), &job, nil)
		if !result.Success {
			httputils.WriteResponse(c, failure(result.ErrorCode, result.Error), result)
			return
		}
		httputils.WriteResponse(c, nil, result)
		return
	}

	jobID, err := h.jobs.Enqueue(c.Request.Context(), &job)
	if err != nil {
		logger.Warnw("enqueue ingestion job failed", "document_id", job.DocumentID, "error", err.Error())
		httputils.WriteResponse(c, err, nil)
		return
	}
	httputils.WriteResponse(c, nil, &CreateJobResponse{
		JobID:      jobID,
		DocumentID: job.DocumentID,
		State:      biz.StageQueued,
	})
}

// GetJob 查询任务状态与进度。
func (h *RAGHandler) GetJob(c *gin.Context) {
	if h.jobs == nil {
		httputils.WriteResponse(c, errors.ErrRAGQueueUnavailable.WithMessage("job queue is disabled"), nil)
		return
	}
	status, err := h.jobs.GetJob(c.Request.Context(), c.Param("id"))
	httputils.WriteResponse(c, err, status)
}

// SearchInDocument 在单个文档中检索。
func (h *RAGHandler) SearchInDocument(c *gin.Context) {
	var req SearchRequest
	if err := httputils.BindJSON(c, &req); err != nil {
		httputils.WriteResponse(c, err, nil)
		return
	}

	resp := h.service.SearchInDocument(c.Request.Context(), c.Param("id"), req.Query, req.options())
	if !resp.Success {
		httputils.WriteResponse(c, failure(resp.ErrorCode, resp.Error), nil)
		return
	}
	httputils.WriteResponse(c, nil, resp)
}

// SearchGlobal 在所有文档中检索。
func (h *RAGHandler) SearchGlobal(c *gin.Context) {
	var req SearchRequest
	if err := httputils.BindJSON(c, &req); err != nil {
		httputils.WriteResponse(c, err, nil)
		return
	}

	resp := h.service.SearchGlobal(c.Request.Context(), req.Query, req.options())
	if !resp.Success {
		httputils.WriteResponse(c, failure(resp.ErrorCode, resp.Error), nil)
		return
	}
	httputils.WriteResponse(c, nil, resp)
}

// GetDocumentStats 返回文档集合统计。集合不存在时 exists=false, 不视为错误。
func (h *RAGHandler) GetDocumentStats(c *gin.Context) {
	resp := h.service.GetDocumentRAGStats(c.Request.Context(), c.Param("id"))
	if !resp.Success {
		httputils.WriteResponse(c, failure(resp.ErrorCode, resp.Error), nil)
		return
	}
	httputils.WriteResponse(c, nil, resp)
}

// DeleteDocument 删除文档的向量集合。删除不存在的集合同样成功。
func (h *RAGHandler) DeleteDocument(c *gin.Context) {
	resp := h.service.DeleteDocumentRAG(c.Request.Context(), c.Param("id"))
	if !resp.Success {
		httputils.WriteResponse(c, failure(resp.ErrorCode, resp.Error), nil)
		return
	}
	httputils.WriteResponse(c, nil, resp)
}
