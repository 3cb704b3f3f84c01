// Package queue 基于 Redis 列表的摄取任务队列: 生产者 LPUSH, 消费者 BRPOP,
// 任务状态与进度写入哈希 rag:job:<jobId>。
package queue

import (
	"context"
	"strconv"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/kart-io/sentinel-rag/internal/pkg/rag/chunker"
	"github.com/kart-io/sentinel-rag/internal/rag/biz"
	"github.com/kart-io/sentinel-rag/pkg/errors"
	queueopts "github.com/kart-io/sentinel-rag/pkg/options/queue"
	"github.com/kart-io/sentinel-rag/pkg/utils/id"
	"github.com/kart-io/sentinel-rag/pkg/utils/json"
	"github.com/kart-io/sentinel-rag/pkg/validator"
)

// JobKeyPrefix 任务状态哈希键前缀。
const JobKeyPrefix = "rag:job:"

// 状态哈希字段。
const (
	fieldState      = "state"
	fieldProgress   = "progress"
	fieldDocumentID = "document_id"
	fieldAttempts   = "attempts"
	fieldResult     = "result"
	fieldError      = "error"
	fieldErrorCode  = "error_code"
	fieldCreatedAt  = "created_at"
	fieldUpdatedAt  = "updated_at"
)

// JobKey 返回任务状态哈希键。
func JobKey(jobID string) string {
	return JobKeyPrefix + jobID
}

// JobStatus 任务状态快照。
type JobStatus struct {
	JobID      string               `json:"job_id"`
	DocumentID string               `json:"document_id"`
	State      biz.Stage            `json:"state"`
	Progress   int                  `json:"progress"`
	Attempts   int                  `json:"attempts"`
	Result     *biz.IngestionResult `json:"result,omitempty"`
	Error      string               `json:"error,omitempty"`
	ErrorCode  int                  `json:"error_code,omitempty"`
	CreatedAt  time.Time            `json:"created_at"`
	UpdatedAt  time.Time            `json:"updated_at"`
}

// JobQueue 消费者依赖的队列操作, 由 Queue 实现。
type JobQueue interface {
	Dequeue(ctx context.Context, timeout time.Duration) (*biz.IngestionJob, error)
	Requeue(ctx context.Context, job *biz.IngestionJob) error
	MarkAttempt(ctx context.Context, jobID string) (int, error)
	Complete(ctx context.Context, jobID string, result *biz.IngestionResult) error
	Reporter(jobID string) biz.ProgressReporter
}

var _ JobQueue = (*Queue)(nil)

// Queue Redis 任务队列。
type Queue struct {
	client goredis.UniversalClient
	opts   *queueopts.Options
}

// New 创建任务队列。
func New(client goredis.UniversalClient, opts *queueopts.Options) *Queue {
	if opts == nil {
		opts = queueopts.NewOptions()
	}
	return &Queue{client: client, opts: opts}
}

// Validate 校验任务载荷, 失败返回 ErrRAGInvalidRequest。
func Validate(job *biz.IngestionJob, lang string) error {
	if job == nil {
		return errors.ErrRAGInvalidRequest.WithMessage("job is required")
	}
	if verr := validator.StructWithLang(job, lang); verr.HasErrors() {
		return errors.ErrRAGInvalidRequest.WithMessage(verr.First()).WithCause(verr)
	}
	return validateChunking(job.ChunkingOptions)
}

// validateChunking 只校验显式给出的分块参数, 零值由流水线取默认值。
func validateChunking(o chunker.Options) error {
	switch o.Strategy {
	case "", chunker.StrategyStandard, chunker.StrategyChapters, chunker.StrategyFixed:
	default:
		return errors.ErrRAGInvalidRequest.WithMessagef("unknown chunking strategy %q", o.Strategy)
	}
	if o.ChunkSize == 0 && o.ChunkOverlap >= 0 {
		return nil
	}
	if err := o.Validate(); err != nil {
		return errors.ErrRAGInvalidRequest.WithMessage(err.Error()).WithCause(err)
	}
	return nil
}

// Enqueue 校验并入队, 未指定 JobID 时生成 ULID。返回任务 ID。
func (q *Queue) Enqueue(ctx context.Context, job *biz.IngestionJob) (string, error) {
	if err := Validate(job, validator.LangEN); err != nil {
		return "", err
	}
	if job.JobID == "" {
		job.JobID = id.NewULID()
	}

	payload, err := json.Marshal(job)
	if err != nil {
		return "", errors.ErrRAGInvalidRequest.WithCause(err)
	}

	now := time.Now().UTC().Format(time.RFC3339Nano)
	key := JobKey(job.JobID)
	_, err = q.client.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		pipe.HSet(ctx, key,
			fieldState, string(biz.StageQueued),
			fieldProgress, 0,
			fieldDocumentID, job.DocumentID,
			fieldAttempts, 0,
			fieldCreatedAt, now,
			fieldUpdatedAt, now,
		)
		q.expire(ctx, pipe, key)
		pipe.LPush(ctx, q.opts.Key, payload)
		return nil
	})
	if err != nil {
		return "", errors.ErrRAGQueueUnavailable.WithCause(err)
	}
	return job.JobID, nil
}

// Dequeue 阻塞弹出一个任务, 超时返回 (nil, nil)。
func (q *Queue) Dequeue(ctx context.Context, timeout time.Duration) (*biz.IngestionJob, error) {
	res, err := q.client.BRPop(ctx, timeout, q.opts.Key).Result()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, nil
		}
		return nil, errors.ErrRAGQueueUnavailable.WithCause(err)
	}
	// BRPOP 返回 [key, value]
	if len(res) != 2 {
		return nil, errors.ErrRAGQueueUnavailable.WithMessagef("unexpected BRPOP reply of length %d", len(res))
	}

	var job biz.IngestionJob
	if err := json.Unmarshal([]byte(res[1]), &job); err != nil {
		return nil, errors.ErrRAGInvalidRequest.WithMessage("malformed job payload").WithCause(err)
	}
	return &job, nil
}

// Requeue 将任务放回队首, 下一次弹出即被处理。
func (q *Queue) Requeue(ctx context.Context, job *biz.IngestionJob) error {
	payload, err := json.Marshal(job)
	if err != nil {
		return errors.ErrRAGInvalidRequest.WithCause(err)
	}
	key := JobKey(job.JobID)
	_, err = q.client.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		pipe.HSet(ctx, key, fieldState, string(biz.StageQueued), fieldUpdatedAt, nowString())
		pipe.RPush(ctx, q.opts.Key, payload)
		return nil
	})
	if err != nil {
		return errors.ErrRAGQueueUnavailable.WithCause(err)
	}
	return nil
}

// MarkAttempt 递增尝试次数并返回新值。
func (q *Queue) MarkAttempt(ctx context.Context, jobID string) (int, error) {
	n, err := q.client.HIncrBy(ctx, JobKey(jobID), fieldAttempts, 1).Result()
	if err != nil {
		return 0, errors.ErrRAGQueueUnavailable.WithCause(err)
	}
	return int(n), nil
}

// Complete 写入终态与结果 JSON。
func (q *Queue) Complete(ctx context.Context, jobID string, result *biz.IngestionResult) error {
	if result == nil {
		return errors.ErrRAGInvariantViolation.WithMessage("nil ingestion result")
	}
	payload, err := json.Marshal(result)
	if err != nil {
		return errors.ErrRAGInvariantViolation.WithCause(err)
	}

	state := biz.StageDone
	if !result.Success {
		state = biz.StageFailed
	}
	fields := []any{
		fieldState, string(state),
		fieldResult, string(payload),
		fieldError, result.Error,
		fieldErrorCode, result.ErrorCode,
		fieldUpdatedAt, nowString(),
	}
	if result.Success {
		fields = append(fields, fieldProgress, biz.ProgressDone)
	}

	key := JobKey(jobID)
	_, err = q.client.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		pipe.HSet(ctx, key, fields...)
		q.expire(ctx, pipe, key)
		return nil
	})
	if err != nil {
		return errors.ErrRAGQueueUnavailable.WithCause(err)
	}
	return nil
}

// Reporter 返回写入 Redis 哈希的进度回调。
func (q *Queue) Reporter(jobID string) biz.ProgressReporter {
	key := JobKey(jobID)
	return func(ctx context.Context, stage biz.Stage, progress int) error {
		return q.client.HSet(ctx, key,
			fieldState, string(stage),
			fieldProgress, progress,
			fieldUpdatedAt, nowString(),
		).Err()
	}
}

// GetJob 读取任务状态, 不存在返回 ErrRAGJobNotFound。
func (q *Queue) GetJob(ctx context.Context, jobID string) (*JobStatus, error) {
	values, err := q.client.HGetAll(ctx, JobKey(jobID)).Result()
	if err != nil {
		return nil, errors.ErrRAGQueueUnavailable.WithCause(err)
	}
	if len(values) == 0 {
		return nil, errors.ErrRAGJobNotFound.WithMessagef("job %s not found", jobID)
	}
	return parseStatus(jobID, values), nil
}

// Len 返回排队中的任务数。
func (q *Queue) Len(ctx context.Context) (int64, error) {
	n, err := q.client.LLen(ctx, q.opts.Key).Result()
	if err != nil {
		return 0, errors.ErrRAGQueueUnavailable.WithCause(err)
	}
	return n, nil
}

func (q *Queue) expire(ctx context.Context, pipe goredis.Pipeliner, key string) {
	if q.opts.StateTTL > 0 {
		pipe.Expire(ctx, key, q.opts.StateTTL)
	}
}

func parseStatus(jobID string, values map[string]string) *JobStatus {
	status := &JobStatus{
		JobID:      jobID,
		DocumentID: values[fieldDocumentID],
		State:      biz.Stage(values[fieldState]),
		Progress:   atoi(values[fieldProgress]),
		Attempts:   atoi(values[fieldAttempts]),
		Error:      values[fieldError],
		ErrorCode:  atoi(values[fieldErrorCode]),
		CreatedAt:  parseTime(values[fieldCreatedAt]),
		UpdatedAt:  parseTime(values[fieldUpdatedAt]),
	}
	if raw := values[fieldResult]; raw != "" {
		var result biz.IngestionResult
		if err := json.Unmarshal([]byte(raw), &result); err == nil {
			status.Result = &result
		}
	}
	return status
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(time.RFC3339Nano, s)
	return t
}

func nowString() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}
