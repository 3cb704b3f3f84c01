package queue

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/kart-io/logger"

	"github.com/kart-io/sentinel-rag/internal/rag/biz"
	"github.com/kart-io/sentinel-rag/internal/rag/metrics"
	"github.com/kart-io/sentinel-rag/pkg/errors"
	"github.com/kart-io/sentinel-rag/pkg/infra/pool"
	"github.com/kart-io/sentinel-rag/pkg/llm/resilience"
	queueopts "github.com/kart-io/sentinel-rag/pkg/options/queue"
)

// Processor 执行单个摄取任务, 由 biz.Pipeline 实现。
type Processor interface {
	ProcessIngestionJob(ctx context.Context, job *biz.IngestionJob, progress biz.ProgressReporter) *biz.IngestionResult
}

var _ Processor = (*biz.Pipeline)(nil)

// IsRetryable 判断任务失败是否值得重试: 仅网络、超时、限流类错误。
// 熔断器拒绝不在此列, 由消费者放回队列。
func IsRetryable(err error) bool {
	if err == nil || errors.Is(err, resilience.ErrCircuitBreakerOpen) {
		return false
	}
	return errors.IsTransient(errors.GetCode(err))
}

// failureError 将失败结果还原为带错误码的 error, 供重试判断。
func failureError(result *biz.IngestionResult) error {
	if e, ok := errors.Lookup(result.ErrorCode); ok {
		return e.WithMessage(result.Error)
	}
	return fmt.Errorf("ingestion failed: %s", result.Error)
}

// Consumer 从队列拉取任务并在 ants 协程池中执行。
type Consumer struct {
	queue     JobQueue
	processor Processor
	opts      *queueopts.Options
	metrics   *metrics.RAGMetrics
	workers   *pool.Pool
	breaker   *resilience.CircuitBreaker
	retry     *resilience.RetryConfig

	// pausedUntil 熔断期间暂停拉取的截止时间 (UnixNano)。
	pausedUntil atomic.Int64
	lastState   atomic.Int32

	cancel context.CancelFunc
	done   chan struct{}
	jobs   sync.WaitGroup
}

// NewConsumer 创建消费者。m 为空时使用全局指标。
func NewConsumer(q JobQueue, processor Processor, opts *queueopts.Options, m *metrics.RAGMetrics) (*Consumer, error) {
	if opts == nil {
		opts = queueopts.NewOptions()
	}
	if m == nil {
		m = metrics.GetRAGMetrics()
	}

	cfg := pool.DefaultPoolConfig()
	cfg.Capacity = opts.Workers
	cfg.PanicHandler = func(p any) {
		logger.Errorw("ingestion worker panicked", "panic", fmt.Sprint(p))
	}
	workers, err := pool.NewPool("rag-ingest", cfg)
	if err != nil {
		return nil, err
	}

	return &Consumer{
		queue:     q,
		processor: processor,
		opts:      opts,
		metrics:   m,
		workers:   workers,
		breaker: resilience.NewCircuitBreaker(&resilience.CircuitBreakerConfig{
			Name:             "rag-ingest",
			MaxFailures:      opts.BreakerThreshold,
			Timeout:          opts.BreakerTimeout,
			HalfOpenMaxCalls: 1,
		}),
		retry: &resilience.RetryConfig{
			MaxAttempts:     opts.MaxAttempts,
			InitialDelay:    opts.RetryDelay,
			MaxDelay:        opts.RetryDelay * 8,
			Multiplier:      2.0,
			RetryableErrors: IsRetryable,
		},
	}, nil
}

// Name implements server.Runnable.
func (c *Consumer) Name() string {
	return "rag-consumer"
}

// Start 启动拉取循环, 立即返回。
func (c *Consumer) Start(ctx context.Context) error {
	if c.done != nil {
		return fmt.Errorf("consumer already started")
	}
	loopCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	c.cancel = cancel
	c.done = make(chan struct{})

	go c.run(loopCtx)

	logger.Infow("Ingestion consumer started",
		"key", c.opts.Key,
		"workers", c.opts.Workers,
		"max_attempts", c.opts.MaxAttempts,
	)
	return nil
}

// Stop 停止拉取并等待进行中的任务, 直到 ctx 截止。
func (c *Consumer) Stop(ctx context.Context) error {
	if c.cancel == nil {
		c.workers.Release()
		return nil
	}
	c.cancel()
	<-c.done

	finished := make(chan struct{})
	go func() {
		c.jobs.Wait()
		close(finished)
	}()

	select {
	case <-finished:
		c.workers.Release()
		logger.Info("Ingestion consumer stopped")
		return nil
	case <-ctx.Done():
		c.workers.Release()
		return fmt.Errorf("ingestion consumer stop: %w", ctx.Err())
	}
}

// Stats 返回协程池统计。
func (c *Consumer) Stats() pool.Stats {
	return c.workers.Stats()
}

func (c *Consumer) run(ctx context.Context) {
	defer close(c.done)

	for ctx.Err() == nil {
		if wait := c.pauseRemaining(); wait > 0 {
			sleep(ctx, wait)
			continue
		}

		job, err := c.queue.Dequeue(ctx, c.opts.PollTimeout)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			logger.Warnw("dequeue ingestion job failed", "error", err.Error())
			if !errors.Is(err, errors.ErrRAGInvalidRequest) {
				sleep(ctx, c.opts.PollTimeout)
			}
			continue
		}
		if job == nil {
			continue
		}

		c.dispatch(ctx, job)
	}
}

// dispatch 提交到协程池; 池满时阻塞, 形成背压。
func (c *Consumer) dispatch(ctx context.Context, job *biz.IngestionJob) {
	jobCtx := context.WithoutCancel(ctx)

	c.jobs.Add(1)
	err := c.workers.Submit(func() {
		defer c.jobs.Done()
		c.handle(jobCtx, job)
	})
	if err != nil {
		c.jobs.Done()
		logger.Errorw("submit ingestion job failed, requeueing",
			"job_id", job.JobID,
			"error", err.Error(),
		)
		if rerr := c.queue.Requeue(jobCtx, job); rerr != nil {
			logger.Errorw("requeue ingestion job failed", "job_id", job.JobID, "error", rerr.Error())
		}
	}
}

// handle 执行任务, 可重试失败按指数退避重试; 熔断时放回队列并暂停拉取。
func (c *Consumer) handle(ctx context.Context, job *biz.IngestionJob) {
	var (
		result   *biz.IngestionResult
		attempts int
	)

	err := resilience.RetryWithCircuitBreaker(ctx, c.retry, c.breaker, func() error {
		attempts++
		if attempts > 1 {
			c.metrics.RecordJobRetry()
		}
		if _, err := c.queue.MarkAttempt(ctx, job.JobID); err != nil {
			logger.Warnw("mark job attempt failed", "job_id", job.JobID, "error", err.Error())
		}

		result = c.processor.ProcessIngestionJob(ctx, job, c.queue.Reporter(job.JobID))
		if result.Success || !errors.IsTransient(result.ErrorCode) {
			return nil
		}
		return failureError(result)
	})
	c.observeBreaker()

	if errors.Is(err, resilience.ErrCircuitBreakerOpen) {
		c.pause(c.opts.BreakerTimeout)
		logger.Warnw("circuit breaker open, requeueing ingestion job",
			"job_id", job.JobID,
			"document_id", job.DocumentID,
		)
		if rerr := c.queue.Requeue(ctx, job); rerr != nil {
			logger.Errorw("requeue ingestion job failed", "job_id", job.JobID, "error", rerr.Error())
		}
		return
	}

	if result == nil {
		result = &biz.IngestionResult{
			DocumentID: job.DocumentID,
			Error:      errors.FromError(err).Error(),
			ErrorCode:  errors.FromError(err).Code,
		}
	}

	if cerr := c.queue.Complete(ctx, job.JobID, result); cerr != nil {
		logger.Errorw("store ingestion result failed", "job_id", job.JobID, "error", cerr.Error())
	}

	logger.Infow("ingestion job finished",
		"job_id", job.JobID,
		"document_id", job.DocumentID,
		"success", result.Success,
		"attempts", attempts,
		"chunks", result.ChunksCount,
		"error", result.Error,
	)
}

func (c *Consumer) observeBreaker() {
	state := c.breaker.State()
	prev := resilience.CircuitBreakerState(c.lastState.Swap(int32(state)))
	if prev == state {
		return
	}
	switch state {
	case resilience.StateOpen:
		c.metrics.RecordCircuitBreakerOpen()
	case resilience.StateHalfOpen:
		c.metrics.RecordCircuitBreakerHalfOpen()
	case resilience.StateClosed:
		c.metrics.RecordCircuitBreakerClosed()
	}
}

func (c *Consumer) pause(d time.Duration) {
	if d <= 0 {
		d = c.opts.PollTimeout
	}
	c.pausedUntil.Store(time.Now().Add(d).UnixNano())
}

func (c *Consumer) pauseRemaining() time.Duration {
	until := c.pausedUntil.Load()
	if until == 0 {
		return 0
	}
	return time.Until(time.Unix(0, until))
}

func sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
	}
}
