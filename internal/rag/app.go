// Package rag provides the RAG ingestion and retrieval service application.
package rag

import (
	"context"
	"fmt"
	"time"

	"github.com/kart-io/logger"

	"github.com/kart-io/sentinel-rag/internal/rag/biz"
	"github.com/kart-io/sentinel-rag/internal/rag/handler"
	"github.com/kart-io/sentinel-rag/internal/rag/metrics"
	"github.com/kart-io/sentinel-rag/internal/rag/queue"
	"github.com/kart-io/sentinel-rag/internal/rag/router"
	"github.com/kart-io/sentinel-rag/internal/rag/store"
	"github.com/kart-io/sentinel-rag/pkg/component/redis"
	"github.com/kart-io/sentinel-rag/pkg/infra/app"
	"github.com/kart-io/sentinel-rag/pkg/infra/server"
	"github.com/kart-io/sentinel-rag/pkg/infra/tracing"
)

const (
	appName        = "sentinel-rag"
	appDescription = `Sentinel RAG Service

Retrieval-augmented generation substrate. The service:
  - Splits extracted document text into overlapping chunks
  - Generates embeddings through OpenAI, Gemini or a local model
  - Stores each document in its own vector collection
  - Answers similarity searches within a document or across all documents`

	closeTimeout = 10 * time.Second
)

// NewApp creates a new application instance.
func NewApp() *app.App {
	opts := NewOptions()

	return app.NewApp(
		app.WithName(appName),
		app.WithShortDescription("RAG ingestion and retrieval service"),
		app.WithDescription(appDescription),
		app.WithOptions(opts),
		app.WithWatchConfig(),
		app.WithRunFunc(func() error {
			return Run(context.Background(), opts)
		}),
	)
}

// Run runs the RAG service until ctx is cancelled or a shutdown signal arrives.
func Run(ctx context.Context, opts *Options) error {
	// 1. 初始化日志
	opts.Log.AddInitialField("service.name", appName)
	opts.Log.AddInitialField("service.version", app.GetVersion())
	if err := opts.Log.Init(); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	logger.Infow("Starting RAG service", "backend", opts.RAG.Backend, "queue", opts.Queue.Enabled)

	// 2. 初始化链路追踪
	tp, err := tracing.NewProvider(ctx, opts.Tracing, app.GetVersion())
	if err != nil {
		return fmt.Errorf("failed to initialize tracing: %w", err)
	}
	defer closeWith("tracing", tp.Shutdown)

	// 3. 初始化向量存储
	backend, err := store.NewBackend(opts.RAG.Backend, opts.backendOptions())
	if err != nil {
		return fmt.Errorf("failed to initialize vector store: %w", err)
	}
	vectors := store.New(backend)
	defer closeWith("vector store", vectors.Close)
	logger.Infow("Vector store initialized", "backend", opts.RAG.Backend)

	m := metrics.GetRAGMetrics()

	// 4. 初始化 Redis (任务队列与嵌入缓存)
	embedderOpts := []biz.EmbedderOption{biz.WithEmbedderMetrics(m)}
	var redisClient *redis.Client
	if opts.needsRedis() {
		redisClient, err = redis.NewWithContext(ctx, opts.Redis)
		if err != nil {
			return fmt.Errorf("failed to initialize redis: %w", err)
		}
		defer closeWith("redis", func(context.Context) error { return redisClient.Close() })
		logger.Infow("Redis client initialized", "addr", opts.Redis.Addr())

		if opts.cacheEnabled() {
			embedderOpts = append(embedderOpts, biz.WithRedis(redisClient.Client()))
		}
	}

	// 5. 初始化 Biz 层
	embedder := biz.NewEmbedder(opts.Embedding, embedderOpts...)
	logger.Infow("Embedding generator initialized", "providers", embedder.AvailableProviders())
	pipeline := biz.NewPipeline(embedder, vectors, opts.pipelineConfig(), m)

	mgr := server.NewManager(opts.HTTP)

	// 6. 初始化任务队列
	var jobs handler.JobService
	if opts.Queue.Enabled {
		q := queue.New(redisClient.Client(), opts.Queue)
		consumer, err := queue.NewConsumer(q, pipeline, opts.Queue, m)
		if err != nil {
			return fmt.Errorf("failed to initialize job consumer: %w", err)
		}
		mgr.AddServer(consumer)
		jobs = q
	}

	// 7. 注册路由
	router.Register(
		mgr.HTTPServer().Engine(),
		handler.NewRAGHandler(pipeline, jobs),
		handler.NewSystemHandler(vectors, m, opts.RAG.Backend),
	)

	// 8. 启动服务
	logger.Infow("RAG service is ready", "addr", opts.HTTP.Addr)
	return mgr.Run(ctx)
}

// closeWith 在独立超时内释放资源, 错误只记录日志。
func closeWith(name string, closeFn func(context.Context) error) {
	ctx, cancel := context.WithTimeout(context.Background(), closeTimeout)
	defer cancel()
	if err := closeFn(ctx); err != nil {
		logger.Warnw("Failed to close resource", "resource", name, "error", err)
	}
}
