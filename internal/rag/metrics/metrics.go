// Package metrics 提供 RAG 服务的业务指标收集。
package metrics

import (
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// RAGMetrics RAG 服务业务指标。
type RAGMetrics struct {
	// 摄取任务指标
	jobsTotal     uint64 // 处理的任务数
	jobsSucceeded uint64 // 成功任务数
	jobsFailed    uint64 // 失败任务数
	jobsRetried   uint64 // 重试次数
	chunksStored  uint64 // 已写入分块数
	jobsDuration  float64

	// Embedding 调用指标
	embedCallsTotal    uint64
	embedCallsErrors   uint64
	embedCallsDuration float64

	// 检索指标
	searchTotal    uint64
	searchErrors   uint64
	searchEmpty    uint64 // 无结果的检索次数
	searchDuration float64

	// 熔断器指标
	circuitBreakerOpens uint64
	circuitBreakerState int32 // 0=closed, 1=open, 2=half-open

	durationMu sync.Mutex
	startTime  time.Time
}

var (
	globalRAGMetrics *RAGMetrics
	ragMetricsOnce   sync.Once
)

// NewRAGMetrics 创建独立的指标实例。
func NewRAGMetrics() *RAGMetrics {
	return &RAGMetrics{startTime: time.Now()}
}

// GetRAGMetrics 获取全局 RAG 指标实例。
func GetRAGMetrics() *RAGMetrics {
	ragMetricsOnce.Do(func() {
		globalRAGMetrics = NewRAGMetrics()
	})
	return globalRAGMetrics
}

func (m *RAGMetrics) addDuration(target *float64, d time.Duration) {
	m.durationMu.Lock()
	*target += d.Seconds()
	m.durationMu.Unlock()
}

// RecordJob 记录一次摄取任务的结果。
func (m *RAGMetrics) RecordJob(duration time.Duration, chunks int, success bool) {
	atomic.AddUint64(&m.jobsTotal, 1)
	m.addDuration(&m.jobsDuration, duration)
	if !success {
		atomic.AddUint64(&m.jobsFailed, 1)
		return
	}
	atomic.AddUint64(&m.jobsSucceeded, 1)
	if chunks > 0 {
		atomic.AddUint64(&m.chunksStored, uint64(chunks))
	}
}

// RecordJobRetry 记录任务重试。
func (m *RAGMetrics) RecordJobRetry() {
	atomic.AddUint64(&m.jobsRetried, 1)
}

// RecordEmbedding 记录 Embedding 调用, 失败时也计入耗时。
func (m *RAGMetrics) RecordEmbedding(duration time.Duration, err error) {
	atomic.AddUint64(&m.embedCallsTotal, 1)
	m.addDuration(&m.embedCallsDuration, duration)
	if err != nil {
		atomic.AddUint64(&m.embedCallsErrors, 1)
	}
}

// RecordSearch 记录检索。
func (m *RAGMetrics) RecordSearch(duration time.Duration, results int, err error) {
	atomic.AddUint64(&m.searchTotal, 1)
	m.addDuration(&m.searchDuration, duration)
	if err != nil {
		atomic.AddUint64(&m.searchErrors, 1)
		return
	}
	if results == 0 {
		atomic.AddUint64(&m.searchEmpty, 1)
	}
}

// RecordCircuitBreakerOpen 记录熔断器打开。
func (m *RAGMetrics) RecordCircuitBreakerOpen() {
	atomic.AddUint64(&m.circuitBreakerOpens, 1)
	atomic.StoreInt32(&m.circuitBreakerState, 1)
}

// RecordCircuitBreakerClosed 记录熔断器关闭。
func (m *RAGMetrics) RecordCircuitBreakerClosed() {
	atomic.StoreInt32(&m.circuitBreakerState, 0)
}

// RecordCircuitBreakerHalfOpen 记录熔断器半开。
func (m *RAGMetrics) RecordCircuitBreakerHalfOpen() {
	atomic.StoreInt32(&m.circuitBreakerState, 2)
}

func (m *RAGMetrics) durations() (jobs, embed, search float64) {
	m.durationMu.Lock()
	defer m.durationMu.Unlock()
	return m.jobsDuration, m.embedCallsDuration, m.searchDuration
}

func average(total float64, n uint64) float64 {
	if n == 0 {
		return 0
	}
	return total / float64(n)
}

func writeMetric(sb *strings.Builder, prefix, name, kind, help string, value any) {
	fmt.Fprintf(sb, "# HELP %s_%s %s\n", prefix, name, help)
	fmt.Fprintf(sb, "# TYPE %s_%s %s\n", prefix, name, kind)
	switch v := value.(type) {
	case float64:
		fmt.Fprintf(sb, "%s_%s %.6f\n\n", prefix, name, v)
	default:
		fmt.Fprintf(sb, "%s_%s %v\n\n", prefix, name, v)
	}
}

// Export 导出 Prometheus 文本格式指标。
func (m *RAGMetrics) Export(namespace, subsystem string) string {
	prefix := namespace
	if subsystem != "" {
		prefix = prefix + "_" + subsystem
	}
	jobsDur, embedDur, searchDur := m.durations()

	var sb strings.Builder

	writeMetric(&sb, prefix, "jobs_total", "counter", "Total number of ingestion jobs processed.", atomic.LoadUint64(&m.jobsTotal))
	writeMetric(&sb, prefix, "jobs_succeeded_total", "counter", "Number of successful ingestion jobs.", atomic.LoadUint64(&m.jobsSucceeded))
	writeMetric(&sb, prefix, "jobs_failed_total", "counter", "Number of failed ingestion jobs.", atomic.LoadUint64(&m.jobsFailed))
	writeMetric(&sb, prefix, "jobs_retried_total", "counter", "Number of ingestion job retries.", atomic.LoadUint64(&m.jobsRetried))
	writeMetric(&sb, prefix, "jobs_duration_seconds_total", "counter", "Total ingestion job duration.", jobsDur)
	writeMetric(&sb, prefix, "chunks_stored_total", "counter", "Total chunks written to the vector store.", atomic.LoadUint64(&m.chunksStored))

	writeMetric(&sb, prefix, "embedding_calls_total", "counter", "Total number of embedding calls.", atomic.LoadUint64(&m.embedCallsTotal))
	writeMetric(&sb, prefix, "embedding_calls_errors_total", "counter", "Number of failed embedding calls.", atomic.LoadUint64(&m.embedCallsErrors))
	writeMetric(&sb, prefix, "embedding_calls_duration_seconds_total", "counter", "Total embedding call duration.", embedDur)

	writeMetric(&sb, prefix, "search_total", "counter", "Total number of similarity searches.", atomic.LoadUint64(&m.searchTotal))
	writeMetric(&sb, prefix, "search_errors_total", "counter", "Number of failed searches.", atomic.LoadUint64(&m.searchErrors))
	writeMetric(&sb, prefix, "search_empty_total", "counter", "Number of searches without results.", atomic.LoadUint64(&m.searchEmpty))
	writeMetric(&sb, prefix, "search_duration_seconds_total", "counter", "Total search duration.", searchDur)

	writeMetric(&sb, prefix, "circuit_breaker_opens_total", "counter", "Number of circuit breaker opens.", atomic.LoadUint64(&m.circuitBreakerOpens))
	writeMetric(&sb, prefix, "circuit_breaker_state", "gauge", "Circuit breaker state (0=closed, 1=open, 2=half-open).", atomic.LoadInt32(&m.circuitBreakerState))

	writeMetric(&sb, prefix, "uptime_seconds", "gauge", "Service uptime in seconds.", time.Since(m.startTime).Seconds())

	return sb.String()
}

// Stats 返回当前统计信息（用于 API）。
func (m *RAGMetrics) Stats() map[string]any {
	jobsDur, embedDur, searchDur := m.durations()

	jobsTotal := atomic.LoadUint64(&m.jobsTotal)
	embedTotal := atomic.LoadUint64(&m.embedCallsTotal)
	searchTotal := atomic.LoadUint64(&m.searchTotal)

	cbStateStr := "closed"
	switch atomic.LoadInt32(&m.circuitBreakerState) {
	case 1:
		cbStateStr = "open"
	case 2:
		cbStateStr = "half-open"
	}

	return map[string]any{
		"jobs": map[string]any{
			"total":             jobsTotal,
			"succeeded":         atomic.LoadUint64(&m.jobsSucceeded),
			"failed":            atomic.LoadUint64(&m.jobsFailed),
			"retried":           atomic.LoadUint64(&m.jobsRetried),
			"chunks_stored":     atomic.LoadUint64(&m.chunksStored),
			"avg_duration_secs": average(jobsDur, jobsTotal),
		},
		"embedding": map[string]any{
			"calls_total":       embedTotal,
			"errors":            atomic.LoadUint64(&m.embedCallsErrors),
			"avg_duration_secs": average(embedDur, embedTotal),
		},
		"search": map[string]any{
			"total":             searchTotal,
			"errors":            atomic.LoadUint64(&m.searchErrors),
			"empty":             atomic.LoadUint64(&m.searchEmpty),
			"avg_duration_secs": average(searchDur, searchTotal),
		},
		"circuit_breaker": map[string]any{
			"state": cbStateStr,
			"opens": atomic.LoadUint64(&m.circuitBreakerOpens),
		},
		"uptime_seconds": time.Since(m.startTime).Seconds(),
	}
}

// Reset 重置所有指标（仅用于测试）。
func (m *RAGMetrics) Reset() {
	for _, c := range []*uint64{
		&m.jobsTotal, &m.jobsSucceeded, &m.jobsFailed, &m.jobsRetried, &m.chunksStored,
		&m.embedCallsTotal, &m.embedCallsErrors,
		&m.searchTotal, &m.searchErrors, &m.searchEmpty,
		&m.circuitBreakerOpens,
	} {
		atomic.StoreUint64(c, 0)
	}
	atomic.StoreInt32(&m.circuitBreakerState, 0)

	m.durationMu.Lock()
	m.jobsDuration = 0
	m.embedCallsDuration = 0
	m.searchDuration = 0
	m.startTime = time.Now()
	m.durationMu.Unlock()
}
