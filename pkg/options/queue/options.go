// Package queue provides ingestion job queue configuration options.
package queue

import (
	"fmt"
	"time"

	"github.com/spf13/pflag"

	"github.com/kart-io/sentinel-rag/pkg/options"
)

var _ options.IOptions = (*Options)(nil)

// Options 摄取任务队列配置。
type Options struct {
	// Enabled 为 false 时任务在 HTTP 请求内同步执行。
	Enabled bool `json:"enabled" mapstructure:"enabled"`

	// Key Redis 列表键名。
	Key string `json:"key" mapstructure:"key"`

	// Workers 并发处理任务的 worker 数量。
	Workers int `json:"workers" mapstructure:"workers"`

	// MaxAttempts 可重试失败的最大尝试次数。
	MaxAttempts int `json:"max-attempts" mapstructure:"max-attempts"`

	// RetryDelay 首次重试前的等待时间, 之后指数增长。
	RetryDelay time.Duration `json:"retry-delay" mapstructure:"retry-delay"`

	// PollTimeout BRPOP 阻塞等待时间。
	PollTimeout time.Duration `json:"poll-timeout" mapstructure:"poll-timeout"`

	// StateTTL 任务状态哈希的保留时间。
	StateTTL time.Duration `json:"state-ttl" mapstructure:"state-ttl"`

	// BreakerThreshold 连续可重试失败达到该次数后熔断, 暂停消费。
	BreakerThreshold int `json:"breaker-threshold" mapstructure:"breaker-threshold"`

	// BreakerTimeout 熔断后恢复探测前的等待时间。
	BreakerTimeout time.Duration `json:"breaker-timeout" mapstructure:"breaker-timeout"`
}

// NewOptions 创建默认队列配置。
func NewOptions() *Options {
	return &Options{
		Enabled:     true,
		Key:         "rag:jobs",
		Workers:     4,
		MaxAttempts: 3,
		RetryDelay:  2 * time.Second,
		PollTimeout: 5 * time.Second,
		StateTTL:    24 * time.Hour,

		BreakerThreshold: 5,
		BreakerTimeout:   30 * time.Second,
	}
}

// AddFlags adds flags for queue options to the specified FlagSet.
func (o *Options) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	p := options.Join(prefixes...) + "queue."
	fs.BoolVar(&o.Enabled, p+"enabled", o.Enabled, "Consume ingestion jobs from Redis (requires redis.enabled).")
	fs.StringVar(&o.Key, p+"key", o.Key, "Redis list holding queued ingestion jobs.")
	fs.IntVar(&o.Workers, p+"workers", o.Workers, "Number of concurrent ingestion workers.")
	fs.IntVar(&o.MaxAttempts, p+"max-attempts", o.MaxAttempts, "Maximum attempts for retryable job failures.")
	fs.DurationVar(&o.RetryDelay, p+"retry-delay", o.RetryDelay, "Initial delay before retrying a failed job.")
	fs.DurationVar(&o.PollTimeout, p+"poll-timeout", o.PollTimeout, "Blocking pop timeout.")
	fs.DurationVar(&o.StateTTL, p+"state-ttl", o.StateTTL, "Retention of job state in Redis.")
	fs.IntVar(&o.BreakerThreshold, p+"breaker-threshold", o.BreakerThreshold, "Consecutive retryable failures that pause consumption.")
	fs.DurationVar(&o.BreakerTimeout, p+"breaker-timeout", o.BreakerTimeout, "Pause before probing the backends again after the breaker opens.")
}

// Validate validates the queue options.
func (o *Options) Validate() []error {
	if o == nil || !o.Enabled {
		return nil
	}

	var errs []error
	if o.Key == "" {
		errs = append(errs, fmt.Errorf("queue.key is required"))
	}
	if o.Workers <= 0 {
		errs = append(errs, fmt.Errorf("queue.workers must be positive"))
	}
	if o.MaxAttempts <= 0 {
		errs = append(errs, fmt.Errorf("queue.max-attempts must be positive"))
	}
	if o.PollTimeout <= 0 {
		errs = append(errs, fmt.Errorf("queue.poll-timeout must be positive"))
	}
	if o.BreakerThreshold <= 0 {
		errs = append(errs, fmt.Errorf("queue.breaker-threshold must be positive"))
	}
	return errs
}
