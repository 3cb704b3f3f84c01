package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastRetry(attempts int) *RetryConfig {
	return &RetryConfig{
		MaxAttempts:  attempts,
		InitialDelay: time.Millisecond,
		MaxDelay:     5 * time.Millisecond,
		Multiplier:   2,
	}
}

func TestRetryWithBackoff_EventualSuccess(t *testing.T) {
	calls := 0
	err := RetryWithBackoff(context.Background(), fastRetry(3), func() error {
		calls++
		if calls < 3 {
			return errors.New("temporary")
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestRetryWithBackoff_MaxAttemptsReached(t *testing.T) {
	testErr := errors.New("still failing")
	calls := 0
	err := RetryWithBackoff(context.Background(), fastRetry(2), func() error {
		calls++
		return testErr
	})

	assert.ErrorIs(t, err, testErr)
	assert.Contains(t, err.Error(), "max retry attempts (2) reached")
	assert.Equal(t, 2, calls)
}

func TestRetryWithBackoff_NonRetryableError(t *testing.T) {
	fatal := errors.New("missing credential")
	cfg := fastRetry(5)
	cfg.RetryableErrors = func(err error) bool { return !errors.Is(err, fatal) }

	calls := 0
	err := RetryWithBackoff(context.Background(), cfg, func() error {
		calls++
		return fatal
	})

	assert.Equal(t, fatal, err)
	assert.Equal(t, 1, calls)
}

func TestRetryWithBackoff_ContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cfg := &RetryConfig{MaxAttempts: 5, InitialDelay: time.Second}

	calls := 0
	err := RetryWithBackoff(ctx, cfg, func() error {
		calls++
		cancel()
		return errors.New("temporary")
	})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

func TestCircuitBreaker_OpenAndRecover(t *testing.T) {
	cb := NewCircuitBreaker(&CircuitBreakerConfig{
		MaxFailures:      2,
		Timeout:          20 * time.Millisecond,
		HalfOpenMaxCalls: 1,
	})
	testErr := errors.New("backend down")

	for i := 0; i < 2; i++ {
		assert.ErrorIs(t, cb.Execute(func() error { return testErr }), testErr)
	}
	assert.Equal(t, StateOpen, cb.State())
	assert.ErrorIs(t, cb.Execute(func() error { return nil }), ErrCircuitBreakerOpen)

	time.Sleep(30 * time.Millisecond)

	require.NoError(t, cb.Execute(func() error { return nil }))
	assert.Equal(t, StateClosed, cb.State())
}

func TestCircuitBreaker_HalfOpenFailureReopens(t *testing.T) {
	cb := NewCircuitBreaker(&CircuitBreakerConfig{MaxFailures: 1, Timeout: 10 * time.Millisecond, HalfOpenMaxCalls: 1})
	testErr := errors.New("backend down")

	_ = cb.Execute(func() error { return testErr })
	time.Sleep(20 * time.Millisecond)
	_ = cb.Execute(func() error { return testErr })

	assert.Equal(t, StateOpen, cb.State())

	cb.Reset()
	assert.Equal(t, StateClosed, cb.State())
}

func TestRetryWithCircuitBreaker(t *testing.T) {
	cb := NewCircuitBreaker(&CircuitBreakerConfig{MaxFailures: 2, Timeout: time.Minute, HalfOpenMaxCalls: 1})

	calls := 0
	err := RetryWithCircuitBreaker(context.Background(), fastRetry(4), cb, func() error {
		calls++
		return errors.New("backend down")
	})

	assert.ErrorIs(t, err, ErrCircuitBreakerOpen)
	assert.Equal(t, 2, calls)
	assert.Equal(t, "open", cb.State().String())
}
