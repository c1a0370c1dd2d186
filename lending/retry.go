package lending

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"
)

const (
	defaultMaxAttempts  = 6
	defaultBaseDelay    = 10 * time.Millisecond
	defaultJitterFactor = 0.3
)

var (
	// ErrInvalidMaxAttempts is returned when max attempts are not positive.
	ErrInvalidMaxAttempts = errors.New("max attempts must be positive")

	// ErrNegativeBaseDelay is returned when the base delay is negative.
	ErrNegativeBaseDelay = errors.New("base delay must not be negative")

	// ErrInvalidJitterFactor is returned when the jitter factor is not between 0.0 and 1.0.
	ErrInvalidJitterFactor = errors.New("jitter factor must be between 0.0 and 1.0")

	// ErrNilMetricsCollector is returned when a nil metrics collector is provided to WithRetryMetrics.
	ErrNilMetricsCollector = errors.New("metrics collector must not be nil")
)

// RetryableFunc represents a function that can be retried.
type RetryableFunc func(ctx context.Context) error

// retryConfig holds configuration for exponential backoff retry logic.
type retryConfig struct {
	maxAttempts      int
	baseDelay        time.Duration
	jitterFactor     float64
	metricsCollector MetricsCollector
	operation        string
}

// RetryOption configures retry behavior using the functional options pattern.
type RetryOption func(*retryConfig) error

// WithMaxAttempts sets the maximum number of retry attempts.
func WithMaxAttempts(attempts int) RetryOption {
	return func(config *retryConfig) error {
		if attempts <= 0 {
			return ErrInvalidMaxAttempts
		}

		config.maxAttempts = attempts

		return nil
	}
}

// WithBaseDelay sets the base delay for exponential backoff.
// Actual delays: baseDelay, baseDelay*2, baseDelay*4, baseDelay*8, etc.
func WithBaseDelay(delay time.Duration) RetryOption {
	return func(config *retryConfig) error {
		if delay < 0 {
			return ErrNegativeBaseDelay
		}

		config.baseDelay = delay

		return nil
	}
}

// WithJitterFactor sets the jitter factor to prevent thundering herd problems.
// Valid range: 0.0 (no jitter) to 1.0 (100% jitter).
func WithJitterFactor(factor float64) RetryOption {
	return func(config *retryConfig) error {
		if factor < 0.0 || factor > 1.0 {
			return ErrInvalidJitterFactor
		}

		config.jitterFactor = factor

		return nil
	}
}

// WithRetryMetrics sets the metrics collector for retry instrumentation.
// The operation name labels the emitted metrics.
func WithRetryMetrics(collector MetricsCollector, operation string) RetryOption {
	return func(config *retryConfig) error {
		if collector == nil {
			return ErrNilMetricsCollector
		}

		config.metricsCollector = collector
		config.operation = operation

		return nil
	}
}

// RetryWithExponentialBackoff implements optimistic concurrency retry logic
// around the admission-check-then-write pair: a guarded repository write that
// lost a race reports ErrConcurrencyConflict, and the whole function is
// re-executed so the admission checks see the new state.
//
// Retry Schedule (default): 0 ms, 10 ms, 20 ms, 40 ms, 80 ms (with 30% jitter).
//
// Only ErrConcurrencyConflict is retried - all other errors fail fast.
// Rule rejections in particular are permanent and never retried.
func RetryWithExponentialBackoff(
	ctx context.Context,
	fn RetryableFunc,
	options ...RetryOption,
) error {

	config := &retryConfig{
		maxAttempts:  defaultMaxAttempts,
		baseDelay:    defaultBaseDelay,
		jitterFactor: defaultJitterFactor,
	}

	for _, option := range options {
		if err := option(config); err != nil {
			return err
		}
	}

	var lastErr error

	for attempt := 0; attempt < config.maxAttempts; attempt++ {
		if attempt > 0 {
			// Exponential backoff: baseDelay * 2^(attempt-1)
			delay := config.baseDelay * time.Duration(1<<(attempt-1))

			// Add jitter to prevent thundering herd
			jitter := rand.Float64() * float64(delay) * config.jitterFactor //nolint:gosec //math/rand is sufficient for jitter
			backoffDelay := delay + time.Duration(jitter)

			recordRetryDelayMetric(config, attempt, backoffDelay)

			select {
			case <-time.After(backoffDelay):
				// Continue with retry
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}

		if !isRetryableError(lastErr) {
			return lastErr
		}

		recordRetryAttemptMetric(config, attempt)
	}

	recordMaxRetriesReachedMetric(config)

	return lastErr
}

// isRetryableError determines if an error should be retried.
// A context.DeadlineExceeded is NOT retryable - retrying timeouts during
// overload creates cascade failures.
func isRetryableError(err error) bool {
	return errors.Is(err, ErrConcurrencyConflict)
}

func recordRetryDelayMetric(config *retryConfig, attempt int, backoffDelay time.Duration) {
	if config.metricsCollector == nil {
		return
	}

	config.metricsCollector.RecordDuration(BorrowRetryDelayMetric, backoffDelay, map[string]string{
		LabelOperation:   config.operation,
		"attempt_number": fmt.Sprintf("%d", attempt),
	})
}

func recordRetryAttemptMetric(config *retryConfig, attempt int) {
	if config.metricsCollector == nil || attempt >= config.maxAttempts-1 {
		return
	}

	config.metricsCollector.IncrementCounter(BorrowRetriesMetric, map[string]string{
		LabelOperation:   config.operation,
		"attempt_number": fmt.Sprintf("%d", attempt+1),
	})
}

func recordMaxRetriesReachedMetric(config *retryConfig) {
	if config.metricsCollector == nil {
		return
	}

	config.metricsCollector.IncrementCounter(MaxRetriesReachedMetric, map[string]string{
		LabelOperation: config.operation,
	})
}
