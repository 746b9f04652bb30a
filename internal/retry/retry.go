package retry

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/campus-sync/internal/logging"
)

// RetryConfig configures retry behavior. When FixedDelays is set it takes
// precedence over the exponential schedule: attempt n waits FixedDelays[n-1]
// (the last entry repeats if attempts exceed the schedule).
type RetryConfig struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
	FixedDelays  []time.Duration
}

// DefaultRetryConfig returns a default exponential configuration
// Pattern: 1s, 2s, 4s, 8s, max 30s
func DefaultRetryConfig() *RetryConfig {
	return &RetryConfig{
		MaxAttempts:  5,
		InitialDelay: 1 * time.Second,
		MaxDelay:     30 * time.Second,
		Multiplier:   2.0,
	}
}

// RetryResult contains information about the retry operation
type RetryResult struct {
	Attempts      int           `json:"attempts"`
	Success       bool          `json:"success"`
	TotalDuration time.Duration `json:"totalDuration"`
	LastError     error         `json:"lastError,omitempty"`
}

// RetryFunc is a function that can be retried
type RetryFunc func(ctx context.Context, attempt int) error

// ShouldRetryFunc decides whether an error is worth another attempt
type ShouldRetryFunc func(err error) bool

// WithBackoff executes a function with retry logic. shouldRetry may be nil,
// in which case every error is retried up to MaxAttempts.
func WithBackoff(ctx context.Context, config *RetryConfig, shouldRetry ShouldRetryFunc, fn RetryFunc) *RetryResult {
	logger := logging.FromContext(ctx)
	startTime := time.Now()

	result := &RetryResult{}

	var lastErr error

	for attempt := 1; attempt <= config.MaxAttempts; attempt++ {
		result.Attempts = attempt

		err := fn(ctx, attempt)
		if err == nil {
			result.Success = true
			result.TotalDuration = time.Since(startTime)

			if attempt > 1 {
				logger.WithFields(map[string]interface{}{
					"attempts":      attempt,
					"totalDuration": result.TotalDuration,
				}).Info("Operation succeeded after retry")
			}

			return result
		}

		lastErr = err
		result.LastError = err

		if shouldRetry != nil && !shouldRetry(err) {
			logger.WithError(err).Debug("Error is not retryable, giving up")
			break
		}

		if attempt >= config.MaxAttempts {
			logger.WithFields(map[string]interface{}{
				"attempts":      attempt,
				"totalDuration": time.Since(startTime),
				"error":         err.Error(),
			}).Error("Operation failed after max retry attempts")
			break
		}

		if ctx.Err() != nil {
			result.LastError = ctx.Err()
			break
		}

		delay := NextDelay(config, attempt)

		logger.WithFields(map[string]interface{}{
			"attempt":     attempt,
			"maxAttempts": config.MaxAttempts,
			"delay":       delay,
			"error":       err.Error(),
		}).Warn("Operation failed, retrying after backoff")

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			result.LastError = ctx.Err()
			result.TotalDuration = time.Since(startTime)
			return result
		}
	}

	result.TotalDuration = time.Since(startTime)
	result.LastError = lastErr
	return result
}

// NextDelay returns the wait before the retry that follows the given attempt
func NextDelay(config *RetryConfig, attempt int) time.Duration {
	if len(config.FixedDelays) > 0 {
		idx := attempt - 1
		if idx >= len(config.FixedDelays) {
			idx = len(config.FixedDelays) - 1
		}
		if idx < 0 {
			idx = 0
		}
		return config.FixedDelays[idx]
	}

	delay := float64(config.InitialDelay) * math.Pow(config.Multiplier, float64(attempt-1))
	if delay > float64(config.MaxDelay) {
		delay = float64(config.MaxDelay)
	}

	return time.Duration(delay)
}

// WithRetry is a simpler retry function that uses default configuration
func WithRetry(ctx context.Context, fn RetryFunc) error {
	result := WithBackoff(ctx, DefaultRetryConfig(), nil, fn)

	if !result.Success {
		return fmt.Errorf("operation failed after %d attempts: %w", result.Attempts, result.LastError)
	}

	return nil
}
