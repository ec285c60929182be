package embedder

import (
	"context"
	"time"
)

// RetryConfig controls the backoff behavior for provider calls
type RetryConfig struct {
	MaxRetries        int
	InitialBackoffMs  int
	MaxBackoffMs      int
	BackoffMultiplier float64
}

// DefaultRetryConfig returns the retry configuration used for provider calls
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:        MaxRetries,
		InitialBackoffMs:  InitialBackoffMs,
		MaxBackoffMs:      MaxBackoffMs,
		BackoffMultiplier: BackoffMultiplier,
	}
}

// retryWithBackoff executes fn with exponential backoff on failure.
// Context cancellation aborts the wait between attempts.
func retryWithBackoff[T any](ctx context.Context, config RetryConfig, fn func() (T, error)) (T, error) {
	var result T
	var lastErr error

	backoffMs := config.InitialBackoffMs

	for attempt := 0; attempt <= config.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return result, ctx.Err()
			case <-time.After(time.Duration(backoffMs) * time.Millisecond):
			}

			backoffMs = int(float64(backoffMs) * config.BackoffMultiplier)
			if backoffMs > config.MaxBackoffMs {
				backoffMs = config.MaxBackoffMs
			}
		}

		result, lastErr = fn()
		if lastErr == nil {
			return result, nil
		}

		// Don't retry after context cancellation
		if ctx.Err() != nil {
			return result, ctx.Err()
		}
	}

	return result, lastErr
}
