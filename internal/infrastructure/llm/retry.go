package llm

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"apigen/internal/domain/entity"
)

// errUnavailable marks upstream answers that are worth another attempt
// (HTTP 429 and 5xx).
var errUnavailable = errors.New("upstream unavailable")

// RetryPolicy bounds how often and how patiently a failed call is repeated.
type RetryPolicy struct {
	// MaxRetries excludes the first attempt. Zero disables retries.
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
	Jitter     bool
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries: 2,
		BaseDelay:  500 * time.Millisecond,
		MaxDelay:   8 * time.Second,
		Jitter:     true,
	}
}

// Retry runs fn until it succeeds, returns a non-retryable error, the policy
// is exhausted, or ctx is done. The last error is returned.
func Retry(ctx context.Context, p RetryPolicy, fn func(ctx context.Context, attempt int) error) error {
	var lastErr error
	for attempt := 0; attempt <= p.MaxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			if lastErr != nil {
				return lastErr
			}
			return err
		}

		lastErr = fn(ctx, attempt)
		if lastErr == nil {
			return nil
		}
		if !isRetryable(lastErr) || attempt == p.MaxRetries {
			return lastErr
		}

		timer := time.NewTimer(Backoff(attempt, p))
		select {
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("%w; retry aborted: %w", lastErr, ctx.Err())
		case <-timer.C:
		}
	}
	return lastErr
}

// Backoff is BaseDelay*2^attempt capped at MaxDelay, optionally scaled by a
// random factor in [0.5, 1.5).
func Backoff(attempt int, p RetryPolicy) time.Duration {
	base, maxDelay := p.BaseDelay, p.MaxDelay
	if base <= 0 {
		base = 100 * time.Millisecond
	}
	if maxDelay <= 0 {
		maxDelay = 30 * time.Second
	}

	delay := base
	for i := 0; i < attempt && delay < maxDelay; i++ {
		delay *= 2
	}
	if p.Jitter {
		delay = time.Duration(float64(delay) * (0.5 + rand.Float64()))
	}
	if delay > maxDelay {
		delay = maxDelay
	}
	return delay
}

func isRetryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	return errors.Is(err, entity.ErrTransport) || errors.Is(err, errUnavailable)
}
