package crawl

import (
	"context"
	"errors"
	"time"

	"github.com/fwojciec/sitemd"
)

// RetryFunc is called before each retry with the attempt number about to
// run (starting at 2) and the error that caused the retry.
type RetryFunc func(attempt int, err error)

// DefaultRetryDelays returns the backoff delays for fetch retries: 1s, 2s, 4s.
func DefaultRetryDelays() []time.Duration {
	return []time.Duration{1 * time.Second, 2 * time.Second, 4 * time.Second}
}

// Retry calls fn until it succeeds, fails permanently, or the delays are
// exhausted. It makes len(delays)+1 attempts at most, sleeping delays[i]
// between attempt i+1 and i+2. A nil delays slice means a single attempt.
//
// Only temporary failures are retried: a *sitemd.FetchError is retried when
// Temporary reports true; context errors are never retried.
func Retry[T any](ctx context.Context, delays []time.Duration, fn func(context.Context) (T, error), onRetry RetryFunc) (T, error) {
	var zero T
	maxAttempts := len(delays) + 1

	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		v, err := fn(ctx)
		if err == nil {
			return v, nil
		}
		lastErr = err

		if attempt >= maxAttempts-1 || !isRetryable(err) {
			break
		}

		if onRetry != nil {
			onRetry(attempt+2, err)
		}

		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case <-time.After(delays[attempt]):
		}
	}

	return zero, lastErr
}

func isRetryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var fetchErr *sitemd.FetchError
	if errors.As(err, &fetchErr) {
		return fetchErr.Temporary()
	}
	return true
}
