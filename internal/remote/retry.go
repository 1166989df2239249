package remote

import (
	"context"
	"errors"
	"time"
)

// Sentinel errors for remote requests.
var (
	ErrNotFound = errors.New("resource not found")
	ErrNetwork  = errors.New("network error")
)

// Retry defaults. Tests shorten the delay.
var (
	retryAttempts = 3
	retryDelay    = time.Second
)

// RetryableError marks a transient failure such as a timeout or a 5xx response.
type RetryableError struct{ Err error }

func (e *RetryableError) Error() string { return e.Err.Error() }
func (e *RetryableError) Unwrap() error { return e.Err }

// Retry executes fn up to attempts times, doubling delay after each failure.
// Only errors wrapped in RetryableError are retried.
func Retry(ctx context.Context, attempts int, delay time.Duration, fn func() error) error {
	attempts = max(attempts, 1)
	var lastErr error

	for i := range attempts {
		if err := fn(); err == nil {
			return nil
		} else if lastErr = err; !isRetryable(err) {
			return err
		}

		if i < attempts-1 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
				delay *= 2
			}
		}
	}
	return lastErr
}

// RetryWithBackoff calls Retry with the package defaults.
func RetryWithBackoff(ctx context.Context, fn func() error) error {
	return Retry(ctx, retryAttempts, retryDelay, fn)
}

func isRetryable(err error) bool {
	return errors.As(err, new(*RetryableError))
}
