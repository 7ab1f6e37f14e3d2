package util

import (
	"context"
	"net/http"
	"time"
)

// RetryableStatus reports whether an HTTP status code indicates a transient
// condition worth retrying: rate limiting or a server-side failure.
func RetryableStatus(status int) bool {
	switch status {
	case http.StatusTooManyRequests, http.StatusInternalServerError, http.StatusServiceUnavailable:
		return true
	}
	return false
}

// Retry runs fn up to maxAttempts times, doubling the sleep between attempts
// starting from baseDelay (1s, 2s, 4s, ...). It returns nil as soon as fn
// succeeds, the context error if cancelled mid-backoff, and otherwise fn's
// last error once the attempt budget is spent.
func Retry(ctx context.Context, maxAttempts int, baseDelay time.Duration, fn func() error) error {
	var err error
	delay := baseDelay

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err = fn(); err == nil {
			return nil
		}
		if attempt == maxAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
	}

	return err
}
