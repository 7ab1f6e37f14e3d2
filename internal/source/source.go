// Package source implements the three external OHLCV providers behind a
// uniform fetch contract, plus the fallback fetcher that chains them.
package source

import (
	"context"
	"net/http"
	"time"

	"hojsle/internal/domain"
	"hojsle/internal/util"
)

// Source fetches normalised daily quotes for one symbol over the half-open
// range [start, end). An empty result is the normal signal for "this provider
// has nothing": expected failure modes (HTTP errors, malformed bodies, rate
// limits) must not escape an adapter as an error.
type Source interface {
	// Name returns the adapter identifier used in logs and outcome sets.
	Name() string
	// Fetch returns zero or more quotes for code within [start, end).
	Fetch(ctx context.Context, code string, start, end time.Time) ([]domain.Quote, error)
}

// newHTTPClient builds the short-timeout client shared by all adapters. Each
// network call is bounded by this timeout; total run latency is bounded only
// by universe and range size.
func newHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = 7 * time.Second
	}
	return &http.Client{Timeout: timeout}
}

// wait blocks on the shared rate limiter when one is configured.
func wait(ctx context.Context, limiter *util.RateLimiter) error {
	if limiter == nil {
		return nil
	}
	return limiter.Wait(ctx)
}

// inRange reports whether the quote date falls within [start, end).
func inRange(q domain.Quote, start, end time.Time) bool {
	return !q.Date.Before(start) && q.Date.Before(end)
}

// filterRange restricts quotes to [start, end).
func filterRange(quotes []domain.Quote, start, end time.Time) []domain.Quote {
	out := quotes[:0:0]
	for _, q := range quotes {
		if inRange(q, start, end) {
			out = append(out, q)
		}
	}
	return out
}
