package util

import (
	"context"
	"sync"
	"time"
)

// RateLimiter spaces outbound provider calls to a per-minute request budget.
// All three source adapters share one limiter, so the budget bounds the
// pipeline's total request rate, not a per-adapter rate. Tokens refill
// continuously; up to burst calls may proceed back to back after an idle
// stretch.
type RateLimiter struct {
	perMinute int
	rate      float64 // tokens per second
	burst     float64

	mu     sync.Mutex
	tokens float64
	last   time.Time
}

// NewRateLimiter creates a limiter allowing perMinute calls per minute with
// a burst of one. perMinute <= 0 disables limiting.
func NewRateLimiter(perMinute int) *RateLimiter {
	return NewRateLimiterBurst(perMinute, 1)
}

// NewRateLimiterBurst creates a limiter allowing perMinute calls per minute,
// with up to burst calls passing without waiting after an idle period.
func NewRateLimiterBurst(perMinute, burst int) *RateLimiter {
	if burst < 1 {
		burst = 1
	}
	return &RateLimiter{
		perMinute: perMinute,
		rate:      float64(perMinute) / 60.0,
		burst:     float64(burst),
		tokens:    float64(burst),
		last:      time.Now(),
	}
}

// PerMinute returns the configured request budget, for progress logs.
func (rl *RateLimiter) PerMinute() int { return rl.perMinute }

// Wait blocks until a token is available or the context is cancelled.
func (rl *RateLimiter) Wait(ctx context.Context) error {
	if rl.perMinute <= 0 {
		return nil
	}
	for {
		rl.mu.Lock()
		now := time.Now()
		rl.tokens += now.Sub(rl.last).Seconds() * rl.rate
		if rl.tokens > rl.burst {
			rl.tokens = rl.burst
		}
		rl.last = now

		if rl.tokens >= 1 {
			rl.tokens--
			rl.mu.Unlock()
			return nil
		}
		// Sleep just long enough for the next token to accrue.
		wait := time.Duration((1 - rl.tokens) / rl.rate * float64(time.Second))
		rl.mu.Unlock()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
}
