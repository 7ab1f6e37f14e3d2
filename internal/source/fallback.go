package source

import (
	"context"
	"log/slog"
	"time"

	"hojsle/internal/domain"
)

// Tier identifies which source, if any, satisfied a fetch.
type Tier int

const (
	TierNone Tier = iota // all sources exhausted
	TierPrimary
	TierFallback
	TierKRX
)

// String returns the tier label used in progress logs.
func (t Tier) String() string {
	switch t {
	case TierPrimary:
		return "primary"
	case TierFallback:
		return "fallback"
	case TierKRX:
		return "krx"
	default:
		return "failed"
	}
}

// Fallback chains the three source adapters in fixed priority order. For a
// given symbol it advances to the next tier only on an empty or failed result
// from the previous one, and records which tier succeeded in the run's
// outcome sets. Errors local to one tier never propagate past this boundary;
// only context cancellation does.
type Fallback struct {
	primary  Source
	fallback Source
	krx      Source // optional, may be nil
	outcome  *domain.Outcome
	log      *slog.Logger
}

// NewFallback creates a fallback fetcher over the tiered sources. krx may be
// nil when the exchange statistics provider is unavailable.
func NewFallback(primary, fallback, krx Source) *Fallback {
	return &Fallback{
		primary:  primary,
		fallback: fallback,
		krx:      krx,
		outcome:  domain.NewOutcome(),
		log:      slog.Default().With("component", "fallback"),
	}
}

// Outcome returns the run's accumulated outcome sets.
func (f *Fallback) Outcome() *domain.Outcome { return f.outcome }

// ResetOutcome starts a fresh outcome record, returning the previous one.
func (f *Fallback) ResetOutcome() *domain.Outcome {
	prev := f.outcome
	f.outcome = domain.NewOutcome()
	return prev
}

// Fetch walks the tiers for one symbol over [start, end) and returns the
// first non-empty result plus the tier that produced it. An exhausted chain
// returns an empty slice and TierNone, and records the symbol as failed.
func (f *Fallback) Fetch(ctx context.Context, code string, start, end time.Time) ([]domain.Quote, Tier, error) {
	type attempt struct {
		src  Source
		tier Tier
	}
	attempts := []attempt{
		{f.primary, TierPrimary},
		{f.fallback, TierFallback},
	}
	if f.krx != nil {
		attempts = append(attempts, attempt{f.krx, TierKRX})
	}

	for _, a := range attempts {
		if a.src == nil {
			continue
		}
		quotes, err := a.src.Fetch(ctx, code, start, end)
		if err != nil {
			if ctx.Err() != nil {
				return nil, TierNone, ctx.Err()
			}
			f.log.Warn("source failed, trying next tier",
				"source", a.src.Name(), "code", code, "err", err)
			continue
		}
		if len(quotes) == 0 {
			continue
		}
		switch a.tier {
		case TierFallback:
			f.outcome.Fallback[code] = struct{}{}
		case TierKRX:
			f.outcome.KRXUsed[code] = struct{}{}
		}
		return quotes, a.tier, nil
	}

	f.outcome.Failed[code] = struct{}{}
	return nil, TierNone, nil
}
