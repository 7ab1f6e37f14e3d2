package collect

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"hojsle/internal/domain"
	"hojsle/internal/source"
	"hojsle/internal/store"
	"hojsle/internal/util"
)

// Fetcher is the slice of source.Fallback the collector needs. A test can
// substitute a fake to drive trading/non-trading day scenarios.
type Fetcher interface {
	Fetch(ctx context.Context, code string, start, end time.Time) ([]domain.Quote, source.Tier, error)
	Outcome() *domain.Outcome
	ResetOutcome() *domain.Outcome
}

// Result summarizes one finished collection run.
type Result struct {
	Mode      string
	StartDate time.Time
	EndDate   time.Time
	DaysFound int
	Merge     store.MergeStats
	Outcome   *domain.Outcome
}

// Collector walks the universe through the fallback fetcher, one symbol at a
// time, and merges what comes back. Iteration is deliberately sequential:
// the upstream providers are free services and concurrent hammering risks
// IP-level blocks, so wall-clock cost is traded for not getting banned.
type Collector struct {
	fetcher       Fetcher
	store         store.QuoteStore
	diag          *DiagLogs
	cal           *util.TradingCalendar
	progressEvery int
	log           *slog.Logger
}

// New creates a Collector. progressEvery controls how often the per-symbol
// progress line is emitted; values below 1 are coerced to 1.
func New(fetcher Fetcher, qs store.QuoteStore, diag *DiagLogs, cal *util.TradingCalendar, progressEvery int) *Collector {
	if progressEvery < 1 {
		progressEvery = 1
	}
	return &Collector{
		fetcher:       fetcher,
		store:         qs,
		diag:          diag,
		cal:           cal,
		progressEvery: progressEvery,
		log:           slog.Default().With("component", "collect"),
	}
}

// ---------------------------------------------------------------------------
// Bulk build
// ---------------------------------------------------------------------------

// BulkBuild fetches the full historical range for every symbol in the
// universe and merges the result. An existing store is preserved: it is
// backed up and merged into, with the freshly collected rows winning on
// conflicting (date, code) keys.
func (c *Collector) BulkBuild(ctx context.Context, universe []string, start, end time.Time) (*Result, error) {
	if len(universe) == 0 {
		return nil, fmt.Errorf("empty symbol universe")
	}
	start, end = domain.Day(start), domain.Day(end)

	c.fetcher.ResetOutcome()
	var blocks [][]domain.Quote
	for i, code := range universe {
		// Fetch range is half-open, so push the end one day out.
		quotes, tier, err := c.fetcher.Fetch(ctx, code, start, end.AddDate(0, 0, 1))
		if err != nil {
			return nil, err
		}
		kept := completeRows(quotes)
		if len(kept) > 0 {
			blocks = append(blocks, kept)
		}
		if (i+1)%c.progressEvery == 0 || i+1 == len(universe) {
			c.log.Info("bulk progress",
				"symbol", code, "index", i+1, "total", len(universe),
				"rows", len(kept), "tier", tier.String())
		}
	}

	stats, err := c.store.Merge(ctx, blocks)
	if err != nil {
		return nil, err
	}
	outcome := c.fetcher.Outcome()
	if err := c.diag.WriteOutcome(end, outcome); err != nil {
		c.log.Warn("writing outcome logs", "err", err)
	}

	return &Result{
		Mode:      "build",
		StartDate: start,
		EndDate:   end,
		DaysFound: len(blocks),
		Merge:     stats,
		Outcome:   outcome,
	}, nil
}

// ---------------------------------------------------------------------------
// Incremental patch
// ---------------------------------------------------------------------------

// Patch collects every candidate day strictly after the store's current
// maximum date through end, and merges the days that turn out to be trading
// days. A patch run without a base store is a structural error and aborts
// before any network call.
func (c *Collector) Patch(ctx context.Context, universe []string, end time.Time) (*Result, error) {
	if !c.store.Exists() {
		return nil, fmt.Errorf("no base store found, run a bulk build first")
	}
	if len(universe) == 0 {
		return nil, fmt.Errorf("empty symbol universe")
	}
	end = domain.Day(end)

	maxDate, err := c.store.MaxDate(ctx)
	if err != nil {
		return nil, fmt.Errorf("reading store max date: %w", err)
	}
	if !end.After(maxDate) {
		c.log.Info("store already covers target date", "maxDate", maxDate.Format("2006-01-02"))
		return &Result{Mode: "patch", StartDate: maxDate, EndDate: end, Outcome: domain.NewOutcome()}, nil
	}

	candidates := c.candidateDays(maxDate, end)
	c.log.Info("patch run",
		"after", maxDate.Format("2006-01-02"),
		"through", end.Format("2006-01-02"),
		"candidates", len(candidates))

	// Baseline for gap audits is the symbol set on the store's latest day.
	baseline, err := c.store.SymbolsOn(ctx, maxDate)
	if err != nil {
		return nil, fmt.Errorf("reading baseline symbols: %w", err)
	}

	runOutcome := domain.NewOutcome()
	var blocks [][]domain.Quote
	daysFound := 0
	for _, day := range candidates {
		block, err := c.collectDay(ctx, universe, day)
		if err != nil {
			return nil, err
		}
		if len(block) == 0 {
			// Zero symbols with data means the market was closed. Not a
			// failure: skip without writing anything.
			c.log.Info("no data for candidate day, assuming non-trading day",
				"date", day.Format("2006-01-02"))
			continue
		}
		daysFound++

		report := Audit(block, baseline)
		report.Log(c.log, day.Format("2006-01-02"))
		if err := c.diag.WriteAudit(day, report); err != nil {
			c.log.Warn("writing audit logs", "err", err)
		}
		if err := c.diag.WriteOutcome(day, c.fetcher.Outcome()); err != nil {
			c.log.Warn("writing outcome logs", "err", err)
		}
		mergeOutcome(runOutcome, c.fetcher.Outcome())

		kept := completeRows(block)
		if err := c.store.WriteSnapshot(ctx, day, kept); err != nil {
			return nil, err
		}
		blocks = append(blocks, kept)
	}

	var stats store.MergeStats
	if len(blocks) > 0 {
		stats, err = c.store.Merge(ctx, blocks)
		if err != nil {
			return nil, err
		}
	} else {
		c.log.Info("no trading days found, nothing to merge")
	}

	return &Result{
		Mode:      "patch",
		StartDate: maxDate.AddDate(0, 0, 1),
		EndDate:   end,
		DaysFound: daysFound,
		Merge:     stats,
		Outcome:   runOutcome,
	}, nil
}

// collectDay fetches one candidate day for the whole universe. The fetcher's
// outcome is reset first, so Outcome() afterwards reflects this day only.
func (c *Collector) collectDay(ctx context.Context, universe []string, day time.Time) ([]domain.Quote, error) {
	c.fetcher.ResetOutcome()
	var block []domain.Quote
	for i, code := range universe {
		quotes, tier, err := c.fetcher.Fetch(ctx, code, day, day.AddDate(0, 0, 1))
		if err != nil {
			return nil, err
		}
		block = append(block, quotes...)
		if (i+1)%c.progressEvery == 0 || i+1 == len(universe) {
			c.log.Info("patch progress",
				"date", day.Format("2006-01-02"),
				"symbol", code, "index", i+1, "total", len(universe),
				"tier", tier.String())
		}
	}
	return block, nil
}

// candidateDays lists the days strictly after maxDate through end that the
// trading calendar does not rule out. Known holidays are skipped up front;
// days the calendar cannot decide fall through to the empty-result check in
// Patch.
func (c *Collector) candidateDays(maxDate, end time.Time) []time.Time {
	var days []time.Time
	for d := maxDate.AddDate(0, 0, 1); !d.After(end); d = d.AddDate(0, 0, 1) {
		if d.Weekday() == time.Saturday || d.Weekday() == time.Sunday {
			continue
		}
		if c.cal != nil && !c.cal.IsTradingDay(d) {
			continue
		}
		days = append(days, d)
	}
	return days
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

// completeRows filters out rows with any missing numeric field. Implausible
// but fully populated rows (inverted high/low and the like) pass through:
// the audit flags them, the store keeps them.
func completeRows(quotes []domain.Quote) []domain.Quote {
	kept := make([]domain.Quote, 0, len(quotes))
	for _, q := range quotes {
		if q.Complete() {
			kept = append(kept, q)
		}
	}
	return kept
}

func mergeOutcome(dst, src *domain.Outcome) {
	for code := range src.Failed {
		dst.Failed[code] = struct{}{}
	}
	for code := range src.Fallback {
		dst.Fallback[code] = struct{}{}
	}
	for code := range src.KRXUsed {
		dst.KRXUsed[code] = struct{}{}
	}
}
