// Package store persists the cumulative OHLCV dataset, the per-day snapshot
// files, and the collection run history.
package store

import (
	"context"
	"time"

	"hojsle/internal/domain"
)

// MergeStats summarises one merge into the cumulative store.
type MergeStats struct {
	RowsBefore int
	RowsAfter  int
	RowsNew    int // rows in the incoming blocks after key filtering
	BackupPath string
}

// QuoteStore persists and retrieves the cumulative OHLCV dataset.
type QuoteStore interface {
	// Exists reports whether a base store file is present on disk.
	Exists() bool

	// Load returns every quote in the store, sorted by (date, code).
	Load(ctx context.Context) ([]domain.Quote, error)

	// MaxDate returns the latest date present in the store.
	MaxDate(ctx context.Context) (time.Time, error)

	// SymbolsOn returns the set of codes present on the given date.
	SymbolsOn(ctx context.Context, date time.Time) (map[string]struct{}, error)

	// Merge folds the new blocks into the store: concatenate, drop keyless
	// rows, de-duplicate on (date, code) keeping the last occurrence, sort,
	// back up the prior file, and overwrite. An empty block set is a no-op.
	Merge(ctx context.Context, blocks [][]domain.Quote) (MergeStats, error)

	// WriteSnapshot persists one day's collected block under DAILY/.
	WriteSnapshot(ctx context.Context, date time.Time, quotes []domain.Quote) error
}

// RunRecord is one collection run in the history table. It makes the
// last-write-wins supersession rule auditable: the run that wrote a (date,
// code) key last is the newest run that covered that key.
type RunRecord struct {
	ID         int64
	Mode       string // "build" or "patch"
	StartedAt  time.Time
	FinishedAt time.Time
	StartDate  string
	EndDate    string
	DaysFound  int
	RowsMerged int
	Failed     []string
	Fallback   []string
	KRXUsed    []string
}

// RunStore persists collection run history.
type RunStore interface {
	// SaveRun appends one run record.
	SaveRun(ctx context.Context, rec *RunRecord) error

	// ListRuns returns the most recent runs, newest first, up to limit.
	ListRuns(ctx context.Context, limit int) ([]RunRecord, error)

	// Close releases the underlying database handle.
	Close() error
}
