package store

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/parquet-go/parquet-go"

	"hojsle/internal/domain"
)

// Compile-time interface check.
var _ QuoteStore = (*ParquetStore)(nil)

// ParquetStore implements QuoteStore with a single cumulative Parquet file
// plus per-day snapshot files:
//
//	<DataDir>/raw/ohlcv.parquet      — the cumulative store
//	<DataDir>/DAILY/<YYYYMMDD>.parquet — one snapshot per collected day
//
// The cumulative file is never mutated in place: Merge accumulates the new
// state in memory, backs up the prior file, writes a temp file, and renames
// it over the store. An exclusive lock file guards the backup+overwrite
// sequence against overlapping runs.
type ParquetStore struct {
	DataDir string
	log     *slog.Logger
}

// NewParquetStore creates a ParquetStore rooted at the given data directory.
func NewParquetStore(dataDir string) *ParquetStore {
	return &ParquetStore{
		DataDir: dataDir,
		log:     slog.Default().With("component", "store"),
	}
}

// ---------------------------------------------------------------------------
// Parquet record type (on-disk schema)
// ---------------------------------------------------------------------------

// QuoteRecord is the Parquet schema for the canonical OHLCV record.
type QuoteRecord struct {
	Date   int64   `parquet:"date,timestamp(millisecond)"` // Unix ms, midnight UTC
	Code   string  `parquet:"code"`
	Open   float64 `parquet:"open"`
	High   float64 `parquet:"high"`
	Low    float64 `parquet:"low"`
	Close  float64 `parquet:"close"`
	Volume float64 `parquet:"volume"`
}

func toRecord(q domain.Quote) QuoteRecord {
	return QuoteRecord{
		Date:   q.Date.UnixMilli(),
		Code:   q.Code,
		Open:   q.Open,
		High:   q.High,
		Low:    q.Low,
		Close:  q.Close,
		Volume: q.Volume,
	}
}

func fromRecord(r QuoteRecord) domain.Quote {
	return domain.Quote{
		Date:   time.UnixMilli(r.Date).UTC(),
		Code:   r.Code,
		Open:   r.Open,
		High:   r.High,
		Low:    r.Low,
		Close:  r.Close,
		Volume: r.Volume,
	}
}

// ---------------------------------------------------------------------------
// Paths
// ---------------------------------------------------------------------------

// StorePath returns the cumulative store file path.
func (s *ParquetStore) StorePath() string {
	return filepath.Join(s.DataDir, "raw", "ohlcv.parquet")
}

// SnapshotPath returns the per-day snapshot path for the given date.
func (s *ParquetStore) SnapshotPath(date time.Time) string {
	return filepath.Join(s.DataDir, "DAILY", date.Format("20060102")+".parquet")
}

// Exists reports whether the cumulative store file is present.
func (s *ParquetStore) Exists() bool {
	_, err := os.Stat(s.StorePath())
	return err == nil
}

// ---------------------------------------------------------------------------
// Reads
// ---------------------------------------------------------------------------

// Load returns every quote in the cumulative store, sorted by (date, code).
func (s *ParquetStore) Load(_ context.Context) ([]domain.Quote, error) {
	records, err := readParquetFile[QuoteRecord](s.StorePath())
	if err != nil {
		return nil, fmt.Errorf("loading store: %w", err)
	}

	quotes := make([]domain.Quote, 0, len(records))
	for _, r := range records {
		quotes = append(quotes, fromRecord(r))
	}
	sortQuotes(quotes)
	return quotes, nil
}

// MaxDate returns the latest date present in the store.
func (s *ParquetStore) MaxDate(ctx context.Context) (time.Time, error) {
	quotes, err := s.Load(ctx)
	if err != nil {
		return time.Time{}, err
	}
	if len(quotes) == 0 {
		return time.Time{}, fmt.Errorf("store is empty")
	}

	maxDate := quotes[0].Date
	for _, q := range quotes[1:] {
		if q.Date.After(maxDate) {
			maxDate = q.Date
		}
	}
	return maxDate, nil
}

// SymbolsOn returns the set of codes present on the given date.
func (s *ParquetStore) SymbolsOn(ctx context.Context, date time.Time) (map[string]struct{}, error) {
	quotes, err := s.Load(ctx)
	if err != nil {
		return nil, err
	}

	day := domain.Day(date)
	symbols := make(map[string]struct{})
	for _, q := range quotes {
		if q.Date.Equal(day) {
			symbols[q.Code] = struct{}{}
		}
	}
	return symbols, nil
}

// ReadSnapshot returns one day's snapshot block, or nil when absent.
func (s *ParquetStore) ReadSnapshot(_ context.Context, date time.Time) ([]domain.Quote, error) {
	path := s.SnapshotPath(date)
	if _, err := os.Stat(path); err != nil {
		return nil, nil
	}
	records, err := readParquetFile[QuoteRecord](path)
	if err != nil {
		return nil, err
	}

	quotes := make([]domain.Quote, 0, len(records))
	for _, r := range records {
		quotes = append(quotes, fromRecord(r))
	}
	return quotes, nil
}

// ---------------------------------------------------------------------------
// Writes
// ---------------------------------------------------------------------------

// WriteSnapshot persists one day's collected block under DAILY/.
func (s *ParquetStore) WriteSnapshot(_ context.Context, date time.Time, quotes []domain.Quote) error {
	records := make([]QuoteRecord, 0, len(quotes))
	for _, q := range quotes {
		records = append(records, toRecord(q))
	}
	if err := writeParquetFile(s.SnapshotPath(date), records); err != nil {
		return fmt.Errorf("writing snapshot for %s: %w", date.Format("2006-01-02"), err)
	}
	return nil
}

// Merge folds the new blocks into the cumulative store. The incoming data
// wins over any existing row for the same (date, code) key; this is the
// conflict-resolution rule for late price corrections. Merging the same
// blocks twice is idempotent.
func (s *ParquetStore) Merge(ctx context.Context, blocks [][]domain.Quote) (MergeStats, error) {
	var incoming []domain.Quote
	for _, block := range blocks {
		for _, q := range block {
			// Rows without a full (date, code) key never enter the store.
			if q.Date.IsZero() || domain.PadCode(q.Code) == "" {
				continue
			}
			q.Code = domain.PadCode(q.Code)
			q.Date = domain.Day(q.Date)
			incoming = append(incoming, q)
		}
	}
	if len(incoming) == 0 {
		s.log.Info("nothing new collected, merge skipped")
		return MergeStats{}, nil
	}

	unlock, err := acquireLock(s.StorePath())
	if err != nil {
		return MergeStats{}, fmt.Errorf("locking store: %w", err)
	}
	defer unlock()

	var existing []domain.Quote
	if s.Exists() {
		existing, err = s.Load(ctx)
		if err != nil {
			return MergeStats{}, err
		}
	}

	merged := mergeQuotes(existing, incoming)

	stats := MergeStats{
		RowsBefore: len(existing),
		RowsAfter:  len(merged),
		RowsNew:    len(incoming),
	}

	// Back up the prior file before any write touches the store path.
	if s.Exists() {
		backupPath, err := backupFile(s.StorePath(), time.Now())
		if err != nil {
			return MergeStats{}, fmt.Errorf("backing up store: %w", err)
		}
		stats.BackupPath = backupPath
	}

	records := make([]QuoteRecord, 0, len(merged))
	for _, q := range merged {
		records = append(records, toRecord(q))
	}
	if err := writeParquetFileAtomic(s.StorePath(), records); err != nil {
		return MergeStats{}, fmt.Errorf("writing store: %w", err)
	}

	s.log.Info("store merged",
		"rowsBefore", stats.RowsBefore,
		"rowsNew", stats.RowsNew,
		"rowsAfter", stats.RowsAfter,
		"backup", stats.BackupPath,
	)
	return stats, nil
}

// ---------------------------------------------------------------------------
// Merge helpers
// ---------------------------------------------------------------------------

// mergeQuotes deduplicates by (date, code) with the incoming rows winning
// over existing ones, and returns the result sorted ascending by (date,
// code).
func mergeQuotes(existing, incoming []domain.Quote) []domain.Quote {
	seen := make(map[domain.Key]domain.Quote, len(existing)+len(incoming))
	for _, q := range existing {
		seen[q.Key()] = q
	}
	for _, q := range incoming {
		seen[q.Key()] = q
	}

	merged := make([]domain.Quote, 0, len(seen))
	for _, q := range seen {
		merged = append(merged, q)
	}
	sortQuotes(merged)
	return merged
}

func sortQuotes(quotes []domain.Quote) {
	sort.Slice(quotes, func(i, j int) bool {
		if !quotes[i].Date.Equal(quotes[j].Date) {
			return quotes[i].Date.Before(quotes[j].Date)
		}
		return quotes[i].Code < quotes[j].Code
	})
}

// ---------------------------------------------------------------------------
// Parquet file helpers
// ---------------------------------------------------------------------------

func writeParquetFile[T any](path string, records []T) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return parquet.WriteFile(path, records)
}

// writeParquetFileAtomic writes to a temp path in the target directory and
// renames it into place, so a crash mid-write cannot leave a truncated store.
func writeParquetFileAtomic[T any](path string, records []T) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := parquet.WriteFile(tmp, records); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, path)
}

func readParquetFile[T any](path string) ([]T, error) {
	rows, err := parquet.ReadFile[T](path)
	if err != nil {
		return nil, err
	}
	return rows, nil
}
