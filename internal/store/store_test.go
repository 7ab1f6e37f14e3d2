package store

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"hojsle/internal/domain"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func quote(date time.Time, code string, close float64) domain.Quote {
	return domain.Quote{
		Date: date, Code: code,
		Open: close - 10, High: close + 20, Low: close - 30,
		Close: close, Volume: 1000,
	}
}

func TestStorePaths(t *testing.T) {
	ps := NewParquetStore("/data")

	want := filepath.Join("/data", "raw", "ohlcv.parquet")
	if got := ps.StorePath(); got != want {
		t.Errorf("StorePath = %s, want %s", got, want)
	}

	want = filepath.Join("/data", "DAILY", "20240105.parquet")
	if got := ps.SnapshotPath(day(2024, 1, 5)); got != want {
		t.Errorf("SnapshotPath = %s, want %s", got, want)
	}
}

func TestMergeCreatesStore(t *testing.T) {
	ps := NewParquetStore(t.TempDir())
	ctx := context.Background()

	if ps.Exists() {
		t.Fatal("store should not exist before first merge")
	}

	block := []domain.Quote{
		quote(day(2024, 1, 5), "005930", 70500),
		quote(day(2024, 1, 5), "000660", 135000),
	}
	stats, err := ps.Merge(ctx, [][]domain.Quote{block})
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}
	if stats.RowsBefore != 0 || stats.RowsAfter != 2 {
		t.Errorf("stats = %+v, want before 0 after 2", stats)
	}
	if stats.BackupPath != "" {
		t.Errorf("first merge should not take a backup, got %s", stats.BackupPath)
	}
	if !ps.Exists() {
		t.Fatal("store should exist after merge")
	}

	quotes, err := ps.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(quotes) != 2 {
		t.Fatalf("Load returned %d rows, want 2", len(quotes))
	}
	// Sorted by (date, code): 000660 first.
	if quotes[0].Code != "000660" || quotes[1].Code != "005930" {
		t.Errorf("rows not sorted by code: %s, %s", quotes[0].Code, quotes[1].Code)
	}
}

func TestMergeIdempotent(t *testing.T) {
	ps := NewParquetStore(t.TempDir())
	ctx := context.Background()

	block := []domain.Quote{
		quote(day(2024, 1, 5), "005930", 70500),
		quote(day(2024, 1, 8), "005930", 71000),
	}
	if _, err := ps.Merge(ctx, [][]domain.Quote{block}); err != nil {
		t.Fatalf("first merge: %v", err)
	}
	first, err := ps.Load(ctx)
	if err != nil {
		t.Fatal(err)
	}

	// Merging the same block again must not change the result.
	if _, err := ps.Merge(ctx, [][]domain.Quote{block}); err != nil {
		t.Fatalf("second merge: %v", err)
	}
	second, err := ps.Load(ctx)
	if err != nil {
		t.Fatal(err)
	}

	if len(first) != len(second) {
		t.Fatalf("row count changed on re-merge: %d -> %d", len(first), len(second))
	}
	for i := range first {
		if first[i] != second[i] {
			t.Errorf("row %d changed on re-merge: %+v -> %+v", i, first[i], second[i])
		}
	}
}

func TestMergeNewRowWins(t *testing.T) {
	ps := NewParquetStore(t.TempDir())
	ctx := context.Background()

	d := day(2024, 1, 5)
	if _, err := ps.Merge(ctx, [][]domain.Quote{{quote(d, "005930", 70500)}}); err != nil {
		t.Fatal(err)
	}
	// Same key, corrected close. The later merge must replace the row.
	if _, err := ps.Merge(ctx, [][]domain.Quote{{quote(d, "005930", 70600)}}); err != nil {
		t.Fatal(err)
	}

	quotes, err := ps.Load(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(quotes) != 1 {
		t.Fatalf("duplicate key left %d rows, want 1", len(quotes))
	}
	if quotes[0].Close != 70600 {
		t.Errorf("Close = %v, want corrected value 70600", quotes[0].Close)
	}
}

func TestMergeTakesBackup(t *testing.T) {
	ps := NewParquetStore(t.TempDir())
	ctx := context.Background()

	if _, err := ps.Merge(ctx, [][]domain.Quote{{quote(day(2024, 1, 5), "005930", 70500)}}); err != nil {
		t.Fatal(err)
	}
	before, err := ps.Load(ctx)
	if err != nil {
		t.Fatal(err)
	}

	stats, err := ps.Merge(ctx, [][]domain.Quote{{quote(day(2024, 1, 8), "005930", 71000)}})
	if err != nil {
		t.Fatal(err)
	}
	if stats.BackupPath == "" {
		t.Fatal("second merge should record a backup path")
	}

	// The backup must hold exactly the pre-merge state.
	backup, err := readParquetFile[QuoteRecord](stats.BackupPath)
	if err != nil {
		t.Fatalf("reading backup: %v", err)
	}
	if len(backup) != len(before) {
		t.Fatalf("backup has %d rows, store had %d before merge", len(backup), len(before))
	}
	if backup[0].Code != "005930" || backup[0].Close != 70500 {
		t.Errorf("backup row = %+v, want pre-merge contents", backup[0])
	}
}

func TestBackupCollisionSuffix(t *testing.T) {
	ps := NewParquetStore(t.TempDir())
	ctx := context.Background()

	// Three merges on the same day: the first creates the store, the next
	// two each take a backup. The second backup must not clobber the first.
	if _, err := ps.Merge(ctx, [][]domain.Quote{{quote(day(2024, 1, 2), "005930", 70000)}}); err != nil {
		t.Fatal(err)
	}
	second, err := ps.Merge(ctx, [][]domain.Quote{{quote(day(2024, 1, 3), "005930", 70200)}})
	if err != nil {
		t.Fatal(err)
	}
	third, err := ps.Merge(ctx, [][]domain.Quote{{quote(day(2024, 1, 4), "005930", 70400)}})
	if err != nil {
		t.Fatal(err)
	}

	if second.BackupPath == "" || third.BackupPath == "" {
		t.Fatalf("both merges should record backups, got %q and %q", second.BackupPath, third.BackupPath)
	}
	if third.BackupPath == second.BackupPath {
		t.Fatalf("same-day backups must not collide: %s", third.BackupPath)
	}
	wantThird := strings.TrimSuffix(second.BackupPath, ".parquet") + "_1.parquet"
	if third.BackupPath != wantThird {
		t.Errorf("collision backup = %s, want %s", third.BackupPath, wantThird)
	}

	// Each backup holds the store state before its merge.
	first, err := readParquetFile[QuoteRecord](second.BackupPath)
	if err != nil {
		t.Fatal(err)
	}
	if len(first) != 1 {
		t.Errorf("first backup has %d rows, want 1", len(first))
	}
	prev, err := readParquetFile[QuoteRecord](third.BackupPath)
	if err != nil {
		t.Fatal(err)
	}
	if len(prev) != 2 {
		t.Errorf("second backup has %d rows, want 2", len(prev))
	}
}

func TestMergeEmptyIsNoOp(t *testing.T) {
	ps := NewParquetStore(t.TempDir())
	ctx := context.Background()

	stats, err := ps.Merge(ctx, nil)
	if err != nil {
		t.Fatalf("empty merge: %v", err)
	}
	if stats.RowsAfter != 0 {
		t.Errorf("stats = %+v, want zero", stats)
	}
	if ps.Exists() {
		t.Error("empty merge should not create a store file")
	}
}

func TestMergeDropsKeylessRows(t *testing.T) {
	ps := NewParquetStore(t.TempDir())
	ctx := context.Background()

	block := []domain.Quote{
		quote(day(2024, 1, 5), "005930", 70500),
		quote(time.Time{}, "000660", 135000), // missing date
		quote(day(2024, 1, 5), "", 50000),    // missing code
	}
	if _, err := ps.Merge(ctx, [][]domain.Quote{block}); err != nil {
		t.Fatal(err)
	}

	quotes, err := ps.Load(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(quotes) != 1 {
		t.Fatalf("got %d rows, want 1 (keyless rows dropped)", len(quotes))
	}
	if quotes[0].Code != "005930" {
		t.Errorf("surviving row = %+v", quotes[0])
	}
}

func TestMaxDateAndSymbolsOn(t *testing.T) {
	ps := NewParquetStore(t.TempDir())
	ctx := context.Background()

	block := []domain.Quote{
		quote(day(2024, 1, 2), "005930", 70000),
		quote(day(2024, 1, 2), "000660", 134000),
		quote(day(2024, 1, 3), "005930", 70200),
	}
	if _, err := ps.Merge(ctx, [][]domain.Quote{block}); err != nil {
		t.Fatal(err)
	}

	maxDate, err := ps.MaxDate(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if !maxDate.Equal(day(2024, 1, 3)) {
		t.Errorf("MaxDate = %s, want 2024-01-03", maxDate)
	}

	symbols, err := ps.SymbolsOn(ctx, day(2024, 1, 2))
	if err != nil {
		t.Fatal(err)
	}
	if len(symbols) != 2 {
		t.Errorf("SymbolsOn(01-02) = %d codes, want 2", len(symbols))
	}
	if _, ok := symbols["000660"]; !ok {
		t.Error("SymbolsOn missing 000660")
	}
}

func TestSnapshotRoundTrip(t *testing.T) {
	ps := NewParquetStore(t.TempDir())
	ctx := context.Background()

	d := day(2024, 1, 5)
	block := []domain.Quote{quote(d, "005930", 70500)}
	if err := ps.WriteSnapshot(ctx, d, block); err != nil {
		t.Fatalf("WriteSnapshot: %v", err)
	}

	got, err := ps.ReadSnapshot(ctx, d)
	if err != nil {
		t.Fatalf("ReadSnapshot: %v", err)
	}
	if len(got) != 1 || got[0].Close != 70500 {
		t.Errorf("snapshot round trip = %+v", got)
	}

	// A day with no snapshot reads back as nil without error.
	missing, err := ps.ReadSnapshot(ctx, day(2024, 1, 8))
	if err != nil {
		t.Fatal(err)
	}
	if missing != nil {
		t.Errorf("missing snapshot should be nil, got %d rows", len(missing))
	}
}

func TestLockBlocksSecondMerge(t *testing.T) {
	ps := NewParquetStore(t.TempDir())

	unlock, err := acquireLock(ps.StorePath())
	if err != nil {
		t.Fatalf("acquireLock: %v", err)
	}

	if _, err := ps.Merge(context.Background(), [][]domain.Quote{{quote(day(2024, 1, 5), "005930", 70500)}}); err == nil {
		t.Error("merge should fail while the store is locked")
	}

	unlock()
	if _, err := ps.Merge(context.Background(), [][]domain.Quote{{quote(day(2024, 1, 5), "005930", 70500)}}); err != nil {
		t.Errorf("merge after unlock: %v", err)
	}
}

func TestSQLiteRunStoreRoundTrip(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "runs.db")
	rs, err := NewSQLiteRunStore(dbPath)
	if err != nil {
		t.Fatalf("NewSQLiteRunStore: %v", err)
	}
	defer rs.Close()

	ctx := context.Background()
	run := &RunRecord{
		Mode:       "patch",
		StartedAt:  time.Date(2024, 1, 5, 18, 0, 0, 0, time.UTC),
		FinishedAt: time.Date(2024, 1, 5, 18, 20, 0, 0, time.UTC),
		StartDate:  "2024-01-03",
		EndDate:    "2024-01-05",
		DaysFound:  2,
		RowsMerged: 5400,
		Failed:     []string{"123456"},
		Fallback:   []string{"005930", "000660"},
	}
	if err := rs.SaveRun(ctx, run); err != nil {
		t.Fatalf("SaveRun: %v", err)
	}
	if run.ID == 0 {
		t.Error("SaveRun should assign an ID")
	}

	runs, err := rs.ListRuns(ctx, 10)
	if err != nil {
		t.Fatalf("ListRuns: %v", err)
	}
	if len(runs) != 1 {
		t.Fatalf("ListRuns = %d runs, want 1", len(runs))
	}
	got := runs[0]
	if got.Mode != "patch" || got.DaysFound != 2 || got.RowsMerged != 5400 {
		t.Errorf("run = %+v", got)
	}
	if len(got.Fallback) != 2 || got.Fallback[0] != "005930" {
		t.Errorf("Fallback = %v", got.Fallback)
	}
	if len(got.KRXUsed) != 0 {
		t.Errorf("KRXUsed should be empty, got %v", got.KRXUsed)
	}
}
