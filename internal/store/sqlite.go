package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "modernc.org/sqlite" // Pure-Go SQLite driver.
)

// Compile-time interface check.
var _ RunStore = (*SQLiteRunStore)(nil)

// SQLiteRunStore records collection run history in a SQLite database, so
// fallback usage and failure rates can be inspected across runs without
// grepping log files.
type SQLiteRunStore struct {
	db *sql.DB
}

const runsSchema = `
CREATE TABLE IF NOT EXISTS runs (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	mode        TEXT NOT NULL,
	started_at  TIMESTAMP NOT NULL,
	finished_at TIMESTAMP NOT NULL,
	start_date  TEXT NOT NULL,
	end_date    TEXT NOT NULL,
	days_found  INTEGER NOT NULL,
	rows_merged INTEGER NOT NULL,
	failed      TEXT NOT NULL DEFAULT '',
	fallback    TEXT NOT NULL DEFAULT '',
	krx_used    TEXT NOT NULL DEFAULT ''
);
`

// NewSQLiteRunStore opens (or creates) the run-history database at dbPath.
func NewSQLiteRunStore(dbPath string) (*SQLiteRunStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(runsSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating runs table: %w", err)
	}
	return &SQLiteRunStore{db: db}, nil
}

// Close closes the underlying database connection.
func (s *SQLiteRunStore) Close() error {
	return s.db.Close()
}

// SaveRun inserts one finished run and fills in the generated ID.
func (s *SQLiteRunStore) SaveRun(ctx context.Context, run *RunRecord) error {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO runs
			(mode, started_at, finished_at, start_date, end_date,
			 days_found, rows_merged, failed, fallback, krx_used)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.Mode,
		run.StartedAt,
		run.FinishedAt,
		run.StartDate,
		run.EndDate,
		run.DaysFound,
		run.RowsMerged,
		strings.Join(run.Failed, ","),
		strings.Join(run.Fallback, ","),
		strings.Join(run.KRXUsed, ","),
	)
	if err != nil {
		return fmt.Errorf("inserting run: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	run.ID = id
	return nil
}

// ListRuns returns the most recent runs, newest first, up to limit.
func (s *SQLiteRunStore) ListRuns(ctx context.Context, limit int) ([]RunRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, mode, started_at, finished_at, start_date, end_date,
		       days_found, rows_merged, failed, fallback, krx_used
		FROM runs
		ORDER BY id DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying runs: %w", err)
	}
	defer rows.Close()

	var runs []RunRecord
	for rows.Next() {
		var r RunRecord
		var failed, fallback, krxUsed string
		if err := rows.Scan(&r.ID, &r.Mode, &r.StartedAt, &r.FinishedAt,
			&r.StartDate, &r.EndDate, &r.DaysFound, &r.RowsMerged,
			&failed, &fallback, &krxUsed); err != nil {
			return nil, err
		}
		r.Failed = splitList(failed)
		r.Fallback = splitList(fallback)
		r.KRXUsed = splitList(krxUsed)
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, ",")
}
