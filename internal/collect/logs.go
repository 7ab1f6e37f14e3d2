package collect

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"hojsle/internal/domain"
)

// DiagLogs writes the per-date diagnostic files under <dataDir>/LOGS/. The
// files duplicate what the run log already says, in a form that survives log
// rotation and is easy to diff between runs.
type DiagLogs struct {
	Dir string
}

// NewDiagLogs returns a DiagLogs rooted at <dataDir>/LOGS.
func NewDiagLogs(dataDir string) *DiagLogs {
	return &DiagLogs{Dir: filepath.Join(dataDir, "LOGS")}
}

func (d *DiagLogs) path(name string, date time.Time, ext string) string {
	return filepath.Join(d.Dir, fmt.Sprintf("%s_%s.%s", name, date.Format("20060102"), ext))
}

// WriteAudit persists the non-empty parts of an audit report for one date.
func (d *DiagLogs) WriteAudit(date time.Time, report AuditReport) error {
	if err := d.writeCodes("missing_codes", date, report.Missing); err != nil {
		return err
	}
	if err := d.writeCodes("extra_codes", date, report.Extra); err != nil {
		return err
	}
	return d.writeNaNRows(date, report.NaNRows)
}

// WriteOutcome persists the failed/fallback/krx symbol sets for one date.
func (d *DiagLogs) WriteOutcome(date time.Time, outcome *domain.Outcome) error {
	if err := d.writeCodes("failed_codes", date, outcome.SortedFailed()); err != nil {
		return err
	}
	if err := d.writeCodes("fallback_used", date, outcome.SortedFallback()); err != nil {
		return err
	}
	return d.writeCodes("krx_used", date, outcome.SortedKRXUsed())
}

// writeCodes writes one code per line. Empty sets produce no file.
func (d *DiagLogs) writeCodes(name string, date time.Time, codes []string) error {
	if len(codes) == 0 {
		return nil
	}
	if err := os.MkdirAll(d.Dir, 0o755); err != nil {
		return err
	}
	f, err := os.Create(d.path(name, date, "txt"))
	if err != nil {
		return err
	}
	for _, code := range codes {
		fmt.Fprintln(f, code)
	}
	return f.Close()
}

// writeNaNRows writes rows with missing values as CSV so the offending
// fields are visible, not just the codes.
func (d *DiagLogs) writeNaNRows(date time.Time, rows []domain.Quote) error {
	if len(rows) == 0 {
		return nil
	}
	if err := os.MkdirAll(d.Dir, 0o755); err != nil {
		return err
	}
	f, err := os.Create(d.path("nan_rows", date, "csv"))
	if err != nil {
		return err
	}
	w := csv.NewWriter(f)
	w.Write([]string{"date", "code", "open", "high", "low", "close", "volume"})
	for _, q := range rows {
		w.Write([]string{
			q.Date.Format("2006-01-02"),
			q.Code,
			fmtCell(q.Open),
			fmtCell(q.High),
			fmtCell(q.Low),
			fmtCell(q.Close),
			fmtCell(q.Volume),
		})
	}
	w.Flush()
	if err := w.Error(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func fmtCell(v float64) string {
	if v != v { // NaN
		return ""
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}
