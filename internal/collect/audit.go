// Package collect drives the bulk-build and incremental-patch collection
// runs: it walks the symbol universe through the fallback fetcher, audits
// each collected day against the prior state, and hands the surviving
// blocks to the store for merging.
package collect

import (
	"log/slog"
	"math"
	"sort"

	"hojsle/internal/domain"
)

// AuditReport is the result of auditing one collected day-block against the
// prior day's baseline symbol set. Everything here is informational: nothing
// in an AuditReport blocks the merge.
type AuditReport struct {
	Missing  []string // in baseline but not collected
	Extra    []string // collected but not in baseline
	NaNRows  []domain.Quote
	BadPrice int // rows with high < low or price <= 0
}

// Empty reports whether the audit found nothing to flag.
func (r AuditReport) Empty() bool {
	return len(r.Missing) == 0 && len(r.Extra) == 0 && len(r.NaNRows) == 0 && r.BadPrice == 0
}

// Audit compares a day-block against the baseline symbol set and scans it
// for incomplete and implausible rows.
func Audit(block []domain.Quote, baseline map[string]struct{}) AuditReport {
	collected := make(map[string]struct{}, len(block))
	for _, q := range block {
		collected[q.Code] = struct{}{}
	}

	var report AuditReport
	for code := range baseline {
		if _, ok := collected[code]; !ok {
			report.Missing = append(report.Missing, code)
		}
	}
	for code := range collected {
		if _, ok := baseline[code]; !ok {
			report.Extra = append(report.Extra, code)
		}
	}
	sort.Strings(report.Missing)
	sort.Strings(report.Extra)

	for _, q := range block {
		if !q.Complete() {
			report.NaNRows = append(report.NaNRows, q)
			continue
		}
		if q.High < q.Low || badPrice(q) {
			report.BadPrice++
		}
	}
	return report
}

func badPrice(q domain.Quote) bool {
	for _, v := range []float64{q.Open, q.High, q.Low, q.Close} {
		if v <= 0 || math.IsNaN(v) {
			return true
		}
	}
	return q.Volume < 0
}

// Log emits the audit findings on the given logger, one line per non-empty
// category.
func (r AuditReport) Log(log *slog.Logger, date string) {
	if len(r.Missing) > 0 {
		log.Warn("symbols missing vs baseline", "date", date, "count", len(r.Missing))
	}
	if len(r.Extra) > 0 {
		log.Info("symbols new vs baseline", "date", date, "count", len(r.Extra))
	}
	if len(r.NaNRows) > 0 {
		log.Warn("rows with missing values", "date", date, "count", len(r.NaNRows))
	}
	if r.BadPrice > 0 {
		log.Warn("rows with implausible prices", "date", date, "count", r.BadPrice)
	}
}
