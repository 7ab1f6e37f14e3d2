// Package domain defines the core types shared across the hojsle raw-data
// pipeline: the canonical OHLCV quote record, the symbol universe, and the
// per-run collection outcome.
package domain

import (
	"math"
	"regexp"
	"sort"
	"strings"
	"time"
)

// CodeWidth is the fixed width of a Korean equity symbol code.
const CodeWidth = 6

// Market identifies one of the two KRX sub-markets.
type Market string

const (
	MarketKOSPI  Market = "kospi"
	MarketKOSDAQ Market = "kosdaq"
)

// Quote is the canonical per-symbol-per-day OHLCV record. Date carries a
// calendar date only (midnight UTC); Code is a zero-padded 6-digit string.
// Numeric fields use NaN to represent a value the provider did not supply or
// that failed numeric coercion.
type Quote struct {
	Date   time.Time
	Code   string
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume float64
}

// Complete reports whether all five numeric fields are present (non-NaN).
func (q Quote) Complete() bool {
	return !math.IsNaN(q.Open) && !math.IsNaN(q.High) && !math.IsNaN(q.Low) &&
		!math.IsNaN(q.Close) && !math.IsNaN(q.Volume)
}

// Valid reports whether the quote satisfies the price invariants: high >= low
// and all prices strictly positive. Incomplete quotes are not valid.
func (q Quote) Valid() bool {
	if !q.Complete() {
		return false
	}
	if q.High < q.Low {
		return false
	}
	if q.Open <= 0 || q.High <= 0 || q.Low <= 0 || q.Close <= 0 {
		return false
	}
	return q.Volume >= 0
}

// Key uniquely identifies a quote within the cumulative store.
type Key struct {
	Date time.Time
	Code string
}

// Key returns the (date, code) store key for the quote.
func (q Quote) Key() Key {
	return Key{Date: q.Date, Code: q.Code}
}

var codeDigits = regexp.MustCompile(`^[0-9]+$`)

// PadCode normalises a raw symbol code to the fixed 6-digit zero-padded form.
// It returns the empty string if the input is not purely numeric or is wider
// than CodeWidth.
func PadCode(raw string) string {
	s := strings.TrimSpace(raw)
	s = strings.TrimSuffix(s, ".0") // numeric round-trip artefact in listings
	if s == "" || len(s) > CodeWidth || !codeDigits.MatchString(s) {
		return ""
	}
	return strings.Repeat("0", CodeWidth-len(s)) + s
}

// Universe is the set of tradable symbol codes at collection time. It is
// assembled fresh per run and never persisted.
type Universe struct {
	codes map[string]struct{}
}

// NewUniverse creates an empty universe.
func NewUniverse() *Universe {
	return &Universe{codes: make(map[string]struct{})}
}

// Add inserts a raw code after zero-pad validation. Invalid codes are
// silently ignored; it returns true if the code was accepted.
func (u *Universe) Add(raw string) bool {
	code := PadCode(raw)
	if code == "" {
		return false
	}
	u.codes[code] = struct{}{}
	return true
}

// Contains reports whether the universe holds the given code.
func (u *Universe) Contains(code string) bool {
	_, ok := u.codes[code]
	return ok
}

// Count returns the number of codes in the universe.
func (u *Universe) Count() int { return len(u.codes) }

// Sorted returns the codes in ascending order.
func (u *Universe) Sorted() []string {
	out := make([]string, 0, len(u.codes))
	for c := range u.codes {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

// Outcome records, for one collection run, which symbols failed every source
// and which needed the 2nd- or 3rd-tier source. Diagnostic only; written to
// the LOGS directory and never read back.
type Outcome struct {
	Failed   map[string]struct{}
	Fallback map[string]struct{} // 2nd-tier (portal) source used
	KRXUsed  map[string]struct{} // 3rd-tier (exchange statistics) source used
}

// NewOutcome creates an empty outcome record.
func NewOutcome() *Outcome {
	return &Outcome{
		Failed:   make(map[string]struct{}),
		Fallback: make(map[string]struct{}),
		KRXUsed:  make(map[string]struct{}),
	}
}

// SortedFailed returns the failed codes in ascending order.
func (o *Outcome) SortedFailed() []string { return sortedKeys(o.Failed) }

// SortedFallback returns the fallback-used codes in ascending order.
func (o *Outcome) SortedFallback() []string { return sortedKeys(o.Fallback) }

// SortedKRXUsed returns the krx-used codes in ascending order.
func (o *Outcome) SortedKRXUsed() []string { return sortedKeys(o.KRXUsed) }

func sortedKeys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Day truncates t to a calendar date at midnight UTC.
func Day(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
