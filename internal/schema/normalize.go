// Package schema normalises raw provider tables into canonical OHLCV quotes.
//
// Providers disagree on column naming, ordering, header nesting, and value
// formatting. Adapters hand this package a RawFrame — a loosely-typed table
// of strings — and Normalize forces it into zero or more domain.Quote rows
// with exactly the canonical shape. A frame that cannot be normalised yields
// an empty result, never an error: column-level surprises are an expected
// failure mode here.
package schema

import (
	"math"
	"strconv"
	"strings"
	"time"

	"hojsle/internal/domain"
)

// Canonical column names the normaliser requires after header flattening and
// adapter-side renaming. "code" is not required: the target code is always
// imposed by the caller, overriding anything the provider embedded.
var requiredColumns = []string{"date", "open", "high", "low", "close", "volume"}

// RawFrame is a provider table before normalisation: named columns over rows
// of string cells. Composite (multi-level) headers are represented by joining
// the levels with '|', e.g. "005930.KS|Close".
type RawFrame struct {
	Columns []string
	Rows    [][]string
}

// Empty reports whether the frame has no rows.
func (f RawFrame) Empty() bool { return len(f.Rows) == 0 }

// dateLayouts are the date formats providers are known to emit.
var dateLayouts = []string{
	"2006-01-02",
	"20060102",
	"2006/01/02",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05Z07:00",
}

// Normalize restricts a raw frame to the canonical record shape for the given
// target symbol code:
//
//  1. composite headers are flattened to their final name segment,
//  2. the six required source columns must all exist, else the result is empty,
//  3. the date column is coerced to a calendar date, dropping unparseable rows,
//  4. the code is the zero-padded target code regardless of provider values,
//  5. each numeric column is coerced independently; unparseable cells become NaN.
//
// Rows may still carry NaN numeric fields on return: completeness filtering
// happens downstream, before merge. Normalize never fails on malformed input.
func Normalize(frame RawFrame, code string) []domain.Quote {
	if frame.Empty() {
		return nil
	}

	padded := domain.PadCode(code)
	if padded == "" {
		return nil
	}

	idx := columnIndex(frame.Columns)
	for _, name := range requiredColumns {
		if _, ok := idx[name]; !ok {
			return nil
		}
	}

	quotes := make([]domain.Quote, 0, len(frame.Rows))
	for _, row := range frame.Rows {
		date, ok := parseDate(cell(row, idx["date"]))
		if !ok {
			continue
		}
		quotes = append(quotes, domain.Quote{
			Date:   date,
			Code:   padded,
			Open:   parseNumeric(cell(row, idx["open"])),
			High:   parseNumeric(cell(row, idx["high"])),
			Low:    parseNumeric(cell(row, idx["low"])),
			Close:  parseNumeric(cell(row, idx["close"])),
			Volume: parseNumeric(cell(row, idx["volume"])),
		})
	}
	return quotes
}

// FlattenHeader reduces a possibly composite column header to its final name
// segment, lower-cased and trimmed.
func FlattenHeader(name string) string {
	segs := strings.Split(name, "|")
	for i := len(segs) - 1; i >= 0; i-- {
		if s := strings.TrimSpace(segs[i]); s != "" {
			return strings.ToLower(s)
		}
	}
	return ""
}

// columnIndex maps flattened header names to their first column position.
func columnIndex(columns []string) map[string]int {
	idx := make(map[string]int, len(columns))
	for i, name := range columns {
		flat := FlattenHeader(name)
		if flat == "" {
			continue
		}
		if _, seen := idx[flat]; !seen {
			idx[flat] = i
		}
	}
	return idx
}

func cell(row []string, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}
	return row[i]
}

// parseDate coerces a raw cell to a calendar date at midnight UTC.
func parseDate(raw string) (time.Time, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return domain.Day(t), true
		}
	}
	return time.Time{}, false
}

// parseNumeric coerces a raw cell to a float, returning NaN when the value is
// absent or unparseable. Thousands separators are tolerated.
func parseNumeric(raw string) float64 {
	s := strings.TrimSpace(raw)
	s = strings.ReplaceAll(s, ",", "")
	if s == "" || s == "-" {
		return math.NaN()
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return math.NaN()
	}
	return v
}
