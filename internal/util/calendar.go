package util

import (
	"time"

	"github.com/scmhub/calendar"
)

// xkrxMIC is the ISO 10383 market identifier for the Korea Exchange.
const xkrxMIC = "xkrx"

// TradingCalendar answers "is this a KRX trading day" using the scmhub
// exchange calendar when it can be loaded, and a plain Mon-Fri check when it
// cannot. The weekday fallback deliberately over-approximates: holidays that
// slip through are caught later by the collector's all-sources-empty
// inference.
type TradingCalendar struct {
	cal *calendar.Calendar
	loc *time.Location
}

// NewTradingCalendar loads the XKRX calendar. It never fails; when the
// calendar is unavailable the returned instance falls back to weekday checks.
func NewTradingCalendar() *TradingCalendar {
	tc := &TradingCalendar{loc: time.UTC}
	if cal := calendar.GetCalendar(xkrxMIC); cal != nil {
		tc.cal = cal
		if cal.Loc != nil {
			tc.loc = cal.Loc
		}
	}
	return tc
}

// HasHolidayData reports whether the exchange holiday calendar was loaded.
func (tc *TradingCalendar) HasHolidayData() bool { return tc.cal != nil }

// IsTradingDay reports whether date is a KRX business day. Weekends are
// always non-trading; holidays are excluded only when holiday data is loaded.
func (tc *TradingCalendar) IsTradingDay(date time.Time) bool {
	d := date.In(tc.loc)
	if wd := d.Weekday(); wd == time.Saturday || wd == time.Sunday {
		return false
	}
	if tc.cal != nil {
		return tc.cal.IsBusinessDay(d)
	}
	return true
}
