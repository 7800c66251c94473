package frame

import (
	"strconv"
	"strings"
	"time"
)

// DateLayout is the text form used for calendar dates on the way out.
const DateLayout = "2006-01-02"

// dateLayouts are tried in order by ParseDate. Month-first wins for
// slash-separated dates, matching the usual CSV exports.
var dateLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04:05.999999999",
	time.RFC3339Nano,
	"2006-01-02 15:04:05Z07:00",
	"2006/01/02",
	"2006/01/02 15:04:05",
	"1/2/2006",
	"1/2/2006 15:04",
	"1/2/2006 15:04:05",
	"1-2-2006",
	"2006.01.02",
	"Jan 2, 2006",
	"January 2, 2006",
	"2 Jan 2006",
	"2 January 2006",
	"02-Jan-2006",
	"20060102",
}

// ParseDate parses s with the known layouts. The result is a naive UTC
// timestamp carrying the wall clock of the input; ok is false when no
// layout matches.
func ParseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		t, err := time.Parse(layout, s)
		if err != nil {
			continue
		}
		y, m, d := t.Date()
		hh, mm, ss := t.Clock()
		return time.Date(y, m, d, hh, mm, ss, t.Nanosecond(), time.UTC), true
	}
	return time.Time{}, false
}

// Day truncates t to its calendar date.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// FormatDate renders the calendar date of t as YYYY-MM-DD.
func FormatDate(t time.Time) string { return t.Format(DateLayout) }

// ToTimeColumn coerces c into a time column. Values that do not parse become
// null, so callers can treat the result like pandas' errors='coerce'.
func ToTimeColumn(c Column) *TimeColumn {
	if tc, ok := c.(*TimeColumn); ok {
		return tc
	}
	out := NewTimeColumn(c.Name(), c.Len())
	for i := 0; i < c.Len(); i++ {
		out.SetNull(i)
		var raw string
		switch col := c.(type) {
		case *StringColumn:
			v, ok := col.Get(i)
			if !ok {
				continue
			}
			raw = v
		case *IntColumn:
			v, ok := col.Get(i)
			if !ok {
				continue
			}
			raw = strconv.FormatInt(v, 10)
		default:
			continue
		}
		if t, ok := ParseDate(raw); ok {
			out.Set(i, t)
		}
	}
	return out
}
