// Package datefilter holds row filters keyed on a date column. Both filters
// replace the column with its parsed form: cells that do not parse become
// null.
package datefilter

import (
	"context"
	"time"

	"github.com/wdm0006/nimbus/pkg/frame"
)

// DefaultColumn is the column both filters work on.
const DefaultColumn = "date"

// TrimDay removes rows dated on the calendar day before Now. A frame without
// the column passes through untouched, and rows whose date failed to parse
// are kept.
type TrimDay struct {
	Column string
	Now    func() time.Time
}

func (t *TrimDay) Name() string { return "trim_by_date" }

func (t *TrimDay) Apply(ctx context.Context, f *frame.Frame) (*frame.Frame, error) {
	name := t.Column
	if name == "" {
		name = DefaultColumn
	}
	col, ok := f.ColumnByName(name)
	if !ok {
		return f, nil
	}
	tc := frame.ToTimeColumn(col)
	if err := f.Replace(tc); err != nil {
		return f, err
	}
	now := time.Now
	if t.Now != nil {
		now = t.Now
	}
	n := now()
	yesterday := time.Date(n.Year(), n.Month(), n.Day()-1, 0, 0, 0, 0, time.UTC)
	return f.Filter(func(r int) bool {
		v, ok := tc.Get(r)
		return !ok || !frame.Day(v).Equal(yesterday)
	}), nil
}
