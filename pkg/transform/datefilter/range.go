package datefilter

import (
	"context"
	"time"

	"github.com/wdm0006/nimbus/pkg/frame"
)

// Default bounds of the built-in Date Filter.
var (
	DefaultStart = time.Date(2024, time.September, 1, 0, 0, 0, 0, time.UTC)
	DefaultEnd   = time.Date(2024, time.October, 12, 0, 0, 0, 0, time.UTC)
)

// Range keeps rows with Start <= date <= End. Bounds are instants, so a
// timestamp later than midnight on the End day falls outside. Rows whose date
// failed to parse are dropped. The column is required.
type Range struct {
	Column string
	Start  time.Time
	End    time.Time
}

// NewRange returns the filter with the default column and bounds.
func NewRange() *Range {
	return &Range{Column: DefaultColumn, Start: DefaultStart, End: DefaultEnd}
}

func (t *Range) Name() string { return "filter_date_range" }

func (t *Range) Apply(ctx context.Context, f *frame.Frame) (*frame.Frame, error) {
	name := t.Column
	if name == "" {
		name = DefaultColumn
	}
	col, ok := f.ColumnByName(name)
	if !ok {
		return f, frame.MissingColumn(t.Name(), name)
	}
	tc := frame.ToTimeColumn(col)
	if err := f.Replace(tc); err != nil {
		return f, err
	}
	return f.Filter(func(r int) bool {
		v, ok := tc.Get(r)
		return ok && !v.Before(t.Start) && !v.After(t.End)
	}), nil
}
