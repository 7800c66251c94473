package impute

import (
	"context"
	"strconv"
	"time"

	"github.com/wdm0006/nimbus/pkg/frame"
)

// DefaultFill is the value the built-in Null Value Filler writes.
const DefaultFill = "N/A"

// FillNulls replaces every null cell in every column with Value. A column
// whose kind cannot hold Value (e.g. "N/A" in a float column) is converted to
// a text column first, so no null survives.
type FillNulls struct {
	// use any; will be coerced per column kind
	Value any
}

func (t *FillNulls) Name() string { return "fill_nulls" }

func (t *FillNulls) Apply(ctx context.Context, f *frame.Frame) (*frame.Frame, error) {
	for _, col := range f.Columns() {
		if !hasNull(col) {
			continue
		}
		switch c := col.(type) {
		case *frame.FloatColumn:
			if v, ok := asFloat(t.Value); ok {
				for i := 0; i < c.Len(); i++ {
					if c.IsNull(i) {
						c.Set(i, v)
					}
				}
				continue
			}
		case *frame.IntColumn:
			if v, ok := asInt(t.Value); ok {
				for i := 0; i < c.Len(); i++ {
					if c.IsNull(i) {
						c.Set(i, v)
					}
				}
				continue
			}
		case *frame.BoolColumn:
			if v, ok := t.Value.(bool); ok {
				for i := 0; i < c.Len(); i++ {
					if c.IsNull(i) {
						c.Set(i, v)
					}
				}
				continue
			}
		case *frame.TimeColumn:
			if v, ok := t.Value.(time.Time); ok {
				for i := 0; i < c.Len(); i++ {
					if c.IsNull(i) {
						c.Set(i, v)
					}
				}
				continue
			}
		}
		if err := f.Replace(fillAsText(col, frame.FormatValue(t.Value))); err != nil {
			return f, err
		}
	}
	return f, nil
}

func hasNull(c frame.Column) bool {
	for i := 0; i < c.Len(); i++ {
		if c.IsNull(i) {
			return true
		}
	}
	return false
}

func fillAsText(c frame.Column, fill string) *frame.StringColumn {
	out := frame.NewStringColumn(c.Name(), c.Len())
	for i := 0; i < c.Len(); i++ {
		if c.IsNull(i) {
			out.Set(i, fill)
			continue
		}
		out.Set(i, frame.FormatValue(c.Value(i)))
	}
	return out
}

func asFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case float32:
		return float64(x), true
	case int:
		return float64(x), true
	case int64:
		return float64(x), true
	case string:
		f, err := strconv.ParseFloat(x, 64)
		return f, err == nil
	}
	return 0, false
}

func asInt(v any) (int64, bool) {
	switch x := v.(type) {
	case int:
		return int64(x), true
	case int64:
		return x, true
	case float64:
		if x == float64(int64(x)) {
			return int64(x), true
		}
	case string:
		n, err := strconv.ParseInt(x, 10, 64)
		return n, err == nil
	}
	return 0, false
}
