package script

import (
	"fmt"
	"math"
	"time"

	"go.starlark.net/starlark"
	startime "go.starlark.net/lib/time"

	"github.com/wdm0006/nimbus/pkg/frame"
)

// rowsValue renders f as a list of dicts, one per row, keys in column order.
func rowsValue(f *frame.Frame) *starlark.List {
	cols := f.Columns()
	keys := make([]starlark.String, len(cols))
	for i, c := range cols {
		keys[i] = starlark.String(c.Name())
	}
	rows := make([]starlark.Value, f.Rows())
	for r := range rows {
		d := starlark.NewDict(len(cols))
		for i, c := range cols {
			_ = d.SetKey(keys[i], toValue(c.Value(r)))
		}
		rows[r] = d
	}
	return starlark.NewList(rows)
}

func toValue(v any) starlark.Value {
	switch t := v.(type) {
	case nil:
		return starlark.None
	case bool:
		return starlark.Bool(t)
	case int64:
		return starlark.MakeInt64(t)
	case float64:
		return starlark.Float(t)
	case string:
		return starlark.String(t)
	case time.Time:
		return startime.Time(t)
	default:
		return starlark.String(fmt.Sprint(t))
	}
}

// fromValue maps a Starlark cell back to the Go value space of frame cells.
// Containers and other exotic values are kept as their string form.
func fromValue(v starlark.Value) any {
	switch t := v.(type) {
	case starlark.NoneType:
		return nil
	case starlark.Bool:
		return bool(t)
	case starlark.Int:
		if n, ok := t.Int64(); ok {
			return n
		}
		return float64(t.Float())
	case starlark.Float:
		f := float64(t)
		if math.IsNaN(f) {
			return nil
		}
		return f
	case starlark.String:
		return string(t)
	case startime.Time:
		return time.Time(t)
	default:
		return v.String()
	}
}

// toFrame builds a frame from a list (or non-empty tuple) of row dicts.
// Columns appear in the order their keys are first seen; a key missing from a
// row is null. When the list is empty the columns of like are kept with zero
// rows.
func toFrame(v starlark.Value, like *frame.Frame) (*frame.Frame, error) {
	var seq starlark.Indexable
	switch t := v.(type) {
	case *starlark.List:
		seq = t
	case starlark.Tuple:
		if t.Len() == 0 {
			return nil, fmt.Errorf("result must be a list of dicts, got an empty tuple")
		}
		seq = t
	default:
		return nil, fmt.Errorf("result must be a list of dicts, got %s", v.Type())
	}
	if seq.Len() == 0 {
		return like.Take(nil), nil
	}
	var names []string
	index := map[string]int{}
	rows := make([]map[string]any, seq.Len())
	for r := 0; r < seq.Len(); r++ {
		d, ok := seq.Index(r).(*starlark.Dict)
		if !ok {
			return nil, fmt.Errorf("row %d must be a dict, got %s", r, seq.Index(r).Type())
		}
		row := make(map[string]any, d.Len())
		for _, item := range d.Items() {
			k, ok := starlark.AsString(item[0])
			if !ok {
				return nil, fmt.Errorf("row %d: column names must be strings, got %s", r, item[0].Type())
			}
			if _, seen := index[k]; !seen {
				index[k] = len(names)
				names = append(names, k)
			}
			row[k] = fromValue(item[1])
		}
		rows[r] = row
	}
	cols := make([]frame.Column, len(names))
	for i, name := range names {
		cols[i] = buildColumn(name, rows)
	}
	return frame.FromColumns(cols...)
}

// buildColumn picks the narrowest kind holding every non-null value: ints
// widen to float, any other mix falls back to text.
func buildColumn(name string, rows []map[string]any) frame.Column {
	kind := frame.KindInvalid
	for _, row := range rows {
		v := row[name]
		if v == nil {
			continue
		}
		k := kindOf(v)
		switch {
		case kind == frame.KindInvalid:
			kind = k
		case kind == k:
		case (kind == frame.KindInt && k == frame.KindFloat) || (kind == frame.KindFloat && k == frame.KindInt):
			kind = frame.KindFloat
		default:
			kind = frame.KindString
		}
	}
	if kind == frame.KindInvalid {
		kind = frame.KindString
	}
	col := frame.NewColumn(name, kind, len(rows))
	for r, row := range rows {
		v := row[name]
		if v == nil {
			col.SetNull(r)
			continue
		}
		switch c := col.(type) {
		case *frame.BoolColumn:
			c.Set(r, v.(bool))
		case *frame.IntColumn:
			c.Set(r, v.(int64))
		case *frame.FloatColumn:
			if n, ok := v.(int64); ok {
				c.Set(r, float64(n))
			} else {
				c.Set(r, v.(float64))
			}
		case *frame.TimeColumn:
			c.Set(r, v.(time.Time))
		case *frame.StringColumn:
			c.Set(r, frame.FormatValue(v))
		}
	}
	return col
}

func kindOf(v any) frame.Kind {
	switch v.(type) {
	case bool:
		return frame.KindBool
	case int64:
		return frame.KindInt
	case float64:
		return frame.KindFloat
	case time.Time:
		return frame.KindTime
	default:
		return frame.KindString
	}
}
