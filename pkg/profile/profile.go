// Package profile summarises the columns of an uploaded table: kind, null
// counts, numeric ranges and the most frequent values.
package profile

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/wdm0006/nimbus/pkg/frame"
)

// DefaultTopK is how many frequent values are kept per text column.
const DefaultTopK = 5

type NumStats struct {
	Count int     `json:"count"`
	Nulls int     `json:"nulls"`
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
	Mean  float64 `json:"mean"`
	sum   float64
}

type BoolStats struct {
	Count int `json:"count"`
	Nulls int `json:"nulls"`
	True  int `json:"true"`
	False int `json:"false"`
}

// ValueCount is one entry of a column's frequency table.
type ValueCount struct {
	Value string `json:"value"`
	Count int    `json:"count"`
}

type TextStats struct {
	Count int          `json:"count"`
	Nulls int          `json:"nulls"`
	Top   []ValueCount `json:"top,omitempty"`
	freqs map[string]int
}

type Column struct {
	Name string     `json:"name"`
	Kind string     `json:"kind"`
	Num  *NumStats  `json:"num,omitempty"`
	Bool *BoolStats `json:"bool,omitempty"`
	Text *TextStats `json:"text,omitempty"`
}

// Report is the profile of one table.
type Report struct {
	Rows    int      `json:"rows"`
	Columns []Column `json:"columns"`
}

// Collector accumulates statistics over one or more frames sharing a schema.
type Collector struct {
	cols  []Column
	index map[string]int
	rows  int
	topK  int
}

func NewCollector(schema frame.Schema, topK int) *Collector {
	c := &Collector{index: make(map[string]int, len(schema.Columns)), topK: topK}
	c.cols = make([]Column, len(schema.Columns))
	for i, cs := range schema.Columns {
		col := Column{Name: cs.Name, Kind: cs.Type.String()}
		switch cs.Type {
		case frame.KindFloat, frame.KindInt:
			col.Num = &NumStats{Min: math.Inf(1), Max: math.Inf(-1)}
		case frame.KindBool:
			col.Bool = &BoolStats{}
		default:
			col.Text = &TextStats{freqs: make(map[string]int)}
		}
		c.cols[i] = col
		c.index[cs.Name] = i
	}
	return c
}

// Consume folds the rows of f into the statistics. Columns not in the
// collector's schema are ignored.
func (c *Collector) Consume(f *frame.Frame) {
	c.rows += f.Rows()
	for _, src := range f.Columns() {
		idx, ok := c.index[src.Name()]
		if !ok {
			continue
		}
		col := &c.cols[idx]
		for i := 0; i < src.Len(); i++ {
			if src.IsNull(i) {
				col.addNull()
				continue
			}
			switch v := src.Value(i).(type) {
			case float64:
				col.addNum(v)
			case int64:
				col.addNum(float64(v))
			case bool:
				col.addBool(v)
			default:
				col.addText(frame.FormatValue(v))
			}
		}
	}
}

func (col *Column) addNull() {
	switch {
	case col.Num != nil:
		col.Num.Nulls++
	case col.Bool != nil:
		col.Bool.Nulls++
	default:
		col.Text.Nulls++
	}
}

func (col *Column) addNum(v float64) {
	if col.Num == nil {
		col.addText(frame.FormatValue(v))
		return
	}
	n := col.Num
	n.Count++
	n.sum += v
	n.Min = math.Min(n.Min, v)
	n.Max = math.Max(n.Max, v)
}

func (col *Column) addBool(v bool) {
	if col.Bool == nil {
		col.addText(frame.FormatValue(v))
		return
	}
	col.Bool.Count++
	if v {
		col.Bool.True++
	} else {
		col.Bool.False++
	}
}

func (col *Column) addText(v string) {
	if col.Text == nil {
		return
	}
	col.Text.Count++
	col.Text.freqs[v]++
}

// Report finalises means and frequency tables. The collector may keep
// consuming afterwards.
func (c *Collector) Report() Report {
	out := Report{Rows: c.rows, Columns: make([]Column, len(c.cols))}
	for i, col := range c.cols {
		if col.Num != nil {
			n := *col.Num
			if n.Count == 0 {
				n.Min, n.Max = 0, 0
			} else {
				n.Mean = n.sum / float64(n.Count)
			}
			col.Num = &n
		}
		if col.Bool != nil {
			b := *col.Bool
			col.Bool = &b
		}
		if col.Text != nil {
			t := *col.Text
			t.Top = topValues(col.Text.freqs, c.topK)
			col.Text = &t
		}
		out.Columns[i] = col
	}
	return out
}

// topValues orders by count descending, then value, and keeps k entries.
func topValues(freqs map[string]int, k int) []ValueCount {
	if k <= 0 || len(freqs) == 0 {
		return nil
	}
	arr := make([]ValueCount, 0, len(freqs))
	for v, n := range freqs {
		arr = append(arr, ValueCount{Value: v, Count: n})
	}
	sort.Slice(arr, func(i, j int) bool {
		if arr[i].Count != arr[j].Count {
			return arr[i].Count > arr[j].Count
		}
		return arr[i].Value < arr[j].Value
	})
	if k < len(arr) {
		arr = arr[:k]
	}
	return arr
}

// Of profiles a single frame.
func Of(f *frame.Frame, topK int) Report {
	c := NewCollector(f.Schema(), topK)
	c.Consume(f)
	return c.Report()
}

// Text renders the report for a terminal.
func (r Report) Text() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Profile Summary (%d rows)\n", r.Rows)
	for _, col := range r.Columns {
		fmt.Fprintf(&b, "- %s (%s): ", col.Name, col.Kind)
		switch {
		case col.Num != nil:
			n := col.Num
			fmt.Fprintf(&b, "count=%d nulls=%d min=%.6g max=%.6g mean=%.6g\n", n.Count, n.Nulls, n.Min, n.Max, n.Mean)
		case col.Bool != nil:
			fmt.Fprintf(&b, "count=%d nulls=%d true=%d false=%d\n", col.Bool.Count, col.Bool.Nulls, col.Bool.True, col.Bool.False)
		default:
			fmt.Fprintf(&b, "count=%d nulls=%d\n", col.Text.Count, col.Text.Nulls)
			for _, vc := range col.Text.Top {
				fmt.Fprintf(&b, "  * %q: %d\n", vc.Value, vc.Count)
			}
		}
	}
	return b.String()
}
