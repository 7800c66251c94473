package frame

import (
	"bytes"
	"encoding/json"
	"math"
)

// Field is one cell of a Record.
type Field struct {
	Name  string
	Value any
}

// Record is one row as an ordered column-name -> value mapping. It marshals
// as a JSON object with keys in column order.
type Record []Field

func (r Record) Get(name string) (any, bool) {
	for _, fld := range r {
		if fld.Name == name {
			return fld.Value, true
		}
	}
	return nil, false
}

func (r Record) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, fld := range r {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(fld.Name)
		if err != nil {
			return nil, err
		}
		val := fld.Value
		if x, ok := val.(float64); ok && (math.IsNaN(x) || math.IsInf(x, 0)) {
			val = nil
		}
		v, err := json.Marshal(val)
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// Records converts the frame into one Record per row. Values are those of
// Column.Value, so nulls become nil.
func (f *Frame) Records() []Record {
	out := make([]Record, f.nrows)
	for r := 0; r < f.nrows; r++ {
		rec := make(Record, len(f.cols))
		for c, col := range f.cols {
			rec[c] = Field{Name: col.Name(), Value: col.Value(r)}
		}
		out[r] = rec
	}
	return out
}
