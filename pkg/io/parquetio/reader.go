package parquetio

import (
	"errors"
	"fmt"
	"io"
	"os"

	parquet "github.com/segmentio/parquet-go"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/wdm0006/nimbus/pkg/frame"
)

// Load reads every row of a flat Parquet file. Column names are lower-cased
// like CSV headers. Nested columns are not supported.
func Load(ra io.ReaderAt) (f *frame.Frame, err error) {
	defer func() {
		// segmentio readers panic on some malformed inputs
		if r := recover(); r != nil {
			f, err = nil, &frame.LoadError{Err: fmt.Errorf("parquet: %v", r)}
		}
	}()
	f, err = read(ra)
	if err != nil {
		return nil, &frame.LoadError{Err: err}
	}
	return f, nil
}

// LoadFile opens path and loads it.
func LoadFile(path string) (*frame.Frame, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, &frame.LoadError{Source: path, Err: err}
	}
	defer func() { _ = fh.Close() }()
	f, err := Load(fh)
	if err != nil {
		var le *frame.LoadError
		if errors.As(err, &le) {
			le.Source = path
		}
		return nil, err
	}
	return f, nil
}

func read(ra io.ReaderAt) (*frame.Frame, error) {
	r := parquet.NewReader(ra)
	defer func() { _ = r.Close() }()
	fields := r.Schema().Fields()
	lower := cases.Lower(language.Und)
	cells := make([][]any, len(fields))
	buf := make([]parquet.Row, 256)
	for {
		n, err := r.ReadRows(buf)
		for _, row := range buf[:n] {
			vals := make([]any, len(fields))
			for _, v := range row {
				if c := v.Column(); c >= 0 && c < len(vals) {
					vals[c] = cellValue(v)
				}
			}
			for c := range fields {
				cells[c] = append(cells[c], vals[c])
			}
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		if n == 0 {
			break
		}
	}
	cols := make([]frame.Column, len(fields))
	for i, fld := range fields {
		cols[i] = buildColumn(lower.String(fld.Name()), cells[i])
	}
	return frame.FromColumns(cols...)
}

func cellValue(v parquet.Value) any {
	if v.IsNull() {
		return nil
	}
	switch v.Kind() {
	case parquet.Boolean:
		return v.Boolean()
	case parquet.Int32:
		return int64(v.Int32())
	case parquet.Int64:
		return v.Int64()
	case parquet.Float:
		return float64(v.Float())
	case parquet.Double:
		return v.Double()
	case parquet.ByteArray, parquet.FixedLenByteArray:
		return string(v.ByteArray())
	default:
		return v.String()
	}
}

func buildColumn(name string, vals []any) frame.Column {
	kind := frame.KindInvalid
	for _, v := range vals {
		var k frame.Kind
		switch v.(type) {
		case nil:
			continue
		case bool:
			k = frame.KindBool
		case int64:
			k = frame.KindInt
		case float64:
			k = frame.KindFloat
		default:
			k = frame.KindString
		}
		if kind == frame.KindInvalid {
			kind = k
		} else if kind != k {
			kind = frame.KindString
		}
	}
	if kind == frame.KindInvalid {
		kind = frame.KindString
	}
	col := frame.NewColumn(name, kind, len(vals))
	for i, v := range vals {
		if v == nil {
			col.SetNull(i)
			continue
		}
		switch c := col.(type) {
		case *frame.BoolColumn:
			c.Set(i, v.(bool))
		case *frame.IntColumn:
			c.Set(i, v.(int64))
		case *frame.FloatColumn:
			c.Set(i, v.(float64))
		case *frame.StringColumn:
			c.Set(i, frame.FormatValue(v))
		}
	}
	return col
}
