package jsonlio

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/wdm0006/nimbus/pkg/frame"
	iox "github.com/wdm0006/nimbus/pkg/io/ioutils"
)

// Reader decodes JSON Lines objects into a Frame. Keys are lower-cased like
// CSV headers; columns appear in the order keys are first seen.
type Reader struct {
	dec  *json.Decoder
	rows []map[string]any
	keys []string
}

func NewReader(r io.Reader) *Reader {
	dec := json.NewDecoder(bufio.NewReader(r))
	dec.UseNumber()
	return &Reader{dec: dec}
}

// Load reads r completely. Every failure is a *frame.LoadError.
func Load(r io.Reader) (*frame.Frame, error) {
	f, err := NewReader(r).ReadAll()
	if err != nil {
		return nil, &frame.LoadError{Err: err}
	}
	return f, nil
}

// LoadFile opens path, transparently decompressing gzip, and loads it.
func LoadFile(path string) (*frame.Frame, error) {
	rc, err := iox.OpenMaybeCompressed(path)
	if err != nil {
		return nil, &frame.LoadError{Source: path, Err: err}
	}
	defer func() { _ = rc.Close() }()
	f, err := NewReader(rc).ReadAll()
	if err != nil {
		return nil, &frame.LoadError{Source: path, Err: err}
	}
	return f, nil
}

func (r *Reader) ReadAll() (*frame.Frame, error) {
	lower := cases.Lower(language.Und)
	seen := map[string]struct{}{}
	for line := 1; ; line++ {
		m, order, err := r.next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", line, err)
		}
		row := make(map[string]any, len(m))
		for _, k := range order {
			name := lower.String(k)
			if _, ok := seen[name]; !ok {
				seen[name] = struct{}{}
				r.keys = append(r.keys, name)
			}
			row[name] = m[k]
		}
		r.rows = append(r.rows, row)
	}
	if len(r.keys) == 0 {
		return nil, fmt.Errorf("no columns to parse")
	}
	cols := make([]frame.Column, len(r.keys))
	for i, k := range r.keys {
		cols[i] = r.column(k)
	}
	return frame.FromColumns(cols...)
}

// next decodes one object and the order of its keys.
func (r *Reader) next() (map[string]any, []string, error) {
	tok, err := r.dec.Token()
	if err != nil {
		return nil, nil, err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, nil, fmt.Errorf("expected object, got %v", tok)
	}
	m := map[string]any{}
	var order []string
	for r.dec.More() {
		tok, err := r.dec.Token()
		if err != nil {
			return nil, nil, err
		}
		k, _ := tok.(string)
		var v any
		if err := r.dec.Decode(&v); err != nil {
			return nil, nil, err
		}
		if _, dup := m[k]; !dup {
			order = append(order, k)
		}
		m[k] = v
	}
	if _, err := r.dec.Token(); err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return nil, nil, err
	}
	return m, order, nil
}

func (r *Reader) column(name string) frame.Column {
	nNum, nInt, nBool, nStr := 0, 0, 0, 0
	for _, m := range r.rows {
		switch t := m[name].(type) {
		case nil:
		case json.Number:
			nNum++
			if _, err := strconv.ParseInt(t.String(), 10, 64); err == nil {
				nInt++
			}
		case bool:
			nBool++
		default:
			nStr++
		}
	}
	kind := frame.KindString
	switch {
	case nStr > 0 || (nNum > 0 && nBool > 0):
	case nBool > 0:
		kind = frame.KindBool
	case nNum > 0 && nInt == nNum:
		kind = frame.KindInt
	case nNum > 0:
		kind = frame.KindFloat
	}
	col := frame.NewColumn(name, kind, len(r.rows))
	for i, m := range r.rows {
		v := m[name]
		if v == nil {
			col.SetNull(i)
			continue
		}
		switch c := col.(type) {
		case *frame.BoolColumn:
			c.Set(i, v.(bool))
		case *frame.IntColumn:
			n, _ := v.(json.Number).Int64()
			c.Set(i, n)
		case *frame.FloatColumn:
			x, _ := v.(json.Number).Float64()
			c.Set(i, x)
		case *frame.StringColumn:
			c.Set(i, stringify(v))
		}
	}
	return col
}

func stringify(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case json.Number:
		return t.String()
	case bool:
		if t {
			return "True"
		}
		return "False"
	default:
		b, _ := json.Marshal(t)
		return strings.TrimSpace(string(b))
	}
}
