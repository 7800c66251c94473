package csvio

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/wdm0006/nimbus/pkg/frame"
	iox "github.com/wdm0006/nimbus/pkg/io/ioutils"
)

// naTokens are the cell values read as null, the same set pandas uses by
// default. Matching is exact.
var naTokens = map[string]struct{}{
	"": {}, "#N/A": {}, "#N/A N/A": {}, "#NA": {}, "-1.#IND": {}, "-1.#QNAN": {},
	"-NaN": {}, "-nan": {}, "1.#IND": {}, "1.#QNAN": {}, "<NA>": {}, "N/A": {},
	"NA": {}, "NULL": {}, "NaN": {}, "None": {}, "n/a": {}, "nan": {}, "null": {},
}

var (
	intRe   = regexp.MustCompile(`^[-+]?[0-9]+$`)
	floatRe = regexp.MustCompile(`^[-+]?([0-9]+\.?[0-9]*|\.[0-9]+)([eE][-+]?[0-9]+)?$|^[-+]?(inf|Inf|INF|infinity|Infinity)$`)
)

// ErrEmpty is returned for a source without a header row.
var ErrEmpty = errors.New("no columns to parse from file")

type ReaderOptions struct {
	// Logger receives a WARN with Warnings() when records were repaired.
	Logger *slog.Logger
}

// Reader reads a comma separated file with a header row into a Frame.
type Reader struct {
	r       *csv.Reader
	opt     ReaderOptions
	names   []string
	records [][]string
	// repair counters
	shortRecords int
}

func NewReader(r io.Reader, opt ReaderOptions) *Reader {
	rr := csv.NewReader(r)
	rr.FieldsPerRecord = -1
	return &Reader{r: rr, opt: opt}
}

// Load reads r completely. Every failure is a *frame.LoadError.
func Load(r io.Reader) (*frame.Frame, error) {
	f, err := NewReader(r, ReaderOptions{}).ReadAll()
	if err != nil {
		return nil, &frame.LoadError{Err: err}
	}
	return f, nil
}

// LoadFile opens path, transparently decompressing gzip, and loads it.
func LoadFile(path string, opt ReaderOptions) (*frame.Frame, error) {
	rc, err := iox.OpenMaybeCompressed(path)
	if err != nil {
		return nil, &frame.LoadError{Source: path, Err: err}
	}
	defer func() { _ = rc.Close() }()
	f, err := NewReader(rc, opt).ReadAll()
	if err != nil {
		return nil, &frame.LoadError{Source: path, Err: err}
	}
	return f, nil
}

// InferSchema reads the header and all records, then determines column kinds.
// Records are kept for ReadAll.
func (r *Reader) InferSchema() (frame.Schema, error) {
	hdr, err := r.r.Read()
	if err == io.EOF {
		return frame.Schema{}, ErrEmpty
	}
	if err != nil {
		return frame.Schema{}, err
	}
	r.names = headerNames(hdr)
	for {
		rec, err := r.r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return frame.Schema{}, err
		}
		if len(rec) > len(r.names) {
			line, _ := r.r.FieldPos(0)
			return frame.Schema{}, fmt.Errorf("line %d: expected %d fields, saw %d", line, len(r.names), len(rec))
		}
		if len(rec) < len(r.names) {
			r.shortRecords++
		}
		r.records = append(r.records, rec)
	}
	kinds := inferKinds(r.records, len(r.names))
	schema := frame.Schema{Columns: make([]frame.ColumnSchema, len(r.names))}
	for i, n := range r.names {
		schema.Columns[i] = frame.ColumnSchema{Name: n, Type: kinds[i], Nullable: true}
	}
	return schema, nil
}

// ReadAll infers the schema and loads every record. Short records are padded
// with nulls; cells that do not parse as the column kind are null.
func (r *Reader) ReadAll() (*frame.Frame, error) {
	schema, err := r.InferSchema()
	if err != nil {
		return nil, err
	}
	f := frame.NewFrame(schema)
	for _, rec := range r.records {
		f.AppendNullRow()
		row := f.Rows() - 1
		for i, cs := range schema.Columns {
			if i >= len(rec) {
				continue
			}
			val := strings.ToValidUTF8(rec[i], "\uFFFD")
			if isNA(val) {
				continue
			}
			if v, ok := parseCell(cs.Type, val); ok {
				_ = f.SetCell(row, cs.Name, v)
			}
		}
	}
	r.records = nil
	if w := r.Warnings(); w != "" && r.opt.Logger != nil {
		r.opt.Logger.Warn("csv records repaired", "repairs", w, "rows", f.Rows())
	}
	return f, nil
}

// Warnings returns a summary string of any repairs encountered.
func (r *Reader) Warnings() string {
	if r.shortRecords == 0 {
		return ""
	}
	return fmt.Sprintf("short_records=%d", r.shortRecords)
}

// headerNames lower-cases the header literally, names blank cells like
// pandas does and suffixes repeats with .1, .2, ...
func headerNames(hdr []string) []string {
	lower := cases.Lower(language.Und)
	names := make([]string, len(hdr))
	seen := make(map[string]int, len(hdr))
	for i, h := range hdr {
		h = strings.ToValidUTF8(h, "\uFFFD")
		if i == 0 {
			h = strings.TrimPrefix(h, "\ufeff")
		}
		if strings.TrimSpace(h) == "" {
			h = "unnamed: " + strconv.Itoa(i)
		}
		name := lower.String(h)
		if n, dup := seen[name]; dup {
			for {
				n++
				cand := name + "." + strconv.Itoa(n)
				if _, taken := seen[cand]; !taken {
					seen[name] = n
					name = cand
					break
				}
			}
		}
		seen[name] = 0
		names[i] = name
	}
	return names
}

func isNA(v string) bool {
	_, ok := naTokens[v]
	return ok
}

func inferKinds(rows [][]string, ncol int) []frame.Kind {
	kinds := make([]frame.Kind, ncol)
	for c := 0; c < ncol; c++ {
		num, integer, boolean, str := 0, 0, 0, 0
		for _, row := range rows {
			if c >= len(row) || isNA(row[c]) {
				continue
			}
			v := strings.TrimSpace(row[c])
			switch {
			case intRe.MatchString(v):
				num++
				if _, err := strconv.ParseInt(v, 10, 64); err == nil {
					integer++
				}
			case floatRe.MatchString(v):
				num++
			case isBool(v):
				boolean++
			default:
				str++
			}
		}
		switch {
		case str > 0 || (num > 0 && boolean > 0):
			kinds[c] = frame.KindString
		case boolean > 0:
			kinds[c] = frame.KindBool
		case num > 0 && integer == num:
			kinds[c] = frame.KindInt
		case num > 0:
			kinds[c] = frame.KindFloat
		default:
			kinds[c] = frame.KindString
		}
	}
	return kinds
}

func isBool(v string) bool {
	switch v {
	case "True", "False", "TRUE", "FALSE", "true", "false":
		return true
	}
	return false
}

func parseCell(k frame.Kind, val string) (any, bool) {
	switch k {
	case frame.KindInt:
		x, err := strconv.ParseInt(strings.TrimSpace(val), 10, 64)
		return x, err == nil
	case frame.KindFloat:
		x, err := strconv.ParseFloat(strings.TrimSpace(val), 64)
		return x, err == nil
	case frame.KindBool:
		return strings.EqualFold(strings.TrimSpace(val), "true"), true
	default:
		return val, true
	}
}
