package csvio

import (
	"bytes"
	"compress/gzip"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/wdm0006/nimbus/pkg/frame"
)

const customersCSV = "\ufeffCustomer Id,First Name,Last Name,Email,Score,Active,Date\n" +
	"1,Ann,Lee,ann@x.io,1.5,True,2024-09-10\n" +
	"2,Bob,Ray,NA,,False,2024-10-04\n" +
	"3,Cy,Wu,cy@x.io,2,,not a date\n" +
	"4,Di\n"

func TestLoadInfersKindsAndNulls(t *testing.T) {
	f, err := Load(strings.NewReader(customersCSV))
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"customer id", "first name", "last name", "email", "score", "active", "date"}
	if !reflect.DeepEqual(f.Names(), want) {
		t.Fatalf("names %v", f.Names())
	}
	kinds := map[string]frame.Kind{}
	for _, cs := range f.Schema().Columns {
		kinds[cs.Name] = cs.Type
	}
	if kinds["customer id"] != frame.KindInt || kinds["score"] != frame.KindFloat || kinds["active"] != frame.KindBool || kinds["date"] != frame.KindString {
		t.Fatalf("kinds %v", kinds)
	}
	if f.Rows() != 4 {
		t.Fatalf("rows %d", f.Rows())
	}
	email, _ := f.ColumnByName("email")
	if !email.IsNull(1) || !email.IsNull(3) {
		t.Fatal("NA token and padding should be null")
	}
	score, _ := f.ColumnByName("score")
	if v, _ := score.(*frame.FloatColumn).Get(2); v != 2 {
		t.Fatalf("score = %v", v)
	}
}

func TestHeaderNames(t *testing.T) {
	got := headerNames([]string{"Name", "NAME", "", "Straße", "name.1"})
	want := []string{"name", "name.1", "unnamed: 2", "straße", "name.1.1"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestLoadErrors(t *testing.T) {
	cases := map[string]string{
		"empty":      "",
		"long":       "a,b\n1,2\n1,2,3\n",
		"bad quotes": "a,b\n\"x,1\n2,\"y\"z\n",
	}
	for name, src := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Load(strings.NewReader(src))
			if !errors.Is(err, frame.ErrLoad) {
				t.Fatalf("expected load error, got %v", err)
			}
			var le *frame.LoadError
			if !errors.As(err, &le) || le.Err == nil {
				t.Fatalf("missing cause: %v", err)
			}
		})
	}
	if _, err := Load(strings.NewReader("")); !errors.Is(err, ErrEmpty) {
		t.Fatalf("expected ErrEmpty, got %v", err)
	}
}

func TestHeaderOnly(t *testing.T) {
	f, err := Load(strings.NewReader("A,B\n"))
	if err != nil {
		t.Fatal(err)
	}
	if f.Rows() != 0 || f.Cols() != 2 {
		t.Fatalf("rows=%d cols=%d", f.Rows(), f.Cols())
	}
}

func TestLoadFileGzip(t *testing.T) {
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	_, _ = zw.Write([]byte(customersCSV))
	_ = zw.Close()
	p := filepath.Join(t.TempDir(), "customers.csv")
	if err := os.WriteFile(p, buf.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}
	var logs bytes.Buffer
	f, err := LoadFile(p, ReaderOptions{Logger: slog.New(slog.NewTextHandler(&logs, nil))})
	if err != nil {
		t.Fatal(err)
	}
	if f.Rows() != 4 {
		t.Fatalf("rows %d", f.Rows())
	}
	// the last record is short and padded with nulls
	if out := logs.String(); !strings.Contains(out, "level=WARN") || !strings.Contains(out, "short_records=1") {
		t.Fatalf("expected repair warning, got %q", out)
	}
	if _, err := LoadFile(filepath.Join(t.TempDir(), "missing.csv"), ReaderOptions{}); !errors.Is(err, frame.ErrLoad) {
		t.Fatalf("expected load error, got %v", err)
	}
}

func TestNoWarningWithoutRepairs(t *testing.T) {
	r := NewReader(strings.NewReader("a,b\n1,2\n"), ReaderOptions{})
	if _, err := r.ReadAll(); err != nil {
		t.Fatal(err)
	}
	if w := r.Warnings(); w != "" {
		t.Fatalf("unexpected warnings %q", w)
	}
}

func TestWriteRoundTrip(t *testing.T) {
	f, err := Load(strings.NewReader(customersCSV))
	if err != nil {
		t.Fatal(err)
	}
	date, _ := f.ColumnByName("date")
	if err := f.Replace(frame.ToTimeColumn(date)); err != nil {
		t.Fatal(err)
	}
	var out bytes.Buffer
	if err := Write(&out, f, WriterOptions{}); err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	if lines[0] != "customer id,first name,last name,email,score,active,date" {
		t.Fatalf("header %q", lines[0])
	}
	if lines[1] != "1,Ann,Lee,ann@x.io,1.5,True,2024-09-10" {
		t.Fatalf("row 1 %q", lines[1])
	}
	if lines[3] != "3,Cy,Wu,cy@x.io,2.0,," {
		t.Fatalf("row 3 %q", lines[3])
	}
	back, err := Load(&out)
	if err != nil {
		t.Fatal(err)
	}
	if back.Rows() != f.Rows() || !reflect.DeepEqual(back.Names(), f.Names()) {
		t.Fatal("round trip changed the shape")
	}
}
