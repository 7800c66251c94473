package filestore

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestSaveIsContentAddressed(t *testing.T) {
	s, err := New(filepath.Join(t.TempDir(), "uploads"))
	if err != nil {
		t.Fatal(err)
	}
	a, err := s.Save(strings.NewReader("date,value\n2024-01-01,1\n"), "sales.csv")
	if err != nil {
		t.Fatal(err)
	}
	b, err := s.Save(strings.NewReader("date,value\n2024-01-01,1\n"), "copy.CSV")
	if err != nil {
		t.Fatal(err)
	}
	if a != b {
		t.Fatalf("same content stored twice: %s vs %s", a, b)
	}
	c, err := s.Save(strings.NewReader("date,value\n"), "other")
	if err != nil {
		t.Fatal(err)
	}
	if c == a || filepath.Ext(c) != ".csv" {
		t.Fatalf("unexpected path %s", c)
	}
	if base := filepath.Base(a); len(base) != 32+len(".csv") {
		t.Fatalf("unexpected name %s", base)
	}

	f, err := s.Open(a)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	got, _ := io.ReadAll(f)
	if string(got) != "date,value\n2024-01-01,1\n" {
		t.Fatalf("content: %q", got)
	}

	entries, _ := os.ReadDir(s.Dir())
	if len(entries) != 2 {
		t.Fatalf("temp files left behind: %d entries", len(entries))
	}
}

func TestGzipExtension(t *testing.T) {
	s, err := New(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	p, err := s.Save(strings.NewReader("x"), "data.csv.gz")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasSuffix(p, ".csv.gz") {
		t.Fatalf("path %s", p)
	}
}

func TestPathsOutsideStoreRejected(t *testing.T) {
	s, err := New(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.Open(filepath.Join(s.Dir(), "..", "etc", "passwd")); err == nil {
		t.Fatal("expected error")
	}
	if err := s.Remove(filepath.Join(s.Dir(), "missing.csv")); err != nil {
		t.Fatalf("removing a missing file: %v", err)
	}
}
