// Package service implements the report and widget use cases on top of the
// pipeline engine, the store and the file store.
package service

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/wdm0006/nimbus/pkg/frame"
	"github.com/wdm0006/nimbus/pkg/io/csvio"
	"github.com/wdm0006/nimbus/pkg/io/jsonlio"
	"github.com/wdm0006/nimbus/pkg/io/parquetio"
)

var (
	ErrNoData    = errors.New("no data to export")
	ErrForbidden = errors.New("forbidden")
	ErrBuiltin   = errors.New("builtin widgets cannot be modified")
	ErrInvalid   = errors.New("invalid request")
)

// Format is an export format.
type Format string

const (
	FormatCSV     Format = "csv"
	FormatJSONL   Format = "jsonl"
	FormatParquet Format = "parquet"
)

// ParseFormat accepts the format names case-insensitively; empty means CSV.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case "":
		return FormatCSV, nil
	case FormatCSV, FormatJSONL, FormatParquet:
		return f, nil
	}
	return "", fmt.Errorf("%w: unknown format %q", ErrInvalid, s)
}

func (f Format) ContentType() string {
	switch f {
	case FormatJSONL:
		return "application/x-ndjson"
	case FormatParquet:
		return "application/vnd.apache.parquet"
	}
	return "text/csv"
}

var unsafeName = regexp.MustCompile(`[^A-Za-z0-9._ -]+`)

// Filename is the download name for a report title.
func (f Format) Filename(title string) string {
	base := strings.TrimSpace(unsafeName.ReplaceAllString(title, "_"))
	if base == "" {
		base = "report"
	}
	return base + "." + string(f)
}

// Export writes f in the given format.
func Export(w io.Writer, f *frame.Frame, format Format) error {
	if f == nil {
		return ErrNoData
	}
	switch format {
	case FormatCSV, "":
		return csvio.Write(w, f, csvio.WriterOptions{})
	case FormatJSONL:
		return jsonlio.Write(w, f)
	case FormatParquet:
		return parquetio.Write(w, f)
	}
	return fmt.Errorf("%w: unknown format %q", ErrInvalid, format)
}

// LoadTable reads a dataset file, choosing the reader by extension: .jsonl
// and .ndjson as JSON lines, .parquet as Parquet, anything else as CSV
// (gzip detected). CSV repairs are logged on log when it is non-nil.
func LoadTable(path string, log *slog.Logger) (*frame.Frame, error) {
	name := strings.ToLower(path)
	name = strings.TrimSuffix(name, ".gz")
	switch filepath.Ext(name) {
	case ".jsonl", ".ndjson":
		return jsonlio.LoadFile(path)
	case ".parquet":
		return parquetio.LoadFile(path)
	}
	return csvio.LoadFile(path, csvio.ReaderOptions{Logger: log})
}
