package parquetio

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"strings"

	local "github.com/xitongsys/parquet-go-source/local"
	pw "github.com/xitongsys/parquet-go/writer"

	"github.com/wdm0006/nimbus/pkg/frame"
)

// tagName keeps a column name usable inside a parquet-go schema tag.
var tagName = strings.NewReplacer(",", "_", "=", "_")

func parquetSchemaJSON(s frame.Schema) string {
	// Build a minimal JSON schema for parquet-go JSONWriter
	type field struct {
		Tag string `json:"Tag"`
	}
	type schema struct {
		Tag    string  `json:"Tag"`
		Fields []field `json:"Fields"`
	}
	sc := schema{Tag: "name=schema, repetitiontype=REQUIRED"}
	for _, cs := range s.Columns {
		tag := "name=" + tagName.Replace(cs.Name) + ", repetitiontype=OPTIONAL, type="
		switch cs.Type {
		case frame.KindFloat:
			tag += "DOUBLE"
		case frame.KindInt:
			tag += "INT64"
		case frame.KindBool:
			tag += "BOOLEAN"
		default:
			tag += "BYTE_ARRAY, convertedtype=UTF8"
		}
		sc.Fields = append(sc.Fields, field{Tag: tag})
	}
	b, _ := json.Marshal(sc)
	return string(b)
}

// Write encodes f as a Parquet file. Time columns are stored as text in the
// same form as CSV exports.
func Write(w io.Writer, f *frame.Frame) error {
	writer, err := pw.NewJSONWriterFromWriter(parquetSchemaJSON(f.Schema()), w, 1)
	if err != nil {
		return fmt.Errorf("parquet writer init: %w", err)
	}
	if err := writeRows(writer, f); err != nil {
		_ = writer.WriteStop()
		return err
	}
	if err := writer.WriteStop(); err != nil {
		return fmt.Errorf("parquet finish: %w", err)
	}
	return nil
}

// WriteAll writes f to a Parquet file at path.
func WriteAll(path string, f *frame.Frame) error {
	fw, err := local.NewLocalFileWriter(path)
	if err != nil {
		return err
	}
	writer, err := pw.NewJSONWriter(parquetSchemaJSON(f.Schema()), fw, 1)
	if err != nil {
		_ = fw.Close()
		return fmt.Errorf("parquet writer init: %w", err)
	}
	if err := writeRows(writer, f); err != nil {
		_ = writer.WriteStop()
		_ = fw.Close()
		return err
	}
	if err := writer.WriteStop(); err != nil {
		_ = fw.Close()
		return fmt.Errorf("parquet finish: %w", err)
	}
	return fw.Close()
}

func writeRows(writer *pw.JSONWriter, f *frame.Frame) error {
	cols := f.Columns()
	names := make([]string, len(cols))
	for i, c := range cols {
		names[i] = tagName.Replace(c.Name())
	}
	for r := 0; r < f.Rows(); r++ {
		rec := make(map[string]any, len(cols))
		for i, c := range cols {
			if c.IsNull(r) {
				continue
			}
			if c.Kind() == frame.KindTime {
				rec[names[i]] = frame.FormatValue(c.Value(r))
				continue
			}
			v := c.Value(r)
			if x, ok := v.(float64); ok && (math.IsNaN(x) || math.IsInf(x, 0)) {
				continue
			}
			rec[names[i]] = v
		}
		b, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("parquet encode row %d: %w", r, err)
		}
		if err := writer.Write(string(b)); err != nil {
			return fmt.Errorf("parquet write row: %w", err)
		}
	}
	return nil
}
