package csvio

import (
	"encoding/csv"
	"io"

	"github.com/wdm0006/nimbus/pkg/frame"
	iox "github.com/wdm0006/nimbus/pkg/io/ioutils"
)

type WriterOptions struct {
	Delimiter rune // default ','
}

// Write renders f as CSV with a header row. Nulls are empty cells, booleans
// True/False, and midnight timestamps plain dates.
func Write(w io.Writer, f *frame.Frame, opt WriterOptions) error {
	cw := csv.NewWriter(w)
	if opt.Delimiter != 0 {
		cw.Comma = opt.Delimiter
	}
	if err := cw.Write(f.Names()); err != nil {
		return err
	}
	cols := f.Columns()
	row := make([]string, len(cols))
	for r := 0; r < f.Rows(); r++ {
		for c, col := range cols {
			row[c] = frame.FormatValue(col.Value(r))
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteAll writes f to path, gzip compressed when path ends in .gz.
func WriteAll(path string, f *frame.Frame, opt WriterOptions) error {
	out, err := iox.CreateMaybeCompressed(path)
	if err != nil {
		return err
	}
	if err := Write(out, f, opt); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}
