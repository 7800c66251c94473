package jsonlio

import (
	"bufio"
	"encoding/json"
	"io"
	"time"

	"github.com/wdm0006/nimbus/pkg/frame"
	iox "github.com/wdm0006/nimbus/pkg/io/ioutils"
)

// Write emits one JSON object per row, keys in column order. Midnight
// timestamps are written as dates, others as RFC 3339.
func Write(w io.Writer, f *frame.Frame) error {
	bw := bufio.NewWriter(w)
	enc := json.NewEncoder(bw)
	for _, rec := range f.Records() {
		for i, fld := range rec {
			if t, ok := fld.Value.(time.Time); ok {
				if t.Equal(frame.Day(t)) {
					rec[i].Value = frame.FormatDate(t)
				} else {
					rec[i].Value = t.Format(time.RFC3339)
				}
			}
		}
		if err := enc.Encode(rec); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// WriteAll writes f to path, gzip compressed when path ends in .gz.
func WriteAll(path string, f *frame.Frame) error {
	out, err := iox.CreateMaybeCompressed(path)
	if err != nil {
		return err
	}
	if err := Write(out, f); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}
