package pipeline

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/wdm0006/nimbus/pkg/frame"
)

// Preview is the result of Trace: either the final rows or the first error.
type Preview struct {
	Rows []frame.Record
	// Error is the user facing message, "Error applying <name>: <cause>".
	Error string
	// Err is the underlying step error.
	Err error
}

func (p Preview) Failed() bool { return p.Error != "" }

// MarshalJSON renders {"error": "..."} on failure and the row array otherwise.
func (p Preview) MarshalJSON() ([]byte, error) {
	if p.Failed() {
		return json.Marshal(map[string]string{"error": p.Error})
	}
	rows := p.Rows
	if rows == nil {
		rows = []frame.Record{}
	}
	return json.Marshal(rows)
}

// Trace applies ops like Run but aborts on the first failing step. On success
// time columns are rendered as YYYY-MM-DD text before conversion to rows.
// The caller's frame is not modified.
func (e *Executor) Trace(ctx context.Context, ops []Operation, f *frame.Frame) Preview {
	if f == nil {
		return Preview{}
	}
	log := e.log.With("run", uuid.NewString(), "mode", "trace")
	cur := f.Clone()
	for i, op := range ops {
		out, o := e.step(ctx, log, i, op, cur)
		if o.Err != nil {
			log.Warn("trace stopped", "step", i, "operation", op.Name, "err", o.Err)
			return Preview{Error: fmt.Sprintf("Error applying %s: %v", op.Name, o.Err), Err: o.Err}
		}
		cur = out
	}
	for _, c := range cur.Columns() {
		tc, ok := c.(*frame.TimeColumn)
		if !ok {
			continue
		}
		if err := cur.Replace(datesAsText(tc)); err != nil {
			return Preview{Error: err.Error(), Err: err}
		}
	}
	return Preview{Rows: cur.Records()}
}

func datesAsText(tc *frame.TimeColumn) *frame.StringColumn {
	out := frame.NewStringColumn(tc.Name(), tc.Len())
	for i := 0; i < tc.Len(); i++ {
		v, ok := tc.Get(i)
		if !ok {
			out.SetNull(i)
			continue
		}
		out.Set(i, frame.FormatDate(v))
	}
	return out
}
