package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/wdm0006/nimbus/pkg/frame"
	"github.com/wdm0006/nimbus/pkg/registry"
)

func customers() *frame.Frame {
	s := frame.Schema{Columns: []frame.ColumnSchema{
		{Name: "customer id", Type: frame.KindInt, Nullable: true},
		{Name: "first name", Type: frame.KindString, Nullable: true},
		{Name: "last name", Type: frame.KindString, Nullable: true},
		{Name: "email", Type: frame.KindString, Nullable: true},
		{Name: "date", Type: frame.KindString, Nullable: true},
	}}
	f := frame.NewFrame(s)
	rows := [][]any{
		{int64(1), "ann", "lee", "a@x.io", "2024-09-10"},
		{int64(2), "bob", "ray", nil, "2024-10-04"},
		{int64(1), "ann", "lee", "a@x.io", "2024-09-10"},
		{int64(3), "cy", "wu", "c@x.io", "2024-11-01"},
		{int64(4), "di", "ng", "d@x.io", "bogus"},
	}
	for i, r := range rows {
		f.AppendNullRow()
		for j, name := range s.Names() {
			_ = f.SetCell(i, name, r[j])
		}
	}
	return f
}

func newExecutor(obs Observer) *Executor {
	now := func() time.Time { return time.Date(2024, 10, 5, 8, 0, 0, 0, time.UTC) }
	return New(registry.New(registry.Options{Now: now}), Options{Observer: obs})
}

func op(name string) Operation {
	return Operation{Name: name, Description: "about " + name}
}

// framesEqual compares names and cell text, so a parsed date column equals
// its YYYY-MM-DD rendering.
func framesEqual(a, b *frame.Frame) bool {
	if !reflect.DeepEqual(a.Names(), b.Names()) || a.Rows() != b.Rows() {
		return false
	}
	for i, ca := range a.Columns() {
		cb := b.Columns()[i]
		for r := 0; r < a.Rows(); r++ {
			if frame.FormatValue(ca.Value(r)) != frame.FormatValue(cb.Value(r)) {
				return false
			}
		}
	}
	return true
}

func TestRunEmptyPipelineReturnsInput(t *testing.T) {
	in := customers()
	out, sum := newExecutor(nil).Run(context.Background(), nil, in)
	if out != in || sum.Len() != 0 {
		t.Fatalf("expected passthrough with empty summary, got len=%d", sum.Len())
	}
	out, sum = newExecutor(nil).Run(context.Background(), []Operation{op("Column Dropper")}, nil)
	if out != nil || sum.Len() != 0 {
		t.Fatal("nil table should give nil result and empty summary")
	}
}

func TestRunAppliesInOrder(t *testing.T) {
	ops := []Operation{op("Row Deduplicator"), op("Column Dropper"), op("Uppercase Name Converter"), op("Date Filter")}
	in := customers()
	out, sum := newExecutor(nil).Run(context.Background(), ops, in)
	if out.Rows() != 2 {
		t.Fatalf("expected 2 rows, got %d", out.Rows())
	}
	if out.Has("email") {
		t.Fatal("email should be dropped")
	}
	col, _ := out.ColumnByName("first name")
	if v, _ := col.(*frame.StringColumn).Get(0); v != "ANN" {
		t.Fatalf("first name = %q", v)
	}
	if !reflect.DeepEqual(sum.Names(), []string{"Row Deduplicator", "Column Dropper", "Uppercase Name Converter", "Date Filter"}) {
		t.Fatalf("summary order %v", sum.Names())
	}
	// the caller's table is untouched
	if in.Rows() != 5 || !in.Has("email") {
		t.Fatal("input frame was modified")
	}
}

func TestRunSkipsFailingStep(t *testing.T) {
	bad := Operation{Name: "Broken", Description: "explodes", Code: "def transform(df):\n    return df[99]['x']\n"}
	ops := []Operation{op("Row Deduplicator"), bad, op("Column Dropper")}
	var obs recorder
	got, sum, outcomes := newExecutor(&obs).RunDetailed(context.Background(), ops, customers())

	want, _ := newExecutor(nil).Run(context.Background(), []Operation{ops[0], ops[2]}, customers())
	if !framesEqual(got, want) {
		t.Fatalf("skipping the failing step should equal running without it")
	}
	if d, _ := sum.Get("Broken"); d != "explodes" || sum.Len() != 3 {
		t.Fatalf("summary must list every operation: %v", sum.Names())
	}
	if !errors.Is(outcomes[1].Err, frame.ErrDynamicExecution) || outcomes[0].Err != nil {
		t.Fatalf("unexpected outcomes %+v", outcomes)
	}
	if len(obs.steps) != 3 || obs.steps[0].RowsBefore != 5 || obs.steps[0].RowsAfter != 4 {
		t.Fatalf("observer saw %+v", obs.steps)
	}
}

func TestRunRecoversFromPanics(t *testing.T) {
	r := resolverFunc(func(o Operation) frame.Transform {
		return frame.TransformFunc{Label: o.Name, Fn: func(ctx context.Context, f *frame.Frame) (*frame.Frame, error) {
			if o.Name == "boom" {
				panic("boom")
			}
			return nil, nil
		}}
	})
	in := customers()
	out, _, outcomes := New(r, Options{}).RunDetailed(context.Background(), []Operation{op("boom"), op("nil")}, in)
	if out != in {
		t.Fatal("expected the input to survive")
	}
	if outcomes[0].Err == nil || !errors.Is(outcomes[1].Err, errNoTable) {
		t.Fatalf("unexpected outcomes %+v", outcomes)
	}
}

func TestSummaryRepeatedNames(t *testing.T) {
	var s Summary
	s.Set("a", "1")
	s.Set("b", "2")
	s.Set("a", "3")
	b, err := json.Marshal(s)
	if err != nil {
		t.Fatal(err)
	}
	if string(b) != `{"a":"3","b":"2"}` {
		t.Fatalf("got %s", b)
	}
	var back Summary
	if err := json.Unmarshal([]byte(`{"z":"last","a":null,"m":"mid"}`), &back); err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(back.Names(), []string{"z", "a", "m"}) {
		t.Fatalf("order lost: %v", back.Names())
	}
}

func TestTraceMatchesRun(t *testing.T) {
	ops := []Operation{op("Yesterday Trimmer"), op("Row Deduplicator"), op("Null Value Filler")}
	e := newExecutor(nil)
	run, _ := e.Run(context.Background(), ops, customers())
	p := e.Trace(context.Background(), ops, customers())
	if p.Failed() {
		t.Fatal(p.Error)
	}
	if len(p.Rows) != run.Rows() {
		t.Fatalf("trace rows %d, run rows %d", len(p.Rows), run.Rows())
	}
	for r, rec := range p.Rows {
		for c, col := range run.Columns() {
			if rec[c].Name != col.Name() {
				t.Fatalf("column order differs at %d", c)
			}
			if frame.FormatValue(rec[c].Value) != frame.FormatValue(col.Value(r)) {
				t.Fatalf("row %d col %s: %v vs %v", r, col.Name(), rec[c].Value, col.Value(r))
			}
		}
	}
	// dates come out as text
	if v, _ := p.Rows[0].Get("date"); v != "2024-09-10" {
		t.Fatalf("date rendered as %#v", v)
	}
	b, _ := json.Marshal(p)
	if !strings.HasPrefix(string(b), `[{"customer id":1,"first name":"ann"`) {
		t.Fatalf("unexpected JSON %s", b)
	}
}

func TestTraceStopsAtFirstFailure(t *testing.T) {
	var obs recorder
	e := newExecutor(&obs)
	in := customers().Drop("first name")
	p := e.Trace(context.Background(), []Operation{op("Column Dropper"), op("Uppercase Name Converter"), op("Row Deduplicator")}, in)
	if !p.Failed() || !errors.Is(p.Err, frame.ErrSchema) {
		t.Fatalf("expected schema failure, got %+v", p)
	}
	if !strings.HasPrefix(p.Error, "Error applying Uppercase Name Converter: ") {
		t.Fatalf("message %q", p.Error)
	}
	if len(obs.steps) != 2 {
		t.Fatalf("steps after the failure ran: %d", len(obs.steps))
	}
	b, _ := json.Marshal(p)
	var payload map[string]string
	if err := json.Unmarshal(b, &payload); err != nil || payload["error"] != p.Error || len(payload) != 1 {
		t.Fatalf("payload %s", b)
	}
}

func TestTraceWithoutTable(t *testing.T) {
	b, _ := json.Marshal(newExecutor(nil).Trace(context.Background(), []Operation{op("Column Dropper")}, nil))
	if string(b) != "[]" {
		t.Fatalf("got %s", b)
	}
}

type recorder struct{ steps []Outcome }

func (r *recorder) ObserveStep(o Outcome) { r.steps = append(r.steps, o) }

type resolverFunc func(Operation) frame.Transform

func (f resolverFunc) Resolve(o registry.Operation) frame.Transform { return f(o) }
