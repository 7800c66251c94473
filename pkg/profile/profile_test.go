package profile

import (
	"strings"
	"testing"

	"github.com/wdm0006/nimbus/pkg/frame"
)

func sample(t *testing.T) *frame.Frame {
	t.Helper()
	id := frame.NewIntColumn("customer id", 4)
	amt := frame.NewFloatColumn("amount", 4)
	ok := frame.NewBoolColumn("active", 4)
	city := frame.NewStringColumn("city", 4)
	for i, v := range []int64{1, 2, 2, 3} {
		id.Set(i, v)
	}
	amt.Set(0, 2.5)
	amt.Set(1, 7.5)
	amt.SetNull(2)
	amt.Set(3, 5)
	ok.Set(0, true)
	ok.Set(1, false)
	ok.Set(2, true)
	ok.SetNull(3)
	for i, v := range []string{"Oslo", "Lima", "Oslo", ""} {
		city.Set(i, v)
	}
	city.SetNull(3)
	f, err := frame.FromColumns(id, amt, ok, city)
	if err != nil {
		t.Fatal(err)
	}
	return f
}

func TestOf(t *testing.T) {
	r := Of(sample(t), 1)
	if r.Rows != 4 || len(r.Columns) != 4 {
		t.Fatalf("unexpected shape: %+v", r)
	}
	id := r.Columns[0]
	if id.Kind != "int" || id.Num.Count != 4 || id.Num.Min != 1 || id.Num.Max != 3 || id.Num.Mean != 2 {
		t.Fatalf("id stats: %+v", id.Num)
	}
	amt := r.Columns[1]
	if amt.Num.Nulls != 1 || amt.Num.Mean != 5 {
		t.Fatalf("amount stats: %+v", amt.Num)
	}
	active := r.Columns[2]
	if active.Bool.True != 2 || active.Bool.False != 1 || active.Bool.Nulls != 1 {
		t.Fatalf("bool stats: %+v", active.Bool)
	}
	city := r.Columns[3]
	if city.Text.Count != 3 || city.Text.Nulls != 1 {
		t.Fatalf("text stats: %+v", city.Text)
	}
	if len(city.Text.Top) != 1 || city.Text.Top[0] != (ValueCount{Value: "Oslo", Count: 2}) {
		t.Fatalf("top values: %+v", city.Text.Top)
	}
}

func TestCollectorAcrossFrames(t *testing.T) {
	f := sample(t)
	c := NewCollector(f.Schema(), DefaultTopK)
	c.Consume(f)
	first := c.Report()
	c.Consume(f)
	second := c.Report()
	if first.Rows != 4 || second.Rows != 8 {
		t.Fatalf("rows: %d then %d", first.Rows, second.Rows)
	}
	if first.Columns[0].Num.Count != 4 {
		t.Fatalf("earlier report changed: %+v", first.Columns[0].Num)
	}
	if got := second.Columns[3].Text.Top; len(got) != 2 || got[0].Count != 4 || got[1].Value != "Lima" {
		t.Fatalf("top values: %+v", got)
	}
}

func TestEmptyNumericColumn(t *testing.T) {
	col := frame.NewFloatColumn("x", 2)
	col.SetNull(0)
	col.SetNull(1)
	f, err := frame.FromColumns(col)
	if err != nil {
		t.Fatal(err)
	}
	n := Of(f, 0).Columns[0].Num
	if n.Min != 0 || n.Max != 0 || n.Nulls != 2 {
		t.Fatalf("stats: %+v", n)
	}
}

func TestText(t *testing.T) {
	out := Of(sample(t), 2).Text()
	for _, want := range []string{"Profile Summary (4 rows)", "- amount (float): count=3 nulls=1", `* "Oslo": 2`} {
		if !strings.Contains(out, want) {
			t.Fatalf("missing %q in\n%s", want, out)
		}
	}
}
