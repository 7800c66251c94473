package impute

import (
	"context"
	"testing"

	"github.com/wdm0006/nimbus/pkg/frame"
)

func makeLargeFloatFrame(n int) *frame.Frame {
	s := frame.Schema{Columns: []frame.ColumnSchema{{Name: "x", Type: frame.KindFloat, Nullable: true}}}
	f := frame.NewFrame(s)
	for i := 0; i < n; i++ {
		f.AppendNullRow()
	}
	col, _ := f.ColumnByName("x")
	c := col.(*frame.FloatColumn)
	for i := 0; i < n; i += 2 {
		c.Set(i, float64(i%10))
	}
	return f
}

func BenchmarkFillNullsNumeric(b *testing.B) {
	base := makeLargeFloatFrame(10000)
	for n := 0; n < b.N; n++ {
		tform := &FillNulls{Value: 0.0}
		if _, err := tform.Apply(context.Background(), base.Clone()); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkFillNullsText(b *testing.B) {
	base := makeLargeFloatFrame(10000)
	for n := 0; n < b.N; n++ {
		tform := &FillNulls{Value: DefaultFill}
		if _, err := tform.Apply(context.Background(), base.Clone()); err != nil {
			b.Fatal(err)
		}
	}
}
