package standardize

import (
	"context"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/wdm0006/nimbus/pkg/frame"
)

// Upper upper-cases every non-null value of the listed text columns. All
// columns must exist and hold text; otherwise Apply returns a
// *frame.SchemaError and leaves f untouched.
type Upper struct{ Columns []string }

func (t *Upper) Name() string { return "uppercase" }

func (t *Upper) Apply(ctx context.Context, f *frame.Frame) (*frame.Frame, error) {
	cols := make([]*frame.StringColumn, 0, len(t.Columns))
	for _, name := range t.Columns {
		col, ok := f.ColumnByName(name)
		if !ok {
			return f, frame.MissingColumn(t.Name(), name)
		}
		c, ok := col.(*frame.StringColumn)
		if !ok {
			return f, &frame.SchemaError{Op: t.Name(), Column: name, Reason: "not a text column"}
		}
		cols = append(cols, c)
	}
	caser := cases.Upper(language.Und)
	for _, c := range cols {
		for i := 0; i < c.Len(); i++ {
			if c.IsNull(i) {
				continue
			}
			v, _ := c.Get(i)
			c.Set(i, caser.String(v))
		}
	}
	return f, nil
}
