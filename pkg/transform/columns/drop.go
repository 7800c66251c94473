package columns

import (
	"context"

	"github.com/wdm0006/nimbus/pkg/frame"
)

// DefaultDrop lists the contact columns removed by the built-in Column Dropper.
var DefaultDrop = []string{"email", "website"}

// Drop removes the named columns. Names not present are ignored.
type Drop struct{ Columns []string }

func (t *Drop) Name() string { return "drop_columns" }

func (t *Drop) Apply(ctx context.Context, f *frame.Frame) (*frame.Frame, error) {
	return f.Drop(t.Columns...), nil
}
