package dedup

import (
	"context"

	"github.com/wdm0006/nimbus/pkg/frame"
)

// DefaultKey is the column the built-in Row Deduplicator keys on.
const DefaultKey = "customer id"

// ByColumn keeps the first row for each distinct value of Column, in input
// order. Null values compare equal to each other, so at most one row with a
// null key survives. The column is required.
type ByColumn struct{ Column string }

func (t *ByColumn) Name() string { return "deduplicate_rows" }

func (t *ByColumn) Apply(ctx context.Context, f *frame.Frame) (*frame.Frame, error) {
	col, ok := f.ColumnByName(t.Column)
	if !ok {
		return f, frame.MissingColumn(t.Name(), t.Column)
	}
	type key struct {
		null bool
		v    any
	}
	seen := make(map[key]struct{}, col.Len())
	return f.Filter(func(r int) bool {
		k := key{null: col.IsNull(r)}
		if !k.null {
			k.v = col.Value(r)
		}
		if _, dup := seen[k]; dup {
			return false
		}
		seen[k] = struct{}{}
		return true
	}), nil
}
