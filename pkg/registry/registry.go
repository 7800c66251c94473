package registry

import (
	"context"
	"log/slog"
	"time"

	"github.com/wdm0006/nimbus/pkg/frame"
	"github.com/wdm0006/nimbus/pkg/transform/columns"
	"github.com/wdm0006/nimbus/pkg/transform/datefilter"
	"github.com/wdm0006/nimbus/pkg/transform/dedup"
	"github.com/wdm0006/nimbus/pkg/transform/impute"
	"github.com/wdm0006/nimbus/pkg/transform/script"
	"github.com/wdm0006/nimbus/pkg/transform/standardize"
)

// Options tune the built-ins. Zero values give the stock behaviour.
type Options struct {
	// Now is the clock for date relative transforms; defaults to time.Now.
	Now func() time.Time
	// FillValue is written by the Null Value Filler; defaults to impute.DefaultFill.
	FillValue any
	Logger    *slog.Logger
}

// Registry resolves operations to transforms.
type Registry struct {
	opts Options
}

func New(opts Options) *Registry {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.FillValue == nil {
		opts.FillValue = impute.DefaultFill
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Registry{opts: opts}
}

// Resolve returns the transform for op. The transform reports op.Name as its
// name whatever the variant.
func (r *Registry) Resolve(op Operation) frame.Transform {
	kind, b := Classify(op)
	switch kind {
	case KindBuiltin:
		return named{op.Name, r.builtin(b)}
	case KindDynamic:
		return &script.Script{Label: op.Name, Code: op.Code, Logger: r.opts.Logger}
	default:
		log := r.opts.Logger
		return frame.TransformFunc{Label: op.Name, Fn: func(ctx context.Context, f *frame.Frame) (*frame.Frame, error) {
			log.Info("widget has no code, skipping", "widget", op.Name)
			return f, nil
		}}
	}
}

func (r *Registry) builtin(b Builtin) frame.Transform {
	switch b {
	case TrimByDate:
		return &datefilter.TrimDay{Column: datefilter.DefaultColumn, Now: r.opts.Now}
	case DropColumns:
		return &columns.Drop{Columns: columns.DefaultDrop}
	case UppercaseNames:
		return &standardize.Upper{Columns: []string{"first name", "last name"}}
	case FilterDateRange:
		return datefilter.NewRange()
	case FillNulls:
		return &impute.FillNulls{Value: r.opts.FillValue}
	case DeduplicateRows:
		return &dedup.ByColumn{Column: dedup.DefaultKey}
	}
	panic("registry: unknown builtin " + b.Slug())
}

// named relabels a transform with the operation name.
type named struct {
	name string
	frame.Transform
}

func (n named) Name() string { return n.name }
