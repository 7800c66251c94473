// Package pipeline runs ordered widget operations over a frame.
//
// Two policies share the same operations. Run is best effort: a failing step
// is logged and skipped, and the next step sees the last good table. Trace
// stops at the first failure and reports it, for interactive previews.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/wdm0006/nimbus/pkg/frame"
	"github.com/wdm0006/nimbus/pkg/registry"
)

// Operation is re-exported for callers that only deal with pipelines.
type Operation = registry.Operation

// Resolver turns an operation into a transform; *registry.Registry is one.
type Resolver interface {
	Resolve(op registry.Operation) frame.Transform
}

// Observer is told about every executed step.
type Observer interface {
	ObserveStep(o Outcome)
}

// Outcome describes one executed step.
type Outcome struct {
	Step       int
	Operation  string
	RowsBefore int
	RowsAfter  int
	Err        error
	Duration   time.Duration
}

type Options struct {
	Logger   *slog.Logger
	Observer Observer
}

type Executor struct {
	resolver Resolver
	log      *slog.Logger
	observer Observer
}

func New(r Resolver, opts Options) *Executor {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Executor{resolver: r, log: log, observer: opts.Observer}
}

// Run applies ops in order and returns the final table and the summary.
// With no operations, or a nil table, f is returned as is with an empty
// summary.
func (e *Executor) Run(ctx context.Context, ops []Operation, f *frame.Frame) (*frame.Frame, Summary) {
	out, sum, _ := e.RunDetailed(ctx, ops, f)
	return out, sum
}

// RunDetailed is Run plus the per-step outcomes.
func (e *Executor) RunDetailed(ctx context.Context, ops []Operation, f *frame.Frame) (*frame.Frame, Summary, []Outcome) {
	var sum Summary
	if f == nil || len(ops) == 0 {
		return f, sum, nil
	}
	log := e.log.With("run", uuid.NewString(), "mode", "run")
	cur := f
	outcomes := make([]Outcome, 0, len(ops))
	for i, op := range ops {
		sum.Set(op.Name, op.Description)
		out, o := e.step(ctx, log, i, op, cur.Clone())
		outcomes = append(outcomes, o)
		if o.Err != nil {
			log.Warn("step failed, skipping", "step", i, "operation", op.Name, "err", o.Err)
			continue
		}
		cur = out
	}
	return cur, sum, outcomes
}

func (e *Executor) step(ctx context.Context, log *slog.Logger, i int, op Operation, in *frame.Frame) (*frame.Frame, Outcome) {
	o := Outcome{Step: i, Operation: op.Name, RowsBefore: in.Rows()}
	start := time.Now()
	out, err := apply(ctx, e.resolver.Resolve(op), in)
	o.Duration = time.Since(start)
	o.Err = err
	if err == nil {
		o.RowsAfter = out.Rows()
	}
	log.Debug("step", "step", i, "operation", op.Name, "rows_before", o.RowsBefore, "rows_after", o.RowsAfter, "duration", o.Duration)
	if e.observer != nil {
		e.observer.ObserveStep(o)
	}
	return out, o
}

var errNoTable = errors.New("transform returned no table")

// apply runs t and turns panics and nil results into errors.
func apply(ctx context.Context, t frame.Transform, in *frame.Frame) (out *frame.Frame, err error) {
	defer func() {
		if r := recover(); r != nil {
			out, err = nil, fmt.Errorf("panic: %v", r)
		}
	}()
	out, err = t.Apply(ctx, in)
	if err == nil && out == nil {
		err = errNoTable
	}
	return out, err
}
