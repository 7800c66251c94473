// Package script runs user supplied widget code against a frame.
//
// Widget code is Starlark. The program sees the table as df, a list of row
// dicts, plus the math, time and json modules; load is not available. It
// should define a one-parameter function, preferably named transform, which
// is called with df and returns the new rows. A function returning None is
// taken to have edited its argument in place. Code that defines no such
// function may instead bind a global df.
package script

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"go.starlark.net/lib/json"
	"go.starlark.net/lib/math"
	startime "go.starlark.net/lib/time"
	"go.starlark.net/starlark"
	"go.starlark.net/syntax"

	"github.com/wdm0006/nimbus/pkg/frame"
)

// EntryPoint is the function name looked up first.
const EntryPoint = "transform"

var fileOptions = &syntax.FileOptions{
	Set:             true,
	While:           true,
	TopLevelControl: true,
	GlobalReassign:  true,
	Recursion:       true,
}

var errNoEntryPoint = errors.New("code defines no one-argument function and binds no df")

// Script is a frame.Transform backed by widget code.
type Script struct {
	Label  string
	Code   string
	Logger *slog.Logger
}

func (s *Script) Name() string { return s.Label }

// Apply executes the code. Every failure, including cancellation of ctx, is
// reported as a *frame.DynamicExecutionError.
func (s *Script) Apply(ctx context.Context, f *frame.Frame) (*frame.Frame, error) {
	out, err := s.run(ctx, f)
	if err != nil {
		var ee *starlark.EvalError
		if errors.As(err, &ee) {
			s.logger().Debug("widget code failed", "widget", s.Label, "backtrace", ee.Backtrace())
		}
		return f, &frame.DynamicExecutionError{Op: s.Label, Err: err}
	}
	return out, nil
}

func (s *Script) run(ctx context.Context, f *frame.Frame) (*frame.Frame, error) {
	log := s.logger()
	thread := &starlark.Thread{
		Name: s.Label,
		Print: func(_ *starlark.Thread, msg string) {
			log.Debug("widget print", "widget", s.Label, "msg", msg)
		},
	}
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			thread.Cancel(ctx.Err().Error())
		case <-done:
		}
	}()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	predeclared := starlark.StringDict{
		"df":   rowsValue(f),
		"math": math.Module,
		"time": startime.Module,
		"json": json.Module,
	}
	globals, err := starlark.ExecFileOptions(fileOptions, thread, s.filename(), s.Code, predeclared)
	if err != nil {
		return nil, err
	}
	if fn := entryPoint(globals); fn != nil {
		arg := rowsValue(f)
		res, err := starlark.Call(thread, fn, starlark.Tuple{arg}, nil)
		if err != nil {
			return nil, err
		}
		if res == starlark.None {
			res = arg
		}
		return toFrame(res, f)
	}
	if v, ok := globals["df"]; ok {
		return toFrame(v, f)
	}
	return nil, errNoEntryPoint
}

// entryPoint returns the function named EntryPoint when it takes one
// parameter, otherwise the one-parameter function defined last in the file.
func entryPoint(globals starlark.StringDict) *starlark.Function {
	if fn, ok := globals[EntryPoint].(*starlark.Function); ok && fn.NumParams() == 1 {
		return fn
	}
	var last *starlark.Function
	for _, v := range globals {
		fn, ok := v.(*starlark.Function)
		if !ok || fn.NumParams() != 1 {
			continue
		}
		if last == nil || positionAfter(fn.Position(), last.Position()) {
			last = fn
		}
	}
	return last
}

func positionAfter(a, b syntax.Position) bool {
	if a.Line != b.Line {
		return a.Line > b.Line
	}
	return a.Col > b.Col
}

func (s *Script) filename() string {
	if s.Label == "" {
		return "widget.star"
	}
	return fmt.Sprintf("%s.star", s.Label)
}

func (s *Script) logger() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return slog.Default()
}
