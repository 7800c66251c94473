package frame

import (
	"errors"
	"fmt"
)

// Sentinels for errors.Is; the concrete types below carry the detail.
var (
	ErrLoad             = errors.New("load error")
	ErrSchema           = errors.New("schema error")
	ErrDynamicExecution = errors.New("dynamic execution error")
	ErrNoValidData      = errors.New("no valid dates found")
)

// LoadError reports an unreadable or unparsable dataset source.
type LoadError struct {
	Source string
	Err    error
}

func (e *LoadError) Error() string {
	if e.Source != "" {
		return fmt.Sprintf("load %s: %v", e.Source, e.Err)
	}
	return fmt.Sprintf("load: %v", e.Err)
}
func (e *LoadError) Unwrap() error        { return e.Err }
func (e *LoadError) Is(target error) bool { return target == ErrLoad }

// SchemaError reports a column an operation needs but cannot use.
type SchemaError struct {
	Op     string
	Column string
	Reason string
}

func (e *SchemaError) Error() string {
	reason := e.Reason
	if reason == "" {
		reason = "missing column"
	}
	return fmt.Sprintf("%s: %s %q", e.Op, reason, e.Column)
}
func (e *SchemaError) Is(target error) bool { return target == ErrSchema }

// MissingColumn is the common SchemaError case.
func MissingColumn(op, column string) *SchemaError {
	return &SchemaError{Op: op, Column: column}
}

// DynamicExecutionError wraps any failure of user supplied widget code.
type DynamicExecutionError struct {
	Op  string
	Err error
}

func (e *DynamicExecutionError) Error() string {
	return fmt.Sprintf("%s: dynamic code failed: %v", e.Op, e.Err)
}
func (e *DynamicExecutionError) Unwrap() error        { return e.Err }
func (e *DynamicExecutionError) Is(target error) bool { return target == ErrDynamicExecution }
