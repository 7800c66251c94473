// Package registry maps widget operations onto frame transforms.
package registry

import "strings"

// Operation is a widget as the engine sees it. Name is the lookup key; Code
// is only consulted when Name is not a built-in.
type Operation struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Code        string `json:"code,omitempty"`
}

// Kind is the variant an Operation resolves to.
type Kind int

const (
	KindNoop Kind = iota
	KindBuiltin
	KindDynamic
)

func (k Kind) String() string {
	switch k {
	case KindBuiltin:
		return "builtin"
	case KindDynamic:
		return "dynamic"
	default:
		return "noop"
	}
}

// Builtin identifies one of the fixed transforms.
type Builtin int

const (
	NotBuiltin Builtin = iota
	TrimByDate
	DropColumns
	UppercaseNames
	FilterDateRange
	FillNulls
	DeduplicateRows
)

var builtins = []struct {
	id      Builtin
	slug    string
	display string
}{
	{TrimByDate, "trim-by-date", "Yesterday Trimmer"},
	{DropColumns, "drop-columns", "Column Dropper"},
	{UppercaseNames, "uppercase-name-fields", "Uppercase Name Converter"},
	{FilterDateRange, "filter-date-range", "Date Filter"},
	{FillNulls, "fill-nulls", "Null Value Filler"},
	{DeduplicateRows, "deduplicate-rows", "Row Deduplicator"},
}

// Slug is the stable identifier, e.g. "trim-by-date".
func (b Builtin) Slug() string {
	for _, e := range builtins {
		if e.id == b {
			return e.slug
		}
	}
	return ""
}

// DisplayName is the widget name users see, e.g. "Yesterday Trimmer".
func (b Builtin) DisplayName() string {
	for _, e := range builtins {
		if e.id == b {
			return e.display
		}
	}
	return ""
}

func (b Builtin) String() string { return b.Slug() }

// Lookup matches name against the display names and slugs of the built-ins.
// Surrounding whitespace is ignored and matching is case sensitive.
func Lookup(name string) (Builtin, bool) {
	name = strings.TrimSpace(name)
	for _, e := range builtins {
		if name == e.display || name == e.slug {
			return e.id, true
		}
	}
	return NotBuiltin, false
}

// Classify decides the variant of op once, so callers never re-inspect names.
func Classify(op Operation) (Kind, Builtin) {
	if b, ok := Lookup(op.Name); ok {
		return KindBuiltin, b
	}
	if strings.TrimSpace(op.Code) != "" {
		return KindDynamic, NotBuiltin
	}
	return KindNoop, NotBuiltin
}
