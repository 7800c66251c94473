// Package generate turns a plain-language description into widget code by
// asking a text-generation model. The code is returned as is; it is only
// checked when the widget first runs.
package generate

import (
	"context"
	"fmt"
	"strings"

	"github.com/wdm0006/nimbus/pkg/transform/script"
)

// Generator produces widget code for a description.
type Generator interface {
	Generate(ctx context.Context, description string) (string, error)
}

const systemPrompt = `You write Starlark code for a data-cleaning widget.
Define exactly one function named transform that takes one argument, df, a list
of row dicts keyed by lower-case column name, and returns the transformed list.
The modules math, time and json are available; nothing can be loaded.
Answer with code only.`

// Prompt is the user message sent for a description.
func Prompt(description string) string {
	return fmt.Sprintf("Write a %s function to accomplish the following task: %s",
		script.EntryPoint, strings.TrimSpace(description))
}

// ExtractCode strips a surrounding markdown fence from a model answer, if
// there is one.
func ExtractCode(answer string) string {
	s := strings.TrimSpace(answer)
	start := strings.Index(s, "```")
	if start < 0 {
		return s + "\n"
	}
	body := s[start+3:]
	if nl := strings.IndexByte(body, '\n'); nl >= 0 {
		// drop the info string, e.g. ```python
		body = body[nl+1:]
	}
	if end := strings.Index(body, "```"); end >= 0 {
		body = body[:end]
	}
	return strings.TrimSpace(body) + "\n"
}
