package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
	yaml "gopkg.in/yaml.v3"

	"github.com/wdm0006/nimbus/pkg/frame"
	"github.com/wdm0006/nimbus/pkg/io/csvio"
	"github.com/wdm0006/nimbus/pkg/io/jsonlio"
	"github.com/wdm0006/nimbus/pkg/io/parquetio"
	"github.com/wdm0006/nimbus/pkg/registry"
)

// StepsFile is a pipeline description for the run and preview commands.
//
//	steps:
//	  - name: Row Deduplicator
//	  - name: First Row
//	    code_file: first_row.star
type StepsFile struct {
	Steps []Step `json:"steps" yaml:"steps" toml:"steps"`
}

type Step struct {
	Name        string `json:"name" yaml:"name" toml:"name"`
	Description string `json:"description" yaml:"description" toml:"description"`
	Code        string `json:"code" yaml:"code" toml:"code"`
	// CodeFile is read relative to the steps file when Code is empty.
	CodeFile string `json:"code_file" yaml:"code_file" toml:"code_file"`
}

// loadSteps decodes a steps file by extension: .yaml/.yml, .toml or .json.
func loadSteps(path string) ([]registry.Operation, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var sf StepsFile
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(b, &sf)
	case ".toml":
		err = toml.Unmarshal(b, &sf)
	case ".json":
		err = json.Unmarshal(b, &sf)
	default:
		return nil, fmt.Errorf("steps file %s: unsupported extension (use .yaml, .toml or .json)", path)
	}
	if err != nil {
		return nil, fmt.Errorf("steps file %s: %w", path, err)
	}
	ops := make([]registry.Operation, 0, len(sf.Steps))
	for i, s := range sf.Steps {
		if strings.TrimSpace(s.Name) == "" {
			return nil, fmt.Errorf("steps file %s: step %d has no name", path, i)
		}
		code := s.Code
		if code == "" && s.CodeFile != "" {
			p := s.CodeFile
			if !filepath.IsAbs(p) {
				p = filepath.Join(filepath.Dir(path), p)
			}
			cb, err := os.ReadFile(p)
			if err != nil {
				return nil, fmt.Errorf("step %q: %w", s.Name, err)
			}
			code = string(cb)
		}
		ops = append(ops, registry.Operation{Name: s.Name, Description: s.Description, Code: code})
	}
	return ops, nil
}

// writeTable writes f to path, choosing the writer by extension. An empty
// path or "-" writes CSV to stdout.
func writeTable(path string, f *frame.Frame) error {
	if path == "" || path == "-" {
		return csvio.Write(os.Stdout, f, csvio.WriterOptions{})
	}
	switch filepath.Ext(strings.TrimSuffix(strings.ToLower(path), ".gz")) {
	case ".jsonl", ".ndjson":
		return jsonlio.WriteAll(path, f)
	case ".parquet":
		return parquetio.WriteAll(path, f)
	}
	return csvio.WriteAll(path, f, csvio.WriterOptions{})
}
