// Package export writes catalog records in the supported interchange
// formats: JSON lines, YAML, and CycloneDX BOMs.
package export

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	yaml "go.yaml.in/yaml/v3"

	"github.com/geonas-tools/nascat/internal/catalog"
)

// Format is an export output format.
type Format string

const (
	FormatJSONL     Format = "jsonl"
	FormatYAML      Format = "yaml"
	FormatCycloneDX Format = "cyclonedx"
)

// ParseFormat validates a user-supplied format string.
func ParseFormat(s string) (Format, bool) {
	switch Format(strings.ToLower(strings.TrimSpace(s))) {
	case FormatJSONL:
		return FormatJSONL, true
	case FormatYAML:
		return FormatYAML, true
	case FormatCycloneDX:
		return FormatCycloneDX, true
	}
	return "", false
}

// Write renders records to w in the given format.
func Write(w io.Writer, records []*catalog.Record, format Format) error {
	switch format {
	case FormatJSONL:
		return writeJSONL(w, records)
	case FormatYAML:
		return writeYAML(w, records)
	case FormatCycloneDX:
		return WriteBOM(w, BuildBOM(records))
	default:
		return fmt.Errorf("unsupported export format %q", format)
	}
}

// WriteFile renders records to path, creating parent directories as needed.
// The output is written to a temporary file and renamed into place, so a
// failed export never leaves a partial file behind.
func WriteFile(path string, records []*catalog.Record, format Format) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".export-*.tmp")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if err := Write(tmp, records, format); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

func writeJSONL(w io.Writer, records []*catalog.Record) error {
	enc := json.NewEncoder(w)
	for _, r := range records {
		if err := enc.Encode(r); err != nil {
			return fmt.Errorf("encode %s: %w", r.Root, err)
		}
	}
	return nil
}

// yamlRecord flattens a record for human-readable YAML output: field values
// only, with provenance folded into a per-field annotation block.
type yamlRecord struct {
	Root     string            `yaml:"root"`
	Type     string            `yaml:"type"`
	Status   string            `yaml:"status"`
	Fields   map[string]string `yaml:"fields,omitempty"`
	Sources  map[string]string `yaml:"sources,omitempty"`
	Files    []string          `yaml:"files,omitempty"`
	Warnings []string          `yaml:"warnings,omitempty"`
}

func writeYAML(w io.Writer, records []*catalog.Record) error {
	out := make([]yamlRecord, 0, len(records))
	for _, r := range records {
		yr := yamlRecord{
			Root:     r.Root,
			Type:     string(r.Type),
			Status:   string(r.Status),
			Warnings: r.Warnings,
		}
		if len(r.Fields) > 0 {
			yr.Fields = make(map[string]string, len(r.Fields))
			yr.Sources = make(map[string]string, len(r.Fields))
			for f, fv := range r.Fields {
				yr.Fields[string(f)] = fv.Value
				src := string(fv.Source)
				if fv.LowConfidence {
					src += " (low confidence)"
				}
				yr.Sources[string(f)] = src
			}
		}
		for _, file := range r.Files {
			yr.Files = append(yr.Files, file.RelPath)
		}
		out = append(out, yr)
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(out); err != nil {
		return err
	}
	return enc.Close()
}
