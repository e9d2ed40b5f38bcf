// Package readme mines documentation files for dataset metadata. Extraction
// is heuristic by nature, so every recovered value carries a confidence
// score; the assembler decides what that score is worth.
package readme

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"regexp"
	"sort"
	"strings"
	"time"

	yaml "go.yaml.in/yaml/v3"

	"github.com/geonas-tools/nascat/internal/catalog"
	"github.com/geonas-tools/nascat/internal/walker"
)

// readBudget caps how much of a README is read.
const readBudget = 64 * 1024

// summaryLen is the length of the flattened summary snippet.
const summaryLen = 500

// Confidence tiers, highest to lowest: structured front matter, an explicit
// labeled line, a bare date pattern, loose prose proximity.
const (
	ConfidenceFrontMatter = 0.95
	ConfidenceLabeled     = 0.8
	ConfidencePattern     = 0.5
	ConfidenceProximity   = 0.4
)

// Hit is one field value recovered from one README.
type Hit struct {
	Value      string
	Confidence float64
}

// Extraction is everything mined from a single README file.
type Extraction struct {
	Path    string
	RelPath string
	ModTime time.Time
	Fields  map[catalog.Field]Hit
	Summary string
}

// fieldLabels maps catalog fields to the labels a README might use for
// them, in "Label: value" lines or front matter keys.
var fieldLabels = map[catalog.Field][]string{
	catalog.FieldProducer:         {"producer", "author", "authors", "institution", "organisation", "organization", "creator", "contact", "produced by"},
	catalog.FieldInstrument:       {"instrument", "sensor", "platform"},
	catalog.FieldMethod:           {"method", "methodology", "technique", "processing", "measurement principle"},
	catalog.FieldTemporalCoverage: {"temporal coverage", "time period", "period", "date range", "dates", "date"},
	catalog.FieldSpatialCoverage:  {"spatial coverage", "region", "area", "extent", "domain", "location"},
	catalog.FieldVariables:        {"variables", "parameters"},
	catalog.FieldUnits:            {"units"},
	catalog.FieldLicense:          {"license", "licence"},
	catalog.FieldCitation:         {"citation", "cite as", "reference"},
	catalog.FieldDOI:              {"doi"},
}

// labelOrder fixes the iteration order over fieldLabels so repeated mining
// of the same file is deterministic.
var labelOrder = []catalog.Field{
	catalog.FieldProducer, catalog.FieldInstrument, catalog.FieldMethod,
	catalog.FieldTemporalCoverage, catalog.FieldSpatialCoverage,
	catalog.FieldVariables, catalog.FieldUnits,
	catalog.FieldLicense, catalog.FieldCitation, catalog.FieldDOI,
}

var (
	dateRangeRe = regexp.MustCompile(`\b((?:19|20)\d{2}(?:-\d{2}(?:-\d{2})?)?)\s*(?:to|through|until|[-–—])\s*((?:19|20)\d{2}(?:-\d{2}(?:-\d{2})?)?)\b`)
	doiRe       = regexp.MustCompile(`\b10\.\d{4,9}/[-._;()/:A-Za-z0-9]+`)
	producedRe  = regexp.MustCompile(`(?i)(?:collected|produced|provided|compiled|generated)\s+by\s+(?:the\s+)?([A-Z][^.,\n]{2,60})`)
	measuredRe  = regexp.MustCompile(`(?i)(?:measured|recorded|acquired|observed)\s+(?:with|using)\s+(?:an?\s+|the\s+)?([A-Z][^.,\n]{2,60})`)
)

// Mine extracts metadata hits from one README file.
func Mine(fd walker.FileDescriptor) (Extraction, error) {
	f, err := os.Open(fd.Path)
	if err != nil {
		return Extraction{}, fmt.Errorf("read readme %s: %w", fd.Path, err)
	}
	defer f.Close()

	raw, err := io.ReadAll(io.LimitReader(f, readBudget))
	if err != nil {
		return Extraction{}, fmt.Errorf("read readme %s: %w", fd.Path, err)
	}

	ext := Extraction{
		Path:    fd.Path,
		RelPath: fd.RelPath,
		ModTime: fd.ModTime,
		Fields:  make(map[catalog.Field]Hit),
	}

	meta, body := splitFrontMatter(string(raw))
	mineFrontMatter(meta, &ext)
	mineLabeledLines(body, &ext)
	minePatterns(body, &ext)
	ext.Summary = snippet(body)
	return ext, nil
}

// splitFrontMatter separates a leading YAML front matter block from the
// markdown body. A malformed block is left in the body for line mining.
func splitFrontMatter(raw string) (map[string]any, string) {
	raw = strings.TrimSpace(strings.ReplaceAll(raw, "\r\n", "\n"))
	if !strings.HasPrefix(raw, "---\n") {
		return nil, raw
	}
	rest := strings.TrimPrefix(raw, "---\n")
	idx := strings.Index(rest, "\n---\n")
	if idx < 0 {
		idx = strings.Index(rest, "\n---")
		if idx < 0 {
			return nil, raw
		}
	}
	y := rest[:idx]
	body := strings.TrimSpace(rest[idx:])
	body = strings.TrimPrefix(body, "\n---\n")
	body = strings.TrimPrefix(body, "\n---")
	body = strings.TrimSpace(body)

	m := map[string]any{}
	dec := yaml.NewDecoder(bytes.NewReader([]byte(y)))
	dec.KnownFields(false)
	if err := dec.Decode(&m); err != nil {
		return nil, raw
	}
	return m, body
}

func mineFrontMatter(meta map[string]any, ext *Extraction) {
	if len(meta) == 0 {
		return
	}
	lowered := make(map[string]string, len(meta))
	for k, v := range meta {
		if s := strings.TrimSpace(stringFromAny(v)); s != "" {
			lowered[strings.ToLower(strings.TrimSpace(k))] = s
		}
	}
	for _, field := range labelOrder {
		for _, label := range fieldLabels[field] {
			if v, ok := lowered[label]; ok {
				ext.record(field, v, ConfidenceFrontMatter)
				break
			}
		}
	}
}

func stringFromAny(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case []any:
		parts := make([]string, 0, len(t))
		for _, x := range t {
			if s := strings.TrimSpace(stringFromAny(x)); s != "" {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, ", ")
	default:
		return fmt.Sprint(t)
	}
}

// mineLabeledLines matches "Label: value" lines, with or without list
// markers and bold markup around the label.
func mineLabeledLines(body string, ext *Extraction) {
	for _, field := range labelOrder {
		if _, done := ext.Fields[field]; done {
			continue
		}
		for _, label := range fieldLabels[field] {
			pat := fmt.Sprintf(`(?mi)^\s*(?:[-*]\s*)?(?:\*\*)?%s(?:\*\*)?\s*:\s*(.+?)\s*$`, regexp.QuoteMeta(label))
			if m := regexp.MustCompile(pat).FindStringSubmatch(body); len(m) == 2 {
				ext.record(field, strings.Trim(m[1], "* "), ConfidenceLabeled)
				break
			}
		}
	}
}

// minePatterns is the loose tier: bare date ranges, DOI strings, and prose
// like "collected by X" or "measured with Y".
func minePatterns(body string, ext *Extraction) {
	if _, done := ext.Fields[catalog.FieldTemporalCoverage]; !done {
		if m := dateRangeRe.FindStringSubmatch(body); len(m) == 3 {
			ext.record(catalog.FieldTemporalCoverage, m[1]+" to "+m[2], ConfidencePattern)
		}
	}
	if _, done := ext.Fields[catalog.FieldDOI]; !done {
		if m := doiRe.FindString(body); m != "" {
			ext.record(catalog.FieldDOI, strings.TrimRight(m, ".)"), ConfidencePattern)
		}
	}
	if _, done := ext.Fields[catalog.FieldProducer]; !done {
		if m := producedRe.FindStringSubmatch(body); len(m) == 2 {
			ext.record(catalog.FieldProducer, strings.TrimSpace(m[1]), ConfidenceProximity)
		}
	}
	if _, done := ext.Fields[catalog.FieldInstrument]; !done {
		if m := measuredRe.FindStringSubmatch(body); len(m) == 2 {
			ext.record(catalog.FieldInstrument, strings.TrimSpace(m[1]), ConfidenceProximity)
		}
	}
}

func (e *Extraction) record(field catalog.Field, value string, confidence float64) {
	value = strings.TrimSpace(value)
	if value == "" {
		return
	}
	if prev, ok := e.Fields[field]; ok && prev.Confidence >= confidence {
		return
	}
	e.Fields[field] = Hit{Value: value, Confidence: confidence}
}

// snippet flattens the head of the body into a single displayable line.
func snippet(body string) string {
	if len(body) > summaryLen {
		body = body[:summaryLen]
	}
	return strings.Join(strings.Fields(body), " ")
}

// Merge combines extractions from every README under one dataset root.
// When two files claim different values for a field the later-modified file
// wins; the losing value is preserved as a conflict note, never dropped.
func Merge(extractions []Extraction) (map[catalog.Field]catalog.FieldValue, string, []string) {
	if len(extractions) == 0 {
		return nil, "", nil
	}
	sorted := append([]Extraction(nil), extractions...)
	sort.Slice(sorted, func(i, j int) bool {
		if !sorted[i].ModTime.Equal(sorted[j].ModTime) {
			return sorted[i].ModTime.Before(sorted[j].ModTime)
		}
		return sorted[i].RelPath < sorted[j].RelPath
	})

	fields := make(map[catalog.Field]catalog.FieldValue)
	type origin struct{ rel string }
	origins := make(map[catalog.Field]origin)
	for _, ext := range sorted {
		for _, field := range labelOrder {
			hit, ok := ext.Fields[field]
			if !ok {
				continue
			}
			fv := catalog.FieldValue{
				Value:      hit.Value,
				Source:     catalog.SourceReadme,
				Confidence: hit.Confidence,
			}
			if prev, exists := fields[field]; exists && prev.Value != hit.Value {
				fv.Notes = append(append([]string(nil), prev.Notes...),
					fmt.Sprintf("conflicts with %s: %q", origins[field].rel, prev.Value))
			} else if exists {
				fv.Notes = prev.Notes
			}
			fields[field] = fv
			origins[field] = origin{rel: ext.RelPath}
		}
	}

	// Summary and path listing come from the latest file; all mined paths
	// are reported for provenance.
	paths := make([]string, 0, len(sorted))
	for _, ext := range sorted {
		paths = append(paths, ext.RelPath)
	}
	return fields, sorted[len(sorted)-1].Summary, paths
}
