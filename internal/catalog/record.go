package catalog

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/geonas-tools/nascat/internal/classify"
	"github.com/geonas-tools/nascat/internal/walker"
)

// Field identifies a metadata field on a dataset record.
type Field string

func (f Field) String() string { return string(f) }

const (
	FieldProducer         Field = "producer"
	FieldInstrument       Field = "instrument"
	FieldMethod           Field = "method"
	FieldTemporalCoverage Field = "temporal-coverage"
	FieldSpatialCoverage  Field = "spatial-coverage"
	FieldVariables        Field = "variables"
	FieldUnits            Field = "units"
	FieldDataType         Field = "data-type"
	FieldLicense          Field = "license"
	FieldCitation         Field = "citation"
	FieldDOI              Field = "doi"
	FieldGridSize         Field = "grid-size"
	FieldArchiveContents  Field = "archive-contents"
	FieldPreview          Field = "preview"
	FieldReadmePath       Field = "readme-path"
	FieldReadmeSummary    Field = "readme-summary"
	FieldCurationNotes    Field = "curation-notes"
	FieldError            Field = "error"
)

// CuratedFields are the fields a user can override interactively.
func CuratedFields() []Field {
	return []Field{
		FieldProducer, FieldInstrument, FieldMethod,
		FieldTemporalCoverage, FieldSpatialCoverage,
		FieldLicense, FieldCitation, FieldDOI, FieldCurationNotes,
	}
}

// FieldSource records which collaborator contributed a field's current value.
type FieldSource string

const (
	SourceHandler FieldSource = "handler"
	SourceReadme  FieldSource = "readme"
	SourceUser    FieldSource = "user"
)

// CurationStatus is the review state of a record.
type CurationStatus string

const (
	StatusUnreviewed CurationStatus = "unreviewed"
	StatusAccepted   CurationStatus = "accepted"
	StatusFlagged    CurationStatus = "flagged"
)

// ParseStatus validates a user-supplied status string.
func ParseStatus(s string) (CurationStatus, bool) {
	switch CurationStatus(strings.ToLower(strings.TrimSpace(s))) {
	case StatusUnreviewed:
		return StatusUnreviewed, true
	case StatusAccepted:
		return StatusAccepted, true
	case StatusFlagged:
		return StatusFlagged, true
	}
	return "", false
}

// FieldValue is one metadata field with its provenance. Notes carry conflict
// and discrepancy annotations; nothing recovered is silently dropped.
type FieldValue struct {
	Value         string      `json:"value"`
	Source        FieldSource `json:"source"`
	Confidence    float64     `json:"confidence,omitempty"`
	LowConfidence bool        `json:"low_confidence,omitempty"`
	Notes         []string    `json:"notes,omitempty"`
}

// File is one constituent file of a dataset: the walker's descriptor plus
// its classification and an optional payload checksum.
type File struct {
	walker.FileDescriptor
	Type     classify.Tag `json:"type"`
	Checksum string       `json:"checksum_sha1,omitempty"`
	// Warnings are this file's handler findings, kept per file so a re-scan
	// that skips an unchanged file can still report them.
	Warnings []string `json:"warnings,omitempty"`
}

// Record is the canonical unit of the catalog: one per dataset root.
type Record struct {
	ID          string               `json:"id"`
	Root        string               `json:"root"`
	Type        classify.Tag         `json:"type"` // dominant data type
	Files       []File               `json:"files"`
	Fields      map[Field]FieldValue `json:"fields"`
	Status      CurationStatus       `json:"status"`
	Warnings    []string             `json:"warnings,omitempty"`
	FirstSeen   time.Time            `json:"first_seen"`
	LastScanned time.Time            `json:"last_scanned"`
}

// NewRecord creates an unreviewed record for a dataset root.
func NewRecord(root string) *Record {
	return &Record{
		ID:     uuid.NewString(),
		Root:   root,
		Type:   classify.Unknown,
		Fields: make(map[Field]FieldValue),
		Status: StatusUnreviewed,
	}
}

// SizeBytes is the total size of the record's constituent files.
func (r *Record) SizeBytes() int64 {
	var total int64
	for _, f := range r.Files {
		total += f.Size
	}
	return total
}

// FieldString returns a field's value, or "" when absent.
func (r *Record) FieldString(f Field) string {
	if v, ok := r.Fields[f]; ok {
		return v.Value
	}
	return ""
}

// SetOverride pins a user-curated value on a field. Overrides are sticky:
// re-scans never replace them.
func (r *Record) SetOverride(f Field, value string) {
	fv := r.Fields[f]
	fv.Value = value
	fv.Source = SourceUser
	fv.Confidence = 1
	fv.LowConfidence = false
	r.Fields[f] = fv
}

// Clone returns a deep copy, so catalog readers never alias shared state.
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	out := *r
	out.Files = make([]File, len(r.Files))
	for i, f := range r.Files {
		f.Warnings = append([]string(nil), f.Warnings...)
		out.Files[i] = f
	}
	out.Warnings = append([]string(nil), r.Warnings...)
	out.Fields = make(map[Field]FieldValue, len(r.Fields))
	for k, v := range r.Fields {
		v.Notes = append([]string(nil), v.Notes...)
		out.Fields[k] = v
	}
	return &out
}

// DominantType picks the record's primary tag: the most frequent
// non-readme, non-unknown tag among its files, ties broken by tag name for
// determinism.
func DominantType(files []File) classify.Tag {
	counts := make(map[classify.Tag]int)
	for _, f := range files {
		if f.Type == classify.Readme || f.Type == classify.Unknown {
			continue
		}
		counts[f.Type]++
	}
	best := classify.Unknown
	bestN := 0
	for _, tag := range classify.Tags() {
		if n := counts[tag]; n > bestN {
			best = tag
			bestN = n
		}
	}
	return best
}

// Summary aggregates catalog-wide statistics.
type Summary struct {
	TotalEntries   int                    `json:"total_entries"`
	TotalSizeBytes int64                  `json:"total_size_bytes"`
	Types          map[classify.Tag]int   `json:"types"`
	Statuses       map[CurationStatus]int `json:"statuses"`
}

// Summarize computes aggregate statistics over a set of records.
func Summarize(records []*Record) Summary {
	s := Summary{
		Types:    make(map[classify.Tag]int),
		Statuses: make(map[CurationStatus]int),
	}
	for _, r := range records {
		s.TotalEntries++
		s.TotalSizeBytes += r.SizeBytes()
		s.Types[r.Type]++
		s.Statuses[r.Status]++
	}
	return s
}
