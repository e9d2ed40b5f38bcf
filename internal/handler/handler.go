// Package handler extracts per-file metadata. Handlers only inspect headers
// and metadata sections of their file type, never full payloads, and never
// mutate anything: the NAS is read-only to this whole system.
package handler

import (
	"fmt"

	"github.com/geonas-tools/nascat/internal/catalog"
	"github.com/geonas-tools/nascat/internal/classify"
	"github.com/geonas-tools/nascat/internal/walker"
)

// headerBudget caps how much of a file a handler may read.
const headerBudget = 64 * 1024

// PartialRecord is the metadata one handler extracted from one file. Absent
// fields are valid, not an error.
type PartialRecord struct {
	Fields   map[catalog.Field]string
	Warnings []string
}

func newPartial() PartialRecord {
	return PartialRecord{Fields: make(map[catalog.Field]string)}
}

// Empty reports whether the handler found nothing at all.
func (p PartialRecord) Empty() bool {
	return len(p.Fields) == 0 && len(p.Warnings) == 0
}

// UnreadableMetadata is the typed failure of a single handler on a single
// file: corrupt header, truncated file, unsupported sub-format. The
// assembler converts it into an error annotation; it never aborts a scan.
type UnreadableMetadata struct {
	Path   string
	Reason string
	Err    error
}

func (e *UnreadableMetadata) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("unreadable metadata in %s: %s: %v", e.Path, e.Reason, e.Err)
	}
	return fmt.Sprintf("unreadable metadata in %s: %s", e.Path, e.Reason)
}

func (e *UnreadableMetadata) Unwrap() error { return e.Err }

func unreadable(path, reason string, err error) error {
	return &UnreadableMetadata{Path: path, Reason: reason, Err: err}
}

// Handler produces a partial metadata record from a file descriptor.
type Handler interface {
	Produce(fd walker.FileDescriptor) (PartialRecord, error)
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(fd walker.FileDescriptor) (PartialRecord, error)

func (f HandlerFunc) Produce(fd walker.FileDescriptor) (PartialRecord, error) { return f(fd) }

// noop is the fallback for unknown file types: an empty record, no error.
var noop = HandlerFunc(func(walker.FileDescriptor) (PartialRecord, error) {
	return newPartial(), nil
})

// Registry dispatches file-type tags to handlers. Adding a file type means
// adding a tag and a table entry, nothing more.
type Registry struct {
	handlers map[classify.Tag]Handler
}

// NewRegistry returns a registry with the default handler set.
func NewRegistry() *Registry {
	r := &Registry{handlers: make(map[classify.Tag]Handler)}
	r.Register(classify.Tabular, HandlerFunc(produceTabular))
	r.Register(classify.NDArray, HandlerFunc(produceNDArray))
	r.Register(classify.Raster, HandlerFunc(produceRaster))
	r.Register(classify.Archive, HandlerFunc(produceArchive))
	r.Register(classify.Text, HandlerFunc(produceText))
	return r
}

// Register installs (or replaces) the handler for a tag.
func (r *Registry) Register(tag classify.Tag, h Handler) {
	r.handlers[tag] = h
}

// For returns the handler for a tag, defaulting to a no-op handler.
func (r *Registry) For(tag classify.Tag) Handler {
	if h, ok := r.handlers[tag]; ok {
		return h
	}
	return noop
}
