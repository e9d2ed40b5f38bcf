package handler

import (
	"io"
	"os"
	"strings"
	"unicode/utf8"

	"github.com/geonas-tools/nascat/internal/catalog"
	"github.com/geonas-tools/nascat/internal/walker"
)

// previewBytes is how much of a plain-text file lands in the preview field.
const previewBytes = 500

// produceText keeps a short preview of plain-text data files so catalog
// queries can show what a file holds without touching the NAS again.
func produceText(fd walker.FileDescriptor) (PartialRecord, error) {
	f, err := os.Open(fd.Path)
	if err != nil {
		return PartialRecord{}, unreadable(fd.Path, "open failed", err)
	}
	defer f.Close()

	buf := make([]byte, previewBytes)
	n, err := io.ReadFull(f, buf)
	if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		return PartialRecord{}, unreadable(fd.Path, "read failed", err)
	}
	buf = buf[:n]

	rec := newPartial()
	rec.Fields[catalog.FieldDataType] = "text"
	if preview := flattenPreview(buf); preview != "" {
		rec.Fields[catalog.FieldPreview] = preview
	}
	return rec, nil
}

// flattenPreview collapses the head of a file into a single displayable
// line, dropping a trailing partial rune from the cut.
func flattenPreview(buf []byte) string {
	for len(buf) > 0 && !utf8.Valid(buf) {
		buf = buf[:len(buf)-1]
	}
	s := strings.Map(func(r rune) rune {
		switch r {
		case '\n', '\r', '\t':
			return ' '
		}
		return r
	}, string(buf))
	return strings.Join(strings.Fields(s), " ")
}
