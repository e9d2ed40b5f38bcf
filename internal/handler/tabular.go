package handler

import (
	"encoding/csv"
	"io"
	"os"
	"strings"

	"github.com/geonas-tools/nascat/internal/catalog"
	"github.com/geonas-tools/nascat/internal/walker"
)

// produceTabular peeks at the header row of a delimited text table. Binary
// table formats (xls, xlsx, parquet) are tagged but not opened: their
// column metadata sits deep inside container structures, beyond a header
// read.
func produceTabular(fd walker.FileDescriptor) (PartialRecord, error) {
	rec := newPartial()
	rec.Fields[catalog.FieldDataType] = "table"

	switch fd.Ext {
	case ".xls", ".xlsx", ".parquet":
		rec.Warnings = append(rec.Warnings, "binary table format, columns not inspected")
		return rec, nil
	}

	f, err := os.Open(fd.Path)
	if err != nil {
		return PartialRecord{}, unreadable(fd.Path, "open failed", err)
	}
	defer f.Close()

	header, err := readHeaderLine(io.LimitReader(f, headerBudget))
	if err != nil {
		return PartialRecord{}, unreadable(fd.Path, "no header line", err)
	}

	cols, err := splitColumns(header, fd.Ext)
	if err != nil {
		return PartialRecord{}, unreadable(fd.Path, "malformed header row", err)
	}
	if len(cols) > 0 {
		rec.Fields[catalog.FieldVariables] = strings.Join(cols, ", ")
	}
	return rec, nil
}

func readHeaderLine(r io.Reader) (string, error) {
	buf := make([]byte, headerBudget)
	n, err := io.ReadFull(r, buf)
	if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		return "", err
	}
	text := string(buf[:n])
	if text == "" {
		return "", io.ErrUnexpectedEOF
	}
	if i := strings.IndexByte(text, '\n'); i >= 0 {
		text = text[:i]
	}
	return strings.TrimRight(text, "\r"), nil
}

func splitColumns(header, ext string) ([]string, error) {
	delim := detectDelimiter(header, ext)
	r := csv.NewReader(strings.NewReader(header))
	r.Comma = delim
	row, err := r.Read()
	if err != nil {
		return nil, err
	}
	cols := make([]string, 0, len(row))
	for _, c := range row {
		c = strings.TrimSpace(c)
		if c != "" {
			cols = append(cols, c)
		}
	}
	return cols, nil
}

// detectDelimiter prefers the extension's convention but switches when the
// header plainly uses another separator.
func detectDelimiter(header, ext string) rune {
	if ext == ".tsv" {
		return '\t'
	}
	counts := map[rune]int{
		',':  strings.Count(header, ","),
		'\t': strings.Count(header, "\t"),
		';':  strings.Count(header, ";"),
	}
	best := ','
	for _, d := range []rune{'\t', ';'} {
		if counts[d] > counts[best] {
			best = d
		}
	}
	return best
}
