package storage

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/geonas-tools/nascat/internal/apperr"
	"github.com/geonas-tools/nascat/internal/catalog"
)

// JSONLStore persists records as one JSON object per line. The format is
// greppable and diffs cleanly, which matters for catalogs kept under
// version control.
type JSONLStore struct {
	path string
}

// OpenJSONL returns a JSON-lines store backed by path. The file is created
// on first save.
func OpenJSONL(path string) *JSONLStore { return &JSONLStore{path: path} }

// Close is a no-op; the file is only held open during load and save.
func (s *JSONLStore) Close() error { return nil }

// LoadAll reads every record from the file. A missing file is an empty
// catalog, not an error.
func (s *JSONLStore) LoadAll() ([]*catalog.Record, error) {
	f, err := os.Open(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, apperr.Storage("open catalog file", err)
	}
	defer f.Close()

	var out []*catalog.Record
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	line := 0
	for sc.Scan() {
		line++
		text := bytes.TrimSpace(sc.Bytes())
		if len(text) == 0 {
			continue
		}
		var r catalog.Record
		if err := json.Unmarshal(text, &r); err != nil {
			return nil, apperr.Storage(fmt.Sprintf("decode line %d", line), err)
		}
		out = append(out, &r)
	}
	if err := sc.Err(); err != nil {
		return nil, apperr.Storage("read catalog file", err)
	}
	return out, nil
}

// SaveAll writes records to a temporary file and renames it into place, so
// a crash mid-write never corrupts the existing catalog.
func (s *JSONLStore) SaveAll(records []*catalog.Record) error {
	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return apperr.Storage("create catalog directory", err)
		}
	}
	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".catalog-*.tmp")
	if err != nil {
		return apperr.Storage("create temp file", err)
	}
	defer os.Remove(tmp.Name())

	w := bufio.NewWriter(tmp)
	enc := json.NewEncoder(w)
	for _, r := range records {
		if err := enc.Encode(r); err != nil {
			tmp.Close()
			return apperr.Storage("encode "+r.Root, err)
		}
	}
	if err := w.Flush(); err != nil {
		tmp.Close()
		return apperr.Storage("flush catalog file", err)
	}
	if err := tmp.Close(); err != nil {
		return apperr.Storage("close temp file", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return apperr.Storage("replace catalog file", err)
	}
	return nil
}
