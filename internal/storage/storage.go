// Package storage persists catalog records. Two backends exist: a SQLite
// database for queryable catalogs and a JSON-lines file for plain-text
// ones. The extension of the catalog path picks the backend.
package storage

import (
	"path/filepath"
	"strings"

	"github.com/geonas-tools/nascat/internal/catalog"
)

// Store is a catalog persistence backend. SaveAll replaces the stored
// catalog wholesale; records carry their own identity, so there is no
// partial-update surface to get wrong.
type Store interface {
	LoadAll() ([]*catalog.Record, error)
	SaveAll(records []*catalog.Record) error
	Close() error
}

// Open picks a backend from the catalog path: .db/.sqlite/.sqlite3 open a
// SQLite store, anything else a JSON-lines file.
func Open(path string) (Store, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".db", ".sqlite", ".sqlite3":
		return OpenSQLite(path)
	default:
		return OpenJSONL(path), nil
	}
}
