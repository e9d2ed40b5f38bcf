package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/geonas-tools/nascat/internal/apperr"
	"github.com/geonas-tools/nascat/internal/catalog"
	"github.com/geonas-tools/nascat/internal/classify"
)

// SQLiteStore persists records in a single-file SQLite database. Files and
// fields are nested structures, so they live in JSON columns; the scalar
// columns exist for SQL-side filtering.
type SQLiteStore struct {
	conn *sql.DB
}

// OpenSQLite opens (or creates) the catalog database at path.
func OpenSQLite(path string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, apperr.Storage("create catalog directory", err)
	}
	conn, err := sql.Open("sqlite", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, apperr.Storage("open sqlite", err)
	}
	// SQLite only supports one writer; a single connection avoids SQLITE_BUSY.
	conn.SetMaxOpenConns(1)

	s := &SQLiteStore{conn: conn}
	if err := s.migrate(); err != nil {
		conn.Close()
		return nil, apperr.Storage("migrate", err)
	}
	return s, nil
}

func (s *SQLiteStore) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS records (
			root TEXT PRIMARY KEY,
			id TEXT NOT NULL,
			type TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL DEFAULT 'unreviewed',
			files_json TEXT NOT NULL DEFAULT '[]',
			fields_json TEXT NOT NULL DEFAULT '{}',
			warnings_json TEXT NOT NULL DEFAULT '[]',
			first_seen DATETIME NOT NULL,
			last_scanned DATETIME NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_records_type ON records(type)`,
		`CREATE INDEX IF NOT EXISTS idx_records_status ON records(status)`,
	}
	for _, m := range migrations {
		if _, err := s.conn.Exec(m); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}
	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error { return s.conn.Close() }

// LoadAll reads every stored record, ordered by root.
func (s *SQLiteStore) LoadAll() ([]*catalog.Record, error) {
	rows, err := s.conn.Query(`SELECT root, id, type, status, files_json, fields_json, warnings_json, first_seen, last_scanned
		FROM records ORDER BY root`)
	if err != nil {
		return nil, apperr.Storage("load records", err)
	}
	defer rows.Close()

	var out []*catalog.Record
	for rows.Next() {
		var (
			r                    catalog.Record
			typ, status          string
			files, fields, warns []byte
			firstSeen, lastScan  time.Time
		)
		if err := rows.Scan(&r.Root, &r.ID, &typ, &status, &files, &fields, &warns, &firstSeen, &lastScan); err != nil {
			return nil, apperr.Storage("scan record row", err)
		}
		r.Type = classify.Tag(typ)
		r.Status = catalog.CurationStatus(status)
		r.FirstSeen = firstSeen
		r.LastScanned = lastScan
		if err := json.Unmarshal(files, &r.Files); err != nil {
			return nil, apperr.Storage("decode files for "+r.Root, err)
		}
		if err := json.Unmarshal(fields, &r.Fields); err != nil {
			return nil, apperr.Storage("decode fields for "+r.Root, err)
		}
		if err := json.Unmarshal(warns, &r.Warnings); err != nil {
			return nil, apperr.Storage("decode warnings for "+r.Root, err)
		}
		out = append(out, &r)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Storage("iterate records", err)
	}
	return out, nil
}

// SaveAll replaces the stored catalog with records, atomically.
func (s *SQLiteStore) SaveAll(records []*catalog.Record) error {
	tx, err := s.conn.Begin()
	if err != nil {
		return apperr.Storage("begin transaction", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM records`); err != nil {
		return apperr.Storage("clear records", err)
	}
	stmt, err := tx.Prepare(`INSERT INTO records
		(root, id, type, status, files_json, fields_json, warnings_json, first_seen, last_scanned)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return apperr.Storage("prepare insert", err)
	}
	defer stmt.Close()

	for _, r := range records {
		files, err := json.Marshal(r.Files)
		if err != nil {
			return apperr.Storage("encode files for "+r.Root, err)
		}
		fields, err := json.Marshal(r.Fields)
		if err != nil {
			return apperr.Storage("encode fields for "+r.Root, err)
		}
		warns, err := json.Marshal(r.Warnings)
		if err != nil {
			return apperr.Storage("encode warnings for "+r.Root, err)
		}
		if _, err := stmt.Exec(r.Root, r.ID, string(r.Type), string(r.Status),
			string(files), string(fields), string(warns), r.FirstSeen, r.LastScanned); err != nil {
			return apperr.Storage("insert "+r.Root, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return apperr.Storage("commit", err)
	}
	return nil
}
