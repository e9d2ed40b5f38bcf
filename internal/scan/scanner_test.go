package scan

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/geonas-tools/nascat/internal/apperr"
	"github.com/geonas-tools/nascat/internal/catalog"
	"github.com/geonas-tools/nascat/internal/classify"
)

func write(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func newScanner(t *testing.T, root string, cat *catalog.Catalog) *Scanner {
	t.Helper()
	cfg := Config{Root: root, Concurrency: 2}
	if err := cfg.Validate(); err != nil {
		t.Fatal(err)
	}
	return New(cfg, cat)
}

func TestScanTabularWithReadme(t *testing.T) {
	dir := t.TempDir()
	write(t, dir, "data.csv", "time,temp\n1,2\n")
	write(t, dir, "README.txt", "Producer: Jane Doe\n")

	cat := catalog.New()
	sum, err := newScanner(t, dir, cat).Scan(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if sum.Added != 1 || sum.RootsScanned != 1 {
		t.Fatalf("summary: %+v", sum)
	}

	rec, ok := cat.Get(dir)
	if !ok {
		t.Fatal("no record for scan root")
	}
	if rec.Type != classify.Tabular {
		t.Errorf("type = %s", rec.Type)
	}
	prod := rec.Fields[catalog.FieldProducer]
	if prod.Value != "Jane Doe" || prod.Source != catalog.SourceReadme {
		t.Errorf("producer: %+v", prod)
	}
	if rec.Status != catalog.StatusUnreviewed {
		t.Errorf("status = %s", rec.Status)
	}
	if len(rec.Files) != 2 {
		t.Errorf("files: %d", len(rec.Files))
	}
	if vars := rec.Fields[catalog.FieldVariables]; vars.Value != "time, temp" || vars.Source != catalog.SourceHandler {
		t.Errorf("variables: %+v", vars)
	}
}

func TestScanCorruptTabularStillCreatesRecord(t *testing.T) {
	dir := t.TempDir()
	write(t, dir, "broken.csv", "")

	cat := catalog.New()
	sum, err := newScanner(t, dir, cat).Scan(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	rec, ok := cat.Get(dir)
	if !ok {
		t.Fatal("record should exist despite the unreadable file")
	}
	annotation := rec.Fields[catalog.FieldError]
	if !strings.Contains(annotation.Value, "broken.csv") {
		t.Errorf("error annotation: %+v", annotation)
	}
	if sum.Warnings != 1 {
		t.Errorf("warnings = %d, want 1", sum.Warnings)
	}
}

func TestRescanUnchangedIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	write(t, dir, "data.csv", "a,b\n1,2\n")
	write(t, dir, "README.md", "License: CC0\n")

	cat := catalog.New()
	s := newScanner(t, dir, cat)
	if _, err := s.Scan(context.Background()); err != nil {
		t.Fatal(err)
	}
	first, _ := cat.Get(dir)

	sum, err := s.Scan(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if sum.Added != 0 || sum.Updated != 0 || sum.Unchanged != 1 {
		t.Fatalf("second scan: %+v", sum)
	}
	second, _ := cat.Get(dir)
	if second.ID != first.ID || !second.FirstSeen.Equal(first.FirstSeen) {
		t.Error("identity must survive re-scan")
	}
	if second.FieldString(catalog.FieldLicense) != "CC0" {
		t.Error("readme field lost on re-scan")
	}
}

func TestRescanKeepsHandlerWarnings(t *testing.T) {
	dir := t.TempDir()
	write(t, dir, "report.xlsx", "opaque spreadsheet bytes")

	cat := catalog.New()
	s := newScanner(t, dir, cat)
	if _, err := s.Scan(context.Background()); err != nil {
		t.Fatal(err)
	}
	first, _ := cat.Get(dir)
	if len(first.Warnings) == 0 {
		t.Fatalf("first scan recorded no warnings: %+v", first)
	}

	sum, err := s.Scan(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if sum.Unchanged != 1 {
		t.Fatalf("second scan: %+v", sum)
	}
	second, _ := cat.Get(dir)
	if strings.Join(second.Warnings, "|") != strings.Join(first.Warnings, "|") {
		t.Errorf("warnings differ across an unchanged re-scan: %v vs %v", first.Warnings, second.Warnings)
	}
}

func TestDeletedFileDropsItsFields(t *testing.T) {
	dir := t.TempDir()
	path := write(t, dir, "a.csv", "time,temp\n1,2\n")
	write(t, dir, "b.csv", "depth,salinity\n9,35\n")

	cat := catalog.New()
	s := newScanner(t, dir, cat)
	if _, err := s.Scan(context.Background()); err != nil {
		t.Fatal(err)
	}
	rec, _ := cat.Get(dir)
	if rec.FieldString(catalog.FieldVariables) != "time, temp" {
		t.Fatalf("variables = %q", rec.FieldString(catalog.FieldVariables))
	}

	if err := os.Remove(path); err != nil {
		t.Fatal(err)
	}
	sum, err := s.Scan(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if sum.Updated != 1 {
		t.Fatalf("second scan: %+v", sum)
	}
	rec, _ = cat.Get(dir)
	if got := rec.FieldString(catalog.FieldVariables); got != "depth, salinity" {
		t.Errorf("variables = %q, want the surviving file's columns", got)
	}
	if len(rec.Files) != 1 {
		t.Errorf("files: %d", len(rec.Files))
	}
}

func TestUserOverrideSurvivesRescan(t *testing.T) {
	dir := t.TempDir()
	write(t, dir, "data.csv", "a,b\n1,2\n")
	readmePath := write(t, dir, "README.md", "Producer: Draft Name\n")

	cat := catalog.New()
	s := newScanner(t, dir, cat)
	if _, err := s.Scan(context.Background()); err != nil {
		t.Fatal(err)
	}

	cat.Update(dir, func(r *catalog.Record) {
		r.SetOverride(catalog.FieldProducer, "Curated Name")
		r.Status = catalog.StatusAccepted
	})

	// An unrelated change: the README grows a license line.
	write(t, dir, "README.md", "Producer: Draft Name\nLicense: CC-BY-4.0\n")
	future := time.Now().Add(time.Hour)
	os.Chtimes(readmePath, future, future)

	sum, err := s.Scan(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if sum.Updated != 1 {
		t.Fatalf("summary: %+v", sum)
	}
	rec, _ := cat.Get(dir)
	prod := rec.Fields[catalog.FieldProducer]
	if prod.Value != "Curated Name" || prod.Source != catalog.SourceUser {
		t.Errorf("override not sticky: %+v", prod)
	}
	if rec.FieldString(catalog.FieldLicense) != "CC-BY-4.0" {
		t.Error("unrelated field not updated")
	}
	if rec.Status != catalog.StatusUnreviewed {
		t.Errorf("changed record should reset to unreviewed, got %s", rec.Status)
	}
}

func TestConflictingReadmesLaterWins(t *testing.T) {
	dir := t.TempDir()
	write(t, dir, "data.csv", "a,b\n")
	older := write(t, dir, "README.txt", "Instrument: old sensor\n")
	newer := write(t, dir, "README.md", "Instrument: new sensor\n")

	past := time.Now().Add(-24 * time.Hour)
	if err := os.Chtimes(older, past, past); err != nil {
		t.Fatal(err)
	}
	now := time.Now()
	if err := os.Chtimes(newer, now, now); err != nil {
		t.Fatal(err)
	}

	cat := catalog.New()
	if _, err := newScanner(t, dir, cat).Scan(context.Background()); err != nil {
		t.Fatal(err)
	}
	rec, _ := cat.Get(dir)
	inst := rec.Fields[catalog.FieldInstrument]
	if inst.Value != "new sensor" {
		t.Errorf("instrument = %q", inst.Value)
	}
	if len(inst.Notes) != 1 || !strings.Contains(inst.Notes[0], "old sensor") {
		t.Errorf("conflict provenance missing: %v", inst.Notes)
	}
}

func TestSubdirectoryDatasets(t *testing.T) {
	dir := t.TempDir()
	write(t, dir, "cruise-2023/obs.csv", "a,b\n1,2\n")
	write(t, dir, "cruise-2024/obs.csv", "a,b\n3,4\n")
	write(t, dir, "README.md", "Producer: Shared Lab\n")

	cat := catalog.New()
	sum, err := newScanner(t, dir, cat).Scan(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if sum.Added != 2 {
		t.Fatalf("summary: %+v", sum)
	}
	for _, sub := range []string{"cruise-2023", "cruise-2024"} {
		rec, ok := cat.Get(filepath.Join(dir, sub))
		if !ok {
			t.Fatalf("missing record for %s", sub)
		}
		// The top-level README is the nearest ancestor for both datasets.
		if rec.FieldString(catalog.FieldProducer) != "Shared Lab" {
			t.Errorf("%s: producer = %q", sub, rec.FieldString(catalog.FieldProducer))
		}
	}
}

func TestLowConfidenceFlagged(t *testing.T) {
	dir := t.TempDir()
	write(t, dir, "data.csv", "a,b\n")
	write(t, dir, "README.md", "Measurements were collected by The Field Team during campaigns\n")

	cat := catalog.New()
	if _, err := newScanner(t, dir, cat).Scan(context.Background()); err != nil {
		t.Fatal(err)
	}
	rec, _ := cat.Get(dir)
	prod := rec.Fields[catalog.FieldProducer]
	if prod.Value == "" {
		t.Fatal("low-confidence field should be retained")
	}
	if !prod.LowConfidence {
		t.Errorf("proximity hit should be flagged low-confidence: %+v", prod)
	}
}

func TestScanCancelled(t *testing.T) {
	dir := t.TempDir()
	write(t, dir, "data.csv", "a,b\n")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newScanner(t, dir, catalog.New()).Scan(ctx)
	if err == nil {
		t.Fatal("cancelled scan should report an error")
	}
}

func TestConfigValidate(t *testing.T) {
	if err := (&Config{}).Validate(); !apperr.IsConfig(err) {
		t.Errorf("empty root: %v", err)
	}
	if err := (&Config{Root: filepath.Join(t.TempDir(), "missing")}).Validate(); !apperr.IsConfig(err) {
		t.Errorf("missing root: %v", err)
	}
	cfg := Config{Root: t.TempDir(), ConfidenceThreshold: 1.5}
	if err := cfg.Validate(); !apperr.IsConfig(err) {
		t.Errorf("bad threshold: %v", err)
	}

	cfg = Config{Root: t.TempDir()}
	if err := cfg.Validate(); err != nil {
		t.Fatal(err)
	}
	if cfg.Concurrency < 1 || cfg.ConfidenceThreshold != DefaultConfidenceThreshold || cfg.ChecksumMaxBytes != DefaultChecksumMaxBytes {
		t.Errorf("defaults not applied: %+v", cfg)
	}
}
