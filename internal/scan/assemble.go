package scan

import (
	"errors"
	"path/filepath"
	"strings"
	"time"

	"github.com/geonas-tools/nascat/internal/catalog"
	"github.com/geonas-tools/nascat/internal/handler"
	"github.com/geonas-tools/nascat/internal/readme"
	"github.com/geonas-tools/nascat/internal/walker"
)

// assemble builds the incoming record for one dataset root. Field
// precedence, highest first: user override (applied later in mergeRescan),
// handler-derived, README at or above the confidence threshold, README
// below it (kept, flagged low-confidence).
func (s *Scanner) assemble(root string, group []classified, prior *catalog.Record,
	byDir map[string][]readme.Extraction, readmeWarnings map[string][]string, now time.Time) *catalog.Record {

	rec := catalog.NewRecord(root)
	rec.LastScanned = now
	rec.FirstSeen = now

	rootDir := root
	if len(group) == 1 && group[0].fd.Path == root {
		rootDir = filepath.Dir(root)
	}

	// README fields first: everything else outranks them.
	if exts := s.nearestReadmes(rootDir, byDir); len(exts) > 0 {
		fields, summary, paths := readme.Merge(exts)
		for f, fv := range fields {
			fv.LowConfidence = fv.Confidence < s.cfg.ConfidenceThreshold
			rec.Fields[f] = fv
		}
		if summary != "" {
			rec.Fields[catalog.FieldReadmeSummary] = catalog.FieldValue{Value: summary, Source: catalog.SourceReadme, Confidence: 1}
		}
		rec.Fields[catalog.FieldReadmePath] = catalog.FieldValue{Value: strings.Join(paths, ", "), Source: catalog.SourceReadme, Confidence: 1}
	}

	// A file that vanished since the last scan invalidates the carried-over
	// handler baseline: its fields must not outlive it, so the surviving
	// files are re-read and the fields rebuilt from what is left.
	rebuild := filesRemoved(prior, group)

	// Handler fields from the previous scan are the baseline; files that
	// changed since then re-contribute below and win.
	if prior != nil && !rebuild {
		for f, fv := range prior.Fields {
			if fv.Source == catalog.SourceHandler {
				rec.Fields[f] = fv
			}
		}
	}

	handlerFields := make(map[catalog.Field]string)
	var unreadables []string
	reRead := false
	for _, cf := range group {
		file := catalog.File{FileDescriptor: cf.fd, Type: cf.result.Tag}
		if cf.result.Warning != "" {
			rec.Warnings = append(rec.Warnings, cf.result.Warning)
		}
		if cf.isData() {
			pf, unchanged := priorFile(prior, cf.fd)
			if unchanged && !rebuild {
				// Unchanged since last scan: keep the checksum and the
				// handler warnings, skip the header read.
				file.Checksum = pf.Checksum
				file.Warnings = append([]string(nil), pf.Warnings...)
			} else {
				if unchanged {
					file.Checksum = pf.Checksum
				} else {
					sum, err := checksumSHA1(cf.fd.Path, cf.fd.Size, s.cfg.ChecksumMaxBytes)
					if err != nil {
						file.Warnings = append(file.Warnings, "checksum failed for "+cf.fd.RelPath+": "+err.Error())
					}
					file.Checksum = sum
				}

				reRead = true
				partial, err := s.registry.For(cf.result.Tag).Produce(cf.fd)
				if err != nil {
					var u *handler.UnreadableMetadata
					if errors.As(err, &u) {
						unreadables = append(unreadables, u.Error())
					} else {
						unreadables = append(unreadables, err.Error())
					}
					file.Warnings = append(file.Warnings, err.Error())
				} else {
					for f, v := range partial.Fields {
						if _, taken := handlerFields[f]; !taken {
							handlerFields[f] = v
						}
					}
					file.Warnings = append(file.Warnings, partial.Warnings...)
				}
			}
			rec.Warnings = append(rec.Warnings, file.Warnings...)
		}
		rec.Files = append(rec.Files, file)
	}
	for f, v := range handlerFields {
		rec.Fields[f] = catalog.FieldValue{Value: v, Source: catalog.SourceHandler, Confidence: 1}
	}
	if len(unreadables) > 0 {
		rec.Fields[catalog.FieldError] = catalog.FieldValue{Value: strings.Join(unreadables, "; "), Source: catalog.SourceHandler}
	} else if reRead {
		// Files were re-read cleanly; a stale error annotation from a
		// previous scan no longer applies.
		delete(rec.Fields, catalog.FieldError)
	}
	rec.Warnings = append(rec.Warnings, readmeWarnings[rootDir]...)
	rec.Type = catalog.DominantType(rec.Files)
	return rec
}

// filesRemoved reports whether any file from the previous scan's record is
// gone from the current group.
func filesRemoved(prior *catalog.Record, group []classified) bool {
	if prior == nil {
		return false
	}
	current := make(map[string]bool, len(group))
	for _, cf := range group {
		current[cf.fd.Path] = true
	}
	for _, pf := range prior.Files {
		if !current[pf.Path] {
			return true
		}
	}
	return false
}

// priorFile finds fd in the previous scan's record, if it is unchanged
// (same size and modification time).
func priorFile(prior *catalog.Record, fd walker.FileDescriptor) (catalog.File, bool) {
	if prior == nil {
		return catalog.File{}, false
	}
	for _, pf := range prior.Files {
		if pf.Path == fd.Path && pf.Size == fd.Size && pf.ModTime.Equal(fd.ModTime) {
			return pf, true
		}
	}
	return catalog.File{}, false
}

// mergeRescan reconciles a freshly assembled record with the stored one.
// User overrides are sticky: they survive every re-scan. Any other field
// change resets the curation status to unreviewed, so a curator sees the
// record again. The returned bool reports whether anything material
// changed.
func mergeRescan(existing, incoming *catalog.Record) (*catalog.Record, bool) {
	if existing == nil {
		return incoming, true
	}
	incoming.ID = existing.ID
	incoming.FirstSeen = existing.FirstSeen
	incoming.Status = existing.Status

	for f, fv := range existing.Fields {
		if fv.Source == catalog.SourceUser {
			incoming.Fields[f] = fv
		}
	}

	changed := fieldsChanged(existing, incoming) || filesChanged(existing, incoming)
	if changed {
		incoming.Status = catalog.StatusUnreviewed
	}
	return incoming, changed
}

// fieldsChanged compares the non-user fields of two records.
func fieldsChanged(a, b *catalog.Record) bool {
	count := func(r *catalog.Record) int {
		n := 0
		for _, fv := range r.Fields {
			if fv.Source != catalog.SourceUser {
				n++
			}
		}
		return n
	}
	if count(a) != count(b) {
		return true
	}
	for f, av := range a.Fields {
		if av.Source == catalog.SourceUser {
			continue
		}
		bv, ok := b.Fields[f]
		if !ok || bv.Source == catalog.SourceUser {
			return true
		}
		if av.Value != bv.Value || av.Source != bv.Source {
			return true
		}
	}
	return false
}

func filesChanged(a, b *catalog.Record) bool {
	if len(a.Files) != len(b.Files) {
		return true
	}
	for i := range a.Files {
		af, bf := a.Files[i], b.Files[i]
		if af.Path != bf.Path || af.Size != bf.Size || !af.ModTime.Equal(bf.ModTime) {
			return true
		}
	}
	return false
}
