// Package scan orchestrates a catalog scan: walk the tree, classify files,
// group them into dataset roots, run metadata handlers and README mining
// concurrently per root, and merge the assembled records into the catalog.
package scan

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/geonas-tools/nascat/internal/catalog"
	"github.com/geonas-tools/nascat/internal/classify"
	"github.com/geonas-tools/nascat/internal/handler"
	"github.com/geonas-tools/nascat/internal/readme"
	"github.com/geonas-tools/nascat/internal/walker"
)

// Summary is what one scan did to the catalog.
type Summary struct {
	RootsScanned      int
	FilesSeen         int
	Added             int
	Updated           int
	Unchanged         int
	Warnings          int
	TraversalWarnings []walker.Warning
	Duration          time.Duration
}

// Scanner runs scans against one catalog with one fixed configuration.
type Scanner struct {
	cfg      Config
	registry *handler.Registry
	cat      *catalog.Catalog
}

// New creates a scanner. cfg must already be validated.
func New(cfg Config, cat *catalog.Catalog) *Scanner {
	return &Scanner{cfg: cfg, registry: handler.NewRegistry(), cat: cat}
}

// Registry exposes the handler registry so callers can install custom
// handlers before scanning.
func (s *Scanner) Registry() *handler.Registry { return s.registry }

// Scan walks the configured root and merges every discovered dataset into
// the catalog. Cancellation stops new roots from being processed; roots
// already merged stay merged.
func (s *Scanner) Scan(ctx context.Context) (Summary, error) {
	start := time.Now()
	summary := Summary{}

	logf(s.cfg.Root, "walk")
	var files []classified
	traversal, err := walker.Walk(ctx, walker.Options{
		Root:           s.cfg.Root,
		ExcludeDirs:    s.cfg.ExcludeDirs,
		ExcludeExts:    s.cfg.ExcludeExts,
		MaxFileSize:    s.cfg.MaxFileSize,
		FollowSymlinks: s.cfg.FollowSymlinks,
		SkipHidden:     s.cfg.SkipHidden,
	}, func(fd walker.FileDescriptor) error {
		files = append(files, classified{fd: fd, result: classify.Classify(fd)})
		return nil
	})
	summary.TraversalWarnings = traversal
	summary.Warnings += len(traversal)
	summary.FilesSeen = len(files)
	if err != nil {
		summary.Duration = time.Since(start)
		return summary, err
	}

	groups := groupRoots(s.cfg.Root, files)
	dirReadmes, readmeWarnings := s.mineReadmes(files)
	logf(s.cfg.Root, "%d files, %d candidate roots", len(files), len(groups))

	now := time.Now().UTC()
	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Concurrency)

	for _, root := range sortedRoots(groups) {
		if ctx.Err() != nil {
			break
		}
		root := root
		group := groups[root]
		if readmeOnly(group) {
			continue
		}
		g.Go(func() error {
			if gctx.Err() != nil {
				return gctx.Err()
			}
			prior, _ := s.cat.Get(root)
			rec := s.assemble(root, group, prior, dirReadmes, readmeWarnings, now)

			changed := false
			added := s.cat.Upsert(rec, func(existing, incoming *catalog.Record) *catalog.Record {
				merged, didChange := mergeRescan(existing, incoming)
				changed = didChange
				return merged
			})

			mu.Lock()
			summary.RootsScanned++
			summary.Warnings += len(rec.Warnings)
			switch {
			case added:
				summary.Added++
			case changed:
				summary.Updated++
			default:
				summary.Unchanged++
			}
			mu.Unlock()
			logf(root, "done (%d files)", len(group))
			return nil
		})
	}

	err = g.Wait()
	if err == nil && ctx.Err() != nil {
		err = ctx.Err()
	}
	summary.Duration = time.Since(start)
	return summary, err
}

// readmeOnly reports whether a group holds nothing but documentation; such
// groups feed README mining of nearby datasets but are not datasets
// themselves.
func readmeOnly(group []classified) bool {
	for _, f := range group {
		if f.result.Tag != classify.Readme {
			return false
		}
	}
	return true
}

// mineReadmes extracts metadata from every README once, keyed by directory,
// so datasets can look up their nearest-ancestor description. Mining
// failures become warnings on the record that owns the file.
func (s *Scanner) mineReadmes(files []classified) (map[string][]readme.Extraction, map[string][]string) {
	byDir := make(map[string][]readme.Extraction)
	warnings := make(map[string][]string)
	for _, f := range files {
		if f.result.Tag != classify.Readme {
			continue
		}
		ext, err := readme.Mine(f.fd)
		if err != nil {
			dir := filepath.Dir(f.fd.Path)
			warnings[dir] = append(warnings[dir], err.Error())
			continue
		}
		byDir[filepath.Dir(f.fd.Path)] = append(byDir[filepath.Dir(f.fd.Path)], ext)
	}
	return byDir, warnings
}

// nearestReadmes walks from dir up to the scan root and returns the first
// directory level that has mined READMEs. A closer README always shadows a
// farther one entirely.
func (s *Scanner) nearestReadmes(dir string, byDir map[string][]readme.Extraction) []readme.Extraction {
	for {
		if exts, ok := byDir[dir]; ok {
			return exts
		}
		if dir == s.cfg.Root {
			return nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return nil
		}
		dir = parent
	}
}
