package scan

import (
	"path/filepath"
	"sort"

	"github.com/geonas-tools/nascat/internal/classify"
	"github.com/geonas-tools/nascat/internal/walker"
)

// classified pairs a walked file with its classification.
type classified struct {
	fd     walker.FileDescriptor
	result classify.Result
}

func (c classified) isData() bool {
	return c.result.Tag != classify.Readme && c.result.Tag != classify.Unknown
}

// groupRoots assigns every file to exactly one dataset root.
//
// A directory directly containing at least one recognized data file is a
// dataset root; each file belongs to the nearest such ancestor (its own
// directory included). Files with no data-bearing ancestor form a root of
// their own: per file when they sit directly in the scan root, per
// directory otherwise. The assignment is total and deterministic, so
// repeated scans group identically.
func groupRoots(scanRoot string, files []classified) map[string][]classified {
	dataDirs := make(map[string]bool)
	for _, f := range files {
		if f.isData() {
			dataDirs[filepath.Dir(f.fd.Path)] = true
		}
	}

	groups := make(map[string][]classified)
	for _, f := range files {
		root := ""
		dir := filepath.Dir(f.fd.Path)
		for {
			if dataDirs[dir] {
				root = dir
				break
			}
			if dir == scanRoot {
				break
			}
			parent := filepath.Dir(dir)
			if parent == dir {
				break
			}
			dir = parent
		}
		if root == "" {
			if d := filepath.Dir(f.fd.Path); d == scanRoot {
				root = f.fd.Path
			} else {
				root = d
			}
		}
		groups[root] = append(groups[root], f)
	}

	for _, group := range groups {
		sort.Slice(group, func(i, j int) bool { return group[i].fd.Path < group[j].fd.Path })
	}
	return groups
}

// sortedRoots returns group keys in lexicographic order, for deterministic
// work submission.
func sortedRoots(groups map[string][]classified) []string {
	roots := make([]string, 0, len(groups))
	for root := range groups {
		roots = append(roots, root)
	}
	sort.Strings(roots)
	return roots
}
