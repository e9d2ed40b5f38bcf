package scan

import (
	"path/filepath"
	"testing"

	"github.com/geonas-tools/nascat/internal/classify"
	"github.com/geonas-tools/nascat/internal/walker"
)

func cls(path string, tag classify.Tag) classified {
	return classified{fd: walker.FileDescriptor{Path: path}, result: classify.Result{Tag: tag}}
}

func TestGroupRoots(t *testing.T) {
	root := filepath.FromSlash("/nas")
	files := []classified{
		cls(filepath.FromSlash("/nas/cruise/obs.csv"), classify.Tabular),
		cls(filepath.FromSlash("/nas/cruise/README.md"), classify.Readme),
		cls(filepath.FromSlash("/nas/cruise/raw/dump.bin"), classify.Unknown),
		cls(filepath.FromSlash("/nas/loose.csv"), classify.Tabular),
		cls(filepath.FromSlash("/nas/docs/notes.pdf"), classify.Unknown),
	}
	groups := groupRoots(root, files)

	cruise := groups[filepath.FromSlash("/nas/cruise")]
	if len(cruise) != 3 {
		t.Errorf("cruise group: %d files, want 3 (readme and unknown attach upward)", len(cruise))
	}
	// The scan root holds a data file, so the loose file and the stray
	// docs file both attach to it as the nearest data-bearing ancestor.
	if got := groups[root]; len(got) != 2 {
		t.Errorf("root group: %+v", got)
	}
}

func TestGroupRootsLooseFilesWithoutData(t *testing.T) {
	root := filepath.FromSlash("/nas")
	loose := filepath.FromSlash("/nas/orphan.bin")
	groups := groupRoots(root, []classified{cls(loose, classify.Unknown)})
	if got, ok := groups[loose]; !ok || len(got) != 1 {
		t.Errorf("loose file should form its own root: %+v", groups)
	}
}

func TestGroupAssignmentIsTotal(t *testing.T) {
	root := filepath.FromSlash("/nas")
	files := []classified{
		cls(filepath.FromSlash("/nas/a/x.csv"), classify.Tabular),
		cls(filepath.FromSlash("/nas/a/b/y.nc"), classify.NDArray),
		cls(filepath.FromSlash("/nas/a/b/c/readme.txt"), classify.Readme),
	}
	groups := groupRoots(root, files)
	total := 0
	seen := map[string]bool{}
	for _, g := range groups {
		for _, f := range g {
			if seen[f.fd.Path] {
				t.Errorf("file %s in two groups", f.fd.Path)
			}
			seen[f.fd.Path] = true
			total++
		}
	}
	if total != len(files) {
		t.Errorf("assigned %d of %d files", total, len(files))
	}
	if len(groups[filepath.FromSlash("/nas/a/b")]) != 2 {
		t.Errorf("deep readme should attach to nearest data dir: %+v", groups)
	}
}
