package walker

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

func collect(t *testing.T, opts Options) ([]FileDescriptor, []Warning) {
	t.Helper()
	var fds []FileDescriptor
	warnings, err := Walk(context.Background(), opts, func(fd FileDescriptor) error {
		fds = append(fds, fd)
		return nil
	})
	if err != nil {
		t.Fatalf("Walk failed: %v", err)
	}
	return fds, warnings
}

func writeFile(t *testing.T, path string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func TestWalkVisitsEveryFileInLexicographicOrder(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"b/two.csv", "b/one.csv", "a/deep/three.nc", "zzz.txt"} {
		writeFile(t, filepath.Join(dir, name))
	}

	fds, warnings := collect(t, Options{Root: dir})
	if len(warnings) != 0 {
		t.Fatalf("unexpected warnings: %v", warnings)
	}

	want := []string{
		filepath.Join("a", "deep", "three.nc"),
		filepath.Join("b", "one.csv"),
		filepath.Join("b", "two.csv"),
		"zzz.txt",
	}
	if len(fds) != len(want) {
		t.Fatalf("got %d files, want %d", len(fds), len(want))
	}
	for i, fd := range fds {
		if fd.RelPath != want[i] {
			t.Errorf("position %d: got %s, want %s", i, fd.RelPath, want[i])
		}
	}
}

func TestWalkRepeatedScansAreIdentical(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "sub", "data.csv"))
	writeFile(t, filepath.Join(dir, "readme.txt"))

	first, _ := collect(t, Options{Root: dir})
	second, _ := collect(t, Options{Root: dir})
	if len(first) != len(second) {
		t.Fatalf("scan lengths differ: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i].Path != second[i].Path {
			t.Errorf("position %d differs: %s vs %s", i, first[i].Path, second[i].Path)
		}
	}
}

func TestWalkExclusions(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, ".git", "config"))
	writeFile(t, filepath.Join(dir, "data", "keep.csv"))
	writeFile(t, filepath.Join(dir, "data", "skip.tmp"))
	writeFile(t, filepath.Join(dir, ".hidden.csv"))

	fds, _ := collect(t, Options{
		Root:        dir,
		ExcludeDirs: []string{".git"},
		ExcludeExts: []string{".tmp"},
		SkipHidden:  true,
	})
	if len(fds) != 1 {
		t.Fatalf("got %d files, want 1: %+v", len(fds), fds)
	}
	if fds[0].RelPath != filepath.Join("data", "keep.csv") {
		t.Errorf("unexpected survivor: %s", fds[0].RelPath)
	}
}

func TestWalkMaxFileSize(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "big.bin"), make([]byte, 4096), 0o644); err != nil {
		t.Fatal(err)
	}
	writeFile(t, filepath.Join(dir, "small.csv"))

	fds, _ := collect(t, Options{Root: dir, MaxFileSize: 1024})
	if len(fds) != 1 || fds[0].RelPath != "small.csv" {
		t.Fatalf("size cap not applied: %+v", fds)
	}
}

func TestWalkSymlinkCycleTerminates(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("symlinks need privileges on windows")
	}
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "nest", "data.csv"))
	if err := os.Symlink(dir, filepath.Join(dir, "nest", "loop")); err != nil {
		t.Skipf("symlink not supported: %v", err)
	}

	fds, warnings := collect(t, Options{Root: dir, FollowSymlinks: true})
	if len(fds) != 1 {
		t.Fatalf("got %d files, want 1", len(fds))
	}
	var cycle bool
	for _, w := range warnings {
		if w.Reason == "symlink cycle: subtree already visited" {
			cycle = true
		}
	}
	if !cycle {
		t.Errorf("expected a symlink cycle warning, got %v", warnings)
	}
}

func TestWalkSymlinkToAncestorVisitsOnce(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("symlinks need privileges on windows")
	}
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "nest", "data.csv"))
	// Link back into a non-root ancestor, not the scan root itself.
	if err := os.Symlink(filepath.Join(dir, "nest"), filepath.Join(dir, "nest", "loop")); err != nil {
		t.Skipf("symlink not supported: %v", err)
	}

	fds, warnings := collect(t, Options{Root: dir, FollowSymlinks: true})
	seen := make(map[string]int)
	for _, fd := range fds {
		seen[filepath.Base(fd.Path)]++
	}
	if len(fds) != 1 || seen["data.csv"] != 1 {
		t.Fatalf("data.csv visited %d times, want exactly once: %+v", seen["data.csv"], fds)
	}
	var cycle bool
	for _, w := range warnings {
		if w.Reason == "symlink cycle: subtree already visited" {
			cycle = true
		}
	}
	if !cycle {
		t.Errorf("expected a symlink cycle warning, got %v", warnings)
	}
}

func TestWalkUnreadableDirIsSkippedWithWarning(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("permission checks do not apply to root")
	}
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "ok", "data.csv"))
	locked := filepath.Join(dir, "locked")
	writeFile(t, filepath.Join(locked, "secret.csv"))
	if err := os.Chmod(locked, 0o000); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.Chmod(locked, 0o755) })

	fds, warnings := collect(t, Options{Root: dir})
	if len(fds) != 1 {
		t.Fatalf("got %d files, want 1", len(fds))
	}
	if len(warnings) == 0 {
		t.Error("expected a warning for the unreadable directory")
	}
}

func TestWalkSignatureCapturesFileHead(t *testing.T) {
	dir := t.TempDir()
	content := []byte("CDF\x01 rest of header")
	if err := os.WriteFile(filepath.Join(dir, "model.nc"), content, 0o644); err != nil {
		t.Fatal(err)
	}

	fds, _ := collect(t, Options{Root: dir})
	if len(fds) != 1 {
		t.Fatalf("got %d files", len(fds))
	}
	if string(fds[0].Signature) != string(content) {
		t.Errorf("signature mismatch: %q", fds[0].Signature)
	}
	if fds[0].Ext != ".nc" {
		t.Errorf("ext: got %q", fds[0].Ext)
	}
}

func TestWalkCancellation(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a.csv"))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Walk(ctx, Options{Root: dir}, func(FileDescriptor) error { return nil })
	if err == nil {
		t.Error("expected context error from cancelled walk")
	}
}
