// Package walker implements deterministic, read-only traversal of a NAS
// directory tree. It produces one FileDescriptor per regular file, in
// lexicographic path order, so repeated scans of an unchanged tree are
// diffable.
package walker

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// SignatureBytes is how much of a file head is captured for magic-byte
// sniffing. 512 covers every signature the classifier knows, including the
// tar ustar marker at offset 257.
const SignatureBytes = 512

// FileDescriptor describes a single regular file. Immutable once produced.
type FileDescriptor struct {
	Path      string    `json:"path"`     // absolute
	RelPath   string    `json:"rel_path"` // relative to the scan root
	Size      int64     `json:"size_bytes"`
	ModTime   time.Time `json:"modified_utc"`
	Ext       string    `json:"ext"` // lowercased, with leading dot
	Signature []byte    `json:"-"`   // first SignatureBytes bytes, may be short or nil
}

// Warning records a recovered traversal problem (permission denied, symlink
// cycle, unreadable head). The walk always continues past one.
type Warning struct {
	Path   string
	Reason string
}

func (w Warning) String() string { return w.Path + ": " + w.Reason }

// Options controls a traversal.
type Options struct {
	Root string

	// ExcludeDirs are directory names skipped wherever they appear
	// (matched case-insensitively against the base name).
	ExcludeDirs []string

	// ExcludeExts are file extensions (with leading dot) to skip.
	ExcludeExts []string

	// MaxFileSize skips files larger than this many bytes. 0 means no limit.
	MaxFileSize int64

	// FollowSymlinks enables descending into symlinked directories. Cycles
	// are detected via canonical paths and skipped with a warning.
	FollowSymlinks bool

	// SkipHidden skips dot-files and dot-directories.
	SkipHidden bool
}

// ErrStop can be returned from the visit callback to end the walk early
// without reporting an error.
var ErrStop = fmt.Errorf("walk stopped")

// Walk visits every reachable, non-excluded regular file under opts.Root in
// lexicographic path order and calls fn with its descriptor. Per-directory
// failures are recorded as warnings, never aborting the walk; only a missing
// root or a callback error ends it. The returned warnings are in visit order.
func Walk(ctx context.Context, opts Options, fn func(FileDescriptor) error) ([]Warning, error) {
	root, err := filepath.Abs(opts.Root)
	if err != nil {
		return nil, fmt.Errorf("resolve root: %w", err)
	}
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("scan root %s: %w", root, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("scan root %s is not a directory", root)
	}

	w := &walk{
		opts:    opts,
		root:    root,
		visited: make(map[string]bool),
		fn:      fn,
	}

	err = w.dir(ctx, root)
	if err == ErrStop {
		err = nil
	}
	return w.warnings, err
}

type walk struct {
	opts     Options
	root     string
	visited  map[string]bool // canonical paths of entered directories (FollowSymlinks only)
	warnings []Warning
	fn       func(FileDescriptor) error
}

func (w *walk) warn(path, reason string) {
	w.warnings = append(w.warnings, Warning{Path: path, Reason: reason})
}

func (w *walk) dir(ctx context.Context, dir string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	// Every directory gets its canonical path recorded before descent, so a
	// symlink back into any already-visited directory is caught, whether the
	// target was entered ordinarily or through another link.
	if w.opts.FollowSymlinks {
		canon, err := filepath.EvalSymlinks(dir)
		if err != nil {
			w.warn(dir, fmt.Sprintf("unresolvable path: %v", err))
			return nil
		}
		if w.visited[canon] {
			w.warn(dir, "symlink cycle: subtree already visited")
			return nil
		}
		w.visited[canon] = true
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		// A single unreadable directory must not abort the scan.
		w.warn(dir, fmt.Sprintf("skipped: %v", err))
		return nil
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	for _, entry := range entries {
		name := entry.Name()
		if w.opts.SkipHidden && strings.HasPrefix(name, ".") {
			continue
		}
		path := filepath.Join(dir, name)

		if entry.IsDir() {
			if w.excludedDir(name) {
				continue
			}
			if err := w.dir(ctx, path); err != nil {
				return err
			}
			continue
		}

		if entry.Type()&fs.ModeSymlink != 0 {
			if !w.opts.FollowSymlinks {
				continue
			}
			target, err := os.Stat(path)
			if err != nil {
				w.warn(path, fmt.Sprintf("broken symlink: %v", err))
				continue
			}
			if target.IsDir() {
				if w.excludedDir(name) {
					continue
				}
				if err := w.dir(ctx, path); err != nil {
					return err
				}
				continue
			}
			// Symlinked regular file: fall through with the target's info.
			if err := w.file(path, dir, target); err != nil {
				return err
			}
			continue
		}

		if !entry.Type().IsRegular() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			w.warn(path, fmt.Sprintf("stat failed: %v", err))
			continue
		}
		if err := w.file(path, dir, info); err != nil {
			return err
		}
	}
	return nil
}

func (w *walk) excludedDir(name string) bool {
	for _, ex := range w.opts.ExcludeDirs {
		if strings.EqualFold(ex, name) {
			return true
		}
	}
	return false
}

func (w *walk) file(path, dir string, info fs.FileInfo) error {
	ext := strings.ToLower(filepath.Ext(path))
	for _, ex := range w.opts.ExcludeExts {
		if strings.EqualFold(ex, ext) {
			return nil
		}
	}
	if w.opts.MaxFileSize > 0 && info.Size() > w.opts.MaxFileSize {
		return nil
	}

	rel, err := filepath.Rel(w.root, path)
	if err != nil {
		rel = path
	}
	fd := FileDescriptor{
		Path:    path,
		RelPath: rel,
		Size:    info.Size(),
		ModTime: info.ModTime().UTC(),
		Ext:     ext,
	}
	fd.Signature = w.signature(path)
	return w.fn(fd)
}

// signature reads the file head for magic-byte sniffing. Unreadable files
// still produce a descriptor; classification then falls back to extension.
func (w *walk) signature(path string) []byte {
	f, err := os.Open(path)
	if err != nil {
		w.warn(path, fmt.Sprintf("head unreadable: %v", err))
		return nil
	}
	defer f.Close()

	buf := make([]byte, SignatureBytes)
	n, err := io.ReadFull(f, buf)
	if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		w.warn(path, fmt.Sprintf("head unreadable: %v", err))
		return nil
	}
	return buf[:n]
}
