// Package watch triggers rescans when the watched tree changes. Filesystem
// events arrive in bursts (a copy touches every file it writes), so events
// are debounced into one rescan per quiet period.
package watch

import (
	"context"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is the quiet period required before a rescan fires.
const DefaultDebounce = 2 * time.Second

// Watcher watches a directory tree and invokes a callback after changes
// settle.
type Watcher struct {
	root     string
	debounce time.Duration
	onChange func(ctx context.Context) error
	fsw      *fsnotify.Watcher
}

// New creates a watcher over root. onChange runs after each settled burst
// of events; its error stops the watch loop.
func New(root string, debounce time.Duration, onChange func(ctx context.Context) error) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	w := &Watcher{root: root, debounce: debounce, onChange: onChange, fsw: fsw}
	if err := w.addTree(root); err != nil {
		fsw.Close()
		return nil, err
	}
	return w, nil
}

// addTree registers root and every subdirectory; fsnotify watches are not
// recursive on their own.
func (w *Watcher) addTree(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			// Unreadable subtrees are skipped, same as during a scan.
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if name := d.Name(); strings.HasPrefix(name, ".") && path != root {
			return filepath.SkipDir
		}
		return w.fsw.Add(path)
	})
}

// Run blocks until ctx is cancelled or the change callback fails. New
// directories created while watching are added to the watch set.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.fsw.Close()

	var timer *time.Timer
	var fire <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			if ev.Op.Has(fsnotify.Create) {
				// Best effort: if the new path is a directory, watch it too.
				w.fsw.Add(ev.Name)
			}
			if timer == nil {
				timer = time.NewTimer(w.debounce)
				fire = timer.C
			} else {
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				timer.Reset(w.debounce)
			}
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			logf(w.root, "watch error: %v", err)
		case <-fire:
			timer = nil
			fire = nil
			logf(w.root, "changes settled, rescanning")
			if err := w.onChange(ctx); err != nil {
				return err
			}
		}
	}
}
