// Package watcher feeds file-system changes under a project root into the change queue.
package watcher

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/hyperjump/semindex/internal/queue"
)

// Notifier receives change notifications. *queue.Queue implements it.
type Notifier interface {
	Notify(path string, kind queue.EventKind) bool
}

// Watcher watches a project root recursively. Directories for which skip returns true
// (typically excluded globs and the state root) are never watched.
type Watcher struct {
	root     string
	notifier Notifier
	skip     func(relDir string) bool
	logger   *zap.Logger

	mu       sync.Mutex
	watcher  *fsnotify.Watcher
	dirs     map[string]bool
	done     chan struct{}
	started  bool
	stopOnce sync.Once
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithLogger sets a logger for debug output.
func WithLogger(l *zap.Logger) Option {
	return func(w *Watcher) { w.logger = l }
}

// WithSkipDir sets the predicate for directories that must not be watched. It receives
// slash-separated paths relative to the root.
func WithSkipDir(fn func(relDir string) bool) Option {
	return func(w *Watcher) { w.skip = fn }
}

// New returns a watcher for root that forwards events to n.
func New(root string, n Notifier, opts ...Option) *Watcher {
	w := &Watcher{
		root:     filepath.Clean(root),
		notifier: n,
		skip:     func(string) bool { return false },
		dirs:     make(map[string]bool),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.logger == nil {
		w.logger = zap.NewNop()
	}
	return w
}

// Start begins watching. It runs until ctx is cancelled or Stop is called.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.started {
		w.mu.Unlock()
		return nil
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		w.mu.Unlock()
		return err
	}
	w.watcher = fsw
	w.started = true
	if err := w.addTreeLocked(w.root); err != nil {
		_ = fsw.Close()
		w.watcher = nil
		w.started = false
		w.mu.Unlock()
		return err
	}
	w.logger.Debug("watcher started", zap.String("root", w.root), zap.Int("dirs", len(w.dirs)))
	w.mu.Unlock()
	go w.run(ctx, fsw)
	return nil
}

func (w *Watcher) run(ctx context.Context, fsw *fsnotify.Watcher) {
	for {
		select {
		case <-ctx.Done():
			w.Stop()
			return
		case <-w.done:
			return
		case ev, ok := <-fsw.Events:
			if !ok {
				return
			}
			w.handleEvent(ev)
		case err, ok := <-fsw.Errors:
			if !ok {
				return
			}
			if err != nil {
				w.logger.Debug("watcher error", zap.Error(err))
			}
		}
	}
}

func (w *Watcher) handleEvent(ev fsnotify.Event) {
	path := filepath.Clean(ev.Name)
	rel, ok := w.rel(path)
	if !ok {
		return
	}
	w.logger.Debug("watcher event", zap.String("op", ev.Op.String()), zap.String("path", rel))

	switch {
	case ev.Has(fsnotify.Create):
		if w.isDir(path) {
			w.handleNewDirectory(path)
			return
		}
		w.notifier.Notify(path, queue.EventCreate)
	case ev.Has(fsnotify.Write):
		w.notifier.Notify(path, queue.EventWrite)
	case ev.Has(fsnotify.Remove):
		w.forgetDir(path)
		w.notifier.Notify(path, queue.EventRemove)
	case ev.Has(fsnotify.Rename):
		w.forgetDir(path)
		w.notifier.Notify(path, queue.EventRename)
	case ev.Has(fsnotify.Chmod):
		w.notifier.Notify(path, queue.EventChmod)
	}
}

// handleNewDirectory watches a directory created or moved under the root and reports
// the files already inside it, which were written before the watch was in place.
func (w *Watcher) handleNewDirectory(dir string) {
	w.mu.Lock()
	if w.watcher == nil {
		w.mu.Unlock()
		return
	}
	if err := w.addTreeLocked(dir); err != nil {
		w.logger.Debug("watcher failed to add directory", zap.String("path", dir), zap.Error(err))
	}
	w.mu.Unlock()

	_ = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if rel, ok := w.rel(path); ok && rel != "." && w.skip(rel) {
				return filepath.SkipDir
			}
			return nil
		}
		w.notifier.Notify(path, queue.EventCreate)
		return nil
	})
}

// addTreeLocked watches dir and its subdirectories, pruning skipped ones.
func (w *Watcher) addTreeLocked(dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == dir {
				return err
			}
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if rel, ok := w.rel(path); ok && rel != "." && w.skip(rel) {
			return filepath.SkipDir
		}
		if w.dirs[path] {
			return nil
		}
		if err := w.watcher.Add(path); err != nil {
			if path == dir {
				return err
			}
			w.logger.Debug("watcher failed to add directory", zap.String("path", path), zap.Error(err))
			return nil
		}
		w.dirs[path] = true
		return nil
	})
}

func (w *Watcher) forgetDir(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	prefix := path + string(filepath.Separator)
	for d := range w.dirs {
		if d == path || strings.HasPrefix(d, prefix) {
			delete(w.dirs, d)
		}
	}
}

func (w *Watcher) isDir(path string) bool {
	info, err := os.Lstat(path)
	return err == nil && info.IsDir()
}

func (w *Watcher) rel(path string) (string, bool) {
	return relTo(w.root, path)
}

func relTo(root, path string) (string, bool) {
	rel, err := filepath.Rel(root, path)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", false
	}
	return filepath.ToSlash(rel), true
}

// Dirs returns the number of watched directories.
func (w *Watcher) Dirs() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.dirs)
}

// Stop stops the watcher and releases resources.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if !w.started || w.watcher == nil {
		w.mu.Unlock()
		return
	}
	_ = w.watcher.Close()
	w.watcher = nil
	w.started = false
	w.dirs = make(map[string]bool)
	w.mu.Unlock()
	w.stopOnce.Do(func() { close(w.done) })
}
