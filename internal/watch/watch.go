// Package watch reports batches of changed source files under a set of
// roots. Events are debounced: a batch is delivered once the roots have been
// quiet for the debounce interval.
package watch

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/jward/stackgraphs/internal/discover"
)

// DefaultDebounce is used when Config.Debounce is zero.
const DefaultDebounce = 300 * time.Millisecond

// Config configures a Watcher.
type Config struct {
	// Roots are the directories to watch recursively.
	Roots []string

	// Debounce is how long the roots must be quiet before a batch is sent.
	Debounce time.Duration

	// Filter reports whether a changed file is of interest. Nil accepts all.
	Filter func(path string) bool

	Logger *slog.Logger
}

// ChangeFunc handles one batch of changed paths, sorted. Removed files are
// included. An error is logged and watching continues.
type ChangeFunc func(ctx context.Context, paths []string) error

// Watcher watches directories for source file changes.
type Watcher struct {
	config  Config
	watcher *fsnotify.Watcher
	logger  *slog.Logger
	pending map[string]fsnotify.Op
}

// New creates a Watcher and adds watches for every directory under the
// roots.
func New(config Config) (*Watcher, error) {
	if len(config.Roots) == 0 {
		return nil, errors.New("watch: no roots")
	}
	if config.Debounce <= 0 {
		config.Debounce = DefaultDebounce
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("watch: %w", err)
	}
	w := &Watcher{
		config:  config,
		watcher: fsw,
		logger:  logger,
		pending: make(map[string]fsnotify.Op),
	}
	for _, r := range config.Roots {
		root, err := discover.Canonical(r)
		if err != nil {
			fsw.Close()
			return nil, fmt.Errorf("watch: %w", err)
		}
		info, err := os.Stat(root)
		if err != nil {
			fsw.Close()
			return nil, fmt.Errorf("watch: stat root: %w", err)
		}
		if !info.IsDir() {
			if err := fsw.Add(filepath.Dir(root)); err != nil {
				fsw.Close()
				return nil, fmt.Errorf("watch: %w", err)
			}
			continue
		}
		if err := w.addRecursive(root, false); err != nil {
			fsw.Close()
			return nil, err
		}
	}
	return w, nil
}

// Close releases the underlying watches.
func (w *Watcher) Close() error {
	return w.watcher.Close()
}

// Run delivers batches to onChange until ctx is done. Batches are handled
// in the Run goroutine, so a slow handler delays the next batch rather than
// overlapping with it.
func (w *Watcher) Run(ctx context.Context, onChange ChangeFunc) error {
	w.logger.Info("watch.started", "roots", w.config.Roots, "debounce", w.config.Debounce)

	timer := time.NewTimer(w.config.Debounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if w.handle(event) {
				timer.Reset(w.config.Debounce)
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Error("watch.error", "error", err)

		case <-timer.C:
			paths := w.flush()
			if len(paths) == 0 {
				continue
			}
			w.logger.Debug("watch.batch", "files", len(paths))
			if err := onChange(ctx, paths); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				w.logger.Warn("watch.handler.failed", "files", len(paths), "error", err)
			}
		}
	}
}

// handle records event and reports whether anything became pending.
func (w *Watcher) handle(event fsnotify.Event) bool {
	path := event.Name
	if event.Has(fsnotify.Create) {
		if info, err := os.Stat(path); err == nil && info.IsDir() {
			if discover.SkipDir(filepath.Base(path)) {
				return false
			}
			// Files can land in a new directory before its watch is added.
			if err := w.addRecursive(path, true); err != nil {
				w.logger.Warn("watch.add.failed", "path", path, "error", err)
			}
			return len(w.pending) > 0
		}
	}
	if event.Op == fsnotify.Chmod || !w.accept(path) {
		return false
	}
	w.pending[path] |= event.Op
	w.logger.Debug("watch.event", "path", path, "op", event.Op.String())
	return true
}

func (w *Watcher) accept(path string) bool {
	return w.config.Filter == nil || w.config.Filter(path)
}

// addRecursive watches dir and every directory below it. With collect set,
// files already present are recorded as pending creations.
func (w *Watcher) addRecursive(dir string, collect bool) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == dir {
				return fmt.Errorf("watch: walk %s: %w", dir, err)
			}
			return nil
		}
		if !d.IsDir() {
			if collect && d.Type().IsRegular() && w.accept(path) {
				w.pending[path] |= fsnotify.Create
			}
			return nil
		}
		if path != dir && discover.SkipDir(d.Name()) {
			return filepath.SkipDir
		}
		if err := w.watcher.Add(path); err != nil {
			w.logger.Warn("watch.add.failed", "path", path, "error", err)
			return nil
		}
		w.logger.Debug("watch.dir", "path", path)
		return nil
	})
}

func (w *Watcher) flush() []string {
	paths := make([]string, 0, len(w.pending))
	for p := range w.pending {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	w.pending = make(map[string]fsnotify.Op)
	return paths
}
