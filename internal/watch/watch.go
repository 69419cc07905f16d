// Package watch runs the sync engine whenever the vault changes on disk.
package watch

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/vaultsyncd/vaultsyncd/internal/pathutil"
)

// Watcher observes a vault directory tree and invokes a callback after
// filesystem activity settles. An optional interval triggers periodic runs
// even without local activity, so remote-only changes are still picked up.
type Watcher struct {
	root     string
	matcher  *pathutil.Matcher
	debounce time.Duration
	interval time.Duration
	logger   *slog.Logger

	mu    sync.Mutex
	timer *time.Timer
}

// New creates a watcher for the vault rooted at dir. Events under ignored
// paths and under the state directory never trigger the callback.
func New(dir string, matcher *pathutil.Matcher, debounce, interval time.Duration, logger *slog.Logger) *Watcher {
	return &Watcher{
		root:     dir,
		matcher:  matcher,
		debounce: debounce,
		interval: interval,
		logger:   logger,
	}
}

// Run watches until the context is cancelled, calling onChange after each
// settled burst of events. New subdirectories are added to the watch as
// they appear.
func (w *Watcher) Run(ctx context.Context, onChange func()) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer func() {
		_ = fsw.Close()
	}()

	if err := w.addRecursive(fsw, w.root); err != nil {
		return err
	}

	var ticker *time.Ticker
	var tick <-chan time.Time
	if w.interval > 0 {
		ticker = time.NewTicker(w.interval)
		tick = ticker.C
		defer ticker.Stop()
	}

	w.logger.Info("watching vault", "dir", w.root, "debounce", w.debounce)

	for {
		select {
		case <-ctx.Done():
			w.stopTimer()
			return ctx.Err()

		case event, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			rel, skip := w.relevantPath(event.Name)
			if skip {
				continue
			}
			// Watch directories created after startup.
			if event.Op.Has(fsnotify.Create) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					_ = w.addRecursive(fsw, event.Name)
				}
			}
			w.logger.Debug("vault changed", "path", rel, "op", event.Op.String())
			w.schedule(onChange)

		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watch error", "error", err)

		case <-tick:
			w.logger.Debug("interval sync")
			onChange()
		}
	}
}

// relevantPath maps an absolute event path to a vault-relative path and
// reports whether the event should be dropped.
func (w *Watcher) relevantPath(name string) (string, bool) {
	rel, err := filepath.Rel(w.root, name)
	if err != nil {
		return "", true
	}
	rel = pathutil.Normalize(rel)
	if rel == "." || strings.HasPrefix(rel, "..") {
		return "", true
	}
	if w.matcher.Matches(rel) {
		return "", true
	}
	return rel, false
}

func (w *Watcher) addRecursive(fsw *fsnotify.Watcher, dir string) error {
	return filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if rel, skip := w.relevantPath(path); skip && path != dir {
			w.logger.Debug("not watching ignored directory", "path", rel)
			return filepath.SkipDir
		}
		if err := fsw.Add(path); err != nil {
			return fmt.Errorf("failed to watch %s: %w", path, err)
		}
		return nil
	})
}

func (w *Watcher) schedule(onChange func()) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, onChange)
}

func (w *Watcher) stopTimer() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
	}
}
