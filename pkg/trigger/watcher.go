package trigger

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/platinummonkey/geoqc/pkg/observability"
)

// DefaultDebounce is how long the watcher waits for changes to settle
const DefaultDebounce = 500 * time.Millisecond

// RunFunc performs one validation run
type RunFunc func(ctx context.Context) error

// Watcher re-runs validation whenever files under a path change. Bursts of
// events are collapsed into a single run once the path has been quiet for
// the debounce interval. Runs never overlap.
type Watcher struct {
	path       string
	run        RunFunc
	logger     *observability.Logger
	debounce   time.Duration
	initialRun bool
}

// WatcherOption configures a Watcher
type WatcherOption func(*Watcher)

// WithDebounce sets the quiet period before a run
func WithDebounce(d time.Duration) WatcherOption {
	return func(w *Watcher) {
		if d > 0 {
			w.debounce = d
		}
	}
}

// WithInitialRun runs once as soon as the watcher starts
func WithInitialRun() WatcherOption {
	return func(w *Watcher) {
		w.initialRun = true
	}
}

// WithWatcherLogger sets the logger
func WithWatcherLogger(l *observability.Logger) WatcherOption {
	return func(w *Watcher) {
		if l != nil {
			w.logger = l
		}
	}
}

// NewWatcher creates a watcher for path, which may be a dataset file or a
// workspace directory
func NewWatcher(path string, run RunFunc, opts ...WatcherOption) (*Watcher, error) {
	if run == nil {
		return nil, fmt.Errorf("run function is required")
	}
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("cannot watch %s: %w", path, err)
	}
	w := &Watcher{
		path:     filepath.Clean(path),
		run:      run,
		logger:   observability.NewLogger(observability.InfoLevel, observability.FormatText, nil),
		debounce: DefaultDebounce,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// Run watches until ctx is done. Failed runs are logged and do not stop the
// watcher.
func (w *Watcher) Run(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer fsw.Close()

	info, err := os.Stat(w.path)
	if err != nil {
		return fmt.Errorf("cannot watch %s: %w", w.path, err)
	}
	// a single dataset is watched through its directory so that editors
	// replacing the file are still seen
	target := ""
	if info.IsDir() {
		err = addTree(fsw, w.path)
	} else {
		target = w.path
		err = fsw.Add(filepath.Dir(w.path))
	}
	if err != nil {
		return fmt.Errorf("failed to watch %s: %w", w.path, err)
	}
	w.logger.WithField("path", w.path).Infof("Watching for changes (debounce %s)", w.debounce)

	if w.initialRun {
		w.trigger(ctx, "initial")
	}

	var (
		timer *time.Timer
		fire  <-chan time.Time
		last  string
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			if event.Op&fsnotify.Create != 0 && target == "" {
				if fi, err := os.Stat(event.Name); err == nil && fi.IsDir() {
					if err := addTree(fsw, event.Name); err != nil {
						w.logger.WithError(err).Warnf("Cannot watch new directory %s", event.Name)
					}
				}
			}
			if !relevant(event, target) {
				continue
			}
			w.logger.Debugf("Change detected: %s %s", event.Op, event.Name)
			last = event.Name
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				timer.Reset(w.debounce)
			}
			fire = timer.C

		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.WithError(err).Warn("Watcher error")

		case <-fire:
			fire = nil
			w.trigger(ctx, last)
		}
	}
}

func (w *Watcher) trigger(ctx context.Context, reason string) {
	if ctx.Err() != nil {
		return
	}
	defer observability.RecoverPanic(w.logger, "watch run")

	logger := w.logger.WithField("trigger", reason)
	logger.Info("Running validation")
	if err := w.run(ctx); err != nil {
		logger.WithError(err).Error("Validation run failed")
	}
}

// relevant filters out attribute-only changes, hidden files and the
// journals and backups that editors and sqlite leave next to datasets
func relevant(event fsnotify.Event, target string) bool {
	if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
		return false
	}
	if target != "" {
		return filepath.Clean(event.Name) == target
	}
	base := filepath.Base(event.Name)
	if strings.HasPrefix(base, ".") || strings.HasSuffix(base, "~") {
		return false
	}
	for _, suffix := range []string{".swp", ".tmp", "-journal", "-wal", "-shm"} {
		if strings.HasSuffix(base, suffix) {
			return false
		}
	}
	return true
}

// addTree watches root and every directory below it
func addTree(fsw *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		return fsw.Add(path)
	})
}
