// Package watch re-runs the template build when the project manifest, a
// template input, or a recorded dependency changes. Directories are watched
// rather than individual files, and rapid event bursts are debounced into a
// single rebuild.
package watch

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// RebuildFunc runs one build and returns every path the next rebuild should
// be triggered by: the manifest, template inputs, and discovered
// dependencies.
type RebuildFunc func(ctx context.Context) ([]string, error)

// Watcher monitors build inputs and triggers rebuilds.
type Watcher struct {
	manifestPath string
	rebuild      RebuildFunc
	watcher      *fsnotify.Watcher
	debounceTime time.Duration
	logger       *slog.Logger
}

// NewWatcher creates a watcher around a rebuild function.
func NewWatcher(manifestPath string, rebuild RebuildFunc) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create file watcher: %w", err)
	}

	absPath, err := filepath.Abs(manifestPath)
	if err != nil {
		fsw.Close()
		return nil, fmt.Errorf("resolve manifest path: %w", err)
	}

	return &Watcher{
		manifestPath: absPath,
		rebuild:      rebuild,
		watcher:      fsw,
		debounceTime: 500 * time.Millisecond,
		logger:       slog.Default(),
	}, nil
}

// WithLogger sets a custom logger.
func (w *Watcher) WithLogger(logger *slog.Logger) *Watcher {
	w.logger = logger
	return w
}

// Run performs an initial build, then blocks rebuilding on changes until the
// context is cancelled. Build failures do not stop the watch loop; the next
// change triggers another attempt.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.watcher.Close()

	w.runBuild(ctx)
	w.logger.Info("Watching for changes", "manifest", w.manifestPath)

	var debounce *time.Timer
	var fire <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if !relevant(event) {
				continue
			}
			w.logger.Debug("Change detected", "path", event.Name, "op", event.Op.String())
			if debounce == nil {
				debounce = time.NewTimer(w.debounceTime)
				fire = debounce.C
			} else {
				debounce.Reset(w.debounceTime)
			}

		case <-fire:
			debounce = nil
			fire = nil
			w.runBuild(ctx)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("File watcher error", "error", err)
		}
	}
}

func relevant(event fsnotify.Event) bool {
	return event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) != 0
}

// runBuild executes one rebuild and refreshes the watched directory set
// from the paths it reports.
func (w *Watcher) runBuild(ctx context.Context) {
	paths, err := w.rebuild(ctx)
	if err != nil {
		w.logger.Error("Build failed, still watching", "error", err)
	}
	w.updateWatches(paths)
}

// updateWatches watches the directory of every reported path plus the
// manifest's directory. Directories already watched are skipped; fsnotify
// treats duplicate adds as no-ops, so no bookkeeping of removals is needed.
func (w *Watcher) updateWatches(paths []string) {
	dirs := map[string]bool{filepath.Dir(w.manifestPath): true}
	for _, p := range paths {
		dirs[filepath.Dir(p)] = true
	}
	for dir := range dirs {
		if err := w.watcher.Add(dir); err != nil {
			w.logger.Warn("Cannot watch directory", "dir", dir, "error", err)
		}
	}
}
