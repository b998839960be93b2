package ingest

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/codeatlas-ai/codeatlas/internal/types"
)

// DefaultWatchDebounce coalesces filesystem event bursts when the
// config leaves the debounce unset.
const DefaultWatchDebounce = 2 * time.Second

// Watcher re-runs the ingestion pipeline when the source tree changes.
// Events are debounced so an editor save burst triggers one run, and
// runs are safe to repeat because the pipeline is idempotent.
type Watcher struct {
	root     string
	debounce time.Duration
	run      func(ctx context.Context) error
	logger   *slog.Logger
}

// NewWatcher creates a watcher over root that calls run after each
// debounced change burst.
func NewWatcher(root string, debounce time.Duration, run func(ctx context.Context) error, logger *slog.Logger) *Watcher {
	if debounce <= 0 {
		debounce = DefaultWatchDebounce
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Watcher{root: root, debounce: debounce, run: run, logger: logger}
}

// Watch blocks until ctx is cancelled, running the pipeline after each
// debounced batch of filesystem events.
func (w *Watcher) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return types.WrapError(ErrCodeWatchFailed, "failed to create filesystem watcher", err)
	}
	defer watcher.Close()

	if err := addWatchDirs(watcher, w.root); err != nil {
		return err
	}

	w.logger.Info("watching for changes",
		"root", w.root,
		"debounce", w.debounce)

	var timer *time.Timer
	var timerC <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-watcher.Events:
			if !ok {
				return types.NewError(ErrCodeWatchFailed, "watcher event channel closed")
			}
			if skipWatchPath(event.Name) {
				continue
			}

			// New directories need their own watch before events inside
			// them can arrive.
			if event.Op.Has(fsnotify.Create) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					_ = addWatchDirs(watcher, event.Name)
				}
			}

			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				timer.Reset(w.debounce)
			}
			timerC = timer.C

		case <-timerC:
			timerC = nil
			w.logger.Info("source changed, re-running ingestion", "root", w.root)
			if err := w.run(ctx); err != nil {
				// A failed run is logged, not fatal: the next change gets
				// a fresh attempt and re-runs are idempotent.
				w.logger.Error("ingestion run failed", "error", err)
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return types.NewError(ErrCodeWatchFailed, "watcher error channel closed")
			}
			w.logger.Warn("filesystem watcher error", "error", err)
		}
	}
}

// addWatchDirs registers root and every non-hidden, non-vendor
// subdirectory with the watcher.
func addWatchDirs(watcher *fsnotify.Watcher, root string) error {
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && skipWatchPath(path) {
			return filepath.SkipDir
		}
		return watcher.Add(path)
	})
	if err != nil {
		return types.WrapError(ErrCodeWatchFailed, "failed to register watch directories", err)
	}
	return nil
}

// skipWatchPath filters vendor trees and hidden files or directories.
func skipWatchPath(path string) bool {
	base := filepath.Base(path)
	if base == "vendor" || base == "node_modules" {
		return true
	}
	return strings.HasPrefix(base, ".") && base != "." && base != ".."
}
