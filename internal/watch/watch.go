// Package watch notices writes to the host collection file made outside
// flashdesk, such as reviews done in the desktop application.
package watch

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce groups bursts of writes into one callback.
const DefaultDebounce = 300 * time.Millisecond

// ChangeCallback is called once per debounced burst with the last path seen.
type ChangeCallback func(path string)

// Watch watches the directory of collectionPath and calls cb after writes,
// creations or renames of the collection file or its -wal sibling. It
// returns when ctx is cancelled.
func Watch(ctx context.Context, collectionPath string, debounce time.Duration, logger *slog.Logger, cb ChangeCallback) error {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	abs, err := filepath.Abs(collectionPath)
	if err != nil {
		return fmt.Errorf("watch: resolve %s: %w", collectionPath, err)
	}
	targets := map[string]bool{
		abs:          true,
		abs + "-wal": true,
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("watch: %w", err)
	}
	defer w.Close()

	dir := filepath.Dir(abs)
	if err := w.Add(dir); err != nil {
		return fmt.Errorf("watch: add %s: %w", dir, err)
	}
	logger.Info("watcher: started", slog.String("path", abs))

	var timer *time.Timer
	var timerCh <-chan time.Time
	var lastPath string

	schedule := func() {
		if timer == nil {
			timer = time.NewTimer(debounce)
			timerCh = timer.C
		} else {
			timer.Reset(debounce)
		}
	}

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			logger.Info("watcher: stopped")
			return nil

		case <-timerCh:
			logger.Debug("watcher: collection changed", slog.String("path", lastPath))
			if cb != nil {
				cb(lastPath)
			}

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if !targets[filepath.Clean(ev.Name)] {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			lastPath = ev.Name
			schedule()

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Error("watcher: error", slog.String("error", watchErr.Error()))
		}
	}
}
