package schemas

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watch reloads path into set whenever the file changes, until ctx is done.
//
// The parent directory is watched so that editors which replace the file
// (write to temp, rename) are picked up. A file that fails to load is logged
// and the previous schemas stay in place.
func Watch(ctx context.Context, path string, set *Set, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("watch schemas: %w", err)
	}
	defer watcher.Close()

	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("watch schemas: %w", err)
	}
	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		return fmt.Errorf("watch schemas: %w", err)
	}

	// Events arrive in bursts; reload once they settle.
	const settle = 100 * time.Millisecond
	timer := time.NewTimer(settle)
	timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != abs {
				continue
			}
			if ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) || ev.Has(fsnotify.Rename) {
				timer.Reset(settle)
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("schema watcher error", "error", err)

		case <-timer.C:
			defs, err := Load(abs)
			if err != nil {
				logger.Error("schema reload failed, keeping previous schemas", "path", abs, "error", err)
				continue
			}
			set.Replace(defs)
			logger.Info("schemas reloaded", "path", abs, "count", len(defs))
		}
	}
}
