package config

import (
	"context"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

const reloadDebounce = 500 * time.Millisecond

// WatchSystemConfig watches the system config file and emits a freshly
// loaded SystemConfig after each debounced write. Files that fail to parse
// are logged and skipped. The channel closes when ctx is done.
func WatchSystemConfig(ctx context.Context, path string) <-chan *SystemConfig {
	out := make(chan *SystemConfig, 1)

	changes := watchFiles(ctx, path)
	go func() {
		defer close(out)
		for range changes {
			sys, err := ReadSystemConfig(path)
			if err != nil {
				slog.Warn("Ignoring invalid system config", "file", path, "error", err)
				continue
			}
			// Keep only the newest config if the consumer lags
			select {
			case <-out:
			default:
			}
			out <- sys
		}
	}()
	return out
}

// watchFiles emits once per debounced burst of writes to any of files.
func watchFiles(ctx context.Context, files ...string) <-chan struct{} {
	changeCh := make(chan struct{}, 1)

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		slog.Error("Failed to create fsnotify watcher", "error", err)
		close(changeCh)
		return changeCh
	}

	// Editors save atomically by rename, so the parent directory is
	// watched and events are filtered by name.
	targets := make(map[string]bool)
	for _, file := range files {
		absPath, err := filepath.Abs(file)
		if err != nil {
			slog.Warn("Could not resolve absolute path for watch file", "file", file)
			continue
		}
		targets[absPath] = true
		if err := watcher.Add(filepath.Dir(absPath)); err != nil {
			slog.Warn("Could not watch file", "file", file, "error", err)
		} else {
			slog.Debug("Watching configuration file", "file", file)
		}
	}

	go func() {
		defer watcher.Close()
		defer close(changeCh)

		timer := time.NewTimer(reloadDebounce)
		timer.Stop()
		defer timer.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if !targets[filepath.Clean(event.Name)] {
					continue
				}
				if event.Op.Has(fsnotify.Write) || event.Op.Has(fsnotify.Create) {
					timer.Reset(reloadDebounce)
				}
			case <-timer.C:
				slog.Info("Configuration change detected")
				select {
				case changeCh <- struct{}{}:
				default:
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				slog.Error("Watcher encountered an error", "error", err)
			}
		}
	}()

	return changeCh
}
