package config

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/arcade-market/media-api/pkg/logging"
)

const reloadDebounce = 250 * time.Millisecond

// Watch reloads the file at path whenever it changes and hands valid configurations to onChange.
// Invalid edits are logged and skipped. The parent directory is watched so editors that
// replace the file by rename are picked up. Watch blocks until ctx is done.
func Watch(ctx context.Context, path string, onChange func(*Config)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		return err
	}

	var timer *time.Timer
	reload := make(chan struct{}, 1)

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != abs {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(reloadDebounce, func() {
				select {
				case reload <- struct{}{}:
				default:
				}
			})

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logging.Logger.Warn("Config watcher error", zap.Error(err))

		case <-reload:
			// Load falls back to defaults for a missing file; a running
			// service keeps its configuration until the file is back.
			if _, err := os.Stat(path); err != nil {
				logging.Logger.Warn("Configuration file unavailable, keeping current configuration",
					zap.String("path", path),
					zap.Error(err))
				continue
			}
			cfg, err := Load(path)
			if err != nil {
				logging.Logger.Warn("Ignoring invalid configuration change",
					zap.String("path", path),
					zap.Error(err))
				continue
			}
			logging.Logger.Info("Configuration reloaded", zap.String("path", path))
			onChange(cfg)
		}
	}
}
