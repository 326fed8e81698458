package config

import (
	"context"

	"modkit/pkg/logging"

	"github.com/fsnotify/fsnotify"
)

// WatchFile runs a background task, cancelled by ctx, that logs a notice
// whenever configPath changes on disk. It does not hot-reload anything,
// since the host's AppConfig is read-only after load; it only surfaces the
// fact that a running process's config file has drifted from what it
// booted with, which is useful when diagnosing a stale deployment.
func WatchFile(ctx context.Context, configPath string) error {
	if configPath == "" {
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}

	if err := watcher.Add(configPath); err != nil {
		watcher.Close()
		return err
	}

	go func() {
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Has(fsnotify.Write) || event.Has(fsnotify.Rename) {
					logging.Info("ConfigWatcher", "config file %s changed on disk (not hot-reloaded, restart to apply)", configPath)
				}
			case werr, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logging.Warn("ConfigWatcher", "watch error on %s: %v", configPath, werr)
			}
		}
	}()

	return nil
}
