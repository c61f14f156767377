package daemon

import (
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// reloadDebounce coalesces the burst of events an editor save produces.
const reloadDebounce = 300 * time.Millisecond

// watchConfig calls reload after path changes on disk. The parent directory
// is watched so editors that replace the file by rename are seen.
func watchConfig(stop <-chan struct{}, path string, logger *slog.Logger, reload func()) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		logger.Warn("failed to create config watcher", "error", err)
		return
	}
	defer watcher.Close()

	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	dir := filepath.Dir(abs)
	if err := watcher.Add(dir); err != nil {
		logger.Warn("failed to watch config directory", "dir", dir, "error", err)
		return
	}
	logger.Debug("watching config", "path", abs)

	var timer *time.Timer
	fire := make(chan struct{}, 1)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-stop:
			return
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != abs {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			if timer == nil {
				timer = time.AfterFunc(reloadDebounce, func() {
					select {
					case fire <- struct{}{}:
					default:
					}
				})
			} else {
				timer.Reset(reloadDebounce)
			}
		case <-fire:
			logger.Info("config file changed", "path", abs)
			reload()
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			logger.Warn("config watcher error", "error", err)
		}
	}
}
