package daemon

import (
	"context"
	"log/slog"
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"git.home.luguber.info/inful/fwbuilder/internal/config"
	"git.home.luguber.info/inful/fwbuilder/internal/logfields"
)

// watchConfig reloads the configuration file when it changes. Editors often
// replace rather than rewrite the file, so the parent directory is watched
// and events are filtered by name. A reload only affects subsequent runs.
func (d *Daemon) watchConfig(ctx context.Context) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		slog.Warn("Config watching disabled", logfields.Error(err))
		return
	}
	defer watcher.Close()

	dir := filepath.Dir(d.cfgPath)
	if err := watcher.Add(dir); err != nil {
		slog.Warn("Config watching disabled", logfields.Path(dir), logfields.Error(err))
		return
	}

	target := filepath.Clean(d.cfgPath)
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			cfg, err := config.Load(d.cfgPath)
			if err != nil {
				slog.Warn("Config reload failed, keeping previous configuration",
					logfields.Path(d.cfgPath), logfields.Error(err))
				continue
			}
			d.cfg.Store(cfg)
			slog.Info("Configuration reloaded", logfields.Path(d.cfgPath))
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			slog.Warn("Config watcher error", logfields.Error(err))
		}
	}
}
