package config

import (
	"path/filepath"
	"runtime"
)

// applyDefaults fills unset fields with values suitable for the default
// splitdns firmware target. Paths that are naturally workspace-relative stay
// relative; the consuming components join them against paths.workspace.
func applyDefaults(cfg *Config) {
	if cfg.Feed.Method == "" {
		cfg.Feed.Method = "src-git"
	}
	if cfg.Feed.Manifest == "" {
		cfg.Feed.Manifest = "feeds.conf.default"
	}

	if cfg.Override.Feed == "" {
		cfg.Override.Feed = cfg.Feed.Name
	}
	if cfg.Override.OwnerFeed == "" {
		cfg.Override.OwnerFeed = cfg.Override.Feed
	}

	if cfg.Build.Jobs == 0 {
		cfg.Build.Jobs = runtime.NumCPU()
	}

	if cfg.Paths.Workspace == "" {
		cfg.Paths.Workspace = "./source"
	}
	if cfg.Paths.LogDir == "" {
		cfg.Paths.LogDir = "./logs"
	}
	if cfg.Paths.OutputRoot == "" {
		cfg.Paths.OutputRoot = filepath.Join("bin", "targets")
	}
	if cfg.Paths.ArtifactDepth == 0 {
		cfg.Paths.ArtifactDepth = 4
	}

	if cfg.History != nil && cfg.History.Enabled && cfg.History.Path == "" {
		cfg.History.Path = filepath.Join(cfg.Paths.LogDir, "history.db")
	}
	if cfg.Notify != nil && cfg.Notify.Enabled && cfg.Notify.Subject == "" {
		cfg.Notify.Subject = "fwbuilder.runs"
	}
	if cfg.Daemon != nil && cfg.Daemon.Listen == "" {
		cfg.Daemon.Listen = ":9180"
	}
}
