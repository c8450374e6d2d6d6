// Package config loads and validates the fwbuilder configuration file.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the application configuration
type Config struct {
	Pin      PinConfig      `yaml:"pin"`
	Feed     FeedConfig     `yaml:"feed"`
	Override OverrideConfig `yaml:"override"`
	Build    BuildConfig    `yaml:"build"`
	Paths    PathsConfig    `yaml:"paths"`
	History  *HistoryConfig `yaml:"history,omitempty"`
	Notify   *NotifyConfig  `yaml:"notify,omitempty"`
	Daemon   *DaemonConfig  `yaml:"daemon,omitempty"`
}

// PinConfig pins the upstream source tree. Branch is always required; the tag
// is best-effort and its absence never aborts a run.
type PinConfig struct {
	URL    string `yaml:"url"`
	Branch string `yaml:"branch"`
	Tag    string `yaml:"tag,omitempty"`
}

// FeedConfig describes the external package feed registered into the
// feed manifest.
type FeedConfig struct {
	Name     string `yaml:"name"`
	URL      string `yaml:"url"`
	Method   string `yaml:"method,omitempty"` // src-git, src-link, ...
	Manifest string `yaml:"manifest,omitempty"`
}

// ManifestLine returns the exact manifest line registered for this feed.
func (f FeedConfig) ManifestLine() string {
	return fmt.Sprintf("%s %s %s", f.Method, f.Name, f.URL)
}

// OverrideConfig describes the vendored component override and the cross-feed
// ownership conflict to force-resolve. Paths are relative to the workspace.
type OverrideConfig struct {
	Feed          string   `yaml:"feed"`
	TargetPath    string   `yaml:"target_path"`
	SourcePath    string   `yaml:"source_path"`
	Package       string   `yaml:"package"`
	OwnerFeed     string   `yaml:"owner_feed"`
	ConflictPaths []string `yaml:"conflict_paths,omitempty"`
}

// BuildConfig controls the external build invocation.
type BuildConfig struct {
	Jobs             int    `yaml:"jobs,omitempty"`
	Verbose          bool   `yaml:"verbose,omitempty"`
	ExtraFlags       string `yaml:"extra_flags,omitempty"`
	DiagnosticTarget string `yaml:"diagnostic_target,omitempty"`
}

// PathsConfig describes the persisted layout around the workspace.
type PathsConfig struct {
	Workspace      string `yaml:"workspace"`
	ConfigSnapshot string `yaml:"config_snapshot"`
	OverlayDir     string `yaml:"overlay_dir,omitempty"`
	LogDir         string `yaml:"log_dir"`
	OutputRoot     string `yaml:"output_root,omitempty"`
	ArtifactDepth  int    `yaml:"artifact_depth,omitempty"`
}

// HistoryConfig enables the local build-run history store.
type HistoryConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path,omitempty"`
}

// NotifyConfig enables publishing run reports to NATS.
type NotifyConfig struct {
	Enabled bool   `yaml:"enabled"`
	URL     string `yaml:"url,omitempty"`
	Subject string `yaml:"subject,omitempty"`
}

// DaemonConfig controls scheduled pipeline runs.
type DaemonConfig struct {
	Interval Duration `yaml:"interval"`
	Listen   string   `yaml:"listen,omitempty"`
}

// Duration wraps time.Duration for YAML decoding of values like "6h" or "30m".
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Load loads configuration from the specified file
func Load(configPath string) (*Config, error) {
	// Load .env file if it exists; missing files are fine.
	loadEnvFiles()

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("configuration file not found: %s", configPath)
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Expand environment variables in the YAML content
	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks invariants the pipeline relies on.
func (c *Config) Validate() error {
	if c.Pin.URL == "" {
		return fmt.Errorf("pin.url is required")
	}
	if c.Pin.Branch == "" {
		return fmt.Errorf("pin.branch is required")
	}
	if c.Feed.Name == "" || c.Feed.URL == "" {
		return fmt.Errorf("feed.name and feed.url are required")
	}
	if c.Paths.Workspace == "" {
		return fmt.Errorf("paths.workspace is required")
	}
	if c.Paths.ConfigSnapshot == "" {
		return fmt.Errorf("paths.config_snapshot is required")
	}
	if c.Override.TargetPath == "" || c.Override.SourcePath == "" {
		return fmt.Errorf("override.target_path and override.source_path are required")
	}
	if len(c.Override.ConflictPaths) > 0 && (c.Override.Package == "" || c.Override.OwnerFeed == "") {
		return fmt.Errorf("override.package and override.owner_feed are required when conflict_paths is set")
	}
	if c.Build.Jobs < 1 {
		return fmt.Errorf("build.jobs must be at least 1")
	}
	if c.Notify != nil && c.Notify.Enabled && c.Notify.URL == "" {
		return fmt.Errorf("notify.url is required when notify is enabled")
	}
	if c.Daemon != nil && c.Daemon.Interval.Std() <= 0 {
		return fmt.Errorf("daemon.interval must be positive")
	}
	return nil
}
