package commands

import (
	"log/slog"
	"os"

	"github.com/alecthomas/kong"
)

// Global context passed to subcommands if we need to share global state later.
type Global struct {
	Logger *slog.Logger
}

// CLI definition & global flags.
type CLI struct {
	Config  string           `short:"c" help:"Configuration file path" default:"fwbuilder.yaml"`
	Verbose bool             `short:"v" help:"Enable verbose logging"`
	Version kong.VersionFlag `name:"version" help:"Show version and exit"`

	Build     BuildCmd     `cmd:"" help:"Run the full build pipeline once"`
	Triage    TriageCmd    `cmd:"" help:"Summarize failures from an existing build log"`
	Artifacts ArtifactsCmd `cmd:"" help:"List recognized build artifacts under the output root"`
	History   HistoryCmd   `cmd:"" help:"Show recent build runs from the history store"`
	Init      InitCmd      `cmd:"" help:"Initialize a new configuration file"`
	Daemon    DaemonCmd    `cmd:"" help:"Run the pipeline periodically with a metrics endpoint"`
}

// AfterApply runs after flag parsing; setup logging once.
func (c *CLI) AfterApply() error {
	level := slog.LevelInfo
	if c.Verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	return nil
}
