package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"git.home.luguber.info/inful/fwbuilder/internal/config"
	"git.home.luguber.info/inful/fwbuilder/internal/history"
	"git.home.luguber.info/inful/fwbuilder/internal/logfields"
	"git.home.luguber.info/inful/fwbuilder/internal/notify"
	"git.home.luguber.info/inful/fwbuilder/internal/pipeline"
	"git.home.luguber.info/inful/fwbuilder/internal/triage"
)

// BuildCmd implements the 'build' command.
type BuildCmd struct {
	Jobs int `short:"j" help:"Override build.jobs from the configuration"`
}

func (b *BuildCmd) Run(_ *Global, root *CLI) error {
	cfg, err := config.Load(root.Config)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if b.Jobs > 0 {
		cfg.Build.Jobs = b.Jobs
	}

	var opts []pipeline.Option

	if cfg.History != nil && cfg.History.Enabled {
		store, err := history.NewStore(cfg.History.Path)
		if err != nil {
			slog.Warn("History store unavailable, continuing without it", logfields.Error(err))
		} else {
			defer store.Close()
			opts = append(opts, pipeline.WithHistory(store))
		}
	}
	if cfg.Notify != nil && cfg.Notify.Enabled {
		notifier, err := notify.NewPublisher(cfg.Notify.URL, cfg.Notify.Subject)
		if err != nil {
			slog.Warn("Notifier unavailable, continuing without it", logfields.Error(err))
		} else {
			defer notifier.Close()
			opts = append(opts, pipeline.WithNotifier(notifier))
		}
	}

	fmt.Println("Starting firmware build pipeline")

	report, runErr := pipeline.New(cfg, opts...).Run(context.Background())
	if report != nil && report.Triage != nil {
		printSummary(report.Triage)
	}
	if runErr != nil {
		return runErr
	}

	fmt.Println("Build completed successfully")
	for _, a := range report.Artifacts {
		fmt.Println("  " + a)
	}
	return nil
}

// printSummary writes the bounded failure diagnostic to stderr so the caller
// gets usable output even when the full build log is very large.
func printSummary(s *triage.Summary) {
	fmt.Fprintln(os.Stderr)
	fmt.Fprintf(os.Stderr, "==== error summary (%d matching lines, %d total) ====\n", len(s.Matches), s.TotalLines)
	for _, line := range s.Matches {
		fmt.Fprintln(os.Stderr, line)
	}
	fmt.Fprintf(os.Stderr, "==== last %d log lines ====\n", len(s.Tail))
	for _, line := range s.Tail {
		fmt.Fprintln(os.Stderr, line)
	}
}
