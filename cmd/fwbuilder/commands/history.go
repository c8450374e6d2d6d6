package commands

import (
	"context"
	"fmt"
	"time"

	"git.home.luguber.info/inful/fwbuilder/internal/config"
	"git.home.luguber.info/inful/fwbuilder/internal/history"
)

// HistoryCmd implements the 'history' command.
type HistoryCmd struct {
	Limit int `short:"n" help:"Number of runs to show" default:"10"`
}

func (h *HistoryCmd) Run(_ *Global, root *CLI) error {
	cfg, err := config.Load(root.Config)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if cfg.History == nil || !cfg.History.Enabled {
		return fmt.Errorf("history is not enabled in the configuration")
	}

	store, err := history.NewStore(cfg.History.Path)
	if err != nil {
		return fmt.Errorf("open history store: %w", err)
	}
	defer store.Close()

	runs, err := store.Recent(context.Background(), h.Limit)
	if err != nil {
		return fmt.Errorf("read history: %w", err)
	}
	if len(runs) == 0 {
		fmt.Println("No recorded runs")
		return nil
	}

	for _, r := range runs {
		rev := r.Revision
		if len(rev) > 8 {
			rev = rev[:8]
		}
		fmt.Printf("%s  %-8s  exit=%-3d  rev=%-8s  artifacts=%-3d  %s\n",
			r.StartedAt.Format("2006-01-02 15:04:05"), r.Outcome, r.ExitCode, rev, r.ArtifactCount, r.Duration.Round(time.Second))
	}
	return nil
}
