package commands

import (
	"fmt"
	"path/filepath"

	"git.home.luguber.info/inful/fwbuilder/internal/artifacts"
	"git.home.luguber.info/inful/fwbuilder/internal/config"
)

// ArtifactsCmd implements the 'artifacts' command.
type ArtifactsCmd struct{}

func (a *ArtifactsCmd) Run(_ *Global, root *CLI) error {
	cfg, err := config.Load(root.Config)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	outputRoot := cfg.Paths.OutputRoot
	if !filepath.IsAbs(outputRoot) {
		outputRoot = filepath.Join(cfg.Paths.Workspace, outputRoot)
	}

	found := artifacts.Locate(outputRoot, cfg.Paths.ArtifactDepth)
	if len(found) == 0 {
		fmt.Println("No artifacts found")
		return nil
	}
	for _, path := range found {
		fmt.Println(path)
	}
	return nil
}
