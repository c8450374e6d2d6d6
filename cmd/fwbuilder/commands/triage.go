package commands

import (
	"fmt"

	"git.home.luguber.info/inful/fwbuilder/internal/triage"
)

// TriageCmd implements the 'triage' command: summarize an existing build log
// without re-running the build.
type TriageCmd struct {
	Log string `arg:"" help:"Path to the build log to summarize"`
}

func (t *TriageCmd) Run(_ *Global) error {
	summary := triage.Summarize(t.Log)
	if summary.Empty() {
		fmt.Println("No diagnostic content found")
		return nil
	}
	printSummary(summary)
	return nil
}
