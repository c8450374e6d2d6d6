package main

import (
	"github.com/alecthomas/kong"

	"git.home.luguber.info/inful/fwbuilder/cmd/fwbuilder/commands"
	"git.home.luguber.info/inful/fwbuilder/internal/version"
)

func main() {
	cli := &commands.CLI{}
	ctx := kong.Parse(cli,
		kong.Name("fwbuilder"),
		kong.Description("Reproducible firmware build orchestrator: pinned source tree, feed overrides, deterministic build."),
		kong.Vars{"version": version.Version},
	)
	err := ctx.Run(&commands.Global{}, cli)
	ctx.FatalIfErrorf(err)
}
