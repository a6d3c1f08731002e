package main

import (
	"os"

	"github.com/alecthomas/kong"

	"git.home.luguber.info/inful/repodeploy/cmd/repodeploy/commands"
	"git.home.luguber.info/inful/repodeploy/internal/config"
	"git.home.luguber.info/inful/repodeploy/internal/foundation/errors"
	"git.home.luguber.info/inful/repodeploy/internal/version"
)

func main() {
	cli := &commands.CLI{}
	ctx := kong.Parse(cli,
		kong.Name("repodeploy"),
		kong.Description("Polls a content repository and deploys new versions with pre/post-update hooks."),
		kong.UsageOnError(),
		kong.Vars{
			"version":        version.String(),
			"default_config": config.DefaultPath,
		},
	)
	if err := ctx.Run(&commands.Global{Out: os.Stdout}); err != nil {
		errors.NewCLIErrorAdapter(cli.Verbose, nil).HandleError(err)
	}
}
