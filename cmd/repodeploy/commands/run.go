package commands

import (
	"context"
	"log/slog"
	"os/signal"
	"syscall"

	"git.home.luguber.info/inful/repodeploy/internal/daemon"
	"git.home.luguber.info/inful/repodeploy/internal/logfields"
)

// RunCmd implements the 'run' command.
type RunCmd struct {
	NoWatch bool `name:"no-watch" help:"Do not reload the configuration file when it changes"`
}

func (r *RunCmd) Run(_ *Global, root *CLI) error {
	cfg, err := root.loadConfig()
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	watchPath := cfg.Path
	if r.NoWatch {
		watchPath = ""
	}
	d, err := daemon.New(ctx, cfg, watchPath)
	if err != nil {
		return err
	}
	slog.Info("Starting update daemon", logfields.Path(cfg.Path))
	return d.Start(ctx)
}
