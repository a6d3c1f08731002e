package commands

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"git.home.luguber.info/inful/repodeploy/internal/daemon"
)

// StatusCmd implements the 'status' command.
type StatusCmd struct{}

func (s *StatusCmd) Run(g *Global, root *CLI) error {
	cfg, err := root.loadConfig()
	if err != nil {
		return err
	}
	snap, err := daemon.Inspect(cfg)
	if err != nil {
		return err
	}
	enc := yaml.NewEncoder(g.out())
	enc.SetIndent(2)
	if err := enc.Encode(snap); err != nil {
		return fmt.Errorf("encode status: %w", err)
	}
	return enc.Close()
}
