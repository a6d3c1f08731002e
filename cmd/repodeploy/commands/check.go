package commands

import (
	"context"
	"fmt"

	"gopkg.in/yaml.v3"

	"git.home.luguber.info/inful/repodeploy/internal/daemon"
	"git.home.luguber.info/inful/repodeploy/internal/engine"
	"git.home.luguber.info/inful/repodeploy/internal/foundation/errors"
)

// CheckCmd implements the 'check' command.
type CheckCmd struct{}

func (c *CheckCmd) Run(g *Global, root *CLI) error {
	cfg, err := root.loadConfig()
	if err != nil {
		return err
	}
	ctx := context.Background()
	d, err := daemon.New(ctx, cfg, "")
	if err != nil {
		return err
	}
	defer d.Close()

	res := d.RunOnce(ctx)
	out, err := yaml.Marshal(daemon.Summarize(res))
	if err != nil {
		return fmt.Errorf("encode result: %w", err)
	}
	if _, err := g.out().Write(out); err != nil {
		return err
	}
	return outcomeError(res)
}

// outcomeError maps a cycle result to the error that decides the exit code.
// Cycles that left the previous content untouched without a failure exit 0.
func outcomeError(res engine.Result) error {
	switch res.Outcome {
	case engine.OutcomeCommitted, engine.OutcomeUnchanged, engine.OutcomeUnavailable, engine.OutcomeSkipped:
		return nil
	case engine.OutcomeBlocked, engine.OutcomeRolledBack, engine.OutcomeUnstable:
		b := errors.HookError(fmt.Sprintf("update %s", res.Outcome)).WithCause(res.Err).WithContext("version", string(res.Version))
		if res.Outcome == engine.OutcomeUnstable {
			b = b.Fatal()
		}
		return b.Build()
	default:
		if errors.IsClassified(res.Err) {
			return res.Err
		}
		return errors.InternalError("update failed").WithCause(res.Err).Build()
	}
}
