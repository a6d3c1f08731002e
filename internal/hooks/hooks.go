// Package hooks runs the operator-supplied pre- and post-update scripts.
//
// Scripts in a hook directory run one at a time in lexicographic order of their
// file names. Only regular files with an executable bit are considered. The
// first script to exit nonzero stops the run; later scripts are not started.
package hooks

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	"git.home.luguber.info/inful/repodeploy/internal/foundation/errors"
	"git.home.luguber.info/inful/repodeploy/internal/logfields"
	"git.home.luguber.info/inful/repodeploy/internal/procexec"
)

// Environment variables handed to every script.
const (
	EnvCurrent  = "CURRENT_CONFIG"
	EnvPrevious = "PREVIOUS_CONFIG"
)

// FailedError reports a script that exited nonzero.
type FailedError struct {
	Script   string
	ExitCode int
	Output   []byte
}

func (e *FailedError) Error() string {
	return fmt.Sprintf("hook %s exited with status %d", filepath.Base(e.Script), e.ExitCode)
}

// Runner executes hook directories.
type Runner struct {
	exec    procexec.Executor
	logger  *slog.Logger
	environ func() []string
}

// Option configures a Runner.
type Option func(*Runner)

// WithLogger sets the logger used for script output.
func WithLogger(l *slog.Logger) Option {
	return func(r *Runner) {
		if l != nil {
			r.logger = l
		}
	}
}

// NewRunner creates a Runner using exec to start scripts.
func NewRunner(exec procexec.Executor, opts ...Option) *Runner {
	r := &Runner{exec: exec, logger: slog.Default(), environ: os.Environ}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run executes every script in hookDir with current and previous exported to
// the script environment. A missing directory is not an error.
func (r *Runner) Run(ctx context.Context, hookDir, current, previous string) error {
	scripts, err := listScripts(hookDir)
	if err != nil {
		return err
	}
	if len(scripts) == 0 {
		return nil
	}

	env := append(r.environ(), EnvCurrent+"="+current, EnvPrevious+"="+previous)
	for _, script := range scripts {
		if err := ctx.Err(); err != nil {
			return err
		}
		r.logger.Debug("Running hook", logfields.Hook(script))
		res, runErr := r.exec.Run(ctx, procexec.Command{Path: script, Env: env})
		if runErr != nil {
			return errors.HookError("failed to run hook").
				WithCause(runErr).
				WithContext("hook", script).
				Build()
		}
		if res.ExitCode != 0 {
			r.logOutput(script, res)
			return &FailedError{Script: script, ExitCode: res.ExitCode, Output: res.Output}
		}
	}
	return nil
}

func (r *Runner) logOutput(script string, res procexec.Result) {
	r.logger.Warn("Hook failed", logfields.Hook(script), logfields.ExitCode(res.ExitCode))
	sc := bufio.NewScanner(bytes.NewReader(res.Output))
	for sc.Scan() {
		r.logger.Warn(sc.Text(), logfields.Hook(filepath.Base(script)))
	}
}

// listScripts returns the executable regular files in dir sorted by name.
func listScripts(dir string) ([]string, error) {
	if dir == "" {
		return nil, nil
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.HookError("cannot read hook directory").WithCause(err).WithContext("path", dir).Build()
	}
	var scripts []string
	for _, entry := range entries {
		path := filepath.Join(dir, entry.Name())
		info, statErr := os.Stat(path)
		if statErr != nil || !info.Mode().IsRegular() || info.Mode().Perm()&0o111 == 0 {
			continue
		}
		scripts = append(scripts, path)
	}
	sort.Strings(scripts)
	return scripts, nil
}
