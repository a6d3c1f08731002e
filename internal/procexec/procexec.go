// Package procexec runs external programs and reports their combined output
// and exit status.
package procexec

import (
	"bytes"
	"context"
	stderrors "errors"
	"os/exec"
	"time"
)

// waitDelay bounds how long output pipes are drained after the process is killed.
const waitDelay = 2 * time.Second

// Command describes a single program invocation.
type Command struct {
	Path string
	Args []string
	Env  []string // full environment; nil inherits the current process environment
	Dir  string
}

// Result is the outcome of a completed invocation.
type Result struct {
	Output   []byte // interleaved stdout and stderr
	ExitCode int
}

// Executor runs commands. A nonzero exit is reported through Result.ExitCode,
// while failures to start or wait for the process are returned as errors.
type Executor interface {
	Run(ctx context.Context, cmd Command) (Result, error)
}

// Option configures an OSExecutor.
type Option func(*OSExecutor)

// WithTimeout bounds every invocation; zero disables the bound.
func WithTimeout(d time.Duration) Option {
	return func(e *OSExecutor) { e.timeout = d }
}

// OSExecutor runs commands as child processes.
type OSExecutor struct {
	timeout time.Duration
}

// New returns an executor backed by os/exec.
func New(opts ...Option) *OSExecutor {
	e := &OSExecutor{}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Run implements Executor.
func (e *OSExecutor) Run(ctx context.Context, c Command) (Result, error) {
	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	// #nosec G204 -- callers pass paths of operator-installed hook scripts
	cmd := exec.CommandContext(ctx, c.Path, c.Args...)
	cmd.Env = c.Env
	cmd.Dir = c.Dir
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out
	cmd.WaitDelay = waitDelay

	err := cmd.Run()
	res := Result{Output: out.Bytes()}
	if err == nil {
		return res, nil
	}
	var exitErr *exec.ExitError
	if stderrors.As(err, &exitErr) && ctx.Err() == nil {
		res.ExitCode = exitErr.ExitCode()
		return res, nil
	}
	if ctx.Err() != nil {
		return res, ctx.Err()
	}
	return res, err
}
