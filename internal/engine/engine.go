// Package engine implements the update cycle: detect a new remote version,
// fetch it, run the pre-update hooks, activate it, run the post-update hooks,
// then commit or roll back.
//
// Content from a linkable source is activated by repointing the active
// directory symlink. Anything else is moved into the active directory, whose
// previous contents wait in the work area until the post-update hooks pass.
// The active directory itself is never replaced in that mode, so processes
// holding it open keep seeing the current contents.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"

	"git.home.luguber.info/inful/repodeploy/internal/foundation/errors"
	"git.home.luguber.info/inful/repodeploy/internal/fsutil"
	"git.home.luguber.info/inful/repodeploy/internal/logfields"
	"git.home.luguber.info/inful/repodeploy/internal/metrics"
	"git.home.luguber.info/inful/repodeploy/internal/notify"
	"git.home.luguber.info/inful/repodeploy/internal/source"
	"git.home.luguber.info/inful/repodeploy/internal/workspace"
)

// HookRunner runs a directory of hook scripts.
type HookRunner interface {
	Run(ctx context.Context, hookDir, current, previous string) error
}

// VersionStore persists the active version.
type VersionStore interface {
	Read() (string, bool, error)
	Write(version string) error
}

// Options wires an Engine. Source, Hooks, Store, Work and ActiveDir are required.
type Options struct {
	Source     source.Source
	Hooks      HookRunner
	Store      VersionStore
	Work       *workspace.Manager
	ActiveDir  string
	PreHooks   string
	PostHooks  string
	Identity   string
	Repository string
	Logger     *slog.Logger
	Recorder   metrics.Recorder
	Notifier   notify.Notifier
}

// Engine runs update cycles against one active directory. Check calls are
// serialized.
type Engine struct {
	opts     Options
	logger   *slog.Logger
	recorder metrics.Recorder
	notifier notify.Notifier

	mu      sync.Mutex
	version source.Version
	known   bool
}

// New prepares the work area and active directory and loads the persisted
// version. A missing active directory is created empty, and any version file
// left beside it is ignored.
func New(opts Options) (*Engine, error) {
	if opts.Source == nil || opts.Hooks == nil || opts.Store == nil || opts.Work == nil || opts.ActiveDir == "" {
		return nil, errors.InternalError("engine requires a source, hook runner, version store, work area and active directory").Build()
	}
	e := &Engine{
		opts:     opts,
		logger:   opts.Logger,
		recorder: opts.Recorder,
		notifier: opts.Notifier,
	}
	if e.logger == nil {
		e.logger = slog.Default()
	}
	if e.recorder == nil {
		e.recorder = metrics.NoopRecorder{}
	}
	if e.notifier == nil {
		e.notifier = notify.Noop{}
	}

	if err := opts.Work.Create(); err != nil {
		return nil, errors.FileSystemError("cannot create work directory").WithCause(err).Fatal().Build()
	}
	if !fsutil.Exists(opts.ActiveDir) {
		if err := os.MkdirAll(opts.ActiveDir, 0o750); err != nil {
			return nil, errors.FileSystemError("cannot create active directory").
				WithCause(err).WithContext("path", opts.ActiveDir).Fatal().Build()
		}
		e.logger.Info("Created empty active directory", logfields.Path(opts.ActiveDir))
		return e, nil
	}

	v, found, err := opts.Store.Read()
	if err != nil {
		return nil, err
	}
	if found {
		e.version, e.known = source.Version(v), true
		e.recorder.SetActiveVersion(v)
		e.logger.Info("Loaded active version", logfields.Version(v))
	}
	return e, nil
}

// Version returns the active version, if any.
func (e *Engine) Version() (source.Version, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.version, e.known
}

// Check runs one update cycle. It never panics; every failure is reported in
// the returned Result.
func (e *Engine) Check(ctx context.Context) (res Result) {
	e.mu.Lock()
	defer e.mu.Unlock()

	start := time.Now()
	res.ID = uuid.NewString()
	res.Previous = e.version
	logger := e.logger.With(logfields.CycleID(res.ID))

	defer func() {
		if r := recover(); r != nil {
			res.Outcome = OutcomeFailed
			res.Err = errors.InternalError("panic during update cycle").WithContext("panic", fmt.Sprint(r)).Build()
			logger.Error("Update cycle aborted", logfields.Error(res.Err))
		}
		res.Duration = time.Since(start)
		e.finish(ctx, logger, res)
	}()

	logger.Debug("Checking for updates")
	return e.cycle(ctx, logger, res)
}

func (e *Engine) cycle(ctx context.Context, logger *slog.Logger, res Result) Result {
	current, found, err := e.opts.Source.Current(ctx)
	if err != nil {
		e.recorder.IncTransportError("current")
		logger.Error("Could not query remote version", logfields.Error(err))
		return fail(res, OutcomeFailed, err)
	}
	if !found {
		logger.Warn("No content found for identity", logfields.Identity(e.opts.Identity))
		res.Outcome = OutcomeUnavailable
		return res
	}
	res.Version = current
	if e.known && current == e.version {
		logger.Debug("On latest version", logfields.Version(string(current)))
		res.Outcome = OutcomeUnchanged
		return res
	}

	logger.Info("Updating to version", logfields.Version(string(current)), logfields.Previous(string(e.version)))
	art, found, err := e.opts.Source.Fetch(ctx)
	if err != nil {
		e.recorder.IncTransportError("fetch")
		logger.Error("Could not fetch update", logfields.Error(err))
		return fail(res, OutcomeFailed, err)
	}
	if !found {
		logger.Warn("Update failed to properly unpack, skipping")
		res.Outcome = OutcomeSkipped
		return res
	}
	res.Version = art.Version

	if err := e.runHooks(ctx, "pre", e.opts.PreHooks, art.Path, e.opts.ActiveDir); err != nil {
		logger.Warn("Pre-update hooks failed, update blocked", logfields.Error(err))
		return fail(res, OutcomeBlocked, err)
	}

	// Activation has started; finish it even if shutdown is requested.
	ctx = context.WithoutCancel(ctx)

	snap, err := e.activate(logger, art)
	if err != nil {
		logger.Error("Could not activate update", logfields.Error(err))
		return fail(res, OutcomeFailed, err)
	}
	logger.Debug("Activated version", logfields.Version(string(art.Version)), logfields.Path(e.opts.ActiveDir))

	if err := e.runHooks(ctx, "post", e.opts.PostHooks, e.opts.ActiveDir, snap.path); err != nil {
		if !snap.present() {
			logger.Error("Post-update hooks failed, application may be unstable", logfields.Error(err))
			return fail(res, OutcomeUnstable, err)
		}
		logger.Warn("Post-update hooks failed, reverting to previous content", logfields.Error(err))
		if rbErr := e.rollback(ctx, logger, snap); rbErr != nil {
			logger.Error("Revert failed, application may be unstable", logfields.Error(rbErr))
			return fail(res, OutcomeUnstable, err)
		}
		return fail(res, OutcomeRolledBack, err)
	}

	res.Outcome = OutcomeCommitted
	if err := e.commit(logger, snap, art.Version); err != nil {
		res.Err = err
	}
	logger.Info("Update complete", logfields.Version(string(art.Version)))
	return res
}

func fail(res Result, outcome Outcome, err error) Result {
	res.Outcome = outcome
	res.Err = err
	return res
}

func (e *Engine) runHooks(ctx context.Context, phase, dir, current, previous string) error {
	start := time.Now()
	err := e.opts.Hooks.Run(ctx, dir, current, previous)
	e.recorder.ObserveHookDuration(phase, time.Since(start), err == nil)
	return err
}

// commit discards the snapshot and records version. A failure to persist the
// version is logged and returned, but the new content stays active.
func (e *Engine) commit(logger *slog.Logger, snap snapshot, version source.Version) error {
	if snap.saved {
		if err := e.opts.Work.Remove(workspace.SaveDir); err != nil {
			logger.Warn("Could not remove saved content", logfields.Error(err))
		}
	}
	e.version, e.known = version, true
	e.recorder.SetActiveVersion(string(version))
	if err := e.opts.Store.Write(string(version)); err != nil {
		logger.Error("Could not record active version", logfields.Error(err), logfields.Version(string(version)))
		return err
	}
	return nil
}

func (e *Engine) finish(ctx context.Context, logger *slog.Logger, res Result) {
	e.recorder.ObserveCycleDuration(res.Duration)
	e.recorder.IncCycleOutcome(string(res.Outcome))
	logger.Debug("Update cycle finished",
		logfields.Outcome(string(res.Outcome)),
		logfields.DurationMS(float64(res.Duration.Milliseconds())))

	if !res.Outcome.Changed() {
		return
	}
	event := notify.Event{
		CycleID:    res.ID,
		Identity:   e.opts.Identity,
		Repository: e.opts.Repository,
		Outcome:    string(res.Outcome),
		Version:    string(res.Version),
		Previous:   string(res.Previous),
	}
	if res.Err != nil {
		event.Error = res.Err.Error()
	}
	if err := e.notifier.Publish(context.WithoutCancel(ctx), event); err != nil {
		logger.Warn("Could not publish cycle event", logfields.Error(err))
	}
}
