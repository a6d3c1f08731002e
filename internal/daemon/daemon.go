// Package daemon runs the update engine on a cron schedule, serves metrics and
// status over HTTP and applies configuration changes between cycles.
package daemon

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	promcollect "github.com/prometheus/client_golang/prometheus/collectors"

	"git.home.luguber.info/inful/repodeploy/internal/config"
	"git.home.luguber.info/inful/repodeploy/internal/engine"
	"git.home.luguber.info/inful/repodeploy/internal/foundation/errors"
	"git.home.luguber.info/inful/repodeploy/internal/hooks"
	"git.home.luguber.info/inful/repodeploy/internal/logfields"
	"git.home.luguber.info/inful/repodeploy/internal/metrics"
	"git.home.luguber.info/inful/repodeploy/internal/notify"
	"git.home.luguber.info/inful/repodeploy/internal/procexec"
	"git.home.luguber.info/inful/repodeploy/internal/source"
	"git.home.luguber.info/inful/repodeploy/internal/version"
	"git.home.luguber.info/inful/repodeploy/internal/versionstore"
	"git.home.luguber.info/inful/repodeploy/internal/workspace"
)

// Status represents the current state of the daemon.
type Status string

const (
	StatusStopped  Status = "stopped"
	StatusStarting Status = "starting"
	StatusRunning  Status = "running"
	StatusStopping Status = "stopping"
	StatusError    Status = "error"
)

const checkJobName = "update-check"

// Daemon owns the engine and the services around it.
type Daemon struct {
	configPath string
	logger     *slog.Logger
	status     atomic.Value // Status
	startTime  time.Time
	runCtx     context.Context

	// cycleMu serializes cycles with engine swaps on reload.
	cycleMu sync.Mutex

	mu     sync.RWMutex
	cfg    *config.Config
	engine *engine.Engine
	jobID  string
	last   *engine.Result

	registry   *prom.Registry
	recorder   metrics.Recorder
	notifier   notify.Notifier
	publisher  *notify.NATSPublisher
	scheduler  *Scheduler
	watcher    *ConfigWatcher
	httpServer *http.Server
	httpAddr   string
}

// Option configures a Daemon.
type Option func(*Daemon)

// WithLogger sets the logger used by the daemon and everything it builds.
func WithLogger(l *slog.Logger) Option {
	return func(d *Daemon) {
		if l != nil {
			d.logger = l
		}
	}
}

// WithNotifier replaces the NATS publisher configured by nats_url.
func WithNotifier(n notify.Notifier) Option {
	return func(d *Daemon) { d.notifier = n }
}

// New builds a daemon for cfg. configPath, when set, is watched for changes.
// Errors here are initialization failures: the engine could not be set up.
func New(ctx context.Context, cfg *config.Config, configPath string, opts ...Option) (*Daemon, error) {
	d := &Daemon{
		configPath: configPath,
		logger:     slog.Default(),
		cfg:        cfg,
		registry:   prom.NewRegistry(),
		runCtx:     ctx,
	}
	for _, opt := range opts {
		opt(d)
	}
	d.status.Store(StatusStopped)
	d.registry.MustRegister(promcollect.NewGoCollector(), promcollect.NewProcessCollector(promcollect.ProcessCollectorOpts{}))
	d.recorder = metrics.NewPrometheusRecorder(d.registry, cfg.Identity)

	if d.notifier == nil {
		if cfg.NATSURL != "" {
			pub, err := notify.NewNATSPublisher(cfg.NATSURL, cfg.NATSSubject, version.UserAgent()+" "+cfg.Identity, d.logger)
			if err != nil {
				return nil, errors.DaemonError("cannot connect to NATS").WithCause(err).Fatal().Build()
			}
			d.publisher, d.notifier = pub, pub
		} else {
			d.notifier = notify.Noop{}
		}
	}

	eng, err := d.buildEngine(ctx, cfg)
	if err != nil {
		d.publisher.Close()
		return nil, err
	}
	d.engine = eng
	return d, nil
}

func (d *Daemon) buildEngine(ctx context.Context, cfg *config.Config) (*engine.Engine, error) {
	logger := d.logger.With(logfields.Identity(cfg.Identity))
	work := workspace.NewManager(cfg.WorkDir(), logger)
	src, err := source.FromConfig(ctx, cfg, work, logger)
	if err != nil {
		return nil, err
	}
	runner := hooks.NewRunner(procexec.New(procexec.WithTimeout(cfg.HookTimeout)), hooks.WithLogger(logger))
	return engine.New(engine.Options{
		Source:     src,
		Hooks:      runner,
		Store:      versionstore.New(cfg.VersionFile()),
		Work:       work,
		ActiveDir:  cfg.ActiveDir(),
		PreHooks:   cfg.PreHooks,
		PostHooks:  cfg.PostHooks,
		Identity:   cfg.Identity,
		Repository: cfg.Repository,
		Logger:     logger,
		Recorder:   d.recorder,
		Notifier:   d.notifier,
	})
}

// Start runs an immediate check, schedules the rest and blocks until ctx is
// done, then stops every component.
func (d *Daemon) Start(ctx context.Context) error {
	d.mu.Lock()
	if d.GetStatus() != StatusStopped {
		d.mu.Unlock()
		return errors.DaemonError(fmt.Sprintf("daemon is not in stopped state: %s", d.GetStatus())).Build()
	}
	d.status.Store(StatusStarting)
	d.startTime = time.Now()
	d.runCtx = ctx
	cfg := d.cfg

	fail := func(err error) error {
		d.status.Store(StatusError)
		if d.httpServer != nil {
			_ = d.httpServer.Close()
		}
		d.mu.Unlock()
		return err
	}

	if cfg.MetricsAddr != "" {
		if err := d.startHTTPServer(cfg.MetricsAddr); err != nil {
			return fail(errors.DaemonError("failed to start HTTP server").WithCause(err).Fatal().Build())
		}
	}

	sched, err := NewScheduler(d.logger)
	if err != nil {
		return fail(errors.DaemonError("failed to create scheduler").WithCause(err).Fatal().Build())
	}
	d.jobID, err = sched.ScheduleCron(checkJobName, cfg.Schedule, true, d.scheduledCheck)
	if err != nil {
		_ = sched.Stop(ctx)
		return fail(errors.ConfigError("invalid schedule").WithCause(err).WithContext("schedule", cfg.Schedule).Fatal().Build())
	}
	d.scheduler = sched
	sched.Start()

	if d.configPath != "" {
		watcher, err := NewConfigWatcher(d.configPath, d.Reload, d.logger)
		if err == nil {
			err = watcher.Start(ctx)
		}
		if err != nil {
			d.logger.Error("Failed to start config watcher", logfields.Error(err))
			if watcher != nil {
				_ = watcher.Stop()
			}
		} else {
			d.watcher = watcher
		}
	}

	d.status.Store(StatusRunning)
	d.logger.Info("repodeploy daemon started",
		slog.String("version", version.Version),
		logfields.Identity(cfg.Identity),
		logfields.URL(cfg.Repository),
		slog.String("schedule", cfg.Schedule),
		logfields.Path(cfg.ActiveDir()))
	d.mu.Unlock()

	<-ctx.Done()
	d.logger.Info("Shutdown requested, stopping daemon")

	stopCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
	defer cancel()
	return d.Stop(stopCtx)
}

func (d *Daemon) scheduledCheck() {
	d.RunOnce(d.runCtx)
}

// Stop shuts down the daemon. A cycle in progress is allowed to finish.
func (d *Daemon) Stop(ctx context.Context) error {
	d.mu.Lock()
	switch d.GetStatus() {
	case StatusStopped, StatusStopping:
		d.mu.Unlock()
		return nil
	}
	d.status.Store(StatusStopping)
	watcher, sched, server := d.watcher, d.scheduler, d.httpServer
	d.mu.Unlock()

	// Components are stopped without holding mu: the scheduler waits for a
	// running cycle, which records its result under mu.
	if watcher != nil {
		if err := watcher.Stop(); err != nil {
			d.logger.Error("Failed to stop config watcher", logfields.Error(err))
		}
	}
	if sched != nil {
		if err := sched.Stop(ctx); err != nil {
			d.logger.Error("Failed to stop scheduler", logfields.Error(err))
		}
	}
	if server != nil {
		if err := server.Shutdown(ctx); err != nil {
			d.logger.Error("Failed to stop HTTP server", logfields.Error(err))
		}
	}
	d.publisher.Close()

	d.status.Store(StatusStopped)
	d.logger.Info("repodeploy daemon stopped", slog.Duration("uptime", time.Since(d.startTime)))
	return nil
}

// Close releases connections held by a daemon that was never started.
func (d *Daemon) Close() {
	if d.GetStatus() == StatusStopped {
		d.publisher.Close()
	}
}

// RunOnce runs a single update cycle with the current engine.
func (d *Daemon) RunOnce(ctx context.Context) engine.Result {
	d.cycleMu.Lock()
	defer d.cycleMu.Unlock()

	d.mu.RLock()
	eng := d.engine
	d.mu.RUnlock()

	res := eng.Check(ctx)

	d.mu.Lock()
	d.last = &res
	d.mu.Unlock()
	return res
}

// Reload swaps in a new configuration. It waits for any cycle in progress, so
// the new engine starts from the version that cycle committed. An unusable
// configuration leaves the running one untouched.
func (d *Daemon) Reload(ctx context.Context, cfg *config.Config) error {
	d.cycleMu.Lock()
	defer d.cycleMu.Unlock()

	if cfg.Snapshot() == d.GetConfig().Snapshot() {
		d.logger.Debug("Configuration unchanged, nothing to reload")
		return nil
	}
	eng, err := d.buildEngine(ctx, cfg)
	if err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	old := d.cfg
	if cfg.Identity != old.Identity {
		d.logger.Warn("Identity changed, metrics keep the previous label until restart",
			logfields.Identity(cfg.Identity), slog.String("previous", old.Identity))
	}
	if cfg.MetricsAddr != old.MetricsAddr || cfg.NATSURL != old.NATSURL {
		d.logger.Warn("metrics_addr and nats_url changes take effect after restart")
	}
	if cfg.Schedule != old.Schedule && d.scheduler != nil && d.jobID != "" {
		if err := d.scheduler.Reschedule(d.jobID, cfg.Schedule, d.scheduledCheck); err != nil {
			return errors.ConfigError("invalid schedule").WithCause(err).WithContext("schedule", cfg.Schedule).Build()
		}
		d.logger.Info("Rescheduled update check", slog.String("schedule", cfg.Schedule))
	}

	d.cfg = cfg
	d.engine = eng
	return nil
}

// GetStatus returns the current daemon status.
func (d *Daemon) GetStatus() Status {
	status, ok := d.status.Load().(Status)
	if !ok {
		return StatusError
	}
	return status
}

// GetConfig returns the configuration in effect.
func (d *Daemon) GetConfig() *config.Config {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.cfg
}
