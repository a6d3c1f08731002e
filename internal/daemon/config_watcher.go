package daemon

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"

	"git.home.luguber.info/inful/repodeploy/internal/config"
	"git.home.luguber.info/inful/repodeploy/internal/logfields"
)

// ReloadFunc applies a freshly loaded configuration.
type ReloadFunc func(ctx context.Context, cfg *config.Config) error

// ConfigWatcher reloads the configuration file after it settles.
// An invalid file is logged and the running configuration stays in effect.
type ConfigWatcher struct {
	path         string
	reload       ReloadFunc
	logger       *slog.Logger
	fsw          *fsnotify.Watcher
	debounceTime time.Duration

	started  atomic.Bool
	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}
}

func NewConfigWatcher(path string, reload ReloadFunc, logger *slog.Logger) (*ConfigWatcher, error) {
	if logger == nil {
		logger = slog.Default()
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve config path: %w", err)
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create file watcher: %w", err)
	}
	return &ConfigWatcher{
		path:         abs,
		reload:       reload,
		logger:       logger.With(logfields.Path(abs)),
		fsw:          fsw,
		debounceTime: 2 * time.Second,
		stop:         make(chan struct{}),
		done:         make(chan struct{}),
	}, nil
}

// Start watches the file's directory, since editors replace files by rename.
func (cw *ConfigWatcher) Start(ctx context.Context) error {
	dir := filepath.Dir(cw.path)
	if err := cw.fsw.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}
	cw.logger.Info("Watching configuration file")
	cw.started.Store(true)
	go cw.run(ctx)
	return nil
}

// Stop ends watching and waits for a reload in progress to return. It is safe to call twice.
func (cw *ConfigWatcher) Stop() error {
	var err error
	cw.stopOnce.Do(func() {
		close(cw.stop)
		err = cw.fsw.Close()
		if !cw.started.Load() {
			return
		}
		select {
		case <-cw.done:
		case <-time.After(5 * time.Second):
			cw.logger.Warn("Configuration reload still running at shutdown")
		}
	})
	return err
}

func (cw *ConfigWatcher) run(ctx context.Context) {
	defer close(cw.done)

	name := filepath.Base(cw.path)
	var settle <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			return
		case <-cw.stop:
			return
		case ev, ok := <-cw.fsw.Events:
			if !ok {
				return
			}
			if filepath.Base(ev.Name) != name {
				continue
			}
			if ev.Has(fsnotify.Remove) {
				cw.logger.Warn("Configuration file removed")
				continue
			}
			if ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) || ev.Has(fsnotify.Rename) {
				cw.logger.Debug("Configuration file changed", slog.String("op", ev.Op.String()))
				settle = time.After(cw.debounceTime)
			}
		case err, ok := <-cw.fsw.Errors:
			if !ok {
				return
			}
			cw.logger.Error("Configuration watcher error", logfields.Error(err))
		case <-settle:
			settle = nil
			if err := cw.apply(ctx); err != nil {
				cw.logger.Error("Configuration reload failed, keeping current configuration", logfields.Error(err))
			}
		}
	}
}

func (cw *ConfigWatcher) apply(ctx context.Context) error {
	cfg, err := config.Load(cw.path)
	if err != nil {
		return err
	}
	if err := cw.reload(ctx, cfg); err != nil {
		return fmt.Errorf("apply configuration: %w", err)
	}
	cw.logger.Info("Configuration reloaded")
	return nil
}
