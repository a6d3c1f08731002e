package engine

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"

	"git.home.luguber.info/inful/repodeploy/internal/foundation/errors"
	"git.home.luguber.info/inful/repodeploy/internal/fsutil"
	"git.home.luguber.info/inful/repodeploy/internal/logfields"
	"git.home.luguber.info/inful/repodeploy/internal/source"
	"git.home.luguber.info/inful/repodeploy/internal/workspace"
)

// snapshot is the active directory state retained for one update attempt:
// the previous link target, or the work area directory holding the previous
// contents.
type snapshot struct {
	path  string
	saved bool
}

func (s snapshot) present() bool { return s.path != "" }

func (e *Engine) activate(logger *slog.Logger, art source.Artifact) (snapshot, error) {
	if e.opts.Source.Linkable() {
		return e.activateLink(logger, art.Path)
	}
	return e.activateCopy(logger, art.Path)
}

// activateLink points the active directory at fetched. A real directory in
// the way is removed without a snapshot.
func (e *Engine) activateLink(logger *slog.Logger, fetched string) (snapshot, error) {
	active := e.opts.ActiveDir
	var snap snapshot

	if !fsutil.IsSymlink(active) {
		if err := os.RemoveAll(active); err != nil {
			return snap, activationError("cannot remove active directory", active, err)
		}
	} else if target, err := filepath.EvalSymlinks(active); err == nil {
		snap.path = target
	} else {
		logger.Warn("Active link is dangling, no rollback possible", logfields.Path(active), logfields.Error(err))
	}

	if snap.present() {
		if resolved, err := filepath.EvalSymlinks(fetched); err == nil && resolved == snap.path {
			logger.Debug("Active link already points at fetched content", logfields.Target(resolved))
			return snapshot{}, nil
		}
	}
	if err := fsutil.Relink(fetched, active); err != nil {
		return snap, activationError("cannot link active directory", fetched, err)
	}
	return snap, nil
}

// activateCopy moves the fetched contents into the active directory, first
// moving its current contents to the save directory.
func (e *Engine) activateCopy(logger *slog.Logger, fetched string) (snapshot, error) {
	active := e.opts.ActiveDir
	save := e.opts.Work.Path(workspace.SaveDir)
	var snap snapshot

	if err := os.RemoveAll(save); err != nil {
		return snap, activationError("cannot clear save directory", save, err)
	}
	switch {
	case fsutil.IsSymlink(active):
		if err := os.Remove(active); err != nil {
			return snap, activationError("cannot remove active link", active, err)
		}
	case fsutil.Exists(active):
		if err := fsutil.MoveContents(active, save); err != nil {
			return snap, activationError("cannot save active contents", active, err)
		}
		snap = snapshot{path: save, saved: true}
	}

	if err := fsutil.MoveContents(fetched, active); err != nil {
		if snap.present() {
			if rErr := fsutil.MoveContents(save, active); rErr != nil {
				logger.Error("Could not restore saved contents, leaving them for manual recovery", logfields.Error(rErr), logfields.Path(save))
			} else if rmErr := e.opts.Work.Remove(workspace.SaveDir); rmErr != nil {
				logger.Warn("Could not remove save directory", logfields.Error(rmErr))
			}
		}
		return snapshot{}, activationError("cannot move fetched contents", fetched, err)
	}
	if err := os.RemoveAll(fetched); err != nil {
		logger.Warn("Could not remove fetched directory", logfields.Path(fetched), logfields.Error(err))
	}
	return snap, nil
}

// rollback restores the snapshot and re-runs the post-update hooks against
// the restored state. A hook failure at that point is only logged.
func (e *Engine) rollback(ctx context.Context, logger *slog.Logger, snap snapshot) error {
	active := e.opts.ActiveDir
	if snap.saved {
		// Unrestored contents stay in the save directory for manual recovery.
		if err := fsutil.MoveContents(snap.path, active); err != nil {
			return activationError("cannot restore saved contents", snap.path, err)
		}
		if err := e.opts.Work.Remove(workspace.SaveDir); err != nil {
			logger.Warn("Could not remove save directory", logfields.Error(err))
		}
	} else if err := fsutil.Relink(snap.path, active); err != nil {
		return activationError("cannot relink previous target", snap.path, err)
	}

	if err := e.runHooks(ctx, "post", e.opts.PostHooks, active, ""); err != nil {
		logger.Error("Post-update hooks failed after revert", logfields.Error(err))
		return nil
	}
	logger.Info("Reverted to previous content", logfields.Path(active))
	return nil
}

func activationError(msg, path string, err error) error {
	return errors.ActivationError(msg).WithCause(err).WithContext("path", path).Build()
}
