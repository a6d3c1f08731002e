package workspace

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"git.home.luguber.info/inful/repodeploy/internal/logfields"
)

// Well-known subdirectories of the work area.
const (
	CacheDir    = "cache"       // downloaded archives
	UnpackedDir = "unpacked"    // extracted archive contents
	SaveDir     = "config.save" // rollback snapshot for the copy strategy
	GitDir      = "git"         // persistent clone that backs the active link
	GitStageDir = "git-work"    // staging clone used for version queries
)

// Manager hands out directories beneath a persistent work root.
type Manager struct {
	root   string
	logger *slog.Logger
}

// NewManager creates a manager rooted at root.
func NewManager(root string, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{root: root, logger: logger}
}

// Create ensures the work root exists.
func (m *Manager) Create() error {
	if err := os.MkdirAll(m.root, 0o750); err != nil {
		return fmt.Errorf("failed to create work directory: %w", err)
	}
	return nil
}

// Path returns the location of a named subdirectory without touching the filesystem.
func (m *Manager) Path(name string) string {
	return filepath.Join(m.root, name)
}

// Fresh removes any previous contents of the named subdirectory and recreates it empty.
func (m *Manager) Fresh(name string) (string, error) {
	dir := m.Path(name)
	if err := os.RemoveAll(dir); err != nil {
		return "", fmt.Errorf("failed to clear %s: %w", name, err)
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return "", fmt.Errorf("failed to create %s: %w", name, err)
	}
	m.logger.Debug("Reset work directory", logfields.Path(dir))
	return dir, nil
}

// Remove deletes the named subdirectory if present.
func (m *Manager) Remove(name string) error {
	if err := os.RemoveAll(m.Path(name)); err != nil {
		return fmt.Errorf("failed to remove %s: %w", name, err)
	}
	return nil
}
