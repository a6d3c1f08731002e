// Package versionstore persists the identifier of the active version.
package versionstore

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"

	"git.home.luguber.info/inful/repodeploy/internal/foundation/errors"
)

// Store reads and writes a single-line version file.
type Store struct {
	path string
}

// New returns a store backed by path.
func New(path string) *Store {
	return &Store{path: path}
}

// Path returns the version file location.
func (s *Store) Path() string { return s.path }

// Read returns the first line of the version file. found is false when the file
// does not exist or its first line is empty.
func (s *Store) Read() (version string, found bool, err error) {
	f, err := os.Open(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", false, nil
		}
		return "", false, errors.PersistenceError("cannot read version file").
			WithCause(err).WithContext("path", s.path).Build()
	}
	defer func() { _ = f.Close() }()

	sc := bufio.NewScanner(f)
	if !sc.Scan() {
		if err := sc.Err(); err != nil {
			return "", false, errors.PersistenceError("cannot read version file").
				WithCause(err).WithContext("path", s.path).Build()
		}
		return "", false, nil
	}
	version = strings.TrimSpace(sc.Text())
	return version, version != "", nil
}

// Write replaces the version file with exactly version.
func (s *Store) Write(version string) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o750); err != nil {
		return errors.PersistenceError("cannot create version file directory").
			WithCause(err).WithContext("path", s.path).Build()
	}

	tempPath := s.path + ".tmp"
	if err := os.WriteFile(tempPath, []byte(version), 0o644); err != nil {
		return errors.PersistenceError("failed to write version to temporary file").
			WithCause(err).WithContext("path", tempPath).Build()
	}
	if err := os.Rename(tempPath, s.path); err != nil {
		_ = os.Remove(tempPath)
		return errors.PersistenceError("failed to replace version file").
			WithCause(err).WithContext("path", s.path).Build()
	}
	return nil
}
