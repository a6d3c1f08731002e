package source

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zip"

	"git.home.luguber.info/inful/repodeploy/internal/foundation/errors"
)

// Unzip extracts the archive at path into dest, which must already exist.
// Entries that would land outside dest are rejected.
func Unzip(path, dest string) error {
	r, err := zip.OpenReader(path)
	if err != nil {
		return errors.UnpackError("cannot open archive").WithCause(err).WithContext("path", path).Build()
	}
	defer func() { _ = r.Close() }()

	root, err := filepath.Abs(dest)
	if err != nil {
		return errors.UnpackError("invalid destination").WithCause(err).WithContext("path", dest).Build()
	}
	for _, f := range r.File {
		if err := extract(f, root); err != nil {
			return errors.UnpackError("failed to extract archive entry").
				WithCause(err).
				WithContext("path", path).
				WithContext("entry", f.Name).
				Build()
		}
	}
	return nil
}

func extract(f *zip.File, root string) error {
	target := filepath.Join(root, filepath.FromSlash(f.Name))
	if target != root && !strings.HasPrefix(target, root+string(os.PathSeparator)) {
		return fmt.Errorf("entry escapes destination")
	}
	mode := f.Mode()
	switch {
	case f.FileInfo().IsDir():
		return os.MkdirAll(target, 0o750)
	case mode&os.ModeSymlink != 0:
		return fmt.Errorf("symbolic links are not supported")
	}
	if err := os.MkdirAll(filepath.Dir(target), 0o750); err != nil {
		return err
	}
	perm := mode.Perm()
	if perm == 0 {
		perm = 0o644
	}
	rc, err := f.Open()
	if err != nil {
		return err
	}
	defer func() { _ = rc.Close() }()
	out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, perm)
	if err != nil {
		return err
	}
	// #nosec G110 -- archives come from the operator's own deployment source
	if _, err := io.Copy(out, rc); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}
