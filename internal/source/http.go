package source

import (
	"context"
	"crypto/md5" // #nosec G501 -- fingerprint only
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"git.home.luguber.info/inful/repodeploy/internal/foundation/errors"
	"git.home.luguber.info/inful/repodeploy/internal/logfields"
	"git.home.luguber.info/inful/repodeploy/internal/version"
	"git.home.luguber.info/inful/repodeploy/internal/workspace"
)

const archiveName = "latest.zip"

// HTTPSource polls a zip archive served over HTTP(S).
type HTTPSource struct {
	url    string
	client *http.Client
	work   *workspace.Manager
	logger *slog.Logger
}

// NewHTTPSource creates a source for rawURL. A nil client uses http.DefaultClient.
func NewHTTPSource(rawURL string, client *http.Client, work *workspace.Manager, logger *slog.Logger) *HTTPSource {
	if client == nil {
		client = http.DefaultClient
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &HTTPSource{url: rawURL, client: client, work: work, logger: logger}
}

func (s *HTTPSource) Kind() Kind     { return KindHTTP }
func (s *HTTPSource) Linkable() bool { return false }

// Current issues a HEAD request and derives the version from its headers.
func (s *HTTPSource) Current(ctx context.Context) (Version, bool, error) {
	resp, err := s.do(ctx, http.MethodHead)
	if err != nil {
		return "", false, err
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone:
		s.logger.Debug("Remote archive not found", logfields.URL(s.url), slog.Int("status", resp.StatusCode))
		return "", false, nil
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return "", false, statusError("HEAD", s.url, resp.StatusCode)
	}

	v, ok := versionFromHeaders(resp.Header, resp.ContentLength)
	if !ok {
		s.logger.Warn("Remote response carries no version metadata", logfields.URL(s.url))
	}
	return v, ok, nil
}

// Fetch downloads the archive into cache/latest.zip and unpacks it.
// Any status other than 200 reports nothing to fetch.
func (s *HTTPSource) Fetch(ctx context.Context) (Artifact, bool, error) {
	cache, err := s.work.Fresh(workspace.CacheDir)
	if err != nil {
		return Artifact{}, false, errors.FileSystemError("cannot prepare cache directory").WithCause(err).Build()
	}

	resp, err := s.do(ctx, http.MethodGet)
	if err != nil {
		return Artifact{}, false, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		s.logger.Warn("Remote archive unavailable", logfields.URL(s.url), slog.Int("status", resp.StatusCode))
		return Artifact{}, false, nil
	}

	archive := filepath.Join(cache, archiveName)
	sum, err := download(resp.Body, archive)
	if err != nil {
		return Artifact{}, false, errors.NetworkError("failed to download archive").
			WithCause(err).WithContext("url", s.url).Build()
	}

	v, ok := versionFromHeaders(resp.Header, resp.ContentLength)
	if !ok {
		v = Version(sum)
	}

	unpacked, err := s.work.Fresh(workspace.UnpackedDir)
	if err != nil {
		return Artifact{}, false, errors.FileSystemError("cannot prepare unpack directory").WithCause(err).Build()
	}
	if err := Unzip(archive, unpacked); err != nil {
		return Artifact{}, false, err
	}
	return Artifact{Version: v, Path: unpacked}, true, nil
}

func (s *HTTPSource) do(ctx context.Context, method string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, s.url, nil)
	if err != nil {
		return nil, errors.ConfigError("invalid repository URL").WithCause(err).WithContext("url", s.url).Build()
	}
	// keep Content-Length intact so GET and HEAD derive the same version
	req.Header.Set("Accept-Encoding", "identity")
	req.Header.Set("User-Agent", version.UserAgent())
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, errors.NetworkError("request failed").
			WithCause(err).
			WithContext("url", s.url).
			WithContext("method", method).
			Build()
	}
	return resp, nil
}

// versionFromHeaders prefers the entity tag and otherwise hashes the content
// length followed by "/" and the last-modified date when one is present.
func versionFromHeaders(h http.Header, contentLength int64) (Version, bool) {
	if etag := strings.Trim(h.Get("ETag"), `"`); etag != "" {
		return Version(etag), true
	}
	length := h.Get("Content-Length")
	if length == "" && contentLength >= 0 {
		length = strconv.FormatInt(contentLength, 10)
	}
	if length == "" {
		return "", false
	}
	sum := md5.New() // #nosec G401 -- fingerprint only
	_, _ = io.WriteString(sum, length)
	if lm := h.Get("Last-Modified"); lm != "" {
		_, _ = io.WriteString(sum, "/"+lm)
	}
	return Version(hex.EncodeToString(sum.Sum(nil))), true
}

// download streams body to path and returns the hex MD5 of the content.
func download(body io.Reader, path string) (string, error) {
	f, err := os.Create(path)
	if err != nil {
		return "", err
	}
	sum := md5.New() // #nosec G401 -- fingerprint only
	if _, err := io.Copy(io.MultiWriter(f, sum), body); err != nil {
		_ = f.Close()
		return "", err
	}
	if err := f.Close(); err != nil {
		return "", err
	}
	return hex.EncodeToString(sum.Sum(nil)), nil
}

func statusError(method, url string, status int) error {
	b := errors.TransportError(fmt.Sprintf("unexpected status %d", status)).
		WithContext("url", url).
		WithContext("method", method).
		WithContext("status", status)
	if status >= 500 || status == http.StatusTooManyRequests {
		b = b.Retryable()
	}
	return b.Build()
}
