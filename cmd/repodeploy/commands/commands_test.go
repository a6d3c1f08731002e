package commands

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/alecthomas/kong"
	"github.com/klauspost/compress/zip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"git.home.luguber.info/inful/repodeploy/internal/daemon"
	"git.home.luguber.info/inful/repodeploy/internal/engine"
	"git.home.luguber.info/inful/repodeploy/internal/foundation/errors"
	"git.home.luguber.info/inful/repodeploy/internal/hooks"
)

// run parses args like main does and executes the selected command.
func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var cli CLI
	parser, err := kong.New(&cli,
		kong.Name("repodeploy"),
		kong.Exit(func(int) { t.Fatal("unexpected exit") }),
		kong.Vars{"version": "test", "default_config": "/nonexistent/repo-deploy.cfg"},
	)
	require.NoError(t, err)
	ctx, err := parser.Parse(args)
	require.NoError(t, err)
	var out bytes.Buffer
	err = ctx.Run(&Global{Out: &out})
	return out.String(), err
}

func writeConfig(t *testing.T, dir string, lines ...string) string {
	t.Helper()
	lines = append(lines,
		"directory = "+filepath.Join(dir, "root"),
		"identity = org.example.cli",
		"pre_hooks = "+filepath.Join(dir, "pre.d"),
		"post_hooks = "+filepath.Join(dir, "post.d"),
	)
	path := filepath.Join(dir, "repo-deploy.cfg")
	require.NoError(t, os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0o600))
	return path
}

func zipServer(t *testing.T) *httptest.Server {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create("app.conf")
	require.NoError(t, err)
	_, err = w.Write([]byte("one"))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	body := buf.Bytes()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("ETag", `"rev-1"`)
		if r.Method == http.MethodHead {
			return
		}
		_, _ = w.Write(body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestCheckAndStatus(t *testing.T) {
	dir := t.TempDir()
	srv := zipServer(t)
	cfgPath := writeConfig(t, dir, "repository = "+srv.URL+"/app.zip")

	out, err := run(t, "check", "-c", cfgPath)
	require.NoError(t, err)
	var summary daemon.CycleSummary
	require.NoError(t, yaml.Unmarshal([]byte(out), &summary))
	assert.Equal(t, "committed", summary.Outcome)
	assert.Equal(t, "rev-1", summary.Version)

	out, err = run(t, "check", "--config", cfgPath)
	require.NoError(t, err)
	assert.Contains(t, out, "outcome: unchanged")

	out, err = run(t, "status", "-c", cfgPath)
	require.NoError(t, err)
	var snap daemon.Snapshot
	require.NoError(t, yaml.Unmarshal([]byte(out), &snap))
	assert.Equal(t, "org.example.cli", snap.Identity)
	assert.Equal(t, "http", snap.Kind)
	assert.Equal(t, "rev-1", snap.Version)
	assert.Equal(t, filepath.Join(dir, "root", "current"), snap.ActivePath)
}

func TestCheck_BlockedByPreHook(t *testing.T) {
	dir := t.TempDir()
	srv := zipServer(t)
	cfgPath := writeConfig(t, dir, "repository = "+srv.URL+"/app.zip")
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "pre.d"), 0o750))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "pre.d", "10-deny"), []byte("#!/bin/sh\nexit 3\n"), 0o700))

	out, err := run(t, "check", "-c", cfgPath)
	require.Error(t, err)
	assert.Contains(t, out, "outcome: blocked")
	assert.Equal(t, 9, errors.NewCLIErrorAdapter(false, nil).ExitCodeFor(err))
}

func TestConfigErrors(t *testing.T) {
	_, err := run(t, "status")
	require.Error(t, err)
	assert.True(t, errors.HasCategory(err, errors.CategoryConfig))

	dir := t.TempDir()
	_, err = run(t, "check", "-c", writeConfig(t, dir, "repository = ftp://example.com/app.zip"))
	require.Error(t, err)
	assert.Equal(t, 7, errors.NewCLIErrorAdapter(false, nil).ExitCodeFor(err))
}

func TestOutcomeError(t *testing.T) {
	hookErr := &hooks.FailedError{Script: "/etc/repo-deploy/post-update.d/10-reload", ExitCode: 1}
	netErr := errors.NetworkError("connection refused").Build()

	tests := []struct {
		name     string
		res      engine.Result
		category errors.ErrorCategory
	}{
		{name: "committed", res: engine.Result{Outcome: engine.OutcomeCommitted}},
		{name: "unchanged", res: engine.Result{Outcome: engine.OutcomeUnchanged}},
		{name: "unavailable", res: engine.Result{Outcome: engine.OutcomeUnavailable}},
		{name: "skipped", res: engine.Result{Outcome: engine.OutcomeSkipped}},
		{name: "rolled back", res: engine.Result{Outcome: engine.OutcomeRolledBack, Err: hookErr}, category: errors.CategoryHook},
		{name: "unstable", res: engine.Result{Outcome: engine.OutcomeUnstable, Err: hookErr}, category: errors.CategoryHook},
		{name: "failed classified", res: engine.Result{Outcome: engine.OutcomeFailed, Err: netErr}, category: errors.CategoryNetwork},
		{name: "failed plain", res: engine.Result{Outcome: engine.OutcomeFailed, Err: assert.AnError}, category: errors.CategoryInternal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := outcomeError(tt.res)
			if tt.category == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, errors.HasCategory(err, tt.category))
		})
	}
}
