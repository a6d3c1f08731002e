package hooks

import (
	"bytes"
	"context"
	stderrors "errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/repodeploy/internal/procexec"
)

func writeScript(t *testing.T, dir, name, body string, mode os.FileMode) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("#!/bin/sh\n"+body+"\n"), mode))
}

type recordingExecutor struct {
	calls []procexec.Command
	exits map[string]int
}

func (e *recordingExecutor) Run(_ context.Context, cmd procexec.Command) (procexec.Result, error) {
	e.calls = append(e.calls, cmd)
	return procexec.Result{ExitCode: e.exits[filepath.Base(cmd.Path)], Output: []byte("line one\nline two\n")}, nil
}

func envValue(env []string, key string) (string, bool) {
	for _, kv := range env {
		if v, ok := strings.CutPrefix(kv, key+"="); ok {
			return v, true
		}
	}
	return "", false
}

func TestRun_MissingDirectory(t *testing.T) {
	exec := &recordingExecutor{}
	r := NewRunner(exec)
	require.NoError(t, r.Run(context.Background(), filepath.Join(t.TempDir(), "absent"), "/new", "/old"))
	require.NoError(t, r.Run(context.Background(), "", "/new", "/old"))
	assert.Empty(t, exec.calls)
}

func TestRun_OrderAndFiltering(t *testing.T) {
	dir := t.TempDir()
	writeScript(t, dir, "20-second", "true", 0o755)
	writeScript(t, dir, "10-first", "true", 0o755)
	writeScript(t, dir, "15-not-executable", "true", 0o644)
	require.NoError(t, os.Mkdir(filepath.Join(dir, "05-directory"), 0o755))

	exec := &recordingExecutor{}
	r := NewRunner(exec)
	r.environ = func() []string { return []string{"PATH=/bin", "CURRENT_CONFIG=stale"} }

	require.NoError(t, r.Run(context.Background(), dir, "/new", ""))
	require.Len(t, exec.calls, 2)
	assert.Equal(t, "10-first", filepath.Base(exec.calls[0].Path))
	assert.Equal(t, "20-second", filepath.Base(exec.calls[1].Path))

	env := exec.calls[0].Env
	assert.Contains(t, env, "PATH=/bin")
	assert.Equal(t, "CURRENT_CONFIG=/new", env[len(env)-2])
	prev, ok := envValue(env, EnvPrevious)
	assert.True(t, ok)
	assert.Empty(t, prev)
}

func TestRun_ShortCircuit(t *testing.T) {
	dir := t.TempDir()
	marker := filepath.Join(t.TempDir(), "third-ran")
	writeScript(t, dir, "01-ok", "exit 0", 0o755)
	writeScript(t, dir, "02-fail", "echo broken config; exit 4", 0o755)
	writeScript(t, dir, "03-never", "touch "+marker, 0o755)

	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, nil))
	r := NewRunner(procexec.New(), WithLogger(logger))

	err := r.Run(context.Background(), dir, "/new", "/old")
	require.Error(t, err)

	var failed *FailedError
	require.True(t, stderrors.As(err, &failed))
	assert.Equal(t, 4, failed.ExitCode)
	assert.Equal(t, "02-fail", filepath.Base(failed.Script))
	assert.Contains(t, string(failed.Output), "broken config")
	assert.Contains(t, logs.String(), "broken config")

	_, statErr := os.Stat(marker)
	assert.True(t, os.IsNotExist(statErr), "third script must not run")
}

func TestRun_ScriptSeesEnvironment(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(t.TempDir(), "env.txt")
	writeScript(t, dir, "dump", `printf "%s|%s" "$CURRENT_CONFIG" "$PREVIOUS_CONFIG" > `+out, 0o755)

	r := NewRunner(procexec.New())
	require.NoError(t, r.Run(context.Background(), dir, "/srv/new", "/srv/old"))

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, "/srv/new|/srv/old", string(data))
}

func TestRun_ExecutorErrorIsHookError(t *testing.T) {
	dir := t.TempDir()
	writeScript(t, dir, "broken", "true", 0o755)
	r := NewRunner(failingExecutor{})
	err := r.Run(context.Background(), dir, "/new", "")
	require.Error(t, err)
	var failed *FailedError
	assert.False(t, stderrors.As(err, &failed))
}

type failingExecutor struct{}

func (failingExecutor) Run(context.Context, procexec.Command) (procexec.Result, error) {
	return procexec.Result{}, stderrors.New("exec format error")
}
