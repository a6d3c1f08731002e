package daemon

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/repodeploy/internal/config"
)

type reloadRecorder struct {
	mu      sync.Mutex
	configs []*config.Config
}

func (r *reloadRecorder) reload(_ context.Context, cfg *config.Config) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.configs = append(r.configs, cfg)
	return nil
}

func (r *reloadRecorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.configs)
}

func (r *reloadRecorder) last() *config.Config {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.configs[len(r.configs)-1]
}

func startWatcher(t *testing.T, path string, rec *reloadRecorder) *ConfigWatcher {
	t.Helper()
	cw, err := NewConfigWatcher(path, rec.reload, nil)
	require.NoError(t, err)
	cw.debounceTime = 50 * time.Millisecond
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	require.NoError(t, cw.Start(ctx))
	t.Cleanup(func() { _ = cw.Stop() })
	return cw
}

func TestConfigWatcher_AppliesValidChange(t *testing.T) {
	dir := t.TempDir()
	path := writeTestConfig(t, dir, "s3://bucket/v1.zip", "*/5 * * * *")
	rec := &reloadRecorder{}
	startWatcher(t, path, rec)

	writeTestConfig(t, dir, "s3://bucket/v2.zip", "*/5 * * * *")

	require.Eventually(t, func() bool { return rec.count() > 0 }, 5*time.Second, 20*time.Millisecond)
	assert.Equal(t, "s3://bucket/v2.zip", rec.last().Repository)
}

func TestConfigWatcher_IgnoresInvalidChange(t *testing.T) {
	dir := t.TempDir()
	path := writeTestConfig(t, dir, "s3://bucket/v1.zip", "*/5 * * * *")
	rec := &reloadRecorder{}
	startWatcher(t, path, rec)

	require.NoError(t, os.WriteFile(path, []byte("identity = web01\n"), 0o600))
	time.Sleep(300 * time.Millisecond)
	assert.Zero(t, rec.count())
}

func TestConfigWatcher_IgnoresOtherFiles(t *testing.T) {
	dir := t.TempDir()
	path := writeTestConfig(t, dir, "s3://bucket/v1.zip", "*/5 * * * *")
	rec := &reloadRecorder{}
	startWatcher(t, path, rec)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "other.conf"), []byte("x"), 0o600))
	time.Sleep(300 * time.Millisecond)
	assert.Zero(t, rec.count())
}

func TestConfigWatcher_StopIsIdempotent(t *testing.T) {
	path := writeTestConfig(t, t.TempDir(), "s3://bucket/v1.zip", "* * * * *")
	cw, err := NewConfigWatcher(path, (&reloadRecorder{}).reload, nil)
	require.NoError(t, err)
	require.NoError(t, cw.Start(context.Background()))
	require.NoError(t, cw.Stop())
	require.NoError(t, cw.Stop())
}
