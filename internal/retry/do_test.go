package retry

import (
	"context"
	stderrors "errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/repodeploy/internal/config"
	"git.home.luguber.info/inful/repodeploy/internal/foundation/errors"
)

func fastPolicy(retries int) Policy {
	return NewPolicy(config.RetryBackoffFixed, time.Millisecond, time.Millisecond, retries)
}

func TestDoRetriesTransientErrors(t *testing.T) {
	calls := 0
	v, err := Do(context.Background(), fastPolicy(3), nil, "head", func(context.Context) (string, error) {
		calls++
		if calls < 3 {
			return "", errors.NetworkError("connection reset").Build()
		}
		return "etag", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "etag", v)
	assert.Equal(t, 3, calls)
}

func TestDoStopsOnPermanentError(t *testing.T) {
	calls := 0
	_, err := Do(context.Background(), fastPolicy(3), nil, "head", func(context.Context) (int, error) {
		calls++
		return 0, stderrors.New("permanent")
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestDoExhaustsRetries(t *testing.T) {
	calls := 0
	_, err := Do(context.Background(), fastPolicy(2), nil, "fetch", func(context.Context) (int, error) {
		calls++
		return 0, errors.NetworkError("timeout").Build()
	})
	require.Error(t, err)
	assert.Equal(t, 3, calls)
	assert.Contains(t, err.Error(), "fetch failed after 2 retries")
	assert.True(t, errors.HasCategory(err, errors.CategoryNetwork))
}

func TestDoHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	p := NewPolicy(config.RetryBackoffFixed, time.Hour, time.Hour, 1)
	_, err := Do(ctx, p, nil, "fetch", func(context.Context) (int, error) {
		cancel()
		return 0, errors.NetworkError("timeout").Build()
	})
	assert.ErrorIs(t, err, context.Canceled)
}
