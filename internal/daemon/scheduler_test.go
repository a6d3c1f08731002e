package daemon

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestScheduler(t *testing.T) *Scheduler {
	t.Helper()
	s, err := NewScheduler(nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Stop(context.Background()) })
	return s
}

func TestScheduler_ScheduleCron(t *testing.T) {
	t.Run("returns job id for valid cron", func(t *testing.T) {
		s := newTestScheduler(t)
		id, err := s.ScheduleCron("test", "0 */4 * * *", false, func() {})
		require.NoError(t, err)
		require.NotEmpty(t, id)
	})

	t.Run("rejects invalid cron", func(t *testing.T) {
		s := newTestScheduler(t)
		_, err := s.ScheduleCron("test", "this is not a cron", false, func() {})
		require.Error(t, err)
	})

	t.Run("runs immediately when asked", func(t *testing.T) {
		s := newTestScheduler(t)
		var runs atomic.Int32
		_, err := s.ScheduleCron("test", "0 0 1 1 *", true, func() { runs.Add(1) })
		require.NoError(t, err)
		s.Start()
		assert.Eventually(t, func() bool { return runs.Load() == 1 }, 5*time.Second, 10*time.Millisecond)
	})
}

func TestScheduler_Reschedule(t *testing.T) {
	s := newTestScheduler(t)
	s.Start()
	id, err := s.ScheduleCron("check", "0 0 1 1 *", false, func() {})
	require.NoError(t, err)
	var before time.Time
	require.Eventually(t, func() bool {
		next, ok := s.NextRun(id)
		before = next
		return ok && !next.IsZero()
	}, 5*time.Second, 10*time.Millisecond)

	require.NoError(t, s.Reschedule(id, "* * * * *", func() {}))

	assert.Eventually(t, func() bool {
		next, ok := s.NextRun(id)
		return ok && next.Before(before) && time.Until(next) <= time.Minute+time.Second
	}, 5*time.Second, 10*time.Millisecond)

	require.Error(t, s.Reschedule("not-a-uuid", "* * * * *", func() {}))
	require.Error(t, s.Reschedule(id, "bogus", func() {}))
}
