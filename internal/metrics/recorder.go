package metrics

import "time"

// Recorder defines observability hooks for update cycles. Implementations may
// forward to Prometheus or anything else; NoopRecorder is the default.
type Recorder interface {
	ObserveCycleDuration(d time.Duration)
	IncCycleOutcome(outcome string) // outcome: unchanged|unavailable|skipped|blocked|committed|rolled_back|unstable|failed
	ObserveHookDuration(phase string, d time.Duration, success bool)
	IncTransportError(op string) // op: current|fetch
	SetActiveVersion(version string)
}

// NoopRecorder is a Recorder that does nothing (default when metrics not configured).
type NoopRecorder struct{}

func (NoopRecorder) ObserveCycleDuration(time.Duration)              {}
func (NoopRecorder) IncCycleOutcome(string)                          {}
func (NoopRecorder) ObserveHookDuration(string, time.Duration, bool) {}
func (NoopRecorder) IncTransportError(string)                        {}
func (NoopRecorder) SetActiveVersion(string)                         {}
