package metrics

import (
	"sync"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
)

const namespace = "repodeploy"

// PrometheusRecorder implements Recorder using Prometheus metrics.
type PrometheusRecorder struct {
	once            sync.Once
	mu              sync.Mutex
	cycleDuration   prom.Histogram
	cycleOutcomes   *prom.CounterVec
	hookDuration    *prom.HistogramVec
	transportErrors *prom.CounterVec
	activeVersion   *prom.GaugeVec
	lastCycle       prom.Gauge
	current         string
}

// NewPrometheusRecorder constructs and registers Prometheus metrics (idempotent).
// identity is attached as a constant label to every series.
func NewPrometheusRecorder(reg *prom.Registry, identity string) *PrometheusRecorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	labels := prom.Labels{"identity": identity}
	pr := &PrometheusRecorder{}
	pr.once.Do(func() {
		pr.cycleDuration = prom.NewHistogram(prom.HistogramOpts{
			Namespace:   namespace,
			Name:        "cycle_duration_seconds",
			Help:        "Duration of update check cycles",
			Buckets:     prom.DefBuckets,
			ConstLabels: labels,
		})
		pr.cycleOutcomes = prom.NewCounterVec(prom.CounterOpts{
			Namespace:   namespace,
			Name:        "cycle_outcomes_total",
			Help:        "Update check cycles by outcome",
			ConstLabels: labels,
		}, []string{"outcome"})
		pr.hookDuration = prom.NewHistogramVec(prom.HistogramOpts{
			Namespace:   namespace,
			Name:        "hook_duration_seconds",
			Help:        "Duration of pre- and post-update hook runs",
			Buckets:     prom.DefBuckets,
			ConstLabels: labels,
		}, []string{"phase", "result"})
		pr.transportErrors = prom.NewCounterVec(prom.CounterOpts{
			Namespace:   namespace,
			Name:        "transport_errors_total",
			Help:        "Errors returned by the remote source",
			ConstLabels: labels,
		}, []string{"op"})
		pr.activeVersion = prom.NewGaugeVec(prom.GaugeOpts{
			Namespace:   namespace,
			Name:        "active_version_info",
			Help:        "Currently active version (value is always 1)",
			ConstLabels: labels,
		}, []string{"version"})
		pr.lastCycle = prom.NewGauge(prom.GaugeOpts{
			Namespace:   namespace,
			Name:        "last_cycle_timestamp_seconds",
			Help:        "Unix time of the last completed cycle",
			ConstLabels: labels,
		})
		reg.MustRegister(pr.cycleDuration, pr.cycleOutcomes, pr.hookDuration, pr.transportErrors, pr.activeVersion, pr.lastCycle)
	})
	return pr
}

func (p *PrometheusRecorder) ObserveCycleDuration(d time.Duration) {
	if p == nil || p.cycleDuration == nil {
		return
	}
	p.cycleDuration.Observe(d.Seconds())
	p.lastCycle.SetToCurrentTime()
}

func (p *PrometheusRecorder) IncCycleOutcome(outcome string) {
	if p == nil || p.cycleOutcomes == nil {
		return
	}
	p.cycleOutcomes.WithLabelValues(outcome).Inc()
}

func (p *PrometheusRecorder) ObserveHookDuration(phase string, d time.Duration, success bool) {
	if p == nil || p.hookDuration == nil {
		return
	}
	res := "failed"
	if success {
		res = "success"
	}
	p.hookDuration.WithLabelValues(phase, res).Observe(d.Seconds())
}

func (p *PrometheusRecorder) IncTransportError(op string) {
	if p == nil || p.transportErrors == nil {
		return
	}
	p.transportErrors.WithLabelValues(op).Inc()
}

// SetActiveVersion replaces the single active_version_info series.
func (p *PrometheusRecorder) SetActiveVersion(version string) {
	if p == nil || p.activeVersion == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.current != "" && p.current != version {
		p.activeVersion.DeleteLabelValues(p.current)
	}
	p.current = version
	if version != "" {
		p.activeVersion.WithLabelValues(version).Set(1)
	}
}
