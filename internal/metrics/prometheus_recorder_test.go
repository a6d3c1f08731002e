package metrics

import (
	"io"
	"net/http/httptest"
	"testing"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func gather(t *testing.T, reg *prom.Registry, name string) *dto.MetricFamily {
	t.Helper()
	mfs, err := reg.Gather()
	require.NoError(t, err)
	for _, mf := range mfs {
		if mf.GetName() == name {
			return mf
		}
	}
	return nil
}

func labelValue(m *dto.Metric, name string) string {
	for _, lp := range m.GetLabel() {
		if lp.GetName() == name {
			return lp.GetValue()
		}
	}
	return ""
}

func TestPrometheusRecorder(t *testing.T) {
	reg := prom.NewRegistry()
	pr := NewPrometheusRecorder(reg, "com.example.web1")
	pr.ObserveCycleDuration(150 * time.Millisecond)
	pr.IncCycleOutcome("committed")
	pr.IncCycleOutcome("committed")
	pr.IncCycleOutcome("unchanged")
	pr.ObserveHookDuration("pre", 20*time.Millisecond, true)
	pr.IncTransportError("current")

	outcomes := gather(t, reg, "repodeploy_cycle_outcomes_total")
	require.NotNil(t, outcomes)
	counts := map[string]float64{}
	for _, m := range outcomes.GetMetric() {
		counts[labelValue(m, "outcome")] = m.GetCounter().GetValue()
		assert.Equal(t, "com.example.web1", labelValue(m, "identity"))
	}
	assert.Equal(t, map[string]float64{"committed": 2, "unchanged": 1}, counts)

	hooks := gather(t, reg, "repodeploy_hook_duration_seconds")
	require.NotNil(t, hooks)
	require.Len(t, hooks.GetMetric(), 1)
	assert.Equal(t, "success", labelValue(hooks.GetMetric()[0], "result"))
	assert.NotNil(t, gather(t, reg, "repodeploy_last_cycle_timestamp_seconds"))
}

func TestPrometheusRecorder_ActiveVersionKeepsOneSeries(t *testing.T) {
	reg := prom.NewRegistry()
	pr := NewPrometheusRecorder(reg, "host")
	pr.SetActiveVersion("v1")
	pr.SetActiveVersion("v2")

	mf := gather(t, reg, "repodeploy_active_version_info")
	require.NotNil(t, mf)
	require.Len(t, mf.GetMetric(), 1)
	assert.Equal(t, "v2", labelValue(mf.GetMetric()[0], "version"))
}

func TestPrometheusRecorder_NilSafe(t *testing.T) {
	var pr *PrometheusRecorder
	pr.ObserveCycleDuration(time.Second)
	pr.IncCycleOutcome("failed")
	pr.SetActiveVersion("v1")
}

func TestHTTPHandler(t *testing.T) {
	reg := prom.NewRegistry()
	NewPrometheusRecorder(reg, "host").IncCycleOutcome("committed")
	h := HTTPHandler(reg, nil)

	scrape := func() string {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
		body, err := io.ReadAll(rec.Result().Body)
		require.NoError(t, err)
		return string(body)
	}

	assert.Contains(t, scrape(), `repodeploy_cycle_outcomes_total{identity="host",outcome="committed"} 1`)
	assert.Contains(t, scrape(), `promhttp_metric_handler_requests_total{code="200"} 1`)
}
