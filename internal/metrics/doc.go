// Package metrics records update-cycle metrics.
//
// Components receive a Recorder through their options and default to
// NoopRecorder, so callers never check for nil:
//
//	eng := engine.New(engine.Options{Recorder: metrics.NoopRecorder{}})
//
// When metrics_addr is configured the daemon swaps in a PrometheusRecorder
// backed by its own registry and serves HTTPHandler on that address.
package metrics
