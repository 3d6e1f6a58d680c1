// Package prometheus renders Engine metrics in Prometheus text exposition format.
//
// Counter names are gosession_*_total; the single histogram is
// gosession_session_lookup_latency_seconds. Nothing is registered globally: callers
// mount [PrometheusExporter.Handler] where they want it, usually behind an admin policy.
package prometheus
