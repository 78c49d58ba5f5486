// Package prometheus exposes engine metrics to Prometheus.
//
// [PrometheusExporter] is a prometheus.Collector: register it with your own
// registry, or mount [PrometheusExporter.Handler], which serves it from a
// private one. [PrometheusExporter.Render] produces the same series as
// plain text without a registry. Counters are named gojwt_*_total; the
// histogram is gojwt_verify_latency_seconds.
//
// # What this package must NOT do
//
//   - Register metrics in the global Prometheus registry.
//   - Mutate engine state.
package prometheus
