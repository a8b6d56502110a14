// Package prometheus provides Prometheus collectors for totpgate metrics.
//
// [NewPrometheusExporter] accepts a [totpgate.Gate] and exposes an [http.Handler]
// that renders all gate counters and histograms in Prometheus text exposition format.
// Counter names are prefixed totpgate_*_total; the single histogram is
// totpgate_validator_latency_seconds.
//
// # What this package must NOT do
//
//   - Register metrics in a global Prometheus registry — callers mount the Handler.
//   - Mutate gate state.
package prometheus
