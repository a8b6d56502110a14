// Package otel provides OpenTelemetry metric exporter bindings for totpgate counters and
// histograms.
//
// [NewOTelExporter] registers Int64ObservableCounter instruments for each gate metric
// and Int64ObservableGauge per histogram bucket. A single callback reads
// [totpgate.Gate.MetricsSnapshot] on each collection cycle.
//
// # What this package must NOT do
//
//   - Own the OTel MeterProvider — callers supply the Meter.
//   - Mutate gate state.
package otel
