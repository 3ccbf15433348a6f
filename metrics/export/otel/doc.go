// Package otel mirrors sessiongate metrics into OpenTelemetry instruments.
//
// [NewOTelExporter] registers an Int64ObservableCounter per gateway counter,
// an Int64ObservableGauge per histogram bucket, and gauges for the live
// actor count. A single callback reads [sessiongate.Gateway.MetricsSnapshot]
// on each collection cycle.
//
// # What this package must NOT do
//
//   - Own the MeterProvider. Callers supply the Meter.
//   - Mutate gateway state.
package otel
