// Package otel binds engine metrics to OpenTelemetry instruments.
//
// [NewOTelExporter] registers one Int64ObservableCounter per engine counter
// and one Int64ObservableGauge per latency bucket. A single callback reads
// [marketauth.Engine.MetricsSnapshot] on each collection cycle. Callers own
// the MeterProvider.
package otel
