// Package otel publishes Engine metrics through an OpenTelemetry meter.
//
// [NewOTelExporter] registers one Int64ObservableCounter per counter family
// (session, login, authorize and audit) and flattens the lookup latency
// histogram into one Int64ObservableGauge per bucket plus a count gauge. One
// callback collects the whole set per cycle, so every value observed in a
// cycle comes from the same snapshot.
//
// The caller owns the MeterProvider.
package otel
