// Package metrics records proxy statistics.
//
// Stats is the single shared mutable structure of the router: every
// dispatch calls Begin once and, unless the client went away, Complete once.
// All counters and running averages are updated under one mutex so a
// snapshot is always internally consistent:
//
//	stats := metrics.NewStats()
//	stats.Begin()
//	stats.Complete("api", 120*time.Millisecond, true)
//	snap := stats.Snapshot()
//
// Exporter mirrors the same events into Prometheus collectors served on
// /metrics. A nil *Exporter is valid and records nothing.
package metrics
