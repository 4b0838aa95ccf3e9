// Package stats provides an event-driven statistics aggregator and a
// Prometheus collector for an admitgov.Governor. Both are peripheral: they
// consume only the governor's public event and snapshot contract and are
// not part of the admission-control decision path.
package stats
