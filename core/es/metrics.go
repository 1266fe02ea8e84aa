package es

import "github.com/codewandler/custmgr-go/core/metrics"

// Metrics is the instrumentation hook for the engine. Implementations must
// be thread-safe; the nop implementation is the default.
type Metrics interface {
	LoadDuration(aggType string) metrics.Timer
	AppendDuration(aggType string) metrics.Timer

	EventsAppended(aggType string, count int)
	EventsReplayed(aggType string, count int)
	ConcurrencyConflict(aggType string)

	SnapshotLoadDuration(aggType string) metrics.Timer
	SnapshotSaveDuration(aggType string) metrics.Timer
	SnapshotRefreshFailure(aggType string)
}

type nopMetrics struct{}

func (nopMetrics) LoadDuration(string) metrics.Timer   { return metrics.NopTimer() }
func (nopMetrics) AppendDuration(string) metrics.Timer { return metrics.NopTimer() }

func (nopMetrics) EventsAppended(string, int) {}
func (nopMetrics) EventsReplayed(string, int) {}
func (nopMetrics) ConcurrencyConflict(string) {}

func (nopMetrics) SnapshotLoadDuration(string) metrics.Timer { return metrics.NopTimer() }
func (nopMetrics) SnapshotSaveDuration(string) metrics.Timer { return metrics.NopTimer() }
func (nopMetrics) SnapshotRefreshFailure(string)             {}

// NopMetrics returns a no-op Metrics implementation.
func NopMetrics() Metrics { return nopMetrics{} }
