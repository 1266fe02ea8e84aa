package prometheus

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/codewandler/custmgr-go/core/es"
	"github.com/codewandler/custmgr-go/core/metrics"
)

// esMetrics implements es.Metrics using Prometheus.
type esMetrics struct {
	loadDuration   *prometheus.HistogramVec
	appendDuration *prometheus.HistogramVec

	eventsAppended       *prometheus.CounterVec
	eventsReplayed       *prometheus.CounterVec
	concurrencyConflicts *prometheus.CounterVec

	snapshotLoadDuration    *prometheus.HistogramVec
	snapshotSaveDuration    *prometheus.HistogramVec
	snapshotRefreshFailures *prometheus.CounterVec
}

// NewESMetrics creates a new Prometheus implementation of es.Metrics and
// registers all collectors with reg.
func NewESMetrics(reg prometheus.Registerer) es.Metrics {
	m := &esMetrics{
		loadDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "custmgr_es_load_duration_seconds",
			Help:    "Aggregate hydration latency in seconds",
			Buckets: defaultBuckets,
		}, []string{"aggregate_type"}),

		appendDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "custmgr_es_append_duration_seconds",
			Help:    "Append latency in seconds",
			Buckets: defaultBuckets,
		}, []string{"aggregate_type"}),

		eventsAppended: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "custmgr_es_events_appended_total",
			Help: "Total number of events appended",
		}, []string{"aggregate_type"}),

		eventsReplayed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "custmgr_es_events_replayed_total",
			Help: "Total number of events folded during hydration",
		}, []string{"aggregate_type"}),

		concurrencyConflicts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "custmgr_es_concurrency_conflicts_total",
			Help: "Total number of optimistic version check failures",
		}, []string{"aggregate_type"}),

		snapshotLoadDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "custmgr_es_snapshot_load_duration_seconds",
			Help:    "Snapshot load latency in seconds",
			Buckets: defaultBuckets,
		}, []string{"aggregate_type"}),

		snapshotSaveDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "custmgr_es_snapshot_save_duration_seconds",
			Help:    "Snapshot save latency in seconds",
			Buckets: defaultBuckets,
		}, []string{"aggregate_type"}),

		snapshotRefreshFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "custmgr_es_snapshot_refresh_failures_total",
			Help: "Total number of best-effort snapshot refreshes that failed",
		}, []string{"aggregate_type"}),
	}

	reg.MustRegister(
		m.loadDuration,
		m.appendDuration,
		m.eventsAppended,
		m.eventsReplayed,
		m.concurrencyConflicts,
		m.snapshotLoadDuration,
		m.snapshotSaveDuration,
		m.snapshotRefreshFailures,
	)

	return m
}

func (m *esMetrics) LoadDuration(aggType string) metrics.Timer {
	return newTimer(m.loadDuration.WithLabelValues(aggType))
}

func (m *esMetrics) AppendDuration(aggType string) metrics.Timer {
	return newTimer(m.appendDuration.WithLabelValues(aggType))
}

func (m *esMetrics) EventsAppended(aggType string, count int) {
	m.eventsAppended.WithLabelValues(aggType).Add(float64(count))
}

func (m *esMetrics) EventsReplayed(aggType string, count int) {
	m.eventsReplayed.WithLabelValues(aggType).Add(float64(count))
}

func (m *esMetrics) ConcurrencyConflict(aggType string) {
	m.concurrencyConflicts.WithLabelValues(aggType).Inc()
}

func (m *esMetrics) SnapshotLoadDuration(aggType string) metrics.Timer {
	return newTimer(m.snapshotLoadDuration.WithLabelValues(aggType))
}

func (m *esMetrics) SnapshotSaveDuration(aggType string) metrics.Timer {
	return newTimer(m.snapshotSaveDuration.WithLabelValues(aggType))
}

func (m *esMetrics) SnapshotRefreshFailure(aggType string) {
	m.snapshotRefreshFailures.WithLabelValues(aggType).Inc()
}

var _ es.Metrics = (*esMetrics)(nil)
