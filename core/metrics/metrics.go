// Package metrics provides the minimal instrumentation interfaces the core
// packages depend on, so a backend (Prometheus, StatsD, ...) can be plugged
// in without coupling the engine to any specific implementation.
package metrics

// Counter is a monotonically increasing metric.
type Counter interface {
	// Inc increments the counter by 1.
	Inc()
	// Add increments the counter by delta. delta must be >= 0.
	Add(delta float64)
}

// Timer measures the duration of an operation. Call ObserveDuration when
// the operation completes to record the elapsed time. This allows deferred
// timing patterns like: defer m.LoadDuration("customer").ObserveDuration()
type Timer interface {
	// ObserveDuration records the elapsed time since the timer was created.
	ObserveDuration()
}
