package prometheus

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewESMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewESMetrics(reg)

	require.NotNil(t, m)

	timer := m.LoadDuration("customer")
	assert.NotNil(t, timer)
	timer.ObserveDuration()

	timer = m.AppendDuration("customer")
	assert.NotNil(t, timer)
	timer.ObserveDuration()

	m.EventsAppended("customer", 5)
	m.EventsReplayed("customer", 12)
	m.ConcurrencyConflict("customer")

	timer = m.SnapshotLoadDuration("customer")
	assert.NotNil(t, timer)
	timer.ObserveDuration()

	timer = m.SnapshotSaveDuration("customer")
	assert.NotNil(t, timer)
	timer.ObserveDuration()

	m.SnapshotRefreshFailure("customer")

	mfs, err := reg.Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, mfs)

	names := make(map[string]bool)
	for _, mf := range mfs {
		names[mf.GetName()] = true
	}

	assert.True(t, names["custmgr_es_load_duration_seconds"])
	assert.True(t, names["custmgr_es_append_duration_seconds"])
	assert.True(t, names["custmgr_es_events_appended_total"])
	assert.True(t, names["custmgr_es_events_replayed_total"])
	assert.True(t, names["custmgr_es_concurrency_conflicts_total"])
	assert.True(t, names["custmgr_es_snapshot_refresh_failures_total"])
}
