package es_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codewandler/custmgr-go/core/es"
)

// A tiny counter aggregate, enough to drive the engine end to end.

type counter struct {
	ID    string `json:"id"`
	Total int    `json:"total"`
}

func (c *counter) Apply(evt es.Event) {
	switch e := evt.(type) {
	case *incremented:
		c.Total += e.By
	default:
	}
}

type counterInit struct {
	es.EventBase
	ID string `json:"id"`
}

func (*counterInit) Kind() string { return "CounterInitialized" }

type incremented struct {
	es.EventBase
	By int `json:"by"`
}

func (*incremented) Kind() string { return "Incremented" }

func newCounterRepo(store es.EventStore, snapshots es.Snapshotter) *es.Repository[*counter] {
	registry := es.NewRegistry()
	es.RegisterEvents(registry,
		es.EventOf[counterInit](),
		es.EventOf[incremented](),
	)

	return es.NewRepository(es.RepositoryConfig[*counter]{
		Store:     store,
		Snapshots: snapshots,
		Registry:  registry,
		AggType:   "counter",
		NewState:  func(id string) *counter { return &counter{ID: id} },
		InitEvent: func(id string) es.Event { return &counterInit{ID: id} },
	})
}

func TestRepository_FirstAppendInitializesStream(t *testing.T) {
	var (
		store = es.NewInMemoryStore()
		snaps = es.NewInMemorySnapshotter()
		repo  = newCounterRepo(store, snaps)
	)

	version, err := repo.Append(context.Background(), "c1", 0, &incremented{By: 3})
	require.NoError(t, err)
	assert.Equal(t, es.Version(1), version)

	// marker at version 0, event at version 1
	envs, err := store.Load(context.Background(), "c1", -1)
	require.NoError(t, err)
	require.Len(t, envs, 2)
	assert.Equal(t, es.Version(0), envs[0].Version)
	assert.Equal(t, "CounterInitialized", envs[0].Kind)
	assert.Equal(t, es.Version(1), envs[1].Version)
	assert.Equal(t, "Incremented", envs[1].Kind)

	// baseline snapshot of the zero state at version 0
	snap, err := snaps.LoadSnapshot(context.Background(), "c1")
	require.NoError(t, err)
	assert.Equal(t, es.Version(0), snap.Version)

	var zero counter
	require.NoError(t, json.Unmarshal(snap.Data, &zero))
	assert.Equal(t, counter{ID: "c1"}, zero)
}

func TestRepository_VersionsAreSequential(t *testing.T) {
	repo := newCounterRepo(es.NewInMemoryStore(), es.NewInMemorySnapshotter())

	version, err := repo.Append(context.Background(), "c1", 0, &incremented{By: 1}, &incremented{By: 2})
	require.NoError(t, err)
	assert.Equal(t, es.Version(2), version)

	version, err = repo.Append(context.Background(), "c1", 2, &incremented{By: 3})
	require.NoError(t, err)
	assert.Equal(t, es.Version(3), version)

	loaded, state, err := repo.Load(context.Background(), "c1")
	require.NoError(t, err)
	assert.Equal(t, es.Version(3), loaded)
	assert.Equal(t, 6, state.Total)
}

func TestRepository_AppendNoEvents(t *testing.T) {
	repo := newCounterRepo(es.NewInMemoryStore(), es.NewInMemorySnapshotter())

	version, err := repo.Append(context.Background(), "c1", 0)
	require.ErrorIs(t, err, es.ErrNoEvents)
	assert.Equal(t, es.Version(0), version)
}

func TestRepository_ConflictWritesNothing(t *testing.T) {
	var (
		store = es.NewInMemoryStore()
		repo  = newCounterRepo(store, es.NewInMemorySnapshotter())
	)

	_, err := repo.Append(context.Background(), "c1", 0, &incremented{By: 1})
	require.NoError(t, err)

	// stale expectation, stream head is already 1
	head, err := repo.Append(context.Background(), "c1", 0, &incremented{By: 99})
	require.ErrorIs(t, err, es.ErrConflict)
	assert.Equal(t, es.Version(1), head)

	_, state, err := repo.Load(context.Background(), "c1")
	require.NoError(t, err)
	assert.Equal(t, 1, state.Total)
}

func TestRepository_LoadMissingStream(t *testing.T) {
	repo := newCounterRepo(es.NewInMemoryStore(), es.NewInMemorySnapshotter())

	version, state, err := repo.Load(context.Background(), "nope")
	require.NoError(t, err)
	assert.Equal(t, es.Version(0), version)
	assert.Equal(t, &counter{ID: "nope"}, state)
}

func TestRepository_SnapshotIsTransparent(t *testing.T) {
	var (
		store = es.NewInMemoryStore()
		snaps = es.NewInMemorySnapshotter()
		warm  = newCounterRepo(store, snaps)
	)

	_, err := warm.Append(context.Background(), "c1", 0, &incremented{By: 1}, &incremented{By: 2})
	require.NoError(t, err)

	// first read advances the snapshot past the baseline
	_, _, err = warm.Load(context.Background(), "c1")
	require.NoError(t, err)

	snap, err := snaps.LoadSnapshot(context.Background(), "c1")
	require.NoError(t, err)
	assert.Equal(t, es.Version(2), snap.Version)

	// a cold repository without the snapshot replays to the same state
	cold := newCounterRepo(store, es.NewInMemorySnapshotter())

	warmV, warmState, err := warm.Load(context.Background(), "c1")
	require.NoError(t, err)
	coldV, coldState, err := cold.Load(context.Background(), "c1")
	require.NoError(t, err)

	assert.Equal(t, warmV, coldV)
	assert.Equal(t, warmState, coldState)
}

type failingSnapshotter struct {
	inner es.Snapshotter
	fail  bool
}

func (f *failingSnapshotter) SaveSnapshot(ctx context.Context, s *es.Snapshot) error {
	if f.fail {
		return assert.AnError
	}
	return f.inner.SaveSnapshot(ctx, s)
}

func (f *failingSnapshotter) LoadSnapshot(ctx context.Context, aggID string) (*es.Snapshot, error) {
	return f.inner.LoadSnapshot(ctx, aggID)
}

func TestRepository_SnapshotRefreshIsBestEffort(t *testing.T) {
	var (
		snaps = &failingSnapshotter{inner: es.NewInMemorySnapshotter()}
		repo  = newCounterRepo(es.NewInMemoryStore(), snaps)
	)

	_, err := repo.Append(context.Background(), "c1", 0, &incremented{By: 5})
	require.NoError(t, err)

	// refresh fails from here on, reads must not notice
	snaps.fail = true

	version, state, err := repo.Load(context.Background(), "c1")
	require.NoError(t, err)
	assert.Equal(t, es.Version(1), version)
	assert.Equal(t, 5, state.Total)
}

type failingStore struct {
	es.EventStore
	failAfter int
	appends   int
}

func (f *failingStore) Append(ctx context.Context, env es.Envelope) error {
	f.appends++
	if f.appends > f.failAfter {
		return assert.AnError
	}
	return f.EventStore.Append(ctx, env)
}

func TestRepository_PartialAppend(t *testing.T) {
	var (
		inner = es.NewInMemoryStore()
		// marker + first event succeed, second event fails
		store = &failingStore{EventStore: inner, failAfter: 2}
		repo  = newCounterRepo(store, es.NewInMemorySnapshotter())
	)

	version, err := repo.Append(context.Background(), "c1", 0, &incremented{By: 1}, &incremented{By: 2})

	var partial *es.PartialAppendError
	require.ErrorAs(t, err, &partial)
	assert.Equal(t, "c1", partial.AggregateID)
	assert.Equal(t, 1, partial.Committed)
	assert.Equal(t, 2, partial.Total)
	assert.Equal(t, es.Version(1), version)

	// the committed prefix stays in the stream
	head, err := inner.Head(context.Background(), "c1")
	require.NoError(t, err)
	assert.Equal(t, es.Version(1), head)
}

func TestRepository_InitMarkerIsNotDuplicated(t *testing.T) {
	var (
		inner = es.NewInMemoryStore()
		// the marker write succeeds, the first real event fails
		store = &failingStore{EventStore: inner, failAfter: 1}
		repo  = newCounterRepo(store, es.NewInMemorySnapshotter())
	)

	_, err := repo.Append(context.Background(), "c1", 0, &incremented{By: 1})
	require.Error(t, err)

	// retry sees head 0 but the marker already exists
	store.failAfter = 10
	version, err := repo.Append(context.Background(), "c1", 0, &incremented{By: 1})
	require.NoError(t, err)
	assert.Equal(t, es.Version(1), version)

	envs, err := inner.Load(context.Background(), "c1", -1)
	require.NoError(t, err)
	require.Len(t, envs, 2)
	assert.Equal(t, es.Version(0), envs[0].Version)
	assert.Equal(t, es.Version(1), envs[1].Version)
}

func TestRepository_UnknownKindIsSkipped(t *testing.T) {
	var (
		store = es.NewInMemoryStore()
		repo  = newCounterRepo(store, es.NewInMemorySnapshotter())
	)

	_, err := repo.Append(context.Background(), "c1", 0, &incremented{By: 7})
	require.NoError(t, err)

	// an event kind this build does not know about
	require.NoError(t, store.Append(context.Background(), es.Envelope{
		ID:          gonanoid.Must(),
		AggregateID: "c1",
		Version:     2,
		Kind:        "SomethingNewer",
		OccurredAt:  time.Now(),
		Data:        json.RawMessage(`{"whatever":true}`),
	}))

	version, state, err := repo.Load(context.Background(), "c1")
	require.NoError(t, err)
	assert.Equal(t, es.Version(2), version)
	assert.Equal(t, 7, state.Total)
}

func TestRepository_PreassignedVersionOccupiesSlot(t *testing.T) {
	var (
		store = es.NewInMemoryStore()
		repo  = newCounterRepo(store, es.NewInMemorySnapshotter())
	)

	_, err := repo.Append(context.Background(), "c1", 0, &incremented{By: 1})
	require.NoError(t, err)

	// an event that already carries version 2 counts in the sequence but
	// is not written again
	replayed := &incremented{By: 100}
	replayed.Version = 2

	version, err := repo.Append(context.Background(), "c1", 1, replayed, &incremented{By: 3})
	require.NoError(t, err)
	assert.Equal(t, es.Version(3), version)

	envs, err := store.Load(context.Background(), "c1", 1)
	require.NoError(t, err)
	require.Len(t, envs, 1)
	assert.Equal(t, es.Version(3), envs[0].Version)
}
