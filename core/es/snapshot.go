package es

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/codewandler/custmgr-go/ports/kv"
)

var ErrSnapshotNotFound = errors.New("snapshot not found")

// Snapshot is a cached (version, serialized state) pair for one aggregate.
// It is semantically redundant with replaying events 1..Version from the
// zero state; losing it costs replay time, never data.
type Snapshot struct {
	AggregateID string    `json:"aggregate_id"`
	Version     Version   `json:"version"`
	Data        []byte    `json:"data"`
	TakenAt     time.Time `json:"taken_at"`
}

func (s *Snapshot) logAttrs() slog.Attr {
	return slog.Group(
		"snapshot",
		slog.String("agg_id", s.AggregateID),
		s.Version.SlogAttr(),
		slog.Int("size", len(s.Data)),
	)
}

// Snapshotter persists at most one snapshot per aggregate id. Save is an
// all-or-nothing overwrite of that one row: insert if absent, else update.
type Snapshotter interface {
	SaveSnapshot(ctx context.Context, snapshot *Snapshot) error
	LoadSnapshot(ctx context.Context, aggID string) (*Snapshot, error)
}

// === In-Memory Snapshotter ===

type InMemorySnapshotter struct {
	mu        sync.Mutex
	snapshots map[string]*Snapshot
}

func NewInMemorySnapshotter() *InMemorySnapshotter {
	return &InMemorySnapshotter{snapshots: map[string]*Snapshot{}}
}

func (i *InMemorySnapshotter) SaveSnapshot(_ context.Context, snapshot *Snapshot) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.snapshots[snapshot.AggregateID] = snapshot
	return nil
}

func (i *InMemorySnapshotter) LoadSnapshot(_ context.Context, aggID string) (*Snapshot, error) {
	i.mu.Lock()
	defer i.mu.Unlock()

	s, ok := i.snapshots[aggID]
	if !ok {
		return nil, ErrSnapshotNotFound
	}
	return s, nil
}

var _ Snapshotter = (*InMemorySnapshotter)(nil)

// === Key-Value Snapshotter ===

// KeyValueSnapshotter stores snapshots in any kv.Store, keyed by aggregate
// id. This is what the JetStream KV adapter plugs into.
type KeyValueSnapshotter struct {
	store kv.Store
}

func NewKeyValueSnapshotter(store kv.Store) *KeyValueSnapshotter {
	return &KeyValueSnapshotter{store: store}
}

func (k *KeyValueSnapshotter) SaveSnapshot(ctx context.Context, snapshot *Snapshot) error {
	return kv.Put(ctx, k.store, snapshot.AggregateID, snapshot)
}

func (k *KeyValueSnapshotter) LoadSnapshot(ctx context.Context, aggID string) (*Snapshot, error) {
	s, err := kv.Get[Snapshot](ctx, k.store, aggID)
	if err != nil {
		if errors.Is(err, kv.ErrNotFound) {
			return nil, ErrSnapshotNotFound
		}
		return nil, fmt.Errorf("load snapshot for %s: %w", aggID, err)
	}
	return &s, nil
}

var _ Snapshotter = (*KeyValueSnapshotter)(nil)
