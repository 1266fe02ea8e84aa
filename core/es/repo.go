package es

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

// State is the mutable projection an event stream folds into. Apply must
// be pure, deterministic and total: every known event kind has a defined
// transition and unrecognized kinds leave the state unchanged. Apply never
// fails; malformed payloads are a decoding concern, not a reducer concern.
type State interface {
	Apply(evt Event)
}

// RepositoryConfig wires a Repository. Store is required; everything else
// has a default. InitEvent, when set, produces the version-0 marker written
// on an aggregate's first-ever append.
type RepositoryConfig[T State] struct {
	Log       *slog.Logger
	Store     EventStore
	Snapshots Snapshotter
	Registry  *EventRegistry
	Metrics   Metrics

	// AggType names the aggregate stream, used for logging and metrics.
	AggType string
	// NewState constructs the zero state for an aggregate id.
	NewState func(id string) T
	// InitEvent constructs the structural marker stored at version 0.
	InitEvent func(id string) Event
}

// Repository materializes aggregate state from snapshots plus the event
// tail, and appends new events with an optimistic version check.
type Repository[T State] struct {
	log       *slog.Logger
	store     EventStore
	snapshots Snapshotter
	registry  *EventRegistry
	metrics   Metrics
	aggType   string
	newState  func(id string) T
	initEvent func(id string) Event
}

func NewRepository[T State](cfg RepositoryConfig[T]) *Repository[T] {
	log := cfg.Log
	if log == nil {
		log = slog.Default()
	}
	snapshots := cfg.Snapshots
	if snapshots == nil {
		snapshots = NewInMemorySnapshotter()
	}
	registry := cfg.Registry
	if registry == nil {
		registry = NewRegistry()
	}
	m := cfg.Metrics
	if m == nil {
		m = NopMetrics()
	}

	return &Repository[T]{
		log:       log.With(slog.String("agg_type", cfg.AggType)),
		store:     cfg.Store,
		snapshots: snapshots,
		registry:  registry,
		metrics:   m,
		aggType:   cfg.AggType,
		newState:  cfg.NewState,
		initEvent: cfg.InitEvent,
	}
}

// Registry returns the event registry so domain packages can register
// their event constructors.
func (r *Repository[T]) Registry() *EventRegistry { return r.registry }

// Load materializes the current state of an aggregate: latest snapshot,
// then every stored event newer than snapshot version folded in version
// order. When replay advanced past the snapshot, a refreshed snapshot is
// written best-effort so steady-state reads only touch the event tail; a
// failed refresh never fails the read.
//
// An aggregate with zero events comes back as the zero state at version 0,
// which is how callers distinguish "exists" from "not found".
func (r *Repository[T]) Load(ctx context.Context, aggID string) (Version, T, error) {
	timer := r.metrics.LoadDuration(r.aggType)
	defer timer.ObserveDuration()

	state := r.newState(aggID)
	version := Version(0)

	snapTimer := r.metrics.SnapshotLoadDuration(r.aggType)
	snap, err := r.snapshots.LoadSnapshot(ctx, aggID)
	snapTimer.ObserveDuration()
	switch {
	case err == nil:
		if err := json.Unmarshal(snap.Data, state); err != nil {
			return 0, state, fmt.Errorf("restore snapshot for %s: %w", aggID, err)
		}
		version = snap.Version
	case errors.Is(err, ErrSnapshotNotFound):
		// no snapshot yet, fold from the zero state
	default:
		return 0, state, fmt.Errorf("load snapshot for %s: %w", aggID, err)
	}

	snapVersion := version

	envs, err := r.store.Load(ctx, aggID, version)
	if err != nil {
		return 0, state, fmt.Errorf("load events for %s after version %d: %w", aggID, version, err)
	}

	for _, env := range envs {
		evt, err := r.registry.Decode(env)
		if err != nil {
			if errors.Is(err, ErrUnknownEventKind) {
				// written by newer code; skipping keeps replay total
				r.log.Debug(
					"skipping unknown event kind",
					slog.String("agg_id", aggID),
					slog.String("kind", env.Kind),
					env.Version.SlogAttr(),
				)
				version = env.Version
				continue
			}
			return 0, state, err
		}
		state.Apply(evt)
		version = env.Version
	}
	r.metrics.EventsReplayed(r.aggType, len(envs))

	if version > snapVersion {
		if err := r.saveSnapshot(ctx, aggID, version, state); err != nil {
			r.metrics.SnapshotRefreshFailure(r.aggType)
			r.log.Warn(
				"snapshot refresh failed",
				slog.String("agg_id", aggID),
				version.SlogAttr(),
				slog.Any("error", err),
			)
		}
	}

	r.log.Debug(
		"loaded",
		slog.Group(
			"agg",
			slog.String("id", aggID),
			version.SlogAttr(),
		),
		slog.Int("num_events", len(envs)),
		snapVersion.SlogAttrWithKey("snapshot_version"),
	)

	return version, state, nil
}

// Append validates expect against the persisted stream head and, when it
// matches, assigns sequential versions to the new events and writes them
// one durable insert at a time. The first-ever write for an aggregate also
// seeds the version-0 Initialized marker and a baseline snapshot.
//
// Events that already carry a version are counted in the sequence but not
// re-written: a pre-assigned version marks a pre-existing event being
// replayed in from elsewhere.
//
// On a head mismatch nothing is written and ErrConflict is returned; the
// caller must re-read and retry, the engine never retries on its own. A
// storage failure after the first insert of a call surfaces as a
// *PartialAppendError because the committed prefix stays in the stream.
func (r *Repository[T]) Append(ctx context.Context, aggID string, expect Version, events ...Event) (Version, error) {
	if len(events) == 0 {
		return expect, ErrNoEvents
	}

	timer := r.metrics.AppendDuration(r.aggType)
	defer timer.ObserveDuration()

	head, err := r.store.Head(ctx, aggID)
	if err != nil {
		return 0, fmt.Errorf("read stream head for %s: %w", aggID, err)
	}
	if head != expect {
		r.metrics.ConcurrencyConflict(r.aggType)
		return head, fmt.Errorf(
			"%w: expected version %d, stream head is %d (agg_id=%s)",
			ErrConflict, expect, head, aggID,
		)
	}

	if head == 0 {
		if err := r.initStream(ctx, aggID); err != nil {
			return 0, err
		}
	}

	var (
		version   = head
		committed = 0
	)
	for _, evt := range events {
		version++

		if preassignedVersion(evt) > 0 {
			// already persisted elsewhere, occupies its slot in the sequence
			continue
		}

		env, err := r.envelope(aggID, version, evt)
		if err != nil {
			err = fmt.Errorf("encode %s event at version %d: %w", evt.Kind(), version, err)
			if committed > 0 {
				return version - 1, &PartialAppendError{
					AggregateID: aggID,
					Committed:   committed,
					Total:       len(events),
					Err:         err,
				}
			}
			return head, err
		}

		if err := r.store.Append(ctx, env); err != nil {
			err = fmt.Errorf("append %s event at version %d: %w", evt.Kind(), version, err)
			if committed > 0 {
				return version - 1, &PartialAppendError{
					AggregateID: aggID,
					Committed:   committed,
					Total:       len(events),
					Err:         err,
				}
			}
			return head, err
		}
		committed++
	}
	r.metrics.EventsAppended(r.aggType, committed)

	r.log.Debug(
		"appended",
		slog.Group(
			"agg",
			slog.String("id", aggID),
			version.SlogAttr(),
		),
		slog.Int("num_events", committed),
	)

	return version, nil
}

// initStream writes the version-0 Initialized marker and the baseline
// snapshot for a genuinely empty stream. Head 0 alone is not enough: the
// marker itself lives at version 0, so Exists guards against a duplicate.
func (r *Repository[T]) initStream(ctx context.Context, aggID string) error {
	exists, err := r.store.Exists(ctx, aggID)
	if err != nil {
		return fmt.Errorf("probe stream for %s: %w", aggID, err)
	}
	if exists {
		return nil
	}

	if r.initEvent != nil {
		env, err := r.envelope(aggID, 0, r.initEvent(aggID))
		if err != nil {
			return fmt.Errorf("encode init marker for %s: %w", aggID, err)
		}
		if err := r.store.Append(ctx, env); err != nil {
			return fmt.Errorf("write init marker for %s: %w", aggID, err)
		}
	}

	if err := r.saveSnapshot(ctx, aggID, 0, r.newState(aggID)); err != nil {
		return fmt.Errorf("seed baseline snapshot for %s: %w", aggID, err)
	}

	r.log.Debug("stream initialized", slog.String("agg_id", aggID))
	return nil
}

// envelope stamps the version (and occurrence time) into the event before
// marshalling so the stored payload carries its own position.
func (r *Repository[T]) envelope(aggID string, v Version, evt Event) (Envelope, error) {
	occurredAt := time.Now()
	if s, ok := evt.(stamper); ok {
		s.stampOccurred(occurredAt)
		s.setEventVersion(v)
		occurredAt = s.eventTime()
	}

	data, err := json.Marshal(evt)
	if err != nil {
		return Envelope{}, err
	}

	env := Envelope{
		ID:          gonanoid.Must(),
		AggregateID: aggID,
		Version:     v,
		Kind:        evt.Kind(),
		OccurredAt:  occurredAt,
		Data:        data,
	}
	return env, env.Validate()
}

func (r *Repository[T]) saveSnapshot(ctx context.Context, aggID string, v Version, state T) error {
	timer := r.metrics.SnapshotSaveDuration(r.aggType)
	defer timer.ObserveDuration()

	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}
	snap := &Snapshot{
		AggregateID: aggID,
		Version:     v,
		Data:        data,
		TakenAt:     time.Now(),
	}
	if err := r.snapshots.SaveSnapshot(ctx, snap); err != nil {
		return err
	}
	r.log.Debug("snapshot saved", snap.logAttrs())
	return nil
}
