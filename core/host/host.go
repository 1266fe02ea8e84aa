// Package host activates customer aggregates behind a per-id exclusion
// domain. It stands in for a distributed actor runtime: all commands for
// one customer id are serialized before they reach the append engine,
// which is what makes "read head, then append" safe without a storage
// level compare-and-swap. Reads never enter the exclusion domain because
// they only touch the log and the best-effort snapshot cache.
package host

import (
	"context"
	"log/slog"

	"github.com/codewandler/custmgr-go/core/customer"
	"github.com/codewandler/custmgr-go/core/es"
	"github.com/codewandler/custmgr-go/core/perkey"
)

// Config wires a Host. Store is required; Snapshots defaults to in-memory
// and Metrics to nop.
type Config struct {
	Log       *slog.Logger
	Store     es.EventStore
	Snapshots es.Snapshotter
	Metrics   es.Metrics
}

// Host owns the customer repository and the per-customer writer locks.
type Host struct {
	log   *slog.Logger
	repo  *es.Repository[*customer.Customer]
	store es.EventStore
	locks *perkey.Locks[string]
}

func New(cfg Config) *Host {
	log := cfg.Log
	if log == nil {
		log = slog.Default()
	}

	registry := es.NewRegistry()
	customer.RegisterEvents(registry)

	repo := es.NewRepository(es.RepositoryConfig[*customer.Customer]{
		Log:       log,
		Store:     cfg.Store,
		Snapshots: cfg.Snapshots,
		Registry:  registry,
		Metrics:   cfg.Metrics,
		AggType:   customer.AggregateType,
		NewState:  customer.New,
		InitEvent: func(id string) es.Event {
			return &customer.Initialized{CustomerID: id}
		},
	})

	return &Host{
		log:   log.With(slog.String("component", "host")),
		repo:  repo,
		store: cfg.Store,
		locks: perkey.New[string](),
	}
}

// Decide inspects current state and returns the events to raise. Returning
// an error rejects the command before anything is written; returning no
// events makes the command a read.
type Decide func(cur *customer.Customer) ([]es.Event, error)

// Read hydrates current state outside the exclusion domain.
func (h *Host) Read(ctx context.Context, id string) (es.Version, *customer.Customer, error) {
	return h.repo.Load(ctx, id)
}

// Execute runs decide under the customer's writer lock: hydrate, decide,
// append with the hydrated version as the optimistic precondition, then
// re-hydrate so the caller gets confirmed state. The lock makes the
// read-check-then-append sequence atomic per customer id.
func (h *Host) Execute(ctx context.Context, id string, decide Decide) (version es.Version, state *customer.Customer, err error) {
	err = h.locks.Do(ctx, id, func() error {
		cur, curState, err := h.repo.Load(ctx, id)
		if err != nil {
			return err
		}

		events, err := decide(curState)
		if err != nil {
			return err
		}
		if len(events) == 0 {
			version, state = cur, curState
			return nil
		}

		if _, err := h.repo.Append(ctx, id, cur, events...); err != nil {
			return err
		}

		version, state, err = h.repo.Load(ctx, id)
		return err
	})
	return version, state, err
}

// Store exposes the underlying log for queries that bypass replay
// (existence probes, id listing).
func (h *Host) Store() es.EventStore { return h.store }

// Repository exposes the engine, mainly for tests that need to drive the
// append path directly.
func (h *Host) Repository() *es.Repository[*customer.Customer] { return h.repo }

// Close rejects future commands. In-flight work completes.
func (h *Host) Close() { h.locks.Close() }
