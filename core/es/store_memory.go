package es

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
)

// InMemoryStore is a simple, correct store for tests/dev. It enforces the
// same (aggregate, version) uniqueness a relational store would.
type InMemoryStore struct {
	mu      sync.RWMutex
	log     *slog.Logger
	streams map[string][]Envelope
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		log:     slog.Default().With(slog.String("store", "memory")),
		streams: map[string][]Envelope{},
	}
}

func (s *InMemoryStore) Head(_ context.Context, aggID string) (Version, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stream := s.streams[aggID]
	if len(stream) == 0 {
		return 0, nil
	}
	return stream[len(stream)-1].Version, nil
}

func (s *InMemoryStore) Load(_ context.Context, aggID string, after Version) ([]Envelope, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Envelope, 0)
	for _, e := range s.streams[aggID] {
		if e.Version > after {
			out = append(out, e)
		}
	}
	return out, nil
}

func (s *InMemoryStore) Append(_ context.Context, env Envelope) error {
	if err := env.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	stream := s.streams[env.AggregateID]
	for _, e := range stream {
		if e.Version == env.Version {
			return fmt.Errorf(
				"%w: version %d already present (agg_id=%s)",
				ErrConflict, env.Version, env.AggregateID,
			)
		}
	}

	s.streams[env.AggregateID] = append(stream, env)
	s.log.Debug(
		"append",
		slog.String("agg_id", env.AggregateID),
		env.Version.SlogAttr(),
		slog.String("kind", env.Kind),
	)
	return nil
}

func (s *InMemoryStore) Exists(_ context.Context, aggID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.streams[aggID]) > 0, nil
}

func (s *InMemoryStore) ListIDs(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.streams))
	for id, stream := range s.streams {
		if len(stream) > 0 {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

var _ EventStore = (*InMemoryStore)(nil)
