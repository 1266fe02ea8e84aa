package es

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"
)

var ErrUnknownEventKind = errors.New("unknown event kind")

// Event is an immutable fact about one aggregate. Every event names its
// kind with an explicit discriminant so the persisted payload does not
// depend on any serializer's type-name embedding.
type Event interface {
	Kind() string
}

// EventBase is embedded by all domain events. It carries the occurrence
// time and the stream version, which stays 0 until the append engine
// assigns one. An event arriving at the engine with a version > 0 is a
// pre-existing event being replayed in and must not be written again.
type EventBase struct {
	OccurredAt time.Time `json:"occurred_at"`
	Version    Version   `json:"version,omitempty"`
}

func (b *EventBase) EventVersion() Version { return b.Version }

func (b *EventBase) setEventVersion(v Version) { b.Version = v }

func (b *EventBase) stampOccurred(t time.Time) {
	if b.OccurredAt.IsZero() {
		b.OccurredAt = t
	}
}

func (b *EventBase) eventTime() time.Time { return b.OccurredAt }

type (
	versioned interface{ EventVersion() Version }

	stamper interface {
		setEventVersion(Version)
		stampOccurred(time.Time)
		eventTime() time.Time
	}
)

// preassignedVersion reports the version an event already carries, or 0.
func preassignedVersion(evt Event) Version {
	if v, ok := evt.(versioned); ok {
		return v.EventVersion()
	}
	return 0
}

// EventRegistry maps kind discriminants to constructors so persisted
// payloads can be decoded back into concrete events.
type EventRegistry struct {
	mu   sync.RWMutex
	news map[string]func() Event
}

func NewRegistry() *EventRegistry {
	return &EventRegistry{news: map[string]func() Event{}}
}

func (r *EventRegistry) Register(kind string, ctor func() Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.news[kind] = ctor
}

// Decode rebuilds the concrete event from an envelope. An unregistered
// kind returns ErrUnknownEventKind; replay treats that as a no-op so
// streams written by newer code stay readable.
func (r *EventRegistry) Decode(env Envelope) (Event, error) {
	r.mu.RLock()
	ctor, ok := r.news[env.Kind]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownEventKind, env.Kind)
	}
	evt := ctor()
	if env.Data != nil {
		if err := json.Unmarshal(env.Data, evt); err != nil {
			return nil, fmt.Errorf("decode %s event: %w", env.Kind, err)
		}
	}
	return evt, nil
}

type Registrar interface {
	Register(kind string, ctor func() Event)
}

// RegisterEvents registers event constructors, deriving each kind from a
// sample instance. Future decodes call the original constructor so every
// decode produces a fresh value.
func RegisterEvents(r Registrar, ctors ...func() Event) {
	for _, ctor := range ctors {
		sample := ctor()
		r.Register(sample.Kind(), ctor)
	}
}

// EventOf returns a constructor for an event of type T.
func EventOf[T any, PT interface {
	*T
	Event
}]() func() Event {
	return func() Event { return PT(new(T)) }
}
