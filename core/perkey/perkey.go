// Package perkey serializes work per key while letting work for different
// keys proceed concurrently.
//
// Typical use-case: event-sourced aggregates, where all commands against
// one aggregate id must run one at a time ("single writer per aggregate"),
// but different aggregates are independent. This is the explicit stand-in
// for a per-key actor runtime: a plain keyed mutual-exclusion domain.
package perkey

import (
	"context"
	"errors"
	"sync"
)

// ErrClosed is returned by Do after Close has been called.
var ErrClosed = errors.New("perkey: closed")

// Locks grants mutual exclusion per key. Entries are created on first use
// and dropped as soon as no caller holds or waits for them, so the map does
// not grow with the key space.
type Locks[K comparable] struct {
	mu      sync.Mutex
	entries map[K]*entry
	closed  bool
}

type entry struct {
	sem  chan struct{}
	refs int
}

func New[K comparable]() *Locks[K] {
	return &Locks[K]{entries: make(map[K]*entry)}
}

// Do runs fn while holding the exclusive slot for key. Calls for the same
// key never overlap; calls for different keys run in parallel. If ctx is
// cancelled before the slot is acquired, fn does not run and the context
// error is returned. Once fn has started it always runs to completion.
func (l *Locks[K]) Do(ctx context.Context, key K, fn func() error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return ErrClosed
	}
	e, ok := l.entries[key]
	if !ok {
		e = &entry{sem: make(chan struct{}, 1)}
		l.entries[key] = e
	}
	e.refs++
	l.mu.Unlock()

	defer l.release(key, e)

	select {
	case e.sem <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	defer func() { <-e.sem }()

	return fn()
}

func (l *Locks[K]) release(key K, e *entry) {
	l.mu.Lock()
	e.refs--
	if e.refs == 0 {
		delete(l.entries, key)
	}
	l.mu.Unlock()
}

// Len reports the number of keys with live holders or waiters.
func (l *Locks[K]) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// Close rejects future Do calls. Work already holding or waiting for a
// slot is unaffected.
func (l *Locks[K]) Close() {
	l.mu.Lock()
	l.closed = true
	l.mu.Unlock()
}
