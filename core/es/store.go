package es

import (
	"context"
	"errors"
	"fmt"
)

var (
	ErrConflict = errors.New("concurrency conflict")
	ErrNoEvents = errors.New("no events to store")
)

// EventStore stores and loads envelopes per aggregate stream.
//
// Append is a single durable insert; the engine calls it once per event, so
// a mid-batch failure leaves earlier events of the same call committed.
// Exists and ListIDs read the log directly, which lets the query side probe
// existence without a full replay.
type EventStore interface {
	// Head returns the highest persisted version for the aggregate,
	// or 0 when the stream is empty.
	Head(ctx context.Context, aggID string) (Version, error)

	// Load returns all events with version strictly greater than after,
	// ordered ascending by version. A missing stream yields an empty slice.
	Load(ctx context.Context, aggID string, after Version) ([]Envelope, error)

	// Append durably inserts one envelope. A (aggregate, version) pair that
	// already exists must fail with ErrConflict.
	Append(ctx context.Context, env Envelope) error

	// Exists reports whether the aggregate has any events at all.
	Exists(ctx context.Context, aggID string) (bool, error)

	// ListIDs enumerates the distinct aggregate ids present in the log.
	ListIDs(ctx context.Context) ([]string, error)
}

// PartialAppendError reports a multi-event append that failed after some
// of its events were already durably committed. The committed prefix stays
// in the stream; callers must not assume all-or-nothing semantics.
type PartialAppendError struct {
	AggregateID string
	Committed   int
	Total       int
	Err         error
}

func (e *PartialAppendError) Error() string {
	return fmt.Sprintf(
		"partial append for aggregate %s: %d of %d events committed: %v",
		e.AggregateID, e.Committed, e.Total, e.Err,
	)
}

func (e *PartialAppendError) Unwrap() error { return e.Err }
