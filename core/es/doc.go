// Package es implements the event sourcing engine: append-only event
// streams per aggregate, snapshot-bounded replay, and optimistic
// concurrency on the write path.
//
// The source of truth is the per-aggregate event stream held by an
// [EventStore]. State only ever exists as the output of replaying that
// stream; a [Snapshotter] caches a (version, state) pair purely to bound
// replay cost, and losing a snapshot loses nothing but time.
//
// [Repository.Load] is the read path: latest snapshot, then fold the event
// tail, then refresh the snapshot best-effort. [Repository.Append] is the
// write path: validate the caller's expected version against the persisted
// stream head, assign sequential versions and append. The engine assumes a
// host that serializes writers per aggregate id (see package perkey); reads
// need no such exclusion.
package es
