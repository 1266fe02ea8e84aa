// Package kv defines the small key-value port the snapshot cache plugs
// into, with an in-memory implementation for tests and a JetStream KV
// adapter elsewhere.
package kv

import (
	"context"
	"encoding/json"
	"errors"
)

var ErrNotFound = errors.New("kv: not found")

// Store is a flat key-value store. Put overwrites unconditionally.
type Store interface {
	Put(ctx context.Context, key string, data []byte) error
	Get(ctx context.Context, key string) (data []byte, err error)
	Delete(ctx context.Context, key string) error
}

// Put marshals v as JSON and stores it under key.
func Put[T any](ctx context.Context, store Store, key string, v T) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return store.Put(ctx, key, data)
}

// Get loads key and unmarshals it into T.
func Get[T any](ctx context.Context, store Store, key string) (out T, err error) {
	data, err := store.Get(ctx, key)
	if err != nil {
		return
	}
	err = json.Unmarshal(data, &out)
	return
}
