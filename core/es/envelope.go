package es

import (
	"encoding/json"
	"fmt"
	"time"
)

// Envelope is what gets persisted in the event store. Once appended it is
// immutable: the row is never updated or deleted.
type Envelope struct {
	ID          string          `json:"id"`           // ID is the message ID
	AggregateID string          `json:"aggregate_id"` // AggregateID is the aggregate root ID
	Version     Version         `json:"version"`      // 1..N per stream; 0 only for the Initialized marker
	Kind        string          `json:"kind"`         // Kind is the event kind discriminant
	OccurredAt  time.Time       `json:"occurred_at"`
	Data        json.RawMessage `json:"data"`
}

func (e Envelope) Validate() error {
	if e.ID == "" {
		return fmt.Errorf("envelope id is empty")
	}
	if e.AggregateID == "" {
		return fmt.Errorf("envelope aggregate id is empty")
	}
	if e.Kind == "" {
		return fmt.Errorf("envelope kind is empty")
	}
	if e.OccurredAt.IsZero() {
		return fmt.Errorf("envelope occurred at is zero")
	}
	if e.Version < 0 {
		return fmt.Errorf("envelope version is negative")
	}
	return nil
}
