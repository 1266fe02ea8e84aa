package nats

import (
	"github.com/codewandler/custmgr-go/core/es"
)

// NewSnapshotter creates a JetStream key-value-store backed snapshotter.
func NewSnapshotter(cfg KvConfig) (*es.KeyValueSnapshotter, error) {
	kvStore, err := NewKvStore(cfg)
	if err != nil {
		return nil, err
	}
	return es.NewKeyValueSnapshotter(kvStore), nil
}
