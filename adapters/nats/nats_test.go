package nats

import (
	"context"
	"encoding/json"
	"os"
	"testing"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codewandler/custmgr-go/core/es"
	"github.com/codewandler/custmgr-go/ports/kv"
)

// requireServer skips unless NATS_URL points at a JetStream-enabled server.
func requireServer(t *testing.T) Connector {
	t.Helper()

	url := os.Getenv("NATS_URL")
	if url == "" {
		t.Skip("NATS_URL not set")
	}
	return ReuseConnection(ConnectURL(url))
}

func TestKvStore(t *testing.T) {
	connect := requireServer(t)

	bucket := "custmgr_test_" + gonanoid.MustGenerate("abcdefghijklmnopqrstuvwxyz", 8)
	store, err := NewKvStore(KvConfig{Connect: connect, Bucket: bucket})
	require.NoError(t, err)
	t.Cleanup(store.Close)

	_, err = store.Get(context.Background(), "missing")
	require.ErrorIs(t, err, kv.ErrNotFound)

	require.NoError(t, store.Put(context.Background(), "k1", []byte("v1")))

	data, err := store.Get(context.Background(), "k1")
	require.NoError(t, err)
	assert.Equal(t, []byte("v1"), data)

	require.NoError(t, store.Delete(context.Background(), "k1"))
}

func TestSnapshotter(t *testing.T) {
	connect := requireServer(t)

	bucket := "custmgr_test_" + gonanoid.MustGenerate("abcdefghijklmnopqrstuvwxyz", 8)
	snaps, err := NewSnapshotter(KvConfig{Connect: connect, Bucket: bucket})
	require.NoError(t, err)

	_, err = snaps.LoadSnapshot(context.Background(), "c1")
	require.ErrorIs(t, err, es.ErrSnapshotNotFound)

	require.NoError(t, snaps.SaveSnapshot(context.Background(), &es.Snapshot{
		AggregateID: "c1",
		Version:     4,
		Data:        []byte(`{"customer_id":"c1"}`),
		TakenAt:     time.Now(),
	}))

	snap, err := snaps.LoadSnapshot(context.Background(), "c1")
	require.NoError(t, err)
	assert.Equal(t, es.Version(4), snap.Version)
	assert.JSONEq(t, `{"customer_id":"c1"}`, string(snap.Data))
}

func TestRelay(t *testing.T) {
	connect := requireServer(t)

	prefix := "custmgr_test.es" + gonanoid.MustGenerate("abcdefghijklmnopqrstuvwxyz", 6)
	relay, err := NewRelay(RelayConfig{
		Connect:       connect,
		Store:         es.NewInMemoryStore(),
		StreamName:    "CUSTMGR_TEST_" + gonanoid.MustGenerate("ABCDEFGHIJKLMNOPQRSTUVWXYZ", 6),
		SubjectPrefix: prefix,
	})
	require.NoError(t, err)
	t.Cleanup(relay.Close)

	nc, closeNc, err := connect()
	require.NoError(t, err)
	t.Cleanup(closeNc)

	sub, err := nc.SubscribeSync(prefix + ".c1")
	require.NoError(t, err)

	require.NoError(t, relay.Append(context.Background(), es.Envelope{
		ID:          gonanoid.Must(),
		AggregateID: "c1",
		Version:     1,
		Kind:        "CustomerCreated",
		OccurredAt:  time.Now(),
		Data:        json.RawMessage(`{}`),
	}))

	// the append also landed in the system of record
	head, err := relay.Head(context.Background(), "c1")
	require.NoError(t, err)
	assert.Equal(t, es.Version(1), head)

	msg, err := sub.NextMsg(5 * time.Second)
	require.NoError(t, err)

	var env es.Envelope
	require.NoError(t, json.Unmarshal(msg.Data, &env))
	assert.Equal(t, "c1", env.AggregateID)
	assert.Equal(t, "CustomerCreated", env.Kind)
}
