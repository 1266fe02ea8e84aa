package nats

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/codewandler/custmgr-go/core/es"
)

const (
	defaultStreamName    = "CUSTMGR_ES"
	defaultSubjectPrefix = "custmgr.es"
)

type RelayConfig struct {
	Connect       Connector // Connect creates the underlying connection. If nil, ConnectDefault() is used.
	Log           *slog.Logger
	Store         es.EventStore // Store is the decorated system of record.
	StreamName    string
	SubjectPrefix string
}

// Relay decorates an event store so every committed envelope is also
// published to <prefix>.<aggregate_id>. Publishing is best-effort: the
// append already succeeded against the system of record, so a publish
// failure is logged and swallowed, never bubbled up to the writer.
type Relay struct {
	es.EventStore
	js            jetstream.JetStream
	log           *slog.Logger
	subjectPrefix string
	closeNc       closeFunc
}

func NewRelay(cfg RelayConfig) (*Relay, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("store is required")
	}

	doConnect := cfg.Connect
	if doConnect == nil {
		doConnect = ConnectDefault()
	}

	log := cfg.Log
	if log == nil {
		log = slog.Default()
	}

	streamName := strings.ToUpper(cfg.StreamName)
	if streamName == "" {
		streamName = defaultStreamName
	}

	subjectPrefix := cfg.SubjectPrefix
	if subjectPrefix == "" {
		subjectPrefix = defaultSubjectPrefix
	}

	nc, closeNc, err := doConnect()
	if err != nil {
		return nil, err
	}

	js, err := jetstream.New(nc)
	if err != nil {
		closeNc()
		return nil, err
	}

	log = log.With(
		slog.String("relay", "nats_js"),
		slog.String("stream", streamName),
		slog.String("subject_prefix", subjectPrefix),
	)

	log.Debug("ensuring stream")
	_, err = js.CreateOrUpdateStream(context.Background(), jetstream.StreamConfig{
		Name:     streamName,
		Subjects: []string{subjectPrefix + ".>"},
	})
	if err != nil {
		closeNc()
		return nil, fmt.Errorf("ensure stream %s: %w", streamName, err)
	}

	return &Relay{
		EventStore:    cfg.Store,
		js:            js,
		log:           log,
		subjectPrefix: subjectPrefix,
		closeNc:       closeNc,
	}, nil
}

func (r *Relay) Append(ctx context.Context, env es.Envelope) error {
	if err := r.EventStore.Append(ctx, env); err != nil {
		return err
	}

	data, err := json.Marshal(env)
	if err != nil {
		r.log.Warn("relay marshal failed", slog.String("event_id", env.ID), slog.Any("error", err))
		return nil
	}

	subject := fmt.Sprintf("%s.%s", r.subjectPrefix, env.AggregateID)
	if _, err := r.js.Publish(ctx, subject, data); err != nil {
		r.log.Warn(
			"relay publish failed",
			slog.String("subject", subject),
			slog.String("event_id", env.ID),
			env.Version.SlogAttr(),
			slog.Any("error", err),
		)
	}
	return nil
}

// Close releases the connection lease. The decorated store stays open.
func (r *Relay) Close() {
	if r.closeNc != nil {
		r.closeNc()
	}
}

var _ es.EventStore = (*Relay)(nil)
