// Package sqlite persists event streams and snapshots in a single SQLite
// database. The (aggregate_id, version) primary key on the events table is
// what makes the append engine's uniqueness invariant durable.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	msqlite "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/codewandler/custmgr-go/core/es"
)

const schema = `
CREATE TABLE IF NOT EXISTS customer_events (
	aggregate_id TEXT    NOT NULL,
	version      INTEGER NOT NULL,
	event_id     TEXT    NOT NULL,
	event_kind   TEXT    NOT NULL,
	occurred_at  TEXT    NOT NULL,
	payload      BLOB    NOT NULL,
	PRIMARY KEY (aggregate_id, version)
);

CREATE TABLE IF NOT EXISTS customer_snapshots (
	aggregate_id TEXT    NOT NULL PRIMARY KEY,
	version      INTEGER NOT NULL,
	taken_at     TEXT    NOT NULL,
	snapshot     BLOB    NOT NULL
);
`

// Store implements both es.EventStore and es.Snapshotter on one database,
// so a single file carries the whole persistence story.
type Store struct {
	db  *sql.DB
	log *slog.Logger
}

// Open opens (creating if needed) the database at path and ensures the
// schema. WAL keeps concurrent readers off the writer's back.
func Open(path string, log *slog.Logger) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("database path is required")
	}
	if log == nil {
		log = slog.Default()
	}

	dsn := filepath.Clean(path) + "?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	return &Store{
		db:  db,
		log: log.With(slog.String("store", "sqlite"), slog.String("path", path)),
	}, nil
}

func (s *Store) Close() error { return s.db.Close() }

// === Event store ===

func (s *Store) Head(ctx context.Context, aggID string) (es.Version, error) {
	var head int
	err := s.db.QueryRowContext(ctx, `
SELECT COALESCE(MAX(version), 0) FROM customer_events WHERE aggregate_id = ?
`, aggID).Scan(&head)
	if err != nil {
		return 0, fmt.Errorf("query stream head: %w", err)
	}
	return es.Version(head), nil
}

func (s *Store) Load(ctx context.Context, aggID string, after es.Version) ([]es.Envelope, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT event_id, version, event_kind, occurred_at, payload
FROM customer_events
WHERE aggregate_id = ? AND version > ?
ORDER BY version ASC
`, aggID, after.Int())
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	out := make([]es.Envelope, 0)
	for rows.Next() {
		var (
			env        es.Envelope
			version    int
			occurredAt string
		)
		env.AggregateID = aggID
		if err := rows.Scan(&env.ID, &version, &env.Kind, &occurredAt, (*[]byte)(&env.Data)); err != nil {
			return nil, fmt.Errorf("scan event row: %w", err)
		}
		env.Version = es.Version(version)
		env.OccurredAt, err = time.Parse(time.RFC3339Nano, occurredAt)
		if err != nil {
			return nil, fmt.Errorf("parse occurred_at of event %s: %w", env.ID, err)
		}
		out = append(out, env)
	}
	return out, rows.Err()
}

func (s *Store) Append(ctx context.Context, env es.Envelope) error {
	if err := env.Validate(); err != nil {
		return err
	}

	_, err := s.db.ExecContext(ctx, `
INSERT INTO customer_events (aggregate_id, version, event_id, event_kind, occurred_at, payload)
VALUES (?, ?, ?, ?, ?, ?)
`,
		env.AggregateID,
		env.Version.Int(),
		env.ID,
		env.Kind,
		env.OccurredAt.UTC().Format(time.RFC3339Nano),
		[]byte(env.Data),
	)
	if err != nil {
		if isConstraintViolation(err) {
			return fmt.Errorf(
				"%w: version %d already present (agg_id=%s)",
				es.ErrConflict, env.Version, env.AggregateID,
			)
		}
		return fmt.Errorf("insert event: %w", err)
	}

	s.log.Debug(
		"append",
		slog.String("agg_id", env.AggregateID),
		env.Version.SlogAttr(),
		slog.String("kind", env.Kind),
	)
	return nil
}

func (s *Store) Exists(ctx context.Context, aggID string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx, `
SELECT 1 FROM customer_events WHERE aggregate_id = ? LIMIT 1
`, aggID).Scan(&one)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return false, nil
	case err != nil:
		return false, fmt.Errorf("query existence: %w", err)
	}
	return true, nil
}

func (s *Store) ListIDs(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT DISTINCT aggregate_id FROM customer_events ORDER BY aggregate_id ASC
`)
	if err != nil {
		return nil, fmt.Errorf("query aggregate ids: %w", err)
	}
	defer rows.Close()

	ids := make([]string, 0)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan aggregate id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// isConstraintViolation reports whether err is a SQLITE_CONSTRAINT failure,
// which for customer_events can only be the (aggregate_id, version) key.
func isConstraintViolation(err error) bool {
	var serr *msqlite.Error
	if !errors.As(err, &serr) {
		return false
	}
	return serr.Code()&0xff == sqlite3.SQLITE_CONSTRAINT
}

// === Snapshotter ===

func (s *Store) SaveSnapshot(ctx context.Context, snapshot *es.Snapshot) error {
	_, err := s.db.ExecContext(ctx, `
INSERT INTO customer_snapshots (aggregate_id, version, taken_at, snapshot)
VALUES (?, ?, ?, ?)
ON CONFLICT (aggregate_id) DO UPDATE SET
	version  = excluded.version,
	taken_at = excluded.taken_at,
	snapshot = excluded.snapshot
`,
		snapshot.AggregateID,
		snapshot.Version.Int(),
		snapshot.TakenAt.UTC().Format(time.RFC3339Nano),
		snapshot.Data,
	)
	if err != nil {
		return fmt.Errorf("upsert snapshot: %w", err)
	}
	return nil
}

func (s *Store) LoadSnapshot(ctx context.Context, aggID string) (*es.Snapshot, error) {
	var (
		snap    = es.Snapshot{AggregateID: aggID}
		version int
		takenAt string
	)
	err := s.db.QueryRowContext(ctx, `
SELECT version, taken_at, snapshot FROM customer_snapshots WHERE aggregate_id = ?
`, aggID).Scan(&version, &takenAt, &snap.Data)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return nil, es.ErrSnapshotNotFound
	case err != nil:
		return nil, fmt.Errorf("query snapshot: %w", err)
	}

	snap.Version = es.Version(version)
	snap.TakenAt, err = time.Parse(time.RFC3339Nano, takenAt)
	if err != nil {
		return nil, fmt.Errorf("parse taken_at of snapshot for %s: %w", aggID, err)
	}
	return &snap, nil
}

var (
	_ es.EventStore  = (*Store)(nil)
	_ es.Snapshotter = (*Store)(nil)
)
