package eventstore

import (
	"database/sql"
	"encoding/json"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/convergentic/converge/errors"
)

// SQLiteStore mirrors the event log into a SQLite table for fast status
// queries. It satisfies the same Appender contract as the JSONL Store —
// append-only, all-or-nothing per event — but it is a derived view: the
// JSONL log remains the source of truth and the mirror can be rebuilt from
// it at any time.
type SQLiteStore struct {
	db *sql.DB
}

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS events (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	event_type TEXT NOT NULL,
	timestamp TEXT NOT NULL,
	project TEXT NOT NULL,
	feature TEXT,
	edge TEXT,
	delta INTEGER,
	iteration INTEGER,
	data TEXT
);
CREATE INDEX IF NOT EXISTS idx_events_feature_edge ON events(feature, edge);
CREATE INDEX IF NOT EXISTS idx_events_type ON events(event_type);
`

// OpenSQLite opens (or creates) a SQLite mirror at the given path
func OpenSQLite(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open sqlite mirror %s", path)
	}
	store := &SQLiteStore{db: db}
	if err := store.init(); err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

// NewSQLiteStore wraps an existing database handle (used by tests)
func NewSQLiteStore(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

// init creates the schema if missing
func (s *SQLiteStore) init() error {
	if _, err := s.db.Exec(sqliteSchema); err != nil {
		return errors.Wrap(err, "failed to initialize event mirror schema")
	}
	return nil
}

// Close releases the database handle
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Emit inserts one event row. Insert is the only mutation; there is no
// update or delete path.
func (s *SQLiteStore) Emit(event Event) (Event, error) {
	if event.EventType == "" {
		return Event{}, errors.New("event_type is required")
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	var dataJSON sql.NullString
	if len(event.Data) > 0 {
		encoded, err := json.Marshal(event.Data)
		if err != nil {
			return Event{}, errors.Wrap(err, "failed to marshal event data")
		}
		dataJSON = sql.NullString{String: string(encoded), Valid: true}
	}

	var delta sql.NullInt64
	if d, ok := event.DeltaValue(); ok {
		delta = sql.NullInt64{Int64: int64(d), Valid: true}
	}

	query := `
		INSERT INTO events (event_type, timestamp, project, feature, edge, delta, iteration, data)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := s.db.Exec(query,
		event.EventType,
		event.Timestamp.UTC().Format(time.RFC3339Nano),
		event.Project,
		sql.NullString{String: event.Feature, Valid: event.Feature != ""},
		sql.NullString{String: event.Edge, Valid: event.Edge != ""},
		delta,
		sql.NullInt64{Int64: int64(event.Iteration), Valid: event.Iteration != 0},
		dataJSON,
	)
	if err != nil {
		return Event{}, errors.Wrap(err, "failed to insert event")
	}
	return event, nil
}

// CountByType returns event counts grouped by event type, for status display
func (s *SQLiteStore) CountByType() (map[string]int, error) {
	rows, err := s.db.Query(`SELECT event_type, COUNT(*) FROM events GROUP BY event_type`)
	if err != nil {
		return nil, errors.Wrap(err, "failed to count events")
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var eventType string
		var count int
		if err := rows.Scan(&eventType, &count); err != nil {
			return nil, errors.Wrap(err, "failed to scan event count row")
		}
		counts[eventType] = count
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "error iterating event counts")
	}
	return counts, nil
}

// LastIterationsForPair returns the most recent iteration_completed deltas
// for one (feature, edge), newest last, up to limit rows.
func (s *SQLiteStore) LastIterationsForPair(feature, edge string, limit int) ([]int, error) {
	query := `
		SELECT delta FROM events
		WHERE event_type = ? AND feature = ? AND edge = ? AND delta IS NOT NULL
		ORDER BY id DESC LIMIT ?
	`
	rows, err := s.db.Query(query, TypeIterationCompleted, feature, edge, limit)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to query iterations for %s/%s", feature, edge)
	}
	defer rows.Close()

	var deltas []int
	for rows.Next() {
		var delta int
		if err := rows.Scan(&delta); err != nil {
			return nil, errors.Wrap(err, "failed to scan iteration row")
		}
		deltas = append(deltas, delta)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "error iterating deltas")
	}

	// Reverse to chronological order
	for i, j := 0, len(deltas)-1; i < j; i, j = i+1, j-1 {
		deltas[i], deltas[j] = deltas[j], deltas[i]
	}
	return deltas, nil
}
