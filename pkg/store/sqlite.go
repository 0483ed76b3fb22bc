package store

import (
	"database/sql"
	"encoding/json"
	"fmt"

	_ "modernc.org/sqlite"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS stats_entries (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	recorded_ms INTEGER NOT NULL,
	payload     TEXT    NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_stats_entries_recorded ON stats_entries (recorded_ms);
`

// SQLiteStore appends snapshots to a local SQLite database, one JSON
// payload per row. Retention works the same way as DirStore: every write
// trims the table back down to maxEntries rows.
type SQLiteStore struct {
	db         *sql.DB
	maxEntries int
}

// NewSQLiteStore opens (or creates) the database at path and ensures the
// schema exists.
func NewSQLiteStore(path string, maxEntries int) (*SQLiteStore, error) {
	if maxEntries < 1 {
		return nil, fmt.Errorf("store: max entries must be positive, got %d", maxEntries)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("store: open sqlite db: %w", err)
	}
	// the agent is the sole writer; a single connection avoids SQLITE_BUSY
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: init schema: %w", err)
	}
	return &SQLiteStore{db: db, maxEntries: maxEntries}, nil
}

func (s *SQLiteStore) Write(e *StatsEntry) error {
	payload, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("store: marshal entry: %w", err)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("store: begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(
		`INSERT INTO stats_entries (recorded_ms, payload) VALUES (?, ?)`,
		e.UnixMilli(), string(payload),
	); err != nil {
		return fmt.Errorf("store: insert entry: %w", err)
	}

	if _, err := tx.Exec(
		`DELETE FROM stats_entries WHERE id NOT IN
			(SELECT id FROM stats_entries ORDER BY id DESC LIMIT ?)`,
		s.maxEntries,
	); err != nil {
		return fmt.Errorf("store: evict entries: %w", err)
	}

	return tx.Commit()
}

func (s *SQLiteStore) Close() error { return s.db.Close() }

// Entries returns all retained snapshots, oldest first. Mostly a
// debugging aid and the hook the tests use to inspect retention.
func (s *SQLiteStore) Entries() ([]*StatsEntry, error) {
	rows, err := s.db.Query(`SELECT payload FROM stats_entries ORDER BY id ASC`)
	if err != nil {
		return nil, fmt.Errorf("store: query entries: %w", err)
	}
	defer rows.Close()

	var out []*StatsEntry
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("store: scan entry: %w", err)
		}
		var e StatsEntry
		if err := json.Unmarshal([]byte(payload), &e); err != nil {
			return nil, fmt.Errorf("store: decode entry: %w", err)
		}
		out = append(out, &e)
	}
	return out, rows.Err()
}
