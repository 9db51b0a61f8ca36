// Package history persists update-transaction outcomes to SQLite so
// operators can audit what the daemon changed and when.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// Entry is one recorded transaction outcome.
type Entry struct {
	ID         int64
	CycleID    string
	Component  string
	OldVersion string
	NewVersion string
	BackupPath string
	Updated    bool
	Error      string
	Timestamp  time.Time
}

// Store is a SQLite-backed history log.
// Use ":memory:" for tests, or a file path for persistent storage.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// Open opens (and if needed creates) the history database.
func Open(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	s := &Store{db: db}
	if err := s.initialize(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}
	return s, nil
}

func (s *Store) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS updates (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		cycle_id TEXT NOT NULL,
		component TEXT NOT NULL,
		old_version TEXT NOT NULL,
		new_version TEXT,
		backup_path TEXT,
		updated INTEGER NOT NULL,
		error TEXT,
		timestamp INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_updates_component ON updates(component);
	CREATE INDEX IF NOT EXISTS idx_updates_timestamp ON updates(timestamp);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Append records one transaction outcome.
func (s *Store) Append(ctx context.Context, e Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ts := e.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO updates (cycle_id, component, old_version, new_version, backup_path, updated, error, timestamp) VALUES (?, ?, ?, ?, ?, ?, ?, ?)",
		e.CycleID, e.Component, e.OldVersion, e.NewVersion, e.BackupPath, boolToInt(e.Updated), e.Error, ts.Unix(),
	)
	if err != nil {
		return fmt.Errorf("insert update entry: %w", err)
	}
	return nil
}

// Recent returns the most recent entries, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, cycle_id, component, old_version, new_version, backup_path, updated, error, timestamp FROM updates ORDER BY id DESC LIMIT ?",
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query update entries: %w", err)
	}
	defer rows.Close()

	return scanEntries(rows)
}

// ByComponent returns all entries for one component, oldest first.
func (s *Store) ByComponent(ctx context.Context, component string) ([]Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT id, cycle_id, component, old_version, new_version, backup_path, updated, error, timestamp FROM updates WHERE component = ? ORDER BY id",
		component,
	)
	if err != nil {
		return nil, fmt.Errorf("query update entries: %w", err)
	}
	defer rows.Close()

	return scanEntries(rows)
}

func scanEntries(rows *sql.Rows) ([]Entry, error) {
	var entries []Entry
	for rows.Next() {
		var e Entry
		var updated int
		var ts int64
		if err := rows.Scan(&e.ID, &e.CycleID, &e.Component, &e.OldVersion, &e.NewVersion, &e.BackupPath, &updated, &e.Error, &ts); err != nil {
			return nil, fmt.Errorf("scan update entry: %w", err)
		}
		e.Updated = updated != 0
		e.Timestamp = time.Unix(ts, 0)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	return entries, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
