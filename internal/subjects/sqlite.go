package subjects

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // pure go sqlite driver

	"operantcore/pkg/domain"
)

// SQLite appends trial records to a single table as JSON payloads, keeping
// the schema independent of each experiment's field list.
type SQLite struct {
	db *sql.DB
}

// NewSQLite opens (or creates) the datastore at path and ensures the trials
// table exists.
func NewSQLite(path string) (*SQLite, error) {
	if path == "" {
		path = "trialdata.db"
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil && !errors.Is(err, os.ErrExist) {
			return nil, fmt.Errorf("create dirs: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS trials (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		recorded_at TEXT NOT NULL,
		record BLOB NOT NULL
	)`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create trials table: %w", err)
	}
	return &SQLite{db: db}, nil
}

// Driver identifies the backend in store errors.
func (s *SQLite) Driver() string { return "sqlite" }

// Store inserts one trial record.
func (s *SQLite) Store(ctx context.Context, rec domain.Record) error {
	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode record: %w", err)
	}
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO trials (recorded_at, record) VALUES (?, ?)`,
		time.Now().UTC().Format(time.RFC3339Nano), payload); err != nil {
		return fmt.Errorf("insert trial: %w", err)
	}
	return nil
}

// Count returns the number of stored trials; used by tests and session
// summaries.
func (s *SQLite) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM trials`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count trials: %w", err)
	}
	return n, nil
}

// Close closes the database.
func (s *SQLite) Close() error { return s.db.Close() }
