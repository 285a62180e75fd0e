package subjects

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // register pgx as a database/sql driver

	"operantcore/pkg/domain"
)

const (
	pgDriver = "pgx"
	// Default DSN mirrors the sqlite default file layout: local server,
	// per-deployment overrides expected in config.
	pgDefaultDSN = "postgres://localhost/operantcore?sslmode=disable"
)

var (
	sqlOpen = sql.Open
	openMu  sync.Mutex
)

// Postgres appends trial records to a JSONB column, for deployments where
// the rig streams data to a shared lab database.
type Postgres struct {
	db *sql.DB
}

// NewPostgres opens the datastore, pings the server, and ensures the trials
// table exists. Connection failures surface here, before the control loop
// starts.
func NewPostgres(dsn string) (*Postgres, error) {
	if dsn == "" {
		dsn = pgDefaultDSN
	}
	openMu.Lock()
	db, err := sqlOpen(pgDriver, dsn)
	openMu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	ctx := context.Background()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if _, err := db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS trials (
		id BIGSERIAL PRIMARY KEY,
		recorded_at TIMESTAMPTZ NOT NULL,
		record JSONB NOT NULL
	)`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create trials table: %w", err)
	}
	return &Postgres{db: db}, nil
}

// Driver identifies the backend in store errors.
func (s *Postgres) Driver() string { return "postgres" }

// Store inserts one trial record.
func (s *Postgres) Store(ctx context.Context, rec domain.Record) error {
	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode record: %w", err)
	}
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO trials (recorded_at, record) VALUES ($1, $2)`,
		time.Now().UTC(), payload); err != nil {
		return fmt.Errorf("insert trial: %w", err)
	}
	return nil
}

// Close closes the database.
func (s *Postgres) Close() error { return s.db.Close() }
