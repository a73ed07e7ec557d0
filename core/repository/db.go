package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
)

// DB wraps the postgres connection pool
type DB struct {
	*sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS estimate_jobs (
	job_id      TEXT PRIMARY KEY,
	request     JSONB NOT NULL,
	status      TEXT NOT NULL,
	created_at  TIMESTAMPTZ NOT NULL,
	started_at  TIMESTAMPTZ,
	finished_at TIMESTAMPTZ,
	error       TEXT,
	result      JSONB
);

CREATE INDEX IF NOT EXISTS ix_estimate_jobs_status_created_at
	ON estimate_jobs (status, created_at);

CREATE TABLE IF NOT EXISTS estimate_job_events (
	id         BIGSERIAL PRIMARY KEY,
	job_id     TEXT NOT NULL REFERENCES estimate_jobs (job_id),
	created_at TIMESTAMPTZ NOT NULL,
	type       TEXT NOT NULL,
	message    TEXT NOT NULL,
	data       JSONB
);

CREATE INDEX IF NOT EXISTS ix_estimate_job_events_job_id_id
	ON estimate_job_events (job_id, id);
`

// NewDB opens a postgres connection pool and verifies it is reachable
func NewDB(databaseURL string) (*DB, error) {
	sqlDB, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	sqlDB.SetMaxOpenConns(20)
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := sqlDB.PingContext(ctx); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DB{DB: sqlDB}, nil
}

// Migrate creates the tables and indexes if they do not exist yet
func (db *DB) Migrate(ctx context.Context) error {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}

// PostgresStore combines the job and event repositories into a Store
type PostgresStore struct {
	*JobRepository
	*EventRepository
}

// NewPostgresStore creates a Store backed by db
func NewPostgresStore(db *DB) *PostgresStore {
	return &PostgresStore{
		JobRepository:   NewJobRepository(db),
		EventRepository: NewEventRepository(db),
	}
}

// dbNow returns the current time at the precision postgres stores, so values
// handed back to callers match what a later read returns
func dbNow() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}
