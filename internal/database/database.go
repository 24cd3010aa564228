// Package database provides PostgreSQL connection management using pgx.
package database

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// connectAttempts is how often NewPool tries before giving up.
const connectAttempts = 5

// NewPool creates and validates a pgxpool connection pool.
// It retries a few times to accommodate containers starting up.
func NewPool(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse db config: %w", err)
	}

	poolCfg.MaxConns = 10
	poolCfg.MinConns = 1
	poolCfg.MaxConnLifetime = 30 * time.Minute
	poolCfg.MaxConnIdleTime = 5 * time.Minute

	var pool *pgxpool.Pool
	for attempt := 1; attempt <= connectAttempts; attempt++ {
		pool, err = pgxpool.NewWithConfig(ctx, poolCfg)
		if err == nil {
			if err = pool.Ping(ctx); err == nil {
				break
			}
			pool.Close()
		}
		slog.Warn("db_connect_retry", "attempt", attempt, "of", connectAttempts, "error", err)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(2 * time.Second):
		}
	}
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}

	return pool, nil
}

// schema mirrors the spreadsheet records locally plus the compensation journal.
const schema = `
CREATE TABLE IF NOT EXISTS events (
	id                     TEXT PRIMARY KEY,
	title                  TEXT NOT NULL DEFAULT '',
	starts_at              TIMESTAMPTZ,
	ends_at                TIMESTAMPTZ,
	participants           JSONB NOT NULL DEFAULT '[]'::jsonb,
	number_of_participants INTEGER NOT NULL DEFAULT 0,
	max_participants       INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS events_starts_at ON events (starts_at);

CREATE TABLE IF NOT EXISTS users (
	email   TEXT PRIMARY KEY,
	phone   TEXT NOT NULL DEFAULT '',
	name    TEXT NOT NULL DEFAULT '',
	booking INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS compensations (
	id                TEXT PRIMARY KEY,
	event_id          TEXT NOT NULL,
	participant_name  TEXT NOT NULL,
	event_date        TEXT NOT NULL,
	action            TEXT NOT NULL,
	attempts          INTEGER NOT NULL DEFAULT 0,
	max_attempts      INTEGER NOT NULL DEFAULT 10,
	last_error        TEXT NOT NULL DEFAULT '',
	last_attempted_at TIMESTAMPTZ,
	created_at        TIMESTAMPTZ NOT NULL
);
`

// Migrate creates the tables used by the repositories.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("migrate schema: %w", err)
	}
	return nil
}
