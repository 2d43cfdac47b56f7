// internal/database/db.go
package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Connect opens a pgx pool for connStr and pings it.
func Connect(ctx context.Context, connStr string) (*pgxpool.Pool, error) {
	config, err := pgxpool.ParseConfig(connStr)
	if err != nil {
		return nil, fmt.Errorf("unable to parse pgx config: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("unable to create pgx pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("db ping error: %w", err)
	}
	return pool, nil
}

const schema = `
	CREATE TABLE IF NOT EXISTS matches (
		id           UUID PRIMARY KEY,
		outcome      TEXT NOT NULL,
		winner_slot  TEXT,
		winner_id    UUID,
		score_a      INT NOT NULL,
		score_b      INT NOT NULL,
		rounds       JSONB NOT NULL,
		started_at   TIMESTAMPTZ NOT NULL,
		completed_at TIMESTAMPTZ NOT NULL,
		duration_ms  BIGINT NOT NULL
	);
	CREATE TABLE IF NOT EXISTS match_participants (
		match_id      UUID NOT NULL REFERENCES matches(id) ON DELETE CASCADE,
		slot          TEXT NOT NULL,
		player_id     UUID NOT NULL,
		ai_difficulty TEXT,
		final_score   INT NOT NULL,
		card_usage    JSONB NOT NULL,
		PRIMARY KEY (match_id, slot)
	);
	CREATE INDEX IF NOT EXISTS match_participants_player_idx ON match_participants (player_id);
`

// EnsureSchema creates the summary tables if they are missing.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}
