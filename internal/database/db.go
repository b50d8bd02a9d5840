// internal/database/db.go
package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Connect opens a pool for url and verifies it with a ping.
func Connect(ctx context.Context, url string) (*pgxpool.Pool, error) {
	config, err := pgxpool.ParseConfig(url)
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

// schema creates the tables used for results and action history.
const schema = `
CREATE TABLE IF NOT EXISTS sessions (
	id         UUID PRIMARY KEY,
	status     TEXT NOT NULL DEFAULT 'in_progress',
	start_time TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	end_time   TIMESTAMPTZ
);

CREATE TABLE IF NOT EXISTS session_results (
	session_id UUID NOT NULL REFERENCES sessions (id) ON DELETE CASCADE,
	game       INT NOT NULL,
	player_id  INT NOT NULL,
	points     INT NOT NULL,
	did_win    BOOLEAN NOT NULL,
	PRIMARY KEY (session_id, game, player_id)
);

CREATE TABLE IF NOT EXISTS session_actions (
	session_id     UUID NOT NULL REFERENCES sessions (id) ON DELETE CASCADE,
	action_index   INT NOT NULL,
	game           INT NOT NULL DEFAULT 1,
	actor_player   INT,
	action_type    TEXT NOT NULL,
	action_payload JSONB NOT NULL,
	recorded_at    TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (session_id, action_index)
);
`

// Migrate creates any missing tables.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}
