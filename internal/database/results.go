// internal/database/results.go
package database

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jason-s-yu/cambia-ar/internal/cache"
)

// PlayerResult is one seat's final tally.
type PlayerResult struct {
	PlayerID int
	Points   int
	Won      bool
}

// Store persists session outcomes and action history.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// RecordSessionResults persists the final outcome of one game of a session and
// marks the session completed. Each game keeps its own rows.
func (s *Store) RecordSessionResults(ctx context.Context, sessionID uuid.UUID, game int, results []PlayerResult) error {
	err := pgx.BeginTxFunc(ctx, s.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		upsertSession := `
			INSERT INTO sessions (id, status, end_time)
			VALUES ($1, 'completed', NOW())
			ON CONFLICT (id) DO UPDATE SET status = 'completed', end_time = NOW()
		`
		if _, e := tx.Exec(ctx, upsertSession, sessionID); e != nil {
			return e
		}

		for _, r := range results {
			q := `
				INSERT INTO session_results (session_id, game, player_id, points, did_win)
				VALUES ($1, $2, $3, $4, $5)
				ON CONFLICT (session_id, game, player_id)
				DO UPDATE SET points=$4, did_win=$5
			`
			if _, e2 := tx.Exec(ctx, q, sessionID, game, r.PlayerID, r.Points, r.Won); e2 != nil {
				return e2
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("tx upsert session or results: %w", err)
	}
	return nil
}

// InsertActions writes a batch of action records in a single transaction.
// Sessions are created on first sight and completed by a game_end action.
func (s *Store) InsertActions(ctx context.Context, records []cache.GameActionRecord) error {
	if len(records) == 0 {
		return nil
	}
	return pgx.BeginTxFunc(ctx, s.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		for _, rec := range records {
			if err := insertActionTx(ctx, tx, rec); err != nil {
				return fmt.Errorf("insertActionTx: %w", err)
			}
		}
		return nil
	})
}

func insertActionTx(ctx context.Context, tx pgx.Tx, rec cache.GameActionRecord) error {
	upsertSessionQ := `
		INSERT INTO sessions (id, status, start_time)
		VALUES ($1, 'in_progress', NOW())
		ON CONFLICT (id) DO NOTHING
	`
	if _, err := tx.Exec(ctx, upsertSessionQ, rec.SessionID); err != nil {
		return err
	}

	jsonPayload, err := json.Marshal(rec.ActionPayload)
	if err != nil {
		return err
	}
	actionInsertQ := `
		INSERT INTO session_actions (
			session_id, action_index, game, actor_player, action_type, action_payload, recorded_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (session_id, action_index) DO NOTHING
	`
	game := rec.Game
	if game < 1 {
		game = 1
	}
	_, err = tx.Exec(ctx, actionInsertQ,
		rec.SessionID, rec.ActionIndex, game, rec.ActorPlayer, rec.ActionType, jsonPayload,
		time.UnixMilli(rec.Timestamp),
	)
	if err != nil {
		return err
	}

	if rec.ActionType == cache.ActionGameEnd {
		finalizeQ := `
			UPDATE sessions
			SET status = 'completed', end_time = NOW()
			WHERE id = $1 AND status = 'in_progress'
		`
		if _, err := tx.Exec(ctx, finalizeQ, rec.SessionID); err != nil {
			return err
		}
	}
	return nil
}

// MarkAbandoned marks a session as 'abandoned' if it was still in progress.
func (s *Store) MarkAbandoned(ctx context.Context, sessionID uuid.UUID) error {
	q := `
		UPDATE sessions
		SET status = 'abandoned', end_time = NOW()
		WHERE id = $1 AND status = 'in_progress'
	`
	if _, err := s.pool.Exec(ctx, q, sessionID); err != nil {
		return fmt.Errorf("failed to mark session %v abandoned: %w", sessionID, err)
	}
	return nil
}
