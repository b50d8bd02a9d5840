// internal/cache/redis.go
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// DefaultQueueName is the Redis list (queue) name for session action logs.
const DefaultQueueName = "cambia_ar_actions"

// ActionGameEnd is the action type recorded when a session reaches post-game.
const ActionGameEnd = "game_end"

// GameActionRecord holds the minimal info needed by the historian service.
type GameActionRecord struct {
	SessionID     uuid.UUID              `json:"session_id"`
	Game          int                    `json:"game"`
	ActionIndex   int                    `json:"action_index"`
	ActorPlayer   *int                   `json:"actor_player,omitempty"`
	ActionType    string                 `json:"action_type"`
	ActionPayload map[string]interface{} `json:"action_payload"`
	Timestamp     int64                  `json:"timestamp"`
}

// Connect creates a Redis client for addr/db and verifies it with a ping.
func Connect(ctx context.Context, addr string, db int) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr: addr,
		DB:   db,
	})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", addr, err)
	}
	return rdb, nil
}

// Publisher pushes action records onto a Redis list.
type Publisher struct {
	rdb   redis.Cmdable
	queue string
}

// NewPublisher returns a Publisher writing to queue, or DefaultQueueName when empty.
func NewPublisher(rdb redis.Cmdable, queue string) *Publisher {
	if queue == "" {
		queue = DefaultQueueName
	}
	return &Publisher{rdb: rdb, queue: queue}
}

// Queue returns the list name records are pushed to.
func (p *Publisher) Queue() string {
	return p.queue
}

// PublishGameAction serializes the given record to JSON, then pushes it to the Redis queue.
func (p *Publisher) PublishGameAction(ctx context.Context, record GameActionRecord) error {
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal GameActionRecord: %w", err)
	}
	if err := p.rdb.RPush(ctx, p.queue, data).Err(); err != nil {
		return fmt.Errorf("failed to RPush to Redis list '%s': %w", p.queue, err)
	}
	return nil
}

// DecodeGameAction parses a record popped from the queue.
func DecodeGameAction(payload string) (GameActionRecord, error) {
	var record GameActionRecord
	if err := json.Unmarshal([]byte(payload), &record); err != nil {
		return record, fmt.Errorf("invalid action record: %w", err)
	}
	return record, nil
}
