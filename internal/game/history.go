// internal/game/history.go
package game

import (
	"context"
	"time"

	"github.com/jason-s-yu/cambia-ar/internal/cache"
)

// ActionPublisher receives a record of every committed transition.
type ActionPublisher interface {
	PublishGameAction(ctx context.Context, record cache.GameActionRecord) error
}

// logAction sends the action details to the historian, if one is attached.
// Assumes lock is held by caller.
func (s *Session) logAction(actor *int, actionType string, payload map[string]interface{}) {
	s.actionIndex++
	if s.history == nil {
		return
	}
	if payload == nil {
		payload = make(map[string]interface{})
	}
	record := cache.GameActionRecord{
		SessionID:     s.ID,
		Game:          s.game,
		ActionIndex:   s.actionIndex,
		ActorPlayer:   actor,
		ActionType:    actionType,
		ActionPayload: payload,
		Timestamp:     time.Now().UnixMilli(),
	}
	go func(rec cache.GameActionRecord) {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := s.history.PublishGameAction(ctx, rec); err != nil {
			s.log.WithError(err).Warnf("failed to publish action %d", rec.ActionIndex)
		}
	}(record)
}
