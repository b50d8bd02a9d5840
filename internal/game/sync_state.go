// internal/game/sync_state.go
package game

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/jason-s-yu/cambia-ar/internal/models"
)

// ObfCard holds minimal info for a card. Face-down cards carry only the id;
// rank and suit are filled in when the card is face up on the table.
type ObfCard struct {
	ID    uuid.UUID `json:"id"`
	Known bool      `json:"known"`
	Rank  string    `json:"rank,omitempty"`
	Suit  string    `json:"suit,omitempty"`
	Value int       `json:"value,omitempty"`
	Idx   int       `json:"idx,omitempty"`
}

// ObfPlayerState is one seat as seen by every device at the table.
type ObfPlayerState struct {
	PlayerID      int          `json:"player_id"`
	Anchor        models.Point `json:"anchor"`
	HandSize      int          `json:"hand_size"`
	Hand          []ObfCard    `json:"hand"`
	IsCurrentTurn bool         `json:"isCurrentTurn"`
	DrawnCard     *ObfCard     `json:"drawnCard,omitempty"`
}

// TableView is a snapshot of the table for clients that join mid-game.
type TableView struct {
	SessionID     uuid.UUID        `json:"session_id"`
	Game          int              `json:"game"`
	State         GameState        `json:"state"`
	LastRound     LastRoundCall    `json:"lastRound"`
	PilesPlaced   bool             `json:"pilesPlaced"`
	DrawAnchor    models.Point     `json:"drawAnchor"`
	DiscardAnchor models.Point     `json:"discardAnchor"`
	DrawPile      []uuid.UUID      `json:"drawPile"`
	DiscardSize   int              `json:"discardSize"`
	DiscardTop    *ObfCard         `json:"discardTop,omitempty"`
	Players       []ObfPlayerState `json:"players"`
}

func revealed(c *models.Card, idx int) ObfCard {
	return ObfCard{
		ID:    c.ID,
		Known: true,
		Rank:  string(c.Rank),
		Suit:  string(c.Suit),
		Value: c.Value(),
		Idx:   idx,
	}
}

// View generates a snapshot of the table. Hand cards stay hidden unless they
// are flagged face up during a discard.
func (s *Session) View() TableView {
	s.mu.Lock()
	defer s.mu.Unlock()

	caller, called := s.turns.LastRoundCaller()
	view := TableView{
		SessionID:     s.ID,
		Game:          s.game,
		State:         s.state,
		LastRound:     LastRoundCall{Called: called, Caller: caller},
		PilesPlaced:   s.piles.Placed,
		DrawAnchor:    s.piles.DrawAnchor,
		DiscardAnchor: s.piles.DiscardAnchor,
		DrawPile:      cardIDs(s.piles.Draw),
		DiscardSize:   len(s.piles.Discard),
	}
	if top := s.piles.TopDiscard(); top != nil {
		c := revealed(top, len(s.piles.Discard)-1)
		view.DiscardTop = &c
	}

	active := s.actor()
	for _, p := range s.registry.Players {
		ps := ObfPlayerState{
			PlayerID:      p.ID,
			Anchor:        p.Anchor,
			HandSize:      len(p.Hand),
			IsCurrentTurn: active != nil && *active == p.ID,
		}
		for i, c := range p.Hand {
			if p.IsFlagged(c.ID) || s.state.Phase == PhasePostGame {
				ps.Hand = append(ps.Hand, revealed(c, i))
				continue
			}
			ps.Hand = append(ps.Hand, ObfCard{ID: c.ID, Idx: i})
		}
		if p.DrawnCard != nil {
			c := revealed(p.DrawnCard, -1)
			ps.DrawnCard = &c
		}
		view.Players = append(view.Players, ps)
	}
	return view
}

// checkPartition verifies that every deck card is in exactly one place: the
// draw pile, the discard pile, a hand or a drawn slot. Flagged cards must also
// be in their owner's hand.
func (s *Session) checkPartition() error {
	seen := make(map[uuid.UUID]string, len(s.deck))
	mark := func(c *models.Card, where string) error {
		if c == nil {
			return fmt.Errorf("nil card in %s", where)
		}
		if prev, dup := seen[c.ID]; dup {
			return fmt.Errorf("card %s in both %s and %s", c, prev, where)
		}
		seen[c.ID] = where
		return nil
	}
	for _, c := range s.piles.Draw {
		if err := mark(c, "draw pile"); err != nil {
			return err
		}
	}
	for _, c := range s.piles.Discard {
		if err := mark(c, "discard pile"); err != nil {
			return err
		}
	}
	for _, p := range s.registry.Players {
		where := fmt.Sprintf("hand of player %d", p.ID)
		for _, c := range p.Hand {
			if err := mark(c, where); err != nil {
				return err
			}
		}
		if p.DrawnCard != nil {
			if err := mark(p.DrawnCard, fmt.Sprintf("drawn slot of player %d", p.ID)); err != nil {
				return err
			}
		}
		for _, c := range p.Flagged {
			if p.HandIndex(c.ID) < 0 {
				return fmt.Errorf("flagged card %s not in hand of player %d", c, p.ID)
			}
		}
	}
	if len(seen) != len(s.deck) {
		return fmt.Errorf("%d of %d cards accounted for", len(seen), len(s.deck))
	}
	for _, c := range s.deck {
		if _, ok := seen[c.ID]; !ok {
			return fmt.Errorf("card %s missing", c)
		}
	}
	return nil
}
