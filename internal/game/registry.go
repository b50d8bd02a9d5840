// internal/game/registry.go
package game

import (
	"github.com/google/uuid"
	"github.com/jason-s-yu/cambia-ar/internal/models"
)

// Registry holds the seated players in seating order.
type Registry struct {
	Players []*models.Player
	nextID  int
}

// Len returns the number of seated players.
func (r *Registry) Len() int {
	return len(r.Players)
}

// Seat appends a player with the next sequential id. Ids are never reused
// until the registry is cleared.
func (r *Registry) Seat(anchor models.Point) *models.Player {
	p := models.NewPlayer(r.peekID(), anchor)
	r.Players = append(r.Players, p)
	r.nextID++
	return p
}

func (r *Registry) peekID() int {
	return r.nextID
}

// Remove drops the player with id. It reports whether a player was removed.
func (r *Registry) Remove(id int) bool {
	idx := r.index(id)
	if idx < 0 {
		return false
	}
	r.Players = append(r.Players[:idx], r.Players[idx+1:]...)
	return true
}

// Get returns the player with id, or nil.
func (r *Registry) Get(id int) *models.Player {
	if idx := r.index(id); idx >= 0 {
		return r.Players[idx]
	}
	return nil
}

// IDs returns the seat ids in seating order.
func (r *Registry) IDs() []int {
	ids := make([]int, len(r.Players))
	for i, p := range r.Players {
		ids[i] = p.ID
	}
	return ids
}

func (r *Registry) index(id int) int {
	for i, p := range r.Players {
		if p.ID == id {
			return i
		}
	}
	return -1
}

// clear removes every player and returns all cards they held.
func (r *Registry) clear() []*models.Card {
	var loose []*models.Card
	for _, p := range r.Players {
		loose = append(loose, p.Hand...)
		if p.DrawnCard != nil {
			loose = append(loose, p.DrawnCard)
		}
	}
	r.Players = nil
	r.nextID = 0
	return loose
}

// holder finds the player holding cardID in the hand (index >= 0) or in the
// drawn slot (index -1).
func (r *Registry) holder(cardID uuid.UUID) (*models.Player, int, bool) {
	for _, p := range r.Players {
		if idx := p.HandIndex(cardID); idx >= 0 {
			return p, idx, true
		}
		if p.DrawnCard != nil && p.DrawnCard.ID == cardID {
			return p, -1, true
		}
	}
	return nil, 0, false
}
