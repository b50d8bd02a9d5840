package models

import "github.com/google/uuid"

// Point is a position in world space, in meters.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Offset returns p moved by dx, dy, dz.
func (p Point) Offset(dx, dy, dz float64) Point {
	return Point{X: p.X + dx, Y: p.Y + dy, Z: p.Z + dz}
}

// Player is a seat at the table.
type Player struct {
	ID     int     `json:"id"`
	Anchor Point   `json:"anchor"`
	Hand   []*Card `json:"-"`

	// DrawnCard holds the card drawn this turn, not yet discarded or swapped.
	DrawnCard *Card `json:"-"`

	// Flagged collects hand cards revealed during a discard interaction.
	Flagged []*Card `json:"-"`
}

// NewPlayer seats a player with an empty hand.
func NewPlayer(id int, anchor Point) *Player {
	return &Player{
		ID:     id,
		Anchor: anchor,
		Hand:   []*Card{},
	}
}

// HandIndex returns the slot of cardID in the hand, or -1.
func (p *Player) HandIndex(cardID uuid.UUID) int {
	for i, c := range p.Hand {
		if c.ID == cardID {
			return i
		}
	}
	return -1
}

// IsFlagged reports whether cardID is already flagged for discard.
func (p *Player) IsFlagged(cardID uuid.UUID) bool {
	for _, c := range p.Flagged {
		if c.ID == cardID {
			return true
		}
	}
	return false
}

// RemoveFromHand removes the listed cards, keeping the order of the rest.
func (p *Player) RemoveFromHand(cards ...*Card) {
	drop := make(map[uuid.UUID]bool, len(cards))
	for _, c := range cards {
		drop[c.ID] = true
	}
	kept := p.Hand[:0]
	for _, c := range p.Hand {
		if !drop[c.ID] {
			kept = append(kept, c)
		}
	}
	p.Hand = kept
}
