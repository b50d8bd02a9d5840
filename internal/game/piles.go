// internal/game/piles.go
package game

import (
	"math/rand"

	"github.com/google/uuid"
	"github.com/jason-s-yu/cambia-ar/internal/models"
)

// discardPileSpacing is the distance between the draw and discard piles along x.
const discardPileSpacing = 0.1

// Piles holds the draw stack and the discard collection.
type Piles struct {
	// Draw is ordered bottom to top; the last element is drawn next.
	Draw    []*models.Card
	Discard []*models.Card

	Placed        bool
	DrawAnchor    models.Point
	DiscardAnchor models.Point
}

// Top returns the next card to draw, or nil when the draw pile is empty.
func (p *Piles) Top() *models.Card {
	if len(p.Draw) == 0 {
		return nil
	}
	return p.Draw[len(p.Draw)-1]
}

// TopDiscard returns the most recently discarded card, or nil.
func (p *Piles) TopDiscard() *models.Card {
	if len(p.Discard) == 0 {
		return nil
	}
	return p.Discard[len(p.Discard)-1]
}

// popDraw removes and returns the top of the draw pile.
func (p *Piles) popDraw() *models.Card {
	c := p.Top()
	if c != nil {
		p.Draw = p.Draw[:len(p.Draw)-1]
	}
	return c
}

// popDiscard removes and returns the top of the discard pile.
func (p *Piles) popDiscard() *models.Card {
	c := p.TopDiscard()
	if c != nil {
		p.Discard = p.Discard[:len(p.Discard)-1]
	}
	return c
}

func (p *Piles) discard(cards ...*models.Card) {
	p.Discard = append(p.Discard, cards...)
}

// StackOffset is the height at which the next discarded card lands.
func (p *Piles) StackOffset() float64 {
	return stackOffset(len(p.Discard))
}

func stackOffset(count int) float64 {
	return float64(count) * models.CardThickness * 2
}

// InDraw reports whether cardID is somewhere in the draw pile.
func (p *Piles) InDraw(cardID uuid.UUID) bool {
	for _, c := range p.Draw {
		if c.ID == cardID {
			return true
		}
	}
	return false
}

// InDiscard reports whether cardID is somewhere in the discard pile.
func (p *Piles) InDiscard(cardID uuid.UUID) bool {
	for _, c := range p.Discard {
		if c.ID == cardID {
			return true
		}
	}
	return false
}

// place records where the piles sit. The discard pile goes next to the draw pile.
func (p *Piles) place(anchor models.Point) {
	p.Placed = true
	p.DrawAnchor = anchor
	p.DiscardAnchor = discardAnchorFor(anchor)
}

func discardAnchorFor(drawAnchor models.Point) models.Point {
	return drawAnchor.Offset(discardPileSpacing, 0, 0)
}

// reset gathers the given cards and the discard pile into a reshuffled draw pile.
func (p *Piles) reset(r *rand.Rand, loose []*models.Card) {
	all := make([]*models.Card, 0, len(p.Draw)+len(p.Discard)+len(loose))
	all = append(all, p.Draw...)
	all = append(all, p.Discard...)
	all = append(all, loose...)
	models.Shuffle(r, all)
	p.Draw = all
	p.Discard = nil
	p.Placed = false
	p.DrawAnchor = models.Point{}
	p.DiscardAnchor = models.Point{}
}

func cardIDs(cards []*models.Card) []uuid.UUID {
	ids := make([]uuid.UUID, len(cards))
	for i, c := range cards {
		ids[i] = c.ID
	}
	return ids
}
