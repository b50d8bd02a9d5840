// internal/game/resolver.go
package game

import (
	"context"

	"github.com/google/uuid"
	"github.com/jason-s-yu/cambia-ar/internal/models"
)

// resolution is the result of a card tap during selectedInteractionType.
// When the turn continues, next is the interaction to broadcast.
type resolution struct {
	applied  bool
	endsTurn bool
	next     Interaction
}

var (
	rejected  = resolution{}
	turnEnded = resolution{applied: true, endsTurn: true}
)

func continueWith(in Interaction) resolution {
	return resolution{applied: true, next: in}
}

// resolver carries out the selected interaction for the acting player. Every
// method validates first, awaits its effects, and only then mutates hands and
// piles, so an effect error leaves the table untouched.
type resolver struct {
	registry *Registry
	piles    *Piles
	fx       Effects
}

func (r *resolver) resolve(ctx context.Context, p *models.Player, in Interaction, cardID uuid.UUID) (resolution, error) {
	if p.DrawnCard == nil {
		return rejected, nil
	}
	switch in.Kind {
	case InteractionDiscard:
		if cardID == p.DrawnCard.ID {
			return r.finalizeDiscard(ctx, p)
		}
		return r.flag(ctx, p, in, cardID)
	case InteractionSwapDrawnWithOwnCard:
		return r.swapDrawnWithOwn(ctx, p, cardID)
	case InteractionPerformAction:
		switch in.Action {
		case models.ActionPeek:
			return r.look(ctx, p, cardID, true)
		case models.ActionSpy:
			return r.look(ctx, p, cardID, false)
		case models.ActionSwap:
			return r.swap(ctx, p, in, cardID)
		}
	}
	return rejected, nil
}

// flag turns up a card from the player's own hand and marks it for discard.
func (r *resolver) flag(ctx context.Context, p *models.Player, in Interaction, cardID uuid.UUID) (resolution, error) {
	idx := p.HandIndex(cardID)
	if idx < 0 || p.IsFlagged(cardID) {
		return rejected, nil
	}
	card := p.Hand[idx]
	if err := run(ctx, r.fx, flipCardCmd(card)); err != nil {
		return rejected, err
	}
	p.Flagged = append(p.Flagged, card)
	return continueWith(in), nil
}

// finalizeDiscard discards the drawn card. If every flagged card matches its
// value, the flagged cards are discarded with it and the hand closes up;
// otherwise they are turned back down and stay in the hand.
func (r *resolver) finalizeDiscard(ctx context.Context, p *models.Player) (resolution, error) {
	drawn := p.DrawnCard
	flagged := p.Flagged
	match := len(flagged) > 0
	for _, c := range flagged {
		if c.Value() != drawn.Value() {
			match = false
			break
		}
	}

	base := len(r.piles.Discard)
	if match {
		cmds := make([]Command, 0, len(flagged)+1)
		for i, c := range flagged {
			cmds = append(cmds, moveCardToDiscardCmd(c, stackOffset(base+i)))
		}
		cmds = append(cmds, moveCardToDiscardCmd(drawn, stackOffset(base+len(flagged))))
		if err := parallel(ctx, r.fx, cmds...); err != nil {
			return rejected, err
		}
		if err := run(ctx, r.fx, arrangeHandCmd(p.ID)); err != nil {
			return rejected, err
		}
		p.RemoveFromHand(flagged...)
		r.piles.discard(flagged...)
	} else {
		cmds := make([]Command, 0, len(flagged)+1)
		for _, c := range flagged {
			cmds = append(cmds, flipCardCmd(c))
		}
		cmds = append(cmds, moveCardToDiscardCmd(drawn, stackOffset(base)))
		if err := parallel(ctx, r.fx, cmds...); err != nil {
			return rejected, err
		}
	}
	r.piles.discard(drawn)
	p.DrawnCard = nil
	p.Flagged = nil
	return turnEnded, nil
}

// swapDrawnWithOwn puts the drawn card into the tapped hand slot and discards
// the card that was there.
func (r *resolver) swapDrawnWithOwn(ctx context.Context, p *models.Player, cardID uuid.UUID) (resolution, error) {
	idx := p.HandIndex(cardID)
	if idx < 0 {
		return rejected, nil
	}
	old := p.Hand[idx]
	if err := sequence(ctx, r.fx,
		exchangeCardsCmd(p.DrawnCard, old),
		moveCardToDiscardCmd(old, r.piles.StackOffset()),
	); err != nil {
		return rejected, err
	}
	p.Hand[idx] = p.DrawnCard
	r.piles.discard(old)
	p.DrawnCard = nil
	return turnEnded, nil
}

// look reveals a hand card to the acting player and turns it back down: one of
// their own for a peek, another player's for a spy. The drawn card is then
// discarded.
func (r *resolver) look(ctx context.Context, p *models.Player, cardID uuid.UUID, own bool) (resolution, error) {
	owner, idx, ok := r.registry.holder(cardID)
	if !ok || idx < 0 || (owner.ID == p.ID) != own {
		return rejected, nil
	}
	card := owner.Hand[idx]
	if err := sequence(ctx, r.fx,
		flipCardCmd(card),
		flipCardCmd(card),
		moveCardToDiscardCmd(p.DrawnCard, r.piles.StackOffset()),
	); err != nil {
		return rejected, err
	}
	r.discardDrawn(p)
	return turnEnded, nil
}

// swap exchanges two hand cards held by different players. The first tap is
// memorized; the second must belong to a different owner.
func (r *resolver) swap(ctx context.Context, p *models.Player, in Interaction, cardID uuid.UUID) (resolution, error) {
	second, secondIdx, ok := r.registry.holder(cardID)
	if !ok || secondIdx < 0 {
		return rejected, nil
	}
	sel := awaitingFirstSelection()
	if in.Swap != nil {
		sel = *in.Swap
	}
	firstID, memorized := sel.Memorized()
	if !memorized {
		next := awaitingSecondSelection(cardID)
		in.Swap = &next
		return continueWith(in), nil
	}

	first, firstIdx, ok := r.registry.holder(firstID)
	if !ok || firstIdx < 0 || first.ID == second.ID {
		return rejected, nil
	}
	a, b := first.Hand[firstIdx], second.Hand[secondIdx]
	if err := sequence(ctx, r.fx,
		exchangeCardsCmd(a, b),
		moveCardToDiscardCmd(p.DrawnCard, r.piles.StackOffset()),
	); err != nil {
		return rejected, err
	}
	first.Hand[firstIdx], second.Hand[secondIdx] = b, a
	r.discardDrawn(p)
	return turnEnded, nil
}

func (r *resolver) discardDrawn(p *models.Player) {
	r.piles.discard(p.DrawnCard)
	p.DrawnCard = nil
}
