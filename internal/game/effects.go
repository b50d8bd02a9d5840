// internal/game/effects.go
package game

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jason-s-yu/cambia-ar/internal/models"
	"golang.org/x/sync/errgroup"
)

// CommandKind names a presentation command.
type CommandKind string

const (
	CmdLoadAssets          CommandKind = "load_assets"
	CmdPlaceDrawPile       CommandKind = "place_draw_pile"
	CmdPlaceDiscardPile    CommandKind = "place_discard_pile"
	CmdPlacePlayer         CommandKind = "place_player"
	CmdRemovePlayer        CommandKind = "remove_player"
	CmdDealCard            CommandKind = "deal_card"
	CmdArrangeHand         CommandKind = "arrange_hand"
	CmdOrientPlayerToward  CommandKind = "orient_player_toward"
	CmdMoveCardToDrawnSlot CommandKind = "move_card_to_drawn_slot"
	CmdFlipCard            CommandKind = "flip_card"
	CmdMoveCardToDiscard   CommandKind = "move_card_to_discard"
	CmdExchangeCards       CommandKind = "exchange_cards"
	CmdShowAvatar          CommandKind = "show_avatar"
	CmdHideAvatar          CommandKind = "hide_avatar"
)

// Command is a single request to the presentation layer. Only the fields that
// apply to Kind are set.
type Command struct {
	Kind   CommandKind   `json:"kind"`
	Player *int          `json:"player,omitempty"`
	Card   uuid.UUID     `json:"card,omitzero"`
	Other  uuid.UUID     `json:"other,omitzero"`
	Anchor *models.Point `json:"anchor,omitempty"`
	Offset float64       `json:"offset,omitempty"`

	// Cards lists the card ids for load_assets and place_draw_pile, bottom to top.
	Cards []uuid.UUID `json:"cards,omitempty"`
	// Assets lists model names for load_assets.
	Assets []string `json:"assets,omitempty"`
}

func (c Command) String() string {
	switch {
	case c.Player != nil && c.Card != uuid.Nil:
		return fmt.Sprintf("%s(card=%s, player=%d)", c.Kind, c.Card, *c.Player)
	case c.Player != nil:
		return fmt.Sprintf("%s(player=%d)", c.Kind, *c.Player)
	case c.Other != uuid.Nil:
		return fmt.Sprintf("%s(%s, %s)", c.Kind, c.Card, c.Other)
	case c.Card != uuid.Nil:
		return fmt.Sprintf("%s(card=%s)", c.Kind, c.Card)
	}
	return string(c.Kind)
}

// Effects is the outbound port to the presentation layer. Do blocks until the
// command has visually settled or failed.
type Effects interface {
	Do(ctx context.Context, cmd Command) error
}

// EffectsFunc adapts a function to Effects.
type EffectsFunc func(ctx context.Context, cmd Command) error

func (f EffectsFunc) Do(ctx context.Context, cmd Command) error {
	return f(ctx, cmd)
}

// ErrAssetLoad is returned when the presentation layer cannot produce the
// assets the session needs.
var ErrAssetLoad = errors.New("asset load failed")

// EffectError reports a command that did not complete. The session state is
// left as it was before the input that issued it.
type EffectError struct {
	Cmd Command
	Err error
}

func (e *EffectError) Error() string {
	return fmt.Sprintf("effect %s failed: %v", e.Cmd, e.Err)
}

func (e *EffectError) Unwrap() error {
	return e.Err
}

// batch fans out independent commands and joins them.
type batch struct {
	g   *errgroup.Group
	ctx context.Context
	fx  Effects
}

func newBatch(ctx context.Context, fx Effects) *batch {
	g, gctx := errgroup.WithContext(ctx)
	return &batch{g: g, ctx: gctx, fx: fx}
}

func (b *batch) Go(cmd Command) {
	b.g.Go(func() error {
		return run(b.ctx, b.fx, cmd)
	})
}

// Wait blocks until every command in the batch completed and returns the first failure.
func (b *batch) Wait() error {
	return b.g.Wait()
}

// run issues a single command and wraps its failure.
func run(ctx context.Context, fx Effects, cmd Command) error {
	if err := fx.Do(ctx, cmd); err != nil {
		var effErr *EffectError
		if errors.As(err, &effErr) {
			return err
		}
		return &EffectError{Cmd: cmd, Err: err}
	}
	return nil
}

// sequence issues commands one after another, stopping at the first failure.
func sequence(ctx context.Context, fx Effects, cmds ...Command) error {
	for _, cmd := range cmds {
		if err := run(ctx, fx, cmd); err != nil {
			return err
		}
	}
	return nil
}

// parallel issues commands as one batch and joins them.
func parallel(ctx context.Context, fx Effects, cmds ...Command) error {
	b := newBatch(ctx, fx)
	for _, cmd := range cmds {
		b.Go(cmd)
	}
	return b.Wait()
}

func seat(id int) *int {
	return &id
}

func at(p models.Point) *models.Point {
	return &p
}

func loadAssetsCmd(deck []*models.Card) Command {
	assets := make([]string, len(deck))
	for i, c := range deck {
		assets[i] = c.AssetName()
	}
	return Command{Kind: CmdLoadAssets, Cards: cardIDs(deck), Assets: assets}
}

func placeDrawPileCmd(anchor models.Point, cards []*models.Card) Command {
	return Command{Kind: CmdPlaceDrawPile, Anchor: at(anchor), Cards: cardIDs(cards)}
}

func placeDiscardPileCmd(anchor models.Point) Command {
	return Command{Kind: CmdPlaceDiscardPile, Anchor: at(anchor)}
}

func placePlayerCmd(id int, anchor models.Point) Command {
	return Command{Kind: CmdPlacePlayer, Player: seat(id), Anchor: at(anchor)}
}

func removePlayerCmd(id int) Command {
	return Command{Kind: CmdRemovePlayer, Player: seat(id)}
}

func dealCardCmd(card *models.Card, to int) Command {
	return Command{Kind: CmdDealCard, Card: card.ID, Player: seat(to)}
}

func arrangeHandCmd(id int) Command {
	return Command{Kind: CmdArrangeHand, Player: seat(id)}
}

func orientPlayerTowardCmd(id int, target models.Point) Command {
	return Command{Kind: CmdOrientPlayerToward, Player: seat(id), Anchor: at(target)}
}

func moveCardToDrawnSlotCmd(card *models.Card, to int) Command {
	return Command{Kind: CmdMoveCardToDrawnSlot, Card: card.ID, Player: seat(to)}
}

func flipCardCmd(card *models.Card) Command {
	return Command{Kind: CmdFlipCard, Card: card.ID}
}

func moveCardToDiscardCmd(card *models.Card, offset float64) Command {
	return Command{Kind: CmdMoveCardToDiscard, Card: card.ID, Offset: offset}
}

func exchangeCardsCmd(a, b *models.Card) Command {
	return Command{Kind: CmdExchangeCards, Card: a.ID, Other: b.ID}
}

func showAvatarCmd(id int) Command {
	return Command{Kind: CmdShowAvatar, Player: seat(id)}
}

func hideAvatarCmd(id int) Command {
	return Command{Kind: CmdHideAvatar, Player: seat(id)}
}
