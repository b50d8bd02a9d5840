// internal/game/input.go
package game

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/jason-s-yu/cambia-ar/internal/models"
)

// Input is an event from the presentation layer.
type Input interface {
	inputName() string
}

// SurfaceTapped is a tap on a detected surface at a world point.
type SurfaceTapped struct {
	Point models.Point
}

// CardTapped is a tap on a card entity.
type CardTapped struct {
	Card uuid.UUID
}

// PlayerTapped is a tap on a seat marker.
type PlayerTapped struct {
	Player int
}

// PileKind names one of the two piles.
type PileKind string

const (
	PileDraw    PileKind = "draw"
	PileDiscard PileKind = "discard"
)

// PileTapped is a tap on a pile base when no card entity was hit.
type PileTapped struct {
	Pile PileKind
}

// InteractionKindSelected is the choice made in the interaction picker.
type InteractionKindSelected struct {
	Kind InteractionKind
}

// LastRoundCalled is a player's last-round declaration.
type LastRoundCalled struct {
	Player int
}

// PlaceDrawPileRequested restarts the table from draw pile placement.
type PlaceDrawPileRequested struct{}

func (SurfaceTapped) inputName() string           { return "surface_tapped" }
func (CardTapped) inputName() string              { return "card_tapped" }
func (PlayerTapped) inputName() string            { return "player_tapped" }
func (PileTapped) inputName() string              { return "pile_tapped" }
func (InteractionKindSelected) inputName() string { return "interaction_kind_selected" }
func (LastRoundCalled) inputName() string         { return "last_round_called" }
func (PlaceDrawPileRequested) inputName() string  { return "place_draw_pile_requested" }

// describeInput renders an input for logs and history records.
func describeInput(in Input) map[string]interface{} {
	payload := map[string]interface{}{"input": in.inputName()}
	switch v := in.(type) {
	case SurfaceTapped:
		payload["point"] = fmt.Sprintf("%.3f,%.3f,%.3f", v.Point.X, v.Point.Y, v.Point.Z)
	case CardTapped:
		payload["card"] = v.Card.String()
	case PlayerTapped:
		payload["player"] = v.Player
	case PileTapped:
		payload["pile"] = string(v.Pile)
	case InteractionKindSelected:
		payload["kind"] = string(v.Kind)
	case LastRoundCalled:
		payload["player"] = v.Player
	}
	return payload
}
