// internal/game/state.go
package game

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/jason-s-yu/cambia-ar/internal/models"
)

// Stage groups phases into the three parts of a session.
type Stage string

const (
	StagePreGame  Stage = "pre_game"
	StageInGame   Stage = "in_game"
	StagePostGame Stage = "post_game"
)

// Phase is the current step of the session state machine.
type Phase string

const (
	PhaseLoadingAssets                   Phase = "loading_assets"
	PhasePlaceDrawPile                   Phase = "place_draw_pile"
	PhaseSetPlayerPositions              Phase = "set_player_positions"
	PhaseRegardCards                     Phase = "regard_cards"
	PhaseDealingCards                    Phase = "dealing_cards"
	PhaseCurrentTurn                     Phase = "current_turn"
	PhaseWaitForInteractionTypeSelection Phase = "wait_for_interaction_type_selection"
	PhaseSelectedInteractionType         Phase = "selected_interaction_type"
	PhasePostGame                        Phase = "post_game"
)

// Stage returns the stage this phase belongs to.
func (p Phase) Stage() Stage {
	switch p {
	case PhaseLoadingAssets, PhasePlaceDrawPile, PhaseSetPlayerPositions, PhaseRegardCards:
		return StagePreGame
	case PhasePostGame:
		return StagePostGame
	default:
		return StageInGame
	}
}

// InteractionKind is what the player chose to do with the drawn card.
type InteractionKind string

const (
	InteractionDiscard              InteractionKind = "discard"
	InteractionSwapDrawnWithOwnCard InteractionKind = "swap_drawn_with_own_card"
	InteractionPerformAction        InteractionKind = "perform_action"
)

// Valid reports whether k is a known interaction kind.
func (k InteractionKind) Valid() bool {
	switch k {
	case InteractionDiscard, InteractionSwapDrawnWithOwnCard, InteractionPerformAction:
		return true
	}
	return false
}

// SwapStep is the progress of a two-step swap.
type SwapStep string

const (
	SwapAwaitingFirstSelection  SwapStep = "awaiting_first_selection"
	SwapAwaitingSecondSelection SwapStep = "awaiting_second_selection"
)

// SwapSelection tracks a two-step swap. The memorized card is only set while
// awaiting the second selection.
type SwapSelection struct {
	step  SwapStep
	first uuid.UUID
}

func awaitingFirstSelection() SwapSelection {
	return SwapSelection{step: SwapAwaitingFirstSelection}
}

func awaitingSecondSelection(first uuid.UUID) SwapSelection {
	return SwapSelection{step: SwapAwaitingSecondSelection, first: first}
}

// Step returns the current selection step.
func (s SwapSelection) Step() SwapStep {
	if s.step == "" {
		return SwapAwaitingFirstSelection
	}
	return s.step
}

// Memorized returns the first selected card, if any.
func (s SwapSelection) Memorized() (uuid.UUID, bool) {
	if s.step != SwapAwaitingSecondSelection {
		return uuid.Nil, false
	}
	return s.first, true
}

func (s SwapSelection) MarshalJSON() ([]byte, error) {
	if first, ok := s.Memorized(); ok {
		return []byte(fmt.Sprintf(`{"step":%q,"memorized":%q}`, s.Step(), first)), nil
	}
	return []byte(fmt.Sprintf(`{"step":%q}`, s.Step())), nil
}

// Interaction is the selected interaction for the drawn card.
type Interaction struct {
	Kind   InteractionKind   `json:"kind"`
	Action models.CardAction `json:"action,omitempty"`
	Swap   *SwapSelection    `json:"swap,omitempty"`
}

// newInteraction builds the interaction for kind given the drawn card value.
// ok is false when performAction is requested for a value without an action.
func newInteraction(kind InteractionKind, value int) (Interaction, bool) {
	switch kind {
	case InteractionDiscard, InteractionSwapDrawnWithOwnCard:
		return Interaction{Kind: kind}, true
	case InteractionPerformAction:
		action := models.ActionForValue(value)
		if action == models.ActionNone {
			return Interaction{}, false
		}
		in := Interaction{Kind: kind, Action: action}
		if action == models.ActionSwap {
			sel := awaitingFirstSelection()
			in.Swap = &sel
		}
		return in, true
	}
	return Interaction{}, false
}

// PlayerScore is a single entry of the end-of-game tally.
type PlayerScore struct {
	PlayerID int `json:"playerId"`
	Points   int `json:"points"`
}

// GameState is the phase together with its payload. Fields that do not apply
// to the phase are zero.
type GameState struct {
	Phase       Phase         `json:"phase"`
	PlayerID    int           `json:"playerId"`
	CardValue   int           `json:"cardValue"`
	Interaction *Interaction  `json:"interaction,omitempty"`
	Scores      []PlayerScore `json:"pointsPerPlayer,omitempty"`
	Winners     []int         `json:"winners,omitempty"`
}

// Stage returns the stage of the current phase.
func (s GameState) Stage() Stage {
	return s.Phase.Stage()
}

func (s GameState) String() string {
	switch s.Phase {
	case PhaseCurrentTurn:
		return fmt.Sprintf("%s(%d)", s.Phase, s.PlayerID)
	case PhaseWaitForInteractionTypeSelection:
		return fmt.Sprintf("%s(%d, %d)", s.Phase, s.PlayerID, s.CardValue)
	case PhaseSelectedInteractionType:
		return fmt.Sprintf("%s(%d, %s, %d)", s.Phase, s.PlayerID, s.Interaction.Kind, s.CardValue)
	}
	return string(s.Phase)
}

func phaseOnly(p Phase) GameState {
	return GameState{Phase: p}
}

func currentTurn(playerID int) GameState {
	return GameState{Phase: PhaseCurrentTurn, PlayerID: playerID}
}

func waitForInteractionTypeSelection(playerID, value int) GameState {
	return GameState{Phase: PhaseWaitForInteractionTypeSelection, PlayerID: playerID, CardValue: value}
}

func selectedInteractionType(playerID int, in Interaction, value int) GameState {
	return GameState{Phase: PhaseSelectedInteractionType, PlayerID: playerID, Interaction: &in, CardValue: value}
}

func postGame(scores []PlayerScore, winners []int) GameState {
	return GameState{Phase: PhasePostGame, Scores: scores, Winners: winners}
}
