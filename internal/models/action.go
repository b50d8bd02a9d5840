package models

// CardAction is the special ability granted by a drawn card.
type CardAction string

const (
	ActionNone CardAction = ""
	ActionPeek CardAction = "peek" // look at one of your own concealed cards
	ActionSpy  CardAction = "spy"  // look at one concealed card of another player
	ActionSwap CardAction = "swap" // exchange cards between two different players
)

// Value thresholds for card actions.
const (
	PeekMinValue = 7
	PeekMaxValue = 8
	SpyMinValue  = 9
	SpyMaxValue  = 10
	SwapMinValue = 11
	SwapMaxValue = 12
)

// ActionForValue maps a card value to its action.
func ActionForValue(v int) CardAction {
	switch {
	case v >= PeekMinValue && v <= PeekMaxValue:
		return ActionPeek
	case v >= SpyMinValue && v <= SpyMaxValue:
		return ActionSpy
	case v >= SwapMinValue && v <= SwapMaxValue:
		return ActionSwap
	default:
		return ActionNone
	}
}
