// internal/game/rules.go
package game

import "fmt"

// DefaultCardsPerPlayer is the number of cards dealt to each seat.
const DefaultCardsPerPlayer = 4

// HouseRules defines the table settings that can vary between sessions.
type HouseRules struct {
	CardsPerPlayer           int  `json:"cardsPerPlayer"`           // cards dealt to each seat
	MinPlayers               int  `json:"minPlayers"`               // seats required before dealing
	AllowDrawFromDiscardPile bool `json:"allowDrawFromDiscardPile"` // allow drawing the top of the discard pile
	RegardCardCount          int  `json:"regardCardCount"`          // hand slots a player may look at before play; 0 means all
	FalseCallPenalty         int  `json:"falseCallPenalty"`         // points added to a last-round caller who does not win
}

// DefaultHouseRules returns the standard table settings.
func DefaultHouseRules() HouseRules {
	return HouseRules{
		CardsPerPlayer:           DefaultCardsPerPlayer,
		MinPlayers:               2,
		AllowDrawFromDiscardPile: true,
		RegardCardCount:          0,
		FalseCallPenalty:         0,
	}
}

// Update will update the house rules with the new rules provided.
// If a rule is not set or defined, it will be ignored, and the old value will persist.
func (rules *HouseRules) Update(newRules map[string]interface{}) error {
	assignBool := func(field *bool, key string) error {
		val, exists := newRules[key]
		if !exists || val == nil {
			return nil
		}
		b, ok := val.(bool)
		if !ok {
			return fmt.Errorf("invalid type for %s", key)
		}
		*field = b
		return nil
	}

	assignInt := func(field *int, key string, minVal int) error {
		val, exists := newRules[key]
		if !exists || val == nil {
			return nil
		}
		var n int
		switch v := val.(type) {
		case float64: // JSON numbers decode as float64
			n = int(v)
		case int:
			n = v
		default:
			return fmt.Errorf("invalid type for %s", key)
		}
		if n < minVal {
			return fmt.Errorf("%s must be at least %d", key, minVal)
		}
		*field = n
		return nil
	}

	if err := assignInt(&rules.CardsPerPlayer, "cardsPerPlayer", 1); err != nil {
		return err
	}
	if err := assignInt(&rules.MinPlayers, "minPlayers", 1); err != nil {
		return err
	}
	if err := assignBool(&rules.AllowDrawFromDiscardPile, "allowDrawFromDiscardPile"); err != nil {
		return err
	}
	if err := assignInt(&rules.RegardCardCount, "regardCardCount", 0); err != nil {
		return err
	}
	if err := assignInt(&rules.FalseCallPenalty, "falseCallPenalty", 0); err != nil {
		return err
	}
	return nil
}

// ParseRules applies a map of rules on top of current and returns the result.
func ParseRules(rules map[string]interface{}, current HouseRules) (HouseRules, error) {
	houseRules := current
	err := houseRules.Update(rules)
	return houseRules, err
}

// canRegard reports whether the hand slot idx may be looked at before play.
func (rules HouseRules) canRegard(idx int) bool {
	return rules.RegardCardCount == 0 || idx < rules.RegardCardCount
}
