// internal/models/card.go
package models

import (
	"fmt"
	"math/rand"

	"github.com/google/uuid"
)

// Suit is one of the four French suits.
type Suit string

const (
	SuitClubs    Suit = "C"
	SuitDiamonds Suit = "D"
	SuitHearts   Suit = "H"
	SuitSpades   Suit = "S"
)

// Rank is the printed face of a card.
type Rank string

const (
	RankTwo   Rank = "2"
	RankThree Rank = "3"
	RankFour  Rank = "4"
	RankFive  Rank = "5"
	RankSix   Rank = "6"
	RankSeven Rank = "7"
	RankEight Rank = "8"
	RankNine  Rank = "9"
	RankTen   Rank = "10"
	RankJack  Rank = "J"
	RankQueen Rank = "Q"
	RankKing  Rank = "K"
	RankAce   Rank = "A"
)

// Suits and Ranks list every suit and rank in deck order.
var (
	Suits = []Suit{SuitClubs, SuitDiamonds, SuitHearts, SuitSpades}
	Ranks = []Rank{
		RankTwo, RankThree, RankFour, RankFive, RankSix, RankSeven, RankEight,
		RankNine, RankTen, RankJack, RankQueen, RankKing, RankAce,
	}
)

var rankValues = map[Rank]int{
	RankTwo: 2, RankThree: 3, RankFour: 4, RankFive: 5, RankSix: 6,
	RankSeven: 7, RankEight: 8, RankNine: 9, RankTen: 10,
	RankJack: 11, RankQueen: 12, RankKing: 13,
	RankAce: 0,
}

// CardThickness is the height of a single card model in meters.
const CardThickness = 0.00015

// Card is a single playing card. The value is concealed from players until an
// interaction reveals it; the engine always knows it.
type Card struct {
	ID   uuid.UUID `json:"id"`
	Suit Suit      `json:"suit"`
	Rank Rank      `json:"rank"`
}

// NewCard creates a card with a fresh identity.
func NewCard(suit Suit, rank Rank) (*Card, error) {
	if _, ok := rankValues[rank]; !ok {
		return nil, fmt.Errorf("unknown rank %q", rank)
	}
	id, err := uuid.NewRandom()
	if err != nil {
		return nil, fmt.Errorf("card id: %w", err)
	}
	return &Card{ID: id, Suit: suit, Rank: rank}, nil
}

// Value returns the point value: face value for 2-10, J=11, Q=12, K=13, A=0.
func (c *Card) Value() int {
	return rankValues[c.Rank]
}

// Action returns the action a freshly drawn card grants.
func (c *Card) Action() CardAction {
	return ActionForValue(c.Value())
}

// AssetName is the model name the presentation layer loads for this card.
func (c *Card) AssetName() string {
	return fmt.Sprintf("Playing_Card_Blue_%s_%s", c.Suit, c.Rank)
}

func (c *Card) String() string {
	return string(c.Rank) + string(c.Suit)
}

// NewStandardDeck builds the 52 cards of a single deck, in suit-major order.
func NewStandardDeck() ([]*Card, error) {
	deck := make([]*Card, 0, len(Suits)*len(Ranks))
	for _, suit := range Suits {
		for _, rank := range Ranks {
			c, err := NewCard(suit, rank)
			if err != nil {
				return nil, err
			}
			deck = append(deck, c)
		}
	}
	return deck, nil
}

// Shuffle permutes cards in place using r.
func Shuffle(r *rand.Rand, cards []*Card) {
	r.Shuffle(len(cards), func(i, j int) {
		cards[i], cards[j] = cards[j], cards[i]
	})
}
