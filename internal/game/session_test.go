// internal/game/session_test.go
package game

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/jason-s-yu/cambia-ar/internal/models"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockEffects records commands instead of animating them.
type mockEffects struct {
	mu   sync.Mutex
	cmds []Command
	fail map[CommandKind]error
}

func newMockEffects() *mockEffects {
	return &mockEffects{fail: make(map[CommandKind]error)}
}

func (m *mockEffects) Do(_ context.Context, cmd Command) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cmds = append(m.cmds, cmd)
	return m.fail[cmd.Kind]
}

func (m *mockEffects) failOn(kind CommandKind, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fail[kind] = err
}

func (m *mockEffects) clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cmds = nil
	m.fail = make(map[CommandKind]error)
}

func (m *mockEffects) count(kind CommandKind) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.cmds {
		if c.Kind == kind {
			n++
		}
	}
	return n
}

func (m *mockEffects) kinds() []CommandKind {
	m.mu.Lock()
	defer m.mu.Unlock()
	kinds := make([]CommandKind, len(m.cmds))
	for i, c := range m.cmds {
		kinds[i] = c.Kind
	}
	return kinds
}

// zeroSource makes every Intn and every shuffle draw return 0, so the first
// seat starts and shuffles are fixed. A raw 0 would make rand.Shuffle reject
// its samples forever for bounds that are not powers of two.
type zeroSource struct{}

func (zeroSource) Int63() int64 { return 1 << 31 }
func (zeroSource) Seed(int64)   {}

// makeDeck builds one card per rank, cycling through the suits.
func makeDeck(t *testing.T, ranks ...models.Rank) []*models.Card {
	t.Helper()
	deck := make([]*models.Card, len(ranks))
	for i, r := range ranks {
		c, err := models.NewCard(models.Suits[i%len(models.Suits)], r)
		require.NoError(t, err)
		deck[i] = c
	}
	return deck
}

// setupTestSession creates a session whose draw pile deals deck in order:
// deck[0] is the first card off the top.
func setupTestSession(t *testing.T, deck []*models.Card, rules HouseRules) (*Session, *mockEffects) {
	t.Helper()
	fx := newMockEffects()
	logger := logrus.New()
	logger.SetLevel(logrus.DebugLevel)
	s, err := NewSession(fx,
		WithDeck(deck),
		WithRand(rand.New(zeroSource{})),
		WithHouseRules(rules),
		WithLogger(logger),
	)
	require.NoError(t, err)

	draw := make([]*models.Card, len(deck))
	for i, c := range deck {
		draw[len(deck)-1-i] = c
	}
	s.piles.Draw = draw
	return s, fx
}

func apply(t *testing.T, s *Session, in Input) Outcome {
	t.Helper()
	out, err := s.Apply(context.Background(), in)
	require.NoError(t, err)
	return out
}

func applied(t *testing.T, s *Session, in Input) GameState {
	t.Helper()
	out := apply(t, s, in)
	require.True(t, out.Applied, "expected %s to apply in %s", in.inputName(), s.State())
	return out.State
}

func ignored(t *testing.T, s *Session, in Input) {
	t.Helper()
	before := s.State()
	out := apply(t, s, in)
	require.False(t, out.Applied, "expected %s to be ignored in %s", in.inputName(), before)
	assert.Equal(t, before, out.State)
}

// seatPlayers starts the session, places the piles and seats n players.
func seatPlayers(t *testing.T, s *Session, n int) {
	t.Helper()
	require.NoError(t, s.Start(context.Background()))
	applied(t, s, SurfaceTapped{Point: models.Point{}})
	for i := 0; i < n; i++ {
		applied(t, s, SurfaceTapped{Point: models.Point{X: float64(i)}})
	}
}

// dealAndPlay seats n players, deals, and starts play with seat 0.
func dealAndPlay(t *testing.T, s *Session, n int) {
	t.Helper()
	seatPlayers(t, s, n)
	require.Equal(t, PhaseRegardCards, applied(t, s, PileTapped{Pile: PileDraw}).Phase)
	require.Equal(t, currentTurn(0), applied(t, s, PileTapped{Pile: PileDraw}))
}

func singleSeatRules(perPlayer int) HouseRules {
	rules := DefaultHouseRules()
	rules.CardsPerPlayer = perPlayer
	rules.MinPlayers = 1
	return rules
}

func twoSeatRules() HouseRules {
	rules := DefaultHouseRules()
	rules.CardsPerPlayer = 2
	return rules
}

func handIDs(p *models.Player) []uuid.UUID {
	return cardIDs(p.Hand)
}

func TestNewSessionRejectsEmptyDeck(t *testing.T) {
	_, err := NewSession(newMockEffects(), WithDeck([]*models.Card{}))
	assert.Error(t, err)
}

func TestNewSessionRejectsDuplicateCards(t *testing.T) {
	c, err := models.NewCard(models.SuitHearts, models.RankTwo)
	require.NoError(t, err)
	_, err = NewSession(newMockEffects(), WithDeck([]*models.Card{c, c}))
	assert.Error(t, err)
}

func TestNewSessionDefaultsToStandardDeck(t *testing.T) {
	s, err := NewSession(newMockEffects())
	require.NoError(t, err)
	assert.Len(t, s.piles.Draw, 52)
	assert.Equal(t, phaseOnly(PhaseLoadingAssets), s.State())
	assert.NoError(t, s.checkPartition())
}

func TestStartLoadsAssets(t *testing.T) {
	deck := makeDeck(t, models.RankTwo, models.RankThree)
	s, fx := setupTestSession(t, deck, singleSeatRules(1))

	require.NoError(t, s.Start(context.Background()))
	assert.Equal(t, PhasePlaceDrawPile, s.State().Phase)
	require.Equal(t, []CommandKind{CmdLoadAssets}, fx.kinds())
	assert.Len(t, fx.cmds[0].Cards, 2)
	assert.Contains(t, fx.cmds[0].Assets, deck[0].AssetName())

	// Start is a no-op once assets are loaded.
	require.NoError(t, s.Start(context.Background()))
	assert.Equal(t, 1, fx.count(CmdLoadAssets))
}

func TestAssetLoadFailureKeepsLoading(t *testing.T) {
	s, fx := setupTestSession(t, makeDeck(t, models.RankTwo, models.RankThree), singleSeatRules(1))
	fx.failOn(CmdLoadAssets, errors.New("missing model"))

	err := s.Start(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrAssetLoad))
	var effErr *EffectError
	assert.True(t, errors.As(err, &effErr))
	assert.Equal(t, PhaseLoadingAssets, s.State().Phase)

	// Inputs are ignored while loading.
	ignored(t, s, SurfaceTapped{})
}

func TestPlacePilesAndSeats(t *testing.T) {
	deck := makeDeck(t, models.RankTwo, models.RankThree, models.RankFour, models.RankFive, models.RankSix)
	s, fx := setupTestSession(t, deck, twoSeatRules())
	require.NoError(t, s.Start(context.Background()))

	anchor := models.Point{X: 1, Y: 0, Z: -1}
	state := applied(t, s, SurfaceTapped{Point: anchor})
	assert.Equal(t, PhaseSetPlayerPositions, state.Phase)
	assert.True(t, s.piles.Placed)
	assert.Equal(t, anchor, s.piles.DrawAnchor)
	assert.Equal(t, discardAnchorFor(anchor), s.piles.DiscardAnchor)
	assert.Equal(t, 1, fx.count(CmdPlaceDrawPile))
	assert.Equal(t, 1, fx.count(CmdPlaceDiscardPile))

	applied(t, s, SurfaceTapped{Point: models.Point{X: 2}})
	applied(t, s, SurfaceTapped{Point: models.Point{X: 3}})
	assert.Equal(t, []int{0, 1}, s.registry.IDs())

	// A third seat would leave nothing to draw after the deal.
	ignored(t, s, SurfaceTapped{Point: models.Point{X: 4}})

	applied(t, s, PlayerTapped{Player: 0})
	assert.Equal(t, []int{1}, s.registry.IDs())
	ignored(t, s, PlayerTapped{Player: 0})

	// Ids are never reused within a setup.
	applied(t, s, SurfaceTapped{Point: models.Point{X: 5}})
	assert.Equal(t, []int{1, 2}, s.registry.IDs())
	assert.Equal(t, 3, fx.count(CmdPlacePlayer))
	assert.Equal(t, 1, fx.count(CmdRemovePlayer))
}

func TestSeatFailureLeavesRegistryUnchanged(t *testing.T) {
	s, fx := setupTestSession(t, makeDeck(t, models.RankTwo, models.RankThree, models.RankFour), singleSeatRules(1))
	require.NoError(t, s.Start(context.Background()))
	applied(t, s, SurfaceTapped{})

	fx.failOn(CmdPlacePlayer, errors.New("anchor lost"))
	_, err := s.Apply(context.Background(), SurfaceTapped{Point: models.Point{X: 1}})
	require.Error(t, err)
	assert.Equal(t, 0, s.registry.Len())
	assert.Equal(t, PhaseSetPlayerPositions, s.State().Phase)
}

func TestDealRequiresMinPlayers(t *testing.T) {
	deck := makeDeck(t, models.RankTwo, models.RankThree, models.RankFour, models.RankFive, models.RankSix)
	s, _ := setupTestSession(t, deck, twoSeatRules())
	seatPlayers(t, s, 1)

	ignored(t, s, PileTapped{Pile: PileDraw})
	ignored(t, s, CardTapped{Card: deck[0].ID})
}

func TestDealHandsOutRoundsFromTheTop(t *testing.T) {
	deck := makeDeck(t, models.RankTwo, models.RankThree, models.RankFour, models.RankFive, models.RankSix, models.RankSeven)
	s, fx := setupTestSession(t, deck, twoSeatRules())
	seatPlayers(t, s, 2)

	var phases []Phase
	unsubscribe := s.SubscribeState(func(st GameState) { phases = append(phases, st.Phase) })
	defer unsubscribe()
	fx.clear()

	// Tapping any card of the draw pile starts the deal.
	state := applied(t, s, CardTapped{Card: deck[3].ID})
	assert.Equal(t, PhaseRegardCards, state.Phase)
	assert.Equal(t, []Phase{PhaseSetPlayerPositions, PhaseDealingCards, PhaseRegardCards}, phases)

	assert.Equal(t, []uuid.UUID{deck[0].ID, deck[2].ID}, handIDs(s.registry.Get(0)))
	assert.Equal(t, []uuid.UUID{deck[1].ID, deck[3].ID}, handIDs(s.registry.Get(1)))
	assert.Equal(t, []uuid.UUID{deck[5].ID, deck[4].ID}, cardIDs(s.piles.Draw))

	assert.Equal(t, []CommandKind{
		CmdDealCard, CmdDealCard,
		CmdDealCard, CmdDealCard,
		CmdArrangeHand, CmdArrangeHand,
		CmdOrientPlayerToward, CmdOrientPlayerToward,
	}, fx.kinds())
	assert.NoError(t, s.checkPartition())
}

func TestDealFailureRestoresSetup(t *testing.T) {
	deck := makeDeck(t, models.RankTwo, models.RankThree, models.RankFour, models.RankFive, models.RankSix)
	s, fx := setupTestSession(t, deck, twoSeatRules())
	seatPlayers(t, s, 2)
	fx.failOn(CmdArrangeHand, errors.New("hand anchor missing"))

	_, err := s.Apply(context.Background(), PileTapped{Pile: PileDraw})
	require.Error(t, err)
	var effErr *EffectError
	require.True(t, errors.As(err, &effErr))
	assert.Equal(t, CmdArrangeHand, effErr.Cmd.Kind)

	assert.Equal(t, PhaseSetPlayerPositions, s.State().Phase)
	assert.Empty(t, s.registry.Get(0).Hand)
	assert.Empty(t, s.registry.Get(1).Hand)
	assert.Len(t, s.piles.Draw, 5)
}

func TestRegardCardsHonorsRegardCount(t *testing.T) {
	deck := makeDeck(t, models.RankTwo, models.RankThree, models.RankFour)
	rules := singleSeatRules(2)
	rules.RegardCardCount = 1
	s, fx := setupTestSession(t, deck, rules)
	seatPlayers(t, s, 1)
	applied(t, s, PileTapped{Pile: PileDraw})
	fx.clear()

	ignored(t, s, CardTapped{Card: deck[1].ID})
	state := applied(t, s, CardTapped{Card: deck[0].ID})
	assert.Equal(t, PhaseRegardCards, state.Phase)
	assert.Equal(t, []CommandKind{CmdFlipCard, CmdFlipCard}, fx.kinds())
}

func TestDrawFromDiscardPileRequiresHouseRule(t *testing.T) {
	deck := makeDeck(t, models.RankTwo, models.RankThree, models.RankFour, models.RankFive)
	rules := singleSeatRules(1)
	rules.AllowDrawFromDiscardPile = false
	s, _ := setupTestSession(t, deck, rules)
	dealAndPlay(t, s, 1)

	// Empty discard pile, and the rule forbids it anyway.
	ignored(t, s, PileTapped{Pile: PileDiscard})

	s.HouseRules.AllowDrawFromDiscardPile = true
	ignored(t, s, PileTapped{Pile: PileDiscard})

	state := applied(t, s, PileTapped{Pile: PileDraw})
	assert.Equal(t, waitForInteractionTypeSelection(0, 3), state)
	assert.Equal(t, deck[1].ID, s.registry.Get(0).DrawnCard.ID)
}

func TestDrawFromDiscardPile(t *testing.T) {
	deck := makeDeck(t, models.RankTwo, models.RankThree, models.RankFour, models.RankFive)
	s, fx := setupTestSession(t, deck, singleSeatRules(1))
	dealAndPlay(t, s, 1)

	applied(t, s, PileTapped{Pile: PileDraw})
	applied(t, s, InteractionKindSelected{Kind: InteractionDiscard})
	applied(t, s, CardTapped{Card: deck[1].ID})
	require.Equal(t, currentTurn(0), s.State())
	fx.clear()

	state := applied(t, s, CardTapped{Card: deck[1].ID})
	assert.Equal(t, waitForInteractionTypeSelection(0, 3), state)
	assert.Empty(t, s.piles.Discard)
	assert.Equal(t, []CommandKind{CmdMoveCardToDrawnSlot}, fx.kinds())
}

func TestPerformActionRejectedWithoutAction(t *testing.T) {
	deck := makeDeck(t, models.RankTwo, models.RankFive, models.RankFour)
	s, _ := setupTestSession(t, deck, singleSeatRules(1))
	dealAndPlay(t, s, 1)
	applied(t, s, PileTapped{Pile: PileDraw})

	ignored(t, s, InteractionKindSelected{Kind: InteractionPerformAction})
	ignored(t, s, InteractionKindSelected{Kind: "shuffle"})
	state := applied(t, s, InteractionKindSelected{Kind: InteractionSwapDrawnWithOwnCard})
	assert.Equal(t, InteractionSwapDrawnWithOwnCard, state.Interaction.Kind)
}

func TestDiscardWithMatchingFlags(t *testing.T) {
	deck := makeDeck(t, models.RankFive, models.RankNine, models.RankFive, models.RankTwo)
	s, fx := setupTestSession(t, deck, singleSeatRules(2))
	dealAndPlay(t, s, 1)

	applied(t, s, PileTapped{Pile: PileDraw})
	applied(t, s, InteractionKindSelected{Kind: InteractionDiscard})
	fx.clear()

	state := applied(t, s, CardTapped{Card: deck[0].ID})
	assert.Equal(t, PhaseSelectedInteractionType, state.Phase)
	view := s.View()
	assert.True(t, view.Players[0].Hand[0].Known)
	assert.False(t, view.Players[0].Hand[1].Known)

	// Flagging twice does nothing.
	ignored(t, s, CardTapped{Card: deck[0].ID})

	state = applied(t, s, CardTapped{Card: deck[2].ID})
	assert.Equal(t, currentTurn(0), state)

	p := s.registry.Get(0)
	assert.Equal(t, []uuid.UUID{deck[1].ID}, handIDs(p))
	assert.Nil(t, p.DrawnCard)
	assert.Empty(t, p.Flagged)
	assert.Equal(t, []uuid.UUID{deck[0].ID, deck[2].ID}, cardIDs(s.piles.Discard))
	assert.Equal(t, []CommandKind{CmdFlipCard, CmdMoveCardToDiscard, CmdMoveCardToDiscard, CmdArrangeHand}, fx.kinds())
	assert.NoError(t, s.checkPartition())
}

func TestDiscardWithMismatchedFlagsKeepsHand(t *testing.T) {
	deck := makeDeck(t, models.RankSix, models.RankNine, models.RankFive, models.RankTwo)
	s, fx := setupTestSession(t, deck, singleSeatRules(2))
	dealAndPlay(t, s, 1)

	applied(t, s, PileTapped{Pile: PileDraw})
	applied(t, s, InteractionKindSelected{Kind: InteractionDiscard})
	fx.clear()

	applied(t, s, CardTapped{Card: deck[0].ID})
	applied(t, s, CardTapped{Card: deck[2].ID})

	p := s.registry.Get(0)
	assert.Equal(t, []uuid.UUID{deck[0].ID, deck[1].ID}, handIDs(p))
	assert.Empty(t, p.Flagged)
	assert.Equal(t, []uuid.UUID{deck[2].ID}, cardIDs(s.piles.Discard))
	assert.Equal(t, 2, fx.count(CmdFlipCard))
	assert.Equal(t, 1, fx.count(CmdMoveCardToDiscard))
	assert.Equal(t, 0, fx.count(CmdArrangeHand))
}

// Drawn 5 against flagged {5,5} and {5,6}.
func TestDiscardFinalizesFlaggedCards(t *testing.T) {
	tests := []struct {
		name        string
		second      models.Rank
		wantHand    []int
		wantDiscard []int
		wantFlips   int
	}{
		{"all match", models.RankFive, []int{2}, []int{0, 1, 3}, 2},
		{"one differs", models.RankSix, []int{0, 1, 2}, []int{3}, 4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			deck := makeDeck(t, models.RankFive, tt.second, models.RankNine, models.RankFive, models.RankTwo)
			s, fx := setupTestSession(t, deck, singleSeatRules(3))
			dealAndPlay(t, s, 1)

			state := applied(t, s, PileTapped{Pile: PileDraw})
			require.Equal(t, waitForInteractionTypeSelection(0, 5), state)
			applied(t, s, InteractionKindSelected{Kind: InteractionDiscard})
			fx.clear()

			applied(t, s, CardTapped{Card: deck[0].ID})
			applied(t, s, CardTapped{Card: deck[1].ID})
			require.Len(t, s.registry.Get(0).Flagged, 2)
			assert.Equal(t, currentTurn(0), applied(t, s, CardTapped{Card: deck[3].ID}))

			pick := func(idx []int) []uuid.UUID {
				ids := make([]uuid.UUID, len(idx))
				for i, n := range idx {
					ids[i] = deck[n].ID
				}
				return ids
			}
			p := s.registry.Get(0)
			assert.Equal(t, pick(tt.wantHand), handIDs(p))
			assert.Equal(t, pick(tt.wantDiscard), cardIDs(s.piles.Discard))
			assert.Empty(t, p.Flagged)
			assert.Nil(t, p.DrawnCard)
			assert.Equal(t, tt.wantFlips, fx.count(CmdFlipCard))
			assert.Equal(t, len(tt.wantDiscard), fx.count(CmdMoveCardToDiscard))
			assert.NoError(t, s.checkPartition())
		})
	}
}

func TestSwapDrawnWithOwnCard(t *testing.T) {
	deck := makeDeck(t, models.RankSix, models.RankNine, models.RankTwo, models.RankFour)
	s, fx := setupTestSession(t, deck, singleSeatRules(2))
	dealAndPlay(t, s, 1)

	applied(t, s, PileTapped{Pile: PileDraw})
	applied(t, s, InteractionKindSelected{Kind: InteractionSwapDrawnWithOwnCard})
	fx.clear()

	// The drawn card is not a hand card.
	ignored(t, s, CardTapped{Card: deck[2].ID})

	applied(t, s, CardTapped{Card: deck[1].ID})
	p := s.registry.Get(0)
	assert.Equal(t, []uuid.UUID{deck[0].ID, deck[2].ID}, handIDs(p))
	assert.Equal(t, []uuid.UUID{deck[1].ID}, cardIDs(s.piles.Discard))
	assert.Equal(t, []CommandKind{CmdExchangeCards, CmdMoveCardToDiscard}, fx.kinds())
	assert.Equal(t, deck[2].ID, fx.cmds[0].Card)
	assert.Equal(t, deck[1].ID, fx.cmds[0].Other)
}

func TestPeekRevealsOwnCard(t *testing.T) {
	deck := makeDeck(t, models.RankSix, models.RankNine, models.RankSeven, models.RankFour)
	s, fx := setupTestSession(t, deck, singleSeatRules(2))
	dealAndPlay(t, s, 1)

	applied(t, s, PileTapped{Pile: PileDraw})
	state := applied(t, s, InteractionKindSelected{Kind: InteractionPerformAction})
	require.Equal(t, models.ActionPeek, state.Interaction.Action)
	fx.clear()

	ignored(t, s, CardTapped{Card: deck[3].ID})
	applied(t, s, CardTapped{Card: deck[1].ID})
	assert.Equal(t, []CommandKind{CmdFlipCard, CmdFlipCard, CmdMoveCardToDiscard}, fx.kinds())
	assert.Equal(t, []uuid.UUID{deck[0].ID, deck[1].ID}, handIDs(s.registry.Get(0)))
	assert.Equal(t, []uuid.UUID{deck[2].ID}, cardIDs(s.piles.Discard))
}

func TestSpyRequiresAnotherPlayersCard(t *testing.T) {
	deck := makeDeck(t, models.RankTwo, models.RankThree, models.RankFour, models.RankFive, models.RankNine, models.RankSix)
	s, fx := setupTestSession(t, deck, twoSeatRules())
	dealAndPlay(t, s, 2)

	applied(t, s, PileTapped{Pile: PileDraw})
	state := applied(t, s, InteractionKindSelected{Kind: InteractionPerformAction})
	require.Equal(t, models.ActionSpy, state.Interaction.Action)
	fx.clear()

	ignored(t, s, CardTapped{Card: deck[0].ID})
	state = applied(t, s, CardTapped{Card: deck[1].ID})
	assert.Equal(t, currentTurn(1), state)
	assert.Equal(t, []CommandKind{CmdFlipCard, CmdFlipCard, CmdMoveCardToDiscard, CmdHideAvatar, CmdShowAvatar}, sortTail(fx.kinds(), 2))
}

// sortTail orders the last n kinds, which were issued in parallel.
func sortTail(kinds []CommandKind, n int) []CommandKind {
	tail := kinds[len(kinds)-n:]
	if len(tail) == 2 && tail[0] == CmdShowAvatar {
		tail[0], tail[1] = tail[1], tail[0]
	}
	return kinds
}

func TestSwapNeedsTwoOwners(t *testing.T) {
	deck := makeDeck(t, models.RankTwo, models.RankThree, models.RankFour, models.RankFive, models.RankJack, models.RankSix)
	s, fx := setupTestSession(t, deck, twoSeatRules())
	dealAndPlay(t, s, 2)

	applied(t, s, PileTapped{Pile: PileDraw})
	state := applied(t, s, InteractionKindSelected{Kind: InteractionPerformAction})
	require.Equal(t, models.ActionSwap, state.Interaction.Action)
	require.Equal(t, SwapAwaitingFirstSelection, state.Interaction.Swap.Step())

	first := applied(t, s, CardTapped{Card: deck[0].ID})
	memorized, ok := first.Interaction.Swap.Memorized()
	require.True(t, ok)
	assert.Equal(t, deck[0].ID, memorized)
	// The earlier broadcast is not touched.
	assert.Equal(t, SwapAwaitingFirstSelection, state.Interaction.Swap.Step())

	ignored(t, s, CardTapped{Card: deck[2].ID})
	ignored(t, s, CardTapped{Card: deck[0].ID})
	fx.clear()

	applied(t, s, CardTapped{Card: deck[1].ID})
	assert.Equal(t, []uuid.UUID{deck[1].ID, deck[2].ID}, handIDs(s.registry.Get(0)))
	assert.Equal(t, []uuid.UUID{deck[0].ID, deck[3].ID}, handIDs(s.registry.Get(1)))
	assert.Equal(t, []uuid.UUID{deck[4].ID}, cardIDs(s.piles.Discard))
	assert.Equal(t, CmdExchangeCards, fx.cmds[0].Kind)
	assert.NoError(t, s.checkPartition())
}

func TestEffectFailureLeavesSessionUnchanged(t *testing.T) {
	deck := makeDeck(t, models.RankTwo, models.RankThree, models.RankFour, models.RankFive, models.RankQueen, models.RankSix)
	s, fx := setupTestSession(t, deck, twoSeatRules())
	dealAndPlay(t, s, 2)

	applied(t, s, PileTapped{Pile: PileDraw})
	applied(t, s, InteractionKindSelected{Kind: InteractionPerformAction})
	before := applied(t, s, CardTapped{Card: deck[1].ID})

	fx.failOn(CmdExchangeCards, context.DeadlineExceeded)
	out, err := s.Apply(context.Background(), CardTapped{Card: deck[0].ID})
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
	assert.False(t, out.Applied)
	assert.Equal(t, before, out.State)
	assert.Equal(t, before, s.State())
	assert.Equal(t, []uuid.UUID{deck[0].ID, deck[2].ID}, handIDs(s.registry.Get(0)))
	assert.Equal(t, deck[4].ID, s.registry.Get(0).DrawnCard.ID)
	assert.Empty(t, s.piles.Discard)

	// The same input succeeds once the presentation layer recovers.
	fx.clear()
	applied(t, s, CardTapped{Card: deck[0].ID})
	assert.Equal(t, currentTurn(1), s.State())
}

func TestLastRoundEndsAfterCallerComesAround(t *testing.T) {
	deck := makeDeck(t,
		models.RankTwo, models.RankKing, // round one: p0, p1
		models.RankThree, models.RankAce, // round two: p0, p1
		models.RankFour, models.RankFive, models.RankSix)
	s, _ := setupTestSession(t, deck, twoSeatRules())

	var calls []LastRoundCall
	s.SubscribeLastRoundCaller(func(c LastRoundCall) { calls = append(calls, c) })

	var ended [][]int
	s.OnGameEnd = func(_ uuid.UUID, _ int, _ []PlayerScore, winners []int) { ended = append(ended, winners) }
	dealAndPlay(t, s, 2)

	applied(t, s, LastRoundCalled{Player: 1})
	ignored(t, s, LastRoundCalled{Player: 0})
	ignored(t, s, LastRoundCalled{Player: 7})
	assert.Equal(t, []LastRoundCall{{}, {Called: true, Caller: 1}}, calls)

	applied(t, s, PileTapped{Pile: PileDraw})
	applied(t, s, InteractionKindSelected{Kind: InteractionDiscard})
	state := applied(t, s, CardTapped{Card: deck[4].ID})

	// Seat 0 sits right before the caller, so its turn was the last.
	require.Equal(t, PhasePostGame, state.Phase)
	assert.Equal(t, []PlayerScore{{PlayerID: 0, Points: 5}, {PlayerID: 1, Points: 13}}, state.Scores)
	assert.Equal(t, []int{0}, state.Winners)
	assert.Equal(t, [][]int{{0}}, ended)
	assert.Equal(t, LastRoundCall{}, calls[len(calls)-1])
}

func TestPostGameIgnoresInputsUntilReset(t *testing.T) {
	deck := makeDeck(t, models.RankTwo, models.RankThree)
	s, fx := setupTestSession(t, deck, singleSeatRules(1))
	dealAndPlay(t, s, 1)

	applied(t, s, PileTapped{Pile: PileDraw})
	applied(t, s, InteractionKindSelected{Kind: InteractionDiscard})
	final := applied(t, s, CardTapped{Card: deck[1].ID})
	require.Equal(t, PhasePostGame, final.Phase)
	assert.Equal(t, []int{0}, final.Winners)

	for _, in := range []Input{
		PileTapped{Pile: PileDraw},
		CardTapped{Card: deck[0].ID},
		SurfaceTapped{},
		InteractionKindSelected{Kind: InteractionDiscard},
		LastRoundCalled{Player: 0},
	} {
		ignored(t, s, in)
	}
	assert.Equal(t, final, s.State())

	fx.clear()
	state := applied(t, s, PlaceDrawPileRequested{})
	assert.Equal(t, phaseOnly(PhasePlaceDrawPile), state)
	assert.Equal(t, []CommandKind{CmdRemovePlayer}, fx.kinds())
	assert.Equal(t, 0, s.registry.Len())
	assert.Len(t, s.piles.Draw, 2)
	assert.Empty(t, s.piles.Discard)
	assert.False(t, s.piles.Placed)
	assert.NoError(t, s.checkPartition())

	// Seat ids start over.
	applied(t, s, SurfaceTapped{})
	applied(t, s, SurfaceTapped{})
	assert.Equal(t, []int{0}, s.registry.IDs())
}

func TestResetStartsANewGame(t *testing.T) {
	deck := makeDeck(t, models.RankTwo, models.RankThree)
	s, _ := setupTestSession(t, deck, singleSeatRules(1))

	var games []int
	s.OnGameEnd = func(_ uuid.UUID, game int, _ []PlayerScore, _ []int) { games = append(games, game) }

	for want := 1; want <= 2; want++ {
		assert.Equal(t, want, s.View().Game)
		dealAndPlay(t, s, 1)
		applied(t, s, PileTapped{Pile: PileDraw})
		applied(t, s, InteractionKindSelected{Kind: InteractionDiscard})
		drawn := s.registry.Get(0).DrawnCard
		require.NotNil(t, drawn)
		require.Equal(t, PhasePostGame, applied(t, s, CardTapped{Card: drawn.ID}).Phase)
		applied(t, s, PlaceDrawPileRequested{})
	}
	assert.Equal(t, []int{1, 2}, games)
	assert.Equal(t, 3, s.View().Game)
}

func TestResetIgnoredBeforePilesArePlaced(t *testing.T) {
	s, _ := setupTestSession(t, makeDeck(t, models.RankTwo, models.RankThree), singleSeatRules(1))
	ignored(t, s, PlaceDrawPileRequested{})
	require.NoError(t, s.Start(context.Background()))
	ignored(t, s, PlaceDrawPileRequested{})
}

// Three seats, thirteen cards: one card remains after the deal, so the game
// is over as soon as it has been drawn and the turn resolves.
func TestThreePlayerGameEndsWhenDrawPileEmpties(t *testing.T) {
	deck := makeDeck(t, models.Ranks...)
	s, fx := setupTestSession(t, deck, DefaultHouseRules())

	var states []GameState
	s.SubscribeState(func(st GameState) { states = append(states, st) })

	seatPlayers(t, s, 3)
	ignored(t, s, SurfaceTapped{Point: models.Point{X: 9}})
	applied(t, s, PileTapped{Pile: PileDraw})
	require.Len(t, s.piles.Draw, 1)
	for _, id := range s.registry.IDs() {
		assert.Len(t, s.registry.Get(id).Hand, 4)
	}
	assert.Equal(t, 12, fx.count(CmdDealCard))
	applied(t, s, PileTapped{Pile: PileDraw})
	require.Equal(t, currentTurn(0), s.State())

	// The last card is the ace.
	state := applied(t, s, PileTapped{Pile: PileDraw})
	assert.Equal(t, waitForInteractionTypeSelection(0, 0), state)
	assert.Empty(t, s.piles.Draw)
	applied(t, s, InteractionKindSelected{Kind: InteractionSwapDrawnWithOwnCard})
	state = applied(t, s, CardTapped{Card: deck[9].ID})

	require.Equal(t, PhasePostGame, state.Phase)
	// 2+5+8 and the ace replaced the jack: 15; 3+6+9+Q: 30; 4+7+10+K: 34.
	assert.Equal(t, []PlayerScore{{0, 15}, {1, 30}, {2, 34}}, state.Scores)
	assert.Equal(t, []int{0}, state.Winners)
	assert.Equal(t, state, states[len(states)-1])
	assert.NoError(t, s.checkPartition())
}

func TestServeAppliesInputsInOrder(t *testing.T) {
	deck := makeDeck(t, models.RankTwo, models.RankThree, models.RankFour)
	s, _ := setupTestSession(t, deck, singleSeatRules(1))

	inputs := make(chan Input, 4)
	inputs <- SurfaceTapped{}
	inputs <- SurfaceTapped{Point: models.Point{X: 1}}
	inputs <- PileTapped{Pile: PileDraw}
	close(inputs)

	require.NoError(t, s.Serve(context.Background(), inputs))
	assert.Equal(t, PhaseRegardCards, s.State().Phase)
}

func TestServeStopsOnAssetFailure(t *testing.T) {
	s, fx := setupTestSession(t, makeDeck(t, models.RankTwo), singleSeatRules(1))
	fx.failOn(CmdLoadAssets, errors.New("no models"))
	err := s.Serve(context.Background(), make(chan Input))
	assert.ErrorIs(t, err, ErrAssetLoad)
}

func TestViewHidesFaceDownCards(t *testing.T) {
	deck := makeDeck(t, models.RankTwo, models.RankThree, models.RankFour, models.RankFive, models.RankSix)
	s, _ := setupTestSession(t, deck, twoSeatRules())
	dealAndPlay(t, s, 2)
	applied(t, s, PileTapped{Pile: PileDraw})

	view := s.View()
	assert.Equal(t, s.ID, view.SessionID)
	require.Len(t, view.Players, 2)
	assert.True(t, view.Players[0].IsCurrentTurn)
	assert.False(t, view.Players[1].IsCurrentTurn)
	for _, ps := range view.Players {
		for _, c := range ps.Hand {
			assert.False(t, c.Known)
			assert.Empty(t, c.Rank)
		}
	}
	require.NotNil(t, view.Players[0].DrawnCard)
	assert.Equal(t, 6, view.Players[0].DrawnCard.Value)
	assert.Empty(t, view.DrawPile)
}
