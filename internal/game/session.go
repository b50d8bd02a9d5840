// internal/game/session.go
package game

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/cambia-ar/internal/cache"
	"github.com/jason-s-yu/cambia-ar/internal/models"
	"github.com/sirupsen/logrus"
)

// OnGameEndFunc is invoked once a game reaches post-game, with the final tally.
// game numbers the games played on the session, starting at 1.
type OnGameEndFunc func(sessionID uuid.UUID, game int, scores []PlayerScore, winners []int)

// Outcome is the result of applying an input. Applied is false when the input
// did not match any transition and nothing changed.
type Outcome struct {
	State   GameState
	Applied bool
}

// Session is a single table: the phase, the seated players and the piles.
// All mutation goes through Start and Apply, which process one input at a time.
type Session struct {
	ID         uuid.UUID
	HouseRules HouseRules

	mu       sync.Mutex
	state    GameState
	deck     []*models.Card
	registry *Registry
	piles    *Piles
	turns    *TurnEngine
	resolver *resolver

	fx      Effects
	rng     *rand.Rand
	log     *logrus.Entry
	history ActionPublisher

	states    *stream[GameState]
	lastRound *stream[LastRoundCall]

	// OnGameEnd is called after the post-game state is broadcast.
	OnGameEnd OnGameEndFunc

	actionIndex int
	// game is bumped by every reset.
	game int
}

// Option configures a Session at construction.
type Option func(*Session)

// WithDeck replaces the standard 52-card deck.
func WithDeck(cards []*models.Card) Option {
	return func(s *Session) { s.deck = cards }
}

// WithRand sets the source used for shuffling and picking the first player.
func WithRand(r *rand.Rand) Option {
	return func(s *Session) { s.rng = r }
}

// WithHouseRules overrides DefaultHouseRules.
func WithHouseRules(rules HouseRules) Option {
	return func(s *Session) { s.HouseRules = rules }
}

// WithLogger sets the logger; the session adds its id as a field.
func WithLogger(logger *logrus.Logger) Option {
	return func(s *Session) { s.log = logrus.NewEntry(logger) }
}

// WithHistory attaches a publisher that receives every committed action.
func WithHistory(p ActionPublisher) Option {
	return func(s *Session) { s.history = p }
}

// NewSession builds a session in the loading-assets phase with a shuffled deck.
func NewSession(fx Effects, opts ...Option) (*Session, error) {
	if fx == nil {
		return nil, fmt.Errorf("new session: effects are required")
	}
	id, err := uuid.NewRandom()
	if err != nil {
		return nil, fmt.Errorf("new session: %w", err)
	}
	s := &Session{
		ID:         id,
		HouseRules: DefaultHouseRules(),
		state:      phaseOnly(PhaseLoadingAssets),
		fx:         fx,
		log:        logrus.NewEntry(logrus.StandardLogger()),
		states:     newStream(phaseOnly(PhaseLoadingAssets)),
		lastRound:  newStream(LastRoundCall{}),
		game:       1,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = s.log.WithField("session", s.ID)
	if s.rng == nil {
		s.rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if s.deck == nil {
		if s.deck, err = models.NewStandardDeck(); err != nil {
			return nil, fmt.Errorf("new session: %w", err)
		}
	}
	if err := validateDeck(s.deck); err != nil {
		return nil, fmt.Errorf("new session: %w", err)
	}
	if s.HouseRules.CardsPerPlayer <= 0 {
		return nil, fmt.Errorf("new session: cards per player must be positive")
	}

	s.registry = &Registry{}
	s.piles = &Piles{}
	s.piles.reset(s.rng, s.deck)
	s.turns = newTurnEngine(s.registry, s.piles)
	s.resolver = &resolver{registry: s.registry, piles: s.piles, fx: s.fx}
	s.log.Infof("Initialized and shuffled deck with %d cards.", len(s.deck))
	return s, nil
}

func validateDeck(deck []*models.Card) error {
	if len(deck) == 0 {
		return fmt.Errorf("deck is empty")
	}
	seen := make(map[uuid.UUID]bool, len(deck))
	for _, c := range deck {
		if c == nil {
			return fmt.Errorf("deck contains a nil card")
		}
		if seen[c.ID] {
			return fmt.Errorf("duplicate card %s in deck", c.ID)
		}
		seen[c.ID] = true
	}
	return nil
}

// State returns the current phase.
func (s *Session) State() GameState {
	return s.states.Latest()
}

// SubscribeState calls fn with the current state and with every new one.
func (s *Session) SubscribeState(fn func(GameState)) (unsubscribe func()) {
	return s.states.Subscribe(fn)
}

// SubscribeLastRoundCaller calls fn with the current last-round caller and every change.
func (s *Session) SubscribeLastRoundCaller(fn func(LastRoundCall)) (unsubscribe func()) {
	return s.lastRound.Subscribe(fn)
}

// Start loads the card assets and moves on to draw pile placement. A failure
// keeps the session in loading-assets and wraps ErrAssetLoad.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state.Phase != PhaseLoadingAssets {
		return nil
	}
	if err := run(ctx, s.fx, loadAssetsCmd(s.deck)); err != nil {
		s.log.WithError(err).Error("asset preload failed")
		return fmt.Errorf("%w: %w", ErrAssetLoad, err)
	}
	s.logAction(nil, "assets_loaded", map[string]interface{}{"cards": len(s.deck)})
	s.emit(phaseOnly(PhasePlaceDrawPile))
	return nil
}

// Serve starts the session and applies inputs one at a time until ctx is done
// or inputs is closed. Only asset failures end it early.
func (s *Session) Serve(ctx context.Context, inputs <-chan Input) error {
	if err := s.Start(ctx); err != nil {
		return err
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case in, ok := <-inputs:
			if !ok {
				return nil
			}
			if _, err := s.Apply(ctx, in); err != nil {
				s.log.WithError(err).Warnf("input %s failed", in.inputName())
			}
		}
	}
}

// Apply validates in against the current phase and runs the matching
// transition. Inputs that match nothing are ignored. An error means an effect
// did not complete; the session is then unchanged.
func (s *Session) Apply(ctx context.Context, in Input) (Outcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	actor, before := s.actor(), s.state.Phase
	if call, ok := in.(LastRoundCalled); ok {
		actor = seat(call.Player)
	}
	applied, err := s.dispatch(ctx, in)
	if err != nil {
		return Outcome{State: s.state}, err
	}
	if !applied {
		s.log.Debugf("Ignoring %s in phase %s.", in.inputName(), s.state)
		return Outcome{State: s.state}, nil
	}
	s.logAction(actor, in.inputName(), describeInput(in))
	if before != PhasePostGame && s.state.Phase == PhasePostGame {
		s.logAction(nil, cache.ActionGameEnd, map[string]interface{}{
			"scores":  s.state.Scores,
			"winners": s.state.Winners,
		})
	}
	if s.log.Logger.IsLevelEnabled(logrus.DebugLevel) {
		if perr := s.checkPartition(); perr != nil {
			s.log.WithError(perr).Error("card partition violated")
		}
	}
	return Outcome{State: s.state, Applied: true}, nil
}

func (s *Session) dispatch(ctx context.Context, in Input) (bool, error) {
	if _, ok := in.(PlaceDrawPileRequested); ok {
		if s.state.Phase == PhaseLoadingAssets || s.state.Phase == PhasePlaceDrawPile {
			return false, nil
		}
		return true, s.reset(ctx)
	}
	if call, ok := in.(LastRoundCalled); ok {
		return s.callLastRound(call.Player), nil
	}

	switch s.state.Phase {
	case PhasePlaceDrawPile:
		if tap, ok := in.(SurfaceTapped); ok {
			return true, s.placePiles(ctx, tap.Point)
		}
	case PhaseSetPlayerPositions:
		switch v := in.(type) {
		case SurfaceTapped:
			return s.seatPlayer(ctx, v.Point)
		case PlayerTapped:
			return s.unseatPlayer(ctx, v.Player)
		}
		if s.isDrawPileTap(in) {
			return s.deal(ctx)
		}
	case PhaseRegardCards:
		if s.isDrawPileTap(in) {
			return s.beginPlay(ctx)
		}
		if tap, ok := in.(CardTapped); ok {
			return s.regard(ctx, tap.Card)
		}
	case PhaseCurrentTurn:
		return s.drawCard(ctx, in)
	case PhaseWaitForInteractionTypeSelection:
		if sel, ok := in.(InteractionKindSelected); ok {
			return s.selectInteraction(sel.Kind), nil
		}
	case PhaseSelectedInteractionType:
		if tap, ok := in.(CardTapped); ok {
			return s.resolve(ctx, tap.Card)
		}
	}
	return false, nil
}

// emit commits the new phase and broadcasts it.
func (s *Session) emit(state GameState) {
	s.state = state
	s.log.Infof("State is now %s.", state)
	s.states.publish(state)
}

func (s *Session) actor() *int {
	switch s.state.Phase {
	case PhaseCurrentTurn, PhaseWaitForInteractionTypeSelection, PhaseSelectedInteractionType:
		return seat(s.state.PlayerID)
	}
	return nil
}

// cosmetic issues commands whose failure does not block the transition.
func (s *Session) cosmetic(ctx context.Context, cmds ...Command) {
	if len(cmds) == 0 {
		return
	}
	if err := parallel(ctx, s.fx, cmds...); err != nil {
		s.log.WithError(err).Warn("cosmetic effect failed")
	}
}

func (s *Session) isDrawPileTap(in Input) bool {
	switch v := in.(type) {
	case CardTapped:
		return s.piles.InDraw(v.Card)
	case PileTapped:
		return v.Pile == PileDraw
	}
	return false
}

func (s *Session) placePiles(ctx context.Context, anchor models.Point) error {
	if err := parallel(ctx, s.fx,
		placeDrawPileCmd(anchor, s.piles.Draw),
		placeDiscardPileCmd(discardAnchorFor(anchor)),
	); err != nil {
		return err
	}
	s.piles.place(anchor)
	s.emit(phaseOnly(PhaseSetPlayerPositions))
	return nil
}

// maxSeats is the largest table that still leaves a card to draw after the deal.
func (s *Session) maxSeats() int {
	return (len(s.deck) - 1) / s.HouseRules.CardsPerPlayer
}

func (s *Session) seatPlayer(ctx context.Context, anchor models.Point) (bool, error) {
	if s.registry.Len() >= s.maxSeats() {
		return false, nil
	}
	id := s.registry.peekID()
	if err := run(ctx, s.fx, placePlayerCmd(id, anchor)); err != nil {
		return false, err
	}
	s.registry.Seat(anchor)
	s.cosmetic(ctx, showAvatarCmd(id))
	s.log.Infof("Player %d seated.", id)
	s.emit(s.state)
	return true, nil
}

func (s *Session) unseatPlayer(ctx context.Context, id int) (bool, error) {
	if s.registry.Get(id) == nil {
		return false, nil
	}
	if err := run(ctx, s.fx, removePlayerCmd(id)); err != nil {
		return false, err
	}
	s.registry.Remove(id)
	s.log.Infof("Player %d removed.", id)
	s.emit(s.state)
	return true, nil
}

type dealt struct {
	card   *models.Card
	player int
}

// deal hands out CardsPerPlayer rounds from the top of the draw pile. Each
// round is one parallel batch; hands are arranged and seats turned toward the
// draw pile once every card has landed.
func (s *Session) deal(ctx context.Context) (bool, error) {
	n := s.registry.Len()
	per := s.HouseRules.CardsPerPlayer
	if n == 0 || n < s.HouseRules.MinPlayers || n*per >= len(s.piles.Draw) {
		return false, nil
	}

	prev := s.state
	s.emit(phaseOnly(PhaseDealingCards))

	top := len(s.piles.Draw) - 1
	rounds := make([][]dealt, per)
	for r := range rounds {
		for _, p := range s.registry.Players {
			rounds[r] = append(rounds[r], dealt{card: s.piles.Draw[top], player: p.ID})
			top--
		}
	}

	err := func() error {
		for _, round := range rounds {
			cmds := make([]Command, len(round))
			for i, d := range round {
				cmds[i] = dealCardCmd(d.card, d.player)
			}
			if err := parallel(ctx, s.fx, cmds...); err != nil {
				return err
			}
		}
		var arrange, orient []Command
		for _, p := range s.registry.Players {
			arrange = append(arrange, arrangeHandCmd(p.ID))
			orient = append(orient, orientPlayerTowardCmd(p.ID, s.piles.DrawAnchor))
		}
		if err := parallel(ctx, s.fx, arrange...); err != nil {
			return err
		}
		return parallel(ctx, s.fx, orient...)
	}()
	if err != nil {
		s.emit(prev)
		return false, err
	}

	for _, round := range rounds {
		for _, d := range round {
			p := s.registry.Get(d.player)
			p.Hand = append(p.Hand, s.piles.popDraw())
		}
	}
	s.logAction(nil, "cards_dealt", map[string]interface{}{
		"players":   n,
		"perPlayer": per,
		"drawPile":  len(s.piles.Draw),
	})
	s.emit(phaseOnly(PhaseRegardCards))
	return true, nil
}

func (s *Session) regard(ctx context.Context, cardID uuid.UUID) (bool, error) {
	p, idx, ok := s.registry.holder(cardID)
	if !ok || idx < 0 || !s.HouseRules.canRegard(idx) {
		return false, nil
	}
	card := p.Hand[idx]
	if err := sequence(ctx, s.fx, flipCardCmd(card), flipCardCmd(card)); err != nil {
		return false, err
	}
	return true, nil
}

func (s *Session) beginPlay(ctx context.Context) (bool, error) {
	n := s.registry.Len()
	if n == 0 {
		return false, nil
	}
	first := s.registry.Players[s.rng.Intn(n)].ID
	var cmds []Command
	for _, id := range s.registry.IDs() {
		if id == first {
			cmds = append(cmds, showAvatarCmd(id))
		} else {
			cmds = append(cmds, hideAvatarCmd(id))
		}
	}
	s.cosmetic(ctx, cmds...)
	s.emit(currentTurn(first))
	return true, nil
}

func (s *Session) drawCard(ctx context.Context, in Input) (bool, error) {
	var fromDiscard bool
	switch v := in.(type) {
	case CardTapped:
		switch {
		case s.piles.InDraw(v.Card):
		case s.piles.InDiscard(v.Card):
			fromDiscard = true
		default:
			return false, nil
		}
	case PileTapped:
		fromDiscard = v.Pile == PileDiscard
	default:
		return false, nil
	}
	if fromDiscard && !s.HouseRules.AllowDrawFromDiscardPile {
		return false, nil
	}

	p := s.registry.Get(s.state.PlayerID)
	if p == nil || p.DrawnCard != nil {
		return false, nil
	}
	card := s.piles.Top()
	if fromDiscard {
		card = s.piles.TopDiscard()
	}
	if card == nil {
		return false, nil
	}

	if err := run(ctx, s.fx, moveCardToDrawnSlotCmd(card, p.ID)); err != nil {
		return false, err
	}
	if fromDiscard {
		s.piles.popDiscard()
	} else {
		s.piles.popDraw()
	}
	p.DrawnCard = card
	s.emit(waitForInteractionTypeSelection(p.ID, card.Value()))
	return true, nil
}

func (s *Session) selectInteraction(kind InteractionKind) bool {
	in, ok := newInteraction(kind, s.state.CardValue)
	if !ok {
		return false
	}
	s.emit(selectedInteractionType(s.state.PlayerID, in, s.state.CardValue))
	return true
}

func (s *Session) resolve(ctx context.Context, cardID uuid.UUID) (bool, error) {
	p := s.registry.Get(s.state.PlayerID)
	if p == nil || s.state.Interaction == nil {
		return false, nil
	}
	res, err := s.resolver.resolve(ctx, p, *s.state.Interaction, cardID)
	if err != nil || !res.applied {
		return false, err
	}
	if !res.endsTurn {
		s.emit(selectedInteractionType(p.ID, res.next, s.state.CardValue))
		return true, nil
	}
	s.endTurn(ctx, p.ID)
	return true, nil
}

// endTurn ends the game or passes the turn to the next seat. The acting
// player's mutations are already committed.
func (s *Session) endTurn(ctx context.Context, current int) {
	if s.turns.IsGameOver(current) {
		s.endGame(ctx)
		return
	}
	next, _ := s.turns.NextPlayer(current)
	if next != current {
		s.cosmetic(ctx, hideAvatarCmd(current), showAvatarCmd(next))
	}
	s.emit(currentTurn(next))
}

func (s *Session) endGame(ctx context.Context) {
	caller, called := s.turns.LastRoundCaller()
	scores, winners := findWinners(computeScores(s.registry), caller, called, s.HouseRules.FalseCallPenalty)

	var cmds []Command
	for _, id := range s.registry.IDs() {
		cmds = append(cmds, showAvatarCmd(id))
	}
	s.cosmetic(ctx, cmds...)

	s.turns.clearLastRound()
	s.lastRound.publish(LastRoundCall{})
	s.log.Infof("Game %d ended. Winner(s): %v. Final Scores: %v", s.game, winners, scores)
	s.emit(postGame(scores, winners))
	if s.OnGameEnd != nil {
		s.OnGameEnd(s.ID, s.game, scores, winners)
	}
}

func (s *Session) callLastRound(playerID int) bool {
	if s.state.Stage() != StageInGame || s.state.Phase == PhaseDealingCards {
		return false
	}
	if !s.turns.CallLastRound(playerID) {
		return false
	}
	s.log.Infof("Player %d called the last round.", playerID)
	s.lastRound.publish(LastRoundCall{Called: true, Caller: playerID})
	return true
}

// reset removes every seat, gathers all cards into a reshuffled draw pile and
// returns to draw pile placement.
func (s *Session) reset(ctx context.Context) error {
	var cmds []Command
	for _, id := range s.registry.IDs() {
		cmds = append(cmds, removePlayerCmd(id))
	}
	if err := parallel(ctx, s.fx, cmds...); err != nil {
		return err
	}
	loose := s.registry.clear()
	s.piles.reset(s.rng, loose)
	if _, called := s.turns.LastRoundCaller(); called {
		s.turns.clearLastRound()
		s.lastRound.publish(LastRoundCall{})
	}
	s.game++
	s.log.Infof("Table reset for game %d.", s.game)
	s.emit(phaseOnly(PhasePlaceDrawPile))
	return nil
}
