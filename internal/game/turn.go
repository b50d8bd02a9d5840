// internal/game/turn.go
package game

// TurnEngine owns the cyclic turn order and the last-round call.
type TurnEngine struct {
	registry *Registry
	piles    *Piles

	lastRoundCalled bool
	lastRoundCaller int
}

func newTurnEngine(registry *Registry, piles *Piles) *TurnEngine {
	return &TurnEngine{registry: registry, piles: piles}
}

// NextPlayer returns the seat following current in seating order, wrapping
// around after the last seat. ok is false if current is not seated.
func (t *TurnEngine) NextPlayer(current int) (int, bool) {
	n := t.registry.Len()
	idx := t.registry.index(current)
	if n == 0 || idx < 0 {
		return 0, false
	}
	return t.registry.Players[(idx+1)%n].ID, true
}

// previousPlayer returns the seat preceding id in seating order.
func (t *TurnEngine) previousPlayer(id int) (int, bool) {
	n := t.registry.Len()
	idx := t.registry.index(id)
	if n == 0 || idx < 0 {
		return 0, false
	}
	return t.registry.Players[(idx-1+n)%n].ID, true
}

// CallLastRound records playerID as the last-round caller. The first caller of
// a round wins; later calls return false and change nothing.
func (t *TurnEngine) CallLastRound(playerID int) bool {
	if t.lastRoundCalled || t.registry.Get(playerID) == nil {
		return false
	}
	t.lastRoundCalled = true
	t.lastRoundCaller = playerID
	return true
}

// LastRoundCaller returns the recorded caller, if any.
func (t *TurnEngine) LastRoundCaller() (int, bool) {
	return t.lastRoundCaller, t.lastRoundCalled
}

func (t *TurnEngine) clearLastRound() {
	t.lastRoundCalled = false
	t.lastRoundCaller = 0
}

// IsGameOver reports whether the game ends after current's turn: current has
// no cards left, current sits right before the last-round caller, or the draw
// pile is empty.
func (t *TurnEngine) IsGameOver(current int) bool {
	if p := t.registry.Get(current); p != nil && len(p.Hand) == 0 {
		return true
	}
	if t.lastRoundCalled {
		if prev, ok := t.previousPlayer(t.lastRoundCaller); ok && prev == current {
			return true
		}
	}
	return len(t.piles.Draw) == 0
}
