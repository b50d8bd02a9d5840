// internal/game/scoring.go
package game

// computeScores sums the hand values of every seated player, in seating order.
func computeScores(r *Registry) []PlayerScore {
	scores := make([]PlayerScore, 0, r.Len())
	for _, p := range r.Players {
		sum := 0
		for _, c := range p.Hand {
			sum += c.Value()
		}
		scores = append(scores, PlayerScore{PlayerID: p.ID, Points: sum})
	}
	return scores
}

// findWinners picks the lowest totals. A last-round caller tied for the lowest
// total wins alone. If the caller is not among the lowest, the caller's total
// is raised by penalty and a tie among the others grants no victory.
func findWinners(scores []PlayerScore, caller int, called bool, penalty int) ([]PlayerScore, []int) {
	if len(scores) == 0 {
		return scores, nil
	}

	lowest := scores[0].Points
	for _, s := range scores[1:] {
		if s.Points < lowest {
			lowest = s.Points
		}
	}
	var lowestIDs []int
	callerAmongLowest := false
	for _, s := range scores {
		if s.Points == lowest {
			lowestIDs = append(lowestIDs, s.PlayerID)
			if called && s.PlayerID == caller {
				callerAmongLowest = true
			}
		}
	}

	if !called {
		return scores, lowestIDs
	}
	if callerAmongLowest {
		return scores, []int{caller}
	}

	adjusted := make([]PlayerScore, len(scores))
	copy(adjusted, scores)
	for i := range adjusted {
		if adjusted[i].PlayerID == caller {
			adjusted[i].Points += penalty
		}
	}
	if len(lowestIDs) == 1 {
		return adjusted, lowestIDs
	}
	return adjusted, nil
}
