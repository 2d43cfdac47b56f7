// internal/ai/strategies.go
package ai

import (
	"math"
	"math/rand"

	"github.com/keremzytn/NumberFightAI/internal/game"
)

// mediumErrorRate is how often the medium AI plays a random card instead of
// countering its prediction.
const mediumErrorRate = 0.3

func selectEasy(view game.SlotView, rng *rand.Rand) (game.Card, error) {
	legal := view.LegalMoves.Cards()
	return legal[rng.Intn(len(legal))], nil
}

func selectMedium(view game.SlotView, rng *rand.Rand) (game.Card, error) {
	if rng.Float64() < mediumErrorRate {
		return selectEasy(view, rng)
	}
	return counterPrediction(view), nil
}

// counterPrediction plays the lowest card that beats the predicted opponent
// card, or the lowest card when nothing beats it.
func counterPrediction(view game.SlotView) game.Card {
	predicted := predictOpponent(view)
	legal := view.LegalMoves.Cards()
	for _, c := range legal {
		if c > predicted {
			return c
		}
	}
	return legal[0]
}

// predictOpponent extrapolates the opponent's last two plays and snaps the
// guess to the nearest card the opponent can currently play. With less history it guesses the middle of the opponent's options.
func predictOpponent(view game.SlotView) game.Card {
	avail := view.OpponentAvailable().Cards()
	if len(avail) == 0 {
		return game.MinCard
	}
	played := view.Opponent.Played
	if n := len(played); n >= 2 {
		last := played[n-1]
		guess := last + (last - played[n-2])
		best := avail[0]
		for _, c := range avail[1:] {
			if distance(c, guess) <= distance(best, guess) {
				best = c
			}
		}
		return best
	}
	return avail[len(avail)/2]
}

func distance(a, b game.Card) int {
	if a > b {
		return int(a - b)
	}
	return int(b - a)
}

func selectHard(view game.SlotView, _ *rand.Rand) (game.Card, error) {
	if view.Round == game.ExceptionRound {
		if c, ok := game.ExceptionCards(view.Hand).Lowest(); ok && view.LegalMoves.Has(c) {
			return c, nil
		}
	}

	best, bestScore := game.Card(0), math.Inf(-1)
	// Ascending order with >= hands ties to the higher card.
	for _, c := range view.LegalMoves.Cards() {
		if s := hardScore(c, view); s >= bestScore {
			best, bestScore = c, s
		}
	}
	return best, nil
}

func hardScore(c game.Card, view game.SlotView) float64 {
	return math.Min(1, beatFraction(c, view.OpponentAvailable())*contextMultiplier(c, view))
}

// beatFraction is the share of the opponent's playable cards that c beats.
func beatFraction(c game.Card, opponent game.CardSet) float64 {
	if opponent.Empty() {
		return 1
	}
	beaten := 0
	for _, o := range opponent.Cards() {
		if c > o {
			beaten++
		}
	}
	return float64(beaten) / float64(opponent.Len())
}

func contextMultiplier(c game.Card, view game.SlotView) float64 {
	m := 1.0
	delta := float64(c - 4)
	if view.Round >= game.ExceptionRound {
		m += delta * 0.1
	}
	switch {
	case view.Score < view.Opponent.Score:
		m += delta * 0.15
	case view.Score > view.Opponent.Score:
		m -= delta * 0.1
	}
	if view.Round < game.Rounds {
		m -= float64(lockCost(c, view.Hand)) * 0.05
	}
	return math.Max(0.1, m)
}

// lockCost counts the neighbours of c that playing it would lock.
func lockCost(c game.Card, hand game.CardSet) int {
	return game.Neighbors(c).Intersect(hand).Len()
}
