// internal/ai/analysis.go
package ai

import (
	"sort"
	"strings"

	"github.com/keremzytn/NumberFightAI/internal/game"
)

// Recommendation scores one playable card for the hint endpoint.
type Recommendation struct {
	Card           game.Card `json:"card"`
	WinProbability float64   `json:"winProbability"`
	StrategicValue float64   `json:"strategicValue"`
	Overall        float64   `json:"overallScore"`
	Reasoning      string    `json:"reasoning"`
}

// Analysis summarises a position from one slot's point of view.
type Analysis struct {
	Round               int              `json:"round"`
	Score               int              `json:"score"`
	OpponentScore       int              `json:"opponentScore"`
	Available           game.CardSet     `json:"available"`
	OpponentPossible    game.CardSet     `json:"opponentPossible"`
	Winning             bool             `json:"winning"`
	RoundsRemaining     int              `json:"roundsRemaining"`
	CanTriggerException bool             `json:"canTriggerException"`
	ExceptionCards      game.CardSet     `json:"exceptionCards"`
	Recommendations     []Recommendation `json:"recommendations"`
}

// Analyze produces hints for the viewer. Recommendations are ordered best first.
func Analyze(view game.SlotView) Analysis {
	opp := view.OpponentAvailable()
	a := Analysis{
		Round:            view.Round,
		Score:            view.Score,
		OpponentScore:    view.Opponent.Score,
		Available:        view.LegalMoves,
		OpponentPossible: opp,
		Winning:          view.Score > view.Opponent.Score,
		RoundsRemaining:  view.RoundsLeft(),
	}
	if view.Round == game.ExceptionRound {
		a.ExceptionCards = game.ExceptionCards(view.Hand)
		a.CanTriggerException = !a.ExceptionCards.Empty()
	}

	a.Recommendations = make([]Recommendation, 0, view.LegalMoves.Len())
	for _, c := range view.LegalMoves.Cards() {
		win := beatFraction(c, opp)
		strategic := strategicValue(c, view, a.ExceptionCards)
		a.Recommendations = append(a.Recommendations, Recommendation{
			Card:           c,
			WinProbability: win,
			StrategicValue: strategic,
			Overall:        (win + strategic) / 2,
			Reasoning:      reasoning(c, win, strategic, view.Round),
		})
	}
	sort.SliceStable(a.Recommendations, func(i, j int) bool {
		return a.Recommendations[i].Overall > a.Recommendations[j].Overall
	})
	return a
}

func strategicValue(c game.Card, view game.SlotView, exception game.CardSet) float64 {
	v := 0.0
	if view.Round >= game.ExceptionRound {
		v += float64(c-4) * 0.2
	}
	if view.Round < game.Rounds {
		v -= float64(lockCost(c, view.Hand)) * 0.1
	}
	if exception.Has(c) {
		v += 0.3
	}
	return min(1, max(0, v+0.5))
}

func reasoning(c game.Card, win, strategic float64, round int) string {
	var reasons []string
	switch {
	case win > 0.7:
		reasons = append(reasons, "high chance to win the round")
	case win < 0.3:
		reasons = append(reasons, "low chance to win the round")
	}
	if strategic > 0.7 {
		reasons = append(reasons, "good strategic value")
	}
	if round >= game.ExceptionRound && c >= 6 {
		reasons = append(reasons, "high card for the late game")
	}
	if round == game.ExceptionRound {
		reasons = append(reasons, "consider the round 5 exception")
	}
	if len(reasons) == 0 {
		return "neutral play"
	}
	return strings.Join(reasons, ", ")
}
