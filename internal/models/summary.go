// internal/models/summary.go
package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/keremzytn/NumberFightAI/internal/game"
)

// Outcome is how a match ended.
type Outcome string

const (
	OutcomeComplete  Outcome = "complete"
	OutcomeAbandoned Outcome = "abandoned"
)

// SummaryParticipant is one side of a finished match.
type SummaryParticipant struct {
	Slot       game.SlotID     `json:"slot"`
	PlayerID   uuid.UUID       `json:"player_id"`
	AI         game.Difficulty `json:"ai,omitempty"`
	FinalScore int             `json:"final_score"`
	CardUsage  []game.Card     `json:"card_usage"` // cards in the order they were played
}

// MatchSummary is the durable record of a finished or abandoned match.
type MatchSummary struct {
	MatchID      uuid.UUID             `json:"match_id"`
	Participants [2]SummaryParticipant `json:"participants"`
	Rounds       []game.RoundRecord    `json:"rounds"`
	FinalScores  [2]int                `json:"final_scores"`
	Winner       *game.SlotID          `json:"winner,omitempty"`    // nil on a tie or abandonment
	WinnerID     *uuid.UUID            `json:"winner_id,omitempty"` // convenience copy of the winner's player id
	Outcome      Outcome               `json:"outcome"`
	StartedAt    time.Time             `json:"started_at"`
	CompletedAt  time.Time             `json:"completed_at"`
	DurationMS   int64                 `json:"duration_ms"`
}

// NewMatchSummary captures a terminal match state. endedAt is used when the
// state carries no completion time (abandoned matches).
func NewMatchSummary(s game.MatchState, outcome Outcome, endedAt time.Time) MatchSummary {
	s = s.Clone()
	completed := s.CompletedAt
	if completed.IsZero() {
		completed = endedAt
	}

	sum := MatchSummary{
		MatchID:     s.ID,
		Rounds:      s.History,
		Outcome:     outcome,
		StartedAt:   s.CreatedAt,
		CompletedAt: completed,
		DurationMS:  completed.Sub(s.CreatedAt).Milliseconds(),
	}
	for i, slot := range s.Slots {
		id := game.SlotID(i)
		sum.Participants[i] = SummaryParticipant{
			Slot:       id,
			PlayerID:   slot.PlayerID,
			AI:         slot.AI,
			FinalScore: slot.Score,
			CardUsage:  s.Plays(id),
		}
		sum.FinalScores[i] = slot.Score
	}
	if outcome == OutcomeComplete && s.Winner != nil {
		w := *s.Winner
		pid := s.Slots[w].PlayerID
		sum.Winner = &w
		sum.WinnerID = &pid
	}
	return sum
}
