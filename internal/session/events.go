// internal/session/events.go
package session

import (
	"time"

	"github.com/google/uuid"
	"github.com/keremzytn/NumberFightAI/internal/game"
)

// EventType names an engine event. The values are part of the client contract.
type EventType string

const (
	EventMatchStarted         EventType = "match_started"
	EventMoveCommitted        EventType = "move_committed"
	EventRoundResolved        EventType = "round_resolved"
	EventMatchComplete        EventType = "match_complete"
	EventOpponentDisconnected EventType = "opponent_disconnected"
	EventOpponentReconnected  EventType = "opponent_reconnected"
	EventMatchAbandoned       EventType = "match_abandoned"
	EventChatMessage          EventType = "chat_message"
)

// Event is emitted to both participants and to observers. No event ever carries
// a card that has not been resolved yet.
type Event struct {
	Type    EventType `json:"type"`
	MatchID uuid.UUID `json:"matchId"`
	Round   int       `json:"round,omitempty"`

	// Slot is the subject of move_committed, opponent_*, chat_message and (when
	// caused by a participant) match_abandoned.
	Slot *game.SlotID `json:"slot,omitempty"`

	Message string `json:"message,omitempty"`

	Cards       *[2]game.Card    `json:"cards,omitempty"`
	RoundWinner game.RoundWinner `json:"roundWinner,omitempty"`
	Scores      *[2]int          `json:"scores,omitempty"`
	Exception   *[2]bool         `json:"exception,omitempty"`

	Winner *game.SlotID `json:"winner,omitempty"`
	Tie    bool         `json:"tie,omitempty"`
	Reason string       `json:"reason,omitempty"`

	// Participants is only set on match_started.
	Participants *[2]game.Identity `json:"participants,omitempty"`

	Version uint64    `json:"version"`
	At      time.Time `json:"at"`
}

func slotPtr(s game.SlotID) *game.SlotID {
	return &s
}

func matchStartedEvent(s game.MatchState) Event {
	ids := [2]game.Identity{s.Slots[game.SlotA].Identity, s.Slots[game.SlotB].Identity}
	return Event{
		Type:         EventMatchStarted,
		MatchID:      s.ID,
		Round:        s.CurrentRound,
		Participants: &ids,
	}
}

func moveCommittedEvent(id uuid.UUID, round int, slot game.SlotID) Event {
	return Event{Type: EventMoveCommitted, MatchID: id, Round: round, Slot: slotPtr(slot)}
}

func roundResolvedEvent(id uuid.UUID, rec game.RoundRecord) Event {
	cards, scores, exc := rec.Cards, rec.Scores, rec.ExceptionTriggered
	return Event{
		Type:        EventRoundResolved,
		MatchID:     id,
		Round:       rec.Round,
		Cards:       &cards,
		RoundWinner: rec.Winner,
		Scores:      &scores,
		Exception:   &exc,
	}
}

func matchCompleteEvent(s game.MatchState) Event {
	scores := [2]int{s.Slots[game.SlotA].Score, s.Slots[game.SlotB].Score}
	ev := Event{
		Type:    EventMatchComplete,
		MatchID: s.ID,
		Scores:  &scores,
		Tie:     s.Winner == nil,
	}
	if s.Winner != nil {
		ev.Winner = slotPtr(*s.Winner)
	}
	return ev
}
