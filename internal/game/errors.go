// internal/game/errors.go
package game

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

var (
	// ErrMatchNotActive is returned when a move targets a match that is complete or abandoned.
	ErrMatchNotActive = errors.New("match is not accepting moves")

	// ErrNoMovesAvailable means a slot has no legal card. The lock rules make this
	// unreachable in a well-formed match, so seeing it indicates corrupted state.
	ErrNoMovesAvailable = errors.New("no legal moves available")

	ErrMatchExists = errors.New("match already exists")
)

// Reasons carried by IllegalMoveError.
const (
	ReasonOutOfRange    = "out of range"
	ReasonAlreadyPlayed = "already played"
	ReasonLocked        = "locked"
)

// IllegalMoveError rejects a card the slot may not play this round.
type IllegalMoveError struct {
	Slot   SlotID
	Card   Card
	Reason string
}

func (e *IllegalMoveError) Error() string {
	return fmt.Sprintf("illegal move by slot %s: card %d is %s", e.Slot, e.Card, e.Reason)
}

// AlreadySubmittedError is returned for a second move by the same slot in one round.
type AlreadySubmittedError struct {
	Slot  SlotID
	Round int
}

func (e *AlreadySubmittedError) Error() string {
	return fmt.Sprintf("slot %s already submitted a card for round %d", e.Slot, e.Round)
}

type MatchNotFoundError struct {
	MatchID uuid.UUID
}

func (e *MatchNotFoundError) Error() string {
	return fmt.Sprintf("match %s not found", e.MatchID)
}

type NotParticipantError struct {
	MatchID  uuid.UUID
	PlayerID uuid.UUID
}

func (e *NotParticipantError) Error() string {
	return fmt.Sprintf("player %s is not a participant in match %s", e.PlayerID, e.MatchID)
}

// StaleRoundError rejects a move tagged with a round other than the current one.
type StaleRoundError struct {
	Round   int
	Current int
}

func (e *StaleRoundError) Error() string {
	return fmt.Sprintf("move for round %d does not match current round %d", e.Round, e.Current)
}

// InvariantError reports internally inconsistent match state. It is never the
// caller's fault and is treated as fatal for the match.
type InvariantError struct {
	MatchID   uuid.UUID
	Violation string
}

func (e *InvariantError) Error() string {
	return fmt.Sprintf("match %s invariant violated: %s", e.MatchID, e.Violation)
}
