// internal/game/match.go
package game

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// SlotID is a fixed seat in a match. Slot A is always index 0.
type SlotID int

const (
	SlotA SlotID = 0
	SlotB SlotID = 1
)

// Other returns the opposing slot.
func (s SlotID) Other() SlotID {
	return 1 - s
}

func (s SlotID) Valid() bool {
	return s == SlotA || s == SlotB
}

func (s SlotID) String() string {
	switch s {
	case SlotA:
		return "a"
	case SlotB:
		return "b"
	default:
		return fmt.Sprintf("slot(%d)", int(s))
	}
}

func (s SlotID) MarshalText() ([]byte, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("invalid slot %d", int(s))
	}
	return []byte(s.String()), nil
}

func (s *SlotID) UnmarshalText(b []byte) error {
	switch strings.ToLower(string(b)) {
	case "a":
		*s = SlotA
	case "b":
		*s = SlotB
	default:
		return fmt.Errorf("invalid slot %q", string(b))
	}
	return nil
}

// Difficulty selects an AI strategy. The empty value marks a human participant.
type Difficulty string

const (
	DifficultyNone   Difficulty = ""
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

// ParseDifficulty accepts easy, medium or hard (case-insensitive).
func ParseDifficulty(s string) (Difficulty, error) {
	switch d := Difficulty(strings.ToLower(strings.TrimSpace(s))); d {
	case DifficultyEasy, DifficultyMedium, DifficultyHard:
		return d, nil
	}
	return DifficultyNone, fmt.Errorf("unknown difficulty %q", s)
}

// Identity binds a participant to a slot: either a human player or an AI of a given difficulty.
type Identity struct {
	PlayerID uuid.UUID  `json:"playerId"`
	AI       Difficulty `json:"ai,omitempty"`
}

// Human returns the identity of a human player.
func Human(id uuid.UUID) Identity {
	return Identity{PlayerID: id}
}

// Bot returns an AI identity with a freshly generated id.
func Bot(d Difficulty) Identity {
	return Identity{PlayerID: uuid.New(), AI: d}
}

func (i Identity) IsAI() bool {
	return i.AI != DifficultyNone
}

// PlayerSlot is one participant's side of a match.
type PlayerSlot struct {
	Identity
	Hand   CardSet `json:"hand"`
	Locked CardSet `json:"locked"`
	Score  int     `json:"score"`

	// FifthRoundException is set when the round-5 triple rule fires and stays set
	// until round 6 resolves.
	FifthRoundException bool `json:"fifthRoundException"`

	// Connected is maintained by the session engine; rules ignore it.
	Connected bool `json:"connected"`
}

// Played returns the cards this slot has already resolved.
func (p PlayerSlot) Played() CardSet {
	return FullHand.Minus(p.Hand)
}

// Phase is the lifecycle stage of a match.
type Phase string

const (
	PhaseAwaitingMoves Phase = "awaiting_moves"
	PhaseResolving     Phase = "resolving" // both cards are in; only seen inside a store transition
	PhaseComplete      Phase = "complete"
	PhaseAbandoned     Phase = "abandoned"
)

// Terminal reports whether no further moves can be made.
func (p Phase) Terminal() bool {
	return p == PhaseComplete || p == PhaseAbandoned
}

// RoundWinner is "a", "b" or "tie".
type RoundWinner string

const (
	RoundWinnerA   RoundWinner = "a"
	RoundWinnerB   RoundWinner = "b"
	RoundWinnerTie RoundWinner = "tie"
)

func winnerFor(s SlotID) RoundWinner {
	if s == SlotA {
		return RoundWinnerA
	}
	return RoundWinnerB
}

// RoundRecord is the immutable outcome of one resolved round.
type RoundRecord struct {
	Round              int         `json:"round"`
	Cards              [2]Card     `json:"cards"`
	Winner             RoundWinner `json:"winner"`
	Scores             [2]int      `json:"scores"`
	ExceptionTriggered [2]bool     `json:"exceptionTriggered"`
}

// MatchState is the authoritative state of a single match.
type MatchState struct {
	ID           uuid.UUID     `json:"id"`
	Slots        [2]PlayerSlot `json:"slots"`
	CurrentRound int           `json:"currentRound"`
	Phase        Phase         `json:"phase"`
	Pending      [2]Card       `json:"-"`
	History      []RoundRecord `json:"history"`
	Winner       *SlotID       `json:"winner,omitempty"`
	CreatedAt    time.Time     `json:"createdAt"`
	CompletedAt  time.Time     `json:"completedAt"`
	Version      uint64        `json:"version"`
}

// NewMatchState deals a full hand to each slot and opens round 1.
// Human participants start connected; AI participants are always connected.
func NewMatchState(id uuid.UUID, a, b Identity, now time.Time) MatchState {
	return MatchState{
		ID: id,
		Slots: [2]PlayerSlot{
			{Identity: a, Hand: FullHand, Connected: true},
			{Identity: b, Hand: FullHand, Connected: true},
		},
		CurrentRound: 1,
		Phase:        PhaseAwaitingMoves,
		History:      make([]RoundRecord, 0, Rounds),
		CreatedAt:    now,
	}
}

// Clone returns a deep copy; the result shares no memory with s.
func (s MatchState) Clone() MatchState {
	out := s
	out.History = make([]RoundRecord, len(s.History), max(len(s.History), Rounds))
	copy(out.History, s.History)
	if s.Winner != nil {
		w := *s.Winner
		out.Winner = &w
	}
	return out
}

// SlotOf returns the slot bound to playerID.
func (s MatchState) SlotOf(playerID uuid.UUID) (SlotID, bool) {
	for i := range s.Slots {
		if s.Slots[i].PlayerID == playerID {
			return SlotID(i), true
		}
	}
	return 0, false
}

// Slot returns a copy of the given slot.
func (s MatchState) Slot(id SlotID) PlayerSlot {
	return s.Slots[id]
}

// Plays returns the cards a slot has played, in round order.
func (s MatchState) Plays(id SlotID) []Card {
	out := make([]Card, 0, len(s.History))
	for _, r := range s.History {
		out = append(out, r.Cards[id])
	}
	return out
}

// Participants returns both player ids in slot order.
func (s MatchState) Participants() [2]uuid.UUID {
	return [2]uuid.UUID{s.Slots[SlotA].PlayerID, s.Slots[SlotB].PlayerID}
}
