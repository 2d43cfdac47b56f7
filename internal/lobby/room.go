// internal/lobby/room.go
package lobby

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/keremzytn/NumberFightAI/internal/game"
)

var (
	ErrRoomNotFound       = errors.New("room not found")
	ErrRoomNotWaiting     = errors.New("room is no longer accepting players")
	ErrAlreadyInRoom      = errors.New("player already has an open room")
	ErrNotRoomHost        = errors.New("only the host can close the room")
	ErrCodeSpaceExhausted = errors.New("could not allocate a free room code")

	errCodeTaken = errors.New("room code taken")
)

// Mode decides how a room is filled.
type Mode string

const (
	ModeFriend Mode = "friend" // private; joined by sharing the code
	ModeOnline Mode = "online" // listed for anyone to join
	ModeAI     Mode = "ai"     // starts against the AI immediately
)

func ParseMode(s string) (Mode, error) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(s))); m {
	case ModeFriend, ModeOnline, ModeAI:
		return m, nil
	}
	return "", fmt.Errorf("unknown room mode %q", s)
}

type Status string

const (
	StatusWaiting  Status = "waiting"
	StatusStarting Status = "starting" // a join is creating the match
	StatusStarted  Status = "started"
)

// Room is a pre-match gathering point identified by a short code.
type Room struct {
	ID         uuid.UUID       `json:"id"`
	Code       string          `json:"code"`
	Mode       Mode            `json:"mode"`
	Difficulty game.Difficulty `json:"difficulty,omitempty"`
	HostID     uuid.UUID       `json:"hostId"`
	Status     Status          `json:"status"`
	CreatedAt  time.Time       `json:"createdAt"`
	ExpiresAt  time.Time       `json:"expiresAt"`
	MatchID    *uuid.UUID      `json:"matchId,omitempty"`
}
