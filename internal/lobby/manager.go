// internal/lobby/manager.go
package lobby

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/keremzytn/NumberFightAI/internal/game"
	"github.com/sirupsen/logrus"
)

// ListLimit caps how many rooms ListRooms returns.
const ListLimit = 10

// MatchStarter registers a match once a room is full. The session engine implements it.
type MatchStarter interface {
	CreateMatch(a, b game.Identity) (game.MatchState, error)
}

// Manager creates, lists and fills rooms. It holds no match state; a room is
// destroyed as soon as its match has been handed to the starter.
type Manager struct {
	rooms   *RoomStore
	codes   CodeReserver
	starter MatchStarter
	log     logrus.FieldLogger
	ttl     time.Duration
	now     func() time.Time
}

func NewManager(starter MatchStarter, codes CodeReserver, logger logrus.FieldLogger, ttl time.Duration) *Manager {
	if codes == nil {
		codes = NewMemoryCodes()
	}
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &Manager{
		rooms:   NewRoomStore(),
		codes:   codes,
		starter: starter,
		log:     logger,
		ttl:     ttl,
		now:     time.Now,
	}
}

// CreateRoom opens a room for hostID. In ModeAI the match starts right away
// and the returned room is already started; no room is kept. A host with a
// room still open gets ErrAlreadyInRoom in every mode.
func (m *Manager) CreateRoom(ctx context.Context, hostID uuid.UUID, mode Mode, difficulty game.Difficulty) (Room, error) {
	if _, hosting := m.rooms.HostedBy(hostID); hosting {
		return Room{}, ErrAlreadyInRoom
	}

	now := m.now()
	room := Room{
		ID:        uuid.New(),
		Mode:      mode,
		HostID:    hostID,
		Status:    StatusWaiting,
		CreatedAt: now,
		ExpiresAt: now.Add(m.ttl),
	}

	switch mode {
	case ModeAI:
		d, err := game.ParseDifficulty(string(difficulty))
		if err != nil {
			return Room{}, err
		}
		room.Difficulty = d
		return m.startAI(room)
	case ModeFriend, ModeOnline:
	default:
		return Room{}, fmt.Errorf("unknown room mode %q", mode)
	}

	for attempt := 0; attempt < codeAttempts; attempt++ {
		code := NewCode()
		ok, err := m.codes.Reserve(ctx, code, m.ttl)
		if err != nil {
			return Room{}, fmt.Errorf("reserve room code: %w", err)
		}
		if !ok {
			continue
		}

		room.Code = code
		timer := time.AfterFunc(m.ttl, func() { m.expire(code) })
		err = m.rooms.Add(room, timer)
		if err == nil {
			m.log.WithFields(logrus.Fields{
				"room_id": room.ID,
				"code":    code,
				"mode":    mode,
				"host_id": hostID,
			}).Info("room created")
			return room, nil
		}

		timer.Stop()
		m.release(code)
		if !errors.Is(err, errCodeTaken) {
			return Room{}, err
		}
	}
	return Room{}, ErrCodeSpaceExhausted
}

func (m *Manager) startAI(room Room) (Room, error) {
	s, err := m.starter.CreateMatch(game.Human(room.HostID), game.Bot(room.Difficulty))
	if err != nil {
		return Room{}, fmt.Errorf("start ai match: %w", err)
	}
	room.Status = StatusStarted
	room.MatchID = &s.ID
	m.log.WithFields(logrus.Fields{"match_id": s.ID, "host_id": room.HostID, "difficulty": room.Difficulty}).Info("ai match started")
	return room, nil
}

// ListRooms returns joinable online rooms, newest first.
func (m *Manager) ListRooms() []Room {
	rooms := m.rooms.Waiting(ModeOnline)
	if len(rooms) > ListLimit {
		rooms = rooms[:ListLimit]
	}
	return rooms
}

// JoinRoom seats playerID opposite the host and starts the match. The host
// takes slot A and the joiner slot B.
func (m *Manager) JoinRoom(ctx context.Context, code string, playerID uuid.UUID) (Room, game.MatchState, error) {
	code = NormalizeCode(code)
	room, err := m.rooms.Claim(code, playerID)
	if err != nil {
		return Room{}, game.MatchState{}, err
	}

	s, err := m.starter.CreateMatch(game.Human(room.HostID), game.Human(playerID))
	if err != nil {
		m.rooms.Unclaim(code)
		if m.now().After(room.ExpiresAt) {
			m.expire(code)
		}
		return Room{}, game.MatchState{}, fmt.Errorf("start match: %w", err)
	}

	m.rooms.Remove(code, false)
	m.release(code)

	room.Status = StatusStarted
	room.MatchID = &s.ID
	m.log.WithFields(logrus.Fields{
		"room_id":  room.ID,
		"code":     code,
		"match_id": s.ID,
		"host_id":  room.HostID,
		"guest_id": playerID,
	}).Info("room filled, match started")
	return room, s, nil
}

// LeaveRoom closes a waiting room. Only the host can do this.
func (m *Manager) LeaveRoom(ctx context.Context, code string, playerID uuid.UUID) error {
	code = NormalizeCode(code)
	room, ok := m.rooms.Get(code)
	if !ok {
		return ErrRoomNotFound
	}
	if room.HostID != playerID {
		return ErrNotRoomHost
	}
	if _, ok := m.rooms.Remove(code, true); !ok {
		return ErrRoomNotWaiting
	}
	m.release(code)
	m.log.WithFields(logrus.Fields{"room_id": room.ID, "code": code}).Info("host left, room closed")
	return nil
}

// Room looks up an open room by code.
func (m *Manager) Room(code string) (Room, error) {
	room, ok := m.rooms.Get(NormalizeCode(code))
	if !ok {
		return Room{}, ErrRoomNotFound
	}
	return room, nil
}

func (m *Manager) expire(code string) {
	room, ok := m.rooms.Remove(code, true)
	if !ok {
		return
	}
	m.release(code)
	m.log.WithFields(logrus.Fields{"room_id": room.ID, "code": code}).Info("room expired")
}

func (m *Manager) release(code string) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := m.codes.Release(ctx, code); err != nil {
		m.log.WithError(err).WithField("code", code).Warn("failed to release room code")
	}
}

// Close drops every open room.
func (m *Manager) Close() {
	m.rooms.Clear()
}
