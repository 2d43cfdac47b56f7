// internal/lobby/room_store.go
package lobby

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

type roomEntry struct {
	room   Room
	expiry *time.Timer
}

// RoomStore holds open rooms in memory, keyed by code.
type RoomStore struct {
	mu    sync.Mutex
	rooms map[string]*roomEntry
}

func NewRoomStore() *RoomStore {
	return &RoomStore{
		rooms: make(map[string]*roomEntry),
	}
}

// Add stores a room. It fails with ErrAlreadyInRoom if the host already has a
// room and with errCodeTaken if the code is in use.
func (s *RoomStore) Add(room Room, expiry *time.Timer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.rooms {
		if e.room.HostID == room.HostID {
			return ErrAlreadyInRoom
		}
	}
	if _, exists := s.rooms[room.Code]; exists {
		return errCodeTaken
	}
	s.rooms[room.Code] = &roomEntry{room: room, expiry: expiry}
	return nil
}

func (s *RoomStore) Get(code string) (Room, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.rooms[code]
	if !ok {
		return Room{}, false
	}
	return e.room, true
}

// HostedBy returns the open room hosted by playerID, if any.
func (s *RoomStore) HostedBy(playerID uuid.UUID) (Room, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.rooms {
		if e.room.HostID == playerID {
			return e.room, true
		}
	}
	return Room{}, false
}

// Claim moves a waiting room to starting so exactly one joiner can start it.
// A joiner who still hosts a room of their own is turned away.
func (s *RoomStore) Claim(code string, joiner uuid.UUID) (Room, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.rooms[code]
	if !ok {
		return Room{}, ErrRoomNotFound
	}
	for _, other := range s.rooms {
		if other.room.HostID == joiner {
			return Room{}, ErrAlreadyInRoom
		}
	}
	if e.room.Status != StatusWaiting {
		return Room{}, ErrRoomNotWaiting
	}
	e.room.Status = StatusStarting
	return e.room, nil
}

// Unclaim returns a starting room to waiting after a failed start.
func (s *RoomStore) Unclaim(code string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.rooms[code]; ok && e.room.Status == StatusStarting {
		e.room.Status = StatusWaiting
	}
}

// Remove deletes a room and stops its expiry timer. When onlyWaiting is set a
// room that is being started is left alone.
func (s *RoomStore) Remove(code string, onlyWaiting bool) (Room, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.rooms[code]
	if !ok || (onlyWaiting && e.room.Status != StatusWaiting) {
		return Room{}, false
	}
	if e.expiry != nil {
		e.expiry.Stop()
	}
	delete(s.rooms, code)
	return e.room, true
}

// Waiting returns waiting rooms of the given mode, newest first.
func (s *RoomStore) Waiting(mode Mode) []Room {
	s.mu.Lock()
	out := make([]Room, 0, len(s.rooms))
	for _, e := range s.rooms {
		if e.room.Mode == mode && e.room.Status == StatusWaiting {
			out = append(out, e.room)
		}
	}
	s.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

// Clear stops every expiry timer and empties the store.
func (s *RoomStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for code, e := range s.rooms {
		if e.expiry != nil {
			e.expiry.Stop()
		}
		delete(s.rooms, code)
	}
}

func (s *RoomStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.rooms)
}
