// internal/handlers/lobby_test.go
package handlers

import (
	"net/http"
	"testing"

	"github.com/keremzytn/NumberFightAI/internal/game"
	"github.com/keremzytn/NumberFightAI/internal/lobby"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestLobbyCreateListJoin walks an online room from creation to a started match.
func TestLobbyCreateListJoin(t *testing.T) {
	s := newTestServer(t)
	host, hostToken := s.guest(t)
	joiner, joinerToken := s.guest(t)

	status, body := s.do(t, http.MethodPost, "/lobby/create", hostToken, createRoomRequest{Mode: "online"})
	require.Equal(t, http.StatusOK, status, string(body))
	room := decode[lobby.Room](t, body)
	assert.Equal(t, host, room.HostID)
	assert.Equal(t, lobby.StatusWaiting, room.Status)
	assert.Len(t, room.Code, 6)

	status, body = s.do(t, http.MethodPost, "/lobby/create", hostToken, createRoomRequest{Mode: "friend"})
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "already_in_room", decode[errorBody](t, body).Code)

	status, body = s.do(t, http.MethodGet, "/lobby/list", joinerToken, nil)
	require.Equal(t, http.StatusOK, status)
	rooms := decode[[]lobby.Room](t, body)
	require.Len(t, rooms, 1)
	assert.Equal(t, room.Code, rooms[0].Code)

	status, body = s.do(t, http.MethodPost, "/lobby/join", joinerToken, roomCodeRequest{Code: room.Code})
	require.Equal(t, http.StatusOK, status, string(body))
	joined := decode[joinRoomResponse](t, body)
	require.NotNil(t, joined.Room.MatchID)
	assert.Equal(t, lobby.StatusStarted, joined.Room.Status)
	assert.Equal(t, game.SlotB, joined.State.Slot)
	assert.Equal(t, 1, joined.State.Round)
	assert.Equal(t, game.FullHand, joined.State.Hand)
	assert.Equal(t, host, joined.State.Opponent.PlayerID)

	m, ok := s.engine.ActiveMatch(joiner)
	require.True(t, ok)
	assert.Equal(t, *joined.Room.MatchID, m.ID)

	status, body = s.do(t, http.MethodGet, "/lobby/list", joinerToken, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Empty(t, decode[[]lobby.Room](t, body))

	status, body = s.do(t, http.MethodPost, "/lobby/join", joinerToken, roomCodeRequest{Code: room.Code})
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "room_not_found", decode[errorBody](t, body).Code)
}

func TestLobbyCreateValidation(t *testing.T) {
	s := newTestServer(t)
	_, token := s.guest(t)

	tests := []struct {
		name string
		req  createRoomRequest
	}{
		{"unknown mode", createRoomRequest{Mode: "ranked"}},
		{"missing mode", createRoomRequest{}},
		{"ai without difficulty", createRoomRequest{Mode: "ai"}},
		{"ai with bad difficulty", createRoomRequest{Mode: "ai", Difficulty: "insane"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := s.do(t, http.MethodPost, "/lobby/create", token, tt.req)
			assert.Equal(t, http.StatusBadRequest, status, string(body))
		})
	}

	status, _ := s.do(t, http.MethodPost, "/lobby/join", token, nil)
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestLobbyLeave(t *testing.T) {
	s := newTestServer(t)
	_, hostToken := s.guest(t)
	_, otherToken := s.guest(t)

	status, body := s.do(t, http.MethodPost, "/lobby/create", hostToken, createRoomRequest{Mode: "friend"})
	require.Equal(t, http.StatusOK, status)
	room := decode[lobby.Room](t, body)

	status, body = s.do(t, http.MethodPost, "/lobby/leave", otherToken, roomCodeRequest{Code: room.Code})
	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, "not_room_host", decode[errorBody](t, body).Code)

	status, _ = s.do(t, http.MethodPost, "/lobby/leave", hostToken, roomCodeRequest{Code: room.Code})
	assert.Equal(t, http.StatusNoContent, status)

	status, _ = s.do(t, http.MethodPost, "/lobby/join", otherToken, roomCodeRequest{Code: room.Code})
	assert.Equal(t, http.StatusNotFound, status)

	// The host is free to open another room.
	status, _ = s.do(t, http.MethodPost, "/lobby/create", hostToken, createRoomRequest{Mode: "online"})
	assert.Equal(t, http.StatusOK, status)
}

func TestLobbyAIRoomStartsImmediately(t *testing.T) {
	s := newTestServer(t)
	player, token := s.guest(t)

	status, body := s.do(t, http.MethodPost, "/lobby/create", token, createRoomRequest{Mode: "ai", Difficulty: "hard"})
	require.Equal(t, http.StatusOK, status, string(body))
	room := decode[lobby.Room](t, body)
	require.NotNil(t, room.MatchID)
	assert.Equal(t, lobby.StatusStarted, room.Status)

	m, ok := s.engine.ActiveMatch(player)
	require.True(t, ok)
	assert.Equal(t, *room.MatchID, m.ID)
	assert.Equal(t, game.DifficultyHard, m.Slots[game.SlotB].AI)
}
