// internal/handlers/lobby.go
package handlers

import (
	"net/http"

	"github.com/keremzytn/NumberFightAI/internal/game"
	"github.com/keremzytn/NumberFightAI/internal/lobby"
)

type createRoomRequest struct {
	Mode       string `json:"mode"`
	Difficulty string `json:"difficulty"`
}

type roomCodeRequest struct {
	Code string `json:"code"`
}

type joinRoomResponse struct {
	Room  lobby.Room     `json:"room"`
	State game.SlotView `json:"state"`
}

// CreateRoomHandler opens a room. Mode "ai" starts the match straight away and
// the response carries its matchId.
func (s *Server) CreateRoomHandler(w http.ResponseWriter, r *http.Request) {
	var req createRoomRequest
	if err := decodeBody(r, &req); err != nil {
		badRequest(w, "bad lobby request payload")
		return
	}
	mode, err := lobby.ParseMode(req.Mode)
	if err != nil {
		badRequest(w, err.Error())
		return
	}
	var difficulty game.Difficulty
	if mode == lobby.ModeAI {
		if difficulty, err = game.ParseDifficulty(req.Difficulty); err != nil {
			badRequest(w, err.Error())
			return
		}
	}

	room, err := s.Lobby.CreateRoom(r.Context(), playerOf(r), mode, difficulty)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, room)
}

// ListRoomsHandler returns the joinable online rooms.
func (s *Server) ListRoomsHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.Lobby.ListRooms())
}

// JoinRoomHandler seats the caller in a room and starts the match.
func (s *Server) JoinRoomHandler(w http.ResponseWriter, r *http.Request) {
	var req roomCodeRequest
	if err := decodeBody(r, &req); err != nil || req.Code == "" {
		badRequest(w, "code is required")
		return
	}
	room, state, err := s.Lobby.JoinRoom(r.Context(), req.Code, playerOf(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	slot, _ := state.SlotOf(playerOf(r))
	writeJSON(w, http.StatusOK, joinRoomResponse{Room: room, State: state.ViewFor(slot)})
}

// LeaveRoomHandler closes the caller's waiting room.
func (s *Server) LeaveRoomHandler(w http.ResponseWriter, r *http.Request) {
	var req roomCodeRequest
	if err := decodeBody(r, &req); err != nil || req.Code == "" {
		badRequest(w, "code is required")
		return
	}
	if err := s.Lobby.LeaveRoom(r.Context(), req.Code, playerOf(r)); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
