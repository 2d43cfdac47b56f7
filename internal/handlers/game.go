// internal/handlers/game.go
package handlers

import (
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/keremzytn/NumberFightAI/internal/ai"
	"github.com/keremzytn/NumberFightAI/internal/game"
	"github.com/keremzytn/NumberFightAI/internal/models"
	"github.com/keremzytn/NumberFightAI/internal/session"
)

const (
	defaultHistoryLimit = 20
	maxHistoryLimit     = 100
)

type activeMatchResponse struct {
	MatchID uuid.UUID     `json:"matchId"`
	State   game.SlotView `json:"state"`
}

type moveRequest struct {
	Card  game.Card `json:"card"`
	Round int       `json:"round"`
}

type chatRequest struct {
	Message string `json:"message"`
}

type moveResponse struct {
	Accepted bool `json:"accepted"`
	session.MoveResult
}

// ActiveMatchHandler lets a returning client find the match it was playing.
func (s *Server) ActiveMatchHandler(w http.ResponseWriter, r *http.Request) {
	player := playerOf(r)
	m, ok := s.Engine.ActiveMatch(player)
	if !ok {
		writeJSON(w, http.StatusNotFound, errorBody{Error: "no active match", Code: "no_active_match"})
		return
	}
	slot, _ := m.SlotOf(player)
	writeJSON(w, http.StatusOK, activeMatchResponse{MatchID: m.ID, State: m.ViewFor(slot)})
}

// StateHandler returns the caller's view of a match.
func (s *Server) StateHandler(w http.ResponseWriter, r *http.Request) {
	matchID, ok := matchIDOf(w, r)
	if !ok {
		return
	}
	view, err := s.Engine.GetState(matchID, playerOf(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// MoveHandler plays a card. A non-zero round pins the move to that round.
func (s *Server) MoveHandler(w http.ResponseWriter, r *http.Request) {
	matchID, ok := matchIDOf(w, r)
	if !ok {
		return
	}
	var req moveRequest
	if err := decodeBody(r, &req); err != nil {
		badRequest(w, "bad move payload")
		return
	}
	res, err := s.Engine.SubmitMoveAt(matchID, playerOf(r), req.Round, req.Card)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, moveResponse{Accepted: true, MoveResult: res})
}

// LeaveMatchHandler forfeits the caller's match.
func (s *Server) LeaveMatchHandler(w http.ResponseWriter, r *http.Request) {
	matchID, ok := matchIDOf(w, r)
	if !ok {
		return
	}
	if err := s.Engine.Leave(matchID, playerOf(r)); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ChatHandler relays a chat message to the match's connections.
func (s *Server) ChatHandler(w http.ResponseWriter, r *http.Request) {
	matchID, ok := matchIDOf(w, r)
	if !ok {
		return
	}
	var req chatRequest
	if err := decodeBody(r, &req); err != nil {
		badRequest(w, "bad chat payload")
		return
	}
	ev, err := s.Engine.SendChat(matchID, playerOf(r), req.Message)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ev)
}

// HintHandler scores the caller's legal cards.
func (s *Server) HintHandler(w http.ResponseWriter, r *http.Request) {
	matchID, ok := matchIDOf(w, r)
	if !ok {
		return
	}
	view, err := s.Engine.GetState(matchID, playerOf(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if view.Phase.Terminal() {
		s.writeError(w, r, game.ErrMatchNotActive)
		return
	}
	writeJSON(w, http.StatusOK, ai.Analyze(view))
}

// HistoryHandler lists the caller's finished matches when a history backend is configured.
func (s *Server) HistoryHandler(w http.ResponseWriter, r *http.Request) {
	if s.History == nil {
		writeJSON(w, http.StatusNotImplemented, errorBody{Error: "match history is not enabled", Code: "not_enabled"})
		return
	}
	limit := defaultHistoryLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			badRequest(w, "limit must be a positive integer")
			return
		}
		limit = min(n, maxHistoryLimit)
	}
	list, err := s.History.ListByPlayer(r.Context(), playerOf(r), limit)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if list == nil {
		list = []models.MatchSummary{}
	}
	writeJSON(w, http.StatusOK, list)
}
