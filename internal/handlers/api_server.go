// internal/handlers/api_server.go
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"github.com/keremzytn/NumberFightAI/internal/auth"
	"github.com/keremzytn/NumberFightAI/internal/game"
	"github.com/keremzytn/NumberFightAI/internal/lobby"
	"github.com/keremzytn/NumberFightAI/internal/middleware"
	"github.com/keremzytn/NumberFightAI/internal/models"
	"github.com/keremzytn/NumberFightAI/internal/session"
	"github.com/sirupsen/logrus"
)

// MatchHistory lists a player's finished matches. The Postgres repository and
// the SQLite archive implement it.
type MatchHistory interface {
	ListByPlayer(ctx context.Context, playerID uuid.UUID, limit int) ([]models.MatchSummary, error)
}

// Server holds everything the HTTP and WebSocket handlers need.
type Server struct {
	Engine  *session.Engine
	Lobby   *lobby.Manager
	Auth    *auth.Authenticator
	History MatchHistory // optional
	Log     logrus.FieldLogger

	connMu sync.Mutex
	conns  map[connKey]int
}

func NewServer(engine *session.Engine, lobbyManager *lobby.Manager, authn *auth.Authenticator, history MatchHistory, logger logrus.FieldLogger) *Server {
	return &Server{
		Engine:  engine,
		Lobby:   lobbyManager,
		Auth:    authn,
		History: history,
		Log:     logger,
		conns:   make(map[connKey]int),
	}
}

// Routes builds the HTTP handler for the whole API.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()
	logged := middleware.LogMiddleware(s.Log)
	authed := func(h http.HandlerFunc) http.Handler {
		return logged(middleware.RequirePlayer(s.Auth)(h))
	}

	mux.Handle("POST /auth/guest", logged(http.HandlerFunc(s.GuestHandler)))

	mux.Handle("POST /lobby/create", authed(s.CreateRoomHandler))
	mux.Handle("GET /lobby/list", authed(s.ListRoomsHandler))
	mux.Handle("POST /lobby/join", authed(s.JoinRoomHandler))
	mux.Handle("POST /lobby/leave", authed(s.LeaveRoomHandler))

	mux.Handle("GET /match/active", authed(s.ActiveMatchHandler))
	mux.Handle("GET /match/history", authed(s.HistoryHandler))
	mux.Handle("GET /match/{id}/state", authed(s.StateHandler))
	mux.Handle("POST /match/{id}/move", authed(s.MoveHandler))
	mux.Handle("GET /match/{id}/hint", authed(s.HintHandler))
	mux.Handle("POST /match/{id}/leave", authed(s.LeaveMatchHandler))
	mux.Handle("POST /match/{id}/chat", authed(s.ChatHandler))
	mux.Handle("GET /match/ws/{id}", authed(s.MatchWSHandler))

	return mux
}

type errorBody struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// errorStatus maps domain errors to an HTTP status and a stable code.
func errorStatus(err error) (int, string) {
	var (
		illegal  *game.IllegalMoveError
		dup      *game.AlreadySubmittedError
		notFound *game.MatchNotFoundError
		notPart  *game.NotParticipantError
		stale    *game.StaleRoundError
		inv      *game.InvariantError
	)
	switch {
	case errors.As(err, &illegal):
		return http.StatusUnprocessableEntity, "illegal_move"
	case errors.As(err, &dup):
		return http.StatusConflict, "already_submitted"
	case errors.As(err, &stale):
		return http.StatusConflict, "stale_round"
	case errors.As(err, &notFound):
		return http.StatusNotFound, "match_not_found"
	case errors.As(err, &notPart):
		return http.StatusForbidden, "not_participant"
	case errors.Is(err, game.ErrMatchNotActive):
		return http.StatusConflict, "match_not_active"
	case errors.As(err, &inv), errors.Is(err, game.ErrNoMovesAvailable):
		return http.StatusInternalServerError, "internal"
	case errors.Is(err, lobby.ErrRoomNotFound):
		return http.StatusNotFound, "room_not_found"
	case errors.Is(err, lobby.ErrRoomNotWaiting):
		return http.StatusConflict, "room_not_waiting"
	case errors.Is(err, lobby.ErrAlreadyInRoom):
		return http.StatusConflict, "already_in_room"
	case errors.Is(err, lobby.ErrNotRoomHost):
		return http.StatusForbidden, "not_room_host"
	case errors.Is(err, lobby.ErrCodeSpaceExhausted), errors.Is(err, session.ErrEngineClosed):
		return http.StatusServiceUnavailable, "unavailable"
	case errors.Is(err, session.ErrNoHumanParticipant), errors.Is(err, session.ErrSamePlayer),
		errors.Is(err, session.ErrEmptyChat), errors.Is(err, session.ErrChatTooLong):
		return http.StatusBadRequest, "bad_request"
	}
	return http.StatusInternalServerError, "internal"
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError reports err to the caller. Internal faults are logged and their
// details withheld.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := errorStatus(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		s.Log.WithError(err).WithField("path", r.URL.Path).Error("request failed")
		msg = "internal server error"
	}
	writeJSON(w, status, errorBody{Error: msg, Code: code})
}

func badRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, errorBody{Error: msg, Code: "bad_request"})
}

// decodeBody reads a JSON body into v. An empty body leaves v untouched.
func decodeBody(r *http.Request, v any) error {
	err := json.NewDecoder(r.Body).Decode(v)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

// playerOf returns the player id RequirePlayer put on the request.
func playerOf(r *http.Request) uuid.UUID {
	id, _ := middleware.PlayerFrom(r.Context())
	return id
}

// matchIDOf parses the {id} path segment.
func matchIDOf(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		badRequest(w, "invalid match id")
		return uuid.Nil, false
	}
	return id, true
}
