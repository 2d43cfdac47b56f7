// internal/handlers/api_server_test.go
package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/keremzytn/NumberFightAI/internal/ai"
	"github.com/keremzytn/NumberFightAI/internal/auth"
	"github.com/keremzytn/NumberFightAI/internal/game"
	"github.com/keremzytn/NumberFightAI/internal/lobby"
	"github.com/keremzytn/NumberFightAI/internal/middleware"
	"github.com/keremzytn/NumberFightAI/internal/models"
	"github.com/keremzytn/NumberFightAI/internal/session"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testServer struct {
	srv    *Server
	ts     *httptest.Server
	engine *session.Engine
	hook   *test.Hook
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	logger, hook := test.NewNullLogger()
	engine := session.NewEngine(game.NewMatchStore(), ai.NewPicker(7), nil, logger, session.Config{SubscriberBuffer: 64})
	authn, err := auth.New(0)
	require.NoError(t, err)
	manager := lobby.NewManager(engine, nil, logger, time.Minute)

	srv := NewServer(engine, manager, authn, nil, logger)
	ts := httptest.NewServer(srv.Routes())
	t.Cleanup(func() {
		engine.Close()
		manager.Close()
		ts.Close()
	})
	return &testServer{srv: srv, ts: ts, engine: engine, hook: hook}
}

// do sends a request with token as a bearer credential and returns the status
// and the raw body.
func (s *testServer) do(t *testing.T, method, path, token string, body any) (int, []byte) {
	t.Helper()
	var rd io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		require.NoError(t, err)
		rd = bytes.NewReader(buf)
	}
	req, err := http.NewRequest(method, s.ts.URL+path, rd)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := s.ts.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, data
}

// guest registers a fresh guest and returns its id and token.
func (s *testServer) guest(t *testing.T) (uuid.UUID, string) {
	t.Helper()
	status, body := s.do(t, http.MethodPost, "/auth/guest", "", nil)
	require.Equal(t, http.StatusOK, status, string(body))
	var res guestResponse
	require.NoError(t, json.Unmarshal(body, &res))
	require.NotEqual(t, uuid.Nil, res.PlayerID)
	require.NotEmpty(t, res.Token)
	return res.PlayerID, res.Token
}

func decode[T any](t *testing.T, body []byte) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(body, &v), string(body))
	return v
}

func TestGuestHandler(t *testing.T) {
	s := newTestServer(t)

	resp, err := s.ts.Client().Post(s.ts.URL+"/auth/guest", "application/json", nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var cookie *http.Cookie
	for _, c := range resp.Cookies() {
		if c.Name == middleware.CookieName {
			cookie = c
		}
	}
	require.NotNil(t, cookie, "auth cookie not set")
	assert.True(t, cookie.HttpOnly)

	var first guestResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&first))
	assert.Equal(t, cookie.Value, first.Token)

	playerID, err := s.srv.Auth.Verify(first.Token)
	require.NoError(t, err)
	assert.Equal(t, first.PlayerID, playerID)

	t.Run("existing token keeps identity", func(t *testing.T) {
		status, body := s.do(t, http.MethodPost, "/auth/guest", first.Token, nil)
		require.Equal(t, http.StatusOK, status)
		again := decode[guestResponse](t, body)
		assert.Equal(t, first.PlayerID, again.PlayerID)
	})

	t.Run("invalid token gets a new identity", func(t *testing.T) {
		status, body := s.do(t, http.MethodPost, "/auth/guest", "garbage", nil)
		require.Equal(t, http.StatusOK, status)
		fresh := decode[guestResponse](t, body)
		assert.NotEqual(t, first.PlayerID, fresh.PlayerID)
	})

	t.Run("cookie works as credential", func(t *testing.T) {
		req, err := http.NewRequest(http.MethodGet, s.ts.URL+"/lobby/list", nil)
		require.NoError(t, err)
		req.AddCookie(&http.Cookie{Name: middleware.CookieName, Value: first.Token})
		resp, err := s.ts.Client().Do(req)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})
}

func TestRoutesRequireToken(t *testing.T) {
	s := newTestServer(t)

	status, _ := s.do(t, http.MethodGet, "/lobby/list", "", nil)
	assert.Equal(t, http.StatusUnauthorized, status)

	status, _ = s.do(t, http.MethodGet, "/match/active", "not-a-token", nil)
	assert.Equal(t, http.StatusForbidden, status)
}

func TestErrorStatus(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"illegal", &game.IllegalMoveError{Card: 3, Reason: game.ReasonLocked}, http.StatusUnprocessableEntity, "illegal_move"},
		{"duplicate", &game.AlreadySubmittedError{Round: 1}, http.StatusConflict, "already_submitted"},
		{"stale", &game.StaleRoundError{Round: 1, Current: 2}, http.StatusConflict, "stale_round"},
		{"not found", &game.MatchNotFoundError{MatchID: uuid.New()}, http.StatusNotFound, "match_not_found"},
		{"not participant", &game.NotParticipantError{}, http.StatusForbidden, "not_participant"},
		{"not active", game.ErrMatchNotActive, http.StatusConflict, "match_not_active"},
		{"room", lobby.ErrRoomNotFound, http.StatusNotFound, "room_not_found"},
		{"host", lobby.ErrNotRoomHost, http.StatusForbidden, "not_room_host"},
		{"chat too long", session.ErrChatTooLong, http.StatusBadRequest, "bad_request"},
		{"closed", session.ErrEngineClosed, http.StatusServiceUnavailable, "unavailable"},
		{"wrapped", errors.Join(errors.New("context"), lobby.ErrAlreadyInRoom), http.StatusConflict, "already_in_room"},
		{"unknown", errors.New("boom"), http.StatusInternalServerError, "internal"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, code := errorStatus(tt.err)
			assert.Equal(t, tt.status, status)
			assert.Equal(t, tt.code, code)
		})
	}
}

type fakeHistory struct {
	player uuid.UUID
	limit  int
	list   []models.MatchSummary
}

func (f *fakeHistory) ListByPlayer(_ context.Context, playerID uuid.UUID, limit int) ([]models.MatchSummary, error) {
	f.player, f.limit = playerID, limit
	return f.list, nil
}

func TestHistoryHandler(t *testing.T) {
	s := newTestServer(t)
	player, token := s.guest(t)

	status, body := s.do(t, http.MethodGet, "/match/history", token, nil)
	assert.Equal(t, http.StatusNotImplemented, status)
	assert.Equal(t, "not_enabled", decode[errorBody](t, body).Code)

	h := &fakeHistory{}
	s.srv.History = h

	status, body = s.do(t, http.MethodGet, "/match/history", token, nil)
	require.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, "[]", string(body))
	assert.Equal(t, player, h.player)
	assert.Equal(t, defaultHistoryLimit, h.limit)

	status, _ = s.do(t, http.MethodGet, "/match/history?limit=500", token, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, maxHistoryLimit, h.limit)

	status, _ = s.do(t, http.MethodGet, "/match/history?limit=-1", token, nil)
	assert.Equal(t, http.StatusBadRequest, status)
}
