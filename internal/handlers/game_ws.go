// internal/handlers/game_ws.go
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/keremzytn/NumberFightAI/internal/game"
	"github.com/keremzytn/NumberFightAI/internal/middleware"
	"github.com/keremzytn/NumberFightAI/internal/session"
	"github.com/sirupsen/logrus"
)

const wsWriteTimeout = 5 * time.Second

// MatchMessage is an inbound WebSocket message: play_card, chat, leave, sync or ping.
type MatchMessage struct {
	Type    string    `json:"type"`
	Card    game.Card `json:"card,omitempty"`
	Round   int       `json:"round,omitempty"` // optional; pins play_card to a round
	Message string    `json:"message,omitempty"`
}

type syncStateMessage struct {
	Type  string        `json:"type"`
	State game.SlotView `json:"state"`
}

type wsErrorMessage struct {
	Type    string `json:"type"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type connKey struct {
	match, player uuid.UUID
}

// MatchWSHandler streams a match to one participant. The connection receives
// every engine event for the match plus private_sync_state snapshots of the
// caller's own view.
func (s *Server) MatchWSHandler(w http.ResponseWriter, r *http.Request) {
	matchID, ok := matchIDOf(w, r)
	if !ok {
		return
	}
	player := playerOf(r)

	// Subscribing first lets unknown matches and strangers get a plain HTTP error.
	sub, err := s.Engine.Subscribe(matchID, player)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	defer sub.Close()

	c, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		Subprotocols:   []string{MatchSubprotocol},
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		s.Log.WithError(err).WithField("match_id", matchID).Warn("websocket accept failed")
		return
	}
	defer c.Close(websocket.StatusInternalError, "internal server error during handler exit")

	if c.Subprotocol() != MatchSubprotocol {
		c.Close(BadSubprotocolError, "client must use the 'duel' subprotocol")
		return
	}

	log := s.Log.WithFields(logrus.Fields{"match_id": matchID, "player_id": player})
	middleware.LogWebSocketConnect(s.Log, r.RemoteAddr, r.URL.Path)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	key := connKey{match: matchID, player: player}
	s.trackConn(key)
	view, err := s.Engine.HandleReconnect(matchID, player)
	if err != nil {
		s.releaseConn(key)
		s.sendWsError(ctx, c, err)
		return
	}
	s.sendWsMessage(ctx, c, syncStateMessage{Type: "private_sync_state", State: view})

	go s.pumpEvents(ctx, cancel, c, sub)

	readErr := s.readMatchMessages(ctx, c, matchID, player, log)

	if s.releaseConn(key) {
		if err := s.Engine.HandleDisconnect(matchID, player); err != nil {
			log.WithError(err).Debug("disconnect not recorded")
		}
	}
	middleware.LogWebSocketDisconnect(s.Log, r.RemoteAddr, r.URL.Path, readErr)
}

// pumpEvents forwards subscription events until the subscription ends, then
// closes the socket.
func (s *Server) pumpEvents(ctx context.Context, cancel context.CancelFunc, c *websocket.Conn, sub *session.Subscription) {
	defer cancel()
	for ev := range sub.Events {
		s.sendWsMessage(ctx, c, ev)
	}
	if ctx.Err() == nil {
		c.Close(StreamClosedCode, "match stream closed")
	}
}

// readMatchMessages reads client messages until the connection or ctx ends.
// It returns nil on an orderly close.
func (s *Server) readMatchMessages(ctx context.Context, c *websocket.Conn, matchID, player uuid.UUID, log logrus.FieldLogger) error {
	for {
		msgType, data, err := c.Read(ctx)
		if err != nil {
			status := websocket.CloseStatus(err)
			if status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway || ctx.Err() != nil {
				return nil
			}
			return err
		}
		if msgType != websocket.MessageText {
			log.Warnf("ignoring non-text message type %d", msgType)
			continue
		}

		var msg MatchMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			s.sendWsMessage(ctx, c, wsErrorMessage{Type: "error", Code: "bad_request", Message: "invalid JSON format"})
			continue
		}
		log.Debugf("received %s", msg.Type)

		switch msg.Type {
		case "play_card":
			res, err := s.Engine.SubmitMoveAt(matchID, player, msg.Round, msg.Card)
			if err != nil {
				s.sendWsError(ctx, c, err)
				continue
			}
			s.sendWsMessage(ctx, c, syncStateMessage{Type: "private_sync_state", State: res.View})

		case "chat":
			if _, err := s.Engine.SendChat(matchID, player, msg.Message); err != nil {
				s.sendWsError(ctx, c, err)
			}

		case "leave":
			// The abandon event closes the stream once it is delivered.
			if err := s.Engine.Leave(matchID, player); err != nil {
				s.sendWsError(ctx, c, err)
			}

		case "sync":
			view, err := s.Engine.GetState(matchID, player)
			if err != nil {
				s.sendWsError(ctx, c, err)
				continue
			}
			s.sendWsMessage(ctx, c, syncStateMessage{Type: "private_sync_state", State: view})

		case "ping":
			s.sendWsMessage(ctx, c, map[string]string{"type": "pong"})

		default:
			s.sendWsMessage(ctx, c, wsErrorMessage{Type: "error", Code: "unknown_type", Message: "unknown message type: " + msg.Type})
		}
	}
}

// sendWsMessage marshals a message and writes it with a timeout.
func (s *Server) sendWsMessage(ctx context.Context, c *websocket.Conn, message any) {
	msgBytes, err := json.Marshal(message)
	if err != nil {
		s.Log.WithError(err).Error("failed to marshal websocket message")
		return
	}

	writeCtx, cancel := context.WithTimeout(ctx, wsWriteTimeout)
	defer cancel()
	if err := c.Write(writeCtx, websocket.MessageText, msgBytes); err != nil {
		status := websocket.CloseStatus(err)
		if status != websocket.StatusNormalClosure && status != websocket.StatusGoingAway && !errors.Is(err, context.Canceled) {
			s.Log.WithError(err).Debug("websocket write failed")
		}
	}
}

// sendWsError reports a rejected request to the caller only.
func (s *Server) sendWsError(ctx context.Context, c *websocket.Conn, err error) {
	status, code := errorStatus(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		s.Log.WithError(err).Error("websocket request failed")
		msg = "internal server error"
	}
	s.sendWsMessage(ctx, c, wsErrorMessage{Type: "error", Code: code, Message: msg})
}

func (s *Server) trackConn(key connKey) {
	s.connMu.Lock()
	defer s.connMu.Unlock()
	if s.conns == nil {
		s.conns = make(map[connKey]int)
	}
	s.conns[key]++
}

// releaseConn drops one connection and reports whether it was the player's last.
func (s *Server) releaseConn(key connKey) bool {
	s.connMu.Lock()
	defer s.connMu.Unlock()
	s.conns[key]--
	if s.conns[key] > 0 {
		return false
	}
	delete(s.conns, key)
	return true
}
