// internal/handlers/game_ws_test.go
package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/keremzytn/NumberFightAI/internal/game"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// wsFrame covers every outbound message shape closely enough for assertions.
type wsFrame struct {
	Type    string         `json:"type"`
	Code    string         `json:"code"`
	Round   int            `json:"round"`
	Cards   *[2]game.Card  `json:"cards"`
	State   *game.SlotView `json:"state"`
	Slot    *game.SlotID   `json:"slot"`
	Message string         `json:"message"`
	Reason  string         `json:"reason"`
}

func (s *testServer) dialMatch(ctx context.Context, t *testing.T, matchID uuid.UUID, token string, subprotocols ...string) (*websocket.Conn, *http.Response, error) {
	t.Helper()
	u := "ws" + strings.TrimPrefix(s.ts.URL, "http") + "/match/ws/" + matchID.String()
	return websocket.Dial(ctx, u, &websocket.DialOptions{
		HTTPHeader:   http.Header{"Authorization": {"Bearer " + token}},
		Subprotocols: subprotocols,
	})
}

func readFrame(ctx context.Context, t *testing.T, c *websocket.Conn) wsFrame {
	t.Helper()
	_, data, err := c.Read(ctx)
	require.NoError(t, err)
	var f wsFrame
	require.NoError(t, json.Unmarshal(data, &f), string(data))
	return f
}

func writeFrame(ctx context.Context, t *testing.T, c *websocket.Conn, msg MatchMessage) {
	t.Helper()
	data, err := json.Marshal(msg)
	require.NoError(t, err)
	require.NoError(t, c.Write(ctx, websocket.MessageText, data))
}

// readUntil collects frames until every wanted type has been seen.
func readUntil(ctx context.Context, t *testing.T, c *websocket.Conn, want ...string) map[string]wsFrame {
	t.Helper()
	seen := make(map[string]wsFrame)
	for {
		missing := false
		for _, w := range want {
			if _, ok := seen[w]; !ok {
				missing = true
			}
		}
		if !missing {
			return seen
		}
		f := readFrame(ctx, t, c)
		seen[f.Type] = f
	}
}

func TestMatchWebSocketPlay(t *testing.T) {
	s := newTestServer(t)
	matchID, token := s.startAIMatch(t, "easy")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	c, _, err := s.dialMatch(ctx, t, matchID, token, MatchSubprotocol)
	require.NoError(t, err)
	defer c.Close(websocket.StatusNormalClosure, "")

	first := readFrame(ctx, t, c)
	require.Equal(t, "private_sync_state", first.Type)
	require.NotNil(t, first.State)
	assert.Equal(t, 1, first.State.Round)
	assert.Equal(t, game.FullHand, first.State.Hand)

	writeFrame(ctx, t, c, MatchMessage{Type: "ping"})
	readUntil(ctx, t, c, "pong")

	writeFrame(ctx, t, c, MatchMessage{Type: "play_card", Card: 4, Round: 1})
	seen := readUntil(ctx, t, c, "round_resolved", "private_sync_state")
	resolved := seen["round_resolved"]
	assert.Equal(t, 1, resolved.Round)
	require.NotNil(t, resolved.Cards)
	assert.Equal(t, game.Card(4), resolved.Cards[0])

	// The move reply and the event stream race; sync returns the settled view.
	writeFrame(ctx, t, c, MatchMessage{Type: "sync"})
	var synced wsFrame
	for synced.State == nil || synced.State.Round != 2 {
		synced = readUntil(ctx, t, c, "private_sync_state")["private_sync_state"]
	}
	assert.Equal(t, []game.Card{3, 5}, synced.State.Locked.Cards())

	writeFrame(ctx, t, c, MatchMessage{Type: "play_card", Card: 3})
	errFrame := readUntil(ctx, t, c, "error")["error"]
	assert.Equal(t, "illegal_move", errFrame.Code)

	writeFrame(ctx, t, c, MatchMessage{Type: "shuffle"})
	errFrame = readUntil(ctx, t, c, "error")["error"]
	assert.Equal(t, "unknown_type", errFrame.Code)
}

func TestMatchWebSocketDisconnect(t *testing.T) {
	s := newTestServer(t)
	matchID, hostToken, _ := s.startDuel(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	first, _, err := s.dialMatch(ctx, t, matchID, hostToken, MatchSubprotocol)
	require.NoError(t, err)
	readFrame(ctx, t, first)

	second, _, err := s.dialMatch(ctx, t, matchID, hostToken, MatchSubprotocol)
	require.NoError(t, err)
	readFrame(ctx, t, second)

	connected := func() bool {
		m, err := s.engine.Match(matchID)
		require.NoError(t, err)
		return m.Slots[game.SlotA].Connected
	}

	// Closing one of two sockets keeps the player connected.
	require.NoError(t, first.Close(websocket.StatusNormalClosure, ""))
	time.Sleep(50 * time.Millisecond)
	assert.True(t, connected())

	require.NoError(t, second.Close(websocket.StatusNormalClosure, ""))
	assert.Eventually(t, func() bool { return !connected() }, 2*time.Second, 10*time.Millisecond)

	// Reconnecting restores the flag and resends the private view.
	again, _, err := s.dialMatch(ctx, t, matchID, hostToken, MatchSubprotocol)
	require.NoError(t, err)
	defer again.Close(websocket.StatusNormalClosure, "")
	f := readFrame(ctx, t, again)
	require.Equal(t, "private_sync_state", f.Type)
	assert.True(t, connected())
}

func TestMatchWebSocketRejects(t *testing.T) {
	s := newTestServer(t)
	matchID, token := s.startAIMatch(t, "easy")
	_, strangerToken := s.guest(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	t.Run("stranger gets 403 before upgrade", func(t *testing.T) {
		_, resp, err := s.dialMatch(ctx, t, matchID, strangerToken, MatchSubprotocol)
		require.Error(t, err)
		require.NotNil(t, resp)
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	})

	t.Run("unknown match gets 404", func(t *testing.T) {
		_, resp, err := s.dialMatch(ctx, t, uuid.New(), token, MatchSubprotocol)
		require.Error(t, err)
		require.NotNil(t, resp)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})

	t.Run("missing subprotocol is closed", func(t *testing.T) {
		c, _, err := s.dialMatch(ctx, t, matchID, token)
		require.NoError(t, err)
		_, _, err = c.Read(ctx)
		require.Error(t, err)
		assert.Equal(t, BadSubprotocolError, websocket.CloseStatus(err))
	})
}

func TestMatchWebSocketStreamClosed(t *testing.T) {
	s := newTestServer(t)
	matchID, token := s.startAIMatch(t, "easy")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	c, _, err := s.dialMatch(ctx, t, matchID, token, MatchSubprotocol)
	require.NoError(t, err)
	readFrame(ctx, t, c)

	require.NoError(t, s.engine.Abandon(matchID))

	// The abandon event arrives, then the server closes the stream.
	f := readFrame(ctx, t, c)
	assert.Equal(t, "match_abandoned", f.Type)
	_, _, err = c.Read(ctx)
	require.Error(t, err)
	assert.Equal(t, StreamClosedCode, websocket.CloseStatus(err))
}

func TestMatchWebSocketChatAndLeave(t *testing.T) {
	s := newTestServer(t)
	matchID, hostToken, joinerToken := s.startDuel(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	host, _, err := s.dialMatch(ctx, t, matchID, hostToken, MatchSubprotocol)
	require.NoError(t, err)
	defer host.Close(websocket.StatusNormalClosure, "")
	readFrame(ctx, t, host)

	joiner, _, err := s.dialMatch(ctx, t, matchID, joinerToken, MatchSubprotocol)
	require.NoError(t, err)
	defer joiner.Close(websocket.StatusNormalClosure, "")
	readFrame(ctx, t, joiner)

	writeFrame(ctx, t, host, MatchMessage{Type: "chat", Message: "have fun"})
	for _, c := range []*websocket.Conn{host, joiner} {
		f := readUntil(ctx, t, c, "chat_message")["chat_message"]
		assert.Equal(t, "have fun", f.Message)
		require.NotNil(t, f.Slot)
		assert.Equal(t, game.SlotA, *f.Slot)
	}

	writeFrame(ctx, t, host, MatchMessage{Type: "chat", Message: strings.Repeat("y", 201)})
	errFrame := readUntil(ctx, t, host, "error")["error"]
	assert.Equal(t, "bad_request", errFrame.Code)

	writeFrame(ctx, t, joiner, MatchMessage{Type: "leave"})
	abandoned := readUntil(ctx, t, host, "match_abandoned")["match_abandoned"]
	require.NotNil(t, abandoned.Slot)
	assert.Equal(t, game.SlotB, *abandoned.Slot)
	assert.Equal(t, "slot b left the match", abandoned.Reason)

	_, _, err = host.Read(ctx)
	require.Error(t, err)
	assert.Equal(t, StreamClosedCode, websocket.CloseStatus(err))
}
