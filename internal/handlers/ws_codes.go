// internal/handlers/ws_codes.go
package handlers

import "github.com/coder/websocket"

// Custom WebSocket close codes used by the match handler.
const (
	BadSubprotocolError websocket.StatusCode = 3000 // Client connected without the "duel" subprotocol.
	StreamClosedCode    websocket.StatusCode = 3001 // The match was evicted or the server is shutting down.
)

// MatchSubprotocol is the only subprotocol the match socket speaks.
const MatchSubprotocol = "duel"
