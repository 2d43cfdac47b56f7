// internal/handlers/user.go
package handlers

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/keremzytn/NumberFightAI/internal/middleware"
)

type guestResponse struct {
	PlayerID uuid.UUID `json:"playerId"`
	Token    string    `json:"token"`
}

// GuestHandler issues a player identity. A caller that already holds a valid
// token keeps its player id; anyone else gets a fresh one.
func (s *Server) GuestHandler(w http.ResponseWriter, r *http.Request) {
	if token := middleware.TokenFrom(r); token != "" {
		if playerID, err := s.Auth.Verify(token); err == nil {
			writeJSON(w, http.StatusOK, guestResponse{PlayerID: playerID, Token: token})
			return
		}
	}

	playerID := uuid.New()
	token, err := s.Auth.Issue(playerID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.CookieName,
		Value:    token,
		HttpOnly: true,
		Path:     "/",
		SameSite: http.SameSiteLaxMode,
	})
	s.Log.WithField("player_id", playerID).Info("guest identity issued")
	writeJSON(w, http.StatusOK, guestResponse{PlayerID: playerID, Token: token})
}
