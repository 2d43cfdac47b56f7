// internal/middleware/auth.go
package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"
)

// CookieName is the cookie that carries the player token.
const CookieName = "auth_token"

// TokenVerifier turns a token into a player id. *auth.Authenticator implements it.
type TokenVerifier interface {
	Verify(token string) (uuid.UUID, error)
}

type playerKey struct{}

// WithPlayer stores the authenticated player id on ctx.
func WithPlayer(ctx context.Context, playerID uuid.UUID) context.Context {
	return context.WithValue(ctx, playerKey{}, playerID)
}

// PlayerFrom returns the player id stored by RequirePlayer.
func PlayerFrom(ctx context.Context) (uuid.UUID, bool) {
	id, ok := ctx.Value(playerKey{}).(uuid.UUID)
	return id, ok
}

// TokenFrom extracts the player token from the auth_token cookie or an
// Authorization: Bearer header.
func TokenFrom(r *http.Request) string {
	if c, err := r.Cookie(CookieName); err == nil && c.Value != "" {
		return c.Value
	}
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
	}
	return ""
}

// RequirePlayer rejects requests without a valid token and puts the player id
// on the request context.
func RequirePlayer(v TokenVerifier) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := TokenFrom(r)
			if token == "" {
				http.Error(w, "missing auth_token", http.StatusUnauthorized)
				return
			}
			playerID, err := v.Verify(token)
			if err != nil {
				http.Error(w, "invalid token", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithPlayer(r.Context(), playerID)))
		})
	}
}
