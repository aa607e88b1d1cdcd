package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/hackathon-leaderboard/internal/domain"
)

type contextKey string

const userContextKey contextKey = "user"

// UserFromContext returns the authenticated user stored by Authenticate
func UserFromContext(ctx context.Context) (domain.User, bool) {
	user, ok := ctx.Value(userContextKey).(domain.User)
	return user, ok
}

// Authenticate requires a valid bearer token and stores its user in the
// request context
func (h *Handler) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || strings.TrimSpace(token) == "" {
			h.writeError(w, http.StatusUnauthorized, domain.ErrUnauthorized)
			return
		}

		user, err := h.tokens.ValidateToken(strings.TrimSpace(token))
		if err != nil {
			h.logger.Debug("rejected session token", "error", err)
			h.writeError(w, http.StatusUnauthorized, domain.ErrUnauthorized)
			return
		}

		ctx := context.WithValue(r.Context(), userContextKey, *user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireAdmin rejects authenticated users without the admin role
func (h *Handler) RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, ok := UserFromContext(r.Context())
		if !ok {
			h.writeError(w, http.StatusUnauthorized, domain.ErrUnauthorized)
			return
		}
		if !user.IsAdmin() {
			h.writeError(w, http.StatusForbidden, domain.ErrPermissionDenied)
			return
		}
		next.ServeHTTP(w, r)
	})
}
