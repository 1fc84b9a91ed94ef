package middleware

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/pathpal/pathpal/session"
)

// LoadSession attaches the request's session to the context, creating one
// on first contact, and saves it after the handler when it was changed.
func LoadSession(manager *session.Manager, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sess, err := manager.GetOrCreate(w, r)
			if err != nil {
				logger.Error("session load failed", "error", err)
				writeJSONError(w, http.StatusInternalServerError, "Internal server error")
				return
			}

			ctx := context.WithValue(r.Context(), sessionContextKey{}, sess)
			next.ServeHTTP(w, r.WithContext(ctx))

			if err := manager.Save(r.Context(), sess); err != nil {
				logger.Error("session save failed", "sid", sess.SID, "error", err)
			}
		})
	}
}

// RequireAuth rejects requests whose session carries no principal.
func RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess, ok := SessionFromContext(r.Context())
		if !ok || sess.Principal == nil {
			writeJSONError(w, http.StatusUnauthorized, "Authentication required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireAdmin rejects sessions that are not administrators. Wrap inside
// RequireAuth-protected chains only.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess, ok := SessionFromContext(r.Context())
		if !ok || sess.Principal == nil {
			writeJSONError(w, http.StatusUnauthorized, "Authentication required")
			return
		}
		if !sess.IsAdmin() {
			writeJSONError(w, http.StatusForbidden, "Admin access required")
			return
		}
		next.ServeHTTP(w, r)
	})
}
