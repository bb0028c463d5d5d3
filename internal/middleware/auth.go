package middleware

import (
	"log/slog"
	"net/http"
	"strings"

	"evalreport/internal/auth"
	"evalreport/internal/config"
	apperrors "evalreport/internal/errors"
)

// SessionLookup resolves a session token.
type SessionLookup interface {
	Get(token string) (*auth.Session, bool)
}

// SessionToken returns the token carried by the session cookie or, failing
// that, a Bearer Authorization header.
func SessionToken(r *http.Request) string {
	if c, err := r.Cookie(config.SessionCookieName); err == nil && c.Value != "" {
		return c.Value
	}
	header := r.Header.Get("Authorization")
	scheme, token, ok := strings.Cut(header, " ")
	if ok && strings.EqualFold(scheme, "bearer") {
		return strings.TrimSpace(token)
	}
	return ""
}

// RequireSession rejects requests without a live session and stores the
// session in the request context.
func RequireSession(sessions SessionLookup, logger *slog.Logger, errorHandler *apperrors.ErrorHandler) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			token := SessionToken(r)
			if token == "" {
				errorHandler.HandleError(w, r, apperrors.ErrUnauthorized)
				return
			}
			session, ok := sessions.Get(token)
			if !ok {
				logger.InfoContext(ctx, "rejected unknown or expired session",
					"path", r.URL.Path,
					"remote_addr", r.RemoteAddr,
				)
				errorHandler.HandleError(w, r, apperrors.ErrUnauthorized)
				return
			}

			next.ServeHTTP(w, r.WithContext(auth.WithSession(ctx, session)))
		})
	}
}

// RequireAdmin lets only admin sessions through. It must run after
// RequireSession.
func RequireAdmin(logger *slog.Logger, errorHandler *apperrors.ErrorHandler) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			session, ok := auth.SessionFromContext(r.Context())
			if !ok || !session.CanViewAllStores() {
				username := ""
				if session != nil {
					username = session.Username
				}
				logger.WarnContext(r.Context(), "admin route denied",
					"path", r.URL.Path,
					"username", username,
				)
				errorHandler.HandleError(w, r, apperrors.ErrForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
