package server

import (
	"context"
	"errors"
	"net/http"

	"github.com/jrsteele09/go-surface-auth/sessions"
	"github.com/jrsteele09/go-surface-auth/users"
)

// ContextKey is a custom type for context keys to avoid collisions
type ContextKey string

// ContextKeySession stores the resumed *sessions.Session
const ContextKeySession ContextKey = "session"

// CurrentIdentity returns the authenticated session of the request, or nil when anonymous.
func CurrentIdentity(ctx context.Context) *sessions.Session {
	s, _ := ctx.Value(ContextKeySession).(*sessions.Session)
	return s
}

// LoadSession resumes the session named by the cookie, if any. Expired or unknown sessions
// leave the request anonymous and clear the cookie.
func (s *Server) LoadSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := sessionIDFromRequest(r)
		if id == "" {
			next.ServeHTTP(w, r)
			return
		}

		session, err := s.deps.Sessions.Resume(r.Context(), id)
		switch {
		case errors.Is(err, sessions.ErrNoSession), errors.Is(err, sessions.ErrSessionExpired):
			s.clearSessionCookie(w, r)
			next.ServeHTTP(w, r)
			return
		case err != nil:
			s.logger.Error().Err(err).Msg("failed to resume session")
			writeError(w, http.StatusServiceUnavailable, msgUnavailable)
			return
		}

		ctx := context.WithValue(r.Context(), ContextKeySession, session)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireAuthenticated redirects anonymous requests to the login page.
func (s *Server) RequireAuthenticated() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if CurrentIdentity(r.Context()) == nil {
				redirectWithError(w, r, s.config.GetLoginPath(), msgSignInRequired)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireRole answers 403 unless the session role satisfies min. Anonymous requests are sent to
// the login page as with RequireAuthenticated.
func (s *Server) RequireRole(min users.RoleType) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			current := CurrentIdentity(r.Context())
			if current == nil {
				redirectWithError(w, r, s.config.GetLoginPath(), msgSignInRequired)
				return
			}
			if err := s.deps.Sessions.RequireRole(current, min); err != nil {
				status, msg := sessionErrorResponse(err)
				writeError(w, status, msg)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
