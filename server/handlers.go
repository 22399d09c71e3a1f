package server

import (
	"encoding/json"
	"io"
	"mime"
	"net/http"
	"time"

	"github.com/jrsteele09/go-surface-auth/internal/logging"
	"github.com/jrsteele09/go-surface-auth/sessions"
	"github.com/jrsteele09/go-surface-auth/users"
)

type loginRequest struct {
	Login    string `json:"login"`
	Password string `json:"password"`
}

type identityResponse struct {
	ID          int64          `json:"id"`
	LoginName   string         `json:"login_name"`
	DisplayName string         `json:"display_name"`
	Role        users.RoleType `json:"role"`
	Surface     string         `json:"surface"`
	Origin      string         `json:"origin"`
	SignedInAt  time.Time      `json:"signed_in_at"`
}

func (s *Server) identity(session *sessions.Session) identityResponse {
	return identityResponse{
		ID:          session.UserID,
		LoginName:   session.LoginName,
		DisplayName: session.DisplayName,
		Role:        session.Role,
		Surface:     string(s.surface),
		Origin:      string(session.Origin),
		SignedInAt:  session.CreatedAt,
	}
}

func parseLoginRequest(r *http.Request) (loginRequest, bool) {
	var req loginRequest
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "application/json" {
		if err := json.NewDecoder(io.LimitReader(r.Body, 1<<14)).Decode(&req); err != nil {
			return req, false
		}
	} else {
		if err := r.ParseForm(); err != nil {
			return req, false
		}
		req.Login = r.PostFormValue("login")
		req.Password = r.PostFormValue("password")
	}
	return req, req.Login != "" && req.Password != ""
}

func (s *Server) LoginHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req, ok := parseLoginRequest(r)
		if !ok {
			writeError(w, http.StatusBadRequest, msgBadRequest)
			return
		}

		user, err := s.deps.Verifier.Authenticate(r.Context(), req.Login, req.Password, clientAddress(r))
		if err != nil {
			status, msg := loginErrorResponse(err, s.config.GetRevealUnknownLogin())
			writeError(w, status, msg)
			return
		}

		session, err := s.deps.Sessions.Establish(r.Context(), sessionIDFromRequest(r), user, sessions.OriginDirect)
		if err != nil {
			s.logger.Error().Err(err).Str("login", logging.MaskLogin(user.LoginName)).Msg("failed to establish session")
			writeError(w, http.StatusServiceUnavailable, msgUnavailable)
			return
		}

		s.SetLoginSessionCookie(w, r, session.ID)
		writeJSON(w, http.StatusOK, s.identity(session))
	}
}

func (s *Server) LogoutHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := s.deps.Sessions.Logout(r.Context(), sessionIDFromRequest(r)); err != nil {
			s.logger.Error().Err(err).Msg("failed to delete session on logout")
		}
		s.clearSessionCookie(w, r)
		redirectSuccess(w, r, "/")
	}
}

func (s *Server) MeHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, s.identity(CurrentIdentity(r.Context())))
	}
}

func (s *Server) AdminStatusHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"surface":              s.surface,
			"replay_guard":         s.config.GetReplayGuard(),
			"session_idle_timeout": s.deps.Sessions.IdleTimeout().String(),
			"lockout_threshold":    s.config.GetLockoutThreshold(),
			"lockout_window":       s.config.GetLockoutWindow().String(),
		})
	}
}

func (s *Server) HealthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "surface": string(s.surface)})
	}
}

