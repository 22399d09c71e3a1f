package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/jrsteele09/go-surface-auth/handoff"
)

// HandoffIssueHandler sends the signed-in user to the redeem endpoint of another surface.
func (s *Server) HandoffIssueHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		surface := handoff.Surface(chi.URLParam(r, "surface"))
		current := CurrentIdentity(r.Context())

		raw, err := s.deps.Issuer.Issue(r.Context(), current.Identity(), surface)
		if err != nil {
			status, msg := issueErrorResponse(err)
			writeError(w, status, msg)
			return
		}

		target, _ := s.deps.Issuer.Target(surface)
		link, err := target.RedirectURL(raw)
		if err != nil {
			s.logger.Error().Err(err).Str("target", string(surface)).Msg("failed to build handoff redirect")
			writeError(w, http.StatusInternalServerError, msgInternal)
			return
		}
		http.Redirect(w, r, link, http.StatusSeeOther)
	}
}

// HandoffRedeemHandler is the entry point of this surface for tokens issued elsewhere.
func (s *Server) HandoffRedeemHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		raw := r.URL.Query().Get("token")
		session, err := s.deps.Redeemer.Redeem(r.Context(), raw, s.surface, sessionIDFromRequest(r))
		if err != nil {
			redirectWithError(w, r, s.config.GetLoginPath(), redeemErrorMessage(err))
			return
		}
		s.SetLoginSessionCookie(w, r, session.ID)
		redirectSuccess(w, r, s.config.GetLandingPath())
	}
}
