package server

import (
	"errors"
	"net/http"

	"github.com/jrsteele09/go-surface-auth/auth"
	"github.com/jrsteele09/go-surface-auth/handoff"
	"github.com/jrsteele09/go-surface-auth/sessions"
)

// Public messages. Nothing more specific is ever sent to the client.
const (
	msgInvalidCredentials = "invalid login or password"
	msgUnknownLogin       = "unknown login"
	msgLockedOut          = "too many failed attempts, try again later"
	msgUnavailable        = "authentication temporarily unavailable"
	msgSignInRequired     = "please sign in"
	msgSessionExpired     = "your session has expired, please sign in again"
	msgForbidden          = "you do not have permission to do that"
	msgHandoffInvalid     = "sign-in link is invalid or has expired"
	msgHandoffNoAccount   = "you have no account on that surface"
	msgHandoffNotAllowed  = "you can not switch to that surface"
	msgUnknownSurface     = "unknown surface"
	msgTooManyRequests    = "too many requests"
	msgBadRequest         = "login and password are required"
	msgInternal           = "internal error"
)

// loginErrorResponse maps a Verifier error to a status and public message. Unknown logins are
// only named when revealUnknown is set; inactive accounts are never named.
func loginErrorResponse(err error, revealUnknown bool) (int, string) {
	switch {
	case errors.Is(err, auth.ErrLockedOut):
		return http.StatusTooManyRequests, msgLockedOut
	case errors.Is(err, auth.ErrUnavailable):
		return http.StatusServiceUnavailable, msgUnavailable
	case revealUnknown && errors.Is(err, auth.ErrUnknownLogin):
		return http.StatusUnauthorized, msgUnknownLogin
	case errors.Is(err, auth.ErrInvalidCredentials):
		return http.StatusUnauthorized, msgInvalidCredentials
	default:
		return http.StatusInternalServerError, msgInternal
	}
}

func sessionErrorResponse(err error) (int, string) {
	switch {
	case errors.Is(err, sessions.ErrInsufficientRole):
		return http.StatusForbidden, msgForbidden
	case errors.Is(err, sessions.ErrSessionExpired):
		return http.StatusUnauthorized, msgSessionExpired
	case errors.Is(err, sessions.ErrNoSession):
		return http.StatusUnauthorized, msgSignInRequired
	default:
		return http.StatusServiceUnavailable, msgUnavailable
	}
}

// issueErrorResponse maps Issuer errors. The issuing user is already authenticated so the
// reason may be shown.
func issueErrorResponse(err error) (int, string) {
	switch {
	case errors.Is(err, handoff.ErrUnknownSurface):
		return http.StatusNotFound, msgUnknownSurface
	case errors.Is(err, handoff.ErrNotEligible), errors.Is(err, handoff.ErrTargetAccountInsufficientRole):
		return http.StatusForbidden, msgHandoffNotAllowed
	case errors.Is(err, handoff.ErrNoCorrespondingAccount):
		return http.StatusConflict, msgHandoffNoAccount
	case errors.Is(err, handoff.ErrUnavailable):
		return http.StatusServiceUnavailable, msgUnavailable
	default:
		return http.StatusInternalServerError, msgInternal
	}
}

// redeemErrorMessage collapses every token failure into one message.
func redeemErrorMessage(err error) string {
	if errors.Is(err, handoff.ErrUnavailable) {
		return msgUnavailable
	}
	return msgHandoffInvalid
}
