package auth

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidCredentials is the single outward failure for bad logins. The more specific
	// errors below wrap it so callers that only test for it never leak which case occurred.
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUnknownLogin       = fmt.Errorf("%w: unknown login", ErrInvalidCredentials)
	ErrInactiveAccount    = fmt.Errorf("%w: account inactive", ErrInvalidCredentials)
	ErrLockedOut          = errors.New("too many failed attempts")
	ErrUnavailable        = errors.New("credential store unavailable")
)
