package sessions

import "errors"

var (
	ErrNoSession        = errors.New("no authenticated session")
	ErrSessionExpired   = errors.New("session expired")
	ErrInsufficientRole = errors.New("insufficient role")
)
