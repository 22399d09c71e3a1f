package token

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidToken is the only decode failure callers should present outward.
	ErrInvalidToken      = errors.New("invalid token")
	ErrMalformed         = fmt.Errorf("%w: malformed", ErrInvalidToken)
	ErrSignatureMismatch = fmt.Errorf("%w: signature mismatch", ErrInvalidToken)
	ErrSecretTooShort    = errors.New("signing secret too short")
)
