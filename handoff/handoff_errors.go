package handoff

import (
	"errors"
	"fmt"
)

// ErrHandoffFailed is wrapped by every handoff error. Redemption failures are presented to the
// user as one generic message whatever the cause.
var ErrHandoffFailed = errors.New("handoff failed")

// Issuing side.
var (
	ErrUnknownSurface                = fmt.Errorf("%w: unknown surface", ErrHandoffFailed)
	ErrNotEligible                   = fmt.Errorf("%w: role not eligible for target surface", ErrHandoffFailed)
	ErrNoCorrespondingAccount        = fmt.Errorf("%w: no corresponding account", ErrHandoffFailed)
	ErrTargetAccountInsufficientRole = fmt.Errorf("%w: target account role not permitted", ErrHandoffFailed)
)

// Redeeming side.
var (
	ErrInvalid          = fmt.Errorf("%w: invalid token", ErrHandoffFailed)
	ErrWrongAudience    = fmt.Errorf("%w: wrong audience", ErrHandoffFailed)
	ErrExpired          = fmt.Errorf("%w: token expired", ErrHandoffFailed)
	ErrInactiveAccount  = fmt.Errorf("%w: account inactive", ErrHandoffFailed)
	ErrInsufficientRole = fmt.Errorf("%w: insufficient role", ErrHandoffFailed)
	ErrReplayed         = fmt.Errorf("%w: token already used", ErrHandoffFailed)
	ErrUnavailable      = fmt.Errorf("%w: store unavailable", ErrHandoffFailed)
)

// reason is a short label for metrics and logs.
func reason(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrUnknownSurface):
		return "unknown_surface"
	case errors.Is(err, ErrNotEligible):
		return "not_eligible"
	case errors.Is(err, ErrNoCorrespondingAccount):
		return "no_account"
	case errors.Is(err, ErrTargetAccountInsufficientRole), errors.Is(err, ErrInsufficientRole):
		return "insufficient_role"
	case errors.Is(err, ErrInvalid):
		return "invalid"
	case errors.Is(err, ErrWrongAudience):
		return "wrong_audience"
	case errors.Is(err, ErrExpired):
		return "expired"
	case errors.Is(err, ErrInactiveAccount):
		return "inactive"
	case errors.Is(err, ErrReplayed):
		return "replayed"
	case errors.Is(err, ErrUnavailable):
		return "unavailable"
	default:
		return "error"
	}
}
