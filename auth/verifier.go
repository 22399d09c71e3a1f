package auth

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jrsteele09/go-surface-auth/internal/logging"
	"github.com/jrsteele09/go-surface-auth/internal/metrics"
	"github.com/jrsteele09/go-surface-auth/lockout"
	"github.com/jrsteele09/go-surface-auth/users"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"
)

const defaultStoreTimeout = 3 * time.Second

// dummyHash is compared against when no usable account exists so unknown and inactive logins
// take roughly as long as a wrong password.
var (
	dummyHash     []byte
	dummyHashOnce sync.Once
)

func equalizeTiming(secret string) {
	dummyHashOnce.Do(func() {
		dummyHash, _ = bcrypt.GenerateFromPassword([]byte("surface-auth-timing-equalizer"), bcrypt.DefaultCost)
	})
	_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(secret))
}

// Verifier checks login credentials against one surface's credential store, consulting the
// lockout guard before and after each attempt.
type Verifier struct {
	users        users.UserRepo
	guard        *lockout.Guard
	storeTimeout time.Duration
	logger       zerolog.Logger
	metrics      *metrics.Metrics
	reveal       bool
}

// VerifierOption defines a function type to modify the Verifier instance.
type VerifierOption func(*Verifier)

func WithStoreTimeout(timeout time.Duration) VerifierOption {
	return func(v *Verifier) {
		v.storeTimeout = timeout
	}
}

func WithLogger(logger zerolog.Logger) VerifierOption {
	return func(v *Verifier) {
		v.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) VerifierOption {
	return func(v *Verifier) {
		v.metrics = m
	}
}

// WithRevealUnknownLogin makes logs distinguish unknown and inactive identifiers from wrong
// secrets. Off by default.
func WithRevealUnknownLogin(reveal bool) VerifierOption {
	return func(v *Verifier) {
		v.reveal = reveal
	}
}

func NewVerifier(userRepo users.UserRepo, guard *lockout.Guard, options ...VerifierOption) (*Verifier, error) {
	if userRepo == nil {
		return nil, errors.New("[NewVerifier] Users repo is required")
	}
	if guard == nil {
		return nil, errors.New("[NewVerifier] lockout guard is required")
	}

	v := &Verifier{
		users:        userRepo,
		guard:        guard,
		storeTimeout: defaultStoreTimeout,
		logger:       log.Logger,
	}
	for _, opt := range options {
		opt(v)
	}
	return v, nil
}

// Authenticate resolves loginName to an active account whose stored hash matches secret.
//
// Errors:
//   - ErrLockedOut: the identifier is locked; the secret is not checked and no failure is recorded.
//   - ErrUnavailable: the credential store could not be reached; no failure is recorded.
//   - ErrInvalidCredentials (or ErrUnknownLogin / ErrInactiveAccount, which wrap it).
func (v *Verifier) Authenticate(ctx context.Context, loginName, secret, sourceAddress string) (*users.User, error) {
	key := users.NormalizeLogin(loginName)
	logger := v.logger.With().Str("login", logging.MaskLogin(key)).Str("source", sourceAddress).Logger()

	if key == "" {
		equalizeTiming(secret)
		v.metrics.LoginAttempt("invalid")
		return nil, ErrUnknownLogin
	}

	if v.guard.IsLockedOut(ctx, key) {
		logger.Warn().Msg("login rejected, identifier locked out")
		v.metrics.LockoutRejected()
		v.metrics.LoginAttempt("locked")
		return nil, ErrLockedOut
	}

	user, err := v.lookup(ctx, key)
	switch {
	case errors.Is(err, users.ErrNotFound):
		equalizeTiming(secret)
		v.guard.RecordFailure(ctx, key, sourceAddress)
		logger.Info().Msg(v.failureMessage("login failed, unknown identifier"))
		v.metrics.LoginAttempt("invalid")
		return nil, ErrUnknownLogin
	case err != nil:
		logger.Error().Err(err).Msg("credential store lookup failed")
		v.metrics.LoginAttempt("unavailable")
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}

	if !user.Active {
		equalizeTiming(secret)
		v.guard.RecordFailure(ctx, key, sourceAddress)
		logger.Info().Msg(v.failureMessage("login failed, account inactive"))
		v.metrics.LoginAttempt("invalid")
		return nil, ErrInactiveAccount
	}

	if !user.CheckPassword(secret) {
		v.guard.RecordFailure(ctx, key, sourceAddress)
		logger.Info().Msg(v.failureMessage("login failed, wrong secret"))
		v.metrics.LoginAttempt("invalid")
		return nil, ErrInvalidCredentials
	}

	v.guard.ClearFailures(ctx, key)
	logger.Info().Int64("user_id", user.ID).Str("role", string(user.Role)).Msg("login succeeded")
	v.metrics.LoginAttempt("success")
	return user, nil
}

func (v *Verifier) failureMessage(detailed string) string {
	if v.reveal {
		return detailed
	}
	return "login failed, invalid credentials"
}

func (v *Verifier) lookup(ctx context.Context, key string) (*users.User, error) {
	if v.storeTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, v.storeTimeout)
		defer cancel()
	}
	return v.users.GetByLogin(ctx, key)
}
