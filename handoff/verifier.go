package handoff

import (
	"context"
	"fmt"
	"time"

	"github.com/jrsteele09/go-surface-auth/internal/logging"
	"github.com/jrsteele09/go-surface-auth/internal/metrics"
	"github.com/jrsteele09/go-surface-auth/sessions"
	"github.com/jrsteele09/go-surface-auth/token"
	"github.com/jrsteele09/go-surface-auth/users"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	DefaultMaxLifetime = 15 * time.Minute
	// allowed clock difference between issuing and redeeming hosts
	maxIssuedAtSkew = 30 * time.Second
)

// Verifier redeems tokens addressed to its own surface. It never trusts the role carried in a
// token: the account is re-read from the local credential store and checked against the policy.
type Verifier struct {
	codec        *token.Codec
	surface      Surface
	policy       Policy
	users        users.UserRepo
	sessions     *sessions.Manager
	replay       ReplayGuard
	maxLifetime  time.Duration
	storeTimeout time.Duration
	nowFunc      func() time.Time
	logger       zerolog.Logger
	metrics      *metrics.Metrics
}

// VerifierOption defines a function type to modify the Verifier instance.
type VerifierOption func(*Verifier)

// WithReplayGuard makes every token single use.
func WithReplayGuard(guard ReplayGuard) VerifierOption {
	return func(v *Verifier) {
		v.replay = guard
	}
}

// WithMaxLifetime rejects tokens whose expires_at - issued_at is longer than d.
func WithMaxLifetime(d time.Duration) VerifierOption {
	return func(v *Verifier) {
		v.maxLifetime = d
	}
}

// WithNowFunc sets the now time function (primarily for testing)
func WithNowFunc(now func() time.Time) VerifierOption {
	return func(v *Verifier) {
		v.nowFunc = now
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

// NewVerifier builds the redeeming side for own.Policy.Surface. manager may be nil when only
// Verify is used.
func NewVerifier(codec *token.Codec, own Target, manager *sessions.Manager, options ...VerifierOption) (*Verifier, error) {
	if codec == nil {
		return nil, errors.New("[NewVerifier] codec is required")
	}
	if own.Users == nil {
		return nil, errors.New("[NewVerifier] Users repo is required")
	}
	if own.Policy.Surface == "" {
		return nil, errors.New("[NewVerifier] surface is required")
	}
	v := &Verifier{
		codec:        codec,
		surface:      own.Policy.Surface,
		policy:       own.Policy,
		users:        own.Users,
		sessions:     manager,
		maxLifetime:  DefaultMaxLifetime,
		storeTimeout: defaultStoreTimeout,
		nowFunc:      time.Now,
		logger:       log.Logger,
	}
	for _, opt := range options {
		opt(v)
	}
	return v, nil
}

func (v *Verifier) Surface() Surface {
	return v.surface
}

// Verify checks raw and resolves the local account it names.
func (v *Verifier) Verify(ctx context.Context, raw string, expected Surface) (*users.User, error) {
	u, err := v.verify(ctx, raw, expected)
	label := string(expected)
	if expected != v.surface {
		label = unknownSurfaceLabel
	}
	v.metrics.Handoff("redeem", label, reason(err))
	if err != nil {
		// full detail stays server side
		v.logger.Warn().Err(err).Str("surface", string(expected)).Msg("handoff token rejected")
	}
	return u, err
}

func (v *Verifier) verify(ctx context.Context, raw string, expected Surface) (*users.User, error) {
	if expected != v.surface {
		return nil, errors.Wrapf(ErrUnknownSurface, "verifier serves %q, asked for %q", v.surface, expected)
	}

	claims, err := v.codec.Decode(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	if Surface(claims.TargetSurface) != expected {
		return nil, errors.Wrapf(ErrWrongAudience, "token for %q", claims.TargetSurface)
	}

	now := v.nowFunc()
	if claims.ExpiresAt <= claims.IssuedAt {
		return nil, errors.Wrap(ErrInvalid, "expires_at not after issued_at")
	}
	if time.Duration(claims.ExpiresAt-claims.IssuedAt)*time.Second > v.maxLifetime {
		return nil, errors.Wrap(ErrInvalid, "lifetime exceeds maximum")
	}
	if claims.IssuedAt > now.Add(maxIssuedAtSkew).Unix() {
		return nil, errors.Wrap(ErrInvalid, "issued in the future")
	}
	if now.Unix() > claims.ExpiresAt {
		return nil, ErrExpired
	}

	account, err := v.lookup(ctx, claims.SubjectID)
	switch {
	case errors.Is(err, users.ErrNotFound):
		return nil, ErrNoCorrespondingAccount
	case err != nil:
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	if users.NormalizeLogin(account.LoginName) != users.NormalizeLogin(claims.SubjectLogin) {
		return nil, errors.Wrapf(ErrNoCorrespondingAccount, "account %d login changed", account.ID)
	}
	if !account.Active {
		return nil, ErrInactiveAccount
	}
	if !account.Role.In(v.policy.AccountRoles) {
		return nil, errors.Wrapf(ErrInsufficientRole, "account role %q", account.Role)
	}

	if v.replay != nil {
		if claims.Nonce == "" {
			return nil, errors.Wrap(ErrInvalid, "missing nonce")
		}
		firstUse, err := v.replay.Consume(ctx, claims.Nonce, time.Unix(claims.ExpiresAt, 0))
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
		}
		if !firstUse {
			return nil, ErrReplayed
		}
	}

	v.logger.Info().
		Int64("user_id", account.ID).
		Str("login", logging.MaskLogin(account.LoginName)).
		Str("surface", string(expected)).
		Msg("handoff token redeemed")
	return account, nil
}

// Redeem verifies raw and establishes a session for the resolved account, replacing priorSessionID.
func (v *Verifier) Redeem(ctx context.Context, raw string, expected Surface, priorSessionID string) (*sessions.Session, error) {
	if v.sessions == nil {
		return nil, errors.New("[Verifier.Redeem] no session manager configured")
	}
	account, err := v.Verify(ctx, raw, expected)
	if err != nil {
		return nil, err
	}
	s, err := v.sessions.Establish(ctx, priorSessionID, account, sessions.HandoffOrigin(string(expected)))
	if err != nil {
		return nil, errors.Wrap(err, "[Verifier.Redeem]")
	}
	return s, nil
}

func (v *Verifier) lookup(ctx context.Context, id int64) (*users.User, error) {
	ctx, cancel := context.WithTimeout(ctx, v.storeTimeout)
	defer cancel()
	return v.users.GetByID(ctx, id)
}
