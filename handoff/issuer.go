package handoff

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jrsteele09/go-surface-auth/internal/logging"
	"github.com/jrsteele09/go-surface-auth/internal/metrics"
	"github.com/jrsteele09/go-surface-auth/token"
	"github.com/jrsteele09/go-surface-auth/users"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	DefaultTTL          = 5 * time.Minute
	defaultStoreTimeout = 3 * time.Second
)

// Issuer creates handoff tokens for the surfaces it knows about.
type Issuer struct {
	codec        *token.Codec
	targets      map[Surface]Target
	ttl          time.Duration
	storeTimeout time.Duration
	nowFunc      func() time.Time
	logger       zerolog.Logger
	metrics      *metrics.Metrics
}

// IssuerOption defines a function type to modify the Issuer instance.
type IssuerOption func(*Issuer)

func WithTTL(ttl time.Duration) IssuerOption {
	return func(i *Issuer) {
		i.ttl = ttl
	}
}

// WithIssuerNowFunc sets the now time function (primarily for testing)
func WithIssuerNowFunc(now func() time.Time) IssuerOption {
	return func(i *Issuer) {
		i.nowFunc = now
	}
}

func WithIssuerLogger(logger zerolog.Logger) IssuerOption {
	return func(i *Issuer) {
		i.logger = logger
	}
}

func WithIssuerMetrics(m *metrics.Metrics) IssuerOption {
	return func(i *Issuer) {
		i.metrics = m
	}
}

func NewIssuer(codec *token.Codec, targets []Target, options ...IssuerOption) (*Issuer, error) {
	if codec == nil {
		return nil, errors.New("[NewIssuer] codec is required")
	}
	i := &Issuer{
		codec:        codec,
		targets:      make(map[Surface]Target, len(targets)),
		ttl:          DefaultTTL,
		storeTimeout: defaultStoreTimeout,
		nowFunc:      time.Now,
		logger:       log.Logger,
	}
	for _, t := range targets {
		if t.Users == nil {
			return nil, errors.Errorf("[NewIssuer] surface %q has no credential store", t.Policy.Surface)
		}
		i.targets[t.Policy.Surface] = t
	}
	for _, opt := range options {
		opt(i)
	}
	// claims carry whole seconds, a shorter ttl could give expires_at == issued_at
	if i.ttl < time.Second {
		return nil, errors.Errorf("[NewIssuer] ttl must be at least 1s, got %s", i.ttl)
	}
	return i, nil
}

// Target returns the configuration for surface.
func (i *Issuer) Target(surface Surface) (Target, bool) {
	t, ok := i.targets[surface]
	return t, ok
}

// unknownSurfaceLabel replaces surface names that come from a request and match no target.
const unknownSurfaceLabel = "unknown"

// Issue mints a token that lets the account on surface matching current's login name sign in
// there. current must already be authenticated on this surface.
func (i *Issuer) Issue(ctx context.Context, current *users.User, surface Surface) (string, error) {
	raw, err := i.issue(ctx, current, surface)
	label := string(surface)
	if _, ok := i.targets[surface]; !ok {
		label = unknownSurfaceLabel
	}
	i.metrics.Handoff("issue", label, reason(err))
	return raw, err
}

func (i *Issuer) issue(ctx context.Context, current *users.User, surface Surface) (string, error) {
	target, ok := i.targets[surface]
	if !ok {
		return "", ErrUnknownSurface
	}
	if current == nil || !current.Role.In(target.Policy.IssuerRoles) {
		return "", ErrNotEligible
	}

	logger := i.logger.With().
		Str("surface", string(surface)).
		Str("login", logging.MaskLogin(current.LoginName)).
		Logger()

	account, err := i.lookup(ctx, target.Users, current.LoginName)
	switch {
	case errors.Is(err, users.ErrNotFound):
		logger.Info().Msg("handoff refused, no account on target surface")
		return "", ErrNoCorrespondingAccount
	case err != nil:
		logger.Error().Err(err).Msg("handoff target store lookup failed")
		return "", fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	if !account.Active {
		logger.Info().Int64("target_id", account.ID).Msg("handoff refused, target account inactive")
		return "", ErrNoCorrespondingAccount
	}
	if !account.Role.In(target.Policy.AccountRoles) {
		logger.Info().Int64("target_id", account.ID).Str("role", string(account.Role)).Msg("handoff refused, target role not permitted")
		return "", ErrTargetAccountInsufficientRole
	}

	now := i.nowFunc()
	raw, err := i.codec.Encode(token.Claims{
		SubjectID:     account.ID,
		SubjectLogin:  account.LoginName,
		SubjectRole:   string(account.Role),
		TargetSurface: string(surface),
		IssuedAt:      now.Unix(),
		ExpiresAt:     now.Add(i.ttl).Unix(),
		Nonce:         uuid.NewString(),
	})
	if err != nil {
		return "", errors.Wrap(err, "[Issuer.Issue]")
	}

	logger.Info().Int64("target_id", account.ID).Msg("handoff token issued")
	return raw, nil
}

func (i *Issuer) lookup(ctx context.Context, repo users.UserRepo, loginName string) (*users.User, error) {
	ctx, cancel := context.WithTimeout(ctx, i.storeTimeout)
	defer cancel()
	return repo.GetByLogin(ctx, loginName)
}
