package lockout

import (
	"context"
	"time"

	"github.com/jrsteele09/go-surface-auth/internal/logging"
	"github.com/jrsteele09/go-surface-auth/users"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	DefaultThreshold    = 5
	DefaultWindow       = 15 * time.Minute
	DefaultStoreTimeout = 2 * time.Second
)

// Guard denies authentication attempts for a login identifier once Threshold failures have been
// recorded inside the trailing Window.
//
// Store failures never block a login: IsLockedOut fails open and RecordFailure swallows errors.
type Guard struct {
	repo         FailureRepo
	threshold    int
	window       time.Duration
	storeTimeout time.Duration
	nowFunc      func() time.Time
	logger       zerolog.Logger
}

// GuardOption configures a Guard.
type GuardOption func(*Guard)

func WithThreshold(threshold int) GuardOption {
	return func(g *Guard) {
		g.threshold = threshold
	}
}

func WithWindow(window time.Duration) GuardOption {
	return func(g *Guard) {
		g.window = window
	}
}

// WithStoreTimeout bounds every store call.
func WithStoreTimeout(timeout time.Duration) GuardOption {
	return func(g *Guard) {
		g.storeTimeout = timeout
	}
}

// WithNowFunc sets the now time function (primarily for testing)
func WithNowFunc(now func() time.Time) GuardOption {
	return func(g *Guard) {
		g.nowFunc = now
	}
}

func WithLogger(logger zerolog.Logger) GuardOption {
	return func(g *Guard) {
		g.logger = logger
	}
}

func NewGuard(repo FailureRepo, options ...GuardOption) (*Guard, error) {
	if repo == nil {
		return nil, errors.New("[NewGuard] failure repo is required")
	}

	g := &Guard{
		repo:         repo,
		threshold:    DefaultThreshold,
		window:       DefaultWindow,
		storeTimeout: DefaultStoreTimeout,
		nowFunc:      time.Now,
		logger:       log.Logger,
	}
	for _, opt := range options {
		opt(g)
	}

	if g.threshold <= 0 {
		return nil, errors.Errorf("[NewGuard] threshold must be positive, got %d", g.threshold)
	}
	if g.window <= 0 {
		return nil, errors.Errorf("[NewGuard] window must be positive, got %s", g.window)
	}
	return g, nil
}

// Window returns the trailing interval over which failures are counted.
func (g *Guard) Window() time.Duration {
	return g.window
}

// IsLockedOut reports whether loginName has reached the failure threshold inside the window.
func (g *Guard) IsLockedOut(ctx context.Context, loginName string) bool {
	ctx, cancel := g.storeContext(ctx)
	defer cancel()

	key := users.NormalizeLogin(loginName)
	count, err := g.repo.CountSince(ctx, key, g.nowFunc().Add(-g.window))
	if err != nil {
		g.logger.Warn().Err(err).
			Str("login", logging.MaskLogin(key)).
			Msg("lockout store unavailable, allowing attempt")
		return false
	}
	return count >= g.threshold
}

// RecordFailure appends a FailureRecord. Errors are logged, never returned.
func (g *Guard) RecordFailure(ctx context.Context, loginName, sourceAddress string) {
	ctx, cancel := g.storeContext(ctx)
	defer cancel()

	key := users.NormalizeLogin(loginName)
	err := g.repo.Insert(ctx, FailureRecord{
		LoginName:     key,
		Timestamp:     g.nowFunc(),
		SourceAddress: sourceAddress,
	})
	if err != nil {
		g.logger.Error().Err(err).
			Str("login", logging.MaskLogin(key)).
			Str("source", sourceAddress).
			Msg("failed to record authentication failure")
	}
}

// ClearFailures drops the failure history of loginName. Only call after a verified successful
// credential check.
func (g *Guard) ClearFailures(ctx context.Context, loginName string) {
	ctx, cancel := g.storeContext(ctx)
	defer cancel()

	key := users.NormalizeLogin(loginName)
	if err := g.repo.DeleteAll(ctx, key); err != nil {
		g.logger.Error().Err(err).
			Str("login", logging.MaskLogin(key)).
			Msg("failed to clear authentication failures")
	}
}

func (g *Guard) storeContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if g.storeTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, g.storeTimeout)
}
