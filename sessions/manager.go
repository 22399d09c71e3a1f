package sessions

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jrsteele09/go-surface-auth/internal/logging"
	"github.com/jrsteele09/go-surface-auth/users"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const DefaultIdleTimeout = 30 * time.Minute

// Manager owns the lifecycle of authenticated sessions: creation with id rotation, idle expiry
// and role gating.
type Manager struct {
	repo        Repo
	idleTimeout time.Duration
	nowFunc     func() time.Time
	logger      zerolog.Logger
}

// ManagerOption defines a function type to modify the Manager instance.
type ManagerOption func(*Manager)

func WithIdleTimeout(timeout time.Duration) ManagerOption {
	return func(m *Manager) {
		m.idleTimeout = timeout
	}
}

// WithNowFunc sets the now time function (primarily for testing)
func WithNowFunc(now func() time.Time) ManagerOption {
	return func(m *Manager) {
		m.nowFunc = now
	}
}

func WithLogger(logger zerolog.Logger) ManagerOption {
	return func(m *Manager) {
		m.logger = logger
	}
}

func NewManager(repo Repo, options ...ManagerOption) (*Manager, error) {
	if repo == nil {
		return nil, errors.New("[NewManager] session repo is required")
	}
	m := &Manager{
		repo:        repo,
		idleTimeout: DefaultIdleTimeout,
		nowFunc:     time.Now,
		logger:      log.Logger,
	}
	for _, opt := range options {
		opt(m)
	}
	if m.idleTimeout <= 0 {
		return nil, errors.Errorf("[NewManager] idle timeout must be positive, got %s", m.idleTimeout)
	}
	return m, nil
}

func (m *Manager) IdleTimeout() time.Duration {
	return m.idleTimeout
}

// Establish authenticates a browsing context for user. Any prior session is destroyed and a
// fresh id is generated, so an id planted before login never becomes authenticated.
func (m *Manager) Establish(ctx context.Context, priorID string, user *users.User, origin Origin) (*Session, error) {
	if user == nil {
		return nil, errors.New("[Manager.Establish] user is required")
	}
	if priorID != "" {
		if err := m.repo.Delete(ctx, priorID); err != nil {
			return nil, errors.Wrap(err, "[Manager.Establish] delete prior session")
		}
	}

	now := m.nowFunc()
	s := &Session{
		ID:          uuid.NewString(),
		UserID:      user.ID,
		LoginName:   user.LoginName,
		Role:        user.Role,
		DisplayName: user.DisplayName,
		CreatedAt:   now,
		LastSeenAt:  now,
		Origin:      origin,
	}
	if err := m.repo.Upsert(ctx, s); err != nil {
		return nil, errors.Wrap(err, "[Manager.Establish] store session")
	}

	m.logger.Info().
		Int64("user_id", s.UserID).
		Str("login", logging.MaskLogin(s.LoginName)).
		Str("origin", string(origin)).
		Msg("session established")
	return s, nil
}

// Resume loads the session for id and refreshes LastSeenAt. A session idle for longer than the
// idle timeout is torn down and ErrSessionExpired returned.
func (m *Manager) Resume(ctx context.Context, id string) (*Session, error) {
	if id == "" {
		return nil, ErrNoSession
	}
	s, err := m.repo.Get(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return nil, ErrNoSession
	}
	if err != nil {
		return nil, errors.Wrap(err, "[Manager.Resume] load session")
	}

	now := m.nowFunc()
	if now.Sub(s.LastSeenAt) > m.idleTimeout {
		if err := m.repo.Delete(ctx, id); err != nil {
			m.logger.Error().Err(err).Msg("failed to delete expired session")
		}
		return nil, ErrSessionExpired
	}

	s.LastSeenAt = now
	if err := m.repo.Upsert(ctx, s); err != nil {
		return nil, errors.Wrap(err, "[Manager.Resume] refresh session")
	}
	return s, nil
}

// Logout removes the session. An unknown id is not an error.
func (m *Manager) Logout(ctx context.Context, id string) error {
	if id == "" {
		return nil
	}
	if err := m.repo.Delete(ctx, id); err != nil {
		return errors.Wrap(err, "[Manager.Logout]")
	}
	return nil
}

// RequireRole gates an operation on the session's role.
func (m *Manager) RequireRole(s *Session, min users.RoleType) error {
	if s == nil {
		return ErrNoSession
	}
	if !s.Role.Satisfies(min) {
		return ErrInsufficientRole
	}
	return nil
}

// SweepExpired deletes every session idle for longer than the idle timeout.
func (m *Manager) SweepExpired(ctx context.Context) (int, error) {
	n, err := m.repo.DeleteIdleSince(ctx, m.nowFunc().Add(-m.idleTimeout))
	if err != nil {
		return 0, errors.Wrap(err, "[Manager.SweepExpired]")
	}
	if n > 0 {
		m.logger.Debug().Int("count", n).Msg("swept idle sessions")
	}
	return n, nil
}
