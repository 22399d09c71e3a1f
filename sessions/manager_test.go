package sessions_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jrsteele09/go-surface-auth/sessions"
	fakesessionrepo "github.com/jrsteele09/go-surface-auth/sessions/repofakes"
	"github.com/jrsteele09/go-surface-auth/users"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

type testFixture struct {
	repo    *fakesessionrepo.FakeSessionRepo
	now     time.Time
	manager *sessions.Manager
}

func setupTestFixture(t *testing.T) *testFixture {
	t.Helper()
	f := &testFixture{
		repo: fakesessionrepo.NewFakeSessionRepo(),
		now:  time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC),
	}
	m, err := sessions.NewManager(f.repo,
		sessions.WithIdleTimeout(30*time.Minute),
		sessions.WithNowFunc(func() time.Time { return f.now }),
		sessions.WithLogger(zerolog.Nop()),
	)
	require.NoError(t, err)
	f.manager = m
	return f
}

func testUser(role users.RoleType) *users.User {
	return &users.User{ID: 11, LoginName: "alice", DisplayName: "Alice", Role: role, Active: true}
}

func TestEstablish_CopiesIdentity(t *testing.T) {
	f := setupTestFixture(t)

	s, err := f.manager.Establish(context.Background(), "", testUser(users.RoleStaff), sessions.OriginDirect)
	require.NoError(t, err)
	require.NotEmpty(t, s.ID)
	require.Equal(t, int64(11), s.UserID)
	require.Equal(t, "alice", s.LoginName)
	require.Equal(t, users.RoleStaff, s.Role)
	require.Equal(t, f.now, s.CreatedAt)
	require.Equal(t, f.now, s.LastSeenAt)
	require.Equal(t, sessions.OriginDirect, s.Origin)
	require.False(t, s.Origin.IsHandoff())
}

func TestEstablish_RotatesID(t *testing.T) {
	f := setupTestFixture(t)
	ctx := context.Background()

	first, err := f.manager.Establish(ctx, "", testUser(users.RoleClient), sessions.OriginDirect)
	require.NoError(t, err)

	second, err := f.manager.Establish(ctx, first.ID, testUser(users.RoleClient), sessions.HandoffOrigin("admin_console"))
	require.NoError(t, err)
	require.NotEqual(t, first.ID, second.ID)
	require.True(t, second.Origin.IsHandoff())

	_, err = f.manager.Resume(ctx, first.ID)
	require.ErrorIs(t, err, sessions.ErrNoSession)
	require.Equal(t, 1, f.repo.Len())
}

func TestEstablish_PlantedIDNeverAuthenticated(t *testing.T) {
	f := setupTestFixture(t)

	s, err := f.manager.Establish(context.Background(), "attacker-chosen-id", testUser(users.RoleClient), sessions.OriginDirect)
	require.NoError(t, err)
	require.NotEqual(t, "attacker-chosen-id", s.ID)
}

func TestResume_IdleBoundary(t *testing.T) {
	f := setupTestFixture(t)
	ctx := context.Background()

	s, err := f.manager.Establish(ctx, "", testUser(users.RoleClient), sessions.OriginDirect)
	require.NoError(t, err)

	f.now = f.now.Add(30 * time.Minute)
	resumed, err := f.manager.Resume(ctx, s.ID)
	require.NoError(t, err, "exactly the idle timeout is still valid")
	require.Equal(t, f.now, resumed.LastSeenAt)

	f.now = f.now.Add(30*time.Minute + time.Second)
	_, err = f.manager.Resume(ctx, s.ID)
	require.ErrorIs(t, err, sessions.ErrSessionExpired)

	_, err = f.manager.Resume(ctx, s.ID)
	require.ErrorIs(t, err, sessions.ErrNoSession, "expired session was torn down")
}

func TestResume_StoreError(t *testing.T) {
	f := setupTestFixture(t)
	f.repo.SetError(errors.New("boom"))

	_, err := f.manager.Resume(context.Background(), "abc")
	require.Error(t, err)
	require.NotErrorIs(t, err, sessions.ErrNoSession)
}

func TestLogout(t *testing.T) {
	f := setupTestFixture(t)
	ctx := context.Background()

	s, err := f.manager.Establish(ctx, "", testUser(users.RoleClient), sessions.OriginDirect)
	require.NoError(t, err)
	require.NoError(t, f.manager.Logout(ctx, s.ID))
	require.NoError(t, f.manager.Logout(ctx, s.ID))

	_, err = f.manager.Resume(ctx, s.ID)
	require.ErrorIs(t, err, sessions.ErrNoSession)
}

func TestRequireRole(t *testing.T) {
	f := setupTestFixture(t)

	require.ErrorIs(t, f.manager.RequireRole(nil, users.RoleClient), sessions.ErrNoSession)

	staff := &sessions.Session{Role: users.RoleStaff}
	require.NoError(t, f.manager.RequireRole(staff, users.RoleClient))
	require.NoError(t, f.manager.RequireRole(staff, users.RoleStaff))
	require.ErrorIs(t, f.manager.RequireRole(staff, users.RoleSuperAdmin), sessions.ErrInsufficientRole)

	admin := &sessions.Session{Role: users.RoleAdmin}
	require.NoError(t, f.manager.RequireRole(admin, users.RoleSuperAdmin), "admins satisfy every role check")
}

func TestSweepExpired(t *testing.T) {
	f := setupTestFixture(t)
	ctx := context.Background()

	_, err := f.manager.Establish(ctx, "", testUser(users.RoleClient), sessions.OriginDirect)
	require.NoError(t, err)
	f.now = f.now.Add(20 * time.Minute)
	_, err = f.manager.Establish(ctx, "", testUser(users.RoleClient), sessions.OriginDirect)
	require.NoError(t, err)

	f.now = f.now.Add(15 * time.Minute)
	n, err := f.manager.SweepExpired(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, n)
	require.Equal(t, 1, f.repo.Len())
}

func TestSession_Identity(t *testing.T) {
	s := &sessions.Session{UserID: 4, LoginName: "bob", DisplayName: "Bob", Role: users.RoleAdmin}
	u := s.Identity()
	require.Equal(t, int64(4), u.ID)
	require.Equal(t, users.RoleAdmin, u.Role)
	require.Empty(t, u.PasswordHash)
}

func TestNewManager_Validation(t *testing.T) {
	_, err := sessions.NewManager(nil)
	require.Error(t, err)

	_, err = sessions.NewManager(fakesessionrepo.NewFakeSessionRepo(), sessions.WithIdleTimeout(0))
	require.Error(t, err)
}
