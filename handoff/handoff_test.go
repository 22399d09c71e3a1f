package handoff_test

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/jrsteele09/go-surface-auth/handoff"
	"github.com/jrsteele09/go-surface-auth/internal/metrics"
	"github.com/jrsteele09/go-surface-auth/sessions"
	fakesessionrepo "github.com/jrsteele09/go-surface-auth/sessions/repofakes"
	"github.com/jrsteele09/go-surface-auth/token"
	"github.com/jrsteele09/go-surface-auth/users"
	fakeuserrepo "github.com/jrsteele09/go-surface-auth/users/repofake"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

var testSecret = []byte("shared-secret-between-both-surfaces!")

// testFixture models two surfaces sharing one signing secret: the admin console issuing and the
// client portal redeeming.
type testFixture struct {
	now         time.Time
	codec       *token.Codec
	adminUsers  *fakeuserrepo.FakeUserRepo
	clientUsers *fakeuserrepo.FakeUserRepo
	sessionRepo *fakesessionrepo.FakeSessionRepo
	issuer      *handoff.Issuer
	verifier    *handoff.Verifier
}

func (f *testFixture) Now() time.Time { return f.now }

func setupTestFixture(t *testing.T, verifierOpts ...handoff.VerifierOption) *testFixture {
	t.Helper()

	key, err := token.NewSecretKey(testSecret)
	require.NoError(t, err)
	codec, err := token.NewCodec(token.NewHMACSigner(key), token.WithLogger(zerolog.Nop()))
	require.NoError(t, err)

	f := &testFixture{
		now:         time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC),
		codec:       codec,
		adminUsers:  fakeuserrepo.NewFakeUserRepo(),
		clientUsers: fakeuserrepo.NewFakeUserRepo(),
		sessionRepo: fakesessionrepo.NewFakeSessionRepo(),
	}

	require.NoError(t, f.adminUsers.Upsert(&users.User{ID: 1, LoginName: "alice", Role: users.RoleAdmin, Active: true}))
	require.NoError(t, f.adminUsers.Upsert(&users.User{ID: 2, LoginName: "sam", Role: users.RoleStaff, Active: true}))
	require.NoError(t, f.adminUsers.Upsert(&users.User{ID: 3, LoginName: "bob", Role: users.RoleAdmin, Active: true}))
	require.NoError(t, f.clientUsers.Upsert(&users.User{ID: 70, LoginName: "Alice", DisplayName: "Alice (portal)", Role: users.RoleAdmin, Active: true}))
	require.NoError(t, f.clientUsers.Upsert(&users.User{ID: 71, LoginName: "sam", Role: users.RoleStaff, Active: true}))

	adminPolicy, _ := handoff.PolicyFor(handoff.SurfaceAdminConsole)
	clientPolicy, _ := handoff.PolicyFor(handoff.SurfaceClientPortal)

	f.issuer, err = handoff.NewIssuer(codec, []handoff.Target{
		{Policy: adminPolicy, Users: f.adminUsers, BaseURL: "https://admin.example.test"},
		{Policy: clientPolicy, Users: f.clientUsers, BaseURL: "https://portal.example.test/"},
	}, handoff.WithIssuerNowFunc(f.Now), handoff.WithIssuerLogger(zerolog.Nop()))
	require.NoError(t, err)

	manager, err := sessions.NewManager(f.sessionRepo, sessions.WithNowFunc(f.Now), sessions.WithLogger(zerolog.Nop()))
	require.NoError(t, err)

	opts := append([]handoff.VerifierOption{handoff.WithNowFunc(f.Now), handoff.WithLogger(zerolog.Nop())}, verifierOpts...)
	f.verifier, err = handoff.NewVerifier(codec, handoff.Target{Policy: clientPolicy, Users: f.clientUsers}, manager, opts...)
	require.NoError(t, err)
	return f
}

func (f *testFixture) admin(t *testing.T, login string) *users.User {
	t.Helper()
	u, err := f.adminUsers.GetByLogin(context.Background(), login)
	require.NoError(t, err)
	return u
}

func TestHandoff_RoundTrip(t *testing.T) {
	f := setupTestFixture(t)
	ctx := context.Background()

	raw, err := f.issuer.Issue(ctx, f.admin(t, "alice"), handoff.SurfaceClientPortal)
	require.NoError(t, err)

	claims, err := f.codec.Decode(raw)
	require.NoError(t, err)
	require.Equal(t, int64(70), claims.SubjectID, "subject is the target surface's account")
	require.Equal(t, "client_portal", claims.TargetSurface)
	require.Equal(t, f.now.Add(handoff.DefaultTTL).Unix(), claims.ExpiresAt)
	require.NotEmpty(t, claims.Nonce)

	u, err := f.verifier.Verify(ctx, raw, handoff.SurfaceClientPortal)
	require.NoError(t, err)
	require.Equal(t, int64(70), u.ID)
	require.Equal(t, "Alice (portal)", u.DisplayName)
}

func TestIssue_NoCorrespondingAccount(t *testing.T) {
	f := setupTestFixture(t)

	raw, err := f.issuer.Issue(context.Background(), f.admin(t, "bob"), handoff.SurfaceClientPortal)
	require.ErrorIs(t, err, handoff.ErrNoCorrespondingAccount)
	require.ErrorIs(t, err, handoff.ErrHandoffFailed)
	require.Empty(t, raw)
}

func TestIssue_InactiveTargetAccount(t *testing.T) {
	f := setupTestFixture(t)
	require.NoError(t, f.clientUsers.SetActive("alice", false))

	_, err := f.issuer.Issue(context.Background(), f.admin(t, "alice"), handoff.SurfaceClientPortal)
	require.ErrorIs(t, err, handoff.ErrNoCorrespondingAccount)
}

func TestIssue_IssuerNotEligible(t *testing.T) {
	f := setupTestFixture(t)

	_, err := f.issuer.Issue(context.Background(), f.admin(t, "sam"), handoff.SurfaceClientPortal)
	require.ErrorIs(t, err, handoff.ErrNotEligible)

	_, err = f.issuer.Issue(context.Background(), nil, handoff.SurfaceClientPortal)
	require.ErrorIs(t, err, handoff.ErrNotEligible)
}

func TestIssue_TargetAccountRole(t *testing.T) {
	f := setupTestFixture(t)
	require.NoError(t, f.adminUsers.SetRole("sam", users.RoleAdmin))

	// sam may issue now, but is only staff on the portal
	_, err := f.issuer.Issue(context.Background(), f.admin(t, "sam"), handoff.SurfaceClientPortal)
	require.ErrorIs(t, err, handoff.ErrTargetAccountInsufficientRole)
}

func TestIssue_UnknownSurface(t *testing.T) {
	f := setupTestFixture(t)

	_, err := f.issuer.Issue(context.Background(), f.admin(t, "alice"), handoff.Surface("billing"))
	require.ErrorIs(t, err, handoff.ErrUnknownSurface)
}

func TestIssue_UnknownSurfaceMetricLabel(t *testing.T) {
	f := setupTestFixture(t)
	reg := prometheus.NewRegistry()
	clientPolicy, _ := handoff.PolicyFor(handoff.SurfaceClientPortal)
	issuer, err := handoff.NewIssuer(f.codec,
		[]handoff.Target{{Policy: clientPolicy, Users: f.clientUsers, BaseURL: "https://portal.example.test"}},
		handoff.WithIssuerNowFunc(f.Now), handoff.WithIssuerLogger(zerolog.Nop()), handoff.WithIssuerMetrics(metrics.New(reg)))
	require.NoError(t, err)

	for i := 0; i < 25; i++ {
		_, err := issuer.Issue(context.Background(), f.admin(t, "alice"), handoff.Surface(fmt.Sprintf("made-up-%d", i)))
		require.ErrorIs(t, err, handoff.ErrUnknownSurface)
	}
	_, err = issuer.Issue(context.Background(), f.admin(t, "alice"), handoff.SurfaceClientPortal)
	require.NoError(t, err)

	count, err := testutil.GatherAndCount(reg, "surface_auth_handoff_total")
	require.NoError(t, err)
	require.Equal(t, 2, count, "one series for unknown surfaces, one for client_portal")

	expected := `
# HELP surface_auth_handoff_total Handoff token issue and redeem operations by surface and outcome.
# TYPE surface_auth_handoff_total counter
surface_auth_handoff_total{outcome="ok",stage="issue",surface="client_portal"} 1
surface_auth_handoff_total{outcome="unknown_surface",stage="issue",surface="unknown"} 25
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "surface_auth_handoff_total"))
}

func TestNewIssuer_SubSecondTTL(t *testing.T) {
	f := setupTestFixture(t)

	_, err := handoff.NewIssuer(f.codec, nil, handoff.WithTTL(500*time.Millisecond))
	require.Error(t, err)

	_, err = handoff.NewIssuer(f.codec, nil, handoff.WithTTL(time.Second))
	require.NoError(t, err)
}

func TestIssue_StoreUnavailable(t *testing.T) {
	f := setupTestFixture(t)
	storeErr := errors.New("connection refused")
	f.clientUsers.SetError(storeErr)

	_, err := f.issuer.Issue(context.Background(), f.admin(t, "alice"), handoff.SurfaceClientPortal)
	require.ErrorIs(t, err, handoff.ErrUnavailable)
	require.ErrorIs(t, err, storeErr)
	require.NotErrorIs(t, err, handoff.ErrNoCorrespondingAccount)
}

func TestVerify_ExpiryBoundary(t *testing.T) {
	f := setupTestFixture(t)
	ctx := context.Background()
	issuedAt := f.now

	raw, err := f.issuer.Issue(ctx, f.admin(t, "alice"), handoff.SurfaceClientPortal)
	require.NoError(t, err)

	f.now = issuedAt.Add(299 * time.Second)
	_, err = f.verifier.Verify(ctx, raw, handoff.SurfaceClientPortal)
	require.NoError(t, err)

	f.now = issuedAt.Add(301 * time.Second)
	_, err = f.verifier.Verify(ctx, raw, handoff.SurfaceClientPortal)
	require.ErrorIs(t, err, handoff.ErrExpired)
}

func TestVerify_ExpiredDespiteValidSignature(t *testing.T) {
	f := setupTestFixture(t)

	raw, err := f.codec.Encode(token.Claims{
		SubjectID:     70,
		SubjectLogin:  "alice",
		SubjectRole:   "admin",
		TargetSurface: "client_portal",
		IssuedAt:      f.now.Add(-10 * time.Minute).Unix(),
		ExpiresAt:     f.now.Add(-5 * time.Minute).Unix(),
	})
	require.NoError(t, err)

	_, err = f.verifier.Verify(context.Background(), raw, handoff.SurfaceClientPortal)
	require.ErrorIs(t, err, handoff.ErrExpired)
}

func TestVerify_WrongAudience(t *testing.T) {
	f := setupTestFixture(t)
	ctx := context.Background()

	raw, err := f.issuer.Issue(ctx, f.admin(t, "alice"), handoff.SurfaceAdminConsole)
	require.NoError(t, err)

	_, err = f.verifier.Verify(ctx, raw, handoff.SurfaceClientPortal)
	require.ErrorIs(t, err, handoff.ErrWrongAudience)

	// a portal token shown to an admin console verifier
	adminPolicy, _ := handoff.PolicyFor(handoff.SurfaceAdminConsole)
	adminVerifier, err := handoff.NewVerifier(f.codec, handoff.Target{Policy: adminPolicy, Users: f.adminUsers}, nil,
		handoff.WithNowFunc(f.Now), handoff.WithLogger(zerolog.Nop()))
	require.NoError(t, err)

	portalToken, err := f.issuer.Issue(ctx, f.admin(t, "alice"), handoff.SurfaceClientPortal)
	require.NoError(t, err)
	_, err = adminVerifier.Verify(ctx, portalToken, handoff.SurfaceAdminConsole)
	require.ErrorIs(t, err, handoff.ErrWrongAudience)
}

func TestVerify_RoleDowngradedBeforeRedemption(t *testing.T) {
	f := setupTestFixture(t)
	ctx := context.Background()

	raw, err := f.issuer.Issue(ctx, f.admin(t, "alice"), handoff.SurfaceClientPortal)
	require.NoError(t, err)

	require.NoError(t, f.clientUsers.SetRole("alice", users.RoleStaff))
	f.now = f.now.Add(time.Minute)

	_, err = f.verifier.Verify(ctx, raw, handoff.SurfaceClientPortal)
	require.ErrorIs(t, err, handoff.ErrInsufficientRole)
}

func TestVerify_AccountDeactivatedOrRemoved(t *testing.T) {
	f := setupTestFixture(t)
	ctx := context.Background()

	raw, err := f.issuer.Issue(ctx, f.admin(t, "alice"), handoff.SurfaceClientPortal)
	require.NoError(t, err)

	require.NoError(t, f.clientUsers.SetActive("alice", false))
	_, err = f.verifier.Verify(ctx, raw, handoff.SurfaceClientPortal)
	require.ErrorIs(t, err, handoff.ErrInactiveAccount)

	require.NoError(t, f.clientUsers.Delete("alice"))
	_, err = f.verifier.Verify(ctx, raw, handoff.SurfaceClientPortal)
	require.ErrorIs(t, err, handoff.ErrNoCorrespondingAccount)
}

func TestVerify_LoginMismatch(t *testing.T) {
	f := setupTestFixture(t)

	raw, err := f.codec.Encode(token.Claims{
		SubjectID:     70,
		SubjectLogin:  "mallory",
		SubjectRole:   "admin",
		TargetSurface: "client_portal",
		IssuedAt:      f.now.Unix(),
		ExpiresAt:     f.now.Add(time.Minute).Unix(),
	})
	require.NoError(t, err)

	_, err = f.verifier.Verify(context.Background(), raw, handoff.SurfaceClientPortal)
	require.ErrorIs(t, err, handoff.ErrNoCorrespondingAccount)
}

func TestVerify_ImplausibleTimestamps(t *testing.T) {
	f := setupTestFixture(t)
	base := token.Claims{SubjectID: 70, SubjectLogin: "alice", SubjectRole: "admin", TargetSurface: "client_portal"}

	cases := map[string][2]time.Time{
		"future issue":   {f.now.Add(time.Hour), f.now.Add(time.Hour + time.Minute)},
		"too long":       {f.now, f.now.Add(24 * time.Hour)},
		"inverted times": {f.now, f.now.Add(-time.Second)},
	}
	for name, times := range cases {
		t.Run(name, func(t *testing.T) {
			c := base
			c.IssuedAt, c.ExpiresAt = times[0].Unix(), times[1].Unix()
			raw, err := f.codec.Encode(c)
			require.NoError(t, err)
			_, err = f.verifier.Verify(context.Background(), raw, handoff.SurfaceClientPortal)
			require.ErrorIs(t, err, handoff.ErrInvalid)
		})
	}
}

func TestVerify_Tampered(t *testing.T) {
	f := setupTestFixture(t)
	ctx := context.Background()

	raw, err := f.issuer.Issue(ctx, f.admin(t, "alice"), handoff.SurfaceClientPortal)
	require.NoError(t, err)

	tampered := raw[:len(raw)-1] + string("0123456789abcdef"[(strings.Index("0123456789abcdef", raw[len(raw)-1:])+1)%16])
	_, err = f.verifier.Verify(ctx, tampered, handoff.SurfaceClientPortal)
	require.ErrorIs(t, err, handoff.ErrInvalid)
	require.ErrorIs(t, err, token.ErrSignatureMismatch)

	_, err = f.verifier.Verify(ctx, "garbage", handoff.SurfaceClientPortal)
	require.ErrorIs(t, err, handoff.ErrInvalid)
}

func TestVerify_WrongVerifierSurface(t *testing.T) {
	f := setupTestFixture(t)

	_, err := f.verifier.Verify(context.Background(), "x.y", handoff.SurfaceAdminConsole)
	require.ErrorIs(t, err, handoff.ErrUnknownSurface)
}

func TestVerify_ReplayAllowedWithoutGuard(t *testing.T) {
	f := setupTestFixture(t)
	ctx := context.Background()

	raw, err := f.issuer.Issue(ctx, f.admin(t, "alice"), handoff.SurfaceClientPortal)
	require.NoError(t, err)

	_, err = f.verifier.Verify(ctx, raw, handoff.SurfaceClientPortal)
	require.NoError(t, err)
	_, err = f.verifier.Verify(ctx, raw, handoff.SurfaceClientPortal)
	require.NoError(t, err)
}

func TestVerify_ReplayGuard(t *testing.T) {
	var f *testFixture
	guard := handoff.NewMemoryReplayGuard(func() time.Time { return f.now })
	f = setupTestFixture(t, handoff.WithReplayGuard(guard))
	ctx := context.Background()

	raw, err := f.issuer.Issue(ctx, f.admin(t, "alice"), handoff.SurfaceClientPortal)
	require.NoError(t, err)

	_, err = f.verifier.Verify(ctx, raw, handoff.SurfaceClientPortal)
	require.NoError(t, err)
	_, err = f.verifier.Verify(ctx, raw, handoff.SurfaceClientPortal)
	require.ErrorIs(t, err, handoff.ErrReplayed)

	f.now = f.now.Add(handoff.DefaultTTL + time.Second)
	require.Equal(t, 1, guard.Cleanup())
	require.Zero(t, guard.Len())
}

func TestVerify_ReplayGuardRequiresNonce(t *testing.T) {
	f := setupTestFixture(t, handoff.WithReplayGuard(handoff.NewMemoryReplayGuard(nil)))

	raw, err := f.codec.Encode(token.Claims{
		SubjectID: 70, SubjectLogin: "alice", SubjectRole: "admin", TargetSurface: "client_portal",
		IssuedAt: f.now.Unix(), ExpiresAt: f.now.Add(time.Minute).Unix(),
	})
	require.NoError(t, err)

	_, err = f.verifier.Verify(context.Background(), raw, handoff.SurfaceClientPortal)
	require.ErrorIs(t, err, handoff.ErrInvalid)
}

func TestRedeem_EstablishesSession(t *testing.T) {
	f := setupTestFixture(t)
	ctx := context.Background()

	raw, err := f.issuer.Issue(ctx, f.admin(t, "alice"), handoff.SurfaceClientPortal)
	require.NoError(t, err)

	require.NoError(t, f.sessionRepo.Upsert(ctx, &sessions.Session{ID: "anon-1"}))
	s, err := f.verifier.Redeem(ctx, raw, handoff.SurfaceClientPortal, "anon-1")
	require.NoError(t, err)
	require.NotEqual(t, "anon-1", s.ID)
	require.Equal(t, int64(70), s.UserID)
	require.Equal(t, users.RoleAdmin, s.Role)
	require.Equal(t, sessions.HandoffOrigin("client_portal"), s.Origin)
	require.Equal(t, 1, f.sessionRepo.Len())
}

func TestRedeem_FailureCreatesNoSession(t *testing.T) {
	f := setupTestFixture(t)

	_, err := f.verifier.Redeem(context.Background(), "not-a-token", handoff.SurfaceClientPortal, "")
	require.ErrorIs(t, err, handoff.ErrHandoffFailed)
	require.Zero(t, f.sessionRepo.Len())
}

func TestTarget_RedirectURL(t *testing.T) {
	f := setupTestFixture(t)
	target, ok := f.issuer.Target(handoff.SurfaceClientPortal)
	require.True(t, ok)

	link, err := target.RedirectURL("abc.def")
	require.NoError(t, err)

	u, err := url.Parse(link)
	require.NoError(t, err)
	require.Equal(t, "portal.example.test", u.Host)
	require.Equal(t, handoff.RedeemPath, u.Path)
	require.Equal(t, "abc.def", u.Query().Get("token"))

	_, err = handoff.Target{}.RedirectURL("abc")
	require.Error(t, err)
}
