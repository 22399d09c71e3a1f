package server

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jrsteele09/go-surface-auth/auth"
	"github.com/jrsteele09/go-surface-auth/handoff"
	"github.com/jrsteele09/go-surface-auth/handoff/redisreplay"
	"github.com/jrsteele09/go-surface-auth/internal/config"
	"github.com/jrsteele09/go-surface-auth/internal/logging"
	"github.com/jrsteele09/go-surface-auth/internal/metrics"
	"github.com/jrsteele09/go-surface-auth/internal/pgstore"
	"github.com/jrsteele09/go-surface-auth/lockout"
	lockoutpg "github.com/jrsteele09/go-surface-auth/lockout/postgres"
	lockoutredis "github.com/jrsteele09/go-surface-auth/lockout/redisrepo"
	fakefailurerepo "github.com/jrsteele09/go-surface-auth/lockout/repofake"
	"github.com/jrsteele09/go-surface-auth/sessions"
	"github.com/jrsteele09/go-surface-auth/sessions/boltrepo"
	sessionsredis "github.com/jrsteele09/go-surface-auth/sessions/redisrepo"
	fakesessionrepo "github.com/jrsteele09/go-surface-auth/sessions/repofakes"
	"github.com/jrsteele09/go-surface-auth/token"
	"github.com/jrsteele09/go-surface-auth/users"
	userspg "github.com/jrsteele09/go-surface-auth/users/postgres"
	fakeuserrepo "github.com/jrsteele09/go-surface-auth/users/repofake"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"go.etcd.io/bbolt"
)

// DefaultSuperAdminLogin is seeded into in-memory credential stores when no login is configured.
const DefaultSuperAdminLogin = "admin"

// builder collects the shared clients while the components are assembled so they are opened once
// and closed together.
type builder struct {
	cfg     config.Config
	pool    *pgxpool.Pool
	redis   *redis.Client
	closers []func()
}

func (b *builder) postgres(ctx context.Context) (*pgxpool.Pool, error) {
	if b.pool != nil {
		return b.pool, nil
	}
	pool, err := pgstore.NewPool(ctx, b.cfg.GetPostgresDSN(), b.cfg.GetPostgresMaxConns())
	if err != nil {
		return nil, err
	}
	b.pool = pool
	b.closers = append(b.closers, pool.Close)
	return pool, nil
}

func (b *builder) redisClient(ctx context.Context) (*redis.Client, error) {
	if b.redis != nil {
		return b.redis, nil
	}
	opts, err := redis.ParseURL(b.cfg.GetRedisURL())
	if err != nil {
		return nil, errors.Wrap(err, "[BuildDeps] parse redis url")
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, errors.Wrap(err, "[BuildDeps] ping redis")
	}
	b.redis = client
	b.closers = append(b.closers, func() { _ = client.Close() })
	return client, nil
}

func (b *builder) close() {
	for i := len(b.closers) - 1; i >= 0; i-- {
		b.closers[i]()
	}
}

// BuildDeps assembles every component named by cfg. The returned func releases the store clients.
func BuildDeps(ctx context.Context, cfg config.Config, reg prometheus.Registerer) (Deps, func(), error) {
	b := &builder{cfg: cfg}
	deps, err := b.build(ctx, reg)
	if err != nil {
		b.close()
		return Deps{}, func() {}, err
	}
	return deps, b.close, nil
}

func (b *builder) build(ctx context.Context, reg prometheus.Registerer) (Deps, error) {
	cfg := b.cfg
	deps := Deps{Metrics: metrics.New(reg)}
	if g, ok := reg.(prometheus.Gatherer); ok {
		deps.Gatherer = g
	}
	own := handoff.Surface(cfg.GetSurface())

	userRepos := make(map[handoff.Surface]users.UserRepo)
	for _, name := range cfg.GetSurfaces() {
		repo, err := b.userRepo(ctx, handoff.Surface(name))
		if err != nil {
			return Deps{}, err
		}
		userRepos[handoff.Surface(name)] = repo
	}

	failures, err := b.failureRepo(ctx, &deps)
	if err != nil {
		return Deps{}, err
	}
	guard, err := lockout.NewGuard(failures,
		lockout.WithThreshold(cfg.GetLockoutThreshold()),
		lockout.WithWindow(cfg.GetLockoutWindow()),
		lockout.WithStoreTimeout(cfg.GetStoreTimeout()),
	)
	if err != nil {
		return Deps{}, err
	}

	deps.Verifier, err = auth.NewVerifier(userRepos[own], guard,
		auth.WithStoreTimeout(cfg.GetStoreTimeout()),
		auth.WithMetrics(deps.Metrics),
		auth.WithRevealUnknownLogin(cfg.GetRevealUnknownLogin()),
	)
	if err != nil {
		return Deps{}, err
	}

	sessionRepo, err := b.sessionRepo(ctx)
	if err != nil {
		return Deps{}, err
	}
	deps.Sessions, err = sessions.NewManager(sessionRepo, sessions.WithIdleTimeout(cfg.GetSessionIdleTimeout()))
	if err != nil {
		return Deps{}, err
	}

	key, err := token.NewSecretKey(cfg.GetHandoffSecret())
	if err != nil {
		return Deps{}, err
	}
	codec, err := token.NewCodec(token.NewHMACSigner(key))
	if err != nil {
		return Deps{}, err
	}

	var targets []handoff.Target
	var ownTarget handoff.Target
	for _, name := range cfg.GetSurfaces() {
		surface := handoff.Surface(name)
		policy, ok := handoff.PolicyFor(surface)
		if !ok {
			return Deps{}, errors.Errorf("[BuildDeps] no policy for surface %q", name)
		}
		target := handoff.Target{Policy: policy, Users: userRepos[surface], BaseURL: cfg.GetSurfaceBaseURL(name)}
		targets = append(targets, target)
		if surface == own {
			ownTarget = target
		}
	}

	deps.Issuer, err = handoff.NewIssuer(codec, targets,
		handoff.WithTTL(cfg.GetHandoffTTL()),
		handoff.WithIssuerMetrics(deps.Metrics),
	)
	if err != nil {
		return Deps{}, err
	}

	options := []handoff.VerifierOption{
		handoff.WithMaxLifetime(cfg.GetHandoffMaxLifetime()),
		handoff.WithMetrics(deps.Metrics),
	}
	replay, err := b.replayGuard(ctx, &deps)
	if err != nil {
		return Deps{}, err
	}
	if replay != nil {
		options = append(options, handoff.WithReplayGuard(replay))
	}
	deps.Redeemer, err = handoff.NewVerifier(codec, ownTarget, deps.Sessions, options...)
	if err != nil {
		return Deps{}, err
	}

	return deps, nil
}

func (b *builder) userRepo(ctx context.Context, surface handoff.Surface) (users.UserRepo, error) {
	if b.cfg.GetUsersStore() == config.StorePostgres {
		pool, err := b.postgres(ctx)
		if err != nil {
			return nil, err
		}
		return userspg.NewUserRepo(pool, b.cfg.GetSurfaceUsersTable(string(surface))), nil
	}

	repo := fakeuserrepo.NewFakeUserRepo()
	if err := seedSuperAdmin(repo, b.cfg, surface); err != nil {
		return nil, err
	}
	return repo, nil
}

// seedSuperAdmin creates the bootstrap account. A password is generated and logged once when
// none is configured.
func seedSuperAdmin(repo *fakeuserrepo.FakeUserRepo, cfg config.Config, surface handoff.Surface) error {
	login := cfg.GetBootstrapAdminLogin()
	if login == "" {
		login = DefaultSuperAdminLogin
	}
	password := cfg.GetBootstrapAdminPassword()
	generated := password == ""
	if generated {
		var err error
		if password, err = generateSecurePassword(); err != nil {
			return err
		}
	}

	hash, err := users.HashPassword(password)
	if err != nil {
		return errors.Wrap(err, "[BuildDeps] hash bootstrap password")
	}
	if err := repo.Upsert(&users.User{
		LoginName:    login,
		DisplayName:  "Super Admin",
		Role:         users.RoleSuperAdmin,
		PasswordHash: hash,
		Active:       true,
	}); err != nil {
		return errors.Wrap(err, "[BuildDeps] seed super admin")
	}

	event := log.Info().Str("surface", string(surface)).Str("login", logging.MaskLogin(login))
	if generated {
		// printed once, it is not stored anywhere else
		event = event.Str("password", password)
	}
	event.Msg("seeded super admin into in-memory credential store")
	return nil
}

func generateSecurePassword() (string, error) {
	b := make([]byte, 18)
	if _, err := rand.Read(b); err != nil {
		return "", errors.Wrap(err, "[BuildDeps] generate password")
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

func (b *builder) failureRepo(ctx context.Context, deps *Deps) (lockout.FailureRepo, error) {
	window := b.cfg.GetLockoutWindow()
	switch b.cfg.GetFailuresStore() {
	case config.StorePostgres:
		pool, err := b.postgres(ctx)
		if err != nil {
			return nil, err
		}
		repo := lockoutpg.NewFailureRepo(pool)
		deps.Cleanups = append(deps.Cleanups, func(ctx context.Context) {
			if _, err := repo.Prune(ctx, time.Now().Add(-window)); err != nil {
				log.Warn().Err(err).Msg("failed to prune login failures")
			}
		})
		return repo, nil
	case config.StoreRedis:
		client, err := b.redisClient(ctx)
		if err != nil {
			return nil, err
		}
		return lockoutredis.NewFailureRepo(client, lockoutredis.Config{TTL: window}), nil
	default:
		repo := fakefailurerepo.NewFakeFailureRepo()
		deps.Cleanups = append(deps.Cleanups, func(context.Context) {
			repo.Prune(time.Now().Add(-window))
		})
		return repo, nil
	}
}

func (b *builder) sessionRepo(ctx context.Context) (sessions.Repo, error) {
	switch b.cfg.GetSessionsStore() {
	case config.StoreRedis:
		client, err := b.redisClient(ctx)
		if err != nil {
			return nil, err
		}
		return sessionsredis.NewSessionRepo(client, sessionsredis.Config{TTL: b.cfg.GetSessionIdleTimeout()}), nil
	case config.StoreBolt:
		repo, err := boltrepo.Open(b.cfg.GetBoltPath(), &bbolt.Options{Timeout: b.cfg.GetStoreTimeout()})
		if err != nil {
			return nil, err
		}
		b.closers = append(b.closers, func() {
			if err := repo.Close(); err != nil {
				log.Warn().Err(err).Msg("failed to close session database")
			}
		})
		return repo, nil
	default:
		return fakesessionrepo.NewFakeSessionRepo(), nil
	}
}

func (b *builder) replayGuard(ctx context.Context, deps *Deps) (handoff.ReplayGuard, error) {
	switch b.cfg.GetReplayGuard() {
	case config.ReplayGuardMemory:
		guard := handoff.NewMemoryReplayGuard(nil)
		deps.Cleanups = append(deps.Cleanups, func(context.Context) { guard.Cleanup() })
		return guard, nil
	case config.ReplayGuardRedis:
		client, err := b.redisClient(ctx)
		if err != nil {
			return nil, err
		}
		return redisreplay.New(client, ""), nil
	default:
		return nil, nil
	}
}
