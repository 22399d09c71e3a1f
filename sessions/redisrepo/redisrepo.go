// Package redisrepo stores sessions as JSON values in Redis. Keys expire after the idle timeout,
// which is refreshed on every Upsert, so Redis performs the idle sweep itself.
package redisrepo

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jrsteele09/go-surface-auth/sessions"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

const defaultKeyPrefix = "surface_auth:session:"

type Config struct {
	KeyPrefix string
	TTL       time.Duration
}

type SessionRepo struct {
	client redis.UniversalClient
	cfg    Config
}

var _ sessions.Repo = (*SessionRepo)(nil)

func NewSessionRepo(client redis.UniversalClient, cfg Config) *SessionRepo {
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = defaultKeyPrefix
	}
	if cfg.TTL <= 0 {
		cfg.TTL = sessions.DefaultIdleTimeout
	}
	return &SessionRepo{client: client, cfg: cfg}
}

func (r *SessionRepo) Upsert(ctx context.Context, session *sessions.Session) error {
	data, err := json.Marshal(session)
	if err != nil {
		return errors.Wrap(err, "[SessionRepo.Upsert] marshal")
	}
	if err := r.client.Set(ctx, r.key(session.ID), data, r.cfg.TTL).Err(); err != nil {
		return errors.Wrap(err, "[SessionRepo.Upsert] set")
	}
	return nil
}

func (r *SessionRepo) Get(ctx context.Context, sessionID string) (*sessions.Session, error) {
	data, err := r.client.Get(ctx, r.key(sessionID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, sessions.ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "[SessionRepo.Get]")
	}

	var s sessions.Session
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, errors.Wrap(err, "[SessionRepo.Get] unmarshal")
	}
	return &s, nil
}

func (r *SessionRepo) Delete(ctx context.Context, sessionID string) error {
	if err := r.client.Del(ctx, r.key(sessionID)).Err(); err != nil {
		return errors.Wrap(err, "[SessionRepo.Delete]")
	}
	return nil
}

// DeleteIdleSince is a no-op: key expiry already removes idle sessions.
func (r *SessionRepo) DeleteIdleSince(context.Context, time.Time) (int, error) {
	return 0, nil
}

func (r *SessionRepo) key(id string) string {
	return r.cfg.KeyPrefix + id
}
