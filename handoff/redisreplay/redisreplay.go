// Package redisreplay shares consumed handoff nonces between instances through Redis.
package redisreplay

import (
	"context"
	"time"

	"github.com/jrsteele09/go-surface-auth/handoff"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

const defaultKeyPrefix = "surface_auth:handoff_nonce:"

// minTTL keeps a key alive when the token expires within the same second.
const minTTL = time.Second

type ReplayGuard struct {
	client    redis.UniversalClient
	keyPrefix string
	nowFunc   func() time.Time
}

var _ handoff.ReplayGuard = (*ReplayGuard)(nil)

func New(client redis.UniversalClient, keyPrefix string) *ReplayGuard {
	if keyPrefix == "" {
		keyPrefix = defaultKeyPrefix
	}
	return &ReplayGuard{client: client, keyPrefix: keyPrefix, nowFunc: time.Now}
}

// Consume uses SET NX so exactly one concurrent redemption wins.
func (g *ReplayGuard) Consume(ctx context.Context, nonce string, expiresAt time.Time) (bool, error) {
	ttl := expiresAt.Sub(g.nowFunc())
	if ttl < minTTL {
		ttl = minTTL
	}
	ok, err := g.client.SetNX(ctx, g.keyPrefix+nonce, expiresAt.Unix(), ttl).Result()
	if err != nil {
		return false, errors.Wrap(err, "[ReplayGuard.Consume] setnx")
	}
	return ok, nil
}
