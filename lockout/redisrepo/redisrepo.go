// Package redisrepo stores authentication failures as Redis sorted sets, one key per login
// identifier, scored by the failure time in nanoseconds.
package redisrepo

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jrsteele09/go-surface-auth/lockout"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

const defaultKeyPrefix = "surface_auth:failures:"

type Config struct {
	KeyPrefix string
	// TTL is refreshed on every insert and must be at least the lockout window.
	TTL time.Duration
}

type FailureRepo struct {
	client redis.UniversalClient
	cfg    Config
}

var _ lockout.FailureRepo = (*FailureRepo)(nil)

func NewFailureRepo(client redis.UniversalClient, cfg Config) *FailureRepo {
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = defaultKeyPrefix
	}
	if cfg.TTL <= 0 {
		cfg.TTL = lockout.DefaultWindow
	}
	return &FailureRepo{client: client, cfg: cfg}
}

func (r *FailureRepo) Insert(ctx context.Context, record lockout.FailureRecord) error {
	key := r.key(record.LoginName)
	score := record.Timestamp.UnixNano()
	member := fmt.Sprintf("%d:%s:%s", score, record.SourceAddress, uuid.NewString())

	pipe := r.client.TxPipeline()
	pipe.ZAdd(ctx, key, redis.Z{Score: float64(score), Member: member})
	pipe.ZRemRangeByScore(ctx, key, "-inf", strconv.FormatInt(record.Timestamp.Add(-r.cfg.TTL).UnixNano(), 10))
	pipe.Expire(ctx, key, r.cfg.TTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return errors.Wrap(err, "[FailureRepo.Insert] redis pipeline")
	}
	return nil
}

func (r *FailureRepo) CountSince(ctx context.Context, loginName string, since time.Time) (int, error) {
	// "(" makes the lower bound exclusive
	count, err := r.client.ZCount(ctx, r.key(loginName), "("+strconv.FormatInt(since.UnixNano(), 10), "+inf").Result()
	if err != nil {
		return 0, errors.Wrap(err, "[FailureRepo.CountSince] zcount")
	}
	return int(count), nil
}

func (r *FailureRepo) DeleteAll(ctx context.Context, loginName string) error {
	if err := r.client.Del(ctx, r.key(loginName)).Err(); err != nil {
		return errors.Wrap(err, "[FailureRepo.DeleteAll] del")
	}
	return nil
}

func (r *FailureRepo) key(loginName string) string {
	return r.cfg.KeyPrefix + loginName
}
