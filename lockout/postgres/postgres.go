// Package postgres stores authentication failures in a Postgres table.
package postgres

import (
	"context"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/jrsteele09/go-surface-auth/internal/pgstore"
	"github.com/jrsteele09/go-surface-auth/lockout"
	"github.com/pkg/errors"
)

const Schema = `CREATE TABLE IF NOT EXISTS login_failures (
	id             BIGSERIAL PRIMARY KEY,
	login_name     TEXT NOT NULL,
	occurred_at    TIMESTAMPTZ NOT NULL,
	source_address TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS login_failures_login_idx ON login_failures (login_name, occurred_at);`

const table = "login_failures"

type FailureRepo struct {
	exec    pgstore.Executor
	builder squirrel.StatementBuilderType
}

var _ lockout.FailureRepo = (*FailureRepo)(nil)

func NewFailureRepo(exec pgstore.Executor) *FailureRepo {
	return &FailureRepo{exec: exec, builder: pgstore.Builder()}
}

func (r *FailureRepo) Insert(ctx context.Context, record lockout.FailureRecord) error {
	sql, args, err := r.builder.Insert(table).
		Columns("login_name", "occurred_at", "source_address").
		Values(record.LoginName, record.Timestamp.UTC(), record.SourceAddress).
		ToSql()
	if err != nil {
		return errors.Wrap(err, "[FailureRepo.Insert] build query")
	}
	if _, err := r.exec.Exec(ctx, sql, args...); err != nil {
		return errors.Wrap(err, "[FailureRepo.Insert]")
	}
	return nil
}

func (r *FailureRepo) CountSince(ctx context.Context, loginName string, since time.Time) (int, error) {
	sql, args, err := r.builder.Select("count(*)").
		From(table).
		Where(squirrel.Eq{"login_name": loginName}).
		Where(squirrel.Gt{"occurred_at": since.UTC()}).
		ToSql()
	if err != nil {
		return 0, errors.Wrap(err, "[FailureRepo.CountSince] build query")
	}

	var count int64
	if err := r.exec.QueryRow(ctx, sql, args...).Scan(&count); err != nil {
		return 0, errors.Wrap(err, "[FailureRepo.CountSince]")
	}
	return int(count), nil
}

func (r *FailureRepo) DeleteAll(ctx context.Context, loginName string) error {
	sql, args, err := r.builder.Delete(table).
		Where(squirrel.Eq{"login_name": loginName}).
		ToSql()
	if err != nil {
		return errors.Wrap(err, "[FailureRepo.DeleteAll] build query")
	}
	if _, err := r.exec.Exec(ctx, sql, args...); err != nil {
		return errors.Wrap(err, "[FailureRepo.DeleteAll]")
	}
	return nil
}

// Prune deletes failures at or before cutoff and returns how many were removed.
func (r *FailureRepo) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	sql, args, err := r.builder.Delete(table).
		Where(squirrel.LtOrEq{"occurred_at": cutoff.UTC()}).
		ToSql()
	if err != nil {
		return 0, errors.Wrap(err, "[FailureRepo.Prune] build query")
	}
	tag, err := r.exec.Exec(ctx, sql, args...)
	if err != nil {
		return 0, errors.Wrap(err, "[FailureRepo.Prune]")
	}
	return tag.RowsAffected(), nil
}
