// Package postgres provides a Postgres-backed credential store.
package postgres

import (
	"context"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jrsteele09/go-surface-auth/internal/pgstore"
	"github.com/jrsteele09/go-surface-auth/users"
	"github.com/pkg/errors"
)

// Schema is the table layout the repository reads from.
const Schema = `CREATE TABLE IF NOT EXISTS users (
	id            BIGSERIAL PRIMARY KEY,
	login_name    TEXT NOT NULL,
	display_name  TEXT NOT NULL DEFAULT '',
	role          TEXT NOT NULL,
	password_hash TEXT NOT NULL,
	active        BOOLEAN NOT NULL DEFAULT TRUE
);
CREATE UNIQUE INDEX IF NOT EXISTS users_login_name_idx ON users (lower(login_name));`

var userColumns = []string{"id", "login_name", "display_name", "role", "password_hash", "active"}

// UserRepo reads accounts from a users table.
type UserRepo struct {
	exec    pgstore.Executor
	builder squirrel.StatementBuilderType
	table   string
}

var _ users.UserRepo = (*UserRepo)(nil)

// NewUserRepo wires the repository to a pool. table defaults to "users".
func NewUserRepo(exec pgstore.Executor, table string) *UserRepo {
	if table == "" {
		table = "users"
	}
	return &UserRepo{
		exec:    exec,
		builder: pgstore.Builder(),
		table:   table,
	}
}

func (r *UserRepo) GetByLogin(ctx context.Context, loginName string) (*users.User, error) {
	query := r.builder.Select(userColumns...).
		From(r.table).
		Where(squirrel.Expr("lower(login_name) = ?", users.NormalizeLogin(loginName))).
		Limit(1)
	return r.getOne(ctx, query)
}

func (r *UserRepo) GetByID(ctx context.Context, id int64) (*users.User, error) {
	query := r.builder.Select(userColumns...).
		From(r.table).
		Where(squirrel.Eq{"id": id}).
		Limit(1)
	return r.getOne(ctx, query)
}

func (r *UserRepo) getOne(ctx context.Context, query squirrel.SelectBuilder) (*users.User, error) {
	sql, args, err := query.ToSql()
	if err != nil {
		return nil, errors.Wrap(err, "[UserRepo] build query")
	}

	var (
		u    users.User
		role string
	)
	err = r.exec.QueryRow(ctx, sql, args...).Scan(&u.ID, &u.LoginName, &u.DisplayName, &role, &u.PasswordHash, &u.Active)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, users.ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "[UserRepo] query user")
	}

	parsed, err := users.ParseRole(role)
	if err != nil {
		return nil, errors.Wrapf(err, "[UserRepo] user %d", u.ID)
	}
	u.Role = parsed
	return &u, nil
}
