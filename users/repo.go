package users

import (
	"context"
	"errors"
)

// ErrNotFound is returned by a UserRepo when no account matches the lookup.
var ErrNotFound = errors.New("user not found")

// UserRepo is the credential store of one surface. Any other error than ErrNotFound means the
// store could not be reached.
type UserRepo interface {
	GetByLogin(ctx context.Context, loginName string) (*User, error)
	GetByID(ctx context.Context, id int64) (*User, error)
}
