package fakeuserrepo

import (
	"context"
	"errors"
	"sync"

	"github.com/jrsteele09/go-surface-auth/users"
)

var _ users.UserRepo = (*FakeUserRepo)(nil)

// FakeUserRepo is an in-memory credential store. It returns copies so callers can not mutate
// the stored accounts.
type FakeUserRepo struct {
	users    map[int64]*users.User
	loginIDs map[string]int64 // normalized login name to user id
	nextID   int64
	err      error // returned by every lookup when set
	lock     sync.RWMutex
}

func NewFakeUserRepo() *FakeUserRepo {
	return &FakeUserRepo{
		users:    make(map[int64]*users.User),
		loginIDs: make(map[string]int64),
	}
}

// Upsert stores a user, assigning an id when ID is zero.
func (ur *FakeUserRepo) Upsert(user *users.User) error {
	if user.LoginName == "" {
		return errors.New("login name is required")
	}
	ur.lock.Lock()
	defer ur.lock.Unlock()

	if user.ID == 0 {
		ur.nextID++
		user.ID = ur.nextID
	} else if user.ID > ur.nextID {
		ur.nextID = user.ID
	}
	if existing, ok := ur.users[user.ID]; ok {
		delete(ur.loginIDs, users.NormalizeLogin(existing.LoginName))
	}
	stored := *user
	ur.users[user.ID] = &stored
	ur.loginIDs[users.NormalizeLogin(user.LoginName)] = user.ID
	return nil
}

func (ur *FakeUserRepo) Delete(loginName string) error {
	ur.lock.Lock()
	defer ur.lock.Unlock()

	key := users.NormalizeLogin(loginName)
	id, ok := ur.loginIDs[key]
	if !ok {
		return users.ErrNotFound
	}
	delete(ur.loginIDs, key)
	delete(ur.users, id)
	return nil
}

func (ur *FakeUserRepo) GetByLogin(_ context.Context, loginName string) (*users.User, error) {
	ur.lock.RLock()
	defer ur.lock.RUnlock()

	if ur.err != nil {
		return nil, ur.err
	}
	id, ok := ur.loginIDs[users.NormalizeLogin(loginName)]
	if !ok {
		return nil, users.ErrNotFound
	}
	u := *ur.users[id]
	return &u, nil
}

func (ur *FakeUserRepo) GetByID(_ context.Context, id int64) (*users.User, error) {
	ur.lock.RLock()
	defer ur.lock.RUnlock()

	if ur.err != nil {
		return nil, ur.err
	}
	stored, ok := ur.users[id]
	if !ok {
		return nil, users.ErrNotFound
	}
	u := *stored
	return &u, nil
}

func (ur *FakeUserRepo) SetActive(loginName string, active bool) error {
	return ur.update(loginName, func(u *users.User) { u.Active = active })
}

func (ur *FakeUserRepo) SetRole(loginName string, role users.RoleType) error {
	return ur.update(loginName, func(u *users.User) { u.Role = role })
}

// SetError makes every lookup fail with err, simulating an unreachable store. Pass nil to clear.
func (ur *FakeUserRepo) SetError(err error) {
	ur.lock.Lock()
	defer ur.lock.Unlock()
	ur.err = err
}

// Len returns the number of stored users.
func (ur *FakeUserRepo) Len() int {
	ur.lock.RLock()
	defer ur.lock.RUnlock()
	return len(ur.users)
}

func (ur *FakeUserRepo) update(loginName string, fn func(u *users.User)) error {
	ur.lock.Lock()
	defer ur.lock.Unlock()

	id, ok := ur.loginIDs[users.NormalizeLogin(loginName)]
	if !ok {
		return users.ErrNotFound
	}
	fn(ur.users[id])
	return nil
}
