package fakesessionrepo

import (
	"context"
	"sync"
	"time"

	"github.com/jrsteele09/go-surface-auth/sessions"
)

var _ sessions.Repo = (*FakeSessionRepo)(nil)

type FakeSessionRepo struct {
	sessions map[string]*sessions.Session
	err      error
	lock     sync.RWMutex
}

func NewFakeSessionRepo() *FakeSessionRepo {
	return &FakeSessionRepo{
		sessions: make(map[string]*sessions.Session),
	}
}

func (sr *FakeSessionRepo) Upsert(_ context.Context, session *sessions.Session) error {
	sr.lock.Lock()
	defer sr.lock.Unlock()

	if sr.err != nil {
		return sr.err
	}
	stored := *session
	sr.sessions[session.ID] = &stored
	return nil
}

func (sr *FakeSessionRepo) Get(_ context.Context, sessionID string) (*sessions.Session, error) {
	sr.lock.RLock()
	defer sr.lock.RUnlock()

	if sr.err != nil {
		return nil, sr.err
	}
	stored, ok := sr.sessions[sessionID]
	if !ok {
		return nil, sessions.ErrNotFound
	}
	s := *stored
	return &s, nil
}

func (sr *FakeSessionRepo) Delete(_ context.Context, sessionID string) error {
	sr.lock.Lock()
	defer sr.lock.Unlock()

	if sr.err != nil {
		return sr.err
	}
	delete(sr.sessions, sessionID)
	return nil
}

func (sr *FakeSessionRepo) DeleteIdleSince(_ context.Context, cutoff time.Time) (int, error) {
	sr.lock.Lock()
	defer sr.lock.Unlock()

	if sr.err != nil {
		return 0, sr.err
	}
	n := 0
	for id, s := range sr.sessions {
		if s.LastSeenAt.Before(cutoff) {
			delete(sr.sessions, id)
			n++
		}
	}
	return n, nil
}

func (sr *FakeSessionRepo) Len() int {
	sr.lock.RLock()
	defer sr.lock.RUnlock()
	return len(sr.sessions)
}

// SetError makes every call fail with err. Pass nil to clear.
func (sr *FakeSessionRepo) SetError(err error) {
	sr.lock.Lock()
	defer sr.lock.Unlock()
	sr.err = err
}
