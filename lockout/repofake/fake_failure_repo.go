package fakefailurerepo

import (
	"context"
	"sync"
	"time"

	"github.com/jrsteele09/go-surface-auth/lockout"
)

var _ lockout.FailureRepo = (*FakeFailureRepo)(nil)

// FakeFailureRepo keeps failure records in memory. It is also the store used by single-process
// deployments.
type FakeFailureRepo struct {
	records map[string][]lockout.FailureRecord
	err     error
	lock    sync.RWMutex
}

func NewFakeFailureRepo() *FakeFailureRepo {
	return &FakeFailureRepo{
		records: make(map[string][]lockout.FailureRecord),
	}
}

func (r *FakeFailureRepo) Insert(_ context.Context, record lockout.FailureRecord) error {
	r.lock.Lock()
	defer r.lock.Unlock()

	if r.err != nil {
		return r.err
	}
	r.records[record.LoginName] = append(r.records[record.LoginName], record)
	return nil
}

func (r *FakeFailureRepo) CountSince(_ context.Context, loginName string, since time.Time) (int, error) {
	r.lock.RLock()
	defer r.lock.RUnlock()

	if r.err != nil {
		return 0, r.err
	}
	count := 0
	for _, rec := range r.records[loginName] {
		if rec.Timestamp.After(since) {
			count++
		}
	}
	return count, nil
}

func (r *FakeFailureRepo) DeleteAll(_ context.Context, loginName string) error {
	r.lock.Lock()
	defer r.lock.Unlock()

	if r.err != nil {
		return r.err
	}
	delete(r.records, loginName)
	return nil
}

// Records returns a copy of the stored records for loginName.
func (r *FakeFailureRepo) Records(loginName string) []lockout.FailureRecord {
	r.lock.RLock()
	defer r.lock.RUnlock()

	out := make([]lockout.FailureRecord, len(r.records[loginName]))
	copy(out, r.records[loginName])
	return out
}

// SetError makes every call fail with err. Pass nil to clear.
func (r *FakeFailureRepo) SetError(err error) {
	r.lock.Lock()
	defer r.lock.Unlock()
	r.err = err
}

// Prune drops records older than cutoff. Used by the in-process sweeper.
func (r *FakeFailureRepo) Prune(cutoff time.Time) {
	r.lock.Lock()
	defer r.lock.Unlock()

	for login, recs := range r.records {
		kept := recs[:0]
		for _, rec := range recs {
			if rec.Timestamp.After(cutoff) {
				kept = append(kept, rec)
			}
		}
		if len(kept) == 0 {
			delete(r.records, login)
		} else {
			r.records[login] = kept
		}
	}
}
