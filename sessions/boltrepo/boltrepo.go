// Package boltrepo provides a BBolt-backed session repository for single-node deployments that
// need sessions to survive a restart.
package boltrepo

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jrsteele09/go-surface-auth/sessions"
	"github.com/pkg/errors"
	"go.etcd.io/bbolt"
)

var bucketName = []byte("sessions")

// SessionRepo implements sessions.Repo backed by a BBolt database.
type SessionRepo struct {
	db *bbolt.DB
}

var _ sessions.Repo = (*SessionRepo)(nil)

// NewSessionRepo returns a repository over db, creating the bucket if needed.
func NewSessionRepo(db *bbolt.DB) (*SessionRepo, error) {
	err := db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketName)
		return err
	})
	if err != nil {
		return nil, errors.Wrap(err, "[boltrepo.NewSessionRepo] create bucket")
	}
	return &SessionRepo{db: db}, nil
}

// Open opens the BBolt database at path and returns a repository over it.
func Open(path string, options *bbolt.Options) (*SessionRepo, error) {
	db, err := bbolt.Open(path, 0600, options)
	if err != nil {
		return nil, errors.Wrapf(err, "[boltrepo.Open] %s", path)
	}
	repo, err := NewSessionRepo(db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return repo, nil
}

func (r *SessionRepo) Close() error {
	return r.db.Close()
}

func (r *SessionRepo) Upsert(_ context.Context, session *sessions.Session) error {
	data, err := json.Marshal(session)
	if err != nil {
		return errors.Wrap(err, "[SessionRepo.Upsert] marshal")
	}
	return r.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketName).Put([]byte(session.ID), data)
	})
}

func (r *SessionRepo) Get(_ context.Context, sessionID string) (*sessions.Session, error) {
	var s sessions.Session
	err := r.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketName).Get([]byte(sessionID))
		if data == nil {
			return sessions.ErrNotFound
		}
		return json.Unmarshal(data, &s)
	})
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *SessionRepo) Delete(_ context.Context, sessionID string) error {
	return r.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketName).Delete([]byte(sessionID))
	})
}

func (r *SessionRepo) DeleteIdleSince(_ context.Context, cutoff time.Time) (int, error) {
	n := 0
	err := r.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketName)
		var stale [][]byte
		err := b.ForEach(func(k, v []byte) error {
			var s sessions.Session
			if err := json.Unmarshal(v, &s); err != nil {
				// unreadable entries are dropped with the stale ones
				stale = append(stale, append([]byte(nil), k...))
				return nil
			}
			if s.LastSeenAt.Before(cutoff) {
				stale = append(stale, append([]byte(nil), k...))
			}
			return nil
		})
		if err != nil {
			return err
		}
		for _, k := range stale {
			if err := b.Delete(k); err != nil {
				return err
			}
		}
		n = len(stale)
		return nil
	})
	if err != nil {
		return 0, errors.Wrap(err, "[SessionRepo.DeleteIdleSince]")
	}
	return n, nil
}
