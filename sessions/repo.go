package sessions

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by a Repo when no session has the requested id.
var ErrNotFound = errors.New("session not found")

// Repo defines the interface for session storage operations.
type Repo interface {
	// Upsert creates or replaces a session keyed by its ID
	Upsert(ctx context.Context, session *Session) error

	// Get retrieves a session by ID, or ErrNotFound
	Get(ctx context.Context, sessionID string) (*Session, error)

	// Delete removes a session by ID. Deleting a missing session is not an error.
	Delete(ctx context.Context, sessionID string) error

	// DeleteIdleSince removes sessions whose LastSeenAt is before cutoff and returns how many
	DeleteIdleSince(ctx context.Context, cutoff time.Time) (int, error)
}
