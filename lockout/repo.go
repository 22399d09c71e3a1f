package lockout

import (
	"context"
	"time"
)

// FailureRecord is one failed authentication attempt. Records are never updated, only deleted
// as a set when the identifier next authenticates successfully.
type FailureRecord struct {
	LoginName     string    `json:"login_name"`
	Timestamp     time.Time `json:"timestamp"`
	SourceAddress string    `json:"source_address,omitempty"`
}

// FailureRepo stores FailureRecords. Implementations must be safe for concurrent use without
// caller-side locking.
type FailureRepo interface {
	// Insert appends a record.
	Insert(ctx context.Context, record FailureRecord) error

	// CountSince counts records for loginName with Timestamp strictly after since.
	CountSince(ctx context.Context, loginName string, since time.Time) (int, error)

	// DeleteAll removes every record for loginName.
	DeleteAll(ctx context.Context, loginName string) error
}
