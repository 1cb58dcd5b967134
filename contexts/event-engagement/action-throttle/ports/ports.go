package ports

import (
	"context"
	"time"
)

// ThrottleStore is the shared per-client cooldown record. Each record
// maps an action-type code to its last-executed timestamp (unix
// milliseconds) plus a one-level undo slot per code. MarkExecuted and
// Rollback run under optimistic concurrency: a detected concurrent
// writer aborts with the conflict sentinel, never a silent overwrite.
type ThrottleStore interface {
	LastExecuted(ctx context.Context, clientID string, code string) (int64, bool, error)
	// MarkExecuted shifts the current timestamp into the previous slot
	// and writes now in one transaction.
	MarkExecuted(ctx context.Context, clientID string, code string, now int64) error
	// Rollback restores the previous slot, or removes the entry entirely
	// when no previous value exists, lifting the cooldown. Safe to repeat.
	Rollback(ctx context.Context, clientID string, code string) error
}

type Clock interface {
	Now() time.Time
}
