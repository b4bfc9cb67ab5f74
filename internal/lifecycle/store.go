package lifecycle

import (
	"context"
	"errors"
)

var ErrNotFound = errors.New("lifecycle: not found")

// Store is the persistence contract for call lifecycle state.
//
// All writes must be atomic single statements keyed on unique constraints; no
// read-then-write. Concurrent deliveries for the same call are resolved by the
// database, not by application locks.
type Store interface {
	// UpsertLifecycle inserts or overwrites the record for rec.CallSid.
	// With guard set, an update whose rank is below the stored rank for the
	// same kind is skipped and applied is false.
	UpsertLifecycle(ctx context.Context, rec Record, guard bool) (applied bool, err error)

	// AppendTimeline inserts e unless (call_sid, event, idempotency_key) exists.
	// A duplicate returns inserted=false and a nil error.
	AppendTimeline(ctx context.Context, e TimelineEntry) (inserted bool, err error)

	GetLifecycle(ctx context.Context, callSid string) (Record, error)
	ListTimeline(ctx context.Context, callSid string) ([]TimelineEntry, error)
}
