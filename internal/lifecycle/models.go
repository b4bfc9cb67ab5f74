package lifecycle

import "time"

// Event is one accepted, normalized webhook delivery.
//
// It is built per request by the telephony normalizer and never stored as-is;
// the recorder projects it into a Record and a TimelineEntry.
type Event struct {
	ProviderCallID string
	Kind           EventKind
	Status         string
	Label          StatusLabel

	// IdempotencyKey is derived from the event contents, see telephony.IdempotencyKey.
	IdempotencyKey string

	// RawFields holds every form field the provider sent.
	RawFields map[string]string

	ReceivedAt time.Time
}

// Record is the latest known state of one provider call (call_lifecycle).
//
// Invariants:
// - exactly one row per provider call id (upsert on conflict)
// - last write wins by arrival order unless the monotonic guard is enabled
type Record struct {
	CallSid    string            `json:"call_sid" db:"call_sid"`
	Kind       EventKind         `json:"kind" db:"kind"`
	Status     StatusLabel       `json:"status" db:"status"`
	StatusRank int               `json:"-" db:"status_rank"`
	Metadata   map[string]string `json:"metadata" db:"meta"`
	UpdatedAt  time.Time         `json:"updated_at" db:"updated_at"`
}

// TimelineEntry is an immutable audit row (call_timeline).
// Unique on (call_sid, event, idempotency_key); never updated after insert.
type TimelineEntry struct {
	ID             string            `json:"id" db:"id"`
	CallSid        string            `json:"call_sid" db:"call_sid"`
	Event          StatusLabel       `json:"event" db:"event"`
	IdempotencyKey string            `json:"idempotency_key" db:"idempotency_key"`
	Timestamp      time.Time         `json:"timestamp" db:"timestamp"`
	Metadata       map[string]string `json:"metadata" db:"metadata"`
}

// Result describes what Process did for an event.
type Result struct {
	ProviderCallID string
	Label          StatusLabel
	IdempotencyKey string

	// LifecycleApplied is false when the monotonic guard skipped the update.
	LifecycleApplied bool
	// TimelineInserted is false for a duplicate delivery or a failed append.
	TimelineInserted bool
	// JobEnqueued is true only when a new follow-on job row was created.
	JobEnqueued bool
}
