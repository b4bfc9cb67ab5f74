package jobs

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNotFound   = errors.New("jobs: not found")
	ErrInvalidJob = errors.New("jobs: invalid job")
)

// Enqueuer is the write side used by webhook processing.
// Enqueue is idempotent on Job.IdempotencyKey: a duplicate returns
// created=false and a nil error.
type Enqueuer interface {
	Enqueue(ctx context.Context, j Job) (created bool, err error)
}

// Queue is the persistence contract for processing jobs.
type Queue interface {
	Enqueuer

	// Claim moves up to limit runnable jobs to processing and increments their
	// attempts. A job is runnable when it is pending and due, or when a previous
	// claim's lease has expired. Concurrent claimers never receive the same job.
	Claim(ctx context.Context, now time.Time, limit int) ([]Job, error)

	Complete(ctx context.Context, id string, now time.Time) error
	// Retry puts the job back to pending, runnable at retryAt.
	Retry(ctx context.Context, id, cause string, retryAt time.Time) error
	// Fail marks the job as permanently failed.
	Fail(ctx context.Context, id, cause string, now time.Time) error

	ListByCall(ctx context.Context, callSid string) ([]Job, error)
}

// DefaultLease bounds how long a claimed job stays invisible to other claimers.
const DefaultLease = 5 * time.Minute

func validate(j Job) error {
	if j.CallSid == "" || j.Operation == "" || j.IdempotencyKey == "" {
		return ErrInvalidJob
	}
	return nil
}
