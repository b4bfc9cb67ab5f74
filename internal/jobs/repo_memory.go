package jobs

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryQueue mirrors PostgresQueue semantics in memory. Useful for tests.
type MemoryQueue struct {
	mu    sync.Mutex
	jobs  map[string]*Job
	byKey map[string]string
	lease time.Duration
	clock func() time.Time

	// FailEnqueue injects an enqueue error.
	FailEnqueue error
}

func NewMemoryQueue() *MemoryQueue {
	return &MemoryQueue{
		jobs:  make(map[string]*Job),
		byKey: make(map[string]string),
		lease: DefaultLease,
		clock: time.Now,
	}
}

func (q *MemoryQueue) Enqueue(ctx context.Context, j Job) (bool, error) {
	if err := validate(j); err != nil {
		return false, err
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.FailEnqueue != nil {
		return false, q.FailEnqueue
	}
	if _, dup := q.byKey[j.IdempotencyKey]; dup {
		return false, nil
	}
	j = prepare(j, q.clock().UTC())
	j.Attempts = 0
	q.jobs[j.ID] = &j
	q.byKey[j.IdempotencyKey] = j.ID
	return true, nil
}

func (q *MemoryQueue) Claim(ctx context.Context, now time.Time, limit int) ([]Job, error) {
	if limit <= 0 {
		return nil, nil
	}
	q.mu.Lock()
	defer q.mu.Unlock()

	var due []*Job
	for _, j := range q.jobs {
		if (j.Status == StatusPending || j.Status == StatusProcessing) && !j.NextRunAt.After(now) {
			due = append(due, j)
		}
	}
	sort.Slice(due, func(a, b int) bool {
		if !due[a].NextRunAt.Equal(due[b].NextRunAt) {
			return due[a].NextRunAt.Before(due[b].NextRunAt)
		}
		return due[a].CreatedAt.Before(due[b].CreatedAt)
	})
	if len(due) > limit {
		due = due[:limit]
	}

	out := make([]Job, 0, len(due))
	for _, j := range due {
		j.Status = StatusProcessing
		j.Attempts++
		j.NextRunAt = now.Add(q.lease)
		j.UpdatedAt = now
		out = append(out, *j)
	}
	return out, nil
}

func (q *MemoryQueue) Complete(ctx context.Context, id string, now time.Time) error {
	return q.update(id, func(j *Job) {
		j.Status = StatusDone
		j.LastError = ""
		j.UpdatedAt = now
	})
}

func (q *MemoryQueue) Retry(ctx context.Context, id, cause string, retryAt time.Time) error {
	return q.update(id, func(j *Job) {
		j.Status = StatusPending
		j.LastError = cause
		j.NextRunAt = retryAt
		j.UpdatedAt = q.clock()
	})
}

func (q *MemoryQueue) Fail(ctx context.Context, id, cause string, now time.Time) error {
	return q.update(id, func(j *Job) {
		j.Status = StatusFailed
		j.LastError = cause
		j.UpdatedAt = now
	})
}

func (q *MemoryQueue) update(id string, fn func(*Job)) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	j, ok := q.jobs[id]
	if !ok {
		return ErrNotFound
	}
	fn(j)
	return nil
}

func (q *MemoryQueue) ListByCall(ctx context.Context, callSid string) ([]Job, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	var out []Job
	for _, j := range q.jobs {
		if j.CallSid == callSid {
			out = append(out, *j)
		}
	}
	sort.Slice(out, func(a, b int) bool { return out[a].CreatedAt.Before(out[b].CreatedAt) })
	return out, nil
}

// Len returns the number of stored jobs.
func (q *MemoryQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.jobs)
}

// Get returns a copy of the job with id.
func (q *MemoryQueue) Get(id string) (Job, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	j, ok := q.jobs[id]
	if !ok {
		return Job{}, false
	}
	return *j, true
}
