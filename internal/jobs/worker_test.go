package jobs

import (
	"context"
	"errors"
	"testing"
	"time"
)

func newTestWorker(t *testing.T, q Queue, cfg WorkerConfig) *Worker {
	t.Helper()
	w, err := NewWorker(q, cfg, nil)
	if err != nil {
		t.Fatalf("worker: %v", err)
	}
	t.Cleanup(w.Close)
	return w
}

func enqueueTestJob(t *testing.T, q *MemoryQueue, key string) Job {
	t.Helper()
	j := Job{
		CallSid:        "CA1",
		Operation:      OpTranscribeRecording,
		IdempotencyKey: key,
		Metadata:       map[string]string{"RecordingUrl": "https://x/y"},
		NextRunAt:      time.Unix(1700000000, 0).UTC(),
	}
	created, err := q.Enqueue(context.Background(), j)
	if err != nil || !created {
		t.Fatalf("enqueue: created=%v err=%v", created, err)
	}
	jobs, _ := q.ListByCall(context.Background(), "CA1")
	for _, got := range jobs {
		if got.IdempotencyKey == key {
			return got
		}
	}
	t.Fatalf("job %s not stored", key)
	return Job{}
}

func TestBackoff(t *testing.T) {
	cases := map[int]time.Duration{
		-1: time.Second,
		0:  time.Second,
		1:  2 * time.Second,
		3:  8 * time.Second,
		6:  64 * time.Second,
		50: 64 * time.Second,
	}
	for attempts, want := range cases {
		if got := Backoff(attempts); got != want {
			t.Fatalf("Backoff(%d)=%s want %s", attempts, got, want)
		}
	}
}

func TestMemoryQueue_EnqueueIsIdempotent(t *testing.T) {
	q := NewMemoryQueue()
	j := Job{CallSid: "CA1", Operation: OpTranscribeRecording, IdempotencyKey: "CA1-RE1-completed"}

	created, err := q.Enqueue(context.Background(), j)
	if err != nil || !created {
		t.Fatalf("first enqueue: created=%v err=%v", created, err)
	}
	created, err = q.Enqueue(context.Background(), j)
	if err != nil {
		t.Fatalf("duplicate enqueue: %v", err)
	}
	if created {
		t.Fatalf("expected duplicate to be a no-op")
	}
	if q.Len() != 1 {
		t.Fatalf("expected 1 job, got %d", q.Len())
	}
}

func TestMemoryQueue_RejectsIncompleteJob(t *testing.T) {
	q := NewMemoryQueue()
	if _, err := q.Enqueue(context.Background(), Job{CallSid: "CA1"}); !errors.Is(err, ErrInvalidJob) {
		t.Fatalf("expected ErrInvalidJob, got %v", err)
	}
}

func TestWorker_DrainCompletesJob(t *testing.T) {
	q := NewMemoryQueue()
	job := enqueueTestJob(t, q, "k1")

	w := newTestWorker(t, q, WorkerConfig{MaxAttempts: 3, PoolSize: 2})
	var seen Job
	w.Register(OpTranscribeRecording, HandlerFunc(func(ctx context.Context, j Job) error {
		seen = j
		return nil
	}))

	stats, err := w.Drain(context.Background())
	if err != nil {
		t.Fatalf("drain: %v", err)
	}
	if stats.Claimed != 1 || stats.Done != 1 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
	if seen.Attempts != 1 {
		t.Fatalf("expected handler to see attempt 1, got %d", seen.Attempts)
	}
	got, _ := q.Get(job.ID)
	if got.Status != StatusDone {
		t.Fatalf("expected done, got %s", got.Status)
	}

	// nothing left to claim
	stats, _ = w.Drain(context.Background())
	if stats.Claimed != 0 {
		t.Fatalf("expected empty drain, got %+v", stats)
	}
}

func TestWorker_RetriesWithBackoffThenFails(t *testing.T) {
	q := NewMemoryQueue()
	job := enqueueTestJob(t, q, "k2")

	now := time.Unix(1700000000, 0).UTC()
	w := newTestWorker(t, q, WorkerConfig{MaxAttempts: 2, PoolSize: 1})
	w.clock = func() time.Time { return now }
	w.Register(OpTranscribeRecording, HandlerFunc(func(ctx context.Context, j Job) error {
		return errors.New("upstream 503")
	}))

	stats, _ := w.Drain(context.Background())
	if stats.Retried != 1 {
		t.Fatalf("expected retry, got %+v", stats)
	}
	got, _ := q.Get(job.ID)
	if got.Status != StatusPending || got.LastError != "upstream 503" {
		t.Fatalf("unexpected job after retry: %+v", got)
	}
	if want := now.Add(time.Second); !got.NextRunAt.Equal(want) {
		t.Fatalf("next_run_at=%s want %s", got.NextRunAt, want)
	}

	// not due yet
	stats, _ = w.Drain(context.Background())
	if stats.Claimed != 0 {
		t.Fatalf("expected job to wait for backoff, got %+v", stats)
	}

	now = now.Add(time.Minute)
	stats, _ = w.Drain(context.Background())
	if stats.Failed != 1 {
		t.Fatalf("expected failure at max attempts, got %+v", stats)
	}
	got, _ = q.Get(job.ID)
	if got.Status != StatusFailed || got.Attempts != 2 {
		t.Fatalf("unexpected job after failure: %+v", got)
	}
}

func TestWorker_PermanentErrorFailsImmediately(t *testing.T) {
	q := NewMemoryQueue()
	job := enqueueTestJob(t, q, "k3")

	w := newTestWorker(t, q, WorkerConfig{MaxAttempts: 5})
	w.Register(OpTranscribeRecording, HandlerFunc(func(ctx context.Context, j Job) error {
		return ErrPermanent
	}))

	stats, _ := w.Drain(context.Background())
	if stats.Failed != 1 {
		t.Fatalf("expected failure, got %+v", stats)
	}
	got, _ := q.Get(job.ID)
	if got.Status != StatusFailed {
		t.Fatalf("expected failed, got %s", got.Status)
	}
}

func TestWorker_UnknownOperationFails(t *testing.T) {
	q := NewMemoryQueue()
	job := enqueueTestJob(t, q, "k4")

	w := newTestWorker(t, q, WorkerConfig{})
	stats, _ := w.Drain(context.Background())
	if stats.Failed != 1 {
		t.Fatalf("expected failure, got %+v", stats)
	}
	got, _ := q.Get(job.ID)
	if got.Status != StatusFailed {
		t.Fatalf("expected failed, got %s", got.Status)
	}
}

func TestMemoryQueue_ExpiredLeaseIsReclaimed(t *testing.T) {
	q := NewMemoryQueue()
	enqueueTestJob(t, q, "k5")

	now := time.Unix(1700000000, 0).UTC()
	first, _ := q.Claim(context.Background(), now, 10)
	if len(first) != 1 {
		t.Fatalf("expected claim, got %d", len(first))
	}
	again, _ := q.Claim(context.Background(), now.Add(time.Second), 10)
	if len(again) != 0 {
		t.Fatalf("expected leased job to be invisible")
	}
	later, _ := q.Claim(context.Background(), now.Add(DefaultLease+time.Second), 10)
	if len(later) != 1 || later[0].Attempts != 2 {
		t.Fatalf("expected reclaim with attempts=2, got %+v", later)
	}
}

func TestMemoryQueue_ClaimNonPositiveLimit(t *testing.T) {
	q := NewMemoryQueue()
	enqueueTestJob(t, q, "k-limit")
	now := time.Unix(1700000000, 0).UTC().Add(time.Hour)

	for _, limit := range []int{0, -1} {
		got, err := q.Claim(context.Background(), now, limit)
		if err != nil || len(got) != 0 {
			t.Fatalf("limit %d: expected nothing claimed, got %d jobs err=%v", limit, len(got), err)
		}
	}
	if got, _ := q.Claim(context.Background(), now, 1); len(got) != 1 {
		t.Fatalf("expected job still claimable, got %d", len(got))
	}
}
