package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"tradeline/internal/metrics"

	"github.com/panjf2000/ants/v2"
	"github.com/robfig/cron/v3"
)

// Handler runs one claimed job. A returned error schedules a retry, or fails
// the job once MaxAttempts is reached. Wrap the error with ErrPermanent to
// fail it immediately.
type Handler interface {
	Handle(ctx context.Context, j Job) error
}

type HandlerFunc func(ctx context.Context, j Job) error

func (f HandlerFunc) Handle(ctx context.Context, j Job) error { return f(ctx, j) }

var (
	ErrPermanent        = errors.New("jobs: permanent failure")
	ErrUnknownOperation = errors.New("jobs: no handler for operation")
)

type WorkerConfig struct {
	PollInterval time.Duration
	BatchSize    int
	MaxAttempts  int
	PoolSize     int
	// JobTimeout bounds a single handler invocation.
	JobTimeout time.Duration
}

func (c WorkerConfig) withDefaults() WorkerConfig {
	out := c
	if out.PollInterval <= 0 {
		out.PollInterval = 10 * time.Second
	}
	if out.BatchSize <= 0 {
		out.BatchSize = 20
	}
	if out.MaxAttempts <= 0 {
		out.MaxAttempts = 5
	}
	if out.PoolSize <= 0 {
		out.PoolSize = 8
	}
	if out.JobTimeout <= 0 {
		out.JobTimeout = time.Minute
	}
	return out
}

// Backoff is the delay before the next attempt: 2^min(attempts,6) seconds,
// capped at five minutes.
func Backoff(attempts int) time.Duration {
	if attempts < 0 {
		attempts = 0
	}
	if attempts > 6 {
		attempts = 6
	}
	d := time.Duration(1<<attempts) * time.Second
	if d > 5*time.Minute {
		d = 5 * time.Minute
	}
	return d
}

// DrainStats summarizes one drain pass.
type DrainStats struct {
	Claimed int
	Done    int
	Retried int
	Failed  int
}

// Worker drains call_processing_queue. Claimed jobs run on an ants pool;
// passes are scheduled by cron and never overlap.
type Worker struct {
	queue    Queue
	cfg      WorkerConfig
	log      *slog.Logger
	clock    func() time.Time
	pool     *ants.Pool
	handlers map[Operation]Handler
}

func NewWorker(queue Queue, cfg WorkerConfig, log *slog.Logger) (*Worker, error) {
	cfg = cfg.withDefaults()
	if log == nil {
		log = slog.Default()
	}
	pool, err := ants.NewPool(cfg.PoolSize, ants.WithPreAlloc(true))
	if err != nil {
		return nil, fmt.Errorf("jobs: worker pool: %w", err)
	}
	return &Worker{
		queue:    queue,
		cfg:      cfg,
		log:      log.With("component", "jobs.worker"),
		clock:    time.Now,
		pool:     pool,
		handlers: make(map[Operation]Handler),
	}, nil
}

// Register binds h to op. Not safe to call while draining.
func (w *Worker) Register(op Operation, h Handler) {
	w.handlers[op] = h
}

// Drain claims one batch and waits for every claimed job to settle.
func (w *Worker) Drain(ctx context.Context) (DrainStats, error) {
	var stats DrainStats

	batch, err := w.queue.Claim(ctx, w.clock().UTC(), w.cfg.BatchSize)
	if err != nil {
		return stats, err
	}
	stats.Claimed = len(batch)
	if len(batch) == 0 {
		return stats, nil
	}

	var (
		wg sync.WaitGroup
		mu sync.Mutex
	)
	record := func(r outcome) {
		mu.Lock()
		defer mu.Unlock()
		switch r {
		case outcomeDone:
			stats.Done++
		case outcomeRetried:
			stats.Retried++
		case outcomeFailed:
			stats.Failed++
		}
	}

	for _, j := range batch {
		wg.Add(1)
		if err := w.pool.Submit(func() {
			defer wg.Done()
			record(w.run(ctx, j))
		}); err != nil {
			// pool closed or overloaded; the lease expires and the job is reclaimed
			wg.Done()
			w.log.Warn("job submit failed", "job_id", j.ID, "error", err)
		}
	}
	wg.Wait()
	return stats, nil
}

type outcome int

const (
	outcomeDone outcome = iota
	outcomeRetried
	outcomeFailed
	outcomeUnsettled
)

func (w *Worker) run(ctx context.Context, j Job) outcome {
	log := w.log.With("job_id", j.ID, "call_sid", j.CallSid, "operation", string(j.Operation), "attempt", j.Attempts)

	h, ok := w.handlers[j.Operation]
	var err error
	if !ok {
		err = fmt.Errorf("%w: %s", ErrUnknownOperation, j.Operation)
	} else {
		jobCtx, cancel := context.WithTimeout(ctx, w.cfg.JobTimeout)
		err = h.Handle(jobCtx, j)
		cancel()
	}

	now := w.clock().UTC()
	// settle with a fresh context so a shutdown mid-job still records the result
	settleCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()

	if err == nil {
		if err := w.queue.Complete(settleCtx, j.ID, now); err != nil {
			log.Error("job complete failed", "error", err)
			return outcomeUnsettled
		}
		metrics.JobsProcessed.WithLabelValues(string(j.Operation), "done").Inc()
		log.Info("job done")
		return outcomeDone
	}

	permanent := errors.Is(err, ErrPermanent) || errors.Is(err, ErrUnknownOperation)
	if permanent || j.Attempts >= w.cfg.MaxAttempts {
		if ferr := w.queue.Fail(settleCtx, j.ID, err.Error(), now); ferr != nil {
			log.Error("job fail failed", "error", ferr)
			return outcomeUnsettled
		}
		metrics.JobsProcessed.WithLabelValues(string(j.Operation), "failed").Inc()
		log.Error("job failed", "error", err)
		return outcomeFailed
	}

	// Attempts already counts this run; the first retry waits Backoff(0).
	retryAt := now.Add(Backoff(j.Attempts - 1))
	if rerr := w.queue.Retry(settleCtx, j.ID, err.Error(), retryAt); rerr != nil {
		log.Error("job retry failed", "error", rerr)
		return outcomeUnsettled
	}
	metrics.JobsProcessed.WithLabelValues(string(j.Operation), "retried").Inc()
	log.Warn("job retry scheduled", "error", err, "retry_at", retryAt)
	return outcomeRetried
}

// Run drains on a cron schedule until ctx is done, then waits for the
// in-flight pass and releases the pool.
func (w *Worker) Run(ctx context.Context) error {
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	schedule := fmt.Sprintf("@every %s", w.cfg.PollInterval)
	if _, err := c.AddFunc(schedule, func() {
		stats, err := w.Drain(ctx)
		if err != nil {
			w.log.Error("drain failed", "error", err)
			return
		}
		if stats.Claimed > 0 {
			w.log.Info("drain pass", "claimed", stats.Claimed, "done", stats.Done, "retried", stats.Retried, "failed", stats.Failed)
		}
	}); err != nil {
		return fmt.Errorf("jobs: schedule drain: %w", err)
	}

	w.log.Info("worker started", "interval", w.cfg.PollInterval.String(), "pool_size", w.cfg.PoolSize)
	c.Start()
	<-ctx.Done()

	<-c.Stop().Done()
	w.Close()
	w.log.Info("worker stopped")
	return nil
}

// Close releases the pool. Drain must not be called afterwards.
func (w *Worker) Close() {
	w.pool.Release()
}
