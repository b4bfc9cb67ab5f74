package jobs

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"tradeline/internal/metrics"

	"github.com/sony/gobreaker/v2"
)

// BreakerConfig tunes a circuit breaker. Name labels the breaker_state gauge.
type BreakerConfig struct {
	Name                string
	ConsecutiveFailures uint32
	// Timeout is how long the breaker stays open before probing again.
	Timeout  time.Duration
	Interval time.Duration
}

func (c BreakerConfig) withDefaults() BreakerConfig {
	out := c
	if out.Name == "" {
		out.Name = "job_enqueue"
	}
	if out.ConsecutiveFailures == 0 {
		out.ConsecutiveFailures = 5
	}
	if out.Timeout <= 0 {
		out.Timeout = 30 * time.Second
	}
	if out.Interval <= 0 {
		out.Interval = time.Minute
	}
	return out
}

// BreakerEnqueuer fails fast while the job store is unhealthy so that
// webhook requests do not pile up behind a dead queue.
type BreakerEnqueuer struct {
	next Enqueuer
	cb   *gobreaker.CircuitBreaker[bool]
}

func NewBreakerEnqueuer(next Enqueuer, cfg BreakerConfig, log *slog.Logger) *BreakerEnqueuer {
	return &BreakerEnqueuer{
		next: next,
		// a bad job is the caller's fault, not the store's
		cb: newBreaker[bool](cfg, log, func(err error) bool {
			return err == nil || errors.Is(err, ErrInvalidJob)
		}),
	}
}

func newBreaker[T any](cfg BreakerConfig, log *slog.Logger, ok func(error) bool) *gobreaker.CircuitBreaker[T] {
	cfg = cfg.withDefaults()
	if log == nil {
		log = slog.Default()
	}
	metrics.BreakerState.WithLabelValues(cfg.Name).Set(0)

	return gobreaker.NewCircuitBreaker[T](gobreaker.Settings{
		Name:     cfg.Name,
		Interval: cfg.Interval,
		Timeout:  cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.ConsecutiveFailures
		},
		IsSuccessful: ok,
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("circuit state changed", "breaker", name, "from", from.String(), "to", to.String())
			metrics.BreakerState.WithLabelValues(name).Set(stateValue(to))
		},
	})
}

// Enqueue returns gobreaker.ErrOpenState (or ErrTooManyRequests while
// half-open) without touching the store when the circuit is open.
func (b *BreakerEnqueuer) Enqueue(ctx context.Context, j Job) (bool, error) {
	return b.cb.Execute(func() (bool, error) {
		return b.next.Enqueue(ctx, j)
	})
}

// State reports "closed", "half-open" or "open".
func (b *BreakerEnqueuer) State() string {
	return b.cb.State().String()
}

// BreakerHandler guards a Handler that calls an external service. While the
// circuit is open jobs fail fast with a retryable error and keep their backoff.
type BreakerHandler struct {
	next Handler
	cb   *gobreaker.CircuitBreaker[struct{}]
}

// NewBreakerHandler wraps next. ErrPermanent results count as successes: the
// service answered, it just rejected that job.
func NewBreakerHandler(next Handler, cfg BreakerConfig, log *slog.Logger) *BreakerHandler {
	if cfg.Name == "" {
		cfg.Name = "job_dispatch"
	}
	return &BreakerHandler{
		next: next,
		cb: newBreaker[struct{}](cfg, log, func(err error) bool {
			return err == nil || errors.Is(err, ErrPermanent)
		}),
	}
}

func (b *BreakerHandler) Handle(ctx context.Context, j Job) error {
	_, err := b.cb.Execute(func() (struct{}, error) {
		return struct{}{}, b.next.Handle(ctx, j)
	})
	return err
}

func (b *BreakerHandler) State() string {
	return b.cb.State().String()
}

func stateValue(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateOpen:
		return 1
	case gobreaker.StateHalfOpen:
		return 0.5
	default:
		return 0
	}
}
