package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"tradeline/internal/jobs"
	"tradeline/internal/metrics"
	"tradeline/pkg/logger"

	"github.com/google/uuid"
)

var ErrInvalidEvent = errors.New("lifecycle: invalid event")

// Recorder makes an accepted event durable.
//
// Steps are independent:
// - the lifecycle upsert is the only step whose failure is returned
// - the timeline append and follow-on enqueue are logged and swallowed
type Recorder struct {
	store Store
	jobs  jobs.Enqueuer
	guard bool
	clock func() time.Time
}

type RecorderOption func(*Recorder)

// WithMonotonicGuard skips lifecycle updates that would move a call back to
// an earlier status of the same kind. Off by default: arrival order wins.
func WithMonotonicGuard(on bool) RecorderOption {
	return func(r *Recorder) { r.guard = on }
}

func WithClock(clock func() time.Time) RecorderOption {
	return func(r *Recorder) { r.clock = clock }
}

// NewRecorder builds a Recorder. enq may be nil when no follow-on work is wired.
func NewRecorder(store Store, enq jobs.Enqueuer, opts ...RecorderOption) *Recorder {
	r := &Recorder{store: store, jobs: enq, clock: time.Now}
	for _, o := range opts {
		o(r)
	}
	return r
}

func (r *Recorder) Process(ctx context.Context, e Event) (Result, error) {
	if e.ProviderCallID == "" || e.IdempotencyKey == "" || e.Label == "" {
		return Result{}, ErrInvalidEvent
	}
	log := logger.From(ctx).With(
		"call_sid", e.ProviderCallID,
		"event", e.Label.String(),
		"idempotency_key", e.IdempotencyKey,
	)

	at := e.ReceivedAt
	if at.IsZero() {
		at = r.clock()
	}
	at = at.UTC()

	res := Result{
		ProviderCallID: e.ProviderCallID,
		Label:          e.Label,
		IdempotencyKey: e.IdempotencyKey,
	}

	applied, err := r.store.UpsertLifecycle(ctx, Record{
		CallSid:    e.ProviderCallID,
		Kind:       e.Kind,
		Status:     e.Label,
		StatusRank: Rank(e.Kind, e.Status),
		Metadata:   e.RawFields,
		UpdatedAt:  at,
	}, r.guard)
	if err != nil {
		return res, fmt.Errorf("upsert lifecycle: %w", err)
	}
	res.LifecycleApplied = applied
	if !applied {
		log.Info("lifecycle update skipped by monotonic guard")
	}

	inserted, err := r.store.AppendTimeline(ctx, TimelineEntry{
		ID:             uuid.NewString(),
		CallSid:        e.ProviderCallID,
		Event:          e.Label,
		IdempotencyKey: e.IdempotencyKey,
		Timestamp:      at,
		Metadata:       e.RawFields,
	})
	switch {
	case err != nil:
		metrics.DownstreamFailures.WithLabelValues("timeline").Inc()
		log.Error("timeline append failed", "error", err)
	case !inserted:
		log.Info("duplicate delivery, timeline unchanged")
	default:
		res.TimelineInserted = true
	}

	res.JobEnqueued = r.maybeEnqueueFollowOn(ctx, log, e)
	return res, nil
}

// followOn maps terminal labels to the job they imply.
var followOn = map[StatusLabel]jobs.Operation{
	LabelRecordingCompleted: jobs.OpTranscribeRecording,
}

func (r *Recorder) maybeEnqueueFollowOn(ctx context.Context, log *slog.Logger, e Event) bool {
	op, ok := followOn[e.Label]
	if !ok || r.jobs == nil {
		return false
	}
	if op == jobs.OpTranscribeRecording && e.RawFields["RecordingUrl"] == "" {
		log.Warn("recording completed without RecordingUrl, no transcription queued")
		return false
	}

	created, err := r.jobs.Enqueue(ctx, jobs.Job{
		CallSid:        e.ProviderCallID,
		Operation:      op,
		IdempotencyKey: e.IdempotencyKey,
		Metadata: map[string]string{
			"RecordingSid": e.RawFields["RecordingSid"],
			"RecordingUrl": e.RawFields["RecordingUrl"],
			"event":        e.Label.String(),
		},
	})
	if err != nil {
		metrics.DownstreamFailures.WithLabelValues("job_enqueue").Inc()
		log.Error("follow-on enqueue failed", "operation", string(op), "error", err)
		return false
	}
	if !created {
		log.Info("follow-on job already queued", "operation", string(op))
	}
	return created
}
