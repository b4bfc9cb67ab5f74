package jobs

import "time"

// Job is one row of call_processing_queue: follow-on work implied by an
// accepted call event (for example transcribing a finished recording).
//
// Invariants:
// - idempotency_key is unique; re-delivery of the triggering event never
//   creates a second job.
// - attempts only grows; it is incremented when the job is claimed.
type Job struct {
	ID             string            `json:"id" db:"id"`
	CallSid        string            `json:"call_sid" db:"call_sid"`
	Operation      Operation         `json:"operation" db:"operation"`
	Status         Status            `json:"status" db:"status"`
	Attempts       int               `json:"attempts" db:"attempts"`
	NextRunAt      time.Time         `json:"next_run_at" db:"next_run_at"`
	LastError      string            `json:"last_error,omitempty" db:"last_error"`
	Metadata       map[string]string `json:"metadata" db:"metadata"`
	IdempotencyKey string            `json:"idempotency_key" db:"idempotency_key"`
	CreatedAt      time.Time         `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time         `json:"updated_at" db:"updated_at"`
}

type Operation string

const (
	OpTranscribeRecording Operation = "transcribe_recording"
)

type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusDone       Status = "done"
	StatusFailed     Status = "failed"
)
