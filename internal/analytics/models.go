package analytics

import "time"

// Event is an append-only analytics record.
//
// Invariants:
// - Events are never updated or deleted.
// - Emission is best-effort; callers never fail a request on analytics errors.
//
// Storage (Postgres): table analytics_events, INSERT-only.
type Event struct {
	ID        string         `json:"id" db:"id"`
	EventType EventType      `json:"event_type" db:"event_type"`
	EventData map[string]any `json:"event_data" db:"event_data"`
	Severity  Severity       `json:"severity" db:"severity"`
	CreatedAt time.Time      `json:"created_at" db:"created_at"`
}

type EventType string

const (
	EventTwilioVoiceStatus     EventType = "twilio_voice_status"
	EventTwilioRecordingStatus EventType = "twilio_recording_status"
	EventTwilioSMSStatus       EventType = "twilio_sms_status"
)

type Severity string

const (
	SeverityInfo  Severity = "info"
	SeverityWarn  Severity = "warn"
	SeverityError Severity = "error"
)

func (s Severity) Valid() bool {
	switch s {
	case SeverityInfo, SeverityWarn, SeverityError:
		return true
	default:
		return false
	}
}
