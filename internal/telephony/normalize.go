package telephony

import (
	"errors"
	"strings"
	"time"

	"tradeline/internal/lifecycle"
)

// ErrIgnoredEvent marks a well-formed event whose status is outside the
// kind's allow-list. It is answered with 200 and causes no writes.
var ErrIgnoredEvent = errors.New("telephony: event ignored")

// ValidationError lists required fields missing from a webhook payload.
type ValidationError struct {
	Kind    lifecycle.EventKind
	Missing []string
}

func (e *ValidationError) Error() string {
	return "telephony: " + string(e.Kind) + " missing required fields: " + strings.Join(e.Missing, ", ")
}

type eventSchema struct {
	// idField holds the provider call id
	idField     string
	statusField string
	required    []string
}

var schemas = map[lifecycle.EventKind]eventSchema{
	lifecycle.KindVoiceStatus: {
		idField:     "CallSid",
		statusField: "CallStatus",
		required:    []string{"CallSid", "CallStatus"},
	},
	lifecycle.KindRecordingStatus: {
		idField:     "CallSid",
		statusField: "RecordingStatus",
		required:    []string{"CallSid", "RecordingSid", "RecordingStatus"},
	},
	lifecycle.KindSMSStatus: {
		idField:     "MessageSid",
		statusField: "MessageStatus",
		required:    []string{"MessageSid", "MessageStatus"},
	},
}

// Normalize turns raw form fields into an accepted event.
//
// It returns a *ValidationError when required fields are missing or empty,
// ErrIgnoredEvent when the status is not in the allow-list, and an event
// otherwise. Status values are matched exactly.
func Normalize(kind lifecycle.EventKind, fields map[string]string, receivedAt time.Time) (lifecycle.Event, error) {
	schema, ok := schemas[kind]
	if !ok {
		return lifecycle.Event{}, &ValidationError{Kind: kind, Missing: []string{"event kind"}}
	}

	var missing []string
	for _, f := range schema.required {
		if fields[f] == "" {
			missing = append(missing, f)
		}
	}
	if len(missing) > 0 {
		return lifecycle.Event{}, &ValidationError{Kind: kind, Missing: missing}
	}

	status := fields[schema.statusField]
	label, ok := lifecycle.LabelFor(kind, status)
	if !ok {
		return lifecycle.Event{}, ErrIgnoredEvent
	}

	raw := make(map[string]string, len(fields))
	for k, v := range fields {
		raw[k] = v
	}
	return lifecycle.Event{
		ProviderCallID: fields[schema.idField],
		Kind:           kind,
		Status:         status,
		Label:          label,
		IdempotencyKey: IdempotencyKey(kind, fields),
		RawFields:      raw,
		ReceivedAt:     receivedAt,
	}, nil
}

// IdempotencyKey derives the dedupe key for an event:
//
//	voice:     {CallSid}-{CallStatus}
//	recording: {CallSid}-{RecordingSid}-{RecordingStatus}
//	sms:       {MessageSid}-{MessageStatus}
func IdempotencyKey(kind lifecycle.EventKind, fields map[string]string) string {
	switch kind {
	case lifecycle.KindVoiceStatus:
		return fields["CallSid"] + "-" + fields["CallStatus"]
	case lifecycle.KindRecordingStatus:
		return fields["CallSid"] + "-" + fields["RecordingSid"] + "-" + fields["RecordingStatus"]
	case lifecycle.KindSMSStatus:
		return fields["MessageSid"] + "-" + fields["MessageStatus"]
	default:
		return ""
	}
}
