package lifecycle

import "fmt"

// EventKind identifies which provider webhook family produced an event.
type EventKind string

const (
	KindVoiceStatus     EventKind = "voice_status"
	KindRecordingStatus EventKind = "recording_status"
	KindSMSStatus       EventKind = "sms_status"
)

func (k EventKind) Valid() bool {
	switch k {
	case KindVoiceStatus, KindRecordingStatus, KindSMSStatus:
		return true
	default:
		return false
	}
}

// labelPrefix is the short form used in composite status labels.
func (k EventKind) labelPrefix() string {
	switch k {
	case KindVoiceStatus:
		return "voice"
	case KindRecordingStatus:
		return "recording"
	case KindSMSStatus:
		return "sms"
	default:
		return ""
	}
}

// StatusLabel is the composite "{kind}_{status}" value stored on lifecycle and
// timeline rows. Only the constants below are valid labels; build them through
// LabelFor rather than concatenating strings.
type StatusLabel string

const (
	LabelVoiceInitiated StatusLabel = "voice_initiated"
	LabelVoiceRinging   StatusLabel = "voice_ringing"
	LabelVoiceAnswered  StatusLabel = "voice_answered"
	LabelVoiceCompleted StatusLabel = "voice_completed"

	LabelRecordingInProgress StatusLabel = "recording_in-progress"
	LabelRecordingCompleted  StatusLabel = "recording_completed"
	LabelRecordingAbsent     StatusLabel = "recording_absent"

	LabelSMSQueued      StatusLabel = "sms_queued"
	LabelSMSSending     StatusLabel = "sms_sending"
	LabelSMSSent        StatusLabel = "sms_sent"
	LabelSMSDelivered   StatusLabel = "sms_delivered"
	LabelSMSUndelivered StatusLabel = "sms_undelivered"
	LabelSMSFailed      StatusLabel = "sms_failed"
	LabelSMSRead        StatusLabel = "sms_read"
)

type labelInfo struct {
	label    StatusLabel
	rank     int
	terminal bool
}

// vocabulary is the closed allow-list per event kind. Anything missing here is
// an ignored event, not an error. Recording "failed" is intentionally absent.
var vocabulary = map[EventKind]map[string]labelInfo{
	KindVoiceStatus: {
		"initiated": {LabelVoiceInitiated, 1, false},
		"ringing":   {LabelVoiceRinging, 2, false},
		"answered":  {LabelVoiceAnswered, 3, false},
		"completed": {LabelVoiceCompleted, 4, true},
	},
	KindRecordingStatus: {
		"in-progress": {LabelRecordingInProgress, 1, false},
		"completed":   {LabelRecordingCompleted, 2, true},
		"absent":      {LabelRecordingAbsent, 2, true},
	},
	KindSMSStatus: {
		"queued":      {LabelSMSQueued, 1, false},
		"sending":     {LabelSMSSending, 2, false},
		"sent":        {LabelSMSSent, 3, false},
		"delivered":   {LabelSMSDelivered, 4, true},
		"undelivered": {LabelSMSUndelivered, 4, true},
		"failed":      {LabelSMSFailed, 4, true},
		"read":        {LabelSMSRead, 5, true},
	},
}

// LabelFor returns the composite label for an accepted (kind, status) pair.
// ok is false when the status is outside the kind's allow-list.
func LabelFor(kind EventKind, status string) (StatusLabel, bool) {
	info, ok := vocabulary[kind][status]
	if !ok {
		return "", false
	}
	return info.label, true
}

// Accepts reports whether status is in the allow-list for kind.
func Accepts(kind EventKind, status string) bool {
	_, ok := vocabulary[kind][status]
	return ok
}

// Rank orders statuses within a single kind. Higher is later in the lifecycle.
func Rank(kind EventKind, status string) int {
	return vocabulary[kind][status].rank
}

// IsTerminal reports whether no further transitions are expected for the kind.
func IsTerminal(kind EventKind, status string) bool {
	return vocabulary[kind][status].terminal
}

// AcceptedStatuses lists the allow-list for kind, ordered by rank.
func AcceptedStatuses(kind EventKind) []string {
	out := make([]string, 0, len(vocabulary[kind]))
	for s := range vocabulary[kind] {
		out = append(out, s)
	}
	// small sets; insertion sort keeps rank order then lexical order
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && less(kind, out[j], out[j-1]); j-- {
			out[j], out[j-1] = out[j-1], out[j]
		}
	}
	return out
}

func less(kind EventKind, a, b string) bool {
	ra, rb := Rank(kind, a), Rank(kind, b)
	if ra != rb {
		return ra < rb
	}
	return a < b
}

func (l StatusLabel) String() string { return string(l) }

// MustLabel is for tests and static tables.
func MustLabel(kind EventKind, status string) StatusLabel {
	l, ok := LabelFor(kind, status)
	if !ok {
		panic(fmt.Sprintf("lifecycle: %s %q is not an accepted status", kind, status))
	}
	return l
}
