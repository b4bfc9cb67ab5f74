package telephony

import (
	"errors"
	"reflect"
	"testing"
	"time"

	"tradeline/internal/lifecycle"
)

func TestNormalize_AcceptedEvents(t *testing.T) {
	at := time.Unix(1700000000, 0).UTC()
	cases := []struct {
		name   string
		kind   lifecycle.EventKind
		fields map[string]string
		id     string
		label  lifecycle.StatusLabel
		key    string
	}{
		{
			name:   "voice",
			kind:   lifecycle.KindVoiceStatus,
			fields: map[string]string{"CallSid": "CA1", "CallStatus": "ringing", "From": "+1"},
			id:     "CA1",
			label:  lifecycle.LabelVoiceRinging,
			key:    "CA1-ringing",
		},
		{
			name:   "recording",
			kind:   lifecycle.KindRecordingStatus,
			fields: map[string]string{"CallSid": "CA1", "RecordingSid": "RE1", "RecordingStatus": "completed", "RecordingUrl": "https://x/y"},
			id:     "CA1",
			label:  lifecycle.LabelRecordingCompleted,
			key:    "CA1-RE1-completed",
		},
		{
			name:   "sms",
			kind:   lifecycle.KindSMSStatus,
			fields: map[string]string{"MessageSid": "SM1", "MessageStatus": "delivered"},
			id:     "SM1",
			label:  lifecycle.LabelSMSDelivered,
			key:    "SM1-delivered",
		},
	}
	for _, tc := range cases {
		ev, err := Normalize(tc.kind, tc.fields, at)
		if err != nil {
			t.Fatalf("%s: %v", tc.name, err)
		}
		if ev.ProviderCallID != tc.id || ev.Label != tc.label || ev.IdempotencyKey != tc.key {
			t.Fatalf("%s: unexpected event %+v", tc.name, ev)
		}
		if !ev.ReceivedAt.Equal(at) || ev.Kind != tc.kind {
			t.Fatalf("%s: kind/time not carried", tc.name)
		}
		if !reflect.DeepEqual(ev.RawFields, tc.fields) {
			t.Fatalf("%s: raw fields %v", tc.name, ev.RawFields)
		}
	}
}

func TestNormalize_MissingFields(t *testing.T) {
	_, err := Normalize(lifecycle.KindRecordingStatus, map[string]string{"CallSid": "CA1", "RecordingStatus": ""}, time.Now())
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if !reflect.DeepEqual(verr.Missing, []string{"RecordingSid", "RecordingStatus"}) {
		t.Fatalf("unexpected missing list %v", verr.Missing)
	}

	_, err = Normalize(lifecycle.KindVoiceStatus, map[string]string{"CallStatus": "completed"}, time.Now())
	if !errors.As(err, &verr) || verr.Missing[0] != "CallSid" {
		t.Fatalf("expected missing CallSid, got %v", err)
	}
}

func TestNormalize_IgnoredStatuses(t *testing.T) {
	cases := []struct {
		kind   lifecycle.EventKind
		fields map[string]string
	}{
		{lifecycle.KindRecordingStatus, map[string]string{"CallSid": "CA1", "RecordingSid": "RE1", "RecordingStatus": "failed"}},
		{lifecycle.KindVoiceStatus, map[string]string{"CallSid": "CA1", "CallStatus": "busy"}},
		{lifecycle.KindVoiceStatus, map[string]string{"CallSid": "CA1", "CallStatus": "Completed"}},
		{lifecycle.KindSMSStatus, map[string]string{"MessageSid": "SM1", "MessageStatus": "receiving"}},
	}
	for _, tc := range cases {
		if _, err := Normalize(tc.kind, tc.fields, time.Now()); !errors.Is(err, ErrIgnoredEvent) {
			t.Fatalf("%s %v: expected ErrIgnoredEvent, got %v", tc.kind, tc.fields, err)
		}
	}
}

func TestNormalize_MissingFieldsWinOverIgnored(t *testing.T) {
	_, err := Normalize(lifecycle.KindRecordingStatus, map[string]string{"CallSid": "CA1", "RecordingStatus": "failed"}, time.Now())
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
}

func TestIdempotencyKey_Deterministic(t *testing.T) {
	f := map[string]string{"CallSid": "CA1", "RecordingSid": "RE1", "RecordingStatus": "completed", "Noise": "x"}
	a := IdempotencyKey(lifecycle.KindRecordingStatus, f)
	f["Noise"] = "y"
	b := IdempotencyKey(lifecycle.KindRecordingStatus, f)
	if a != b || a != "CA1-RE1-completed" {
		t.Fatalf("keys %q %q", a, b)
	}
}
