package analytics

import (
	"context"
	"errors"
	"testing"
)

func TestService_AppendRequiresTypeAndValidSeverity(t *testing.T) {
	svc := NewService(NewMemoryRepo())

	if err := svc.Append(context.Background(), Event{}); !errors.Is(err, ErrInvalidEvent) {
		t.Fatalf("expected ErrInvalidEvent, got %v", err)
	}
	if err := svc.Emit(context.Background(), EventTwilioVoiceStatus, nil, Severity("fatal")); !errors.Is(err, ErrInvalidEvent) {
		t.Fatalf("expected ErrInvalidEvent for unknown severity, got %v", err)
	}
}

func TestService_EmitFillsDefaults(t *testing.T) {
	repo := NewMemoryRepo()
	svc := NewService(repo)

	if err := svc.Emit(context.Background(), EventTwilioRecordingStatus, map[string]any{"call_sid": "CA1"}, ""); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}

	evs := repo.Events()
	if len(evs) != 1 {
		t.Fatalf("expected 1 event")
	}
	e := evs[0]
	if e.ID == "" || e.CreatedAt.IsZero() {
		t.Fatalf("expected id and created_at")
	}
	if e.Severity != SeverityInfo {
		t.Fatalf("expected default severity info, got %s", e.Severity)
	}
	if e.EventData["call_sid"] != "CA1" {
		t.Fatalf("expected event data kept")
	}
}

func TestService_NilIsNotConfigured(t *testing.T) {
	var svc *Service
	if err := svc.Emit(context.Background(), EventTwilioSMSStatus, nil, SeverityInfo); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
}
