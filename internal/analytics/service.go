package analytics

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Repository is the persistence contract for analytics events.
//
// It MUST be append-only.
type Repository interface {
	Append(ctx context.Context, e Event) error
}

// Service is the write-only analytics sink for webhook processing.
type Service struct {
	repo  Repository
	clock func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, clock: time.Now}
}

var (
	ErrInvalidEvent  = errors.New("analytics: invalid event")
	ErrNotConfigured = errors.New("analytics: repository not configured")
)

func (s *Service) Append(ctx context.Context, e Event) error {
	if s == nil || s.repo == nil {
		return ErrNotConfigured
	}
	if e.EventType == "" {
		return ErrInvalidEvent
	}
	if e.Severity == "" {
		e.Severity = SeverityInfo
	}
	if !e.Severity.Valid() {
		return ErrInvalidEvent
	}
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = s.clock().UTC()
	}
	if e.EventData == nil {
		e.EventData = map[string]any{}
	}
	return s.repo.Append(ctx, e)
}

// Emit records {event_type, event_data, severity}.
func (s *Service) Emit(ctx context.Context, eventType EventType, data map[string]any, severity Severity) error {
	return s.Append(ctx, Event{
		EventType: eventType,
		EventData: data,
		Severity:  severity,
	})
}
