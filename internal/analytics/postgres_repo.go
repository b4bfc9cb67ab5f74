package analytics

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/goccy/go-json"
)

type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo {
	return &PostgresRepo{db: db}
}

func (r *PostgresRepo) Append(ctx context.Context, e Event) error {
	data, err := json.Marshal(e.EventData)
	if err != nil {
		return fmt.Errorf("analytics: encode event_data: %w", err)
	}
	const q = `
INSERT INTO analytics_events (id, event_type, event_data, severity, created_at)
VALUES ($1,$2,$3,$4,$5)
`
	if _, err := r.db.ExecContext(ctx, q, e.ID, string(e.EventType), data, string(e.Severity), e.CreatedAt); err != nil {
		return fmt.Errorf("analytics: append %s: %w", e.EventType, err)
	}
	return nil
}
