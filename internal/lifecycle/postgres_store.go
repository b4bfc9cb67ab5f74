package lifecycle

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"tradeline/pkg/utils"

	"github.com/goccy/go-json"
)

// NOTE: This store assumes the tables from migrations/000001_init.up.sql:
// - call_lifecycle  UNIQUE (call_sid)
// - call_timeline   UNIQUE (call_sid, event, idempotency_key), insert-only

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) UpsertLifecycle(ctx context.Context, rec Record, guard bool) (bool, error) {
	meta, err := json.Marshal(nonNil(rec.Metadata))
	if err != nil {
		return false, fmt.Errorf("lifecycle: encode meta: %w", err)
	}

	// The WHERE on DO UPDATE only filters when the guard is on and the stored
	// row is the same kind with a higher rank. A skipped update affects 0 rows.
	const q = `
INSERT INTO call_lifecycle (call_sid, kind, status, status_rank, meta, updated_at)
VALUES ($1,$2,$3,$4,$5,$6)
ON CONFLICT (call_sid)
DO UPDATE SET kind = EXCLUDED.kind,
              status = EXCLUDED.status,
              status_rank = EXCLUDED.status_rank,
              meta = EXCLUDED.meta,
              updated_at = EXCLUDED.updated_at
WHERE NOT $7::boolean
   OR call_lifecycle.kind <> EXCLUDED.kind
   OR call_lifecycle.status_rank <= EXCLUDED.status_rank
`
	res, err := s.db.ExecContext(ctx, q,
		rec.CallSid,
		string(rec.Kind),
		string(rec.Status),
		rec.StatusRank,
		meta,
		rec.UpdatedAt,
		guard,
	)
	if err != nil {
		return false, fmt.Errorf("lifecycle: upsert %s: %w", rec.CallSid, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *PostgresStore) AppendTimeline(ctx context.Context, e TimelineEntry) (bool, error) {
	meta, err := json.Marshal(nonNil(e.Metadata))
	if err != nil {
		return false, fmt.Errorf("lifecycle: encode timeline metadata: %w", err)
	}

	const q = `
INSERT INTO call_timeline (id, call_sid, event, idempotency_key, timestamp, metadata)
VALUES ($1,$2,$3,$4,$5,$6)
ON CONFLICT (call_sid, event, idempotency_key) DO NOTHING
`
	res, err := s.db.ExecContext(ctx, q,
		e.ID,
		e.CallSid,
		string(e.Event),
		e.IdempotencyKey,
		e.Timestamp,
		meta,
	)
	if err != nil {
		if utils.IsUniqueViolation(err) {
			return false, nil
		}
		return false, fmt.Errorf("lifecycle: append timeline %s: %w", e.CallSid, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *PostgresStore) GetLifecycle(ctx context.Context, callSid string) (Record, error) {
	const q = `
SELECT call_sid, kind, status, status_rank, meta, updated_at
FROM call_lifecycle
WHERE call_sid = $1
`
	var (
		rec         Record
		kind, label string
		meta        []byte
	)
	if err := s.db.QueryRowContext(ctx, q, callSid).Scan(
		&rec.CallSid,
		&kind,
		&label,
		&rec.StatusRank,
		&meta,
		&rec.UpdatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Record{}, ErrNotFound
		}
		return Record{}, err
	}
	rec.Kind = EventKind(kind)
	rec.Status = StatusLabel(label)
	if err := json.Unmarshal(meta, &rec.Metadata); err != nil {
		return Record{}, fmt.Errorf("lifecycle: decode meta: %w", err)
	}
	return rec, nil
}

func (s *PostgresStore) ListTimeline(ctx context.Context, callSid string) ([]TimelineEntry, error) {
	const q = `
SELECT id, call_sid, event, idempotency_key, timestamp, metadata
FROM call_timeline
WHERE call_sid = $1
ORDER BY timestamp ASC, id ASC
`
	rows, err := s.db.QueryContext(ctx, q, callSid)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []TimelineEntry
	for rows.Next() {
		var (
			e     TimelineEntry
			label string
			meta  []byte
		)
		if err := rows.Scan(&e.ID, &e.CallSid, &label, &e.IdempotencyKey, &e.Timestamp, &meta); err != nil {
			return nil, err
		}
		e.Event = StatusLabel(label)
		if err := json.Unmarshal(meta, &e.Metadata); err != nil {
			return nil, fmt.Errorf("lifecycle: decode timeline metadata: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func nonNil(m map[string]string) map[string]string {
	if m == nil {
		return map[string]string{}
	}
	return m
}
