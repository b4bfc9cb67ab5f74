package jobs

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"tradeline/pkg/utils"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
)

// PostgresQueue stores jobs in call_processing_queue.
type PostgresQueue struct {
	db    *sql.DB
	lease time.Duration
	clock func() time.Time
}

func NewPostgresQueue(db *sql.DB) *PostgresQueue {
	return &PostgresQueue{db: db, lease: DefaultLease, clock: time.Now}
}

// WithLease overrides DefaultLease.
func (q *PostgresQueue) WithLease(d time.Duration) *PostgresQueue {
	if d > 0 {
		q.lease = d
	}
	return q
}

func prepare(j Job, now time.Time) Job {
	if j.ID == "" {
		j.ID = uuid.NewString()
	}
	if j.Status == "" {
		j.Status = StatusPending
	}
	if j.CreatedAt.IsZero() {
		j.CreatedAt = now
	}
	if j.NextRunAt.IsZero() {
		j.NextRunAt = j.CreatedAt
	}
	j.UpdatedAt = now
	if j.Metadata == nil {
		j.Metadata = map[string]string{}
	}
	return j
}

func (q *PostgresQueue) Enqueue(ctx context.Context, j Job) (bool, error) {
	if err := validate(j); err != nil {
		return false, err
	}
	j = prepare(j, q.clock().UTC())
	meta, err := json.Marshal(j.Metadata)
	if err != nil {
		return false, fmt.Errorf("jobs: encode metadata: %w", err)
	}

	const stmt = `
INSERT INTO call_processing_queue
  (id, call_sid, operation, status, attempts, next_run_at, last_error, metadata, idempotency_key, created_at, updated_at)
VALUES ($1,$2,$3,$4,0,$5,'',$6,$7,$8,$9)
ON CONFLICT (idempotency_key) DO NOTHING
`
	res, err := q.db.ExecContext(ctx, stmt,
		j.ID,
		j.CallSid,
		string(j.Operation),
		string(j.Status),
		j.NextRunAt,
		meta,
		j.IdempotencyKey,
		j.CreatedAt,
		j.UpdatedAt,
	)
	if err != nil {
		if utils.IsUniqueViolation(err) {
			return false, nil
		}
		return false, fmt.Errorf("jobs: enqueue %s: %w", j.IdempotencyKey, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

const jobColumns = `id, call_sid, operation, status, attempts, next_run_at, last_error, metadata, idempotency_key, created_at, updated_at`

// Claim selects with FOR UPDATE SKIP LOCKED inside one transaction so that
// parallel workers partition the runnable set between them.
func (q *PostgresQueue) Claim(ctx context.Context, now time.Time, limit int) ([]Job, error) {
	if limit <= 0 {
		return nil, nil
	}
	now = now.UTC()
	leaseUntil := now.Add(q.lease)

	var claimed []Job
	err := utils.WithTx(ctx, q.db, nil, func(ctx context.Context, tx *sql.Tx) error {
		rows, err := tx.QueryContext(ctx, `
SELECT `+jobColumns+`
FROM call_processing_queue
WHERE status IN ('pending', 'processing') AND next_run_at <= $1
ORDER BY next_run_at ASC, created_at ASC
LIMIT $2
FOR UPDATE SKIP LOCKED
`, now, limit)
		if err != nil {
			return err
		}
		picked, err := scanJobs(rows)
		if err != nil {
			return err
		}

		for _, j := range picked {
			if _, err := tx.ExecContext(ctx, `
UPDATE call_processing_queue
SET status = 'processing', attempts = attempts + 1, next_run_at = $2, updated_at = $3
WHERE id = $1
`, j.ID, leaseUntil, now); err != nil {
				return err
			}
			j.Status = StatusProcessing
			j.Attempts++
			j.NextRunAt = leaseUntil
			j.UpdatedAt = now
			claimed = append(claimed, j)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("jobs: claim: %w", err)
	}
	return claimed, nil
}

func (q *PostgresQueue) Complete(ctx context.Context, id string, now time.Time) error {
	return q.transition(ctx, `
UPDATE call_processing_queue
SET status = 'done', last_error = '', updated_at = $2
WHERE id = $1
`, id, now.UTC())
}

func (q *PostgresQueue) Retry(ctx context.Context, id, cause string, retryAt time.Time) error {
	return q.transition(ctx, `
UPDATE call_processing_queue
SET status = 'pending', last_error = $2, next_run_at = $3, updated_at = $4
WHERE id = $1
`, id, cause, retryAt.UTC(), q.clock().UTC())
}

func (q *PostgresQueue) Fail(ctx context.Context, id, cause string, now time.Time) error {
	return q.transition(ctx, `
UPDATE call_processing_queue
SET status = 'failed', last_error = $2, updated_at = $3
WHERE id = $1
`, id, cause, now.UTC())
}

func (q *PostgresQueue) transition(ctx context.Context, stmt string, args ...any) error {
	res, err := q.db.ExecContext(ctx, stmt, args...)
	if err != nil {
		return fmt.Errorf("jobs: update %v: %w", args[0], err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (q *PostgresQueue) ListByCall(ctx context.Context, callSid string) ([]Job, error) {
	rows, err := q.db.QueryContext(ctx, `
SELECT `+jobColumns+`
FROM call_processing_queue
WHERE call_sid = $1
ORDER BY created_at ASC
`, callSid)
	if err != nil {
		return nil, err
	}
	return scanJobs(rows)
}

func scanJobs(rows *sql.Rows) ([]Job, error) {
	defer rows.Close()

	var out []Job
	for rows.Next() {
		var (
			j          Job
			op, status string
			meta       []byte
		)
		if err := rows.Scan(
			&j.ID,
			&j.CallSid,
			&op,
			&status,
			&j.Attempts,
			&j.NextRunAt,
			&j.LastError,
			&meta,
			&j.IdempotencyKey,
			&j.CreatedAt,
			&j.UpdatedAt,
		); err != nil {
			return nil, err
		}
		j.Operation = Operation(op)
		j.Status = Status(status)
		if len(meta) > 0 {
			if err := json.Unmarshal(meta, &j.Metadata); err != nil {
				return nil, fmt.Errorf("jobs: decode metadata: %w", err)
			}
		}
		out = append(out, j)
	}
	return out, rows.Err()
}
