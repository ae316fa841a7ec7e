package scheduler

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/notifyhub/editorial-notify/internal/domain"
)

// PgBackend stores jobs in the scheduled_notifications table. The unique
// dedup_key column makes scheduling atomic across processes and
// SKIP LOCKED lets several workers claim concurrently.
type PgBackend struct {
	pool *pgxpool.Pool
}

func NewPgBackend(pool *pgxpool.Pool) *PgBackend {
	return &PgBackend{pool: pool}
}

const jobColumns = `id, hook, dedup_key, workflow_id, event_args, run_at, fingerprint, created_at`

func (b *PgBackend) ScheduleAt(ctx context.Context, job domain.ScheduledNotification) (bool, error) {
	payload, err := job.Args.Canonical()
	if err != nil {
		return false, err
	}
	tag, err := b.pool.Exec(ctx, `
		INSERT INTO scheduled_notifications (`+jobColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (dedup_key) DO NOTHING`,
		job.ID, job.Hook, job.Key, job.WorkflowID, payload, job.RunAt, job.Fingerprint, job.CreatedAt,
	)
	if err != nil {
		return false, errors.Wrap(err, "insert scheduled notification")
	}
	return tag.RowsAffected() == 1, nil
}

func (b *PgBackend) Scheduled(ctx context.Context, hook string) ([]domain.ScheduledNotification, error) {
	rows, err := b.pool.Query(ctx, `
		SELECT `+jobColumns+`
		FROM scheduled_notifications
		WHERE $1 = '' OR hook = $1
		ORDER BY run_at ASC, id ASC`, hook)
	if err != nil {
		return nil, errors.Wrap(err, "list scheduled notifications")
	}
	defer rows.Close()
	return scanJobs(rows)
}

func (b *PgBackend) ClaimDue(ctx context.Context, now time.Time, limit int) ([]domain.ScheduledNotification, error) {
	rows, err := b.pool.Query(ctx, `
		DELETE FROM scheduled_notifications
		WHERE id IN (
			SELECT id FROM scheduled_notifications
			WHERE run_at <= $1
			ORDER BY run_at ASC
			LIMIT $2
			FOR UPDATE SKIP LOCKED
		)
		RETURNING `+jobColumns, now, limit)
	if err != nil {
		return nil, errors.Wrap(err, "claim due notifications")
	}
	defer rows.Close()

	jobs, err := scanJobs(rows)
	if err != nil {
		return nil, err
	}
	sortJobs(jobs)
	return jobs, nil
}

func scanJobs(rows pgx.Rows) ([]domain.ScheduledNotification, error) {
	var out []domain.ScheduledNotification
	for rows.Next() {
		var (
			job     domain.ScheduledNotification
			payload []byte
		)
		if err := rows.Scan(
			&job.ID, &job.Hook, &job.Key, &job.WorkflowID, &payload,
			&job.RunAt, &job.Fingerprint, &job.CreatedAt,
		); err != nil {
			return nil, errors.Wrap(err, "scan scheduled notification")
		}
		args, err := domain.DecodeEventArgs(payload)
		if err != nil {
			return nil, err
		}
		job.Args = args
		out = append(out, job)
	}
	return out, errors.Wrap(rows.Err(), "iterate scheduled notifications")
}
