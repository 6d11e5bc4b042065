package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/geocoder89/clubevents/internal/jobs"
	"github.com/geocoder89/clubevents/internal/observability"
)

// JobsRepo is the notification outbox table.
type JobsRepo struct {
	db   *sql.DB
	prom *observability.Prom
	now  func() time.Time
}

func NewJobsRepo(db *sql.DB, prom *observability.Prom, now func() time.Time) *JobsRepo {
	if now == nil {
		now = time.Now
	}
	return &JobsRepo{db: db, prom: prom, now: now}
}

func (r *JobsRepo) observe(op string, fn func() error) error {
	return r.prom.ObserveDB(op, fn)
}

const jobColumns = `id, type, payload, status, attempts, max_attempts,
	run_at, locked_at, locked_by, last_error, idempotency_key, created_at, updated_at`

func scanJob(row scanner) (jobs.Job, error) {
	var (
		j                          jobs.Job
		typ, status, payload       string
		runAt, created, updated    string
		lockedAt, lockedBy, lastEr sql.NullString
		key                        sql.NullString
	)
	err := row.Scan(
		&j.ID, &typ, &payload, &status, &j.Attempts, &j.MaxAttempts,
		&runAt, &lockedAt, &lockedBy, &lastEr, &key, &created, &updated,
	)
	if err != nil {
		return jobs.Job{}, err
	}
	j.Type = jobs.JobType(typ)
	j.Status = jobs.JobStatus(status)
	j.Payload = []byte(payload)
	j.LockedBy = stringPtr(lockedBy)
	j.LastError = stringPtr(lastEr)
	j.IdempotencyKey = stringPtr(key)

	if j.RunAt, err = parseTime(runAt); err != nil {
		return jobs.Job{}, fmt.Errorf("decode run_at: %w", err)
	}
	if j.LockedAt, err = parseNullTime(lockedAt); err != nil {
		return jobs.Job{}, fmt.Errorf("decode locked_at: %w", err)
	}
	if j.CreatedAt, err = parseTime(created); err != nil {
		return jobs.Job{}, fmt.Errorf("decode created_at: %w", err)
	}
	if j.UpdatedAt, err = parseTime(updated); err != nil {
		return jobs.Job{}, fmt.Errorf("decode updated_at: %w", err)
	}
	return j, nil
}

// Create inserts j, or returns the stored job carrying the same idempotency key.
func (r *JobsRepo) Create(ctx context.Context, j jobs.Job) (jobs.Job, error) {
	var affected int64
	err := r.observe("jobs.create", func() error {
		res, err := r.db.ExecContext(ctx, `
		INSERT INTO jobs (`+jobColumns+`)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?)
		ON CONFLICT (idempotency_key) DO NOTHING
	`, j.ID, string(j.Type), string(j.Payload), string(j.Status), j.Attempts, j.MaxAttempts,
			formatTime(j.RunAt), formatNullTime(j.LockedAt), nullString(j.LockedBy), nullString(j.LastError),
			nullString(j.IdempotencyKey), formatTime(j.CreatedAt), formatTime(j.UpdatedAt))
		if err != nil {
			return err
		}
		affected, err = res.RowsAffected()
		return err
	})
	if err != nil {
		return jobs.Job{}, err
	}
	if affected == 0 && j.IdempotencyKey != nil {
		return r.getBy(ctx, "jobs.get_by_idempotency_key", "idempotency_key", *j.IdempotencyKey)
	}
	return j, nil
}

func (r *JobsRepo) GetByID(ctx context.Context, id string) (jobs.Job, error) {
	return r.getBy(ctx, "jobs.get_by_id", "id", id)
}

func (r *JobsRepo) getBy(ctx context.Context, op, column, value string) (jobs.Job, error) {
	var j jobs.Job
	err := r.observe(op, func() error {
		var err error
		j, err = scanJob(r.db.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM jobs WHERE `+column+` = ?`, value))
		return err
	})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return jobs.Job{}, jobs.ErrJobNotFound
		}
		return jobs.Job{}, err
	}
	return j, nil
}

// ClaimNext flips the oldest runnable job to processing in a single
// statement; sqlite serializes writers, so two workers never claim the same row.
func (r *JobsRepo) ClaimNext(ctx context.Context, workerID string) (jobs.Job, error) {
	now := formatTime(r.now())

	var j jobs.Job
	err := r.observe("jobs.claim_next", func() error {
		var err error
		j, err = scanJob(r.db.QueryRowContext(ctx, `
		UPDATE jobs
		SET status = 'processing', locked_at = ?1, locked_by = ?2, updated_at = ?1
		WHERE id = (
			SELECT id FROM jobs
			WHERE status = 'pending' AND run_at <= ?1 AND attempts < max_attempts
			ORDER BY run_at ASC, created_at ASC
			LIMIT 1
		)
		RETURNING `+jobColumns, now, workerID))
		return err
	})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return jobs.Job{}, jobs.ErrJobNotFound
		}
		return jobs.Job{}, err
	}
	return j, nil
}

func (r *JobsRepo) MarkDone(ctx context.Context, id string) error {
	return r.exec(ctx, "jobs.mark_done", `
		UPDATE jobs
		SET status = 'done', locked_at = NULL, locked_by = NULL, last_error = NULL, updated_at = ?
		WHERE id = ?
	`, formatTime(r.now()), id)
}

func (r *JobsRepo) Reschedule(ctx context.Context, id string, runAt time.Time, errMsg string) error {
	return r.exec(ctx, "jobs.reschedule", `
		UPDATE jobs
		SET status = 'pending', attempts = attempts + 1, run_at = ?,
		    locked_at = NULL, locked_by = NULL, last_error = ?, updated_at = ?
		WHERE id = ?
	`, formatTime(runAt), errMsg, formatTime(r.now()), id)
}

func (r *JobsRepo) MarkFailed(ctx context.Context, id string, errMsg string) error {
	return r.exec(ctx, "jobs.mark_failed", `
		UPDATE jobs
		SET status = 'failed', attempts = attempts + 1,
		    locked_at = NULL, locked_by = NULL, last_error = ?, updated_at = ?
		WHERE id = ?
	`, errMsg, formatTime(r.now()), id)
}

// RequeueStaleProcessing releases jobs whose lock is older than lockTTL.
func (r *JobsRepo) RequeueStaleProcessing(ctx context.Context, lockTTL time.Duration) (int64, error) {
	if lockTTL <= 0 {
		lockTTL = 30 * time.Second
	}
	now := r.now()

	var rows int64
	err := r.observe("jobs.requeue_stale", func() error {
		res, err := r.db.ExecContext(ctx, `
		UPDATE jobs
		SET status = 'pending', locked_at = NULL, locked_by = NULL, updated_at = ?
		WHERE status = 'processing' AND locked_at IS NOT NULL AND locked_at < ?
	`, formatTime(now), formatTime(now.Add(-lockTTL)))
		if err != nil {
			return err
		}
		rows, err = res.RowsAffected()
		return err
	})
	return rows, err
}

func (r *JobsRepo) exec(ctx context.Context, op, query string, args ...any) error {
	var affected int64
	err := r.observe(op, func() error {
		res, err := r.db.ExecContext(ctx, query, args...)
		if err != nil {
			return err
		}
		affected, err = res.RowsAffected()
		return err
	})
	if err != nil {
		return err
	}
	if affected == 0 {
		return jobs.ErrJobNotFound
	}
	return nil
}
