package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/geocoder89/clubevents/internal/jobs"
	"github.com/geocoder89/clubevents/internal/observability"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type NotificationDeliveriesRepo struct {
	pool  *pgxpool.Pool
	prom  *observability.Prom
	lease time.Duration
}

// NewNotificationDeliveriesRepo expires "sending" claims after lease; zero uses jobs.DeliveryLease.
func NewNotificationDeliveriesRepo(pool *pgxpool.Pool, prom *observability.Prom, lease time.Duration) *NotificationDeliveriesRepo {
	if lease <= 0 {
		lease = jobs.DeliveryLease
	}
	return &NotificationDeliveriesRepo{pool: pool, prom: prom, lease: lease}
}

func (r *NotificationDeliveriesRepo) TryStart(ctx context.Context, key, jobID string) error {
	// 1) insert if missing
	err := r.prom.ObserveDB("deliveries.insert", func() error {
		_, err := r.pool.Exec(ctx, `
		INSERT INTO notification_deliveries (delivery_key, job_id, status, created_at, updated_at)
		VALUES ($1, $2, 'sending', NOW(), NOW())
	`, key, jobID)
		return err
	})
	if err == nil {
		return nil
	}
	if !IsUniqueViolation(err) {
		return err
	}

	// 2) a failed attempt, or a send abandoned past the lease, may be reclaimed;
	// only one worker wins the update
	var tag pgconn.CommandTag
	err = r.prom.ObserveDB("deliveries.reclaim", func() error {
		var err error
		tag, err = r.pool.Exec(ctx, `
		UPDATE notification_deliveries
		SET status = 'sending', job_id = $2, last_error = NULL, updated_at = NOW()
		WHERE delivery_key = $1
		  AND (status = 'failed'
		       OR (status = 'sending' AND updated_at < NOW() - make_interval(secs => $3)))
	`, key, jobID, r.lease.Seconds())
		return err
	})
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 1 {
		return nil
	}

	// 3) already sent, or sending elsewhere
	var status string
	var sentAt *time.Time
	err = r.prom.ObserveDB("deliveries.get", func() error {
		return r.pool.QueryRow(ctx, `
		SELECT status, sent_at FROM notification_deliveries WHERE delivery_key = $1
	`, key).Scan(&status, &sentAt)
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// row disappeared; let the caller retry
			return jobs.ErrDeliveryInProgress
		}
		return err
	}

	if sentAt != nil || status == "sent" {
		return jobs.ErrAlreadyDelivered
	}
	return jobs.ErrDeliveryInProgress
}

func (r *NotificationDeliveriesRepo) MarkSent(ctx context.Context, key string) error {
	return r.prom.ObserveDB("deliveries.mark_sent", func() error {
		_, err := r.pool.Exec(ctx, `
		UPDATE notification_deliveries
		SET status = 'sent', sent_at = NOW(), last_error = NULL, updated_at = NOW()
		WHERE delivery_key = $1
	`, key)
		return err
	})
}

func (r *NotificationDeliveriesRepo) MarkFailed(ctx context.Context, key, errMsg string) error {
	return r.prom.ObserveDB("deliveries.mark_failed", func() error {
		_, err := r.pool.Exec(ctx, `
		UPDATE notification_deliveries
		SET status = 'failed', last_error = $2, updated_at = NOW()
		WHERE delivery_key = $1
	`, key, errMsg)
		return err
	})
}
