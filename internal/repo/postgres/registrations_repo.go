package postgres

import (
	"context"
	"errors"

	"github.com/geocoder89/clubevents/internal/domain/event"
	"github.com/geocoder89/clubevents/internal/domain/registration"
	"github.com/geocoder89/clubevents/internal/observability"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type RegistrationRepo struct {
	pool *pgxpool.Pool
	prom *observability.Prom
}

func NewRegistrationsRepo(pool *pgxpool.Pool, prom *observability.Prom) *RegistrationRepo {
	return &RegistrationRepo{
		pool: pool,
		prom: prom,
	}
}

func (repo *RegistrationRepo) observe(op string, fn func() error) error {
	return repo.prom.ObserveDB(op, fn)
}

// Insert enforces capacity and uniqueness in one transaction: the event row
// is locked FOR UPDATE, so concurrent inserts for the same event queue up and
// current_participants moves together with the new row.
func (repo *RegistrationRepo) Insert(ctx context.Context, reg registration.Registration) (out registration.Registration, err error) {
	tx, err := repo.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return
	}

	defer func() {
		_ = tx.Rollback(ctx)
	}()

	out, err = repo.InsertTx(ctx, tx, reg)
	if err != nil {
		return
	}

	err = tx.Commit(ctx)
	return
}

func (repo *RegistrationRepo) InsertTx(ctx context.Context, tx pgx.Tx, reg registration.Registration) (registration.Registration, error) {
	// 1) lock event row
	var capacity int
	err := repo.observe("registrations.insert.capacity_lock", func() error {
		return tx.QueryRow(ctx, `
		SELECT max_participants FROM events WHERE id = $1 FOR UPDATE
	`, reg.EventID).Scan(&capacity)
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) || isInvalidUUID(err) {
			return registration.Registration{}, event.ErrNotFound
		}
		return registration.Registration{}, err
	}

	// 2) duplicate + count, both over registrations that hold a seat
	var exists bool
	var current int
	err = repo.observe("registrations.insert.active_count", func() error {
		return tx.QueryRow(ctx, `
		SELECT
			EXISTS(SELECT 1 FROM registrations
			       WHERE event_id = $1 AND lower(email) = lower($2) AND payment_status <> 'failed'),
			(SELECT COUNT(*) FROM registrations
			 WHERE event_id = $1 AND payment_status <> 'failed')
	`, reg.EventID, reg.Participant.Email).Scan(&exists, &current)
	})
	if err != nil {
		return registration.Registration{}, err
	}

	if exists && reg.CountsTowardCapacity() {
		return registration.Registration{}, registration.ErrAlreadyRegistered
	}
	if reg.CountsTowardCapacity() && current >= capacity {
		return registration.Registration{}, registration.ErrEventFull
	}

	// 3) insert
	err = repo.observe("registrations.insert", func() error {
		_, e := tx.Exec(ctx, `
		INSERT INTO registrations (id, event_id, user_id, name, email, registration_date,
		                           payment_status, payment_amount, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
	`, reg.ID, reg.EventID, reg.Participant.UserID, reg.Participant.Name, reg.Participant.Email,
			reg.RegistrationDate, string(reg.PaymentStatus), reg.PaymentAmount, reg.CreatedAt, reg.UpdatedAt)
		return e
	})
	if err != nil {
		if IsUniqueViolation(err) {
			return registration.Registration{}, registration.ErrAlreadyRegistered
		}
		return registration.Registration{}, err
	}

	// 4) reconcile the derived count
	if reg.CountsTowardCapacity() {
		current++
	}
	err = repo.observe("registrations.insert.reconcile_count", func() error {
		_, e := tx.Exec(ctx, `
		UPDATE events
		SET current_participants = $2, version = version + 1, updated_at = $3
		WHERE id = $1
	`, reg.EventID, current, reg.CreatedAt)
		return e
	})
	if err != nil {
		return registration.Registration{}, err
	}

	return reg, nil
}

func (repo *RegistrationRepo) ListByEvent(ctx context.Context, eventID string) (regs []registration.Registration, err error) {
	// 404 if the event itself does not exist
	var found bool
	err = repo.observe("registrations.list_by_event.check_event_exists", func() error {
		return repo.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM events WHERE id = $1)`, eventID).Scan(&found)
	})
	if err != nil {
		if isInvalidUUID(err) {
			return nil, event.ErrNotFound
		}
		return nil, err
	}
	if !found {
		return nil, event.ErrNotFound
	}

	err = repo.observe("registrations.list_by_event", func() error {
		rows, err := repo.pool.Query(ctx, `
		SELECT id, event_id, user_id, name, email, registration_date,
		       payment_status, payment_amount, created_at, updated_at
		FROM registrations
		WHERE event_id = $1
		ORDER BY created_at ASC, id ASC
	`, eventID)
		if err != nil {
			return err
		}
		defer rows.Close()

		regs = make([]registration.Registration, 0)
		for rows.Next() {
			var r registration.Registration
			var status string
			if err := rows.Scan(&r.ID, &r.EventID, &r.Participant.UserID, &r.Participant.Name, &r.Participant.Email,
				&r.RegistrationDate, &status, &r.PaymentAmount, &r.CreatedAt, &r.UpdatedAt); err != nil {
				return err
			}
			r.PaymentStatus = registration.PaymentStatus(status)
			regs = append(regs, r)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return regs, nil
}
