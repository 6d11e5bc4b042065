package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/geocoder89/clubevents/internal/domain/event"
	"github.com/geocoder89/clubevents/internal/domain/registration"
	"github.com/geocoder89/clubevents/internal/observability"
)

type RegistrationsRepo struct {
	db   *sql.DB
	prom *observability.Prom
}

func NewRegistrationsRepo(db *sql.DB, prom *observability.Prom) *RegistrationsRepo {
	return &RegistrationsRepo{db: db, prom: prom}
}

func (repo *RegistrationsRepo) observe(op string, fn func() error) error {
	return repo.prom.ObserveDB(op, fn)
}

// Insert runs the capacity check, the insert and the count update in one
// immediate transaction, which holds the database write lock throughout.
func (repo *RegistrationsRepo) Insert(ctx context.Context, reg registration.Registration) (out registration.Registration, err error) {
	tx, err := repo.db.BeginTx(ctx, nil)
	if err != nil {
		return
	}

	defer func() {
		_ = tx.Rollback()
	}()

	var capacity int
	err = repo.observe("registrations.insert.capacity", func() error {
		return tx.QueryRowContext(ctx, `SELECT max_participants FROM events WHERE id = ?`, reg.EventID).Scan(&capacity)
	})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return registration.Registration{}, event.ErrNotFound
		}
		return
	}

	var exists bool
	var current int
	err = repo.observe("registrations.insert.active_count", func() error {
		return tx.QueryRowContext(ctx, `
		SELECT
			EXISTS(SELECT 1 FROM registrations
			       WHERE event_id = ?1 AND lower(email) = lower(?2) AND payment_status <> 'failed'),
			(SELECT COUNT(*) FROM registrations
			 WHERE event_id = ?1 AND payment_status <> 'failed')
	`, reg.EventID, reg.Participant.Email).Scan(&exists, &current)
	})
	if err != nil {
		return
	}

	if exists && reg.CountsTowardCapacity() {
		return registration.Registration{}, registration.ErrAlreadyRegistered
	}
	if reg.CountsTowardCapacity() && current >= capacity {
		return registration.Registration{}, registration.ErrEventFull
	}

	err = repo.observe("registrations.insert", func() error {
		_, e := tx.ExecContext(ctx, `
		INSERT INTO registrations (id, event_id, user_id, name, email, registration_date,
		                           payment_status, payment_amount, created_at, updated_at)
		VALUES (?,?,?,?,?,?,?,?,?,?)
	`, reg.ID, reg.EventID, reg.Participant.UserID, reg.Participant.Name, reg.Participant.Email,
			formatTime(reg.RegistrationDate), string(reg.PaymentStatus), reg.PaymentAmount,
			formatTime(reg.CreatedAt), formatTime(reg.UpdatedAt))
		return e
	})
	if err != nil {
		if isUniqueViolation(err) {
			return registration.Registration{}, registration.ErrAlreadyRegistered
		}
		return
	}

	if reg.CountsTowardCapacity() {
		current++
	}
	err = repo.observe("registrations.insert.reconcile_count", func() error {
		_, e := tx.ExecContext(ctx, `
		UPDATE events
		SET current_participants = ?, version = version + 1, updated_at = ?
		WHERE id = ?
	`, current, formatTime(reg.CreatedAt), reg.EventID)
		return e
	})
	if err != nil {
		return
	}

	if err = tx.Commit(); err != nil {
		return
	}
	return reg, nil
}

func (repo *RegistrationsRepo) ListByEvent(ctx context.Context, eventID string) (regs []registration.Registration, err error) {
	var found bool
	err = repo.observe("registrations.list_by_event.check_event_exists", func() error {
		return repo.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM events WHERE id = ?)`, eventID).Scan(&found)
	})
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, event.ErrNotFound
	}

	err = repo.observe("registrations.list_by_event", func() error {
		rows, err := repo.db.QueryContext(ctx, `
		SELECT id, event_id, user_id, name, email, registration_date,
		       payment_status, payment_amount, created_at, updated_at
		FROM registrations
		WHERE event_id = ?
		ORDER BY created_at ASC, id ASC
	`, eventID)
		if err != nil {
			return err
		}
		defer rows.Close()

		regs = make([]registration.Registration, 0)
		for rows.Next() {
			r, err := scanRegistration(rows)
			if err != nil {
				return err
			}
			regs = append(regs, r)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return regs, nil
}

func scanRegistration(row scanner) (registration.Registration, error) {
	var (
		r                              registration.Registration
		status                         string
		registeredAt, created, updated string
	)
	if err := row.Scan(&r.ID, &r.EventID, &r.Participant.UserID, &r.Participant.Name, &r.Participant.Email,
		&registeredAt, &status, &r.PaymentAmount, &created, &updated); err != nil {
		return registration.Registration{}, err
	}
	r.PaymentStatus = registration.PaymentStatus(status)

	var err error
	if r.RegistrationDate, err = parseTime(registeredAt); err != nil {
		return registration.Registration{}, fmt.Errorf("decode registration_date: %w", err)
	}
	if r.CreatedAt, err = parseTime(created); err != nil {
		return registration.Registration{}, fmt.Errorf("decode created_at: %w", err)
	}
	if r.UpdatedAt, err = parseTime(updated); err != nil {
		return registration.Registration{}, fmt.Errorf("decode updated_at: %w", err)
	}
	return r, nil
}
