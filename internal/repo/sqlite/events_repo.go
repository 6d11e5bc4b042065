package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/geocoder89/clubevents/internal/domain/event"
	"github.com/geocoder89/clubevents/internal/observability"
)

type EventsRepo struct {
	db   *sql.DB
	prom *observability.Prom
}

func NewEventsRepo(db *sql.DB, prom *observability.Prom) *EventsRepo {
	return &EventsRepo{db: db, prom: prom}
}

func (r *EventsRepo) observe(op string, fn func() error) error {
	return r.prom.ObserveDB(op, fn)
}

const eventColumns = `id, title, description, sport_id, type, event_date, event_time,
	duration_hours, fee_amount, max_participants, current_participants,
	club_id, custom_location, facility_ids, amenity_ids,
	requirements, prizes, announcement,
	registration_deadline, cancellation_reason, status, version, created_at, updated_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanEvent(row scanner) (event.Event, error) {
	var (
		e                                  event.Event
		typ, status                        string
		custom, reqs, prizes, announcement sql.NullString
		facilities, amenities              string
		createdAt, updatedAt               string
	)
	err := row.Scan(
		&e.ID, &e.Title, &e.Description, &e.SportID, &typ, &e.Date, &e.Time,
		&e.DurationHours, &e.FeeAmount, &e.MaxParticipants, &e.CurrentParticipants,
		&e.Location.ClubID, &custom, &facilities, &amenities,
		&reqs, &prizes, &announcement,
		&e.RegistrationDeadline, &e.CancellationReason, &status, &e.Version, &createdAt, &updatedAt,
	)
	if err != nil {
		return event.Event{}, err
	}
	e.Type = event.Type(typ)
	e.Status = event.Status(status)

	if e.Location.Custom, err = decodeJSON[event.CustomLocation](custom); err != nil {
		return event.Event{}, fmt.Errorf("decode custom_location: %w", err)
	}
	if e.Requirements, err = decodeJSON[event.Requirements](reqs); err != nil {
		return event.Event{}, fmt.Errorf("decode requirements: %w", err)
	}
	if e.Prizes, err = decodeJSON[event.Prizes](prizes); err != nil {
		return event.Event{}, fmt.Errorf("decode prizes: %w", err)
	}
	if e.Announcement, err = decodeJSON[event.Announcement](announcement); err != nil {
		return event.Event{}, fmt.Errorf("decode announcement: %w", err)
	}
	if e.FacilityIDs, err = decodeIDs(facilities); err != nil {
		return event.Event{}, fmt.Errorf("decode facility_ids: %w", err)
	}
	if e.AmenityIDs, err = decodeIDs(amenities); err != nil {
		return event.Event{}, fmt.Errorf("decode amenity_ids: %w", err)
	}
	if e.CreatedAt, err = parseTime(createdAt); err != nil {
		return event.Event{}, fmt.Errorf("decode created_at: %w", err)
	}
	if e.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return event.Event{}, fmt.Errorf("decode updated_at: %w", err)
	}
	return e, nil
}

// eventArgs returns the column values from title through status, in eventColumns order.
func eventArgs(e event.Event) ([]any, error) {
	custom, err := encodeJSON(e.Location.Custom)
	if err != nil {
		return nil, err
	}
	reqs, err := encodeJSON(e.Requirements)
	if err != nil {
		return nil, err
	}
	prizes, err := encodeJSON(e.Prizes)
	if err != nil {
		return nil, err
	}
	announcement, err := encodeJSON(e.Announcement)
	if err != nil {
		return nil, err
	}
	facilities, err := encodeIDs(e.FacilityIDs)
	if err != nil {
		return nil, err
	}
	amenities, err := encodeIDs(e.AmenityIDs)
	if err != nil {
		return nil, err
	}

	return []any{
		e.Title, e.Description, e.SportID, string(e.Type), e.Date, e.Time,
		e.DurationHours, e.FeeAmount, e.MaxParticipants, e.CurrentParticipants,
		e.Location.ClubID, custom, facilities, amenities,
		reqs, prizes, announcement,
		e.RegistrationDeadline, e.CancellationReason, string(e.Status),
	}, nil
}

func (r *EventsRepo) Get(ctx context.Context, id string) (event.Event, error) {
	var e event.Event

	err := r.observe("events.get", func() error {
		var err error
		e, err = scanEvent(r.db.QueryRowContext(ctx, `SELECT `+eventColumns+` FROM events WHERE id = ?`, id))
		return err
	})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return event.Event{}, event.ErrNotFound
		}
		return event.Event{}, err
	}
	return e, nil
}

func (r *EventsRepo) List(ctx context.Context, f event.ListFilter) ([]event.Event, error) {
	var (
		conds []string
		args  []any
	)

	if len(f.Statuses) > 0 {
		marks := make([]string, 0, len(f.Statuses))
		for _, s := range f.Statuses {
			marks = append(marks, "?")
			args = append(args, string(s))
		}
		conds = append(conds, "status IN ("+strings.Join(marks, ",")+")")
	}
	if f.ClubID != nil {
		conds = append(conds, "club_id = ?")
		args = append(args, *f.ClubID)
	}
	if f.SportID != nil {
		conds = append(conds, "sport_id = ?")
		args = append(args, *f.SportID)
	}
	if f.Type != nil {
		conds = append(conds, "type = ?")
		args = append(args, string(*f.Type))
	}
	if f.From != nil {
		conds = append(conds, "event_date <> '' AND event_date >= ?")
		args = append(args, *f.From)
	}
	if f.To != nil {
		conds = append(conds, "event_date <> '' AND event_date <= ?")
		args = append(args, *f.To)
	}

	q := `SELECT ` + eventColumns + ` FROM events`
	if len(conds) > 0 {
		q += " WHERE " + strings.Join(conds, " AND ")
	}
	q += " ORDER BY event_date ASC, event_time ASC, id ASC"
	if f.Limit > 0 || f.Offset > 0 {
		// sqlite needs a LIMIT before OFFSET; -1 means unbounded
		limit := f.Limit
		if limit <= 0 {
			limit = -1
		}
		q += " LIMIT ? OFFSET ?"
		args = append(args, limit, f.Offset)
	}

	var out []event.Event
	err := r.observe("events.list", func() error {
		rows, err := r.db.QueryContext(ctx, q, args...)
		if err != nil {
			return err
		}
		defer rows.Close()

		out = make([]event.Event, 0)
		for rows.Next() {
			e, err := scanEvent(rows)
			if err != nil {
				return err
			}
			out = append(out, e)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Upsert inserts when e.Version is 0 and otherwise updates only if the stored
// version still equals e.Version.
func (r *EventsRepo) Upsert(ctx context.Context, e event.Event) (event.Event, error) {
	cols, err := eventArgs(e)
	if err != nil {
		return event.Event{}, fmt.Errorf("encode event: %w", err)
	}
	if e.Version == 0 {
		return r.insert(ctx, e, cols)
	}

	var version int
	err = r.observe("events.update", func() error {
		args := append([]any{}, cols...)
		args = append(args, formatTime(e.UpdatedAt), e.ID, e.Version)
		return r.db.QueryRowContext(ctx, `
		UPDATE events
		SET title = ?, description = ?, sport_id = ?, type = ?,
		    event_date = ?, event_time = ?, duration_hours = ?, fee_amount = ?,
		    max_participants = ?, current_participants = ?,
		    club_id = ?, custom_location = ?, facility_ids = ?, amenity_ids = ?,
		    requirements = ?, prizes = ?, announcement = ?,
		    registration_deadline = ?, cancellation_reason = ?, status = ?,
		    updated_at = ?, version = version + 1
		WHERE id = ? AND version = ?
		RETURNING version
	`, args...).Scan(&version)
	})
	if errors.Is(err, sql.ErrNoRows) {
		if _, gerr := r.Get(ctx, e.ID); errors.Is(gerr, event.ErrNotFound) {
			return event.Event{}, event.ErrNotFound
		}
		return event.Event{}, event.ErrConflict
	}
	if err != nil {
		return event.Event{}, err
	}

	out := e.Clone()
	out.Version = version
	return out, nil
}

func (r *EventsRepo) insert(ctx context.Context, e event.Event, cols []any) (event.Event, error) {
	var affected int64
	err := r.observe("events.insert", func() error {
		args := append([]any{e.ID}, cols...)
		args = append(args, formatTime(e.CreatedAt), formatTime(e.UpdatedAt))
		res, err := r.db.ExecContext(ctx, `
		INSERT INTO events (`+eventColumns+`)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,1,?,?)
		ON CONFLICT (id) DO NOTHING
	`, args...)
		if err != nil {
			return err
		}
		affected, err = res.RowsAffected()
		return err
	})
	if err != nil {
		return event.Event{}, err
	}
	if affected == 0 {
		return event.Event{}, event.ErrConflict
	}

	out := e.Clone()
	out.Version = 1
	return out, nil
}

func (r *EventsRepo) Delete(ctx context.Context, id string) error {
	var affected int64
	err := r.observe("events.delete", func() error {
		res, err := r.db.ExecContext(ctx, `DELETE FROM events WHERE id = ?`, id)
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
		return event.ErrNotFound
	}
	return nil
}
