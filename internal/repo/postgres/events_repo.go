package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/geocoder89/clubevents/internal/domain/event"
	"github.com/geocoder89/clubevents/internal/observability"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type EventsRepo struct {
	pool *pgxpool.Pool
	prom *observability.Prom
}

func NewEventsRepo(pool *pgxpool.Pool, prom *observability.Prom) *EventsRepo {
	return &EventsRepo{pool: pool, prom: prom}
}

func (r *EventsRepo) observe(op string, fn func() error) error {
	return r.prom.ObserveDB(op, fn)
}

const eventColumns = `id, title, description, sport_id, type, event_date, event_time,
	duration_hours, fee_amount, max_participants, current_participants,
	club_id, custom_location, facility_ids, amenity_ids,
	requirements, prizes, announcement,
	registration_deadline, cancellation_reason, status, version, created_at, updated_at`

func scanEvent(row pgx.Row) (event.Event, error) {
	var (
		e      event.Event
		typ    string
		status string
	)
	err := row.Scan(
		&e.ID, &e.Title, &e.Description, &e.SportID, &typ, &e.Date, &e.Time,
		&e.DurationHours, &e.FeeAmount, &e.MaxParticipants, &e.CurrentParticipants,
		&e.Location.ClubID, &e.Location.Custom, &e.FacilityIDs, &e.AmenityIDs,
		&e.Requirements, &e.Prizes, &e.Announcement,
		&e.RegistrationDeadline, &e.CancellationReason, &status, &e.Version, &e.CreatedAt, &e.UpdatedAt,
	)
	if err != nil {
		return event.Event{}, err
	}
	e.Type = event.Type(typ)
	e.Status = event.Status(status)
	return e, nil
}

func nonNil(ids []string) []string {
	if ids == nil {
		return []string{}
	}
	return ids
}

func (r *EventsRepo) Get(ctx context.Context, id string) (event.Event, error) {
	var e event.Event

	err := r.observe("events.get", func() error {
		var err error
		e, err = scanEvent(r.pool.QueryRow(ctx, `SELECT `+eventColumns+` FROM events WHERE id = $1`, id))
		return err
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) || isInvalidUUID(err) {
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
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if len(f.Statuses) > 0 {
		statuses := make([]string, 0, len(f.Statuses))
		for _, s := range f.Statuses {
			statuses = append(statuses, string(s))
		}
		conds = append(conds, "status = ANY("+arg(statuses)+")")
	}
	if f.ClubID != nil {
		conds = append(conds, "club_id = "+arg(*f.ClubID))
	}
	if f.SportID != nil {
		conds = append(conds, "sport_id = "+arg(*f.SportID))
	}
	if f.Type != nil {
		conds = append(conds, "type = "+arg(string(*f.Type)))
	}
	// ISO dates compare correctly as text
	if f.From != nil {
		conds = append(conds, "event_date <> '' AND event_date >= "+arg(*f.From))
	}
	if f.To != nil {
		conds = append(conds, "event_date <> '' AND event_date <= "+arg(*f.To))
	}

	q := `SELECT ` + eventColumns + ` FROM events`
	if len(conds) > 0 {
		q += " WHERE " + strings.Join(conds, " AND ")
	}
	q += " ORDER BY event_date ASC, event_time ASC, id ASC"
	if f.Limit > 0 {
		q += " LIMIT " + arg(f.Limit)
	}
	if f.Offset > 0 {
		q += " OFFSET " + arg(f.Offset)
	}

	var out []event.Event
	err := r.observe("events.list", func() error {
		rows, err := r.pool.Query(ctx, q, args...)
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
	if e.Version == 0 {
		return r.insert(ctx, e)
	}

	var version int
	err := r.observe("events.update", func() error {
		return r.pool.QueryRow(ctx, `
		UPDATE events
		SET title = $2, description = $3, sport_id = $4, type = $5,
		    event_date = $6, event_time = $7, duration_hours = $8, fee_amount = $9,
		    max_participants = $10, current_participants = $11,
		    club_id = $12, custom_location = $13, facility_ids = $14, amenity_ids = $15,
		    requirements = $16, prizes = $17, announcement = $18,
		    registration_deadline = $19, cancellation_reason = $20, status = $21,
		    updated_at = $22, version = version + 1
		WHERE id = $1 AND version = $23
		RETURNING version
	`,
			e.ID, e.Title, e.Description, e.SportID, string(e.Type),
			e.Date, e.Time, e.DurationHours, e.FeeAmount,
			e.MaxParticipants, e.CurrentParticipants,
			e.Location.ClubID, e.Location.Custom, nonNil(e.FacilityIDs), nonNil(e.AmenityIDs),
			e.Requirements, e.Prizes, e.Announcement,
			e.RegistrationDeadline, e.CancellationReason, string(e.Status),
			e.UpdatedAt, e.Version,
		).Scan(&version)
	})
	if errors.Is(err, pgx.ErrNoRows) {
		// distinguish a lost race from a vanished row
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

func (r *EventsRepo) insert(ctx context.Context, e event.Event) (event.Event, error) {
	var tag pgconn.CommandTag
	err := r.observe("events.insert", func() error {
		var err error
		tag, err = r.pool.Exec(ctx, `
		INSERT INTO events (`+eventColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,1,$22,$23)
		ON CONFLICT (id) DO NOTHING
	`,
			e.ID, e.Title, e.Description, e.SportID, string(e.Type),
			e.Date, e.Time, e.DurationHours, e.FeeAmount,
			e.MaxParticipants, e.CurrentParticipants,
			e.Location.ClubID, e.Location.Custom, nonNil(e.FacilityIDs), nonNil(e.AmenityIDs),
			e.Requirements, e.Prizes, e.Announcement,
			e.RegistrationDeadline, e.CancellationReason, string(e.Status),
			e.CreatedAt, e.UpdatedAt,
		)
		return err
	})
	if err != nil {
		return event.Event{}, err
	}
	if tag.RowsAffected() == 0 {
		return event.Event{}, event.ErrConflict
	}

	out := e.Clone()
	out.Version = 1
	return out, nil
}

// Delete removes the event; registrations go with it through the foreign key.
func (r *EventsRepo) Delete(ctx context.Context, id string) error {
	var tag pgconn.CommandTag
	err := r.observe("events.delete", func() error {
		var err error
		tag, err = r.pool.Exec(ctx, `DELETE FROM events WHERE id = $1`, id)
		return err
	})
	if err != nil {
		if isInvalidUUID(err) {
			return event.ErrNotFound
		}
		return err
	}
	if tag.RowsAffected() == 0 {
		return event.ErrNotFound
	}
	return nil
}

func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// isInvalidUUID reports a malformed id, which can never match a row.
func isInvalidUUID(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "22P02"
}
