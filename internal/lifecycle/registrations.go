package lifecycle

import (
	"context"
	"fmt"
	"time"

	"github.com/geocoder89/clubevents/internal/domain/event"
	"github.com/geocoder89/clubevents/internal/domain/registration"
	"github.com/geocoder89/clubevents/internal/notifications"
)

// RegisterParticipant admits one participant into a live event that has not
// ended and whose registration deadline has not passed.
func (en *Engine) RegisterParticipant(ctx context.Context, req registration.CreateRegistrationRequest) (out registration.Registration, err error) {
	ctx, span := en.startSpan(ctx, "register", req.EventID)
	defer func() { endSpan(span, err) }()

	err = en.withEvent(ctx, req.EventID, func(cur event.Event, now time.Time) error {
		if !cur.Status.IsLive() {
			return event.NewTransitionError("register", cur.Status)
		}
		if deadlinePassed(cur, now, en.loc) {
			return event.NewTransitionError("register", cur.Status).WithReason("registration deadline has passed")
		}
		if cur.CurrentParticipants >= cur.MaxParticipants {
			return registration.ErrEventFull
		}

		reg := registration.NewFromCreateRequest(req, now)
		stored, err := en.regs.Insert(ctx, reg)
		if err != nil {
			return err
		}

		en.prom.RegistrationCreated()
		en.log.InfoContext(ctx, "registration created",
			"event_id", cur.ID,
			"registration_id", stored.ID,
		)
		en.notify(ctx, notifications.Notification{
			Kind:           notifications.KindRegistrationCreated,
			EventID:        cur.ID,
			Title:          cur.Title,
			Status:         string(cur.Status),
			RegistrationID: stored.ID,
			Email:          stored.Participant.Email,
			Name:           stored.Participant.Name,
			OccurredAt:     now,
		})
		out = stored
		return nil
	})
	return out, en.reject("register", err)
}

// deadlinePassed treats the deadline as inclusive of its whole calendar day.
func deadlinePassed(e event.Event, now time.Time, loc *time.Location) bool {
	if e.RegistrationDeadline == "" {
		return false
	}
	d, err := event.ParseDate(e.RegistrationDeadline, loc)
	if err != nil {
		return false
	}
	return !now.In(loc).Before(d.AddDate(0, 0, 1))
}

func (en *Engine) ListRegistrations(ctx context.Context, eventID string) ([]registration.Registration, error) {
	regs, err := en.regs.ListByEvent(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("list registrations for %s: %w", eventID, err)
	}
	return regs, nil
}

// ReconcileParticipants recomputes currentParticipants from the stored
// registrations, e.g. after a payment failed outside the engine.
func (en *Engine) ReconcileParticipants(ctx context.Context, eventID string) (out event.Event, err error) {
	ctx, span := en.startSpan(ctx, "reconcile", eventID)
	defer func() { endSpan(span, err) }()

	err = en.withEvent(ctx, eventID, func(cur event.Event, now time.Time) error {
		regs, err := en.regs.ListByEvent(ctx, eventID)
		if err != nil {
			return err
		}

		count := registration.CountActive(regs)
		if count == cur.CurrentParticipants {
			out = cur
			return nil
		}

		next := cur.Clone()
		next.CurrentParticipants = count
		stored, err := en.save(ctx, "reconcile", cur, next, now)
		if err != nil {
			return err
		}

		en.log.InfoContext(ctx, "participants reconciled",
			"event_id", eventID,
			"from", cur.CurrentParticipants,
			"to", count,
		)
		out = stored
		return nil
	})
	return out, en.reject("reconcile", err)
}
