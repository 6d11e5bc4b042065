package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/geocoder89/clubevents/internal/domain/event"
	"github.com/geocoder89/clubevents/internal/notifications"
	"github.com/geocoder89/clubevents/internal/validation"
)

const maxAnnouncementLen = 1000

// Create stores a new event as draft or published. Drafts only need their
// present fields to be well formed.
func (en *Engine) Create(ctx context.Context, p event.CreatePatch) (_ event.Event, err error) {
	ctx, span := en.startSpan(ctx, "create", "")
	defer func() { endSpan(span, err) }()

	now := en.clock.Now()
	e := event.NewFromCreatePatch(p, now)

	errs, err := validation.ValidateCreate(ctx, e, p.AsDraft, en.sports)
	if err != nil {
		return event.Event{}, err
	}
	if !p.AsDraft {
		errs.Merge(validation.ValidateStartsInFuture(e, now, en.loc))
	}
	if err := errs.Err(); err != nil {
		return event.Event{}, en.reject("create", err)
	}

	stored, err := en.events.Upsert(ctx, e)
	if err != nil {
		return event.Event{}, fmt.Errorf("create event: %w", err)
	}

	en.prom.Transition("create", "", string(stored.Status))
	en.log.InfoContext(ctx, "event created", "event_id", stored.ID, "status", string(stored.Status))

	kind := notifications.KindEventCreated
	if stored.Status == event.StatusPublished {
		kind = notifications.KindEventPublished
	}
	en.notify(ctx, notificationFor(kind, stored, stored, now))

	return stored, nil
}

// Publish moves a draft to published once every required field is present
// and the start is not in the past.
func (en *Engine) Publish(ctx context.Context, id string) (out event.Event, err error) {
	ctx, span := en.startSpan(ctx, "publish", id)
	defer func() { endSpan(span, err) }()

	err = en.withEvent(ctx, id, func(cur event.Event, now time.Time) error {
		if cur.Status != event.StatusDraft {
			return event.NewTransitionError("publish", cur.Status)
		}

		errs, err := validation.ValidateCreate(ctx, cur, false, en.sports)
		if err != nil {
			return err
		}
		errs.Merge(validation.ValidateStartsInFuture(cur, now, en.loc))
		if err := errs.Err(); err != nil {
			return err
		}

		next := cur.Clone()
		next.Status = event.StatusPublished
		stored, err := en.save(ctx, "publish", cur, next, now)
		if err != nil {
			return err
		}

		en.notify(ctx, notificationFor(notifications.KindEventPublished, stored, cur, now))
		out = stored
		return nil
	})
	return out, en.reject("publish", err)
}

// related lists extra error fields an edit of field may surface.
var related = map[string][]string{
	"location": {"address", "city", "latitude", "longitude"},
	"date":     {"registrationDeadline"},
}

// Edit applies a partial update. Only errors on the touched fields (and the
// fields they constrain) are reported; status never changes.
func (en *Engine) Edit(ctx context.Context, id string, patch event.EditPatch) (out event.Event, err error) {
	ctx, span := en.startSpan(ctx, "edit", id)
	defer func() { endSpan(span, err) }()

	touched := patch.Touched()
	if len(touched) == 0 {
		errs := validation.Errors{}
		errs.Add("patch", "at least one field must be provided")
		return event.Event{}, en.reject("edit", errs.Err())
	}

	err = en.withEvent(ctx, id, func(cur event.Event, now time.Time) error {
		if cur.Status.IsTerminal() {
			return event.NewTransitionError("edit", cur.Status)
		}

		next := cur.Clone()
		patch.Apply(&next)

		all, err := validation.ValidateCreate(ctx, next, cur.Status == event.StatusDraft, en.sports)
		if err != nil {
			return err
		}

		fields := append([]string(nil), touched...)
		for _, t := range touched {
			fields = append(fields, related[t]...)
		}
		errs := all.Only(fields...)

		if cur.Status.IsLive() && (patch.Date != nil || patch.Time != nil) {
			errs.Merge(validation.ValidateStartsInFuture(next, now, en.loc))
		}
		if patch.MaxParticipants != nil && next.MaxParticipants < cur.CurrentParticipants {
			errs.Add("maxParticipants", fmt.Sprintf("cannot be lower than the %d registered participants", cur.CurrentParticipants))
		}
		if err := errs.Err(); err != nil {
			return err
		}

		stored, err := en.save(ctx, "edit", cur, next, now)
		if err != nil {
			return err
		}

		en.notify(ctx, notificationFor(notifications.KindEventUpdated, stored, cur, now))
		out = stored
		return nil
	})
	return out, en.reject("edit", err)
}

// Postpone reschedules an upcoming published event. Nothing is written unless
// every rule passes.
func (en *Engine) Postpone(ctx context.Context, id string, p event.PostponePatch) (out event.Event, err error) {
	ctx, span := en.startSpan(ctx, "postpone", id)
	defer func() { endSpan(span, err) }()

	err = en.withEvent(ctx, id, func(cur event.Event, now time.Time) error {
		if cur.Status != event.StatusPublished {
			return event.NewTransitionError("postpone", cur.Status)
		}
		if start, err := cur.StartAt(en.loc); err == nil && !now.Before(start) {
			return event.NewTransitionError("postpone", cur.Status).WithReason("event has already started")
		}

		errs := validation.ValidatePostpone(p, now, en.loc)

		newStart, startErr := event.CombineDateTime(p.EventDate, p.EventTime, en.loc)
		if startErr == nil {
			// same-day postponement needs a time still ahead of now
			today := now.In(en.loc).Format(event.DateLayout)
			if p.EventDate == today && !newStart.After(now) {
				errs.Add("eventTime", "must be later than the current time")
			}
		}

		if p.RegistrationDeadline == "" && cur.RegistrationDeadline != "" && p.EventDate != "" &&
			cur.RegistrationDeadline >= p.EventDate {
			errs.Add("registrationDeadline", "current deadline is not before the new event date; provide a new one")
		}

		if err := errs.Err(); err != nil {
			return err
		}

		next := cur.Clone()
		next.Date = p.EventDate
		next.Time = p.EventTime
		if p.RegistrationDeadline != "" {
			next.RegistrationDeadline = p.RegistrationDeadline
		}
		if p.EndDate != "" && p.EndTime != "" {
			end, err := event.CombineDateTime(p.EndDate, p.EndTime, en.loc)
			if err != nil {
				return err
			}
			next.DurationHours = durationHours(newStart, end)
		}
		next.Status = event.StatusPostponed

		stored, err := en.save(ctx, "postpone", cur, next, now)
		if err != nil {
			return err
		}

		en.notify(ctx, notificationFor(notifications.KindEventPostponed, stored, cur, now))
		out = stored
		return nil
	})
	return out, en.reject("postpone", err)
}

// durationHours rounds up to whole hours with a floor of one.
func durationHours(start, end time.Time) int {
	h := int(math.Ceil(end.Sub(start).Hours()))
	if h < 1 {
		return 1
	}
	return h
}

// Announce replaces the event's single announcement slot.
func (en *Engine) Announce(ctx context.Context, id string, p event.AnnouncePatch) (out event.Event, err error) {
	ctx, span := en.startSpan(ctx, "announce", id)
	defer func() { endSpan(span, err) }()

	msg := strings.TrimSpace(p.Message)
	errs := validation.Errors{}
	switch {
	case msg == "":
		errs.Add("message", "is required")
	case len([]rune(msg)) > maxAnnouncementLen:
		errs.Add("message", fmt.Sprintf("must be at most %d characters", maxAnnouncementLen))
	}
	if err := errs.Err(); err != nil {
		return event.Event{}, en.reject("announce", err)
	}

	err = en.withEvent(ctx, id, func(cur event.Event, now time.Time) error {
		if !cur.Status.IsLive() {
			return event.NewTransitionError("announce", cur.Status)
		}

		next := cur.Clone()
		next.Announcement = &event.Announcement{Message: msg, CreatedAt: now}

		stored, err := en.save(ctx, "announce", cur, next, now)
		if err != nil {
			return err
		}

		n := notificationFor(notifications.KindEventAnnounced, stored, cur, now)
		n.Message = msg
		en.notify(ctx, n)
		out = stored
		return nil
	})
	return out, en.reject("announce", err)
}

// Cancel ends a live event early. The sweep never overrides a cancellation.
func (en *Engine) Cancel(ctx context.Context, id string, p event.CancelPatch) (out event.Event, err error) {
	ctx, span := en.startSpan(ctx, "cancel", id)
	defer func() { endSpan(span, err) }()

	err = en.withEvent(ctx, id, func(cur event.Event, now time.Time) error {
		if !cur.Status.IsLive() {
			return event.NewTransitionError("cancel", cur.Status)
		}

		next := cur.Clone()
		next.Status = event.StatusCancelled
		next.CancellationReason = strings.TrimSpace(p.Reason)

		stored, err := en.save(ctx, "cancel", cur, next, now)
		if err != nil {
			return err
		}

		n := notificationFor(notifications.KindEventCancelled, stored, cur, now)
		n.Message = stored.CancellationReason
		en.notify(ctx, n)
		out = stored
		return nil
	})
	return out, en.reject("cancel", err)
}

// Delete removes a non-terminal event. Deleting a missing event succeeds so
// retries are safe.
func (en *Engine) Delete(ctx context.Context, id string) (err error) {
	ctx, span := en.startSpan(ctx, "delete", id)
	defer func() { endSpan(span, err) }()

	err = en.withEvent(ctx, id, func(cur event.Event, now time.Time) error {
		if cur.Status.IsTerminal() {
			return event.NewTransitionError("delete", cur.Status)
		}

		if err := en.events.Delete(ctx, id); err != nil {
			return fmt.Errorf("delete event %s: %w", id, err)
		}

		en.prom.Transition("delete", string(cur.Status), "deleted")
		en.log.InfoContext(ctx, "event deleted", "event_id", id, "from", string(cur.Status))
		en.notify(ctx, notificationFor(notifications.KindEventDeleted, cur, cur, now))
		return nil
	})
	if errors.Is(err, event.ErrNotFound) {
		return nil
	}
	return en.reject("delete", err)
}
