// Package lifecycle owns the event state machine: every status change, schedule
// change and registration passes through Engine.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/geocoder89/clubevents/internal/clock"
	"github.com/geocoder89/clubevents/internal/domain/event"
	"github.com/geocoder89/clubevents/internal/domain/registration"
	"github.com/geocoder89/clubevents/internal/notifications"
	"github.com/geocoder89/clubevents/internal/observability"
	"github.com/geocoder89/clubevents/internal/validation"
)

// EventStore persists events. Upsert is a compare-and-swap on Version:
// Version 0 inserts, any other value must match the stored row or
// event.ErrConflict is returned.
type EventStore interface {
	Get(ctx context.Context, id string) (event.Event, error)
	List(ctx context.Context, filter event.ListFilter) ([]event.Event, error)
	Upsert(ctx context.Context, e event.Event) (event.Event, error)
	Delete(ctx context.Context, id string) error
}

// RegistrationStore inserts registrations and keeps the event's
// currentParticipants in step with them, refusing inserts past capacity.
type RegistrationStore interface {
	ListByEvent(ctx context.Context, eventID string) ([]registration.Registration, error)
	Insert(ctx context.Context, r registration.Registration) (registration.Registration, error)
}

const defaultNotifyTimeout = 3 * time.Second

type Engine struct {
	events        EventStore
	regs          RegistrationStore
	clock         clock.Clock
	log           *slog.Logger
	notifier      notifications.Notifier
	sports        validation.SportCatalog
	prom          *observability.Prom
	loc           *time.Location
	notifyTimeout time.Duration
	locks         *keyedMutex
	tracer        trace.Tracer
}

type Option func(*Engine)

func WithLogger(log *slog.Logger) Option {
	return func(e *Engine) {
		if log != nil {
			e.log = log
		}
	}
}

func WithNotifier(n notifications.Notifier) Option {
	return func(e *Engine) { e.notifier = n }
}

func WithSportCatalog(c validation.SportCatalog) Option {
	return func(e *Engine) { e.sports = c }
}

func WithMetrics(p *observability.Prom) Option {
	return func(e *Engine) { e.prom = p }
}

// WithLocation sets the zone that event dates and times are interpreted in.
func WithLocation(loc *time.Location) Option {
	return func(e *Engine) {
		if loc != nil {
			e.loc = loc
		}
	}
}

func WithNotifyTimeout(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.notifyTimeout = d
		}
	}
}

func New(events EventStore, regs RegistrationStore, clk clock.Clock, opts ...Option) *Engine {
	if clk == nil {
		clk = clock.System{}
	}
	e := &Engine{
		events:        events,
		regs:          regs,
		clock:         clk,
		log:           observability.Discard(),
		loc:           time.UTC,
		notifyTimeout: defaultNotifyTimeout,
		locks:         newKeyedMutex(),
		tracer:        observability.Tracer(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Location is the zone event schedules are read in.
func (en *Engine) Location() *time.Location { return en.loc }

func (en *Engine) startSpan(ctx context.Context, op, eventID string) (context.Context, trace.Span) {
	attrs := []attribute.KeyValue{attribute.String("lifecycle.op", op)}
	if eventID != "" {
		attrs = append(attrs, attribute.String("event.id", eventID))
	}
	return en.tracer.Start(ctx, "lifecycle."+op, trace.WithAttributes(attrs...))
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// withEvent runs fn while holding the event's lock, on a freshly read copy.
// An event whose end has passed is completed first, so fn always sees the
// status the sweep would have produced.
func (en *Engine) withEvent(ctx context.Context, id string, fn func(cur event.Event, now time.Time) error) error {
	unlock, err := en.locks.Lock(ctx, id)
	if err != nil {
		return err
	}
	defer unlock()

	cur, err := en.events.Get(ctx, id)
	if err != nil {
		return err
	}

	now := en.clock.Now()
	if cur, err = en.completeLocked(ctx, cur, now); err != nil {
		return err
	}

	return fn(cur, now)
}

// save commits a mutated copy and records the transition.
func (en *Engine) save(ctx context.Context, op string, prev event.Event, next event.Event, now time.Time) (event.Event, error) {
	next.UpdatedAt = now
	stored, err := en.events.Upsert(ctx, next)
	if err != nil {
		return event.Event{}, fmt.Errorf("%s event %s: %w", op, next.ID, err)
	}
	if prev.Status != stored.Status {
		en.prom.Transition(op, string(prev.Status), string(stored.Status))
		en.log.InfoContext(ctx, "event transition",
			"event_id", stored.ID,
			"op", op,
			"from", string(prev.Status),
			"to", string(stored.Status),
		)
	}
	return stored, nil
}

// completeLocked moves a live event that has ended to completed. The caller
// holds the event lock; cur must be the current stored copy.
func (en *Engine) completeLocked(ctx context.Context, cur event.Event, now time.Time) (event.Event, error) {
	if !cur.Status.IsLive() || !cur.HasEnded(now, en.loc) {
		return cur, nil
	}

	next := cur.Clone()
	next.Status = event.StatusCompleted
	stored, err := en.save(ctx, "complete", cur, next, now)
	if err != nil {
		return event.Event{}, err
	}

	en.notify(ctx, notificationFor(notifications.KindEventCompleted, stored, cur, now))
	return stored, nil
}

// notify hands n to the notifier with its own deadline. The triggering
// operation has already committed, so failures are only logged.
func (en *Engine) notify(ctx context.Context, n notifications.Notification) {
	if en.notifier == nil {
		return
	}

	nctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), en.notifyTimeout)
	defer cancel()

	if err := en.notifier.Notify(nctx, n); err != nil {
		en.prom.NotifyFailed(string(n.Kind))
		en.log.WarnContext(ctx, "notification failed",
			"kind", string(n.Kind),
			"event_id", n.EventID,
			"err", err,
		)
	}
}

// reject records a refused operation by error kind and passes err through.
func (en *Engine) reject(op string, err error) error {
	if err == nil {
		return nil
	}
	kind := "error"
	switch {
	case errors.Is(err, validation.ErrValidation):
		kind = "validation"
	case errors.Is(err, event.ErrInvalidTransition):
		kind = "transition"
	case errors.Is(err, registration.ErrEventFull):
		kind = "capacity"
	case errors.Is(err, registration.ErrAlreadyRegistered):
		kind = "duplicate"
	case errors.Is(err, event.ErrConflict):
		kind = "conflict"
	case errors.Is(err, event.ErrNotFound):
		kind = "not_found"
	}
	en.prom.Rejection(op, kind)
	return err
}

func notificationFor(kind notifications.Kind, e event.Event, prev event.Event, now time.Time) notifications.Notification {
	n := notifications.Notification{
		Kind:       kind,
		EventID:    e.ID,
		Version:    e.Version,
		Title:      e.Title,
		Status:     string(e.Status),
		Date:       e.Date,
		Time:       e.Time,
		OccurredAt: now,
	}
	if prev.Status != "" && prev.Status != e.Status {
		n.PreviousStatus = string(prev.Status)
	}
	if prev.Date != e.Date || prev.Time != e.Time {
		n.PreviousDate = prev.Date
		n.PreviousTime = prev.Time
	}
	return n
}
