package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/geocoder89/clubevents/internal/domain/event"
)

// SweepResult summarizes one AdvanceStatuses pass.
type SweepResult struct {
	Checked   int
	Completed []string
	// Conflicts are events that changed between read and write; the next pass retries them.
	Conflicts []string
}

var liveStatuses = []event.Status{event.StatusPublished, event.StatusPostponed}

// AdvanceStatuses completes every live event whose end instant is strictly
// before now. Each candidate is re-read under its lock before the write, so
// a cancellation that lands mid-sweep is never overwritten.
func (en *Engine) AdvanceStatuses(ctx context.Context, now time.Time) (res SweepResult, err error) {
	ctx, span := en.startSpan(ctx, "advance", "")
	defer func() { endSpan(span, err) }()

	start := time.Now()
	defer func() {
		en.prom.ObserveSweep(time.Since(start), len(res.Completed), len(res.Conflicts))
	}()

	candidates, err := en.events.List(ctx, event.ListFilter{Statuses: liveStatuses})
	if err != nil {
		return res, fmt.Errorf("list live events: %w", err)
	}

	var errs []error
	for _, c := range candidates {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		res.Checked++
		if !c.HasEnded(now, en.loc) {
			continue
		}

		done, err := en.completeByID(ctx, c.ID, now)
		switch {
		case err == nil:
			if done {
				res.Completed = append(res.Completed, c.ID)
			}
		case errors.Is(err, event.ErrConflict):
			res.Conflicts = append(res.Conflicts, c.ID)
			en.log.WarnContext(ctx, "sweep skipped event modified concurrently", "event_id", c.ID)
		case errors.Is(err, event.ErrNotFound):
			// deleted since the list
		default:
			errs = append(errs, err)
		}
	}

	if len(res.Completed) > 0 || len(res.Conflicts) > 0 {
		en.log.InfoContext(ctx, "sweep finished",
			"checked", res.Checked,
			"completed", len(res.Completed),
			"conflicts", len(res.Conflicts),
		)
	}
	return res, errors.Join(errs...)
}

// completeByID re-reads the event under its lock and completes it if it is
// still live and ended at now.
func (en *Engine) completeByID(ctx context.Context, id string, now time.Time) (bool, error) {
	unlock, err := en.locks.Lock(ctx, id)
	if err != nil {
		return false, err
	}
	defer unlock()

	cur, err := en.events.Get(ctx, id)
	if err != nil {
		return false, err
	}

	stored, err := en.completeLocked(ctx, cur, now)
	if err != nil {
		return false, err
	}
	return stored.Status != cur.Status, nil
}

// Get returns the event with its status advanced to now.
func (en *Engine) Get(ctx context.Context, id string) (event.Event, error) {
	e, err := en.events.Get(ctx, id)
	if err != nil {
		return event.Event{}, err
	}
	return en.advanceOnRead(ctx, e), nil
}

// List returns matching events with statuses advanced to now. Ended live
// events in the filter's scope are completed before the store pages the
// result, so a limit never yields a short page of stale rows.
func (en *Engine) List(ctx context.Context, filter event.ListFilter) ([]event.Event, error) {
	if affectsPage(filter) {
		if err := en.completeEnded(ctx, filter); err != nil {
			return nil, err
		}
	}

	items, err := en.events.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}

	out := make([]event.Event, 0, len(items))
	for _, e := range items {
		e = en.advanceOnRead(ctx, e)
		if filter.Matches(e) {
			out = append(out, e)
		}
	}
	return out, nil
}

// affectsPage reports whether completing events can change which rows the
// filter selects: it names no status, a live one, or completed.
func affectsPage(filter event.ListFilter) bool {
	if len(filter.Statuses) == 0 {
		return true
	}
	for _, s := range filter.Statuses {
		if s.IsLive() || s == event.StatusCompleted {
			return true
		}
	}
	return false
}

// completeEnded runs the end-time rule over every live event matching the
// filter's non-status fields, ignoring pagination. Conflicts and deletions
// are left to the sweep.
func (en *Engine) completeEnded(ctx context.Context, filter event.ListFilter) error {
	scope := filter
	scope.Statuses = liveStatuses
	scope.Limit = 0
	scope.Offset = 0

	candidates, err := en.events.List(ctx, scope)
	if err != nil {
		return fmt.Errorf("list live events: %w", err)
	}

	now := en.clock.Now()
	for _, c := range candidates {
		if !c.HasEnded(now, en.loc) {
			continue
		}
		_, err := en.completeByID(ctx, c.ID, now)
		switch {
		case err == nil, errors.Is(err, event.ErrConflict), errors.Is(err, event.ErrNotFound):
		default:
			return fmt.Errorf("complete event %s: %w", c.ID, err)
		}
	}
	return nil
}

// advanceOnRead completes an ended event. If the write loses a race the
// stored copy is re-read; on any other failure the computed status is shown
// and the sweep persists it later.
func (en *Engine) advanceOnRead(ctx context.Context, e event.Event) event.Event {
	now := en.clock.Now()
	if !e.Status.IsLive() || !e.HasEnded(now, en.loc) {
		return e
	}

	if _, err := en.completeByID(ctx, e.ID, now); err != nil {
		en.log.WarnContext(ctx, "advance on read failed", "event_id", e.ID, "err", err)
		e.Status = event.StatusCompleted
		return e
	}

	fresh, err := en.events.Get(ctx, e.ID)
	if err != nil {
		e.Status = event.StatusCompleted
		return e
	}
	return fresh
}
