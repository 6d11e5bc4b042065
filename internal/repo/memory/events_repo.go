package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/geocoder89/clubevents/internal/domain/event"
)

type EventsRepo struct {
	mu       sync.RWMutex
	items    map[string]event.Event // {"id": event}
	onDelete []func(id string)
}

func NewEventsRepo() *EventsRepo {
	return &EventsRepo{
		items: make(map[string]event.Event),
	}
}

func (r *EventsRepo) Get(_ context.Context, id string) (event.Event, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.items[id]
	if !ok {
		return event.Event{}, event.ErrNotFound
	}
	return e.Clone(), nil
}

func (r *EventsRepo) List(_ context.Context, filter event.ListFilter) ([]event.Event, error) {
	r.mu.RLock()
	out := make([]event.Event, 0, len(r.items))
	for _, e := range r.items {
		if filter.Matches(e) {
			out = append(out, e.Clone())
		}
	}
	r.mu.RUnlock()

	// stable ordering for pagination
	sort.Slice(out, func(i, j int) bool {
		if out[i].Date != out[j].Date {
			return out[i].Date < out[j].Date
		}
		if out[i].Time != out[j].Time {
			return out[i].Time < out[j].Time
		}
		return out[i].ID < out[j].ID
	})

	if filter.Offset > 0 {
		if filter.Offset >= len(out) {
			return []event.Event{}, nil
		}
		out = out[filter.Offset:]
	}
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

// Upsert is a compare-and-swap on Version: zero inserts, anything else must match the stored row.
func (r *EventsRepo) Upsert(_ context.Context, e event.Event) (event.Event, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	cur, exists := r.items[e.ID]

	switch {
	case e.Version == 0 && exists:
		return event.Event{}, event.ErrConflict
	case e.Version != 0 && !exists:
		return event.Event{}, event.ErrNotFound
	case exists && cur.Version != e.Version:
		return event.Event{}, event.ErrConflict
	}

	stored := e.Clone()
	stored.Version = e.Version + 1
	r.items[e.ID] = stored

	return stored.Clone(), nil
}

// Delete removes the event and then its dependents, like the SQL backends'
// ON DELETE CASCADE. Hooks run after the events lock is released because
// RegistrationsRepo takes its own lock before ours.
func (r *EventsRepo) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	if _, ok := r.items[id]; !ok {
		r.mu.Unlock()
		return event.ErrNotFound
	}
	delete(r.items, id)
	hooks := r.onDelete
	r.mu.Unlock()

	for _, fn := range hooks {
		fn(id)
	}
	return nil
}

func (r *EventsRepo) cascade(fn func(id string)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onDelete = append(r.onDelete, fn)
}

// setParticipants is used by RegistrationsRepo so the count moves together with the insert.
func (r *EventsRepo) setParticipants(id string, count int, now time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.items[id]
	if !ok {
		return event.ErrNotFound
	}
	e.CurrentParticipants = count
	e.Version++
	e.UpdatedAt = now
	r.items[id] = e
	return nil
}
