package memory

import (
	"context"
	"strings"
	"sync"

	"github.com/geocoder89/clubevents/internal/domain/registration"
)

type RegistrationsRepo struct {
	mu     sync.Mutex
	events *EventsRepo
	byEvt  map[string][]registration.Registration
}

func NewRegistrationsRepo(events *EventsRepo) *RegistrationsRepo {
	r := &RegistrationsRepo{
		events: events,
		byEvt:  make(map[string][]registration.Registration),
	}
	events.cascade(r.dropEvent)
	return r
}

func (r *RegistrationsRepo) dropEvent(eventID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.byEvt, eventID)
}

func (r *RegistrationsRepo) ListByEvent(ctx context.Context, eventID string) ([]registration.Registration, error) {
	if _, err := r.events.Get(ctx, eventID); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	regs := r.byEvt[eventID]
	out := make([]registration.Registration, len(regs))
	copy(out, regs)
	return out, nil
}

// Insert checks capacity against the stored event and reconciles its participant count
// while holding the registrations lock, so concurrent inserts cannot overshoot.
func (r *RegistrationsRepo) Insert(ctx context.Context, reg registration.Registration) (registration.Registration, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, err := r.events.Get(ctx, reg.EventID)
	if err != nil {
		return registration.Registration{}, err
	}

	existing := r.byEvt[reg.EventID]
	for _, x := range existing {
		if strings.EqualFold(x.Participant.Email, reg.Participant.Email) && x.CountsTowardCapacity() {
			return registration.Registration{}, registration.ErrAlreadyRegistered
		}
	}

	current := registration.CountActive(existing)
	if reg.CountsTowardCapacity() && current >= e.MaxParticipants {
		return registration.Registration{}, registration.ErrEventFull
	}

	r.byEvt[reg.EventID] = append(existing, reg)
	if reg.CountsTowardCapacity() {
		current++
	}

	if err := r.events.setParticipants(reg.EventID, current, reg.CreatedAt); err != nil {
		// roll back the append; the event vanished underneath us
		r.byEvt[reg.EventID] = existing
		return registration.Registration{}, err
	}

	return reg, nil
}
