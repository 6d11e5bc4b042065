package event

import (
	"time"

	"github.com/google/uuid"
)

// NewFromCreatePatch builds a fresh event; currentParticipants always starts at zero.
func NewFromCreatePatch(p CreatePatch, now time.Time) Event {
	status := StatusPublished
	if p.AsDraft {
		status = StatusDraft
	}

	e := Event{
		ID:                   uuid.NewString(),
		Title:                p.Title,
		Description:          p.Description,
		SportID:              p.SportID,
		Type:                 p.Type,
		Date:                 p.Date,
		Time:                 p.Time,
		DurationHours:        p.DurationHours,
		FeeAmount:            p.FeeAmount,
		MaxParticipants:      p.MaxParticipants,
		CurrentParticipants:  0,
		Location:             p.Location,
		RegistrationDeadline: p.RegistrationDeadline,
		Status:               status,
		CreatedAt:            now,
		UpdatedAt:            now,
	}
	if p.FacilityIDs != nil {
		e.FacilityIDs = append([]string(nil), p.FacilityIDs...)
	}
	if p.AmenityIDs != nil {
		e.AmenityIDs = append([]string(nil), p.AmenityIDs...)
	}
	if p.Requirements != nil {
		r := *p.Requirements
		e.Requirements = &r
	}
	if p.Prizes != nil {
		pr := *p.Prizes
		e.Prizes = &pr
	}

	return e.Clone()
}
