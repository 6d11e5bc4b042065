package notifications

import (
	"context"
	"time"
)

type Kind string

const (
	KindEventCreated        Kind = "event.created"
	KindEventPublished      Kind = "event.published"
	KindEventUpdated        Kind = "event.updated"
	KindEventPostponed      Kind = "event.postponed"
	KindEventAnnounced      Kind = "event.announced"
	KindEventCancelled      Kind = "event.cancelled"
	KindEventCompleted      Kind = "event.completed"
	KindEventDeleted        Kind = "event.deleted"
	KindRegistrationCreated Kind = "registration.created"
)

func (k Kind) IsValid() bool {
	switch k {
	case KindEventCreated, KindEventPublished, KindEventUpdated, KindEventPostponed,
		KindEventAnnounced, KindEventCancelled, KindEventCompleted, KindEventDeleted,
		KindRegistrationCreated:
		return true
	default:
		return false
	}
}

// IsRegistration separates participant-facing confirmations from event lifecycle fan-out.
func (k Kind) IsRegistration() bool {
	return k == KindRegistrationCreated
}

// Notification is the payload handed to a Notifier on every state transition.
type Notification struct {
	Kind    Kind   `json:"kind"`
	EventID string `json:"eventId"`
	// Version is the stored event version the notification describes.
	Version        int       `json:"version,omitempty"`
	Title          string    `json:"title,omitempty"`
	Status         string    `json:"status,omitempty"`
	PreviousStatus string    `json:"previousStatus,omitempty"`
	Date           string    `json:"date,omitempty"`
	Time           string    `json:"time,omitempty"`
	PreviousDate   string    `json:"previousDate,omitempty"`
	PreviousTime   string    `json:"previousTime,omitempty"`
	Message        string    `json:"message,omitempty"`
	RegistrationID string    `json:"registrationId,omitempty"`
	Email          string    `json:"email,omitempty"`
	Name           string    `json:"name,omitempty"`
	OccurredAt     time.Time `json:"occurredAt"`
}

type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}
