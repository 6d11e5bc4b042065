package jobs

import (
	"time"

	"github.com/geocoder89/clubevents/internal/notifications"
)

// EventLifecyclePayload describes one event state transition.
// Keep payload self-contained: the event may be deleted before delivery.
type EventLifecyclePayload struct {
	Kind           notifications.Kind `json:"kind"`
	EventID        string             `json:"eventId"`
	Version        int                `json:"version,omitempty"`
	Title          string             `json:"title,omitempty"`
	Status         string             `json:"status,omitempty"`
	PreviousStatus string             `json:"previousStatus,omitempty"`
	Date           string             `json:"date,omitempty"`
	Time           string             `json:"time,omitempty"`
	PreviousDate   string             `json:"previousDate,omitempty"`
	PreviousTime   string             `json:"previousTime,omitempty"`
	Message        string             `json:"message,omitempty"`
	OccurredAt     time.Time          `json:"occurredAt"`
}

// RegistrationConfirmationPayload is used to send a confirmation email/message.
type RegistrationConfirmationPayload struct {
	RegistrationID string    `json:"registrationId"`
	EventID        string    `json:"eventId"`
	Title          string    `json:"title,omitempty"`
	Email          string    `json:"email"`
	Name           string    `json:"name"`
	OccurredAt     time.Time `json:"occurredAt"`
}

// PayloadFor converts a notification into its job type and typed payload.
func PayloadFor(n notifications.Notification) (JobType, any, error) {
	t, err := TypeFor(n.Kind)
	if err != nil {
		return "", nil, err
	}

	if t == JobRegistrationConfirmation {
		return t, RegistrationConfirmationPayload{
			RegistrationID: n.RegistrationID,
			EventID:        n.EventID,
			Title:          n.Title,
			Email:          n.Email,
			Name:           n.Name,
			OccurredAt:     n.OccurredAt,
		}, nil
	}

	return t, EventLifecyclePayload{
		Kind:           n.Kind,
		EventID:        n.EventID,
		Version:        n.Version,
		Title:          n.Title,
		Status:         n.Status,
		PreviousStatus: n.PreviousStatus,
		Date:           n.Date,
		Time:           n.Time,
		PreviousDate:   n.PreviousDate,
		PreviousTime:   n.PreviousTime,
		Message:        n.Message,
		OccurredAt:     n.OccurredAt,
	}, nil
}

// NotificationFrom rebuilds the notification a decoded payload was made from.
func NotificationFrom(payload any) (notifications.Notification, error) {
	switch p := payload.(type) {
	case EventLifecyclePayload:
		return notifications.Notification{
			Kind:           p.Kind,
			EventID:        p.EventID,
			Version:        p.Version,
			Title:          p.Title,
			Status:         p.Status,
			PreviousStatus: p.PreviousStatus,
			Date:           p.Date,
			Time:           p.Time,
			PreviousDate:   p.PreviousDate,
			PreviousTime:   p.PreviousTime,
			Message:        p.Message,
			OccurredAt:     p.OccurredAt,
		}, nil
	case RegistrationConfirmationPayload:
		return notifications.Notification{
			Kind:           notifications.KindRegistrationCreated,
			EventID:        p.EventID,
			Title:          p.Title,
			RegistrationID: p.RegistrationID,
			Email:          p.Email,
			Name:           p.Name,
			OccurredAt:     p.OccurredAt,
		}, nil
	default:
		return notifications.Notification{}, ErrPayloadTypeMismatch
	}
}
