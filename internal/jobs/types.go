package jobs

import "github.com/geocoder89/clubevents/internal/notifications"

type JobType string

const (
	// fan-out of an event state transition to subscribers
	JobEventLifecycle JobType = "event_lifecycle"
	// participant-facing confirmation of a new registration
	JobRegistrationConfirmation JobType = "registration_confirmation"
)

// check to see if the job type is a known constant
func (t JobType) IsValid() bool {
	switch t {
	case JobEventLifecycle, JobRegistrationConfirmation:
		return true
	default:
		return false
	}
}

// TypeFor picks the job type that delivers a notification kind.
func TypeFor(k notifications.Kind) (JobType, error) {
	if !k.IsValid() {
		return "", ErrInvalidJobType
	}
	if k.IsRegistration() {
		return JobRegistrationConfirmation, nil
	}
	return JobEventLifecycle, nil
}
