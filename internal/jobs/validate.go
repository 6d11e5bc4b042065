package jobs

import "strings"

// ValidatePayload performs minimal validation on decoded payloads.
func ValidatePayload(t JobType, payload any) error {
	if !t.IsValid() {
		return ErrInvalidJobType
	}

	trim := func(s string) string { return strings.TrimSpace(s) }

	switch t {
	case JobEventLifecycle:
		var p EventLifecyclePayload
		switch v := payload.(type) {
		case EventLifecyclePayload:
			p = v
		case *EventLifecyclePayload:
			p = *v
		default:
			return ErrPayloadTypeMismatch
		}
		if trim(p.EventID) == "" || !p.Kind.IsValid() || p.Kind.IsRegistration() {
			return ErrInvalidJobPayload
		}
		return nil

	case JobRegistrationConfirmation:
		var p RegistrationConfirmationPayload
		switch v := payload.(type) {
		case RegistrationConfirmationPayload:
			p = v
		case *RegistrationConfirmationPayload:
			p = *v
		default:
			return ErrPayloadTypeMismatch
		}
		if trim(p.RegistrationID) == "" || trim(p.EventID) == "" || trim(p.Email) == "" {
			return ErrInvalidJobPayload
		}
		return nil

	default:
		return ErrInvalidJobType
	}
}
