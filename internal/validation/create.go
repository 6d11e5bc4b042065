package validation

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/geocoder89/clubevents/internal/domain/event"
	"github.com/go-playground/validator/v10"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// ValidateCreate checks the field rules shared by create, publish and edit.
// Drafts only need well-formed values for what is present; everything else is required
// once the event leaves draft. The returned error is a catalog failure, not a rule violation.
func ValidateCreate(ctx context.Context, e event.Event, asDraft bool, sports SportCatalog) (Errors, error) {
	errs := Errors{}
	strict := !asDraft

	requireText(errs, strict, "title", e.Title)
	requireText(errs, strict, "description", e.Description)

	switch {
	case strings.TrimSpace(e.SportID) == "":
		if strict {
			errs.Add("sportId", "is required")
		}
	case sports != nil:
		ok, err := sports.Exists(ctx, e.SportID)
		if err != nil {
			return nil, fmt.Errorf("lookup sport %q: %w", e.SportID, err)
		}
		if !ok {
			errs.Add("sportId", "must reference a known sport")
		}
	}

	if e.Type != "" && !e.Type.IsValid() {
		errs.Add("type", "must be one of tournament, workshop, training, social")
	}

	checkFormat(errs, strict, "date", e.Date, "datetime="+event.DateLayout, "must be a date in YYYY-MM-DD format")
	checkFormat(errs, strict, "time", e.Time, "datetime="+event.TimeLayout, "must be a time in HH:MM format")

	switch {
	case e.DurationHours < 0:
		errs.Add("durationHours", "must be a positive number of hours")
	case e.DurationHours == 0 && strict:
		errs.Add("durationHours", "must be a positive number of hours")
	}

	if e.FeeAmount < 0 {
		errs.Add("feeAmount", "cannot be negative")
	}

	switch {
	case e.MaxParticipants < 0:
		errs.Add("maxParticipants", "must be at least 1")
	case e.MaxParticipants == 0 && strict:
		errs.Add("maxParticipants", "must be at least 1")
	}

	validateLocation(errs, strict, e.Location)

	validateReferenceIDs(errs, "facilityIds", e.FacilityIDs)
	validateReferenceIDs(errs, "amenityIds", e.AmenityIDs)

	if e.RegistrationDeadline != "" {
		if validate.Var(e.RegistrationDeadline, "datetime="+event.DateLayout) != nil {
			errs.Add("registrationDeadline", "must be a date in YYYY-MM-DD format")
		} else if e.Date != "" && validate.Var(e.Date, "datetime="+event.DateLayout) == nil && e.RegistrationDeadline >= e.Date {
			errs.Add("registrationDeadline", "must be before the event date")
		}
	}

	return errs, nil
}

// ValidateStartsInFuture enforces that an event leaving draft is not already in the past.
func ValidateStartsInFuture(e event.Event, now time.Time, loc *time.Location) Errors {
	errs := Errors{}
	start, err := e.StartAt(loc)
	if err != nil {
		// missing or malformed schedule is reported by ValidateCreate
		return errs
	}
	if start.Before(now) {
		errs.Add("date", "event must start in the future")
	}
	return errs
}

func validateLocation(errs Errors, strict bool, loc event.Location) {
	if loc.HasClub() && loc.HasCustom() {
		errs.Add("location", "choose either a club or a custom location, not both")
		return
	}
	if loc.IsEmpty() {
		if strict {
			errs.Add("location", "is required")
		}
		return
	}
	if !loc.HasCustom() {
		return
	}

	c := loc.Custom
	requireText(errs, strict, "address", c.Address)
	requireText(errs, strict, "city", c.City)

	// zero coordinates mean nothing was picked on the map
	if c.Latitude == 0 || c.Longitude == 0 {
		if strict {
			errs.Add("location", "select a location on the map")
		}
		return
	}
	if validate.Var(c.Latitude, "latitude") != nil {
		errs.Add("latitude", "must be between -90 and 90")
	}
	if validate.Var(c.Longitude, "longitude") != nil {
		errs.Add("longitude", "must be between -180 and 180")
	}
}

func validateReferenceIDs(errs Errors, field string, ids []string) {
	for i, id := range ids {
		if strings.TrimSpace(id) == "" {
			errs.Add(field, fmt.Sprintf("entry %d must not be empty", i))
			return
		}
		if validate.Var(id, "uuid") != nil {
			errs.Add(field, fmt.Sprintf("entry %d must be a valid id", i))
			return
		}
	}
}

func requireText(errs Errors, strict bool, field, value string) {
	if strict && strings.TrimSpace(value) == "" {
		errs.Add(field, "is required")
	}
}

func checkFormat(errs Errors, strict bool, field, value, tag, message string) {
	if value == "" {
		if strict {
			errs.Add(field, "is required")
		}
		return
	}
	if validate.Var(value, tag) != nil {
		errs.Add(field, message)
	}
}
