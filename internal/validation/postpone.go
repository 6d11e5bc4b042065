package validation

import (
	"time"

	"github.com/geocoder89/clubevents/internal/domain/event"
)

// ValidatePostpone checks every rule independently and reports all violations together.
// Only calendar dates are compared against today; time-of-day against now is left to the caller.
func ValidatePostpone(p event.PostponePatch, now time.Time, loc *time.Location) Errors {
	errs := Errors{}
	today := truncateToDate(now, loc)

	eventDate, dateOK := parseDateField(errs, "eventDate", p.EventDate, true, loc)
	_, timeOK := parseTimeField(errs, "eventTime", p.EventTime, true)

	if dateOK && eventDate.Before(today) {
		errs.Add("eventDate", "cannot be in the past")
	}

	if p.RegistrationDeadline != "" {
		deadline, ok := parseDateField(errs, "registrationDeadline", p.RegistrationDeadline, false, loc)
		if ok && dateOK && !deadline.Before(eventDate) {
			errs.Add("registrationDeadline", "must be before the event date")
		}
	}

	if p.EndDate != "" {
		endDate, ok := parseDateField(errs, "endDate", p.EndDate, false, loc)

		if p.EndTime == "" {
			errs.Add("endTime", "is required when endDate is set")
		}

		if ok && dateOK {
			switch {
			case endDate.Before(eventDate):
				errs.Add("endDate", "cannot be before the event date")
			case endDate.Equal(eventDate) && p.EndTime != "" && timeOK:
				start, err1 := event.CombineDateTime(p.EventDate, p.EventTime, loc)
				end, err2 := event.CombineDateTime(p.EndDate, p.EndTime, loc)
				if err2 != nil {
					errs.Add("endTime", "must be a time in HH:MM format")
				} else if err1 == nil && !end.After(start) {
					errs.Add("endTime", "must be after the event time")
				}
			}
		}
	} else if p.EndTime != "" {
		errs.Add("endDate", "is required when endTime is set")
	}

	if p.EndTime != "" {
		parseTimeField(errs, "endTime", p.EndTime, false)
	}

	return errs
}

func truncateToDate(t time.Time, loc *time.Location) time.Time {
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}

func parseDateField(errs Errors, field, value string, required bool, loc *time.Location) (time.Time, bool) {
	if value == "" {
		if required {
			errs.Add(field, "is required")
		}
		return time.Time{}, false
	}
	d, err := event.ParseDate(value, loc)
	if err != nil {
		errs.Add(field, "must be a date in YYYY-MM-DD format")
		return time.Time{}, false
	}
	return d, true
}

func parseTimeField(errs Errors, field, value string, required bool) (time.Time, bool) {
	if value == "" {
		if required {
			errs.Add(field, "is required")
		}
		return time.Time{}, false
	}
	t, err := time.Parse(event.TimeLayout, value)
	if err != nil {
		errs.Add(field, "must be a time in HH:MM format")
		return time.Time{}, false
	}
	return t, true
}
