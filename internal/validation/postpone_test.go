package validation_test

import (
	"testing"
	"time"

	"github.com/geocoder89/clubevents/internal/domain/event"
	"github.com/geocoder89/clubevents/internal/validation"
)

func TestValidatePostpone(t *testing.T) {
	now := time.Date(2024, 7, 10, 15, 30, 0, 0, time.UTC)

	tests := []struct {
		name       string
		patch      event.PostponePatch
		wantFields []string
	}{
		{
			name:  "valid_future_date_only",
			patch: event.PostponePatch{EventDate: "2024-07-18", EventTime: "10:00"},
		},
		{
			name:  "today_is_not_past",
			patch: event.PostponePatch{EventDate: "2024-07-10", EventTime: "09:00"},
		},
		{
			name:       "past_date",
			patch:      event.PostponePatch{EventDate: "2024-07-09", EventTime: "10:00"},
			wantFields: []string{"eventDate"},
		},
		{
			name:       "missing_date_and_time",
			patch:      event.PostponePatch{},
			wantFields: []string{"eventDate", "eventTime"},
		},
		{
			name:       "malformed_time",
			patch:      event.PostponePatch{EventDate: "2024-07-18", EventTime: "25:99"},
			wantFields: []string{"eventTime"},
		},
		{
			name:       "deadline_on_event_date",
			patch:      event.PostponePatch{EventDate: "2024-07-18", EventTime: "10:00", RegistrationDeadline: "2024-07-18"},
			wantFields: []string{"registrationDeadline"},
		},
		{
			name:  "deadline_before_event_date",
			patch: event.PostponePatch{EventDate: "2024-07-18", EventTime: "10:00", RegistrationDeadline: "2024-07-17"},
		},
		{
			name:       "end_date_before_event_date",
			patch:      event.PostponePatch{EventDate: "2024-07-18", EventTime: "10:00", EndDate: "2024-07-17", EndTime: "12:00"},
			wantFields: []string{"endDate"},
		},
		{
			name:       "same_day_end_time_earlier",
			patch:      event.PostponePatch{EventDate: "2024-07-18", EventTime: "10:00", EndDate: "2024-07-18", EndTime: "09:00"},
			wantFields: []string{"endTime"},
		},
		{
			name:       "same_day_end_time_equal",
			patch:      event.PostponePatch{EventDate: "2024-07-18", EventTime: "10:00", EndDate: "2024-07-18", EndTime: "10:00"},
			wantFields: []string{"endTime"},
		},
		{
			name:  "next_day_end_time_earlier_is_fine",
			patch: event.PostponePatch{EventDate: "2024-07-18", EventTime: "10:00", EndDate: "2024-07-19", EndTime: "09:00"},
		},
		{
			name:       "end_date_without_end_time",
			patch:      event.PostponePatch{EventDate: "2024-07-18", EventTime: "10:00", EndDate: "2024-07-19"},
			wantFields: []string{"endTime"},
		},
		{
			name:       "end_time_without_end_date",
			patch:      event.PostponePatch{EventDate: "2024-07-18", EventTime: "10:00", EndTime: "12:00"},
			wantFields: []string{"endDate"},
		},
		{
			name: "all_violations_reported_together",
			patch: event.PostponePatch{
				EventDate:            "2024-07-01",
				EventTime:            "10:00",
				EndTime:              "12:00",
				RegistrationDeadline: "2024-07-05",
			},
			wantFields: []string{"eventDate", "endDate", "registrationDeadline"},
		},
	}

	for _, tt := range tests {
		tt := tt

		t.Run(tt.name, func(t *testing.T) {
			errs := validation.ValidatePostpone(tt.patch, now, time.UTC)

			if len(errs) != len(tt.wantFields) {
				t.Fatalf("got %d errors %v, want fields %v", len(errs), errs, tt.wantFields)
			}
			for _, f := range tt.wantFields {
				if _, ok := errs[f]; !ok {
					t.Fatalf("missing error for %q in %v", f, errs)
				}
			}
		})
	}
}

func TestValidatePostpone_PastDateAlwaysRejected(t *testing.T) {
	now := time.Date(2024, 7, 10, 8, 0, 0, 0, time.UTC)

	ends := []struct{ date, time string }{
		{"", ""},
		{"2024-07-09", "12:00"},
		{"2024-07-20", "12:00"},
		{"2024-07-20", ""},
		{"", "11:00"},
	}
	deadlines := []string{"", "2024-07-01", "2024-07-30"}

	for _, end := range ends {
		for _, dl := range deadlines {
			p := event.PostponePatch{
				EventDate:            "2024-07-09",
				EventTime:            "23:59",
				EndDate:              end.date,
				EndTime:              end.time,
				RegistrationDeadline: dl,
			}
			errs := validation.ValidatePostpone(p, now, time.UTC)
			if _, ok := errs["eventDate"]; !ok {
				t.Fatalf("expected eventDate error for %+v, got %v", p, errs)
			}
		}
	}
}
