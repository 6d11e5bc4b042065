package validation_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/geocoder89/clubevents/internal/domain/event"
	"github.com/geocoder89/clubevents/internal/validation"
)

func validEvent() event.Event {
	return event.Event{
		Title:           "Summer Cup",
		Description:     "Annual padel tournament",
		SportID:         "padel",
		Type:            event.TypeTournament,
		Date:            "2024-07-15",
		Time:            "10:00",
		DurationHours:   2,
		FeeAmount:       15,
		MaxParticipants: 16,
		Location:        event.Location{ClubID: "club_1"},
	}
}

type failingCatalog struct{}

func (failingCatalog) Exists(context.Context, string) (bool, error) {
	return false, errors.New("db down")
}

func TestValidateCreate(t *testing.T) {
	sports := validation.NewStaticCatalog("padel", "tennis")

	tests := []struct {
		name       string
		mutate     func(e *event.Event)
		asDraft    bool
		wantFields []string
	}{
		{name: "valid_club_event"},
		{
			name: "valid_custom_location",
			mutate: func(e *event.Event) {
				e.Location = event.Location{Custom: &event.CustomLocation{
					Address: "1 Court Rd", City: "Lisbon", State: "LX", Latitude: 38.72, Longitude: -9.14,
				}}
			},
		},
		{
			name: "missing_required_fields",
			mutate: func(e *event.Event) {
				*e = event.Event{}
			},
			wantFields: []string{"title", "description", "sportId", "date", "time", "durationHours", "maxParticipants", "location"},
		},
		{
			name: "draft_with_only_title",
			mutate: func(e *event.Event) {
				*e = event.Event{Title: "Summer Cup"}
			},
			asDraft: true,
		},
		{
			name: "draft_still_rejects_negative_values",
			mutate: func(e *event.Event) {
				*e = event.Event{Title: "Summer Cup", FeeAmount: -1, DurationHours: -2}
			},
			asDraft:    true,
			wantFields: []string{"feeAmount", "durationHours"},
		},
		{
			name: "both_locations",
			mutate: func(e *event.Event) {
				e.Location.Custom = &event.CustomLocation{Address: "x", City: "y", Latitude: 1, Longitude: 1}
			},
			wantFields: []string{"location"},
		},
		{
			name: "both_locations_in_draft",
			mutate: func(e *event.Event) {
				e.Location.Custom = &event.CustomLocation{Address: "x", City: "y", Latitude: 1, Longitude: 1}
			},
			asDraft:    true,
			wantFields: []string{"location"},
		},
		{
			name: "custom_location_without_map_pick",
			mutate: func(e *event.Event) {
				e.Location = event.Location{Custom: &event.CustomLocation{City: "Lisbon"}}
			},
			wantFields: []string{"address", "location"},
		},
		{
			name: "coordinates_out_of_range",
			mutate: func(e *event.Event) {
				e.Location = event.Location{Custom: &event.CustomLocation{
					Address: "1 Court Rd", City: "Lisbon", Latitude: 120, Longitude: 200,
				}}
			},
			wantFields: []string{"latitude", "longitude"},
		},
		{
			name: "unknown_sport",
			mutate: func(e *event.Event) {
				e.SportID = "quidditch"
			},
			wantFields: []string{"sportId"},
		},
		{
			name: "bad_formats",
			mutate: func(e *event.Event) {
				e.Date = "15/07/2024"
				e.Time = "10am"
				e.Type = "party"
			},
			wantFields: []string{"date", "time", "type"},
		},
		{
			name: "reference_ids_must_be_uuids",
			mutate: func(e *event.Event) {
				e.FacilityIDs = []string{"7d0e9a5c-2a44-4f4e-9c8e-3f0b3d1c9a10", ""}
				e.AmenityIDs = []string{"wifi"}
			},
			wantFields: []string{"facilityIds", "amenityIds"},
		},
		{
			name: "deadline_after_event",
			mutate: func(e *event.Event) {
				e.RegistrationDeadline = "2024-07-16"
			},
			wantFields: []string{"registrationDeadline"},
		},
	}

	for _, tt := range tests {
		tt := tt

		t.Run(tt.name, func(t *testing.T) {
			e := validEvent()
			if tt.mutate != nil {
				tt.mutate(&e)
			}

			errs, err := validation.ValidateCreate(context.Background(), e, tt.asDraft, sports)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			if len(errs) != len(tt.wantFields) {
				t.Fatalf("got errors %v, want fields %v", errs, tt.wantFields)
			}
			for _, f := range tt.wantFields {
				if _, ok := errs[f]; !ok {
					t.Fatalf("missing error for %q in %v", f, errs)
				}
			}
		})
	}
}

func TestValidateCreate_CatalogFailureIsNotAFieldError(t *testing.T) {
	_, err := validation.ValidateCreate(context.Background(), validEvent(), false, failingCatalog{})
	if err == nil {
		t.Fatalf("expected catalog error")
	}
	if errors.Is(err, validation.ErrValidation) {
		t.Fatalf("catalog failure must not look like a validation error")
	}
}

func TestValidateStartsInFuture(t *testing.T) {
	e := validEvent()

	if errs := validation.ValidateStartsInFuture(e, time.Date(2024, 7, 15, 10, 0, 0, 0, time.UTC), time.UTC); len(errs) != 0 {
		t.Fatalf("start == now should pass, got %v", errs)
	}
	if errs := validation.ValidateStartsInFuture(e, time.Date(2024, 7, 15, 10, 1, 0, 0, time.UTC), time.UTC); len(errs) != 1 {
		t.Fatalf("start in the past should fail, got %v", errs)
	}
}

func TestErrors_ErrAndFields(t *testing.T) {
	errs := validation.Errors{}
	if errs.Err() != nil {
		t.Fatalf("empty errors should be nil")
	}

	errs.Add("title", "is required")
	errs.Add("title", "second message is ignored")

	err := errs.Err()
	if !errors.Is(err, validation.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}

	fields, ok := validation.FieldsOf(err)
	if !ok || fields["title"] != "is required" {
		t.Fatalf("unexpected fields %v", fields)
	}
}
