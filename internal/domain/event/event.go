package event

import (
	"errors"
	"fmt"
	"time"
)

const (
	DateLayout = "2006-01-02"
	TimeLayout = "15:04"
)

type Status string

const (
	StatusDraft     Status = "draft"
	StatusPublished Status = "published"
	StatusPostponed Status = "postponed"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

func (s Status) IsValid() bool {
	switch s {
	case StatusDraft, StatusPublished, StatusPostponed, StatusCompleted, StatusCancelled:
		return true
	default:
		return false
	}
}

// IsTerminal reports whether no further transition is possible.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// IsLive reports whether the event is visible and joinable (published or postponed).
func (s Status) IsLive() bool {
	return s == StatusPublished || s == StatusPostponed
}

type Type string

const (
	TypeTournament Type = "tournament"
	TypeWorkshop   Type = "workshop"
	TypeTraining   Type = "training"
	TypeSocial     Type = "social"
)

func (t Type) IsValid() bool {
	switch t {
	case TypeTournament, TypeWorkshop, TypeTraining, TypeSocial:
		return true
	default:
		return false
	}
}

type CustomLocation struct {
	Address   string  `json:"address"`
	City      string  `json:"city"`
	State     string  `json:"state,omitempty"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Location is either a club reference or a custom address, never both.
type Location struct {
	ClubID string          `json:"clubId,omitempty"`
	Custom *CustomLocation `json:"customLocation,omitempty"`
}

func (l Location) HasClub() bool   { return l.ClubID != "" }
func (l Location) HasCustom() bool { return l.Custom != nil }

func (l Location) IsEmpty() bool { return !l.HasClub() && !l.HasCustom() }

type Requirements struct {
	Required    bool   `json:"required"`
	Description string `json:"description,omitempty"`
}

type Prizes struct {
	First  string `json:"first,omitempty"`
	Second string `json:"second,omitempty"`
	Third  string `json:"third,omitempty"`
}

type Announcement struct {
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"createdAt"`
}

type Event struct {
	ID                   string        `json:"id"`
	Title                string        `json:"title"`
	Description          string        `json:"description,omitempty"`
	SportID              string        `json:"sportId,omitempty"`
	Type                 Type          `json:"type,omitempty"`
	Date                 string        `json:"date,omitempty"`
	Time                 string        `json:"time,omitempty"`
	DurationHours        int           `json:"durationHours"`
	FeeAmount            float64       `json:"feeAmount"`
	MaxParticipants      int           `json:"maxParticipants"`
	CurrentParticipants  int           `json:"currentParticipants"`
	Location             Location      `json:"location"`
	FacilityIDs          []string      `json:"facilityIds,omitempty"`
	AmenityIDs           []string      `json:"amenityIds,omitempty"`
	Requirements         *Requirements `json:"requirements,omitempty"`
	Prizes               *Prizes       `json:"prizes,omitempty"`
	Announcement         *Announcement `json:"announcement,omitempty"`
	RegistrationDeadline string        `json:"registrationDeadline,omitempty"`
	CancellationReason   string        `json:"cancellationReason,omitempty"`
	Status               Status        `json:"status"`
	Version              int           `json:"version"`
	CreatedAt            time.Time     `json:"createdAt"`
	UpdatedAt            time.Time     `json:"updatedAt"`
}

var errNoSchedule = errors.New("event has no schedule")

// StartAt combines Date and Time in loc.
func (e Event) StartAt(loc *time.Location) (time.Time, error) {
	if e.Date == "" || e.Time == "" {
		return time.Time{}, errNoSchedule
	}
	return CombineDateTime(e.Date, e.Time, loc)
}

// EndAt is StartAt plus DurationHours.
func (e Event) EndAt(loc *time.Location) (time.Time, error) {
	start, err := e.StartAt(loc)
	if err != nil {
		return time.Time{}, err
	}
	return start.Add(time.Duration(e.DurationHours) * time.Hour), nil
}

// HasEnded uses a strict comparison: an event exactly at its end instant is still ongoing.
// Events without a parseable schedule never end.
func (e Event) HasEnded(now time.Time, loc *time.Location) bool {
	end, err := e.EndAt(loc)
	if err != nil {
		return false
	}
	return now.After(end)
}

// Clone returns a copy that shares no mutable state with e.
func (e Event) Clone() Event {
	out := e
	if e.Location.Custom != nil {
		c := *e.Location.Custom
		out.Location.Custom = &c
	}
	if e.FacilityIDs != nil {
		out.FacilityIDs = append([]string(nil), e.FacilityIDs...)
	}
	if e.AmenityIDs != nil {
		out.AmenityIDs = append([]string(nil), e.AmenityIDs...)
	}
	if e.Requirements != nil {
		r := *e.Requirements
		out.Requirements = &r
	}
	if e.Prizes != nil {
		p := *e.Prizes
		out.Prizes = &p
	}
	if e.Announcement != nil {
		a := *e.Announcement
		out.Announcement = &a
	}
	return out
}

func ParseDate(s string, loc *time.Location) (time.Time, error) {
	return time.ParseInLocation(DateLayout, s, loc)
}

func CombineDateTime(date, clock string, loc *time.Location) (time.Time, error) {
	t, err := time.ParseInLocation(DateLayout+" "+TimeLayout, date+" "+clock, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse schedule %q %q: %w", date, clock, err)
	}
	return t, nil
}

// with pointers if optional, it will be nil
type ListFilter struct {
	Statuses []Status
	ClubID   *string
	SportID  *string
	Type     *Type
	From     *string // inclusive calendar date
	To       *string // inclusive calendar date
	Limit    int
	Offset   int
}

// Matches applies every filter except pagination.
func (f ListFilter) Matches(e Event) bool {
	if len(f.Statuses) > 0 {
		ok := false
		for _, s := range f.Statuses {
			if e.Status == s {
				ok = true
				break
			}
		}
		if !ok {
			return false
		}
	}
	if f.ClubID != nil && e.Location.ClubID != *f.ClubID {
		return false
	}
	if f.SportID != nil && e.SportID != *f.SportID {
		return false
	}
	if f.Type != nil && e.Type != *f.Type {
		return false
	}
	// ISO dates compare correctly as strings
	if f.From != nil && (e.Date == "" || e.Date < *f.From) {
		return false
	}
	if f.To != nil && (e.Date == "" || e.Date > *f.To) {
		return false
	}
	return true
}
