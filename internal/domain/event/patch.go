package event

// CreatePatch is the full set of fields accepted by create.
// Business rules live in the validation package; binding tags only cap sizes.
type CreatePatch struct {
	Title                string        `json:"title" binding:"max=120"`
	Description          string        `json:"description" binding:"max=2000"`
	SportID              string        `json:"sportId" binding:"max=64"`
	Type                 Type          `json:"type"`
	Date                 string        `json:"date"`
	Time                 string        `json:"time"`
	DurationHours        int           `json:"durationHours"`
	FeeAmount            float64       `json:"feeAmount"`
	MaxParticipants      int           `json:"maxParticipants" binding:"max=50000"`
	Location             Location      `json:"location"`
	FacilityIDs          []string      `json:"facilityIds"`
	AmenityIDs           []string      `json:"amenityIds"`
	Requirements         *Requirements `json:"requirements"`
	Prizes               *Prizes       `json:"prizes"`
	RegistrationDeadline string        `json:"registrationDeadline"`
	AsDraft              bool          `json:"asDraft"`
}

// EditPatch only carries the fields being changed; nil means untouched.
// CurrentParticipants is deliberately absent.
type EditPatch struct {
	Title                *string       `json:"title" binding:"omitempty,max=120"`
	Description          *string       `json:"description" binding:"omitempty,max=2000"`
	SportID              *string       `json:"sportId" binding:"omitempty,max=64"`
	Type                 *Type         `json:"type"`
	Date                 *string       `json:"date"`
	Time                 *string       `json:"time"`
	DurationHours        *int          `json:"durationHours"`
	FeeAmount            *float64      `json:"feeAmount"`
	MaxParticipants      *int          `json:"maxParticipants" binding:"omitempty,max=50000"`
	Location             *Location     `json:"location"`
	FacilityIDs          *[]string     `json:"facilityIds"`
	AmenityIDs           *[]string     `json:"amenityIds"`
	Requirements         *Requirements `json:"requirements"`
	Prizes               *Prizes       `json:"prizes"`
	RegistrationDeadline *string       `json:"registrationDeadline"`
}

// Touched lists the JSON names of the fields the patch sets.
func (p EditPatch) Touched() []string {
	var out []string
	add := func(set bool, name string) {
		if set {
			out = append(out, name)
		}
	}
	add(p.Title != nil, "title")
	add(p.Description != nil, "description")
	add(p.SportID != nil, "sportId")
	add(p.Type != nil, "type")
	add(p.Date != nil, "date")
	add(p.Time != nil, "time")
	add(p.DurationHours != nil, "durationHours")
	add(p.FeeAmount != nil, "feeAmount")
	add(p.MaxParticipants != nil, "maxParticipants")
	add(p.Location != nil, "location")
	add(p.FacilityIDs != nil, "facilityIds")
	add(p.AmenityIDs != nil, "amenityIds")
	add(p.Requirements != nil, "requirements")
	add(p.Prizes != nil, "prizes")
	add(p.RegistrationDeadline != nil, "registrationDeadline")
	return out
}

func (p EditPatch) IsEmpty() bool { return len(p.Touched()) == 0 }

// Apply writes the touched fields onto e.
func (p EditPatch) Apply(e *Event) {
	if p.Title != nil {
		e.Title = *p.Title
	}
	if p.Description != nil {
		e.Description = *p.Description
	}
	if p.SportID != nil {
		e.SportID = *p.SportID
	}
	if p.Type != nil {
		e.Type = *p.Type
	}
	if p.Date != nil {
		e.Date = *p.Date
	}
	if p.Time != nil {
		e.Time = *p.Time
	}
	if p.DurationHours != nil {
		e.DurationHours = *p.DurationHours
	}
	if p.FeeAmount != nil {
		e.FeeAmount = *p.FeeAmount
	}
	if p.MaxParticipants != nil {
		e.MaxParticipants = *p.MaxParticipants
	}
	if p.Location != nil {
		loc := *p.Location
		if loc.Custom != nil {
			c := *loc.Custom
			loc.Custom = &c
		}
		e.Location = loc
	}
	if p.FacilityIDs != nil {
		e.FacilityIDs = append([]string(nil), (*p.FacilityIDs)...)
	}
	if p.AmenityIDs != nil {
		e.AmenityIDs = append([]string(nil), (*p.AmenityIDs)...)
	}
	if p.Requirements != nil {
		r := *p.Requirements
		e.Requirements = &r
	}
	if p.Prizes != nil {
		pr := *p.Prizes
		e.Prizes = &pr
	}
	if p.RegistrationDeadline != nil {
		e.RegistrationDeadline = *p.RegistrationDeadline
	}
}

// PostponePatch reschedules a published event. Empty optional fields are absent.
type PostponePatch struct {
	EventDate            string `json:"eventDate"`
	EventTime            string `json:"eventTime"`
	EndDate              string `json:"endDate"`
	EndTime              string `json:"endTime"`
	RegistrationDeadline string `json:"registrationDeadline"`
}

type AnnouncePatch struct {
	Message string `json:"message" binding:"required,min=1,max=1000"`
}

type CancelPatch struct {
	Reason string `json:"reason" binding:"omitempty,max=500"`
}
