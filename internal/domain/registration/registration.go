package registration

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentCompleted PaymentStatus = "completed"
	PaymentFailed    PaymentStatus = "failed"
)

func (s PaymentStatus) IsValid() bool {
	switch s {
	case PaymentPending, PaymentCompleted, PaymentFailed:
		return true
	default:
		return false
	}
}

type Participant struct {
	UserID string `json:"userId"`
	Name   string `json:"name"`
	Email  string `json:"email"`
}

type Registration struct {
	ID               string        `json:"id"`
	EventID          string        `json:"eventId"`
	Participant      Participant   `json:"participant"`
	RegistrationDate time.Time     `json:"registrationDate"`
	PaymentStatus    PaymentStatus `json:"paymentStatus"`
	PaymentAmount    float64       `json:"paymentAmount"`
	CreatedAt        time.Time     `json:"createdAt"`
	UpdatedAt        time.Time     `json:"updatedAt"`
}

// CountsTowardCapacity is false for failed payments.
func (r Registration) CountsTowardCapacity() bool {
	return r.PaymentStatus != PaymentFailed
}

func CountActive(regs []Registration) int {
	n := 0
	for _, r := range regs {
		if r.CountsTowardCapacity() {
			n++
		}
	}
	return n
}

// if you are already registered.
var ErrAlreadyRegistered = errors.New("registration already exists")

// error if event is full
var ErrEventFull = errors.New("event is full")
var ErrNotFound = errors.New("registration not found")

type CreateRegistrationRequest struct {
	EventID       string        `json:"-"`
	UserID        string        `json:"userId" binding:"required"`
	Name          string        `json:"name" binding:"required,min=2"`
	Email         string        `json:"email" binding:"required,email"`
	PaymentStatus PaymentStatus `json:"paymentStatus" binding:"omitempty,oneof=pending completed failed"`
	PaymentAmount float64       `json:"paymentAmount" binding:"gte=0"`
}

// A factory to build a Registration from the incoming DTO
func NewFromCreateRequest(req CreateRegistrationRequest, now time.Time) Registration {
	status := req.PaymentStatus
	if status == "" {
		status = PaymentPending
	}

	return Registration{
		ID:      uuid.NewString(),
		EventID: req.EventID,
		Participant: Participant{
			UserID: req.UserID,
			Name:   req.Name,
			Email:  req.Email,
		},
		RegistrationDate: now,
		PaymentStatus:    status,
		PaymentAmount:    req.PaymentAmount,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
}
