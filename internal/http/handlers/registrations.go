package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/geocoder89/clubevents/internal/domain/registration"
	"github.com/gin-gonic/gin"
)

type RegistrationService interface {
	RegisterParticipant(ctx context.Context, req registration.CreateRegistrationRequest) (registration.Registration, error)
	ListRegistrations(ctx context.Context, eventID string) ([]registration.Registration, error)
}

type RegistrationHandler struct {
	svc     RegistrationService
	timeout time.Duration
}

func NewRegistrationHandler(svc RegistrationService) *RegistrationHandler {
	return &RegistrationHandler{svc: svc, timeout: 3 * time.Second}
}

func (h *RegistrationHandler) Register(ctx *gin.Context) {
	id := eventID(ctx)

	var req registration.CreateRegistrationRequest
	if !BindJSON(ctx, &req) {
		return
	}

	// the URL is the source of truth for the event
	req.EventID = id

	cctx, cancel := context.WithTimeout(ctx.Request.Context(), h.timeout)
	defer cancel()

	reg, err := h.svc.RegisterParticipant(cctx, req)
	if err != nil {
		RespondDomainError(ctx, err, "Could not register for event")
		return
	}

	ctx.JSON(http.StatusCreated, reg)
}

func (h *RegistrationHandler) ListForEvent(ctx *gin.Context) {
	id := eventID(ctx)

	cctx, cancel := context.WithTimeout(ctx.Request.Context(), h.timeout)
	defer cancel()

	regs, err := h.svc.ListRegistrations(cctx, id)
	if err != nil {
		RespondDomainError(ctx, err, "Could not list registrations")
		return
	}

	ctx.JSON(http.StatusOK, gin.H{
		"eventId":       id,
		"count":         len(regs),
		"registrations": regs,
	})
}
