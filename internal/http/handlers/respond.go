package handlers

import (
	"errors"
	"net/http"

	"github.com/geocoder89/clubevents/internal/domain/event"
	"github.com/geocoder89/clubevents/internal/domain/registration"
	"github.com/geocoder89/clubevents/internal/http/middlewares"
	"github.com/geocoder89/clubevents/internal/validation"
	"github.com/gin-gonic/gin"
)

type APIError struct {
	Code      string      `json:"code"`
	Message   string      `json:"message"`
	RequestID string      `json:"requestId,omitempty"`
	Details   interface{} `json:"details,omitempty"`
}

func requestIDFrom(ctx *gin.Context) string {
	if s := ctx.GetString(middlewares.CtxRequestID); s != "" {
		return s
	}
	return ctx.GetHeader("X-Request-Id")
}

func RespondError(ctx *gin.Context, status int, code, message string, details interface{}) {
	ctx.JSON(status, gin.H{
		"error": APIError{
			Code:      code,
			Message:   message,
			RequestID: requestIDFrom(ctx),
			Details:   details,
		},
	})
}

func RespondBadRequest(ctx *gin.Context, message string, details interface{}) {
	RespondError(ctx, http.StatusBadRequest, "invalid_request", message, details)
}

func RespondNotFound(ctx *gin.Context, message string) {
	RespondError(ctx, http.StatusNotFound, "not_found", message, nil)
}

func RespondInternal(ctx *gin.Context, message string) {
	RespondError(ctx, http.StatusInternalServerError, "internal_error", message, nil)
}

func RespondConflict(ctx *gin.Context, code, message string) {
	RespondError(ctx, http.StatusConflict, code, message, nil)
}

func RespondValidation(ctx *gin.Context, fields validation.Errors) {
	RespondError(ctx, http.StatusUnprocessableEntity, "validation_failed", "One or more fields are invalid", gin.H{"fields": fields})
}

// RespondDomainError maps engine errors onto HTTP statuses. Anything
// unrecognised becomes a 500 carrying fallback as its message.
func RespondDomainError(ctx *gin.Context, err error, fallback string) {
	if fields, ok := validation.FieldsOf(err); ok {
		RespondValidation(ctx, fields)
		return
	}

	var te *event.TransitionError
	switch {
	case errors.As(err, &te):
		details := gin.H{"operation": te.Op, "status": te.From}
		if te.Reason != "" {
			details["reason"] = te.Reason
		}
		RespondError(ctx, http.StatusConflict, "invalid_transition", te.Error(), details)
	case errors.Is(err, event.ErrNotFound):
		RespondNotFound(ctx, "Event not found")
	case errors.Is(err, registration.ErrNotFound):
		RespondNotFound(ctx, "Registration not found")
	case errors.Is(err, registration.ErrEventFull):
		RespondConflict(ctx, "event_full", "This event is already at full capacity.")
	case errors.Is(err, registration.ErrAlreadyRegistered):
		RespondConflict(ctx, "already_registered", "This email is already registered for this event.")
	case errors.Is(err, event.ErrConflict):
		RespondConflict(ctx, "conflict", "The event was modified by another request; reload and retry.")
	default:
		_ = ctx.Error(err)
		RespondInternal(ctx, fallback)
	}
}
