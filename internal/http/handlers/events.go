package handlers

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/geocoder89/clubevents/internal/domain/event"
	"github.com/geocoder89/clubevents/internal/http/middlewares"
	"github.com/geocoder89/clubevents/internal/validation"
	"github.com/gin-gonic/gin"
)

const (
	defaultListLimit = 50
	maxListLimit     = 200
)

// EventsService is the slice of the lifecycle engine the event routes need.
type EventsService interface {
	Create(ctx context.Context, p event.CreatePatch) (event.Event, error)
	Get(ctx context.Context, id string) (event.Event, error)
	List(ctx context.Context, f event.ListFilter) ([]event.Event, error)
	Edit(ctx context.Context, id string, p event.EditPatch) (event.Event, error)
	Publish(ctx context.Context, id string) (event.Event, error)
	Postpone(ctx context.Context, id string, p event.PostponePatch) (event.Event, error)
	Announce(ctx context.Context, id string, p event.AnnouncePatch) (event.Event, error)
	Cancel(ctx context.Context, id string, p event.CancelPatch) (event.Event, error)
	Delete(ctx context.Context, id string) error
}

type EventsHandler struct {
	svc     EventsService
	timeout time.Duration
}

func NewEventsHandler(svc EventsService) *EventsHandler {
	return &EventsHandler{svc: svc, timeout: 3 * time.Second}
}

// requestContext keeps the request's trace span and bounds the store work.
func (h *EventsHandler) requestContext(ctx *gin.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx.Request.Context(), h.timeout)
}

func eventID(ctx *gin.Context) string {
	id := ctx.Param("id")
	ctx.Set(middlewares.CtxEventID, id)
	return id
}

func (h *EventsHandler) CreateEvent(ctx *gin.Context) {
	var p event.CreatePatch
	if !BindJSON(ctx, &p) {
		return
	}

	cctx, cancel := h.requestContext(ctx)
	defer cancel()

	e, err := h.svc.Create(cctx, p)
	if err != nil {
		RespondDomainError(ctx, err, "Could not create event")
		return
	}

	ctx.Set(middlewares.CtxEventID, e.ID)
	ctx.Header("Location", "/events/"+e.ID)
	ctx.JSON(http.StatusCreated, e)
}

func (h *EventsHandler) GetEventByID(ctx *gin.Context) {
	id := eventID(ctx)

	cctx, cancel := h.requestContext(ctx)
	defer cancel()

	e, err := h.svc.Get(cctx, id)
	if err != nil {
		RespondDomainError(ctx, err, "Could not fetch event")
		return
	}

	RespondEventWithETag(ctx, e)
}

func (h *EventsHandler) ListEvents(ctx *gin.Context) {
	filter, errs := parseListFilter(ctx)
	if len(errs) > 0 {
		RespondValidation(ctx, errs)
		return
	}

	cctx, cancel := h.requestContext(ctx)
	defer cancel()

	events, err := h.svc.List(cctx, filter)
	if err != nil {
		RespondDomainError(ctx, err, "Could not list events")
		return
	}

	RespondJSONWithETag(ctx, gin.H{
		"items":  events,
		"count":  len(events),
		"limit":  filter.Limit,
		"offset": filter.Offset,
	})
}

func parseListFilter(ctx *gin.Context) (event.ListFilter, validation.Errors) {
	errs := validation.Errors{}
	f := event.ListFilter{Limit: defaultListLimit}

	if raw := strings.TrimSpace(ctx.Query("status")); raw != "" {
		for _, part := range strings.Split(raw, ",") {
			s := event.Status(strings.TrimSpace(part))
			if !s.IsValid() {
				errs.Add("status", "must be a comma-separated list of draft, published, postponed, completed, cancelled")
				break
			}
			f.Statuses = append(f.Statuses, s)
		}
	}
	if v := ctx.Query("clubId"); v != "" {
		f.ClubID = &v
	}
	if v := ctx.Query("sportId"); v != "" {
		f.SportID = &v
	}
	if v := ctx.Query("type"); v != "" {
		t := event.Type(v)
		if !t.IsValid() {
			errs.Add("type", "must be one of tournament, workshop, training, social")
		} else {
			f.Type = &t
		}
	}
	for _, q := range []struct {
		name string
		dst  **string
	}{{"from", &f.From}, {"to", &f.To}} {
		v := ctx.Query(q.name)
		if v == "" {
			continue
		}
		if _, err := time.Parse(event.DateLayout, v); err != nil {
			errs.Add(q.name, "must be a date in YYYY-MM-DD format")
			continue
		}
		*q.dst = &v
	}
	if f.From != nil && f.To != nil && *f.To < *f.From {
		errs.Add("to", "must not be before from")
	}

	if v := ctx.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > maxListLimit {
			errs.Add("limit", "must be between 1 and "+strconv.Itoa(maxListLimit))
		} else {
			f.Limit = n
		}
	}
	if v := ctx.Query("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			errs.Add("offset", "must be a non-negative integer")
		} else {
			f.Offset = n
		}
	}

	return f, errs
}

func (h *EventsHandler) EditEvent(ctx *gin.Context) {
	id := eventID(ctx)

	var p event.EditPatch
	if !BindJSON(ctx, &p) {
		return
	}

	cctx, cancel := h.requestContext(ctx)
	defer cancel()

	e, err := h.svc.Edit(cctx, id, p)
	if err != nil {
		RespondDomainError(ctx, err, "Could not update event")
		return
	}

	ctx.JSON(http.StatusOK, e)
}

func (h *EventsHandler) PublishEvent(ctx *gin.Context) {
	id := eventID(ctx)

	cctx, cancel := h.requestContext(ctx)
	defer cancel()

	e, err := h.svc.Publish(cctx, id)
	if err != nil {
		RespondDomainError(ctx, err, "Could not publish event")
		return
	}

	ctx.JSON(http.StatusOK, e)
}

func (h *EventsHandler) PostponeEvent(ctx *gin.Context) {
	id := eventID(ctx)

	var p event.PostponePatch
	if !BindJSON(ctx, &p) {
		return
	}

	cctx, cancel := h.requestContext(ctx)
	defer cancel()

	e, err := h.svc.Postpone(cctx, id, p)
	if err != nil {
		RespondDomainError(ctx, err, "Could not postpone event")
		return
	}

	ctx.JSON(http.StatusOK, e)
}

func (h *EventsHandler) AnnounceEvent(ctx *gin.Context) {
	id := eventID(ctx)

	var p event.AnnouncePatch
	if !BindJSON(ctx, &p) {
		return
	}

	cctx, cancel := h.requestContext(ctx)
	defer cancel()

	e, err := h.svc.Announce(cctx, id, p)
	if err != nil {
		RespondDomainError(ctx, err, "Could not announce event")
		return
	}

	ctx.JSON(http.StatusOK, e)
}

func (h *EventsHandler) CancelEvent(ctx *gin.Context) {
	id := eventID(ctx)

	var p event.CancelPatch
	if !BindOptionalJSON(ctx, &p) {
		return
	}

	cctx, cancel := h.requestContext(ctx)
	defer cancel()

	e, err := h.svc.Cancel(cctx, id, p)
	if err != nil {
		RespondDomainError(ctx, err, "Could not cancel event")
		return
	}

	ctx.JSON(http.StatusOK, e)
}

// DeleteEvent answers 204 whether or not the event existed.
func (h *EventsHandler) DeleteEvent(ctx *gin.Context) {
	id := eventID(ctx)

	cctx, cancel := h.requestContext(ctx)
	defer cancel()

	if err := h.svc.Delete(cctx, id); err != nil {
		RespondDomainError(ctx, err, "Could not delete event")
		return
	}

	ctx.Status(http.StatusNoContent)
}
