package http

import (
	"bytes"
	"context"
	"encoding/json"
	nethttp "net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/geocoder89/clubevents/internal/clock"
	"github.com/geocoder89/clubevents/internal/domain/event"
	"github.com/geocoder89/clubevents/internal/jobs"
	"github.com/geocoder89/clubevents/internal/lifecycle"
	"github.com/geocoder89/clubevents/internal/notifications"
	"github.com/geocoder89/clubevents/internal/queue/worker"
	"github.com/geocoder89/clubevents/internal/repo/memory"
	"github.com/geocoder89/clubevents/internal/validation"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

type recordingNotifier struct {
	mu    sync.Mutex
	kinds []notifications.Kind
}

func (r *recordingNotifier) Notify(_ context.Context, n notifications.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.kinds = append(r.kinds, n.Kind)
	return nil
}

type stack struct {
	router *gin.Engine
	jobs   *memory.JobsRepo
}

func newStack(t *testing.T) stack {
	t.Helper()
	gin.SetMode(gin.TestMode)

	events := memory.NewEventsRepo()
	regs := memory.NewRegistrationsRepo(events)
	jobsRepo := memory.NewJobsRepo(nil)

	reg := prometheus.NewRegistry()
	engine := lifecycle.New(events, regs, clock.NewFixed(time.Date(2024, 7, 10, 9, 0, 0, 0, time.UTC)),
		lifecycle.WithNotifier(jobs.NewQueueNotifier(jobsRepo, 3)),
		lifecycle.WithSportCatalog(validation.NewStaticCatalog("football")),
	)

	r := NewRouter(RouterDeps{
		Env:      "dev",
		Service:  engine,
		Gatherer: reg,
	})
	return stack{router: r, jobs: jobsRepo}
}

func (s stack) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *nethttp.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, bytes.NewBufferString(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func decodeEvent(t *testing.T, w *httptest.ResponseRecorder) event.Event {
	t.Helper()
	var e event.Event
	if err := json.Unmarshal(w.Body.Bytes(), &e); err != nil {
		t.Fatalf("decode event: %v (%s)", err, w.Body.String())
	}
	return e
}

func TestRouter_EventLifecycleThroughOutbox(t *testing.T) {
	s := newStack(t)

	w := s.do(t, nethttp.MethodPost, "/events", `{
		"title":"Summer Cup","sportId":"football","type":"tournament",
		"date":"2024-07-15","time":"10:00","durationHours":2,"maxParticipants":2,
		"asDraft":true}`)
	if w.Code != nethttp.StatusCreated {
		t.Fatalf("create: %d %s", w.Code, w.Body.String())
	}
	draft := decodeEvent(t, w)
	base := "/events/" + draft.ID

	// no location yet
	if w := s.do(t, nethttp.MethodPost, base+"/publish", ""); w.Code != nethttp.StatusUnprocessableEntity {
		t.Fatalf("publish without location: %d %s", w.Code, w.Body.String())
	}

	if w := s.do(t, nethttp.MethodPatch, base, `{"location":{"clubId":"club_1"}}`); w.Code != nethttp.StatusOK {
		t.Fatalf("edit: %d %s", w.Code, w.Body.String())
	}
	if w := s.do(t, nethttp.MethodPost, base+"/publish", ""); w.Code != nethttp.StatusOK {
		t.Fatalf("publish: %d %s", w.Code, w.Body.String())
	}

	if w := s.do(t, nethttp.MethodPost, base+"/registrations", `{"userId":"u1","name":"Ada","email":"ada@example.com"}`); w.Code != nethttp.StatusCreated {
		t.Fatalf("register: %d %s", w.Code, w.Body.String())
	}

	w = s.do(t, nethttp.MethodPost, base+"/postpone", `{"eventDate":"2024-07-20","eventTime":"18:00"}`)
	if w.Code != nethttp.StatusOK {
		t.Fatalf("postpone: %d %s", w.Code, w.Body.String())
	}
	if got := decodeEvent(t, w); got.Status != event.StatusPostponed || got.CurrentParticipants != 1 {
		t.Fatalf("unexpected postponed event %+v", got)
	}

	// postpone is only allowed from published
	if w := s.do(t, nethttp.MethodPost, base+"/postpone", `{"eventDate":"2024-07-21","eventTime":"18:00"}`); w.Code != nethttp.StatusConflict {
		t.Fatalf("second postpone: %d", w.Code)
	}

	if w := s.do(t, nethttp.MethodPost, base+"/cancel", `{"reason":"pitch flooded"}`); w.Code != nethttp.StatusOK {
		t.Fatalf("cancel: %d %s", w.Code, w.Body.String())
	}
	if w := s.do(t, nethttp.MethodDelete, base, ""); w.Code != nethttp.StatusConflict {
		t.Fatalf("delete cancelled: %d", w.Code)
	}

	rec := &recordingNotifier{}
	wk := worker.New(worker.Config{WorkerID: "test"}, s.jobs, rec, nil, nil, nil)
	for {
		processed, err := wk.ProcessOne(context.Background())
		if err != nil {
			t.Fatalf("process: %v", err)
		}
		if !processed {
			break
		}
	}

	want := map[notifications.Kind]bool{
		notifications.KindEventCreated:        true,
		notifications.KindEventUpdated:        true,
		notifications.KindEventPublished:      true,
		notifications.KindRegistrationCreated: true,
		notifications.KindEventPostponed:      true,
		notifications.KindEventCancelled:      true,
	}
	if len(rec.kinds) != len(want) {
		t.Fatalf("expected %d deliveries, got %v", len(want), rec.kinds)
	}
	for _, k := range rec.kinds {
		if !want[k] {
			t.Fatalf("unexpected delivery %q", k)
		}
	}
}

func TestRouter_RejectsNonJSONAndServesProbes(t *testing.T) {
	s := newStack(t)

	req := httptest.NewRequest(nethttp.MethodPost, "/events", bytes.NewBufferString("title=x"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	if w.Code != nethttp.StatusUnsupportedMediaType {
		t.Fatalf("expected 415, got %d", w.Code)
	}

	for _, path := range []string{"/healthz", "/readyz", "/metrics", "/docs", "/docs/openapi.yaml"} {
		if w := s.do(t, nethttp.MethodGet, path, ""); w.Code != nethttp.StatusOK {
			t.Fatalf("%s: expected 200, got %d", path, w.Code)
		}
	}

	if w := s.do(t, nethttp.MethodGet, "/events/does-not-exist", ""); w.Code != nethttp.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
	if w := s.do(t, nethttp.MethodDelete, "/events/does-not-exist", ""); w.Code != nethttp.StatusNoContent {
		t.Fatalf("delete of a missing event is idempotent, got %d", w.Code)
	}
}
