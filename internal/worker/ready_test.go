package worker

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/geocoder89/clubevents/internal/observability"
	"github.com/prometheus/client_golang/prometheus"
)

func TestReadyz(t *testing.T) {
	tests := []struct {
		name     string
		polling  bool
		ping     error
		shutdown bool
		wantCode int
		wantDB   string
	}{
		{name: "all good", polling: true, wantCode: http.StatusOK, wantDB: "ok"},
		{name: "db down", polling: true, ping: errors.New("dial tcp: refused"), wantCode: http.StatusServiceUnavailable, wantDB: "dial tcp: refused"},
		{name: "outbox idle", polling: false, wantCode: http.StatusServiceUnavailable, wantDB: "ok"},
		{name: "draining", polling: true, shutdown: true, wantCode: http.StatusServiceUnavailable, wantDB: "ok"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			metrics := observability.NewJobMetrics()
			metrics.IncDelivered()

			r := NewReadiness(func() bool { return tt.polling }, metrics).
				Add("db", PingFunc(func(context.Context) error { return tt.ping }))
			if tt.shutdown {
				r.MarkShuttingDown()
			}

			rec := httptest.NewRecorder()
			NewMux(r, nil).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))

			if rec.Code != tt.wantCode {
				t.Fatalf("expected %d, got %d (%s)", tt.wantCode, rec.Code, rec.Body.String())
			}

			var body readyResponse
			if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if body.Checks["db"] != tt.wantDB {
				t.Fatalf("db check = %q", body.Checks["db"])
			}
			if body.Jobs == nil || body.Jobs.Delivered != 1 {
				t.Fatalf("expected job snapshot, got %+v", body.Jobs)
			}
		})
	}
}

func TestHealthzAndMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	observability.NewProm(reg).RegistrationCreated()

	mux := NewMux(NewReadiness(nil, nil), reg)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK || rec.Body.String() != "ok" {
		t.Fatalf("healthz: %d %q", rec.Code, rec.Body.String())
	}

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("metrics: %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "clubevents_registrations") {
		t.Fatalf("expected clubevents metrics in output")
	}

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics/jobs", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("jobs: %d", rec.Code)
	}
}
