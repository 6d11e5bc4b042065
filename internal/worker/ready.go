package worker

import (
	"context"
	"encoding/json"
	"net/http"
	"sort"
	"sync/atomic"
	"time"

	"github.com/geocoder89/clubevents/internal/observability"
)

type Pinger interface {
	Ping(ctx context.Context) error
}

// PingFunc adapts a plain function, e.g. sql.DB.PingContext.
type PingFunc func(ctx context.Context) error

func (f PingFunc) Ping(ctx context.Context) error { return f(ctx) }

// Readiness aggregates the dependency pings, the outbox loop state and the
// shutdown flag into one verdict.
type Readiness struct {
	deps         map[string]Pinger
	polling      func() bool
	metrics      *observability.JobMetrics
	timeout      time.Duration
	shuttingDown atomic.Bool
}

func NewReadiness(polling func() bool, metrics *observability.JobMetrics) *Readiness {
	return &Readiness{
		deps:    make(map[string]Pinger),
		polling: polling,
		metrics: metrics,
		timeout: 500 * time.Millisecond,
	}
}

// Add registers a named dependency. Not safe after the server starts.
func (r *Readiness) Add(name string, p Pinger) *Readiness {
	if p != nil {
		r.deps[name] = p
	}
	return r
}

func (r *Readiness) MarkShuttingDown() { r.shuttingDown.Store(true) }

type readyResponse struct {
	Status string                            `json:"status"`
	Checks map[string]string                 `json:"checks"`
	Jobs   *observability.JobMetricsSnapshot `json:"jobs,omitempty"`
}

// Check pings every dependency and reports whether all of them answered.
func (r *Readiness) Check(ctx context.Context) (bool, map[string]string) {
	checks := make(map[string]string, len(r.deps)+1)
	ok := true

	if r.shuttingDown.Load() {
		checks["process"] = "shutting down"
		ok = false
	}
	if r.polling != nil && !r.polling() {
		checks["outbox"] = "not polling"
		ok = false
	}

	names := make([]string, 0, len(r.deps))
	for name := range r.deps {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		pctx, cancel := context.WithTimeout(ctx, r.timeout)
		err := r.deps[name].Ping(pctx)
		cancel()
		if err != nil {
			checks[name] = err.Error()
			ok = false
			continue
		}
		checks[name] = "ok"
	}
	return ok, checks
}

func ReadyHandler(r *Readiness) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		ok, checks := r.Check(req.Context())

		resp := readyResponse{Status: "ready", Checks: checks}
		if r.metrics != nil {
			snap := r.metrics.Snapshot()
			resp.Jobs = &snap
		}

		code := http.StatusOK
		if !ok {
			resp.Status = "not_ready"
			code = http.StatusServiceUnavailable
		}
		writeJSON(w, code, resp)
	}
}

// JobsHandler exposes the outbox counters without the dependency pings.
func JobsHandler(r *Readiness) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		var snap observability.JobMetricsSnapshot
		if r.metrics != nil {
			snap = r.metrics.Snapshot()
		}
		writeJSON(w, http.StatusOK, snap)
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
