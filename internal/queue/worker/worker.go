package worker

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/geocoder89/clubevents/internal/jobs"
	"github.com/geocoder89/clubevents/internal/notifications"
	"github.com/geocoder89/clubevents/internal/observability"
)

// JobsRepository is the outbox table as the worker sees it.
type JobsRepository interface {
	ClaimNext(ctx context.Context, workerID string) (jobs.Job, error)
	MarkDone(ctx context.Context, id string) error
	Reschedule(ctx context.Context, id string, runAt time.Time, errMsg string) error
	MarkFailed(ctx context.Context, id string, errMsg string) error
	RequeueStaleProcessing(ctx context.Context, lockTTL time.Duration) (int64, error)
}

type Config struct {
	PollInterval  time.Duration
	WorkerID      string
	Concurrency   int
	ShutdownGrace time.Duration
	// LockTTL is how long a job may stay processing before it is requeued.
	LockTTL time.Duration
	Backoff func(attempt int) time.Duration
	Now     func() time.Time
}

// Worker drains the notification outbox into a Notifier.
type Worker struct {
	cfg      Config
	repo     JobsRepository
	notifier notifications.Notifier
	log      *slog.Logger
	metrics  *observability.JobMetrics
	prom     *observability.Prom
	guard    jobs.DeliveryGuard

	readyMu sync.RWMutex
	ready   bool
}

func New(cfg Config, repo JobsRepository, notifier notifications.Notifier, log *slog.Logger, metrics *observability.JobMetrics, prom *observability.Prom) *Worker {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = time.Second
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	if cfg.ShutdownGrace <= 0 {
		cfg.ShutdownGrace = 10 * time.Second
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = 5 * time.Minute
	}
	if cfg.Backoff == nil {
		cfg.Backoff = ExponentialBackoff
	}
	if cfg.Now == nil {
		cfg.Now = func() time.Time { return time.Now().UTC() }
	}
	if cfg.WorkerID == "" {
		cfg.WorkerID = "worker"
	}
	if log == nil {
		log = observability.Discard()
	}
	if metrics == nil {
		metrics = observability.NewJobMetrics()
	}

	return &Worker{
		cfg:      cfg,
		repo:     repo,
		notifier: notifier,
		log:      log,
		metrics:  metrics,
		prom:     prom,
	}
}

// UseDeliveryGuard makes deliveries at-most-once per delivery key.
func (w *Worker) UseDeliveryGuard(g jobs.DeliveryGuard) {
	w.guard = g
}

// Run polls until ctx is cancelled, then waits up to ShutdownGrace for
// in-flight deliveries.
func (w *Worker) Run(ctx context.Context) error {
	w.setReady(true)
	defer w.setReady(false)

	w.log.InfoContext(ctx, "outbox worker started",
		"worker_id", w.cfg.WorkerID,
		"concurrency", w.cfg.Concurrency,
		"poll_interval", w.cfg.PollInterval.String(),
	)

	// deliveries get their own context so shutdown does not abort a send mid-way
	workCtx, cancelWork := context.WithCancel(context.WithoutCancel(ctx))
	defer cancelWork()

	var wg sync.WaitGroup
	for i := 0; i < w.cfg.Concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			w.loop(ctx, workCtx)
		}()
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		w.janitor(ctx)
	}()

	<-ctx.Done()
	w.setReady(false)
	w.log.Info("outbox worker received shutdown signal")

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(w.cfg.ShutdownGrace):
		w.log.Warn("outbox worker shutdown grace exceeded; abandoning in-flight jobs")
		cancelWork()
		<-done
	}

	w.log.Info("outbox worker stopped")
	return nil
}

func (w *Worker) loop(ctx, workCtx context.Context) {
	ticker := time.NewTicker(w.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			// drain everything runnable before sleeping again
			for ctx.Err() == nil {
				processed, err := w.ProcessOne(workCtx)
				if err != nil {
					w.log.Error("outbox process error", "err", err)
					break
				}
				if !processed {
					break
				}
			}
		}
	}
}

func (w *Worker) janitor(ctx context.Context) {
	ticker := time.NewTicker(w.cfg.LockTTL)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := w.repo.RequeueStaleProcessing(ctx, w.cfg.LockTTL)
			if err != nil {
				w.log.Error("requeue stale jobs failed", "err", err)
				continue
			}
			if n > 0 {
				w.log.Warn("requeued stale jobs", "count", n)
			}
		}
	}
}

func (w *Worker) Metrics() observability.JobMetricsSnapshot {
	return w.metrics.Snapshot()
}
