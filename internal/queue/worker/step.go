package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/geocoder89/clubevents/internal/jobs"
)

// errPermanent marks jobs that can never succeed, such as undecodable payloads.
var errPermanent = errors.New("permanent job failure")

// ProcessOne claims and delivers at most one job. It reports whether a job was claimed.
func (w *Worker) ProcessOne(ctx context.Context) (bool, error) {
	claimCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	j, err := w.repo.ClaimNext(claimCtx, w.cfg.WorkerID)
	cancel()

	if err != nil {
		if errors.Is(err, jobs.ErrJobNotFound) {
			return false, nil
		}
		return false, err
	}

	w.metrics.IncClaimed()
	if w.prom != nil {
		w.prom.JobsInFlight.Inc()
		defer w.prom.JobsInFlight.Dec()
	}

	start := time.Now()
	err = w.execute(ctx, j)
	elapsed := time.Since(start)
	w.metrics.ObserveDuration(elapsed)

	if err != nil {
		result, ferr := w.handleFailure(ctx, j, err)
		w.prom.ObserveJob(string(j.Type), result, elapsed)
		return true, ferr
	}

	if err := w.repo.MarkDone(ctx, j.ID); err != nil {
		_ = w.repo.MarkFailed(ctx, j.ID, "mark_done_failed: "+err.Error())
		return true, err
	}

	w.metrics.IncDelivered()
	w.prom.ObserveJob(string(j.Type), "done", elapsed)
	w.log.DebugContext(ctx, "job delivered", "job_id", j.ID, "job_type", string(j.Type))
	return true, nil
}

func (w *Worker) execute(ctx context.Context, j jobs.Job) error {
	payload, err := jobs.DecodePayload(j)
	if err != nil {
		return fmt.Errorf("%w: %v", errPermanent, err)
	}
	if err := jobs.ValidatePayload(j.Type, payload); err != nil {
		return fmt.Errorf("%w: %v", errPermanent, err)
	}

	n, err := jobs.NotificationFrom(payload)
	if err != nil {
		return fmt.Errorf("%w: %v", errPermanent, err)
	}

	if w.guard == nil {
		return w.notifier.Notify(ctx, n)
	}

	key := jobs.DeliveryKey(j)
	if err := w.guard.TryStart(ctx, key, j.ID); err != nil {
		if errors.Is(err, jobs.ErrAlreadyDelivered) {
			w.log.InfoContext(ctx, "job already delivered", "job_id", j.ID, "delivery_key", key)
			return nil
		}
		return err
	}

	if err := w.notifier.Notify(ctx, n); err != nil {
		if gerr := w.guard.MarkFailed(ctx, key, err.Error()); gerr != nil {
			w.log.WarnContext(ctx, "delivery guard update failed", "job_id", j.ID, "err", gerr)
		}
		return err
	}

	if err := w.guard.MarkSent(ctx, key); err != nil {
		w.log.WarnContext(ctx, "delivery guard update failed", "job_id", j.ID, "err", err)
	}
	return nil
}

// handleFailure retries with backoff until the job runs out of attempts.
func (w *Worker) handleFailure(ctx context.Context, j jobs.Job, cause error) (string, error) {
	msg := cause.Error()

	if errors.Is(cause, errPermanent) {
		w.metrics.IncSkipped()
		w.log.ErrorContext(ctx, "job dropped", "job_id", j.ID, "job_type", string(j.Type), "err", cause)
		return "failed", w.repo.MarkFailed(ctx, j.ID, msg)
	}

	w.metrics.IncFailed()

	next := j
	next.Attempts++
	if next.Exhausted() {
		w.metrics.IncDeadLettered()
		w.log.ErrorContext(ctx, "job dead-lettered",
			"job_id", j.ID,
			"job_type", string(j.Type),
			"attempts", next.Attempts,
			"err", cause,
		)
		return "failed", w.repo.MarkFailed(ctx, j.ID, msg)
	}

	runAt := w.cfg.Now().Add(w.cfg.Backoff(j.Attempts))
	w.metrics.IncRetried()
	w.log.WarnContext(ctx, "job retry scheduled",
		"job_id", j.ID,
		"job_type", string(j.Type),
		"attempt", next.Attempts,
		"run_at", runAt,
		"err", cause,
	)
	return "retry", w.repo.Reschedule(ctx, j.ID, runAt, msg)
}
