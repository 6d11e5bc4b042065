package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/geocoder89/clubevents/internal/jobs"
)

// JobsRepo is the in-process outbox used with the memory store driver.
type JobsRepo struct {
	mu    sync.Mutex
	items map[string]jobs.Job
	byKey map[string]string // idempotency key -> job id
	now   func() time.Time
}

func NewJobsRepo(now func() time.Time) *JobsRepo {
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &JobsRepo{
		items: make(map[string]jobs.Job),
		byKey: make(map[string]string),
		now:   now,
	}
}

// Create stores j; a repeated idempotency key returns the job already stored.
func (r *JobsRepo) Create(_ context.Context, j jobs.Job) (jobs.Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if j.IdempotencyKey != nil {
		if id, ok := r.byKey[*j.IdempotencyKey]; ok {
			return r.items[id], nil
		}
		r.byKey[*j.IdempotencyKey] = j.ID
	}
	r.items[j.ID] = j
	return j, nil
}

func (r *JobsRepo) Get(_ context.Context, id string) (jobs.Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	j, ok := r.items[id]
	if !ok {
		return jobs.Job{}, jobs.ErrJobNotFound
	}
	return j, nil
}

// ClaimNext locks the oldest runnable pending job; jobs.ErrJobNotFound means the queue is empty.
func (r *JobsRepo) ClaimNext(_ context.Context, workerID string) (jobs.Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	var ready []jobs.Job
	for _, j := range r.items {
		if j.Status == jobs.JobPending && !j.RunAt.After(now) && j.Attempts < j.MaxAttempts {
			ready = append(ready, j)
		}
	}
	if len(ready) == 0 {
		return jobs.Job{}, jobs.ErrJobNotFound
	}

	sort.Slice(ready, func(i, k int) bool {
		if !ready[i].RunAt.Equal(ready[k].RunAt) {
			return ready[i].RunAt.Before(ready[k].RunAt)
		}
		return ready[i].CreatedAt.Before(ready[k].CreatedAt)
	})

	j := ready[0]
	j.Status = jobs.JobProcessing
	j.LockedAt = &now
	j.LockedBy = &workerID
	j.UpdatedAt = now
	r.items[j.ID] = j
	return j, nil
}

func (r *JobsRepo) MarkDone(_ context.Context, id string) error {
	return r.update(id, func(j *jobs.Job, _ time.Time) {
		j.Status = jobs.JobDone
		j.LastError = nil
	})
}

func (r *JobsRepo) Reschedule(_ context.Context, id string, runAt time.Time, errMsg string) error {
	return r.update(id, func(j *jobs.Job, _ time.Time) {
		j.Status = jobs.JobPending
		j.Attempts++
		j.RunAt = runAt
		j.LastError = &errMsg
	})
}

func (r *JobsRepo) MarkFailed(_ context.Context, id string, errMsg string) error {
	return r.update(id, func(j *jobs.Job, _ time.Time) {
		j.Status = jobs.JobFailed
		j.Attempts++
		j.LastError = &errMsg
	})
}

// RequeueStaleProcessing returns jobs whose worker stopped mid-delivery to the queue.
func (r *JobsRepo) RequeueStaleProcessing(_ context.Context, lockTTL time.Duration) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	var n int64
	for id, j := range r.items {
		if j.Status != jobs.JobProcessing || j.LockedAt == nil || !j.LockedAt.Before(now.Add(-lockTTL)) {
			continue
		}
		j.Status = jobs.JobPending
		j.LockedAt = nil
		j.LockedBy = nil
		j.UpdatedAt = now
		r.items[id] = j
		n++
	}
	return n, nil
}

func (r *JobsRepo) update(id string, fn func(j *jobs.Job, now time.Time)) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	j, ok := r.items[id]
	if !ok {
		return jobs.ErrJobNotFound
	}
	now := r.now()
	fn(&j, now)
	j.LockedAt = nil
	j.LockedBy = nil
	j.UpdatedAt = now
	r.items[id] = j
	return nil
}
