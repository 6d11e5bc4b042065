package memory

import (
	"context"
	"sync"
	"time"

	"github.com/geocoder89/clubevents/internal/jobs"
)

type deliveryState struct {
	jobID     string
	status    string // sending | sent | failed
	err       string
	updatedAt time.Time
}

type DeliveriesRepo struct {
	mu    sync.Mutex
	items map[string]deliveryState
	lease time.Duration
	now   func() time.Time
}

// NewDeliveriesRepo returns a guard whose "sending" claims expire after lease.
// A zero lease uses jobs.DeliveryLease.
func NewDeliveriesRepo(lease time.Duration, now func() time.Time) *DeliveriesRepo {
	if lease <= 0 {
		lease = jobs.DeliveryLease
	}
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &DeliveriesRepo{items: make(map[string]deliveryState), lease: lease, now: now}
}

func (r *DeliveriesRepo) TryStart(_ context.Context, key, jobID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	cur, ok := r.items[key]
	switch {
	case !ok, cur.status == "failed", cur.status == "sending" && now.Sub(cur.updatedAt) >= r.lease:
		r.items[key] = deliveryState{jobID: jobID, status: "sending", updatedAt: now}
		return nil
	case cur.status == "sent":
		return jobs.ErrAlreadyDelivered
	default:
		return jobs.ErrDeliveryInProgress
	}
}

func (r *DeliveriesRepo) MarkSent(_ context.Context, key string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	d := r.items[key]
	d.status = "sent"
	d.err = ""
	d.updatedAt = r.now()
	r.items[key] = d
	return nil
}

func (r *DeliveriesRepo) MarkFailed(_ context.Context, key, errMsg string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	d := r.items[key]
	d.status = "failed"
	d.err = errMsg
	d.updatedAt = r.now()
	r.items[key] = d
	return nil
}
