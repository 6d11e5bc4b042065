package jobs

import (
	"context"
	"time"
)

// DeliveryLease is how long a "sending" record blocks other attempts. A worker
// that dies mid-send leaves the record behind; after the lease it can be
// claimed again. It matches the worker's default LockTTL.
const DeliveryLease = 5 * time.Minute

// DeliveryGuard records deliveries so a job that is requeued after a worker
// crash does not notify twice.
type DeliveryGuard interface {
	// TryStart claims key for jobID. It returns ErrAlreadyDelivered or
	// ErrDeliveryInProgress when another attempt owns it. A failed record, or
	// a sending one older than the lease, can be claimed.
	TryStart(ctx context.Context, key, jobID string) error
	MarkSent(ctx context.Context, key string) error
	MarkFailed(ctx context.Context, key, errMsg string) error
}

// DeliveryKey prefers the idempotency key so re-enqueued duplicates share one record.
func DeliveryKey(j Job) string {
	if j.IdempotencyKey != nil && *j.IdempotencyKey != "" {
		return *j.IdempotencyKey
	}
	return "job:" + j.ID
}
