package jobs

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/geocoder89/clubevents/internal/notifications"
)

type Enqueuer interface {
	Create(ctx context.Context, j Job) (Job, error)
}

// QueueNotifier turns a notification into an outbox job; a worker delivers it later.
// Enqueueing is a single insert, so callers are never held up by a slow provider.
type QueueNotifier struct {
	repo        Enqueuer
	maxAttempts int
	now         func() time.Time
}

func NewQueueNotifier(repo Enqueuer, maxAttempts int) *QueueNotifier {
	return &QueueNotifier{repo: repo, maxAttempts: maxAttempts, now: func() time.Time { return time.Now().UTC() }}
}

func (q *QueueNotifier) Notify(ctx context.Context, n notifications.Notification) error {
	t, payload, err := PayloadFor(n)
	if err != nil {
		return err
	}
	if err := ValidatePayload(t, payload); err != nil {
		return fmt.Errorf("notification %s: %w", n.Kind, err)
	}

	raw, err := EncodePayload(t, payload)
	if err != nil {
		return err
	}

	j, err := NewJob(CreateRequest{
		Type:           t,
		Payload:        raw,
		MaxAttempts:    q.maxAttempts,
		IdempotencyKey: idempotencyKey(n),
	}, q.now())
	if err != nil {
		return err
	}

	if _, err := q.repo.Create(ctx, j); err != nil {
		return fmt.Errorf("enqueue %s: %w", n.Kind, err)
	}
	return nil
}

// idempotencyKey names one notification per registration, or per kind and
// stored event version. Without a version it falls back to the instant.
func idempotencyKey(n notifications.Notification) *string {
	var key string
	switch {
	case n.Kind.IsRegistration():
		key = "registration:confirm:" + n.RegistrationID
	case n.Version > 0:
		key = string(n.Kind) + ":" + n.EventID + ":v" + strconv.Itoa(n.Version)
	default:
		key = string(n.Kind) + ":" + n.EventID + ":" + n.OccurredAt.UTC().Format(time.RFC3339Nano)
	}
	return &key
}
