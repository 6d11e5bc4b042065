package jobs

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/geocoder89/clubevents/internal/notifications"
)

func TestEncodeDecode_EventLifecycle(t *testing.T) {
	payload := EventLifecyclePayload{
		Kind:           notifications.KindEventPostponed,
		EventID:        "event-123",
		Status:         "postponed",
		PreviousStatus: "published",
		Date:           "2024-07-18",
		PreviousDate:   "2024-07-20",
	}

	b, err := EncodePayload(JobEventLifecycle, payload)
	if err != nil {
		t.Fatalf("EncodePayload error: %v", err)
	}

	j, err := NewJob(CreateRequest{Type: JobEventLifecycle, Payload: b}, time.Now())
	if err != nil {
		t.Fatalf("NewJob error: %v", err)
	}

	decoded, err := DecodePayload(j)
	if err != nil {
		t.Fatalf("DecodePayload error: %v", err)
	}

	p, ok := decoded.(EventLifecyclePayload)
	if !ok {
		t.Fatalf("expected EventLifecyclePayload, got %T", decoded)
	}

	if p.EventID != payload.EventID || p.PreviousDate != payload.PreviousDate {
		t.Fatalf("unexpected payload after decode: %+v", p)
	}
}

func TestEncodePayload_TypeMismatch(t *testing.T) {
	_, err := EncodePayload(JobEventLifecycle, RegistrationConfirmationPayload{
		RegistrationID: "r1",
		EventID:        "e1",
		Email:          "a@b.c",
	})
	if err == nil {
		t.Fatalf("expected error, got nil")
	}
	if err != ErrPayloadTypeMismatch {
		t.Fatalf("expected ErrPayloadTypeMismatch, got %v", err)
	}
}

func TestValidatePayload_RequiredIDs(t *testing.T) {
	err := ValidatePayload(JobEventLifecycle, EventLifecyclePayload{Kind: notifications.KindEventCompleted})
	if err == nil {
		t.Fatalf("expected error")
	}

	err = ValidatePayload(JobRegistrationConfirmation, RegistrationConfirmationPayload{EventID: "e1"})
	if err == nil {
		t.Fatalf("expected error")
	}
}

func TestNotificationRoundTrip(t *testing.T) {
	in := notifications.Notification{
		Kind:           notifications.KindRegistrationCreated,
		EventID:        "e1",
		RegistrationID: "r1",
		Email:          "ana@example.com",
		Name:           "Ana",
		OccurredAt:     time.Date(2024, 7, 10, 9, 0, 0, 0, time.UTC),
	}

	typ, payload, err := PayloadFor(in)
	if err != nil {
		t.Fatalf("PayloadFor: %v", err)
	}
	if typ != JobRegistrationConfirmation {
		t.Fatalf("expected registration confirmation job, got %s", typ)
	}

	out, err := NotificationFrom(payload)
	if err != nil {
		t.Fatalf("NotificationFrom: %v", err)
	}
	if out != in {
		t.Fatalf("round trip mismatch:\n got %+v\nwant %+v", out, in)
	}
}

type captureEnqueuer struct {
	jobs []Job
	err  error
}

func (c *captureEnqueuer) Create(_ context.Context, j Job) (Job, error) {
	if c.err != nil {
		return Job{}, c.err
	}
	c.jobs = append(c.jobs, j)
	return j, nil
}

func TestQueueNotifier_EnqueuesTypedJob(t *testing.T) {
	repo := &captureEnqueuer{}
	q := NewQueueNotifier(repo, 5)

	err := q.Notify(context.Background(), notifications.Notification{
		Kind:       notifications.KindEventCompleted,
		EventID:    "e1",
		Status:     "completed",
		OccurredAt: time.Now(),
	})
	if err != nil {
		t.Fatalf("Notify: %v", err)
	}

	if len(repo.jobs) != 1 {
		t.Fatalf("expected 1 job, got %d", len(repo.jobs))
	}
	j := repo.jobs[0]
	if j.Type != JobEventLifecycle || j.MaxAttempts != 5 || j.Status != JobPending {
		t.Fatalf("unexpected job: %+v", j)
	}
	if j.IdempotencyKey == nil || *j.IdempotencyKey == "" {
		t.Fatalf("expected idempotency key")
	}
}

func TestQueueNotifier_PropagatesStoreError(t *testing.T) {
	boom := errors.New("db down")
	q := NewQueueNotifier(&captureEnqueuer{err: boom}, 0)

	err := q.Notify(context.Background(), notifications.Notification{Kind: notifications.KindEventDeleted, EventID: "e1"})
	if !errors.Is(err, boom) {
		t.Fatalf("expected wrapped store error, got %v", err)
	}
}

func TestIdempotencyKey_FollowsEventVersion(t *testing.T) {
	at := time.Date(2024, 7, 10, 9, 0, 0, 0, time.UTC)
	base := notifications.Notification{Kind: notifications.KindEventPostponed, EventID: "e1", OccurredAt: at}

	v3, v4, retry := base, base, base
	v3.Version, v4.Version, retry.Version = 3, 4, 3
	retry.OccurredAt = at.Add(time.Second)

	if *idempotencyKey(v3) == *idempotencyKey(v4) {
		t.Fatalf("two versions changed in the same instant must not share a key")
	}
	if *idempotencyKey(v3) != *idempotencyKey(retry) {
		t.Fatalf("the same version must dedupe, got %s and %s", *idempotencyKey(v3), *idempotencyKey(retry))
	}
	if got := *idempotencyKey(v3); got != "event.postponed:e1:v3" {
		t.Fatalf("unexpected key %s", got)
	}
}
