package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/geocoder89/clubevents/internal/jobs"
	"github.com/geocoder89/clubevents/internal/notifications"
	"github.com/geocoder89/clubevents/internal/repo/memory"
)

type fakeNotifier struct {
	mu    sync.Mutex
	calls []notifications.Notification
	err   error
}

func (f *fakeNotifier) Notify(_ context.Context, n notifications.Notification) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, n)
	return f.err
}

func fixedNow() time.Time { return time.Date(2024, 7, 10, 9, 0, 0, 0, time.UTC) }

func enqueue(t *testing.T, repo *memory.JobsRepo, maxAttempts int) jobs.Job {
	t.Helper()

	q := jobs.NewQueueNotifier(repo, maxAttempts)
	err := q.Notify(context.Background(), notifications.Notification{
		Kind:       notifications.KindEventPostponed,
		EventID:    "e1",
		Date:       "2024-07-18",
		OccurredAt: fixedNow(),
	})
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	j, err := repo.ClaimNext(context.Background(), "peek")
	if err != nil {
		t.Fatalf("peek: %v", err)
	}
	// release the peek claim
	if _, err := repo.RequeueStaleProcessing(context.Background(), -time.Second); err != nil {
		t.Fatalf("requeue: %v", err)
	}
	return j
}

func newTestWorker(repo JobsRepository, n notifications.Notifier) *Worker {
	return New(Config{
		WorkerID: "test",
		Backoff:  func(int) time.Duration { return time.Minute },
		Now:      fixedNow,
	}, repo, n, nil, nil, nil)
}

func TestProcessOne_Delivers(t *testing.T) {
	repo := memory.NewJobsRepo(fixedNow)
	j := enqueue(t, repo, 3)
	n := &fakeNotifier{}
	w := newTestWorker(repo, n)

	processed, err := w.ProcessOne(context.Background())
	if err != nil || !processed {
		t.Fatalf("expected processed job, got processed=%v err=%v", processed, err)
	}

	if len(n.calls) != 1 || n.calls[0].EventID != "e1" || n.calls[0].Kind != notifications.KindEventPostponed {
		t.Fatalf("unexpected deliveries: %+v", n.calls)
	}

	got, _ := repo.Get(context.Background(), j.ID)
	if got.Status != jobs.JobDone {
		t.Fatalf("expected done, got %s", got.Status)
	}

	processed, err = w.ProcessOne(context.Background())
	if err != nil || processed {
		t.Fatalf("queue should be empty, processed=%v err=%v", processed, err)
	}
}

func TestProcessOne_RetriesThenDeadLetters(t *testing.T) {
	repo := memory.NewJobsRepo(fixedNow)
	j := enqueue(t, repo, 2)
	n := &fakeNotifier{err: errors.New("nats unavailable")}
	w := newTestWorker(repo, n)
	ctx := context.Background()

	if _, err := w.ProcessOne(ctx); err != nil {
		t.Fatalf("first attempt: %v", err)
	}

	got, _ := repo.Get(ctx, j.ID)
	if got.Status != jobs.JobPending || got.Attempts != 1 || !got.RunAt.Equal(fixedNow().Add(time.Minute)) {
		t.Fatalf("expected rescheduled job, got %+v", got)
	}

	// not runnable until backoff elapses
	if processed, _ := w.ProcessOne(ctx); processed {
		t.Fatalf("job should wait for its backoff")
	}

	late := memory.NewJobsRepo(func() time.Time { return fixedNow().Add(2 * time.Minute) })
	if _, err := late.Create(ctx, got); err != nil {
		t.Fatalf("copy job: %v", err)
	}
	w = newTestWorker(late, n)
	if _, err := w.ProcessOne(ctx); err != nil {
		t.Fatalf("second attempt: %v", err)
	}

	got, _ = late.Get(ctx, j.ID)
	if got.Status != jobs.JobFailed || got.LastError == nil {
		t.Fatalf("expected dead-lettered job, got %+v", got)
	}
	if s := w.Metrics(); s.DeadLettered != 1 {
		t.Fatalf("expected one dead letter, got %+v", s)
	}
}

func TestProcessOne_BadPayloadIsNotRetried(t *testing.T) {
	repo := memory.NewJobsRepo(fixedNow)
	ctx := context.Background()

	bad, err := jobs.NewJob(jobs.CreateRequest{
		Type:    jobs.JobRegistrationConfirmation,
		Payload: []byte(`{"eventId":"e1"}`),
	}, fixedNow())
	if err != nil {
		t.Fatalf("new job: %v", err)
	}
	if _, err := repo.Create(ctx, bad); err != nil {
		t.Fatalf("create: %v", err)
	}

	n := &fakeNotifier{}
	w := newTestWorker(repo, n)
	if _, err := w.ProcessOne(ctx); err != nil {
		t.Fatalf("process: %v", err)
	}

	got, _ := repo.Get(ctx, bad.ID)
	if got.Status != jobs.JobFailed {
		t.Fatalf("expected failed, got %s", got.Status)
	}
	if len(n.calls) != 0 {
		t.Fatalf("invalid payload must not be delivered")
	}
}

func TestRun_StopsOnCancel(t *testing.T) {
	repo := memory.NewJobsRepo(fixedNow)
	enqueue(t, repo, 3)
	n := &fakeNotifier{}

	w := New(Config{PollInterval: 5 * time.Millisecond, Concurrency: 2, Now: fixedNow}, repo, n, nil, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	deadline := time.After(2 * time.Second)
	for {
		n.mu.Lock()
		delivered := len(n.calls)
		n.mu.Unlock()
		if delivered == 1 {
			break
		}
		select {
		case <-deadline:
			t.Fatalf("job was not delivered")
		case <-time.After(5 * time.Millisecond):
		}
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("run: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("worker did not stop")
	}
	if w.Ready() {
		t.Fatalf("worker should report not ready after shutdown")
	}
}

func TestExponentialBackoff(t *testing.T) {
	tests := []struct {
		attempt int
		min     time.Duration
	}{
		{0, 2 * time.Second},
		{1, 4 * time.Second},
		{2, 8 * time.Second},
		{20, 5 * time.Minute},
	}
	for _, tt := range tests {
		got := ExponentialBackoff(tt.attempt)
		if got < tt.min || got >= tt.min+250*time.Millisecond {
			t.Fatalf("attempt %d: got %v, want [%v, %v)", tt.attempt, got, tt.min, tt.min+250*time.Millisecond)
		}
	}
}

func TestProcessOne_GuardSkipsDeliveredDuplicates(t *testing.T) {
	repo := memory.NewJobsRepo(fixedNow)
	ctx := context.Background()
	guard := memory.NewDeliveriesRepo(0, fixedNow)
	n := &fakeNotifier{}

	j := enqueue(t, repo, 3)
	if err := guard.TryStart(ctx, jobs.DeliveryKey(j), "earlier-job"); err != nil {
		t.Fatalf("seed guard: %v", err)
	}
	_ = guard.MarkSent(ctx, jobs.DeliveryKey(j))

	w := newTestWorker(repo, n)
	w.UseDeliveryGuard(guard)

	if _, err := w.ProcessOne(ctx); err != nil {
		t.Fatalf("process: %v", err)
	}
	if len(n.calls) != 0 {
		t.Fatalf("already delivered notification was sent again")
	}
	got, _ := repo.Get(ctx, j.ID)
	if got.Status != jobs.JobDone {
		t.Fatalf("expected done, got %s", got.Status)
	}
}
