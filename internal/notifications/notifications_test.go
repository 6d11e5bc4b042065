package notifications

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"
)

type fakeNotifier struct {
	fn    func(ctx context.Context, n Notification) error
	calls int
}

func (f *fakeNotifier) Notify(ctx context.Context, n Notification) error {
	f.calls++
	if f.fn == nil {
		return nil
	}
	return f.fn(ctx, n)
}

var errProvider = errors.New("provider down")

func postponed() Notification {
	return Notification{Kind: KindEventPostponed, EventID: "e1", Status: "postponed"}
}

func TestMultiNotifier_DeliversToAllAndJoinsErrors(t *testing.T) {
	ok := &fakeNotifier{}
	bad := &fakeNotifier{fn: func(context.Context, Notification) error { return errProvider }}

	m := NewMultiNotifier(ok, nil, bad)
	err := m.Notify(context.Background(), postponed())

	if !errors.Is(err, errProvider) {
		t.Fatalf("expected joined provider error, got %v", err)
	}
	if ok.calls != 1 || bad.calls != 1 {
		t.Fatalf("every target should be called once, got ok=%d bad=%d", ok.calls, bad.calls)
	}
}

func TestProtectedNotifier_OpensAndRecovers(t *testing.T) {
	now := time.Date(2024, 7, 10, 9, 0, 0, 0, time.UTC)
	failing := true
	inner := &fakeNotifier{fn: func(context.Context, Notification) error {
		if failing {
			return errProvider
		}
		return nil
	}}

	p := NewProtectedNotifier(inner, ProtectedNotifierConfig{
		FailureThreshold: 2,
		Cooldown:         time.Minute,
		Now:              func() time.Time { return now },
	})
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if err := p.Notify(ctx, postponed()); !errors.Is(err, errProvider) {
			t.Fatalf("call %d: expected provider error, got %v", i, err)
		}
	}
	if p.State() != CircuitOpen {
		t.Fatalf("expected open circuit, got %s", p.State())
	}

	if err := p.Notify(ctx, postponed()); !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("expected fail-fast, got %v", err)
	}
	if inner.calls != 2 {
		t.Fatalf("open circuit must not reach the provider, got %d calls", inner.calls)
	}

	// a failed trial reopens
	now = now.Add(2 * time.Minute)
	if err := p.Notify(ctx, postponed()); !errors.Is(err, errProvider) {
		t.Fatalf("expected trial to fail, got %v", err)
	}
	if p.State() != CircuitOpen {
		t.Fatalf("failed trial should reopen, got %s", p.State())
	}

	now = now.Add(2 * time.Minute)
	failing = false
	if err := p.Notify(ctx, postponed()); err != nil {
		t.Fatalf("expected trial to succeed, got %v", err)
	}
	if p.State() != CircuitClosed {
		t.Fatalf("expected closed circuit, got %s", p.State())
	}
}

func TestProtectedNotifier_TimesOutSlowProvider(t *testing.T) {
	slow := &fakeNotifier{fn: func(ctx context.Context, _ Notification) error {
		<-ctx.Done()
		return ctx.Err()
	}}

	p := NewProtectedNotifier(slow, ProtectedNotifierConfig{Timeout: 20 * time.Millisecond})

	start := time.Now()
	err := p.Notify(context.Background(), postponed())
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
	if time.Since(start) > time.Second {
		t.Fatalf("timeout was not enforced")
	}
}

func TestLogNotifier(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(slog.NewJSONHandler(&buf, nil))

	n := NewLogNotifier(log, LogNotifierConfig{})
	in := Notification{
		Kind:           KindRegistrationCreated,
		EventID:        "e1",
		RegistrationID: "r1",
		Email:          "sam@club.test",
	}
	if err := n.Notify(context.Background(), in); err != nil {
		t.Fatalf("notify: %v", err)
	}

	out := buf.String()
	for _, want := range []string{`"kind":"registration.created"`, `"registration_id":"r1"`, `"event_id":"e1"`} {
		if !strings.Contains(out, want) {
			t.Fatalf("log line missing %s: %s", want, out)
		}
	}

	failing := NewLogNotifier(log, LogNotifierConfig{Fail: true})
	if err := failing.Notify(context.Background(), in); !errors.Is(err, ErrSimulatedOutage) {
		t.Fatalf("expected simulated outage, got %v", err)
	}
}

func TestKind(t *testing.T) {
	if !KindEventCompleted.IsValid() || Kind("event.unknown").IsValid() {
		t.Fatalf("unexpected kind validity")
	}
	if !KindRegistrationCreated.IsRegistration() || KindEventCancelled.IsRegistration() {
		t.Fatalf("unexpected registration classification")
	}
}
