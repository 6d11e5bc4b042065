package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/geocoder89/clubevents/internal/clock"
	"github.com/geocoder89/clubevents/internal/lifecycle"
)

type fakeAdvancer struct {
	mu    sync.Mutex
	calls []time.Time
	err   error
}

func (f *fakeAdvancer) AdvanceStatuses(_ context.Context, now time.Time) (lifecycle.SweepResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, now)
	return lifecycle.SweepResult{}, f.err
}

func (f *fakeAdvancer) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type fakeLocker struct {
	held     bool
	released int
}

func (l *fakeLocker) TryLock(context.Context, string, time.Duration) (func(context.Context) error, error) {
	if l.held {
		return nil, errors.New("held")
	}
	return func(context.Context) error {
		l.released++
		return nil
	}, nil
}

func TestSweepOnce_UsesClock(t *testing.T) {
	now := time.Date(2024, 7, 15, 12, 1, 0, 0, time.UTC)
	adv := &fakeAdvancer{}
	s := NewSweeper(Config{}, adv, clock.NewFixed(now), nil, nil)

	if _, err := s.SweepOnce(context.Background()); err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if len(adv.calls) != 1 || !adv.calls[0].Equal(now) {
		t.Fatalf("expected one call at %s, got %v", now, adv.calls)
	}
}

func TestSweepOnce_Lease(t *testing.T) {
	tests := []struct {
		name      string
		held      bool
		wantCalls int
		wantRel   int
	}{
		{"lease acquired", false, 1, 1},
		{"lease held elsewhere", true, 0, 0},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			adv := &fakeAdvancer{}
			lk := &fakeLocker{held: tt.held}
			s := NewSweeper(Config{}, adv, clock.System{}, lk, nil)

			if _, err := s.SweepOnce(context.Background()); err != nil {
				t.Fatalf("sweep: %v", err)
			}
			if adv.count() != tt.wantCalls || lk.released != tt.wantRel {
				t.Fatalf("calls=%d released=%d, want %d/%d", adv.count(), lk.released, tt.wantCalls, tt.wantRel)
			}
		})
	}
}

func TestRun_SweepsImmediatelyAndKeepsGoingAfterErrors(t *testing.T) {
	adv := &fakeAdvancer{err: errors.New("db down")}
	s := NewSweeper(Config{Interval: 5 * time.Millisecond}, adv, clock.System{}, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	deadline := time.After(2 * time.Second)
	for adv.count() < 3 {
		select {
		case <-deadline:
			t.Fatalf("expected repeated sweeps, got %d", adv.count())
		case <-time.After(time.Millisecond):
		}
	}

	cancel()
	if err := <-done; err != nil {
		t.Fatalf("run: %v", err)
	}
}
