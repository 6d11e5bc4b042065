package lifecycle

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestKeyedMutex_SerializesSameKey(t *testing.T) {
	k := newKeyedMutex()
	ctx := context.Background()

	unlock, err := k.Lock(ctx, "a")
	if err != nil {
		t.Fatalf("lock: %v", err)
	}

	// other keys are independent
	unlockB, err := k.Lock(ctx, "b")
	if err != nil {
		t.Fatalf("lock b: %v", err)
	}
	unlockB()

	waitCtx, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	if _, err := k.Lock(waitCtx, "a"); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded while held, got %v", err)
	}

	unlock()
	unlock() // second call is a no-op

	unlock2, err := k.Lock(ctx, "a")
	if err != nil {
		t.Fatalf("relock: %v", err)
	}
	unlock2()

	if n := k.size(); n != 0 {
		t.Fatalf("expected empty lock table, got %d", n)
	}
}
