package futex

import (
	"sync/atomic"
	"testing"
	"time"
)

func TestWaitTimesOutWithoutWake(t *testing.T) {
	var word int32 = -1
	start := time.Now()
	if err := Wait(&word, -1, 20*time.Millisecond); err != nil {
		t.Fatalf("Wait returned error: %v", err)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Fatalf("Wait took implausibly long: %v", elapsed)
	}
}

func TestWakeUnblocksWaiter(t *testing.T) {
	var word int32 = -1
	var woke atomic.Bool
	done := make(chan struct{})
	go func() {
		_ = Wait(&word, -1, 2*time.Second)
		woke.Store(true)
		close(done)
	}()
	time.Sleep(20 * time.Millisecond)
	atomic.StoreInt32(&word, 0)
	_ = Wake(&word, 1)

	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("waiter never returned from Wait")
	}
	if !woke.Load() {
		t.Fatal("waiter goroutine did not observe wake")
	}
}
