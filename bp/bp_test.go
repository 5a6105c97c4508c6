package bp

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/kolkov/go-urcu/rcupointer"
)

func TestSynchronizeRCUReturnsImmediatelyWithNoReaders(t *testing.T) {
	done := make(chan struct{})
	go func() {
		SynchronizeRCU()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("SynchronizeRCU with no claimed slots should return promptly")
	}
}

func TestReadLockUnlockWithoutRegistration(t *testing.T) {
	ReadLock()
	ReadUnlock()
}

func TestPublishReclaimUnderConcurrentReaders(t *testing.T) {
	type box struct{ val int }
	var ptr rcupointer.Pointer[box]
	ptr.Assign(&box{val: 0})

	const readers = 8
	const itersPerReader = 5000
	var wg sync.WaitGroup
	var observedNil atomic.Int64

	for i := 0; i < readers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < itersPerReader; j++ {
				ReadLock()
				if ptr.Dereference() == nil {
					observedNil.Add(1)
				}
				ReadUnlock()
			}
		}()
	}

	const writes = 50
	for i := 1; i <= writes; i++ {
		ptr.Xchg(&box{val: i})
		SynchronizeRCU()
	}
	wg.Wait()

	if observedNil.Load() != 0 {
		t.Fatalf("readers observed a nil published pointer %d times", observedNil.Load())
	}
}

func TestForkHooksRoundTrip(t *testing.T) {
	ReadLock()
	ReadUnlock()

	BeforeFork()
	AfterForkChild()

	// Registry must accept fresh claims after a simulated fork.
	ReadLock()
	ReadUnlock()
}
