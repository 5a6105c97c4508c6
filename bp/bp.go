// Package bp implements the bulletproof RCU flavor: no explicit reader
// registration, reader slots claimed lazily out of an mmap'd arena on
// first use, so the read-side API is safe to call from contexts (signal
// handlers, goroutines the application never registers ahead of time)
// that the QSBR flavor in package qsbr cannot support.
//
// Ported from original_source/urcu-bp.h. Unlike QSBR, bulletproof readers
// do real work in ReadLock/ReadUnlock (there is no periodic quiescent
// state announcement to lean on), so this flavor trades read-side cost
// for not requiring any reader bookkeeping from the caller.
package bp

import (
	"sync"
	"sync/atomic"

	internalbp "github.com/kolkov/go-urcu/internal/bp"
	"github.com/kolkov/go-urcu/internal/diag"
	"github.com/kolkov/go-urcu/internal/futex"
	"github.com/kolkov/go-urcu/internal/goid"
	"github.com/kolkov/go-urcu/internal/rcuinit"
)

const (
	online   = uint64(1) << 0
	phaseBit = uint64(1) << 1
)

var (
	arena    internalbp.Arena
	registry sync.Map // goroutine id (int64) -> *internalbp.Slot

	gpLock  sync.Mutex
	gpCtr   atomic.Uint64
	gpFutex int32
)

// localSlot returns the calling goroutine's reader slot, claiming one from
// the arena on first use. This is the per-call cost ReadLock and
// ReadUnlock pay beyond the counter store itself — a goid.Get (a
// runtime.Stack parse) and a sync.Map lookup keyed by the resulting
// goroutine id, standing in for the direct TLS access memory_map()'d
// slots give the C implementation.
func localSlot() *internalbp.Slot {
	id := goid.Get()
	if v, ok := registry.Load(id); ok {
		return v.(*internalbp.Slot)
	}
	s, err := arena.Claim()
	if err != nil {
		diag.Fatalf("bp: failed to claim reader slot: %v", err)
	}
	actual, _ := registry.LoadOrStore(id, s)
	return actual.(*internalbp.Slot)
}

// ReadLock enters a bulletproof read-side critical section. Safe to call
// without any prior registration.
func ReadLock() {
	s := localSlot()
	s.Ctr.Store(gpCtr.Load() | online)
}

// ReadUnlock exits a bulletproof read-side critical section begun with
// ReadLock.
func ReadUnlock() {
	s := localSlot()
	s.Ctr.Store(0)
	wakeUpGP()
}

func wakeUpGP() {
	atomic.StoreInt32(&gpFutex, 0)
	_ = futex.Wake(&gpFutex, 1)
}

// SynchronizeRCU flips the phase twice and after each flip blocks until no
// claimed reader slot is still inside a critical section begun under the
// previous phase, exactly as package qsbr's SynchronizeRCU does for
// registered readers —
// except the scan here walks the arena instead of an explicit registry
// list, since bulletproof readers never register.
func SynchronizeRCU() {
	gpLock.Lock()
	defer gpLock.Unlock()

	gpCtr.Store(gpCtr.Load() ^ phaseBit)
	waitForQuiescentState()
	gpCtr.Store(gpCtr.Load() ^ phaseBit)
	waitForQuiescentState()
}

func waitForQuiescentState() {
	for {
		if !anyLagging() {
			return
		}
		atomic.StoreInt32(&gpFutex, -1)
		_ = futex.Wait(&gpFutex, -1, rcuinit.GPPollInterval())
	}
}

func anyLagging() bool {
	cur := gpCtr.Load()
	lagging := false
	arena.Each(func(s *internalbp.Slot) {
		c := s.Ctr.Load()
		if c != 0 && (c&phaseBit) != (cur&phaseBit) {
			lagging = true
		}
	})
	return lagging
}

// BeforeFork must be called immediately before forking the process, if
// the embedder forks at all. Go provides no pthread_atfork equivalent, so
// unlike liburcu this is not installed automatically — the caller is
// responsible for invoking it around whatever fork mechanism (os/exec,
// syscall.ForkExec, a cgo fork) it uses. It takes the grace-period lock so
// no synchronize_rcu is mid-scan across the fork.
func BeforeFork() {
	gpLock.Lock()
}

// AfterForkParent releases the lock taken by BeforeFork in the parent
// process after a fork.
func AfterForkParent() {
	gpLock.Unlock()
}

// AfterForkChild releases the lock taken by BeforeFork and discards the
// registry, matching rcu_bp_after_fork_child's re-initialization: a
// forked child has exactly one live goroutine (the one that called
// fork), so every other entry in the registry refers to a thread that no
// longer exists on this side of the fork.
func AfterForkChild() {
	registry.Range(func(key, _ any) bool {
		registry.Delete(key)
		return true
	})
	gpLock.Unlock()
}
