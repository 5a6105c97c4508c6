// Package qsbr implements the Quiescent-State-Based Reclamation flavor of
// RCU: the lowest-overhead reader path, at the cost of requiring every
// reader to periodically announce a quiescent state.
//
// Ported from original_source/urcu/static/urcu-qsbr.h and the synchronize_rcu
// algorithm described in spec.md §4.1. The reader-side functions
// (ReadLock/ReadUnlock) are true no-ops in this port, exactly as
// _rcu_read_lock()/_rcu_read_unlock() are in the C header — the entire
// safety argument rests on QuiescentState/ThreadOffline/ThreadOnline being
// called periodically, never on ReadLock/ReadUnlock doing any work.
//
// Go has no thread-local storage, so spec.md §9's re-architecture note
// ("per-thread state maps to a thread-local handle") is implemented
// literally: RegisterThread returns a *Reader handle that the calling
// goroutine keeps and calls its methods on directly, replacing liburcu's
// URCU_TLS(rcu_reader) access with an explicit receiver.
package qsbr

import (
	"sync"
	"sync/atomic"

	"github.com/kolkov/go-urcu/internal/futex"
	"github.com/kolkov/go-urcu/internal/goid"
	"github.com/kolkov/go-urcu/internal/rcuinit"
)

// Bit layout of Reader.ctr and the global phase counter, matching
// RCU_GP_ONLINE / RCU_GP_CTR in urcu-qsbr-static.h.
const (
	online   = uint64(1) << 0
	phaseBit = uint64(1) << 1
)

// Reader is a registered reader's slot: the Go handle standing in for
// liburcu's per-thread struct rcu_reader. Obtain one with RegisterThread
// and release it with Unregister when the owning goroutine is done
// entering read-side critical sections.
type Reader struct {
	ctr     atomic.Uint64
	waiting atomic.Bool
	tid     int64

	// registry list links, guarded by registryMu.
	prev, next *Reader
}

var (
	registryMu   sync.Mutex
	registryHead *Reader
	gpCtr        atomic.Uint64
	gpFutex      int32
)

// RegisterThread registers the calling goroutine as an RCU reader and
// returns its handle. The returned Reader may immediately enter read-side
// critical sections via ReadLock/ReadUnlock.
func RegisterThread() *Reader {
	r := &Reader{tid: goid.Get()}
	registryMu.Lock()
	r.ctr.Store(online | (gpCtr.Load() & phaseBit))
	insertLocked(r)
	registryMu.Unlock()
	return r
}

// Unregister removes r from the registry. r must not be used afterward.
func Unregister(r *Reader) {
	registryMu.Lock()
	removeLocked(r)
	registryMu.Unlock()
	r.ctr.Store(0)
}

func insertLocked(r *Reader) {
	r.next = registryHead
	if registryHead != nil {
		registryHead.prev = r
	}
	r.prev = nil
	registryHead = r
}

func removeLocked(r *Reader) {
	if r.prev != nil {
		r.prev.next = r.next
	} else {
		registryHead = r.next
	}
	if r.next != nil {
		r.next.prev = r.prev
	}
	r.prev, r.next = nil, nil
}

// ReadLock marks the start of a read-side critical section. It compiles
// down to nothing: the QSBR contract places all of the cost on
// QuiescentState, not here.
func (r *Reader) ReadLock() {}

// ReadUnlock marks the end of a read-side critical section. Also a no-op.
func (r *Reader) ReadUnlock() {}

// QuiescentState announces that r is not currently inside (and is not
// about to resume) a read-side critical section. QSBR readers must call
// this periodically outside of any RSCS; it is the sole mechanism by which
// a grace period can complete.
func (r *Reader) QuiescentState() {
	r.ctr.Store(online | (gpCtr.Load() & phaseBit))
	wakeUpGP(r)
}

// ThreadOffline brackets the start of a period during which r will not
// enter any read-side critical section (e.g. a blocking syscall or a long
// idle wait), allowing synchronize_rcu to treat it as already quiescent.
func (r *Reader) ThreadOffline() {
	r.ctr.Store(0)
	wakeUpGP(r)
}

// ThreadOnline ends a period begun by ThreadOffline, allowing r to enter
// read-side critical sections again.
func (r *Reader) ThreadOnline() {
	r.ctr.Store(online | (gpCtr.Load() & phaseBit))
}

// wakeUpGP wakes a synchronizer waiting on this reader, mirroring
// wake_up_gp() in urcu-qsbr-static.h.
func wakeUpGP(r *Reader) {
	if !r.waiting.Load() {
		return
	}
	r.waiting.Store(false)
	atomic.StoreInt32(&gpFutex, 0)
	_ = futex.Wake(&gpFutex, 1)
}

// SynchronizeRCU blocks until every reader that was in (or about to enter)
// a read-side critical section when this call began has exited it or
// announced a quiescent state. Returns immediately if no readers are
// registered (spec.md §8 boundary behavior).
func SynchronizeRCU() {
	registryMu.Lock()
	defer registryMu.Unlock()

	gpCtr.Store(gpCtr.Load() ^ phaseBit)
	// Two passes: the first drives every already-registered reader
	// through a quiescent state of the new phase; the second, after a
	// second flip, catches a reader that slipped into the registry or
	// resumed online right at the first flip, per spec.md §4.1.
	waitForQuiescentState()
	gpCtr.Store(gpCtr.Load() ^ phaseBit)
	waitForQuiescentState()
}

// waitForQuiescentState scans the registry (caller holds registryMu) and
// blocks until every online reader has observed the current phase.
func waitForQuiescentState() {
	for {
		lagging := collectLagging()
		if len(lagging) == 0 {
			return
		}
		for _, r := range lagging {
			r.waiting.Store(true)
		}
		atomic.StoreInt32(&gpFutex, -1)
		_ = futex.Wait(&gpFutex, -1, rcuinit.GPPollInterval())
	}
}

func collectLagging() []*Reader {
	cur := gpCtr.Load()
	var lagging []*Reader
	for r := registryHead; r != nil; r = r.next {
		c := r.ctr.Load()
		if c != 0 && (c&phaseBit) != (cur&phaseBit) {
			lagging = append(lagging, r)
		}
	}
	return lagging
}
