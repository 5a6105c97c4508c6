// Package bp provides the growable, mmap'd slot arena the bulletproof RCU
// flavor claims reader slots from, mirroring the per-thread array urcu-bp
// mmaps via rcu_bp_register_thread's memory_map() in the original
// implementation. Using real mmap (rather than a Go slice) matters for the
// same reason it mattered there: the arena must survive a fork() without
// requiring the child to redo any bookkeeping, and it must never be moved
// by a Go slice reallocation out from under a reader holding a *Slot.
package bp

import (
	"sync"
	"sync/atomic"

	"github.com/kolkov/go-urcu/rcuarch"
)

// Slot is one bulletproof reader's published counter, sized to occupy
// exactly one cache line so concurrent claims by different readers never
// false-share.
type Slot struct {
	Ctr atomic.Uint64
	tid int64
	_   [rcuarch.CacheLineSize - 16]byte
}

const slotsPerChunk = 64

type chunk struct {
	mem   []byte
	slots []*Slot
}

// Arena is a growable collection of mmap'd Slots. The zero value is ready
// to use. Claim is not on any hot path (package bp calls it once per
// reader goroutine, at its first ReadLock; package bp never calls
// Release) so a mutex guarding chunk growth is an acceptable cost.
type Arena struct {
	mu     sync.Mutex
	chunks []*chunk
	free   []*Slot
	next   int // index of the next unclaimed slot in the last chunk
}

// Claim returns a fresh zeroed Slot, mmapping a new chunk if the arena has
// no free capacity.
func (a *Arena) Claim() (*Slot, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if n := len(a.free); n > 0 {
		s := a.free[n-1]
		a.free = a.free[:n-1]
		s.Ctr.Store(0)
		return s, nil
	}

	if len(a.chunks) == 0 || a.next >= slotsPerChunk {
		c, err := newChunk()
		if err != nil {
			return nil, err
		}
		a.chunks = append(a.chunks, c)
		a.next = 0
	}

	c := a.chunks[len(a.chunks)-1]
	s := c.slots[a.next]
	a.next++
	return s, nil
}

// Release returns s to the free list for reuse by a future Claim.
func (a *Arena) Release(s *Slot) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.free = append(a.free, s)
}

// Each walks every claimed slot across every chunk, including ones
// currently on the free list (a released slot reads as Ctr==0, which
// synchronize_rcu already treats as offline, so including it is harmless
// and keeps the scan allocation-free).
func (a *Arena) Each(f func(*Slot)) {
	a.mu.Lock()
	chunks := a.chunks
	n := a.next
	a.mu.Unlock()

	for ci, c := range chunks {
		limit := slotsPerChunk
		if ci == len(chunks)-1 {
			limit = n
		}
		for i := 0; i < limit; i++ {
			f(c.slots[i])
		}
	}
}
