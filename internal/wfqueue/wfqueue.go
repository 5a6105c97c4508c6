// Package wfqueue implements a wait-free multi-producer, single-consumer
// queue with a dummy sentinel node, the structure call_rcu workers use to
// collect callbacks (struct cds_wfq_queue in liburcu).
//
// Enqueue is wait-free with respect to other producers: it never blocks,
// loops, or retries, matching cds_wfq_enqueue(). The single consumer detaches
// the entire queue in one atomic step (Detach), then walks the detached
// list; a producer that is mid-Enqueue when Detach runs may leave a
// momentarily-unresolved link, which Batch.Next briefly spins on, exactly as
// the `while (cbs->next == NULL && ...) poll(NULL, 0, 1)` loop in
// call_rcu_thread does.
//
// Nodes are meant to be embedded as the first field of the caller's payload
// type (callrcu.Head embeds Node), so that enqueuing a callback costs no
// extra allocation — the intrusive-node adaptation spec.md §9 calls for in
// place of liburcu's function-pointer-plus-offset trick.
package wfqueue

import (
	"sync/atomic"

	"github.com/kolkov/go-urcu/internal/diag"
	"github.com/kolkov/go-urcu/rcuarch"
)

// stuckLinkNanos bounds how long Detach/Next will spin on a producer's
// not-yet-visible next pointer before logging a stall diagnostic. 50ms is
// far beyond any ordinary scheduling delay between Enqueue's two stores
// (rcuarch.Cycles() is a nanosecond timestamp, so this compares directly).
const stuckLinkNanos = 50_000_000

// Node is the intrusive link. Embed it as the first field of a payload
// struct and pass its address to Enqueue.
type Node struct {
	next atomic.Pointer[Node]
}

// Queue is a wait-free MPSC queue. The zero value is not usable; use New.
type Queue struct {
	head  atomic.Pointer[Node]
	tail  atomic.Pointer[atomic.Pointer[Node]]
	dummy Node
}

// New returns an empty, ready-to-use Queue.
func New() *Queue {
	q := &Queue{}
	q.head.Store(&q.dummy)
	q.tail.Store(&q.dummy.next)
	return q
}

// Enqueue appends n to the tail of the queue. Wait-free: one xchg, one
// store, no loop.
func (q *Queue) Enqueue(n *Node) {
	n.next.Store(nil)
	oldSlot := q.tail.Swap(&n.next)
	oldSlot.Store(n)
}

// Empty reports whether the queue looks empty. Racy with concurrent
// Enqueue/Detach by design (matches cds_wfq_empty's best-effort semantics);
// callers that need a precise answer should use Detach.
func (q *Queue) Empty() bool {
	t := q.tail.Load()
	return t == &q.head || t == &q.dummy.next
}

// Batch is a detached snapshot of everything enqueued before the matching
// Detach call. Drain it with Next until it reports done.
type Batch struct {
	cursor   *Node
	tailSlot *atomic.Pointer[Node]
	dummy    *Node
}

// Detach atomically takes everything currently enqueued and resets the
// queue to empty, mirroring the batch swap at the top of call_rcu_thread's
// loop (`cbs_tail = uatomic_xchg(&crdp->cbs.tail, &crdp->cbs.head)`).
// Callbacks enqueued after Detach returns land in a fresh, independent
// batch. Returns ok=false if nothing was enqueued since the queue was
// created or last detached.
func (q *Queue) Detach() (batch *Batch, ok bool) {
	if q.Empty() {
		return nil, false
	}
	var first *Node
	start := rcuarch.Cycles()
	warned := false
	for {
		first = q.head.Load()
		if first != nil {
			break
		}
		rcuarch.CPURelax()
		if !warned && rcuarch.Cycles()-start > stuckLinkNanos {
			diag.Warn("wfqueue-detach-stall", "Detach still waiting on a producer's in-flight head link")
			warned = true
		}
	}
	q.head.Store(nil)
	oldTailSlot := q.tail.Swap(&q.head)
	return &Batch{cursor: first, tailSlot: oldTailSlot, dummy: &q.dummy}, true
}

// Next returns the next payload node in the batch, skipping the internal
// dummy sentinel, or ok=false once the batch is exhausted.
func (b *Batch) Next() (n *Node, ok bool) {
	for {
		if b.cursor == nil {
			return nil, false
		}
		start := rcuarch.Cycles()
		warned := false
		for b.cursor.next.Load() == nil && &b.cursor.next != b.tailSlot {
			rcuarch.CPURelax()
			if !warned && rcuarch.Cycles()-start > stuckLinkNanos {
				diag.Warn("wfqueue-next-stall", "Next still waiting on a producer's in-flight next link")
				warned = true
			}
		}
		cur := b.cursor
		b.cursor = cur.next.Load()
		if cur == b.dummy {
			continue
		}
		return cur, true
	}
}
