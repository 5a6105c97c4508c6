package rcutest

import (
	"github.com/kolkov/go-urcu/callrcu"
	"github.com/kolkov/go-urcu/rcupointer"
)

// msNode is one link of the lock-free queue below, ported from
// original_source/tests/test_urcu_lfq.c's struct cds_lfq_node_rcu usage:
// a Michael & Scott non-blocking FIFO with RCU protecting reclamation of
// a popped node against a concurrent reader still chasing next pointers
// through it.
type msNode struct {
	next rcupointer.Pointer[msNode]
	head callrcu.Head
}

// lfQueue is the harness's stand-in for cds_lfq_queue_rcu: multi-producer,
// multi-consumer, every enqueue/dequeue bracketed by the caller in a
// read-side critical section and every popped node reclaimed through
// call_rcu rather than freed immediately.
type lfQueue struct {
	head rcupointer.Pointer[msNode]
	tail rcupointer.Pointer[msNode]
}

// newLFQueue returns an empty queue seeded with a dummy sentinel node,
// exactly as cds_lfq_init_rcu does.
func newLFQueue() *lfQueue {
	dummy := &msNode{}
	q := &lfQueue{}
	q.head.Assign(dummy)
	q.tail.Assign(dummy)
	return q
}

// enqueue appends n to the tail. Caller must hold an RCU read lock
// (qsbr.ReadLock/ReadUnlock around the call), matching cds_lfq_enqueue_rcu.
func (q *lfQueue) enqueue(n *msNode) {
	n.next.Assign(nil)
	for {
		tail := q.tail.Dereference()
		next := tail.next.Dereference()
		if tail != q.tail.Dereference() {
			continue
		}
		if next == nil {
			if tail.next.Cmpxchg(nil, n) {
				q.tail.Cmpxchg(tail, n)
				return
			}
		} else {
			q.tail.Cmpxchg(tail, next)
		}
	}
}

// dequeue pops the front of the queue, returning the retired dummy node
// (safe to hand to call_rcu for deferred reclamation) and true on
// success, or (nil, false) if the queue was empty. Caller must hold an
// RCU read lock around the call, matching cds_lfq_dequeue_rcu.
func (q *lfQueue) dequeue() (*msNode, bool) {
	for {
		head := q.head.Dereference()
		tail := q.tail.Dereference()
		next := head.next.Dereference()
		if head != q.head.Dereference() {
			continue
		}
		if head == tail {
			if next == nil {
				return nil, false
			}
			q.tail.Cmpxchg(tail, next)
			continue
		}
		if q.head.Cmpxchg(head, next) {
			return head, true
		}
	}
}

// drain empties whatever remains in the queue without any RCU protection,
// valid only once every enqueuer/dequeuer goroutine has stopped — the Go
// equivalent of test_end()'s post-join cleanup pass.
func (q *lfQueue) drain() (count uint64) {
	for {
		head := q.head.Dereference()
		next := head.next.Dereference()
		if next == nil {
			return
		}
		q.head.Assign(next)
		count++
	}
}
