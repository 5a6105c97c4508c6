package wfqueue

import (
	"sync"
	"testing"
	"unsafe"
)

type payload struct {
	Node
	val int
}

// payloadOf recovers the enclosing payload from its embedded Node. Valid
// because Node is payload's first field, the same "container_of" pattern
// callrcu.Head uses on the real callback path.
func payloadOf(n *Node) *payload {
	return (*payload)(unsafe.Pointer(n))
}

func TestEmptyQueueDetachFails(t *testing.T) {
	q := New()
	if !q.Empty() {
		t.Fatal("new queue should be empty")
	}
	if _, ok := q.Detach(); ok {
		t.Fatal("Detach on empty queue should report ok=false")
	}
}

func TestEnqueueDetachFIFO(t *testing.T) {
	q := New()
	for i := 0; i < 10; i++ {
		p := &payload{val: i}
		q.Enqueue(&p.Node)
	}

	batch, ok := q.Detach()
	if !ok {
		t.Fatal("expected non-empty detach")
	}
	var got []int
	for {
		n, ok := batch.Next()
		if !ok {
			break
		}
		got = append(got, payloadOf(n).val)
	}
	if len(got) != 10 {
		t.Fatalf("got %d items, want 10", len(got))
	}
	for i, v := range got {
		if v != i {
			t.Fatalf("FIFO order violated: got[%d]=%d, want %d", i, v, i)
		}
	}
}

func TestSecondBatchIsIndependent(t *testing.T) {
	q := New()
	p1 := &payload{val: 1}
	q.Enqueue(&p1.Node)
	b1, ok := q.Detach()
	if !ok {
		t.Fatal("expected first batch")
	}
	if _, ok := q.Detach(); ok {
		t.Fatal("queue should be empty immediately after detach, before any new enqueue")
	}

	p2 := &payload{val: 2}
	q.Enqueue(&p2.Node)
	b2, ok := q.Detach()
	if !ok {
		t.Fatal("expected second batch")
	}

	n, ok := b1.Next()
	if !ok || payloadOf(n).val != 1 {
		t.Fatal("first batch should contain only the first node")
	}
	if _, ok := b1.Next(); ok {
		t.Fatal("first batch should be exhausted")
	}

	n, ok = b2.Next()
	if !ok || payloadOf(n).val != 2 {
		t.Fatal("second batch should contain only the second node")
	}
}

func TestConcurrentProducers(t *testing.T) {
	q := New()
	const producers = 8
	const perProducer = 500
	var wg sync.WaitGroup
	for i := 0; i < producers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perProducer; j++ {
				p := &payload{val: j}
				q.Enqueue(&p.Node)
			}
		}()
	}
	wg.Wait()

	batch, ok := q.Detach()
	if !ok {
		t.Fatal("expected non-empty detach")
	}
	count := 0
	for {
		if _, ok := batch.Next(); !ok {
			break
		}
		count++
	}
	if count != producers*perProducer {
		t.Fatalf("got %d callbacks, want %d", count, producers*perProducer)
	}
}
