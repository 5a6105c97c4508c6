package callrcu

import (
	"unsafe"

	"github.com/kolkov/go-urcu/internal/wfqueue"
)

// unsafeNodeToHead recovers the enclosing *Head from a pointer to its
// embedded wfqueue.Node, the same container_of pattern
// internal/wfqueue's tests use on nodes returned by Batch.Next. Valid
// because node is Head's first field.
func unsafeNodeToHead(n *wfqueue.Node) unsafe.Pointer {
	return unsafe.Pointer(n)
}
