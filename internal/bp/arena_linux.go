//go:build linux

package bp

import (
	"unsafe"

	"golang.org/x/sys/unix"
)

// newChunk mmaps a new anonymous region backing slotsPerChunk slots,
// matching memory_map() in urcu-bp's rcu_bp_register_thread — real mmap
// rather than a heap allocation so the region survives fork() with the
// same address on both sides, which is what lets the bulletproof flavor's
// fork hooks get away with not re-publishing any pointers.
func newChunk() (*chunk, error) {
	size := slotsPerChunk * int(unsafe.Sizeof(Slot{}))
	mem, err := unix.Mmap(-1, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_ANON|unix.MAP_PRIVATE)
	if err != nil {
		return nil, err
	}
	c := &chunk{mem: mem, slots: make([]*Slot, slotsPerChunk)}
	base := unsafe.Pointer(&mem[0])
	stride := unsafe.Sizeof(Slot{})
	for i := 0; i < slotsPerChunk; i++ {
		c.slots[i] = (*Slot)(unsafe.Add(base, uintptr(i)*stride))
	}
	return c, nil
}
