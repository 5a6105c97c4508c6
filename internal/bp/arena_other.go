//go:build !linux

package bp

import "unsafe"

// newChunk falls back to a plain heap allocation on platforms without the
// mmap(MAP_ANON) semantics urcu-bp relies on. Fork-safety of the arena
// itself is therefore Linux-only; bp.AfterForkChild still clears the
// per-goroutine slot registry on every platform.
func newChunk() (*chunk, error) {
	mem := make([]byte, slotsPerChunk*int(unsafe.Sizeof(Slot{})))
	c := &chunk{mem: mem, slots: make([]*Slot, slotsPerChunk)}
	base := unsafe.Pointer(&mem[0])
	stride := unsafe.Sizeof(Slot{})
	for i := 0; i < slotsPerChunk; i++ {
		c.slots[i] = (*Slot)(unsafe.Add(base, uintptr(i)*stride))
	}
	return c, nil
}
