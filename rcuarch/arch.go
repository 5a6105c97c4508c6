// Package rcuarch is the architecture/atomic capability shim: memory
// barriers, cache-line size, cpu-relax, and a monotonic cycle counter.
//
// spec.md treats per-architecture memory-barrier and atomic intrinsics as
// external collaborators ("assumed available as a capability set"). In Go,
// sync/atomic and the Go memory model already provide sequentially
// consistent atomics and acquire/release ordering on every supported
// platform, so this package does not re-implement barriers; it exposes the
// handful of values original_source/urcu/arch/x86.h hard-codes
// (CAA_CACHE_LINE_SIZE, caa_cpu_relax, caa_get_cycles) as portable Go
// equivalents.
package rcuarch

import (
	"runtime"
	"time"
)

// CacheLineSize is the assumed cache line size used to pad hot structures
// (worker descriptors, reader slots) against false sharing.
//
// original_source/urcu/arch/x86.h defines CAA_CACHE_LINE_SIZE as 128 for
// x86; this library targets the same conservative value on every platform
// since over-padding only costs memory, never correctness.
const CacheLineSize = 128

// CPURelax yields the current OS thread briefly, the Go analogue of the
// x86 "rep; nop" pause instruction used by caa_cpu_relax(). It is called
// from spin-wait loops (grace-period rescans, worker batch detach) so the
// Go scheduler can make progress on other goroutines sharing the same P.
func CPURelax() {
	runtime.Gosched()
}

// Cycles returns a monotonically increasing counter approximating
// caa_get_cycles() (rdtsc on x86). Go has no portable cycle-counter
// intrinsic, so this is a nanosecond timestamp, not a true cycle count.
// It is used for debug/statistics purposes only, never for correctness,
// matching the role caa_get_cycles() plays in liburcu: internal/wfqueue's
// Detach/Next use it to time how long they have spun waiting on a
// producer's in-flight link, logging a stall diagnostic past a threshold
// instead of spinning silently forever.
func Cycles() uint64 {
	return uint64(time.Now().UnixNano())
}
