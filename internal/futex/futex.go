// Package futex wraps the Linux futex(2) syscall for the wait/wake sleep
// substrate that grace-period synchronizers and call_rcu workers block on.
//
// liburcu's urcu/futex.h and the FUTEX_WAIT/FUTEX_WAKE calls scattered
// through urcu-call-rcu-impl.h and urcu-qsbr-static.h are the direct model:
// a synchronizer arms gp_futex = -1 and FUTEX_WAITs on it with a bounded
// timeout; a reader passing through a quiescent state clears the flag and
// FUTEX_WAKEs. This package exposes that same {Wait, Wake} capability,
// following the platform-capability design note in spec.md §9: "Futex-backed
// sleep ... port should abstract behind a platform capability
// {sleep_until_wake, wake_one} with futex as the default on Linux."
//
// On non-Linux platforms (futex_other.go) the capability degrades to a
// poll-sleep loop, which is always correct (just slower to wake) since
// every caller treats a Wait timeout identically to a real wake.
package futex

import "time"

// DefaultTimeout is the bounded wait liburcu uses throughout
// (poll(NULL, 0, 10) and the ~10ms FUTEX_WAIT timeout in urcu-qsbr).
const DefaultTimeout = 10 * time.Millisecond
