//go:build linux

package futex

import (
	"time"
	"unsafe"

	"golang.org/x/sys/unix"
)

// Wait blocks while *addr == val, for at most timeout. It returns nil both
// when woken by a matching Wake and when the timeout elapses — callers
// always rescan state afterward (the same pattern call_rcu_wait() and
// urcu-qsbr's rescan loop use), so a spurious or timed-out return is never
// distinguished from a real wake.
func Wait(addr *int32, val int32, timeout time.Duration) error {
	ts := unix.NsecToTimespec(timeout.Nanoseconds())
	_, _, errno := unix.Syscall6(
		unix.SYS_FUTEX,
		uintptr(unsafe.Pointer(addr)),
		uintptr(unix.FUTEX_WAIT),
		uintptr(val),
		uintptr(unsafe.Pointer(&ts)),
		0, 0,
	)
	if errno != 0 && errno != unix.EAGAIN && errno != unix.EINTR && errno != unix.ETIMEDOUT {
		return errno
	}
	return nil
}

// Wake wakes up to n waiters blocked in Wait on addr.
func Wake(addr *int32, n int) error {
	_, _, errno := unix.Syscall6(
		unix.SYS_FUTEX,
		uintptr(unsafe.Pointer(addr)),
		uintptr(unix.FUTEX_WAKE),
		uintptr(n),
		0, 0, 0,
	)
	if errno != 0 {
		return errno
	}
	return nil
}
