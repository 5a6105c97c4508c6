//go:build !linux

package futex

import "time"

// Wait degrades to a bounded sleep on platforms without futex(2). This is
// always safe: every Wait caller in this module rescans the condition it
// cares about after Wait returns, so a plain timed sleep is observationally
// equivalent to a real futex wait, only without the possibility of an early
// wake reducing latency.
func Wait(addr *int32, val int32, timeout time.Duration) error {
	time.Sleep(timeout)
	return nil
}

// Wake is a no-op on platforms without futex(2): waiters are always bounded
// by their own timeout in Wait.
func Wake(addr *int32, n int) error {
	return nil
}
