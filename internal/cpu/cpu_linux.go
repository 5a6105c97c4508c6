//go:build linux

package cpu

import (
	"runtime"
	"unsafe"

	"golang.org/x/sys/unix"
)

func platformCount() int {
	return runtime.NumCPU()
}

// GetCPU reports the CPU the calling OS thread is currently running on,
// mirroring sched_getcpu(3). ok is false when the syscall is unavailable,
// in which case callers must fall back to the default-worker path.
func GetCPU() (cpu int, ok bool) {
	var c int
	_, _, errno := unix.Syscall(unix.SYS_GETCPU, uintptr(unsafe.Pointer(&c)), 0, 0)
	if errno != 0 {
		return 0, false
	}
	return c, true
}

// SetAffinity pins the calling OS thread to the given CPU, mirroring
// set_thread_cpu_affinity() in urcu-call-rcu-impl.h. Callers must have
// already called runtime.LockOSThread, since Go goroutines otherwise
// migrate freely between OS threads.
func SetAffinity(cpu int) error {
	if cpu < 0 {
		return nil
	}
	var set unix.CPUSet
	set.Zero()
	set.Set(cpu)
	return unix.SchedSetaffinity(0, &set)
}
