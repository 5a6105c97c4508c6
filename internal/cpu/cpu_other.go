//go:build !linux

package cpu

func platformCount() int {
	return 0
}

// GetCPU always reports unavailable on non-Linux platforms; callrcu then
// sticks to the default-worker path, per spec.md §9.
func GetCPU() (cpu int, ok bool) {
	return 0, false
}

// SetAffinity is a no-op where sched_setaffinity(2) does not exist.
func SetAffinity(cpu int) error {
	return nil
}
