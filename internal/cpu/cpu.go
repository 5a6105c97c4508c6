// Package cpu wraps sched_getcpu(2)/sched_setaffinity(2), the capability
// callrcu's per-CPU worker table and affinity pinning are built on.
//
// spec.md §9 calls these out explicitly as a capability that "when absent,
// the per-CPU path degrades to the default-worker path" — exactly what this
// package's Linux/non-Linux split implements.
package cpu

// Count returns the platform CPU count callrcu sizes its per-CPU table
// from. It does not read RCU_MAX_CPUS; callrcu.CreateAllCPUCallRCUData
// checks that override (see internal/rcuinit) before calling Count.
// Returns 0 when the platform cannot report a CPU count, the Go analogue
// of liburcu's sysconf(_SC_NPROCESSORS_CONF) returning <= 0.
var Count = platformCount
