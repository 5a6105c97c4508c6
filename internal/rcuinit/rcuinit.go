// Package rcuinit reads the handful of environment-tunable knobs this
// library exposes in place of liburcu's compile-time/sysconf tunables.
package rcuinit

import (
	"os"
	"strconv"
	"time"
)

// GPPollInterval is the bounded wait used by grace-period scans and the
// call_rcu worker's idle sleep, overridable via RCU_GP_POLL_MS. liburcu
// hard-codes this at ~10ms (poll(NULL, 0, 10) and the FUTEX_WAIT timeout
// in urcu-qsbr); this library keeps the same default but lets tests and
// latency-sensitive embedders tune it.
func GPPollInterval() time.Duration {
	if v := os.Getenv("RCU_GP_POLL_MS"); v != "" {
		if ms, err := strconv.Atoi(v); err == nil && ms > 0 {
			return time.Duration(ms) * time.Millisecond
		}
	}
	return 10 * time.Millisecond
}

// MaxCPUsOverride returns a forced CPU count for callrcu's per-CPU table,
// honoring RCU_MAX_CPUS. Returns 0 (meaning "use the platform count") if
// unset or invalid. This is the environment-tunable analogue of liburcu's
// sysconf(_SC_NPROCESSORS_CONF), useful in containers with a fractional
// CPU quota where the kernel-reported core count overstates usable
// parallelism.
func MaxCPUsOverride() int {
	if v := os.Getenv("RCU_MAX_CPUS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return 0
}
