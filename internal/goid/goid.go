// Package goid extracts the current goroutine's numeric id.
//
// RCU's reader registry needs a stable per-reader key the way liburcu keys
// its struct rcu_reader by pthread_t. Go exposes no public goroutine-id API,
// so this package uses the same runtime.Stack-parsing technique the
// retrieved racedetector teacher falls back to on platforms without its
// (disabled-by-default) assembly stub. Unlike that teacher, this package
// has no assembly fast path. The QSBR flavor reads the goroutine id only
// at RegisterThread, and callrcu at its per-goroutine override lookups
// (including CallRCU with a nil worker), so the ~1.5us stack-parse cost
// never lands on the QSBR read-side critical section. The bulletproof
// flavor's bp.ReadLock and bp.ReadUnlock do call Get on every call.
package goid

import "runtime"

// Get returns the current goroutine's id.
//
// The id is stable for the lifetime of the goroutine and is never reused
// while that goroutine is alive, which is all the reader registry and
// call_rcu's thread-local worker override require.
func Get() int64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	return parse(buf[:n])
}

// parse extracts the numeric id from a "goroutine 123 [running]:" header.
func parse(buf []byte) int64 {
	const prefix = "goroutine "
	if len(buf) < len(prefix) || string(buf[:len(prefix)]) != prefix {
		return 0
	}
	var id int64
	for i := len(prefix); i < len(buf); i++ {
		c := buf[i]
		if c < '0' || c > '9' {
			break
		}
		id = id*10 + int64(c-'0')
	}
	return id
}
