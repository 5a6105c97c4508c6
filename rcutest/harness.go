// Package rcutest is a stress-test harness mirroring
// original_source/tests/test_urcu_lfq.c: N enqueuer and M dequeuer
// goroutines hammering an RCU-protected lock-free queue, with popped
// nodes reclaimed through callrcu instead of being freed on the spot.
// This package is a development tool, not part of the library's
// contractual surface — its flags and SUMMARY line format may change
// without notice, exactly as spec.md §1 scopes the original test harness.
package rcutest

import (
	"context"
	"flag"
	"fmt"
	"sync/atomic"
	"time"

	"golang.org/x/mod/module"
	"golang.org/x/sync/errgroup"

	"github.com/kolkov/go-urcu/callrcu"
	"github.com/kolkov/go-urcu/internal/diag"
	"github.com/kolkov/go-urcu/qsbr"
	"github.com/kolkov/go-urcu/rcuarch"
)

// Config mirrors the C harness's argv grammar
// (nr_dequeuers nr_enqueuers duration [-a cpu]* [-c rdur] [-d wdelay] [-v]),
// expressed as stdlib flag.FlagSet options instead of positional argv.
// The CPU-affinity option (-a) has no counterpart here.
type Config struct {
	NREnqueuers int
	NRDequeuers int
	Duration    time.Duration
	WDelay      uint64 // enqueuer's post-publish spin, in cpu_relax loops
	RDuration   uint64 // dequeuer's post-pop spin, in cpu_relax loops
	Verbose     bool
	Tag         string
}

// ParseArgs parses a harness invocation. Tag, if non-empty, is validated
// with golang.org/x/mod/module's import-path token grammar — a modest,
// admittedly decorative reuse of the one dependency the teacher repo
// itself carried, documented in DESIGN.md.
func ParseArgs(args []string) (*Config, error) {
	fs := flag.NewFlagSet("rcutest", flag.ContinueOnError)
	enq := fs.Int("enqueuers", 1, "number of enqueuer goroutines")
	deq := fs.Int("dequeuers", 1, "number of dequeuer goroutines")
	dur := fs.Duration("dur", time.Second, "test duration")
	wdelay := fs.Uint64("wdelay", 0, "enqueuer post-publish delay, in cpu_relax loops")
	rdur := fs.Uint64("rdur", 0, "dequeuer post-pop delay, in cpu_relax loops")
	verbose := fs.Bool("v", false, "verbose output")
	tag := fs.String("tag", "", "free-form label included in the SUMMARY line")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if *tag != "" {
		if err := module.CheckImportPath(*tag); err != nil {
			return nil, fmt.Errorf("rcutest: invalid -tag %q: %w", *tag, err)
		}
	}
	return &Config{
		NREnqueuers: *enq,
		NRDequeuers: *deq,
		Duration:    *dur,
		WDelay:      *wdelay,
		RDuration:   *rdur,
		Verbose:     *verbose,
		Tag:         *tag,
	}, nil
}

// Result holds the same counters test_urcu_lfq.c accumulates across all
// enqueuer/dequeuer threads before printing its SUMMARY line.
type Result struct {
	Tag                string
	TestDur            time.Duration
	NREnqueuers        int
	WDelay             uint64
	NRDequeuers        int
	RDuration          uint64
	NREnqueues         uint64
	NRDequeues         uint64
	SuccessfulEnqueues uint64
	SuccessfulDequeues uint64
	EndDequeues        uint64
}

// NROps is the total operation count, matching nr_enqueues + nr_dequeues
// in the SUMMARY line.
func (r *Result) NROps() uint64 { return r.NREnqueues + r.NRDequeues }

// String formats r exactly in the column layout test_urcu_lfq.c's final
// printf uses, so existing tooling built around the C harness's output
// can parse this harness's results unmodified.
func (r *Result) String() string {
	tag := r.Tag
	if tag == "" {
		tag = "rcutest"
	}
	return fmt.Sprintf(
		"SUMMARY %-25s testdur %4d nr_enqueuers %3d wdelay %6d nr_dequeuers %3d "+
			"rdur %6d nr_enqueues %12d nr_dequeues %12d "+
			"successful enqueues %12d successful dequeues %12d "+
			"end_dequeues %d nr_ops %12d",
		tag, int(r.TestDur.Seconds()), r.NREnqueuers, r.WDelay, r.NRDequeuers,
		r.RDuration, r.NREnqueues, r.NRDequeues,
		r.SuccessfulEnqueues, r.SuccessfulDequeues,
		r.EndDequeues, r.NROps())
}

// Run drives cfg.NREnqueuers enqueuer goroutines and cfg.NRDequeuers
// dequeuer goroutines against a fresh lock-free queue for cfg.Duration,
// using golang.org/x/sync/errgroup to fan out and join them the way the
// rest of the retrieved pack does for "spawn many, collect one error."
func Run(cfg *Config) (*Result, error) {
	q := newLFQueue()
	var stop atomic.Bool

	enqCounts := make([][2]uint64, cfg.NREnqueuers)
	deqCounts := make([][2]uint64, cfg.NRDequeuers)

	g, _ := errgroup.WithContext(context.Background())

	for i := 0; i < cfg.NREnqueuers; i++ {
		i := i
		g.Go(func() error {
			reader := qsbr.RegisterThread()
			defer qsbr.Unregister(reader)
			var enqueues, successful uint64
			for !stop.Load() {
				n := &msNode{}
				reader.ReadLock()
				q.enqueue(n)
				reader.ReadUnlock()
				successful++
				if cfg.WDelay > 0 {
					spin(cfg.WDelay)
				}
				enqueues++
				reader.QuiescentState()
			}
			enqCounts[i] = [2]uint64{enqueues, successful}
			return nil
		})
	}
	for i := 0; i < cfg.NRDequeuers; i++ {
		i := i
		g.Go(func() error {
			reader := qsbr.RegisterThread()
			defer qsbr.Unregister(reader)
			var dequeues, successful uint64
			for !stop.Load() {
				reader.ReadLock()
				retired, ok := q.dequeue()
				reader.ReadUnlock()
				if ok {
					callrcu.CallRCU(nil, &retired.head, func(*callrcu.Head) {})
					successful++
				}
				dequeues++
				if cfg.RDuration > 0 {
					spin(cfg.RDuration)
				}
				reader.QuiescentState()
			}
			deqCounts[i] = [2]uint64{dequeues, successful}
			return nil
		})
	}

	time.Sleep(cfg.Duration)
	stop.Store(true)
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var totEnq, totSuccEnq, totDeq, totSuccDeq uint64
	for _, c := range enqCounts {
		totEnq += c[0]
		totSuccEnq += c[1]
	}
	for _, c := range deqCounts {
		totDeq += c[0]
		totSuccDeq += c[1]
	}

	endDequeues := q.drain()

	if totSuccEnq != totSuccDeq+endDequeues {
		diag.Warn("rcutest-discrepancy",
			"discrepancy between successful enqueues %d and successful dequeues + end dequeues %d",
			totSuccEnq, totSuccDeq+endDequeues)
	}

	return &Result{
		Tag:                cfg.Tag,
		TestDur:            cfg.Duration,
		NREnqueuers:        cfg.NREnqueuers,
		WDelay:             cfg.WDelay,
		NRDequeuers:        cfg.NRDequeuers,
		RDuration:          cfg.RDuration,
		NREnqueues:         totEnq,
		NRDequeues:         totDeq,
		SuccessfulEnqueues: totSuccEnq,
		SuccessfulDequeues: totSuccDeq,
		EndDequeues:        endDequeues,
	}, nil
}

func spin(n uint64) {
	for i := uint64(0); i < n; i++ {
		rcuarch.CPURelax()
	}
}
