package rcutest

import (
	"strings"
	"testing"
	"time"
)

func TestParseArgsDefaults(t *testing.T) {
	cfg, err := ParseArgs(nil)
	if err != nil {
		t.Fatalf("ParseArgs: %v", err)
	}
	if cfg.NREnqueuers != 1 || cfg.NRDequeuers != 1 {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
}

func TestParseArgsRejectsInvalidTag(t *testing.T) {
	if _, err := ParseArgs([]string{"-tag", "../../etc/passwd"}); err == nil {
		t.Fatal("expected an error for a malformed -tag value")
	}
}

func TestParseArgsAcceptsValidTag(t *testing.T) {
	cfg, err := ParseArgs([]string{"-tag", "smoke/run1", "-enqueuers", "2", "-dequeuers", "3"})
	if err != nil {
		t.Fatalf("ParseArgs: %v", err)
	}
	if cfg.Tag != "smoke/run1" || cfg.NREnqueuers != 2 || cfg.NRDequeuers != 3 {
		t.Fatalf("unexpected config: %+v", cfg)
	}
}

// TestRunProducesConsistentCounts exercises the S2 scenario: concurrent
// enqueuers/dequeuers against the RCU-protected lock-free queue, with
// call_rcu reclaiming every popped node. Every successful enqueue must be
// accounted for by either a successful dequeue during the run or the
// final drain.
func TestRunProducesConsistentCounts(t *testing.T) {
	cfg := &Config{
		NREnqueuers: 4,
		NRDequeuers: 4,
		Duration:    200 * time.Millisecond,
		Tag:         "unit-test",
	}
	res, err := Run(cfg)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.SuccessfulEnqueues != res.SuccessfulDequeues+res.EndDequeues {
		t.Fatalf("enqueue/dequeue accounting mismatch: %+v", res)
	}
	if res.NROps() != res.NREnqueues+res.NRDequeues {
		t.Fatalf("NROps() inconsistent with component counts: %+v", res)
	}
}

func TestResultStringMatchesSummaryFormat(t *testing.T) {
	r := &Result{
		Tag: "x", TestDur: 3 * time.Second, NREnqueuers: 2, WDelay: 10,
		NRDequeuers: 3, RDuration: 20, NREnqueues: 100, NRDequeues: 90,
		SuccessfulEnqueues: 100, SuccessfulDequeues: 90, EndDequeues: 10,
	}
	s := r.String()
	if !strings.HasPrefix(s, "SUMMARY ") {
		t.Fatalf("String() = %q, want SUMMARY prefix", s)
	}
	for _, want := range []string{"testdur", "nr_enqueuers", "wdelay", "nr_dequeuers", "rdur", "nr_enqueues", "nr_dequeues", "successful enqueues", "successful dequeues", "end_dequeues", "nr_ops"} {
		if !strings.Contains(s, want) {
			t.Fatalf("String() = %q, missing field %q", s, want)
		}
	}
}
