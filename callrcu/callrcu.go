// Package callrcu implements the deferred-callback service: a pool of
// worker goroutines, one per CPU by convention, that detach batches of
// queued callbacks from a wait-free MPSC queue and run each batch after a
// single shared grace period.
//
// Ported from original_source/urcu-call-rcu-impl.h. The worker loop,
// per-CPU directory, and fork-quiescence protocol (PAUSE/PAUSED) are kept;
// pthread_t thread handles and pthread_atfork hooks have no Go equivalent
// and are replaced with a done-channel handle and plain functions the
// embedder calls explicitly around its own fork, per SPEC_FULL.md §8.
package callrcu

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/kolkov/go-urcu/internal/cpu"
	"github.com/kolkov/go-urcu/internal/diag"
	"github.com/kolkov/go-urcu/internal/futex"
	"github.com/kolkov/go-urcu/internal/goid"
	"github.com/kolkov/go-urcu/internal/rcuinit"
	"github.com/kolkov/go-urcu/internal/wfqueue"
	"github.com/kolkov/go-urcu/qsbr"
	"github.com/kolkov/go-urcu/rcupointer"
)

// maxInFlightWorkerCreations bounds how many worker goroutines
// CreateAllCPUCallRCUData spins up concurrently, the Go analogue of
// create_all_cpu_call_rcu_data's sequential-but-retriable loop: when
// maxcpus is large this keeps a burst of per_cpu_call_rcu_data allocations
// from all landing in the same instant.
const maxInFlightWorkerCreations = 4

// ErrCPUSlotOccupied is returned by SetCPUCallRCUData when the target CPU slot
// is already occupied, mirroring call_rcu_data_free's EEXIST check in the
// original per-CPU table.
var ErrCPUSlotOccupied = errors.New("callrcu: cpu slot already has call_rcu data")

// Head is an intrusive callback node: embed it as the first field of a
// reclaimable object is not required, but the type itself must be reached
// only through CallRCU. Func runs once the grace period guaranteeing no
// reader can still observe the old version of whatever Head guards has
// elapsed.
type Head struct {
	node wfqueue.Node
	Func func(*Head)
}

func headOf(n *wfqueue.Node) *Head {
	return (*Head)(unsafeNodeToHead(n))
}

// RCUData is one worker's queue, flags, and futex word — the Go stand-in
// for struct call_rcu_data.
type RCUData struct {
	queue *wfqueue.Queue

	qlen     atomic.Int64
	futexW   int32
	realtime bool
	name     string

	stopRequested  atomic.Bool
	stopped        atomic.Bool
	pauseRequested atomic.Bool
	paused         atomic.Bool

	stoppedCh chan struct{}
}

// Option configures a worker created by CreateCallRCUData or
// CreateAllCPUCallRCUData.
type Option func(*RCUData)

// WithRealtime records that the caller wants this worker prioritized.
// liburcu best-effort promotes the thread to SCHED_FIFO; Go exposes no
// equivalent scheduling knob, so this is informational only and surfaces
// through diag.Warn the first time a realtime worker is created.
func WithRealtime() Option {
	return func(d *RCUData) { d.realtime = true }
}

// WithName records a label on the worker. No function in this package
// prints or returns the label.
func WithName(name string) Option {
	return func(d *RCUData) { d.name = name }
}

// CreateCallRCUData starts a new worker goroutine with its own queue and
// returns its handle. The caller is responsible for placing it in the
// directory (SetCPUCallRCUData, or simply keeping the handle itself) and
// eventually calling CallRCUDataFree.
func CreateCallRCUData(opts ...Option) *RCUData {
	d := &RCUData{
		queue:     wfqueue.New(),
		stoppedCh: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.realtime {
		diag.Warn("callrcu-realtime", "realtime call_rcu workers are not scheduled specially under the Go runtime")
	}
	go d.run()
	return d
}

// CallRCU enqueues head for deferred invocation on data's worker. If data
// is nil, GetCallRCUData resolves the worker the same way call_rcu(NULL,
// ...) does in the C API: thread override, then per-CPU slot, then the
// default worker. The resolution reads the per-CPU directory through
// dirPtr's rcu_dereference, the RSCS call_rcu(head, func) opens in the
// original to keep the table stable out from under a concurrent
// CallRCUDataFree/FreeAllCPUCallRCUData.
func CallRCU(data *RCUData, head *Head, fn func(*Head)) {
	if data == nil {
		data = GetCallRCUData()
	}
	head.Func = fn
	data.qlen.Add(1)
	data.queue.Enqueue(&head.node)
	atomic.StoreInt32(&data.futexW, 0)
	_ = futex.Wake(&data.futexW, 1)
}

// QueueLength reports the number of callbacks enqueued but not yet run,
// for diagnostics and tests.
func (d *RCUData) QueueLength() int64 { return d.qlen.Load() }

// Stop requests the worker shut down after draining its current queue and
// blocks until it has. Equivalent to call_rcu_data_free's STOP/STOPPED
// handshake.
func (d *RCUData) Stop() {
	d.stopRequested.Store(true)
	atomic.StoreInt32(&d.futexW, 0)
	_ = futex.Wake(&d.futexW, 1)
	<-d.stoppedCh
}

// Done returns a channel closed once the worker has fully stopped,
// standing in for joining the pthread_t GetCallRCUThread would have
// returned in the C API.
func (d *RCUData) Done() <-chan struct{} { return d.stoppedCh }

func (d *RCUData) run() {
	reader := qsbr.RegisterThread()
	defer qsbr.Unregister(reader)
	defer func() {
		d.stopped.Store(true)
		close(d.stoppedCh)
	}()

	for {
		if d.pauseRequested.Load() {
			d.paused.Store(true)
			for d.pauseRequested.Load() {
				time.Sleep(rcuinit.GPPollInterval())
			}
			d.paused.Store(false)
		}

		batch, ok := d.queue.Detach()
		if !ok {
			if d.stopRequested.Load() {
				return
			}
			reader.ThreadOffline()
			atomic.StoreInt32(&d.futexW, -1)
			_ = futex.Wait(&d.futexW, -1, rcuinit.GPPollInterval())
			reader.ThreadOnline()
			continue
		}

		// One grace period covers the whole detached batch, the
		// batching win call_rcu exists to provide: a writer firing a
		// thousand call_rcu()s pays for one synchronize_rcu(), not a
		// thousand.
		//
		// The worker is itself a registered, online QSBR reader, so it
		// must declare itself offline for the duration of the call:
		// otherwise synchronize_rcu's scan finds its own lagging
		// counter and waits on it forever, the same was_online dance
		// synchronize_rcu() does around its caller in the original.
		reader.ThreadOffline()
		qsbr.SynchronizeRCU()
		reader.ThreadOnline()
		for {
			n, ok := batch.Next()
			if !ok {
				break
			}
			h := headOf(n)
			h.Func(h)
			d.qlen.Add(-1)
		}
	}
}

// --- worker directory -------------------------------------------------
//
// The per-CPU table is RCU-protected rather than plain-mutex-guarded, per
// spec.md §4.4 and §5 invariant 4: readers (CallRCU, GetCPUCallRCUData,
// GetCallRCUData) resolve a worker through a single rcu_dereference of
// dirPtr with no lock held, exactly the no-op RSCS the QSBR flavor gives
// read-only table access. Writers serialize among themselves with dirMu
// (mirroring the original's registry mutex), build a new snapshot by
// copying the current map, publish it with rcu_assign_pointer, and — before
// a removed worker is stopped or its slot reused — call synchronize_rcu so
// any CallRCU that dereferenced the old snapshot a moment earlier has long
// finished its enqueue, per free_all_cpu_call_rcu_data's "synchronize_rcu
// to drain any call_rcu that may still hold a stale pointer".
type directory struct {
	perCPU   map[int]*RCUData
	defaultD *RCUData
}

var (
	dirMu     sync.Mutex
	dirPtr    rcupointer.Pointer[directory]
	perThread sync.Map // goroutine id (int64) -> *RCUData
)

func init() {
	dirPtr.Assign(&directory{perCPU: map[int]*RCUData{}})
}

func copyPerCPU(m map[int]*RCUData) map[int]*RCUData {
	out := make(map[int]*RCUData, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// CreateAllCPUCallRCUData creates one worker per CPU (honoring
// internal/rcuinit's RCU_MAX_CPUS override) and installs them in the
// per-CPU directory. The first worker created also becomes the default
// if none is set yet. Worker creation is fanned out across goroutines,
// bounded by maxInFlightWorkerCreations; a creation that loses the race
// for its slot to a concurrent caller stops its own worker and moves on,
// mirroring create_all_cpu_call_rcu_data's non-fatal EEXIST handling.
func CreateAllCPUCallRCUData(opts ...Option) {
	n := rcuinit.MaxCPUsOverride()
	if n == 0 {
		n = cpu.Count()
	}
	if n <= 0 {
		n = 1
	}
	cur := dirPtr.Dereference()
	var missing []int
	for i := 0; i < n; i++ {
		if _, ok := cur.perCPU[i]; !ok {
			missing = append(missing, i)
		}
	}

	created := make([]*RCUData, len(missing))
	sem := semaphore.NewWeighted(maxInFlightWorkerCreations)
	ctx := context.Background()
	var wg sync.WaitGroup
	for i := range missing {
		if err := sem.Acquire(ctx, 1); err != nil {
			diag.Fatalf("callrcu: semaphore acquire: %v", err)
		}
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			defer sem.Release(1)
			created[i] = CreateCallRCUData(opts...)
		}(i)
	}
	wg.Wait()

	dirMu.Lock()
	defer dirMu.Unlock()
	cur = dirPtr.Dereference()
	next := &directory{perCPU: copyPerCPU(cur.perCPU), defaultD: cur.defaultD}
	var losers []*RCUData
	for i, cpuIdx := range missing {
		d := created[i]
		if _, ok := next.perCPU[cpuIdx]; ok {
			losers = append(losers, d)
			continue
		}
		next.perCPU[cpuIdx] = d
		if next.defaultD == nil {
			next.defaultD = d
		}
	}
	dirPtr.Assign(next)
	for _, d := range losers {
		d.Stop()
	}
}

// SetCPUCallRCUData installs data as the worker for cpu, failing with
// ErrCPUSlotOccupied if one is already installed there.
func SetCPUCallRCUData(cpuIdx int, data *RCUData) error {
	dirMu.Lock()
	defer dirMu.Unlock()
	cur := dirPtr.Dereference()
	if _, ok := cur.perCPU[cpuIdx]; ok {
		return ErrCPUSlotOccupied
	}
	next := &directory{perCPU: copyPerCPU(cur.perCPU), defaultD: cur.defaultD}
	next.perCPU[cpuIdx] = data
	dirPtr.Assign(next)
	return nil
}

// GetCPUCallRCUData returns the worker installed for cpu, or nil.
func GetCPUCallRCUData(cpuIdx int) *RCUData {
	return dirPtr.Dereference().perCPU[cpuIdx]
}

// GetDefaultCallRCUData returns the process-wide default worker, lazily
// creating one on first use.
func GetDefaultCallRCUData() *RCUData {
	if d := dirPtr.Dereference().defaultD; d != nil {
		return d
	}
	dirMu.Lock()
	defer dirMu.Unlock()
	cur := dirPtr.Dereference()
	if cur.defaultD != nil {
		return cur.defaultD
	}
	d := CreateCallRCUData(WithName("default"))
	dirPtr.Assign(&directory{perCPU: cur.perCPU, defaultD: d})
	return d
}

// SetThreadCallRCUData installs data as the calling goroutine's override,
// taking priority over any per-CPU assignment in GetCallRCUData.
func SetThreadCallRCUData(data *RCUData) {
	perThread.Store(goid.Get(), data)
}

// GetThreadCallRCUData returns the calling goroutine's override, or nil.
func GetThreadCallRCUData() *RCUData {
	v, ok := perThread.Load(goid.Get())
	if !ok {
		return nil
	}
	return v.(*RCUData)
}

// GetCallRCUData resolves the worker CallRCU(nil, ...) would use: the
// calling goroutine's thread override, else its current CPU's worker,
// else the default worker (created lazily if needed).
func GetCallRCUData() *RCUData {
	if d := GetThreadCallRCUData(); d != nil {
		return d
	}
	if c, ok := cpu.GetCPU(); ok {
		if d := GetCPUCallRCUData(c); d != nil {
			return d
		}
	}
	return GetDefaultCallRCUData()
}

// CallRCUDataFree removes data from whichever directory slots reference
// it, waits a grace period so any CallRCU that dereferenced the old
// snapshot and is still enqueuing onto data has finished, and only then
// stops data's worker — invariant 4's "freeing the old worker requires
// waiting a subsequent grace period", applied at every call site instead
// of only in FreeAllCPUCallRCUData. A nil data is ignored.
func CallRCUDataFree(data *RCUData) {
	if data == nil {
		return
	}
	dirMu.Lock()
	cur := dirPtr.Dereference()
	next := &directory{perCPU: copyPerCPU(cur.perCPU), defaultD: cur.defaultD}
	for k, v := range next.perCPU {
		if v == data {
			delete(next.perCPU, k)
		}
	}
	if next.defaultD == data {
		next.defaultD = nil
	}
	dirPtr.Assign(next)
	dirMu.Unlock()

	perThread.Range(func(key, v any) bool {
		if v == data {
			perThread.Delete(key)
		}
		return true
	})

	qsbr.SynchronizeRCU()
	data.Stop()
}

// FreeAllCPUCallRCUData stops and removes every per-CPU worker.
func FreeAllCPUCallRCUData() {
	dirMu.Lock()
	cur := dirPtr.Dereference()
	workers := make([]*RCUData, 0, len(cur.perCPU))
	for _, d := range cur.perCPU {
		workers = append(workers, d)
	}
	dirPtr.Assign(&directory{perCPU: map[int]*RCUData{}, defaultD: cur.defaultD})
	dirMu.Unlock()

	qsbr.SynchronizeRCU()
	for _, d := range workers {
		CallRCUDataFree(d)
	}
}

// --- fork quiescence ---------------------------------------------------

// CallRCUBeforeFork pauses every known worker (per-CPU, default, and any
// thread overrides) and waits for each to acknowledge, so none is
// mid-batch when the process forks. Like package bp's fork hooks, Go has
// no pthread_atfork to install these automatically: the embedder calls
// this immediately before its own fork.
func CallRCUBeforeFork() {
	for _, d := range allKnownWorkers() {
		d.pauseRequested.Store(true)
	}
	for _, d := range allKnownWorkers() {
		for !d.paused.Load() && !d.stopped.Load() {
			time.Sleep(rcuinit.GPPollInterval())
		}
	}
}

// CallRCUAfterForkParent resumes every worker paused by CallRCUBeforeFork,
// to be called in the parent process after a fork.
func CallRCUAfterForkParent() {
	for _, d := range allKnownWorkers() {
		d.pauseRequested.Store(false)
	}
}

// CallRCUAfterForkChild discards every directory entry and re-seeds a
// fresh default worker for the child process: the goroutines backing the
// parent's workers do not exist on this side of the fork.
func CallRCUAfterForkChild() {
	fresh := CreateCallRCUData(WithName("default"))
	dirMu.Lock()
	dirPtr.Assign(&directory{perCPU: map[int]*RCUData{}, defaultD: fresh})
	dirMu.Unlock()
	perThread.Range(func(key, _ any) bool {
		perThread.Delete(key)
		return true
	})
}

func allKnownWorkers() []*RCUData {
	cur := dirPtr.Dereference()
	seen := map[*RCUData]bool{}
	var out []*RCUData
	add := func(d *RCUData) {
		if d != nil && !seen[d] {
			seen[d] = true
			out = append(out, d)
		}
	}
	add(cur.defaultD)
	for _, d := range cur.perCPU {
		add(d)
	}
	perThread.Range(func(_, v any) bool {
		add(v.(*RCUData))
		return true
	})
	return out
}
