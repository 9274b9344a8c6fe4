package workerpool

import (
	"context"
	"sync"

	"github.com/artemis/bucket-migrate/internal/reconcile"
	"go.uber.org/zap"
)

// Dispatcher performs the actual per-item migration work. Pool only
// sequences queues/goroutines/counters; Dispatcher supplies the domain
// logic (spec §4.6 "workers goroutines/threads run a loop").
type Dispatcher interface {
	Dispatch(ctx context.Context, work reconcile.MigrateObjectWork) (bytesCopied int64, err error)
}

// FailedItem is one entry on the error queue the controller drains after
// join (spec §4.6 "Error handling within workers").
type FailedItem struct {
	Container string
	Key       string
	Err       error
}

// Counters accumulates per-pass totals under a mutex, folded in once per
// worker on exit (spec §5 "Per-worker locals") and once per item for work
// EnqueuePrimary dispatches inline.
type Counters struct {
	mu      sync.Mutex
	Copied  int64
	Bytes   int64
	Scanned int64
}

func (c *Counters) addLocal(copied, bytesCopied int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Copied += copied
	c.Bytes += bytesCopied
}

// AddScanned increments the scanned counter; called directly by the
// enumerator, not folded from worker locals (spec §4.3 "scanned counter").
func (c *Counters) AddScanned(n int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Scanned += n
}

// Snapshot returns a copy of the current totals.
func (c *Counters) Snapshot() (copied, bytesCopied, scanned int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.Copied, c.Bytes, c.Scanned
}

// Pool is the bounded-primary/unbounded-verify two-tier worker pool (spec
// §4.6, C6): N goroutines per phase, a sync.WaitGroup per phase, and
// per-worker local counters folded into Counters under a mutex on exit.
type Pool struct {
	workers    int
	maxConns   int
	dispatcher Dispatcher
	counters   *Counters
	logger     *zap.Logger

	primary chan reconcile.MigrateObjectWork
	verify  *unboundedQueue

	primaryWG sync.WaitGroup
	verifyWG  sync.WaitGroup

	errMu sync.Mutex
	errs  []FailedItem
}

// New builds a Pool. primary is bounded to 2*maxConns (spec §4.6 "Queue
// sizes"); verify is unbounded since its work is already materialized.
func New(workers, maxConns int, dispatcher Dispatcher, counters *Counters, logger *zap.Logger) *Pool {
	return &Pool{
		workers:    workers,
		maxConns:   maxConns,
		dispatcher: dispatcher,
		counters:   counters,
		logger:     logger,
		primary:    make(chan reconcile.MigrateObjectWork, 2*maxConns),
		verify:     newUnboundedQueue(),
	}
}

// EnqueuePrimary implements reconcile.Enqueuer: a non-blocking send to the
// bounded primary queue, falling back to dispatching inline when full
// (spec §9 open question: "best-effort enqueue with inline fallback").
// primaryWG tracks every item from enqueue to dispatch completion (inline
// or worker-drained), so a controller driving several reconciliation
// phases over the same pool can WaitPrimaryIdle between phases without
// closing the queue.
func (p *Pool) EnqueuePrimary(ctx context.Context, work reconcile.MigrateObjectWork) {
	p.primaryWG.Add(1)
	select {
	case p.primary <- work:
		return
	default:
	}
	defer p.primaryWG.Done()
	p.runInline(ctx, work)
}

// EnqueueVerify implements reconcile.Enqueuer for the unbounded verify
// queue — this always succeeds without blocking materially.
func (p *Pool) EnqueueVerify(work reconcile.MigrateObjectWork) {
	p.verifyWG.Add(1)
	p.verify.Push(work)
}

// WaitPrimaryIdle blocks until every item enqueued on the primary queue so
// far has been dispatched, without closing the queue — used between pass
// phases (spec §4.6 "Wait for primary queue drained").
func (p *Pool) WaitPrimaryIdle() { p.primaryWG.Wait() }

// WaitVerifyIdle is WaitPrimaryIdle's verify-queue counterpart.
func (p *Pool) WaitVerifyIdle() { p.verifyWG.Wait() }

func (p *Pool) runInline(ctx context.Context, work reconcile.MigrateObjectWork) {
	bytesCopied, err := p.dispatcher.Dispatch(ctx, work)
	if err != nil {
		p.recordFailure(work.Container, work.Key, err)
		return
	}
	p.counters.addLocal(1, bytesCopied)
}

func (p *Pool) recordFailure(container, key string, err error) {
	p.errMu.Lock()
	defer p.errMu.Unlock()
	p.errs = append(p.errs, FailedItem{Container: container, Key: key, Err: err})
}

// DrainErrors returns and clears the accumulated error queue (spec §4.6
// "the controller drains after join and logs").
func (p *Pool) DrainErrors() []FailedItem {
	p.errMu.Lock()
	defer p.errMu.Unlock()
	out := p.errs
	p.errs = nil
	return out
}

// RunPrimary starts p.workers goroutines draining the primary queue and
// blocks until ClosePrimary has been called and every queued item is
// dispatched (spec §4.6 step 1-2: "wait for primary queue drained").
// Callers typically run this in its own goroutine alongside the
// reconciler feeding EnqueuePrimary.
func (p *Pool) RunPrimary(ctx context.Context) {
	var wg sync.WaitGroup
	wg.Add(p.workers)
	for i := 0; i < p.workers; i++ {
		go func() {
			defer wg.Done()
			var localCopied, localBytes int64
			for work := range p.primary {
				bytesCopied, err := p.dispatcher.Dispatch(ctx, work)
				if err != nil {
					p.recordFailure(work.Container, work.Key, err)
					p.primaryWG.Done()
					continue
				}
				localCopied++
				localBytes += bytesCopied
				p.primaryWG.Done()
			}
			p.counters.addLocal(localCopied, localBytes)
		}()
	}
	wg.Wait()
}

// RunVerify starts p.workers goroutines draining the verify queue. Call
// after RunPrimary's phase and any container-queue/manifest reruns
// complete (spec §4.6 step 5).
func (p *Pool) RunVerify(ctx context.Context) {
	var wg sync.WaitGroup
	wg.Add(p.workers)
	for i := 0; i < p.workers; i++ {
		go func() {
			defer wg.Done()
			var localCopied, localBytes int64
			for {
				work, ok := p.verify.Next()
				if !ok {
					break
				}
				bytesCopied, err := p.dispatcher.Dispatch(ctx, work)
				if err != nil {
					p.recordFailure(work.Container, work.Key, err)
					p.verifyWG.Done()
					continue
				}
				localCopied++
				localBytes += bytesCopied
				p.verifyWG.Done()
			}
			p.counters.addLocal(localCopied, localBytes)
		}()
	}
	wg.Wait()
}

// ClosePrimary sends the end-of-work signal on the primary queue (closing
// the channel acts as the sentinel for every worker, spec §4.6 "A sentinel
// nil per worker drains the pool").
func (p *Pool) ClosePrimary() { close(p.primary) }

// CloseVerify closes the verify queue once no more verify work will be
// enqueued.
func (p *Pool) CloseVerify() { p.verify.Close() }
