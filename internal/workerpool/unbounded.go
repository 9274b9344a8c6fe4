package workerpool

import (
	"sync"

	"github.com/artemis/bucket-migrate/internal/reconcile"
)

// unboundedQueue is a grow-without-bound FIFO, used for the verify queue
// (spec §4.6 "verify queue is unbounded (already materialized work)"). A
// plain Go channel would need a fixed capacity; this backs the same
// get/put/close contract with a mutex + condition variable over a slice.
type unboundedQueue struct {
	mu     sync.Mutex
	cond   *sync.Cond
	items  []reconcile.MigrateObjectWork
	closed bool
}

func newUnboundedQueue() *unboundedQueue {
	q := &unboundedQueue{}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// Push appends an item; never blocks.
func (q *unboundedQueue) Push(item reconcile.MigrateObjectWork) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.items = append(q.items, item)
	q.cond.Signal()
}

// Next blocks until an item is available or the queue is closed and
// drained, mirroring a channel receive's (value, ok) shape.
func (q *unboundedQueue) Next() (reconcile.MigrateObjectWork, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for len(q.items) == 0 && !q.closed {
		q.cond.Wait()
	}
	if len(q.items) == 0 {
		return reconcile.MigrateObjectWork{}, false
	}
	item := q.items[0]
	q.items = q.items[1:]
	return item, true
}

// Close marks the queue closed; pending items still drain via Next, then
// every blocked Next call returns ok=false.
func (q *unboundedQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
	q.cond.Broadcast()
}
