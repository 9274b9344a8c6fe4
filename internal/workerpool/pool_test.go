package workerpool

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/artemis/bucket-migrate/internal/reconcile"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type countingDispatcher struct {
	calls int64
	fail  map[string]bool
}

func (d *countingDispatcher) Dispatch(ctx context.Context, work reconcile.MigrateObjectWork) (int64, error) {
	atomic.AddInt64(&d.calls, 1)
	if d.fail[work.Key] {
		return 0, errors.New("boom")
	}
	return 10, nil
}

func TestPoolDrainsPrimaryQueue(t *testing.T) {
	dispatcher := &countingDispatcher{fail: map[string]bool{}}
	counters := &Counters{}
	pool := New(4, 4, dispatcher, counters, zap.NewNop())

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		pool.RunPrimary(context.Background())
	}()

	for i := 0; i < 20; i++ {
		pool.EnqueuePrimary(context.Background(), reconcile.MigrateObjectWork{Key: "k"})
	}
	pool.ClosePrimary()
	wg.Wait()

	copied, bytesCopied, _ := counters.Snapshot()
	assert.Equal(t, int64(20), copied)
	assert.Equal(t, int64(200), bytesCopied)
}

func TestPoolRecordsFailuresWithoutKillingWorkers(t *testing.T) {
	dispatcher := &countingDispatcher{fail: map[string]bool{"bad": true}}
	counters := &Counters{}
	pool := New(2, 2, dispatcher, counters, zap.NewNop())

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		pool.RunPrimary(context.Background())
	}()

	pool.EnqueuePrimary(context.Background(), reconcile.MigrateObjectWork{Container: "c", Key: "bad"})
	pool.EnqueuePrimary(context.Background(), reconcile.MigrateObjectWork{Container: "c", Key: "good"})
	pool.ClosePrimary()
	wg.Wait()

	failed := pool.DrainErrors()
	require.Len(t, failed, 1)
	assert.Equal(t, "bad", failed[0].Key)

	copied, _, _ := counters.Snapshot()
	assert.Equal(t, int64(1), copied)
}

func TestPoolVerifyQueueDrainsAfterClose(t *testing.T) {
	dispatcher := &countingDispatcher{fail: map[string]bool{}}
	counters := &Counters{}
	pool := New(3, 3, dispatcher, counters, zap.NewNop())

	for i := 0; i < 10; i++ {
		pool.EnqueueVerify(reconcile.MigrateObjectWork{Key: "k"})
	}
	pool.CloseVerify()
	pool.RunVerify(context.Background())

	copied, _, _ := counters.Snapshot()
	assert.Equal(t, int64(10), copied)
}

func TestEnqueuePrimaryFallsBackInlineWhenFull(t *testing.T) {
	dispatcher := &countingDispatcher{fail: map[string]bool{}}
	counters := &Counters{}
	pool := New(1, 1, dispatcher, counters, zap.NewNop())

	// Capacity is 2*maxConns = 2; fill it without starting workers so the
	// next enqueue must fall back to inline dispatch.
	pool.EnqueuePrimary(context.Background(), reconcile.MigrateObjectWork{Key: "a"})
	pool.EnqueuePrimary(context.Background(), reconcile.MigrateObjectWork{Key: "b"})
	pool.EnqueuePrimary(context.Background(), reconcile.MigrateObjectWork{Key: "c"})

	copied, _, _ := counters.Snapshot()
	assert.Equal(t, int64(1), copied, "the third enqueue should have run inline")
}
