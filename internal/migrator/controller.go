package migrator

import (
	"context"
	"time"

	"github.com/artemis/bucket-migrate/internal/config"
	"github.com/artemis/bucket-migrate/internal/largeobject"
	"github.com/artemis/bucket-migrate/internal/observability"
	"github.com/artemis/bucket-migrate/internal/reconcile"
	"github.com/artemis/bucket-migrate/internal/ring"
	"github.com/artemis/bucket-migrate/internal/statestore"
	"github.com/artemis/bucket-migrate/internal/storeapi"
	"github.com/artemis/bucket-migrate/internal/workerpool"
	"go.uber.org/zap"
)

// PassController drives one complete pass for a single configured
// migration (spec §4.6 "pass ordering", §4.7 "Migration Pass Controller",
// component C7): container bootstrap, the merge-join reconciliation, the
// primary/verify queue phases and their DLO/SLO follow-ups, and the final
// status checkpoint.
type PassController struct {
	Provider storeapi.Provider
	Clients  *storeapi.ClientPool
	Selector *ring.Selector
	Store    *statestore.Store
	Stats    observability.StatsSink
	Logger   *zap.Logger

	Workers     int
	MaxFileSize int64
	SegmentSize int64

	// Now supplies the pass's checkpoint timestamp; overridable in tests.
	Now func() time.Time
}

// PassResult summarizes one RunPass invocation.
type PassResult struct {
	Scanned int64
	Moved   int64
	Bytes   int64
}

func (c *PassController) now() time.Time {
	if c.Now != nil {
		return c.Now()
	}
	return time.Now()
}

// RunPass implements spec §4.7 for a single concrete (non-wildcard)
// migration: bootstrap the container, reconcile, drain the two-tier
// queues to completion, then checkpoint. Callers expand an all-buckets
// migration into one RunPass per discovered bucket — see RunAllBuckets.
func (c *PassController) RunPass(ctx context.Context, m config.Migration) (PassResult, error) {
	container := m.ContainerName()

	bootClient, err := c.Clients.Acquire(ctx)
	if err != nil {
		return PassResult{}, err
	}
	bootErr := bootstrapContainer(ctx, c.Provider, bootClient, m, c.Logger)
	if bootErr == nil {
		if err := propagateAccountMetadata(ctx, c.Provider, bootClient, m); err != nil {
			c.Logger.Warn("account metadata propagation failed", zap.String("migration", m.Key()), zap.Error(err))
		}
	}
	c.Clients.Release(bootClient)
	if bootErr != nil {
		return PassResult{}, bootErr
	}

	entry, _ := c.Store.Get(m)
	marker := entry.Status.Marker

	res, failed, err := c.runPassOnce(ctx, m, container, marker)
	if err != nil {
		return PassResult{}, err
	}
	logFailures(c.Logger, m, failed)

	// Full-pass restart (spec §4.3): a pass that scanned nothing against a
	// non-empty marker re-runs as a full-range pass, and the checkpoint is
	// marked reset=true so the two-generation counters rotate.
	reset := false
	finalMarker := res.nextMarker
	moved, scanned, bytesCopied := res.moved, res.scanned, res.bytesCopied
	if res.scanned == 0 && marker != "" {
		reset = true
		res2, failed2, err := c.runPassOnce(ctx, m, container, "")
		if err != nil {
			return PassResult{}, err
		}
		logFailures(c.Logger, m, failed2)
		moved += res2.moved
		bytesCopied += res2.bytesCopied
		scanned = res2.scanned
		finalMarker = res2.nextMarker
	}

	if err := c.Store.Save(m, finalMarker, moved, scanned, bytesCopied, reset); err != nil {
		return PassResult{}, err
	}

	c.Stats.Scanned(int(scanned))
	c.Stats.Bytes(bytesCopied)
	c.Stats.Copied(int(moved))

	return PassResult{Scanned: scanned, Moved: moved, Bytes: bytesCopied}, nil
}

// passOnceResult carries the raw counters and marker out of one
// reconcile+drain sequence, before the caller decides on full-pass restart.
type passOnceResult struct {
	scanned, moved, bytesCopied int64
	nextMarker                  string
}

// runPassOnce implements spec §4.6 steps 1-6 for one reconcile pass over
// one container: a fresh manifest set, container queue and worker pool
// per invocation, so a full-pass restart (marker="") starts from a clean
// slate.
func (c *PassController) runPassOnce(ctx context.Context, m config.Migration, container, marker string) (passOnceResult, []workerpool.FailedItem, error) {
	manifests := largeobject.NewManifestSet()
	containerQ := newContainerQueue()
	counters := &workerpool.Counters{}

	dispatcher := &objectDispatcher{
		provider:    c.Provider,
		clients:     c.Clients,
		account:     m.Account,
		maxFileSize: c.MaxFileSize,
		segmentSize: c.SegmentSize,
		manifests:   manifests,
		containerQ:  containerQ,
		logger:      c.Logger,
	}
	pool := workerpool.New(c.Workers, c.Workers+1, dispatcher, counters, c.Logger)

	deleteClient, err := c.Clients.Acquire(ctx)
	if err != nil {
		return passOnceResult{}, nil, err
	}
	deleter := &reconcile.InternalDeleter{Client: deleteClient, Logger: c.Logger}
	reconciler := &reconcile.Reconciler{Selector: c.Selector, Enqueuer: pool, Deleter: deleter, Account: m.Account}

	primaryDone := make(chan struct{})
	go func() {
		pool.RunPrimary(ctx)
		close(primaryDone)
	}()

	abort := func(err error) (passOnceResult, []workerpool.FailedItem, error) {
		pool.ClosePrimary()
		<-primaryDone
		c.Clients.Release(deleteClient)
		return passOnceResult{}, nil, err
	}

	// Step 1: merge-join remote vs local, classifying every key.
	nameClient, err := c.Clients.Acquire(ctx)
	if err != nil {
		return abort(err)
	}
	result, err := c.mergeJoin(ctx, reconciler, nameClient, m.AWSBucket, container, m.Prefix, marker, false)
	c.Clients.Release(nameClient)
	if err != nil {
		return abort(err)
	}
	counters.AddScanned(result.Scanned)
	c.logEtagConflicts(m, container, result.EtagConflicts, reconciler, pool)

	// Step 2: wait for the primary queue to drain.
	pool.WaitPrimaryIdle()

	// Steps 3-4: container-queue-driven DLO segment syncs and pending
	// manifest copies, looped to a fixpoint since draining a manifest can
	// itself surface nested DLO references.
	if err := c.drainContainerQueueAndManifests(ctx, reconciler, pool, containerQ, manifests, m, counters, false); err != nil {
		return abort(err)
	}

	pool.ClosePrimary()
	<-primaryDone

	// Step 5: re-point workers at the verify queue and redrain steps 3-4
	// against it — primary is closed by now, so any list_all=true reruns
	// or manifest copies discovered during verify dispatch land back on
	// the verify queue instead (see DESIGN.md "verify-phase redrain").
	verifyDone := make(chan struct{})
	go func() {
		pool.RunVerify(ctx)
		close(verifyDone)
	}()
	pool.WaitVerifyIdle()

	verifyReconciler := &reconcile.Reconciler{Selector: c.Selector, Enqueuer: forceVerifyEnqueuer{pool}, Deleter: deleter, Account: m.Account}
	if err := c.drainContainerQueueAndManifests(ctx, verifyReconciler, pool, containerQ, manifests, m, counters, true); err != nil {
		pool.CloseVerify()
		<-verifyDone
		c.Clients.Release(deleteClient)
		return passOnceResult{}, nil, err
	}

	pool.CloseVerify()
	<-verifyDone
	c.Clients.Release(deleteClient)

	moved, bytesCopied, scanned := counters.Snapshot()
	return passOnceResult{scanned: scanned, moved: moved, bytesCopied: bytesCopied, nextMarker: result.NextMarker}, pool.DrainErrors(), nil
}

// drainContainerQueueAndManifests implements spec §4.6 steps 3-4: process
// every pending (segment-container, prefix) discovered from DLO manifests
// via a full-list rerun, then enqueue every manifest that can now be
// safely copied, repeating until both are empty. toVerify selects
// EnqueueVerify-direct delivery for manifest copies (step 5's redrain);
// otherwise they go through EnqueuePrimary.
func (c *PassController) drainContainerQueueAndManifests(ctx context.Context, reconciler *reconcile.Reconciler, pool *workerpool.Pool, containerQ *containerQueue, manifests *largeobject.ManifestSet, m config.Migration, counters *workerpool.Counters, toVerify bool) error {
	for {
		progressed := false

		for {
			entries := containerQ.Drain()
			if len(entries) == 0 {
				break
			}
			progressed = true
			for _, e := range entries {
				client, err := c.Clients.Acquire(ctx)
				if err != nil {
					return err
				}
				result, err := c.mergeJoin(ctx, reconciler, client, e.Container, e.Container, e.Prefix, "", true)
				c.Clients.Release(client)
				if err != nil {
					return err
				}
				counters.AddScanned(result.Scanned)
			}
			if toVerify {
				pool.WaitVerifyIdle()
			} else {
				pool.WaitPrimaryIdle()
			}
		}

		pending := manifests.Drain()
		if len(pending) > 0 {
			progressed = true
			for _, me := range pending {
				work := reconcile.MigrateObjectWork{AWSBucket: me.AWSBucket, Container: me.Container, Key: me.Key, ListingTS: me.Timestamp, ManifestUpload: true}
				if toVerify {
					pool.EnqueueVerify(work)
				} else {
					pool.EnqueuePrimary(ctx, work)
				}
			}
			if toVerify {
				pool.WaitVerifyIdle()
			} else {
				pool.WaitPrimaryIdle()
			}
		}

		if !progressed {
			return nil
		}
	}
}

// mergeJoin builds fresh remote/local listers and runs one
// reconcile.Reconciler.Reconcile invocation.
func (c *PassController) mergeJoin(ctx context.Context, reconciler *reconcile.Reconciler, client storeapi.InternalClient, bucket, container, prefix, marker string, listAll bool) (reconcile.Result, error) {
	remote := newRemoteLister(c.Provider, bucket, prefix)
	local := newLocalLister(client, reconciler.Account, container, prefix)
	return reconciler.Reconcile(ctx, bucket, container, remote, local, listAll, marker)
}

// logEtagConflicts implements the "same-time-different-etag" branch of
// spec §4.3: re-enqueue the object so the large-object handler's
// classification on the next GET performs the deep comparison spec §4.5
// describes, and log the occurrence since it usually means the object's
// composition changed without its timestamp moving.
func (c *PassController) logEtagConflicts(m config.Migration, container string, names []string, reconciler *reconcile.Reconciler, pool *workerpool.Pool) {
	for _, name := range names {
		c.Logger.Warn("etag conflict at matching timestamp, re-queuing for deep comparison",
			zap.String("migration", m.Key()), zap.String("key", name))
		work := reconcile.MigrateObjectWork{AWSBucket: m.AWSBucket, Container: container, Key: name}
		if reconciler.Selector.IsPrimary(m.Account, container, name) {
			pool.EnqueuePrimary(context.Background(), work)
		} else {
			pool.EnqueueVerify(work)
		}
	}
}

func logFailures(logger *zap.Logger, m config.Migration, failed []workerpool.FailedItem) {
	for _, f := range failed {
		logger.Error("migration item failed",
			zap.String("migration", m.Key()),
			zap.String("container", f.Container),
			zap.String("key", f.Key),
			zap.Error(f.Err))
		observability.WorkerErrors.WithLabelValues(f.Container, "dispatch").Inc()
	}
}

// forceVerifyEnqueuer adapts a Pool so both Enqueuer methods deliver to the
// verify queue — used once the primary queue has been closed (spec §4.6
// step 5's redrain of steps 3-4 against verify work).
type forceVerifyEnqueuer struct {
	pool *workerpool.Pool
}

func (f forceVerifyEnqueuer) EnqueuePrimary(ctx context.Context, work reconcile.MigrateObjectWork) {
	f.pool.EnqueueVerify(work)
}

func (f forceVerifyEnqueuer) EnqueueVerify(work reconcile.MigrateObjectWork) {
	f.pool.EnqueueVerify(work)
}
