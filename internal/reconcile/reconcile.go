package reconcile

import (
	"context"

	"github.com/artemis/bucket-migrate/internal/storeapi"
)

// Lister yields a sorted-by-name stream of listing entries, terminated by a
// nil entry (spec §4.3 "terminal None sentinel"). The migrator package's
// remoteLister is driven by repeated paginated list_objects calls bounded by
// work_chunk; its localLister walks the full local listing.
type Lister interface {
	Next(ctx context.Context) (*storeapi.ListingEntry, error)
}

// Selector answers "does this node drain this object from the primary
// queue" (spec §4.1). Satisfied by *ring.Selector.
type Selector interface {
	IsPrimary(account, container, object string) bool
}

// Enqueuer accepts classified work. Primary enqueue is expected to be
// best-effort with an inline-execution fallback when the bounded primary
// queue is full (spec §9 open question: "enqueue work with block=false ...
// falls back to synchronous execution on Full"); Verify enqueue is
// unbounded and never blocks materially.
type Enqueuer interface {
	EnqueuePrimary(ctx context.Context, work MigrateObjectWork)
	EnqueueVerify(work MigrateObjectWork)
}

// DeletionReconciler performs spec §4.4 for one local key believed absent
// remotely.
type DeletionReconciler interface {
	ReconcileDeleted(ctx context.Context, account, container, key string) error
}

// Result summarizes one reconcile() invocation (spec §4.3 marker/scanned
// bookkeeping).
type Result struct {
	Scanned       int64
	NextMarker    string
	EtagConflicts []string
}

// Reconciler implements the sorted merge-join described in spec §4.3,
// injected with Selector/Enqueuer/DeletionReconciler as interfaces so it
// is testable with in-memory fakes (spec §9).
type Reconciler struct {
	Selector   Selector
	Enqueuer   Enqueuer
	Deleter    DeletionReconciler
	Account    string
}

// Reconcile drains remote and local to exhaustion, classifying every key as
// copy/update/verify/reconcile-delete. listAll forces every missing/stale
// key onto the primary queue regardless of Selector (used for DLO
// container-queue reruns, spec §4.6 step 3); marker is the prior pass's
// cursor, used to decide which trailing local-only entries are eligible
// for deletion once remote is exhausted (spec §4.3 step 3).
func (r *Reconciler) Reconcile(ctx context.Context, bucket, container string, remote, local Lister, listAll bool, marker string) (Result, error) {
	var result Result

	remoteEntry, err := remote.Next(ctx)
	if err != nil {
		return result, err
	}
	localEntry, err := local.Next(ctx)
	if err != nil {
		return result, err
	}

	enqueue := func(name string, ts storeapi.FixedTimestamp) {
		work := MigrateObjectWork{AWSBucket: bucket, Container: container, Key: name, ListingTS: ts}
		if listAll || r.Selector.IsPrimary(r.Account, container, name) {
			r.Enqueuer.EnqueuePrimary(ctx, work)
		} else {
			r.Enqueuer.EnqueueVerify(work)
		}
	}

	for remoteEntry != nil {
		switch {
		case localEntry == nil || localEntry.Name > remoteEntry.Name:
			// Missing locally.
			enqueue(remoteEntry.Name, remoteEntry.LastModified)
			result.Scanned++
			result.NextMarker = remoteEntry.Name
			remoteEntry, err = remote.Next(ctx)
			if err != nil {
				return result, err
			}

		case localEntry.Name < remoteEntry.Name:
			// Deleted remotely.
			if err := r.Deleter.ReconcileDeleted(ctx, r.Account, container, localEntry.Name); err != nil {
				return result, err
			}
			localEntry, err = local.Next(ctx)
			if err != nil {
				return result, err
			}

		default:
			// Names equal — compare entries.
			result.Scanned++
			result.NextMarker = remoteEntry.Name

			timesEqual := localEntry.LastModified == remoteEntry.LastModified
			etagsEqual := localEntry.Hash == remoteEntry.Hash

			switch {
			case timesEqual && etagsEqual:
				// EQUAL, skip.
			case timesEqual && !etagsEqual:
				// Same-time-different-etag: defer to the large-object deep
				// comparison (spec §4.5); surfaced to the caller.
				result.EtagConflicts = append(result.EtagConflicts, remoteEntry.Name)
			case remoteEntry.LastModified.Before(localEntry.LastModified):
				// Local is newer: skip.
			default:
				// Remote is newer: enqueue update.
				enqueue(remoteEntry.Name, remoteEntry.LastModified)
			}

			remoteEntry, err = remote.Next(ctx)
			if err != nil {
				return result, err
			}
			localEntry, err = local.Next(ctx)
			if err != nil {
				return result, err
			}
		}
	}

	// Remote exhausted — drain remaining local entries; anything with a
	// name preceding the prior marker (or every entry, when there is no
	// prior marker or this pass scanned nothing) is a reconcile-delete
	// candidate (spec §4.3 step 3).
	for localEntry != nil {
		if marker == "" || result.Scanned == 0 || localEntry.Name < marker {
			if err := r.Deleter.ReconcileDeleted(ctx, r.Account, container, localEntry.Name); err != nil {
				return result, err
			}
		}
		localEntry, err = local.Next(ctx)
		if err != nil {
			return result, err
		}
	}

	return result, nil
}
