package reconcile

import (
	"context"
	"testing"

	"github.com/artemis/bucket-migrate/internal/storeapi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sliceLister struct {
	entries []storeapi.ListingEntry
	idx     int
}

func (s *sliceLister) Next(ctx context.Context) (*storeapi.ListingEntry, error) {
	if s.idx >= len(s.entries) {
		return nil, nil
	}
	e := s.entries[s.idx]
	s.idx++
	return &e, nil
}

type alwaysPrimary struct{}

func (alwaysPrimary) IsPrimary(account, container, object string) bool { return true }

type recordingEnqueuer struct {
	primary []MigrateObjectWork
	verify  []MigrateObjectWork
}

func (r *recordingEnqueuer) EnqueuePrimary(ctx context.Context, work MigrateObjectWork) {
	r.primary = append(r.primary, work)
}
func (r *recordingEnqueuer) EnqueueVerify(work MigrateObjectWork) {
	r.verify = append(r.verify, work)
}

type recordingDeleter struct {
	deleted []string
}

func (r *recordingDeleter) ReconcileDeleted(ctx context.Context, account, container, key string) error {
	r.deleted = append(r.deleted, key)
	return nil
}

func entry(name, hash string, ts int64) storeapi.ListingEntry {
	return storeapi.ListingEntry{Name: name, Hash: hash, LastModified: storeapi.FixedTimestamp{Seconds: ts}}
}

func TestReconcileCleanCopy(t *testing.T) {
	remote := &sliceLister{entries: []storeapi.ListingEntry{
		entry("k1", "aaa", 100),
		entry("k2", "bbb", 200),
	}}
	local := &sliceLister{}

	enq := &recordingEnqueuer{}
	del := &recordingDeleter{}
	r := &Reconciler{Selector: alwaysPrimary{}, Enqueuer: enq, Deleter: del, Account: "acct"}

	result, err := r.Reconcile(context.Background(), "b", "b", remote, local, false, "")
	require.NoError(t, err)

	assert.Equal(t, int64(2), result.Scanned)
	assert.Equal(t, "k2", result.NextMarker)
	require.Len(t, enq.primary, 2)
	assert.Equal(t, "k1", enq.primary[0].Key)
	assert.Equal(t, "k2", enq.primary[1].Key)
	assert.Empty(t, del.deleted)
}

func TestReconcileSkipsIdenticalEntries(t *testing.T) {
	remote := &sliceLister{entries: []storeapi.ListingEntry{entry("k1", "aaa", 100)}}
	local := &sliceLister{entries: []storeapi.ListingEntry{entry("k1", "aaa", 100)}}

	enq := &recordingEnqueuer{}
	del := &recordingDeleter{}
	r := &Reconciler{Selector: alwaysPrimary{}, Enqueuer: enq, Deleter: del, Account: "acct"}

	result, err := r.Reconcile(context.Background(), "b", "b", remote, local, false, "")
	require.NoError(t, err)

	assert.Equal(t, int64(1), result.Scanned)
	assert.Empty(t, enq.primary)
	assert.Empty(t, del.deleted)
}

func TestReconcileDetectsEtagConflictOnEqualTimestamps(t *testing.T) {
	remote := &sliceLister{entries: []storeapi.ListingEntry{entry("k1", "aaa", 100)}}
	local := &sliceLister{entries: []storeapi.ListingEntry{entry("k1", "zzz", 100)}}

	enq := &recordingEnqueuer{}
	del := &recordingDeleter{}
	r := &Reconciler{Selector: alwaysPrimary{}, Enqueuer: enq, Deleter: del, Account: "acct"}

	result, err := r.Reconcile(context.Background(), "b", "b", remote, local, false, "")
	require.NoError(t, err)

	assert.Equal(t, []string{"k1"}, result.EtagConflicts)
	assert.Empty(t, enq.primary)
}

func TestReconcileEnqueuesUpdateWhenRemoteNewer(t *testing.T) {
	remote := &sliceLister{entries: []storeapi.ListingEntry{entry("k1", "aaa", 200)}}
	local := &sliceLister{entries: []storeapi.ListingEntry{entry("k1", "bbb", 100)}}

	enq := &recordingEnqueuer{}
	del := &recordingDeleter{}
	r := &Reconciler{Selector: alwaysPrimary{}, Enqueuer: enq, Deleter: del, Account: "acct"}

	_, err := r.Reconcile(context.Background(), "b", "b", remote, local, false, "")
	require.NoError(t, err)
	require.Len(t, enq.primary, 1)
	assert.Equal(t, "k1", enq.primary[0].Key)
}

func TestReconcileSkipsWhenLocalNewer(t *testing.T) {
	remote := &sliceLister{entries: []storeapi.ListingEntry{entry("k1", "aaa", 100)}}
	local := &sliceLister{entries: []storeapi.ListingEntry{entry("k1", "bbb", 200)}}

	enq := &recordingEnqueuer{}
	del := &recordingDeleter{}
	r := &Reconciler{Selector: alwaysPrimary{}, Enqueuer: enq, Deleter: del, Account: "acct"}

	_, err := r.Reconcile(context.Background(), "b", "b", remote, local, false, "")
	require.NoError(t, err)
	assert.Empty(t, enq.primary)
}

func TestReconcileDeletesLocalOnlyEntries(t *testing.T) {
	remote := &sliceLister{entries: []storeapi.ListingEntry{entry("k2", "aaa", 200)}}
	local := &sliceLister{entries: []storeapi.ListingEntry{entry("k1", "bbb", 100), entry("k2", "aaa", 200)}}

	enq := &recordingEnqueuer{}
	del := &recordingDeleter{}
	r := &Reconciler{Selector: alwaysPrimary{}, Enqueuer: enq, Deleter: del, Account: "acct"}

	_, err := r.Reconcile(context.Background(), "b", "b", remote, local, false, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"k1"}, del.deleted)
}

func TestReconcileRoutesToVerifyQueueWhenNotPrimary(t *testing.T) {
	remote := &sliceLister{entries: []storeapi.ListingEntry{entry("k1", "aaa", 100)}}
	local := &sliceLister{}

	enq := &recordingEnqueuer{}
	del := &recordingDeleter{}
	r := &Reconciler{Selector: neverPrimary{}, Enqueuer: enq, Deleter: del, Account: "acct"}

	_, err := r.Reconcile(context.Background(), "b", "b", remote, local, false, "")
	require.NoError(t, err)
	assert.Empty(t, enq.primary)
	require.Len(t, enq.verify, 1)
}

func TestReconcileListAllForcesPrimaryRegardlessOfSelector(t *testing.T) {
	remote := &sliceLister{entries: []storeapi.ListingEntry{entry("k1", "aaa", 100)}}
	local := &sliceLister{}

	enq := &recordingEnqueuer{}
	del := &recordingDeleter{}
	r := &Reconciler{Selector: neverPrimary{}, Enqueuer: enq, Deleter: del, Account: "acct"}

	_, err := r.Reconcile(context.Background(), "b", "b", remote, local, true, "")
	require.NoError(t, err)
	assert.Len(t, enq.primary, 1)
	assert.Empty(t, enq.verify)
}

type neverPrimary struct{}

func (neverPrimary) IsPrimary(account, container, object string) bool { return false }
