package migrator

import (
	"context"

	"github.com/artemis/bucket-migrate/internal/config"
	"github.com/artemis/bucket-migrate/internal/storeapi"
)

// defaultPageSize bounds each underlying list_objects/ListObjects call; the
// reconciler pulls one entry at a time regardless of how the page was
// fetched (spec §4.3 "bounded by work_chunk").
const defaultPageSize = 1000

// remoteLister drives reconcile.Reconciler's remote side via repeated
// paginated Provider.ListObjects calls (spec §4.3 "Marker maintenance").
type remoteLister struct {
	provider storeapi.Provider
	bucket   string
	prefix   string
	pageSize int

	page    []storeapi.ListingEntry
	idx     int
	marker  string
	done    bool
}

func newRemoteLister(provider storeapi.Provider, bucket, prefix string) *remoteLister {
	return &remoteLister{provider: provider, bucket: bucket, prefix: prefix, pageSize: defaultPageSize}
}

func (l *remoteLister) Next(ctx context.Context) (*storeapi.ListingEntry, error) {
	for {
		if l.idx < len(l.page) {
			e := l.page[l.idx]
			l.idx++
			l.marker = e.Name
			return &e, nil
		}
		if l.done {
			return nil, nil
		}

		resp, entries, err := l.provider.ListObjects(ctx, l.bucket, l.marker, l.pageSize, l.prefix)
		if err != nil {
			return nil, err
		}
		if resp != nil && !resp.Success {
			if rerr := resp.Reraise(); rerr != nil {
				return nil, rerr
			}
		}

		if len(entries) == 0 {
			l.done = true
			continue
		}

		nextMarker := entries[len(entries)-1].Name
		if nextMarker == l.marker {
			// No progress — provider handed back the same cursor
			// (spec §4.3 "yield a terminal to the reconciler").
			l.done = true
			continue
		}

		l.page = entries
		l.idx = 0
	}
}

// localLister drives reconcile.Reconciler's local side via repeated
// paginated InternalClient.ListObjects calls — the full local listing
// walk required by the merge-join (spec §4.3 "a full local listing
// iterator").
type localLister struct {
	client   storeapi.InternalClient
	account  string
	container string
	prefix   string
	pageSize int

	page   []storeapi.ListingEntry
	idx    int
	marker string
	done   bool
}

func newLocalLister(client storeapi.InternalClient, account, container, prefix string) *localLister {
	return &localLister{client: client, account: account, container: container, prefix: prefix, pageSize: defaultPageSize}
}

func (l *localLister) Next(ctx context.Context) (*storeapi.ListingEntry, error) {
	for {
		if l.idx < len(l.page) {
			e := l.page[l.idx]
			l.idx++
			l.marker = e.Name
			return &e, nil
		}
		if l.done {
			return nil, nil
		}

		entries, err := l.client.ListObjects(ctx, l.account, l.container, l.marker, l.pageSize, l.prefix)
		if err != nil {
			return nil, err
		}
		if len(entries) == 0 {
			l.done = true
			continue
		}

		nextMarker := entries[len(entries)-1].Name
		if nextMarker == l.marker {
			l.done = true
			continue
		}

		l.page = entries
		l.idx = 0
	}
}

// migrationListerKey builds the destination container name a migration
// writes to. Nothing in the package calls it; the listers and the
// dispatcher call config.Migration.ContainerName directly.
func migrationListerKey(m config.Migration) string {
	return m.ContainerName()
}
