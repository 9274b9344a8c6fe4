package migrator

import (
	"context"
	"sort"

	"github.com/artemis/bucket-migrate/internal/config"
	"github.com/artemis/bucket-migrate/internal/reconcile"
	"go.uber.org/zap"
)

// RunAllBuckets implements spec §4.7's "/*" wildcard expansion: list every
// remote bucket, merge-join it against the local containers under this
// account, run one RunPass for each remote bucket this node hashes to
// locally (spec §4.1 IsLocalContainer), and hand local-only containers to
// MaybeDeleteInternalContainer. Returns the bucket names this node
// actually processed, which the daemon uses for status pruning (spec §8
// scenario 6: "handled_containers returned by A contains only b1").
func (c *PassController) RunAllBuckets(ctx context.Context, m config.Migration) ([]string, error) {
	remoteNames, err := c.listAllRemoteBuckets(ctx)
	if err != nil {
		return nil, err
	}
	localNames, err := c.listAllLocalContainers(ctx, m.Account)
	if err != nil {
		return nil, err
	}

	sort.Strings(remoteNames)
	sort.Strings(localNames)

	var handled []string
	ri, li := 0, 0
	for ri < len(remoteNames) || li < len(localNames) {
		switch {
		case li >= len(localNames) || (ri < len(remoteNames) && remoteNames[ri] < localNames[li]):
			c.runSubPassIfLocal(ctx, m, remoteNames[ri], &handled)
			ri++

		case ri >= len(remoteNames) || localNames[li] < remoteNames[ri]:
			name := localNames[li]
			if err := c.maybeDeleteLocalOnlyContainer(ctx, m, name); err != nil {
				c.Logger.Error("failed reconciling local-only container",
					zap.String("container", name), zap.Error(err))
			}
			li++

		default:
			c.runSubPassIfLocal(ctx, m, remoteNames[ri], &handled)
			ri++
			li++
		}
	}
	return handled, nil
}

// runSubPassIfLocal rebinds m to bucket and, if this node hashes to it,
// runs one pass and records it as handled.
func (c *PassController) runSubPassIfLocal(ctx context.Context, m config.Migration, bucket string, handled *[]string) bool {
	if !c.Selector.IsLocalContainer(m.Account, bucket) {
		return false
	}
	sub := m.WithContainer(bucket)
	if _, err := c.RunPass(ctx, sub); err != nil {
		c.Logger.Error("bucket sub-pass failed", zap.String("bucket", bucket), zap.Error(err))
		return false
	}
	*handled = append(*handled, bucket)
	return true
}

func (c *PassController) listAllRemoteBuckets(ctx context.Context) ([]string, error) {
	var names []string
	marker := ""
	for {
		resp, entries, err := c.Provider.ListBuckets(ctx, marker, defaultPageSize)
		if err != nil {
			return nil, err
		}
		if resp != nil && !resp.Success {
			if rerr := resp.Reraise(); rerr != nil {
				return nil, rerr
			}
		}
		if len(entries) == 0 {
			break
		}
		for _, e := range entries {
			names = append(names, e.Name)
		}
		next := entries[len(entries)-1].Name
		if next == marker {
			break
		}
		marker = next
	}
	return names, nil
}

func (c *PassController) listAllLocalContainers(ctx context.Context, account string) ([]string, error) {
	client, err := c.Clients.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer c.Clients.Release(client)

	var names []string
	marker := ""
	for {
		entries, err := client.ListContainers(ctx, account, marker, defaultPageSize)
		if err != nil {
			return nil, err
		}
		if len(entries) == 0 {
			break
		}
		for _, e := range entries {
			names = append(names, e.Name)
		}
		next := entries[len(entries)-1].Name
		if next == marker {
			break
		}
		marker = next
	}
	return names, nil
}

// maybeDeleteLocalOnlyContainer implements spec §4.7's "Local containers
// not present remotely are sent to maybe_delete_internal_container".
func (c *PassController) maybeDeleteLocalOnlyContainer(ctx context.Context, m config.Migration, container string) error {
	client, err := c.Clients.Acquire(ctx)
	if err != nil {
		return err
	}
	defer c.Clients.Release(client)

	deleter := &reconcile.InternalDeleter{Client: client, Logger: c.Logger}
	listLocal := newLocalLister(client, m.Account, container, "")
	return reconcile.MaybeDeleteInternalContainer(ctx, client, deleter, c.Logger, m.Account, container, listLocal)
}
