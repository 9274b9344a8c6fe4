package reconcile

import (
	"context"
	"errors"

	"github.com/artemis/bucket-migrate/internal/storeapi"
	"go.uber.org/zap"
)

// InternalDeleter implements DeletionReconciler against an
// storeapi.InternalClient, exactly per spec §4.4.
type InternalDeleter struct {
	Client storeapi.InternalClient
	Logger *zap.Logger
}

// ReconcileDeleted implements spec §4.4 "reconcile_deleted": HEAD the local
// object; if absent, done; if client-owned (no migrator header), leave it
// untouched; otherwise DELETE with a timestamp one offset-tick past its
// current durable timestamp, logging and continuing on 409.
func (d *InternalDeleter) ReconcileDeleted(ctx context.Context, account, container, key string) error {
	meta, err := d.Client.GetObjectMetadata(ctx, account, container, key)
	if err != nil {
		if errors.Is(err, storeapi.ErrContainerNotFound) {
			return nil
		}
		return err
	}

	if !meta.IsMigratorOwned {
		d.Logger.Debug("skipping client-owned object", zap.String("container", container), zap.String("key", key))
		return nil
	}

	// Durable, then backend, then user (x-timestamp) timestamp; the
	// migrator header's timestamp when none of them parses.
	deleteTS := meta.SysTimestamp
	for _, h := range []string{storeapi.HeaderDurableTimestamp, storeapi.HeaderBackendTimestamp, storeapi.HeaderTimestamp} {
		if ts, perr := storeapi.ParseTimestamp(meta.Raw[h]); perr == nil {
			deleteTS = ts
			break
		}
	}
	deleteTS = deleteTS.Add(1)
	err = d.Client.DeleteObject(ctx, account, container, key, map[string]string{
		storeapi.HeaderTimestamp: deleteTS.String(),
	})
	if err != nil {
		if errors.Is(err, storeapi.ErrConflict) {
			d.Logger.Info("delete conflict, leaving object in place", zap.String("container", container), zap.String("key", key))
			return nil
		}
		return err
	}
	return nil
}

// MaybeDeleteInternalContainer mirrors ReconcileDeleted for a whole
// container (spec §4.4 "maybe_delete_internal_container"): HEAD the
// container, skip if client-owned or already SRC_DELETED, reconcile every
// object inside, then attempt to DELETE the container; on 409 (not empty)
// flip its state to SRC_DELETED instead.
func MaybeDeleteInternalContainer(ctx context.Context, client storeapi.InternalClient, deleter DeletionReconciler, logger *zap.Logger, account, container string, listLocal Lister) error {
	meta, err := client.GetContainerMetadata(ctx, account, container)
	if err != nil {
		if errors.Is(err, storeapi.ErrContainerNotFound) {
			return nil
		}
		return err
	}

	if !meta.IsMigratorOwned() {
		logger.Debug("skipping client-owned container", zap.String("container", container))
		return nil
	}
	if meta.MigratorState == storeapi.ContainerStateSrcDeleted {
		return nil
	}

	for {
		entry, err := listLocal.Next(ctx)
		if err != nil {
			return err
		}
		if entry == nil {
			break
		}
		if err := deleter.ReconcileDeleted(ctx, account, container, entry.Name); err != nil {
			return err
		}
	}

	err = client.DeleteContainer(ctx, account, container)
	if err != nil {
		if errors.Is(err, storeapi.ErrConflict) {
			return client.SetContainerMetadata(ctx, account, container, map[string]string{
				storeapi.HeaderMigratorContainer: storeapi.ContainerStateSrcDeleted,
			})
		}
		return err
	}
	return nil
}
