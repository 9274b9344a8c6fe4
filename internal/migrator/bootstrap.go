package migrator

import (
	"context"
	"errors"
	"time"

	"github.com/artemis/bucket-migrate/internal/config"
	"github.com/artemis/bucket-migrate/internal/storeapi"
	"go.uber.org/zap"
)

// containerExistTimeout bounds how long bootstrapContainer waits for a
// freshly created container to become visible before raising a
// MigrationError (spec §5 "container creation polls for existence with a
// 1-second timeout").
const containerExistTimeout = time.Second

// bootstrapContainer implements spec §4.7 "Container bootstrap": for
// swift, recurse into a versioned container first, then reconcile headers
// (create-missing / diff-and-POST / SRC_DELETED→MODIFIED); for any other
// protocol, only ensure the container exists.
func bootstrapContainer(ctx context.Context, provider storeapi.Provider, client storeapi.InternalClient, m config.Migration, logger *zap.Logger) error {
	if m.Protocol != config.ProtocolSwift {
		exists, err := client.ContainerExists(ctx, m.Account, m.ContainerName())
		if err != nil {
			return err
		}
		if !exists {
			return createAndAwaitContainer(ctx, client, m.Account, m.ContainerName(), map[string]string{
				storeapi.HeaderMigratorContainer: storeapi.ContainerStateMigrating,
			})
		}
		return nil
	}

	_, remoteMeta, err := provider.HeadBucket(ctx, m.AWSBucket)
	if err != nil {
		return err
	}

	if remoteMeta.VersionsLocation != "" || remoteMeta.HistoryLocation != "" {
		versionsContainer := remoteMeta.VersionsLocation
		if versionsContainer == "" {
			versionsContainer = remoteMeta.HistoryLocation
		}
		versioned := m.WithContainer(versionsContainer)
		if err := bootstrapContainer(ctx, provider, client, versioned, logger); err != nil {
			return err
		}
	}

	return reconcileContainerHeaders(ctx, client, m.Account, m.ContainerName(), remoteMeta)
}

// reconcileContainerHeaders implements the create/diff/flip rules of spec
// §4.7: create the local container with the migrating state (and the
// remote storage policy, if any) when missing; otherwise POST the remote
// storage policy when it differs and the remote is not older, and flip
// SRC_DELETED back to MODIFIED since the source has reappeared. The
// storage policy is the only remote container header copied or compared;
// other remote container headers are not carried over.
func reconcileContainerHeaders(ctx context.Context, client storeapi.InternalClient, account, container string, remote storeapi.ContainerMeta) error {
	localMeta, err := client.GetContainerMetadata(ctx, account, container)
	if err != nil {
		if !errors.Is(err, storeapi.ErrContainerNotFound) {
			return err
		}
		headers := map[string]string{
			storeapi.HeaderMigratorContainer: storeapi.ContainerStateMigrating,
		}
		if remote.StoragePolicy != "" {
			headers[storeapi.HeaderStoragePolicy] = remote.StoragePolicy
		}
		return createAndAwaitContainer(ctx, client, account, container, headers)
	}

	if !localMeta.IsMigratorOwned() {
		return nil
	}

	diff := map[string]string{}
	if remote.LastModified.Before(localMeta.LastModified) {
		// Local is strictly newer — nothing to propagate. Equal
		// timestamps fall through to the policy comparison.
	} else if remote.StoragePolicy != "" && remote.StoragePolicy != localMeta.StoragePolicy {
		diff[storeapi.HeaderStoragePolicy] = remote.StoragePolicy
	}

	if localMeta.MigratorState == storeapi.ContainerStateSrcDeleted {
		diff[storeapi.HeaderMigratorContainer] = storeapi.ContainerStateModified
	}

	if len(diff) == 0 {
		return nil
	}
	return client.SetContainerMetadata(ctx, account, container, diff)
}

// createAndAwaitContainer creates container and polls ContainerExists with
// a short timeout, matching the spec's "wait for existence with a
// timeout; raise MigrationError on expiry" rule.
func createAndAwaitContainer(ctx context.Context, client storeapi.InternalClient, account, container string, headers map[string]string) error {
	if err := client.CreateContainer(ctx, account, container, headers); err != nil {
		return err
	}

	deadline := time.Now().Add(containerExistTimeout)
	for {
		exists, err := client.ContainerExists(ctx, account, container)
		if err != nil {
			return err
		}
		if exists {
			return nil
		}
		if time.Now().After(deadline) {
			return storeapi.NewMigrationError(container, "", "timed out waiting for container to exist")
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(10 * time.Millisecond):
		}
	}
}

// propagateAccountMetadata implements spec §4.7 "Account metadata
// propagation": swift only, and only when the migration opts in. HEAD the
// remote account and POST every header it returned to the local account.
// The local account's metadata is not read, so no diff is taken and
// unchanged values are written again.
func propagateAccountMetadata(ctx context.Context, provider storeapi.Provider, client storeapi.InternalClient, m config.Migration) error {
	if m.Protocol != config.ProtocolSwift || !m.PropagateAccountMetadata {
		return nil
	}

	_, remoteHeaders, err := provider.HeadAccount(ctx)
	if err != nil {
		return err
	}

	account := m.RemoteAccount
	if account == "" {
		account = m.Account
	}

	diff := map[string]string{}
	for k, v := range remoteHeaders {
		diff[k] = v
	}
	if len(diff) == 0 {
		return nil
	}
	return client.SetAccountMetadata(ctx, m.Account, diff)
}
