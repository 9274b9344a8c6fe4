package largeobject

import (
	"fmt"
	"strings"

	"github.com/artemis/bucket-migrate/internal/storeapi"
)

// ContainerQueue receives (segment-container, prefix) pairs discovered
// while handling DLO manifests, for the controller's later full-list
// reconciliation pass (spec §4.6 step 3).
type ContainerQueue interface {
	EnqueueContainer(container, prefix string)
}

// ParseManifest splits an x-object-manifest value ("<container>/<prefix>")
// into its container and prefix parts.
func ParseManifest(manifest string) (container, prefix string, err error) {
	idx := strings.IndexByte(manifest, '/')
	if idx < 0 {
		return "", "", fmt.Errorf("largeobject: malformed x-object-manifest %q", manifest)
	}
	return manifest[:idx], manifest[idx+1:], nil
}

// HandleDLO implements spec §4.5a: if this manifest hasn't been seen yet,
// record it in manifests and enqueue its referenced segment container for
// a later full-list pass. The manifest object itself is copied only once
// all segment containers drain (spec §4.6 step 4), never here.
func HandleDLO(manifests *ManifestSet, queue ContainerQueue, bucket, container, key string, meta storeapi.ObjectMeta, ts storeapi.FixedTimestamp) error {
	segContainer, prefix, err := ParseManifest(meta.Manifest)
	if err != nil {
		return err
	}
	if manifests.AddIfAbsent(bucket, container, key, ts) {
		queue.EnqueueContainer(segContainer, prefix)
	}
	return nil
}
