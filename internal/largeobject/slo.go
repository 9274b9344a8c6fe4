package largeobject

import (
	"context"
	"errors"

	"github.com/artemis/bucket-migrate/internal/reconcile"
	"github.com/artemis/bucket-migrate/internal/storeapi"
)

// CompareResult classifies a local-vs-remote segment comparison (spec
// §4.5b "cmp_meta").
type CompareResult int

const (
	CompareMissing CompareResult = iota
	CompareEqual
	CompareTimeDiff
	CompareEtagDiff
)

// CompareMeta implements cmp_meta: EQUAL when etags match; TIME_DIFF when
// etags differ but timestamps match (the spec §9 open question — the
// source logs and skips here rather than re-uploading, preserved as-is);
// ETAG_DIFF otherwise, meaning the segment must be re-uploaded.
func CompareMeta(localExists bool, local, remote storeapi.ObjectMeta) CompareResult {
	if !localExists {
		return CompareMissing
	}
	if local.Hash == remote.Hash {
		return CompareEqual
	}
	if local.LastModified == remote.LastModified {
		// TODO: the source logs-and-skips on metadata drift with matching
		// timestamps rather than re-uploading; left as-is pending a
		// decision on whether that's intentional (spec §9).
		return CompareTimeDiff
	}
	return CompareEtagDiff
}

// SLOPlan is the outcome of reconciling one SLO manifest: segments needing
// a copy, plus the manifest body to upload once they land.
type SLOPlan struct {
	SegmentsToCopy []reconcile.MigrateObjectWork
	ManifestBody   []byte
}

// HandleSLO implements spec §4.5b: for each segment referenced by the
// manifest, HEAD locally and (if present) remotely, compare via CompareMeta,
// and enqueue missing or ETag-mismatched segments. The manifest blob itself
// is returned in the plan for the caller to PUT directly — never
// re-enqueued as a MigrateObjectWork — after its segments are copied.
func HandleSLO(ctx context.Context, local storeapi.InternalClient, remote storeapi.Provider, account, bucket, container string, manifest *storeapi.SLOManifest, manifestBody []byte) (SLOPlan, error) {
	var plan SLOPlan
	plan.ManifestBody = manifestBody

	for _, seg := range manifest.Segments {
		segContainer, segKey, err := splitSegmentPath(seg.Path)
		if err != nil {
			return plan, err
		}

		localMeta, err := local.GetObjectMetadata(ctx, account, segContainer, segKey)
		localExists := true
		if err != nil {
			if errors.Is(err, storeapi.ErrContainerNotFound) {
				localExists = false
			} else {
				return plan, err
			}
		}

		// Manifest-declared hash/size alone can't tell EQUAL from
		// TIME_DIFF (the manifest carries no last_modified): HEAD the
		// remote segment to get its real metadata, falling back to the
		// manifest's own entry only if the remote HEAD itself fails (spec
		// §4.5b "HEAD locally and, if present, HEAD remotely and compare").
		remoteMeta := storeapi.ObjectMeta{Hash: seg.Hash, Bytes: seg.Size}
		if localExists {
			if _, headMeta, err := remote.HeadObject(ctx, segContainer, segKey); err == nil {
				remoteMeta = headMeta
			}
		}

		switch CompareMeta(localExists, localMeta, remoteMeta) {
		case CompareEqual, CompareTimeDiff:
			continue
		case CompareMissing, CompareEtagDiff:
			plan.SegmentsToCopy = append(plan.SegmentsToCopy, reconcile.MigrateObjectWork{
				AWSBucket: bucket, Container: segContainer, Key: segKey,
			})
		}
	}

	return plan, nil
}

func splitSegmentPath(path string) (container, key string, err error) {
	for i := 0; i < len(path); i++ {
		if path[i] == '/' {
			return path[:i], path[i+1:], nil
		}
	}
	return "", "", errSegmentPath(path)
}

type errSegmentPath string

func (e errSegmentPath) Error() string {
	return "largeobject: malformed SLO segment path " + string(e)
}
