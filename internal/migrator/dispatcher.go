package migrator

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"strconv"

	"github.com/artemis/bucket-migrate/internal/largeobject"
	"github.com/artemis/bucket-migrate/internal/observability"
	"github.com/artemis/bucket-migrate/internal/reconcile"
	"github.com/artemis/bucket-migrate/internal/storeapi"
	"go.uber.org/zap"
)

// objectDispatcher implements workerpool.Dispatcher: given one classified
// work item, it GETs the remote object, classifies it per spec §4.5, and
// performs whichever of the four large-object cases (or a plain copy)
// applies. Every path converges on InternalClient.PutObject; the
// create-container-and-retry rule (spec §4.5 "common rules") is applied by
// putObject here and by the large-object package's segment writes.
type objectDispatcher struct {
	provider    storeapi.Provider
	clients     *storeapi.ClientPool
	account     string
	maxFileSize int64
	segmentSize int64
	manifests   *largeobject.ManifestSet
	containerQ  *containerQueue
	logger      *zap.Logger
}

// Dispatch implements workerpool.Dispatcher.
func (d *objectDispatcher) Dispatch(ctx context.Context, work reconcile.MigrateObjectWork) (int64, error) {
	client, err := d.clients.Acquire(ctx)
	if err != nil {
		return 0, err
	}
	defer d.clients.Release(client)

	resp, err := d.provider.GetObject(ctx, work.AWSBucket, work.Key, storeapi.GetObjectOptions{})
	if err != nil {
		return 0, err
	}
	if resp.Body != nil {
		defer resp.Body.Close()
	}
	if !resp.Success {
		if rerr := resp.Reraise(); rerr != nil {
			if errors.Is(rerr, storeapi.ErrContainerNotFound) {
				d.logger.Info("remote object vanished mid-pass", zap.String("container", work.Container), zap.String("key", work.Key))
				return 0, nil
			}
			return 0, rerr
		}
	}

	meta := storeapi.FromHeaders(work.Key, resp.Headers)
	meta.LastModified = storeapi.ReconcileTimestamp(work.ListingTS, meta.LastModified)
	contentLength := parseContentLength(resp.Headers)

	// A manifest already deferred once via HandleDLO comes back through
	// here as a ManifestUpload work item (spec §4.6 step 4): upload its
	// body now instead of reclassifying, since Classify would see the same
	// x-object-manifest header and HandleDLO's ManifestSet.AddIfAbsent
	// would silently no-op on the second sighting (spec §4.5a).
	if work.ManifestUpload {
		return d.dispatchPlain(ctx, client, work, meta, resp)
	}

	switch largeobject.Classify(meta, contentLength, d.maxFileSize) {
	case largeobject.KindDLO:
		// The manifest object itself is copied later, only once every
		// referenced segment container has been fully reconciled (spec
		// §4.6 step 4) — record it and move on.
		if err := largeobject.HandleDLO(d.manifests, d.containerQ, work.AWSBucket, work.Container, work.Key, meta, meta.LastModified); err != nil {
			return 0, err
		}
		return 0, nil

	case largeobject.KindSLO:
		return d.dispatchSLO(ctx, client, work, meta, resp)

	case largeobject.KindMPU:
		return d.dispatchMPU(ctx, client, work, meta, contentLength)

	case largeobject.KindOversized:
		return d.dispatchOversized(ctx, client, work, meta, resp)

	default:
		return d.dispatchPlain(ctx, client, work, meta, resp)
	}
}

func (d *objectDispatcher) dispatchPlain(ctx context.Context, client storeapi.InternalClient, work reconcile.MigrateObjectWork, meta storeapi.ObjectMeta, resp *storeapi.Response) (int64, error) {
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, err
	}
	headers := meta.ToSwiftHeaders()
	headers[storeapi.HeaderMigratorObject] = meta.LastModified.String()
	if err := d.putObject(ctx, client, work.Container, work.Key, headers, data); err != nil {
		return 0, err
	}
	return int64(len(data)), nil
}

func (d *objectDispatcher) dispatchSLO(ctx context.Context, client storeapi.InternalClient, work reconcile.MigrateObjectWork, meta storeapi.ObjectMeta, resp *storeapi.Response) (int64, error) {
	manifestBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, err
	}
	manifest, err := d.provider.GetManifest(ctx, work.AWSBucket, work.Key)
	if err != nil {
		return 0, err
	}

	plan, err := largeobject.HandleSLO(ctx, client, d.provider, d.account, work.AWSBucket, work.Container, manifest, manifestBody)
	if err != nil {
		return 0, err
	}

	var total int64
	for _, seg := range plan.SegmentsToCopy {
		n, err := d.copySegment(ctx, client, work.AWSBucket, seg)
		if err != nil {
			return total, err
		}
		total += n
	}

	headers := meta.ToSwiftHeaders()
	headers[storeapi.HeaderMigratorObject] = meta.LastModified.String()
	if err := d.putObject(ctx, client, work.Container, work.Key, headers, plan.ManifestBody); err != nil {
		return total, err
	}
	return total + int64(len(plan.ManifestBody)), nil
}

func (d *objectDispatcher) dispatchMPU(ctx context.Context, client storeapi.InternalClient, work reconcile.MigrateObjectWork, meta storeapi.ObjectMeta, totalSize int64) (int64, error) {
	segments, etag, err := largeobject.ReassembleMPU(ctx, d.provider, client, d.account, work.AWSBucket, work.Container, work.Key, meta, meta.LastModified, totalSize)
	if err != nil {
		return 0, err
	}
	return d.finishSegmentedObject(ctx, client, work, meta, segments, etag)
}

func (d *objectDispatcher) dispatchOversized(ctx context.Context, client storeapi.InternalClient, work reconcile.MigrateObjectWork, meta storeapi.ObjectMeta, resp *storeapi.Response) (int64, error) {
	segments, _, err := largeobject.SplitOversized(ctx, client, resp.Body, d.account, work.Container, work.Key, meta.LastModified, d.segmentSize)
	if err != nil {
		return 0, err
	}
	etag, err := largeobject.GetSLOEtag(segments)
	if err != nil {
		return 0, err
	}
	return d.finishSegmentedObject(ctx, client, work, meta, segments, etag)
}

func (d *objectDispatcher) finishSegmentedObject(ctx context.Context, client storeapi.InternalClient, work reconcile.MigrateObjectWork, meta storeapi.ObjectMeta, segments []largeobject.Segment, etag string) (int64, error) {
	manifestBody, err := buildManifestBody(segments)
	if err != nil {
		return 0, err
	}

	headers := storeapi.ObjectMeta{IsSLO: true, LastModified: meta.LastModified}.ToSwiftHeaders()
	headers[storeapi.HeaderMigratorObject] = meta.LastModified.String()
	headers[storeapi.HeaderETag] = etag

	var segBytes int64
	for _, s := range segments {
		segBytes += s.Size
		observability.SegmentsWritten.WithLabelValues("mpu").Inc()
	}

	if err := d.putObject(ctx, client, work.Container, work.Key, headers, manifestBody); err != nil {
		return segBytes, err
	}
	return segBytes + int64(len(manifestBody)), nil
}

func (d *objectDispatcher) copySegment(ctx context.Context, client storeapi.InternalClient, bucket string, seg reconcile.MigrateObjectWork) (int64, error) {
	resp, err := d.provider.GetObject(ctx, bucket, seg.Key, storeapi.GetObjectOptions{})
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	if !resp.Success {
		if rerr := resp.Reraise(); rerr != nil {
			return 0, rerr
		}
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, err
	}
	if err := d.putObject(ctx, client, seg.Container, seg.Key, map[string]string{}, data); err != nil {
		return 0, err
	}
	return int64(len(data)), nil
}

// putObject PUTs data, creating the destination container and retrying
// once on a 404 (spec §4.5 "common rules: if a segment PUT returns 404,
// create the destination container first and retry").
func (d *objectDispatcher) putObject(ctx context.Context, client storeapi.InternalClient, container, key string, headers map[string]string, data []byte) error {
	err := client.PutObject(ctx, d.account, container, key, headers, bytes.NewReader(data))
	if err == nil {
		return nil
	}
	if !errors.Is(err, storeapi.ErrContainerNotFound) {
		return err
	}
	if cerr := client.CreateContainer(ctx, d.account, container, map[string]string{}); cerr != nil {
		return err
	}
	return client.PutObject(ctx, d.account, container, key, headers, bytes.NewReader(data))
}

// buildManifestBody serializes segments into the JSON array shape an SLO
// manifest body takes (spec §4.5b), reusing storeapi.SLOSegment's field
// tags so it round-trips through Provider.GetManifest.
func buildManifestBody(segments []largeobject.Segment) ([]byte, error) {
	out := make([]storeapi.SLOSegment, len(segments))
	for i, s := range segments {
		out[i] = storeapi.SLOSegment{Path: s.Path, Hash: s.ETag, Size: s.Size}
	}
	return json.Marshal(out)
}

func parseContentLength(headers map[string]string) int64 {
	for _, key := range []string{"Content-Length", "content-length"} {
		if v, ok := headers[key]; ok {
			if n, err := strconv.ParseInt(v, 10, 64); err == nil {
				return n
			}
		}
	}
	return 0
}
