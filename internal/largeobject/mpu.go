package largeobject

import (
	"bytes"
	"context"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/artemis/bucket-migrate/internal/storeapi"
)

// ReassembleMPU implements spec §4.5c: download each part of an S3
// multipart-upload object via ranged/part-numbered GETs, re-upload each as
// a segment, then synthesize an SLO manifest whose etag must equal the
// remote multipart etag. On mismatch, every segment already written is
// deleted and a MigrationError is returned (spec §8 scenario 4).
func ReassembleMPU(ctx context.Context, remote storeapi.Provider, local storeapi.InternalClient, account, bucket, container, key string, meta storeapi.ObjectMeta, ts storeapi.FixedTimestamp, totalSize int64) ([]Segment, string, error) {
	segContainer := SegmentContainer(container)
	partsCount := meta.MPUPartsCount
	if partsCount == 0 {
		return nil, "", storeapi.NewMigrationError(container, key, "multipart object missing parts count")
	}

	segments := make([]Segment, 0, partsCount)
	var firstPartSize int64
	for part := 1; part <= partsCount; part++ {
		resp, err := remote.GetObject(ctx, bucket, key, storeapi.GetObjectOptions{PartNumber: part})
		if err != nil {
			deleteSegments(ctx, local, account, segContainer, segments)
			return nil, "", err
		}

		data, rawMD5, err := readAndHash(resp.Body)
		resp.Body.Close()
		if err != nil {
			deleteSegments(ctx, local, account, segContainer, segments)
			return nil, "", err
		}
		if part == 1 {
			firstPartSize = int64(len(data))
		}

		// Every part's segment name shares the first part's size in its
		// <part-size> field, even when the trailing part is shorter (spec
		// §8 scenario 4): the name encodes the upload's part-size
		// convention, not each segment's individual byte count.
		segName := SegmentName(key, ts, totalSize, firstPartSize, part)
		if err := putSegment(ctx, local, account, segContainer, segName, data); err != nil {
			deleteSegments(ctx, local, account, segContainer, segments)
			return nil, "", err
		}

		segments = append(segments, Segment{Path: segContainer + "/" + segName, ETag: hex.EncodeToString(rawMD5), Size: int64(len(data))})
	}

	computed, err := GetSLOEtag(segments)
	if err != nil {
		deleteSegments(ctx, local, account, segContainer, segments)
		return nil, "", err
	}

	expected := mpuBaseEtag(meta.Hash)
	if computed != expected {
		deleteSegments(ctx, local, account, segContainer, segments)
		return nil, "", storeapi.NewMigrationError(container, key, fmt.Sprintf("MPU reassembly etag mismatch: computed %s, expected %s", computed, expected))
	}

	return segments, computed, nil
}

// mpuBaseEtag strips the "-<n>" part-count suffix from an S3 multipart
// etag, leaving the hex digest to compare against.
func mpuBaseEtag(etag string) string {
	if idx := strings.LastIndexByte(etag, '-'); idx >= 0 {
		if _, err := strconv.Atoi(etag[idx+1:]); err == nil {
			return etag[:idx]
		}
	}
	return etag
}

func readAndHash(r io.Reader) ([]byte, []byte, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, nil, err
	}
	sum := md5.Sum(data)
	return data, sum[:], nil
}

func putSegment(ctx context.Context, local storeapi.InternalClient, account, container, name string, data []byte) error {
	// Segments must never carry HeaderMigratorObject (spec §4.5 "common
	// rules") — a subsequent pass would otherwise mistake them for
	// orphaned migrator objects and delete them.
	return createAndRetry(ctx, local, account, container, func() error {
		return local.PutObject(ctx, account, container, name, map[string]string{}, bytes.NewReader(data))
	})
}

func createAndRetry(ctx context.Context, local storeapi.InternalClient, account, container string, put func() error) error {
	err := put()
	if err == nil {
		return nil
	}
	// spec §4.5 "common rules": a 404 on segment PUT means the segment
	// container doesn't exist yet; create it and retry once.
	if !errors.Is(err, storeapi.ErrContainerNotFound) {
		return err
	}
	if createErr := local.CreateContainer(ctx, account, container, map[string]string{}); createErr != nil {
		return err
	}
	return put()
}

func deleteSegments(ctx context.Context, local storeapi.InternalClient, account, container string, segments []Segment) {
	for _, seg := range segments {
		_, key, err := splitSegmentPath(seg.Path)
		if err != nil {
			continue
		}
		_ = local.DeleteObject(ctx, account, container, key, nil)
	}
}
