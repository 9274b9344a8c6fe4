package largeobject

import (
	"bytes"
	"context"
	"crypto/md5"
	"encoding/hex"
	"io"

	"github.com/artemis/bucket-migrate/internal/storeapi"
)

// SplitOversized implements spec §4.5d: drain the body, cut it into
// segmentSize-byte segments, upload each under the same naming layout as
// the MPU case, then return the segments so the caller can synthesize and
// upload the manifest.
func SplitOversized(ctx context.Context, local storeapi.InternalClient, body io.Reader, account, container, key string, ts storeapi.FixedTimestamp, segmentSize int64) ([]Segment, int64, error) {
	data, err := io.ReadAll(body)
	if err != nil {
		return nil, 0, err
	}
	totalSize := int64(len(data))
	segContainer := SegmentContainer(container)

	var segments []Segment
	part := 0
	for offset := int64(0); offset < totalSize; offset += segmentSize {
		end := offset + segmentSize
		if end > totalSize {
			end = totalSize
		}
		part++
		chunk := data[offset:end]
		sum := md5.Sum(chunk)
		etag := hex.EncodeToString(sum[:])

		// The name's <part-size> field is the configured segment size, not
		// the trailing chunk's actual (possibly shorter) length (spec §8
		// scenario 4) — every part shares one prefix.
		segName := SegmentName(key, ts, totalSize, segmentSize, part)
		if err := putSegment(ctx, local, account, segContainer, segName, bytes.Clone(chunk)); err != nil {
			deleteSegments(ctx, local, account, segContainer, segments)
			return nil, 0, err
		}

		segments = append(segments, Segment{Path: segContainer + "/" + segName, ETag: etag, Size: int64(len(chunk))})
	}

	return segments, totalSize, nil
}
