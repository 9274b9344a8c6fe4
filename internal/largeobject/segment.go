package largeobject

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"

	"github.com/artemis/bucket-migrate/internal/storeapi"
)

// SegmentsSuffix names the auxiliary destination container holding parts
// for SLO/MPU/split objects (spec §4.5 "Segment container").
const SegmentsSuffix = "_segments"

// SegmentContainer returns the segment container name for container.
func SegmentContainer(container string) string {
	return container + SegmentsSuffix
}

// Segment is one already-written part backing an SLO manifest.
type Segment struct {
	Path string
	ETag string
	Size int64
}

// SegmentName builds the segment object name
// <key>/<x-ts>/<total-size>/<part-size>/<NNNNNNNN>, shared by the MPU and
// oversized-object cases (spec §4.5c/d).
func SegmentName(key string, ts storeapi.FixedTimestamp, totalSize, partSize int64, partNumber int) string {
	return fmt.Sprintf("%s/%s/%d/%d/%08d", key, ts.String(), totalSize, partSize, partNumber)
}

// GetSLOEtag computes the manifest etag law from spec §4.5/§8:
// hex(md5(concat(raw_md5(seg.etag) for seg in segments))). Each segment
// etag is itself a hex-encoded MD5; this decodes each to raw bytes,
// concatenates, and re-hashes.
func GetSLOEtag(segments []Segment) (string, error) {
	h := md5.New()
	for _, seg := range segments {
		raw, err := hex.DecodeString(seg.ETag)
		if err != nil {
			return "", fmt.Errorf("largeobject: segment %s has non-hex etag %q: %w", seg.Path, seg.ETag, err)
		}
		h.Write(raw)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
