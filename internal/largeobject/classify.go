package largeobject

import (
	"regexp"

	"github.com/artemis/bucket-migrate/internal/storeapi"
)

// Kind identifies which of the four cases in spec §4.5 applies to a
// remote object.
type Kind int

const (
	KindNone Kind = iota
	KindDLO
	KindSLO
	KindMPU
	KindOversized
)

// mpuEtagPattern matches an S3 multipart-upload etag: <hex-md5-of-parts>-<n>
// (spec §4.5c).
var mpuEtagPattern = regexp.MustCompile(`^[0-9a-f]+-[0-9]+$`)

// Classify selects which large-object case applies, given the remote
// object's metadata and content length (spec §4.5: "selected by headers on
// the remote GET response"). maxFileSize is the configured oversized-split
// threshold.
func Classify(meta storeapi.ObjectMeta, contentLength, maxFileSize int64) Kind {
	switch {
	case meta.Manifest != "":
		return KindDLO
	case meta.IsSLO:
		return KindSLO
	case meta.IsMPU || mpuEtagPattern.MatchString(meta.Hash):
		return KindMPU
	case contentLength > maxFileSize:
		return KindOversized
	default:
		return KindNone
	}
}
