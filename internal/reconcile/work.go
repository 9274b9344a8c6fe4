package reconcile

import (
	"io"

	"github.com/artemis/bucket-migrate/internal/storeapi"
)

// MigrateObjectWork asks a worker to copy one object from the remote
// bucket into the local container (spec §3 "Work items").
type MigrateObjectWork struct {
	AWSBucket string
	Container string
	Key       string
	ListingTS storeapi.FixedTimestamp

	// ManifestUpload marks a work item re-enqueued from the manifest set's
	// drain (spec §4.6 step 4): the dispatcher already deferred this DLO
	// manifest once and must upload it as-is this time rather than
	// reclassifying and deferring it again (spec §4.5a).
	ManifestUpload bool
}

// UploadObjectWork describes a PUT of a pre-materialized body (spec §3).
// Nothing in this repository constructs one: segments and synthesized
// manifests are written directly through InternalClient.PutObject.
type UploadObjectWork struct {
	AWSBucket string
	Container string
	Key       string
	Headers   map[string]string
	Body      io.Reader
}

// ManifestEntry is one pending DLO manifest awaiting its segments (spec §3
// "Manifest set"). Enqueued by the large-object handler when a DLO
// manifest is first observed, drained by the controller once all
// referenced segment containers have been reconciled (spec §4.6 step 4).
type ManifestEntry struct {
	AWSBucket string
	Container string
	Key       string
	Timestamp storeapi.FixedTimestamp
}
