package storeapi

// Well-known header names observed on the wire (spec §6 "Observable headers").
const (
	HeaderMigratorObject    = "x-sys-migrator-object"
	HeaderMigratorContainer = "x-sys-migrator-container"
	HeaderObjectManifest    = "x-object-manifest"
	HeaderStaticLargeObject = "x-static-large-object"
	HeaderTimestamp         = "x-timestamp"
	HeaderBackendTimestamp  = "x-backend-timestamp"
	HeaderDurableTimestamp  = "x-backend-durable-timestamp"
	HeaderETag              = "etag"
	HeaderMPUPartsCount     = "x-amz-mp-parts-count"
	HeaderStoragePolicy     = "X-Storage-Policy"
	HeaderStoragePolicyIdx  = "X-Backend-Storage-Policy-Index"
	HeaderVersionsLocation  = "x-versions-location"
	HeaderHistoryLocation   = "x-history-location"
)

// Container state values carried in HeaderMigratorContainer (spec §3
// invariants).
const (
	ContainerStateMigrating = "MIGRATING"
	ContainerStateSrcDeleted = "SRC_DELETED"
	ContainerStateModified  = "MODIFIED"
)

// ObjectMeta is the provider-neutral envelope for a single object's
// metadata. Conversion to/from provider-native header maps goes through
// ToSwiftHeaders/FromHeaders, called by the transport clients and the
// migrator's dispatcher (spec §9 "typed envelope at boundaries").
type ObjectMeta struct {
	Name         string
	Hash         string // etag
	Bytes        int64
	LastModified FixedTimestamp

	// Manifest is the x-object-manifest value ("<container>/<prefix>") when
	// this object is a DLO manifest, empty otherwise.
	Manifest string
	// IsSLO reports whether x-static-large-object: True was present.
	IsSLO bool
	// IsMPU reports whether the remote etag/headers indicate an S3
	// multipart-upload object (spec §4.5c).
	IsMPU bool
	// MPUPartsCount is parsed from x-amz-mp-parts-count when present.
	MPUPartsCount int

	// IsMigratorOwned reports whether the destination copy carries
	// HeaderMigratorObject (spec §3 global invariant).
	IsMigratorOwned bool
	// SysTimestamp is the value of HeaderMigratorObject on the destination
	// copy, equal to the timestamp it was migrated with.
	SysTimestamp FixedTimestamp

	// StoragePolicy carries X-Storage-Policy for container-creation use.
	StoragePolicy string

	// Raw preserves any headers not modeled above, for passthrough.
	Raw map[string]string
}

// ContainerMeta is the provider-neutral envelope for container-level
// metadata (spec §4.7 "container bootstrap").
type ContainerMeta struct {
	Name string

	// MigratorState is the HeaderMigratorContainer value; empty means the
	// container is client-owned and must never be deleted or have its
	// state flipped.
	MigratorState string

	VersionsLocation string
	HistoryLocation  string
	StoragePolicy    string

	LastModified FixedTimestamp
	Raw          map[string]string
}

// IsMigratorOwned reports whether this container carries a recognized
// x-sys-migrator-container state (spec §3 global invariant).
func (c ContainerMeta) IsMigratorOwned() bool {
	switch c.MigratorState {
	case ContainerStateMigrating, ContainerStateSrcDeleted, ContainerStateModified:
		return true
	default:
		return false
	}
}

// ToSwiftHeaders converts an ObjectMeta into the Swift-form header map
// InternalClient expects on a PUT/POST. It never emits HeaderMigratorObject
// for segment objects — callers that need that header set it explicitly
// (spec §4.5 "segments must not carry x-sys-migrator-object").
func (o ObjectMeta) ToSwiftHeaders() map[string]string {
	headers := make(map[string]string, len(o.Raw)+4)
	for k, v := range o.Raw {
		headers[k] = v
	}
	headers[HeaderTimestamp] = o.LastModified.String()
	if o.Manifest != "" {
		headers[HeaderObjectManifest] = o.Manifest
	}
	if o.IsSLO {
		headers[HeaderStaticLargeObject] = "True"
	}
	if o.StoragePolicy != "" {
		headers[HeaderStoragePolicy] = o.StoragePolicy
	}
	return headers
}

// FromHeaders parses a raw response header map (either S3- or Swift-form;
// callers normalize key case before calling) into an ObjectMeta.
func FromHeaders(name string, headers map[string]string) ObjectMeta {
	meta := ObjectMeta{Name: name, Raw: make(map[string]string, len(headers))}
	for k, v := range headers {
		meta.Raw[k] = v
	}

	meta.Hash = headers[HeaderETag]
	if manifest, ok := headers[HeaderObjectManifest]; ok {
		meta.Manifest = manifest
	}
	if slo, ok := headers[HeaderStaticLargeObject]; ok && (slo == "True" || slo == "true") {
		meta.IsSLO = true
	}
	if partsCount, ok := headers[HeaderMPUPartsCount]; ok && partsCount != "" {
		meta.IsMPU = true
	}
	if sys, ok := headers[HeaderMigratorObject]; ok {
		meta.IsMigratorOwned = true
		if ts, err := ParseTimestamp(sys); err == nil {
			meta.SysTimestamp = ts
		}
	}
	if policy, ok := headers[HeaderStoragePolicy]; ok {
		meta.StoragePolicy = policy
	}
	return meta
}

// ContainerMetaFromHeaders parses a HEAD-container response into a
// ContainerMeta.
func ContainerMetaFromHeaders(name string, headers map[string]string) ContainerMeta {
	meta := ContainerMeta{Name: name, Raw: make(map[string]string, len(headers))}
	for k, v := range headers {
		meta.Raw[k] = v
	}
	meta.MigratorState = headers[HeaderMigratorContainer]
	meta.VersionsLocation = headers[HeaderVersionsLocation]
	meta.HistoryLocation = headers[HeaderHistoryLocation]
	meta.StoragePolicy = headers[HeaderStoragePolicy]
	return meta
}

// ListingEntry is one entry in an object listing page (spec §3).
type ListingEntry struct {
	Name         string
	Hash         string
	Bytes        int64
	LastModified FixedTimestamp
}

// BucketEntry is one entry in a list-buckets page.
type BucketEntry struct {
	Name string
}

// ContainerEntry is one entry in a local list-containers page (spec §4.7
// all-buckets discovery).
type ContainerEntry struct {
	Name string
}
