package storeapi

import (
	"context"
	"io"
)

// Response is the uniform shape returned by every Provider and
// InternalClient call (spec §6): success/status/headers plus a body the
// caller can stream. Reraise lets a caller that
// only checked Success re-derive a typed error on demand.
type Response struct {
	Success bool
	Status  int
	Headers map[string]string
	Body    io.ReadCloser

	method string
	path   string
}

// Reraise converts a non-success Response into the taxonomy error for its
// status code (spec §6 ".reraise()").
func (r *Response) Reraise() error {
	if r.Success {
		return nil
	}
	return ClassifyStatus(r.method, r.path, r.Status)
}

// NewResponse builds a Response and tags it with the call it came from, so
// Reraise can classify it later.
func NewResponse(method, path string, status int, headers map[string]string, body io.ReadCloser) *Response {
	return &Response{
		Success: status >= 200 && status < 300,
		Status:  status,
		Headers: headers,
		Body:    body,
		method:  method,
		path:    path,
	}
}

// GetObjectOptions narrows a Provider.GetObject call (spec §6).
type GetObjectOptions struct {
	QueryString   string
	RespChunkSize int
	PartNumber    int
	IfMatch       string
}

// Provider is the abstract contract for a remote store (S3-flavor or
// Swift-flavor). Concrete HTTP clients are out of scope (spec §1); the
// reconciler and migration pass controller depend only on this interface,
// which makes them testable with in-memory fakes (spec §9).
type Provider interface {
	ListBuckets(ctx context.Context, marker string, limit int) (*Response, []BucketEntry, error)
	ListObjects(ctx context.Context, bucket, marker string, limit int, prefix string) (*Response, []ListingEntry, error)
	HeadBucket(ctx context.Context, bucket string) (*Response, ContainerMeta, error)
	HeadAccount(ctx context.Context) (*Response, map[string]string, error)
	HeadObject(ctx context.Context, bucket, key string) (*Response, ObjectMeta, error)
	GetObject(ctx context.Context, bucket, key string, opts GetObjectOptions) (*Response, error)
	GetManifest(ctx context.Context, bucket, key string) (*SLOManifest, error)
	Close() error
}

// InternalClient is the abstract contract for the local Swift-like store
// (spec §6). A bounded ClientPool (size workers+1) hands these out so no
// task ever holds two at once (spec §5).
type InternalClient interface {
	MakePath(account, container, key string) string
	MakeRequest(ctx context.Context, method, path string, headers map[string]string, okStatuses []int, body io.Reader) (*Response, error)

	GetObjectMetadata(ctx context.Context, account, container, key string) (ObjectMeta, error)
	GetContainerMetadata(ctx context.Context, account, container string) (ContainerMeta, error)
	ContainerExists(ctx context.Context, account, container string) (bool, error)
	// ListObjects returns one page of the full local listing ordered by
	// name, starting strictly after marker — the local side of the merge-join
	// reconciler (spec §4.3).
	ListObjects(ctx context.Context, account, container, marker string, limit int, prefix string) ([]ListingEntry, error)
	// ListContainers returns one page of the account's local containers
	// ordered by name, starting strictly after marker — used by the pass
	// controller's all-buckets discovery to merge-join against the
	// remote bucket listing (spec §4.7 "list remote buckets, merge-join
	// against local containers").
	ListContainers(ctx context.Context, account, marker string, limit int) ([]ContainerEntry, error)
	SetContainerMetadata(ctx context.Context, account, container string, headers map[string]string) error
	SetAccountMetadata(ctx context.Context, account string, headers map[string]string) error
	GetObject(ctx context.Context, account, container, key string) (*Response, error)
	PutObject(ctx context.Context, account, container, key string, headers map[string]string, body io.Reader) error
	DeleteObject(ctx context.Context, account, container, key string, headers map[string]string) error
	DeleteContainer(ctx context.Context, account, container string) error
	CreateContainer(ctx context.Context, account, container string, headers map[string]string) error
	Close() error
}

// SLOManifest is the parsed JSON body of a Static Large Object manifest
// (spec §4.5b).
type SLOManifest struct {
	Segments []SLOSegment
}

// SLOSegment is one entry in an SLO manifest.
type SLOSegment struct {
	Path string `json:"name"`
	Hash string `json:"hash"`
	Size int64  `json:"bytes"`
}
