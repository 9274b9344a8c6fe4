package migrator

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/artemis/bucket-migrate/internal/config"
	"github.com/artemis/bucket-migrate/internal/storeapi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// fakeProvider is an in-memory storeapi.Provider used only by this
// package's tests (spec §9 "testable with in-memory fakes").
type fakeProvider struct {
	buckets map[string]storeapi.ContainerMeta
	account map[string]string
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{buckets: map[string]storeapi.ContainerMeta{}, account: map[string]string{}}
}

func (f *fakeProvider) ListBuckets(ctx context.Context, marker string, limit int) (*storeapi.Response, []storeapi.BucketEntry, error) {
	return nil, nil, errors.New("not implemented in fake")
}

func (f *fakeProvider) ListObjects(ctx context.Context, bucket, marker string, limit int, prefix string) (*storeapi.Response, []storeapi.ListingEntry, error) {
	return nil, nil, nil
}

func (f *fakeProvider) HeadBucket(ctx context.Context, bucket string) (*storeapi.Response, storeapi.ContainerMeta, error) {
	meta, ok := f.buckets[bucket]
	if !ok {
		return storeapi.NewResponse("HEAD", bucket, 404, nil, nil), storeapi.ContainerMeta{}, nil
	}
	return storeapi.NewResponse("HEAD", bucket, 200, nil, nil), meta, nil
}

func (f *fakeProvider) HeadAccount(ctx context.Context) (*storeapi.Response, map[string]string, error) {
	return storeapi.NewResponse("HEAD", "/", 200, nil, nil), f.account, nil
}

func (f *fakeProvider) HeadObject(ctx context.Context, bucket, key string) (*storeapi.Response, storeapi.ObjectMeta, error) {
	return nil, storeapi.ObjectMeta{}, errors.New("not implemented in fake")
}

func (f *fakeProvider) GetObject(ctx context.Context, bucket, key string, opts storeapi.GetObjectOptions) (*storeapi.Response, error) {
	return nil, errors.New("not implemented in fake")
}

func (f *fakeProvider) GetManifest(ctx context.Context, bucket, key string) (*storeapi.SLOManifest, error) {
	return nil, errors.New("not implemented in fake")
}

func (f *fakeProvider) Close() error { return nil }

// fakeLocalClient is a minimal in-memory storeapi.InternalClient covering
// the subset bootstrapContainer drives: container existence, creation, and
// metadata get/set.
type fakeLocalClient struct {
	containers map[string]storeapi.ContainerMeta
	created    []string
}

func newFakeLocalClient() *fakeLocalClient {
	return &fakeLocalClient{containers: map[string]storeapi.ContainerMeta{}}
}

func (f *fakeLocalClient) MakePath(account, container, key string) string { return container + "/" + key }
func (f *fakeLocalClient) MakeRequest(ctx context.Context, method, path string, headers map[string]string, okStatuses []int, body io.Reader) (*storeapi.Response, error) {
	return nil, errors.New("not implemented in fake")
}

func (f *fakeLocalClient) GetObjectMetadata(ctx context.Context, account, container, key string) (storeapi.ObjectMeta, error) {
	return storeapi.ObjectMeta{}, storeapi.ErrContainerNotFound
}

func (f *fakeLocalClient) GetContainerMetadata(ctx context.Context, account, container string) (storeapi.ContainerMeta, error) {
	meta, ok := f.containers[container]
	if !ok {
		return storeapi.ContainerMeta{}, storeapi.ErrContainerNotFound
	}
	return meta, nil
}

func (f *fakeLocalClient) ContainerExists(ctx context.Context, account, container string) (bool, error) {
	_, ok := f.containers[container]
	return ok, nil
}

func (f *fakeLocalClient) ListObjects(ctx context.Context, account, container, marker string, limit int, prefix string) ([]storeapi.ListingEntry, error) {
	return nil, nil
}

func (f *fakeLocalClient) ListContainers(ctx context.Context, account, marker string, limit int) ([]storeapi.ContainerEntry, error) {
	return nil, nil
}

func (f *fakeLocalClient) SetContainerMetadata(ctx context.Context, account, container string, headers map[string]string) error {
	meta := f.containers[container]
	if meta.Raw == nil {
		meta.Raw = map[string]string{}
	}
	for k, v := range headers {
		meta.Raw[k] = v
		if k == storeapi.HeaderMigratorContainer {
			meta.MigratorState = v
		}
	}
	f.containers[container] = meta
	return nil
}

func (f *fakeLocalClient) SetAccountMetadata(ctx context.Context, account string, headers map[string]string) error {
	return nil
}

func (f *fakeLocalClient) GetObject(ctx context.Context, account, container, key string) (*storeapi.Response, error) {
	return nil, errors.New("not implemented in fake")
}

func (f *fakeLocalClient) PutObject(ctx context.Context, account, container, key string, headers map[string]string, body io.Reader) error {
	return errors.New("not implemented in fake")
}

func (f *fakeLocalClient) DeleteObject(ctx context.Context, account, container, key string, headers map[string]string) error {
	return nil
}

func (f *fakeLocalClient) DeleteContainer(ctx context.Context, account, container string) error {
	delete(f.containers, container)
	return nil
}

func (f *fakeLocalClient) CreateContainer(ctx context.Context, account, container string, headers map[string]string) error {
	f.created = append(f.created, container)
	meta := storeapi.ContainerMeta{Name: container, Raw: map[string]string{}}
	for k, v := range headers {
		meta.Raw[k] = v
		if k == storeapi.HeaderMigratorContainer {
			meta.MigratorState = v
		}
	}
	f.containers[container] = meta
	return nil
}

func (f *fakeLocalClient) Close() error { return nil }

func TestBootstrapContainerNonSwiftCreatesMissingContainer(t *testing.T) {
	client := newFakeLocalClient()
	m := config.Migration{Account: "acct", AWSBucket: "bucket", Protocol: config.ProtocolS3}

	err := bootstrapContainer(context.Background(), newFakeProvider(), client, m, zap.NewNop())
	require.NoError(t, err)
	assert.Contains(t, client.created, "bucket")
}

func TestBootstrapContainerNonSwiftSkipsExisting(t *testing.T) {
	client := newFakeLocalClient()
	client.containers["bucket"] = storeapi.ContainerMeta{Name: "bucket"}
	m := config.Migration{Account: "acct", AWSBucket: "bucket", Protocol: config.ProtocolS3}

	err := bootstrapContainer(context.Background(), newFakeProvider(), client, m, zap.NewNop())
	require.NoError(t, err)
	assert.Empty(t, client.created)
}

func TestBootstrapContainerSwiftCreatesWithMigratingState(t *testing.T) {
	client := newFakeLocalClient()
	provider := newFakeProvider()
	provider.buckets["bucket"] = storeapi.ContainerMeta{Name: "bucket"}
	m := config.Migration{Account: "acct", AWSBucket: "bucket", Protocol: config.ProtocolSwift}

	err := bootstrapContainer(context.Background(), provider, client, m, zap.NewNop())
	require.NoError(t, err)

	meta := client.containers["bucket"]
	assert.Equal(t, storeapi.ContainerStateMigrating, meta.MigratorState)
}

func TestBootstrapContainerSwiftFlipsSrcDeletedToModified(t *testing.T) {
	client := newFakeLocalClient()
	client.containers["bucket"] = storeapi.ContainerMeta{
		Name: "bucket", MigratorState: storeapi.ContainerStateSrcDeleted,
	}
	provider := newFakeProvider()
	provider.buckets["bucket"] = storeapi.ContainerMeta{Name: "bucket"}
	m := config.Migration{Account: "acct", AWSBucket: "bucket", Protocol: config.ProtocolSwift}

	err := bootstrapContainer(context.Background(), provider, client, m, zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, storeapi.ContainerStateModified, client.containers["bucket"].MigratorState)
}
