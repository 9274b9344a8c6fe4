package largeobject

import (
	"context"
	"errors"
	"io"

	"github.com/artemis/bucket-migrate/internal/storeapi"
)

// fakeInternalClient is an in-memory storeapi.InternalClient used only by
// this package's tests, grounded on the spec's "testable with in-memory
// fakes" design note (§9).
type fakeInternalClient struct {
	objects    map[string][]byte
	containers map[string]bool
}

func newFakeInternalClient() *fakeInternalClient {
	return &fakeInternalClient{objects: map[string][]byte{}, containers: map[string]bool{}}
}

func key(container, k string) string { return container + "/" + k }

func (f *fakeInternalClient) MakePath(account, container, k string) string { return key(container, k) }

func (f *fakeInternalClient) MakeRequest(ctx context.Context, method, path string, headers map[string]string, okStatuses []int, body io.Reader) (*storeapi.Response, error) {
	return nil, errors.New("not implemented in fake")
}

func (f *fakeInternalClient) GetObjectMetadata(ctx context.Context, account, container, k string) (storeapi.ObjectMeta, error) {
	data, ok := f.objects[key(container, k)]
	if !ok {
		return storeapi.ObjectMeta{}, storeapi.ErrContainerNotFound
	}
	return storeapi.ObjectMeta{Name: k, Bytes: int64(len(data))}, nil
}

func (f *fakeInternalClient) GetContainerMetadata(ctx context.Context, account, container string) (storeapi.ContainerMeta, error) {
	return storeapi.ContainerMeta{Name: container}, nil
}

func (f *fakeInternalClient) ContainerExists(ctx context.Context, account, container string) (bool, error) {
	return f.containers[container], nil
}

func (f *fakeInternalClient) SetContainerMetadata(ctx context.Context, account, container string, headers map[string]string) error {
	return nil
}

func (f *fakeInternalClient) ListObjects(ctx context.Context, account, container, marker string, limit int, prefix string) ([]storeapi.ListingEntry, error) {
	return nil, nil
}

func (f *fakeInternalClient) ListContainers(ctx context.Context, account, marker string, limit int) ([]storeapi.ContainerEntry, error) {
	return nil, nil
}

func (f *fakeInternalClient) SetAccountMetadata(ctx context.Context, account string, headers map[string]string) error {
	return nil
}

func (f *fakeInternalClient) GetObject(ctx context.Context, account, container, k string) (*storeapi.Response, error) {
	return nil, errors.New("not implemented in fake")
}

func (f *fakeInternalClient) PutObject(ctx context.Context, account, container, k string, headers map[string]string, body io.Reader) error {
	if !f.containers[container] {
		return storeapi.ErrContainerNotFound
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	f.objects[key(container, k)] = data
	return nil
}

func (f *fakeInternalClient) DeleteObject(ctx context.Context, account, container, k string, headers map[string]string) error {
	delete(f.objects, key(container, k))
	return nil
}

func (f *fakeInternalClient) DeleteContainer(ctx context.Context, account, container string) error {
	delete(f.containers, container)
	return nil
}

func (f *fakeInternalClient) CreateContainer(ctx context.Context, account, container string, headers map[string]string) error {
	f.containers[container] = true
	return nil
}

func (f *fakeInternalClient) Close() error { return nil }
