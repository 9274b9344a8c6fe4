// Package transport supplies the concrete net/http-backed
// storeapi.Provider and storeapi.InternalClient implementations the
// migration pass controller depends on through interfaces (spec §1 marks
// these "external collaborators", out of scope for the reconciliation
// core). No REST/S3/Swift client library appears anywhere in the
// retrieved example pack, so these talk the wire protocols directly over
// net/http — see DESIGN.md for the standard-library justification.
package transport

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/artemis/bucket-migrate/internal/storeapi"
)

// SwiftClient is a storeapi.InternalClient backed by a Swift-compatible
// local cluster, reached over plain HTTP(S) with a reusable http.Client.
type SwiftClient struct {
	baseURL    string
	authToken  string
	httpClient *http.Client
}

// NewSwiftClient builds a SwiftClient against baseURL (scheme://host:port,
// no trailing slash), authenticating every request with authToken as
// X-Auth-Token — the Swift convention.
func NewSwiftClient(baseURL, authToken string, httpClient *http.Client) *SwiftClient {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &SwiftClient{baseURL: strings.TrimRight(baseURL, "/"), authToken: authToken, httpClient: httpClient}
}

// MakePath builds the canonical Swift object path: /v1/<account>/<container>/<key>.
func (c *SwiftClient) MakePath(account, container, key string) string {
	parts := []string{"v1", url.PathEscape(account)}
	if container != "" {
		parts = append(parts, url.PathEscape(container))
	}
	if key != "" {
		parts = append(parts, pathEscapeKey(key))
	}
	return "/" + strings.Join(parts, "/")
}

// pathEscapeKey escapes an object key segment-by-segment so embedded "/"
// characters (common in large-object keys) survive unescaped.
func pathEscapeKey(key string) string {
	segments := strings.Split(key, "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	return strings.Join(segments, "/")
}

// MakeRequest issues one HTTP request against the local cluster, treating
// any status in okStatuses (or any 2xx when okStatuses is empty) as
// success.
func (c *SwiftClient) MakeRequest(ctx context.Context, method, path string, headers map[string]string, okStatuses []int, body io.Reader) (*storeapi.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("transport: building request: %w", err)
	}
	req.Header.Set("X-Auth-Token", c.authToken)
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("transport: %s %s: %w", method, path, err)
	}

	respHeaders := make(map[string]string, len(resp.Header))
	for k := range resp.Header {
		respHeaders[strings.ToLower(k)] = resp.Header.Get(k)
	}

	success := isOK(resp.StatusCode, okStatuses)
	out := storeapi.NewResponse(method, path, resp.StatusCode, respHeaders, resp.Body)
	out.Success = success
	return out, nil
}

func isOK(status int, okStatuses []int) bool {
	if len(okStatuses) == 0 {
		return status >= 200 && status < 300
	}
	for _, s := range okStatuses {
		if s == status {
			return true
		}
	}
	return false
}

func (c *SwiftClient) GetObjectMetadata(ctx context.Context, account, container, key string) (storeapi.ObjectMeta, error) {
	resp, err := c.MakeRequest(ctx, http.MethodHead, c.MakePath(account, container, key), nil, nil, nil)
	if err != nil {
		return storeapi.ObjectMeta{}, err
	}
	if !resp.Success {
		return storeapi.ObjectMeta{}, resp.Reraise()
	}
	meta := storeapi.FromHeaders(key, resp.Headers)
	if n, err := strconv.ParseInt(resp.Headers["content-length"], 10, 64); err == nil {
		meta.Bytes = n
	}
	if ts, err := storeapi.ParseTimestamp(resp.Headers[strings.ToLower(storeapi.HeaderTimestamp)]); err == nil {
		meta.LastModified = ts
	}
	return meta, nil
}

func (c *SwiftClient) GetContainerMetadata(ctx context.Context, account, container string) (storeapi.ContainerMeta, error) {
	resp, err := c.MakeRequest(ctx, http.MethodHead, c.MakePath(account, container, ""), nil, nil, nil)
	if err != nil {
		return storeapi.ContainerMeta{}, err
	}
	if !resp.Success {
		return storeapi.ContainerMeta{}, resp.Reraise()
	}
	return storeapi.ContainerMetaFromHeaders(container, resp.Headers), nil
}

func (c *SwiftClient) ContainerExists(ctx context.Context, account, container string) (bool, error) {
	resp, err := c.MakeRequest(ctx, http.MethodHead, c.MakePath(account, container, ""), nil, []int{200, 204, 404}, nil)
	if err != nil {
		return false, err
	}
	return resp.Status != 404, nil
}

func (c *SwiftClient) ListObjects(ctx context.Context, account, container, marker string, limit int, prefix string) ([]storeapi.ListingEntry, error) {
	q := url.Values{}
	q.Set("format", "json")
	q.Set("limit", strconv.Itoa(limit))
	if marker != "" {
		q.Set("marker", marker)
	}
	if prefix != "" {
		q.Set("prefix", prefix)
	}
	path := c.MakePath(account, container, "") + "?" + q.Encode()

	resp, err := c.MakeRequest(ctx, http.MethodGet, path, nil, []int{200, 204, 404}, nil)
	if err != nil {
		return nil, err
	}
	if resp.Status == 404 {
		return nil, storeapi.ErrContainerNotFound
	}
	if resp.Status == 204 || !resp.Success {
		return nil, resp.Reraise()
	}
	defer resp.Body.Close()
	return decodeSwiftListing(resp.Body)
}

func (c *SwiftClient) ListContainers(ctx context.Context, account, marker string, limit int) ([]storeapi.ContainerEntry, error) {
	q := url.Values{}
	q.Set("format", "json")
	q.Set("limit", strconv.Itoa(limit))
	if marker != "" {
		q.Set("marker", marker)
	}
	path := c.MakePath(account, "", "") + "?" + q.Encode()

	resp, err := c.MakeRequest(ctx, http.MethodGet, path, nil, []int{200, 204}, nil)
	if err != nil {
		return nil, err
	}
	if resp.Status == 204 || !resp.Success {
		return nil, resp.Reraise()
	}
	defer resp.Body.Close()

	var raw []struct {
		Name string `json:"name"`
	}
	if err := decodeJSON(resp.Body, &raw); err != nil {
		return nil, err
	}
	out := make([]storeapi.ContainerEntry, len(raw))
	for i, r := range raw {
		out[i] = storeapi.ContainerEntry{Name: r.Name}
	}
	return out, nil
}

func (c *SwiftClient) SetContainerMetadata(ctx context.Context, account, container string, headers map[string]string) error {
	resp, err := c.MakeRequest(ctx, http.MethodPost, c.MakePath(account, container, ""), headers, nil, nil)
	if err != nil {
		return err
	}
	if !resp.Success {
		return resp.Reraise()
	}
	return nil
}

func (c *SwiftClient) SetAccountMetadata(ctx context.Context, account string, headers map[string]string) error {
	resp, err := c.MakeRequest(ctx, http.MethodPost, c.MakePath(account, "", ""), headers, nil, nil)
	if err != nil {
		return err
	}
	if !resp.Success {
		return resp.Reraise()
	}
	return nil
}

func (c *SwiftClient) GetObject(ctx context.Context, account, container, key string) (*storeapi.Response, error) {
	return c.MakeRequest(ctx, http.MethodGet, c.MakePath(account, container, key), nil, nil, nil)
}

func (c *SwiftClient) PutObject(ctx context.Context, account, container, key string, headers map[string]string, body io.Reader) error {
	resp, err := c.MakeRequest(ctx, http.MethodPut, c.MakePath(account, container, key), headers, []int{201, 202}, body)
	if err != nil {
		return err
	}
	if resp.Body != nil {
		defer resp.Body.Close()
	}
	if !resp.Success {
		return resp.Reraise()
	}
	return nil
}

func (c *SwiftClient) DeleteObject(ctx context.Context, account, container, key string, headers map[string]string) error {
	resp, err := c.MakeRequest(ctx, http.MethodDelete, c.MakePath(account, container, key), headers, []int{204, 404}, nil)
	if err != nil {
		return err
	}
	if resp.Body != nil {
		defer resp.Body.Close()
	}
	if resp.Status == 404 {
		return nil
	}
	if !resp.Success {
		return resp.Reraise()
	}
	return nil
}

func (c *SwiftClient) DeleteContainer(ctx context.Context, account, container string) error {
	resp, err := c.MakeRequest(ctx, http.MethodDelete, c.MakePath(account, container, ""), nil, []int{204, 404, 409}, nil)
	if err != nil {
		return err
	}
	if resp.Body != nil {
		defer resp.Body.Close()
	}
	if resp.Status == 404 {
		return nil
	}
	if !resp.Success {
		return resp.Reraise()
	}
	return nil
}

func (c *SwiftClient) CreateContainer(ctx context.Context, account, container string, headers map[string]string) error {
	resp, err := c.MakeRequest(ctx, http.MethodPut, c.MakePath(account, container, ""), headers, []int{201, 202}, nil)
	if err != nil {
		return err
	}
	if resp.Body != nil {
		defer resp.Body.Close()
	}
	if !resp.Success {
		return resp.Reraise()
	}
	return nil
}

func (c *SwiftClient) Close() error { return nil }

// NewClient builds a storeapi.InternalClient factory suitable for
// storeapi.NewClientPool, opening one independent http.Client per pooled
// slot (Swift has no per-connection session state worth sharing beyond
// the transport's own connection pooling).
func NewClient(baseURL, authToken string) func() (storeapi.InternalClient, error) {
	return func() (storeapi.InternalClient, error) {
		return NewSwiftClient(baseURL, authToken, &http.Client{}), nil
	}
}
