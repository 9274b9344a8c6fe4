package transport

import (
	"context"
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/artemis/bucket-migrate/internal/config"
	"github.com/artemis/bucket-migrate/internal/storeapi"
)

// RemoteClient is a storeapi.Provider over a remote S3- or Swift-
// compatible endpoint, signing each request with the style its
// Migration.Protocol names. It only implements the subset of each wire
// protocol the reconciler and large-object handler actually drive (list,
// head, get) — full bucket administration is out of scope (spec §1).
type RemoteClient struct {
	endpoint   string
	bucket     string
	protocol   config.Protocol
	identity   string
	secret     string
	httpClient *http.Client
}

// NewRemoteClient builds a Provider bound to one migration's remote side.
func NewRemoteClient(m config.Migration, httpClient *http.Client) *RemoteClient {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &RemoteClient{
		endpoint:   strings.TrimRight(m.AWSEndpoint, "/"),
		bucket:     m.AWSBucket,
		protocol:   m.Protocol,
		identity:   m.AWSIdentity,
		secret:     m.AWSSecret,
		httpClient: httpClient,
	}
}

func (c *RemoteClient) sign(req *http.Request, resource string) {
	switch c.protocol {
	case config.ProtocolSwift:
		req.Header.Set("X-Auth-Token", c.secret)
	default: // S3 — a minimal v2-style signature sufficient for S3-compatible gateways.
		date := time.Now().UTC().Format(http.TimeFormat)
		req.Header.Set("Date", date)
		mac := hmac.New(sha1.New, []byte(c.secret))
		fmt.Fprintf(mac, "%s\n\n\n%s\n%s", req.Method, date, resource)
		sig := base64.StdEncoding.EncodeToString(mac.Sum(nil))
		req.Header.Set("Authorization", fmt.Sprintf("AWS %s:%s", c.identity, sig))
	}
}

func (c *RemoteClient) do(ctx context.Context, method, path string, query url.Values) (*storeapi.Response, error) {
	u := c.endpoint + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, u, nil)
	if err != nil {
		return nil, fmt.Errorf("transport: building remote request: %w", err)
	}
	c.sign(req, path)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("transport: %s %s: %w", method, path, err)
	}

	headers := make(map[string]string, len(resp.Header))
	for k := range resp.Header {
		headers[strings.ToLower(k)] = resp.Header.Get(k)
	}
	return storeapi.NewResponse(method, path, resp.StatusCode, headers, resp.Body), nil
}

func (c *RemoteClient) ListBuckets(ctx context.Context, marker string, limit int) (*storeapi.Response, []storeapi.BucketEntry, error) {
	q := url.Values{}
	q.Set("max-keys", strconv.Itoa(limit))
	if marker != "" {
		q.Set("marker", marker)
	}
	resp, err := c.do(ctx, http.MethodGet, "/", q)
	if err != nil {
		return nil, nil, err
	}
	if !resp.Success {
		return resp, nil, nil
	}
	defer resp.Body.Close()

	var parsed struct {
		Buckets []struct {
			Name string `json:"name"`
		} `json:"buckets"`
	}
	if err := decodeJSON(resp.Body, &parsed); err != nil {
		return resp, nil, fmt.Errorf("transport: decoding bucket listing: %w", err)
	}
	out := make([]storeapi.BucketEntry, len(parsed.Buckets))
	for i, b := range parsed.Buckets {
		out[i] = storeapi.BucketEntry{Name: b.Name}
	}
	return resp, out, nil
}

func (c *RemoteClient) ListObjects(ctx context.Context, bucket, marker string, limit int, prefix string) (*storeapi.Response, []storeapi.ListingEntry, error) {
	q := url.Values{}
	q.Set("max-keys", strconv.Itoa(limit))
	if marker != "" {
		q.Set("marker", marker)
	}
	if prefix != "" {
		q.Set("prefix", prefix)
	}
	resp, err := c.do(ctx, http.MethodGet, "/"+bucket, q)
	if err != nil {
		return nil, nil, err
	}
	if !resp.Success {
		return resp, nil, nil
	}
	defer resp.Body.Close()

	entries, err := decodeSwiftListing(resp.Body)
	if err != nil {
		return resp, nil, fmt.Errorf("transport: decoding object listing: %w", err)
	}
	return resp, entries, nil
}

func (c *RemoteClient) HeadBucket(ctx context.Context, bucket string) (*storeapi.Response, storeapi.ContainerMeta, error) {
	resp, err := c.do(ctx, http.MethodHead, "/"+bucket, nil)
	if err != nil {
		return nil, storeapi.ContainerMeta{}, err
	}
	if !resp.Success {
		return resp, storeapi.ContainerMeta{}, nil
	}
	return resp, storeapi.ContainerMetaFromHeaders(bucket, resp.Headers), nil
}

func (c *RemoteClient) HeadAccount(ctx context.Context) (*storeapi.Response, map[string]string, error) {
	resp, err := c.do(ctx, http.MethodHead, "/", nil)
	if err != nil {
		return nil, nil, err
	}
	return resp, resp.Headers, nil
}

func (c *RemoteClient) HeadObject(ctx context.Context, bucket, key string) (*storeapi.Response, storeapi.ObjectMeta, error) {
	resp, err := c.do(ctx, http.MethodHead, "/"+bucket+"/"+pathEscapeKey(key), nil)
	if err != nil {
		return nil, storeapi.ObjectMeta{}, err
	}
	if !resp.Success {
		return resp, storeapi.ObjectMeta{}, nil
	}
	meta := storeapi.FromHeaders(key, resp.Headers)
	if n, err := strconv.ParseInt(resp.Headers["content-length"], 10, 64); err == nil {
		meta.Bytes = n
	}
	return resp, meta, nil
}

func (c *RemoteClient) GetObject(ctx context.Context, bucket, key string, opts storeapi.GetObjectOptions) (*storeapi.Response, error) {
	q := url.Values{}
	if opts.QueryString != "" {
		parsed, err := url.ParseQuery(opts.QueryString)
		if err == nil {
			q = parsed
		}
	}
	if opts.PartNumber > 0 {
		q.Set("partNumber", strconv.Itoa(opts.PartNumber))
	}

	path := "/" + bucket + "/" + pathEscapeKey(key)
	u := c.endpoint + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("transport: building get-object request: %w", err)
	}
	if opts.IfMatch != "" {
		req.Header.Set("If-Match", opts.IfMatch)
	}
	c.sign(req, path)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("transport: GET %s: %w", path, err)
	}
	headers := make(map[string]string, len(resp.Header))
	for k := range resp.Header {
		headers[strings.ToLower(k)] = resp.Header.Get(k)
	}
	return storeapi.NewResponse(http.MethodGet, path, resp.StatusCode, headers, resp.Body), nil
}

func (c *RemoteClient) GetManifest(ctx context.Context, bucket, key string) (*storeapi.SLOManifest, error) {
	resp, err := c.GetObject(ctx, bucket, key, storeapi.GetObjectOptions{QueryString: "multipart-manifest=get"})
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if !resp.Success {
		return nil, resp.Reraise()
	}

	var segments []storeapi.SLOSegment
	if err := json.NewDecoder(resp.Body).Decode(&segments); err != nil {
		return nil, fmt.Errorf("transport: decoding SLO manifest: %w", err)
	}
	return &storeapi.SLOManifest{Segments: segments}, nil
}

func (c *RemoteClient) Close() error { return nil }
