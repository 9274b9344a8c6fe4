package transport

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/artemis/bucket-migrate/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRemoteClientSwiftAuth(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "swift-token", r.Header.Get("X-Auth-Token"))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	m := config.Migration{AWSEndpoint: srv.URL, AWSBucket: "bucket", Protocol: config.ProtocolSwift, AWSSecret: "swift-token"}
	c := NewRemoteClient(m, nil)

	resp, meta, err := c.HeadBucket(context.Background(), "bucket")
	require.NoError(t, err)
	assert.True(t, resp.Success)
	assert.Equal(t, "bucket", meta.Name)
}

func TestRemoteClientS3SignsWithAuthorizationHeader(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.Header.Get("Authorization"), "AWS identity:")
		assert.NotEmpty(t, r.Header.Get("Date"))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	m := config.Migration{AWSEndpoint: srv.URL, AWSBucket: "bucket", Protocol: config.ProtocolS3, AWSIdentity: "identity", AWSSecret: "secret"}
	c := NewRemoteClient(m, nil)

	resp, _, err := c.HeadAccount(context.Background())
	require.NoError(t, err)
	assert.True(t, resp.Success)
}

func TestRemoteClientGetManifestDecodesSegments(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "multipart-manifest=get", r.URL.RawQuery)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[{"name":"bucket/segments/000001","hash":"abc","bytes":1024}]`))
	}))
	defer srv.Close()

	m := config.Migration{AWSEndpoint: srv.URL, AWSBucket: "bucket", Protocol: config.ProtocolS3}
	c := NewRemoteClient(m, nil)

	manifest, err := c.GetManifest(context.Background(), "bucket", "large-object")
	require.NoError(t, err)
	require.Len(t, manifest.Segments, 1)
	assert.Equal(t, "bucket/segments/000001", manifest.Segments[0].Path)
	assert.Equal(t, int64(1024), manifest.Segments[0].Size)
}
