package server

import (
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/artemis/bucket-migrate/internal/config"
	"github.com/artemis/bucket-migrate/internal/observability"
	"github.com/artemis/bucket-migrate/internal/statestore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	store := statestore.New(filepath.Join(t.TempDir(), "status.json"), func() int64 { return 0 })
	require.NoError(t, store.Load())

	m := config.Migration{Account: "acct", AWSBucket: "bucket", Container: "container"}
	require.NoError(t, store.Save(m, "marker-1", 5, 10, 1024, false))

	health := observability.NewHealthChecker()
	cfg := &config.DaemonConfig{HTTPAddr: ":0", LogLevel: "debug"}
	return New(cfg, store, health, nil, zap.NewNop())
}

func TestServerHealthz(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestServerListMigrations(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/migrations", nil)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "acct:bucket->container")
}

func TestServerMigrationStatusNotFound(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/migrations/does-not-exist/status", nil)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
