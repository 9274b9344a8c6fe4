// Package server is the admin HTTP surface (spec §2 component C11): a
// small gin API exposing migration status plus a gorilla/websocket stream
// of live pass progress. It is an observability/ops convenience — the
// daemon loop (internal/migrator.Daemon) runs correctly with this surface
// never started. Trimmed from the teacher's internal/server package:
// the Docker resource CRUD routes, peer pairing, and compose-stack
// endpoints don't apply here; only the health/metrics/status/websocket
// shape survives, rebound to migration status.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/artemis/bucket-migrate/internal/config"
	"github.com/artemis/bucket-migrate/internal/identity"
	"github.com/artemis/bucket-migrate/internal/observability"
	"github.com/artemis/bucket-migrate/internal/statestore"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Server serves GET /healthz, GET /ready, GET /metrics, GET /migrations,
// GET /migrations/:key/status, and GET /ws (spec §6).
type Server struct {
	config *config.DaemonConfig
	store  *statestore.Store
	health *observability.HealthChecker
	id     *identity.Identity
	logger *zap.Logger
	hub    *Hub
	router *gin.Engine

	httpServer *http.Server
}

// New builds a Server and wires its routes. id may be nil when
// tls_enabled is false.
func New(cfg *config.DaemonConfig, store *statestore.Store, health *observability.HealthChecker, id *identity.Identity, logger *zap.Logger) *Server {
	if cfg.LogLevel == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	s := &Server{
		config: cfg,
		store:  store,
		health: health,
		id:     id,
		logger: logger,
		hub:    NewHub(logger),
	}
	s.setupRouter()
	return s
}

func (s *Server) setupRouter() {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(s.loggingMiddleware())

	r.GET("/healthz", s.health.HealthHandler())
	r.GET("/ready", s.health.ReadyHandler())
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	r.GET("/migrations", s.listMigrations)
	r.GET("/migrations/:key/status", s.migrationStatus)
	r.GET("/ws", s.handleWebSocket)

	s.router = r
}

func (s *Server) loggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.URL.Path == "/healthz" || c.Request.URL.Path == "/ready" {
			c.Next()
			return
		}
		c.Next()
		s.logger.Debug("admin request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
		)
	}
}

// listMigrations returns every configured migration's key and persisted
// status, used by operators to see pass progress without tailing logs.
func (s *Server) listMigrations(c *gin.Context) {
	entries := s.store.Entries()
	out := make([]gin.H, 0, len(entries))
	for _, e := range entries {
		out = append(out, gin.H{
			"key":    e.Migration.Key(),
			"status": e.Status,
		})
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) migrationStatus(c *gin.Context) {
	key := c.Param("key")
	for _, e := range s.store.Entries() {
		if e.Migration.Key() == key {
			c.JSON(http.StatusOK, gin.H{"key": key, "status": e.Status})
			return
		}
	}
	c.JSON(http.StatusNotFound, gin.H{"error": "migration not found"})
}

func (s *Server) handleWebSocket(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.logger.Error("failed to upgrade admin websocket", zap.Error(err))
		return
	}
	cl := &client{hub: s.hub, conn: conn, send: make(chan []byte, 256)}
	cl.hub.register <- cl
	go cl.writePump()
	go cl.readPump()
}

// BroadcastUpdate fans a pass-progress event out to connected /ws clients.
// The daemon calls this when a pass starts and when it completes or
// fails; a panic-free no-op when no clients are connected.
func (s *Server) BroadcastUpdate(u MigrationUpdate) {
	s.hub.BroadcastUpdate(u)
}

// Run starts the hub dispatch loop and serves HTTP (or HTTPS, when the
// daemon config enables TLS) until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	go s.hub.Run()
	defer s.hub.Stop()

	s.httpServer = &http.Server{
		Addr:    s.config.HTTPAddr,
		Handler: s.router,
	}

	if s.config.TLSEnabled && s.id != nil {
		tlsConfig, err := s.id.TLSConfig()
		if err != nil {
			return fmt.Errorf("server: building TLS config: %w", err)
		}
		s.httpServer.TLSConfig = tlsConfig
	}

	errCh := make(chan error, 1)
	go func() {
		var err error
		if s.config.TLSEnabled && s.id != nil {
			err = s.httpServer.ListenAndServeTLS("", "")
		} else {
			err = s.httpServer.ListenAndServe()
		}
		if err != nil && err != http.ErrServerClosed {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.httpServer.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}
