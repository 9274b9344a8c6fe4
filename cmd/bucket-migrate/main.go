package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/artemis/bucket-migrate/internal/config"
	"github.com/artemis/bucket-migrate/internal/identity"
	"github.com/artemis/bucket-migrate/internal/migrator"
	"github.com/artemis/bucket-migrate/internal/observability"
	"github.com/artemis/bucket-migrate/internal/ring"
	"github.com/artemis/bucket-migrate/internal/server"
	"github.com/artemis/bucket-migrate/internal/statestore"
	"github.com/artemis/bucket-migrate/internal/storeapi"
	"github.com/artemis/bucket-migrate/internal/transport"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	cfgFile string
	logger  *observability.Logger
	cfg     *config.DaemonConfig
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "bucket-migrate",
	Short: "Peer-to-peer bucket/container migration daemon",
	Long: `bucket-migrate reconciles a remote S3- or Swift-compatible bucket into a
local Swift-like cluster, sharding work across a ring of peers.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		logger, err = observability.NewLogger("info")
		if err != nil {
			return fmt.Errorf("initializing logger: %w", err)
		}

		cfg, err = config.LoadConfig(cfgFile)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}

		if cfg.LogLevel != "" {
			if l, err := observability.NewLogger(cfg.LogLevel); err == nil {
				logger = l
			} else {
				logger.Warn("failed to set log level, using default", zap.Error(err))
			}
		}
		return nil
	},
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the migration daemon until interrupted",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runDaemon(cmd.Context())
	},
}

var onceCmd = &cobra.Command{
	Use:   "once",
	Short: "Run a single sweep over every configured migration, then exit",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runOnce(cmd.Context())
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Print the persisted status of every configured migration",
	RunE: func(cmd *cobra.Command, args []string) error {
		return printStatus()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "/etc/bucket-migrate/config.json", "path to the daemon config file")
	rootCmd.AddCommand(runCmd, onceCmd, statusCmd)
}

// buildComponents wires the ambient and domain stacks described by the
// config into the concrete collaborators PassController and Daemon depend
// on through interfaces. Migrations share one remote identity/endpoint —
// operators running against multiple distinct remote accounts run
// separate daemons, one config file each.
func buildComponents() (*migrator.PassController, *statestore.Store, *server.Server, *identity.Identity, error) {
	metrics := observability.NewMetrics()
	health := observability.NewHealthChecker()

	store := statestore.New(cfg.StatusFile, func() int64 { return time.Now().Unix() })
	if err := store.Load(); err != nil {
		return nil, nil, nil, nil, fmt.Errorf("loading status store: %w", err)
	}
	health.RegisterCheck("status_store", func(ctx context.Context) error { return nil })

	r := ring.New(cfg.RingVNodes)
	for _, peer := range cfg.RingPeers {
		r.AddNode(ring.NodeID(peer))
	}
	selector := ring.NewSelector(r, ring.NodeID(cfg.NodeID), cfg.ContainerReplicas)

	var id *identity.Identity
	if cfg.TLSEnabled {
		var err error
		id, err = identity.Load(cfg.DataDir, cfg.NodeID, logger.Logger)
		if err != nil {
			return nil, nil, nil, nil, fmt.Errorf("loading node identity: %w", err)
		}
	}

	migrations := cfg.MigrationsCopy()
	var provider storeapi.Provider
	if len(migrations) > 0 {
		provider = transport.NewRemoteClient(migrations[0], nil)
	}

	clients, err := storeapi.NewClientPool(cfg.Workers+1, transport.NewClient(cfg.LocalEndpoint, cfg.LocalAuthToken))
	if err != nil {
		return nil, nil, nil, nil, fmt.Errorf("building local client pool: %w", err)
	}

	var stats observability.StatsSink = observability.NewPrometheusStatsSink(metrics, "daemon")
	if cfg.StatsdHost != "" {
		stats = observability.NewMultiSink(stats, observability.NewStatsdSink(cfg.StatsdHost, cfg.StatsdPort, cfg.StatsdPrefix))
	}

	controller := &migrator.PassController{
		Provider:    provider,
		Clients:     clients,
		Selector:    selector,
		Store:       store,
		Stats:       stats,
		Logger:      logger.Logger,
		Workers:     cfg.Workers,
		MaxFileSize: cfg.SegmentSize,
		SegmentSize: cfg.SegmentSize,
	}

	admin := server.New(cfg, store, health, id, logger.Logger)

	return controller, store, admin, id, nil
}

func runDaemon(ctx context.Context) error {
	controller, store, admin, _, err := buildComponents()
	if err != nil {
		return err
	}

	d := &migrator.Daemon{
		Config:      cfg,
		Store:       store,
		Controller:  controller,
		Logger:      logger.Logger,
		Broadcaster: admin,
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 2)
	go func() {
		errCh <- admin.Run(ctx)
	}()
	go func() {
		errCh <- d.Run(ctx)
	}()

	<-ctx.Done()
	logger.Info("shutdown signal received, waiting for in-flight work to stop")

	select {
	case err := <-errCh:
		if err != nil && err != context.Canceled {
			return err
		}
	case <-time.After(30 * time.Second):
		logger.Warn("timed out waiting for graceful shutdown")
	}
	return nil
}

func runOnce(ctx context.Context) error {
	controller, store, _, _, err := buildComponents()
	if err != nil {
		return err
	}

	for _, m := range cfg.MigrationsCopy() {
		if m.AllBuckets() {
			handled, runErr := controller.RunAllBuckets(ctx, m)
			if runErr != nil {
				logger.Error("all-buckets pass failed", zap.String("migration", m.Key()), zap.Error(runErr))
				continue
			}
			logger.Info("all-buckets pass complete", zap.String("migration", m.Key()), zap.Int("containers_handled", len(handled)))
			continue
		}
		result, runErr := controller.RunPass(ctx, m)
		if runErr != nil {
			logger.Error("migration pass failed", zap.String("migration", m.Key()), zap.Error(runErr))
			continue
		}
		logger.Info("migration pass complete",
			zap.String("migration", m.Key()),
			zap.Int64("scanned", result.Scanned),
			zap.Int64("moved", result.Moved),
			zap.Int64("bytes", result.Bytes))
	}

	migrations := cfg.MigrationsCopy()
	return store.Prune(migrations)
}

func printStatus() error {
	store := statestore.New(cfg.StatusFile, func() int64 { return time.Now().Unix() })
	if err := store.Load(); err != nil {
		return fmt.Errorf("loading status store: %w", err)
	}

	for _, e := range store.Entries() {
		r := e.Redacted()
		fmt.Printf("%-40s marker=%-20s moved=%-10d scanned=%-10d bytes=%d\n",
			e.Migration.Key(), r.Status.Marker, r.Status.MovedCount, r.Status.ScannedCount, r.Status.BytesCount)
	}
	return nil
}
