package migrator

import (
	"context"
	"fmt"
	"time"

	"github.com/artemis/bucket-migrate/internal/config"
	"github.com/artemis/bucket-migrate/internal/server"
	"github.com/artemis/bucket-migrate/internal/statestore"
	"go.uber.org/zap"
)

// Daemon is component C8: it iterates the configured migrations, sleeps
// between sweeps, and prunes status entries that no longer match any
// active migration (spec §4, component table row C8).
type Daemon struct {
	Config     *config.DaemonConfig
	Store      *statestore.Store
	Controller *PassController
	Logger     *zap.Logger

	// Broadcaster streams pass-progress events to the admin surface's
	// websocket clients (spec §6 "GET /ws"). Nil is valid: the daemon
	// runs unchanged with the admin surface disabled.
	Broadcaster *server.Server

	Now func() time.Time
}

func (d *Daemon) broadcast(u server.MigrationUpdate) {
	if d.Broadcaster == nil {
		return
	}
	d.Broadcaster.BroadcastUpdate(u)
}

func (d *Daemon) now() time.Time {
	if d.Now != nil {
		return d.Now()
	}
	return time.Now()
}

// Run loops until ctx is cancelled: one sweep over every configured
// migration (each wrapped so a single failure never aborts the sweep,
// spec §7 "a bare exception is logged ... and the next migration
// proceeds"), a status-store prune, then a poll-interval sleep that
// accounts for however long the sweep itself took (spec §5 "sleeps
// max(0, poll_interval - elapsed) between passes").
func (d *Daemon) Run(ctx context.Context) error {
	for {
		start := d.now()

		migrations := d.Config.MigrationsCopy()
		for _, m := range migrations {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if err := d.runOne(ctx, m); err != nil {
				d.Logger.Error("migration pass failed", zap.String("migration", m.Key()), zap.Error(err))
			}
		}

		if err := d.Store.Prune(migrations); err != nil {
			d.Logger.Error("status prune failed", zap.Error(err))
		}

		elapsed := d.now().Sub(start)
		sleep := d.Config.PollInterval - elapsed
		if sleep < 0 {
			sleep = 0
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(sleep):
		}
	}
}

// runOne drives a single migration's pass — the "/*" wildcard discovery
// path or a single-container pass — recovering from a panic so that one
// broken migration can never end the daemon loop (spec §7 "only errors in
// pass-setup terminate the pass; they never terminate the daemon loop").
func (d *Daemon) runOne(ctx context.Context, m config.Migration) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic in migration %s: %v", m.Key(), r)
		}
	}()

	start := d.now()
	d.broadcast(server.MigrationUpdate{Migration: m.Key(), Event: "pass_started", Timestamp: start.Unix()})

	if m.AllBuckets() {
		handled, runErr := d.Controller.RunAllBuckets(ctx, m)
		d.Logger.Info("all-buckets pass complete",
			zap.String("migration", m.Key()),
			zap.Duration("duration", d.now().Sub(start)),
			zap.Int("containers_handled", len(handled)))
		if runErr != nil {
			d.broadcast(server.MigrationUpdate{Migration: m.Key(), Event: "pass_failed", Error: runErr.Error(), Timestamp: d.now().Unix()})
		} else {
			d.broadcast(server.MigrationUpdate{Migration: m.Key(), Event: "pass_complete", Timestamp: d.now().Unix()})
		}
		return runErr
	}

	result, runErr := d.Controller.RunPass(ctx, m)
	if runErr != nil {
		d.broadcast(server.MigrationUpdate{Migration: m.Key(), Event: "pass_failed", Error: runErr.Error(), Timestamp: d.now().Unix()})
		return runErr
	}
	d.Logger.Info("migration pass complete",
		zap.String("migration", m.Key()),
		zap.Duration("duration", d.now().Sub(start)),
		zap.Int64("scanned", result.Scanned),
		zap.Int64("moved", result.Moved),
		zap.Int64("bytes", result.Bytes))
	d.broadcast(server.MigrationUpdate{
		Migration: m.Key(), Event: "pass_complete",
		Scanned: result.Scanned, Moved: result.Moved, Bytes: result.Bytes,
		Timestamp: d.now().Unix(),
	})
	return nil
}
