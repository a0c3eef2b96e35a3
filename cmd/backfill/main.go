// Command backfill recomputes the cached from-price of every product once and exits.
// With -prune-older-than it also drops preset snapshots older than the given age.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/Simplici0/printquote/internal/adjust"
	"github.com/Simplici0/printquote/internal/catalog"
	"github.com/Simplici0/printquote/internal/config"
	"github.com/Simplici0/printquote/internal/db"
	"github.com/Simplici0/printquote/internal/logging"
	"github.com/Simplici0/printquote/internal/migrations"
	"github.com/Simplici0/printquote/internal/quoting"
)

func main() {
	preset := flag.String("preset", "", "only recompute products of this preset key")
	migrate := flag.Bool("migrate", false, "apply pending migrations first")
	pruneOlderThan := flag.Duration("prune-older-than", 0, "drop preset snapshots older than this age (0 keeps all)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		zap.NewExample().Fatal("failed to load configuration", zap.Error(err))
	}
	logger := logging.New(cfg.Log)
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	database, err := db.Open(cfg.DBPath)
	if err != nil {
		logger.Fatal("failed to open database", zap.Error(err))
	}
	defer database.Close()

	if *migrate {
		if err := migrations.Up(ctx, database.DB, cfg.MigrationsDir, logger); err != nil {
			logger.Fatal("failed to run database migrations", zap.Error(err))
		}
	}
	version, err := migrations.Version(database.DB)
	if err != nil {
		logger.Fatal("failed to read schema version", zap.Error(err))
	}
	logger.Info("database ready", zap.Int64("schema_version", version))

	if *pruneOlderThan > 0 {
		removed, err := adjust.NewService(database, logger).PruneSnapshots(ctx, time.Now().Add(-*pruneOlderThan))
		if err != nil {
			logger.Fatal("prune failed", zap.Error(err))
		}
		logger.Info("prune done", zap.Int64("removed", removed), zap.Duration("older_than", *pruneOlderThan))
	}

	svc := quoting.NewService(catalog.NewStore(database), logger, quoting.Options{
		StoreTimeout: cfg.StoreTimeout,
		BatchSize:    cfg.Backfill.BatchSize,
	})

	if *preset != "" {
		n, err := svc.RecomputeMinPrice(ctx, *preset)
		if err != nil {
			logger.Fatal("recompute failed", zap.String("preset", *preset), zap.Error(err))
		}
		logger.Info("recompute done", zap.String("preset", *preset), zap.Int("updated", n))
		return
	}

	if _, err := svc.Backfill(ctx); err != nil {
		logger.Fatal("backfill failed", zap.Error(err))
	}
}
