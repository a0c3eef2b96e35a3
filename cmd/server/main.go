package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/Simplici0/printquote/internal/adjust"
	"github.com/Simplici0/printquote/internal/backfill"
	"github.com/Simplici0/printquote/internal/cache"
	"github.com/Simplici0/printquote/internal/catalog"
	"github.com/Simplici0/printquote/internal/config"
	"github.com/Simplici0/printquote/internal/db"
	"github.com/Simplici0/printquote/internal/logging"
	"github.com/Simplici0/printquote/internal/metrics"
	"github.com/Simplici0/printquote/internal/migrations"
	"github.com/Simplici0/printquote/internal/quoting"
	"github.com/Simplici0/printquote/internal/seed"
)

type server struct {
	auth   *authService
	quotes *quoting.Service
	adjust *adjust.Service
	logger *zap.Logger
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		zap.NewExample().Fatal("failed to load configuration", zap.Error(err))
	}

	logger := logging.New(cfg.Log)
	defer func() { _ = logger.Sync() }()
	for _, w := range cfg.Warnings() {
		logger.Warn(w)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	database, err := db.Open(cfg.DBPath)
	if err != nil {
		logger.Fatal("failed to open database", zap.Error(err))
	}
	defer database.Close()

	if cfg.IsDev() {
		if err := migrations.Up(ctx, database.DB, cfg.MigrationsDir, logger); err != nil {
			logger.Fatal("failed to run database migrations", zap.Error(err))
		}
	}
	if version, err := migrations.Version(database.DB); err != nil {
		logger.Fatal("failed to read schema version", zap.Error(err))
	} else {
		logger.Info("database ready", zap.String("path", cfg.DBPath), zap.Int64("schema_version", version))
	}

	stats, err := seed.Run(ctx, database, seed.Config{
		AdminEmail:    cfg.AdminEmail,
		AdminPassword: cfg.AdminPassword,
		DemoCatalog:   cfg.IsDev(),
	})
	if err != nil {
		logger.Fatal("failed to seed database", zap.Error(err))
	}
	if stats.Inserts > 0 {
		logger.Info("database seeded", zap.Int("inserts", stats.Inserts))
	}

	opts := quoting.Options{StoreTimeout: cfg.StoreTimeout, BatchSize: cfg.Backfill.BatchSize}
	if cfg.Redis.Addr != "" {
		redisClient, err := cache.NewRedisClient(cfg.Redis)
		if err != nil {
			logger.Warn("quote cache disabled", zap.Error(err))
		} else {
			defer redisClient.Close()
			opts.Cache = cache.NewQuoteCache(redisClient, cfg.QuoteCacheTTL)
		}
	}

	quotes := quoting.NewService(catalog.NewStore(database), logger, opts)
	srv := &server{
		auth:   newAuthService(database, cfg.SessionSecret),
		quotes: quotes,
		adjust: adjust.NewService(database, logger),
		logger: logger,
	}

	if cfg.Backfill.Interval > 0 {
		go backfill.NewWorker(quotes, cfg.Backfill.Interval, logger).Start(ctx)
	}

	httpServer := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           srv.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("http server failed", zap.Error(err))
		}
	}()
	logger.Info("server listening", zap.String("addr", httpServer.Addr), zap.String("env", cfg.Env))

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}
}

func (s *server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(metrics.Middleware)

	r.Get("/healthz", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())
	r.Post("/login", s.handleLogin)
	r.Post("/logout", s.handleLogout)

	r.Route("/products/{id}", func(r chi.Router) {
		r.Post("/quote", s.handleQuote)
		r.Get("/defaults", s.handleDefaults)
	})

	r.Route("/admin", func(r chi.Router) {
		r.Use(s.auth.requireAdmin)
		r.Post("/presets/{key}/recompute-min-price", s.handleRecomputeMinPrice)
		r.Put("/presets/{key}/config", s.handleUpdateFormula)
		r.Post("/bulk-adjustments", s.handleBulkAdjust)
		r.Post("/rollbacks", s.handleRollback)
		r.Get("/activity", s.handleActivity)
		r.Post("/backfill", s.handleBackfill)
		r.Post("/snapshots/prune", s.handlePruneSnapshots)
	})
	return r
}

func (s *server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		s.logger.Info("http request",
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Int("bytes", ww.BytesWritten()),
			zap.Duration("duration", time.Since(start)),
		)
	})
}
