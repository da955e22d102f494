package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/joho/godotenv"

	"github.com/retailpos/pos-backend/internal/app"
	"github.com/retailpos/pos-backend/internal/catalog"
	"github.com/retailpos/pos-backend/internal/directory"
	"github.com/retailpos/pos-backend/internal/inventory"
	"github.com/retailpos/pos-backend/internal/invoicing"
	"github.com/retailpos/pos-backend/internal/observability"
	"github.com/retailpos/pos-backend/internal/platform/cache"
	"github.com/retailpos/pos-backend/internal/platform/db"
	"github.com/retailpos/pos-backend/internal/platform/httpx"
	"github.com/retailpos/pos-backend/internal/pricing"
	"github.com/retailpos/pos-backend/internal/shared"
	"github.com/retailpos/pos-backend/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Default().Warn("load .env", slog.Any("error", err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}
	logger := app.NewLogger(cfg, "pos-api")

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()
	if err := db.Migrate(ctx, pool); err != nil {
		logger.Error("apply schema", slog.Any("error", err))
		os.Exit(1)
	}

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Warn("redis unavailable, price cache and job queue degraded", slog.Any("error", err))
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	metrics := observability.NewMetrics()
	respond := httpx.NewResponder(logger, cfg.IsProduction())
	auditLogger := shared.NewAuditLogger(pool)
	idempotencyStore := shared.NewIdempotencyStore(pool)

	redisOpts := asynq.RedisClientOpt{Addr: cfg.RedisAddr}
	jobClient := jobs.NewClient(redisOpts)
	defer func() {
		if err := jobClient.Close(); err != nil {
			logger.Warn("job client close", slog.Any("error", err))
		}
	}()
	inspector := asynq.NewInspector(redisOpts)
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()

	catalogService := catalog.NewService(catalog.NewRepository(pool))
	directoryService := directory.NewService(directory.NewRepository(pool))

	priceCache := pricing.NewCache(redisClient, cfg.PriceCacheTTL)
	pricingService := pricing.NewService(pricing.NewRepository(pool), priceCache, catalogService, directoryService, logger)

	inventoryRepo := inventory.NewRepository(pool)
	inventoryService := inventory.NewService(inventoryRepo, inventory.ServiceDeps{
		Audit:    auditLogger,
		Branches: directoryService,
		Skus:     catalogService,
		Notifier: jobClient,
		Metrics:  metrics,
		Logger:   logger,
	})

	invoiceService := invoicing.NewService(invoicing.NewRepository(pool), invoicing.ServiceDeps{
		Directory:     directoryService,
		Catalog:       catalogService,
		Stock:         inventoryRepo,
		Prices:        pricingService,
		Idempotency:   idempotencyStore,
		Audit:         auditLogger,
		Notifier:      jobClient,
		Metrics:       metrics,
		Logger:        logger,
		Currency:      cfg.Currency,
		DefaultSeries: cfg.DefaultSeries,
	})

	router := app.NewRouter(app.RouterParams{
		Logger:           logger,
		Config:           cfg,
		InvoiceHandler:   invoicing.NewHandler(logger, invoiceService, respond),
		InventoryHandler: inventory.NewHandler(logger, inventoryService, respond),
		PricingHandler:   pricing.NewHandler(pricingService, respond),
		CatalogHandler:   catalog.NewHandler(catalogService, respond),
		DirectoryHandler: directory.NewHandler(directoryService, respond),
		JobHandler:       jobs.NewHandler(inspector, jobClient, logger, respond),
		Metrics:          metrics,
		Checks: map[string]app.HealthCheck{
			"postgres": func(r *http.Request) error { return pool.Ping(r.Context()) },
			"redis":    func(r *http.Request) error { return cache.Ping(r.Context(), redisClient) },
		},
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
