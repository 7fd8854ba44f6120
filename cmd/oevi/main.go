package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/oevi/oevi/internal/app"
	"github.com/oevi/oevi/internal/arca"
	"github.com/oevi/oevi/internal/cashbox"
	"github.com/oevi/oevi/internal/dashboard"
	"github.com/oevi/oevi/internal/export"
	"github.com/oevi/oevi/internal/importer"
	"github.com/oevi/oevi/internal/ledger"
	"github.com/oevi/oevi/internal/margin"
	"github.com/oevi/oevi/internal/params"
	"github.com/oevi/oevi/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	dbpool, err := pgxpool.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbpool.Close()

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Warn("redis ping", slog.Any("error", err))
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	if err := os.MkdirAll(cfg.UploadDir, 0o755); err != nil {
		logger.Error("create upload dir", slog.Any("error", err))
		os.Exit(1)
	}

	ledgerRepo := ledger.NewRepository(dbpool)
	paramsRepo := params.NewRepository(dbpool)
	resolver := params.NewResolver(paramsRepo)

	ledgerHandler := ledger.NewHandler(logger, ledgerRepo)

	cashboxService := cashbox.NewService(logger, ledgerRepo, resolver, cfg.CashboxColorCount)
	cashboxHandler := cashbox.NewHandler(logger, cashboxService, export.WriteCashboxCSV)

	marginService := margin.NewService(logger, ledgerRepo, resolver, cashboxService, cfg.CompanyBoxOwner)
	marginHandler := margin.NewHandler(logger, marginService, export.WritePartnerSummaryCSV)

	arcaService := arca.NewService(logger, ledgerRepo)
	arcaHandler := arca.NewHandler(logger, arcaService, export.WriteOperationsCSV, export.WriteTotalsCSV)

	dashboardCache := dashboard.NewCache(redisClient, cfg.DashboardCacheTTL)
	if err := dashboardCache.ListenForInvalidation(ctx, ""); err != nil {
		logger.Warn("subscribe cache invalidation", slog.Any("error", err))
	}
	dashboardService := dashboard.NewService(logger, ledgerRepo, resolver, dashboardCache)
	dashboardHandler := dashboard.NewHandler(logger, dashboardService, export.WriteDashboardCSV)

	importService := importer.NewService(logger, ledgerRepo, resolver, dashboardService, cfg.UploadDir)

	jobsClient, err := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	if err != nil {
		logger.Error("init jobs client", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := jobsClient.Close(); err != nil {
			logger.Warn("jobs client close", slog.Any("error", err))
		}
	}()
	importHandler := importer.NewHandler(logger, importService, jobsClient, cfg.UploadDir)

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobHandler := jobs.NewHandler(inspector, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:           logger,
		Config:           cfg,
		LedgerHandler:    ledgerHandler,
		MarginHandler:    marginHandler,
		CashboxHandler:   cashboxHandler,
		ArcaHandler:      arcaHandler,
		DashboardHandler: dashboardHandler,
		ImportHandler:    importHandler,
		JobHandler:       jobHandler,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
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
