// Package main provides the main entry point for the campaign sending service
//
// @title Campaign Sender API
// @version 1.0
// @description WhatsApp campaign sending engine: run control, statistics and reports
// @BasePath /
package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/amirphl/campaign-sender/app/handlers"
	"github.com/amirphl/campaign-sender/app/router"
	"github.com/amirphl/campaign-sender/app/scheduler"
	"github.com/amirphl/campaign-sender/app/services"
	businessflow "github.com/amirphl/campaign-sender/business_flow"
	"github.com/amirphl/campaign-sender/config"
	"github.com/amirphl/campaign-sender/repository"
	"github.com/gofiber/fiber/v3"
	"github.com/redis/go-redis/v9"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Application represents the main application structure
type Application struct {
	router    router.Router
	config    *config.ProductionConfig
	server    *fiber.App
	registry  *scheduler.Registry
	logger    *slog.Logger
	stopFuncs []func()
}

func main() {
	cfg, err := config.LoadProductionConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger, logCloser := config.NewLogger(cfg.Logging)
	defer logCloser.Close()
	slog.SetDefault(logger)

	logger.Info("Starting campaign sender",
		"version", cfg.Deployment.Version,
		"commit", cfg.Deployment.CommitHash,
		"environment", cfg.Deployment.Environment,
	)

	app, err := initializeApplication(cfg, logger)
	if err != nil {
		logger.Error("Failed to initialize application", "error", err.Error())
		os.Exit(1)
	}

	app.router.SetupRoutes()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		address := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
		if err := app.router.Start(address); err != nil {
			logger.Error("Failed to start server", "error", err.Error())
			os.Exit(1)
		}
	}()

	<-sigChan
	logger.Info("Shutting down gracefully")
	app.shutdown()
	logger.Info("Server stopped")
}

// shutdown stops accepting requests, stops every live run so its final state is
// persisted, then releases background workers and connections
func (a *Application) shutdown() {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.config.Server.ShutdownTimeout)
	defer cancel()

	if err := a.server.ShutdownWithContext(shutdownCtx); err != nil {
		a.logger.Error("Error during server shutdown", "error", err.Error())
	}

	if n := a.registry.Len(); n > 0 {
		a.logger.Info("Stopping live campaign runs", "count", n)
	}
	if err := a.registry.StopAll(shutdownCtx); err != nil {
		a.logger.Error("Failed to stop campaign runs cleanly", "error", err.Error())
	}

	for i := len(a.stopFuncs) - 1; i >= 0; i-- {
		a.stopFuncs[i]()
	}
}

// initializeDatabase initializes the database connection with connection pooling
func initializeDatabase(cfg config.DatabaseConfig, logger *slog.Logger) (*gorm.DB, error) {
	gormCfg := &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Silent)}
	if cfg.SlowQueryLog {
		gormCfg.Logger = gormlogger.New(slog.NewLogLogger(logger.Handler(), slog.LevelWarn), gormlogger.Config{
			SlowThreshold:             cfg.SlowQueryTime,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
		})
	}

	db, err := gorm.Open(postgres.Open(cfg.DSN()), gormCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	sqlDB.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logger.Info("Database connection established",
		"max_open_conns", cfg.MaxOpenConns,
		"max_idle_conns", cfg.MaxIdleConns,
	)

	return db, nil
}

// initializeCache initializes the Redis client and verifies connectivity.
// A nil client means caching is disabled.
func initializeCache(cfg config.CacheConfig, logger *slog.Logger) (*redis.Client, error) {
	if !cfg.Enabled || cfg.Provider != "redis" {
		return nil, nil
	}

	opt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	opt.DB = cfg.RedisDB

	rc := redis.NewClient(opt)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rc.Ping(ctx).Err(); err != nil {
		_ = rc.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	logger.Info("Redis connection established", "db", cfg.RedisDB)
	return rc, nil
}

// startCacheHealthMonitor periodically pings Redis to surface connectivity issues.
// The returned cancel function stops the monitor.
func startCacheHealthMonitor(parent context.Context, client *redis.Client, interval time.Duration, logger *slog.Logger) func() {
	monitorCtx, cancel := context.WithCancel(parent)
	if interval <= 0 {
		interval = 30 * time.Second
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-monitorCtx.Done():
				return
			case <-ticker.C:
				ctx, c := context.WithTimeout(monitorCtx, 3*time.Second)
				if err := client.Ping(ctx).Err(); err != nil {
					logger.Warn("Redis healthcheck failed", "error", err.Error())
				}
				c()
			}
		}
	}()
	return cancel
}

func closer(name string, c io.Closer, logger *slog.Logger) func() {
	return func() {
		if err := c.Close(); err != nil {
			logger.Warn("Failed to close "+name, "error", err.Error())
		}
	}
}

// initializeApplication initializes the main application components
func initializeApplication(cfg *config.ProductionConfig, logger *slog.Logger) (*Application, error) {
	var stopFuncs []func()

	db, err := initializeDatabase(cfg.Database, logger)
	if err != nil {
		return nil, err
	}
	if sqlDB, err := db.DB(); err == nil {
		stopFuncs = append(stopFuncs, closer("database", sqlDB, logger))
	}

	rc, err := initializeCache(cfg.Cache, logger)
	if err != nil {
		return nil, err
	}
	if rc != nil {
		stopFuncs = append(stopFuncs, closer("redis", rc, logger))
		stopFuncs = append(stopFuncs, startCacheHealthMonitor(context.Background(), rc, cfg.Cache.CleanupInterval, logger))
	}

	// Initialize repositories
	runRepo := repository.NewCampaignRunRepository(db)
	msgRepo := repository.NewSendingMessageRepository(db)
	reportRepo := repository.NewCampaignReportRepository(db)

	// Run engines live in memory; finished ones are evicted by the janitor
	registry := scheduler.NewRegistry(logger)
	stopFuncs = append(stopFuncs, registry.StartJanitor(context.Background(), cfg.Sending.JanitorInterval, cfg.Sending.EngineRetention))

	runCache := businessflow.NewRunCache(rc, cfg.Cache.RedisPrefix, cfg.Sending.StatsCacheTTL, cfg.Sending.ReportCacheTTL)
	sender := services.NewSimulatedWhatsAppSender(cfg.Sending.SimulatedSuccessRate, cfg.Sending.SimulatedLatency, logger)
	pricing := businessflow.FlatRatePricing{
		PricePerMessage: cfg.Pricing.PricePerMessage,
		CurrencyCode:    cfg.Pricing.Currency,
	}

	runCtx, cancelRuns := context.WithCancel(context.Background())
	stopFuncs = append(stopFuncs, cancelRuns)

	// Initialize flows
	runFlow, err := businessflow.NewCampaignRunFlow(
		runCtx,
		db,
		runRepo,
		msgRepo,
		reportRepo,
		registry,
		runCache,
		sender,
		pricing,
		businessflow.RunFlowSettings{
			MaxRecipients:        cfg.Sending.MaxRecipients,
			RecheckInterval:      cfg.Sending.RecheckInterval,
			PersistRetryAttempts: cfg.Sending.PersistRetryAttempts,
		},
		logger,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize campaign run flow: %w", err)
	}
	configFlow := businessflow.NewSendingConfigFlow()

	if cfg.Sending.RecoverOnStartup {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		recovered, err := runFlow.RecoverInterruptedRuns(ctx)
		cancel()
		if err != nil {
			return nil, fmt.Errorf("failed to recover interrupted campaign runs: %w", err)
		}
		if recovered > 0 {
			logger.Warn("Interrupted campaign runs marked stopped", "count", recovered)
		}
	}

	// Initialize handlers
	runHandler := handlers.NewCampaignRunHandler(runFlow, logger)
	configHandler := handlers.NewSendingConfigHandler(configFlow, logger)

	appRouter := router.NewFiberRouter(runHandler, configHandler, cfg, logger)

	return &Application{
		router:    appRouter,
		config:    cfg,
		server:    appRouter.GetApp(),
		registry:  registry,
		logger:    logger,
		stopFuncs: stopFuncs,
	}, nil
}
