package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"loyalty-engine/config"
	"loyalty-engine/database"
	"loyalty-engine/events"
	"loyalty-engine/handlers"
	"loyalty-engine/middleware"
	"loyalty-engine/routes"
	"loyalty-engine/services"
	"loyalty-engine/utils"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func main() {
	// Load environment variables
	if err := config.LoadEnv(); err != nil {
		log.Fatal("Error loading .env file:", err)
	}

	// Validate critical environment variables
	if err := config.ValidateEnv(); err != nil {
		log.Fatal("Environment validation failed: ", err)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load configuration: ", err)
	}

	logger, err := utils.InitLogger(cfg.AppEnv, cfg.LogLevel)
	if err != nil {
		log.Fatal("Failed to initialise logger: ", err)
	}
	defer logger.Sync()

	// Initialize database
	db, err := database.Connect(cfg.DatabaseURL, cfg.LogLevel == "debug")
	if err != nil {
		logger.Fatal("failed to connect to database", zap.Error(err))
	}

	// Run migrations
	if err := database.Migrate(db); err != nil {
		logger.Fatal("failed to run migrations", zap.Error(err))
	}

	if err := routes.RegisterValidators(); err != nil {
		logger.Fatal("failed to register validators", zap.Error(err))
	}

	// Events go to RabbitMQ when configured; otherwise they are only logged.
	var publisher events.Publisher = events.NewLogPublisher(logger)
	if cfg.RabbitMQURL != "" {
		rabbit, err := events.NewRabbitPublisher(cfg.RabbitMQURL, cfg.EventsExchange, logger)
		if err != nil {
			logger.Warn("RabbitMQ unavailable, falling back to log publisher", zap.Error(err))
		} else {
			publisher = rabbit
		}
	}

	maintainer := services.NewTierLadderMaintainer(db, logger, services.RecomputeConfig{
		BatchSize:  cfg.RecomputeBatchSize,
		Workers:    cfg.RecomputeWorkers,
		MaxRetries: cfg.LedgerMaxRetries,
	})
	ledger := services.NewLedgerService(db, publisher, logger, services.LedgerConfig{
		MaxRetries: cfg.LedgerMaxRetries,
	})
	catalog := services.NewCatalogService(db, maintainer, logger, cfg.LedgerMaxRetries)

	scheduler := services.NewRecomputeScheduler(maintainer, cfg.RecomputeSweepInterval, cfg.RecomputeStaleAfter, logger)
	if err := scheduler.Start(); err != nil {
		logger.Fatal("failed to start recompute scheduler", zap.Error(err))
	}

	if cfg.AppEnv == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.Default()

	r.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.CORSOrigins,
		AllowMethods:     []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
	}))

	limiter := middleware.NewRateLimiter(cfg.RateLimitPerMinute, time.Minute)

	routes.SetupRoutes(r, routes.Handlers{
		Loyalty:   &handlers.LoyaltyHandler{Ledger: ledger, Catalog: catalog},
		Tiers:     &handlers.TierHandler{Catalog: catalog},
		Recompute: &handlers.RecomputeHandler{Maintainer: maintainer},
	}, limiter)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: r,
	}

	// Run server in a goroutine
	go func() {
		logger.Info("server starting", zap.String("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("failed to start server", zap.Error(err))
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down server")

	// Give outstanding requests 30 seconds to complete
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("server forced to shutdown", zap.Error(err))
	}

	scheduler.Shutdown()
	limiter.Stop()
	publisher.Close()

	// Close database connection
	sqlDB, err := db.DB()
	if err == nil {
		if err := sqlDB.Close(); err != nil {
			logger.Error("error closing database connection", zap.Error(err))
		} else {
			logger.Info("database connection closed")
		}
	}

	logger.Info("server exited gracefully")
}
