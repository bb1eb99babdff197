package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	sentrygin "github.com/getsentry/sentry-go/gin"
	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	_ "github.com/joho/godotenv/autoload"
	"github.com/redis/go-redis/v9"

	"github.com/sjperalta/fintera-posting/internal/config"
	"github.com/sjperalta/fintera-posting/internal/database"
	"github.com/sjperalta/fintera-posting/internal/handlers"
	"github.com/sjperalta/fintera-posting/internal/jobs"
	"github.com/sjperalta/fintera-posting/internal/locks"
	"github.com/sjperalta/fintera-posting/internal/middleware"
	"github.com/sjperalta/fintera-posting/internal/repository"
	"github.com/sjperalta/fintera-posting/internal/services"
	"github.com/sjperalta/fintera-posting/pkg/logger"
)

const statisticsPurgeInterval = time.Hour

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize logger
	logger.Setup(cfg.Environment, cfg.LogLevel)

	// Initialize Sentry (GlitchTip) when DSN is configured
	if cfg.SentryDSN != "" {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:              cfg.SentryDSN,
			TracesSampleRate: 0.2,
			Environment:      cfg.Environment,
		}); err != nil {
			logger.Error("Sentry initialization failed", "error", err)
		} else {
			logger.Info("Sentry initialized")
		}
	}

	// Set Gin mode
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	// Connect to database
	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		logger.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	if err := database.Migrate(db); err != nil {
		logger.Error("Failed to migrate database", "error", err)
		os.Exit(1)
	}
	logger.Info("Connected to database")

	// Initialize repositories
	repos := repository.NewRepositories(db)

	// Source locks
	locker, closeLocker := newLocker(cfg)
	defer closeLocker()

	// Initialize background worker
	worker := jobs.NewWorker(cfg.WorkerCount)
	logger.Info("Started background worker", "goroutines", cfg.WorkerCount)

	// Initialize services
	svcs := services.NewServices(repos, locker, worker, cfg)

	// Schedule recurring jobs
	svcs.Job.StartSchedules(statisticsPurgeInterval)

	// Setup router
	router := setupRouter(handlers.NewHandlers(svcs), cfg)

	// Create HTTP server
	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		logger.Info("Server starting", "port", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("Failed to start server", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal for graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Shutdown HTTP server
	if err := server.Shutdown(ctx); err != nil {
		logger.Error("Server forced to shutdown", "error", err)
	}

	// Shutdown background worker
	worker.Shutdown()
	logger.Info("Background worker stopped")

	// Flush Sentry events before exit
	if cfg.SentryDSN != "" {
		sentry.Flush(5 * time.Second)
	}

	logger.Info("Server exited gracefully")
}

// newLocker uses Redis when configured so several API instances share
// source locks, and an in-process lock otherwise.
func newLocker(cfg *config.Config) (locks.Locker, func()) {
	if cfg.RedisAddress == "" {
		logger.Warn("REDIS_ADDRESS not set, source locks are local to this process")
		return locks.NewLocalLocker(), func() {}
	}
	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddress})
	logger.Info("Using Redis source locks", "address", cfg.RedisAddress, "ttl", cfg.LockTTL)
	return locks.NewRedisLocker(rdb, cfg.LockTTL, cfg.LockWait), func() {
		if err := rdb.Close(); err != nil {
			logger.Error("Failed to close Redis client", "error", err)
		}
	}
}

func setupRouter(h *handlers.Handlers, cfg *config.Config) *gin.Engine {
	router := gin.New()

	// Global middleware
	if cfg.SentryDSN != "" {
		router.Use(sentrygin.New(sentrygin.Options{Repanic: true}))
	}
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogger())
	router.Use(corsMiddleware(cfg.AllowedOrigins))
	router.Use(gzip.Gzip(gzip.DefaultCompression))

	h.Register(router.Group("/api/v1"), cfg.JWTSecret)
	return router
}

func corsMiddleware(origins []string) gin.HandlerFunc {
	corsCfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PATCH", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(origins) == 1 && origins[0] == "*" {
		corsCfg.AllowAllOrigins = true
		corsCfg.AllowCredentials = false
	} else {
		corsCfg.AllowOrigins = origins
	}
	return cors.New(corsCfg)
}
