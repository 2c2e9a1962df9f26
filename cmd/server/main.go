package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tenroll/internal/config"
	"github.com/tenroll/internal/handler"
	"github.com/tenroll/internal/kafka"
	"github.com/tenroll/internal/postgres"
	"github.com/tenroll/internal/ratelimit"
	"github.com/tenroll/internal/redis"
	"github.com/tenroll/internal/service"
	"github.com/tenroll/internal/websocket"
	"github.com/tenroll/internal/worker"
)

func main() {
	// Parse command line flags
	configPath := flag.String("config", "config.yaml", "Path to configuration file")
	flag.Parse()

	// Setup structured logging
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Warn("failed to load config file, using defaults", "error", err)
		cfg = config.DefaultConfig()
	}

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize PostgreSQL
	logger.Info("connecting to PostgreSQL", "host", cfg.Postgres.Host, "database", cfg.Postgres.Database)
	repo, err := postgres.NewRepository(&cfg.Postgres, logger)
	if err != nil {
		logger.Error("failed to connect to PostgreSQL", "error", err)
		os.Exit(1)
	}
	defer repo.Close()
	logger.Info("connected to PostgreSQL")

	// Run database migrations
	if err := repo.RunMigrations(ctx); err != nil {
		logger.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}

	// Initialize WebSocket hub
	wsHub := websocket.NewHub(logger)
	go wsHub.Run()
	logger.Info("WebSocket hub initialized")

	// Initialize the game service
	gameService := service.NewGameService(repo, &cfg.Leaderboard, logger)
	gameService.SetHub(wsHub)

	// Initialize the Redis leaderboard cache and the cache refresher.
	// The service falls back to PostgreSQL when the cache is absent.
	var (
		cache      *redis.LeaderboardCache
		refresher  *worker.CacheRefresher
		limitStore ratelimit.Store
	)
	if cfg.Redis.Enabled {
		logger.Info("connecting to Redis", "addr", cfg.Redis.Addr)
		cache, err = redis.NewLeaderboardCache(&cfg.Redis, cfg.Leaderboard.TopCacheSize, logger)
		if err != nil {
			logger.Error("failed to connect to Redis", "error", err)
			os.Exit(1)
		}
		defer cache.Close()
		logger.Info("connected to Redis")

		gameService.SetCache(cache)
		limitStore = ratelimit.NewRedisStore(cache.Client())

		refresher = worker.NewCacheRefresher(cache, repo, &cfg.Sync, logger)

		// Rebuild the cache from the database on startup (recovery)
		logger.Info("rebuilding leaderboard cache from database")
		if err := refresher.RefreshOnce(ctx); err != nil {
			logger.Warn("failed to rebuild cache on startup", "error", err)
		}

		if cfg.Sync.Enabled {
			if err := refresher.Start(ctx); err != nil {
				logger.Error("failed to start cache refresher", "error", err)
				os.Exit(1)
			}
		}
	} else {
		memStore := ratelimit.NewMemoryStore(time.Minute)
		defer memStore.Close()
		limitStore = memStore
	}

	// Initialize rate limiting
	var limiter *ratelimit.Limiter
	if cfg.RateLimit.Enabled {
		limiter = ratelimit.NewLimiter(limitStore, logger)
		logger.Info("rate limiting enabled")
	}

	// Initialize Kafka publisher for game lifecycle events
	var publisher *kafka.Publisher
	if cfg.Kafka.Enabled {
		logger.Info("initializing Kafka publisher",
			"brokers", cfg.Kafka.Brokers,
			"topic", cfg.Kafka.Topic,
		)
		publisher, err = kafka.NewPublisher(&cfg.Kafka, logger)
		if err != nil {
			logger.Warn("failed to create Kafka publisher, continuing without Kafka", "error", err)
			publisher = nil
		} else {
			gameService.SetPublisher(publisher)
			logger.Info("Kafka publisher started successfully")
		}
	}

	// Initialize HTTP handler with WebSocket hub
	httpHandler := handler.NewHandler(gameService, wsHub, limiter, &cfg.RateLimit, logger)

	// Create HTTP server
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      httpHandler.Router(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start server in goroutine
	go func() {
		logger.Info("starting HTTP server", "port", cfg.Server.Port)
		logger.Info("WebSocket endpoint available at /ws")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("HTTP server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	// Create shutdown context with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	// Stop WebSocket hub
	wsHub.Stop()

	// Stop Kafka publisher
	if publisher != nil {
		if err := publisher.Close(); err != nil {
			logger.Error("failed to stop Kafka publisher", "error", err)
		}
	}

	// Stop cache refresher
	if refresher != nil {
		if err := refresher.Stop(); err != nil {
			logger.Error("failed to stop cache refresher", "error", err)
		}
	}

	// Shutdown HTTP server
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("failed to shutdown server", "error", err)
	}

	logger.Info("server stopped")
}
