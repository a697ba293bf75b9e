package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"blissai-backend/internal/config"
	"blissai-backend/internal/database"
	"blissai-backend/internal/handlers"
	"blissai-backend/internal/middleware"
	"blissai-backend/internal/repository"
	"blissai-backend/internal/router"
	"blissai-backend/internal/services"
	"blissai-backend/internal/websocket"
)

func main() {
	// ──── Step 1: Load Environment Variables ────
	cfg, err := config.Load()
	if err != nil {
		slog.Error("✗ configuration invalid", "error", err)
		os.Exit(1)
	}

	logger := newLogger(cfg)
	slog.SetDefault(logger)
	logger.Info("🚀 Starting Bliss AI backend", "env", cfg.Env)

	// ──── Step 2: Initialize PostgreSQL Connection Pool ────
	pool, err := database.NewPostgresPool(cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		fatal(logger, "✗ PostgreSQL connection failed", err)
	}
	defer pool.Close()
	logger.Info("✓ PostgreSQL connected")

	// ──── Step 3: Run Database Migrations ────
	if err := database.RunMigrations(pool, cfg.MigrationsDir, logger); err != nil {
		fatal(logger, "✗ Database migration failed", err)
	}
	logger.Info("✓ Database migrations applied")

	// ──── Step 4: Initialize Redis Clients (optional) ────
	var (
		redisClients *database.RedisClients
		publisher    services.Publisher
	)
	if cfg.RedisURL != "" {
		redisClients, err = database.NewRedisClients(cfg.RedisURL)
		if err != nil {
			fatal(logger, "✗ Redis connection failed", err)
		}
		defer redisClients.Close()
		publisher = services.NewRedisPublisher(redisClients.Publisher)
		logger.Info("✓ Redis connected")
	} else {
		logger.Info("Redis not configured, live history feed disabled")
	}

	// ──── Step 5: Initialize Completion Provider ────
	ctx := context.Background()
	completion, closeCompletion, err := services.NewCompletionProvider(ctx, cfg, logger)
	if err != nil {
		fatal(logger, "✗ Completion provider initialization failed", err)
	}
	defer closeCompletion()
	logger.Info("✓ Completion provider initialized", "provider", cfg.CompletionProvider, "model", cfg.CompletionModel)

	// ──── Initialize Repositories & Services ────
	accountRepo := repository.NewAccountRepo(pool)
	chatRepo := repository.NewChatRepo(pool)

	jwtAuth := middleware.NewJWTAuth(cfg.JWTSecret, cfg.TokenTTL)
	authService, err := services.NewAuthService(accountRepo, jwtAuth, cfg.BcryptCost, logger)
	if err != nil {
		fatal(logger, "✗ Auth service initialization failed", err)
	}
	historyRecorder := services.NewHistoryRecorder(chatRepo, publisher, logger)

	// ──── Initialize Handlers ────
	authHandler := handlers.NewAuthHandler(authService, jwtAuth, logger)
	chatHandler := handlers.NewChatHandler(completion, historyRecorder, logger)

	// ──── Step 6: Start WebSocket Hub ────
	var wsHub *websocket.Hub
	if redisClients != nil {
		wsHub = websocket.NewHub(redisClients.PubSub, jwtAuth, logger)
		logger.Info("✓ WebSocket hub started")
	}

	// ──── Step 7: Start HTTP Server ────
	r := router.New(jwtAuth, authHandler, chatHandler, wsHub, cfg.FrontendURL, cfg.RequestTimeout)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.RequestTimeout + 5*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		logger.Info("Shutting down...")
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			logger.Error("graceful shutdown failed", "error", err)
		}
	}()

	logger.Info("✓ Bliss AI backend ready", "addr", "http://localhost:"+cfg.Port)

	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		fatal(logger, "Server error", err)
	}
}

func newLogger(cfg *config.Config) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(cfg.LogLevel) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	if cfg.IsProduction() {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}

func fatal(logger *slog.Logger, msg string, err error) {
	logger.Error(msg, "error", err)
	os.Exit(1)
}
