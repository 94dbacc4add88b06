package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"

	database "github.com/greenbasket/garden-backend/app/db"
	"github.com/greenbasket/garden-backend/app/observability/metrics"
	"github.com/greenbasket/garden-backend/app/tracer"
	"github.com/greenbasket/garden-backend/config"
	"github.com/greenbasket/garden-backend/internal/api/auth"
	"github.com/greenbasket/garden-backend/internal/api/media"
	"github.com/greenbasket/garden-backend/internal/api/user"
	"github.com/greenbasket/garden-backend/internal/router"
)

func main() {
	// Use standard log until slog is configured, in case godotenv fails.
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found or error loading:", err)
	}

	cfg, err := config.InitConfig()
	if err != nil {
		log.Fatalf("FATAL: Error initializing config: %v", err)
	}

	logger := setupLogger(&cfg)
	slog.SetDefault(logger)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	tracer.InitTracingAndMetrics(cfg.Server.MetricsPort)
	metrics.InitAppMetrics()

	// --- Database ---
	dbConfig, err := database.NewDatabaseConfig(&cfg, logger)
	if err != nil {
		logger.Error("Failed to generate database config", slog.Any("error", err))
		os.Exit(1)
	}

	if err := database.RunMigrations(dbConfig.ConnectionURL, logger); err != nil {
		logger.Error("Failed to run database migrations", slog.Any("error", err))
		os.Exit(1)
	}

	pool, err := database.Init(dbConfig.ConnectionURL, logger)
	if err != nil {
		logger.Error("Failed to initialize database pool", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	if !database.WaitForDB(ctx, pool, logger) {
		logger.Error("Database not ready after waiting, exiting.")
		os.Exit(1)
	}

	// --- Dependency wiring ---
	issuer, err := auth.NewTokenIssuer(cfg.JWT)
	if err != nil {
		logger.Error("Failed to initialize token issuer", slog.Any("error", err))
		os.Exit(1)
	}

	imageStore, err := media.NewCloudinaryStore(cfg.ImageStore, logger)
	if err != nil {
		logger.Error("Failed to initialize image store", slog.Any("error", err))
		os.Exit(1)
	}

	authRepo := auth.NewPostgresAuthRepo(pool, logger)
	sessions := auth.NewSessionManager(issuer, authRepo, cfg.IsProduction(), logger)
	authService := auth.NewAuthService(authRepo, issuer, logger)
	authHandler := auth.NewAuthHandler(authService, sessions, logger)

	userRepo := user.NewPostgresUserRepo(pool, logger)
	normalizer := user.NewAddressNormalizer(userRepo, logger)
	avatarFolder := cfg.ImageStore.Folder + "/avatars"
	userService := user.NewUserService(userRepo, imageStore, normalizer, avatarFolder, logger)
	userHandler := user.NewUserHandler(userService, logger)

	handler := router.New(router.Deps{
		Config:      &cfg,
		Logger:      logger,
		AuthHandler: authHandler,
		UserHandler: userHandler,
	})

	// --- HTTP server ---
	serverAddress := fmt.Sprintf(":%s", cfg.Server.HTTPPort)
	srv := &http.Server{
		Addr:         serverAddress,
		Handler:      handler,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
		ErrorLog:     slog.NewLogLogger(logger.Handler(), slog.LevelError),
	}

	go func() {
		logger.Info("Starting HTTP server", slog.String("address", serverAddress))
		err := srv.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("HTTP server ListenAndServe error", slog.Any("error", err))
			cancel()
		}
	}()

	<-ctx.Done()

	logger.Info("Shutdown signal received, starting graceful shutdown...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server graceful shutdown failed", slog.Any("error", err))
	} else {
		logger.Info("HTTP server gracefully stopped")
	}

	logger.Info("Application shut down complete.")
}

// setupLogger configures and returns the application logger.
func setupLogger(cfg *config.Config) *slog.Logger {
	if cfg.IsProduction() {
		jsonOpts := &slog.HandlerOptions{
			Level: slog.LevelInfo,
		}
		return slog.New(slog.NewJSONHandler(os.Stdout, jsonOpts))
	}

	tintOpts := &tint.Options{
		Level:      slog.LevelDebug,
		TimeFormat: time.Kitchen,
		AddSource:  true,
	}
	return slog.New(tint.NewHandler(os.Stdout, tintOpts))
}
