package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/embell139/prep-ILAMB/internal/api"
	"github.com/embell139/prep-ILAMB/internal/clickhouse"
	"github.com/embell139/prep-ILAMB/internal/config"
	"github.com/embell139/prep-ILAMB/internal/domain"
	"github.com/embell139/prep-ILAMB/internal/exitcode"
)

func main() {
	// Initialize structured logger (JSON to stdout)
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := godotenv.Load(); err != nil {
		slog.Warn("failed to load env vars", "error", err)
	}

	// Load configuration
	cfg := config.LoadServing()

	ch, err := clickhouse.NewClient(clickhouse.Config{
		Host:     cfg.ClickHouseHost,
		Port:     cfg.ClickHousePort,
		User:     cfg.ClickHouseUser,
		Password: cfg.ClickHousePassword,
		Database: cfg.ClickHouseDatabase,
	}, logger)
	if err != nil {
		slog.Error("failed to connect to clickhouse", "error", err)
		os.Exit(exitcode.NetworkError)
	}
	defer ch.Close()

	// Setup HTTP routes
	mux := http.NewServeMux()
	api.NewHandler(domain.NewService(ch)).RegisterRoutes(mux)

	// Create server
	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		slog.Info("starting server", "port", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(exitcode.ApplicationError)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down server")

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		slog.Error("server shutdown error", "error", err)
		os.Exit(exitcode.ApplicationError)
	}

	slog.Info("server stopped")
}
