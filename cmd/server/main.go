package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/JonMunkholm/assetkeeper/internal/admin"
	"github.com/JonMunkholm/assetkeeper/internal/application"
	"github.com/JonMunkholm/assetkeeper/internal/config"
	"github.com/JonMunkholm/assetkeeper/internal/logging"
	"github.com/JonMunkholm/assetkeeper/internal/web"
)

func main() {
	// Load .env file if it exists (Overload overwrites existing env vars)
	if err := godotenv.Overload(); err != nil {
		slog.Info("no .env file found, using environment variables")
	} else {
		slog.Info("loaded .env file (overwriting existing env vars)")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)

	slog.Info("configuration loaded",
		"port", cfg.Server.Port,
		"object_store", cfg.ObjectStore.Backend,
		"bucket", cfg.ObjectStore.Bucket,
		"database", cfg.Database.HasDatabase(),
		"restore_max_concurrent", cfg.Restore.MaxConcurrent,
		"rate_limit_enabled", cfg.Rate.Enabled,
	)

	app, err := application.New(context.Background(), cfg)
	if err != nil {
		slog.Error("failed to initialize application", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	slog.Info("restore strategies registered", "kinds", app.Coordinator.Kinds())

	server := web.NewServer(app.Coordinator, cfg)

	// Create cancellable context for background jobs
	jobCtx, cancelJobs := context.WithCancel(context.Background())

	go app.Maintenance.StartRebuildScheduler(jobCtx, admin.ScheduleConfig{
		RunOnStart: cfg.Cache.RebuildOnStart,
		Interval:   cfg.Cache.RebuildInterval,
	})

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		slog.Info("shutting down...")

		// Stop background jobs
		cancelJobs()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		// Let in-flight restores finish before closing listeners
		limiter := app.Coordinator.Limiter()
		if active := limiter.ActiveCount(); active > 0 {
			slog.Info("waiting for restores to complete", "active", active)
			if err := limiter.WaitForDrain(shutdownCtx); err != nil {
				slog.Warn("restores did not complete in time", "error", err)
			} else {
				slog.Info("all restores completed")
			}
		}

		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("shutdown error", "error", err)
		}
	}()

	slog.Info("server starting", "addr", cfg.Server.Addr())
	if err := server.Start(); err != nil {
		slog.Info("server stopped", "error", err)
	}
}
