package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"pocket/internal/backend"
	"pocket/internal/cli"
	apphttp "pocket/internal/http"
	applog "pocket/internal/log"
	"pocket/internal/photos"
	"pocket/internal/services"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(applog.ComponentApp)
	cfg := cli.LoadAndValidateConfig(logger)

	backendConfig, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", "error", err)
		os.Exit(1)
	}

	res, err := backend.NewFactory(logger.WithComponent(applog.ComponentBackend).Logger).
		CreateBackend(context.Background(), backendConfig)
	if err != nil {
		logger.Error("Failed to initialize backend", "error", err, "backend", cfg.DataBackend)
		os.Exit(1)
	}

	photoStore, err := photos.NewStore(cfg.PhotoDir, cfg.PhotoQuality, cfg.PhotoMaxEdge)
	if err != nil {
		logger.Error("Failed to initialize photo storage", "error", err, "dir", cfg.PhotoDir)
		_ = res.Cleanup()
		os.Exit(1)
	}

	categories := services.NewCategoryService(res.Store, res.Publisher, services.WithSampleSeeding())
	records := services.NewRecordService(res.Store, res.Publisher, photoStore)

	srv := apphttp.NewServer(":"+cfg.Port, apphttp.Deps{
		Logger:      logger,
		Categories:  categories,
		Records:     records,
		Photos:      photoStore,
		Ready:       res.Ping,
		DefaultUser: cfg.DefaultUser,
		MenuLimit:   cfg.SelectorMenuLimit,
	})
	srv.MaxHeaderBytes = 1 << 16

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", "error", err)
		}
		if err := res.Cleanup(); err != nil {
			logger.Error("Backend cleanup error", "error", err)
		}
	})

	logger.Info("Starting pocket server",
		"port", cfg.Port,
		"backend", cfg.DataBackend,
		"events", cfg.EventsBackend,
		"default_user", cfg.DefaultUser)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", "error", err, "port", cfg.Port)
		_ = res.Cleanup()
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Server stopped gracefully")
}
