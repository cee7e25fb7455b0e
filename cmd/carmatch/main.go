package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"carmatch/internal/backend"
	"carmatch/internal/cache"
	"carmatch/internal/cli"
	apphttp "carmatch/internal/http"
	applog "carmatch/internal/log"
	"carmatch/internal/services"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(applog.ComponentApp)
	cfg := cli.LoadAndValidateConfig(logger)

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", "error", err)
		os.Exit(1)
	}

	initCtx, cancelInit := context.WithTimeout(context.Background(), 30*time.Second)
	res, err := backend.NewFactory(logger.Logger).CreateBackend(initCtx, backendCfg)
	cancelInit()
	if err != nil {
		logger.Error("Failed to initialize backend", "error", err, "backend", cfg.DataBackend)
		os.Exit(1)
	}

	dashboard := services.NewDashboardService(res.Backend, services.DashboardOptions{
		Palette:     cfg.Palette,
		PieColors:   cfg.PieColors,
		HobbyColors: cfg.HobbyColors,
		CacheSize:   cfg.SummaryCacheSize,
		CacheTTL:    cfg.SummaryCacheTTL,
	})

	cacheManager := cache.NewManager()
	cacheManager.Register(dashboard.Cache())
	if cfg.SummaryCacheTTL > 0 {
		cacheManager.StartCleanup(cfg.SummaryCacheTTL)
	}

	submissions := services.NewSubmissionService(res.Backend, cfg.Options(), res.Publisher, dashboard)

	srv := apphttp.NewServer(":"+cfg.Port, apphttp.Deps{
		Submissions:        submissions,
		Dashboard:          dashboard,
		Ready:              res,
		CacheStats:         dashboard.Cache(),
		Logger:             logger,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		TrustedProxies:     cfg.TrustedProxies,
	})
	srv.MaxHeaderBytes = 1 << 16

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", "error", err)
		}
		cacheManager.Stop()
		if err := res.Close(); err != nil {
			logger.Error("Backend close error", "error", err)
		}
	})

	logger.Info("Starting carmatch server",
		"port", cfg.Port,
		"backend", cfg.DataBackend,
		"palette_size", len(cfg.Palette),
		"mirror", res.Publisher != nil)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", "error", err, "port", cfg.Port)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Server stopped gracefully")
}
