package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/MikeSquared-Agency/Prism/internal/analyst"
	"github.com/MikeSquared-Agency/Prism/internal/api"
	"github.com/MikeSquared-Agency/Prism/internal/config"
	"github.com/MikeSquared-Agency/Prism/internal/hermes"
	"github.com/MikeSquared-Agency/Prism/internal/monitor"
	"github.com/MikeSquared-Agency/Prism/internal/ratelimit"
	"github.com/MikeSquared-Agency/Prism/internal/session"
	"github.com/MikeSquared-Agency/Prism/internal/store"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := slog.New(newHandler(cfg.Logging))
	slog.SetDefault(logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Snapshot store (optional)
	var snapshots store.Store
	if cfg.Database.URL != "" {
		db, err := store.NewPostgresStore(ctx, cfg.Database.URL)
		if err != nil {
			logger.Warn("failed to connect to database, running without snapshots", "error", err)
		} else if err := db.Migrate(ctx); err != nil {
			logger.Warn("failed to migrate database, running without snapshots", "error", err)
			db.Close()
		} else {
			snapshots = db
			defer db.Close()
			logger.Info("connected to database")
		}
	}

	// Hermes (optional)
	var hermesClient hermes.Client
	if cfg.Hermes.URL != "" {
		hc, err := hermes.NewNATSClient(ctx, cfg.Hermes.URL, logger)
		if err != nil {
			logger.Warn("failed to connect to hermes, running without events", "error", err)
		} else {
			hermesClient = hc
			defer hc.Close()
			logger.Info("connected to hermes")
		}
	}

	// Analysis backend
	analystClient := analyst.NewHTTPClient(cfg.Analyst.URL, cfg.Analyst.Token, cfg.AnalystTimeout())

	// Rate limiter: Redis when configured, otherwise per process
	var limiter ratelimit.Limiter = ratelimit.NewMemory(cfg.RateLimit.RequestsPerMinute, time.Minute)
	if cfg.Redis.Addr != "" {
		rl, err := ratelimit.NewRedis(ctx, ratelimit.RedisOptions{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		}, cfg.RateLimit.RequestsPerMinute, time.Minute)
		if err != nil {
			logger.Warn("failed to connect to redis, using in-memory rate limiter", "error", err)
		} else {
			limiter = rl
			defer rl.Close()
			logger.Info("connected to redis")
		}
	}
	if mem, ok := limiter.(*ratelimit.Memory); ok {
		go pruneLoop(ctx, mem)
	}

	// Backend monitor
	var backendMonitor api.BackendMonitor
	if cfg.Probe.Enabled {
		mon := monitor.New(analystClient, hermesClient, logger)
		if err := mon.Start(ctx, cfg.Probe.Schedule); err != nil {
			logger.Error("failed to start backend monitor", "error", err)
			os.Exit(1)
		}
		defer mon.Stop()
		backendMonitor = mon
	}

	ctrl := session.New(analystClient, snapshots, hermesClient, cfg.Analyst.DefaultDomain, logger)

	// API server
	router := api.NewRouter(ctrl, analystClient, snapshots, backendMonitor, limiter, cfg, logger)
	apiServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	// Metrics server
	metricsServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.MetricsPort),
		Handler: api.NewMetricsRouter(),
	}

	go func() {
		logger.Info("API server starting", "port", cfg.Server.Port, "analyst", cfg.Analyst.URL)
		if err := apiServer.ListenAndServe(); err != http.ErrServerClosed {
			logger.Error("API server error", "error", err)
		}
	}()

	go func() {
		logger.Info("metrics server starting", "port", cfg.Server.MetricsPort)
		if err := metricsServer.ListenAndServe(); err != http.ErrServerClosed {
			logger.Error("metrics server error", "error", err)
		}
	}()

	// Graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	logger.Info("shutting down...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	_ = apiServer.Shutdown(shutdownCtx)
	_ = metricsServer.Shutdown(shutdownCtx)

	logger.Info("shutdown complete")
}

func newHandler(cfg config.LoggingConfig) slog.Handler {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(cfg.Format, "text") {
		return slog.NewTextHandler(os.Stdout, opts)
	}
	return slog.NewJSONHandler(os.Stdout, opts)
}

func pruneLoop(ctx context.Context, m *ratelimit.Memory) {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Prune()
		}
	}
}
