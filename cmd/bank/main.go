package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kvetinski/bank/config"
	"github.com/kvetinski/bank/internal/adapters/cache"
	"github.com/kvetinski/bank/internal/adapters/httpapi"
	"github.com/kvetinski/bank/internal/adapters/repository"
	"github.com/kvetinski/bank/internal/auth"
	accountsvc "github.com/kvetinski/bank/internal/service/account"
	"github.com/kvetinski/bank/internal/telemetry"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "service exited with error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.New()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := telemetry.NewLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("starting bank service",
		zap.String("http_addr", cfg.HTTPAddr),
		zap.String("metrics_addr", cfg.MetricsAddr),
		zap.String("store_driver", cfg.StoreDriver),
	)

	ctx := context.Background()
	shutdownTracing, err := telemetry.InitTracing(ctx, telemetry.TracingConfig{
		Enabled:      cfg.TracingEnabled,
		ServiceName:  cfg.TracingServiceName,
		OTLPEndpoint: cfg.TracingOTLPEndpoint,
		Insecure:     cfg.TracingOTLPInsecure,
		SampleRatio:  cfg.TracingSampleRatio,
	})
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(shutdownCtx); err != nil {
			logger.Error("shutdown tracing failed", zap.Error(err))
		}
	}()

	metrics := telemetry.NewMetrics(nil)

	store, closeStore, err := openStore(ctx, cfg, metrics)
	if err != nil {
		return err
	}
	defer func() {
		if err := closeStore.Close(); err != nil {
			logger.Error("close store failed", zap.Error(err))
		}
	}()
	logger.Info("store ready", zap.String("driver", cfg.StoreDriver))

	var repo accountsvc.Repository = store
	if cfg.RedisAddr != "" {
		client, err := cache.Connect(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			return fmt.Errorf("connect redis: %w", err)
		}
		defer client.Close()

		repo = cache.New(store, client, cfg.CacheTTL, logger)
		logger.Info("account cache enabled", zap.String("redis_addr", cfg.RedisAddr), zap.Duration("ttl", cfg.CacheTTL))
	}

	users, err := auth.ParseUsers(cfg.BasicAuthUsers)
	if err != nil {
		return fmt.Errorf("parse users: %w", err)
	}
	verifier, err := auth.NewStaticCredentials(users, cfg.AuthVerifyTTL)
	if err != nil {
		return fmt.Errorf("build credentials: %w", err)
	}

	svc := accountsvc.New(repo)
	gin.SetMode(gin.ReleaseMode)
	router := httpapi.NewRouter(httpapi.NewServer(svc, logger), httpapi.RouterOptions{
		Verifier:    verifier,
		Metrics:     metrics,
		Logger:      logger,
		ServiceName: cfg.TracingServiceName,
	})

	apiSrv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", promhttp.Handler())
	metricsSrv := &http.Server{
		Addr:              cfg.MetricsAddr,
		Handler:           metricsMux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 2)

	go func() {
		logger.Info("metrics server listening", zap.String("addr", cfg.MetricsAddr))
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("metrics server: %w", err)
		}
	}()

	go func() {
		logger.Info("http server listening", zap.String("addr", cfg.HTTPAddr))
		if err := apiSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	sigCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	select {
	case err := <-errCh:
		return err
	case <-sigCtx.Done():
		logger.Info("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := apiSrv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http graceful shutdown failed", zap.Error(err))
	} else {
		logger.Info("http server stopped gracefully")
	}

	if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown metrics server: %w", err)
	}

	logger.Info("shutdown complete")
	return nil
}

// openStore builds the account store selected by cfg.StoreDriver. The
// returned closer releases its connections.
func openStore(ctx context.Context, cfg config.Config, metrics *telemetry.Metrics) (accountsvc.Repository, io.Closer, error) {
	switch cfg.StoreDriver {
	case config.DriverPostgres:
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()

		db, err := repository.OpenPostgres(pingCtx, cfg.PostgresURI)
		if err != nil {
			return nil, nil, err
		}
		if err = telemetry.RegisterDBPoolMetrics(db, config.DriverPostgres, nil); err != nil {
			_ = db.Close()
			return nil, nil, fmt.Errorf("register db pool metrics: %w", err)
		}
		if cfg.AutoMigrate {
			if err = repository.EnsureSchema(ctx, db); err != nil {
				_ = db.Close()
				return nil, nil, err
			}
		}
		return repository.NewWithMetrics(db, metrics), db, nil

	case config.DriverMySQL:
		gdb, err := repository.OpenMySQL(cfg.MySQLDSN)
		if err != nil {
			return nil, nil, err
		}
		repo := repository.NewGorm(gdb, metrics)

		sqlDB, err := gdb.DB()
		if err != nil {
			_ = repo.Close()
			return nil, nil, fmt.Errorf("mysql pool: %w", err)
		}
		if err = telemetry.RegisterDBPoolMetrics(sqlDB, config.DriverMySQL, nil); err != nil {
			_ = repo.Close()
			return nil, nil, fmt.Errorf("register db pool metrics: %w", err)
		}
		if cfg.AutoMigrate {
			if err = repo.Migrate(ctx); err != nil {
				_ = repo.Close()
				return nil, nil, err
			}
		}
		return repo, repo, nil

	case config.DriverMemory:
		return repository.NewMemory(metrics), nopCloser{}, nil

	default:
		return nil, nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
	}
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
