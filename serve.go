package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // PostgreSQL driver for database/sql (migrations)
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/ekaya-inc/shopper-shelf/migrations"
	"github.com/ekaya-inc/shopper-shelf/pkg/database"
	"github.com/ekaya-inc/shopper-shelf/pkg/handlers"
	"github.com/ekaya-inc/shopper-shelf/pkg/logging"
	"github.com/ekaya-inc/shopper-shelf/pkg/middleware"
	"github.com/ekaya-inc/shopper-shelf/pkg/repositories"
	"github.com/ekaya-inc/shopper-shelf/pkg/retry"
	"github.com/ekaya-inc/shopper-shelf/pkg/services"
)

func runServer(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("Configuration loaded",
		zap.String("env", cfg.Env),
		zap.String("version", cfg.Version),
		zap.String("database", fmt.Sprintf("%s@%s:%d/%s", cfg.Database.User, cfg.Database.Host, cfg.Database.Port, cfg.Database.Database)),
		zap.Bool("redis_enabled", cfg.Redis.Enabled()),
		zap.Int("insert_batch_size", cfg.Shelf.InsertBatchSize))

	if err := runMigrate(ctx); err != nil {
		return err
	}

	db, err := connectDB(ctx)
	if err != nil {
		return err
	}
	defer db.Close()

	redisClient, err := connectRedis(ctx)
	if err != nil {
		return err
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	// Repositories
	productRepo := repositories.NewCachedProductRepository(
		repositories.NewProductRepository(), redisClient, cfg.Redis.CatalogTTL, logger)
	shelfRepo := repositories.NewShopperProductRepository()

	// Services
	productService := services.NewProductService(productRepo, logger)
	shelfService := services.NewShelfService(
		database.NewTxManager(), productRepo, shelfRepo, cfg.Shelf.InsertBatchSize, logger)

	// Routes
	mux := http.NewServeMux()
	scope := handlers.ScopeMiddleware(database.WithScopeContext(db, logger))

	handlers.NewHealthHandler(cfg, db, logger).RegisterRoutes(mux)
	handlers.NewProductMetadataHandler(productService, logger).RegisterRoutes(mux, scope)
	handlers.NewShopperProductsHandler(shelfService, logger).RegisterRoutes(mux, scope)
	handlers.NewExternalHandler(shelfService, logger).RegisterRoutes(mux, scope)
	mux.Handle("GET /metrics", promhttp.Handler())

	// PrometheusMetrics must wrap the mux directly to see the matched pattern.
	handler := middleware.Chain(mux,
		middleware.RequestID,
		middleware.RequestLogger(logger),
		middleware.PrometheusMetrics,
	)

	server := &http.Server{
		Addr:              cfg.ListenAddr(),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Starting shopper-shelf", zap.String("addr", server.Addr), zap.String("version", cfg.Version))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("Shutting down", zap.Duration("timeout", cfg.ShutdownTimeout))
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	logger.Info("Server stopped")
	return nil
}

func runMigrate(ctx context.Context) error {
	connURL := cfg.Database.ConnectionURL()

	sqlDB, err := sql.Open("pgx", connURL)
	if err != nil {
		return fmt.Errorf("failed to open migration connection: %w", err)
	}
	defer sqlDB.Close()

	err = retry.Do(ctx, startupRetryConfig("postgres"), func() error {
		return sqlDB.PingContext(ctx)
	})
	if err != nil {
		return fmt.Errorf("failed to reach database %s: %s",
			logging.SanitizeConnectionString(connURL), logging.SanitizeError(err))
	}

	if err := database.RunMigrations(sqlDB, migrations.FS, logger); err != nil {
		return fmt.Errorf("migrations failed: %w", err)
	}
	return nil
}

func connectDB(ctx context.Context) (*database.DB, error) {
	connURL := cfg.Database.ConnectionURL()

	db, err := retry.DoWithResult(ctx, startupRetryConfig("postgres"), func() (*database.DB, error) {
		return database.NewConnection(ctx, database.ConfigFrom(&cfg.Database))
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database %s: %s",
			logging.SanitizeConnectionString(connURL), logging.SanitizeError(err))
	}

	logger.Info("Connected to database", zap.String("url", logging.SanitizeConnectionString(connURL)))
	return db, nil
}

// connectRedis returns nil when Redis is not configured.
func connectRedis(ctx context.Context) (*redis.Client, error) {
	if !cfg.Redis.Enabled() {
		logger.Info("Redis not configured, catalog cache disabled")
		return nil, nil
	}

	client, err := retry.DoWithResult(ctx, startupRetryConfig("redis"), func() (*redis.Client, error) {
		return database.NewRedisClient(ctx, &cfg.Redis)
	})
	if err != nil {
		return nil, err
	}

	logger.Info("Connected to Redis", zap.String("addr", cfg.Redis.Addr()))
	return client, nil
}

func startupRetryConfig(target string) *retry.Config {
	rc := retry.DefaultConfig()
	rc.OnRetry = func(attempt int, err error, wait time.Duration) {
		logger.Warn("Backing service not ready, retrying",
			zap.String("target", target),
			zap.Int("attempt", attempt),
			zap.Duration("wait", wait),
			zap.String("error", logging.SanitizeError(err)))
	}
	return rc
}
