package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/kasirku/kasirku/internal/app"
	"github.com/kasirku/kasirku/internal/auth"
	"github.com/kasirku/kasirku/internal/gate"
	"github.com/kasirku/kasirku/internal/observability"
	"github.com/kasirku/kasirku/internal/platform/cache"
	"github.com/kasirku/kasirku/internal/platform/db"
	"github.com/kasirku/kasirku/internal/products"
	"github.com/kasirku/kasirku/internal/rbac"
	"github.com/kasirku/kasirku/internal/reports"
	"github.com/kasirku/kasirku/internal/roles"
	"github.com/kasirku/kasirku/internal/sales"
	"github.com/kasirku/kasirku/internal/settings"
	"github.com/kasirku/kasirku/internal/shared"
	"github.com/kasirku/kasirku/internal/users"
	"github.com/kasirku/kasirku/jobs"
)

func readiness(pool *pgxpool.Pool, client *redis.Client) func(context.Context) error {
	return func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		if err := pool.Ping(ctx); err != nil {
			return fmt.Errorf("postgres: %w", err)
		}
		if err := client.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("redis: %w", err)
		}
		return nil
	}
}

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping server startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	if err := roles.Validate(); err != nil {
		logger.Error("permission table", slog.Any("error", err))
		os.Exit(1)
	}

	pool, err := db.New(ctx, cfg.PGDSN, cfg.PGMaxConns)
	if err != nil {
		logger.Error("connect database", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	sessionStore := shared.NewSessionStore(redisClient, shared.SessionOptions{
		CookieName: cfg.SessionCookie,
		Secret:     cfg.SessionSecret,
		TTL:        cfg.SessionTTL,
		UpdateAge:  cfg.SessionUpdateAge,
		Secure:     cfg.IsProduction(),
	})
	authService := auth.NewService(auth.NewRepository(pool), sessionStore, logger, auth.ServiceConfig{
		MinPasswordLength: cfg.PasswordMinLength,
		CacheTTL:          cfg.SessionCacheTTL,
	})
	authHandler := auth.NewHandler(logger, authService)
	rbacMiddleware := rbac.Middleware{Resolver: authService, Logger: logger}

	auditLogger := shared.NewAuditLogger(pool)
	idempotency := shared.NewIdempotencyStore(pool)
	metrics := observability.NewMetrics()

	redisOpts := asynq.RedisClientOpt{Addr: cfg.RedisAddr}
	jobsClient := jobs.NewClient(redisOpts)
	defer func() {
		if err := jobsClient.Close(); err != nil {
			logger.Warn("jobs client close", slog.Any("error", err))
		}
	}()
	inspector := asynq.NewInspector(redisOpts)
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()

	usersService := users.NewService(users.NewRepository(pool), auditLogger, authService, logger, cfg.PasswordMinLength)

	productsService := products.NewService(products.NewRepository(pool), logger)
	productsService.SetLowStockNotifier(jobsClient)

	reportsCache := reports.NewCache(redisClient, cfg.ReportCacheTTL)
	reportsService := reports.NewService(reports.NewRepository(pool), reportsCache, cfg.Location(), reports.NewFormatter(cfg.ReportLocale), logger)

	salesService := sales.NewService(sales.NewRepository(pool), idempotency, logger)
	salesService.SetChangeNotifier(reportsCache)
	salesService.SetLowStockNotifier(jobsClient)
	salesService.SetObserver(metrics)

	settingsService := settings.NewService(settings.NewRepository(pool), auditLogger, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:             logger,
		Config:             cfg,
		Gate:               gate.New(app.GateConfig(cfg), logger),
		Metrics:            metrics,
		RBAC:               rbacMiddleware,
		Ready:              readiness(pool, redisClient),
		AuthHandler:        authHandler,
		UsersHandler:       users.NewHandler(logger, usersService, rbacMiddleware),
		ProductsHandler:    products.NewHandler(logger, productsService, rbacMiddleware),
		SalesHandler:       sales.NewHandler(logger, salesService, rbacMiddleware),
		ReportsHandler:     reports.NewHandler(logger, reportsService, rbacMiddleware),
		SettingsHandler:    settings.NewHandler(logger, settingsService, rbacMiddleware),
		PermissionsHandler: rbac.NewPermissionsHandler(logger, rbacMiddleware),
		JobsHandler:        jobs.NewHandler(inspector, logger),
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
