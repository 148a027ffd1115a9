package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	appbilling "github.com/academy/feebilling/internal/application/billing"
	appevent "github.com/academy/feebilling/internal/application/event"
	"github.com/academy/feebilling/internal/infrastructure/cache"
	"github.com/academy/feebilling/internal/infrastructure/config"
	"github.com/academy/feebilling/internal/infrastructure/event"
	"github.com/academy/feebilling/internal/infrastructure/logger"
	"github.com/academy/feebilling/internal/infrastructure/migration"
	"github.com/academy/feebilling/internal/infrastructure/persistence"
	"github.com/academy/feebilling/internal/infrastructure/scheduler"
	"github.com/academy/feebilling/internal/infrastructure/telemetry"
	"github.com/academy/feebilling/internal/interfaces/http/handler"
	"github.com/academy/feebilling/internal/interfaces/http/middleware"
	"github.com/academy/feebilling/internal/interfaces/http/router"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	_ "github.com/academy/feebilling/docs"
)

//	@title			Fee Billing API
//	@version		1.0
//	@description	Monthly student fee billing, payments and ledgers

//	@host		localhost:8080
//	@BasePath	/api/v1

//	@securityDefinitions.apikey	TenantHeader
//	@in							header
//	@name						X-Tenant-ID

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Failed to load configuration:", err)
		os.Exit(1)
	}

	log, err := logger.New(&logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, "Failed to initialize logger:", err)
		os.Exit(1)
	}

	if err := run(cfg, log); err != nil {
		log.Error("Server exited with error", zap.Error(err))
		_ = log.Sync()
		os.Exit(1)
	}
	_ = log.Sync()
}

func run(cfg *config.Config, baseLog *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	obs, err := setupObservability(ctx, cfg, baseLog)
	if err != nil {
		return err
	}
	defer obs.shutdown(baseLog)
	log := obs.logger

	log.Info("Starting fee billing service",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
		zap.String("db_driver", cfg.Database.Driver),
	)

	// Database
	gormLog := logger.NewGormLogger(log, logger.MapGormLogLevel(cfg.Log.Level))
	db, err := persistence.NewDatabaseWithLogger(&cfg.Database, gormLog)
	if err != nil {
		return err
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()
	sqlDB, err := db.DB.DB()
	if err != nil {
		return err
	}
	if err := migrateSchema(db, log); err != nil {
		return err
	}

	if err := telemetry.RegisterDBTracing(db.DB, telemetry.DBTracingConfig{
		Enabled:         cfg.Telemetry.Enabled && cfg.Telemetry.DBTraceEnabled,
		LogFullSQL:      cfg.Telemetry.DBLogFullSQL,
		SlowQueryThresh: cfg.Telemetry.DBSlowQueryThresh,
		DBSystem:        cfg.Database.Driver,
	}, log); err != nil {
		log.Warn("Database tracing disabled", zap.Error(err))
	}
	if obs.meters.IsEnabled() {
		poolMetrics, err := telemetry.RegisterDBPoolMetrics(obs.meters.Meter("feebilling.db"), sqlDB)
		if err != nil {
			log.Warn("Database pool metrics disabled", zap.Error(err))
		} else {
			defer func() { _ = poolMetrics.Stop() }()
		}
	}

	// Events: domain events go to the outbox inside each billing transaction
	serializer := event.NewBillingSerializer()
	outboxRepo := event.NewGormOutboxRepository(db.DB)
	outboxPublisher := event.NewOutboxPublisher(serializer)
	txScope := persistence.NewGormTransactionScope(db.DB, outboxPublisher)

	idempotencyStore, err := cache.NewIdempotencyStoreFactory(cfg.Redis,
		cache.WithLogger(log),
		cache.WithInMemoryFallback(!cfg.IsProduction()),
	).CreateStore(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = idempotencyStore.Close() }()

	bus := event.NewInMemoryEventBus(log)
	closeSubscribers, err := subscribeEventHandlers(cfg, bus, serializer, idempotencyStore, log)
	if err != nil {
		return err
	}
	defer closeSubscribers()

	// Application services
	ledgerRepo := persistence.NewGormStudentLedgerRepository(db.DB)
	retry := appbilling.RetryConfig{
		MaxAttempts:     cfg.Billing.RetryMaxAttempts,
		InitialInterval: cfg.Billing.RetryInitialInterval,
		MaxInterval:     cfg.Billing.RetryMaxInterval,
		Multiplier:      appbilling.DefaultRetryConfig().Multiplier,
	}
	billingService, err := appbilling.NewBillingService(txScope, ledgerRepo, log, appbilling.BillingServiceConfig{
		CutoffDay: cfg.Billing.CutoffDay,
		Workers:   cfg.Billing.Workers,
		BatchSize: cfg.Billing.BatchSize,
		Retry:     retry,
	})
	if err != nil {
		return err
	}
	paymentService := appbilling.NewPaymentService(txScope, log, retry)
	ledgerService := appbilling.NewLedgerService(txScope, persistence.NewGormFeeCatalogRepository(db.DB), log,
		appbilling.LedgerServiceConfig{PrecreateSchedule: cfg.Billing.PrecreateSchedule})
	queryService := appbilling.NewQueryService(
		ledgerRepo,
		persistence.NewGormPaymentRecordRepository(db.DB),
		persistence.NewGormCalculationHistoryRepository(db.DB),
		persistence.NewGormMonthlyScheduleRepository(db.DB),
	)

	if metrics, err := telemetry.NewBillingMetrics(obs.meters.Meter("feebilling.billing")); err != nil {
		log.Warn("Billing metrics disabled", zap.Error(err))
	} else {
		billingService.SetMetrics(metrics)
		paymentService.SetMetrics(metrics)
	}
	if err := attachReportArchive(ctx, cfg, billingService, log); err != nil {
		return err
	}

	// Background workers
	if err := bus.Start(ctx); err != nil {
		return err
	}
	outboxProcessor := event.NewOutboxProcessor(outboxRepo, bus, serializer, event.OutboxProcessorConfig{
		BatchSize:        cfg.Event.BatchSize,
		PollInterval:     cfg.Event.PollInterval,
		MaxRetries:       cfg.Event.MaxRetries,
		CleanupEnabled:   cfg.Event.CleanupEnabled,
		CleanupRetention: cfg.Event.CleanupRetention,
	}, log)
	if cfg.Event.ProcessorEnabled {
		if err := outboxProcessor.Start(ctx); err != nil {
			return err
		}
	}

	billingScheduler, err := scheduler.NewBillingScheduler(scheduler.BillingSchedulerConfig{
		RunHour:       cfg.Billing.RunHour,
		CheckInterval: time.Minute,
		RunTimeout:    cfg.Billing.RunTimeout,
		LeaseTTL:      cfg.Billing.LeaseTTL,
	}, billingService, idempotencyStore, log)
	if err != nil {
		return err
	}
	if cfg.Billing.SchedulerEnabled {
		if err := billingScheduler.Start(ctx); err != nil {
			return err
		}
	}

	// HTTP
	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        newEngine(cfg, log, obs, sqlDB, appevent.NewOutboxService(outboxRepo, log), ledgerService, paymentService, queryService, billingScheduler),
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}
	serveErr := make(chan error, 1)
	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-ctx.Done():
		log.Info("Shutting down server...")
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}
	if err := billingScheduler.Stop(shutdownCtx); err != nil {
		log.Warn("Billing scheduler did not stop cleanly", zap.Error(err))
	}
	if err := outboxProcessor.Stop(shutdownCtx); err != nil {
		log.Warn("Outbox processor did not stop cleanly", zap.Error(err))
	}
	if err := bus.Stop(shutdownCtx); err != nil {
		log.Warn("Event bus did not stop cleanly", zap.Error(err))
	}

	log.Info("Server exited gracefully")
	return nil
}

// migrateSchema applies the SQL migrations on postgres and AutoMigrate on sqlite
func migrateSchema(db *persistence.Database, log *zap.Logger) error {
	if db.Driver() == config.DriverSQLite {
		return db.AutoMigrate()
	}

	sqlDB, err := db.DB.DB()
	if err != nil {
		return err
	}
	m, err := migration.New(sqlDB, log)
	if err != nil {
		return err
	}
	// Closing the migrator would close the shared *sql.DB
	if err := m.Up(); err != nil {
		return err
	}
	version, dirty, err := m.Version()
	if err != nil {
		return err
	}
	log.Info("Database schema ready", zap.Uint("version", version), zap.Bool("dirty", dirty))
	return nil
}

func newEngine(
	cfg *config.Config,
	log *zap.Logger,
	obs *observability,
	sqlDB handler.Pinger,
	outboxStats handler.OutboxStatsProvider,
	ledgers *appbilling.LedgerService,
	payments *appbilling.PaymentService,
	queries *appbilling.QueryService,
	billingScheduler *scheduler.BillingScheduler,
) *gin.Engine {
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	middleware.SetupValidator()

	engine := gin.New()
	if len(cfg.HTTP.TrustedProxies) > 0 {
		if err := engine.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
			log.Warn("Invalid trusted proxies", zap.Error(err))
		}
	}

	corsCfg := middleware.DefaultCORSConfig()
	corsCfg.AllowOrigins = cfg.HTTP.CORSAllowOrigins
	if len(cfg.HTTP.CORSAllowMethods) > 0 {
		corsCfg.AllowMethods = cfg.HTTP.CORSAllowMethods
	}
	if len(cfg.HTTP.CORSAllowHeaders) > 0 {
		corsCfg.AllowHeaders = cfg.HTTP.CORSAllowHeaders
	}

	engine.Use(
		middleware.TracingWithConfig(middleware.TracingConfig{
			ServiceName: cfg.Telemetry.ServiceName,
			Enabled:     obs.tracer.IsEnabled(),
		}),
		middleware.RequestID(),
		logger.Recovery(log),
		logger.GinMiddleware(log),
		middleware.SpanAnnotator(),
		middleware.HTTPMetrics(obs.meters.Meter("feebilling.http")),
		middleware.CORSWithConfig(corsCfg),
		middleware.Secure(),
		middleware.BodyLimit(cfg.HTTP.MaxBodySize),
	)

	tenantCfg := middleware.DefaultTenantConfig()
	tenantCfg.Logger = log
	apiMiddleware := []gin.HandlerFunc{
		middleware.Tenant(tenantCfg),
		middleware.Timeout(cfg.HTTP.WriteTimeout),
	}
	if obs.profiler.IsEnabled() {
		apiMiddleware = append(apiMiddleware, middleware.Profiling())
	}

	billingHandler := handler.NewBillingHandler(ledgers, payments, queries, billingScheduler,
		handler.WithRunGuard(middleware.RateLimit(middleware.NewRateLimiter(6, time.Hour))),
	)

	router.NewRouter(engine,
		router.WithAPIVersion("v1"),
		router.WithAPIMiddleware(apiMiddleware...),
		router.WithHealth(handler.NewHealthHandler(sqlDB, billingScheduler, handler.WithOutboxStats(outboxStats)).Health),
		router.WithSwagger(cfg.Swagger.Enabled),
	).Register(billingHandler).Setup()

	return engine
}
