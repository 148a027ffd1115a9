package main

import (
	"context"
	"time"

	appbilling "github.com/academy/feebilling/internal/application/billing"
	"github.com/academy/feebilling/internal/domain/shared"
	"github.com/academy/feebilling/internal/infrastructure/config"
	"github.com/academy/feebilling/internal/infrastructure/event"
	"github.com/academy/feebilling/internal/infrastructure/logger"
	"github.com/academy/feebilling/internal/infrastructure/notification"
	"github.com/academy/feebilling/internal/infrastructure/storage"
	"github.com/academy/feebilling/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

// observability bundles the OpenTelemetry providers and the profiler
type observability struct {
	logger   *zap.Logger
	tracer   *telemetry.TracerProvider
	meters   *telemetry.MeterProvider
	logs     *telemetry.LoggerProvider
	profiler *telemetry.Profiler
}

func setupObservability(ctx context.Context, cfg *config.Config, log *zap.Logger) (*observability, error) {
	tc := cfg.Telemetry

	tp, err := telemetry.NewTracerProvider(ctx, telemetry.Config{
		Enabled:           tc.Enabled,
		CollectorEndpoint: tc.CollectorEndpoint,
		SamplingRatio:     tc.SamplingRatio,
		ServiceName:       tc.ServiceName,
		Insecure:          tc.Insecure,
	}, log)
	if err != nil {
		return nil, err
	}

	mp, err := telemetry.NewMeterProvider(ctx, telemetry.MetricsConfig{
		Enabled:           tc.Enabled && tc.MetricsEnabled,
		CollectorEndpoint: tc.CollectorEndpoint,
		ExportInterval:    tc.MetricsInterval,
		ServiceName:       tc.ServiceName,
		Insecure:          tc.Insecure,
	}, log)
	if err != nil {
		_ = tp.Shutdown(ctx)
		return nil, err
	}

	lp, err := telemetry.NewLoggerProvider(ctx, telemetry.LogsConfig{
		Enabled:           tc.Enabled && tc.LogsEnabled,
		CollectorEndpoint: tc.CollectorEndpoint,
		ServiceName:       tc.ServiceName,
		Insecure:          tc.Insecure,
	}, log)
	if err != nil {
		_ = mp.Shutdown(ctx)
		_ = tp.Shutdown(ctx)
		return nil, err
	}

	pc := cfg.Profiling
	profiler, err := telemetry.NewProfiler(telemetry.ProfilerConfig{
		Enabled:           pc.Enabled,
		ServerAddress:     pc.ServerAddress,
		ApplicationName:   pc.ApplicationName,
		BasicAuthUser:     pc.BasicAuthUser,
		BasicAuthPassword: pc.BasicAuthPassword,
	}, log)
	if err != nil {
		// Profiling is optional
		log.Warn("Failed to start profiler", zap.Error(err))
		profiler, _ = telemetry.NewProfiler(telemetry.ProfilerConfig{}, log)
	}
	if pc.SpanProfiles && profiler.IsEnabled() && tp.IsEnabled() {
		if err := tp.EnableSpanProfiles(); err != nil {
			log.Warn("Failed to enable span profiles", zap.Error(err))
		}
	}

	bridged := telemetry.NewBridgedLogger(log, tc.ServiceName, lp, logger.ParseLevel(cfg.Log.Level))

	return &observability{
		logger:   bridged,
		tracer:   tp,
		meters:   mp,
		logs:     lp,
		profiler: profiler,
	}, nil
}

// shutdown flushes every provider; errors are logged, not returned
func (o *observability) shutdown(log *zap.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := o.profiler.Stop(); err != nil {
		log.Error("Error stopping profiler", zap.Error(err))
	}
	if err := o.logs.Shutdown(ctx); err != nil {
		log.Error("Error shutting down logger provider", zap.Error(err))
	}
	if err := o.meters.Shutdown(ctx); err != nil {
		log.Error("Error shutting down meter provider", zap.Error(err))
	}
	if err := o.tracer.Shutdown(ctx); err != nil {
		log.Error("Error shutting down tracer provider", zap.Error(err))
	}
}

// subscribeEventHandlers wires the outbox consumers onto the bus.
// The returned func closes any broker connection opened here.
func subscribeEventHandlers(
	cfg *config.Config,
	bus *event.InMemoryEventBus,
	serializer *event.EventSerializer,
	store shared.IdempotencyStore,
	log *zap.Logger,
) (func(), error) {
	idempotency := shared.DefaultIdempotencyConfig()

	bus.Subscribe(event.NewAuditLogHandler(log))

	if cfg.Mail.Enabled {
		notifier := notification.NewPaymentReceiptNotifier(notification.NewSMTPSender(cfg.Mail), cfg.Mail.From, log)
		bus.Subscribe(event.NewIdempotentHandler(notifier, store, idempotency, log))
	}

	if !cfg.AMQP.Enabled {
		return func() {}, nil
	}

	conn, err := event.DialAMQP(cfg.AMQP.URL)
	if err != nil {
		return nil, err
	}
	forwarder := event.NewAMQPEventForwarder(conn.Channel, cfg.AMQP.Exchange, serializer, log)
	bus.Subscribe(event.NewIdempotentHandler(forwarder, store, idempotency, log))
	log.Info("Forwarding billing events to RabbitMQ", zap.String("exchange", cfg.AMQP.Exchange))

	return func() {
		if err := conn.Close(); err != nil {
			log.Warn("Error closing RabbitMQ connection", zap.Error(err))
		}
	}, nil
}

func attachReportArchive(ctx context.Context, cfg *config.Config, svc *appbilling.BillingService, log *zap.Logger) error {
	if !cfg.Storage.Enabled {
		return nil
	}
	archive, err := storage.NewS3ReportArchive(ctx, &cfg.Storage, storage.WithLogger(log))
	if err != nil {
		return err
	}
	if err := archive.EnsureBucket(ctx); err != nil {
		return err
	}
	svc.SetReportArchive(archive)
	log.Info("Billing run reports archived to object storage", zap.String("bucket", archive.Bucket()))
	return nil
}
