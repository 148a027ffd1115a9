package telemetry

import (
	"context"
	"time"

	"github.com/uptrace/opentelemetry-go-extra/otelgorm"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// DBTracingConfig holds configuration for database tracing.
type DBTracingConfig struct {
	Enabled         bool
	LogFullSQL      bool          // include bound variables; dev only
	SlowQueryThresh time.Duration // default 200ms
	DBSystem        string
}

// DefaultDBTracingConfig returns tracing disabled with a 200ms slow query threshold.
func DefaultDBTracingConfig() DBTracingConfig {
	return DBTracingConfig{
		SlowQueryThresh: 200 * time.Millisecond,
		DBSystem:        "postgresql",
	}
}

type ctxKey string

const queryStartTimeKey ctxKey = "db_query_start"

// RegisterDBTracing installs the otelgorm plugin on db and a callback that
// flags slow statements on the active span and in the log.
func RegisterDBTracing(db *gorm.DB, cfg DBTracingConfig, logger *zap.Logger) error {
	if !cfg.Enabled {
		logger.Debug("Database tracing disabled, skipping otelgorm registration")
		return nil
	}
	if cfg.SlowQueryThresh <= 0 {
		cfg.SlowQueryThresh = 200 * time.Millisecond
	}

	opts := []otelgorm.Option{otelgorm.WithDBName(cfg.DBSystem)}
	if !cfg.LogFullSQL {
		opts = append(opts, otelgorm.WithoutQueryVariables())
	}
	if err := db.Use(otelgorm.NewPlugin(opts...)); err != nil {
		return err
	}

	before := func(tx *gorm.DB) {
		if tx.Statement.Context != nil {
			tx.Statement.Context = context.WithValue(tx.Statement.Context, queryStartTimeKey, time.Now())
		}
	}
	after := func(tx *gorm.DB) {
		slowQueryCallback(tx, cfg.SlowQueryThresh, logger)
	}

	cb := db.Callback()
	registrations := []error{
		cb.Create().Before("gorm:create").Register("feebill_timing:before_create", before),
		cb.Query().Before("gorm:query").Register("feebill_timing:before_query", before),
		cb.Update().Before("gorm:update").Register("feebill_timing:before_update", before),
		cb.Delete().Before("gorm:delete").Register("feebill_timing:before_delete", before),
		cb.Row().Before("gorm:row").Register("feebill_timing:before_row", before),
		cb.Raw().Before("gorm:raw").Register("feebill_timing:before_raw", before),
		cb.Create().After("gorm:create").Register("feebill_slow_query:create", after),
		cb.Query().After("gorm:query").Register("feebill_slow_query:query", after),
		cb.Update().After("gorm:update").Register("feebill_slow_query:update", after),
		cb.Delete().After("gorm:delete").Register("feebill_slow_query:delete", after),
		cb.Row().After("gorm:row").Register("feebill_slow_query:row", after),
		cb.Raw().After("gorm:raw").Register("feebill_slow_query:raw", after),
	}
	for _, err := range registrations {
		if err != nil {
			return err
		}
	}

	logger.Info("Database tracing enabled",
		zap.Bool("log_full_sql", cfg.LogFullSQL),
		zap.Duration("slow_query_threshold", cfg.SlowQueryThresh),
	)
	return nil
}

func slowQueryCallback(tx *gorm.DB, threshold time.Duration, logger *zap.Logger) {
	ctx := tx.Statement.Context
	if ctx == nil {
		return
	}
	start, ok := ctx.Value(queryStartTimeKey).(time.Time)
	if !ok {
		return
	}
	elapsed := time.Since(start)
	if elapsed < threshold {
		return
	}

	span := trace.SpanFromContext(ctx)
	if span.IsRecording() {
		span.SetAttributes(
			attribute.Bool("db.slow_query", true),
			attribute.Int64("db.duration_ms", elapsed.Milliseconds()),
		)
	}
	logger.Warn("Slow query",
		zap.String("table", tx.Statement.Table),
		zap.Duration("duration", elapsed),
		zap.Int64("rows_affected", tx.Statement.RowsAffected),
	)
}
