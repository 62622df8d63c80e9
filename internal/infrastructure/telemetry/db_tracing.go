package telemetry

import (
	"errors"
	"time"

	"github.com/uptrace/opentelemetry-go-extra/otelgorm"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// startTimeKey is the per-statement instance key for the query start time
const startTimeKey = "telemetry:query_started_at"

// QueryTracing instruments a gorm instance with otelgorm spans and decorates
// them with row counts, table names, errors, and a slow query event. Query
// variables are never put on spans.
type QueryTracing struct {
	slowThreshold time.Duration
	logger        *zap.Logger
}

func NewQueryTracing(slowThreshold time.Duration, logger *zap.Logger) *QueryTracing {
	if slowThreshold <= 0 {
		slowThreshold = 200 * time.Millisecond
	}
	return &QueryTracing{slowThreshold: slowThreshold, logger: logger}
}

// Register installs the decoration callbacks and then the otelgorm plugin.
// The decoration hooks go in first so they run before otelgorm's after
// callback ends the span.
func (t *QueryTracing) Register(db *gorm.DB) error {
	hooks := []error{
		db.Callback().Create().Before("gorm:create").Register("telemetry:before_create", markStart),
		db.Callback().Create().After("gorm:create").Register("telemetry:after_create", t.decorateSpan),
		db.Callback().Query().Before("gorm:query").Register("telemetry:before_query", markStart),
		db.Callback().Query().After("gorm:query").Register("telemetry:after_query", t.decorateSpan),
		db.Callback().Update().Before("gorm:update").Register("telemetry:before_update", markStart),
		db.Callback().Update().After("gorm:update").Register("telemetry:after_update", t.decorateSpan),
		db.Callback().Delete().Before("gorm:delete").Register("telemetry:before_delete", markStart),
		db.Callback().Delete().After("gorm:delete").Register("telemetry:after_delete", t.decorateSpan),
		db.Callback().Raw().Before("gorm:raw").Register("telemetry:before_raw", markStart),
		db.Callback().Raw().After("gorm:raw").Register("telemetry:after_raw", t.decorateSpan),
	}
	for _, err := range hooks {
		if err != nil {
			return err
		}
	}

	plugin := otelgorm.NewPlugin(
		otelgorm.WithDBName("postgresql"),
		otelgorm.WithoutQueryVariables(),
	)
	if err := db.Use(plugin); err != nil {
		return err
	}

	t.logger.Debug("Query tracing registered",
		zap.Duration("slow_threshold", t.slowThreshold))
	return nil
}

func markStart(db *gorm.DB) {
	db.InstanceSet(startTimeKey, time.Now())
}

// decorateSpan runs after each statement, while the otelgorm span is still
// the active span on the statement context.
func (t *QueryTracing) decorateSpan(db *gorm.DB) {
	ctx := db.Statement.Context
	if ctx == nil {
		return
	}
	span := trace.SpanFromContext(ctx)
	if !span.IsRecording() {
		return
	}

	if db.Statement.RowsAffected >= 0 {
		span.SetAttributes(attribute.Int64("db.rows_affected", db.Statement.RowsAffected))
	}
	if db.Statement.Table != "" {
		span.SetAttributes(attribute.String("db.sql.table", db.Statement.Table))
	}
	if db.Error != nil && !errors.Is(db.Error, gorm.ErrRecordNotFound) {
		span.RecordError(db.Error)
		span.SetStatus(codes.Error, db.Error.Error())
	}

	if started, ok := db.InstanceGet(startTimeKey); ok {
		if startedAt, ok := started.(time.Time); ok {
			if elapsed := time.Since(startedAt); elapsed > t.slowThreshold {
				span.SetAttributes(attribute.Bool("db.slow_query", true))
				span.AddEvent("slow_query", trace.WithAttributes(
					attribute.Int64("duration_ms", elapsed.Milliseconds()),
					attribute.Int64("threshold_ms", t.slowThreshold.Milliseconds()),
				))
			}
		}
	}
}
