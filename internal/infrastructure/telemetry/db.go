package telemetry

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/uptrace/opentelemetry-go-extra/otelgorm"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const dbStartKey = "telemetry:db_start"

// DBConfig controls database instrumentation
type DBConfig struct {
	Tracing            bool
	LogFullSQL         bool
	SlowQueryThreshold time.Duration
}

// DBInstrumentation records SQL spans and metrics for a gorm connection
type DBInstrumentation struct {
	cfg       DBConfig
	logger    *zap.Logger
	duration  *Histogram
	slow      *Counter
	guardMiss *Counter
}

// InstrumentDB installs otelgorm tracing (when enabled) and the statement
// metrics callbacks on db. Pool statistics are exported as observable gauges.
func InstrumentDB(db *gorm.DB, meter metric.Meter, cfg DBConfig, logger *zap.Logger) (*DBInstrumentation, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.SlowQueryThreshold <= 0 {
		cfg.SlowQueryThreshold = 200 * time.Millisecond
	}
	d := &DBInstrumentation{cfg: cfg, logger: logger.Named("db")}

	var err error
	if d.duration, err = NewHistogram(meter, HistogramOpts{
		Name:        "db_statement_duration_seconds",
		Description: "SQL statement duration",
		Unit:        "s",
		Boundaries:  DBDurationBuckets,
	}); err != nil {
		return nil, err
	}
	if d.slow, err = NewCounter(meter, "db_slow_statements_total", "Statements slower than the configured threshold", "{statements}"); err != nil {
		return nil, err
	}
	if d.guardMiss, err = NewCounter(meter, "db_guarded_update_miss_total", "Updates that matched no row", "{statements}"); err != nil {
		return nil, err
	}

	if cfg.Tracing {
		opts := []otelgorm.Option{otelgorm.WithDBName(db.Dialector.Name())}
		if !cfg.LogFullSQL {
			opts = append(opts, otelgorm.WithoutQueryVariables())
		}
		if err := db.Use(otelgorm.NewPlugin(opts...)); err != nil {
			return nil, fmt.Errorf("register otelgorm: %w", err)
		}
	}
	if err := d.registerCallbacks(db); err != nil {
		return nil, err
	}
	if err := registerPoolGauges(db, meter); err != nil {
		return nil, err
	}
	return d, nil
}

func (d *DBInstrumentation) registerCallbacks(db *gorm.DB) error {
	cb := db.Callback()
	type hook struct {
		op     string
		before func(string, func(*gorm.DB)) error
		after  func(string, func(*gorm.DB)) error
	}
	hooks := []hook{
		{"create", cb.Create().Before("gorm:create").Register, cb.Create().After("gorm:create").Register},
		{"query", cb.Query().Before("gorm:query").Register, cb.Query().After("gorm:query").Register},
		{"update", cb.Update().Before("gorm:update").Register, cb.Update().After("gorm:update").Register},
		{"delete", cb.Delete().Before("gorm:delete").Register, cb.Delete().After("gorm:delete").Register},
		{"raw", cb.Raw().Before("gorm:raw").Register, cb.Raw().After("gorm:raw").Register},
		{"row", cb.Row().Before("gorm:row").Register, cb.Row().After("gorm:row").Register},
	}
	for _, h := range hooks {
		op := h.op
		if err := h.before("telemetry:before_"+op, markStart); err != nil {
			return fmt.Errorf("register %s callback: %w", op, err)
		}
		if err := h.after("telemetry:after_"+op, func(tx *gorm.DB) { d.observe(tx, op) }); err != nil {
			return fmt.Errorf("register %s callback: %w", op, err)
		}
	}
	return nil
}

func markStart(tx *gorm.DB) {
	tx.InstanceSet(dbStartKey, time.Now())
}

func (d *DBInstrumentation) observe(tx *gorm.DB, op string) {
	v, ok := tx.InstanceGet(dbStartKey)
	if !ok {
		return
	}
	start, ok := v.(time.Time)
	if !ok {
		return
	}
	elapsed := time.Since(start)
	ctx := tx.Statement.Context
	if ctx == nil {
		ctx = context.Background()
	}
	if op == "raw" {
		op = statementKind(tx.Statement.SQL.String())
	}

	outcome := "ok"
	if tx.Error != nil && !errors.Is(tx.Error, gorm.ErrRecordNotFound) {
		outcome = "error"
	}
	attrs := []attribute.KeyValue{
		AttrDBOperation.String(op),
		AttrDBTable.String(tx.Statement.Table),
		AttrDBOutcome.String(outcome),
	}
	d.duration.RecordDuration(ctx, elapsed, attrs...)

	// Balance and version guards express conflicts as zero affected rows.
	if op == "update" && tx.Error == nil && tx.RowsAffected == 0 {
		d.guardMiss.Inc(ctx, AttrDBTable.String(tx.Statement.Table))
	}

	if elapsed >= d.cfg.SlowQueryThreshold {
		d.slow.Inc(ctx, attrs[:2]...)
		fields := []zap.Field{
			zap.String("operation", op),
			zap.String("table", tx.Statement.Table),
			zap.Duration("elapsed", elapsed),
			zap.Int64("rows", tx.RowsAffected),
		}
		if d.cfg.LogFullSQL {
			fields = append(fields, zap.String("sql", tx.Dialector.Explain(tx.Statement.SQL.String(), tx.Statement.Vars...)))
		}
		if id := TraceID(ctx); id != "" {
			fields = append(fields, zap.String("trace_id", id))
		}
		d.logger.Warn("slow statement", fields...)
	}
}

// statementKind classifies raw SQL by its leading keyword
func statementKind(sql string) string {
	fields := strings.Fields(sql)
	if len(fields) == 0 {
		return "raw"
	}
	switch kw := strings.ToLower(fields[0]); kw {
	case "select", "insert", "update", "delete", "with":
		if kw == "select" || kw == "with" {
			return "query"
		}
		if kw == "insert" {
			return "create"
		}
		return kw
	}
	return "raw"
}

func registerPoolGauges(db *gorm.DB, meter metric.Meter) error {
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("get sql.DB: %w", err)
	}
	open, err := meter.Int64ObservableGauge("db_pool_connections", metric.WithDescription("Connections by state"))
	if err != nil {
		return err
	}
	waits, err := meter.Int64ObservableCounter("db_pool_wait_total", metric.WithDescription("Connections waited for"))
	if err != nil {
		return err
	}
	_, err = meter.RegisterCallback(func(_ context.Context, o metric.Observer) error {
		stats := sqlDB.Stats()
		o.ObserveInt64(open, int64(stats.InUse), metric.WithAttributes(attribute.String("state", "in_use")))
		o.ObserveInt64(open, int64(stats.Idle), metric.WithAttributes(attribute.String("state", "idle")))
		o.ObserveInt64(waits, stats.WaitCount)
		return nil
	}, open, waits)
	return err
}
