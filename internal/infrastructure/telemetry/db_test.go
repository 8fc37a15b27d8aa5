package telemetry_test

import (
	"context"
	"testing"
	"time"

	"github.com/procurement/backend/internal/infrastructure/telemetry"
	"github.com/procurement/backend/tests/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]metricdata.Metrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	out := map[string]metricdata.Metrics{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			out[m.Name] = m
		}
	}
	return out
}

func sumOf(t *testing.T, m metricdata.Metrics) int64 {
	t.Helper()
	sum, ok := m.Data.(metricdata.Sum[int64])
	require.True(t, ok, "%s is not an int64 sum", m.Name)
	var total int64
	for _, dp := range sum.DataPoints {
		total += dp.Value
	}
	return total
}

func TestInstrumentDB(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })

	core, logs := observer.New(zapcore.WarnLevel)
	_, err := telemetry.InstrumentDB(db, mp.Meter("test"), telemetry.DBConfig{
		SlowQueryThreshold: time.Nanosecond,
	}, zap.New(core))
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, db.WithContext(ctx).Exec(
		"INSERT INTO caisse_balances (currency, amount, updated_at) VALUES (?, ?, ?)", "EUR", "100", time.Now()).Error)
	var count int64
	require.NoError(t, db.WithContext(ctx).Table("caisse_balances").Count(&count).Error)
	assert.Equal(t, int64(1), count)

	res := db.WithContext(ctx).Table("caisse_balances").
		Where("currency = ? AND amount >= ?", "USD", 10).
		Update("amount", 0)
	require.NoError(t, res.Error)
	assert.Zero(t, res.RowsAffected)

	metrics := collect(t, reader)

	hist, ok := metrics["db_statement_duration_seconds"].Data.(metricdata.Histogram[float64])
	require.True(t, ok)
	ops := map[string]bool{}
	for _, dp := range hist.DataPoints {
		op, _ := dp.Attributes.Value(telemetry.AttrDBOperation)
		ops[op.AsString()] = true
	}
	assert.True(t, ops["create"], "raw inserts are classified")
	assert.True(t, ops["query"])
	assert.True(t, ops["update"])

	assert.Equal(t, int64(1), sumOf(t, metrics["db_guarded_update_miss_total"]))
	assert.GreaterOrEqual(t, sumOf(t, metrics["db_slow_statements_total"]), int64(3))
	assert.Contains(t, metrics, "db_pool_connections")
	assert.NotZero(t, logs.FilterMessage("slow statement").Len())
}

func TestInstrumentDB_WithTracing(t *testing.T) {
	recorder := recordSpans(t)
	db := testutil.NewSQLiteDB(t)

	_, err := telemetry.InstrumentDB(db, sdkmetric.NewMeterProvider().Meter("test"), telemetry.DBConfig{Tracing: true}, nil)
	require.NoError(t, err)

	var n int64
	require.NoError(t, db.Table("orders").Count(&n).Error)
	assert.NotEmpty(t, recorder.Ended(), "statements produce spans")
}
