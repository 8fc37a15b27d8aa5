package telemetry_test

import (
	"context"
	"runtime/pprof"
	"strings"
	"testing"

	"github.com/grafana/pyroscope-go"
	"github.com/procurement/backend/internal/infrastructure/config"
	"github.com/procurement/backend/internal/infrastructure/telemetry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/zap/zaptest"
)

func TestNewProfiler_Disabled(t *testing.T) {
	p, err := telemetry.NewProfiler(config.ProfilingConfig{ServerAddress: "http://localhost:4040"}, zaptest.NewLogger(t))
	require.NoError(t, err)

	assert.False(t, p.Enabled())
	assert.NoError(t, p.Stop())
	assert.NoError(t, p.Stop())
}

func TestNewProfiler_InvalidConfig(t *testing.T) {
	tests := []struct {
		name    string
		cfg     config.ProfilingConfig
		message string
	}{
		{"missing server address", config.ProfilingConfig{Enabled: true, ApplicationName: "ledger"}, "server address is required"},
		{"missing application name", config.ProfilingConfig{Enabled: true, ServerAddress: "http://localhost:4040"}, "application name is required"},
		{"unknown profile type", config.ProfilingConfig{
			Enabled: true, ServerAddress: "http://localhost:4040", ApplicationName: "ledger",
			ProfileTypes: []string{"cpu", "heap"},
		}, `unknown profile type "heap"`},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			p, err := telemetry.NewProfiler(tc.cfg, zaptest.NewLogger(t))
			require.Error(t, err)
			assert.Nil(t, p)
			assert.Contains(t, err.Error(), tc.message)
		})
	}
}

func TestParseProfileTypes(t *testing.T) {
	types, err := telemetry.ParseProfileTypes([]string{"cpu", " Alloc_Space ", "cpu", "mutex_duration"})
	require.NoError(t, err)
	assert.Equal(t, []pyroscope.ProfileType{
		pyroscope.ProfileCPU,
		pyroscope.ProfileAllocSpace,
		pyroscope.ProfileMutexDuration,
	}, types)

	types, err = telemetry.ParseProfileTypes(nil)
	require.NoError(t, err)
	assert.Empty(t, types)
}

func TestNilProfiler(t *testing.T) {
	var p *telemetry.Profiler
	assert.False(t, p.Enabled())
	assert.NoError(t, p.Stop())
}

func TestWithProfilingLabels(t *testing.T) {
	t.Run("labels reach the profiled code", func(t *testing.T) {
		var route, op, empty string
		var hasEmpty bool
		telemetry.WithProfilingLabels(context.Background(), map[string]string{
			telemetry.ProfilingLabelRoute:     "/api/v1/caisse/adjustments",
			telemetry.ProfilingLabelOperation: strings.Repeat("x", 200),
			telemetry.ProfilingLabelCurrency:  "",
		}, func(ctx context.Context) {
			route, _ = pprof.Label(ctx, telemetry.ProfilingLabelRoute)
			op, _ = pprof.Label(ctx, telemetry.ProfilingLabelOperation)
			empty, hasEmpty = pprof.Label(ctx, telemetry.ProfilingLabelCurrency)
		})
		assert.Equal(t, "/api/v1/caisse/adjustments", route)
		assert.Len(t, op, 128)
		assert.False(t, hasEmpty)
		assert.Empty(t, empty)
	})

	t.Run("no labels still runs fn", func(t *testing.T) {
		ran := false
		telemetry.WithProfilingLabels(context.Background(), nil, func(context.Context) { ran = true })
		assert.True(t, ran)
	})
}

func TestEnableSpanProfiles(t *testing.T) {
	t.Run("without tracing", func(t *testing.T) {
		p := &telemetry.Providers{}
		assert.Nil(t, p.EnableSpanProfiles())
	})

	t.Run("wraps the trace provider", func(t *testing.T) {
		prev := otel.GetTracerProvider()
		recorder := tracetest.NewSpanRecorder()
		tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
		t.Cleanup(func() {
			otel.SetTracerProvider(prev)
			_ = tp.Shutdown(context.Background())
		})

		wrapped := (&telemetry.Providers{Traces: tp}).EnableSpanProfiles()
		require.NotNil(t, wrapped)
		assert.Equal(t, wrapped, otel.GetTracerProvider())

		_, span := otel.Tracer("test").Start(context.Background(), "caisse.adjust")
		span.End()
		require.Len(t, recorder.Ended(), 1)
		assert.Equal(t, "caisse.adjust", recorder.Ended()[0].Name())
	})
}
