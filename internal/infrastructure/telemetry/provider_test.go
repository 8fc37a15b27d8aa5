package telemetry_test

import (
	"context"
	"sync"
	"testing"

	"github.com/procurement/backend/internal/infrastructure/config"
	"github.com/procurement/backend/internal/infrastructure/telemetry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestSetup_Disabled(t *testing.T) {
	p, err := telemetry.Setup(context.Background(), config.TelemetryConfig{Enabled: false, ServiceName: "ledger"}, nil)
	require.NoError(t, err)

	assert.False(t, p.TracingEnabled())
	assert.Nil(t, p.Metrics)
	assert.Nil(t, p.Logs)
	assert.NotNil(t, p.Meter("x"))
	assert.NoError(t, p.Shutdown(context.Background()))

	base := zap.NewNop()
	assert.Same(t, base, p.BridgeLogger(base, zapcore.InfoLevel))
}

func TestNilProviders(t *testing.T) {
	var p *telemetry.Providers
	assert.NotNil(t, p.Meter("x"))
	assert.False(t, p.TracingEnabled())
	assert.NoError(t, p.Shutdown(context.Background()))
}

func TestSampler(t *testing.T) {
	assert.Contains(t, telemetry.Sampler(1).Description(), "AlwaysOnSampler")
	assert.Contains(t, telemetry.Sampler(0).Description(), "AlwaysOffSampler")
	assert.Contains(t, telemetry.Sampler(0.25).Description(), "TraceIDRatioBased{0.25}")
}

func TestBridgeLogger(t *testing.T) {
	exporter := &memoryLogExporter{}
	p := &telemetry.Providers{
		Logs: sdklog.NewLoggerProvider(sdklog.WithProcessor(sdklog.NewSimpleProcessor(exporter))),
	}
	t.Cleanup(func() { _ = p.Logs.Shutdown(context.Background()) })

	core, local := observer.New(zapcore.DebugLevel)
	log := p.BridgeLogger(zap.New(core), zapcore.WarnLevel)

	log.Debug("statement prepared")
	log.Warn("withdrawal rejected", zap.String("currency", "USD"))

	assert.Equal(t, 2, local.Len(), "local output keeps every level")
	records := exporter.bodies()
	require.Len(t, records, 1)
	assert.Equal(t, "withdrawal rejected", records[0])
}

type memoryLogExporter struct {
	mu      sync.Mutex
	records []string
}

func (e *memoryLogExporter) Export(_ context.Context, records []sdklog.Record) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, r := range records {
		e.records = append(e.records, r.Body().AsString())
	}
	return nil
}

func (e *memoryLogExporter) Shutdown(context.Context) error   { return nil }
func (e *memoryLogExporter) ForceFlush(context.Context) error { return nil }

func (e *memoryLogExporter) bodies() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.records...)
}
