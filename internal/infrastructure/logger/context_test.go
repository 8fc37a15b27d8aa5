package logger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestFromContext_DefaultsToNop(t *testing.T) {
	assert.NotNil(t, FromContext(context.Background()))
	assert.Empty(t, RequestID(context.Background()))
	assert.Empty(t, ActorID(context.Background()))
}

func TestRequestAndActorFields(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	base := zap.New(core)

	ctx, log := WithRequestID(context.Background(), base, "req-42")
	ctx, _ = WithActorID(ctx, log, "c5a4c8c4-3a2f-4f0e-8b1d-6c0d7f1e2a90")
	L(ctx).Info("order validated")

	assert.Equal(t, "req-42", RequestID(ctx))
	assert.Equal(t, "c5a4c8c4-3a2f-4f0e-8b1d-6c0d7f1e2a90", ActorID(ctx))

	entries := logs.All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "req-42", fields["request_id"])
	assert.Equal(t, "c5a4c8c4-3a2f-4f0e-8b1d-6c0d7f1e2a90", fields["actor_id"])
}

func spanContext(t *testing.T) context.Context {
	t.Helper()
	traceID, err := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	require.NoError(t, err)
	spanID, err := trace.SpanIDFromHex("00f067aa0ba902b7")
	require.NoError(t, err)
	sc := trace.NewSpanContext(trace.SpanContextConfig{TraceID: traceID, SpanID: spanID, TraceFlags: trace.FlagsSampled})
	return trace.ContextWithSpanContext(context.Background(), sc)
}

func TestTraceFields(t *testing.T) {
	assert.Nil(t, TraceFields(context.Background()))

	core, logs := observer.New(zapcore.InfoLevel)
	ctx := WithContext(spanContext(t), zap.New(core))
	L(ctx).Info("traced")

	fields := logs.All()[0].ContextMap()
	assert.Equal(t, "4bf92f3577b34da6a3ce929d0e0e4736", fields["trace_id"])
	assert.Equal(t, "00f067aa0ba902b7", fields["span_id"])
}

func TestFor(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	base := zap.New(core)

	For(context.Background(), base).Info("plain")
	assert.Empty(t, logs.All()[0].Context)

	ctx, _ := WithActorID(spanContext(t), zap.NewNop(), "actor-1")
	For(ctx, base).Info("enriched")
	fields := logs.All()[1].ContextMap()
	assert.Equal(t, "actor-1", fields["actor_id"])
	assert.Contains(t, fields, "trace_id")

	assert.NotPanics(t, func() { For(ctx, nil).Info("nil base") })
}
