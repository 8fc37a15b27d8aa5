package event

import (
	"context"

	"github.com/procurement/backend/internal/infrastructure/telemetry"
	"go.opentelemetry.io/otel/metric"
)

// Delivery outcomes recorded by DeliveryMetrics
const (
	OutcomeSent       = "sent"
	OutcomeFailed     = "failed"
	OutcomeDead       = "dead"
	OutcomeSuppressed = "suppressed"
)

// DeliveryMetrics counts outbox relay and handler outcomes. A nil
// *DeliveryMetrics records nothing.
type DeliveryMetrics struct {
	deliveries *telemetry.Counter
	backlog    *telemetry.Counter
}

// NewDeliveryMetrics registers the delivery instruments on meter
func NewDeliveryMetrics(meter metric.Meter) (*DeliveryMetrics, error) {
	deliveries, err := telemetry.NewCounter(meter, "event_deliveries_total",
		"Outbox entries and handler invocations by outcome", "{event}")
	if err != nil {
		return nil, err
	}
	backlog, err := telemetry.NewCounter(meter, "outbox_claimed_total",
		"Outbox entries claimed for delivery", "{entry}")
	if err != nil {
		return nil, err
	}
	return &DeliveryMetrics{deliveries: deliveries, backlog: backlog}, nil
}

func (m *DeliveryMetrics) outcome(ctx context.Context, eventType, outcome string) {
	if m == nil {
		return
	}
	m.deliveries.Inc(ctx, telemetry.AttrEventType.String(eventType), telemetry.AttrOutcome.String(outcome))
}

func (m *DeliveryMetrics) claimed(ctx context.Context, n int) {
	if m == nil || n == 0 {
		return
	}
	m.backlog.Add(ctx, int64(n))
}
