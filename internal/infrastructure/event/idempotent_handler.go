package event

import (
	"context"

	"github.com/procurement/backend/internal/domain/shared"
	"go.uber.org/zap"
)

var _ shared.EventHandler = (*IdempotentHandler)(nil)

// KeyFunc derives the suppression key of an event
type KeyFunc func(event shared.DomainEvent) string

// ByEventID keys on the event ID: an outbox redelivery of the same event is
// handled once
func ByEventID(event shared.DomainEvent) string {
	return event.EventID().String()
}

// ByAggregate keys on the aggregate: repeats for the same entity inside the
// TTL are suppressed
func ByAggregate(event shared.DomainEvent) string {
	return event.AggregateType() + ":" + event.AggregateID().String()
}

// IdempotentHandler drops events whose key was already marked in the store
// within the configured TTL
type IdempotentHandler struct {
	next             shared.EventHandler
	store            shared.IdempotencyStore
	config           shared.IdempotencyConfig
	keyFunc          KeyFunc
	releaseOnFailure bool
	metrics          *DeliveryMetrics
	logger           *zap.Logger
}

// IdempotentHandlerOption configures an IdempotentHandler
type IdempotentHandlerOption func(*IdempotentHandler)

// WithIdempotencyConfig sets the TTL and the enabled switch
func WithIdempotencyConfig(config shared.IdempotencyConfig) IdempotentHandlerOption {
	return func(h *IdempotentHandler) { h.config = config }
}

// WithKeyFunc sets how the suppression key is derived
func WithKeyFunc(fn KeyFunc) IdempotentHandlerOption {
	return func(h *IdempotentHandler) { h.keyFunc = fn }
}

// WithReleaseOnFailure removes the key when the wrapped handler fails so the
// outbox retry is not suppressed
func WithReleaseOnFailure(release bool) IdempotentHandlerOption {
	return func(h *IdempotentHandler) { h.releaseOnFailure = release }
}

// WithDeliveryMetrics counts suppressed and failed events
func WithDeliveryMetrics(metrics *DeliveryMetrics) IdempotentHandlerOption {
	return func(h *IdempotentHandler) { h.metrics = metrics }
}

// NewIdempotentHandler wraps next. Keys default to the event ID.
func NewIdempotentHandler(next shared.EventHandler, store shared.IdempotencyStore, logger *zap.Logger, opts ...IdempotentHandlerOption) *IdempotentHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	h := &IdempotentHandler{
		next:    next,
		store:   store,
		config:  shared.DefaultIdempotencyConfig(),
		keyFunc: ByEventID,
		logger:  logger,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// EventTypes returns the wrapped handler's event types
func (h *IdempotentHandler) EventTypes() []string {
	return h.next.EventTypes()
}

// Unwrap returns the wrapped handler
func (h *IdempotentHandler) Unwrap() shared.EventHandler {
	return h.next
}

// Handle runs the wrapped handler unless the event's key is already marked.
// A store failure lets the event through: a duplicate is preferred over a
// lost delivery.
func (h *IdempotentHandler) Handle(ctx context.Context, event shared.DomainEvent) error {
	if !h.config.Enabled {
		return h.next.Handle(ctx, event)
	}

	key := h.keyFunc(event)
	log := h.logger.With(zap.String("key", key), zap.String("event_type", event.EventType()))

	fresh, err := h.store.MarkProcessed(ctx, key, h.config.TTL)
	switch {
	case err != nil:
		log.Warn("idempotency store unavailable, handling anyway", zap.Error(err))
	case !fresh:
		h.metrics.outcome(ctx, event.EventType(), OutcomeSuppressed)
		log.Debug("event suppressed", zap.String("event_id", event.EventID().String()))
		return nil
	}

	if err := h.next.Handle(ctx, event); err != nil {
		h.metrics.outcome(ctx, event.EventType(), OutcomeFailed)
		log.Warn("event handler failed", zap.Error(err))
		if h.releaseOnFailure {
			if relErr := h.store.Release(ctx, key); relErr != nil {
				log.Warn("release idempotency key", zap.Error(relErr))
			}
		}
		return err
	}
	return nil
}
