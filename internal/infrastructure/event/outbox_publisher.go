package event

import (
	"context"
	"fmt"

	"github.com/procurement/backend/internal/domain/shared"
	"gorm.io/gorm"
)

var _ shared.OutboxEventSaver = (*OutboxPublisher)(nil)

// OutboxPublisher encodes domain events and stages them in the outbox table
// inside the caller's transaction. Delivery happens later in the processor.
type OutboxPublisher struct {
	serializer *EventSerializer
	maxRetries int
}

// NewOutboxPublisher creates a publisher using serializer for payloads
func NewOutboxPublisher(serializer *EventSerializer) *OutboxPublisher {
	return &OutboxPublisher{serializer: serializer, maxRetries: shared.DefaultMaxRetries}
}

// WithMaxRetries sets the delivery attempts granted to new entries
func (p *OutboxPublisher) WithMaxRetries(n int) *OutboxPublisher {
	if n > 0 {
		p.maxRetries = n
	}
	return p
}

// SaveEvents writes events through txProvider, which must be the *gorm.DB of
// the transaction that persisted the aggregates raising them
func (p *OutboxPublisher) SaveEvents(ctx context.Context, txProvider any, events ...shared.DomainEvent) error {
	if len(events) == 0 {
		return nil
	}
	tx, ok := txProvider.(*gorm.DB)
	if !ok {
		return fmt.Errorf("outbox needs a *gorm.DB transaction, got %T", txProvider)
	}
	return p.PublishWithTx(ctx, tx, events...)
}

// PublishWithTx writes one outbox entry per event using tx
func (p *OutboxPublisher) PublishWithTx(ctx context.Context, tx *gorm.DB, events ...shared.DomainEvent) error {
	if len(events) == 0 {
		return nil
	}
	entries := make([]*shared.OutboxEntry, 0, len(events))
	for _, event := range events {
		payload, err := p.serializer.Serialize(event)
		if err != nil {
			return err
		}
		entry := shared.NewOutboxEntry(event, payload)
		entry.MaxRetries = p.maxRetries
		entries = append(entries, entry)
	}
	return NewGormOutboxRepository(tx).Save(ctx, entries...)
}
