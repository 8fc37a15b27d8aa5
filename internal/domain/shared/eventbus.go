package shared

import "context"

// EventHandler reacts to ledger events delivered by the outbox relay. The
// notification and sync export handlers implement it. EventTypes lists the
// events a handler wants; an empty list means all of them.
type EventHandler interface {
	Handle(ctx context.Context, event DomainEvent) error
	EventTypes() []string
}

// EventPublisher delivers events that are already committed to the outbox
type EventPublisher interface {
	Publish(ctx context.Context, events ...DomainEvent) error
}

// EventBus fans relayed events out to the in-process handlers. Subscribe
// without types uses the handler's own EventTypes.
type EventBus interface {
	EventPublisher
	Subscribe(handler EventHandler, eventTypes ...string)
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

// OutboxEventSaver stages the events of a ledger write inside the write's
// transaction, so an event is stored exactly when its change commits. tx is
// the transaction handle of the persistence layer.
type OutboxEventSaver interface {
	SaveEvents(ctx context.Context, tx any, events ...DomainEvent) error
}
