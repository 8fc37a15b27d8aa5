// Package unitofwork defines the transactional boundary shared by the
// application services and the retry policy wrapped around it.
package unitofwork

import (
	"context"

	"github.com/procurement/backend/internal/domain/caisse"
	"github.com/procurement/backend/internal/domain/procurement"
	"github.com/procurement/backend/internal/domain/shared"
)

// Repositories provides access to all repositories within one database transaction.
type Repositories interface {
	Orders() procurement.OrderRepository
	PaymentRequests() procurement.PaymentRequestRepository
	FundingRequests() caisse.FundingRequestRepository
	Ledger() caisse.Ledger
	// RecordEvents stages events in the outbox; they commit with the transaction
	RecordEvents(ctx context.Context, events ...shared.DomainEvent) error
}

// Scope runs fn inside a database transaction. If fn returns an error the
// transaction is rolled back and nothing fn did through repos is kept.
type Scope interface {
	Execute(ctx context.Context, fn func(repos Repositories) error) error
}

// StageChanges records the pending events of agg together with a sync request
// carrying snapshot, then clears the aggregate's pending events.
func StageChanges(ctx context.Context, repos Repositories, agg shared.AggregateRoot, aggType, reference string, snapshot any) error {
	sync, err := shared.NewSyncRequestedEvent(aggType, agg.GetID(), reference, agg.GetVersion(), snapshot)
	if err != nil {
		return err
	}
	events := make([]shared.DomainEvent, 0, len(agg.GetDomainEvents())+1)
	events = append(events, agg.GetDomainEvents()...)
	events = append(events, sync)
	if err := repos.RecordEvents(ctx, events...); err != nil {
		return err
	}
	agg.ClearDomainEvents()
	return nil
}
