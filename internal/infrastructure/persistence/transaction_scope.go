package persistence

import (
	"context"

	"github.com/procurement/backend/internal/application/unitofwork"
	"github.com/procurement/backend/internal/domain/caisse"
	"github.com/procurement/backend/internal/domain/procurement"
	"github.com/procurement/backend/internal/domain/shared"
	"gorm.io/gorm"
)

// GormTransactionScope implements unitofwork.Scope using GORM transactions.
// Aggregate writes, ledger adjustments and outbox entries commit together.
type GormTransactionScope struct {
	db     *gorm.DB
	outbox shared.OutboxEventSaver
}

// NewGormTransactionScope creates a new GormTransactionScope. A nil outbox
// discards recorded events.
func NewGormTransactionScope(db *gorm.DB, outbox shared.OutboxEventSaver) *GormTransactionScope {
	return &GormTransactionScope{db: db, outbox: outbox}
}

// Execute runs the given function within a database transaction.
// If the function returns an error, the transaction is rolled back.
func (s *GormTransactionScope) Execute(ctx context.Context, fn func(repos unitofwork.Repositories) error) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&gormTransactionalRepositories{tx: tx, outbox: s.outbox})
	})
	return translateError(err)
}

// gormTransactionalRepositories provides access to all repositories within a transaction.
type gormTransactionalRepositories struct {
	tx     *gorm.DB
	outbox shared.OutboxEventSaver
}

// Orders returns the order repository scoped to the current transaction.
func (r *gormTransactionalRepositories) Orders() procurement.OrderRepository {
	return NewGormOrderRepository(r.tx)
}

// PaymentRequests returns the payment request repository scoped to the current transaction.
func (r *gormTransactionalRepositories) PaymentRequests() procurement.PaymentRequestRepository {
	return NewGormPaymentRequestRepository(r.tx)
}

// FundingRequests returns the funding request repository scoped to the current transaction.
func (r *gormTransactionalRepositories) FundingRequests() caisse.FundingRequestRepository {
	return NewGormFundingRequestRepository(r.tx)
}

// Ledger returns the register ledger scoped to the current transaction.
func (r *gormTransactionalRepositories) Ledger() caisse.Ledger {
	return NewGormCaisseLedger(r.tx)
}

// RecordEvents writes events to the outbox inside the current transaction.
func (r *gormTransactionalRepositories) RecordEvents(ctx context.Context, events ...shared.DomainEvent) error {
	if r.outbox == nil || len(events) == 0 {
		return nil
	}
	return r.outbox.SaveEvents(ctx, r.tx, events...)
}

// Ensure GormTransactionScope implements Scope
var _ unitofwork.Scope = (*GormTransactionScope)(nil)

// Ensure gormTransactionalRepositories implements Repositories
var _ unitofwork.Repositories = (*gormTransactionalRepositories)(nil)
