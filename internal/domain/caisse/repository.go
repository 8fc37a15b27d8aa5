package caisse

import (
	"context"

	"github.com/google/uuid"
	"github.com/procurement/backend/internal/domain/shared"
	"github.com/procurement/backend/internal/domain/shared/valueobject"
)

// Ledger is the sole mutator of register balances. Adjust must apply the
// movement with a single conditional update (rejecting with
// ErrInsufficientFunds when the balance would go negative) and append the
// transaction within the same database transaction.
type Ledger interface {
	Adjust(ctx context.Context, movement *Movement) (*Transaction, error)
	Balance(ctx context.Context, currency valueobject.Currency) (Balance, error)
	Balances(ctx context.Context) ([]Balance, error)
	Transactions(ctx context.Context, filter TransactionFilter) ([]Transaction, int64, error)
	Reconcile(ctx context.Context) (*ReconcileReport, error)
	// EnsureCurrencies opens a zero balance for every currency that has none
	EnsureCurrencies(ctx context.Context, currencies []valueobject.Currency) error
}

// TransactionFilter narrows transaction listings
type TransactionFilter struct {
	shared.Filter
	Currency   valueobject.Currency
	Type       TransactionType
	SourceType SourceType
	SourceID   *uuid.UUID
}

// FundingRequestFilter narrows funding request listings
type FundingRequestFilter struct {
	shared.Filter
	Stage       Stage
	RequesterID *uuid.UUID
}

// FundingRequestRepository persists funding requests with optimistic locking
type FundingRequestRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*FundingRequest, error)
	FindByNumber(ctx context.Context, number string) (*FundingRequest, error)
	FindAll(ctx context.Context, filter FundingRequestFilter) ([]FundingRequest, int64, error)
	Create(ctx context.Context, request *FundingRequest) error
	SaveWithLock(ctx context.Context, request *FundingRequest) error
}
