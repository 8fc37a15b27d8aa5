package procurement

import (
	"context"

	"github.com/google/uuid"
	"github.com/procurement/backend/internal/domain/shared"
)

// OrderFilter narrows order listings
type OrderFilter struct {
	shared.Filter
	Status         OrderStatus
	RequesterID    *uuid.UUID
	Team           string
	IncludeDeleted bool
}

// OrderRepository persists orders. SaveWithLock must fail with
// ErrConcurrencyConflict when the stored version is not Version-1.
type OrderRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*Order, error)
	FindByNumber(ctx context.Context, number string) (*Order, error)
	FindAll(ctx context.Context, filter OrderFilter) ([]Order, int64, error)
	Create(ctx context.Context, order *Order) error
	SaveWithLock(ctx context.Context, order *Order) error
}

// PaymentRequestFilter narrows payment request listings
type PaymentRequestFilter struct {
	shared.Filter
	Status         PaymentRequestStatus
	RequesterID    *uuid.UUID
	OrderReference string
	IncludeDeleted bool
}

// PaymentRequestRepository persists payment requests with optimistic locking
type PaymentRequestRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*PaymentRequest, error)
	FindByNumber(ctx context.Context, number string) (*PaymentRequest, error)
	FindAll(ctx context.Context, filter PaymentRequestFilter) ([]PaymentRequest, int64, error)
	Create(ctx context.Context, request *PaymentRequest) error
	SaveWithLock(ctx context.Context, request *PaymentRequest) error
}
