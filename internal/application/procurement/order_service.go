// Package procurement implements the order and payment request use cases:
// lifecycle transitions, proforma handling and payment application.
package procurement

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/procurement/backend/internal/application/unitofwork"
	"github.com/procurement/backend/internal/application/usecase"
	"github.com/procurement/backend/internal/domain/caisse"
	"github.com/procurement/backend/internal/domain/procurement"
	"github.com/procurement/backend/internal/domain/sequence"
	"github.com/procurement/backend/internal/domain/shared"
	"github.com/procurement/backend/internal/domain/shared/valueobject"
	"github.com/procurement/backend/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

// OrderService handles order business operations
type OrderService struct {
	scope           unitofwork.Scope
	orderRepo       procurement.OrderRepository
	issuer          *sequence.Issuer
	retry           unitofwork.RetryPolicy
	logger          *zap.Logger
	businessMetrics *telemetry.BusinessMetrics
}

// NewOrderService creates a new OrderService. orderRepo serves reads outside
// a transaction; every write goes through scope.
func NewOrderService(scope unitofwork.Scope, orderRepo procurement.OrderRepository, issuer *sequence.Issuer, logger *zap.Logger) *OrderService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OrderService{
		scope:     scope,
		orderRepo: orderRepo,
		issuer:    issuer,
		retry:     unitofwork.DefaultRetryPolicy(),
		logger:    logger,
	}
}

// SetRetryPolicy overrides the retry policy applied to every write
func (s *OrderService) SetRetryPolicy(policy unitofwork.RetryPolicy) {
	s.retry = policy
}

// SetBusinessMetrics sets the business metrics collector
func (s *OrderService) SetBusinessMetrics(bm *telemetry.BusinessMetrics) {
	s.businessMetrics = bm
}

// Create creates a pending order numbered from the order sequence
func (s *OrderService) Create(ctx context.Context, req CreateOrderRequest) (*OrderResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "order", "create")
	defer span.End()

	items := make([]procurement.LineItem, 0, len(req.LineItems))
	for _, in := range req.LineItems {
		qty, err := valueobject.NewQuantity(in.Quantity, in.Unit)
		if err != nil {
			return nil, usecase.InvalidInput(err)
		}
		item, err := procurement.NewLineItem(qty, in.Description)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	requestedDate := req.RequestedDate
	if requestedDate.IsZero() {
		requestedDate = time.Now()
	}

	number, err := usecase.IssueNumber(ctx, s.issuer, s.retry, sequence.KindOrder, s.businessMetrics)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	order, err := procurement.NewOrder(number, req.RequesterID, req.Team, requestedDate, items)
	if err != nil {
		return nil, err
	}

	err = unitofwork.Retry(ctx, s.retry, func() error {
		return s.scope.Execute(ctx, func(repos unitofwork.Repositories) error {
			if err := repos.Orders().Create(ctx, order); err != nil {
				return err
			}
			return unitofwork.StageChanges(ctx, repos, order, procurement.AggregateTypeOrder, order.Number, ToOrderResponse(order))
		})
	})
	if err != nil {
		s.logFailure("create", number, err)
		telemetry.RecordError(span, err)
		return nil, err
	}

	telemetry.SetAttributes(span, telemetry.SpanAttrEntityID, order.ID.String(), telemetry.SpanAttrEntityNumber, number)
	if s.businessMetrics != nil {
		s.businessMetrics.RecordDocumentCreated(ctx, telemetry.DocumentTypeOrder)
	}
	s.logger.Info("order created",
		zap.String("order_id", order.ID.String()),
		zap.String("number", number),
		zap.String("team", order.Team),
	)

	response := ToOrderResponse(order)
	return &response, nil
}

// GetByID retrieves an order by ID
func (s *OrderService) GetByID(ctx context.Context, id uuid.UUID) (*OrderResponse, error) {
	order, err := s.orderRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	response := ToOrderResponse(order)
	return &response, nil
}

// GetByNumber retrieves an order by its CMD identifier
func (s *OrderService) GetByNumber(ctx context.Context, number string) (*OrderResponse, error) {
	order, err := s.orderRepo.FindByNumber(ctx, strings.TrimSpace(number))
	if err != nil {
		return nil, err
	}
	response := ToOrderResponse(order)
	return &response, nil
}

// List retrieves orders with filtering and pagination
func (s *OrderService) List(ctx context.Context, filter OrderListFilter) ([]OrderResponse, int64, error) {
	domainFilter := procurement.OrderFilter{
		Filter:         usecase.ListFilter(filter.Page, filter.PageSize, filter.Search),
		Status:         procurement.OrderStatus(strings.ToUpper(filter.Status)),
		RequesterID:    filter.RequesterID,
		Team:           filter.Team,
		IncludeDeleted: filter.IncludeDeleted,
	}
	if domainFilter.Status != "" && !domainFilter.Status.IsValid() {
		return nil, 0, shared.NewDomainError("INVALID_INPUT", "unknown order status: "+filter.Status)
	}

	orders, total, err := s.orderRepo.FindAll(ctx, domainFilter)
	if err != nil {
		return nil, 0, err
	}
	responses := make([]OrderResponse, len(orders))
	for i := range orders {
		responses[i] = ToOrderResponse(&orders[i])
	}
	return responses, total, nil
}

// AttachProforma attaches a supplier quote to an order
func (s *OrderService) AttachProforma(ctx context.Context, id uuid.UUID, actor shared.Actor, req AttachProformaRequest) (*OrderResponse, error) {
	currency, err := valueobject.ParseCurrency(req.Currency)
	if err != nil {
		return nil, usecase.InvalidInput(err)
	}
	amount, err := valueobject.NewMoney(req.Amount, currency)
	if err != nil {
		return nil, usecase.InvalidInput(err)
	}
	return s.mutate(ctx, "attach_proforma", id, actor, func(_ unitofwork.Repositories, order *procurement.Order) error {
		proforma, err := procurement.NewProforma(req.Name, amount, req.Supplier, req.URLs, req.Documents, actor.ID)
		if err != nil {
			return err
		}
		return order.AttachProforma(proforma, actor)
	})
}

// ValidateProforma validates the proforma at the requested index
func (s *OrderService) ValidateProforma(ctx context.Context, id uuid.UUID, actor shared.Actor, req ValidateProformaRequest) (*OrderResponse, error) {
	return s.mutate(ctx, "validate_proforma", id, actor, func(_ unitofwork.Repositories, order *procurement.Order) error {
		return order.ValidateProforma(req.Index, actor, strings.TrimSpace(req.Comment))
	})
}

// RemoveProforma removes an unvalidated proforma
func (s *OrderService) RemoveProforma(ctx context.Context, id uuid.UUID, actor shared.Actor, index int) (*OrderResponse, error) {
	return s.mutate(ctx, "remove_proforma", id, actor, func(_ unitofwork.Repositories, order *procurement.Order) error {
		return order.RemoveProforma(index, actor)
	})
}

// Authorize sets the admin authorization gate
func (s *OrderService) Authorize(ctx context.Context, id uuid.UUID, actor shared.Actor) (*OrderResponse, error) {
	return s.mutate(ctx, "authorize", id, actor, func(_ unitofwork.Repositories, order *procurement.Order) error {
		return order.Authorize(actor)
	})
}

// Validate moves an authorized order from Pending to Validated
func (s *OrderService) Validate(ctx context.Context, id uuid.UUID, actor shared.Actor) (*OrderResponse, error) {
	return s.mutate(ctx, "validate", id, actor, func(_ unitofwork.Repositories, order *procurement.Order) error {
		return order.Validate(actor)
	})
}

// Reject moves a pending order to Rejected
func (s *OrderService) Reject(ctx context.Context, id uuid.UUID, actor shared.Actor, reason string) (*OrderResponse, error) {
	return s.mutate(ctx, "reject", id, actor, func(_ unitofwork.Repositories, order *procurement.Order) error {
		return order.Reject(actor, reason)
	})
}

// Delete soft-deletes an order, freezing its proformas and payments
func (s *OrderService) Delete(ctx context.Context, id uuid.UUID, actor shared.Actor, reason string) (*OrderResponse, error) {
	return s.mutate(ctx, "delete", id, actor, func(_ unitofwork.Repositories, order *procurement.Order) error {
		return order.Delete(actor, reason)
	})
}

// SubmitPayment applies a payment to an order. A cash payment is withdrawn
// from the register in the same transaction; if the register cannot cover it
// nothing is committed.
func (s *OrderService) SubmitPayment(ctx context.Context, id uuid.UUID, actor shared.Actor, req SubmitPaymentRequest) (*PaymentResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "order", "submit_payment")
	defer span.End()
	telemetry.SetAttributes(span,
		telemetry.SpanAttrEntityID, id.String(),
		telemetry.SpanAttrPaymentMode, req.Mode,
		telemetry.SpanAttrAmount, req.Amount.String(),
		telemetry.SpanAttrCurrency, req.Currency,
	)

	var result PaymentResult
	applied, err := s.mutate(ctx, "submit_payment", id, actor, func(repos unitofwork.Repositories, order *procurement.Order) error {
		p, err := newPayment(req, actor.ID)
		if err != nil {
			return err
		}
		txn, err := reserveCash(ctx, repos.Ledger(), p, source{Type: caisse.SourceTypeOrder, ID: order.ID, Reference: order.Number})
		if err != nil {
			return err
		}
		summary, err := order.ApplyPayment(p)
		if err != nil {
			return err
		}
		result = toPaymentResult(p.ID, summary, transactionID(txn))
		return nil
	})
	if err != nil {
		s.recordPaymentFailure(ctx, req.Currency, err)
		telemetry.RecordError(span, err)
		return nil, err
	}

	if s.businessMetrics != nil {
		s.businessMetrics.RecordPaymentApplied(ctx, telemetry.DocumentTypeOrder, strings.ToUpper(req.Mode), applied.Summary.Currency, req.Amount)
	}
	s.logger.Info("payment applied to order",
		zap.String("order_id", id.String()),
		zap.String("number", applied.Number),
		zap.String("mode", req.Mode),
		zap.String("amount", req.Amount.String()),
		zap.String("status", result.Status),
	)
	return &result, nil
}

// CorrectPayment amends or voids a payment of an order and reconciles the
// register for cash payments. Admin only.
func (s *OrderService) CorrectPayment(ctx context.Context, id, paymentID uuid.UUID, actor shared.Actor, req CorrectPaymentRequest) (*PaymentResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "order", "correct_payment")
	defer span.End()
	telemetry.SetAttributes(span, telemetry.SpanAttrEntityID, id.String(), telemetry.SpanAttrPaymentID, paymentID.String())

	var result PaymentResult
	var currency string
	_, err := s.mutate(ctx, "correct_payment", id, actor, func(repos unitofwork.Repositories, order *procurement.Order) error {
		reason := strings.TrimSpace(req.Reason)
		adj, summary, err := order.CorrectPayment(paymentID, req.Amount, req.Void, reason, actor)
		if err != nil {
			return err
		}
		txn, err := settleCorrection(ctx, repos.Ledger(), adj, source{Type: caisse.SourceTypeOrder, ID: order.ID, Reference: order.Number}, actor.ID, reason)
		if err != nil {
			return err
		}
		currency = adj.Payment.Currency.String()
		result = toPaymentResult(paymentID, summary, transactionID(txn))
		return nil
	})
	if err != nil {
		s.recordPaymentFailure(ctx, currency, err)
		telemetry.RecordError(span, err)
		return nil, err
	}

	if s.businessMetrics != nil {
		s.businessMetrics.RecordPaymentCorrected(ctx, telemetry.DocumentTypeOrder, req.Void)
	}
	s.logger.Info("order payment corrected",
		zap.String("order_id", id.String()),
		zap.String("payment_id", paymentID.String()),
		zap.Bool("void", req.Void),
		zap.String("status", result.Status),
	)
	return &result, nil
}

// mutate loads the order, applies fn and saves it with the version check,
// all in one transaction retried on conflicts.
func (s *OrderService) mutate(ctx context.Context, op string, id uuid.UUID, actor shared.Actor, fn func(repos unitofwork.Repositories, order *procurement.Order) error) (*OrderResponse, error) {
	if err := actor.Validate(); err != nil {
		return nil, err
	}
	var response OrderResponse
	err := unitofwork.Retry(ctx, s.retry, func() error {
		return s.scope.Execute(ctx, func(repos unitofwork.Repositories) error {
			order, err := repos.Orders().FindByID(ctx, id)
			if err != nil {
				return err
			}
			if err := fn(repos, order); err != nil {
				return err
			}
			if err := repos.Orders().SaveWithLock(ctx, order); err != nil {
				return err
			}
			response = ToOrderResponse(order)
			return unitofwork.StageChanges(ctx, repos, order, procurement.AggregateTypeOrder, order.Number, response)
		})
	})
	if err != nil {
		s.logFailure(op, id.String(), err)
		return nil, err
	}
	return &response, nil
}

func (s *OrderService) recordPaymentFailure(ctx context.Context, currency string, err error) {
	if s.businessMetrics != nil && errors.Is(err, shared.ErrInsufficientFunds) {
		s.businessMetrics.RecordInsufficientFunds(ctx, currency)
	}
}

func (s *OrderService) logFailure(op, ref string, err error) {
	usecase.LogFailure(s.logger, "order", op, ref, err)
}
