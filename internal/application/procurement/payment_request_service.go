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

// PaymentRequestService handles payment request business operations
type PaymentRequestService struct {
	scope           unitofwork.Scope
	requestRepo     procurement.PaymentRequestRepository
	issuer          *sequence.Issuer
	retry           unitofwork.RetryPolicy
	defaultCurrency valueobject.Currency
	logger          *zap.Logger
	businessMetrics *telemetry.BusinessMetrics
}

// NewPaymentRequestService creates a new PaymentRequestService
func NewPaymentRequestService(scope unitofwork.Scope, requestRepo procurement.PaymentRequestRepository, issuer *sequence.Issuer, logger *zap.Logger) *PaymentRequestService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PaymentRequestService{
		scope:           scope,
		requestRepo:     requestRepo,
		issuer:          issuer,
		retry:           unitofwork.DefaultRetryPolicy(),
		defaultCurrency: valueobject.DefaultCurrency,
		logger:          logger,
	}
}

// SetRetryPolicy overrides the retry policy applied to every write
func (s *PaymentRequestService) SetRetryPolicy(policy unitofwork.RetryPolicy) {
	s.retry = policy
}

// SetDefaultCurrency sets the currency used when a request names none
func (s *PaymentRequestService) SetDefaultCurrency(currency valueobject.Currency) {
	s.defaultCurrency = currency
}

// SetBusinessMetrics sets the business metrics collector
func (s *PaymentRequestService) SetBusinessMetrics(bm *telemetry.BusinessMetrics) {
	s.businessMetrics = bm
}

// Create creates a pending payment request numbered from the PAY sequence
func (s *PaymentRequestService) Create(ctx context.Context, req CreatePaymentRequestRequest) (*PaymentRequestResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "payment_request", "create")
	defer span.End()

	currency := s.defaultCurrency
	if req.Currency != "" {
		parsed, err := valueobject.ParseCurrency(req.Currency)
		if err != nil {
			return nil, usecase.InvalidInput(err)
		}
		currency = parsed
	}
	amount, err := valueobject.NewMoney(req.Amount, currency)
	if err != nil {
		return nil, usecase.InvalidInput(err)
	}
	if !amount.IsPositive() {
		return nil, shared.ErrInvalidAmount
	}
	requestedDate := req.RequestedDate
	if requestedDate.IsZero() {
		requestedDate = time.Now()
	}

	number, err := usecase.IssueNumber(ctx, s.issuer, s.retry, sequence.KindPaymentRequest, s.businessMetrics)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	pr, err := procurement.NewPaymentRequest(number, req.RequesterID, amount, req.Reason, requestedDate, req.OrderReference, req.Documents)
	if err != nil {
		return nil, err
	}

	err = unitofwork.Retry(ctx, s.retry, func() error {
		return s.scope.Execute(ctx, func(repos unitofwork.Repositories) error {
			if err := repos.PaymentRequests().Create(ctx, pr); err != nil {
				return err
			}
			return unitofwork.StageChanges(ctx, repos, pr, procurement.AggregateTypePaymentRequest, pr.Number, ToPaymentRequestResponse(pr))
		})
	})
	if err != nil {
		usecase.LogFailure(s.logger, "payment_request", "create", number, err)
		telemetry.RecordError(span, err)
		return nil, err
	}

	if s.businessMetrics != nil {
		s.businessMetrics.RecordDocumentCreated(ctx, telemetry.DocumentTypePaymentRequest)
	}
	s.logger.Info("payment request created",
		zap.String("payment_request_id", pr.ID.String()),
		zap.String("number", number),
		zap.String("amount", pr.Amount.String()),
		zap.String("currency", pr.Currency.String()),
	)

	response := ToPaymentRequestResponse(pr)
	return &response, nil
}

// GetByID retrieves a payment request by ID
func (s *PaymentRequestService) GetByID(ctx context.Context, id uuid.UUID) (*PaymentRequestResponse, error) {
	pr, err := s.requestRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	response := ToPaymentRequestResponse(pr)
	return &response, nil
}

// GetByNumber retrieves a payment request by its PAY identifier
func (s *PaymentRequestService) GetByNumber(ctx context.Context, number string) (*PaymentRequestResponse, error) {
	pr, err := s.requestRepo.FindByNumber(ctx, strings.TrimSpace(number))
	if err != nil {
		return nil, err
	}
	response := ToPaymentRequestResponse(pr)
	return &response, nil
}

// List retrieves payment requests with filtering and pagination
func (s *PaymentRequestService) List(ctx context.Context, filter PaymentRequestListFilter) ([]PaymentRequestResponse, int64, error) {
	domainFilter := procurement.PaymentRequestFilter{
		Filter:         usecase.ListFilter(filter.Page, filter.PageSize, filter.Search),
		Status:         procurement.PaymentRequestStatus(strings.ToUpper(filter.Status)),
		RequesterID:    filter.RequesterID,
		OrderReference: filter.OrderReference,
		IncludeDeleted: filter.IncludeDeleted,
	}
	if domainFilter.Status != "" && !domainFilter.Status.IsValid() {
		return nil, 0, shared.NewDomainError("INVALID_INPUT", "unknown payment request status: "+filter.Status)
	}

	requests, total, err := s.requestRepo.FindAll(ctx, domainFilter)
	if err != nil {
		return nil, 0, err
	}
	responses := make([]PaymentRequestResponse, len(requests))
	for i := range requests {
		responses[i] = ToPaymentRequestResponse(&requests[i])
	}
	return responses, total, nil
}

// Authorize sets the admin authorization gate
func (s *PaymentRequestService) Authorize(ctx context.Context, id uuid.UUID, actor shared.Actor) (*PaymentRequestResponse, error) {
	return s.mutate(ctx, "authorize", id, actor, func(_ unitofwork.Repositories, pr *procurement.PaymentRequest) error {
		return pr.Authorize(actor)
	})
}

// Validate moves an authorized request from Pending to Validated
func (s *PaymentRequestService) Validate(ctx context.Context, id uuid.UUID, actor shared.Actor) (*PaymentRequestResponse, error) {
	return s.mutate(ctx, "validate", id, actor, func(_ unitofwork.Repositories, pr *procurement.PaymentRequest) error {
		return pr.Validate(actor)
	})
}

// Reject moves a pending request to Rejected
func (s *PaymentRequestService) Reject(ctx context.Context, id uuid.UUID, actor shared.Actor, reason string) (*PaymentRequestResponse, error) {
	return s.mutate(ctx, "reject", id, actor, func(_ unitofwork.Repositories, pr *procurement.PaymentRequest) error {
		return pr.Reject(actor, reason)
	})
}

// Cancel withdraws a request that has not been paid
func (s *PaymentRequestService) Cancel(ctx context.Context, id uuid.UUID, actor shared.Actor, reason string) (*PaymentRequestResponse, error) {
	return s.mutate(ctx, "cancel", id, actor, func(_ unitofwork.Repositories, pr *procurement.PaymentRequest) error {
		return pr.Cancel(actor, reason)
	})
}

// Delete soft-deletes a request, freezing its payments
func (s *PaymentRequestService) Delete(ctx context.Context, id uuid.UUID, actor shared.Actor, reason string) (*PaymentRequestResponse, error) {
	return s.mutate(ctx, "delete", id, actor, func(_ unitofwork.Repositories, pr *procurement.PaymentRequest) error {
		return pr.Delete(actor, reason)
	})
}

// SubmitPayment applies a payment to a validated or partially paid request.
// Cash is withdrawn from the register in the same transaction.
func (s *PaymentRequestService) SubmitPayment(ctx context.Context, id uuid.UUID, actor shared.Actor, req SubmitPaymentRequest) (*PaymentResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "payment_request", "submit_payment")
	defer span.End()
	telemetry.SetAttributes(span,
		telemetry.SpanAttrEntityID, id.String(),
		telemetry.SpanAttrPaymentMode, req.Mode,
		telemetry.SpanAttrAmount, req.Amount.String(),
		telemetry.SpanAttrCurrency, req.Currency,
	)

	var result PaymentResult
	applied, err := s.mutate(ctx, "submit_payment", id, actor, func(repos unitofwork.Repositories, pr *procurement.PaymentRequest) error {
		p, err := newPayment(req, actor.ID)
		if err != nil {
			return err
		}
		txn, err := reserveCash(ctx, repos.Ledger(), p, source{Type: caisse.SourceTypePaymentRequest, ID: pr.ID, Reference: pr.Number})
		if err != nil {
			return err
		}
		summary, err := pr.ApplyPayment(p)
		if err != nil {
			return err
		}
		result = toPaymentResult(p.ID, summary, transactionID(txn))
		return nil
	})
	if err != nil {
		if s.businessMetrics != nil && errors.Is(err, shared.ErrInsufficientFunds) {
			s.businessMetrics.RecordInsufficientFunds(ctx, req.Currency)
		}
		telemetry.RecordError(span, err)
		return nil, err
	}

	if s.businessMetrics != nil {
		s.businessMetrics.RecordPaymentApplied(ctx, telemetry.DocumentTypePaymentRequest, strings.ToUpper(req.Mode), applied.Currency, req.Amount)
	}
	s.logger.Info("payment applied to payment request",
		zap.String("payment_request_id", id.String()),
		zap.String("number", applied.Number),
		zap.String("mode", req.Mode),
		zap.String("amount", req.Amount.String()),
		zap.String("status", applied.Status),
	)
	return &result, nil
}

// CorrectPayment amends or voids a payment of a request. Admin only.
func (s *PaymentRequestService) CorrectPayment(ctx context.Context, id, paymentID uuid.UUID, actor shared.Actor, req CorrectPaymentRequest) (*PaymentResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "payment_request", "correct_payment")
	defer span.End()
	telemetry.SetAttributes(span, telemetry.SpanAttrEntityID, id.String(), telemetry.SpanAttrPaymentID, paymentID.String())

	var result PaymentResult
	var currency string
	_, err := s.mutate(ctx, "correct_payment", id, actor, func(repos unitofwork.Repositories, pr *procurement.PaymentRequest) error {
		reason := strings.TrimSpace(req.Reason)
		adj, summary, err := pr.CorrectPayment(paymentID, req.Amount, req.Void, reason, actor)
		if err != nil {
			return err
		}
		txn, err := settleCorrection(ctx, repos.Ledger(), adj, source{Type: caisse.SourceTypePaymentRequest, ID: pr.ID, Reference: pr.Number}, actor.ID, reason)
		if err != nil {
			return err
		}
		currency = pr.Currency.String()
		result = toPaymentResult(paymentID, summary, transactionID(txn))
		return nil
	})
	if err != nil {
		if s.businessMetrics != nil && errors.Is(err, shared.ErrInsufficientFunds) {
			s.businessMetrics.RecordInsufficientFunds(ctx, currency)
		}
		telemetry.RecordError(span, err)
		return nil, err
	}

	if s.businessMetrics != nil {
		s.businessMetrics.RecordPaymentCorrected(ctx, telemetry.DocumentTypePaymentRequest, req.Void)
	}
	s.logger.Info("payment request payment corrected",
		zap.String("payment_request_id", id.String()),
		zap.String("payment_id", paymentID.String()),
		zap.Bool("void", req.Void),
	)
	return &result, nil
}

// mutate loads the request, applies fn and saves it with the version check,
// all in one transaction retried on conflicts.
func (s *PaymentRequestService) mutate(ctx context.Context, op string, id uuid.UUID, actor shared.Actor, fn func(repos unitofwork.Repositories, pr *procurement.PaymentRequest) error) (*PaymentRequestResponse, error) {
	if err := actor.Validate(); err != nil {
		return nil, err
	}
	var response PaymentRequestResponse
	err := unitofwork.Retry(ctx, s.retry, func() error {
		return s.scope.Execute(ctx, func(repos unitofwork.Repositories) error {
			pr, err := repos.PaymentRequests().FindByID(ctx, id)
			if err != nil {
				return err
			}
			if err := fn(repos, pr); err != nil {
				return err
			}
			if err := repos.PaymentRequests().SaveWithLock(ctx, pr); err != nil {
				return err
			}
			response = ToPaymentRequestResponse(pr)
			return unitofwork.StageChanges(ctx, repos, pr, procurement.AggregateTypePaymentRequest, pr.Number, response)
		})
	})
	if err != nil {
		usecase.LogFailure(s.logger, "payment_request", op, id.String(), err)
		return nil, err
	}
	return &response, nil
}
