// Package caisse implements the cash register use cases: funding requests and
// their approval graph, manual adjustments, balances and reconciliation.
package caisse

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/procurement/backend/internal/application/unitofwork"
	"github.com/procurement/backend/internal/application/usecase"
	"github.com/procurement/backend/internal/domain/caisse"
	"github.com/procurement/backend/internal/domain/sequence"
	"github.com/procurement/backend/internal/domain/shared"
	"github.com/procurement/backend/internal/domain/shared/valueobject"
	"github.com/procurement/backend/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

// Service handles register business operations
type Service struct {
	scope           unitofwork.Scope
	fundingRepo     caisse.FundingRequestRepository
	ledger          caisse.Ledger
	issuer          *sequence.Issuer
	retry           unitofwork.RetryPolicy
	defaultCurrency valueobject.Currency
	logger          *zap.Logger
	businessMetrics *telemetry.BusinessMetrics
}

// NewService creates a new Service. fundingRepo and ledger serve reads and
// standalone adjustments; funding transitions go through scope.
func NewService(scope unitofwork.Scope, fundingRepo caisse.FundingRequestRepository, ledger caisse.Ledger, issuer *sequence.Issuer, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		scope:           scope,
		fundingRepo:     fundingRepo,
		ledger:          ledger,
		issuer:          issuer,
		retry:           unitofwork.DefaultRetryPolicy(),
		defaultCurrency: valueobject.DefaultCurrency,
		logger:          logger,
	}
}

// SetRetryPolicy overrides the retry policy applied to every write
func (s *Service) SetRetryPolicy(policy unitofwork.RetryPolicy) {
	s.retry = policy
}

// SetDefaultCurrency sets the currency used when a request names none
func (s *Service) SetDefaultCurrency(currency valueobject.Currency) {
	s.defaultCurrency = currency
}

// SetBusinessMetrics sets the business metrics collector
func (s *Service) SetBusinessMetrics(bm *telemetry.BusinessMetrics) {
	s.businessMetrics = bm
}

// EnsureCurrencies opens a zero balance for every configured currency
func (s *Service) EnsureCurrencies(ctx context.Context, currencies []valueobject.Currency) error {
	for _, c := range currencies {
		if !c.IsValid() {
			return shared.NewDomainError("INVALID_INPUT", "unsupported currency: "+c.String())
		}
	}
	return unitofwork.Retry(ctx, s.retry, func() error {
		return s.ledger.EnsureCurrencies(ctx, currencies)
	})
}

// CreateFundingRequest creates a funding request in the initial stage
func (s *Service) CreateFundingRequest(ctx context.Context, req CreateFundingRequestRequest) (*FundingRequestResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "caisse", "create_funding_request")
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
	direction, err := caisse.ParseDirection(req.Direction)
	if err != nil {
		return nil, err
	}

	number, err := usecase.IssueNumber(ctx, s.issuer, s.retry, sequence.KindFundingRequest, s.businessMetrics)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	fr, err := caisse.NewFundingRequest(number, req.RequesterID, amount, req.Reason, req.RequestedDate, direction)
	if err != nil {
		return nil, err
	}

	err = unitofwork.Retry(ctx, s.retry, func() error {
		return s.scope.Execute(ctx, func(repos unitofwork.Repositories) error {
			if err := repos.FundingRequests().Create(ctx, fr); err != nil {
				return err
			}
			return unitofwork.StageChanges(ctx, repos, fr, caisse.AggregateTypeFundingRequest, fr.Number, ToFundingRequestResponse(fr))
		})
	})
	if err != nil {
		s.logFailure("create_funding_request", number, err)
		telemetry.RecordError(span, err)
		return nil, err
	}

	telemetry.SetAttributes(span, telemetry.SpanAttrEntityID, fr.ID.String(), telemetry.SpanAttrEntityNumber, number)
	if s.businessMetrics != nil {
		s.businessMetrics.RecordDocumentCreated(ctx, telemetry.DocumentTypeFundingRequest)
	}
	s.logger.Info("funding request created",
		zap.String("funding_request_id", fr.ID.String()),
		zap.String("number", number),
		zap.String("currency", fr.Currency.String()),
		zap.String("amount", fr.Amount.String()),
		zap.String("direction", string(fr.Direction)),
	)

	response := ToFundingRequestResponse(fr)
	return &response, nil
}

// GetFundingRequest retrieves a funding request by ID
func (s *Service) GetFundingRequest(ctx context.Context, id uuid.UUID) (*FundingRequestResponse, error) {
	fr, err := s.fundingRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	response := ToFundingRequestResponse(fr)
	return &response, nil
}

// GetFundingRequestByNumber retrieves a funding request by its FUND identifier
func (s *Service) GetFundingRequestByNumber(ctx context.Context, number string) (*FundingRequestResponse, error) {
	fr, err := s.fundingRepo.FindByNumber(ctx, strings.TrimSpace(number))
	if err != nil {
		return nil, err
	}
	response := ToFundingRequestResponse(fr)
	return &response, nil
}

// ListFundingRequests retrieves funding requests with filtering and pagination
func (s *Service) ListFundingRequests(ctx context.Context, filter FundingRequestListFilter) ([]FundingRequestResponse, int64, error) {
	domainFilter := caisse.FundingRequestFilter{
		Filter:      usecase.ListFilter(filter.Page, filter.PageSize, filter.Search),
		RequesterID: filter.RequesterID,
	}
	if filter.Stage != "" {
		stage, err := caisse.ParseStage(filter.Stage)
		if err != nil {
			return nil, 0, err
		}
		domainFilter.Stage = stage
	}

	requests, total, err := s.fundingRepo.FindAll(ctx, domainFilter)
	if err != nil {
		return nil, 0, err
	}
	responses := make([]FundingRequestResponse, len(requests))
	for i := range requests {
		responses[i] = ToFundingRequestResponse(&requests[i])
	}
	return responses, total, nil
}

// Transition moves a funding request along its approval graph. Approval
// applies the balance change in the same transaction as the request write;
// approving an already applied request returns it unchanged.
func (s *Service) Transition(ctx context.Context, id uuid.UUID, actor shared.Actor, req TransitionRequest) (*TransitionResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "caisse", "transition_funding_request")
	defer span.End()
	telemetry.SetAttributes(span, telemetry.SpanAttrEntityID, id.String(), telemetry.SpanAttrFundingStage, req.Stage)

	if err := actor.Validate(); err != nil {
		return nil, err
	}
	target, err := caisse.ParseStage(req.Stage)
	if err != nil {
		return nil, err
	}
	input := toTransitionInput(req)

	var result TransitionResult
	var currency string
	err = unitofwork.Retry(ctx, s.retry, func() error {
		result = TransitionResult{}
		return s.scope.Execute(ctx, func(repos unitofwork.Repositories) error {
			fr, err := repos.FundingRequests().FindByID(ctx, id)
			if err != nil {
				return err
			}
			currency = fr.Currency.String()
			outcome, err := fr.Transition(target, actor, input)
			if err != nil {
				return err
			}
			if outcome.NoOp {
				result.NoOp = true
				result.FundingRequest = ToFundingRequestResponse(fr)
				return nil
			}
			if outcome.Movement != nil {
				txn, err := repos.Ledger().Adjust(ctx, outcome.Movement)
				if err != nil {
					return err
				}
				txID := txn.ID
				result.CaisseTransactionID = &txID
			}
			if err := repos.FundingRequests().SaveWithLock(ctx, fr); err != nil {
				return err
			}
			result.FundingRequest = ToFundingRequestResponse(fr)
			return unitofwork.StageChanges(ctx, repos, fr, caisse.AggregateTypeFundingRequest, fr.Number, result.FundingRequest)
		})
	})
	if err != nil {
		if s.businessMetrics != nil && errors.Is(err, shared.ErrInsufficientFunds) {
			s.businessMetrics.RecordInsufficientFunds(ctx, currency)
		}
		s.logFailure("transition_funding_request", id.String(), err)
		telemetry.RecordError(span, err)
		return nil, err
	}

	if result.NoOp {
		s.logger.Debug("funding request already applied",
			zap.String("funding_request_id", id.String()),
			zap.String("number", result.FundingRequest.Number),
		)
		return &result, nil
	}
	if s.businessMetrics != nil {
		s.businessMetrics.RecordFundingTransition(ctx, target.String())
	}
	s.logger.Info("funding request transitioned",
		zap.String("funding_request_id", id.String()),
		zap.String("number", result.FundingRequest.Number),
		zap.String("stage", target.String()),
		zap.String("status", result.FundingRequest.Status),
		zap.Bool("balance_applied", result.CaisseTransactionID != nil),
	)
	return &result, nil
}

// AdminAdjust applies a manual register adjustment. Admin only.
func (s *Service) AdminAdjust(ctx context.Context, actor shared.Actor, req AdjustBalanceRequest) (*TransactionResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "caisse", "admin_adjust")
	defer span.End()
	telemetry.SetAttributes(span, telemetry.SpanAttrCurrency, req.Currency, telemetry.SpanAttrAmount, req.Delta.String())

	if err := actor.Validate(); err != nil {
		return nil, err
	}
	if err := actor.RequireAdmin("adjust the register"); err != nil {
		return nil, err
	}
	currency, err := valueobject.ParseCurrency(req.Currency)
	if err != nil {
		return nil, usecase.InvalidInput(err)
	}
	remark := strings.TrimSpace(req.Remark)
	if remark == "" {
		return nil, shared.NewDomainError("INVALID_INPUT", "An adjustment requires a remark")
	}
	movement, err := caisse.NewMovement(currency, req.Delta, caisse.TransactionTypeAdjustment, caisse.SourceTypeManual, actor.ID)
	if err != nil {
		return nil, err
	}
	movement.WithRemark(remark)

	var txn *caisse.Transaction
	err = unitofwork.Retry(ctx, s.retry, func() error {
		var err error
		txn, err = s.ledger.Adjust(ctx, movement)
		return err
	})
	if err != nil {
		if s.businessMetrics != nil && errors.Is(err, shared.ErrInsufficientFunds) {
			s.businessMetrics.RecordInsufficientFunds(ctx, currency.String())
		}
		s.logFailure("admin_adjust", currency.String(), err)
		telemetry.RecordError(span, err)
		return nil, err
	}

	if s.businessMetrics != nil {
		s.businessMetrics.RecordBalance(ctx, currency.String(), txn.BalanceAfter)
	}
	s.logger.Info("register adjusted",
		zap.String("transaction_id", txn.ID.String()),
		zap.String("currency", currency.String()),
		zap.String("delta", req.Delta.String()),
		zap.String("balance_after", txn.BalanceAfter.String()),
		zap.String("operator_id", actor.ID.String()),
	)
	response := ToTransactionResponse(txn)
	return &response, nil
}

// Balances returns every currency balance
func (s *Service) Balances(ctx context.Context) ([]BalanceResponse, error) {
	balances, err := s.ledger.Balances(ctx)
	if err != nil {
		return nil, err
	}
	return ToBalanceResponses(balances), nil
}

// Balance returns the balance of one currency
func (s *Service) Balance(ctx context.Context, code string) (*BalanceResponse, error) {
	currency, err := valueobject.ParseCurrency(code)
	if err != nil {
		return nil, usecase.InvalidInput(err)
	}
	balance, err := s.ledger.Balance(ctx, currency)
	if err != nil {
		return nil, err
	}
	return &ToBalanceResponses([]caisse.Balance{balance})[0], nil
}

// Transactions lists the transaction log, newest first
func (s *Service) Transactions(ctx context.Context, filter TransactionListFilter) ([]TransactionResponse, int64, error) {
	domainFilter := caisse.TransactionFilter{
		Filter:   usecase.ListFilter(filter.Page, filter.PageSize, ""),
		SourceID: filter.SourceID,
	}
	if filter.Currency != "" {
		currency, err := valueobject.ParseCurrency(filter.Currency)
		if err != nil {
			return nil, 0, usecase.InvalidInput(err)
		}
		domainFilter.Currency = currency
	}
	if filter.Type != "" {
		txType := caisse.TransactionType(strings.ToUpper(filter.Type))
		if !txType.IsValid() {
			return nil, 0, shared.NewDomainError("INVALID_INPUT", "unknown transaction type: "+filter.Type)
		}
		domainFilter.Type = txType
	}
	if filter.SourceType != "" {
		sourceType := caisse.SourceType(strings.ToUpper(filter.SourceType))
		if !sourceType.IsValid() {
			return nil, 0, shared.NewDomainError("INVALID_INPUT", "unknown source type: "+filter.SourceType)
		}
		domainFilter.SourceType = sourceType
	}

	txns, total, err := s.ledger.Transactions(ctx, domainFilter)
	if err != nil {
		return nil, 0, err
	}
	responses := make([]TransactionResponse, len(txns))
	for i := range txns {
		responses[i] = ToTransactionResponse(&txns[i])
	}
	return responses, total, nil
}

// Reconcile compares each balance with the sum of its transaction log
func (s *Service) Reconcile(ctx context.Context) (*ReconcileResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "caisse", "reconcile")
	defer span.End()

	report, err := s.ledger.Reconcile(ctx)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	for _, d := range report.Drifts {
		s.logger.Error("ALERT: register balance drifted from its log",
			zap.String("currency", d.Currency.String()),
			zap.String("balance", d.Balance.String()),
			zap.String("log_sum", d.LogSum.String()),
			zap.String("difference", d.Difference.String()),
		)
	}
	response := ToReconcileResponse(report)
	return &response, nil
}

func toTransitionInput(req TransitionRequest) caisse.TransitionInput {
	in := caisse.TransitionInput{
		Detail:          req.Detail,
		PaymentMethod:   req.PaymentMethod,
		CorrectedAmount: req.CorrectedAmount,
	}
	if req.Cheque != nil {
		in.Cheque = &caisse.ChequeDetails{Number: strings.TrimSpace(req.Cheque.Number), Bank: strings.TrimSpace(req.Cheque.Bank)}
	}
	if req.Transfer != nil {
		in.Transfer = &caisse.TransferDetails{Reference: strings.TrimSpace(req.Transfer.Reference), Bank: strings.TrimSpace(req.Transfer.Bank)}
	}
	return in
}

func (s *Service) logFailure(op, ref string, err error) {
	usecase.LogFailure(s.logger, "caisse", op, ref, err)
}
