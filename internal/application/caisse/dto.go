package caisse

import (
	"time"

	"github.com/google/uuid"
	"github.com/procurement/backend/internal/domain/caisse"
	"github.com/shopspring/decimal"
)

// ============================================================================
// Requests
// ============================================================================

// CreateFundingRequestRequest represents a request to fund (or draw from) the register
type CreateFundingRequestRequest struct {
	RequesterID   uuid.UUID       `json:"requester_id" binding:"required"`
	Amount        decimal.Decimal `json:"amount" binding:"required"`
	Currency      string          `json:"currency" binding:"omitempty,len=3"`
	Reason        string          `json:"reason" binding:"required,max=500"`
	RequestedDate time.Time       `json:"requested_date"`
	Direction     string          `json:"direction" binding:"omitempty,oneof=deposit payout"`
}

// ChequeInput identifies a cheque disbursement
type ChequeInput struct {
	Number string `json:"number" binding:"required,max=50"`
	Bank   string `json:"bank" binding:"required,max=100"`
}

// TransferInput identifies a bank transfer disbursement
type TransferInput struct {
	Reference string `json:"reference" binding:"required,max=100"`
	Bank      string `json:"bank" binding:"required,max=100"`
}

// TransitionRequest moves a funding request to another stage
type TransitionRequest struct {
	Stage           string           `json:"stage" binding:"required"`
	Detail          string           `json:"detail" binding:"max=500"`
	PaymentMethod   string           `json:"payment_method" binding:"max=30"`
	Cheque          *ChequeInput     `json:"cheque"`
	Transfer        *TransferInput   `json:"transfer"`
	CorrectedAmount *decimal.Decimal `json:"corrected_amount"`
}

// AdjustBalanceRequest is a manual register adjustment
type AdjustBalanceRequest struct {
	Currency string          `json:"currency" binding:"required,len=3"`
	Delta    decimal.Decimal `json:"delta" binding:"required"`
	Remark   string          `json:"remark" binding:"required,max=500"`
}

// FundingRequestListFilter narrows funding request listings
type FundingRequestListFilter struct {
	Stage       string     `form:"stage"`
	RequesterID *uuid.UUID `form:"requester_id"`
	Search      string     `form:"search"`
	Page        int        `form:"page"`
	PageSize    int        `form:"page_size"`
}

// TransactionListFilter narrows transaction log listings
type TransactionListFilter struct {
	Currency   string     `form:"currency"`
	Type       string     `form:"type"`
	SourceType string     `form:"source_type"`
	SourceID   *uuid.UUID `form:"source_id"`
	Page       int        `form:"page"`
	PageSize   int        `form:"page_size"`
}

// ============================================================================
// Responses
// ============================================================================

// HistoryEntryResponse is one step of a funding request's stage history
type HistoryEntryResponse struct {
	Stage   string    `json:"stage"`
	At      time.Time `json:"at"`
	ActorID uuid.UUID `json:"actor_id"`
	Detail  string    `json:"detail,omitempty"`
}

// DisbursementResponse records how an approved request was paid out
type DisbursementResponse struct {
	Method     string                  `json:"method"`
	ApproverID uuid.UUID               `json:"approver_id"`
	Cheque     *caisse.ChequeDetails   `json:"cheque,omitempty"`
	Transfer   *caisse.TransferDetails `json:"transfer,omitempty"`
}

// FundingRequestResponse represents a funding request
type FundingRequestResponse struct {
	ID              uuid.UUID              `json:"id"`
	Number          string                 `json:"number"`
	RequesterID     uuid.UUID              `json:"requester_id"`
	Amount          decimal.Decimal        `json:"amount"`
	CorrectedAmount *decimal.Decimal       `json:"corrected_amount,omitempty"`
	EffectiveAmount decimal.Decimal        `json:"effective_amount"`
	Currency        string                 `json:"currency"`
	Reason          string                 `json:"reason"`
	RequestedDate   time.Time              `json:"requested_date"`
	Direction       string                 `json:"direction"`
	Stage           string                 `json:"stage"`
	Status          string                 `json:"status"`
	History         []HistoryEntryResponse `json:"history"`
	Disbursement    *DisbursementResponse  `json:"disbursement,omitempty"`
	Changed         bool                   `json:"changed"`
	Version         int                    `json:"version"`
	CreatedAt       time.Time              `json:"created_at"`
	UpdatedAt       time.Time              `json:"updated_at"`
}

// ToFundingRequestResponse converts a domain FundingRequest to FundingRequestResponse
func ToFundingRequestResponse(fr *caisse.FundingRequest) FundingRequestResponse {
	history := make([]HistoryEntryResponse, len(fr.History))
	for i, h := range fr.History {
		history[i] = HistoryEntryResponse{
			Stage:   h.Stage.String(),
			At:      h.At,
			ActorID: h.ActorID,
			Detail:  h.Detail,
		}
	}
	var disbursement *DisbursementResponse
	if fr.Disbursement != nil && !fr.Disbursement.IsZero() {
		disbursement = &DisbursementResponse{
			Method:     fr.Disbursement.Method,
			ApproverID: fr.Disbursement.ApproverID,
			Cheque:     fr.Disbursement.Cheque,
			Transfer:   fr.Disbursement.Transfer,
		}
	}
	return FundingRequestResponse{
		ID:              fr.ID,
		Number:          fr.Number,
		RequesterID:     fr.RequesterID,
		Amount:          fr.Amount,
		CorrectedAmount: fr.CorrectedAmount,
		EffectiveAmount: fr.EffectiveAmount(),
		Currency:        fr.Currency.String(),
		Reason:          fr.Reason,
		RequestedDate:   fr.RequestedDate,
		Direction:       string(fr.Direction),
		Stage:           fr.Stage.String(),
		Status:          fr.Status.String(),
		History:         history,
		Disbursement:    disbursement,
		Changed:         fr.Changed,
		Version:         fr.Version,
		CreatedAt:       fr.CreatedAt,
		UpdatedAt:       fr.UpdatedAt,
	}
}

// TransitionResult is returned by Transition
type TransitionResult struct {
	FundingRequest FundingRequestResponse `json:"funding_request"`
	// CaisseTransactionID is set when the transition moved register cash
	CaisseTransactionID *uuid.UUID `json:"caisse_transaction_id,omitempty"`
	// NoOp is true when the request was already approved and applied
	NoOp bool `json:"no_op"`
}

// BalanceResponse is the amount held for one currency
type BalanceResponse struct {
	Currency  string          `json:"currency"`
	Amount    decimal.Decimal `json:"amount"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// ToBalanceResponses converts balances
func ToBalanceResponses(balances []caisse.Balance) []BalanceResponse {
	out := make([]BalanceResponse, len(balances))
	for i, b := range balances {
		out[i] = BalanceResponse{Currency: b.Currency.String(), Amount: b.Amount, UpdatedAt: b.UpdatedAt}
	}
	return out
}

// TransactionResponse represents one register movement
type TransactionResponse struct {
	ID            uuid.UUID       `json:"id"`
	Type          string          `json:"type"`
	Amount        decimal.Decimal `json:"amount"`
	Currency      string          `json:"currency"`
	BalanceAfter  decimal.Decimal `json:"balance_after"`
	SourceType    string          `json:"source_type"`
	SourceID      *uuid.UUID      `json:"source_id,omitempty"`
	Reference     string          `json:"reference,omitempty"`
	PaymentMethod string          `json:"payment_method,omitempty"`
	Remark        string          `json:"remark,omitempty"`
	OperatorID    uuid.UUID       `json:"operator_id"`
	CreatedAt     time.Time       `json:"created_at"`
}

// ToTransactionResponse converts a domain Transaction
func ToTransactionResponse(t *caisse.Transaction) TransactionResponse {
	return TransactionResponse{
		ID:            t.ID,
		Type:          t.Type.String(),
		Amount:        t.Amount,
		Currency:      t.Currency.String(),
		BalanceAfter:  t.BalanceAfter,
		SourceType:    t.SourceType.String(),
		SourceID:      t.SourceID,
		Reference:     t.Reference,
		PaymentMethod: t.PaymentMethod,
		Remark:        t.Remark,
		OperatorID:    t.OperatorID,
		CreatedAt:     t.CreatedAt,
	}
}

// DriftResponse is a currency whose balance disagrees with its log
type DriftResponse struct {
	Currency   string          `json:"currency"`
	Balance    decimal.Decimal `json:"balance"`
	LogSum     decimal.Decimal `json:"log_sum"`
	Difference decimal.Decimal `json:"difference"`
}

// ReconcileResponse is the outcome of a balance/log comparison
type ReconcileResponse struct {
	Consistent bool              `json:"consistent"`
	Balances   []BalanceResponse `json:"balances"`
	Drifts     []DriftResponse   `json:"drifts"`
	CheckedAt  time.Time         `json:"checked_at"`
}

// ToReconcileResponse converts a reconcile report
func ToReconcileResponse(r *caisse.ReconcileReport) ReconcileResponse {
	drifts := make([]DriftResponse, len(r.Drifts))
	for i, d := range r.Drifts {
		drifts[i] = DriftResponse{
			Currency:   d.Currency.String(),
			Balance:    d.Balance,
			LogSum:     d.LogSum,
			Difference: d.Difference,
		}
	}
	return ReconcileResponse{
		Consistent: r.Consistent(),
		Balances:   ToBalanceResponses(r.Balances),
		Drifts:     drifts,
		CheckedAt:  r.CheckedAt,
	}
}
