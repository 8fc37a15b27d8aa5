package procurement

import (
	"time"

	"github.com/google/uuid"
	"github.com/procurement/backend/internal/domain/payment"
	"github.com/procurement/backend/internal/domain/procurement"
	"github.com/shopspring/decimal"
)

// ============================================================================
// Requests
// ============================================================================

// LineItemInput is one ordered good
type LineItemInput struct {
	Quantity    decimal.Decimal `json:"quantity" binding:"required"`
	Unit        string          `json:"unit" binding:"required,max=20"`
	Description string          `json:"description" binding:"required,max=500"`
}

// CreateOrderRequest represents a request to create an order
type CreateOrderRequest struct {
	RequesterID   uuid.UUID       `json:"requester_id" binding:"required"`
	Team          string          `json:"team" binding:"required,max=100"`
	RequestedDate time.Time       `json:"requested_date"`
	LineItems     []LineItemInput `json:"line_items" binding:"required,min=1,dive"`
}

// AttachProformaRequest represents a supplier quote to attach to an order
type AttachProformaRequest struct {
	Name      string          `json:"name" binding:"required,max=200"`
	Amount    decimal.Decimal `json:"amount" binding:"required"`
	Currency  string          `json:"currency" binding:"required,len=3"`
	Supplier  string          `json:"supplier" binding:"required,max=200"`
	URLs      []string        `json:"urls"`
	Documents []string        `json:"documents"`
}

// ValidateProformaRequest selects the proforma to validate
type ValidateProformaRequest struct {
	Index   int    `json:"index" binding:"min=0"`
	Comment string `json:"comment" binding:"max=500"`
}

// ReasonRequest carries the reason of a reject, delete or cancel
type ReasonRequest struct {
	Reason string `json:"reason" binding:"max=500"`
}

// SubmitPaymentRequest represents a payment applied to an order or payment request
type SubmitPaymentRequest struct {
	Mode      string          `json:"mode" binding:"required"`
	Amount    decimal.Decimal `json:"amount" binding:"required"`
	Currency  string          `json:"currency" binding:"required,len=3"`
	Title     string          `json:"title" binding:"max=200"`
	ProofRefs []string        `json:"proof_refs"`
	Details   payment.Details `json:"details"`
}

// CorrectPaymentRequest amends or voids an applied payment
type CorrectPaymentRequest struct {
	Amount decimal.Decimal `json:"amount"`
	Void   bool            `json:"void"`
	Reason string          `json:"reason" binding:"required,max=500"`
}

// CreatePaymentRequestRequest represents a request to create a payment request
type CreatePaymentRequestRequest struct {
	RequesterID    uuid.UUID       `json:"requester_id" binding:"required"`
	Amount         decimal.Decimal `json:"amount" binding:"required"`
	Currency       string          `json:"currency" binding:"omitempty,len=3"`
	Reason         string          `json:"reason" binding:"required,max=500"`
	RequestedDate  time.Time       `json:"requested_date"`
	OrderReference string          `json:"order_reference" binding:"max=50"`
	Documents      []string        `json:"documents"`
}

// OrderListFilter narrows order listings
type OrderListFilter struct {
	Status         string     `form:"status"`
	RequesterID    *uuid.UUID `form:"requester_id"`
	Team           string     `form:"team"`
	Search         string     `form:"search"`
	IncludeDeleted bool       `form:"include_deleted"`
	Page           int        `form:"page"`
	PageSize       int        `form:"page_size"`
}

// PaymentRequestListFilter narrows payment request listings
type PaymentRequestListFilter struct {
	Status         string     `form:"status"`
	RequesterID    *uuid.UUID `form:"requester_id"`
	OrderReference string     `form:"order_reference"`
	Search         string     `form:"search"`
	IncludeDeleted bool       `form:"include_deleted"`
	Page           int        `form:"page"`
	PageSize       int        `form:"page_size"`
}

// ============================================================================
// Responses
// ============================================================================

// SummaryResponse is the derived payment state of an entity
type SummaryResponse struct {
	Currency  string          `json:"currency"`
	Due       decimal.Decimal `json:"due"`
	Paid      decimal.Decimal `json:"paid"`
	Remaining decimal.Decimal `json:"remaining"`
	Status    string          `json:"status"`
	Overpaid  bool            `json:"overpaid"`
}

// ToSummaryResponse converts a payment summary
func ToSummaryResponse(s payment.Summary) SummaryResponse {
	return SummaryResponse{
		Currency:  s.Currency.String(),
		Due:       s.Due,
		Paid:      s.Paid,
		Remaining: s.Remaining,
		Status:    s.Status.String(),
		Overpaid:  s.Overpaid,
	}
}

// PaymentResponse represents an applied payment
type PaymentResponse struct {
	ID          uuid.UUID            `json:"id"`
	Mode        string               `json:"mode"`
	Amount      decimal.Decimal      `json:"amount"`
	Currency    string               `json:"currency"`
	Title       string               `json:"title,omitempty"`
	Proofs      []payment.Proof      `json:"proofs"`
	Details     payment.Details      `json:"details"`
	SubmittedBy uuid.UUID            `json:"submitted_by"`
	SubmittedAt time.Time            `json:"submitted_at"`
	StatusAfter string               `json:"status_after"`
	Corrections []payment.Correction `json:"corrections,omitempty"`
	Voided      bool                 `json:"voided"`
	Frozen      bool                 `json:"frozen"`
}

// ToPaymentResponses converts the payment list of a ledger
func ToPaymentResponses(payments payment.Payments) []PaymentResponse {
	out := make([]PaymentResponse, len(payments))
	for i, p := range payments {
		out[i] = PaymentResponse{
			ID:          p.ID,
			Mode:        p.Mode.String(),
			Amount:      p.Amount,
			Currency:    p.Currency.String(),
			Title:       p.Title,
			Proofs:      p.Proofs,
			Details:     p.Details,
			SubmittedBy: p.SubmittedBy,
			SubmittedAt: p.SubmittedAt,
			StatusAfter: p.StatusAfter.String(),
			Corrections: p.Corrections,
			Voided:      p.IsVoided(),
			Frozen:      p.Frozen,
		}
	}
	return out
}

// DeletionResponse is the soft-delete audit of an entity
type DeletionResponse struct {
	Reason  string    `json:"reason"`
	ActorID uuid.UUID `json:"actor_id"`
	At      time.Time `json:"at"`
}

func toDeletionResponse(l procurement.Lifecycle) *DeletionResponse {
	if l.Deleted == nil {
		return nil
	}
	return &DeletionResponse{Reason: l.Deleted.Reason, ActorID: l.Deleted.ActorID, At: l.Deleted.At}
}

// ProformaResponse represents a supplier quote
type ProformaResponse struct {
	ID          uuid.UUID       `json:"id"`
	Name        string          `json:"name"`
	Amount      decimal.Decimal `json:"amount"`
	Currency    string          `json:"currency"`
	Supplier    string          `json:"supplier"`
	URLs        []string        `json:"urls"`
	Documents   []string        `json:"documents"`
	AttachedBy  uuid.UUID       `json:"attached_by"`
	AttachedAt  time.Time       `json:"attached_at"`
	Validated   bool            `json:"validated"`
	ValidatedBy *uuid.UUID      `json:"validated_by,omitempty"`
	ValidatedAt *time.Time      `json:"validated_at,omitempty"`
	Comment     string          `json:"comment,omitempty"`
	Frozen      bool            `json:"frozen"`
}

// LineItemResponse represents an ordered good
type LineItemResponse struct {
	Quantity    decimal.Decimal `json:"quantity"`
	Unit        string          `json:"unit"`
	Description string          `json:"description"`
}

// OrderResponse represents an order with its derived payment state
type OrderResponse struct {
	ID              uuid.UUID          `json:"id"`
	Number          string             `json:"number"`
	RequesterID     uuid.UUID          `json:"requester_id"`
	Team            string             `json:"team"`
	RequestedDate   time.Time          `json:"requested_date"`
	LineItems       []LineItemResponse `json:"line_items"`
	Proformas       []ProformaResponse `json:"proformas"`
	Payments        []PaymentResponse  `json:"payments"`
	Summary         SummaryResponse    `json:"summary"`
	PaymentComplete bool               `json:"payment_complete"`
	Status          string             `json:"status"`
	Authorized      bool               `json:"authorized"`
	AuthorizedBy    *uuid.UUID         `json:"authorized_by,omitempty"`
	ValidatedBy     *uuid.UUID         `json:"validated_by,omitempty"`
	ValidatedAt     *time.Time         `json:"validated_at,omitempty"`
	RejectionReason string             `json:"rejection_reason,omitempty"`
	Deleted         *DeletionResponse  `json:"deleted,omitempty"`
	Version         int                `json:"version"`
	CreatedAt       time.Time          `json:"created_at"`
	UpdatedAt       time.Time          `json:"updated_at"`
}

// ToOrderResponse converts a domain Order to OrderResponse
func ToOrderResponse(o *procurement.Order) OrderResponse {
	items := make([]LineItemResponse, len(o.LineItems))
	for i, item := range o.LineItems {
		items[i] = LineItemResponse{
			Quantity:    item.Quantity.Amount(),
			Unit:        item.Quantity.Unit(),
			Description: item.Description,
		}
	}
	proformas := make([]ProformaResponse, len(o.Proformas))
	for i, p := range o.Proformas {
		proformas[i] = ProformaResponse{
			ID:          p.ID,
			Name:        p.Name,
			Amount:      p.Amount,
			Currency:    p.Currency.String(),
			Supplier:    p.Supplier,
			URLs:        p.URLs,
			Documents:   p.Documents,
			AttachedBy:  p.AttachedBy,
			AttachedAt:  p.AttachedAt,
			Validated:   p.Validated,
			ValidatedBy: p.ValidatedBy,
			ValidatedAt: p.ValidatedAt,
			Comment:     p.Comment,
			Frozen:      p.Frozen,
		}
	}
	return OrderResponse{
		ID:              o.ID,
		Number:          o.Number,
		RequesterID:     o.RequesterID,
		Team:            o.Team,
		RequestedDate:   o.RequestedDate,
		LineItems:       items,
		Proformas:       proformas,
		Payments:        ToPaymentResponses(o.Ledger.Payments),
		Summary:         ToSummaryResponse(o.PaymentSummary()),
		PaymentComplete: o.PaymentComplete(),
		Status:          o.Status.String(),
		Authorized:      o.Authorized,
		AuthorizedBy:    o.AuthorizedBy,
		ValidatedBy:     o.ValidatedBy,
		ValidatedAt:     o.ValidatedAt,
		RejectionReason: o.RejectionReason,
		Deleted:         toDeletionResponse(o.Lifecycle),
		Version:         o.Version,
		CreatedAt:       o.CreatedAt,
		UpdatedAt:       o.UpdatedAt,
	}
}

// PaymentRequestResponse represents a payment request with its derived payment state
type PaymentRequestResponse struct {
	ID              uuid.UUID         `json:"id"`
	Number          string            `json:"number"`
	RequesterID     uuid.UUID         `json:"requester_id"`
	Amount          decimal.Decimal   `json:"amount"`
	Currency        string            `json:"currency"`
	Reason          string            `json:"reason"`
	RequestedDate   time.Time         `json:"requested_date"`
	OrderReference  string            `json:"order_reference,omitempty"`
	Documents       []string          `json:"documents"`
	Status          string            `json:"status"`
	Authorized      bool              `json:"authorized"`
	AuthorizedBy    *uuid.UUID        `json:"authorized_by,omitempty"`
	ValidatedBy     *uuid.UUID        `json:"validated_by,omitempty"`
	ValidatedAt     *time.Time        `json:"validated_at,omitempty"`
	RejectionReason string            `json:"rejection_reason,omitempty"`
	CancelReason    string            `json:"cancel_reason,omitempty"`
	Payments        []PaymentResponse `json:"payments"`
	Summary         SummaryResponse   `json:"summary"`
	Deleted         *DeletionResponse `json:"deleted,omitempty"`
	Version         int               `json:"version"`
	CreatedAt       time.Time         `json:"created_at"`
	UpdatedAt       time.Time         `json:"updated_at"`
}

// ToPaymentRequestResponse converts a domain PaymentRequest to PaymentRequestResponse
func ToPaymentRequestResponse(pr *procurement.PaymentRequest) PaymentRequestResponse {
	return PaymentRequestResponse{
		ID:              pr.ID,
		Number:          pr.Number,
		RequesterID:     pr.RequesterID,
		Amount:          pr.Amount,
		Currency:        pr.Currency.String(),
		Reason:          pr.Reason,
		RequestedDate:   pr.RequestedDate,
		OrderReference:  pr.OrderReference,
		Documents:       pr.Documents,
		Status:          pr.Status.String(),
		Authorized:      pr.Authorized,
		AuthorizedBy:    pr.AuthorizedBy,
		ValidatedBy:     pr.ValidatedBy,
		ValidatedAt:     pr.ValidatedAt,
		RejectionReason: pr.RejectionReason,
		CancelReason:    pr.CancelReason,
		Payments:        ToPaymentResponses(pr.Ledger.Payments),
		Summary:         ToSummaryResponse(pr.PaymentSummary()),
		Deleted:         toDeletionResponse(pr.Lifecycle),
		Version:         pr.Version,
		CreatedAt:       pr.CreatedAt,
		UpdatedAt:       pr.UpdatedAt,
	}
}

// PaymentResult is returned by SubmitPayment and CorrectPayment
type PaymentResult struct {
	PaymentID       uuid.UUID       `json:"payment_id"`
	NewPaidAmount   decimal.Decimal `json:"new_paid_amount"`
	RemainingAmount decimal.Decimal `json:"remaining_amount"`
	Status          string          `json:"status"`
	Overpaid        bool            `json:"overpaid"`
	// CaisseTransactionID is set when the payment moved register cash
	CaisseTransactionID *uuid.UUID `json:"caisse_transaction_id,omitempty"`
}

func toPaymentResult(paymentID uuid.UUID, s payment.Summary, txID *uuid.UUID) PaymentResult {
	return PaymentResult{
		PaymentID:           paymentID,
		NewPaidAmount:       s.Paid,
		RemainingAmount:     s.Remaining,
		Status:              s.Status.String(),
		Overpaid:            s.Overpaid,
		CaisseTransactionID: txID,
	}
}
