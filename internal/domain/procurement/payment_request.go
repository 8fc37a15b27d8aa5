package procurement

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/procurement/backend/internal/domain/payment"
	"github.com/procurement/backend/internal/domain/shared"
	"github.com/procurement/backend/internal/domain/shared/valueobject"
	"github.com/shopspring/decimal"
)

// PaymentRequestStatus represents the status of a payment request
type PaymentRequestStatus string

const (
	PaymentRequestStatusPending       PaymentRequestStatus = "PENDING"
	PaymentRequestStatusValidated     PaymentRequestStatus = "VALIDATED"
	PaymentRequestStatusRejected      PaymentRequestStatus = "REJECTED"
	PaymentRequestStatusPartiallyPaid PaymentRequestStatus = "PARTIALLY_PAID"
	PaymentRequestStatusPaid          PaymentRequestStatus = "PAID"
	PaymentRequestStatusCancelled     PaymentRequestStatus = "CANCELLED"
)

// IsValid checks if the status is a valid PaymentRequestStatus
func (s PaymentRequestStatus) IsValid() bool {
	switch s {
	case PaymentRequestStatusPending, PaymentRequestStatusValidated, PaymentRequestStatusRejected,
		PaymentRequestStatusPartiallyPaid, PaymentRequestStatusPaid, PaymentRequestStatusCancelled:
		return true
	}
	return false
}

// String returns the string representation of PaymentRequestStatus
func (s PaymentRequestStatus) String() string {
	return string(s)
}

// IsTerminal returns true for statuses that admit no further transition
func (s PaymentRequestStatus) IsTerminal() bool {
	return s == PaymentRequestStatusRejected || s == PaymentRequestStatusCancelled
}

// CanApplyPayment returns true if payments can be applied in this status
func (s PaymentRequestStatus) CanApplyPayment() bool {
	return s == PaymentRequestStatusValidated || s == PaymentRequestStatusPartiallyPaid
}

// Documents is a list of supporting document references stored as JSON
type Documents []string

// Value implements driver.Valuer interface for GORM to store as JSONB
func (d Documents) Value() (driver.Value, error) {
	if d == nil {
		return "[]", nil
	}
	b, err := json.Marshal(d)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner interface for GORM to read from JSONB
func (d *Documents) Scan(value any) error {
	return scanJSON(value, d, "Documents")
}

// PaymentRequest is an order-independent request to pay a stated amount
type PaymentRequest struct {
	shared.BaseAggregateRoot
	Number          string               `json:"number"`
	RequesterID     uuid.UUID            `json:"requester_id"`
	Amount          decimal.Decimal      `json:"amount"`
	Currency        valueobject.Currency `json:"currency"`
	Reason          string               `json:"reason"`
	RequestedDate   time.Time            `json:"requested_date"`
	OrderReference  string               `json:"order_reference,omitempty"`
	Documents       Documents            `json:"documents"`
	Status          PaymentRequestStatus `json:"status"`
	Authorized      bool                 `json:"authorized"`
	AuthorizedBy    *uuid.UUID           `json:"authorized_by,omitempty"`
	AuthorizedAt    *time.Time           `json:"authorized_at,omitempty"`
	ValidatedBy     *uuid.UUID           `json:"validated_by,omitempty"`
	ValidatedAt     *time.Time           `json:"validated_at,omitempty"`
	RejectionReason string               `json:"rejection_reason,omitempty"`
	CancelReason    string               `json:"cancel_reason,omitempty"`
	ClosedBy        *uuid.UUID           `json:"closed_by,omitempty"`
	ClosedAt        *time.Time           `json:"closed_at,omitempty"`
	Ledger          payment.Ledger       `json:"ledger"`
	Lifecycle       Lifecycle            `json:"lifecycle"`
}

// NewPaymentRequest creates a pending payment request
func NewPaymentRequest(number string, requesterID uuid.UUID, amount valueobject.Money, reason string, requestedDate time.Time, orderReference string, documents []string) (*PaymentRequest, error) {
	reason = strings.TrimSpace(reason)
	if number == "" {
		return nil, shared.NewDomainError("INVALID_INPUT", "Payment request number cannot be empty")
	}
	if requesterID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_INPUT", "Requester ID cannot be empty")
	}
	if !amount.IsPositive() {
		return nil, shared.ErrInvalidAmount
	}
	if !amount.Currency().IsValid() {
		return nil, shared.NewDomainError("INVALID_INPUT", "unsupported currency: "+amount.Currency().String())
	}
	if err := shared.CheckAmountScale(amount.Amount(), amount.Currency()); err != nil {
		return nil, err
	}
	if reason == "" {
		return nil, shared.NewDomainError("INVALID_INPUT", "Reason is required")
	}
	if requestedDate.IsZero() {
		return nil, shared.NewDomainError("INVALID_INPUT", "Requested date is required")
	}

	pr := &PaymentRequest{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		Number:            number,
		RequesterID:       requesterID,
		Amount:            amount.Amount(),
		Currency:          amount.Currency(),
		Reason:            reason,
		RequestedDate:     requestedDate,
		OrderReference:    strings.TrimSpace(orderReference),
		Documents:         Documents(nonEmpty(documents)),
		Status:            PaymentRequestStatusPending,
		Ledger:            payment.NewLedger(amount.Currency()),
		Lifecycle:         Active(),
	}
	pr.recordChange("created", "", pr.Status.String(), requesterID)
	return pr, nil
}

// DueAmount is the stated amount of the request
func (pr *PaymentRequest) DueAmount() decimal.Decimal {
	return pr.Amount
}

// PaymentSummary returns paid/remaining/status derived from the payments
func (pr *PaymentRequest) PaymentSummary() payment.Summary {
	return pr.Ledger.Summary(pr.Amount)
}

// Authorize sets the admin authorization gate required before validation
func (pr *PaymentRequest) Authorize(actor shared.Actor) error {
	if err := pr.Lifecycle.EnsureActive(); err != nil {
		return err
	}
	if err := actor.RequireAdmin("authorize payment requests"); err != nil {
		return err
	}
	if pr.Status != PaymentRequestStatusPending {
		return pr.invalidTransition("authorize")
	}
	if pr.Authorized {
		return shared.NewDomainError("INVALID_STATE_TRANSITION", "payment request "+pr.Number+" is already authorized")
	}
	now := time.Now()
	pr.Authorized = true
	pr.AuthorizedBy = &actor.ID
	pr.AuthorizedAt = &now
	pr.touch()
	pr.recordChange("authorized", pr.Status.String(), pr.Status.String(), actor.ID)
	return nil
}

// Validate moves a pending, authorized request to Validated
func (pr *PaymentRequest) Validate(actor shared.Actor) error {
	if err := pr.Lifecycle.EnsureActive(); err != nil {
		return err
	}
	if pr.Status != PaymentRequestStatusPending {
		return pr.invalidTransition("validate")
	}
	if !pr.Authorized {
		return shared.NewDomainError("NOT_AUTHORIZED", "payment request "+pr.Number+" has not been authorized by an admin")
	}
	now := time.Now()
	pr.transition(PaymentRequestStatusValidated, "validated", actor.ID)
	pr.ValidatedBy = &actor.ID
	pr.ValidatedAt = &now
	return nil
}

// Reject moves a pending request to Rejected. Rejection is terminal.
func (pr *PaymentRequest) Reject(actor shared.Actor, reason string) error {
	if err := pr.Lifecycle.EnsureActive(); err != nil {
		return err
	}
	if pr.Status != PaymentRequestStatusPending {
		return pr.invalidTransition("reject")
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return shared.NewDomainError("INVALID_INPUT", "Rejection reason is required")
	}
	now := time.Now()
	pr.RejectionReason = reason
	pr.ClosedBy = &actor.ID
	pr.ClosedAt = &now
	pr.transition(PaymentRequestStatusRejected, "rejected", actor.ID)
	return nil
}

// Cancel withdraws a request that has not received any payment. Only the
// requester or an admin may cancel.
func (pr *PaymentRequest) Cancel(actor shared.Actor, reason string) error {
	if err := pr.Lifecycle.EnsureActive(); err != nil {
		return err
	}
	if actor.ID != pr.RequesterID && !actor.Admin {
		return shared.NewDomainError("FORBIDDEN", "only the requester or an admin can cancel a payment request")
	}
	if pr.Status != PaymentRequestStatusPending && pr.Status != PaymentRequestStatusValidated {
		return pr.invalidTransition("cancel")
	}
	if pr.Ledger.HasPayments() {
		return shared.NewDomainError("INVALID_STATE_TRANSITION", "payment request "+pr.Number+" already has payments")
	}
	now := time.Now()
	pr.CancelReason = strings.TrimSpace(reason)
	pr.ClosedBy = &actor.ID
	pr.ClosedAt = &now
	pr.transition(PaymentRequestStatusCancelled, "cancelled", actor.ID)
	return nil
}

// Delete soft-deletes the request and freezes its payments
func (pr *PaymentRequest) Delete(actor shared.Actor, reason string) error {
	if err := pr.Lifecycle.delete(actor, strings.TrimSpace(reason)); err != nil {
		return err
	}
	pr.Ledger.Freeze()
	pr.touch()
	pr.recordChange("deleted", pr.Status.String(), stateDeleted, actor.ID)
	return nil
}

// ApplyPayment appends a payment and moves the request to PartiallyPaid or Paid
func (pr *PaymentRequest) ApplyPayment(p *payment.Payment) (payment.Summary, error) {
	if err := pr.Lifecycle.EnsureActive(); err != nil {
		return payment.Summary{}, err
	}
	if !pr.Status.CanApplyPayment() {
		return payment.Summary{}, pr.invalidTransition("pay")
	}
	summary, err := pr.Ledger.Apply(pr.Amount, p)
	if err != nil {
		return payment.Summary{}, err
	}
	pr.transition(statusForPayments(summary), "payment_applied", p.SubmittedBy)
	return summary, nil
}

// CorrectPayment amends or voids an applied payment. Admin only.
func (pr *PaymentRequest) CorrectPayment(paymentID uuid.UUID, amount decimal.Decimal, void bool, reason string, actor shared.Actor) (payment.Adjustment, payment.Summary, error) {
	if err := pr.Lifecycle.EnsureActive(); err != nil {
		return payment.Adjustment{}, payment.Summary{}, err
	}
	if err := actor.RequireAdmin("correct payments"); err != nil {
		return payment.Adjustment{}, payment.Summary{}, err
	}
	adj, summary, err := pr.Ledger.Correct(pr.Amount, paymentID, amount, void, reason, actor.ID)
	if err != nil {
		return payment.Adjustment{}, payment.Summary{}, err
	}
	pr.transition(statusForPayments(summary), "payment_corrected", actor.ID)
	return adj, summary, nil
}

// statusForPayments maps the ledger state of a validated request to its status
func statusForPayments(s payment.Summary) PaymentRequestStatus {
	switch {
	case s.Paid.IsZero():
		return PaymentRequestStatusValidated
	case s.Status == payment.StatusPaid:
		return PaymentRequestStatusPaid
	default:
		return PaymentRequestStatusPartiallyPaid
	}
}

func (pr *PaymentRequest) transition(target PaymentRequestStatus, action string, actorID uuid.UUID) {
	previous := pr.Status
	pr.Status = target
	pr.touch()
	pr.recordChange(action, previous.String(), target.String(), actorID)
}

func (pr *PaymentRequest) invalidTransition(action string) error {
	return shared.NewDomainError("INVALID_STATE_TRANSITION",
		fmt.Sprintf("cannot %s payment request %s in %s status", action, pr.Number, pr.Status))
}

func (pr *PaymentRequest) touch() {
	pr.UpdatedAt = time.Now()
	pr.IncrementVersion()
}

func (pr *PaymentRequest) recordChange(action, previous, next string, actorID uuid.UUID) {
	pr.AddDomainEvent(shared.NewEntityStateChangedEvent(AggregateTypePaymentRequest, pr.ID, pr.Number, action, previous, next, actorID))
}
