package procurement

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/procurement/backend/internal/domain/payment"
	"github.com/procurement/backend/internal/domain/shared"
	"github.com/procurement/backend/internal/domain/shared/valueobject"
	"github.com/shopspring/decimal"
)

// OrderStatus represents the approval status of an order
type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "PENDING"
	OrderStatusValidated OrderStatus = "VALIDATED"
	OrderStatusRejected  OrderStatus = "REJECTED"
)

// IsValid checks if the status is a valid OrderStatus
func (s OrderStatus) IsValid() bool {
	switch s {
	case OrderStatusPending, OrderStatusValidated, OrderStatusRejected:
		return true
	}
	return false
}

// String returns the string representation of OrderStatus
func (s OrderStatus) String() string {
	return string(s)
}

// CanTransitionTo reports whether the approval graph allows moving to target
func (s OrderStatus) CanTransitionTo(target OrderStatus) bool {
	return s == OrderStatusPending && (target == OrderStatusValidated || target == OrderStatusRejected)
}

// Order is a request for goods carrying line items, proformas and payments
type Order struct {
	shared.BaseAggregateRoot
	Number          string         `json:"number"`
	RequesterID     uuid.UUID      `json:"requester_id"`
	Team            string         `json:"team"`
	RequestedDate   time.Time      `json:"requested_date"`
	LineItems       LineItems      `json:"line_items"`
	Proformas       Proformas      `json:"proformas"`
	Ledger          payment.Ledger `json:"ledger"`
	Status          OrderStatus    `json:"status"`
	Authorized      bool           `json:"authorized"`
	AuthorizedBy    *uuid.UUID     `json:"authorized_by,omitempty"`
	AuthorizedAt    *time.Time     `json:"authorized_at,omitempty"`
	ValidatedBy     *uuid.UUID     `json:"validated_by,omitempty"`
	ValidatedAt     *time.Time     `json:"validated_at,omitempty"`
	RejectedBy      *uuid.UUID     `json:"rejected_by,omitempty"`
	RejectedAt      *time.Time     `json:"rejected_at,omitempty"`
	RejectionReason string         `json:"rejection_reason,omitempty"`
	Lifecycle       Lifecycle      `json:"lifecycle"`
}

// NewOrder creates a pending order. The number comes from the sequence generator.
func NewOrder(number string, requesterID uuid.UUID, team string, requestedDate time.Time, items []LineItem) (*Order, error) {
	team = strings.TrimSpace(team)
	if number == "" {
		return nil, shared.NewDomainError("INVALID_INPUT", "Order number cannot be empty")
	}
	if requesterID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_INPUT", "Requester ID cannot be empty")
	}
	if team == "" {
		return nil, shared.NewDomainError("INVALID_INPUT", "Team is required")
	}
	if len(team) > 100 {
		return nil, shared.NewDomainError("INVALID_INPUT", "Team cannot exceed 100 characters")
	}
	if requestedDate.IsZero() {
		return nil, shared.NewDomainError("INVALID_INPUT", "Requested date is required")
	}
	if len(items) == 0 {
		return nil, shared.NewDomainError("INVALID_INPUT", "An order needs at least one line item")
	}

	o := &Order{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		Number:            number,
		RequesterID:       requesterID,
		Team:              team,
		RequestedDate:     requestedDate,
		LineItems:         append(LineItems{}, items...),
		Proformas:         Proformas{},
		Ledger:            payment.NewLedger(""),
		Status:            OrderStatusPending,
		Lifecycle:         Active(),
	}
	o.recordChange("created", "", o.Status.String(), requesterID)
	return o, nil
}

// ValidatedProforma returns the validated proforma, if any
func (o *Order) ValidatedProforma() (*Proforma, bool) {
	idx := o.Proformas.ValidatedIndex()
	if idx < 0 {
		return nil, false
	}
	return &o.Proformas[idx], true
}

// DueAmount is the validated proforma amount, or zero if none is validated
func (o *Order) DueAmount() decimal.Decimal {
	if p, ok := o.ValidatedProforma(); ok {
		return p.Amount
	}
	return decimal.Zero
}

// Currency returns the ledger currency, falling back to the default
func (o *Order) Currency() valueobject.Currency {
	if o.Ledger.Currency != "" {
		return o.Ledger.Currency
	}
	return valueobject.DefaultCurrency
}

// PaymentSummary returns paid/remaining/status derived from the payments
func (o *Order) PaymentSummary() payment.Summary {
	s := o.Ledger.Summary(o.DueAmount())
	s.Currency = o.Currency()
	return s
}

// PaymentComplete returns true once the due amount is covered
func (o *Order) PaymentComplete() bool {
	return o.Ledger.HasPayments() && o.Ledger.Status == payment.StatusPaid
}

// Authorize sets the admin authorization gate required before validation
func (o *Order) Authorize(actor shared.Actor) error {
	if err := o.Lifecycle.EnsureActive(); err != nil {
		return err
	}
	if err := actor.RequireAdmin("authorize orders"); err != nil {
		return err
	}
	if o.Status != OrderStatusPending {
		return o.invalidTransition("authorize")
	}
	if o.Authorized {
		return shared.NewDomainError("INVALID_STATE_TRANSITION", "order "+o.Number+" is already authorized")
	}

	now := time.Now()
	o.Authorized = true
	o.AuthorizedBy = &actor.ID
	o.AuthorizedAt = &now
	o.touch()
	o.recordChange("authorized", o.Status.String(), o.Status.String(), actor.ID)
	return nil
}

// Validate moves a pending, authorized order to Validated
func (o *Order) Validate(actor shared.Actor) error {
	if err := o.Lifecycle.EnsureActive(); err != nil {
		return err
	}
	if !o.Status.CanTransitionTo(OrderStatusValidated) {
		return o.invalidTransition("validate")
	}
	if !o.Authorized {
		return shared.NewDomainError("NOT_AUTHORIZED", "order "+o.Number+" has not been authorized by an admin")
	}

	now := time.Now()
	previous := o.Status
	o.Status = OrderStatusValidated
	o.ValidatedBy = &actor.ID
	o.ValidatedAt = &now
	o.touch()
	o.recordChange("validated", previous.String(), o.Status.String(), actor.ID)
	return nil
}

// Reject moves a pending order to Rejected. Rejection is terminal.
func (o *Order) Reject(actor shared.Actor, reason string) error {
	if err := o.Lifecycle.EnsureActive(); err != nil {
		return err
	}
	if !o.Status.CanTransitionTo(OrderStatusRejected) {
		return o.invalidTransition("reject")
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return shared.NewDomainError("INVALID_INPUT", "Rejection reason is required")
	}

	now := time.Now()
	previous := o.Status
	o.Status = OrderStatusRejected
	o.RejectedBy = &actor.ID
	o.RejectedAt = &now
	o.RejectionReason = reason
	o.touch()
	o.recordChange("rejected", previous.String(), o.Status.String(), actor.ID)
	return nil
}

// Delete soft-deletes the order and freezes its proformas and payments
func (o *Order) Delete(actor shared.Actor, reason string) error {
	if err := o.Lifecycle.delete(actor, strings.TrimSpace(reason)); err != nil {
		return err
	}
	for i := range o.Proformas {
		o.Proformas[i].Frozen = true
	}
	o.Ledger.Freeze()
	o.touch()
	o.recordChange("deleted", o.Status.String(), stateDeleted, actor.ID)
	return nil
}

// ApplyPayment appends a payment and recomputes paid, remaining and status
func (o *Order) ApplyPayment(p *payment.Payment) (payment.Summary, error) {
	if err := o.ensureMutable(); err != nil {
		return payment.Summary{}, err
	}
	previous := o.Ledger.Status
	summary, err := o.Ledger.Apply(o.DueAmount(), p)
	if err != nil {
		return payment.Summary{}, err
	}
	o.touch()
	o.recordChange("payment_applied", previous.String(), summary.Status.String(), p.SubmittedBy)
	return summary, nil
}

// CorrectPayment amends or voids an applied payment. Admin only.
func (o *Order) CorrectPayment(paymentID uuid.UUID, amount decimal.Decimal, void bool, reason string, actor shared.Actor) (payment.Adjustment, payment.Summary, error) {
	if err := o.Lifecycle.EnsureActive(); err != nil {
		return payment.Adjustment{}, payment.Summary{}, err
	}
	if err := actor.RequireAdmin("correct payments"); err != nil {
		return payment.Adjustment{}, payment.Summary{}, err
	}
	previous := o.Ledger.Status
	adj, summary, err := o.Ledger.Correct(o.DueAmount(), paymentID, amount, void, reason, actor.ID)
	if err != nil {
		return payment.Adjustment{}, payment.Summary{}, err
	}
	o.touch()
	o.recordChange("payment_corrected", previous.String(), summary.Status.String(), actor.ID)
	return adj, summary, nil
}

// ensureMutable rejects changes to deleted or rejected orders
func (o *Order) ensureMutable() error {
	if err := o.Lifecycle.EnsureActive(); err != nil {
		return err
	}
	if o.Status == OrderStatusRejected {
		return shared.NewDomainError("INVALID_STATE_TRANSITION", "order "+o.Number+" is rejected")
	}
	return nil
}

func (o *Order) invalidTransition(action string) error {
	return shared.NewDomainError("INVALID_STATE_TRANSITION",
		fmt.Sprintf("cannot %s order %s in %s status", action, o.Number, o.Status))
}

func (o *Order) touch() {
	o.UpdatedAt = time.Now()
	o.IncrementVersion()
}

func (o *Order) recordChange(action, previous, next string, actorID uuid.UUID) {
	o.AddDomainEvent(shared.NewEntityStateChangedEvent(AggregateTypeOrder, o.ID, o.Number, action, previous, next, actorID))
}
