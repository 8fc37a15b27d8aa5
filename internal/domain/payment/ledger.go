package payment

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/procurement/backend/internal/domain/shared"
	"github.com/procurement/backend/internal/domain/shared/valueobject"
	"github.com/shopspring/decimal"
)

// Summary is the derived state of a ledger against a due amount
type Summary struct {
	Currency  valueobject.Currency `json:"currency"`
	Due       decimal.Decimal      `json:"due"`
	Paid      decimal.Decimal      `json:"paid"`
	Remaining decimal.Decimal      `json:"remaining"`
	Status    Status               `json:"status"`
	Overpaid  bool                 `json:"overpaid"`
}

// DeriveStatus maps due and paid totals to a status: Paid when nothing is due
// or the due amount is covered, Partial when something but not all is paid.
func DeriveStatus(due, paid decimal.Decimal) Status {
	switch {
	case due.IsZero() || paid.GreaterThanOrEqual(due):
		return StatusPaid
	case paid.IsPositive():
		return StatusPartial
	default:
		return StatusUnpaid
	}
}

// Derive re-sums every payment and computes the remaining amount. Remaining may
// be negative when the entity is overpaid; it is flagged, never clamped.
func Derive(currency valueobject.Currency, due decimal.Decimal, payments []Payment) Summary {
	paid := decimal.Zero
	for _, p := range payments {
		paid = paid.Add(p.Amount)
	}
	remaining := due.Sub(paid)
	return Summary{
		Currency:  currency,
		Due:       due,
		Paid:      paid,
		Remaining: remaining,
		Status:    DeriveStatus(due, paid),
		Overpaid:  remaining.IsNegative(),
	}
}

// Adjustment describes the ledger effect of a correction. Delta is the change
// in paid amount (new minus previous).
type Adjustment struct {
	Payment Payment
	Delta   decimal.Decimal
}

// Ledger is the payment list of an order or payment request together with its
// materialised totals. Totals are always recomputed from the full list.
type Ledger struct {
	Currency  valueobject.Currency `json:"currency"`
	Payments  Payments             `json:"payments"`
	Paid      decimal.Decimal      `json:"paid"`
	Remaining decimal.Decimal      `json:"remaining"`
	Status    Status               `json:"status"`
}

// NewLedger creates an empty ledger. The currency may be empty until the first
// payment or due amount fixes it.
func NewLedger(currency valueobject.Currency) Ledger {
	return Ledger{
		Currency:  currency,
		Payments:  Payments{},
		Paid:      decimal.Zero,
		Remaining: decimal.Zero,
		Status:    StatusUnpaid,
	}
}

// HasPayments returns true if at least one payment was applied
func (l *Ledger) HasPayments() bool {
	return len(l.Payments) > 0
}

// FixCurrency sets the ledger currency, failing if payments already use another
func (l *Ledger) FixCurrency(currency valueobject.Currency) error {
	if l.Currency == currency {
		return nil
	}
	if l.HasPayments() {
		return shared.NewDomainError("CURRENCY_MISMATCH",
			fmt.Sprintf("payments are recorded in %s, cannot switch to %s", l.Currency, currency))
	}
	l.Currency = currency
	return nil
}

// Apply appends a payment and recomputes the totals against due
func (l *Ledger) Apply(due decimal.Decimal, p *Payment) (Summary, error) {
	if p == nil {
		return Summary{}, shared.NewDomainError("INVALID_INPUT", "payment cannot be nil")
	}
	if l.Currency == "" {
		l.Currency = p.Currency
	}
	if p.Currency != l.Currency {
		return Summary{}, shared.NewDomainError("CURRENCY_MISMATCH",
			fmt.Sprintf("payment in %s cannot be applied to a ledger in %s", p.Currency, l.Currency))
	}

	l.Payments = append(l.Payments, *p)
	summary := l.Recompute(due)
	l.Payments[len(l.Payments)-1].StatusAfter = summary.Status
	p.StatusAfter = summary.Status
	return summary, nil
}

// Recompute derives paid, remaining and status from the full payment list
func (l *Ledger) Recompute(due decimal.Decimal) Summary {
	summary := Derive(l.Currency, due, l.Payments)
	l.Paid = summary.Paid
	l.Remaining = summary.Remaining
	l.Status = summary.Status
	return summary
}

// Summary returns the current derived state for due
func (l *Ledger) Summary(due decimal.Decimal) Summary {
	return Derive(l.Currency, due, l.Payments)
}

// Find returns the index of the payment with id
func (l *Ledger) Find(id uuid.UUID) (int, bool) {
	for i := range l.Payments {
		if l.Payments[i].ID == id {
			return i, true
		}
	}
	return -1, false
}

// Correct amends the amount of an applied payment (or voids it, which sets the
// amount to zero) and recomputes the totals. The record stays in the list with
// its correction history.
func (l *Ledger) Correct(due decimal.Decimal, paymentID uuid.UUID, newAmount decimal.Decimal, void bool, reason string, by uuid.UUID) (Adjustment, Summary, error) {
	idx, ok := l.Find(paymentID)
	if !ok {
		return Adjustment{}, Summary{}, shared.NewDomainError("NOT_FOUND", "payment not found: "+paymentID.String())
	}
	p := &l.Payments[idx]
	if p.Frozen {
		return Adjustment{}, Summary{}, shared.NewDomainError("ENTITY_DELETED", "payment is frozen")
	}
	if p.IsVoided() {
		return Adjustment{}, Summary{}, shared.NewDomainError("INVALID_STATE_TRANSITION", "payment was already voided")
	}
	if reason == "" {
		return Adjustment{}, Summary{}, shared.NewDomainError("INVALID_INPUT", "a correction requires a reason")
	}
	if void {
		newAmount = decimal.Zero
	} else if !newAmount.IsPositive() {
		return Adjustment{}, Summary{}, shared.ErrInvalidAmount
	} else if newAmount.Equal(p.Amount) {
		return Adjustment{}, Summary{}, shared.NewDomainError("INVALID_AMOUNT", "corrected amount equals the current amount")
	} else if err := shared.CheckAmountScale(newAmount, p.Currency); err != nil {
		return Adjustment{}, Summary{}, err
	}

	previous := p.Amount
	p.Corrections = append(p.Corrections, Correction{
		PreviousAmount: previous,
		Voided:         void,
		Reason:         reason,
		CorrectedBy:    by,
		CorrectedAt:    time.Now(),
	})
	p.Amount = newAmount

	summary := l.Recompute(due)
	return Adjustment{Payment: *p, Delta: newAmount.Sub(previous)}, summary, nil
}

// Freeze marks every payment as historical; frozen payments cannot be corrected
func (l *Ledger) Freeze() {
	for i := range l.Payments {
		l.Payments[i].Frozen = true
	}
}
