// Package caisse models the cash register: per-currency balances, the
// append-only transaction log and the funding requests that feed it.
package caisse

import (
	"time"

	"github.com/google/uuid"
	"github.com/procurement/backend/internal/domain/shared"
	"github.com/procurement/backend/internal/domain/shared/valueobject"
	"github.com/shopspring/decimal"
)

// TransactionType represents the kind of balance movement
type TransactionType string

const (
	// TransactionTypeFundingIn is an approved deposit funding request
	TransactionTypeFundingIn TransactionType = "FUNDING_IN"
	// TransactionTypeFundingOut is an approved payout funding request
	TransactionTypeFundingOut TransactionType = "FUNDING_OUT"
	// TransactionTypePayment is a cash payment drawn from the register
	TransactionTypePayment TransactionType = "PAYMENT"
	// TransactionTypePaymentReversal returns cash after a payment correction
	TransactionTypePaymentReversal TransactionType = "PAYMENT_REVERSAL"
	// TransactionTypeAdjustment is a manual admin adjustment (either sign)
	TransactionTypeAdjustment TransactionType = "ADJUSTMENT"
)

// String returns the string representation of TransactionType
func (t TransactionType) String() string {
	return string(t)
}

// IsValid returns true if the transaction type is valid
func (t TransactionType) IsValid() bool {
	switch t {
	case TransactionTypeFundingIn,
		TransactionTypeFundingOut,
		TransactionTypePayment,
		TransactionTypePaymentReversal,
		TransactionTypeAdjustment:
		return true
	}
	return false
}

// allowsDelta reports whether the sign of delta fits the type
func (t TransactionType) allowsDelta(delta decimal.Decimal) bool {
	switch t {
	case TransactionTypeFundingIn, TransactionTypePaymentReversal:
		return delta.IsPositive()
	case TransactionTypeFundingOut, TransactionTypePayment:
		return delta.IsNegative()
	}
	return !delta.IsZero()
}

// SourceType identifies the document that caused a movement
type SourceType string

const (
	SourceTypeOrder          SourceType = "ORDER"
	SourceTypePaymentRequest SourceType = "PAYMENT_REQUEST"
	SourceTypeFundingRequest SourceType = "FUNDING_REQUEST"
	SourceTypeManual         SourceType = "MANUAL"
)

// String returns the string representation of SourceType
func (s SourceType) String() string {
	return string(s)
}

// IsValid returns true if the source type is valid
func (s SourceType) IsValid() bool {
	switch s {
	case SourceTypeOrder, SourceTypePaymentRequest, SourceTypeFundingRequest, SourceTypeManual:
		return true
	}
	return false
}

// Movement is a requested balance change. A ledger applies it atomically and
// records it as a Transaction.
type Movement struct {
	Currency      valueobject.Currency
	Delta         decimal.Decimal
	Type          TransactionType
	SourceType    SourceType
	SourceID      *uuid.UUID
	Reference     string
	PaymentMethod string
	Remark        string
	OperatorID    uuid.UUID
}

// NewMovement creates a movement of delta in currency
func NewMovement(currency valueobject.Currency, delta decimal.Decimal, txType TransactionType, sourceType SourceType, operatorID uuid.UUID) (*Movement, error) {
	m := &Movement{
		Currency:   currency,
		Delta:      delta,
		Type:       txType,
		SourceType: sourceType,
		OperatorID: operatorID,
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return m, nil
}

// Validate checks the movement before it reaches storage
func (m *Movement) Validate() error {
	if !m.Currency.IsValid() {
		return shared.NewDomainError("INVALID_INPUT", "unsupported currency: "+m.Currency.String())
	}
	if m.Delta.IsZero() {
		return shared.NewDomainError("INVALID_AMOUNT", "Balance adjustment cannot be zero")
	}
	if err := shared.CheckAmountScale(m.Delta, m.Currency); err != nil {
		return err
	}
	if !m.Type.IsValid() {
		return shared.NewDomainError("INVALID_INPUT", "Invalid transaction type")
	}
	if !m.Type.allowsDelta(m.Delta) {
		return shared.NewDomainError("INVALID_AMOUNT", "Amount sign does not match transaction type "+m.Type.String())
	}
	if !m.SourceType.IsValid() {
		return shared.NewDomainError("INVALID_INPUT", "Invalid source type")
	}
	if m.OperatorID == uuid.Nil {
		return shared.NewDomainError("INVALID_INPUT", "Operator cannot be empty")
	}
	return nil
}

// WithSource sets the source document of the movement
func (m *Movement) WithSource(id uuid.UUID, reference string) *Movement {
	m.SourceID = &id
	m.Reference = reference
	return m
}

// WithPaymentMethod sets the payment method of the movement
func (m *Movement) WithPaymentMethod(method string) *Movement {
	m.PaymentMethod = method
	return m
}

// WithRemark sets the remark of the movement
func (m *Movement) WithRemark(remark string) *Movement {
	m.Remark = remark
	return m
}

// Transaction is an immutable entry of the register log. Amount is signed.
type Transaction struct {
	ID            uuid.UUID            `json:"id"`
	Type          TransactionType      `json:"type"`
	Amount        decimal.Decimal      `json:"amount"`
	Currency      valueobject.Currency `json:"currency"`
	BalanceAfter  decimal.Decimal      `json:"balance_after"`
	SourceType    SourceType           `json:"source_type"`
	SourceID      *uuid.UUID           `json:"source_id,omitempty"`
	Reference     string               `json:"reference,omitempty"`
	PaymentMethod string               `json:"payment_method,omitempty"`
	Remark        string               `json:"remark,omitempty"`
	OperatorID    uuid.UUID            `json:"operator_id"`
	CreatedAt     time.Time            `json:"created_at"`
}

// NewTransaction records an applied movement with the resulting balance
func NewTransaction(m *Movement, balanceAfter decimal.Decimal) *Transaction {
	return &Transaction{
		ID:            uuid.New(),
		Type:          m.Type,
		Amount:        m.Delta,
		Currency:      m.Currency,
		BalanceAfter:  balanceAfter,
		SourceType:    m.SourceType,
		SourceID:      m.SourceID,
		Reference:     m.Reference,
		PaymentMethod: m.PaymentMethod,
		Remark:        m.Remark,
		OperatorID:    m.OperatorID,
		CreatedAt:     time.Now(),
	}
}

// IsIncrease returns true if the transaction raised the balance
func (t *Transaction) IsIncrease() bool {
	return t.Amount.IsPositive()
}
