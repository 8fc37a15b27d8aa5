package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/procurement/backend/internal/domain/caisse"
	"github.com/procurement/backend/internal/domain/shared/valueobject"
)

// CaisseBalanceModel holds the materialised balance of one currency.
// migrations/ adds a non-negative check constraint on PostgreSQL.
type CaisseBalanceModel struct {
	Currency  valueobject.Currency `gorm:"type:varchar(3);primaryKey"`
	Amount    Amount               `gorm:"not null"`
	UpdatedAt time.Time            `gorm:"not null"`
}

// TableName returns the table name for GORM
func (CaisseBalanceModel) TableName() string {
	return "caisse_balances"
}

// ToDomain converts the persistence model to a domain Balance
func (m *CaisseBalanceModel) ToDomain() caisse.Balance {
	return caisse.Balance{
		Currency:  m.Currency,
		Amount:    m.Amount.Decimal,
		UpdatedAt: m.UpdatedAt,
	}
}

// CaisseTransactionModel is an append-only row of the register log
type CaisseTransactionModel struct {
	ID            uuid.UUID              `gorm:"type:uuid;primaryKey"`
	Type          caisse.TransactionType `gorm:"type:varchar(30);not null;index"`
	Amount        Amount                 `gorm:"not null"`
	Currency      valueobject.Currency   `gorm:"type:varchar(3);not null;index:idx_caisse_tx_currency_created,priority:1"`
	BalanceAfter  Amount                 `gorm:"not null"`
	SourceType    caisse.SourceType      `gorm:"type:varchar(30);not null;index:idx_caisse_tx_source,priority:1"`
	SourceID      *uuid.UUID             `gorm:"type:uuid;index:idx_caisse_tx_source,priority:2"`
	Reference     string                 `gorm:"type:varchar(50)"`
	PaymentMethod string                 `gorm:"type:varchar(30)"`
	Remark        string                 `gorm:"type:varchar(500)"`
	OperatorID    uuid.UUID              `gorm:"type:uuid;not null"`
	CreatedAt     time.Time              `gorm:"not null;index:idx_caisse_tx_currency_created,priority:2"`
}

// TableName returns the table name for GORM
func (CaisseTransactionModel) TableName() string {
	return "caisse_transactions"
}

// ToDomain converts the persistence model to a domain Transaction
func (m *CaisseTransactionModel) ToDomain() *caisse.Transaction {
	return &caisse.Transaction{
		ID:            m.ID,
		Type:          m.Type,
		Amount:        m.Amount.Decimal,
		Currency:      m.Currency,
		BalanceAfter:  m.BalanceAfter.Decimal,
		SourceType:    m.SourceType,
		SourceID:      m.SourceID,
		Reference:     m.Reference,
		PaymentMethod: m.PaymentMethod,
		Remark:        m.Remark,
		OperatorID:    m.OperatorID,
		CreatedAt:     m.CreatedAt,
	}
}

// CaisseTransactionModelFromDomain creates a new persistence model from a domain Transaction
func CaisseTransactionModelFromDomain(t *caisse.Transaction) *CaisseTransactionModel {
	return &CaisseTransactionModel{
		ID:            t.ID,
		Type:          t.Type,
		Amount:        NewAmount(t.Amount),
		Currency:      t.Currency,
		BalanceAfter:  NewAmount(t.BalanceAfter),
		SourceType:    t.SourceType,
		SourceID:      t.SourceID,
		Reference:     t.Reference,
		PaymentMethod: t.PaymentMethod,
		Remark:        t.Remark,
		OperatorID:    t.OperatorID,
		CreatedAt:     t.CreatedAt,
	}
}

// FundingRequestModel is the persistence model for the FundingRequest aggregate root.
type FundingRequestModel struct {
	AggregateModel
	Number          string               `gorm:"type:varchar(30);not null;uniqueIndex"`
	RequesterID     uuid.UUID            `gorm:"type:uuid;not null;index"`
	Amount          Amount               `gorm:"not null"`
	CorrectedAmount *Amount
	Currency        valueobject.Currency `gorm:"type:varchar(3);not null"`
	Reason          string               `gorm:"type:text;not null"`
	RequestedDate   time.Time            `gorm:"not null"`
	Direction       caisse.Direction     `gorm:"type:varchar(10);not null;default:'deposit'"`
	Stage           caisse.Stage         `gorm:"type:varchar(20);not null;index"`
	Status          caisse.FundingStatus `gorm:"type:varchar(20);not null;index"`
	History         caisse.History       `gorm:"type:jsonb;not null"`
	Disbursement    caisse.Disbursement  `gorm:"type:jsonb"`
	Changed         bool                 `gorm:"not null;default:false"`
}

// TableName returns the table name for GORM
func (FundingRequestModel) TableName() string {
	return "funding_requests"
}

// ToDomain converts the persistence model to a domain FundingRequest
func (m *FundingRequestModel) ToDomain() *caisse.FundingRequest {
	fr := &caisse.FundingRequest{
		Number:          m.Number,
		RequesterID:     m.RequesterID,
		Amount:          m.Amount.Decimal,
		CorrectedAmount: m.CorrectedAmount.DecimalPtr(),
		Currency:        m.Currency,
		Reason:          m.Reason,
		RequestedDate:   m.RequestedDate,
		Direction:       m.Direction,
		Stage:           m.Stage,
		Status:          m.Status,
		History:         m.History,
		Changed:         m.Changed,
	}
	m.PopulateAggregateRoot(&fr.BaseAggregateRoot)
	if !m.Disbursement.IsZero() {
		d := m.Disbursement
		fr.Disbursement = &d
	}
	return fr
}

// FromDomain populates the persistence model from a domain FundingRequest
func (m *FundingRequestModel) FromDomain(fr *caisse.FundingRequest) {
	m.FromDomainAggregateRoot(fr.BaseAggregateRoot)
	m.Number = fr.Number
	m.RequesterID = fr.RequesterID
	m.Amount = NewAmount(fr.Amount)
	m.CorrectedAmount = NewAmountPtr(fr.CorrectedAmount)
	m.Currency = fr.Currency
	m.Reason = fr.Reason
	m.RequestedDate = fr.RequestedDate
	m.Direction = fr.Direction
	m.Stage = fr.Stage
	m.Status = fr.Status
	m.History = fr.History
	m.Changed = fr.Changed
	m.Disbursement = caisse.Disbursement{}
	if fr.Disbursement != nil {
		m.Disbursement = *fr.Disbursement
	}
}

// FundingRequestModelFromDomain creates a new persistence model from a domain FundingRequest
func FundingRequestModelFromDomain(fr *caisse.FundingRequest) *FundingRequestModel {
	m := &FundingRequestModel{}
	m.FromDomain(fr)
	return m
}
