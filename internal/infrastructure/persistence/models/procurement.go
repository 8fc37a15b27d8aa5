package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/procurement/backend/internal/domain/payment"
	"github.com/procurement/backend/internal/domain/procurement"
	"github.com/procurement/backend/internal/domain/shared/valueobject"
)

// LedgerColumns holds the materialised payment ledger of an order or payment request
type LedgerColumns struct {
	Currency        valueobject.Currency `gorm:"type:varchar(3)"`
	Payments        payment.Payments     `gorm:"type:jsonb;not null"`
	PaidAmount      Amount               `gorm:"not null"`
	RemainingAmount Amount               `gorm:"not null"`
	PaymentStatus   payment.Status       `gorm:"type:varchar(20);not null;default:'UNPAID';index"`
}

func (c LedgerColumns) toDomain() payment.Ledger {
	payments := c.Payments
	if payments == nil {
		payments = payment.Payments{}
	}
	return payment.Ledger{
		Currency:  c.Currency,
		Payments:  payments,
		Paid:      c.PaidAmount.Decimal,
		Remaining: c.RemainingAmount.Decimal,
		Status:    c.PaymentStatus,
	}
}

func ledgerColumnsFromDomain(l payment.Ledger) LedgerColumns {
	return LedgerColumns{
		Currency:        l.Currency,
		Payments:        l.Payments,
		PaidAmount:      NewAmount(l.Paid),
		RemainingAmount: NewAmount(l.Remaining),
		PaymentStatus:   l.Status,
	}
}

// DeletionColumns holds the soft-delete audit trail
type DeletionColumns struct {
	DeletedAt     *time.Time `gorm:"index"`
	DeletedBy     *uuid.UUID `gorm:"type:uuid"`
	DeletedReason string     `gorm:"type:varchar(500)"`
}

func (c DeletionColumns) toDomain() procurement.Lifecycle {
	if c.DeletedAt == nil {
		return procurement.Active()
	}
	d := &procurement.Deletion{Reason: c.DeletedReason, At: *c.DeletedAt}
	if c.DeletedBy != nil {
		d.ActorID = *c.DeletedBy
	}
	return procurement.Lifecycle{Deleted: d}
}

func deletionColumnsFromDomain(l procurement.Lifecycle) DeletionColumns {
	if l.Deleted == nil {
		return DeletionColumns{}
	}
	at := l.Deleted.At
	by := l.Deleted.ActorID
	return DeletionColumns{DeletedAt: &at, DeletedBy: &by, DeletedReason: l.Deleted.Reason}
}

// OrderModel is the persistence model for the Order aggregate root.
type OrderModel struct {
	AggregateModel
	Number          string                  `gorm:"type:varchar(30);not null;uniqueIndex"`
	RequesterID     uuid.UUID               `gorm:"type:uuid;not null;index"`
	Team            string                  `gorm:"type:varchar(100);not null;index"`
	RequestedDate   time.Time               `gorm:"not null"`
	LineItems       procurement.LineItems   `gorm:"type:jsonb;not null"`
	Proformas       procurement.Proformas   `gorm:"type:jsonb;not null"`
	Status          procurement.OrderStatus `gorm:"type:varchar(20);not null;default:'PENDING';index"`
	Authorized      bool                    `gorm:"not null;default:false"`
	AuthorizedBy    *uuid.UUID              `gorm:"type:uuid"`
	AuthorizedAt    *time.Time
	ValidatedBy     *uuid.UUID `gorm:"type:uuid"`
	ValidatedAt     *time.Time
	RejectedBy      *uuid.UUID `gorm:"type:uuid"`
	RejectedAt      *time.Time
	RejectionReason string `gorm:"type:varchar(500)"`
	LedgerColumns   `gorm:"embedded"`
	DeletionColumns `gorm:"embedded"`
}

// TableName returns the table name for GORM
func (OrderModel) TableName() string {
	return "orders"
}

// ToDomain converts the persistence model to a domain Order
func (m *OrderModel) ToDomain() *procurement.Order {
	o := &procurement.Order{
		Number:          m.Number,
		RequesterID:     m.RequesterID,
		Team:            m.Team,
		RequestedDate:   m.RequestedDate,
		LineItems:       m.LineItems,
		Proformas:       m.Proformas,
		Ledger:          m.LedgerColumns.toDomain(),
		Status:          m.Status,
		Authorized:      m.Authorized,
		AuthorizedBy:    m.AuthorizedBy,
		AuthorizedAt:    m.AuthorizedAt,
		ValidatedBy:     m.ValidatedBy,
		ValidatedAt:     m.ValidatedAt,
		RejectedBy:      m.RejectedBy,
		RejectedAt:      m.RejectedAt,
		RejectionReason: m.RejectionReason,
		Lifecycle:       m.DeletionColumns.toDomain(),
	}
	m.PopulateAggregateRoot(&o.BaseAggregateRoot)
	if o.Proformas == nil {
		o.Proformas = procurement.Proformas{}
	}
	return o
}

// FromDomain populates the persistence model from a domain Order
func (m *OrderModel) FromDomain(o *procurement.Order) {
	m.FromDomainAggregateRoot(o.BaseAggregateRoot)
	m.Number = o.Number
	m.RequesterID = o.RequesterID
	m.Team = o.Team
	m.RequestedDate = o.RequestedDate
	m.LineItems = o.LineItems
	m.Proformas = o.Proformas
	m.Status = o.Status
	m.Authorized = o.Authorized
	m.AuthorizedBy = o.AuthorizedBy
	m.AuthorizedAt = o.AuthorizedAt
	m.ValidatedBy = o.ValidatedBy
	m.ValidatedAt = o.ValidatedAt
	m.RejectedBy = o.RejectedBy
	m.RejectedAt = o.RejectedAt
	m.RejectionReason = o.RejectionReason
	m.LedgerColumns = ledgerColumnsFromDomain(o.Ledger)
	m.DeletionColumns = deletionColumnsFromDomain(o.Lifecycle)
}

// OrderModelFromDomain creates a new persistence model from a domain Order
func OrderModelFromDomain(o *procurement.Order) *OrderModel {
	m := &OrderModel{}
	m.FromDomain(o)
	return m
}

// PaymentRequestModel is the persistence model for the PaymentRequest aggregate root.
type PaymentRequestModel struct {
	AggregateModel
	Number          string                           `gorm:"type:varchar(30);not null;uniqueIndex"`
	RequesterID     uuid.UUID                        `gorm:"type:uuid;not null;index"`
	Amount          Amount                           `gorm:"not null"`
	Reason          string                           `gorm:"type:text;not null"`
	RequestedDate   time.Time                        `gorm:"not null"`
	OrderReference  string                           `gorm:"type:varchar(30);index"`
	Documents       procurement.Documents            `gorm:"type:jsonb;not null"`
	Status          procurement.PaymentRequestStatus `gorm:"type:varchar(20);not null;default:'PENDING';index"`
	Authorized      bool                             `gorm:"not null;default:false"`
	AuthorizedBy    *uuid.UUID                       `gorm:"type:uuid"`
	AuthorizedAt    *time.Time
	ValidatedBy     *uuid.UUID `gorm:"type:uuid"`
	ValidatedAt     *time.Time
	RejectionReason string     `gorm:"type:varchar(500)"`
	CancelReason    string     `gorm:"type:varchar(500)"`
	ClosedBy        *uuid.UUID `gorm:"type:uuid"`
	ClosedAt        *time.Time
	LedgerColumns   `gorm:"embedded"`
	DeletionColumns `gorm:"embedded"`
}

// TableName returns the table name for GORM
func (PaymentRequestModel) TableName() string {
	return "payment_requests"
}

// ToDomain converts the persistence model to a domain PaymentRequest
func (m *PaymentRequestModel) ToDomain() *procurement.PaymentRequest {
	pr := &procurement.PaymentRequest{
		Number:          m.Number,
		RequesterID:     m.RequesterID,
		Amount:          m.Amount.Decimal,
		Currency:        m.Currency,
		Reason:          m.Reason,
		RequestedDate:   m.RequestedDate,
		OrderReference:  m.OrderReference,
		Documents:       m.Documents,
		Status:          m.Status,
		Authorized:      m.Authorized,
		AuthorizedBy:    m.AuthorizedBy,
		AuthorizedAt:    m.AuthorizedAt,
		ValidatedBy:     m.ValidatedBy,
		ValidatedAt:     m.ValidatedAt,
		RejectionReason: m.RejectionReason,
		CancelReason:    m.CancelReason,
		ClosedBy:        m.ClosedBy,
		ClosedAt:        m.ClosedAt,
		Ledger:          m.LedgerColumns.toDomain(),
		Lifecycle:       m.DeletionColumns.toDomain(),
	}
	m.PopulateAggregateRoot(&pr.BaseAggregateRoot)
	return pr
}

// FromDomain populates the persistence model from a domain PaymentRequest
func (m *PaymentRequestModel) FromDomain(pr *procurement.PaymentRequest) {
	m.FromDomainAggregateRoot(pr.BaseAggregateRoot)
	m.Number = pr.Number
	m.RequesterID = pr.RequesterID
	m.Amount = NewAmount(pr.Amount)
	m.Reason = pr.Reason
	m.RequestedDate = pr.RequestedDate
	m.OrderReference = pr.OrderReference
	m.Documents = pr.Documents
	m.Status = pr.Status
	m.Authorized = pr.Authorized
	m.AuthorizedBy = pr.AuthorizedBy
	m.AuthorizedAt = pr.AuthorizedAt
	m.ValidatedBy = pr.ValidatedBy
	m.ValidatedAt = pr.ValidatedAt
	m.RejectionReason = pr.RejectionReason
	m.CancelReason = pr.CancelReason
	m.ClosedBy = pr.ClosedBy
	m.ClosedAt = pr.ClosedAt
	m.LedgerColumns = ledgerColumnsFromDomain(pr.Ledger)
	// the request currency is fixed at creation and doubles as ledger currency
	m.Currency = pr.Currency
	m.DeletionColumns = deletionColumnsFromDomain(pr.Lifecycle)
}

// PaymentRequestModelFromDomain creates a new persistence model from a domain PaymentRequest
func PaymentRequestModelFromDomain(pr *procurement.PaymentRequest) *PaymentRequestModel {
	m := &PaymentRequestModel{}
	m.FromDomain(pr)
	return m
}
