package models

import (
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/schema"
)

// AmountColumnType is the column type of every money column on PostgreSQL
const AmountColumnType = "decimal(18,4)"

// Amount is a money column. PostgreSQL stores it as decimal(18,4); SQLite
// stores the decimal string as text, since a decimal column there has numeric
// affinity and holds REAL values.
type Amount struct {
	decimal.Decimal
}

// NewAmount wraps d as a column value
func NewAmount(d decimal.Decimal) Amount {
	return Amount{Decimal: d}
}

// NewAmountPtr wraps an optional decimal
func NewAmountPtr(d *decimal.Decimal) *Amount {
	if d == nil {
		return nil
	}
	a := NewAmount(*d)
	return &a
}

// DecimalPtr unwraps an optional amount
func (a *Amount) DecimalPtr() *decimal.Decimal {
	if a == nil {
		return nil
	}
	d := a.Decimal
	return &d
}

// GormDataType returns the general data type
func (Amount) GormDataType() string {
	return "decimal"
}

// GormDBDataType picks the column type per dialect
func (Amount) GormDBDataType(db *gorm.DB, _ *schema.Field) string {
	if db.Dialector.Name() == "sqlite" {
		return "text"
	}
	return AmountColumnType
}
