package models

import "time"

// SequenceCounterModel stores the last issued value of a (kind, period) counter
type SequenceCounterModel struct {
	Kind      string    `gorm:"type:varchar(30);primaryKey"`
	Period    string    `gorm:"type:varchar(7);primaryKey"`
	Value     int64     `gorm:"not null;default:0"`
	UpdatedAt time.Time `gorm:"not null"`
}

// TableName returns the table name for GORM
func (SequenceCounterModel) TableName() string {
	return "sequence_counters"
}
