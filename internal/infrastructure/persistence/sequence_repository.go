package persistence

import (
	"context"
	"time"

	"github.com/procurement/backend/internal/domain/sequence"
	"gorm.io/gorm"
)

const nextSequenceSQL = `INSERT INTO sequence_counters (kind, period, value, updated_at)
VALUES (?, ?, 1, ?)
ON CONFLICT (kind, period) DO UPDATE
SET value = sequence_counters.value + 1, updated_at = excluded.updated_at
RETURNING value`

// GormSequenceGenerator hands out counter values from the sequence_counters table.
// The upsert increments and returns the value in one statement, so concurrent
// callers are serialized by the row lock.
type GormSequenceGenerator struct {
	db *gorm.DB
}

// NewGormSequenceGenerator creates a new GormSequenceGenerator
func NewGormSequenceGenerator(db *gorm.DB) *GormSequenceGenerator {
	return &GormSequenceGenerator{db: db}
}

// Next returns the next value for kind in period, starting at 1
func (g *GormSequenceGenerator) Next(ctx context.Context, kind sequence.Kind, period sequence.Period) (int64, error) {
	var value int64
	result := g.db.WithContext(ctx).
		Raw(nextSequenceSQL, kind.String(), period.String(), time.Now()).
		Scan(&value)
	if result.Error != nil {
		return 0, translateError(result.Error)
	}
	if value < 1 {
		return 0, storageUnavailable(errSequenceNotReturned)
	}
	return value, nil
}

// Current returns the last issued value, or 0 when the period is unused
func (g *GormSequenceGenerator) Current(ctx context.Context, kind sequence.Kind, period sequence.Period) (int64, error) {
	var value int64
	if err := g.db.WithContext(ctx).
		Raw("SELECT value FROM sequence_counters WHERE kind = ? AND period = ?", kind.String(), period.String()).
		Scan(&value).Error; err != nil {
		return 0, translateError(err)
	}
	return value, nil
}

// Ensure GormSequenceGenerator implements Generator
var _ sequence.Generator = (*GormSequenceGenerator)(nil)
