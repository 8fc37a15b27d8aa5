package telemetry

import (
	"context"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// GormBalanceMetricsProvider implements BalanceMetricsProvider using GORM.
// It reads the caisse_balances table directly.
type GormBalanceMetricsProvider struct {
	db *gorm.DB
}

// NewGormBalanceMetricsProvider creates a new GormBalanceMetricsProvider.
func NewGormBalanceMetricsProvider(db *gorm.DB) *GormBalanceMetricsProvider {
	return &GormBalanceMetricsProvider{db: db}
}

// GetBalances returns the materialised balance per currency.
func (p *GormBalanceMetricsProvider) GetBalances(ctx context.Context) (map[string]decimal.Decimal, error) {
	type result struct {
		Currency string          `gorm:"column:currency"`
		Amount   decimal.Decimal `gorm:"column:amount"`
	}

	var results []result
	err := p.db.WithContext(ctx).
		Table("caisse_balances").
		Select("currency, amount").
		Find(&results).Error
	if err != nil {
		return nil, err
	}

	m := make(map[string]decimal.Decimal, len(results))
	for _, r := range results {
		m[r.Currency] = r.Amount
	}
	return m, nil
}
