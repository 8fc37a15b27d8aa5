package caisse

import (
	"time"

	"github.com/procurement/backend/internal/domain/shared/valueobject"
	"github.com/shopspring/decimal"
)

// Balance is the materialised amount held for one currency
type Balance struct {
	Currency  valueobject.Currency `json:"currency"`
	Amount    decimal.Decimal      `json:"amount"`
	UpdatedAt time.Time            `json:"updated_at"`
}

// Money returns the balance as Money
func (b Balance) Money() valueobject.Money {
	m, _ := valueobject.NewMoney(b.Amount, b.Currency)
	return m
}

// Covers reports whether the balance can absorb a withdrawal of amount
func (b Balance) Covers(amount decimal.Decimal) bool {
	return b.Amount.GreaterThanOrEqual(amount)
}

// Drift is a currency whose materialised balance disagrees with its log
type Drift struct {
	Currency   valueobject.Currency `json:"currency"`
	Balance    decimal.Decimal      `json:"balance"`
	LogSum     decimal.Decimal      `json:"log_sum"`
	Difference decimal.Decimal      `json:"difference"`
}

// ReconcileReport compares balances with the per-currency transaction sums
type ReconcileReport struct {
	Balances  []Balance `json:"balances"`
	Drifts    []Drift   `json:"drifts"`
	CheckedAt time.Time `json:"checked_at"`
}

// Consistent returns true when no currency drifted
func (r *ReconcileReport) Consistent() bool {
	return len(r.Drifts) == 0
}

// NewReconcileReport builds a report from the materialised balances and the
// log sums. Currencies present on only one side count as drift too.
func NewReconcileReport(balances []Balance, logSums map[valueobject.Currency]decimal.Decimal) *ReconcileReport {
	report := &ReconcileReport{
		Balances:  balances,
		Drifts:    []Drift{},
		CheckedAt: time.Now(),
	}
	seen := make(map[valueobject.Currency]bool, len(balances))
	for _, b := range balances {
		seen[b.Currency] = true
		sum, ok := logSums[b.Currency]
		if !ok {
			sum = decimal.Zero
		}
		if !sum.Equal(b.Amount) {
			report.Drifts = append(report.Drifts, Drift{
				Currency:   b.Currency,
				Balance:    b.Amount,
				LogSum:     sum,
				Difference: b.Amount.Sub(sum),
			})
		}
	}
	for currency, sum := range logSums {
		if seen[currency] || sum.IsZero() {
			continue
		}
		report.Drifts = append(report.Drifts, Drift{
			Currency:   currency,
			Balance:    decimal.Zero,
			LogSum:     sum,
			Difference: sum.Neg(),
		})
	}
	return report
}
