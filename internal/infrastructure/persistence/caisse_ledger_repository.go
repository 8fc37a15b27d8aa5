package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/procurement/backend/internal/domain/caisse"
	"github.com/procurement/backend/internal/domain/shared"
	"github.com/procurement/backend/internal/domain/shared/valueobject"
	"github.com/procurement/backend/internal/infrastructure/persistence/models"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	creditBalanceSQL = `INSERT INTO caisse_balances (currency, amount, updated_at)
VALUES (?, ?, ?)
ON CONFLICT (currency) DO UPDATE
SET amount = caisse_balances.amount + excluded.amount, updated_at = excluded.updated_at
RETURNING amount`

	debitBalanceSQL = `UPDATE caisse_balances
SET amount = amount + ?, updated_at = ?
WHERE currency = ? AND amount + ? >= 0
RETURNING amount`
)

// GormCaisseLedger implements the register ledger on caisse_balances and
// caisse_transactions. Balances only change through Adjust.
type GormCaisseLedger struct {
	db *gorm.DB
}

// NewGormCaisseLedger creates a new GormCaisseLedger
func NewGormCaisseLedger(db *gorm.DB) *GormCaisseLedger {
	return &GormCaisseLedger{db: db}
}

type balanceRow struct {
	Amount decimal.Decimal
}

// Adjust applies the movement with a single guarded statement and appends the
// transaction log entry. When called on a transaction handle it joins it.
func (l *GormCaisseLedger) Adjust(ctx context.Context, movement *caisse.Movement) (*caisse.Transaction, error) {
	if err := movement.Validate(); err != nil {
		return nil, err
	}

	var txn *caisse.Transaction
	err := l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		balanceAfter, err := applyDelta(tx, movement.Currency, movement.Delta, time.Now())
		if err != nil {
			return err
		}
		txn = caisse.NewTransaction(movement, balanceAfter)
		return tx.Create(models.CaisseTransactionModelFromDomain(txn)).Error
	})
	if err != nil {
		return nil, translateError(err)
	}
	return txn, nil
}

// applyDelta credits with an upsert and debits with a conditional update.
// A debit that would leave the balance negative matches no row.
func applyDelta(tx *gorm.DB, currency valueobject.Currency, delta decimal.Decimal, now time.Time) (decimal.Decimal, error) {
	if tx.Dialector.Name() == "sqlite" {
		return applyDeltaText(tx, currency, delta, now)
	}

	var row balanceRow
	if delta.IsPositive() {
		result := tx.Raw(creditBalanceSQL, currency.String(), delta, now).Scan(&row)
		if result.Error != nil {
			return decimal.Zero, result.Error
		}
		return row.Amount, nil
	}

	result := tx.Raw(debitBalanceSQL, delta, now, currency.String(), delta).Scan(&row)
	if result.Error != nil {
		return decimal.Zero, result.Error
	}
	if result.RowsAffected == 0 {
		return decimal.Zero, insufficientFunds(currency, delta)
	}
	return row.Amount, nil
}

// applyDeltaText is the SQLite variant. Amounts are stored as text there and
// SQL arithmetic on them is floating point, so the sum is computed with
// decimal and the write only matches the balance that was read.
func applyDeltaText(tx *gorm.DB, currency valueobject.Currency, delta decimal.Decimal, now time.Time) (decimal.Decimal, error) {
	var rows []models.CaisseBalanceModel
	if err := tx.Where("currency = ?", currency).Limit(1).Find(&rows).Error; err != nil {
		return decimal.Zero, err
	}

	if len(rows) == 0 {
		if delta.IsNegative() {
			return decimal.Zero, insufficientFunds(currency, delta)
		}
		row := models.CaisseBalanceModel{Currency: currency, Amount: models.NewAmount(delta), UpdatedAt: now}
		if err := tx.Create(&row).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return decimal.Zero, concurrencyConflict("caisse balance " + currency.String())
			}
			return decimal.Zero, err
		}
		return delta, nil
	}

	current := rows[0].Amount.Decimal
	next := current.Add(delta)
	if next.IsNegative() {
		return decimal.Zero, insufficientFunds(currency, delta)
	}
	result := tx.Model(&models.CaisseBalanceModel{}).
		Where("currency = ? AND amount = ?", currency, current.String()).
		Updates(map[string]any{"amount": next.String(), "updated_at": now})
	if result.Error != nil {
		return decimal.Zero, result.Error
	}
	if result.RowsAffected == 0 {
		return decimal.Zero, concurrencyConflict("caisse balance " + currency.String())
	}
	return next, nil
}

func insufficientFunds(currency valueobject.Currency, delta decimal.Decimal) error {
	return shared.NewDomainError("INSUFFICIENT_FUNDS",
		"Insufficient "+currency.String()+" in the register for "+delta.Neg().String())
}

// Balance returns the balance of a currency; an unused currency holds zero
func (l *GormCaisseLedger) Balance(ctx context.Context, currency valueobject.Currency) (caisse.Balance, error) {
	var balanceModels []models.CaisseBalanceModel
	if err := l.db.WithContext(ctx).
		Where("currency = ?", currency).
		Limit(1).
		Find(&balanceModels).Error; err != nil {
		return caisse.Balance{}, translateError(err)
	}
	if len(balanceModels) == 0 {
		return caisse.Balance{Currency: currency, Amount: decimal.Zero}, nil
	}
	return balanceModels[0].ToDomain(), nil
}

// Balances returns all currency balances ordered by currency
func (l *GormCaisseLedger) Balances(ctx context.Context) ([]caisse.Balance, error) {
	var balanceModels []models.CaisseBalanceModel
	if err := l.db.WithContext(ctx).Order("currency ASC").Find(&balanceModels).Error; err != nil {
		return nil, translateError(err)
	}
	balances := make([]caisse.Balance, len(balanceModels))
	for i := range balanceModels {
		balances[i] = balanceModels[i].ToDomain()
	}
	return balances, nil
}

// Transactions lists the register log, newest first
func (l *GormCaisseLedger) Transactions(ctx context.Context, filter caisse.TransactionFilter) ([]caisse.Transaction, int64, error) {
	var total int64
	if err := applyTransactionFilter(l.db.WithContext(ctx).Model(&models.CaisseTransactionModel{}), filter).
		Count(&total).Error; err != nil {
		return nil, 0, translateError(err)
	}

	var txModels []models.CaisseTransactionModel
	if err := applyTransactionFilter(l.db.WithContext(ctx).Model(&models.CaisseTransactionModel{}), filter).
		Order("created_at DESC").
		Offset(filter.Offset()).
		Limit(filter.Limit()).
		Find(&txModels).Error; err != nil {
		return nil, 0, translateError(err)
	}

	txns := make([]caisse.Transaction, len(txModels))
	for i := range txModels {
		txns[i] = *txModels[i].ToDomain()
	}
	return txns, total, nil
}

func applyTransactionFilter(query *gorm.DB, filter caisse.TransactionFilter) *gorm.DB {
	if filter.Currency != "" {
		query = query.Where("currency = ?", filter.Currency)
	}
	if filter.Type != "" {
		query = query.Where("type = ?", filter.Type)
	}
	if filter.SourceType != "" {
		query = query.Where("source_type = ?", filter.SourceType)
	}
	if filter.SourceID != nil {
		query = query.Where("source_id = ?", *filter.SourceID)
	}
	return query
}

// Reconcile compares every materialised balance with the sum of its log,
// reading both inside one transaction.
func (l *GormCaisseLedger) Reconcile(ctx context.Context) (*caisse.ReconcileReport, error) {
	var (
		balanceModels []models.CaisseBalanceModel
		logSums       map[valueobject.Currency]decimal.Decimal
	)
	err := l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Order("currency ASC").Find(&balanceModels).Error; err != nil {
			return err
		}
		var err error
		logSums, err = sumTransactions(tx)
		return err
	})
	if err != nil {
		return nil, translateError(err)
	}

	balances := make([]caisse.Balance, len(balanceModels))
	for i := range balanceModels {
		balances[i] = balanceModels[i].ToDomain()
	}
	return caisse.NewReconcileReport(balances, logSums), nil
}

type currencySum struct {
	Currency valueobject.Currency
	Total    decimal.Decimal
}

// sumTransactions totals the log per currency. SQLite SUM over text amounts
// is floating point, so there the rows are added up with decimal.
func sumTransactions(tx *gorm.DB) (map[valueobject.Currency]decimal.Decimal, error) {
	sums := make(map[valueobject.Currency]decimal.Decimal)
	query := tx.Model(&models.CaisseTransactionModel{})

	if tx.Dialector.Name() != "sqlite" {
		var rows []currencySum
		if err := query.Select("currency, SUM(amount) AS total").Group("currency").Scan(&rows).Error; err != nil {
			return nil, err
		}
		for _, r := range rows {
			sums[r.Currency] = r.Total
		}
		return sums, nil
	}

	var rows []currencySum
	if err := query.Select("currency, amount AS total").Scan(&rows).Error; err != nil {
		return nil, err
	}
	for _, r := range rows {
		sums[r.Currency] = sums[r.Currency].Add(r.Total)
	}
	return sums, nil
}

// EnsureCurrencies inserts a zero balance row for currencies without one
func (l *GormCaisseLedger) EnsureCurrencies(ctx context.Context, currencies []valueobject.Currency) error {
	if len(currencies) == 0 {
		return nil
	}
	now := time.Now()
	rows := make([]models.CaisseBalanceModel, len(currencies))
	for i, c := range currencies {
		rows[i] = models.CaisseBalanceModel{Currency: c, Amount: models.NewAmount(decimal.Zero), UpdatedAt: now}
	}
	return translateError(l.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&rows).Error)
}

// Ensure GormCaisseLedger implements Ledger
var _ caisse.Ledger = (*GormCaisseLedger)(nil)
