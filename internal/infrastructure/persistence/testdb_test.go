package persistence

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/procurement/backend/internal/domain/caisse"
	"github.com/procurement/backend/internal/domain/procurement"
	"github.com/procurement/backend/internal/domain/shared"
	"github.com/procurement/backend/internal/domain/shared/valueobject"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// newSQLiteDB opens a private in-memory database with the full schema
func newSQLiteDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := "file:" + uuid.NewString() + "?mode=memory&cache=shared&_busy_timeout=5000"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:                 logger.Default.LogMode(logger.Silent),
		SkipDefaultTransaction: true,
		TranslateError:         true,
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, AutoMigrate(db))
	return db
}

func newTestOrder(t *testing.T, number string) *procurement.Order {
	t.Helper()
	qty, err := valueobject.NewQuantity(decimal.NewFromInt(3), "box")
	require.NoError(t, err)
	item, err := procurement.NewLineItem(qty, "printer paper")
	require.NoError(t, err)
	order, err := procurement.NewOrder(number, uuid.New(), "Operations", time.Now(), []procurement.LineItem{item})
	require.NoError(t, err)
	return order
}

func newTestPaymentRequest(t *testing.T, number string, amount int64) *procurement.PaymentRequest {
	t.Helper()
	money, err := valueobject.NewMoneyFromInt(amount, valueobject.XOF)
	require.NoError(t, err)
	pr, err := procurement.NewPaymentRequest(number, uuid.New(), money, "courier fees", time.Now(), "", nil)
	require.NoError(t, err)
	return pr
}

func deposit(t *testing.T, ledger caisse.Ledger, currency valueobject.Currency, amount int64) *caisse.Transaction {
	t.Helper()
	m, err := caisse.NewMovement(currency, decimal.NewFromInt(amount), caisse.TransactionTypeAdjustment, caisse.SourceTypeManual, uuid.New())
	require.NoError(t, err)
	txn, err := ledger.Adjust(context.Background(), m)
	require.NoError(t, err)
	return txn
}

var testAdmin = shared.NewAdmin(uuid.New())
