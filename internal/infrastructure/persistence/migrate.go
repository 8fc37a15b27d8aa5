package persistence

import (
	"fmt"

	"github.com/procurement/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

// AllModels returns every persistence model owned by the service
func AllModels() []any {
	return []any{
		&models.SequenceCounterModel{},
		&models.OrderModel{},
		&models.PaymentRequestModel{},
		&models.FundingRequestModel{},
		&models.CaisseBalanceModel{},
		&models.CaisseTransactionModel{},
		&models.OutboxEntryModel{},
	}
}

// AutoMigrate creates or updates the schema from the models.
// Used for SQLite dev mode and tests; production schemas come from migrations/.
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(AllModels()...); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	return nil
}
