package event

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/procurement/backend/internal/domain/shared"
	"github.com/procurement/backend/internal/infrastructure/persistence/models"
	"github.com/procurement/backend/tests/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func countOutbox(t *testing.T, db *gorm.DB) int64 {
	t.Helper()
	var n int64
	require.NoError(t, db.Model(&models.OutboxEntryModel{}).Count(&n).Error)
	return n
}

func TestOutboxPublisher_StagesEventsInTransaction(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	publisher := NewOutboxPublisher(NewLedgerEventSerializer()).WithMaxRetries(3)
	ctx := context.Background()

	orderID := uuid.New()
	changed := shared.NewEntityStateChangedEvent("Order", orderID, "CMD/2026/10/0002", "created", "", "PENDING", uuid.New())
	sync, err := shared.NewSyncRequestedEvent("Order", orderID, "CMD/2026/10/0002", 1, map[string]string{"status": "PENDING"})
	require.NoError(t, err)

	require.NoError(t, db.Transaction(func(tx *gorm.DB) error {
		return publisher.SaveEvents(ctx, tx, changed, sync)
	}))

	pending, err := NewGormOutboxRepository(db).FindPending(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	for _, entry := range pending {
		assert.Equal(t, orderID, entry.AggregateID)
		assert.Equal(t, 3, entry.MaxRetries)
	}
	types := []string{pending[0].EventType, pending[1].EventType}
	assert.ElementsMatch(t, []string{shared.EventTypeEntityStateChanged, shared.EventTypeSyncRequested}, types)
}

func TestOutboxPublisher_RollbackDiscardsEntries(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	publisher := NewOutboxPublisher(NewLedgerEventSerializer())
	ctx := context.Background()

	event := shared.NewEntityStateChangedEvent("FundingRequest", uuid.New(), "FUND/2026/10/0001", "created", "", "PENDING", uuid.New())
	boom := errors.New("balance update failed")
	err := db.Transaction(func(tx *gorm.DB) error {
		if err := publisher.PublishWithTx(ctx, tx, event); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Zero(t, countOutbox(t, db))
}

func TestOutboxPublisher_Errors(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	publisher := NewOutboxPublisher(NewEventSerializer())
	ctx := context.Background()

	assert.NoError(t, publisher.SaveEvents(ctx, "not a tx"), "nothing to write")
	assert.ErrorContains(t, publisher.SaveEvents(ctx, "not a tx", newTestEvent("TestEvent")), "*gorm.DB")

	err := publisher.PublishWithTx(ctx, db, newTestEvent("Unregistered"))
	assert.ErrorIs(t, err, ErrUnknownEventType)
	assert.Zero(t, countOutbox(t, db))
}
