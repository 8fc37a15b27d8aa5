package persistence

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/procurement/backend/internal/application/unitofwork"
	"github.com/procurement/backend/internal/domain/caisse"
	"github.com/procurement/backend/internal/domain/shared"
	"github.com/procurement/backend/internal/domain/shared/valueobject"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// recordingOutbox captures the events staged through RecordEvents
type recordingOutbox struct {
	mu     sync.Mutex
	events []shared.DomainEvent
}

func (o *recordingOutbox) SaveEvents(ctx context.Context, tx any, events ...shared.DomainEvent) error {
	if _, ok := tx.(*gorm.DB); !ok {
		return errors.New("expected a gorm transaction")
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	o.events = append(o.events, events...)
	return nil
}

func TestGormTransactionScope_Execute(t *testing.T) {
	ctx := context.Background()

	t.Run("commits aggregate, ledger and events together", func(t *testing.T) {
		db := newSQLiteDB(t)
		outbox := &recordingOutbox{}
		scope := NewGormTransactionScope(db, outbox)
		order := newTestOrder(t, "CMD/2026/06/0001")

		err := scope.Execute(ctx, func(repos unitofwork.Repositories) error {
			if err := repos.Orders().Create(ctx, order); err != nil {
				return err
			}
			m, err := caisse.NewMovement(valueobject.XOF, decimal.NewFromInt(60), caisse.TransactionTypeFundingIn, caisse.SourceTypeFundingRequest, uuid.New())
			if err != nil {
				return err
			}
			if _, err := repos.Ledger().Adjust(ctx, m); err != nil {
				return err
			}
			return repos.RecordEvents(ctx, order.GetDomainEvents()...)
		})
		require.NoError(t, err)

		_, err = NewGormOrderRepository(db).FindByID(ctx, order.ID)
		require.NoError(t, err)
		balance, err := NewGormCaisseLedger(db).Balance(ctx, valueobject.XOF)
		require.NoError(t, err)
		assert.True(t, decimal.NewFromInt(60).Equal(balance.Amount))
		assert.Len(t, outbox.events, 1)
	})

	t.Run("failure rolls back every write", func(t *testing.T) {
		db := newSQLiteDB(t)
		scope := NewGormTransactionScope(db, nil)
		order := newTestOrder(t, "CMD/2026/06/0002")

		err := scope.Execute(ctx, func(repos unitofwork.Repositories) error {
			if err := repos.Orders().Create(ctx, order); err != nil {
				return err
			}
			m, err := caisse.NewMovement(valueobject.XOF, decimal.NewFromInt(-10), caisse.TransactionTypePayment, caisse.SourceTypeOrder, uuid.New())
			if err != nil {
				return err
			}
			_, err = repos.Ledger().Adjust(ctx, m)
			return err
		})
		require.Error(t, err)
		assert.True(t, errors.Is(err, shared.ErrInsufficientFunds))

		_, err = NewGormOrderRepository(db).FindByID(ctx, order.ID)
		assert.True(t, errors.Is(err, shared.ErrNotFound))
	})

	t.Run("nil outbox discards events", func(t *testing.T) {
		scope := NewGormTransactionScope(newSQLiteDB(t), nil)
		order := newTestOrder(t, "CMD/2026/06/0003")

		err := scope.Execute(ctx, func(repos unitofwork.Repositories) error {
			return repos.RecordEvents(ctx, order.GetDomainEvents()...)
		})
		assert.NoError(t, err)
	})
}
