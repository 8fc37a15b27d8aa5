package procurement

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/procurement/backend/internal/domain/payment"
	"github.com/procurement/backend/internal/domain/shared"
	"github.com/procurement/backend/internal/domain/shared/valueobject"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func money(t *testing.T, amount string, currency valueobject.Currency) valueobject.Money {
	t.Helper()
	m, err := valueobject.NewMoneyFromString(amount, currency)
	require.NoError(t, err)
	return m
}

func newTestOrder(t *testing.T) *Order {
	t.Helper()
	qty, err := valueobject.NewQuantity(decimal.NewFromInt(10), "pcs")
	require.NoError(t, err)
	item, err := NewLineItem(qty, "A4 paper reams")
	require.NoError(t, err)
	o, err := NewOrder("CMD/2025/03/0001", uuid.New(), "Logistics", time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC), []LineItem{item})
	require.NoError(t, err)
	o.ClearDomainEvents()
	return o
}

func newTestProforma(t *testing.T, name, amount string, currency valueobject.Currency) *Proforma {
	t.Helper()
	p, err := NewProforma(name, money(t, amount, currency), "Supplier "+name, []string{"https://quotes.example.org/" + name}, nil, uuid.New())
	require.NoError(t, err)
	return p
}

func newTransfer(t *testing.T, amount string, currency valueobject.Currency) *payment.Payment {
	t.Helper()
	p, err := payment.NewPayment(payment.ModeTransfer, money(t, amount, currency), "instalment", nil,
		payment.Details{Transfer: &payment.TransferDetails{Reference: "TRF-" + amount}}, uuid.New())
	require.NoError(t, err)
	return p
}

func admin() shared.Actor {
	return shared.NewAdmin(uuid.New())
}

func member() shared.Actor {
	return shared.NewActor(uuid.New())
}

func lastChange(t *testing.T, events []shared.DomainEvent) *shared.EntityStateChangedEvent {
	t.Helper()
	require.NotEmpty(t, events)
	e, ok := events[len(events)-1].(*shared.EntityStateChangedEvent)
	require.True(t, ok)
	return e
}
