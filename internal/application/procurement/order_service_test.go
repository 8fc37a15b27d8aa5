package procurement

import (
	"context"
	"testing"

	"github.com/procurement/backend/internal/domain/caisse"
	"github.com/procurement/backend/internal/domain/shared"
	"github.com/procurement/backend/internal/domain/shared/valueobject"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOrderService_Create_IssuesSequentialNumbers(t *testing.T) {
	h := newHarness(t)

	numbers := make([]string, 0, 3)
	for range 3 {
		numbers = append(numbers, h.createOrder(t).Number)
	}

	assert.Equal(t, []string{"CMD/2026/10/0001", "CMD/2026/10/0002", "CMD/2026/10/0003"}, numbers)
}

func TestOrderService_Create_StartsPendingAndUnpaid(t *testing.T) {
	h := newHarness(t)

	order := h.createOrder(t)

	assert.Equal(t, "PENDING", order.Status)
	assert.False(t, order.Authorized)
	assert.Equal(t, 1, order.Version)
	assert.Equal(t, "XOF", order.Summary.Currency)
	assert.True(t, order.Summary.Due.IsZero())
	assert.Equal(t, "PAID", order.Summary.Status, "nothing is due without a validated proforma")
	assert.False(t, order.PaymentComplete)
	assert.Len(t, h.outbox.EventsOfType(shared.EventTypeSyncRequested), 1)
}

func TestOrderService_Create_Validation(t *testing.T) {
	h := newHarness(t)

	_, err := h.orders.Create(context.Background(), CreateOrderRequest{
		RequesterID: h.member.ID,
		Team:        "Operations",
	})
	assert.ErrorIs(t, err, shared.ErrInvalidInput)
}

func TestOrderService_CashPaymentWithoutFunds(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.fund(t, valueobject.XOF, 50)
	order := h.createOrder(t)
	txnsBefore := len(h.transactions(t, ""))

	_, err := h.orders.SubmitPayment(ctx, order.ID, h.member, cashPayment(100, "XOF"))

	require.Error(t, err)
	assert.ErrorIs(t, err, shared.ErrInsufficientFunds)
	assert.True(t, decimal.NewFromInt(50).Equal(h.balance(t, valueobject.XOF)))
	assert.Len(t, h.transactions(t, ""), txnsBefore)

	reloaded, err := h.orders.GetByID(ctx, order.ID)
	require.NoError(t, err)
	assert.True(t, reloaded.Summary.Paid.IsZero())
	assert.Empty(t, reloaded.Payments)
	assert.Equal(t, order.Version, reloaded.Version)
}

func TestOrderService_CashPaymentFinerThanCurrency(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.fund(t, valueobject.XOF, 100)
	order := h.createOrder(t)

	req := cashPayment(0, "XOF")
	req.Amount = decimal.RequireFromString("10.00005")
	_, err := h.orders.SubmitPayment(ctx, order.ID, h.member, req)

	assert.ErrorIs(t, err, shared.ErrInvalidAmount)
	assert.True(t, decimal.NewFromInt(100).Equal(h.balance(t, valueobject.XOF)))
	assert.Len(t, h.transactions(t, caisse.TransactionTypePayment), 0)

	reloaded, err := h.orders.GetByID(ctx, order.ID)
	require.NoError(t, err)
	assert.Empty(t, reloaded.Payments)
	assert.True(t, reloaded.Summary.Paid.IsZero())
}

func TestOrderService_ProformaPaymentsInstalments(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	order := h.createOrder(t)

	_, err := h.orders.AttachProforma(ctx, order.ID, h.member, AttachProformaRequest{
		Name:     "Quote A",
		Amount:   decimal.NewFromInt(1000),
		Currency: "EUR",
		Supplier: "Bureau Plus",
		URLs:     []string{"https://quotes.example.com/a"},
	})
	require.NoError(t, err)

	validated, err := h.orders.ValidateProforma(ctx, order.ID, h.admin, ValidateProformaRequest{Index: 0, Comment: "best price"})
	require.NoError(t, err)
	assert.Equal(t, "EUR", validated.Summary.Currency)
	assert.True(t, decimal.NewFromInt(1000).Equal(validated.Summary.Due))
	assert.Equal(t, "UNPAID", validated.Summary.Status)

	first, err := h.orders.SubmitPayment(ctx, order.ID, h.member, transferPayment(400, "EUR", "TRX-001"))
	require.NoError(t, err)
	assert.Equal(t, "PARTIAL", first.Status)
	assert.True(t, decimal.NewFromInt(400).Equal(first.NewPaidAmount))
	assert.True(t, decimal.NewFromInt(600).Equal(first.RemainingAmount))
	assert.Nil(t, first.CaisseTransactionID, "transfers do not touch the register")

	second, err := h.orders.SubmitPayment(ctx, order.ID, h.member, transferPayment(600, "EUR", "TRX-002"))
	require.NoError(t, err)
	assert.Equal(t, "PAID", second.Status)
	assert.True(t, second.RemainingAmount.IsZero())
	assert.False(t, second.Overpaid)

	reloaded, err := h.orders.GetByID(ctx, order.ID)
	require.NoError(t, err)
	require.Len(t, reloaded.Payments, 2)
	assert.True(t, reloaded.PaymentComplete)

	sum := decimal.Zero
	for _, p := range reloaded.Payments {
		sum = sum.Add(p.Amount)
	}
	assert.True(t, sum.Equal(reloaded.Summary.Paid))
}

func TestOrderService_PaymentCurrencyMismatch(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	order := h.createOrder(t)

	_, err := h.orders.AttachProforma(ctx, order.ID, h.member, AttachProformaRequest{
		Name: "Quote A", Amount: decimal.NewFromInt(1000), Currency: "EUR", Supplier: "Bureau Plus",
	})
	require.NoError(t, err)
	_, err = h.orders.ValidateProforma(ctx, order.ID, h.admin, ValidateProformaRequest{Index: 0})
	require.NoError(t, err)

	_, err = h.orders.SubmitPayment(ctx, order.ID, h.member, transferPayment(100, "USD", "TRX-9"))
	assert.ErrorIs(t, err, shared.ErrCurrencyMismatch)
}

func TestOrderService_ValidateSecondProforma(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	order := h.createOrder(t)

	for _, name := range []string{"Quote A", "Quote B"} {
		_, err := h.orders.AttachProforma(ctx, order.ID, h.member, AttachProformaRequest{
			Name: name, Amount: decimal.NewFromInt(500), Currency: "XOF", Supplier: "Bureau Plus",
		})
		require.NoError(t, err)
	}

	_, err := h.orders.ValidateProforma(ctx, order.ID, h.admin, ValidateProformaRequest{Index: 0})
	require.NoError(t, err)

	_, err = h.orders.ValidateProforma(ctx, order.ID, h.admin, ValidateProformaRequest{Index: 1})
	assert.ErrorIs(t, err, shared.ErrAlreadyValidated)

	_, err = h.orders.RemoveProforma(ctx, order.ID, h.member, 0)
	assert.ErrorIs(t, err, shared.ErrCannotRemoveValid)

	reloaded, err := h.orders.RemoveProforma(ctx, order.ID, h.member, 1)
	require.NoError(t, err)
	require.Len(t, reloaded.Proformas, 1)
	assert.True(t, reloaded.Proformas[0].Validated)
}

func TestOrderService_ValidateProformaRequiresAdmin(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	order := h.createOrder(t)
	_, err := h.orders.AttachProforma(ctx, order.ID, h.member, AttachProformaRequest{
		Name: "Quote A", Amount: decimal.NewFromInt(500), Currency: "XOF", Supplier: "Bureau Plus",
	})
	require.NoError(t, err)

	_, err = h.orders.ValidateProforma(ctx, order.ID, h.member, ValidateProformaRequest{Index: 0})
	assert.ErrorIs(t, err, shared.ErrForbidden)

	_, err = h.orders.ValidateProforma(ctx, order.ID, h.admin, ValidateProformaRequest{Index: 3})
	assert.ErrorIs(t, err, shared.ErrInvalidIndex)
}

func TestOrderService_Lifecycle(t *testing.T) {
	ctx := context.Background()

	t.Run("validate requires authorization", func(t *testing.T) {
		h := newHarness(t)
		order := h.createOrder(t)

		_, err := h.orders.Validate(ctx, order.ID, h.admin)
		assert.ErrorIs(t, err, shared.ErrNotAuthorized)

		_, err = h.orders.Authorize(ctx, order.ID, h.member)
		assert.ErrorIs(t, err, shared.ErrForbidden)

		authorized, err := h.orders.Authorize(ctx, order.ID, h.admin)
		require.NoError(t, err)
		assert.True(t, authorized.Authorized)

		validated, err := h.orders.Validate(ctx, order.ID, h.admin)
		require.NoError(t, err)
		assert.Equal(t, "VALIDATED", validated.Status)
		assert.Equal(t, order.Version+2, validated.Version)
	})

	t.Run("rejected orders are terminal", func(t *testing.T) {
		h := newHarness(t)
		order := h.createOrder(t)

		_, err := h.orders.Reject(ctx, order.ID, h.admin, "  ")
		assert.ErrorIs(t, err, shared.ErrInvalidInput)

		rejected, err := h.orders.Reject(ctx, order.ID, h.admin, "over budget")
		require.NoError(t, err)
		assert.Equal(t, "REJECTED", rejected.Status)
		assert.Equal(t, "over budget", rejected.RejectionReason)

		_, err = h.orders.Authorize(ctx, order.ID, h.admin)
		assert.ErrorIs(t, err, shared.ErrInvalidTransition)

		_, err = h.orders.SubmitPayment(ctx, order.ID, h.member, transferPayment(10, "XOF", "TRX-1"))
		assert.ErrorIs(t, err, shared.ErrInvalidTransition)
	})

	t.Run("deleted orders are frozen", func(t *testing.T) {
		h := newHarness(t)
		order := h.createOrder(t)

		deleted, err := h.orders.Delete(ctx, order.ID, h.admin, "duplicate")
		require.NoError(t, err)
		require.NotNil(t, deleted.Deleted)

		_, err = h.orders.SubmitPayment(ctx, order.ID, h.member, transferPayment(10, "XOF", "TRX-1"))
		assert.ErrorIs(t, err, shared.ErrEntityDeleted)

		listed, total, err := h.orders.List(ctx, OrderListFilter{})
		require.NoError(t, err)
		assert.Zero(t, total)
		assert.Empty(t, listed)

		listed, total, err = h.orders.List(ctx, OrderListFilter{IncludeDeleted: true})
		require.NoError(t, err)
		assert.EqualValues(t, 1, total)
		assert.Len(t, listed, 1)
	})

	t.Run("unknown order", func(t *testing.T) {
		h := newHarness(t)
		_, err := h.orders.Authorize(ctx, testUUID("missing"), h.admin)
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})

	t.Run("anonymous actor", func(t *testing.T) {
		h := newHarness(t)
		order := h.createOrder(t)
		_, err := h.orders.Authorize(ctx, order.ID, shared.Actor{})
		assert.Error(t, err)
	})
}

func TestOrderService_CashPaymentAndCorrections(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.fund(t, valueobject.XOF, 1000)
	order := h.createOrder(t)

	_, err := h.orders.AttachProforma(ctx, order.ID, h.member, AttachProformaRequest{
		Name: "Quote A", Amount: decimal.NewFromInt(600), Currency: "XOF", Supplier: "Bureau Plus",
	})
	require.NoError(t, err)
	_, err = h.orders.ValidateProforma(ctx, order.ID, h.admin, ValidateProformaRequest{Index: 0})
	require.NoError(t, err)

	paid, err := h.orders.SubmitPayment(ctx, order.ID, h.member, cashPayment(400, "XOF"))
	require.NoError(t, err)
	require.NotNil(t, paid.CaisseTransactionID)
	assert.True(t, decimal.NewFromInt(600).Equal(h.balance(t, valueobject.XOF)))

	t.Run("members cannot correct", func(t *testing.T) {
		_, err := h.orders.CorrectPayment(ctx, order.ID, paid.PaymentID, h.member, CorrectPaymentRequest{
			Amount: decimal.NewFromInt(300), Reason: "typo",
		})
		assert.ErrorIs(t, err, shared.ErrForbidden)
	})

	t.Run("lowering the amount refunds the register", func(t *testing.T) {
		corrected, err := h.orders.CorrectPayment(ctx, order.ID, paid.PaymentID, h.admin, CorrectPaymentRequest{
			Amount: decimal.NewFromInt(300), Reason: "typo",
		})
		require.NoError(t, err)
		assert.True(t, decimal.NewFromInt(300).Equal(corrected.NewPaidAmount))
		assert.Equal(t, "PARTIAL", corrected.Status)
		require.NotNil(t, corrected.CaisseTransactionID)
		assert.True(t, decimal.NewFromInt(700).Equal(h.balance(t, valueobject.XOF)))

		reversals := h.transactions(t, caisse.TransactionTypePaymentReversal)
		require.Len(t, reversals, 1)
		assert.True(t, decimal.NewFromInt(100).Equal(reversals[0].Amount))
		assert.Equal(t, order.Number, reversals[0].Reference)
	})

	t.Run("voiding returns the rest", func(t *testing.T) {
		voided, err := h.orders.CorrectPayment(ctx, order.ID, paid.PaymentID, h.admin, CorrectPaymentRequest{
			Void: true, Reason: "paid twice",
		})
		require.NoError(t, err)
		assert.True(t, voided.NewPaidAmount.IsZero())
		assert.Equal(t, "UNPAID", voided.Status)
		assert.True(t, decimal.NewFromInt(1000).Equal(h.balance(t, valueobject.XOF)))
		assert.Len(t, h.transactions(t, caisse.TransactionTypePaymentReversal), 2)

		_, err = h.orders.CorrectPayment(ctx, order.ID, paid.PaymentID, h.admin, CorrectPaymentRequest{
			Void: true, Reason: "again",
		})
		assert.ErrorIs(t, err, shared.ErrInvalidTransition)
	})

	report, err := h.ledger.Reconcile(ctx)
	require.NoError(t, err)
	assert.Empty(t, report.Drifts)
}

func TestOrderService_EventsStagedWithChanges(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	order := h.createOrder(t)

	_, err := h.orders.Authorize(ctx, order.ID, h.admin)
	require.NoError(t, err)

	changes := h.outbox.EventsOfType(shared.EventTypeEntityStateChanged)
	require.Len(t, changes, 2)
	created, ok := changes[0].(*shared.EntityStateChangedEvent)
	require.True(t, ok)
	assert.Equal(t, "created", created.Action)
	change, ok := changes[1].(*shared.EntityStateChangedEvent)
	require.True(t, ok)
	assert.Equal(t, "authorized", change.Action)
	assert.Equal(t, order.Number, change.Reference)
	assert.Equal(t, h.admin.ID, change.ActorID)

	syncs := h.outbox.EventsOfType(shared.EventTypeSyncRequested)
	require.Len(t, syncs, 2)
	latest, ok := syncs[1].(*shared.SyncRequestedEvent)
	require.True(t, ok)
	assert.Equal(t, order.ID, latest.AggregateID())
	assert.Equal(t, 2, latest.Version)
	assert.Contains(t, string(latest.Snapshot), `"authorized":true`)
}

func TestOrderService_ListAndLookup(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	first := h.createOrder(t)
	h.createOrder(t)

	found, err := h.orders.GetByNumber(ctx, " "+first.Number+" ")
	require.NoError(t, err)
	assert.Equal(t, first.ID, found.ID)

	_, err = h.orders.Reject(ctx, first.ID, h.admin, "not needed")
	require.NoError(t, err)

	rejected, total, err := h.orders.List(ctx, OrderListFilter{Status: "rejected"})
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	require.Len(t, rejected, 1)
	assert.Equal(t, first.ID, rejected[0].ID)

	_, _, err = h.orders.List(ctx, OrderListFilter{Status: "shipped"})
	assert.ErrorIs(t, err, shared.ErrInvalidInput)

	searched, total, err := h.orders.List(ctx, OrderListFilter{Search: "0002"})
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	assert.Equal(t, "CMD/2026/10/0002", searched[0].Number)
}
