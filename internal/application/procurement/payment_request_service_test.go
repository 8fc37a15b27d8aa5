package procurement

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/procurement/backend/internal/domain/caisse"
	"github.com/procurement/backend/internal/domain/shared"
	"github.com/procurement/backend/internal/domain/shared/valueobject"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func (h *harness) createPaymentRequest(t *testing.T, amount int64, currency string) *PaymentRequestResponse {
	t.Helper()
	pr, err := h.requests.Create(context.Background(), CreatePaymentRequestRequest{
		RequesterID: h.member.ID,
		Amount:      decimal.NewFromInt(amount),
		Currency:    currency,
		Reason:      "courier fees",
	})
	require.NoError(t, err)
	return pr
}

// approve authorizes and validates a request
func (h *harness) approve(t *testing.T, id uuid.UUID) {
	t.Helper()
	ctx := context.Background()
	_, err := h.requests.Authorize(ctx, id, h.admin)
	require.NoError(t, err)
	_, err = h.requests.Validate(ctx, id, h.admin)
	require.NoError(t, err)
}

func TestPaymentRequestService_Create(t *testing.T) {
	h := newHarness(t)

	first := h.createPaymentRequest(t, 250, "")
	second := h.createPaymentRequest(t, 90, "eur")

	assert.Equal(t, "PAY/2026/10/0001", first.Number)
	assert.Equal(t, "PAY/2026/10/0002", second.Number)
	assert.Equal(t, "XOF", first.Currency, "default currency applies when none is given")
	assert.Equal(t, "EUR", second.Currency)
	assert.Equal(t, "PENDING", first.Status)
	assert.True(t, decimal.NewFromInt(250).Equal(first.Summary.Remaining))

	_, err := h.requests.Create(context.Background(), CreatePaymentRequestRequest{
		RequesterID: h.member.ID,
		Amount:      decimal.NewFromInt(-5),
		Reason:      "refund",
	})
	assert.Error(t, err)
}

func TestPaymentRequestService_CountersAreIndependent(t *testing.T) {
	h := newHarness(t)

	h.createOrder(t)
	pr := h.createPaymentRequest(t, 100, "XOF")

	assert.Equal(t, "PAY/2026/10/0001", pr.Number)
}

func TestPaymentRequestService_PaymentsDriveStatus(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	pr := h.createPaymentRequest(t, 1000, "XOF")

	_, err := h.requests.SubmitPayment(ctx, pr.ID, h.member, transferPayment(100, "XOF", "TRX-1"))
	assert.ErrorIs(t, err, shared.ErrInvalidTransition, "pending requests cannot be paid")

	h.approve(t, pr.ID)

	partial, err := h.requests.SubmitPayment(ctx, pr.ID, h.member, transferPayment(300, "XOF", "TRX-2"))
	require.NoError(t, err)
	assert.Equal(t, "PARTIAL", partial.Status)

	reloaded, err := h.requests.GetByID(ctx, pr.ID)
	require.NoError(t, err)
	assert.Equal(t, "PARTIALLY_PAID", reloaded.Status)

	paid, err := h.requests.SubmitPayment(ctx, pr.ID, h.member, transferPayment(700, "XOF", "TRX-3"))
	require.NoError(t, err)
	assert.Equal(t, "PAID", paid.Status)

	reloaded, err = h.requests.GetByID(ctx, pr.ID)
	require.NoError(t, err)
	assert.Equal(t, "PAID", reloaded.Status)
	assert.True(t, reloaded.Summary.Remaining.IsZero())

	_, err = h.requests.SubmitPayment(ctx, pr.ID, h.member, transferPayment(1, "XOF", "TRX-4"))
	assert.ErrorIs(t, err, shared.ErrInvalidTransition)
}

func TestPaymentRequestService_CashPayments(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.fund(t, valueobject.XAF, 500)
	pr := h.createPaymentRequest(t, 800, "XAF")
	h.approve(t, pr.ID)

	first, err := h.requests.SubmitPayment(ctx, pr.ID, h.member, cashPayment(500, "XAF"))
	require.NoError(t, err)
	require.NotNil(t, first.CaisseTransactionID)
	assert.True(t, h.balance(t, valueobject.XAF).IsZero())

	payments := h.transactions(t, caisse.TransactionTypePayment)
	require.Len(t, payments, 1)
	assert.Equal(t, caisse.SourceTypePaymentRequest, payments[0].SourceType)
	assert.Equal(t, pr.Number, payments[0].Reference)
	assert.True(t, decimal.NewFromInt(-500).Equal(payments[0].Amount))

	_, err = h.requests.SubmitPayment(ctx, pr.ID, h.member, cashPayment(300, "XAF"))
	assert.ErrorIs(t, err, shared.ErrInsufficientFunds)

	reloaded, err := h.requests.GetByID(ctx, pr.ID)
	require.NoError(t, err)
	assert.Len(t, reloaded.Payments, 1)
	assert.True(t, decimal.NewFromInt(500).Equal(reloaded.Summary.Paid))

	t.Run("raising a cash payment draws the difference", func(t *testing.T) {
		h.fund(t, valueobject.XAF, 200)
		corrected, err := h.requests.CorrectPayment(ctx, pr.ID, first.PaymentID, h.admin, CorrectPaymentRequest{
			Amount: decimal.NewFromInt(650),
			Reason: "receipt shows 650",
		})
		require.NoError(t, err)
		assert.True(t, decimal.NewFromInt(650).Equal(corrected.NewPaidAmount))
		assert.True(t, decimal.NewFromInt(50).Equal(h.balance(t, valueobject.XAF)))
		assert.Len(t, h.transactions(t, caisse.TransactionTypePayment), 2)
	})

	t.Run("raising beyond the register fails atomically", func(t *testing.T) {
		_, err := h.requests.CorrectPayment(ctx, pr.ID, first.PaymentID, h.admin, CorrectPaymentRequest{
			Amount: decimal.NewFromInt(800),
			Reason: "receipt shows 800",
		})
		assert.ErrorIs(t, err, shared.ErrInsufficientFunds)

		reloaded, err := h.requests.GetByID(ctx, pr.ID)
		require.NoError(t, err)
		assert.True(t, decimal.NewFromInt(650).Equal(reloaded.Summary.Paid))
		assert.True(t, decimal.NewFromInt(50).Equal(h.balance(t, valueobject.XAF)))
	})
}

func TestPaymentRequestService_Cancel(t *testing.T) {
	ctx := context.Background()

	t.Run("requester cancels a pending request", func(t *testing.T) {
		h := newHarness(t)
		pr := h.createPaymentRequest(t, 100, "XOF")

		cancelled, err := h.requests.Cancel(ctx, pr.ID, h.member, "no longer needed")
		require.NoError(t, err)
		assert.Equal(t, "CANCELLED", cancelled.Status)
		assert.Equal(t, "no longer needed", cancelled.CancelReason)

		_, err = h.requests.Authorize(ctx, pr.ID, h.admin)
		assert.ErrorIs(t, err, shared.ErrInvalidTransition)
	})

	t.Run("other members cannot cancel", func(t *testing.T) {
		h := newHarness(t)
		pr := h.createPaymentRequest(t, 100, "XOF")

		_, err := h.requests.Cancel(ctx, pr.ID, shared.NewActor(testUUID("someone-else")), "mine now")
		assert.ErrorIs(t, err, shared.ErrForbidden)
	})

	t.Run("paid requests cannot be cancelled", func(t *testing.T) {
		h := newHarness(t)
		pr := h.createPaymentRequest(t, 100, "XOF")
		h.approve(t, pr.ID)
		_, err := h.requests.SubmitPayment(ctx, pr.ID, h.member, transferPayment(40, "XOF", "TRX-1"))
		require.NoError(t, err)

		_, err = h.requests.Cancel(ctx, pr.ID, h.admin, "too late")
		assert.ErrorIs(t, err, shared.ErrInvalidTransition)
	})
}

func TestPaymentRequestService_RejectAndDelete(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	pr := h.createPaymentRequest(t, 100, "XOF")

	_, err := h.requests.Delete(ctx, pr.ID, h.member, "spam")
	assert.ErrorIs(t, err, shared.ErrForbidden)

	rejected, err := h.requests.Reject(ctx, pr.ID, h.admin, "missing invoice")
	require.NoError(t, err)
	assert.Equal(t, "REJECTED", rejected.Status)

	deleted, err := h.requests.Delete(ctx, pr.ID, h.admin, "cleanup")
	require.NoError(t, err)
	require.NotNil(t, deleted.Deleted)
	assert.Equal(t, "cleanup", deleted.Deleted.Reason)

	_, err = h.requests.Delete(ctx, pr.ID, h.admin, "again")
	assert.ErrorIs(t, err, shared.ErrEntityDeleted)
}

func TestPaymentRequestService_List(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	first := h.createPaymentRequest(t, 100, "XOF")
	h.createPaymentRequest(t, 200, "XOF")
	h.approve(t, first.ID)

	validated, total, err := h.requests.List(ctx, PaymentRequestListFilter{Status: "validated"})
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	require.Len(t, validated, 1)
	assert.Equal(t, first.ID, validated[0].ID)

	all, total, err := h.requests.List(ctx, PaymentRequestListFilter{PageSize: 1})
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
	assert.Len(t, all, 1)

	found, err := h.requests.GetByNumber(ctx, "PAY/2026/10/0002")
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(200).Equal(found.Amount))
}
