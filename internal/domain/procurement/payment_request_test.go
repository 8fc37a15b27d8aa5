package procurement

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/procurement/backend/internal/domain/payment"
	"github.com/procurement/backend/internal/domain/shared"
	"github.com/procurement/backend/internal/domain/shared/valueobject"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestPaymentRequest(t *testing.T, requester uuid.UUID, amount string, currency valueobject.Currency) *PaymentRequest {
	t.Helper()
	pr, err := NewPaymentRequest("PAY/2025/03/0001", requester, money(t, amount, currency), "Office rent March",
		time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC), "", []string{"docs/lease.pdf"})
	require.NoError(t, err)
	pr.ClearDomainEvents()
	return pr
}

func validatedRequest(t *testing.T, amount string, currency valueobject.Currency) *PaymentRequest {
	t.Helper()
	pr := newTestPaymentRequest(t, uuid.New(), amount, currency)
	require.NoError(t, pr.Authorize(admin()))
	require.NoError(t, pr.Validate(member()))
	return pr
}

func TestPaymentRequestStatus(t *testing.T) {
	tests := []struct {
		status     PaymentRequestStatus
		terminal   bool
		applicable bool
	}{
		{PaymentRequestStatusPending, false, false},
		{PaymentRequestStatusValidated, false, true},
		{PaymentRequestStatusPartiallyPaid, false, true},
		{PaymentRequestStatusPaid, false, false},
		{PaymentRequestStatusRejected, true, false},
		{PaymentRequestStatusCancelled, true, false},
	}
	for _, tc := range tests {
		t.Run(tc.status.String(), func(t *testing.T) {
			assert.True(t, tc.status.IsValid())
			assert.Equal(t, tc.terminal, tc.status.IsTerminal())
			assert.Equal(t, tc.applicable, tc.status.CanApplyPayment())
		})
	}
}

func TestNewPaymentRequest(t *testing.T) {
	requester := uuid.New()
	date := time.Now()

	pr, err := NewPaymentRequest("PAY/2025/03/0002", requester, money(t, "75000", valueobject.XOF), " fuel ", date, " CMD/2025/03/0001 ", nil)
	require.NoError(t, err)
	assert.Equal(t, PaymentRequestStatusPending, pr.Status)
	assert.Equal(t, "fuel", pr.Reason)
	assert.Equal(t, "CMD/2025/03/0001", pr.OrderReference)
	assert.Equal(t, valueobject.XOF, pr.Ledger.Currency)
	assert.Equal(t, "created", lastChange(t, pr.GetDomainEvents()).Action)

	_, err = NewPaymentRequest("PAY/1", requester, money(t, "0", valueobject.XOF), "fuel", date, "", nil)
	assert.True(t, errors.Is(err, shared.ErrInvalidAmount))
	_, err = NewPaymentRequest("PAY/1", requester, money(t, "10", valueobject.XOF), "", date, "", nil)
	assert.True(t, errors.Is(err, shared.ErrInvalidInput))
	_, err = NewPaymentRequest("PAY/1", uuid.Nil, money(t, "10", valueobject.XOF), "fuel", date, "", nil)
	assert.Error(t, err)
	_, err = NewPaymentRequest("PAY/1", requester, money(t, "10.00005", valueobject.XOF), "fuel", date, "", nil)
	assert.True(t, errors.Is(err, shared.ErrInvalidAmount))
}

func TestPaymentRequest_Approval(t *testing.T) {
	t.Run("validate requires authorization", func(t *testing.T) {
		pr := newTestPaymentRequest(t, uuid.New(), "100", valueobject.XOF)
		assert.True(t, errors.Is(pr.Validate(member()), shared.ErrNotAuthorized))
		assert.True(t, errors.Is(pr.Authorize(member()), shared.ErrForbidden))
		require.NoError(t, pr.Authorize(admin()))
		require.NoError(t, pr.Validate(member()))
		assert.Equal(t, PaymentRequestStatusValidated, pr.Status)
		assert.Equal(t, 3, pr.Version)
	})

	t.Run("reject needs reason and is terminal", func(t *testing.T) {
		pr := newTestPaymentRequest(t, uuid.New(), "100", valueobject.XOF)
		assert.True(t, errors.Is(pr.Reject(member(), ""), shared.ErrInvalidInput))
		require.NoError(t, pr.Reject(member(), "no budget"))
		assert.Equal(t, PaymentRequestStatusRejected, pr.Status)
		assert.NotNil(t, pr.ClosedAt)
		assert.True(t, errors.Is(pr.Cancel(admin(), "x"), shared.ErrInvalidTransition))
		_, err := pr.ApplyPayment(newTransfer(t, "10", valueobject.XOF))
		assert.True(t, errors.Is(err, shared.ErrInvalidTransition))
	})
}

func TestPaymentRequest_Cancel(t *testing.T) {
	requester := uuid.New()

	t.Run("requester can cancel", func(t *testing.T) {
		pr := newTestPaymentRequest(t, requester, "100", valueobject.XOF)
		require.NoError(t, pr.Cancel(shared.NewActor(requester), "no longer needed"))
		assert.Equal(t, PaymentRequestStatusCancelled, pr.Status)
		assert.Equal(t, "no longer needed", pr.CancelReason)
	})

	t.Run("other members cannot", func(t *testing.T) {
		pr := newTestPaymentRequest(t, requester, "100", valueobject.XOF)
		assert.True(t, errors.Is(pr.Cancel(member(), ""), shared.ErrForbidden))
	})

	t.Run("not once paid", func(t *testing.T) {
		pr := validatedRequest(t, "100", valueobject.XOF)
		_, err := pr.ApplyPayment(newTransfer(t, "10", valueobject.XOF))
		require.NoError(t, err)
		assert.True(t, errors.Is(pr.Cancel(admin(), ""), shared.ErrInvalidTransition))
	})
}

func TestPaymentRequest_Payments(t *testing.T) {
	pr := validatedRequest(t, "1000", valueobject.EUR)
	_, err := pr.ApplyPayment(newTransfer(t, "100", valueobject.XOF))
	assert.True(t, errors.Is(err, shared.ErrCurrencyMismatch))
	assert.Equal(t, PaymentRequestStatusValidated, pr.Status)

	first := newTransfer(t, "400", valueobject.EUR)
	s, err := pr.ApplyPayment(first)
	require.NoError(t, err)
	assert.Equal(t, payment.StatusPartial, s.Status)
	assert.Equal(t, PaymentRequestStatusPartiallyPaid, pr.Status)
	assert.Equal(t, payment.StatusPartial, first.StatusAfter)

	s, err = pr.ApplyPayment(newTransfer(t, "600", valueobject.EUR))
	require.NoError(t, err)
	assert.Equal(t, payment.StatusPaid, s.Status)
	assert.True(t, s.Remaining.IsZero())
	assert.Equal(t, PaymentRequestStatusPaid, pr.Status)

	_, err = pr.ApplyPayment(newTransfer(t, "1", valueobject.EUR))
	assert.True(t, errors.Is(err, shared.ErrInvalidTransition))

	t.Run("voiding moves the request back", func(t *testing.T) {
		adj, s, err := pr.CorrectPayment(first.ID, decimal.Zero, true, "bounced", admin())
		require.NoError(t, err)
		assert.True(t, adj.Delta.Equal(decimal.NewFromInt(-400)))
		assert.True(t, s.Remaining.Equal(decimal.NewFromInt(400)))
		assert.Equal(t, PaymentRequestStatusPartiallyPaid, pr.Status)
		assert.Len(t, pr.Ledger.Payments, 2)

		_, _, err = pr.CorrectPayment(first.ID, decimal.Zero, true, "again", admin())
		assert.True(t, errors.Is(err, shared.ErrInvalidTransition))
	})
}

func TestPaymentRequest_Delete(t *testing.T) {
	pr := validatedRequest(t, "500", valueobject.XOF)
	p := newTransfer(t, "100", valueobject.XOF)
	_, err := pr.ApplyPayment(p)
	require.NoError(t, err)

	require.NoError(t, pr.Delete(admin(), "fraudulent"))
	assert.True(t, pr.Lifecycle.IsDeleted())
	assert.True(t, pr.Ledger.Payments[0].Frozen)

	_, err = pr.ApplyPayment(newTransfer(t, "1", valueobject.XOF))
	assert.True(t, errors.Is(err, shared.ErrEntityDeleted))
	assert.True(t, errors.Is(pr.Cancel(admin(), ""), shared.ErrEntityDeleted))
	assert.True(t, errors.Is(pr.Delete(admin(), "again"), shared.ErrEntityDeleted))
}
