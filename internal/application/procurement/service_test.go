package procurement

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/procurement/backend/internal/application/unitofwork"
	"github.com/procurement/backend/internal/domain/caisse"
	"github.com/procurement/backend/internal/domain/payment"
	"github.com/procurement/backend/internal/domain/sequence"
	"github.com/procurement/backend/internal/domain/shared"
	"github.com/procurement/backend/internal/domain/shared/valueobject"
	"github.com/procurement/backend/internal/infrastructure/persistence"
	"github.com/procurement/backend/tests/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

var testClock = func() time.Time {
	return time.Date(2026, time.October, 16, 9, 30, 0, 0, time.UTC)
}

// harness wires the services against a private SQLite database
type harness struct {
	orders   *OrderService
	requests *PaymentRequestService
	ledger   *persistence.GormCaisseLedger
	outbox   *testutil.RecordingOutbox
	member   shared.Actor
	admin    shared.Actor
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	db := testutil.NewSQLiteDB(t)
	outbox := testutil.NewRecordingOutbox()
	scope := persistence.NewGormTransactionScope(db, outbox)
	issuer := sequence.NewIssuer(persistence.NewGormSequenceGenerator(db)).WithClock(testClock)
	policy := unitofwork.RetryPolicy{MaxAttempts: 1, InitialInterval: time.Millisecond, MaxInterval: time.Millisecond}

	orders := NewOrderService(scope, persistence.NewGormOrderRepository(db), issuer, nil)
	orders.SetRetryPolicy(policy)
	requests := NewPaymentRequestService(scope, persistence.NewGormPaymentRequestRepository(db), issuer, nil)
	requests.SetRetryPolicy(policy)

	return &harness{
		orders:   orders,
		requests: requests,
		ledger:   persistence.NewGormCaisseLedger(db),
		outbox:   outbox,
		member:   testutil.TestMember(),
		admin:    testutil.TestAdmin(),
	}
}

// fund deposits amount into the register
func (h *harness) fund(t *testing.T, currency valueobject.Currency, amount int64) {
	t.Helper()
	m, err := caisse.NewMovement(currency, decimal.NewFromInt(amount), caisse.TransactionTypeAdjustment, caisse.SourceTypeManual, h.admin.ID)
	require.NoError(t, err)
	_, err = h.ledger.Adjust(context.Background(), m)
	require.NoError(t, err)
}

func (h *harness) balance(t *testing.T, currency valueobject.Currency) decimal.Decimal {
	t.Helper()
	b, err := h.ledger.Balance(context.Background(), currency)
	require.NoError(t, err)
	return b.Amount
}

func (h *harness) transactions(t *testing.T, txType caisse.TransactionType) []caisse.Transaction {
	t.Helper()
	txns, _, err := h.ledger.Transactions(context.Background(), caisse.TransactionFilter{Filter: shared.DefaultFilter(), Type: txType})
	require.NoError(t, err)
	return txns
}

func (h *harness) createOrder(t *testing.T) *OrderResponse {
	t.Helper()
	order, err := h.orders.Create(context.Background(), CreateOrderRequest{
		RequesterID: h.member.ID,
		Team:        "Operations",
		LineItems: []LineItemInput{
			{Quantity: decimal.NewFromInt(5), Unit: "ream", Description: "A4 paper"},
		},
	})
	require.NoError(t, err)
	return order
}

func cashPayment(amount int64, currency string) SubmitPaymentRequest {
	return SubmitPaymentRequest{
		Mode:     "cash",
		Amount:   decimal.NewFromInt(amount),
		Currency: currency,
		Title:    "counter payment",
	}
}

func transferPayment(amount int64, currency, reference string) SubmitPaymentRequest {
	req := SubmitPaymentRequest{
		Mode:     "transfer",
		Amount:   decimal.NewFromInt(amount),
		Currency: currency,
		Title:    "bank transfer",
	}
	req.Details.Transfer = &payment.TransferDetails{Reference: reference}
	return req
}

func testUUID(seed string) uuid.UUID {
	return testutil.NewTestUUID(seed)
}
