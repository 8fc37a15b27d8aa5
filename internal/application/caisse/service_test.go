package caisse

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/procurement/backend/internal/application/unitofwork"
	"github.com/procurement/backend/internal/domain/sequence"
	"github.com/procurement/backend/internal/domain/shared"
	"github.com/procurement/backend/internal/domain/shared/valueobject"
	"github.com/procurement/backend/internal/infrastructure/persistence"
	"github.com/procurement/backend/tests/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type fixture struct {
	db      *gorm.DB
	service *Service
	outbox  *testutil.RecordingOutbox
	member  shared.Actor
	admin   shared.Actor
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	db := testutil.NewSQLiteDB(t)
	outbox := testutil.NewRecordingOutbox()
	issuer := sequence.NewIssuer(persistence.NewGormSequenceGenerator(db)).WithClock(func() time.Time {
		return time.Date(2026, time.October, 16, 8, 0, 0, 0, time.UTC)
	})
	service := NewService(
		persistence.NewGormTransactionScope(db, outbox),
		persistence.NewGormFundingRequestRepository(db),
		persistence.NewGormCaisseLedger(db),
		issuer,
		nil,
	)
	service.SetRetryPolicy(unitofwork.RetryPolicy{MaxAttempts: 1, InitialInterval: time.Millisecond, MaxInterval: time.Millisecond})

	return &fixture{
		db:      db,
		service: service,
		outbox:  outbox,
		member:  testutil.TestMember(),
		admin:   testutil.TestAdmin(),
	}
}

func (f *fixture) create(t *testing.T, amount int64, currency, direction string) *FundingRequestResponse {
	t.Helper()
	fr, err := f.service.CreateFundingRequest(context.Background(), CreateFundingRequestRequest{
		RequesterID: f.member.ID,
		Amount:      decimal.NewFromInt(amount),
		Currency:    currency,
		Reason:      "petty cash top-up",
		Direction:   direction,
	})
	require.NoError(t, err)
	return fr
}

func (f *fixture) balance(t *testing.T, currency string) decimal.Decimal {
	t.Helper()
	b, err := f.service.Balance(context.Background(), currency)
	require.NoError(t, err)
	return b.Amount
}

func TestService_CreateFundingRequest(t *testing.T) {
	f := newFixture(t)

	first := f.create(t, 5000, "", "")
	second := f.create(t, 300, "usd", "payout")

	assert.Equal(t, "FUND/2026/10/0001", first.Number)
	assert.Equal(t, "FUND/2026/10/0002", second.Number)
	assert.Equal(t, "XOF", first.Currency)
	assert.Equal(t, "deposit", first.Direction)
	assert.Equal(t, "payout", second.Direction)
	assert.Equal(t, "initial_request", first.Stage)
	assert.Equal(t, "INITIAL", first.Status)
	require.Len(t, first.History, 1)
	assert.Equal(t, f.member.ID, first.History[0].ActorID)
	assert.False(t, first.Changed)

	_, err := f.service.CreateFundingRequest(context.Background(), CreateFundingRequestRequest{
		RequesterID: f.member.ID, Amount: decimal.NewFromInt(10), Reason: "x", Direction: "sideways",
	})
	assert.ErrorIs(t, err, shared.ErrInvalidInput)

	_, err = f.service.CreateFundingRequest(context.Background(), CreateFundingRequestRequest{
		RequesterID: f.member.ID, Amount: decimal.Zero, Reason: "x",
	})
	assert.ErrorIs(t, err, shared.ErrInvalidAmount)
}

func TestService_ApproveDeposit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	fr := f.create(t, 5000, "XOF", "")

	_, err := f.service.Transition(ctx, fr.ID, f.member, TransitionRequest{Stage: "approved"})
	assert.ErrorIs(t, err, shared.ErrForbidden)

	result, err := f.service.Transition(ctx, fr.ID, f.admin, TransitionRequest{
		Stage:    "approved",
		Detail:   "cash counted",
		Transfer: &TransferInput{Reference: "VIR-778", Bank: "Ecobank"},
	})
	require.NoError(t, err)
	assert.False(t, result.NoOp)
	require.NotNil(t, result.CaisseTransactionID)
	assert.Equal(t, "PAID", result.FundingRequest.Status)
	assert.True(t, result.FundingRequest.Changed)
	require.NotNil(t, result.FundingRequest.Disbursement)
	assert.Equal(t, "transfer", result.FundingRequest.Disbursement.Method)
	assert.Equal(t, f.admin.ID, result.FundingRequest.Disbursement.ApproverID)
	assert.Len(t, result.FundingRequest.History, 2)

	assert.True(t, decimal.NewFromInt(5000).Equal(f.balance(t, "XOF")))

	txns, total, err := f.service.Transactions(ctx, TransactionListFilter{SourceType: "funding_request"})
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	assert.Equal(t, "FUNDING_IN", txns[0].Type)
	assert.Equal(t, fr.Number, txns[0].Reference)
	assert.Equal(t, *result.CaisseTransactionID, txns[0].ID)
}

func TestService_ApprovalAppliedAtMostOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	fr := f.create(t, 1200, "XOF", "")

	first, err := f.service.Transition(ctx, fr.ID, f.admin, TransitionRequest{Stage: "approved"})
	require.NoError(t, err)
	require.False(t, first.NoOp)

	again, err := f.service.Transition(ctx, fr.ID, f.admin, TransitionRequest{Stage: "approved"})
	require.NoError(t, err)
	assert.True(t, again.NoOp)
	assert.Nil(t, again.CaisseTransactionID)
	assert.Equal(t, first.FundingRequest.Version, again.FundingRequest.Version)

	assert.True(t, decimal.NewFromInt(1200).Equal(f.balance(t, "XOF")))
	_, total, err := f.service.Transactions(ctx, TransactionListFilter{Type: "funding_in"})
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)

	_, err = f.service.Transition(ctx, fr.ID, f.admin, TransitionRequest{Stage: "rejected"})
	assert.ErrorIs(t, err, shared.ErrInvalidTransition)
}

func TestService_ConcurrentApprovalsApplyOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	fr := f.create(t, 700, "EUR", "")
	f.service.SetRetryPolicy(unitofwork.RetryPolicy{MaxAttempts: 5, InitialInterval: time.Millisecond, MaxInterval: 5 * time.Millisecond})

	const workers = 4
	errs := make(chan error, workers)
	for range workers {
		go func() {
			_, err := f.service.Transition(ctx, fr.ID, f.admin, TransitionRequest{Stage: "approved"})
			errs <- err
		}()
	}
	for range workers {
		err := <-errs
		if err != nil {
			assert.True(t, errors.Is(err, shared.ErrConcurrencyConflict), "unexpected error: %v", err)
		}
	}

	assert.True(t, decimal.NewFromInt(700).Equal(f.balance(t, "EUR")))
	_, total, err := f.service.Transactions(ctx, TransactionListFilter{Currency: "EUR"})
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
}

func TestService_CorrectThenApprove(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	fr := f.create(t, 1000, "XOF", "")
	corrected := decimal.NewFromInt(800)

	_, err := f.service.Transition(ctx, fr.ID, f.admin, TransitionRequest{Stage: "approved", CorrectedAmount: &corrected})
	assert.ErrorIs(t, err, shared.ErrInvalidInput)

	result, err := f.service.Transition(ctx, fr.ID, f.admin, TransitionRequest{
		Stage: "corrected", Detail: "only 800 available", CorrectedAmount: &corrected,
	})
	require.NoError(t, err)
	assert.Equal(t, "PENDING", result.FundingRequest.Status)
	assert.Nil(t, result.CaisseTransactionID)
	assert.True(t, corrected.Equal(result.FundingRequest.EffectiveAmount))

	_, err = f.service.Transition(ctx, fr.ID, f.admin, TransitionRequest{Stage: "corrected"})
	assert.ErrorIs(t, err, shared.ErrInvalidTransition)

	approved, err := f.service.Transition(ctx, fr.ID, f.admin, TransitionRequest{
		Stage:  "approved",
		Cheque: &ChequeInput{Number: "CHQ-0042", Bank: "SGBS"},
	})
	require.NoError(t, err)
	assert.Equal(t, "cheque", approved.FundingRequest.Disbursement.Method)
	assert.True(t, decimal.NewFromInt(800).Equal(f.balance(t, "XOF")))
}

func TestService_PayoutNeedsFunds(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	payout := f.create(t, 400, "XOF", "payout")

	_, err := f.service.Transition(ctx, payout.ID, f.admin, TransitionRequest{Stage: "approved"})
	assert.ErrorIs(t, err, shared.ErrInsufficientFunds)

	unchanged, err := f.service.GetFundingRequest(ctx, payout.ID)
	require.NoError(t, err)
	assert.Equal(t, "initial_request", unchanged.Stage)
	assert.False(t, unchanged.Changed)

	_, err = f.service.AdminAdjust(ctx, f.admin, AdjustBalanceRequest{Currency: "XOF", Delta: decimal.NewFromInt(500), Remark: "opening float"})
	require.NoError(t, err)

	result, err := f.service.Transition(ctx, payout.ID, f.admin, TransitionRequest{Stage: "approved"})
	require.NoError(t, err)
	assert.Equal(t, "PAID", result.FundingRequest.Status)
	assert.True(t, decimal.NewFromInt(100).Equal(f.balance(t, "XOF")))

	txns, _, err := f.service.Transactions(ctx, TransactionListFilter{Type: "FUNDING_OUT"})
	require.NoError(t, err)
	require.Len(t, txns, 1)
	assert.True(t, decimal.NewFromInt(-400).Equal(txns[0].Amount))
	assert.True(t, decimal.NewFromInt(100).Equal(txns[0].BalanceAfter))
}

func TestService_Reject(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	fr := f.create(t, 100, "XOF", "")

	result, err := f.service.Transition(ctx, fr.ID, f.admin, TransitionRequest{Stage: "rejected", Detail: "not justified"})
	require.NoError(t, err)
	assert.Equal(t, "REJECTED", result.FundingRequest.Status)
	assert.Equal(t, "not justified", result.FundingRequest.History[1].Detail)

	_, err = f.service.Transition(ctx, fr.ID, f.admin, TransitionRequest{Stage: "approved"})
	assert.ErrorIs(t, err, shared.ErrInvalidTransition)

	_, err = f.service.Transition(ctx, fr.ID, f.admin, TransitionRequest{Stage: "teleported"})
	assert.ErrorIs(t, err, shared.ErrInvalidInput)

	changes := f.outbox.EventsOfType(shared.EventTypeEntityStateChanged)
	require.Len(t, changes, 2)
	last := changes[1].(*shared.EntityStateChangedEvent)
	assert.Equal(t, "INITIAL", last.PreviousState)
	assert.Equal(t, "REJECTED", last.NewState)
}

func TestService_AdminAdjust(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.service.AdminAdjust(ctx, f.member, AdjustBalanceRequest{Currency: "XOF", Delta: decimal.NewFromInt(10), Remark: "float"})
	assert.ErrorIs(t, err, shared.ErrForbidden)

	_, err = f.service.AdminAdjust(ctx, f.admin, AdjustBalanceRequest{Currency: "XOF", Delta: decimal.Zero, Remark: "float"})
	assert.ErrorIs(t, err, shared.ErrInvalidAmount)

	_, err = f.service.AdminAdjust(ctx, f.admin, AdjustBalanceRequest{Currency: "BTC", Delta: decimal.NewFromInt(1), Remark: "float"})
	assert.ErrorIs(t, err, shared.ErrInvalidInput)

	_, err = f.service.AdminAdjust(ctx, f.admin, AdjustBalanceRequest{Currency: "XOF", Delta: decimal.NewFromInt(-1), Remark: "shrinkage"})
	assert.ErrorIs(t, err, shared.ErrInsufficientFunds)

	txn, err := f.service.AdminAdjust(ctx, f.admin, AdjustBalanceRequest{Currency: "gnf", Delta: decimal.NewFromInt(250000), Remark: "opening float"})
	require.NoError(t, err)
	assert.Equal(t, "ADJUSTMENT", txn.Type)
	assert.Equal(t, "MANUAL", txn.SourceType)
	assert.Equal(t, f.admin.ID, txn.OperatorID)
	assert.True(t, decimal.NewFromInt(250000).Equal(txn.BalanceAfter))
}

func TestService_AdminAdjustFractional(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for _, delta := range []string{"0.1", "0.2"} {
		_, err := f.service.AdminAdjust(ctx, f.admin, AdjustBalanceRequest{Currency: "EUR", Delta: decimal.RequireFromString(delta), Remark: "coins"})
		require.NoError(t, err)
	}
	assert.Equal(t, "0.3", f.balance(t, "EUR").String())

	_, err := f.service.AdminAdjust(ctx, f.admin, AdjustBalanceRequest{Currency: "EUR", Delta: decimal.RequireFromString("0.005"), Remark: "coins"})
	assert.ErrorIs(t, err, shared.ErrInvalidAmount)
	_, err = f.service.AdminAdjust(ctx, f.admin, AdjustBalanceRequest{Currency: "XOF", Delta: decimal.RequireFromString("10.00005"), Remark: "coins"})
	assert.ErrorIs(t, err, shared.ErrInvalidAmount)

	report, err := f.service.Reconcile(ctx)
	require.NoError(t, err)
	assert.True(t, report.Consistent)
}

func TestService_BalancesAndReconcile(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.service.EnsureCurrencies(ctx, []valueobject.Currency{valueobject.XOF, valueobject.EUR}))
	require.NoError(t, f.service.EnsureCurrencies(ctx, []valueobject.Currency{valueobject.XOF}))
	assert.ErrorIs(t, f.service.EnsureCurrencies(ctx, []valueobject.Currency{"BTC"}), shared.ErrInvalidInput)

	balances, err := f.service.Balances(ctx)
	require.NoError(t, err)
	require.Len(t, balances, 2)
	assert.Equal(t, "EUR", balances[0].Currency)
	assert.True(t, balances[1].Amount.IsZero())

	assert.True(t, f.balance(t, "USD").IsZero(), "an unused currency holds zero")

	_, err = f.service.AdminAdjust(ctx, f.admin, AdjustBalanceRequest{Currency: "EUR", Delta: decimal.NewFromInt(90), Remark: "float"})
	require.NoError(t, err)

	report, err := f.service.Reconcile(ctx)
	require.NoError(t, err)
	assert.True(t, report.Consistent)

	require.NoError(t, f.db.Exec("UPDATE caisse_balances SET amount = 95 WHERE currency = 'EUR'").Error)

	report, err = f.service.Reconcile(ctx)
	require.NoError(t, err)
	assert.False(t, report.Consistent)
	require.Len(t, report.Drifts, 1)
	assert.Equal(t, "EUR", report.Drifts[0].Currency)
	assert.True(t, decimal.NewFromInt(5).Equal(report.Drifts[0].Difference))
}

func TestService_ListFundingRequests(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	first := f.create(t, 100, "XOF", "")
	f.create(t, 200, "XOF", "")
	_, err := f.service.Transition(ctx, first.ID, f.admin, TransitionRequest{Stage: "rejected"})
	require.NoError(t, err)

	rejected, total, err := f.service.ListFundingRequests(ctx, FundingRequestListFilter{Stage: "REJECTED"})
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	assert.Equal(t, first.ID, rejected[0].ID)

	searched, total, err := f.service.ListFundingRequests(ctx, FundingRequestListFilter{Search: "0002"})
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	assert.Equal(t, "FUND/2026/10/0002", searched[0].Number)

	byNumber, err := f.service.GetFundingRequestByNumber(ctx, "FUND/2026/10/0001")
	require.NoError(t, err)
	assert.Equal(t, first.ID, byNumber.ID)

	_, err = f.service.GetFundingRequest(ctx, uuid.New())
	assert.ErrorIs(t, err, shared.ErrNotFound)

	_, _, err = f.service.ListFundingRequests(ctx, FundingRequestListFilter{Stage: "limbo"})
	assert.ErrorIs(t, err, shared.ErrInvalidInput)
}
