package handler_test

import (
	"net/http"
	"testing"

	caisseapp "github.com/procurement/backend/internal/application/caisse"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fundRegister deposits amount XOF through an approved funding request
func (a *api) fundRegister(t *testing.T, amount string) caisseapp.TransitionResult {
	t.Helper()
	w := a.do(t, a.member, http.MethodPost, "/api/v1/caisse/funding-requests", map[string]any{
		"requester_id": a.member.ID,
		"amount":       amount,
		"reason":       "petty cash top-up",
	})
	fr := data[caisseapp.FundingRequestResponse](t, w, http.StatusCreated)

	w = a.do(t, a.admin, http.MethodPost, "/api/v1/caisse/funding-requests/"+fr.ID.String()+"/transition", map[string]any{
		"stage":    "approved",
		"transfer": map[string]any{"reference": "VIR-778", "bank": "Ecobank"},
	})
	return data[caisseapp.TransitionResult](t, w, http.StatusOK)
}

func (a *api) balance(t *testing.T, currency string) string {
	t.Helper()
	w := a.do(t, a.member, http.MethodGet, "/api/v1/caisse/balances?currency="+currency, nil)
	return data[caisseapp.BalanceResponse](t, w, http.StatusOK).Amount.String()
}

func TestCaisseHandler_FundingApproval(t *testing.T) {
	a := newAPI(t)

	result := a.fundRegister(t, "5000")
	assert.Equal(t, "PAID", result.FundingRequest.Status)
	assert.Equal(t, "FUND/2026/10/0001", result.FundingRequest.Number)
	require.NotNil(t, result.CaisseTransactionID)
	assert.Equal(t, "5000", a.balance(t, "XOF"))

	path := "/api/v1/caisse/funding-requests/" + result.FundingRequest.ID.String()
	w := a.do(t, a.admin, http.MethodPost, path+"/transition", map[string]any{"stage": "approved"})
	again := data[caisseapp.TransitionResult](t, w, http.StatusOK)
	assert.True(t, again.NoOp)
	assert.Equal(t, "5000", a.balance(t, "XOF"), "approval applies once")

	w = a.do(t, a.admin, http.MethodPost, path+"/transition", map[string]any{"stage": "rejected"})
	assert.Equal(t, "INVALID_STATE_TRANSITION", failure(t, w, http.StatusUnprocessableEntity))

	w = a.do(t, a.member, http.MethodGet, "/api/v1/caisse/funding-requests/by-number?number=FUND/2026/10/0001", nil)
	got := data[caisseapp.FundingRequestResponse](t, w, http.StatusOK)
	assert.Equal(t, result.FundingRequest.ID, got.ID)

	w = a.do(t, a.member, http.MethodGet, "/api/v1/caisse/transactions?source_type=funding_request", nil)
	txs := data[[]caisseapp.TransactionResponse](t, w, http.StatusOK)
	require.Len(t, txs, 1)
	assert.Equal(t, "FUNDING_IN", txs[0].Type)
	assert.Equal(t, *result.CaisseTransactionID, txs[0].ID)
}

func TestCaisseHandler_TransitionRequiresAdmin(t *testing.T) {
	a := newAPI(t)
	w := a.do(t, a.member, http.MethodPost, "/api/v1/caisse/funding-requests", map[string]any{
		"requester_id": a.member.ID,
		"amount":       "300",
		"currency":     "EUR",
		"reason":       "travel advance",
		"direction":    "payout",
	})
	fr := data[caisseapp.FundingRequestResponse](t, w, http.StatusCreated)
	path := "/api/v1/caisse/funding-requests/" + fr.ID.String() + "/transition"

	w = a.do(t, a.member, http.MethodPost, path, map[string]any{"stage": "approved"})
	assert.Equal(t, "FORBIDDEN", failure(t, w, http.StatusForbidden))

	w = a.do(t, a.admin, http.MethodPost, path, map[string]any{"stage": "approved"})
	assert.Equal(t, "INSUFFICIENT_FUNDS", failure(t, w, http.StatusUnprocessableEntity))

	w = a.do(t, a.admin, http.MethodPost, path, map[string]any{"stage": "rejected", "detail": "no budget"})
	rejected := data[caisseapp.TransitionResult](t, w, http.StatusOK)
	assert.Equal(t, "REJECTED", rejected.FundingRequest.Status)

	w = a.do(t, a.member, http.MethodGet, "/api/v1/caisse/funding-requests?stage=REJECTED", nil)
	listed := data[[]caisseapp.FundingRequestResponse](t, w, http.StatusOK)
	require.Len(t, listed, 1)
	assert.Equal(t, fr.ID, listed[0].ID)
}

func TestCaisseHandler_AdjustAndReconcile(t *testing.T) {
	a := newAPI(t)
	adjust := map[string]any{"currency": "EUR", "delta": "90", "remark": "opening float"}

	w := a.do(t, a.member, http.MethodPost, "/api/v1/caisse/adjustments", adjust)
	assert.Equal(t, "FORBIDDEN", failure(t, w, http.StatusForbidden))

	w = a.do(t, a.admin, http.MethodPost, "/api/v1/caisse/adjustments", map[string]any{"currency": "EUR", "remark": "x"})
	assert.Equal(t, "VALIDATION_ERROR", failure(t, w, http.StatusBadRequest))

	w = a.do(t, a.admin, http.MethodPost, "/api/v1/caisse/adjustments", adjust)
	txn := data[caisseapp.TransactionResponse](t, w, http.StatusCreated)
	assert.Equal(t, "ADJUSTMENT", txn.Type)
	assert.Equal(t, "90", txn.BalanceAfter.String())

	w = a.do(t, a.member, http.MethodGet, "/api/v1/caisse/balances", nil)
	balances := data[[]caisseapp.BalanceResponse](t, w, http.StatusOK)
	require.Len(t, balances, 1)
	assert.Equal(t, "EUR", balances[0].Currency)

	w = a.do(t, a.member, http.MethodGet, "/api/v1/caisse/reconcile", nil)
	report := data[caisseapp.ReconcileResponse](t, w, http.StatusOK)
	assert.True(t, report.Consistent)

	require.NoError(t, a.db.Exec("UPDATE caisse_balances SET amount = 95 WHERE currency = 'EUR'").Error)
	w = a.do(t, a.member, http.MethodGet, "/api/v1/caisse/reconcile", nil)
	report = data[caisseapp.ReconcileResponse](t, w, http.StatusOK)
	assert.False(t, report.Consistent)
	require.Len(t, report.Drifts, 1)
	assert.Equal(t, "5", report.Drifts[0].Difference.String())
}
