package handler_test

import (
	"net/http"
	"testing"

	procapp "github.com/procurement/backend/internal/application/procurement"
	"github.com/procurement/backend/internal/domain/shared"
	"github.com/procurement/backend/tests/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func (a *api) createPaymentRequest(t *testing.T, amount string) procapp.PaymentRequestResponse {
	t.Helper()
	w := a.do(t, a.member, http.MethodPost, "/api/v1/payment-requests", map[string]any{
		"requester_id": a.member.ID,
		"amount":       amount,
		"reason":       "courier fees",
	})
	return data[procapp.PaymentRequestResponse](t, w, http.StatusCreated)
}

func TestPaymentRequestHandler_Create(t *testing.T) {
	a := newAPI(t)

	pr := a.createPaymentRequest(t, "250")
	assert.Equal(t, "PAY/2026/10/0001", pr.Number)
	assert.Equal(t, "XOF", pr.Currency)
	assert.Equal(t, "PENDING", pr.Status)

	w := a.do(t, a.member, http.MethodPost, "/api/v1/payment-requests", map[string]any{
		"requester_id": a.member.ID,
		"amount":       "0",
		"reason":       "refund",
	})
	assert.Equal(t, "VALIDATION_ERROR", failure(t, w, http.StatusBadRequest))

	w = a.do(t, a.member, http.MethodPost, "/api/v1/payment-requests", map[string]any{
		"requester_id": a.member.ID,
		"amount":       "-5",
		"reason":       "refund",
	})
	assert.Equal(t, "INVALID_AMOUNT", failure(t, w, http.StatusBadRequest))

	w = a.do(t, a.member, http.MethodGet, "/api/v1/payment-requests/by-number?number="+pr.Number, nil)
	got := data[procapp.PaymentRequestResponse](t, w, http.StatusOK)
	assert.Equal(t, pr.ID, got.ID)
}

func TestPaymentRequestHandler_Cancel(t *testing.T) {
	a := newAPI(t)
	pr := a.createPaymentRequest(t, "100")
	path := "/api/v1/payment-requests/" + pr.ID.String()

	stranger := shared.NewActor(testutil.NewTestUUID("someone-else"))
	w := a.do(t, stranger, http.MethodPost, path+"/cancel", map[string]any{"reason": "mine now"})
	assert.Equal(t, "FORBIDDEN", failure(t, w, http.StatusForbidden))

	w = a.do(t, a.member, http.MethodPost, path+"/cancel", map[string]any{"reason": "no longer needed"})
	cancelled := data[procapp.PaymentRequestResponse](t, w, http.StatusOK)
	assert.Equal(t, "CANCELLED", cancelled.Status)
	assert.Equal(t, "no longer needed", cancelled.CancelReason)

	w = a.do(t, a.admin, http.MethodPost, path+"/authorize", nil)
	assert.Equal(t, "INVALID_STATE_TRANSITION", failure(t, w, http.StatusUnprocessableEntity))
}

func TestPaymentRequestHandler_CashPaymentDrawsRegister(t *testing.T) {
	a := newAPI(t)
	a.fundRegister(t, "800")
	pr := a.createPaymentRequest(t, "500")
	path := "/api/v1/payment-requests/" + pr.ID.String()

	for _, step := range []string{"/authorize", "/validate"} {
		w := a.do(t, a.admin, http.MethodPost, path+step, nil)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	}

	w := a.do(t, a.member, http.MethodPost, path+"/payments", map[string]any{
		"mode":     "cash",
		"amount":   "500",
		"currency": "XOF",
	})
	result := data[procapp.PaymentResult](t, w, http.StatusCreated)
	assert.Equal(t, "PAID", result.Status)
	require.NotNil(t, result.CaisseTransactionID)

	assert.Equal(t, "300", a.balance(t, "XOF"))

	w = a.do(t, a.member, http.MethodGet, path, nil)
	reloaded := data[procapp.PaymentRequestResponse](t, w, http.StatusOK)
	require.Len(t, reloaded.Payments, 1)

	w = a.do(t, a.member, http.MethodPost, path+"/payments/"+reloaded.Payments[0].ID.String()+"/correct", map[string]any{
		"amount": "400",
		"reason": "miscounted",
	})
	assert.Equal(t, "FORBIDDEN", failure(t, w, http.StatusForbidden))

	w = a.do(t, a.admin, http.MethodPost, path+"/payments/"+reloaded.Payments[0].ID.String()+"/correct", map[string]any{
		"amount": "400",
		"reason": "miscounted",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "400", a.balance(t, "XOF"), "lowering a cash payment refunds the register")
}

func TestPaymentRequestHandler_List(t *testing.T) {
	a := newAPI(t)
	first := a.createPaymentRequest(t, "100")
	a.createPaymentRequest(t, "200")

	w := a.do(t, a.member, http.MethodPost, "/api/v1/payment-requests/"+first.ID.String()+"/reject", map[string]any{"reason": "x"})
	assert.Equal(t, "FORBIDDEN", failure(t, w, http.StatusForbidden))
	w = a.do(t, a.admin, http.MethodPost, "/api/v1/payment-requests/"+first.ID.String()+"/reject", map[string]any{"reason": "over budget"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = a.do(t, a.member, http.MethodGet, "/api/v1/payment-requests?status=REJECTED", nil)
	listed := data[[]procapp.PaymentRequestResponse](t, w, http.StatusOK)
	require.Len(t, listed, 1)
	assert.Equal(t, first.ID, listed[0].ID)

	w = a.do(t, a.member, http.MethodGet, "/api/v1/payment-requests?page_size=500", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 100, decode(t, w).Meta.PageSize)
}
