package procurement

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/procurement/backend/internal/application/usecase"
	"github.com/procurement/backend/internal/domain/caisse"
	"github.com/procurement/backend/internal/domain/payment"
	"github.com/procurement/backend/internal/domain/shared/valueobject"
)

// newPayment builds a payment record from a submission
func newPayment(req SubmitPaymentRequest, submitter uuid.UUID) (*payment.Payment, error) {
	mode, err := payment.ParseMode(req.Mode)
	if err != nil {
		return nil, err
	}
	currency, err := valueobject.ParseCurrency(req.Currency)
	if err != nil {
		return nil, usecase.InvalidInput(err)
	}
	amount, err := valueobject.NewMoney(req.Amount, currency)
	if err != nil {
		return nil, usecase.InvalidInput(err)
	}
	return payment.NewPayment(mode, amount, strings.TrimSpace(req.Title), req.ProofRefs, req.Details, submitter)
}

// source identifies the document a register movement belongs to
type source struct {
	Type      caisse.SourceType
	ID        uuid.UUID
	Reference string
}

// reserveCash withdraws a cash payment from the register. Other modes leave
// the register untouched and return a nil transaction.
func reserveCash(ctx context.Context, ledger caisse.Ledger, p *payment.Payment, src source) (*caisse.Transaction, error) {
	if !p.Mode.DrawsFromCaisse() {
		return nil, nil
	}
	m, err := caisse.NewMovement(p.Currency, p.Amount.Neg(), caisse.TransactionTypePayment, src.Type, p.SubmittedBy)
	if err != nil {
		return nil, err
	}
	m.WithSource(src.ID, src.Reference).WithPaymentMethod(p.Mode.String()).WithRemark(p.Title)
	return ledger.Adjust(ctx, m)
}

// settleCorrection moves register cash by the opposite of the change in paid
// amount: a reduction is refunded, an increase is reserved.
func settleCorrection(ctx context.Context, ledger caisse.Ledger, adj payment.Adjustment, src source, operatorID uuid.UUID, reason string) (*caisse.Transaction, error) {
	if !adj.Payment.Mode.DrawsFromCaisse() || adj.Delta.IsZero() {
		return nil, nil
	}
	txType := caisse.TransactionTypePaymentReversal
	if adj.Delta.IsPositive() {
		txType = caisse.TransactionTypePayment
	}
	m, err := caisse.NewMovement(adj.Payment.Currency, adj.Delta.Neg(), txType, src.Type, operatorID)
	if err != nil {
		return nil, err
	}
	m.WithSource(src.ID, src.Reference).WithPaymentMethod(adj.Payment.Mode.String()).WithRemark(reason)
	return ledger.Adjust(ctx, m)
}

func transactionID(txn *caisse.Transaction) *uuid.UUID {
	if txn == nil {
		return nil
	}
	id := txn.ID
	return &id
}
