package procurement

import (
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/procurement/backend/internal/domain/shared"
	"github.com/procurement/backend/internal/domain/shared/valueobject"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewProforma(t *testing.T) {
	by := uuid.New()
	tests := []struct {
		name     string
		pname    string
		amount   string
		supplier string
		by       uuid.UUID
		wantErr  bool
	}{
		{"valid", "Quote 1", "250.50", "ACME", by, false},
		{"missing name", " ", "10", "ACME", by, true},
		{"missing supplier", "Quote", "10", "", by, true},
		{"zero amount", "Quote", "0", "ACME", by, true},
		{"negative amount", "Quote", "-5", "ACME", by, true},
		{"no attaching user", "Quote", "10", "ACME", uuid.Nil, true},
		{"more decimals than the currency has", "Quote", "250.505", "ACME", by, true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			p, err := NewProforma(tc.pname, money(t, tc.amount, valueobject.EUR), tc.supplier, []string{"", " https://a.example/q "}, nil, tc.by)
			if tc.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.False(t, p.Validated)
			assert.Equal(t, []string{"https://a.example/q"}, p.URLs)
			assert.Empty(t, p.Documents)
			assert.True(t, p.Money().Amount().Equal(decimal.RequireFromString("250.50")))
		})
	}
}

func TestOrder_ValidateProforma(t *testing.T) {
	t.Run("a second validation fails and keeps the first", func(t *testing.T) {
		o := newTestOrder(t)
		require.NoError(t, o.AttachProforma(newTestProforma(t, "A", "900", valueobject.EUR), member()))
		require.NoError(t, o.AttachProforma(newTestProforma(t, "B", "850", valueobject.EUR), member()))

		validator := admin()
		require.NoError(t, o.ValidateProforma(0, validator, "cheapest delivery"))

		err := o.ValidateProforma(1, admin(), "")
		assert.True(t, errors.Is(err, shared.ErrAlreadyValidated))

		assert.True(t, o.Proformas[0].Validated)
		assert.False(t, o.Proformas[1].Validated)
		assert.Equal(t, validator.ID, *o.Proformas[0].ValidatedBy)
		assert.Equal(t, "cheapest delivery", o.Proformas[0].Comment)
		assert.True(t, o.DueAmount().Equal(decimal.NewFromInt(900)))
	})

	t.Run("only admins validate", func(t *testing.T) {
		o := newTestOrder(t)
		require.NoError(t, o.AttachProforma(newTestProforma(t, "A", "10", valueobject.XOF), member()))
		assert.True(t, errors.Is(o.ValidateProforma(0, member(), ""), shared.ErrForbidden))
		assert.Equal(t, -1, o.Proformas.ValidatedIndex())
	})

	t.Run("index out of range", func(t *testing.T) {
		o := newTestOrder(t)
		require.NoError(t, o.AttachProforma(newTestProforma(t, "A", "10", valueobject.XOF), member()))
		for _, idx := range []int{-1, 1, 7} {
			assert.True(t, errors.Is(o.ValidateProforma(idx, admin(), ""), shared.ErrInvalidIndex), "index %d", idx)
		}
	})

	t.Run("validation recomputes the ledger against the new due amount", func(t *testing.T) {
		o := newTestOrder(t)
		_, err := o.ApplyPayment(newTransfer(t, "300", valueobject.EUR))
		require.NoError(t, err)
		require.NoError(t, o.AttachProforma(newTestProforma(t, "A", "1000", valueobject.EUR), member()))
		require.NoError(t, o.ValidateProforma(0, admin(), ""))
		assert.True(t, o.Ledger.Remaining.Equal(decimal.NewFromInt(700)))
		assert.Equal(t, "PARTIAL", o.Ledger.Status.String())
	})
}

func TestOrder_AttachAfterValidationReplacesCandidates(t *testing.T) {
	o := newTestOrder(t)
	require.NoError(t, o.AttachProforma(newTestProforma(t, "A", "100", valueobject.XOF), member()))
	require.NoError(t, o.AttachProforma(newTestProforma(t, "B", "120", valueobject.XOF), member()))
	require.NoError(t, o.AttachProforma(newTestProforma(t, "C", "130", valueobject.XOF), member()))
	require.NoError(t, o.ValidateProforma(1, admin(), ""))

	require.NoError(t, o.AttachProforma(newTestProforma(t, "D", "90", valueobject.XOF), member()))
	require.Len(t, o.Proformas, 2)
	assert.Equal(t, "B", o.Proformas[0].Name)
	assert.True(t, o.Proformas[0].Validated)
	assert.Equal(t, "D", o.Proformas[1].Name)
	assert.True(t, o.DueAmount().Equal(decimal.NewFromInt(120)))
}

func TestOrder_RemoveProforma(t *testing.T) {
	o := newTestOrder(t)
	require.NoError(t, o.AttachProforma(newTestProforma(t, "A", "100", valueobject.XOF), member()))
	require.NoError(t, o.AttachProforma(newTestProforma(t, "B", "120", valueobject.XOF), member()))
	require.NoError(t, o.AttachProforma(newTestProforma(t, "C", "130", valueobject.XOF), member()))
	require.NoError(t, o.ValidateProforma(0, admin(), ""))

	assert.True(t, errors.Is(o.RemoveProforma(0, member()), shared.ErrCannotRemoveValid))
	assert.True(t, errors.Is(o.RemoveProforma(3, member()), shared.ErrInvalidIndex))

	require.NoError(t, o.RemoveProforma(1, member()))
	require.Len(t, o.Proformas, 2)
	assert.Equal(t, "A", o.Proformas[0].Name)
	assert.Equal(t, "C", o.Proformas[1].Name)
	assert.Equal(t, "proforma_removed", lastChange(t, o.GetDomainEvents()).Action)
}

func TestProformas_ValueScan(t *testing.T) {
	ps := Proformas{*newTestProforma(t, "A", "12.5", valueobject.EUR)}
	v, err := ps.Value()
	require.NoError(t, err)

	var back Proformas
	require.NoError(t, back.Scan(v))
	require.Len(t, back, 1)
	assert.Equal(t, valueobject.EUR, back[0].Currency)
	assert.True(t, back[0].Amount.Equal(decimal.RequireFromString("12.5")))

	var empty Proformas
	require.NoError(t, empty.Scan(nil))
	assert.Error(t, empty.Scan(42))
}
