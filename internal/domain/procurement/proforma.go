package procurement

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/procurement/backend/internal/domain/shared"
	"github.com/procurement/backend/internal/domain/shared/valueobject"
	"github.com/shopspring/decimal"
)

// Proforma is a supplier quote attached to an order. At most one proforma per
// order is validated; its amount and currency are then frozen and become the
// order's due amount.
type Proforma struct {
	ID          uuid.UUID            `json:"id"`
	Name        string               `json:"name"`
	Amount      decimal.Decimal      `json:"amount"`
	Currency    valueobject.Currency `json:"currency"`
	Supplier    string               `json:"supplier"`
	URLs        []string             `json:"urls"`
	Documents   []string             `json:"documents"`
	AttachedBy  uuid.UUID            `json:"attached_by"`
	AttachedAt  time.Time            `json:"attached_at"`
	Validated   bool                 `json:"validated"`
	ValidatedBy *uuid.UUID           `json:"validated_by,omitempty"`
	ValidatedAt *time.Time           `json:"validated_at,omitempty"`
	Comment     string               `json:"comment,omitempty"`
	Frozen      bool                 `json:"frozen"`
}

// NewProforma validates the input and creates an unvalidated proforma
func NewProforma(name string, amount valueobject.Money, supplier string, urls, documents []string, attachedBy uuid.UUID) (*Proforma, error) {
	name = strings.TrimSpace(name)
	supplier = strings.TrimSpace(supplier)
	if name == "" {
		return nil, shared.NewDomainError("INVALID_INPUT", "Proforma name is required")
	}
	if supplier == "" {
		return nil, shared.NewDomainError("INVALID_INPUT", "Proforma supplier is required")
	}
	if !amount.IsPositive() {
		return nil, shared.ErrInvalidAmount
	}
	if !amount.Currency().IsValid() {
		return nil, shared.NewDomainError("INVALID_INPUT", "unsupported currency: "+amount.Currency().String())
	}
	if err := shared.CheckAmountScale(amount.Amount(), amount.Currency()); err != nil {
		return nil, err
	}
	if attachedBy == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_INPUT", "Attaching user cannot be empty")
	}
	return &Proforma{
		ID:         uuid.New(),
		Name:       name,
		Amount:     amount.Amount(),
		Currency:   amount.Currency(),
		Supplier:   supplier,
		URLs:       nonEmpty(urls),
		Documents:  nonEmpty(documents),
		AttachedBy: attachedBy,
		AttachedAt: time.Now(),
	}, nil
}

// Money returns the proforma amount as Money
func (p Proforma) Money() valueobject.Money {
	m, _ := valueobject.NewMoney(p.Amount, p.Currency)
	return m
}

// Proformas is stored as a JSON column
type Proformas []Proforma

// Value implements driver.Valuer interface for GORM to store as JSONB
func (p Proformas) Value() (driver.Value, error) {
	if p == nil {
		return "[]", nil
	}
	b, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner interface for GORM to read from JSONB
func (p *Proformas) Scan(value any) error {
	return scanJSON(value, p, "Proformas")
}

// ValidatedIndex returns the index of the validated proforma, or -1
func (p Proformas) ValidatedIndex() int {
	for i := range p {
		if p[i].Validated {
			return i
		}
	}
	return -1
}

// AttachProforma appends a proforma. Once a proforma has been validated the new
// attachment replaces every unvalidated one, so a single candidate survives
// next to the validated quote.
func (o *Order) AttachProforma(p *Proforma, actor shared.Actor) error {
	if err := o.ensureMutable(); err != nil {
		return err
	}
	if p == nil {
		return shared.NewDomainError("INVALID_INPUT", "proforma cannot be nil")
	}

	if idx := o.Proformas.ValidatedIndex(); idx >= 0 {
		o.Proformas = Proformas{o.Proformas[idx], *p}
	} else {
		o.Proformas = append(o.Proformas, *p)
	}

	o.touch()
	o.recordChange("proforma_attached", o.Status.String(), o.Status.String(), actor.ID)
	return nil
}

// ValidateProforma validates the proforma at index, fixing the order's due
// amount and currency.
func (o *Order) ValidateProforma(index int, validator shared.Actor, comment string) error {
	if err := o.ensureMutable(); err != nil {
		return err
	}
	if err := validator.RequireAdmin("validate proformas"); err != nil {
		return err
	}
	if index < 0 || index >= len(o.Proformas) {
		return shared.NewDomainError("INVALID_INDEX", fmt.Sprintf("proforma index %d out of range [0,%d)", index, len(o.Proformas)))
	}
	if idx := o.Proformas.ValidatedIndex(); idx >= 0 {
		return shared.NewDomainError("ALREADY_VALIDATED",
			fmt.Sprintf("proforma %q is already validated for order %s", o.Proformas[idx].Name, o.Number))
	}

	target := &o.Proformas[index]
	if err := o.Ledger.FixCurrency(target.Currency); err != nil {
		return err
	}

	now := time.Now()
	validatorID := validator.ID
	target.Validated = true
	target.ValidatedBy = &validatorID
	target.ValidatedAt = &now
	target.Comment = comment

	o.Ledger.Recompute(o.DueAmount())
	o.touch()
	o.recordChange("proforma_validated", o.Status.String(), o.Status.String(), validator.ID)
	return nil
}

// RemoveProforma removes an unvalidated proforma
func (o *Order) RemoveProforma(index int, actor shared.Actor) error {
	if err := o.ensureMutable(); err != nil {
		return err
	}
	if index < 0 || index >= len(o.Proformas) {
		return shared.NewDomainError("INVALID_INDEX", fmt.Sprintf("proforma index %d out of range [0,%d)", index, len(o.Proformas)))
	}
	if o.Proformas[index].Validated {
		return shared.NewDomainError("CANNOT_REMOVE_VALIDATED", "proforma "+o.Proformas[index].Name+" is validated")
	}

	o.Proformas = append(o.Proformas[:index:index], o.Proformas[index+1:]...)
	o.touch()
	o.recordChange("proforma_removed", o.Status.String(), o.Status.String(), actor.ID)
	return nil
}

func nonEmpty(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
