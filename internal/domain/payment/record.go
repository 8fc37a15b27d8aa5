package payment

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/procurement/backend/internal/domain/shared"
	"github.com/procurement/backend/internal/domain/shared/valueobject"
	"github.com/shopspring/decimal"
)

// ProofKind distinguishes uploaded files from external links
type ProofKind string

const (
	ProofFile ProofKind = "FILE"
	ProofURL  ProofKind = "URL"
)

// Proof references evidence of a payment: an object storage key or a URL
type Proof struct {
	Kind ProofKind `json:"kind"`
	Ref  string    `json:"ref"`
}

// ProofFromRef classifies a raw reference as URL or stored file
func ProofFromRef(ref string) Proof {
	ref = strings.TrimSpace(ref)
	if strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://") {
		return Proof{Kind: ProofURL, Ref: ref}
	}
	return Proof{Kind: ProofFile, Ref: ref}
}

// Correction records an explicit amendment of an applied payment
type Correction struct {
	PreviousAmount decimal.Decimal `json:"previous_amount"`
	Voided         bool            `json:"voided"`
	Reason         string          `json:"reason"`
	CorrectedBy    uuid.UUID       `json:"corrected_by"`
	CorrectedAt    time.Time       `json:"corrected_at"`
}

// Payment is an applied payment. Records are appended and only amended through
// an explicit correction.
type Payment struct {
	ID          uuid.UUID            `json:"id"`
	Mode        Mode                 `json:"mode"`
	Amount      decimal.Decimal      `json:"amount"`
	Currency    valueobject.Currency `json:"currency"`
	Title       string               `json:"title"`
	Proofs      []Proof              `json:"proofs"`
	Details     Details              `json:"details"`
	SubmittedBy uuid.UUID            `json:"submitted_by"`
	SubmittedAt time.Time            `json:"submitted_at"`
	StatusAfter Status               `json:"status_after"`
	Corrections []Correction         `json:"corrections,omitempty"`
	Frozen      bool                 `json:"frozen"`
}

// NewPayment validates the input and builds a payment record
func NewPayment(mode Mode, amount valueobject.Money, title string, proofRefs []string, details Details, submittedBy uuid.UUID) (*Payment, error) {
	if !mode.IsValid() {
		return nil, shared.NewDomainError("INVALID_INPUT", "unsupported payment mode: "+mode.String())
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
	if submittedBy == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_INPUT", "Submitter cannot be empty")
	}
	if len(title) > 200 {
		return nil, shared.NewDomainError("INVALID_INPUT", "Payment title cannot exceed 200 characters")
	}
	if err := details.ValidateFor(mode); err != nil {
		return nil, err
	}

	proofs := make([]Proof, 0, len(proofRefs))
	for _, ref := range proofRefs {
		if strings.TrimSpace(ref) == "" {
			continue
		}
		proofs = append(proofs, ProofFromRef(ref))
	}

	return &Payment{
		ID:          uuid.New(),
		Mode:        mode,
		Amount:      amount.Amount(),
		Currency:    amount.Currency(),
		Title:       title,
		Proofs:      proofs,
		Details:     details,
		SubmittedBy: submittedBy,
		SubmittedAt: time.Now(),
		StatusAfter: StatusUnpaid,
	}, nil
}

// Money returns the payment amount as Money
func (p Payment) Money() valueobject.Money {
	m, _ := valueobject.NewMoney(p.Amount, p.Currency)
	return m
}

// IsVoided returns true if a correction voided the payment
func (p Payment) IsVoided() bool {
	for _, c := range p.Corrections {
		if c.Voided {
			return true
		}
	}
	return false
}

// Payments is the ordered payment list stored as a JSON column
type Payments []Payment

// Value implements driver.Valuer interface for GORM to store as JSONB
func (p Payments) Value() (driver.Value, error) {
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
func (p *Payments) Scan(value any) error {
	if value == nil {
		*p = Payments{}
		return nil
	}

	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return errors.New("failed to scan Payments: unsupported type")
	}

	if len(bytes) == 0 {
		*p = Payments{}
		return nil
	}

	return json.Unmarshal(bytes, p)
}
