package payment

import (
	"github.com/procurement/backend/internal/domain/shared"
)

// CashDetails describes a cash hand-over
type CashDetails struct {
	ReceivedBy string `json:"received_by,omitempty"`
}

// CheckDetails describes a cheque payment
type CheckDetails struct {
	Number string `json:"number"`
	Bank   string `json:"bank"`
	Payee  string `json:"payee,omitempty"`
}

// TransferDetails describes a bank transfer
type TransferDetails struct {
	Reference     string `json:"reference"`
	Bank          string `json:"bank,omitempty"`
	AccountNumber string `json:"account_number,omitempty"`
}

// MobileMoneyDetails describes a mobile money transfer
type MobileMoneyDetails struct {
	Provider      string `json:"provider"`
	PhoneNumber   string `json:"phone_number,omitempty"`
	TransactionID string `json:"transaction_id"`
}

// CardDetails describes a card payment
type CardDetails struct {
	Last4   string `json:"last4,omitempty"`
	Network string `json:"network,omitempty"`
}

// OtherDetails describes any other payment method
type OtherDetails struct {
	Description string `json:"description"`
}

// Details is a tagged union keyed by Mode: exactly the variant matching the
// payment mode may be set.
type Details struct {
	Cash        *CashDetails        `json:"cash,omitempty"`
	Check       *CheckDetails       `json:"check,omitempty"`
	Transfer    *TransferDetails    `json:"transfer,omitempty"`
	MobileMoney *MobileMoneyDetails `json:"mobile_money,omitempty"`
	Card        *CardDetails        `json:"card,omitempty"`
	Other       *OtherDetails       `json:"other,omitempty"`
}

// set returns the modes whose variant is populated
func (d Details) set() []Mode {
	var modes []Mode
	if d.Cash != nil {
		modes = append(modes, ModeCash)
	}
	if d.Check != nil {
		modes = append(modes, ModeCheck)
	}
	if d.Transfer != nil {
		modes = append(modes, ModeTransfer)
	}
	if d.MobileMoney != nil {
		modes = append(modes, ModeMobileMoney)
	}
	if d.Card != nil {
		modes = append(modes, ModeCard)
	}
	if d.Other != nil {
		modes = append(modes, ModeOther)
	}
	return modes
}

// ValidateFor checks the details against the payment mode and fills in the
// empty variant for modes whose fields are all optional.
func (d *Details) ValidateFor(mode Mode) error {
	modes := d.set()
	if len(modes) > 1 || (len(modes) == 1 && modes[0] != mode) {
		return shared.NewDomainError("INVALID_PAYMENT_DETAILS", "payment details do not match mode "+mode.String())
	}

	switch mode {
	case ModeCash:
		if d.Cash == nil {
			d.Cash = &CashDetails{}
		}
	case ModeCard:
		if d.Card == nil {
			d.Card = &CardDetails{}
		}
	case ModeCheck:
		if d.Check == nil || d.Check.Number == "" || d.Check.Bank == "" {
			return shared.NewDomainError("INVALID_PAYMENT_DETAILS", "cheque payments require a cheque number and bank")
		}
	case ModeTransfer:
		if d.Transfer == nil || d.Transfer.Reference == "" {
			return shared.NewDomainError("INVALID_PAYMENT_DETAILS", "transfers require a reference")
		}
	case ModeMobileMoney:
		if d.MobileMoney == nil || d.MobileMoney.Provider == "" || d.MobileMoney.TransactionID == "" {
			return shared.NewDomainError("INVALID_PAYMENT_DETAILS", "mobile money payments require a provider and transaction ID")
		}
	case ModeOther:
		if d.Other == nil || d.Other.Description == "" {
			return shared.NewDomainError("INVALID_PAYMENT_DETAILS", "other payments require a description")
		}
	default:
		return shared.NewDomainError("INVALID_INPUT", "unsupported payment mode: "+mode.String())
	}
	return nil
}
