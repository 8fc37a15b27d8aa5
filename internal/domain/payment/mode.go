// Package payment holds payment records and the arithmetic that derives paid,
// remaining and status from them.
package payment

import (
	"strings"

	"github.com/procurement/backend/internal/domain/shared"
)

// Mode is the payment method
type Mode string

const (
	ModeCash        Mode = "CASH"
	ModeCheck       Mode = "CHECK"
	ModeTransfer    Mode = "TRANSFER"
	ModeMobileMoney Mode = "MOBILE_MONEY"
	ModeCard        Mode = "CARD"
	ModeOther       Mode = "OTHER"
)

// AllModes returns every supported payment mode
func AllModes() []Mode {
	return []Mode{ModeCash, ModeCheck, ModeTransfer, ModeMobileMoney, ModeCard, ModeOther}
}

// ParseMode accepts any casing and "-" or "_" separators ("mobile-money")
func ParseMode(s string) (Mode, error) {
	m := Mode(strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(s), "-", "_")))
	if !m.IsValid() {
		return "", shared.NewDomainError("INVALID_INPUT", "unsupported payment mode: "+s)
	}
	return m, nil
}

// IsValid checks if the mode is supported
func (m Mode) IsValid() bool {
	switch m {
	case ModeCash, ModeCheck, ModeTransfer, ModeMobileMoney, ModeCard, ModeOther:
		return true
	}
	return false
}

// String returns the string representation of Mode
func (m Mode) String() string {
	return string(m)
}

// DrawsFromCaisse returns true if paying with this mode takes money out of the
// cash register
func (m Mode) DrawsFromCaisse() bool {
	return m == ModeCash
}
