package shared

import (
	"errors"
	"fmt"

	"github.com/procurement/backend/internal/domain/shared/valueobject"
	"github.com/shopspring/decimal"
)

// DomainError represents a domain-level error
type DomainError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error implements the error interface
func (e *DomainError) Error() string {
	return e.Message
}

// Is reports whether target is a DomainError carrying the same code, so that
// errors.Is matches a sentinel even when the message was specialised.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// NewDomainError creates a new domain error
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
	}
}

// Common domain errors
var (
	ErrNotFound            = NewDomainError("NOT_FOUND", "Resource not found")
	ErrInvalidInput        = NewDomainError("INVALID_INPUT", "Invalid input provided")
	ErrInvalidAmount       = NewDomainError("INVALID_AMOUNT", "Amount must be positive")
	ErrCurrencyMismatch    = NewDomainError("CURRENCY_MISMATCH", "Currency does not match the entity currency")
	ErrForbidden           = NewDomainError("FORBIDDEN", "Access to this resource is forbidden")
	ErrNotAuthorized       = NewDomainError("NOT_AUTHORIZED", "Admin authorization is required before validation")
	ErrConcurrencyConflict = NewDomainError("CONCURRENCY_CONFLICT", "Resource was modified by another process")
	ErrStorageUnavailable  = NewDomainError("STORAGE_UNAVAILABLE", "Storage is temporarily unavailable")
	ErrDuplicateIdentifier = NewDomainError("DUPLICATE_IDENTIFIER", "Identifier already issued")
	ErrInsufficientFunds   = NewDomainError("INSUFFICIENT_FUNDS", "Insufficient funds in the register")
	ErrInvalidTransition   = NewDomainError("INVALID_STATE_TRANSITION", "Transition not allowed from the current state")
	ErrAlreadyValidated    = NewDomainError("ALREADY_VALIDATED", "A proforma is already validated for this order")
	ErrCannotRemoveValid   = NewDomainError("CANNOT_REMOVE_VALIDATED", "A validated proforma cannot be removed")
	ErrInvalidIndex        = NewDomainError("INVALID_INDEX", "Index out of range")
	ErrEntityDeleted       = NewDomainError("ENTITY_DELETED", "Entity has been deleted")
)

// IsRetryable reports whether err is an infrastructure failure that callers may
// retry with backoff.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrConcurrencyConflict) || errors.Is(err, ErrStorageUnavailable)
}

// CheckAmountScale rejects an amount with more fractional digits than
// currency settles in
func CheckAmountScale(amount decimal.Decimal, currency valueobject.Currency) error {
	if currency.Fits(amount) {
		return nil
	}
	return NewDomainError("INVALID_AMOUNT",
		fmt.Sprintf("%s amounts accept at most %d decimal places, got %s", currency, currency.MinorUnits(), amount))
}
