package dto

import "net/http"

// Codes produced by the HTTP layer itself. Domain failures keep the code of
// their shared.DomainError.
const (
	ErrCodeInternal        = "INTERNAL_ERROR"
	ErrCodeValidation      = "VALIDATION_ERROR"
	ErrCodeBadRequest      = "BAD_REQUEST"
	ErrCodeActorRequired   = "ACTOR_REQUIRED"
	ErrCodeRateLimited     = "RATE_LIMITED"
	ErrCodeRequestTooLarge = "REQUEST_TOO_LARGE"
	ErrCodeRouteNotFound   = "ROUTE_NOT_FOUND"
	ErrCodeForbidden       = "FORBIDDEN"
)

var statusByCode = map[string]int{
	"NOT_FOUND":          http.StatusNotFound,
	ErrCodeRouteNotFound: http.StatusNotFound,

	"INVALID_INPUT":     http.StatusBadRequest,
	"INVALID_AMOUNT":    http.StatusBadRequest,
	"INVALID_INDEX":     http.StatusBadRequest,
	"CURRENCY_MISMATCH": http.StatusBadRequest,
	ErrCodeValidation:   http.StatusBadRequest,
	ErrCodeBadRequest:   http.StatusBadRequest,

	ErrCodeActorRequired: http.StatusUnauthorized,
	ErrCodeForbidden:     http.StatusForbidden,

	"INSUFFICIENT_FUNDS":       http.StatusUnprocessableEntity,
	"INVALID_STATE_TRANSITION": http.StatusUnprocessableEntity,
	"ALREADY_VALIDATED":        http.StatusUnprocessableEntity,
	"CANNOT_REMOVE_VALIDATED":  http.StatusUnprocessableEntity,
	"NOT_AUTHORIZED":           http.StatusUnprocessableEntity,
	"ENTITY_DELETED":           http.StatusUnprocessableEntity,

	"CONCURRENCY_CONFLICT": http.StatusConflict,
	"DUPLICATE_IDENTIFIER": http.StatusConflict,

	ErrCodeRequestTooLarge: http.StatusRequestEntityTooLarge,
	ErrCodeRateLimited:     http.StatusTooManyRequests,
	"STORAGE_UNAVAILABLE":  http.StatusServiceUnavailable,
}

// HTTPStatus returns the status for an error code; unknown codes are 500
func HTTPStatus(code string) int {
	if status, ok := statusByCode[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}
