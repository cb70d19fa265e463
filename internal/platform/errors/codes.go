// Package errors provides structured error handling with machine-readable codes.
package errors

import "net/http"

// Code is a machine-readable error code.
type Code string

const (
	// CodeUnknown represents an unknown error.
	CodeUnknown Code = "UNKNOWN"

	// CodeValidation indicates malformed or missing request input.
	CodeValidation Code = "VALIDATION"
	// CodeInfrastructure indicates a repository or dependency failure.
	CodeInfrastructure Code = "INFRASTRUCTURE"
	// CodeNotFound indicates a requested record is missing.
	CodeNotFound Code = "NOT_FOUND"

	// Session lifecycle errors
	CodeSessionTerminal          Code = "SESSION_TERMINAL"
	CodeSessionInvalidTransition Code = "SESSION_INVALID_TRANSITION"
	CodeSessionGuardViolation    Code = "SESSION_GUARD_VIOLATION"
	CodeSessionVersionConflict   Code = "SESSION_VERSION_CONFLICT"
	CodeSessionRateLimited       Code = "SESSION_RATE_LIMITED"

	// Payment ledger errors
	CodePaymentInvalid           Code = "PAYMENT_INVALID"
	CodePaymentRefundExceedsPaid Code = "PAYMENT_REFUND_EXCEEDS_PAID"

	// Refund policy errors
	CodeRefundScheduleInvalid Code = "REFUND_SCHEDULE_INVALID"

	// Actor token errors
	CodeActorTokenInvalid Code = "ACTOR_TOKEN_INVALID"
	CodeActorTokenExpired Code = "ACTOR_TOKEN_EXPIRED"
)

// HTTPStatus maps the error code to an HTTP status for the API boundary.
func (c Code) HTTPStatus() int {
	switch c {
	case CodeValidation, CodePaymentInvalid, CodePaymentRefundExceedsPaid:
		return http.StatusBadRequest
	case CodeNotFound:
		return http.StatusNotFound
	case CodeSessionTerminal, CodeSessionInvalidTransition, CodeSessionVersionConflict:
		return http.StatusConflict
	case CodeSessionGuardViolation:
		return http.StatusUnprocessableEntity
	case CodeSessionRateLimited:
		return http.StatusTooManyRequests
	case CodeActorTokenInvalid, CodeActorTokenExpired:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}
