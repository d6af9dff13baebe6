// Package apperrors defines the API error envelope, adapted from the
// teacher's src/errors/errors.go to the event-sourced wallet domain.
package apperrors

import (
	"fmt"
	"net/http"
)

type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"-"`
}

func (e APIError) Error() string {
	return e.Message
}

const (
	ErrCodeValidation             = "VALIDATION_ERROR"
	ErrCodeNotFound               = "NOT_FOUND"
	ErrCodeInternalServer        = "INTERNAL_SERVER_ERROR"
	ErrCodeRateLimit              = "RATE_LIMIT_EXCEEDED"
	ErrCodeInsufficientFunds      = "INSUFFICIENT_FUNDS"
	ErrCodeInvalidAmount          = "INVALID_AMOUNT"
	ErrCodeWalletNotFound         = "WALLET_NOT_FOUND"
	ErrCodeSelfTransfer           = "SELF_TRANSFER_NOT_ALLOWED"
	ErrCodeConcurrencyConflict    = "CONCURRENCY_CONFLICT"
	ErrCodeIdempotencyInFlight    = "IDEMPOTENCY_KEY_IN_FLIGHT"
	ErrCodeIdempotencyMismatch    = "IDEMPOTENCY_KEY_MISMATCH"
	ErrCodeTransientInfrastructure = "TRANSIENT_INFRASTRUCTURE_ERROR"
	ErrCodeCriticalCompensation   = "CRITICAL_COMPENSATION_FAILURE"
)

func NewValidationError(message string) APIError {
	return APIError{Code: ErrCodeValidation, Message: message, Status: http.StatusBadRequest}
}

func NewNotFoundError(resource string) APIError {
	return APIError{Code: ErrCodeNotFound, Message: fmt.Sprintf("%s not found", resource), Status: http.StatusNotFound}
}

func NewInternalServerError() APIError {
	return APIError{Code: ErrCodeInternalServer, Message: "internal server error", Status: http.StatusInternalServerError}
}

func NewRateLimitError() APIError {
	return APIError{Code: ErrCodeRateLimit, Message: "rate limit exceeded, please try again later", Status: http.StatusTooManyRequests}
}

func NewInsufficientFundsError() APIError {
	return APIError{Code: ErrCodeInsufficientFunds, Message: "insufficient funds for this transaction", Status: http.StatusBadRequest}
}

func NewInvalidAmountError(message string) APIError {
	return APIError{Code: ErrCodeInvalidAmount, Message: message, Status: http.StatusBadRequest}
}

func NewWalletNotFoundError() APIError {
	return APIError{Code: ErrCodeWalletNotFound, Message: "wallet not found", Status: http.StatusNotFound}
}

func NewSelfTransferError() APIError {
	return APIError{Code: ErrCodeSelfTransfer, Message: "cannot transfer to the same wallet", Status: http.StatusBadRequest}
}

// NewConcurrencyConflictError reflects spec §7's recommendation that a
// version clash on a command is a client-retryable 409, not a 500.
func NewConcurrencyConflictError() APIError {
	return APIError{
		Code:    ErrCodeConcurrencyConflict,
		Message: "wallet was modified concurrently, retry the request",
		Status:  http.StatusConflict,
	}
}

// NewIdempotencyInFlightError is returned when a second request reuses
// a key whose first request is still being processed (spec §4.6).
func NewIdempotencyInFlightError() APIError {
	return APIError{
		Code:    ErrCodeIdempotencyInFlight,
		Message: "a request with this idempotency key is already in progress",
		Status:  http.StatusConflict,
	}
}

// NewIdempotencyMismatchError is returned when a key is replayed with a
// different request body/fingerprint than the first use.
func NewIdempotencyMismatchError() APIError {
	return APIError{
		Code:    ErrCodeIdempotencyMismatch,
		Message: "idempotency key was already used with a different request",
		Status:  http.StatusUnprocessableEntity,
	}
}

func NewTransientInfrastructureError(err error) APIError {
	return APIError{
		Code:    ErrCodeTransientInfrastructure,
		Message: fmt.Sprintf("transient infrastructure error: %s", err.Error()),
		Status:  http.StatusServiceUnavailable,
	}
}

// NewCriticalCompensationError surfaces a saga stuck in COMPENSATING.
// The caller already lost money from the source wallet that was never
// returned; this is reported as a 500 with a distinct code so
// operators can alert on it separately from ordinary internal errors.
func NewCriticalCompensationError(message string) APIError {
	return APIError{
		Code:    ErrCodeCriticalCompensation,
		Message: message,
		Status:  http.StatusInternalServerError,
	}
}
