package domain

import (
	"fmt"
	"net/http"
	"strings"
)

type AppError struct {
	Code     string   `json:"code"`
	Messages []string `json:"messages"`
	HTTPCode int      `json:"-"`
}

func (e *AppError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, strings.Join(e.Messages, "; "))
}

func ErrInvalidStateTransition(externalID string) *AppError {
	return &AppError{
		Code:     "INVALID_STATE_TRANSITION",
		Messages: []string{fmt.Sprintf("Charge not in correct state to be processed, %s", externalID)},
		HTTPCode: http.StatusConflict,
	}
}

// ErrOperationInProgress carries accepted-but-pending semantics: the lock is
// held by a concurrent operation, so the request is acknowledged rather than
// failed.
func ErrOperationInProgress(operation, externalID string) *AppError {
	return &AppError{
		Code:     "OPERATION_IN_PROGRESS",
		Messages: []string{fmt.Sprintf("%s for charge already in progress, %s", operation, externalID)},
		HTTPCode: http.StatusAccepted,
	}
}

func ErrChargeExpired(operation, externalID string) *AppError {
	return &AppError{
		Code:     "CHARGE_EXPIRED",
		Messages: []string{fmt.Sprintf("%s for charge failed as already expired, %s", operation, externalID)},
		HTTPCode: http.StatusBadRequest,
	}
}

func ErrChargeNotFound(externalID string) *AppError {
	return &AppError{
		Code:     "CHARGE_NOT_FOUND",
		Messages: []string{fmt.Sprintf("Charge with id [%s] not found.", externalID)},
		HTTPCode: http.StatusNotFound,
	}
}

func ErrAccountNotFound(accountID int64) *AppError {
	return &AppError{
		Code:     "ACCOUNT_NOT_FOUND",
		Messages: []string{fmt.Sprintf("Gateway account with id [%d] not found.", accountID)},
		HTTPCode: http.StatusNotFound,
	}
}

func ErrAuthorisationTimeout() *AppError {
	return &AppError{
		Code:     "AUTHORISATION_TIMEOUT",
		Messages: []string{"Authorising the payment timed out"},
		HTTPCode: http.StatusInternalServerError,
	}
}

// ErrGatewayConnection marks transport-level failures talking to the PSP:
// retried by the capture queue, surfaced as an error for synchronous calls.
func ErrGatewayConnection(provider string, cause error) *AppError {
	return &AppError{
		Code:     "GATEWAY_CONNECTION_ERROR",
		Messages: []string{fmt.Sprintf("error communicating with %s: %v", provider, cause)},
		HTTPCode: http.StatusBadGateway,
	}
}

// ErrGatewayBusiness marks a well-formed rejection by the PSP; never retried
// automatically.
func ErrGatewayBusiness(provider, detail string) *AppError {
	return &AppError{
		Code:     "GATEWAY_BUSINESS_ERROR",
		Messages: []string{fmt.Sprintf("%s rejected the operation: %s", provider, detail)},
		HTTPCode: http.StatusPaymentRequired,
	}
}

func ErrAuthorisationRejected(externalID string) *AppError {
	return &AppError{
		Code:     "AUTHORISATION_REJECTED",
		Messages: []string{fmt.Sprintf("Authorisation for charge was declined, %s", externalID)},
		HTTPCode: http.StatusBadRequest,
	}
}

func ErrAuthorisationError(externalID string) *AppError {
	return &AppError{
		Code:     "AUTHORISATION_ERROR",
		Messages: []string{fmt.Sprintf("There was an error authorising the charge, %s", externalID)},
		HTTPCode: http.StatusPaymentRequired,
	}
}

func ErrInvalidChargeRequest(reasons []string) *AppError {
	return &AppError{
		Code:     "INVALID_CHARGE_REQUEST",
		Messages: reasons,
		HTTPCode: http.StatusBadRequest,
	}
}

func ErrUnknownProvider(provider string) *AppError {
	return &AppError{
		Code:     "UNKNOWN_PROVIDER",
		Messages: []string{fmt.Sprintf("payment provider '%s' is not supported", provider)},
		HTTPCode: http.StatusBadRequest,
	}
}

func ErrInternal(msg string) *AppError {
	return &AppError{
		Code:     "INTERNAL_ERROR",
		Messages: []string{msg},
		HTTPCode: http.StatusInternalServerError,
	}
}

// IsCode reports whether err is an AppError with the given code.
func IsCode(err error, code string) bool {
	appErr, ok := err.(*AppError)
	return ok && appErr.Code == code
}
