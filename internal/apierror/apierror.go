package apierror

import (
	"fmt"
	"net/http"

	"github.com/sirupsen/logrus"
)

type ErrorCode string

const (
	ErrNotFound         ErrorCode = "NOT_FOUND"
	ErrConflict         ErrorCode = "CONFLICT"
	ErrBadRequest       ErrorCode = "BAD_REQUEST"
	ErrInvalidInput     ErrorCode = "INVALID_INPUT"
	ErrRateLimited      ErrorCode = "RATE_LIMITED"
	ErrAlreadyScheduled ErrorCode = "ALREADY_SCHEDULED"
	ErrAlreadyResolved  ErrorCode = "ALREADY_RESOLVED"
	ErrInternalServer   ErrorCode = "INTERNAL_SERVER_ERROR"
)

type APIError struct {
	Code    ErrorCode   `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

func (e APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func NewAPIError(code ErrorCode, message string, details interface{}) APIError {
	logrus.Error(details)
	return APIError{
		Code:    code,
		Message: message,
		Details: details,
	}
}

// Is reports whether err is an APIError carrying the given code. The
// idempotency guards (ALREADY_SCHEDULED, ALREADY_RESOLVED) are matched this
// way by callers that treat them as no-ops.
func Is(err error, code ErrorCode) bool {
	apiErr, ok := err.(APIError)
	return ok && apiErr.Code == code
}

func MapErrorToHTTPStatus(err error) int {
	if apiErr, ok := err.(APIError); ok {
		switch apiErr.Code {
		case ErrNotFound:
			return http.StatusNotFound
		case ErrConflict, ErrAlreadyScheduled, ErrAlreadyResolved:
			return http.StatusConflict
		case ErrInvalidInput:
			return http.StatusBadRequest
		case ErrRateLimited:
			return http.StatusTooManyRequests
		case ErrInternalServer:
			return http.StatusInternalServerError
		default:
			return http.StatusInternalServerError
		}
	}
	return http.StatusInternalServerError
}
