// Package apperrors defines the error taxonomy surfaced to API callers.
package apperrors

import (
	"errors"
	"fmt"
	"net/http"
)

// AppError is an error with a machine-readable code and the HTTP status it maps to.
type AppError struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	StatusCode int    `json:"-"`
	Details    any    `json:"details,omitempty"`
}

func (e *AppError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// WithMessage returns a copy of the error with a custom message.
func (e *AppError) WithMessage(message string) *AppError {
	return &AppError{
		Code:       e.Code,
		Message:    message,
		StatusCode: e.StatusCode,
		Details:    e.Details,
	}
}

// WithDetails returns a copy of the error with additional details.
func (e *AppError) WithDetails(details any) *AppError {
	return &AppError{
		Code:       e.Code,
		Message:    e.Message,
		StatusCode: e.StatusCode,
		Details:    details,
	}
}

// Is matches on Code so wrapped copies made by WithMessage still satisfy errors.Is.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

var (
	ErrUnauthorized = &AppError{
		Code:       "UNAUTHORIZED",
		Message:    "Missing or invalid credentials",
		StatusCode: http.StatusUnauthorized,
	}

	ErrInvalidRequest = &AppError{
		Code:       "INVALID_REQUEST",
		Message:    "Invalid request",
		StatusCode: http.StatusBadRequest,
	}

	ErrInvalidEngine = &AppError{
		Code:       "INVALID_ENGINE",
		Message:    "Invalid engine",
		StatusCode: http.StatusBadRequest,
	}

	ErrInvalidType = &AppError{
		Code:       "INVALID_TYPE",
		Message:    "Engine does not support this generation type",
		StatusCode: http.StatusBadRequest,
	}

	ErrInvalidParams = &AppError{
		Code:       "INVALID_PARAMS",
		Message:    "Invalid generation parameters",
		StatusCode: http.StatusBadRequest,
	}

	ErrLimitReached = &AppError{
		Code:       "LIMIT_REACHED",
		Message:    "Free trial limit reached. Please upgrade to continue generating.",
		StatusCode: http.StatusForbidden,
	}

	ErrNotFound = &AppError{
		Code:       "NOT_FOUND",
		Message:    "Resource not found",
		StatusCode: http.StatusNotFound,
	}

	ErrConflict = &AppError{
		Code:       "CONFLICT",
		Message:    "Resource already exists",
		StatusCode: http.StatusConflict,
	}

	ErrRateLimited = &AppError{
		Code:       "RATE_LIMITED",
		Message:    "Too many requests. Please try again later.",
		StatusCode: http.StatusTooManyRequests,
	}

	ErrDB = &AppError{
		Code:       "DB_ERROR",
		Message:    "A storage error occurred",
		StatusCode: http.StatusInternalServerError,
	}

	ErrInternal = &AppError{
		Code:       "INTERNAL_ERROR",
		Message:    "An unexpected error occurred",
		StatusCode: http.StatusInternalServerError,
	}
)

// NotFound returns a not found error naming the resource.
func NotFound(resource string) *AppError {
	return ErrNotFound.WithMessage(fmt.Sprintf("%s not found", resource))
}

// DB wraps a storage failure. The cause is logged by the caller, never returned to clients.
func DB(message string) *AppError {
	return ErrDB.WithMessage(message)
}

// As converts any error into an *AppError. Unknown errors become ErrInternal.
func As(err error) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return ErrInternal
}
