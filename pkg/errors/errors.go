package errors

import (
	"errors"
	"fmt"
)

// Domain errors - Sentinel errors for use with errors.Is()
var (
	ErrNotFound        = errors.New("resource not found")
	ErrUnauthorized    = errors.New("unauthorized")
	ErrForbidden       = errors.New("forbidden")
	ErrValidation      = errors.New("validation error")
	ErrPrecondition    = errors.New("precondition not met")
	ErrConflict        = errors.New("resource already exists")
	ErrInvalidState    = errors.New("invalid state transition")
	ErrExternalService = errors.New("external service error")
	ErrInternalServer  = errors.New("internal server error")

	ErrInvalidCredentials = errors.New("invalid credentials")
)

// Custom error type with context
type AppError struct {
	Code    string
	Message string
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// Constructors
func NotFound(msg string) *AppError {
	return &AppError{Code: "NOT_FOUND", Message: msg, Err: ErrNotFound}
}

func Unauthorized(msg string) *AppError {
	return &AppError{Code: "UNAUTHORIZED", Message: msg, Err: ErrUnauthorized}
}

func Forbidden(msg string) *AppError {
	return &AppError{Code: "FORBIDDEN", Message: msg, Err: ErrForbidden}
}

func Validation(msg string) *AppError {
	return &AppError{Code: "VALIDATION", Message: msg, Err: ErrValidation}
}

func Precondition(msg string) *AppError {
	return &AppError{Code: "PRECONDITION", Message: msg, Err: ErrPrecondition}
}

func Conflict(msg string) *AppError {
	return &AppError{Code: "CONFLICT", Message: msg, Err: ErrConflict}
}

func InvalidState(msg string) *AppError {
	return &AppError{Code: "INVALID_STATE", Message: msg, Err: ErrInvalidState}
}

// ExternalService wraps a failure from the object store or the execution
// engine. The caller may retry; the wrapped cause is kept for logs.
func ExternalService(msg string, err error) *AppError {
	return &AppError{Code: "EXTERNAL_SERVICE", Message: msg, Err: fmt.Errorf("%w: %w", ErrExternalService, err)}
}

func InternalServer(msg string, err error) *AppError {
	return &AppError{Code: "INTERNAL_SERVER_ERROR", Message: msg, Err: err}
}

func InvalidCredentials() *AppError {
	return &AppError{Code: "INVALID_CREDENTIALS", Message: "invalid email or password", Err: ErrInvalidCredentials}
}
