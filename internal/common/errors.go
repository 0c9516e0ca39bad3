package common

import (
	"errors"
	"fmt"

	"github.com/invoicelens/invoicelens/constants"
)

// AppError represents application-specific errors.
type AppError struct {
	Code    string
	Message string
	Cause   error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// Common application errors
var (
	ErrNotFound     = errors.New("resource not found")
	ErrInvalidInput = errors.New("invalid input")
	ErrUnauthorized = errors.New("unauthorized")
	ErrTimeout      = errors.New("deadline exceeded")
	ErrInternal     = errors.New("internal error")
)

// Error constructors
func NewAppError(code, message string, cause error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// Taxonomy constructors. Each maps one collaborator failure class onto a
// stable code so call sites can degrade it into a reason string.
func AuthError(message string, cause error) *AppError {
	return NewAppError(string(constants.CodeAuthError), message, cause)
}

func TimeoutError(message string, cause error) *AppError {
	if cause == nil {
		cause = ErrTimeout
	}
	return NewAppError(string(constants.CodeTimeout), message, cause)
}

func InvalidFormatError(message string) *AppError {
	return NewAppError(string(constants.CodeInvalidFormat), message, ErrInvalidInput)
}

func NotFoundError(message string) *AppError {
	return NewAppError(string(constants.CodeNotFound), message, ErrNotFound)
}

func APIError(message string, cause error) *AppError {
	return NewAppError(string(constants.CodeAPIError), message, cause)
}

func ExtractionFailure(message string, cause error) *AppError {
	return NewAppError(string(constants.CodeExtractionFailure), message, cause)
}

// CodeOf returns the taxonomy code carried by err, or API_ERROR when err is
// not an AppError.
func CodeOf(err error) constants.ErrorCode {
	var ae *AppError
	if errors.As(err, &ae) {
		return constants.ErrorCode(ae.Code)
	}
	return constants.CodeAPIError
}

func WrapError(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}
