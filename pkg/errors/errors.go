package errors

import (
	"errors"
	"fmt"
)

// ErrorType classifies failures so callers can decide how to react
type ErrorType string

const (
	// ErrorTypeNotFound indicates an unknown entry, doctor or department
	ErrorTypeNotFound ErrorType = "NOT_FOUND"

	// ErrorTypeValidation indicates a malformed request
	ErrorTypeValidation ErrorType = "VALIDATION"

	// ErrorTypeConflict indicates the resource is in the wrong state for the operation
	ErrorTypeConflict ErrorType = "CONFLICT"

	// ErrorTypeUnauthorized indicates a missing actor identity
	ErrorTypeUnauthorized ErrorType = "UNAUTHORIZED"

	// ErrorTypeForbidden indicates the actor's role may not perform the operation
	ErrorTypeForbidden ErrorType = "FORBIDDEN"

	// ErrorTypeResourceExhausted indicates no capacity is left (pool empty, department at cap)
	ErrorTypeResourceExhausted ErrorType = "RESOURCE_EXHAUSTED"

	// ErrorTypeInternal indicates an internal server error
	ErrorTypeInternal ErrorType = "INTERNAL"

	// ErrorTypeExternal indicates an error from a collaborator (database, cache)
	ErrorTypeExternal ErrorType = "EXTERNAL"
)

// AppError carries a classified, human readable failure reason
type AppError struct {
	Type    ErrorType
	Message string
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// NewNotFoundError creates a new not found error
func NewNotFoundError(message string) *AppError {
	return &AppError{Type: ErrorTypeNotFound, Message: message}
}

// NewValidationError creates a new validation error
func NewValidationError(message string) *AppError {
	return &AppError{Type: ErrorTypeValidation, Message: message}
}

// NewConflictError creates a new conflict error
func NewConflictError(message string) *AppError {
	return &AppError{Type: ErrorTypeConflict, Message: message}
}

// NewUnauthorizedError creates a new unauthorized error
func NewUnauthorizedError(message string) *AppError {
	return &AppError{Type: ErrorTypeUnauthorized, Message: message}
}

// NewForbiddenError creates an authorization-denied error
func NewForbiddenError(message string) *AppError {
	return &AppError{Type: ErrorTypeForbidden, Message: message}
}

// NewResourceExhaustedError creates a capacity error
func NewResourceExhaustedError(message string) *AppError {
	return &AppError{Type: ErrorTypeResourceExhausted, Message: message}
}

// NewInternalError creates a new internal error
func NewInternalError(message string, err error) *AppError {
	return &AppError{Type: ErrorTypeInternal, Message: message, Err: err}
}

// NewExternalError creates a new external service error
func NewExternalError(message string, err error) *AppError {
	return &AppError{Type: ErrorTypeExternal, Message: message, Err: err}
}

// TypeOf returns the ErrorType of the first AppError in err's chain,
// or ErrorTypeInternal for anything else.
func TypeOf(err error) ErrorType {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Type
	}
	return ErrorTypeInternal
}

// IsType reports whether err carries the given type
func IsType(err error, t ErrorType) bool {
	return err != nil && TypeOf(err) == t
}
