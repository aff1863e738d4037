package errors

import (
	"errors"
	"fmt"
)

// ErrorType represents the category of error
type ErrorType string

const (
	// ErrorTypeNotFound indicates a resource was not found
	ErrorTypeNotFound ErrorType = "not_found"
	// ErrorTypeValidation indicates invalid input data or a failed business rule
	ErrorTypeValidation ErrorType = "validation"
	// ErrorTypeConflict indicates a conflict with in-flight state
	ErrorTypeConflict ErrorType = "conflict"
	// ErrorTypeUnauthorized indicates authentication failure
	ErrorTypeUnauthorized ErrorType = "unauthorized"
	// ErrorTypeForbidden indicates insufficient permissions
	ErrorTypeForbidden ErrorType = "forbidden"
	// ErrorTypeInternal indicates an internal server error
	ErrorTypeInternal ErrorType = "internal"
	// ErrorTypeMethodNotAllowed indicates an unsupported HTTP method
	ErrorTypeMethodNotAllowed ErrorType = "method_not_allowed"
	// ErrorTypeExternal indicates an external service error
	ErrorTypeExternal ErrorType = "external"
)

// Machine readable codes returned to callers.
const (
	CodeAlreadyInProgress      = "ALREADY_IN_PROGRESS"
	CodeAlreadyMoving          = "ALREADY_MOVING"
	CodeEmpireNotFound         = "EMPIRE_NOT_FOUND"
	CodeBaseNotFound           = "BASE_NOT_FOUND"
	CodeFleetNotFound          = "FLEET_NOT_FOUND"
	CodeQueueItemNotFound      = "QUEUE_ITEM_NOT_FOUND"
	CodeMovementNotFound       = "MOVEMENT_NOT_FOUND"
	CodeEmptyFleet             = "EMPTY_FLEET"
	CodeSameLocation           = "SAME_LOCATION"
	CodeInvalidCoordinate      = "INVALID_COORDINATE"
	CodeNotEligible            = "NOT_ELIGIBLE"
	CodeInvalidState           = "INVALID_STATE"
	CodeConcurrentModification = "CONCURRENT_MODIFICATION"
	CodeInternal               = "INTERNAL_ERROR"
)

// AppError is the base error type for application errors
type AppError struct {
	Type    ErrorType
	Code    string
	Message string
	Reasons []string
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

// NotFound creates a not found error carrying a caller-visible code
func NotFound(code, message string) error {
	return &AppError{
		Type:    ErrorTypeNotFound,
		Code:    code,
		Message: message,
	}
}

// NotFoundf creates a not found error with formatting
func NotFoundf(format string, args ...interface{}) error {
	return &AppError{
		Type:    ErrorTypeNotFound,
		Message: fmt.Sprintf(format, args...),
	}
}

// Validation creates a validation error
func Validation(message string) error {
	return &AppError{
		Type:    ErrorTypeValidation,
		Message: message,
	}
}

// Validationf creates a validation error with formatting
func Validationf(format string, args ...interface{}) error {
	return &AppError{
		Type:    ErrorTypeValidation,
		Message: fmt.Sprintf(format, args...),
	}
}

// ValidationCode creates a validation error with a specific code
func ValidationCode(code, message string) error {
	return &AppError{
		Type:    ErrorTypeValidation,
		Code:    code,
		Message: message,
	}
}

// NotEligible creates a validation error listing every failed constraint
func NotEligible(reasons []string) error {
	return &AppError{
		Type:    ErrorTypeValidation,
		Code:    CodeNotEligible,
		Message: "action is not eligible to start",
		Reasons: append([]string(nil), reasons...),
	}
}

// WrapValidation wraps an error as a validation error
func WrapValidation(message string, err error) error {
	return &AppError{
		Type:    ErrorTypeValidation,
		Message: message,
		Err:     err,
	}
}

// Conflict creates a conflict error with a specific code
func Conflict(code, message string) error {
	return &AppError{
		Type:    ErrorTypeConflict,
		Code:    code,
		Message: message,
	}
}

// Conflictf creates a conflict error with formatting
func Conflictf(format string, args ...interface{}) error {
	return &AppError{
		Type:    ErrorTypeConflict,
		Message: fmt.Sprintf(format, args...),
	}
}

// WrapInternal wraps an error as an internal error
func WrapInternal(message string, err error) error {
	return &AppError{
		Type:    ErrorTypeInternal,
		Code:    CodeInternal,
		Message: message,
		Err:     err,
	}
}

// Unauthorized creates an unauthorized error
func Unauthorized(message string) error {
	return &AppError{
		Type:    ErrorTypeUnauthorized,
		Message: message,
	}
}

// Forbidden creates a forbidden error
func Forbidden(message string) error {
	return &AppError{
		Type:    ErrorTypeForbidden,
		Message: message,
	}
}

// MethodNotAllowed creates a method not allowed error
func MethodNotAllowed(method string) error {
	return &AppError{
		Type:    ErrorTypeMethodNotAllowed,
		Message: fmt.Sprintf("method %s not allowed", method),
	}
}

// WrapExternal wraps an error as an external service error
func WrapExternal(message string, err error) error {
	return &AppError{
		Type:    ErrorTypeExternal,
		Message: message,
		Err:     err,
	}
}

// OrInternal returns err unchanged when it already is an AppError and wraps
// it as an internal error otherwise
func OrInternal(message string, err error) error {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return err
	}
	return WrapInternal(message, err)
}

// GetType returns the error type of an error
func GetType(err error) ErrorType {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Type
	}
	return ErrorTypeInternal
}

// GetCode returns the caller-visible code of an error, falling back to the type
func GetCode(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		if appErr.Code != "" {
			return appErr.Code
		}
		return string(appErr.Type)
	}
	return CodeInternal
}

// GetReasons returns the reasons attached to a validation error, if any
func GetReasons(err error) []string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Reasons
	}
	return nil
}

// Is reports whether err carries the given code
func Is(err error, code string) bool {
	return GetCode(err) == code
}
