package authz

import (
	"fmt"
)

// ErrorType classifies authorization errors.
type ErrorType string

const (
	ErrorTypeNotFound      ErrorType = "not_found"
	ErrorTypeUnauthorized  ErrorType = "unauthorized"
	ErrorTypeInvalidInput  ErrorType = "invalid_input"
	ErrorTypeStorage       ErrorType = "storage"
	ErrorTypeConfiguration ErrorType = "configuration"
)

// Error codes for authorization operations.
const (
	ErrorCodeNoActiveAssignment = "AUTHZ_001"
	ErrorCodeGroupNotFound      = "AUTHZ_002"
	ErrorCodeUnauthorized       = "AUTHZ_003"
	ErrorCodeInvalidInput       = "AUTHZ_004"
	ErrorCodeStorage            = "AUTHZ_005"
	ErrorCodeAccessNotFound     = "AUTHZ_006"
)

// Error is an authorization error with type and code context. Denial of a
// permission check is never an Error: decision entry points return false
// for "no", and an Error only for broken preconditions or storage failures.
type Error struct {
	Type    ErrorType `json:"type"`
	Code    string    `json:"code"`
	Message string    `json:"message"`
	Cause   error     `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %s (caused by: %v)", e.Code, e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Type, e.Message)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches errors by type and code so sentinel comparisons via errors.Is
// work across wrapped instances.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Type == t.Type && e.Code == t.Code
}

// NewError creates a new authorization error.
func NewError(errorType ErrorType, code, message string) *Error {
	return &Error{Type: errorType, Code: code, Message: message}
}

// WrapError creates a new authorization error with an underlying cause.
func WrapError(errorType ErrorType, code, message string, cause error) *Error {
	return &Error{Type: errorType, Code: code, Message: message, Cause: cause}
}

// Sentinel errors for the recoverable precondition failures callers are
// expected to handle.
var (
	ErrNoActiveAssignment = NewError(
		ErrorTypeNotFound,
		ErrorCodeNoActiveAssignment,
		"user has no active role assignment",
	)

	ErrGroupNotFound = NewError(
		ErrorTypeNotFound,
		ErrorCodeGroupNotFound,
		"acl group does not exist",
	)

	ErrUnauthorized = NewError(
		ErrorTypeUnauthorized,
		ErrorCodeUnauthorized,
		"caller is not authorized for this operation",
	)

	ErrAccessNotFound = NewError(
		ErrorTypeNotFound,
		ErrorCodeAccessNotFound,
		"emergency access grant does not exist",
	)
)
