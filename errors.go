package teamchat

import (
	"errors"
	"fmt"
)

// Error represents a teamchat library error with categorization.
type Error struct {
	// Code is a machine-readable error code
	Code string

	// Message is a human-readable error message
	Message string

	// Err is the underlying error (if any)
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Err
}

// Error codes for messaging operations.
const (
	// ErrCodeNoData indicates no data was found.
	ErrCodeNoData = "NO_DATA"

	// ErrCodeValidation indicates a malformed join or publish payload.
	ErrCodeValidation = "VALIDATION_ERROR"

	// ErrCodeNotJoined indicates a publish without a prior room join.
	ErrCodeNotJoined = "NOT_JOINED"

	// ErrCodeSessionClosed indicates an operation on a closed session.
	ErrCodeSessionClosed = "SESSION_CLOSED"

	// ErrCodeStorage indicates the message store was unavailable.
	ErrCodeStorage = "STORAGE_ERROR"

	// ErrCodeConfiguration indicates invalid configuration.
	ErrCodeConfiguration = "CONFIGURATION_ERROR"
)

// Common errors.
var (
	// ErrNoData is returned when a query returns no results.
	// This is not necessarily an error condition in all cases.
	ErrNoData = &Error{
		Code:    ErrCodeNoData,
		Message: "no data found",
	}

	// ErrNotJoined is returned when a session publishes before joining a room.
	ErrNotJoined = &Error{
		Code:    ErrCodeNotJoined,
		Message: "session has not joined a room",
	}

	// ErrSessionClosed is returned when an operation reaches a session whose
	// transport is already gone.
	ErrSessionClosed = &Error{
		Code:    ErrCodeSessionClosed,
		Message: "session is closed",
	}
)

// NewError creates a new Error with the given code and message.
func NewError(code, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
	}
}

// NewErrorWithCause creates a new Error wrapping an underlying error.
func NewErrorWithCause(code, message string, cause error) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Err:     cause,
	}
}

// codeOf extracts the teamchat error code from an error chain.
// Returns empty string for non-teamchat errors.
func codeOf(err error) string {
	var tcErr *Error
	if errors.As(err, &tcErr) {
		return tcErr.Code
	}
	return ""
}

// IsNoData checks if an error is ErrNoData.
func IsNoData(err error) bool {
	return codeOf(err) == ErrCodeNoData || errors.Is(err, ErrNoData)
}

// IsValidation checks if an error is a validation error.
func IsValidation(err error) bool {
	return codeOf(err) == ErrCodeValidation
}

// IsNotJoined checks if an error is a publish-before-join error.
func IsNotJoined(err error) bool {
	return codeOf(err) == ErrCodeNotJoined || errors.Is(err, ErrNotJoined)
}

// IsSessionClosed checks if an error is a closed-session error.
func IsSessionClosed(err error) bool {
	return codeOf(err) == ErrCodeSessionClosed || errors.Is(err, ErrSessionClosed)
}

// IsStorage checks if an error is a storage failure.
func IsStorage(err error) bool {
	return codeOf(err) == ErrCodeStorage
}
