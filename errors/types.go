package errors

import (
	"encoding/json"
	"fmt"
)

// ErrorCode represents a specific error condition
type ErrorCode string

const (
	// Configuration errors
	ErrCodeConfigNotFound   ErrorCode = "CONFIG_NOT_FOUND"
	ErrCodeConfigInvalid    ErrorCode = "CONFIG_INVALID"
	ErrCodeConfigValidation ErrorCode = "CONFIG_VALIDATION"

	// Code registry errors
	ErrCodePersistence  ErrorCode = "PERSISTENCE_FAILURE"
	ErrCodeCodeNotFound ErrorCode = "CODE_NOT_FOUND"
	ErrCodeInvalidCode  ErrorCode = "INVALID_CODE"

	// State store errors
	ErrCodeItemNotFound   ErrorCode = "ITEM_NOT_FOUND"
	ErrCodeInvalidSection ErrorCode = "INVALID_SECTION"

	// Command errors
	ErrCodeParse         ErrorCode = "PARSE_ERROR"
	ErrCodeHandlerFailed ErrorCode = "HANDLER_FAILED"

	// Daemon errors
	ErrCodeDaemonNotRunning ErrorCode = "DAEMON_NOT_RUNNING"

	// General errors
	ErrCodeInternal     ErrorCode = "INTERNAL_ERROR"
	ErrCodeInvalidInput ErrorCode = "INVALID_INPUT"
)

// PulseError represents a structured error with context
type PulseError struct {
	Code    ErrorCode              `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
	Cause   error                  `json:"-"`
}

// Error implements the error interface
func (e *PulseError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap implements the errors.Unwrap interface
func (e *PulseError) Unwrap() error {
	return e.Cause
}

// WithDetail adds a detail to the error
func (e *PulseError) WithDetail(key string, value interface{}) *PulseError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// ToJSON converts the error to JSON
func (e *PulseError) ToJSON() string {
	data, _ := json.MarshalIndent(e, "", "  ")
	return string(data)
}

// New creates a new PulseError
func New(code ErrorCode, message string) *PulseError {
	return &PulseError{
		Code:    code,
		Message: message,
	}
}

// Newf creates a new PulseError with a formatted message
func Newf(code ErrorCode, format string, args ...interface{}) *PulseError {
	return New(code, fmt.Sprintf(format, args...))
}

// Wrap wraps an existing error with a PulseError
func Wrap(err error, code ErrorCode, message string) *PulseError {
	return &PulseError{
		Code:    code,
		Message: message,
		Cause:   err,
	}
}

// coded is satisfied by typed errors in other packages that carry an ErrorCode
// without embedding PulseError.
type coded interface {
	ErrorCode() ErrorCode
}

// Is checks if an error is a specific error code
func Is(err error, code ErrorCode) bool {
	return GetCode(err) == code && code != ""
}

// GetCode extracts the error code from an error, returning the outermost
// code found while unwrapping.
func GetCode(err error) ErrorCode {
	if err == nil {
		return ""
	}

	switch e := err.(type) {
	case *PulseError:
		return e.Code
	case coded:
		return e.ErrorCode()
	}

	// Try to unwrap
	if unwrapper, ok := err.(interface{ Unwrap() error }); ok {
		return GetCode(unwrapper.Unwrap())
	}
	return ""
}
