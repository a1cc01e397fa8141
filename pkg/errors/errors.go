package errors

import (
	"context"
	"errors"
	"fmt"
)

// ErrorCode represents a unique error code for stable testing
type ErrorCode string

// Error codes for different error categories
const (
	// General errors
	ErrUnknown        ErrorCode = "UNKNOWN"
	ErrInternal       ErrorCode = "INTERNAL"
	ErrInvalidInput   ErrorCode = "INVALID_INPUT"
	ErrNotFound       ErrorCode = "NOT_FOUND"
	ErrUnsupported    ErrorCode = "UNSUPPORTED_OPERATION"
	ErrInvalidState   ErrorCode = "INVALID_STATE"
	ErrCancelled      ErrorCode = "CANCELLED"
	ErrUnsafePath     ErrorCode = "UNSAFE_PATH"
	ErrNotImplemented ErrorCode = "NOT_IMPLEMENTED"

	// Configuration errors
	ErrConfigLoad  ErrorCode = "CONFIG_LOAD"
	ErrConfigParse ErrorCode = "CONFIG_PARSE"

	// Archive errors
	ErrArchiveOpen  ErrorCode = "ARCHIVE_OPEN"
	ErrArchiveRead  ErrorCode = "ARCHIVE_READ"
	ErrArchiveWrite ErrorCode = "ARCHIVE_WRITE"

	// Ledger errors
	ErrLedgerLoad   ErrorCode = "LEDGER_LOAD"
	ErrLedgerFormat ErrorCode = "LEDGER_FORMAT"

	// Mod errors
	ErrModAlreadyActive ErrorCode = "MOD_ALREADY_ACTIVE"
	ErrModNotActive     ErrorCode = "MOD_NOT_ACTIVE"
	ErrModInvalid       ErrorCode = "MOD_INVALID"
	ErrScript           ErrorCode = "SCRIPT"

	// Edit errors
	ErrSettings          ErrorCode = "SETTINGS"
	ErrShader            ErrorCode = "SHADER"
	ErrConflictInvariant ErrorCode = "CONFLICT_INVARIANT"

	// Transaction errors
	ErrTransaction ErrorCode = "TRANSACTION"
	ErrRollback    ErrorCode = "ROLLBACK"

	// FileSystem errors
	ErrFileNotFound ErrorCode = "FILE_NOT_FOUND"
	ErrFileAccess   ErrorCode = "FILE_ACCESS"
	ErrFileWrite    ErrorCode = "FILE_WRITE"
	ErrDirCreate    ErrorCode = "DIR_CREATE"
)

// ModmanError represents a structured error with code and details
type ModmanError struct {
	Code    ErrorCode
	Message string
	Details map[string]interface{}
	Wrapped error
}

// Error implements the error interface
func (e *ModmanError) Error() string {
	if e.Wrapped != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Wrapped)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap implements the errors.Unwrap interface
func (e *ModmanError) Unwrap() error {
	return e.Wrapped
}

// Is implements errors.Is interface
func (e *ModmanError) Is(target error) bool {
	var targetErr *ModmanError
	if errors.As(target, &targetErr) {
		return e.Code == targetErr.Code
	}
	return false
}

// New creates a new ModmanError with the given code and message
func New(code ErrorCode, message string) *ModmanError {
	return &ModmanError{
		Code:    code,
		Message: message,
		Details: make(map[string]interface{}),
	}
}

// Newf creates a new ModmanError with a formatted message
func Newf(code ErrorCode, format string, args ...interface{}) *ModmanError {
	return &ModmanError{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Details: make(map[string]interface{}),
	}
}

// Wrap wraps an existing error with a ModmanError
func Wrap(err error, code ErrorCode, message string) *ModmanError {
	if err == nil {
		return nil
	}
	return &ModmanError{
		Code:    code,
		Message: message,
		Details: make(map[string]interface{}),
		Wrapped: err,
	}
}

// Wrapf wraps an existing error with a formatted message
func Wrapf(err error, code ErrorCode, format string, args ...interface{}) *ModmanError {
	if err == nil {
		return nil
	}
	return &ModmanError{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Details: make(map[string]interface{}),
		Wrapped: err,
	}
}

// WithDetail adds a detail to the error
func (e *ModmanError) WithDetail(key string, value interface{}) *ModmanError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// IsErrorCode checks if an error has a specific error code anywhere in its chain
func IsErrorCode(err error, code ErrorCode) bool {
	for err != nil {
		var modErr *ModmanError
		if !errors.As(err, &modErr) {
			return false
		}
		if modErr.Code == code {
			return true
		}
		err = modErr.Wrapped
	}
	return false
}

// GetErrorCode returns the outermost error code, or ErrUnknown if not a ModmanError
func GetErrorCode(err error) ErrorCode {
	var modErr *ModmanError
	if errors.As(err, &modErr) {
		return modErr.Code
	}
	return ErrUnknown
}

// GetErrorDetails returns the details from an error, or nil if not a ModmanError
func GetErrorDetails(err error) map[string]interface{} {
	var modErr *ModmanError
	if errors.As(err, &modErr) {
		return modErr.Details
	}
	return nil
}

// FromContext converts a context error into a CANCELLED error. Other errors pass through.
func FromContext(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return Wrap(err, ErrCancelled, "operation cancelled")
	}
	return err
}
