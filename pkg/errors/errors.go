// Package errors provides structured error types for smartcfg.
package errors

import (
	"fmt"
	"time"
)

// ErrorCode identifies specific error conditions
type ErrorCode string

const (
	ErrCodeMalformedDocument  ErrorCode = "MALFORMED_DOCUMENT"
	ErrCodeUnsupportedVersion ErrorCode = "UNSUPPORTED_VERSION"
	ErrCodeInvalidEntry       ErrorCode = "INVALID_ENTRY"
	ErrCodeTypeMismatch       ErrorCode = "TYPE_MISMATCH"
	ErrCodeUnknownType        ErrorCode = "UNKNOWN_TYPE"
	ErrCodeDuplicateKey       ErrorCode = "DUPLICATE_KEY"
	ErrCodeKeyConflict        ErrorCode = "KEY_CONFLICT"
	ErrCodeNotFound           ErrorCode = "NOT_FOUND"
	ErrCodeMissingLanguage    ErrorCode = "MISSING_LANGUAGE"
	ErrCodeTransport          ErrorCode = "TRANSPORT_FAILURE"
	ErrCodeLoadInProgress     ErrorCode = "LOAD_IN_PROGRESS"
	ErrCodeLocked             ErrorCode = "STATE_LOCKED"
	ErrCodeBackend            ErrorCode = "BACKEND_ERROR"
	ErrCodeValidation         ErrorCode = "VALIDATION_ERROR"
)

// Error is the base error type for smartcfg
type Error struct {
	Code    ErrorCode
	Message string
	Cause   error
	Details map[string]interface{}
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// New creates a new error with the given code and message
func New(code ErrorCode, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Details: make(map[string]interface{}),
	}
}

// Wrap creates a new error wrapping an existing error
func Wrap(code ErrorCode, message string, cause error) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Cause:   cause,
		Details: make(map[string]interface{}),
	}
}

// WithDetails adds details to an error
func (e *Error) WithDetails(details map[string]interface{}) *Error {
	for k, v := range details {
		e.Details[k] = v
	}
	return e
}

// WithDetail adds a single detail to an error
func (e *Error) WithDetail(key string, value interface{}) *Error {
	e.Details[key] = value
	return e
}

// ValidationError creates a validation error
func ValidationError(message string, details map[string]interface{}) *Error {
	return &Error{
		Code:    ErrCodeValidation,
		Message: message,
		Details: details,
	}
}

// MalformedDocument creates an error for a document whose envelope cannot be used.
func MalformedDocument(source string, err error) *Error {
	return &Error{
		Code:    ErrCodeMalformedDocument,
		Message: fmt.Sprintf("malformed config document %s", source),
		Cause:   err,
		Details: map[string]interface{}{
			"source": source,
		},
	}
}

// TypeMismatch creates an error for a wire value that does not fit its declared type.
func TypeMismatch(valueType string, got string) *Error {
	return &Error{
		Code:    ErrCodeTypeMismatch,
		Message: fmt.Sprintf("value tagged as %s but wire value is %s", valueType, got),
		Details: map[string]interface{}{
			"type": valueType,
			"got":  got,
		},
	}
}

// NotFoundError creates a not found error
func NotFoundError(resourceType, name string) *Error {
	return &Error{
		Code:    ErrCodeNotFound,
		Message: fmt.Sprintf("%s %q not found", resourceType, name),
		Details: map[string]interface{}{
			"resource_type": resourceType,
			"name":          name,
		},
	}
}

// TransportFailure creates an error for a failed upload or download.
func TransportFailure(operation string, err error) *Error {
	return &Error{
		Code:    ErrCodeTransport,
		Message: fmt.Sprintf("transfer failed during %s", operation),
		Cause:   err,
		Details: map[string]interface{}{
			"operation": operation,
		},
	}
}

// LockInfo contains metadata about a lock
type LockInfo struct {
	ID        string
	Path      string
	Who       string
	Operation string
	Created   time.Time
}

// StateLocked creates a state locked error
func StateLocked(lockInfo LockInfo) *Error {
	return &Error{
		Code:    ErrCodeLocked,
		Message: "config object is locked",
		Details: map[string]interface{}{
			"lock_id":   lockInfo.ID,
			"locked_by": lockInfo.Who,
			"operation": lockInfo.Operation,
			"created":   lockInfo.Created,
		},
	}
}

// BackendError creates a backend error
func BackendError(backend string, operation string, err error) *Error {
	return &Error{
		Code:    ErrCodeBackend,
		Message: fmt.Sprintf("backend %s failed during %s", backend, operation),
		Cause:   err,
		Details: map[string]interface{}{
			"backend":   backend,
			"operation": operation,
		},
	}
}

// CodeOf returns the code of the first *Error in err's chain, or "" when
// there is none.
func CodeOf(err error) ErrorCode {
	for err != nil {
		if e, ok := err.(*Error); ok {
			return e.Code
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return ""
		}
		err = u.Unwrap()
	}
	return ""
}

// Is reports whether err, or any error in its tree, is an *Error with the
// given code. Joined errors are searched too.
func Is(err error, code ErrorCode) bool {
	if err == nil {
		return false
	}
	if e, ok := err.(*Error); ok && e.Code == code {
		return true
	}
	switch u := err.(type) {
	case interface{ Unwrap() error }:
		return Is(u.Unwrap(), code)
	case interface{ Unwrap() []error }:
		for _, inner := range u.Unwrap() {
			if Is(inner, code) {
				return true
			}
		}
	}
	return false
}
