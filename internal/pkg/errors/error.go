package xerrors

import (
	"errors"
	"fmt"
)

// Common reusable application errors
var (
	ErrNotFound           = errors.New("resource not found")
	ErrUnauthorized       = errors.New("unauthorized access")
	ErrInvalidInput       = errors.New("invalid input")
	ErrInternal           = errors.New("internal server error")
	ErrRateLimited        = errors.New("too many requests")
	ErrPurchaseCancelled  = errors.New("purchase has been cancelled")
	ErrVerificationFailed = errors.New("purchase verification failed")
)

// Code classifies a billing error so callers can branch on it without
// string matching.
type Code string

const (
	CodeInvalidArgument  Code = "invalid_argument"
	CodeUnimplemented    Code = "unimplemented"
	CodeIllegalState     Code = "illegal_state"
	CodeMalformedPayload Code = "malformed_payload"
	CodeVerification     Code = "verification_failed"
	CodeNotFound         Code = "not_found"
)

// Error is the structured error container used across the billing layer:
// a stable code, a human-readable message and an optional details payload.
type Error struct {
	Code    Code                   `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.cause
}

// WithDetails attaches a structured payload and returns the same error.
func (e *Error) WithDetails(details map[string]interface{}) *Error {
	e.Details = details
	return e
}

// WithCause records the underlying error for errors.Is/As chains.
func (e *Error) WithCause(err error) *Error {
	e.cause = err
	return e
}

func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

func Newf(code Code, format string, args ...interface{}) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// InvalidArgument reports a caller-supplied value that is not acceptable.
func InvalidArgument(format string, args ...interface{}) *Error {
	return Newf(CodeInvalidArgument, format, args...)
}

// Unimplemented reports a dispatch on a value outside the closed set.
// This is a programming error, not a recoverable runtime condition.
func Unimplemented(format string, args ...interface{}) *Error {
	return Newf(CodeUnimplemented, format, args...)
}

// IllegalState reports a call that violates a precondition of the receiver.
func IllegalState(format string, args ...interface{}) *Error {
	return Newf(CodeIllegalState, format, args...)
}

// MalformedPayload reports wire data that cannot be decoded into an entity.
func MalformedPayload(format string, args ...interface{}) *Error {
	return Newf(CodeMalformedPayload, format, args...)
}

// CodeOf extracts the billing error code from err, or "" when err does not
// carry one.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// Wrap adds context to an error (similar to fmt.Errorf("%w")).
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Is allows checking whether an error is a specific sentinel error.
func Is(err, target error) bool {
	return errors.Is(err, target)
}
