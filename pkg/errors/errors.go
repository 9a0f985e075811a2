package errors

import (
	"errors"
	"fmt"
)

// Code is a standardized error category, independent of transport (HTTP/gRPC).
type Code string

const (
	CodeNotFound       Code = "NOT_FOUND"
	CodeConflict       Code = "CONFLICT"
	CodeForbidden      Code = "FORBIDDEN"
	CodeInternal       Code = "INTERNAL"
	CodeInvalidArg     Code = "INVALID_ARGUMENT"
	CodeTooLong        Code = "TOO_LONG"
	CodeNoCapacity     Code = "NO_CAPACITY"
	CodeUnknown        Code = "UNKNOWN"
)

// AppError is the standard application error type: a stable Code, a
// human-readable Message, and an optional chained cause.
type AppError struct {
	Code    Code
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

func newErr(code Code, msg string, cause error) *AppError {
	return &AppError{Code: code, Message: msg, Cause: cause}
}

// NotFound builds an AppError for a missing resource.
func NotFound(msg string, cause error) *AppError { return newErr(CodeNotFound, msg, cause) }

// Conflict builds an AppError for a state conflict.
func Conflict(msg string, cause error) *AppError { return newErr(CodeConflict, msg, cause) }

// Forbidden builds an AppError for a denied operation.
func Forbidden(msg string, cause error) *AppError { return newErr(CodeForbidden, msg, cause) }

// Internal builds an AppError for an unexpected internal failure.
func Internal(msg string, cause error) *AppError { return newErr(CodeInternal, msg, cause) }

// InvalidArgument builds an AppError for a malformed caller input.
func InvalidArgument(msg string, cause error) *AppError { return newErr(CodeInvalidArg, msg, cause) }

// TooLong builds an AppError for a requested deadline exceeding the
// maximum timeout a timer instance supports.
func TooLong(msg string) *AppError { return newErr(CodeTooLong, msg, nil) }

// NoCapacity builds an AppError for a timer whose queues are saturated.
func NoCapacity(msg string) *AppError { return newErr(CodeNoCapacity, msg, nil) }

// New creates a plain error, mirroring the standard library constructor so
// callers do not need to import both packages.
func New(msg string) error { return errors.New(msg) }

// Wrap attaches context to an existing error, preserving it as the cause.
func Wrap(cause error, msg string) error {
	if cause == nil {
		return nil
	}
	return newErr(CodeInternal, msg, cause)
}

// Is re-exports the standard library's chain-aware comparison.
func Is(err, target error) bool { return errors.Is(err, target) }

// As re-exports the standard library's chain-aware type assertion.
func As(err error, target interface{}) bool { return errors.As(err, target) }
