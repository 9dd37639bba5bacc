// Package errs provides the unified error type used across all of pgedit.
//
// Every subsystem (database, schema, executor, filestore, …) wraps its native
// errors into *errs.Error before returning them to callers. Callers use the Is*
// predicates to handle errors without importing driver-specific packages.
//
// Usage:
//
//	// In a driver, wrap native errors:
//	return errs.Wrap(errs.ErrKindStatementFailure, pgErr.Message, pgErr)
//
//	// At the orchestrator boundary, turn any error into user text:
//	resp.Error = errs.UserMessage(err)
package errs

import (
	"errors"
	"fmt"
)

// ErrKind categorises an error without exposing subsystem-specific codes.
type ErrKind int

const (
	ErrKindUnknown               ErrKind = iota
	ErrKindNotFound                      // no rows, no object, no view
	ErrKindConnectionFailed              // cannot reach the backend
	ErrKindConnectionUnavailable         // no live handle for the requested connection
	ErrKindTimeout                       // context deadline / cancellation
	ErrKindQueryFailed                   // read-path SQL or storage operation error
	ErrKindInvalidInput                  // bad arguments from the caller
	ErrKindPermissionDenied              // access denied / auth failure
	ErrKindValidationFailure             // change-set values rejected by the schema validator
	ErrKindStatementFailure              // generated DML rejected by the database
	ErrKindRollbackFailure               // ROLLBACK itself failed after a statement failure
	ErrKindMetadataFetchFailure          // catalog introspection failed
	ErrKindConflict                      // operation already in flight
)

func (k ErrKind) String() string {
	switch k {
	case ErrKindNotFound:
		return "not_found"
	case ErrKindConnectionFailed:
		return "connection_failed"
	case ErrKindConnectionUnavailable:
		return "connection_unavailable"
	case ErrKindTimeout:
		return "timeout"
	case ErrKindQueryFailed:
		return "query_failed"
	case ErrKindInvalidInput:
		return "invalid_input"
	case ErrKindPermissionDenied:
		return "permission_denied"
	case ErrKindValidationFailure:
		return "validation_failure"
	case ErrKindStatementFailure:
		return "statement_failure"
	case ErrKindRollbackFailure:
		return "rollback_failure"
	case ErrKindMetadataFetchFailure:
		return "metadata_fetch_failure"
	case ErrKindConflict:
		return "conflict"
	default:
		return "unknown"
	}
}

// Error is the single error type returned by all pgedit subsystems.
type Error struct {
	Kind    ErrKind
	Message string
	Cause   error // original driver-level error, preserved for logging
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Kind, e.Message)
}

// Unwrap allows errors.Is / errors.As to traverse the cause chain.
func (e *Error) Unwrap() error {
	return e.Cause
}

// --- Constructors ---

// New creates an *Error with the given kind and message and no cause.
func New(kind ErrKind, msg string) *Error {
	return &Error{Kind: kind, Message: msg}
}

// Newf is New with a format string.
func Newf(kind ErrKind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap creates an *Error with the given kind, message, and an underlying cause.
func Wrap(kind ErrKind, msg string, cause error) *Error {
	return &Error{Kind: kind, Message: msg, Cause: cause}
}

// NotConnected is the error returned when no live handle exists for a connection id.
func NotConnected(connectionID string) *Error {
	return Newf(ErrKindConnectionUnavailable, "not connected: %s", connectionID)
}

// UserMessage returns the text that should be shown to a user for err.
//
// For an *Error it is the Message alone, without the kind prefix or the cause
// chain. A statement failure's Message is the database's own error text, so it
// reaches the user verbatim.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return err.Error()
}

// KindOf extracts the ErrKind from the outermost *Error in the chain.
func KindOf(err error) ErrKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ErrKindUnknown
}

// Kind predicates, one per ErrKind callers branch on.
func IsNotFound(err error) bool              { return KindOf(err) == ErrKindNotFound }
func IsTimeout(err error) bool               { return KindOf(err) == ErrKindTimeout }
func IsConnectionFailed(err error) bool      { return KindOf(err) == ErrKindConnectionFailed }
func IsConnectionUnavailable(err error) bool { return KindOf(err) == ErrKindConnectionUnavailable }
func IsQueryFailed(err error) bool           { return KindOf(err) == ErrKindQueryFailed }
func IsInvalidInput(err error) bool          { return KindOf(err) == ErrKindInvalidInput }
func IsPermissionDenied(err error) bool      { return KindOf(err) == ErrKindPermissionDenied }
func IsValidationFailure(err error) bool     { return KindOf(err) == ErrKindValidationFailure }
func IsStatementFailure(err error) bool      { return KindOf(err) == ErrKindStatementFailure }
func IsRollbackFailure(err error) bool       { return KindOf(err) == ErrKindRollbackFailure }
func IsMetadataFetchFailure(err error) bool  { return KindOf(err) == ErrKindMetadataFetchFailure }
func IsConflict(err error) bool              { return KindOf(err) == ErrKindConflict }
