package common

import (
	"errors"
	"fmt"
)

// The error taxonomy splits failures by how the caller must react:
// validation and authorization errors are never retried, storage and
// persistence errors are safe to retry, and provider errors carry their own
// retryable flag (see internal/ocr).

// ValidationError reports bad input: unknown profile, disallowed MIME type,
// malformed profile data. Surfaced to the caller immediately.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation failed for %q: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("validation failed: %s", e.Message)
}

// NewValidationError builds a ValidationError for a named field.
func NewValidationError(field, format string, args ...any) *ValidationError {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// AuthorizationError reports insufficient scope or a tenant mismatch. Never
// retried.
type AuthorizationError struct {
	Message string
}

func (e *AuthorizationError) Error() string {
	return fmt.Sprintf("authorization failed: %s", e.Message)
}

// StorageError reports an upload or download failure against the storage
// collaborator. Retryable at the ingest boundary; no job exists until the
// upload has succeeded.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string { return fmt.Sprintf("storage: %s: %v", e.Op, e.Err) }
func (e *StorageError) Unwrap() error { return e.Err }

// Retryable implements the retry contract: storage failures leave no partial
// state behind.
func (e *StorageError) Retryable() bool { return true }

// PersistenceError reports a delete or insert failure during idempotent item
// persistence. Always safe to retry; delete-before-insert repopulates the
// full set on the next attempt.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string { return fmt.Sprintf("persistence: %s: %v", e.Op, e.Err) }
func (e *PersistenceError) Unwrap() error { return e.Err }

// Retryable implements the retry contract.
func (e *PersistenceError) Retryable() bool { return true }

// retryable is implemented by error kinds that know whether a retry can
// succeed.
type retryable interface {
	Retryable() bool
}

// IsRetryable reports whether any error in the chain declares itself
// retryable. Errors without a declaration are not retried.
func IsRetryable(err error) bool {
	for err != nil {
		if r, ok := err.(retryable); ok {
			return r.Retryable()
		}
		err = errors.Unwrap(err)
	}
	return false
}

// kinder lets error types outside this package (the OCR provider error)
// label themselves.
type kinder interface {
	ErrorKind() string
}

// ErrorKind labels an error chain for audit payloads.
func ErrorKind(err error) string {
	for e := err; e != nil; e = errors.Unwrap(e) {
		if k, ok := e.(kinder); ok {
			return k.ErrorKind()
		}
	}
	var (
		ve *ValidationError
		ae *AuthorizationError
		se *StorageError
		pe *PersistenceError
	)
	switch {
	case errors.As(err, &ve):
		return "validation"
	case errors.As(err, &ae):
		return "authorization"
	case errors.As(err, &se):
		return "storage"
	case errors.As(err, &pe):
		return "persistence"
	}
	return "internal"
}
