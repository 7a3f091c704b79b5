package ocr

import (
	"errors"
	"fmt"
)

// Sentinel causes shared across providers.
var (
	// ErrInputTooLarge is returned when a document exceeds the vendor's
	// synchronous processing limit.
	ErrInputTooLarge = errors.New("document exceeds provider size limit")

	// ErrMalformedInput is returned for buffers the vendor cannot parse
	// (bad header, unsupported format). Never retryable.
	ErrMalformedInput = errors.New("malformed or unsupported input")

	// ErrVendorUnavailable is returned for transport, rate-limit and
	// server-side vendor failures. Retryable.
	ErrVendorUnavailable = errors.New("ocr vendor unavailable")
)

// ProviderError is the distinguished failure of a provider call. The
// retryable flag separates rate-limit/transport faults from malformed-input
// faults; the worker, not the provider, decides retry policy.
type ProviderError struct {
	Provider string
	Op       string
	Err      error

	retryable bool
}

// NewProviderError builds a ProviderError for the given vendor operation.
func NewProviderError(provider, op string, retryable bool, err error) *ProviderError {
	return &ProviderError{Provider: provider, Op: op, Err: err, retryable: retryable}
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("ocr provider %s: %s: %v", e.Provider, e.Op, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// Retryable reports whether a retry of the same input can succeed.
func (e *ProviderError) Retryable() bool { return e.retryable }

// ErrorKind labels provider failures in audit payloads.
func (e *ProviderError) ErrorKind() string { return "ocr_provider" }
