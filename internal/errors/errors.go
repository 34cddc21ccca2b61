package errors

import (
	"fmt"
)

// JurisError is the structured error type for jurisearch.
// It provides rich context for error handling, logging, and operator presentation.
type JurisError struct {
	// Code is the unique error code (e.g., "ERR_201_SHARD_NOT_FOUND").
	Code string

	// Message is the human-readable error message.
	Message string

	// Category is the error category (Config, IO, Network, etc.).
	Category Category

	// Severity is the error severity level.
	Severity Severity

	// Details contains additional context as key-value pairs.
	Details map[string]string

	// Cause is the underlying error that caused this error.
	Cause error

	// Retryable indicates if the operation can be retried.
	Retryable bool

	// Suggestion is an actionable suggestion for the operator.
	Suggestion string
}

// Error implements the error interface.
func (e *JurisError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for error chain support.
func (e *JurisError) Unwrap() error {
	return e.Cause
}

// Is checks if this error matches the target error by code.
// This enables errors.Is() to work with JurisError.
func (e *JurisError) Is(target error) bool {
	if t, ok := target.(*JurisError); ok {
		return e.Code == t.Code
	}
	return false
}

// WithDetail adds a key-value detail to the error.
// Returns the error for method chaining.
func (e *JurisError) WithDetail(key, value string) *JurisError {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = value
	return e
}

// WithSuggestion adds an actionable suggestion for the operator.
// Returns the error for method chaining.
func (e *JurisError) WithSuggestion(suggestion string) *JurisError {
	e.Suggestion = suggestion
	return e
}

// New creates a new JurisError with the given code and message.
// Category, severity, and retryable flag are derived from the code.
func New(code string, message string, cause error) *JurisError {
	return &JurisError{
		Code:      code,
		Message:   message,
		Category:  categoryFromCode(code),
		Severity:  severityFromCode(code),
		Cause:     cause,
		Retryable: isRetryableCode(code),
	}
}

// Wrap creates a JurisError from an existing error.
// The error's message becomes the JurisError message.
func Wrap(code string, err error) *JurisError {
	if err == nil {
		return nil
	}
	return New(code, err.Error(), err)
}

// ShardNotFound creates the recoverable "shard is absent" error.
// Callers on the read path must treat it as zero results.
func ShardNotFound(area string) *JurisError {
	return New(ErrCodeShardNotFound, fmt.Sprintf("no shard on disk for area %q", area), nil).
		WithDetail("area", area)
}

// ShardCorrupt creates the recoverable invariant-violation error.
// The shard is treated as absent for the current call and logged for the operator.
func ShardCorrupt(area string, message string) *JurisError {
	return New(ErrCodeShardCorrupt, message, nil).
		WithDetail("area", area).
		WithSuggestion(fmt.Sprintf("run 'jurisearch rebuild --area %s'", area))
}

// EmbeddingUnavailable creates the recoverable embedding-service error.
// The affected sub-search degrades to an empty result.
func EmbeddingUnavailable(cause error) *JurisError {
	return New(ErrCodeEmbeddingUnavailable, "embedding service unavailable", cause)
}

// BackingStoreUnavailable creates the escalated backing-store error.
// The whole search fails: neither shard metadata nor live fallback can proceed.
func BackingStoreUnavailable(cause error) *JurisError {
	return New(ErrCodeBackingStoreUnavailable, "backing store unavailable", cause)
}

// WriteConflict creates the indexer-only single-writer contention error.
func WriteConflict(area string) *JurisError {
	return New(ErrCodeWriteConflict, fmt.Sprintf("another writer holds the lock for area %q", area), nil).
		WithDetail("area", area)
}

// IsRetryable checks if an error is retryable.
// Returns true if the error is a JurisError with Retryable flag set.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if je, ok := err.(*JurisError); ok {
		return je.Retryable
	}
	return false
}

// IsFatal checks if an error has fatal severity.
// Fatal errors should abort the current operation.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	if je, ok := err.(*JurisError); ok {
		return je.Severity == SeverityFatal
	}
	return false
}

// GetCode extracts the error code from a JurisError.
// Returns empty string if not a JurisError.
func GetCode(err error) string {
	if je, ok := err.(*JurisError); ok {
		return je.Code
	}
	return ""
}

// GetCategory extracts the category from a JurisError.
// Returns empty string if not a JurisError.
func GetCategory(err error) Category {
	if je, ok := err.(*JurisError); ok {
		return je.Category
	}
	return ""
}
