package errors

import (
	"fmt"
)

// RagError is the structured error type for PatchRAG. It carries an
// error code, category, and severity so callers can branch on failure
// class instead of string-matching messages.
type RagError struct {
	// Code is the unique error code (e.g., "ERR_201_FILE_NOT_FOUND").
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

	// Suggestion is an actionable suggestion for the user.
	Suggestion string
}

// Error implements the error interface.
func (e *RagError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for error chain support.
func (e *RagError) Unwrap() error {
	return e.Cause
}

// Is matches RagErrors by code, enabling errors.Is comparisons against
// sentinel instances.
func (e *RagError) Is(target error) bool {
	if t, ok := target.(*RagError); ok {
		return e.Code == t.Code
	}
	return false
}

// WithDetail adds a key-value detail to the error.
func (e *RagError) WithDetail(key, value string) *RagError {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = value
	return e
}

// WithSuggestion adds an actionable suggestion for the user.
func (e *RagError) WithSuggestion(suggestion string) *RagError {
	e.Suggestion = suggestion
	return e
}

// New creates a RagError with the given code and message. Category,
// severity, and the retryable flag are derived from the code.
func New(code string, message string, cause error) *RagError {
	return &RagError{
		Code:      code,
		Message:   message,
		Category:  categoryFromCode(code),
		Severity:  severityFromCode(code),
		Cause:     cause,
		Retryable: isRetryableCode(code),
	}
}

// Wrap creates a RagError from an existing error, keeping its message.
func Wrap(code string, err error) *RagError {
	if err == nil {
		return nil
	}
	return New(code, err.Error(), err)
}

// Wrapf creates a RagError with a formatted site message and the given
// cause attached for unwrapping.
func Wrapf(code string, err error, format string, args ...any) *RagError {
	if err == nil {
		return nil
	}
	return New(code, fmt.Sprintf(format, args...), err)
}

// ConfigError creates a configuration-related error.
func ConfigError(message string, cause error) *RagError {
	return New(ErrCodeConfigInvalid, message, cause)
}

// StorageError creates an index/chunk-store I/O error.
func StorageError(message string, cause error) *RagError {
	return New(ErrCodeStorage, message, cause)
}

// ValidationError creates a validation-related error.
func ValidationError(message string, cause error) *RagError {
	return New(ErrCodeInvalidInput, message, cause)
}

// InternalError creates an internal error.
func InternalError(message string, cause error) *RagError {
	return New(ErrCodeInternal, message, cause)
}

// IsRetryable reports whether the error is a retryable RagError.
func IsRetryable(err error) bool {
	if ae, ok := err.(*RagError); ok {
		return ae.Retryable
	}
	return false
}

// IsFatal reports whether the error carries fatal severity.
func IsFatal(err error) bool {
	if ae, ok := err.(*RagError); ok {
		return ae.Severity == SeverityFatal
	}
	return false
}

// GetCode extracts the error code, or "" for non-RagErrors.
func GetCode(err error) string {
	if ae, ok := err.(*RagError); ok {
		return ae.Code
	}
	return ""
}

// GetCategory extracts the category, or "" for non-RagErrors.
func GetCategory(err error) Category {
	if ae, ok := err.(*RagError); ok {
		return ae.Category
	}
	return ""
}
