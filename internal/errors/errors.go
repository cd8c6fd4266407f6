package errors

import (
	stderrors "errors"
	"fmt"
)

// SearchError is the structured error type for settingsearch.
type SearchError struct {
	// Code is the unique error code (e.g., "ERR_301_SOURCE_FAILED").
	Code string

	// Message is the human-readable error message.
	Message string

	Category Category
	Severity Severity

	// Details contains additional context as key-value pairs.
	Details map[string]string

	// Cause is the underlying error that caused this error.
	Cause error

	// Retryable indicates if a later trigger may succeed.
	Retryable bool

	// Suggestion is an actionable suggestion for the user.
	Suggestion string
}

// Error implements the error interface.
func (e *SearchError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for error chain support.
func (e *SearchError) Unwrap() error {
	return e.Cause
}

// Is matches by code so errors.Is works against the constructors below.
func (e *SearchError) Is(target error) bool {
	if t, ok := target.(*SearchError); ok {
		return e.Code == t.Code
	}
	return false
}

// WithDetail adds a key-value detail to the error.
func (e *SearchError) WithDetail(key, value string) *SearchError {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = value
	return e
}

// WithSuggestion adds an actionable suggestion for the user.
func (e *SearchError) WithSuggestion(suggestion string) *SearchError {
	e.Suggestion = suggestion
	return e
}

// New creates a SearchError. Category, severity and the retryable
// flag are derived from the code.
func New(code string, message string, cause error) *SearchError {
	return &SearchError{
		Code:      code,
		Message:   message,
		Category:  categoryFromCode(code),
		Severity:  severityFromCode(code),
		Cause:     cause,
		Retryable: isRetryableCode(code),
	}
}

// Wrap creates a SearchError from an existing error.
func Wrap(code string, err error) *SearchError {
	if err == nil {
		return nil
	}
	return New(code, err.Error(), err)
}

// ConfigError creates a configuration-related error.
func ConfigError(message string, cause error) *SearchError {
	return New(ErrCodeConfigInvalid, message, cause)
}

// StoreError reports that the index store could not be used.
func StoreError(message string, cause error) *SearchError {
	return New(ErrCodeStoreUnavailable, message, cause).
		WithSuggestion("check the data directory permissions, then trigger a reindex")
}

// SourceError reports a failure of a single indexable source.
func SourceError(sourceID string, cause error) *SearchError {
	return New(ErrCodeSourceFailed, fmt.Sprintf("source %s failed", sourceID), cause).
		WithDetail("source_id", sourceID)
}

// ValidationError creates a validation-related error.
func ValidationError(message string, cause error) *SearchError {
	return New(ErrCodeInvalidInput, message, cause)
}

// InternalError creates an internal error.
func InternalError(message string, cause error) *SearchError {
	return New(ErrCodeInternal, message, cause)
}

// IsRetryable checks if an error anywhere in the chain is retryable.
func IsRetryable(err error) bool {
	var se *SearchError
	if stderrors.As(err, &se) {
		return se.Retryable
	}
	return false
}

// IsFatal checks if an error has fatal severity.
func IsFatal(err error) bool {
	var se *SearchError
	if stderrors.As(err, &se) {
		return se.Severity == SeverityFatal
	}
	return false
}

// GetCode extracts the error code, or "" if err is not a SearchError.
func GetCode(err error) string {
	var se *SearchError
	if stderrors.As(err, &se) {
		return se.Code
	}
	return ""
}

// GetCategory extracts the category, or "" if err is not a SearchError.
func GetCategory(err error) Category {
	var se *SearchError
	if stderrors.As(err, &se) {
		return se.Category
	}
	return ""
}
