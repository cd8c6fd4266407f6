// Package errors provides structured error handling for settingsearch.
//
// Error codes follow the pattern ERR_XXX_DESCRIPTION where:
//   - 1XX: Configuration errors
//   - 2XX: Store errors (database, disk)
//   - 3XX: Source errors (crawl, descriptors)
//   - 4XX: Query and validation errors
//   - 5XX: Internal errors
package errors

// Category defines error categories for classification.
type Category string

const (
	// CategoryConfig indicates configuration-related errors.
	CategoryConfig Category = "CONFIG"
	// CategoryStore indicates index store and disk errors.
	CategoryStore Category = "STORE"
	// CategorySource indicates a failure inside one indexable source.
	CategorySource Category = "SOURCE"
	// CategoryValidation indicates invalid queries or malformed values.
	CategoryValidation Category = "VALIDATION"
	// CategoryInternal indicates unexpected internal errors.
	CategoryInternal Category = "INTERNAL"
)

// Severity defines error severity levels.
type Severity string

const (
	// SeverityFatal aborts the current pass or request.
	SeverityFatal Severity = "FATAL"
	// SeverityError indicates operation failed but can continue.
	SeverityError Severity = "ERROR"
	// SeverityWarning indicates degraded operation, continuing.
	SeverityWarning Severity = "WARNING"
	// SeverityInfo indicates informational only.
	SeverityInfo Severity = "INFO"
)

// Error codes organized by category.
const (
	// Config errors (100-199)
	ErrCodeConfigNotFound = "ERR_101_CONFIG_NOT_FOUND"
	ErrCodeConfigInvalid  = "ERR_102_CONFIG_INVALID"

	// Store errors (200-299)
	ErrCodeStoreUnavailable = "ERR_201_STORE_UNAVAILABLE"
	ErrCodeStoreBusy        = "ERR_202_STORE_BUSY"
	ErrCodeCorruptIndex     = "ERR_203_CORRUPT_INDEX"
	ErrCodePayloadCorrupt   = "ERR_204_PAYLOAD_CORRUPT"
	ErrCodeIndexLocked      = "ERR_205_INDEX_LOCKED"

	// Source errors (300-399)
	ErrCodeSourceFailed     = "ERR_301_SOURCE_FAILED"
	ErrCodeSourceUnresolved = "ERR_302_SOURCE_UNRESOLVED"
	ErrCodeDescriptorInvalid = "ERR_303_DESCRIPTOR_INVALID"

	// Validation errors (400-499)
	ErrCodeInvalidInput  = "ERR_401_INVALID_INPUT"
	ErrCodeQueryEmpty    = "ERR_402_QUERY_EMPTY"
	ErrCodeInvalidResult = "ERR_403_INVALID_RESULT"

	// Internal errors (500-599)
	ErrCodeInternal     = "ERR_501_INTERNAL"
	ErrCodeSearchFailed = "ERR_502_SEARCH_FAILED"
	ErrCodeIndexFailed  = "ERR_503_INDEX_FAILED"
)

// categoryFromCode extracts category from error code.
func categoryFromCode(code string) Category {
	if len(code) < 7 {
		return CategoryInternal
	}

	// "201" from "ERR_201_STORE_UNAVAILABLE"
	switch code[4] {
	case '1':
		return CategoryConfig
	case '2':
		return CategoryStore
	case '3':
		return CategorySource
	case '4':
		return CategoryValidation
	default:
		return CategoryInternal
	}
}

// severityFromCode determines severity based on error code.
func severityFromCode(code string) Severity {
	switch code {
	case ErrCodeCorruptIndex, ErrCodeStoreUnavailable:
		return SeverityFatal
	case ErrCodePayloadCorrupt, ErrCodeIndexLocked:
		return SeverityWarning
	}

	// Source failures skip one source, the pass continues
	if categoryFromCode(code) == CategorySource || isRetryableCode(code) {
		return SeverityWarning
	}

	return SeverityError
}

// isRetryableCode checks if an error code represents a retryable error.
func isRetryableCode(code string) bool {
	switch code {
	case ErrCodeStoreBusy, ErrCodeStoreUnavailable, ErrCodeIndexLocked:
		return true
	default:
		return false
	}
}
