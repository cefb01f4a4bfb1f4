// Package errors defines the categorized error taxonomy used across the
// reconciliation engine: invalid input, lookup failures, claim conflicts,
// and configuration errors. Each error carries a category, a machine
// readable code, an optional suggestion, and arbitrary context values.
package errors

import (
	"fmt"

	"github.com/pkg/errors"
)

// Category groups errors by how the orchestrator reacts to them.
type Category string

const (
	// CategoryValidation covers malformed entry data. The affected entry is
	// rejected and the run continues.
	CategoryValidation Category = "validation"

	// CategoryLookup covers backend failures during dedup or record fetch.
	// Lookup errors are retried with bounded backoff before failing the run.
	CategoryLookup Category = "lookup"

	// CategoryClaim covers commit-time races for the same internal record.
	// The losing entry is re-scored against the remaining pool.
	CategoryClaim Category = "claim"

	// CategoryConfiguration covers invalid thresholds or tier bounds.
	// Configuration errors abort the run before any entry is processed.
	CategoryConfiguration Category = "configuration"

	// CategoryInternal covers unexpected failures.
	CategoryInternal Category = "internal"
)

// Code identifies a specific error condition within a category.
type Code string

const (
	CodeInvalidInput  Code = "invalid_input"
	CodeInvalidAmount Code = "invalid_amount"
	CodeInvalidDate   Code = "invalid_date"
	CodeMissingField  Code = "missing_field"

	CodeLookupFailure Code = "lookup_failure"
	CodeLookupTimeout Code = "lookup_timeout"

	CodeClaimConflict Code = "claim_conflict"

	CodeInvalidConfig  Code = "invalid_config"
	CodeInvertedBounds Code = "inverted_bounds"

	CodeUnexpected Code = "unexpected_error"
)

// Context carries additional key/value information about an error.
type Context map[string]interface{}

// ReconError is the error type used throughout the engine.
type ReconError struct {
	Category   Category          `json:"category"`
	Code       Code              `json:"code"`
	Message    string            `json:"message"`
	Suggestion string            `json:"suggestion,omitempty"`
	Context    Context           `json:"context,omitempty"`
	Cause      error             `json:"-"`
	StackTrace errors.StackTrace `json:"-"`
}

// Error implements the error interface.
func (e *ReconError) Error() string {
	if e.Suggestion != "" {
		return fmt.Sprintf("%s (suggestion: %s)", e.Message, e.Suggestion)
	}
	return e.Message
}

// Unwrap returns the underlying cause.
func (e *ReconError) Unwrap() error {
	return e.Cause
}

// WithContext attaches a context value to the error.
func (e *ReconError) WithContext(key string, value interface{}) *ReconError {
	if e.Context == nil {
		e.Context = make(Context)
	}
	e.Context[key] = value
	return e
}

// WithSuggestion attaches a remediation hint to the error.
func (e *ReconError) WithSuggestion(suggestion string) *ReconError {
	e.Suggestion = suggestion
	return e
}

// GetExitCode maps the error category to a process exit code.
func (e *ReconError) GetExitCode() int {
	switch e.Category {
	case CategoryValidation:
		return 2
	case CategoryConfiguration:
		return 3
	case CategoryLookup:
		return 4
	case CategoryClaim, CategoryInternal:
		return 5
	default:
		return 1
	}
}

type stackTracer interface {
	StackTrace() errors.StackTrace
}

// New creates a ReconError with a captured stack trace.
func New(category Category, code Code, message string) *ReconError {
	return &ReconError{
		Category:   category,
		Code:       code,
		Message:    message,
		StackTrace: errors.New("").(stackTracer).StackTrace(),
	}
}

// Newf creates a ReconError with a formatted message.
func Newf(category Category, code Code, format string, args ...interface{}) *ReconError {
	return New(category, code, fmt.Sprintf(format, args...))
}

// Wrap wraps an existing error with category and code information.
func Wrap(err error, category Category, code Code, message string) *ReconError {
	if err == nil {
		return nil
	}
	return &ReconError{
		Category:   category,
		Code:       code,
		Message:    message,
		Cause:      err,
		StackTrace: errors.WithStack(err).(stackTracer).StackTrace(),
	}
}

// InvalidInput creates a validation error for a malformed field.
func InvalidInput(field string, value interface{}, cause error) *ReconError {
	result := build(cause, CategoryValidation, CodeInvalidInput,
		fmt.Sprintf("invalid input in field '%s': %v", field, value))
	return result.
		WithSuggestion("correct the field value; the entry was rejected before scoring").
		WithContext("field", field).
		WithContext("value", value)
}

// InvalidAmount creates a validation error for an unparsable amount.
func InvalidAmount(value string, cause error) *ReconError {
	result := build(cause, CategoryValidation, CodeInvalidAmount,
		fmt.Sprintf("invalid amount: '%s'", value))
	return result.
		WithSuggestion("amounts must be decimal numbers (e.g. '12.34')").
		WithContext("value", value)
}

// InvalidDate creates a validation error for an unparsable date.
func InvalidDate(value string, cause error) *ReconError {
	result := build(cause, CategoryValidation, CodeInvalidDate,
		fmt.Sprintf("invalid date: '%s'", value))
	return result.
		WithSuggestion("use date format YYYY-MM-DD").
		WithContext("value", value)
}

// LookupFailure creates a lookup error for a failed backend operation.
func LookupFailure(operation string, cause error) *ReconError {
	result := build(cause, CategoryLookup, CodeLookupFailure,
		fmt.Sprintf("lookup failed during %s", operation))
	return result.
		WithSuggestion("the operation is retried with bounded backoff; check backend availability if it persists").
		WithContext("operation", operation)
}

// ClaimConflict creates a claim error for a record already claimed in a run.
func ClaimConflict(recordID string) *ReconError {
	return New(CategoryClaim, CodeClaimConflict,
		fmt.Sprintf("internal record %s is already claimed in this run", recordID)).
		WithContext("record_id", recordID)
}

// ConfigError creates a configuration error for an invalid setting.
func ConfigError(setting string, value interface{}) *ReconError {
	return New(CategoryConfiguration, CodeInvalidConfig,
		fmt.Sprintf("invalid configuration for '%s': %v", setting, value)).
		WithSuggestion("thresholds must be within [0,1] and tier bounds must not be inverted").
		WithContext("setting", setting).
		WithContext("value", value)
}

// Internal creates an internal error for an unexpected failure.
func Internal(operation string, cause error) *ReconError {
	result := build(cause, CategoryInternal, CodeUnexpected,
		fmt.Sprintf("unexpected error during %s", operation))
	return result.WithContext("operation", operation)
}

func build(cause error, category Category, code Code, message string) *ReconError {
	if cause != nil {
		return Wrap(cause, category, code, message)
	}
	return New(category, code, message)
}

// As extracts a ReconError from an error chain.
func As(err error) (*ReconError, bool) {
	var re *ReconError
	if errors.As(err, &re) {
		return re, true
	}
	return nil, false
}

// HasCategory reports whether err (or anything it wraps) belongs to category.
func HasCategory(err error, category Category) bool {
	re, ok := As(err)
	return ok && re.Category == category
}

// IsInvalidInput reports whether err is a validation error.
func IsInvalidInput(err error) bool {
	return HasCategory(err, CategoryValidation)
}

// IsLookupFailure reports whether err is a retryable lookup error.
func IsLookupFailure(err error) bool {
	return HasCategory(err, CategoryLookup)
}

// IsClaimConflict reports whether err is a commit-time claim race.
func IsClaimConflict(err error) bool {
	return HasCategory(err, CategoryClaim)
}

// IsConfigurationError reports whether err is a configuration error.
func IsConfigurationError(err error) bool {
	return HasCategory(err, CategoryConfiguration)
}
