package errors

import (
	stderrors "errors"
	"fmt"
	"testing"
)

func TestCategoriesAndExitCodes(t *testing.T) {
	tests := []struct {
		name     string
		err      *ReconError
		category Category
		exitCode int
	}{
		{"validation", InvalidInput("amount", "abc", nil), CategoryValidation, 2},
		{"configuration", ConfigError("threshold", 1.5), CategoryConfiguration, 3},
		{"lookup", LookupFailure("dedup check", nil), CategoryLookup, 4},
		{"claim", ClaimConflict("rec-1"), CategoryClaim, 5},
		{"internal", Internal("scoring", fmt.Errorf("boom")), CategoryInternal, 5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err.Category != tt.category {
				t.Errorf("category = %s, want %s", tt.err.Category, tt.category)
			}
			if got := tt.err.GetExitCode(); got != tt.exitCode {
				t.Errorf("exit code = %d, want %d", got, tt.exitCode)
			}
		})
	}
}

func TestCategoryHelpers(t *testing.T) {
	if !IsInvalidInput(InvalidAmount("xx", nil)) {
		t.Error("InvalidAmount should be a validation error")
	}
	if !IsInvalidInput(InvalidDate("xx", nil)) {
		t.Error("InvalidDate should be a validation error")
	}
	if !IsLookupFailure(LookupFailure("op", nil)) {
		t.Error("LookupFailure should be a lookup error")
	}
	if !IsClaimConflict(ClaimConflict("rec-1")) {
		t.Error("ClaimConflict should be a claim error")
	}
	if !IsConfigurationError(ConfigError("x", 1)) {
		t.Error("ConfigError should be a configuration error")
	}
	if IsClaimConflict(LookupFailure("op", nil)) {
		t.Error("categories must not overlap")
	}
	if IsLookupFailure(nil) {
		t.Error("nil is not a lookup failure")
	}
	if IsInvalidInput(stderrors.New("plain")) {
		t.Error("plain errors carry no category")
	}
}

func TestHelpersSeeThroughWrapping(t *testing.T) {
	inner := ClaimConflict("rec-1")
	wrapped := fmt.Errorf("while committing: %w", inner)

	if !IsClaimConflict(wrapped) {
		t.Error("category check should unwrap standard wrapping")
	}
	re, ok := As(wrapped)
	if !ok || re.Code != CodeClaimConflict {
		t.Errorf("As should recover the ReconError, got %+v", re)
	}
}

func TestWrapPreservesCause(t *testing.T) {
	cause := fmt.Errorf("connection refused")
	err := Wrap(cause, CategoryLookup, CodeLookupFailure, "dedup lookup failed")

	if !stderrors.Is(err, cause) {
		t.Error("wrapped error should unwrap to its cause")
	}
	if err.Error() != "dedup lookup failed" {
		t.Errorf("message = %q", err.Error())
	}

	if Wrap(nil, CategoryLookup, CodeLookupFailure, "x") != nil {
		t.Error("wrapping nil should yield nil")
	}
}

func TestContextAndSuggestion(t *testing.T) {
	err := New(CategoryValidation, CodeMissingField, "reference is required").
		WithContext("field", "reference").
		WithSuggestion("provide a reference or leave the column empty")

	if err.Context["field"] != "reference" {
		t.Errorf("context not attached: %+v", err.Context)
	}
	if got := err.Error(); got != "reference is required (suggestion: provide a reference or leave the column empty)" {
		t.Errorf("Error() = %q", got)
	}
}

func TestStackTraceCaptured(t *testing.T) {
	err := New(CategoryInternal, CodeUnexpected, "boom")
	if len(err.StackTrace) == 0 {
		t.Error("constructors should capture a stack trace")
	}
}
