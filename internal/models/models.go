// Package models defines the domain records of the reconciliation engine:
// bank statement entries, open internal transactions, scored match
// candidates, and persisted match results.
package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// MatchStatus classifies the persisted outcome for one external entry.
type MatchStatus string

const (
	// StatusMatched means a single candidate was chosen with a score at or
	// above the configured minimum floor.
	StatusMatched MatchStatus = "matched"

	// StatusAmbiguous means the top two candidates were within the ambiguity
	// threshold and the entry awaits human resolution.
	StatusAmbiguous MatchStatus = "ambiguous"

	// StatusUnmatched means no candidate reached the minimum score floor.
	StatusUnmatched MatchStatus = "unmatched"

	// StatusRejected means the entry was rejected before or after scoring
	// (invalid input, duplicate, or confidence below the reject threshold).
	StatusRejected MatchStatus = "rejected"
)

// IsValid checks whether the status is one of the known values.
func (s MatchStatus) IsValid() bool {
	switch s {
	case StatusMatched, StatusAmbiguous, StatusUnmatched, StatusRejected:
		return true
	}
	return false
}

// String returns the string representation of the status.
func (s MatchStatus) String() string {
	return string(s)
}

// RecordStatus tracks the match lifecycle of an internal record.
type RecordStatus string

const (
	RecordOpen    RecordStatus = "open"
	RecordMatched RecordStatus = "matched"
	RecordPartial RecordStatus = "partial"
)

// ExternalEntry is one bank statement line. Entries are immutable once
// ingested; the fingerprint is computed exactly once at ingestion time.
type ExternalEntry struct {
	ID          string          `json:"id"`
	AccountRef  string          `json:"account_ref"`
	Amount      decimal.Decimal `json:"amount"`
	OccurredOn  time.Time       `json:"occurred_on"`
	Description string          `json:"description"`
	Reference   string          `json:"reference"`
	Fingerprint string          `json:"fingerprint"`
}

// Validate performs basic validation on the entry.
func (e *ExternalEntry) Validate() error {
	if strings.TrimSpace(e.ID) == "" {
		return fmt.Errorf("entry ID cannot be empty")
	}
	if e.OccurredOn.IsZero() {
		return fmt.Errorf("entry occurred-on date cannot be zero")
	}
	return nil
}

// String returns a short representation of the entry.
func (e *ExternalEntry) String() string {
	return fmt.Sprintf("ExternalEntry{ID: %s, Amount: %s, Date: %s, Ref: %s}",
		e.ID, e.Amount.String(), e.OccurredOn.Format("2006-01-02"), e.Reference)
}

// InternalRecord is one open internal transaction or invoice eligible for
// matching. Only the orchestrator mutates Status, when a match is committed.
type InternalRecord struct {
	ID          string          `json:"id"`
	OwnerRef    string          `json:"owner_ref"`
	Amount      decimal.Decimal `json:"amount"`
	DueDate     time.Time       `json:"due_date"`
	Reference   string          `json:"reference"`
	Description string          `json:"description"`
	Status      RecordStatus    `json:"status"`
}

// Validate performs basic validation on the record.
func (r *InternalRecord) Validate() error {
	if strings.TrimSpace(r.ID) == "" {
		return fmt.Errorf("record ID cannot be empty")
	}
	if r.DueDate.IsZero() {
		return fmt.Errorf("record due date cannot be zero")
	}
	return nil
}

// String returns a short representation of the record.
func (r *InternalRecord) String() string {
	return fmt.Sprintf("InternalRecord{ID: %s, Amount: %s, Due: %s, Ref: %s}",
		r.ID, r.Amount.String(), r.DueDate.Format("2006-01-02"), r.Reference)
}

// FactorScores is the per-factor breakdown of a composite score. Each factor
// is independently inspectable and clamped to [0,1] before weighting.
type FactorScores struct {
	Amount      float64 `json:"amount"`
	Date        float64 `json:"date"`
	Reference   float64 `json:"reference"`
	Description float64 `json:"description"`
	History     float64 `json:"history"`
}

// MatchCandidate is the transient result of scoring one (entry, record)
// pair. Candidates are not persisted beyond resolution unless the outcome is
// ambiguous.
type MatchCandidate struct {
	RecordID        string          `json:"record_id"`
	Score           float64         `json:"score"`
	Factors         FactorScores    `json:"factors"`
	RecordAmount    decimal.Decimal `json:"record_amount"`
	AmountDeviation decimal.Decimal `json:"amount_deviation"`
	RecordDueDate   time.Time       `json:"record_due_date"`
}

// MatchResult is the persisted outcome for one external entry.
type MatchResult struct {
	ID           string           `json:"id"`
	RunID        string           `json:"run_id"`
	EntryID      string           `json:"entry_id"`
	Status       MatchStatus      `json:"status"`
	Chosen       *MatchCandidate  `json:"chosen,omitempty"`
	Alternatives []MatchCandidate `json:"alternatives,omitempty"`
	Reason       string           `json:"reason,omitempty"`
	Timestamp    time.Time        `json:"timestamp"`
}

// ResolutionState tracks the lifecycle of an ambiguous match record.
type ResolutionState string

const (
	ResolutionPending  ResolutionState = "pending"
	ResolutionAccepted ResolutionState = "accepted"
	ResolutionRejected ResolutionState = "rejected"
	ResolutionManual   ResolutionState = "manual"
)

// AmbiguousMatchRecord is persisted when a resolution is ambiguous. It holds
// every candidate above the minimum floor and the differential between the
// top two, and records who resolved it once resolved.
type AmbiguousMatchRecord struct {
	ID           string           `json:"id"`
	RunID        string           `json:"run_id"`
	EntryID      string           `json:"entry_id"`
	Candidates   []MatchCandidate `json:"candidates"`
	Differential float64          `json:"differential"`
	State        ResolutionState  `json:"state"`
	ResolverID   string           `json:"resolver_id,omitempty"`
	ResolvedAt   *time.Time       `json:"resolved_at,omitempty"`
	CreatedAt    time.Time        `json:"created_at"`
}

// EntryError reports an entry-level failure isolated from the rest of a run.
type EntryError struct {
	EntryID string `json:"entry_id"`
	Message string `json:"message"`
}

// RunSummary aggregates the outcome of one reconciliation run.
type RunSummary struct {
	RunID          string         `json:"run_id"`
	Scope          string         `json:"scope"`
	StartedAt      time.Time      `json:"started_at"`
	CompletedAt    time.Time      `json:"completed_at"`
	MatchedCount   int            `json:"matched_count"`
	AmbiguousCount int            `json:"ambiguous_count"`
	UnmatchedCount int            `json:"unmatched_count"`
	RejectedCount  int            `json:"rejected_count"`
	DuplicateCount int            `json:"duplicate_count"`
	Results        []*MatchResult `json:"results"`
	EntryErrors    []EntryError   `json:"entry_errors,omitempty"`
}

// ScopeContext bounds candidate pools and duplicate windows to one
// tenant/account.
type ScopeContext struct {
	AccountID string         `json:"account_id"`
	TenantID  string         `json:"tenant_id"`
	Timezone  *time.Location `json:"-"`
}
