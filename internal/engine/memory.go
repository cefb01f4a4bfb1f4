package engine

import (
	"context"
	"sync"
	"time"

	"recon-matching-engine/internal/models"
	"recon-matching-engine/pkg/errors"
	"recon-matching-engine/pkg/logger"
)

// StaticScopeResolver maps scope ids onto single-account contexts without a
// directory lookup. It backs the CLI path where the scope id is the account.
type StaticScopeResolver struct {
	Timezone *time.Location
}

// ResolveScope implements ScopeResolver.
func (r *StaticScopeResolver) ResolveScope(ctx context.Context, scopeID string) (*models.ScopeContext, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if scopeID == "" {
		return nil, errors.InvalidInput("scope_id", scopeID, nil)
	}
	loc := r.Timezone
	if loc == nil {
		loc = time.UTC
	}
	return &models.ScopeContext{
		AccountID: scopeID,
		TenantID:  scopeID,
		Timezone:  loc,
	}, nil
}

// MemoryLedgerStore is an in-memory LedgerStore. It backs tests and the CLI
// demo path; production deployments plug a database-backed store into the
// same interface.
type MemoryLedgerStore struct {
	mu        sync.Mutex
	records   map[string]*models.InternalRecord
	results   map[string]*models.MatchResult
	ambiguous map[string]*models.AmbiguousMatchRecord
}

// NewMemoryLedgerStore creates a ledger store seeded with the given open
// records.
func NewMemoryLedgerStore(records []*models.InternalRecord) *MemoryLedgerStore {
	s := &MemoryLedgerStore{
		records:   make(map[string]*models.InternalRecord, len(records)),
		results:   make(map[string]*models.MatchResult),
		ambiguous: make(map[string]*models.AmbiguousMatchRecord),
	}
	for _, r := range records {
		clone := *r
		if clone.Status == "" {
			clone.Status = models.RecordOpen
		}
		s.records[clone.ID] = &clone
	}
	return s
}

// ListOpenRecords implements LedgerStore.
func (s *MemoryLedgerStore) ListOpenRecords(ctx context.Context, scope *models.ScopeContext) ([]*models.InternalRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	open := make([]*models.InternalRecord, 0, len(s.records))
	for _, r := range s.records {
		if r.Status == models.RecordOpen {
			clone := *r
			open = append(open, &clone)
		}
	}
	return open, nil
}

// CommitMatch implements LedgerStore. A chosen record that is no longer open
// produces a ClaimConflict and nothing is persisted.
func (s *MemoryLedgerStore) CommitMatch(ctx context.Context, result *models.MatchResult) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if result.Status == models.StatusMatched && result.Chosen != nil {
		record, ok := s.records[result.Chosen.RecordID]
		if !ok {
			return errors.InvalidInput("record_id", result.Chosen.RecordID, nil)
		}
		if record.Status != models.RecordOpen {
			return errors.ClaimConflict(record.ID)
		}
		record.Status = models.RecordMatched
	}

	s.results[result.ID] = result
	return nil
}

// MarkAmbiguous implements LedgerStore.
func (s *MemoryLedgerStore) MarkAmbiguous(ctx context.Context, record *models.AmbiguousMatchRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	clone := *record
	s.ambiguous[clone.ID] = &clone
	return nil
}

// GetAmbiguous implements LedgerStore.
func (s *MemoryLedgerStore) GetAmbiguous(ctx context.Context, id string) (*models.AmbiguousMatchRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.ambiguous[id]
	if !ok {
		return nil, errors.LookupFailure("ambiguous record fetch", nil).
			WithContext("ambiguous_id", id)
	}
	clone := *record
	return &clone, nil
}

// Record returns the stored internal record by id, for inspection in tests.
func (s *MemoryLedgerStore) Record(id string) (*models.InternalRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.records[id]
	if !ok {
		return nil, false
	}
	clone := *r
	return &clone, true
}

// Results returns all persisted match results.
func (s *MemoryLedgerStore) Results() []*models.MatchResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*models.MatchResult, 0, len(s.results))
	for _, r := range s.results {
		out = append(out, r)
	}
	return out
}

// PendingAmbiguous returns the ambiguous records still awaiting resolution.
func (s *MemoryLedgerStore) PendingAmbiguous() []*models.AmbiguousMatchRecord {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*models.AmbiguousMatchRecord, 0, len(s.ambiguous))
	for _, r := range s.ambiguous {
		if r.State == models.ResolutionPending {
			clone := *r
			out = append(out, &clone)
		}
	}
	return out
}

// LogNotificationSink writes run events to the structured log. It is the
// default sink for the CLI path.
type LogNotificationSink struct {
	Logger logger.Logger
}

func (s *LogNotificationSink) log() logger.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return logger.GetGlobalLogger().WithComponent("notifications")
}

// AmbiguousCreated implements NotificationSink.
func (s *LogNotificationSink) AmbiguousCreated(ctx context.Context, record *models.AmbiguousMatchRecord) {
	s.log().WithFields(logger.Fields{
		"ambiguous_id": record.ID,
		"entry_id":     record.EntryID,
		"candidates":   len(record.Candidates),
		"differential": record.Differential,
	}).Info("ambiguous match queued for review")
}

// ResultRecorded implements NotificationSink.
func (s *LogNotificationSink) ResultRecorded(ctx context.Context, result *models.MatchResult) {
	s.log().WithFields(logger.Fields{
		"entry_id": result.EntryID,
		"status":   result.Status.String(),
	}).Debug("match result recorded")
}
