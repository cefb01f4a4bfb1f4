// Package engine orchestrates a reconciliation run: duplicate screening,
// candidate scoring, resolution, and decision application for a batch of
// bank statement entries against the open internal records of one scope.
package engine

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/google/uuid"

	"recon-matching-engine/internal/dedup"
	"recon-matching-engine/internal/models"
	"recon-matching-engine/internal/policy"
	"recon-matching-engine/internal/resolver"
	"recon-matching-engine/internal/scorer"
	"recon-matching-engine/pkg/errors"
	"recon-matching-engine/pkg/logger"
)

// claimSet tracks the internal records claimed so far in one run. It is
// threaded explicitly through the per-entry step, never held as shared state.
type claimSet map[string]struct{}

func (c claimSet) with(recordID string) claimSet {
	c[recordID] = struct{}{}
	return c
}

func (c claimSet) has(recordID string) bool {
	_, ok := c[recordID]
	return ok
}

// Engine coordinates one reconciliation run end to end.
type Engine struct {
	scopes   ScopeResolver
	ledger   LedgerStore
	notifier NotificationSink
	dedup    *dedup.Deduplicator
	scorer   *scorer.Scorer
	resolver *resolver.Resolver
	policy   *policy.Policy
	config   *Config
	logger   logger.Logger
}

// NewEngine assembles an engine from its collaborators. Every configuration
// is validated here so a misconfigured run aborts before any entry is
// processed.
func NewEngine(
	scopes ScopeResolver,
	ledger LedgerStore,
	notifier NotificationSink,
	deduplicator *dedup.Deduplicator,
	sc *scorer.Scorer,
	rs *resolver.Resolver,
	config *Config,
	pl *policy.Policy,
) (*Engine, error) {
	if scopes == nil {
		return nil, errors.ConfigError("engine.scope_resolver", nil)
	}
	if ledger == nil {
		return nil, errors.ConfigError("engine.ledger_store", nil)
	}
	if deduplicator == nil || sc == nil || rs == nil || pl == nil {
		return nil, errors.ConfigError("engine.collaborators", nil).
			WithSuggestion("deduplicator, scorer, resolver, and policy are required")
	}
	if config == nil {
		config = DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if notifier == nil {
		notifier = &LogNotificationSink{}
	}
	return &Engine{
		scopes:   scopes,
		ledger:   ledger,
		notifier: notifier,
		dedup:    deduplicator,
		scorer:   sc,
		resolver: rs,
		policy:   pl,
		config:   config,
		logger:   logger.GetGlobalLogger().WithComponent("engine"),
	}, nil
}

// RunReconciliation processes a batch of entries against the open records of
// one scope. Entries are processed in input order; entry-level validation
// failures are isolated while lookup-retry exhaustion fails the run fast with
// prior commits intact. On cancellation the summary of work committed so far
// is returned alongside the cancellation error.
func (e *Engine) RunReconciliation(ctx context.Context, scopeID string, entries []*models.ExternalEntry) (*models.RunSummary, error) {
	scope, err := e.scopes.ResolveScope(ctx, scopeID)
	if err != nil {
		if _, ok := errors.As(err); ok {
			return nil, err
		}
		return nil, errors.LookupFailure("scope resolution", err).WithContext("scope_id", scopeID)
	}

	summary := &models.RunSummary{
		RunID:     uuid.New().String(),
		Scope:     scopeID,
		StartedAt: time.Now().UTC(),
	}

	log := e.logger.WithFields(logger.Fields{
		"run_id":  summary.RunID,
		"scope":   scopeID,
		"entries": len(entries),
	})
	log.Info("reconciliation run started")

	var records []*models.InternalRecord
	if err := e.withRetry(ctx, "open record listing", func() error {
		var lerr error
		records, lerr = e.ledger.ListOpenRecords(ctx, scope)
		return lerr
	}); err != nil {
		return nil, err
	}

	claimed := make(claimSet)
	for i, entry := range entries {
		if cerr := ctx.Err(); cerr != nil {
			summary.CompletedAt = time.Now().UTC()
			log.WithFields(logger.Fields{"processed": i}).Warn("run cancelled between entries")
			return summary, errors.Wrap(cerr, errors.CategoryInternal, errors.CodeUnexpected,
				"reconciliation run cancelled").WithContext("processed", i)
		}

		claimed, err = e.processEntry(ctx, scope, summary, entry, records, claimed)
		if err != nil {
			summary.CompletedAt = time.Now().UTC()
			return summary, err
		}
	}

	summary.CompletedAt = time.Now().UTC()
	log.WithFields(logger.Fields{
		"matched":    summary.MatchedCount,
		"ambiguous":  summary.AmbiguousCount,
		"unmatched":  summary.UnmatchedCount,
		"rejected":   summary.RejectedCount,
		"duplicates": summary.DuplicateCount,
	}).Info("reconciliation run completed")
	return summary, nil
}

// processEntry runs the full pipeline for one entry: dedup, scoring,
// resolution, decision, and commit. A claim conflict at commit time triggers
// exactly one re-score against the remaining pool.
func (e *Engine) processEntry(ctx context.Context, scope *models.ScopeContext, summary *models.RunSummary, entry *models.ExternalEntry, records []*models.InternalRecord, claimed claimSet) (claimSet, error) {
	if verr := entry.Validate(); verr != nil {
		return claimed, e.recordRejection(ctx, summary, entry, fmt.Sprintf("invalid entry: %v", verr))
	}

	fp := entry.Fingerprint
	if fp == "" {
		computed, ferr := dedup.Fingerprint(scope.AccountID, entry.OccurredOn, scope.Timezone, entry.Amount, entry.Description, entry.Reference)
		if ferr != nil {
			return claimed, e.recordRejection(ctx, summary, entry, ferr.Error())
		}
		fp = computed
		entry.Fingerprint = fp
	}

	var existingID string
	var isDuplicate bool
	err := e.withRetry(ctx, "duplicate check", func() error {
		var derr error
		existingID, isDuplicate, derr = e.dedup.Check(ctx, scope.AccountID, fp, entry.OccurredOn)
		return derr
	})
	if err != nil {
		if errors.IsInvalidInput(err) {
			return claimed, e.recordRejection(ctx, summary, entry, err.Error())
		}
		return claimed, err
	}
	if isDuplicate {
		result := e.newResult(summary.RunID, entry.ID, models.StatusRejected)
		result.Reason = fmt.Sprintf("duplicate of previously ingested entry %s", existingID)
		if cerr := e.commitResult(ctx, result); cerr != nil {
			return claimed, cerr
		}
		summary.DuplicateCount++
		summary.Results = append(summary.Results, result)
		e.notifier.ResultRecorded(ctx, result)
		return claimed, nil
	}
	if rerr := e.withRetry(ctx, "fingerprint record", func() error {
		return e.dedup.Record(ctx, scope.AccountID, fp, entry.ID, entry.OccurredOn)
	}); rerr != nil {
		return claimed, rerr
	}

	result, ambiguous := e.evaluateEntry(summary.RunID, scope, entry, records, claimed)

	err = e.commitResult(ctx, result)
	if errors.IsClaimConflict(err) {
		// The record was taken outside this run's claim set. Re-score once
		// against the remaining pool, then give up.
		claimed = claimed.with(result.Chosen.RecordID)
		result, ambiguous = e.evaluateEntry(summary.RunID, scope, entry, records, claimed)
		err = e.commitResult(ctx, result)
		if errors.IsClaimConflict(err) {
			result = e.newResult(summary.RunID, entry.ID, models.StatusRejected)
			result.Reason = "claim conflicts persisted after re-scoring"
			err = e.commitResult(ctx, result)
			ambiguous = nil
		}
	}
	if err != nil {
		return claimed, err
	}

	if ambiguous != nil {
		if merr := e.withRetry(ctx, "ambiguous record persist", func() error {
			return e.ledger.MarkAmbiguous(ctx, ambiguous)
		}); merr != nil {
			return claimed, merr
		}
		e.notifier.AmbiguousCreated(ctx, ambiguous)
	}

	if result.Status == models.StatusMatched && result.Chosen != nil {
		claimed = claimed.with(result.Chosen.RecordID)
	}

	switch result.Status {
	case models.StatusMatched:
		summary.MatchedCount++
	case models.StatusAmbiguous:
		summary.AmbiguousCount++
	case models.StatusUnmatched:
		summary.UnmatchedCount++
	case models.StatusRejected:
		summary.RejectedCount++
	}
	summary.Results = append(summary.Results, result)
	e.notifier.ResultRecorded(ctx, result)
	return claimed, nil
}

// evaluateEntry scores the entry against the unclaimed pool, resolves the
// candidate set, and applies the decision policy. It has no side effects; the
// caller commits the returned result and persists any ambiguous record.
func (e *Engine) evaluateEntry(runID string, scope *models.ScopeContext, entry *models.ExternalEntry, records []*models.InternalRecord, claimed claimSet) (*models.MatchResult, *models.AmbiguousMatchRecord) {
	pool := make([]*models.InternalRecord, 0, len(records))
	for _, r := range records {
		if !claimed.has(r.ID) {
			pool = append(pool, r)
		}
	}

	candidates := e.scoreCandidates(entry, pool, scope.Timezone)
	resolution := e.resolver.Resolve(entry, candidates)

	result := e.newResult(runID, entry.ID, resolution.Status)
	result.Reason = resolution.Reason

	switch resolution.Status {
	case models.StatusUnmatched:
		return result, nil

	case models.StatusAmbiguous:
		return result, e.newAmbiguousRecord(runID, entry.ID, resolution.Alternatives, resolution.Differential)
	}

	decision := e.policy.Decide(resolution.Chosen, entry.Amount)
	switch decision.Action {
	case policy.ActionAutoApply:
		result.Status = models.StatusMatched
		result.Chosen = resolution.Chosen
		result.Alternatives = resolution.Alternatives
		result.Reason = decision.Reason
		return result, nil

	case policy.ActionReview:
		candidateSet := append([]models.MatchCandidate{*resolution.Chosen}, resolution.Alternatives...)
		result.Status = models.StatusAmbiguous
		result.Alternatives = candidateSet
		result.Reason = decision.Reason
		return result, e.newAmbiguousRecord(runID, entry.ID, candidateSet, resolution.Differential)

	default:
		result.Status = models.StatusRejected
		result.Reason = decision.Reason
		return result, nil
	}
}

// scoreCandidates fans candidate scoring out over a bounded worker pool.
// Scoring is pure, so workers share nothing but the output slice.
func (e *Engine) scoreCandidates(entry *models.ExternalEntry, pool []*models.InternalRecord, loc *time.Location) []models.MatchCandidate {
	if len(pool) == 0 {
		return nil
	}

	workers := e.config.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	if workers > len(pool) {
		workers = len(pool)
	}

	candidates := make([]models.MatchCandidate, len(pool))
	jobs := make(chan int)

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				candidates[i] = e.scorer.Score(entry, pool[i], loc)
			}
		}()
	}
	for i := range pool {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	return candidates
}

// ResolveAmbiguity accepts one candidate of a pending ambiguous record,
// committing the chosen claim and stamping the resolver identity. A claim
// conflict from the store propagates to the caller unresolved.
func (e *Engine) ResolveAmbiguity(ctx context.Context, ambiguousID, chosenRecordID, resolverID string) (*models.MatchResult, error) {
	record, err := e.fetchPendingAmbiguous(ctx, ambiguousID)
	if err != nil {
		return nil, err
	}

	var chosen *models.MatchCandidate
	for i := range record.Candidates {
		if record.Candidates[i].RecordID == chosenRecordID {
			chosen = &record.Candidates[i]
			break
		}
	}
	if chosen == nil {
		return nil, errors.InvalidInput("chosen_record_id", chosenRecordID, nil).
			WithSuggestion("the chosen record must be one of the retained candidates").
			WithContext("ambiguous_id", ambiguousID)
	}

	result := e.newResult(record.RunID, record.EntryID, models.StatusMatched)
	result.Chosen = chosen
	result.Reason = fmt.Sprintf("ambiguity resolved manually by %s", resolverID)
	if err := e.commitResult(ctx, result); err != nil {
		return nil, err
	}

	if err := e.transitionAmbiguous(ctx, record, models.ResolutionAccepted, resolverID); err != nil {
		return nil, err
	}
	e.notifier.ResultRecorded(ctx, result)
	return result, nil
}

// RejectAmbiguity discards a pending ambiguous record without claiming any
// candidate. The underlying entry is recorded as rejected.
func (e *Engine) RejectAmbiguity(ctx context.Context, ambiguousID, resolverID string) (*models.MatchResult, error) {
	record, err := e.fetchPendingAmbiguous(ctx, ambiguousID)
	if err != nil {
		return nil, err
	}

	result := e.newResult(record.RunID, record.EntryID, models.StatusRejected)
	result.Reason = fmt.Sprintf("ambiguous candidates rejected manually by %s", resolverID)
	if err := e.commitResult(ctx, result); err != nil {
		return nil, err
	}

	if err := e.transitionAmbiguous(ctx, record, models.ResolutionRejected, resolverID); err != nil {
		return nil, err
	}
	e.notifier.ResultRecorded(ctx, result)
	return result, nil
}

// CheckDuplicates screens a batch of fingerprints against the scope's
// trailing window without running any matching.
func (e *Engine) CheckDuplicates(ctx context.Context, scopeID string, fingerprints []string) (*dedup.BatchResult, error) {
	scope, err := e.scopes.ResolveScope(ctx, scopeID)
	if err != nil {
		if _, ok := errors.As(err); ok {
			return nil, err
		}
		return nil, errors.LookupFailure("scope resolution", err).WithContext("scope_id", scopeID)
	}

	var result *dedup.BatchResult
	if err := e.withRetry(ctx, "batch duplicate check", func() error {
		var cerr error
		result, cerr = e.dedup.CheckBatch(ctx, scope.AccountID, fingerprints, time.Now().UTC())
		return cerr
	}); err != nil {
		return nil, err
	}
	return result, nil
}

func (e *Engine) fetchPendingAmbiguous(ctx context.Context, ambiguousID string) (*models.AmbiguousMatchRecord, error) {
	var record *models.AmbiguousMatchRecord
	if err := e.withRetry(ctx, "ambiguous record fetch", func() error {
		var gerr error
		record, gerr = e.ledger.GetAmbiguous(ctx, ambiguousID)
		return gerr
	}); err != nil {
		return nil, err
	}
	if record.State != models.ResolutionPending {
		return nil, errors.InvalidInput("ambiguous_id", ambiguousID, nil).
			WithSuggestion("only pending ambiguous records can be resolved").
			WithContext("state", string(record.State))
	}
	return record, nil
}

func (e *Engine) transitionAmbiguous(ctx context.Context, record *models.AmbiguousMatchRecord, state models.ResolutionState, resolverID string) error {
	now := time.Now().UTC()
	record.State = state
	record.ResolverID = resolverID
	record.ResolvedAt = &now
	return e.withRetry(ctx, "ambiguous record update", func() error {
		return e.ledger.MarkAmbiguous(ctx, record)
	})
}

// recordRejection isolates an entry-level validation failure: the entry gets
// a rejected result with the reason and the run continues.
func (e *Engine) recordRejection(ctx context.Context, summary *models.RunSummary, entry *models.ExternalEntry, reason string) error {
	e.logger.WithFields(logger.Fields{
		"run_id":   summary.RunID,
		"entry_id": entry.ID,
	}).Warn("entry rejected: " + reason)

	result := e.newResult(summary.RunID, entry.ID, models.StatusRejected)
	result.Reason = reason
	if err := e.commitResult(ctx, result); err != nil {
		return err
	}
	summary.RejectedCount++
	summary.Results = append(summary.Results, result)
	summary.EntryErrors = append(summary.EntryErrors, models.EntryError{
		EntryID: entry.ID,
		Message: reason,
	})
	e.notifier.ResultRecorded(ctx, result)
	return nil
}

// commitResult persists one result with lookup retry. Claim conflicts are
// returned as-is for the caller to handle.
func (e *Engine) commitResult(ctx context.Context, result *models.MatchResult) error {
	return e.withRetry(ctx, "result commit", func() error {
		return e.ledger.CommitMatch(ctx, result)
	})
}

func (e *Engine) newResult(runID, entryID string, status models.MatchStatus) *models.MatchResult {
	return &models.MatchResult{
		ID:        uuid.New().String(),
		RunID:     runID,
		EntryID:   entryID,
		Status:    status,
		Timestamp: time.Now().UTC(),
	}
}

func (e *Engine) newAmbiguousRecord(runID, entryID string, candidates []models.MatchCandidate, differential float64) *models.AmbiguousMatchRecord {
	return &models.AmbiguousMatchRecord{
		ID:           uuid.New().String(),
		RunID:        runID,
		EntryID:      entryID,
		Candidates:   candidates,
		Differential: differential,
		State:        models.ResolutionPending,
		CreatedAt:    time.Now().UTC(),
	}
}

// withRetry runs fn, retrying lookup failures with bounded exponential
// backoff. Any other error returns immediately; exhausting the retries wraps
// the last failure so the run fails fast.
func (e *Engine) withRetry(ctx context.Context, operation string, fn func() error) error {
	delay := e.config.RetryBaseDelay
	var err error
	for attempt := 0; ; attempt++ {
		err = fn()
		if err == nil || !errors.IsLookupFailure(err) {
			return err
		}
		if attempt >= e.config.MaxRetries {
			break
		}

		e.logger.WithError(err).WithFields(logger.Fields{
			"operation": operation,
			"attempt":   attempt + 1,
			"delay":     delay.String(),
		}).Warn("lookup failed, retrying")

		select {
		case <-ctx.Done():
			return errors.Wrap(ctx.Err(), errors.CategoryInternal, errors.CodeUnexpected,
				"cancelled while retrying "+operation)
		case <-time.After(delay):
		}

		delay *= 2
		if delay > e.config.RetryMaxDelay {
			delay = e.config.RetryMaxDelay
		}
	}
	return errors.Wrap(err, errors.CategoryLookup, errors.CodeLookupFailure,
		fmt.Sprintf("%s failed after %d retries", operation, e.config.MaxRetries))
}
