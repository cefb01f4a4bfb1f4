package engine

import (
	"context"

	"recon-matching-engine/internal/models"
)

// ScopeResolver resolves an opaque scope id into the tenant/account context
// that bounds candidate pools and duplicate windows.
type ScopeResolver interface {
	ResolveScope(ctx context.Context, scopeID string) (*models.ScopeContext, error)
}

// LedgerStore is the persistence backend for internal records, match results,
// and ambiguous match records. Claim enforcement lives here: CommitMatch for
// an already-matched record returns a claim conflict.
type LedgerStore interface {
	// ListOpenRecords returns every internal record in scope still eligible
	// for matching.
	ListOpenRecords(ctx context.Context, scope *models.ScopeContext) ([]*models.InternalRecord, error)

	// CommitMatch persists one match result. When the result carries a chosen
	// candidate, the referenced record is atomically transitioned to matched;
	// a record that is no longer open yields a claim conflict.
	CommitMatch(ctx context.Context, result *models.MatchResult) error

	// MarkAmbiguous upserts an ambiguous match record awaiting resolution.
	MarkAmbiguous(ctx context.Context, record *models.AmbiguousMatchRecord) error

	// GetAmbiguous fetches an ambiguous match record by id.
	GetAmbiguous(ctx context.Context, id string) (*models.AmbiguousMatchRecord, error)
}

// NotificationSink receives run events. Implementations must not block the
// run; failures are the sink's own concern.
type NotificationSink interface {
	AmbiguousCreated(ctx context.Context, record *models.AmbiguousMatchRecord)
	ResultRecorded(ctx context.Context, result *models.MatchResult)
}
