package dedup

import (
	"context"
	"sync"
	"time"
)

// FingerprintStore is the indexed lookup backend for fingerprints. Lookups
// are equality matches scoped to one account and bounded to a date window;
// implementations must be O(1) amortized per fingerprint.
type FingerprintStore interface {
	// Lookup returns the id of an existing entry with this fingerprint whose
	// occurred-on date falls inside [from, to], if any.
	Lookup(ctx context.Context, scope, fp string, from, to time.Time) (existingID string, found bool, err error)

	// LookupBatch performs one set-membership query for a batch of
	// fingerprints and returns fingerprint -> existing id for the duplicates.
	LookupBatch(ctx context.Context, scope string, fps []string, from, to time.Time) (map[string]string, error)

	// Record indexes a fingerprint for future duplicate checks.
	Record(ctx context.Context, scope, fp, id string, occurredOn time.Time) error
}

type storedFingerprint struct {
	id         string
	occurredOn time.Time
}

// MemoryFingerprintStore is an in-memory FingerprintStore keyed by
// (scope, fingerprint). It backs tests and the CLI demo path; production
// deployments plug a database-backed store into the same interface.
type MemoryFingerprintStore struct {
	mu    sync.RWMutex
	index map[string]storedFingerprint
}

// NewMemoryFingerprintStore creates an empty in-memory store.
func NewMemoryFingerprintStore() *MemoryFingerprintStore {
	return &MemoryFingerprintStore{
		index: make(map[string]storedFingerprint),
	}
}

func storeKey(scope, fp string) string {
	return scope + "\x00" + fp
}

// Lookup implements FingerprintStore.
func (s *MemoryFingerprintStore) Lookup(ctx context.Context, scope, fp string, from, to time.Time) (string, bool, error) {
	if err := ctx.Err(); err != nil {
		return "", false, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	stored, ok := s.index[storeKey(scope, fp)]
	if !ok {
		return "", false, nil
	}
	if stored.occurredOn.Before(from) || stored.occurredOn.After(to) {
		return "", false, nil
	}
	return stored.id, true, nil
}

// LookupBatch implements FingerprintStore.
func (s *MemoryFingerprintStore) LookupBatch(ctx context.Context, scope string, fps []string, from, to time.Time) (map[string]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	found := make(map[string]string)
	for _, fp := range fps {
		stored, ok := s.index[storeKey(scope, fp)]
		if !ok {
			continue
		}
		if stored.occurredOn.Before(from) || stored.occurredOn.After(to) {
			continue
		}
		found[fp] = stored.id
	}
	return found, nil
}

// Record implements FingerprintStore.
func (s *MemoryFingerprintStore) Record(ctx context.Context, scope, fp, id string, occurredOn time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := storeKey(scope, fp)
	if _, exists := s.index[key]; exists {
		return nil
	}
	s.index[key] = storedFingerprint{id: id, occurredOn: occurredOn}
	return nil
}

// Len returns the number of indexed fingerprints.
func (s *MemoryFingerprintStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.index)
}
