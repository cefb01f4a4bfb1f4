package dedup

import (
	"context"
	"time"

	"recon-matching-engine/pkg/errors"
	"recon-matching-engine/pkg/logger"
)

// Config holds deduplication parameters.
type Config struct {
	// WindowDays is the trailing window, in days, inside which an identical
	// fingerprint counts as a duplicate.
	WindowDays int `json:"window_days"`

	// BatchSize bounds how many fingerprints go into one membership query.
	BatchSize int `json:"batch_size"`
}

// DefaultConfig returns the default deduplication configuration: a 90-day
// lookback window and 500 fingerprints per lookup round.
func DefaultConfig() *Config {
	return &Config{
		WindowDays: 90,
		BatchSize:  500,
	}
}

// Validate checks the deduplication configuration.
func (c *Config) Validate() error {
	if c.WindowDays <= 0 {
		return errors.ConfigError("dedup.window_days", c.WindowDays)
	}
	if c.BatchSize <= 0 {
		return errors.ConfigError("dedup.batch_size", c.BatchSize)
	}
	return nil
}

// BatchResult partitions a fingerprint batch into duplicates and uniques.
type BatchResult struct {
	// Duplicates maps each duplicate fingerprint to the existing entry id.
	Duplicates map[string]string `json:"duplicates"`

	// Unique holds the fingerprints with no match inside the window.
	Unique []string `json:"unique"`
}

// Deduplicator performs windowed duplicate detection against a
// FingerprintStore.
type Deduplicator struct {
	store  FingerprintStore
	config *Config
	logger logger.Logger
}

// NewDeduplicator creates a deduplicator over the given store.
func NewDeduplicator(store FingerprintStore, config *Config) (*Deduplicator, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &Deduplicator{
		store:  store,
		config: config,
		logger: logger.GetGlobalLogger().WithComponent("dedup"),
	}, nil
}

// windowStart computes the inclusive lower bound of the lookback window.
func (d *Deduplicator) windowStart(asOf time.Time) time.Time {
	return asOf.AddDate(0, 0, -d.config.WindowDays)
}

// Check performs a single duplicate lookup for one fingerprint, restricted
// to the trailing window ending at asOf. A fingerprint carrying a different
// algorithm version is not comparable and reported as not a duplicate.
func (d *Deduplicator) Check(ctx context.Context, scope, fp string, asOf time.Time) (string, bool, error) {
	version, ok := VersionOf(fp)
	if !ok {
		return "", false, errors.InvalidInput("fingerprint", fp, nil).
			WithSuggestion("fingerprints must carry a version tag, e.g. 'v1:<hex>'")
	}
	if version != Version {
		d.logger.WithFields(logger.Fields{
			"fingerprint_version": version,
			"current_version":     Version,
		}).Debug("fingerprint version mismatch, not comparable")
		return "", false, nil
	}

	existingID, found, err := d.store.Lookup(ctx, scope, fp, d.windowStart(asOf), asOf)
	if err != nil {
		return "", false, errors.LookupFailure("duplicate check", err).
			WithContext("scope", scope)
	}
	return existingID, found, nil
}

// CheckBatch performs duplicate detection for a set of fingerprints. The
// input is de-duplicated first, then membership queries are issued in rounds
// of at most BatchSize fingerprints instead of one query per fingerprint.
func (d *Deduplicator) CheckBatch(ctx context.Context, scope string, fps []string, asOf time.Time) (*BatchResult, error) {
	result := &BatchResult{
		Duplicates: make(map[string]string),
	}

	seen := make(map[string]struct{}, len(fps))
	var comparable []string
	for _, fp := range fps {
		if _, dup := seen[fp]; dup {
			continue
		}
		seen[fp] = struct{}{}

		version, ok := VersionOf(fp)
		if !ok {
			return nil, errors.InvalidInput("fingerprint", fp, nil).
				WithSuggestion("fingerprints must carry a version tag, e.g. 'v1:<hex>'")
		}
		if version != Version {
			// Not comparable: classified unique rather than silently merged.
			result.Unique = append(result.Unique, fp)
			continue
		}
		comparable = append(comparable, fp)
	}

	from := d.windowStart(asOf)
	for start := 0; start < len(comparable); start += d.config.BatchSize {
		end := start + d.config.BatchSize
		if end > len(comparable) {
			end = len(comparable)
		}

		found, err := d.store.LookupBatch(ctx, scope, comparable[start:end], from, asOf)
		if err != nil {
			return nil, errors.LookupFailure("batch duplicate check", err).
				WithContext("scope", scope).
				WithContext("batch_size", end-start)
		}

		for _, fp := range comparable[start:end] {
			if id, dup := found[fp]; dup {
				result.Duplicates[fp] = id
			} else {
				result.Unique = append(result.Unique, fp)
			}
		}
	}

	d.logger.WithFields(logger.Fields{
		"scope":      scope,
		"checked":    len(seen),
		"duplicates": len(result.Duplicates),
	}).Debug("batch duplicate check completed")

	return result, nil
}

// Record indexes an entry's fingerprint for future duplicate checks.
func (d *Deduplicator) Record(ctx context.Context, scope, fp, id string, occurredOn time.Time) error {
	if err := d.store.Record(ctx, scope, fp, id, occurredOn); err != nil {
		return errors.LookupFailure("fingerprint record", err).
			WithContext("scope", scope)
	}
	return nil
}
