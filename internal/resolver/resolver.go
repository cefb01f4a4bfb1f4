// Package resolver ranks the scored candidates for one bank entry and
// classifies the outcome as matched, ambiguous, or unmatched. Every open
// record in scope is evaluated before ranking; there is no early exit, so
// the true best candidate is always considered.
package resolver

import (
	"fmt"
	"sort"

	"recon-matching-engine/internal/models"
	"recon-matching-engine/internal/normalize"
	"recon-matching-engine/pkg/errors"
)

// Config holds resolution parameters.
type Config struct {
	// MinScoreFloor discards candidates scoring below it before ranking.
	MinScoreFloor float64 `json:"min_score_floor"`

	// AmbiguityThreshold is the score differential between the top two
	// candidates below which the outcome is ambiguous.
	AmbiguityThreshold float64 `json:"ambiguity_threshold"`

	// MaxAlternatives bounds how many runner-up candidates are retained.
	MaxAlternatives int `json:"max_alternatives"`
}

// DefaultConfig returns resolution defaults: floor 0.50, ambiguity
// threshold 0.10, top 5 alternatives retained.
func DefaultConfig() *Config {
	return &Config{
		MinScoreFloor:      0.50,
		AmbiguityThreshold: 0.10,
		MaxAlternatives:    5,
	}
}

// Validate checks the resolution configuration.
func (c *Config) Validate() error {
	if c.MinScoreFloor < 0.0 || c.MinScoreFloor > 1.0 {
		return errors.ConfigError("resolver.min_score_floor", c.MinScoreFloor)
	}
	if c.AmbiguityThreshold < 0.0 || c.AmbiguityThreshold > 1.0 {
		return errors.ConfigError("resolver.ambiguity_threshold", c.AmbiguityThreshold)
	}
	if c.MaxAlternatives <= 0 {
		return errors.ConfigError("resolver.max_alternatives", c.MaxAlternatives)
	}
	return nil
}

// Clone creates a copy of the configuration.
func (c *Config) Clone() *Config {
	if c == nil {
		return nil
	}
	clone := *c
	return &clone
}

// Resolution is the classified outcome for one entry.
type Resolution struct {
	Status       models.MatchStatus
	Chosen       *models.MatchCandidate
	Alternatives []models.MatchCandidate
	Differential float64
	Reason       string
}

// Resolver classifies scored candidate sets.
type Resolver struct {
	config *Config
}

// NewResolver creates a resolver with the given configuration.
func NewResolver(config *Config) (*Resolver, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &Resolver{config: config}, nil
}

// Config returns a copy of the resolution configuration.
func (r *Resolver) Config() *Config {
	return r.config.Clone()
}

// Resolve ranks the candidates for one entry and classifies the outcome.
// Candidates below the minimum floor are discarded; the survivors are sorted
// descending by score with a deterministic tie-break; the differential
// between the top two decides matched versus ambiguous.
func (r *Resolver) Resolve(entry *models.ExternalEntry, candidates []models.MatchCandidate) Resolution {
	eligible := make([]models.MatchCandidate, 0, len(candidates))
	for _, c := range candidates {
		if c.Score >= r.config.MinScoreFloor {
			eligible = append(eligible, c)
		}
	}

	if len(eligible) == 0 {
		return Resolution{
			Status: models.StatusUnmatched,
			Reason: fmt.Sprintf("no candidate reached the minimum score floor %.2f", r.config.MinScoreFloor),
		}
	}

	r.rank(entry, eligible)

	if len(eligible) == 1 {
		chosen := eligible[0]
		return Resolution{
			Status: models.StatusMatched,
			Chosen: &chosen,
		}
	}

	differential := eligible[0].Score - eligible[1].Score
	if differential < r.config.AmbiguityThreshold {
		retained := eligible
		if len(retained) > r.config.MaxAlternatives {
			retained = retained[:r.config.MaxAlternatives]
		}
		return Resolution{
			Status:       models.StatusAmbiguous,
			Alternatives: retained,
			Differential: differential,
			Reason: fmt.Sprintf("top candidates within ambiguity threshold: differential %.3f < %.3f (%d candidates retained)",
				differential, r.config.AmbiguityThreshold, len(retained)),
		}
	}

	chosen := eligible[0]
	alternatives := eligible[1:]
	if len(alternatives) > r.config.MaxAlternatives {
		alternatives = alternatives[:r.config.MaxAlternatives]
	}
	return Resolution{
		Status:       models.StatusMatched,
		Chosen:       &chosen,
		Alternatives: alternatives,
		Differential: differential,
	}
}

// rank sorts candidates descending by score. Exactly equal scores are broken
// by due-date proximity to the entry's occurred-on date, then by the
// lexicographically smaller record id, so rankings are reproducible for
// audit.
func (r *Resolver) rank(entry *models.ExternalEntry, candidates []models.MatchCandidate) {
	entryDay := normalize.Day(entry.OccurredOn, nil)

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].Score != candidates[j].Score {
			return candidates[i].Score > candidates[j].Score
		}

		di := normalize.DaysBetween(entryDay, normalize.Day(candidates[i].RecordDueDate, nil))
		dj := normalize.DaysBetween(entryDay, normalize.Day(candidates[j].RecordDueDate, nil))
		if di != dj {
			return di < dj
		}

		return candidates[i].RecordID < candidates[j].RecordID
	})
}
