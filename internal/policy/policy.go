// Package policy maps a resolved match's confidence into an action:
// auto-apply, queue for review, or reject. Tiers combine a percentage
// deviation bound AND an absolute-amount deviation bound; a pair must pass
// both bounds of a tier's envelope, and failing either drops it to the next,
// stricter tier. A percentage-only bound would misallocate large-value pairs.
package policy

import (
	"fmt"

	"github.com/shopspring/decimal"

	"recon-matching-engine/internal/models"
	"recon-matching-engine/internal/scorer"
	"recon-matching-engine/pkg/errors"
	"recon-matching-engine/pkg/logger"
)

// Action is what the orchestrator does with a resolved match.
type Action string

const (
	// ActionAutoApply commits the match without human involvement.
	ActionAutoApply Action = "auto_apply"

	// ActionReview queues the match for manual review.
	ActionReview Action = "queue_for_review"

	// ActionReject discards the pairing; no candidate is retained as chosen.
	ActionReject Action = "reject"
)

// Tier names the deviation envelope a decision was evaluated against.
type Tier string

const (
	TierExact      Tier = "exact"
	TierNear       Tier = "near"
	TierPartial    Tier = "partial"
	TierBelowFloor Tier = "below_floor"
)

// Bounds is one tier's envelope: a percentage bound and an absolute bound
// that must BOTH hold.
type Bounds struct {
	Percent  float64         `json:"percent"`
	Absolute decimal.Decimal `json:"absolute"`
}

// contains reports whether both bounds hold for the given deviation.
func (b Bounds) contains(percentDev float64, absoluteDev decimal.Decimal) bool {
	return percentDev <= b.Percent && absoluteDev.LessThanOrEqual(b.Absolute)
}

// Config holds decision policy parameters.
type Config struct {
	// NearTier is the tight envelope inside which high-confidence matches
	// auto-apply.
	NearTier Bounds `json:"near_tier"`

	// PartialTier is the wider envelope inside which matches always require
	// manual review, regardless of confidence.
	PartialTier Bounds `json:"partial_tier"`

	// AutoApproveThreshold is the minimum composite confidence for
	// auto-applying a near-tier match.
	AutoApproveThreshold float64 `json:"auto_approve_threshold"`

	// AutoRejectThreshold is the confidence below which a match is rejected
	// outright.
	AutoRejectThreshold float64 `json:"auto_reject_threshold"`
}

// DefaultConfig returns policy defaults: near tier 0.5% / 1.00, partial tier
// 10% / 100.00, auto-approve at 0.95, auto-reject below 0.30.
func DefaultConfig() *Config {
	return &Config{
		NearTier: Bounds{
			Percent:  0.5,
			Absolute: decimal.NewFromFloat(1.00),
		},
		PartialTier: Bounds{
			Percent:  10.0,
			Absolute: decimal.NewFromFloat(100.00),
		},
		AutoApproveThreshold: 0.95,
		AutoRejectThreshold:  0.30,
	}
}

// Validate checks the policy configuration. Violations fail the run at
// startup; bounds are never silently clamped.
func (c *Config) Validate() error {
	if c.AutoApproveThreshold < 0.0 || c.AutoApproveThreshold > 1.0 {
		return errors.ConfigError("policy.auto_approve_threshold", c.AutoApproveThreshold)
	}
	if c.AutoRejectThreshold < 0.0 || c.AutoRejectThreshold > 1.0 {
		return errors.ConfigError("policy.auto_reject_threshold", c.AutoRejectThreshold)
	}
	if c.AutoRejectThreshold >= c.AutoApproveThreshold {
		return errors.New(errors.CategoryConfiguration, errors.CodeInvertedBounds,
			"auto-reject threshold must be below the auto-approve threshold").
			WithContext("auto_approve", c.AutoApproveThreshold).
			WithContext("auto_reject", c.AutoRejectThreshold)
	}
	if c.NearTier.Percent < 0 || c.NearTier.Absolute.IsNegative() {
		return errors.ConfigError("policy.near_tier", c.NearTier)
	}
	if c.PartialTier.Percent < 0 || c.PartialTier.Absolute.IsNegative() {
		return errors.ConfigError("policy.partial_tier", c.PartialTier)
	}
	if c.NearTier.Percent > c.PartialTier.Percent || c.NearTier.Absolute.GreaterThan(c.PartialTier.Absolute) {
		return errors.New(errors.CategoryConfiguration, errors.CodeInvertedBounds,
			"near tier envelope must lie inside the partial tier envelope").
			WithContext("near_percent", c.NearTier.Percent).
			WithContext("partial_percent", c.PartialTier.Percent)
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

// Decision is the action taken for one resolved match, with the tier and
// both bound values that were evaluated, for audit.
type Decision struct {
	Action        Action          `json:"action"`
	Tier          Tier            `json:"tier"`
	Confidence    float64         `json:"confidence"`
	Reason        string          `json:"reason"`
	PercentBound  float64         `json:"percent_bound"`
	AbsoluteBound decimal.Decimal `json:"absolute_bound"`
}

// Policy maps resolved matches to actions.
type Policy struct {
	config *Config
	logger logger.Logger
}

// NewPolicy creates a decision policy with the given configuration.
func NewPolicy(config *Config) (*Policy, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &Policy{
		config: config,
		logger: logger.GetGlobalLogger().WithComponent("decision_policy"),
	}, nil
}

// Config returns a copy of the policy configuration.
func (p *Policy) Config() *Config {
	return p.config.Clone()
}

// Decide maps one resolved candidate into an action. The entry amount is
// needed to evaluate the percentage deviation of each tier envelope.
func (p *Policy) Decide(candidate *models.MatchCandidate, entryAmount decimal.Decimal) Decision {
	confidence := candidate.Score

	if confidence < p.config.AutoRejectThreshold {
		return p.logged(candidate, Decision{
			Action:     ActionReject,
			Tier:       TierBelowFloor,
			Confidence: confidence,
			Reason: fmt.Sprintf("confidence %.3f below auto-reject threshold %.2f",
				confidence, p.config.AutoRejectThreshold),
		})
	}

	deviation := candidate.AmountDeviation
	percentDev := scorer.PercentDeviation(entryAmount, candidate.RecordAmount)

	if deviation.IsZero() {
		return p.logged(candidate, Decision{
			Action:     ActionAutoApply,
			Tier:       TierExact,
			Confidence: 1.0,
			Reason:     "zero amount deviation",
		})
	}

	if p.config.NearTier.contains(percentDev, deviation) {
		if confidence >= p.config.AutoApproveThreshold {
			return p.logged(candidate, Decision{
				Action:     ActionAutoApply,
				Tier:       TierNear,
				Confidence: confidence,
				Reason: fmt.Sprintf("deviation %s (%.2f%%) within near tier, confidence %.3f >= %.2f",
					deviation.String(), percentDev, confidence, p.config.AutoApproveThreshold),
				PercentBound:  p.config.NearTier.Percent,
				AbsoluteBound: p.config.NearTier.Absolute,
			})
		}
		return p.logged(candidate, Decision{
			Action:     ActionReview,
			Tier:       TierNear,
			Confidence: confidence,
			Reason: fmt.Sprintf("deviation %s (%.2f%%) within near tier but confidence %.3f below auto-approve threshold %.2f",
				deviation.String(), percentDev, confidence, p.config.AutoApproveThreshold),
			PercentBound:  p.config.NearTier.Percent,
			AbsoluteBound: p.config.NearTier.Absolute,
		})
	}

	if p.config.PartialTier.contains(percentDev, deviation) {
		return p.logged(candidate, Decision{
			Action:     ActionReview,
			Tier:       TierPartial,
			Confidence: confidence,
			Reason: fmt.Sprintf("deviation %s (%.2f%%) within partial tier, manual review required",
				deviation.String(), percentDev),
			PercentBound:  p.config.PartialTier.Percent,
			AbsoluteBound: p.config.PartialTier.Absolute,
		})
	}

	return p.logged(candidate, Decision{
		Action:     ActionReview,
		Tier:       TierPartial,
		Confidence: confidence,
		Reason: fmt.Sprintf("deviation %s (%.2f%%) beyond the partial tier envelope",
			deviation.String(), percentDev),
		PercentBound:  p.config.PartialTier.Percent,
		AbsoluteBound: p.config.PartialTier.Absolute,
	})
}

// logged records the tier name and both evaluated bound values before
// returning the decision.
func (p *Policy) logged(candidate *models.MatchCandidate, d Decision) Decision {
	p.logger.WithFields(logger.Fields{
		"record_id":      candidate.RecordID,
		"action":         string(d.Action),
		"tier":           string(d.Tier),
		"confidence":     d.Confidence,
		"percent_bound":  d.PercentBound,
		"absolute_bound": d.AbsoluteBound.String(),
	}).Debug("decision evaluated")
	return d
}
