// Package scorer computes multi-factor match scores between one bank entry
// and one candidate internal record. Scoring is pure: a non-matching pair
// yields a low score, never an error.
package scorer

import (
	"github.com/shopspring/decimal"

	"recon-matching-engine/pkg/errors"
)

// Weights defines the relative importance of each match factor. Each weight
// lies in [0,1] and the weights sum to 1 so the composite stays in [0,1].
type Weights struct {
	Amount      float64 `json:"amount"`
	Date        float64 `json:"date"`
	Reference   float64 `json:"reference"`
	Description float64 `json:"description"`
	History     float64 `json:"history"`
}

// Sum returns the total of all weights.
func (w Weights) Sum() float64 {
	return w.Amount + w.Date + w.Reference + w.Description + w.History
}

// Validate checks that every weight is in [0,1] and that they sum to
// approximately 1.
func (w Weights) Validate() error {
	for name, value := range map[string]float64{
		"amount":      w.Amount,
		"date":        w.Date,
		"reference":   w.Reference,
		"description": w.Description,
		"history":     w.History,
	} {
		if value < 0.0 || value > 1.0 {
			return errors.ConfigError("scorer.weights."+name, value)
		}
	}
	if total := w.Sum(); total < 0.99 || total > 1.01 {
		return errors.ConfigError("scorer.weights.sum", total).
			WithSuggestion("factor weights must sum to 1.0")
	}
	return nil
}

// ToleranceBand pairs a percentage deviation bound with an absolute-amount
// deviation bound. A deviation is inside the band only when BOTH bounds hold.
type ToleranceBand struct {
	Percent  float64         `json:"percent"`
	Absolute decimal.Decimal `json:"absolute"`
}

// Contains reports whether both the percentage and the absolute deviation
// fall within the band.
func (b ToleranceBand) Contains(percentDev float64, absoluteDev decimal.Decimal) bool {
	return percentDev <= b.Percent && absoluteDev.LessThanOrEqual(b.Absolute)
}

// Config holds scoring parameters.
type Config struct {
	Weights Weights `json:"weights"`

	// NearBand is the tight amount tolerance tier: deviations inside it
	// score in [0.8, 1).
	NearBand ToleranceBand `json:"near_band"`

	// FarBand is the loose amount tolerance tier: deviations between the
	// near and far bands decay toward zero.
	FarBand ToleranceBand `json:"far_band"`

	// DateHorizonDays is the span over which the date factor decays linearly
	// from 1 to 0.
	DateHorizonDays int `json:"date_horizon_days"`

	// NeutralHistory is the history factor used when no settlement history
	// is available for the counterpart.
	NeutralHistory float64 `json:"neutral_history"`
}

// DefaultConfig returns scoring defaults: amount 0.35, date 0.15,
// reference 0.30, description 0.15, history 0.05, with a 90-day date horizon.
func DefaultConfig() *Config {
	return &Config{
		Weights: Weights{
			Amount:      0.35,
			Date:        0.15,
			Reference:   0.30,
			Description: 0.15,
			History:     0.05,
		},
		NearBand: ToleranceBand{
			Percent:  0.5,
			Absolute: decimal.NewFromFloat(1.00),
		},
		FarBand: ToleranceBand{
			Percent:  5.0,
			Absolute: decimal.NewFromFloat(25.00),
		},
		DateHorizonDays: 90,
		NeutralHistory:  0.5,
	}
}

// Validate checks the scoring configuration. Violations are configuration
// errors that fail the run at startup rather than being clamped.
func (c *Config) Validate() error {
	if err := c.Weights.Validate(); err != nil {
		return err
	}
	if c.NearBand.Percent < 0 || c.FarBand.Percent < 0 {
		return errors.ConfigError("scorer.tolerance.percent", c.NearBand.Percent)
	}
	if c.NearBand.Absolute.IsNegative() || c.FarBand.Absolute.IsNegative() {
		return errors.ConfigError("scorer.tolerance.absolute", c.NearBand.Absolute.String())
	}
	if c.NearBand.Percent > c.FarBand.Percent || c.NearBand.Absolute.GreaterThan(c.FarBand.Absolute) {
		return errors.New(errors.CategoryConfiguration, errors.CodeInvertedBounds,
			"near tolerance band must lie inside the far band").
			WithContext("near_percent", c.NearBand.Percent).
			WithContext("far_percent", c.FarBand.Percent)
	}
	if c.DateHorizonDays <= 0 {
		return errors.ConfigError("scorer.date_horizon_days", c.DateHorizonDays)
	}
	if c.NeutralHistory < 0.0 || c.NeutralHistory > 1.0 {
		return errors.ConfigError("scorer.neutral_history", c.NeutralHistory)
	}
	return nil
}

// Clone creates a deep copy of the configuration.
func (c *Config) Clone() *Config {
	if c == nil {
		return nil
	}
	clone := *c
	return &clone
}
