// Package config assembles component configurations from CLI flag and
// environment values. Every assembled configuration is validated before the
// engine sees it.
package config

import (
	"recon-matching-engine/internal/dedup"
	"recon-matching-engine/internal/engine"
	"recon-matching-engine/internal/policy"
	"recon-matching-engine/internal/resolver"
	"recon-matching-engine/internal/scorer"
)

// Settings carries the tunable values exposed on the CLI. Zero values mean
// "use the component default".
type Settings struct {
	MinScoreFloor        float64
	AmbiguityThreshold   float64
	AutoApproveThreshold float64
	AutoRejectThreshold  float64
	DedupWindowDays      int
	Workers              int
}

// ScorerConfig builds a validated scoring configuration.
func (s Settings) ScorerConfig() (*scorer.Config, error) {
	cfg := scorer.DefaultConfig()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ResolverConfig builds a validated resolution configuration.
func (s Settings) ResolverConfig() (*resolver.Config, error) {
	cfg := resolver.DefaultConfig()
	if s.MinScoreFloor > 0 {
		cfg.MinScoreFloor = s.MinScoreFloor
	}
	if s.AmbiguityThreshold > 0 {
		cfg.AmbiguityThreshold = s.AmbiguityThreshold
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// PolicyConfig builds a validated decision policy configuration.
func (s Settings) PolicyConfig() (*policy.Config, error) {
	cfg := policy.DefaultConfig()
	if s.AutoApproveThreshold > 0 {
		cfg.AutoApproveThreshold = s.AutoApproveThreshold
	}
	if s.AutoRejectThreshold > 0 {
		cfg.AutoRejectThreshold = s.AutoRejectThreshold
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// DedupConfig builds a validated deduplication configuration.
func (s Settings) DedupConfig() (*dedup.Config, error) {
	cfg := dedup.DefaultConfig()
	if s.DedupWindowDays > 0 {
		cfg.WindowDays = s.DedupWindowDays
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// EngineConfig builds a validated orchestration configuration.
func (s Settings) EngineConfig() (*engine.Config, error) {
	cfg := engine.DefaultConfig()
	if s.Workers > 0 {
		cfg.Workers = s.Workers
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
