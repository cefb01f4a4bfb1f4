package policy

import (
	"testing"

	"github.com/shopspring/decimal"

	"recon-matching-engine/internal/models"
	"recon-matching-engine/pkg/errors"
)

func newTestPolicy(t *testing.T) *Policy {
	t.Helper()
	p, err := NewPolicy(nil)
	if err != nil {
		t.Fatalf("NewPolicy failed: %v", err)
	}
	return p
}

func amt(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	if err != nil {
		t.Fatalf("bad amount %q: %v", s, err)
	}
	return d
}

// testCandidate builds a candidate whose deviation fields are consistent with
// the entry and record amounts.
func testCandidate(t *testing.T, score float64, recordAmount, entryAmount string) *models.MatchCandidate {
	t.Helper()
	record := amt(t, recordAmount)
	entry := amt(t, entryAmount)
	return &models.MatchCandidate{
		RecordID:        "rec-1",
		Score:           score,
		RecordAmount:    record,
		AmountDeviation: entry.Sub(record).Abs(),
	}
}

func TestDecideExactTier(t *testing.T) {
	p := newTestPolicy(t)

	d := p.Decide(testCandidate(t, 0.90, "100.00", "100.00"), amt(t, "100.00"))
	if d.Action != ActionAutoApply {
		t.Errorf("zero deviation should auto-apply, got %s", d.Action)
	}
	if d.Tier != TierExact {
		t.Errorf("zero deviation should be the exact tier, got %s", d.Tier)
	}
	if d.Confidence != 1.0 {
		t.Errorf("exact tier confidence should be 1.0, got %f", d.Confidence)
	}
}

func TestDecideNearTierBoundary(t *testing.T) {
	p := newTestPolicy(t)

	// Deviation exactly at the near absolute bound (1.00) with the percent
	// bound satisfied: 1.00 of 1000.00 is 0.1%.
	atBound := p.Decide(testCandidate(t, 0.96, "1000.00", "1001.00"), amt(t, "1001.00"))
	if atBound.Tier != TierNear {
		t.Errorf("deviation at the near bound should stay in the near tier, got %s", atBound.Tier)
	}
	if atBound.Action != ActionAutoApply {
		t.Errorf("high confidence near-tier match should auto-apply, got %s", atBound.Action)
	}

	// One cent above the near absolute bound drops to the partial tier even
	// though the percent bound still passes.
	aboveBound := p.Decide(testCandidate(t, 0.96, "1000.00", "1001.01"), amt(t, "1001.01"))
	if aboveBound.Tier != TierPartial {
		t.Errorf("deviation one cent above the near bound should be partial, got %s", aboveBound.Tier)
	}
	if aboveBound.Action != ActionReview {
		t.Errorf("partial tier should always queue for review, got %s", aboveBound.Action)
	}
}

func TestDecideNearTierLowConfidence(t *testing.T) {
	p := newTestPolicy(t)

	d := p.Decide(testCandidate(t, 0.80, "1000.00", "1000.50"), amt(t, "1000.50"))
	if d.Tier != TierNear {
		t.Fatalf("expected near tier, got %s", d.Tier)
	}
	if d.Action != ActionReview {
		t.Errorf("near tier below the auto-approve threshold should queue for review, got %s", d.Action)
	}
}

func TestDecidePartialTier(t *testing.T) {
	p := newTestPolicy(t)

	// 5% deviation: within the partial envelope, review regardless of
	// confidence.
	d := p.Decide(testCandidate(t, 0.99, "1000.00", "1050.00"), amt(t, "1050.00"))
	if d.Tier != TierPartial || d.Action != ActionReview {
		t.Errorf("partial tier should review even at high confidence, got %s/%s", d.Tier, d.Action)
	}
	if d.PercentBound != p.config.PartialTier.Percent {
		t.Errorf("decision should record the evaluated percent bound, got %f", d.PercentBound)
	}
}

func TestDecideBeyondPartialTier(t *testing.T) {
	p := newTestPolicy(t)

	d := p.Decide(testCandidate(t, 0.90, "1000.00", "1500.00"), amt(t, "1500.00"))
	if d.Action != ActionReview {
		t.Errorf("beyond-partial deviation should escalate to review, got %s", d.Action)
	}
	if d.Reason == "" {
		t.Error("escalation should carry a reason")
	}
}

func TestDecideAutoReject(t *testing.T) {
	p := newTestPolicy(t)

	d := p.Decide(testCandidate(t, 0.20, "100.00", "100.00"), amt(t, "100.00"))
	if d.Action != ActionReject {
		t.Errorf("confidence below 0.30 should reject, got %s", d.Action)
	}
	if d.Tier != TierBelowFloor {
		t.Errorf("rejected decision should be below-floor tier, got %s", d.Tier)
	}
}

func TestPolicyConfigValidation(t *testing.T) {
	if err := DefaultConfig().Validate(); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}

	inverted := DefaultConfig()
	inverted.NearTier, inverted.PartialTier = inverted.PartialTier, inverted.NearTier
	err := inverted.Validate()
	if !errors.IsConfigurationError(err) {
		t.Fatalf("inverted tiers should fail, got %v", err)
	}
	if re, _ := errors.As(err); re.Code != errors.CodeInvertedBounds {
		t.Errorf("inverted tiers should carry the inverted-bounds code, got %s", re.Code)
	}

	thresholds := DefaultConfig()
	thresholds.AutoRejectThreshold = 0.98
	if err := thresholds.Validate(); !errors.IsConfigurationError(err) {
		t.Errorf("reject threshold above approve threshold should fail, got %v", err)
	}

	outOfRange := DefaultConfig()
	outOfRange.AutoApproveThreshold = 1.5
	if err := outOfRange.Validate(); !errors.IsConfigurationError(err) {
		t.Errorf("threshold above 1 should fail, got %v", err)
	}
}
