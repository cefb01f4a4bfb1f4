package resolver

import (
	"testing"
	"time"

	"recon-matching-engine/internal/models"
	"recon-matching-engine/pkg/errors"
)

var testDay = time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)

func newTestResolver(t *testing.T) *Resolver {
	t.Helper()
	r, err := NewResolver(nil)
	if err != nil {
		t.Fatalf("NewResolver failed: %v", err)
	}
	return r
}

func testEntry() *models.ExternalEntry {
	return &models.ExternalEntry{ID: "entry-1", OccurredOn: testDay}
}

func candidate(id string, score float64, due time.Time) models.MatchCandidate {
	return models.MatchCandidate{RecordID: id, Score: score, RecordDueDate: due}
}

func TestResolveNoCandidates(t *testing.T) {
	r := newTestResolver(t)

	res := r.Resolve(testEntry(), nil)
	if res.Status != models.StatusUnmatched {
		t.Errorf("empty candidate set should be unmatched, got %s", res.Status)
	}
	if res.Reason == "" {
		t.Error("unmatched resolution should carry a reason")
	}
}

func TestResolveBelowFloor(t *testing.T) {
	r := newTestResolver(t)

	res := r.Resolve(testEntry(), []models.MatchCandidate{
		candidate("rec-1", 0.49, testDay),
		candidate("rec-2", 0.10, testDay),
	})
	if res.Status != models.StatusUnmatched {
		t.Errorf("all candidates below the 0.50 floor should be unmatched, got %s", res.Status)
	}
}

func TestResolveSingleCandidate(t *testing.T) {
	r := newTestResolver(t)

	res := r.Resolve(testEntry(), []models.MatchCandidate{candidate("rec-1", 0.85, testDay)})
	if res.Status != models.StatusMatched {
		t.Fatalf("single eligible candidate should match, got %s", res.Status)
	}
	if res.Chosen == nil || res.Chosen.RecordID != "rec-1" {
		t.Errorf("wrong chosen candidate: %+v", res.Chosen)
	}
}

func TestResolveAmbiguityBoundary(t *testing.T) {
	r := newTestResolver(t)

	// Differential 0.09 sits below the 0.10 threshold.
	res := r.Resolve(testEntry(), []models.MatchCandidate{
		candidate("rec-1", 0.85, testDay),
		candidate("rec-2", 0.76, testDay),
	})
	if res.Status != models.StatusAmbiguous {
		t.Errorf("0.85 vs 0.76 should be ambiguous, got %s", res.Status)
	}
	if len(res.Alternatives) != 2 {
		t.Errorf("ambiguous resolution should retain both candidates, got %d", len(res.Alternatives))
	}

	// Differential 0.11 clears the threshold.
	res = r.Resolve(testEntry(), []models.MatchCandidate{
		candidate("rec-1", 0.85, testDay),
		candidate("rec-2", 0.74, testDay),
	})
	if res.Status != models.StatusMatched {
		t.Errorf("0.85 vs 0.74 should match, got %s", res.Status)
	}
	if res.Chosen == nil || res.Chosen.RecordID != "rec-1" {
		t.Errorf("highest scorer should be chosen, got %+v", res.Chosen)
	}
}

func TestResolveChosenIsBest(t *testing.T) {
	r := newTestResolver(t)

	res := r.Resolve(testEntry(), []models.MatchCandidate{
		candidate("rec-low", 0.55, testDay),
		candidate("rec-best", 0.92, testDay),
		candidate("rec-mid", 0.70, testDay),
	})
	if res.Status != models.StatusMatched {
		t.Fatalf("expected matched, got %s", res.Status)
	}
	for _, alt := range res.Alternatives {
		if alt.Score > res.Chosen.Score {
			t.Errorf("alternative %s outscores the chosen candidate", alt.RecordID)
		}
	}
}

func TestResolveTieBreak(t *testing.T) {
	r := newTestResolver(t)

	// Equal scores: closer due date wins.
	res := r.Resolve(testEntry(), []models.MatchCandidate{
		candidate("rec-far", 0.90, testDay.AddDate(0, 0, 20)),
		candidate("rec-near", 0.90, testDay.AddDate(0, 0, 2)),
	})
	if res.Status != models.StatusAmbiguous {
		t.Fatalf("equal scores should be ambiguous, got %s", res.Status)
	}
	if res.Alternatives[0].RecordID != "rec-near" {
		t.Errorf("closer due date should rank first, got %s", res.Alternatives[0].RecordID)
	}

	// Equal scores and dates: lexicographically smaller id wins.
	res = r.Resolve(testEntry(), []models.MatchCandidate{
		candidate("rec-b", 0.90, testDay),
		candidate("rec-a", 0.90, testDay),
	})
	if res.Alternatives[0].RecordID != "rec-a" {
		t.Errorf("smaller id should rank first, got %s", res.Alternatives[0].RecordID)
	}
}

func TestResolveDeterministic(t *testing.T) {
	r := newTestResolver(t)

	candidates := []models.MatchCandidate{
		candidate("rec-3", 0.80, testDay.AddDate(0, 0, 5)),
		candidate("rec-1", 0.80, testDay.AddDate(0, 0, 5)),
		candidate("rec-2", 0.80, testDay.AddDate(0, 0, 5)),
	}

	first := r.Resolve(testEntry(), append([]models.MatchCandidate(nil), candidates...))
	for i := 0; i < 10; i++ {
		again := r.Resolve(testEntry(), append([]models.MatchCandidate(nil), candidates...))
		for j := range first.Alternatives {
			if again.Alternatives[j].RecordID != first.Alternatives[j].RecordID {
				t.Fatalf("ranking not reproducible on iteration %d", i)
			}
		}
	}
}

func TestResolveMaxAlternatives(t *testing.T) {
	r, err := NewResolver(&Config{MinScoreFloor: 0.5, AmbiguityThreshold: 0.10, MaxAlternatives: 3})
	if err != nil {
		t.Fatal(err)
	}

	candidates := make([]models.MatchCandidate, 0, 8)
	for i := 0; i < 8; i++ {
		candidates = append(candidates, candidate(string(rune('a'+i)), 0.80, testDay))
	}

	res := r.Resolve(testEntry(), candidates)
	if res.Status != models.StatusAmbiguous {
		t.Fatalf("expected ambiguous, got %s", res.Status)
	}
	if len(res.Alternatives) != 3 {
		t.Errorf("retained alternatives should be capped at 3, got %d", len(res.Alternatives))
	}
}

func TestResolverConfigValidation(t *testing.T) {
	bad := []*Config{
		{MinScoreFloor: -0.1, AmbiguityThreshold: 0.1, MaxAlternatives: 5},
		{MinScoreFloor: 0.5, AmbiguityThreshold: 1.5, MaxAlternatives: 5},
		{MinScoreFloor: 0.5, AmbiguityThreshold: 0.1, MaxAlternatives: 0},
	}
	for _, cfg := range bad {
		if _, err := NewResolver(cfg); !errors.IsConfigurationError(err) {
			t.Errorf("config %+v should fail validation, got %v", cfg, err)
		}
	}
}
