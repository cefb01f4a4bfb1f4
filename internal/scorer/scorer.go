package scorer

import (
	"math"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/texttheater/golang-levenshtein/levenshtein"

	"recon-matching-engine/internal/models"
	"recon-matching-engine/internal/normalize"
)

// HistoryProvider supplies the fraction of a counterpart's recent settled
// transactions that were exact-amount matches, used as a weak prior for
// ambiguous cases.
type HistoryProvider interface {
	ExactAmountRate(ownerRef string) (rate float64, ok bool)
}

// Scorer produces a MatchCandidate for one (entry, record) pair.
type Scorer struct {
	config  *Config
	history HistoryProvider
}

// NewScorer creates a scorer. The history provider may be nil, in which case
// the history factor stays at its neutral value.
func NewScorer(config *Config, history HistoryProvider) (*Scorer, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &Scorer{config: config, history: history}, nil
}

// Config returns a copy of the scoring configuration.
func (s *Scorer) Config() *Config {
	return s.config.Clone()
}

// Score computes the composite match score for one pair. Every factor is
// clamped to [0,1] before weighting; the breakdown stays inspectable on the
// returned candidate. Dates are compared at calendar-day granularity in the
// tenant reference timezone; a nil location defaults to UTC.
func (s *Scorer) Score(entry *models.ExternalEntry, record *models.InternalRecord, loc *time.Location) models.MatchCandidate {
	factors := models.FactorScores{
		Amount:      clamp01(s.amountScore(entry.Amount, record.Amount)),
		Date:        clamp01(s.dateScore(entry.OccurredOn, record.DueDate, loc)),
		Reference:   clamp01(s.referenceScore(entry.Reference, record.Reference)),
		Description: clamp01(s.descriptionScore(entry.Description, record.Description)),
		History:     clamp01(s.historyScore(record.OwnerRef)),
	}

	w := s.config.Weights
	composite := factors.Amount*w.Amount +
		factors.Date*w.Date +
		factors.Reference*w.Reference +
		factors.Description*w.Description +
		factors.History*w.History

	return models.MatchCandidate{
		RecordID:        record.ID,
		Score:           clamp01(composite),
		Factors:         factors,
		RecordAmount:    normalize.AmountValue(record.Amount),
		AmountDeviation: AmountDeviation(entry.Amount, record.Amount),
		RecordDueDate:   record.DueDate,
	}
}

// AmountDeviation returns the absolute difference between the normalized
// magnitudes of two amounts.
func AmountDeviation(a, b decimal.Decimal) decimal.Decimal {
	return normalize.AmountValue(a).Abs().Sub(normalize.AmountValue(b).Abs()).Abs()
}

// PercentDeviation returns the deviation as a percentage of the larger
// magnitude. The larger magnitude is used as base so the measure is
// symmetric in its operands.
func PercentDeviation(a, b decimal.Decimal) float64 {
	deviation := AmountDeviation(a, b)
	base := decimal.Max(a.Abs(), b.Abs())
	if base.IsZero() {
		return 0.0
	}
	return deviation.Div(base).InexactFloat64() * 100.0
}

// amountScore scores amount proximity. Exact normalized match scores 1.0;
// inside the near band the score stays in [0.8, 1); inside the far band it
// decays toward 0; beyond the far band it is 0. The deviation ratio is the
// greater of the percentage ratio and the absolute ratio, so a pair must
// satisfy both bounds of a band to earn that band's score range.
func (s *Scorer) amountScore(entryAmount, recordAmount decimal.Decimal) float64 {
	deviation := AmountDeviation(entryAmount, recordAmount)
	if deviation.IsZero() {
		return 1.0
	}

	percentDev := PercentDeviation(entryAmount, recordAmount)
	absoluteDev := deviation.InexactFloat64()

	if ratio := bandRatio(percentDev, absoluteDev, s.config.NearBand); ratio <= 1.0 {
		return 1.0 - 0.2*ratio
	}
	if ratio := bandRatio(percentDev, absoluteDev, s.config.FarBand); ratio <= 1.0 {
		return 0.8 * (1.0 - ratio)
	}
	return 0.0
}

// bandRatio returns how far a deviation sits inside a tolerance band, as the
// greater of the percentage and absolute ratios. A value above 1 means the
// deviation fails at least one bound of the band.
func bandRatio(percentDev, absoluteDev float64, band ToleranceBand) float64 {
	percentRatio := math.Inf(1)
	if band.Percent > 0 {
		percentRatio = percentDev / band.Percent
	} else if percentDev == 0 {
		percentRatio = 0
	}

	absoluteRatio := math.Inf(1)
	if bandAbs := band.Absolute.InexactFloat64(); bandAbs > 0 {
		absoluteRatio = absoluteDev / bandAbs
	} else if absoluteDev == 0 {
		absoluteRatio = 0
	}

	return math.Max(percentRatio, absoluteRatio)
}

// dateScore scores date proximity with linear decay: same day is 1.0,
// falling to 0 at the configured horizon. Days are counted in the tenant
// reference timezone.
func (s *Scorer) dateScore(entryDate, recordDate time.Time, loc *time.Location) float64 {
	days := normalize.DaysBetween(
		normalize.Day(entryDate, loc),
		normalize.Day(recordDate, loc),
	)
	if days == 0 {
		return 1.0
	}
	if days >= s.config.DateHorizonDays {
		return 0.0
	}
	return 1.0 - float64(days)/float64(s.config.DateHorizonDays)
}

// referenceScore scores reference codes: exact normalized equality is 1.0,
// substring containment is 0.85, anything else is edit-distance similarity
// capped at 0.7.
func (s *Scorer) referenceScore(entryRef, recordRef string) float64 {
	a := normalize.Reference(entryRef)
	b := normalize.Reference(recordRef)

	if a == b {
		return 1.0
	}
	if a == "" || b == "" {
		return 0.0
	}
	if strings.Contains(a, b) || strings.Contains(b, a) {
		return 0.85
	}
	return math.Min(Similarity(a, b), 0.7)
}

// descriptionScore scores free-text descriptions by edit-distance similarity
// on the normalized text.
func (s *Scorer) descriptionScore(entryDesc, recordDesc string) float64 {
	return Similarity(normalize.Text(entryDesc), normalize.Text(recordDesc))
}

// historyScore returns the counterpart's exact-amount settlement rate, or
// the neutral prior when no history is available.
func (s *Scorer) historyScore(ownerRef string) float64 {
	if s.history == nil {
		return s.config.NeutralHistory
	}
	rate, ok := s.history.ExactAmountRate(ownerRef)
	if !ok {
		return s.config.NeutralHistory
	}
	return rate
}

// Similarity is the normalized Levenshtein ratio between two strings:
// 1 - distance/max(len). Two empty strings are identical (1); an empty
// string against a non-empty one shares nothing (0).
func Similarity(a, b string) float64 {
	ra, rb := []rune(a), []rune(b)
	if len(ra) == 0 && len(rb) == 0 {
		return 1.0
	}
	if len(ra) == 0 || len(rb) == 0 {
		return 0.0
	}

	distance := levenshtein.DistanceForStrings(ra, rb, levenshtein.DefaultOptionsWithSub)
	maxLen := len(ra)
	if len(rb) > maxLen {
		maxLen = len(rb)
	}
	return 1.0 - float64(distance)/float64(maxLen)
}

func clamp01(v float64) float64 {
	if v < 0.0 {
		return 0.0
	}
	if v > 1.0 {
		return 1.0
	}
	return v
}
