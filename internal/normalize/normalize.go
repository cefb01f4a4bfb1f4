// Package normalize canonicalizes raw entry fields into the comparable forms
// used by every downstream component: fingerprinting, scoring, and decision
// evaluation all operate on normalized values. All functions are pure.
package normalize

import (
	"strings"
	"time"
	"unicode"

	"github.com/shopspring/decimal"

	"recon-matching-engine/pkg/errors"
)

// AmountPrecision is the fixed number of fraction digits for amounts.
const AmountPrecision int32 = 2

// separators are stripped from text before comparison so that formatting
// variants of the same reference compare equal.
var separatorReplacer = strings.NewReplacer("-", "", ".", "", "/", "", "_", "")

// Text canonicalizes free-text fields: case-folded, whitespace-collapsed,
// separators stripped. Idempotent.
func Text(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = separatorReplacer.Replace(s)
	return collapseWhitespace(s)
}

// Reference canonicalizes reference codes: Text plus removal of interior
// spaces, since bank systems pad references inconsistently.
func Reference(s string) string {
	return strings.ReplaceAll(Text(s), " ", "")
}

func collapseWhitespace(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	inSpace := false
	for _, r := range s {
		if unicode.IsSpace(r) {
			inSpace = true
			continue
		}
		if inSpace && b.Len() > 0 {
			b.WriteByte(' ')
		}
		inSpace = false
		b.WriteRune(r)
	}
	return b.String()
}

// Amount parses a raw amount string into a 2-decimal fixed-point value.
// Currency symbols and thousand separators are tolerated; anything that does
// not parse to a finite decimal is an InvalidInput error.
func Amount(s string) (decimal.Decimal, error) {
	cleaned := strings.TrimSpace(s)
	if cleaned == "" {
		return decimal.Zero, errors.InvalidAmount(s, nil)
	}
	cleaned = strings.ReplaceAll(cleaned, "$", "")
	cleaned = strings.ReplaceAll(cleaned, ",", "")
	cleaned = strings.TrimSpace(cleaned)

	d, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.Zero, errors.InvalidAmount(s, err)
	}
	return AmountValue(d), nil
}

// AmountValue rounds an amount to the fixed 2-decimal representation.
func AmountValue(d decimal.Decimal) decimal.Decimal {
	return d.Round(AmountPrecision)
}

// Day truncates a timestamp to calendar-day granularity in the given
// reference timezone. A nil location defaults to UTC.
func Day(t time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	year, month, day := t.In(loc).Date()
	return time.Date(year, month, day, 0, 0, 0, 0, loc)
}

// dayFormats are the date layouts accepted from bank statement exports.
var dayFormats = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02",
	"01/02/2006",
	"2006/01/02",
	"Jan 2, 2006",
}

// ParseDay parses a raw date string and normalizes it to calendar-day
// granularity in the given timezone. Unparsable dates are InvalidInput.
func ParseDay(s string, loc *time.Location) (time.Time, error) {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return time.Time{}, errors.InvalidDate(s, nil)
	}

	var lastErr error
	for _, format := range dayFormats {
		if t, err := time.Parse(format, trimmed); err == nil {
			return Day(t, loc), nil
		} else {
			lastErr = err
		}
	}
	return time.Time{}, errors.InvalidDate(s, lastErr)
}

// DaysBetween returns the absolute number of whole days between two
// day-normalized dates.
func DaysBetween(a, b time.Time) int {
	diff := a.Sub(b)
	if diff < 0 {
		diff = -diff
	}
	return int(diff / (24 * time.Hour))
}
