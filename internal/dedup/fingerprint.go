// Package dedup prevents reprocessing of previously ingested transactions.
// Every entry gets a versioned, collision-resistant fingerprint over its
// normalized fields; lookups are index-backed and restricted to a trailing
// window so duplicate detection stays constant-time regardless of history.
package dedup

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"recon-matching-engine/internal/normalize"
	"recon-matching-engine/pkg/errors"
)

// Version tags every fingerprint so the algorithm can evolve without
// breaking historical lookups. Fingerprints carrying a different version are
// not comparable and never treated as duplicates.
const Version = "v1"

// fieldSeparator is a non-printable byte between fields so that moving
// characters across field boundaries cannot forge a collision.
const fieldSeparator = "\x1f"

// Fingerprint computes the versioned content fingerprint for one entry:
// a 256-bit digest over the normalized tuple (scope, occurred-on day,
// amount, description, optional reference). The occurred-on timestamp is
// truncated to a calendar day in the tenant reference timezone; a nil
// location defaults to UTC.
func Fingerprint(scope string, occurredOn time.Time, loc *time.Location, amount decimal.Decimal, description, reference string) (string, error) {
	if strings.TrimSpace(scope) == "" {
		return "", errors.InvalidInput("scope", scope, nil)
	}
	if occurredOn.IsZero() {
		return "", errors.InvalidInput("occurred_on", occurredOn, nil)
	}

	fields := []string{
		scope,
		normalize.Day(occurredOn, loc).Format("2006-01-02"),
		normalize.AmountValue(amount).String(),
		normalize.Text(description),
		normalize.Reference(reference),
	}

	sum := sha256.Sum256([]byte(strings.Join(fields, fieldSeparator)))
	return Version + ":" + hex.EncodeToString(sum[:]), nil
}

// VersionOf extracts the version tag from a stored fingerprint. The second
// return value is false for untagged or empty fingerprints.
func VersionOf(fp string) (string, bool) {
	idx := strings.IndexByte(fp, ':')
	if idx <= 0 || idx == len(fp)-1 {
		return "", false
	}
	return fp[:idx], true
}
