package cmd

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"recon-matching-engine/internal/dedup"
	"recon-matching-engine/internal/parsers"
)

var (
	fingerprintsFile string
	dedupEntriesFile string
	dedupScopeID     string
	dedupWindow      int
	dedupTimezone    string
)

// dedupCmd screens a batch for duplicates without running any matching.
var dedupCmd = &cobra.Command{
	Use:   "check-duplicates",
	Short: "Screen entry fingerprints for duplicates",
	Long: `Check-duplicates computes or reads entry fingerprints and reports which
ones collide. Each fingerprint is checked against everything seen before it,
so resubmissions within the batch are reported against the first occurrence.

Examples:
  reconengine check-duplicates --entries entries.csv
  reconengine check-duplicates --fingerprints fingerprints.txt --scope acct-1`,

	RunE: runCheckDuplicates,
}

func init() {
	rootCmd.AddCommand(dedupCmd)

	dedupCmd.Flags().StringVar(&fingerprintsFile, "fingerprints", "", "file with one fingerprint per line")
	dedupCmd.Flags().StringVar(&dedupEntriesFile, "entries", "", "entries CSV to fingerprint and screen")
	dedupCmd.Flags().StringVar(&dedupScopeID, "scope", "default", "account scope for the duplicate window")
	dedupCmd.Flags().IntVar(&dedupWindow, "window", 0, "duplicate detection window in days (default 90)")
	dedupCmd.Flags().StringVar(&dedupTimezone, "timezone", "", "IANA timezone for tenant calendar days (default UTC)")
}

// batchItem is one fingerprint to screen, tagged with where it came from.
type batchItem struct {
	fingerprint string
	sourceID    string
	occurredOn  time.Time
}

func runCheckDuplicates(cmd *cobra.Command, args []string) error {
	if fingerprintsFile == "" && dedupEntriesFile == "" {
		return fmt.Errorf("either --fingerprints or --entries is required")
	}

	ctx := context.Background()

	cfg := dedup.DefaultConfig()
	if dedupWindow > 0 {
		cfg.WindowDays = dedupWindow
	}
	deduplicator, err := dedup.NewDeduplicator(dedup.NewMemoryFingerprintStore(), cfg)
	if err != nil {
		return err
	}

	items, err := collectBatch()
	if err != nil {
		return err
	}

	duplicates := 0
	for _, item := range items {
		existingID, isDup, derr := deduplicator.Check(ctx, dedupScopeID, item.fingerprint, item.occurredOn)
		if derr != nil {
			return derr
		}
		if isDup {
			duplicates++
			fmt.Printf("duplicate: %s -> %s\n", item.sourceID, existingID)
			continue
		}
		if rerr := deduplicator.Record(ctx, dedupScopeID, item.fingerprint, item.sourceID, item.occurredOn); rerr != nil {
			return rerr
		}
	}

	fmt.Printf("checked: %d\n", len(items))
	fmt.Printf("unique: %d\n", len(items)-duplicates)
	fmt.Printf("duplicates: %d\n", duplicates)
	return nil
}

// collectBatch reads fingerprints from the list file, or computes them from
// an entries CSV when no list is given.
func collectBatch() ([]batchItem, error) {
	now := time.Now().UTC()

	if fingerprintsFile != "" {
		file, err := os.Open(fingerprintsFile)
		if err != nil {
			return nil, err
		}
		defer file.Close()

		var items []batchItem
		scanner := bufio.NewScanner(file)
		line := 0
		for scanner.Scan() {
			line++
			fp := strings.TrimSpace(scanner.Text())
			if fp == "" {
				continue
			}
			items = append(items, batchItem{
				fingerprint: fp,
				sourceID:    fmt.Sprintf("line-%d", line),
				occurredOn:  now,
			})
		}
		return items, scanner.Err()
	}

	loc, err := loadTimezone(dedupTimezone)
	if err != nil {
		return nil, err
	}

	entryParser := &parsers.EntryParser{Timezone: loc}
	entries, _, err := entryParser.ParseFile(dedupEntriesFile)
	if err != nil {
		return nil, err
	}

	items := make([]batchItem, 0, len(entries))
	for _, entry := range entries {
		fp, ferr := dedup.Fingerprint(dedupScopeID, entry.OccurredOn, loc, entry.Amount, entry.Description, entry.Reference)
		if ferr != nil {
			return nil, ferr
		}
		items = append(items, batchItem{
			fingerprint: fp,
			sourceID:    entry.ID,
			occurredOn:  entry.OccurredOn,
		})
	}
	return items, nil
}
