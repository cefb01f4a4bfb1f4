// Package reporter renders run summaries for terminal display, programmatic
// consumption, or spreadsheet import.
package reporter

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"recon-matching-engine/internal/models"
	"recon-matching-engine/pkg/errors"
)

// OutputFormat selects how a run summary is rendered.
type OutputFormat string

const (
	FormatConsole OutputFormat = "console"
	FormatJSON    OutputFormat = "json"
	FormatCSV     OutputFormat = "csv"
)

// IsValid checks whether the output format is supported.
func (f OutputFormat) IsValid() bool {
	switch f {
	case FormatConsole, FormatJSON, FormatCSV:
		return true
	}
	return false
}

// Reporter renders run summaries.
type Reporter struct {
	// IncludeFactors adds the per-factor score breakdown to console output.
	IncludeFactors bool
}

// Write renders the summary in the given format.
func (r *Reporter) Write(w io.Writer, summary *models.RunSummary, format OutputFormat) error {
	switch format {
	case FormatConsole:
		return r.writeConsole(w, summary)
	case FormatJSON:
		return r.writeJSON(w, summary)
	case FormatCSV:
		return r.writeCSV(w, summary)
	default:
		return errors.ConfigError("reporter.format", string(format)).
			WithSuggestion("supported formats: console, json, csv")
	}
}

func (r *Reporter) writeConsole(w io.Writer, summary *models.RunSummary) error {
	var b strings.Builder

	b.WriteString("Reconciliation Run Summary\n")
	b.WriteString("==========================\n")
	fmt.Fprintf(&b, "Run ID:     %s\n", summary.RunID)
	fmt.Fprintf(&b, "Scope:      %s\n", summary.Scope)
	fmt.Fprintf(&b, "Started:    %s\n", summary.StartedAt.Format("2006-01-02 15:04:05 MST"))
	fmt.Fprintf(&b, "Duration:   %s\n", summary.CompletedAt.Sub(summary.StartedAt).Round(time.Millisecond).String())
	b.WriteString("\n")
	fmt.Fprintf(&b, "  Matched:    %d\n", summary.MatchedCount)
	fmt.Fprintf(&b, "  Ambiguous:  %d\n", summary.AmbiguousCount)
	fmt.Fprintf(&b, "  Unmatched:  %d\n", summary.UnmatchedCount)
	fmt.Fprintf(&b, "  Rejected:   %d\n", summary.RejectedCount)
	fmt.Fprintf(&b, "  Duplicates: %d\n", summary.DuplicateCount)

	if len(summary.Results) > 0 {
		b.WriteString("\nResults\n-------\n")
		for _, result := range summary.Results {
			recordID := "-"
			score := "-"
			if result.Chosen != nil {
				recordID = result.Chosen.RecordID
				score = fmt.Sprintf("%.3f", result.Chosen.Score)
			}
			fmt.Fprintf(&b, "%-16s %-10s %-16s %-7s %s\n",
				result.EntryID, result.Status, recordID, score, result.Reason)
			if r.IncludeFactors && result.Chosen != nil {
				f := result.Chosen.Factors
				fmt.Fprintf(&b, "%16s amount=%.2f date=%.2f ref=%.2f desc=%.2f hist=%.2f\n",
					"", f.Amount, f.Date, f.Reference, f.Description, f.History)
			}
		}
	}

	if len(summary.EntryErrors) > 0 {
		b.WriteString("\nEntry Errors\n------------\n")
		for _, e := range summary.EntryErrors {
			fmt.Fprintf(&b, "%-16s %s\n", e.EntryID, e.Message)
		}
	}

	_, err := io.WriteString(w, b.String())
	return err
}

func (r *Reporter) writeJSON(w io.Writer, summary *models.RunSummary) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(summary)
}

func (r *Reporter) writeCSV(w io.Writer, summary *models.RunSummary) error {
	cw := csv.NewWriter(w)

	header := []string{"entry_id", "status", "record_id", "score", "amount_deviation", "reason"}
	if err := cw.Write(header); err != nil {
		return err
	}

	for _, result := range summary.Results {
		recordID, score, deviation := "", "", ""
		if result.Chosen != nil {
			recordID = result.Chosen.RecordID
			score = fmt.Sprintf("%.4f", result.Chosen.Score)
			deviation = result.Chosen.AmountDeviation.String()
		}
		row := []string{result.EntryID, result.Status.String(), recordID, score, deviation, result.Reason}
		if err := cw.Write(row); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}
