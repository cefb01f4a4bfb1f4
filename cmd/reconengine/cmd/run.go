package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"recon-matching-engine/cmd/reconengine/config"
	"recon-matching-engine/internal/dedup"
	"recon-matching-engine/internal/engine"
	"recon-matching-engine/internal/parsers"
	"recon-matching-engine/internal/policy"
	"recon-matching-engine/internal/reporter"
	"recon-matching-engine/internal/resolver"
	"recon-matching-engine/internal/scorer"
	"recon-matching-engine/pkg/logger"
)

var (
	entriesFile        string
	recordsFile        string
	scopeID            string
	outputFormat       string
	outputFile         string
	minScoreFloor      float64
	ambiguityThreshold float64
	autoApprove        float64
	autoReject         float64
	dedupWindowDays    int
	workers            int
	includeFactors     bool
	timezoneName       string
)

// runCmd executes one reconciliation run over CSV inputs.
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Reconcile bank statement entries against open internal records",
	Long: `Run matches every entry in the entries file against the open records
in the records file, within one account scope.

Examples:
  reconengine run --entries entries.csv --records records.csv
  reconengine run --entries entries.csv --records records.csv \
    --ambiguity-threshold 0.05 --min-score 0.6 --output-format json
  reconengine run --entries entries.csv --records records.csv --output-file report.csv --output-format csv`,

	PreRunE: validateRunFlags,
	RunE:    runReconciliation,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVarP(&entriesFile, "entries", "e", "", "path to bank entries CSV file (required)")
	runCmd.Flags().StringVarP(&recordsFile, "records", "r", "", "path to internal records CSV file (required)")
	runCmd.Flags().StringVar(&scopeID, "scope", "default", "account scope for matching and dedup")
	runCmd.Flags().StringVar(&timezoneName, "timezone", "", "IANA timezone for tenant calendar days (default UTC)")

	runCmd.Flags().StringVarP(&outputFormat, "output-format", "f", "console", "output format: console, json, csv")
	runCmd.Flags().StringVarP(&outputFile, "output-file", "o", "", "output file path (default: stdout)")
	runCmd.Flags().BoolVar(&includeFactors, "factors", false, "include per-factor score breakdown in console output")

	runCmd.Flags().Float64Var(&minScoreFloor, "min-score", 0, "minimum candidate score floor (default 0.50)")
	runCmd.Flags().Float64Var(&ambiguityThreshold, "ambiguity-threshold", 0, "score differential below which the top candidates are ambiguous (default 0.10)")
	runCmd.Flags().Float64Var(&autoApprove, "auto-approve", 0, "confidence threshold for auto-applying near-tier matches (default 0.95)")
	runCmd.Flags().Float64Var(&autoReject, "auto-reject", 0, "confidence threshold below which matches are rejected (default 0.30)")
	runCmd.Flags().IntVar(&dedupWindowDays, "dedup-window", 0, "duplicate detection window in days (default 90)")
	runCmd.Flags().IntVar(&workers, "workers", 0, "scoring workers per entry (default: one per CPU)")

	runCmd.MarkFlagRequired("entries")
	runCmd.MarkFlagRequired("records")

	viper.BindPFlag("entries", runCmd.Flags().Lookup("entries"))
	viper.BindPFlag("records", runCmd.Flags().Lookup("records"))
	viper.BindPFlag("scope", runCmd.Flags().Lookup("scope"))
	viper.BindPFlag("timezone", runCmd.Flags().Lookup("timezone"))
	viper.BindPFlag("output-format", runCmd.Flags().Lookup("output-format"))
	viper.BindPFlag("output-file", runCmd.Flags().Lookup("output-file"))
	viper.BindPFlag("min-score", runCmd.Flags().Lookup("min-score"))
	viper.BindPFlag("ambiguity-threshold", runCmd.Flags().Lookup("ambiguity-threshold"))
	viper.BindPFlag("auto-approve", runCmd.Flags().Lookup("auto-approve"))
	viper.BindPFlag("auto-reject", runCmd.Flags().Lookup("auto-reject"))
	viper.BindPFlag("dedup-window", runCmd.Flags().Lookup("dedup-window"))
	viper.BindPFlag("workers", runCmd.Flags().Lookup("workers"))
}

func validateRunFlags(cmd *cobra.Command, args []string) error {
	entriesFile = viper.GetString("entries")
	recordsFile = viper.GetString("records")
	scopeID = viper.GetString("scope")
	timezoneName = viper.GetString("timezone")
	outputFormat = viper.GetString("output-format")
	outputFile = viper.GetString("output-file")
	minScoreFloor = viper.GetFloat64("min-score")
	ambiguityThreshold = viper.GetFloat64("ambiguity-threshold")
	autoApprove = viper.GetFloat64("auto-approve")
	autoReject = viper.GetFloat64("auto-reject")
	dedupWindowDays = viper.GetInt("dedup-window")
	workers = viper.GetInt("workers")

	if !reporter.OutputFormat(outputFormat).IsValid() {
		return fmt.Errorf("invalid output format %q: must be console, json, or csv", outputFormat)
	}
	return nil
}

func runReconciliation(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log := logger.GetGlobalLogger().WithComponent("cli")

	loc, err := loadTimezone(timezoneName)
	if err != nil {
		return err
	}

	settings := config.Settings{
		MinScoreFloor:        minScoreFloor,
		AmbiguityThreshold:   ambiguityThreshold,
		AutoApproveThreshold: autoApprove,
		AutoRejectThreshold:  autoReject,
		DedupWindowDays:      dedupWindowDays,
		Workers:              workers,
	}

	eng, err := assembleEngine(settings, loc)
	if err != nil {
		return err
	}

	entryParser := &parsers.EntryParser{Timezone: loc}
	entries, entryStats, err := entryParser.ParseFile(entriesFile)
	if err != nil {
		return err
	}
	reportParseStats(log, "entries", entryStats)

	summary, err := eng.RunReconciliation(ctx, scopeID, entries)
	if err != nil {
		return err
	}

	out := os.Stdout
	if outputFile != "" {
		f, ferr := os.Create(outputFile)
		if ferr != nil {
			return ferr
		}
		defer f.Close()
		out = f
	}

	rep := &reporter.Reporter{IncludeFactors: includeFactors}
	return rep.Write(out, summary, reporter.OutputFormat(outputFormat))
}

// assembleEngine wires the engine with in-memory collaborators over the
// records file. Production deployments replace the ledger and fingerprint
// stores with database-backed implementations.
func assembleEngine(settings config.Settings, loc *time.Location) (*engine.Engine, error) {
	scorerCfg, err := settings.ScorerConfig()
	if err != nil {
		return nil, err
	}
	resolverCfg, err := settings.ResolverConfig()
	if err != nil {
		return nil, err
	}
	policyCfg, err := settings.PolicyConfig()
	if err != nil {
		return nil, err
	}
	dedupCfg, err := settings.DedupConfig()
	if err != nil {
		return nil, err
	}
	engineCfg, err := settings.EngineConfig()
	if err != nil {
		return nil, err
	}

	recordParser := &parsers.RecordParser{Timezone: loc}
	records, recordStats, err := recordParser.ParseFile(recordsFile)
	if err != nil {
		return nil, err
	}
	reportParseStats(logger.GetGlobalLogger().WithComponent("cli"), "records", recordStats)

	sc, err := scorer.NewScorer(scorerCfg, nil)
	if err != nil {
		return nil, err
	}
	rs, err := resolver.NewResolver(resolverCfg)
	if err != nil {
		return nil, err
	}
	pl, err := policy.NewPolicy(policyCfg)
	if err != nil {
		return nil, err
	}
	dd, err := dedup.NewDeduplicator(dedup.NewMemoryFingerprintStore(), dedupCfg)
	if err != nil {
		return nil, err
	}

	return engine.NewEngine(
		&engine.StaticScopeResolver{Timezone: loc},
		engine.NewMemoryLedgerStore(records),
		&engine.LogNotificationSink{},
		dd, sc, rs, engineCfg, pl,
	)
}

// loadTimezone resolves an IANA timezone name; an empty name is UTC.
func loadTimezone(name string) (*time.Location, error) {
	if name == "" {
		return time.UTC, nil
	}
	return time.LoadLocation(name)
}

func reportParseStats(log logger.Logger, input string, stats *parsers.ParseStats) {
	if stats == nil {
		return
	}
	log.WithFields(logger.Fields{
		"input":      input,
		"rows_read":  stats.RowsRead,
		"rows_valid": stats.RowsValid,
		"row_errors": len(stats.RowErrors),
	}).Info("input parsed")
	for _, rowErr := range stats.RowErrors {
		log.Warn(input + ": " + rowErr.Error())
	}
}
