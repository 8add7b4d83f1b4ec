package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/algomatic/regime-backtest/pkg/loader"
	"github.com/algomatic/regime-backtest/pkg/report"
	"github.com/algomatic/regime-backtest/pkg/scan"
	"github.com/algomatic/regime-backtest/pkg/types"
)

var (
	scanFile   string
	scanWindow int
	scanTop    int
	scanSince  string
	scanFormat string
)

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Rank historical windows by trend strength",
	Long: `Score every window of 2*window candles by |price change| / volatility and
list the strongest trends, to pick periods for strategy validation.

Examples:
  backtest scan --file data/NIFTY.json
  backtest scan --file data/NIFTY.json --window 30 --top 5 --since 2020-01-01`,
	RunE: runScan,
}

func init() {
	rootCmd.AddCommand(scanCmd)

	f := scanCmd.Flags()
	f.StringVar(&scanFile, "file", "", "Candle file (.json or .csv)")
	f.IntVar(&scanWindow, "window", 60, "Candles on each side of the centre")
	f.IntVar(&scanTop, "top", 10, "Number of periods to list")
	f.StringVar(&scanSince, "since", "", "Also report the strongest period starting on or after this date")
	f.StringVar(&scanFormat, "format", "text", "Output format: text, json")
	_ = scanCmd.MarkFlagRequired("file")
}

func runScan(_ *cobra.Command, _ []string) error {
	if scanWindow < 1 || scanTop < 1 {
		return fmt.Errorf("--window and --top must be positive")
	}
	var since time.Time
	if scanSince != "" {
		t, err := types.ParseTimestamp(scanSince)
		if err != nil {
			return fmt.Errorf("invalid --since: %w", err)
		}
		since = t
	}

	candles, err := loader.LoadFile(scanFile)
	if err != nil {
		return err
	}
	if err := types.ValidateSeries(candles); err != nil {
		return fmt.Errorf("validating %s: %w", scanFile, err)
	}
	periods := scan.TrendingPeriods(candles, scanWindow)
	if periods == nil {
		return fmt.Errorf("need at least %d candles for window %d, have %d", 2*scanWindow+1, scanWindow, len(candles))
	}
	logger.Info("Scanned trending periods",
		"file", scanFile,
		"candles", len(candles),
		"periods", len(periods),
	)

	switch strings.ToLower(scanFormat) {
	case "json":
		if len(periods) > scanTop {
			periods = periods[:scanTop]
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(periods)
	case "text":
		return report.WriteScan(os.Stdout, periods, scanTop, since)
	default:
		return fmt.Errorf("unknown format %q: must be text or json", scanFormat)
	}
}
