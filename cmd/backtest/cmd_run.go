package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/algomatic/regime-backtest/pkg/batch"
	"github.com/algomatic/regime-backtest/pkg/report"
	"github.com/algomatic/regime-backtest/pkg/strategy"
)

var (
	runFile      string
	runSymbol    string
	runTimeframe string
	runStart     string
	runEnd       string
	runStrategy  string
	runFormat    string
	runTradesCSV string
	runJSON      string
	runPersist   bool
	runCache     bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Backtest one symbol",
	Long: `Backtest one symbol from a candle file (JSON or CSV) or from the backend
API, and print the results with the regime breakdown.

Examples:
  backtest run --file data/NIFTY.json --start 2020-03-01 --end 2020-09-30
  backtest run --symbol NIFTY --start 2005-01-01 --end 2006-12-31 --format json
  backtest run --file data/NIFTY.csv --strategy crossover --trades-csv trades.csv`,
	RunE: runSingle,
}

func init() {
	rootCmd.AddCommand(runCmd)

	f := runCmd.Flags()
	f.StringVar(&runFile, "file", "", "Candle file (.json or .csv)")
	f.StringVar(&runSymbol, "symbol", "", "Symbol to fetch from the backend API (or label for --file)")
	f.StringVar(&runTimeframe, "timeframe", "1Day", "Candle timeframe for the backend API")
	f.StringVar(&runStart, "start", "", "First date to include (YYYY-MM-DD)")
	f.StringVar(&runEnd, "end", "", "Last date to include (YYYY-MM-DD)")
	f.StringVar(&runStrategy, "strategy", strategy.Default, "Strategy variant (see 'backtest strategies')")
	f.StringVar(&runFormat, "format", "text", "Output format: text, json")
	f.StringVar(&runTradesCSV, "trades-csv", "", "Write the trade log to this CSV file")
	f.StringVar(&runJSON, "json", "", "Write the full report with trades to this JSON file")
	f.BoolVar(&runPersist, "persist", false, "Save the report to Postgres (database.dsn)")
	f.BoolVar(&runCache, "cache", false, "Use the Redis report cache (redis.addr)")
}

func runSingle(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	if runFile == "" && runSymbol == "" {
		return fmt.Errorf("specify --file or --symbol")
	}
	from, to, err := dateRange(runStart, runEnd)
	if err != nil {
		return err
	}

	symbol := strings.ToUpper(runSymbol)
	var job batch.Job
	if runFile != "" {
		if symbol == "" {
			symbol = symbolFromPath(runFile)
		}
		job = batch.Job{Symbol: symbol, Load: fileSource(runFile, from, to)}
	} else {
		client, err := newBackendClient()
		if err != nil {
			return err
		}
		job = batch.Job{Symbol: symbol, Load: backendSource(client, symbol, runTimeframe, from, to)}
	}

	strat, err := strategy.Build(runStrategy, cfg.Strategy)
	if err != nil {
		return err
	}

	svc, err := openServices(ctx, runPersist, runCache)
	if err != nil {
		return err
	}
	defer svc.Close()

	opts := append(svc.options(), batch.WithTimeframe(runTimeframe))
	runner := batch.NewRunner(cfg.Strategy, strat, 1, logger, opts...)
	_, results, err := runner.Run(ctx, []batch.Job{job})
	if err != nil {
		return err
	}
	res := results[0]
	if res.Report == nil {
		return res.Err
	}
	if res.Err != nil {
		logger.Warn("Backtest finished but saving failed", "symbol", symbol, "error", res.Err)
	}

	switch strings.ToLower(runFormat) {
	case "json":
		err = report.WriteJSON(os.Stdout, symbol, res.Report, false)
	case "text":
		err = report.WriteSummary(os.Stdout, symbol, res.Report)
	default:
		return fmt.Errorf("unknown format %q: must be text or json", runFormat)
	}
	if err != nil {
		return err
	}

	if runTradesCSV != "" {
		if err := report.SaveTradesCSV(runTradesCSV, symbol, res.Report.ClosedTrades); err != nil {
			return err
		}
		logger.Info("Wrote trade log", "path", runTradesCSV, "trades", len(res.Report.ClosedTrades))
	}
	if runJSON != "" {
		if err := report.SaveJSON(runJSON, symbol, res.Report, true); err != nil {
			return err
		}
		logger.Info("Wrote report", "path", runJSON)
	}
	return nil
}
