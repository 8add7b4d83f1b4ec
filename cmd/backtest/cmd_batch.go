package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/algomatic/regime-backtest/pkg/api"
	"github.com/algomatic/regime-backtest/pkg/batch"
	"github.com/algomatic/regime-backtest/pkg/loader"
	"github.com/algomatic/regime-backtest/pkg/metrics"
	"github.com/algomatic/regime-backtest/pkg/report"
	"github.com/algomatic/regime-backtest/pkg/runtracker"
	"github.com/algomatic/regime-backtest/pkg/strategy"
)

var (
	batchDir      string
	batchStart    string
	batchEnd      string
	batchStrategy string
	batchWorkers  int
	batchServe    string
	batchOutDir   string
	batchPersist  bool
	batchCache    bool
	batchLinger   bool
)

var batchCmd = &cobra.Command{
	Use:   "batch",
	Short: "Backtest every symbol file in a directory",
	Long: `Backtest every <SYMBOL>.json or <SYMBOL>.csv file in a directory in
parallel. Each symbol runs with its own equity account; a failing symbol is
reported without stopping the others.

With --serve the monitoring API (/api/v1/...) and Prometheus /metrics are
exposed while the batch runs.

Examples:
  backtest batch --dir data/ --start 2020-03-01 --end 2020-09-30
  backtest batch --dir data/ --workers 8 --serve :8090 --persist --cache`,
	RunE: runBatch,
}

func init() {
	rootCmd.AddCommand(batchCmd)

	f := batchCmd.Flags()
	f.StringVar(&batchDir, "dir", "", "Directory of candle files")
	f.StringVar(&batchStart, "start", "", "First date to include (YYYY-MM-DD)")
	f.StringVar(&batchEnd, "end", "", "Last date to include (YYYY-MM-DD)")
	f.StringVar(&batchStrategy, "strategy", strategy.Default, "Strategy variant")
	f.IntVar(&batchWorkers, "workers", 0, "Parallel symbols (default from config)")
	f.StringVar(&batchServe, "serve", "", "Expose the monitoring API on this address (e.g. :8090)")
	f.StringVar(&batchOutDir, "out-dir", "", "Write <SYMBOL>.json and <SYMBOL>_trades.csv here")
	f.BoolVar(&batchPersist, "persist", false, "Save reports to Postgres (database.dsn)")
	f.BoolVar(&batchCache, "cache", false, "Use the Redis report cache (redis.addr)")
	f.BoolVar(&batchLinger, "linger", false, "Keep serving after the batch finishes until interrupted")
	_ = batchCmd.MarkFlagRequired("dir")
}

func runBatch(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	from, to, err := dateRange(batchStart, batchEnd)
	if err != nil {
		return err
	}
	paths, symbols, err := loader.Symbols(batchDir)
	if err != nil {
		return err
	}
	if len(symbols) == 0 {
		return fmt.Errorf("no .json or .csv candle files in %s", batchDir)
	}

	strat, err := strategy.Build(batchStrategy, cfg.Strategy)
	if err != nil {
		return err
	}

	workers := cfg.Batch.Workers
	if batchWorkers > 0 {
		workers = batchWorkers
	}

	svc, err := openServices(ctx, batchPersist, batchCache)
	if err != nil {
		return err
	}
	defer svc.Close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	tracker := runtracker.NewTracker(logger, version)

	opts := append(svc.options(), batch.WithTracker(tracker), batch.WithMetrics(metrics.New(reg)))
	runner := batch.NewRunner(cfg.Strategy, strat, workers, logger, opts...)

	if batchServe != "" {
		srv := api.NewServer(tracker, reg, logger)
		srv.StoreConnected = svc.store != nil
		srv.CacheConnected = svc.cache != nil
		stop := serve(batchServe, srv)
		defer stop()
	}

	jobs := make([]batch.Job, len(symbols))
	for i, sym := range symbols {
		jobs[i] = batch.Job{Symbol: sym, Load: fileSource(paths[sym], from, to)}
	}

	logger.Info("Starting batch",
		"symbols", len(jobs),
		"strategy", strat.Name,
		"workers", workers,
	)
	_, results, err := runner.Run(ctx, jobs)
	if err != nil {
		return err
	}

	if err := report.WriteBatchSummary(os.Stdout, results); err != nil {
		return err
	}
	if batchOutDir != "" {
		if err := writeOutputs(batchOutDir, results); err != nil {
			return err
		}
	}

	if batchServe != "" && batchLinger {
		logger.Info("Batch finished, serving until interrupted", "addr", batchServe)
		<-ctx.Done()
	}
	return nil
}

// serve starts the monitoring server in the background and returns a
// function that shuts it down.
func serve(addr string, srv *api.Server) func() {
	mux := http.NewServeMux()
	srv.RegisterRoutes(mux)
	hs := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		logger.Info("Monitoring API listening", "addr", addr)
		if err := hs.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Monitoring API stopped", "error", err)
		}
	}()
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := hs.Shutdown(ctx); err != nil {
			logger.Warn("Monitoring API shutdown", "error", err)
		}
	}
}

func writeOutputs(dir string, results []batch.Result) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", dir, err)
	}
	for _, res := range results {
		if res.Report == nil {
			continue
		}
		if err := report.SaveJSON(filepath.Join(dir, res.Symbol+".json"), res.Symbol, res.Report, false); err != nil {
			return err
		}
		if err := report.SaveTradesCSV(filepath.Join(dir, res.Symbol+"_trades.csv"), res.Symbol, res.Report.ClosedTrades); err != nil {
			return err
		}
	}
	logger.Info("Wrote per-symbol reports", "dir", dir)
	return nil
}
